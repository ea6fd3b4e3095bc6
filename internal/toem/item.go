package toem

// ItemKind tags a pro or con entry.
type ItemKind int

const (
	// ItemModifier is a plain phrase that always counts.
	ItemModifier ItemKind = iota + 1
	// ItemArgument is a nested argument that counts only if it succeeds.
	ItemArgument
)

// Item is one entry in an argument's pro or con list.
type Item struct {
	Kind     ItemKind
	Modifier string
	Arg      *Argument
}

// Modifier builds a self-true item from a phrase.
func Modifier(phrase string) Item {
	return Item{Kind: ItemModifier, Modifier: phrase}
}

// Sub builds an item backed by a nested argument.
func Sub(a *Argument) Item {
	return Item{Kind: ItemArgument, Arg: a}
}

// IsArgument reports whether the item is a nested argument.
func (it Item) IsArgument() bool {
	return it.Kind == ItemArgument
}

// String returns the modifier phrase or the nested argument's label.
func (it Item) String() string {
	if it.Kind == ItemArgument && it.Arg != nil {
		return it.Arg.Label()
	}
	return it.Modifier
}
