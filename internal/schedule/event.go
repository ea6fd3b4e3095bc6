package schedule

import (
	"context"
	"fmt"

	"github.com/roach88/opcon/internal/ir"
)

// Parent is anything that owns scheduled events. UID must be stable across
// serialization.
type Parent interface {
	UID() string
}

// Method is a schedulable callback. args is the positional tuple and kwargs
// the keyword map; either may be nil.
type Method func(ctx context.Context, args ir.IRArray, kwargs ir.IRObject) error

// Dispatcher is a Parent that exposes its schedulable methods by name.
type Dispatcher interface {
	Parent
	Method(name string) (Method, bool)
}

// World resolves parent ids back to live parents after deserialization.
type World interface {
	Lookup(uid string) (Parent, bool)
}

// Kind distinguishes executable calls from memos.
type Kind int

const (
	// KindCall invokes a method on its parent.
	KindCall Kind = iota + 1
	// KindMemo annotates the timeline and does nothing when executed.
	KindMemo
)

// String returns "call" or "memo".
func (k Kind) String() string {
	switch k {
	case KindCall:
		return "call"
	case KindMemo:
		return "memo"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "call":
		return KindCall, nil
	case "memo":
		return KindMemo, nil
	default:
		return 0, fmt.Errorf("unknown event kind %q", s)
	}
}

// Call carries both positional and keyword arguments in one value for
// NewEvent.
type Call struct {
	Args   ir.IRArray
	Kwargs ir.IRObject
}

// Event is one entry on the timeline.
//
// ParentID and Method always describe the binding symbolically; the live
// parent and bound function are present until PreSerialize and again after
// PostDeserialize.
type Event struct {
	Kind     Kind
	ParentID string
	Method   string
	Args     ir.IRArray
	Kwargs   ir.IRObject

	// Memo fields.
	Tag  string
	Data ir.IRValue

	parent Parent
	fn     Method
	posted bool
}

// NewEvent builds a call bound to a method in the parent's dispatch table.
//
// args is normalized: ir.IRArray and Go slices are positional, ir.IRObject
// and map[string]any are keyword arguments, a Call supplies both, nil means
// no arguments, and any other single value becomes a one-element tuple.
func NewEvent(parent Dispatcher, method string, args any) (*Event, error) {
	if parent == nil {
		return nil, ErrNilParent
	}
	fn, ok := parent.Method(method)
	if !ok {
		return nil, &RebindError{ParentID: parent.UID(), Method: method, Reason: "no such method"}
	}
	return NewFuncEvent(parent, method, fn, args)
}

// NewFuncEvent builds a call bound to an explicit function. The method name
// is recorded for serialization; rebinding later requires the parent to be
// a Dispatcher that exposes the same name.
func NewFuncEvent(parent Parent, method string, fn Method, args any) (*Event, error) {
	if parent == nil {
		return nil, ErrNilParent
	}
	if fn == nil {
		return nil, fmt.Errorf("event %s.%s: nil method", parent.UID(), method)
	}
	pos, kw, err := normalizeArgs(args)
	if err != nil {
		return nil, fmt.Errorf("event %s.%s: %w", parent.UID(), method, err)
	}
	return &Event{
		Kind:     KindCall,
		ParentID: parent.UID(),
		Method:   method,
		Args:     pos,
		Kwargs:   kw,
		parent:   parent,
		fn:       fn,
	}, nil
}

// NewMemo builds a memo owned by parent. data is converted with ir.FromGo;
// a nil payload is stored as absent.
func NewMemo(parent Parent, tag string, data any) (*Event, error) {
	if parent == nil {
		return nil, ErrNilParent
	}
	ev := &Event{
		Kind:     KindMemo,
		ParentID: parent.UID(),
		Tag:      tag,
		parent:   parent,
	}
	if data != nil {
		v, err := ir.FromGo(data)
		if err == nil {
			err = ir.RejectNull(v)
		}
		if err != nil {
			return nil, fmt.Errorf("memo %q: %w", tag, err)
		}
		ev.Data = v
	}
	return ev, nil
}

// normalizeArgs splits args into positional and keyword arguments: a Call
// carries both, a sequence is positional, a mapping is keywords and any
// other value is a one-element tuple. Nulls are refused here so the
// poster sees the error, not a later save.
func normalizeArgs(args any) (ir.IRArray, ir.IRObject, error) {
	var (
		pos ir.IRArray
		kw  ir.IRObject
	)
	switch v := args.(type) {
	case nil:
		return nil, nil, nil
	case Call:
		pos, kw = v.Args, v.Kwargs
	case *Call:
		if v == nil {
			return nil, nil, nil
		}
		pos, kw = v.Args, v.Kwargs
	default:
		val, err := ir.FromGo(args)
		if err != nil {
			return nil, nil, fmt.Errorf("normalize args: %w", err)
		}
		switch v := val.(type) {
		case ir.IRArray:
			pos = v
		case ir.IRObject:
			kw = v
		default:
			pos = ir.IRArray{v}
		}
	}

	if err := ir.RejectNull(pos); err != nil {
		return nil, nil, fmt.Errorf("args%w", err)
	}
	if err := ir.RejectNull(kw); err != nil {
		return nil, nil, fmt.Errorf("kwargs%w", err)
	}
	return pos, kw, nil
}

// Parent returns the live parent, or nil while detached.
func (e *Event) Parent() Parent { return e.parent }

// IsBound reports whether the event can execute without rebinding.
func (e *Event) IsBound() bool {
	return e.Kind == KindMemo || e.fn != nil
}

// Detached reports whether the event only knows its parent by id.
func (e *Event) Detached() bool { return e.parent == nil }

// Execute runs the event. Memos do nothing. A call with a live parent but
// no bound function binds lazily through the parent's dispatch table.
// Errors from the method propagate unchanged.
func (e *Event) Execute(ctx context.Context) error {
	if e.Kind == KindMemo {
		return nil
	}
	if e.fn == nil {
		if err := e.bind(); err != nil {
			return err
		}
	}
	return e.fn(ctx, e.Args, e.Kwargs)
}

// bind looks up the method by name on the live parent.
func (e *Event) bind() error {
	if e.parent == nil {
		return &RebindError{ParentID: e.ParentID, Method: e.Method, Reason: "parent is detached"}
	}
	d, ok := e.parent.(Dispatcher)
	if !ok {
		return &RebindError{ParentID: e.ParentID, Method: e.Method, Reason: "parent has no method table"}
	}
	fn, ok := d.Method(e.Method)
	if !ok {
		return &RebindError{ParentID: e.ParentID, Method: e.Method, Reason: "no such method"}
	}
	e.fn = fn
	return nil
}

// detach drops live references, keeping the symbolic binding.
func (e *Event) detach() {
	if e.parent != nil {
		e.ParentID = e.parent.UID()
	}
	e.parent = nil
	e.fn = nil
}

// String renders the event for logs, e.g. "call u-1.attack" or "memo u-1#contact".
func (e *Event) String() string {
	if e.Kind == KindMemo {
		return fmt.Sprintf("memo %s#%s", e.ParentID, e.Tag)
	}
	return fmt.Sprintf("call %s.%s", e.ParentID, e.Method)
}
