package toem

// Blame returns the items held responsible for a failure.
//
// Failed pros come first, then cons, each in the order shuffled at
// resolution, until |increment| items are taken or both lists run out.
// Unresolved and successful arguments have no blame. The result is
// computed once and memoised.
func (a *Argument) Blame() []Item {
	if !a.resolved || a.increment >= 0 {
		return nil
	}
	if a.blamed {
		return a.blame
	}

	n := -a.increment
	blame := make([]Item, 0, n)
	for _, list := range [][]Item{a.failedPros, a.blameCons} {
		for _, it := range list {
			if n == 0 {
				break
			}
			blame = append(blame, it)
			n--
		}
	}

	a.blame = blame
	a.blamed = true
	return a.blame
}

// BlameLabels renders Blame as strings.
func (a *Argument) BlameLabels() []string {
	items := a.Blame()
	if len(items) == 0 {
		return nil
	}
	labels := make([]string, len(items))
	for i, it := range items {
		labels[i] = it.String()
	}
	return labels
}
