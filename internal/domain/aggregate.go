package domain

import "errors"

var (
	ErrNotDirectory = errors.New("entry cannot hold children")
	ErrAttached     = errors.New("entry already has a parent")
	ErrNotChild     = errors.New("entry is not a child of parent")
	ErrHasChildren  = errors.New("entry still has children")
)

// self is what an entry adds to its own totals, before any children.
// Hard-linked files contribute an equal share per link.
func (entry *Entry) self() Totals {
	if entry.kind.IsPlaceholder() {
		return Totals{}
	}
	size, blocks := entry.size, entry.blocks
	if !entry.kind.IsDirLike() && entry.links > 1 {
		links := int64(entry.links)
		size /= links
		blocks /= links
	}
	return Totals{Size: size, Blocks: blocks}
}

func (entry *Entry) selfLatest() int64 {
	if entry.kind.IsPlaceholder() {
		return 0
	}
	return entry.modTime
}

func (entry *Entry) marker() Totals {
	var marker Totals
	switch {
	case entry.kind == KindError:
		marker.Errors = 1
	case entry.kind == KindExcluded:
		marker.Excluded = 1
	default:
		marker.Items = 1
		if entry.kind.IsDirLike() {
			marker.SubDirs = 1
		}
	}
	return marker
}

// Contribution is what an entry adds to each of its ancestors.
func Contribution(entry *Entry) Totals {
	return entry.totals.Add(entry.marker())
}

// AttachChild appends child to parent and adds its contribution to every
// ancestor.
func AttachChild(parent, child *Entry) error {
	if !parent.kind.IsDirLike() {
		return ErrNotDirectory
	}
	if child.parent != nil {
		return ErrAttached
	}
	child.parent = parent
	parent.children = append(parent.children, child)
	applyDelta(parent, Contribution(child))
	raiseLatest(parent, child.latest)
	return nil
}

// DetachChild removes child from parent, subtracting its contribution and
// recomputing the latest modification time of the affected ancestors.
func DetachChild(parent, child *Entry) error {
	if child.parent != parent {
		return ErrNotChild
	}
	index := -1
	for i, candidate := range parent.children {
		if candidate == child {
			index = i
			break
		}
	}
	if index < 0 {
		return ErrNotChild
	}
	copy(parent.children[index:], parent.children[index+1:])
	parent.children[len(parent.children)-1] = nil
	parent.children = parent.children[:len(parent.children)-1]
	child.parent = nil

	applyDelta(parent, Contribution(child).negate())
	if child.latest >= parent.latest {
		recomputeLatest(parent)
	}
	return nil
}

// UpdateOwnMetrics replaces the entry's own facts and propagates the change.
func UpdateOwnMetrics(entry *Entry, metrics Metrics) {
	entry.mutate(func() {
		entry.size = metrics.Size
		entry.blocks = metrics.Blocks
		entry.modTime = metrics.ModTime
		entry.links = metrics.Links
	})
}

// SetKind changes the entry's kind, e.g. a busy directory that finished
// reading or one that turned out to be unreadable. Placeholders carry no own
// metrics, so converting to one clears them.
func SetKind(entry *Entry, kind Kind) error {
	if !kind.IsDirLike() && len(entry.children) > 0 {
		return ErrHasChildren
	}
	entry.mutate(func() {
		entry.kind = kind
		if kind.IsPlaceholder() {
			entry.size, entry.blocks, entry.modTime, entry.links = 0, 0, 0, 0
		}
	})
	return nil
}

// MarkIncomplete flags a directory whose read was cut short.
func MarkIncomplete(entry *Entry, incomplete bool) {
	entry.incomplete = incomplete
}

func (entry *Entry) mutate(change func()) {
	before := Contribution(entry)
	oldSelf := entry.self()
	oldSelfLatest := entry.selfLatest()
	oldLatest := entry.latest

	change()

	entry.totals = entry.totals.Sub(oldSelf).Add(entry.self())
	if entry.parent != nil {
		applyDelta(entry.parent, Contribution(entry).Sub(before))
	}

	newSelfLatest := entry.selfLatest()
	switch {
	case newSelfLatest >= oldLatest:
		entry.latest = newSelfLatest
	case oldSelfLatest == oldLatest:
		entry.latest = entry.computeLatest()
	}
	if entry.parent == nil || entry.latest == oldLatest {
		return
	}
	if entry.latest > oldLatest {
		raiseLatest(entry.parent, entry.latest)
	} else {
		recomputeLatest(entry.parent)
	}
}

func (entry *Entry) computeLatest() int64 {
	latest := entry.selfLatest()
	for _, child := range entry.children {
		if child.latest > latest {
			latest = child.latest
		}
	}
	return latest
}

func (totals Totals) negate() Totals {
	return Totals{}.Sub(totals)
}

func applyDelta(start *Entry, delta Totals) {
	if delta.IsZero() {
		return
	}
	for ancestor := start; ancestor != nil; ancestor = ancestor.parent {
		ancestor.totals = ancestor.totals.Add(delta)
	}
}

func raiseLatest(start *Entry, value int64) {
	for ancestor := start; ancestor != nil && value > ancestor.latest; ancestor = ancestor.parent {
		ancestor.latest = value
	}
}

func recomputeLatest(start *Entry) {
	for ancestor := start; ancestor != nil; ancestor = ancestor.parent {
		latest := ancestor.computeLatest()
		if latest == ancestor.latest {
			return
		}
		ancestor.latest = latest
	}
}
