package state

import (
	"sync"

	"dirstat/internal/domain"
)

// TreeSource is the part of a directory tree the selection depends on.
type TreeSource interface {
	Generation() uint64
	View(read func(root *domain.Entry))
}

// Selection tracks the current entry and the selected entries of one tree
// generation. It never owns entries; once the tree's generation moves on, the
// next access clears it.
type Selection struct {
	source TreeSource

	mu         sync.Mutex
	generation uint64
	current    *domain.Entry
	selected   []*domain.Entry
	members    map[*domain.Entry]struct{}

	selectionObservers []func()
	currentObservers   []func(current, previous *domain.Entry)
}

func NewSelection(source TreeSource) *Selection {
	return &Selection{
		source:     source,
		generation: source.Generation(),
		members:    make(map[*domain.Entry]struct{}),
	}
}

// OnSelectionChanged registers an observer called after the selected set
// changed.
func (selection *Selection) OnSelectionChanged(observer func()) {
	selection.mu.Lock()
	defer selection.mu.Unlock()
	selection.selectionObservers = append(selection.selectionObservers, observer)
}

// OnCurrentChanged registers an observer called with the new and the previous
// current entry. previous may belong to a discarded generation and must only
// be compared, not read.
func (selection *Selection) OnCurrentChanged(observer func(current, previous *domain.Entry)) {
	selection.mu.Lock()
	defer selection.mu.Unlock()
	selection.currentObservers = append(selection.currentObservers, observer)
}

type pendingNotification struct {
	selection bool
	current   bool
	newEntry  *domain.Entry
	oldEntry  *domain.Entry
}

// syncLocked drops everything recorded against an older generation.
func (selection *Selection) syncLocked(note *pendingNotification) {
	generation := selection.source.Generation()
	if generation == selection.generation {
		return
	}
	selection.generation = generation
	if len(selection.selected) > 0 {
		selection.selected = nil
		selection.members = make(map[*domain.Entry]struct{})
		note.selection = true
	}
	if selection.current != nil {
		note.current = true
		note.oldEntry = selection.current
		selection.current = nil
	}
}

func (selection *Selection) notify(note pendingNotification) {
	if !note.selection && !note.current {
		return
	}
	selection.mu.Lock()
	selectionObservers := append([]func(){}, selection.selectionObservers...)
	currentObservers := append([]func(current, previous *domain.Entry){}, selection.currentObservers...)
	selection.mu.Unlock()
	if note.selection {
		for _, observer := range selectionObservers {
			observer()
		}
	}
	if note.current {
		for _, observer := range currentObservers {
			observer(note.newEntry, note.oldEntry)
		}
	}
}

func (selection *Selection) update(change func(note *pendingNotification)) {
	var note pendingNotification
	selection.mu.Lock()
	selection.syncLocked(&note)
	if change != nil {
		change(&note)
	}
	selection.mu.Unlock()
	selection.notify(note)
}

// SetCurrent makes entry the current entry; nil clears it.
func (selection *Selection) SetCurrent(entry *domain.Entry) {
	selection.update(func(note *pendingNotification) {
		if entry == selection.current {
			return
		}
		if !note.current {
			note.oldEntry = selection.current
		}
		note.current = true
		note.newEntry = entry
		selection.current = entry
	})
}

// Select adds entries to the selected set.
func (selection *Selection) Select(entries ...*domain.Entry) {
	selection.update(func(note *pendingNotification) {
		for _, entry := range entries {
			if entry == nil {
				continue
			}
			if _, ok := selection.members[entry]; ok {
				continue
			}
			selection.members[entry] = struct{}{}
			selection.selected = append(selection.selected, entry)
			note.selection = true
		}
	})
}

// Toggle flips the membership of entry and reports whether it is selected
// afterwards.
func (selection *Selection) Toggle(entry *domain.Entry) bool {
	selected := false
	selection.update(func(note *pendingNotification) {
		if entry == nil {
			return
		}
		note.selection = true
		if _, ok := selection.members[entry]; !ok {
			selection.members[entry] = struct{}{}
			selection.selected = append(selection.selected, entry)
			selected = true
			return
		}
		delete(selection.members, entry)
		for index, candidate := range selection.selected {
			if candidate == entry {
				selection.selected = append(selection.selected[:index], selection.selected[index+1:]...)
				break
			}
		}
	})
	return selected
}

func (selection *Selection) ClearSelection() {
	selection.update(func(note *pendingNotification) {
		if len(selection.selected) == 0 {
			return
		}
		selection.selected = nil
		selection.members = make(map[*domain.Entry]struct{})
		note.selection = true
	})
}

func (selection *Selection) Current() *domain.Entry {
	var current *domain.Entry
	selection.update(func(*pendingNotification) { current = selection.current })
	return current
}

// Selected returns the selected entries in selection order.
func (selection *Selection) Selected() []*domain.Entry {
	var selected []*domain.Entry
	selection.update(func(*pendingNotification) {
		selected = append(selected, selection.selected...)
	})
	return selected
}

func (selection *Selection) IsSelected(entry *domain.Entry) bool {
	found := false
	selection.update(func(*pendingNotification) {
		_, found = selection.members[entry]
	})
	return found
}

func (selection *Selection) Count() int {
	count := 0
	selection.update(func(*pendingNotification) { count = len(selection.selected) })
	return count
}

// SelectedTotal sums size and item count over the selected entries. Entries
// with a selected ancestor are already included in that ancestor and are
// skipped.
func (selection *Selection) SelectedTotal() (int64, int64) {
	var size, items int64
	// Read metrics under the tree lock so a running scan cannot change them
	// halfway, and only if the selection still belongs to the visible tree.
	selection.source.View(func(*domain.Entry) {
		selection.mu.Lock()
		defer selection.mu.Unlock()
		if selection.source.Generation() != selection.generation {
			return
		}
		for _, entry := range selection.selected {
			if selection.hasSelectedAncestorLocked(entry) {
				continue
			}
			contribution := domain.Contribution(entry)
			size += contribution.Size
			items += contribution.Items
		}
	})
	selection.update(nil)
	return size, items
}

func (selection *Selection) hasSelectedAncestorLocked(entry *domain.Entry) bool {
	for ancestor := entry.Parent(); ancestor != nil; ancestor = ancestor.Parent() {
		if _, ok := selection.members[ancestor]; ok {
			return true
		}
	}
	return false
}
