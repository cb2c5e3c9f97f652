package domain

import (
	"path/filepath"
	"strings"
	"time"
)

// Metrics are the facts read for a single filesystem object.
type Metrics struct {
	Size    int64
	Blocks  int64
	ModTime int64
	Links   uint64
}

// Totals are the cumulative metrics of an entry's subtree, the entry itself
// included.
type Totals struct {
	Size     int64
	Blocks   int64
	Items    int64
	SubDirs  int64
	Errors   int64
	Excluded int64
}

func (totals Totals) Add(other Totals) Totals {
	return Totals{
		Size:     totals.Size + other.Size,
		Blocks:   totals.Blocks + other.Blocks,
		Items:    totals.Items + other.Items,
		SubDirs:  totals.SubDirs + other.SubDirs,
		Errors:   totals.Errors + other.Errors,
		Excluded: totals.Excluded + other.Excluded,
	}
}

func (totals Totals) Sub(other Totals) Totals {
	return Totals{
		Size:     totals.Size - other.Size,
		Blocks:   totals.Blocks - other.Blocks,
		Items:    totals.Items - other.Items,
		SubDirs:  totals.SubDirs - other.SubDirs,
		Errors:   totals.Errors - other.Errors,
		Excluded: totals.Excluded - other.Excluded,
	}
}

func (totals Totals) IsZero() bool {
	return totals == Totals{}
}

// Entry is one node of a directory tree. Children are owned by their parent;
// the parent pointer is only used to walk upwards and is cleared on detach.
type Entry struct {
	name       string
	kind       Kind
	parent     *Entry
	children   []*Entry
	size       int64
	blocks     int64
	modTime    int64
	links      uint64
	incomplete bool

	totals Totals
	latest int64
}

// NewEntry creates a detached entry with fully known own metrics. The root
// of a tree is named with its absolute path.
func NewEntry(name string, kind Kind, metrics Metrics) *Entry {
	entry := &Entry{
		name:    name,
		kind:    kind,
		size:    metrics.Size,
		blocks:  metrics.Blocks,
		modTime: metrics.ModTime,
		links:   metrics.Links,
	}
	entry.totals = entry.self()
	entry.latest = entry.selfLatest()
	return entry
}

// NewPlaceholder creates a zero-contribution entry for an excluded or
// unreadable path.
func NewPlaceholder(name string, kind Kind) *Entry {
	return NewEntry(name, kind, Metrics{})
}

func (entry *Entry) Name() string { return entry.name }
func (entry *Entry) Kind() Kind { return entry.kind }
func (entry *Entry) Parent() *Entry { return entry.parent }
func (entry *Entry) Size() int64 { return entry.size }
func (entry *Entry) Blocks() int64 { return entry.blocks }
func (entry *Entry) Links() uint64 { return entry.links }
func (entry *Entry) Totals() Totals { return entry.totals }
func (entry *Entry) ModTimeUnix() int64 { return entry.modTime }
func (entry *Entry) ChildCount() int { return len(entry.children) }
func (entry *Entry) IsDirLike() bool { return entry.kind.IsDirLike() }
func (entry *Entry) IsPlaceholder() bool {
	return entry.kind.IsPlaceholder()
}

// Incomplete reports whether reading this directory was cut short.
func (entry *Entry) Incomplete() bool { return entry.incomplete }

// Children returns the children in discovery order. The slice must not be
// modified.
func (entry *Entry) Children() []*Entry { return entry.children }

func (entry *Entry) Metrics() Metrics {
	return Metrics{Size: entry.size, Blocks: entry.blocks, ModTime: entry.modTime, Links: entry.links}
}

func (entry *Entry) ModTime() time.Time {
	return unixTime(entry.modTime)
}

// LatestModTime is the newest modification time in the subtree.
func (entry *Entry) LatestModTime() time.Time {
	return unixTime(entry.latest)
}

func (entry *Entry) LatestModTimeUnix() int64 { return entry.latest }

// Root returns the topmost ancestor.
func (entry *Entry) Root() *Entry {
	current := entry
	for current.parent != nil {
		current = current.parent
	}
	return current
}

func (entry *Entry) Depth() int {
	depth := 0
	for current := entry.parent; current != nil; current = current.parent {
		depth++
	}
	return depth
}

// Path reconstructs the absolute path from the parent chain.
func (entry *Entry) Path() string {
	if entry.parent == nil {
		return entry.name
	}
	names := entry.names()
	return filepath.Join(names...)
}

// RelativePath is the slash separated path below the root, empty for the root.
func (entry *Entry) RelativePath() string {
	names := entry.names()
	if len(names) <= 1 {
		return ""
	}
	return strings.Join(names[1:], "/")
}

func (entry *Entry) names() []string {
	names := make([]string, entry.Depth()+1)
	index := len(names) - 1
	for current := entry; current != nil; current = current.parent {
		names[index] = current.name
		index--
	}
	return names
}

// Find returns the direct child with the given name.
func (entry *Entry) Find(name string) *Entry {
	for _, child := range entry.children {
		if child.name == name {
			return child
		}
	}
	return nil
}

// IsAncestorOf reports whether other lies strictly below entry.
func (entry *Entry) IsAncestorOf(other *Entry) bool {
	if other == nil {
		return false
	}
	for current := other.parent; current != nil; current = current.parent {
		if current == entry {
			return true
		}
	}
	return false
}

// Walk visits the subtree in pre-order, children in discovery order. Returning
// false from visit skips the children of that entry.
func (entry *Entry) Walk(visit func(node *Entry, depth int) bool) {
	entry.walk(visit, 0)
}

func (entry *Entry) walk(visit func(node *Entry, depth int) bool, depth int) {
	if !visit(entry, depth) {
		return
	}
	for _, child := range entry.children {
		child.walk(visit, depth+1)
	}
}

// Locate finds the entry for an absolute path below (or equal to) root.
func Locate(root *Entry, path string) *Entry {
	if root == nil {
		return nil
	}
	rel, err := filepath.Rel(root.Path(), filepath.Clean(path))
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return nil
	}
	if rel == "." {
		return root
	}
	current := root
	for _, name := range strings.Split(rel, string(filepath.Separator)) {
		current = current.Find(name)
		if current == nil {
			return nil
		}
	}
	return current
}

func unixTime(value int64) time.Time {
	if value == 0 {
		return time.Time{}
	}
	return time.Unix(value, 0)
}
