package state

import (
	"path/filepath"
	"sort"
	"strings"

	"dirstat/internal/config"
	"dirstat/internal/domain"
)

type Preferences struct {
	ShowHidden bool
	SortMode   domain.SortMode
	Theme      string
}

// State is the browsing state of the terminal front end. It refers to tree
// entries by path only, so it survives tree replacement; entries are passed
// in from inside DirectoryTree.View.
type State struct {
	Path         string
	Current      string
	Cursor       int
	Expanded     map[string]bool
	Prefs        Preferences
	Selection    *Selection
	SearchQuery  string
	FilterExt    string
	MinSizeBytes int64
}

func NewState(cfg config.Config, source TreeSource) *State {
	return &State{
		Path:     cfg.Path,
		Current:  "",
		Cursor:   0,
		Expanded: make(map[string]bool),
		Prefs: Preferences{
			ShowHidden: cfg.ShowHidden,
			SortMode:   cfg.SortMode,
			Theme:      cfg.Theme,
		},
		Selection: NewSelection(source),
	}
}

// SetRoot is called when a new tree was loaded. The view moves to the new
// root unless the current directory lies inside it.
func (appState *State) SetRoot(root *domain.Entry) {
	if root == nil {
		return
	}
	rootPath := root.Path()
	if appState.Path != rootPath || domain.Locate(root, appState.Current) == nil {
		appState.Current = rootPath
		appState.Cursor = 0
	}
	appState.Path = rootPath
	appState.Expanded[appState.Current] = true
}

func (appState *State) viewRoot(root *domain.Entry) *domain.Entry {
	if root == nil {
		return nil
	}
	if current := domain.Locate(root, appState.Current); current != nil && current.IsDirLike() {
		return current
	}
	return root
}

type VisibleNode struct {
	Entry *domain.Entry
	Depth int
}

func (appState *State) VisibleNodes(root *domain.Entry) []VisibleNode {
	base := appState.viewRoot(root)
	if base == nil {
		return nil
	}
	visible := make([]VisibleNode, 0, base.ChildCount()+1)
	appState.appendNode(&visible, base, base, 0)
	return visible
}

// CurrentNode is the entry under the cursor.
func (appState *State) CurrentNode(root *domain.Entry) *domain.Entry {
	visible := appState.VisibleNodes(root)
	if len(visible) == 0 || appState.Cursor < 0 || appState.Cursor >= len(visible) {
		return nil
	}
	return visible[appState.Cursor].Entry
}

func (appState *State) CurrentPath() string {
	if appState.Current != "" {
		return appState.Current
	}
	return appState.Path
}

func (appState *State) ClampCursor(count int) {
	if appState.Cursor >= count {
		appState.Cursor = count - 1
	}
	if appState.Cursor < 0 {
		appState.Cursor = 0
	}
}

func (appState *State) EnterDir(entry *domain.Entry) bool {
	if entry == nil || !entry.IsDirLike() {
		return false
	}
	appState.Current = entry.Path()
	appState.Cursor = 0
	appState.Expanded[appState.Current] = true
	return true
}

func (appState *State) LeaveDir(root *domain.Entry) bool {
	current := domain.Locate(root, appState.Current)
	if current == nil || current.Parent() == nil {
		return false
	}
	appState.Current = current.Parent().Path()
	appState.Cursor = 0
	return true
}

func (appState *State) ToggleExpanded(path string) bool {
	if path == "" {
		return false
	}
	appState.Expanded[path] = !appState.Expanded[path]
	return appState.Expanded[path]
}

func (appState *State) IsExpanded(path string) bool {
	return appState.Expanded[path]
}

func (appState *State) ToggleSortMode() domain.SortMode {
	switch appState.Prefs.SortMode {
	case domain.SortBySize:
		appState.Prefs.SortMode = domain.SortByName
	case domain.SortByName:
		appState.Prefs.SortMode = domain.SortByMod
	default:
		appState.Prefs.SortMode = domain.SortBySize
	}
	return appState.Prefs.SortMode
}

func (appState *State) ToggleShowHidden() bool {
	appState.Prefs.ShowHidden = !appState.Prefs.ShowHidden
	return appState.Prefs.ShowHidden
}

func (appState *State) appendNode(visible *[]VisibleNode, base, node *domain.Entry, depth int) {
	if node == nil {
		return
	}
	if !appState.Prefs.ShowHidden && isHiddenName(node.Name()) && node != base {
		return
	}
	filtering := appState.SearchQuery != "" || appState.FilterExt != "" || appState.MinSizeBytes > 0
	if !filtering {
		*visible = append(*visible, VisibleNode{Entry: node, Depth: depth})
		if !node.IsDirLike() || !appState.IsExpanded(node.Path()) {
			return
		}
		for _, child := range appState.sortedChildren(node) {
			appState.appendNode(visible, base, child, depth+1)
		}
		return
	}
	if !node.IsDirLike() {
		if appState.nodeMatches(node) {
			*visible = append(*visible, VisibleNode{Entry: node, Depth: depth})
		}
		return
	}
	children := appState.sortedChildren(node)
	filteredChildren := make([]*domain.Entry, 0, len(children))
	for _, child := range children {
		if appState.nodeMatches(child) {
			filteredChildren = append(filteredChildren, child)
			continue
		}
		if child.IsDirLike() && appState.dirHasMatch(child) {
			filteredChildren = append(filteredChildren, child)
		}
	}
	if node == base || appState.nodeMatches(node) || len(filteredChildren) > 0 {
		*visible = append(*visible, VisibleNode{Entry: node, Depth: depth})
		if !appState.IsExpanded(node.Path()) {
			return
		}
		for _, child := range filteredChildren {
			appState.appendNode(visible, base, child, depth+1)
		}
	}
}

func (appState *State) sortedChildren(node *domain.Entry) []*domain.Entry {
	children := append([]*domain.Entry(nil), node.Children()...)
	if len(children) < 2 {
		return children
	}
	less := func(i, j int) bool {
		if children[i].IsDirLike() != children[j].IsDirLike() {
			return children[i].IsDirLike()
		}
		switch appState.Prefs.SortMode {
		case domain.SortByName:
			return children[i].Name() < children[j].Name()
		case domain.SortByMod:
			return children[i].LatestModTimeUnix() > children[j].LatestModTimeUnix()
		default:
			return SizeFor(children[i]) > SizeFor(children[j])
		}
	}
	sort.SliceStable(children, less)
	return children
}

// SizeFor is the cumulative size shown for an entry.
func SizeFor(entry *domain.Entry) int64 {
	return entry.Totals().Size
}

func isHiddenName(name string) bool {
	return strings.HasPrefix(name, ".")
}

func (appState *State) nodeMatches(node *domain.Entry) bool {
	if node == nil {
		return false
	}
	if appState.SearchQuery != "" {
		query := strings.ToLower(appState.SearchQuery)
		if !strings.Contains(strings.ToLower(node.Name()), query) {
			return false
		}
	}
	if appState.FilterExt != "" {
		filter := strings.ToLower(strings.TrimPrefix(appState.FilterExt, "."))
		ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(node.Name()), "."))
		if ext != filter {
			return false
		}
	}
	if appState.MinSizeBytes > 0 {
		if SizeFor(node) < appState.MinSizeBytes {
			return false
		}
	}
	return true
}

func (appState *State) dirHasMatch(node *domain.Entry) bool {
	if node == nil || !node.IsDirLike() {
		return false
	}
	for _, child := range node.Children() {
		if appState.nodeMatches(child) {
			return true
		}
		if child.IsDirLike() && appState.dirHasMatch(child) {
			return true
		}
	}
	return false
}

func (appState *State) ClearFilters() {
	appState.SearchQuery = ""
	appState.FilterExt = ""
	appState.MinSizeBytes = 0
}
