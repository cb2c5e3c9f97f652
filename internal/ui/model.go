package ui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"

	"dirstat/internal/config"
	"dirstat/internal/domain"
	"dirstat/internal/services"
	"dirstat/internal/state"
)

const (
	promptOpen       = "open"
	promptReadCache  = "read-cache"
	promptWriteCache = "write-cache"
	promptSearch     = "search"
	promptExt        = "ext"
	promptSize       = "size"
)

type Model struct {
	state       *state.State
	tree        services.Tree
	bridge      *eventBridge
	cfg         config.Config
	keys        KeyMap
	showHelp    bool
	status      string
	busy        bool
	width       int
	height      int
	viewTop     int
	generation  uint64
	progress    int64
	spinner     spinner.Model
	prompt      textinput.Model
	promptMode  string
	suggestions []string
	startPath   string
	startCache  string
}

type ConfigProvider interface {
	ConfigSnapshot() config.Config
}

func NewModel(appState *state.State, tree services.Tree, cfg config.Config) Model {
	busySpinner := spinner.New()
	busySpinner.Spinner = spinner.Dot
	return Model{
		state:   appState,
		tree:    tree,
		bridge:  newEventBridge(tree),
		cfg:     cfg,
		keys:    DefaultKeyMap(),
		status:  "Ready - press g to open a directory",
		width:   100,
		height:  30,
		spinner: busySpinner,
	}
}

func (model Model) WithStatus(message string) Model {
	if message != "" {
		model.status = message
	}
	return model
}

// WithOpenPath starts reading path as soon as the program runs.
func (model Model) WithOpenPath(path string) Model {
	model.startPath = path
	return model
}

// WithReadCache loads file as soon as the program runs.
func (model Model) WithReadCache(file string) Model {
	model.startCache = file
	return model
}

// Close detaches the model from the tree. Call it after the program exited.
func (model Model) Close() {
	model.bridge.Close()
}

func (model Model) ConfigSnapshot() config.Config {
	snapshot := model.cfg
	snapshot.Path = model.state.Path
	snapshot.ShowHidden = model.state.Prefs.ShowHidden
	snapshot.SortMode = model.state.Prefs.SortMode
	snapshot.Theme = model.state.Prefs.Theme
	return snapshot
}

func (model Model) Init() tea.Cmd {
	cmds := []tea.Cmd{model.bridge.wait()}
	switch {
	case model.startCache != "":
		cmds = append(cmds, model.readCacheCmd(model.startCache))
	case model.startPath != "":
		cmds = append(cmds, model.openCmd(model.startPath))
	}
	return tea.Batch(cmds...)
}

func (model Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch typed := msg.(type) {
	case tea.KeyMsg:
		if model.promptMode != "" {
			return model.handlePromptKey(typed)
		}
		return model.handleKey(typed)
	case tea.WindowSizeMsg:
		model.width = typed.Width
		model.height = typed.Height
		model.ensureCursorVisible()
		return model, nil
	case treeEventMsg:
		return model.handleTreeEvent(typed.event)
	case commandResultMsg:
		return model.handleCommandResult(typed)
	case spinner.TickMsg:
		if !model.busy {
			return model, nil
		}
		var cmd tea.Cmd
		model.spinner, cmd = model.spinner.Update(typed)
		return model, cmd
	default:
		if model.promptMode != "" {
			var cmd tea.Cmd
			model.prompt, cmd = model.prompt.Update(msg)
			return model, cmd
		}
		return model, nil
	}
}

func (model Model) handleTreeEvent(event services.Event) (tea.Model, tea.Cmd) {
	cmds := []tea.Cmd{model.bridge.wait()}
	if event.Generation != model.generation {
		model.syncRoot(event.Generation)
	}
	switch event.Type {
	case services.EventScanStarted:
		model.progress = 0
		if !model.busy {
			cmds = append(cmds, model.spinner.Tick)
		}
		model.busy = true
		model.status = event.Text
	case services.EventProgress:
		model.progress = event.Stats.Items
		model.status = event.Text
	case services.EventFinished:
		model.busy = false
		model.status = event.Text
		if event.Stats.Errors > 0 {
			model.status = fmt.Sprintf("%s (%s read errors)", event.Text, humanize.Comma(event.Stats.Errors))
		}
	case services.EventAborted, services.EventFailed, services.EventTreeReplaced:
		model.busy = false
		model.status = event.Text
	}
	model.ensureCursorVisible()
	return model, tea.Batch(cmds...)
}

func (model *Model) syncRoot(generation uint64) {
	model.generation = generation
	model.tree.View(func(root *domain.Entry) {
		model.state.SetRoot(root)
	})
}

func (model Model) handleCommandResult(result commandResultMsg) (tea.Model, tea.Cmd) {
	if result.err == nil {
		if result.command == promptWriteCache {
			model.status = fmt.Sprintf("Wrote cache file %s", result.target)
		}
		return model, nil
	}
	var formatError *services.CacheFormatError
	switch {
	case errors.Is(result.err, services.ErrBusy):
		model.status = "Busy reading - press a to abort first"
	case errors.Is(result.err, services.ErrNoTree):
		model.status = "Nothing loaded - press g to open a directory"
	case errors.Is(result.err, services.ErrInvalidPath):
		model.status = fmt.Sprintf("Cannot open %s: %v", result.target, result.err)
	case errors.As(result.err, &formatError):
		model.status = fmt.Sprintf("Cache error: %v", formatError)
	default:
		model.status = fmt.Sprintf("%s error: %v", strings.ToUpper(result.command[:1])+result.command[1:], result.err)
	}
	return model, nil
}

func (model Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, model.keys.Quit):
		model.tree.AbortReading()
		return model, tea.Quit
	case key.Matches(msg, model.keys.Help):
		model.showHelp = !model.showHelp
		return model, nil
	case key.Matches(msg, model.keys.Up):
		if model.state.Cursor > 0 {
			model.state.Cursor--
			model.ensureCursorVisible()
			model.syncCurrent()
		}
		return model, nil
	case key.Matches(msg, model.keys.Down):
		if model.state.Cursor < model.visibleCount()-1 {
			model.state.Cursor++
			model.ensureCursorVisible()
			model.syncCurrent()
		}
		return model, nil
	case key.Matches(msg, model.keys.Select):
		model.withCurrent(func(entry *domain.Entry) {
			model.state.Selection.Toggle(entry)
		})
		return model, nil
	case key.Matches(msg, model.keys.ClearSelection):
		model.state.Selection.ClearSelection()
		model.status = "Selection cleared"
		return model, nil
	case key.Matches(msg, model.keys.Enter):
		model.withCurrent(func(entry *domain.Entry) {
			if entry.IsDirLike() {
				model.state.ToggleExpanded(entry.Path())
			}
		})
		model.ensureCursorVisible()
		return model, nil
	case key.Matches(msg, model.keys.Right):
		model.withCurrent(func(entry *domain.Entry) {
			model.state.EnterDir(entry)
		})
		model.ensureCursorVisible()
		model.syncCurrent()
		return model, nil
	case key.Matches(msg, model.keys.Back), key.Matches(msg, model.keys.Left):
		left := false
		model.tree.View(func(root *domain.Entry) {
			left = model.state.LeaveDir(root)
		})
		if !left {
			model.status = "Already at the top"
		}
		model.ensureCursorVisible()
		model.syncCurrent()
		return model, nil
	case key.Matches(msg, model.keys.Open):
		return model.startPrompt(promptOpen, model.state.CurrentPath())
	case key.Matches(msg, model.keys.Rescan):
		if model.tree.IsBusy() {
			model.status = "Busy reading - press a to abort first"
			return model, nil
		}
		return model, model.treeCmd("refresh", model.tree.URL(), model.tree.Refresh)
	case key.Matches(msg, model.keys.Refresh):
		if model.tree.IsBusy() {
			model.status = "Busy reading - press a to abort first"
			return model, nil
		}
		target := ""
		model.withCurrent(func(entry *domain.Entry) {
			if entry.Kind() == domain.KindDir {
				target = entry.Path()
			}
		})
		if target == "" {
			model.status = "Select a directory to refresh"
			return model, nil
		}
		return model, model.treeCmd("refresh", target, func() error {
			return model.tree.RefreshSubtree(target)
		})
	case key.Matches(msg, model.keys.Abort):
		if !model.tree.IsBusy() {
			return model, nil
		}
		model.tree.AbortReading()
		model.status = "Aborting..."
		return model, nil
	case key.Matches(msg, model.keys.ReadCache):
		if model.tree.IsBusy() {
			model.status = "Busy reading - press a to abort first"
			return model, nil
		}
		return model.startPrompt(promptReadCache, model.defaultCacheFile())
	case key.Matches(msg, model.keys.WriteCache):
		if model.tree.IsBusy() {
			model.status = "Busy reading - press a to abort first"
			return model, nil
		}
		if model.tree.URL() == "" {
			model.status = "Nothing loaded - press g to open a directory"
			return model, nil
		}
		return model.startPrompt(promptWriteCache, model.defaultCacheFile())
	case key.Matches(msg, model.keys.Sort):
		model.state.ToggleSortMode()
		model.ensureCursorVisible()
		return model, nil
	case key.Matches(msg, model.keys.Hidden):
		model.state.ToggleShowHidden()
		model.ensureCursorVisible()
		return model, nil
	case key.Matches(msg, model.keys.Search):
		return model.startPrompt(promptSearch, model.state.SearchQuery)
	case key.Matches(msg, model.keys.ExtFilter):
		return model.startPrompt(promptExt, model.state.FilterExt)
	case key.Matches(msg, model.keys.SizeFilter):
		return model.startPrompt(promptSize, formatSizeLabel(model.state.MinSizeBytes))
	case key.Matches(msg, model.keys.ClearFilter):
		model.state.ClearFilters()
		model.status = "Filters cleared"
		model.ensureCursorVisible()
		return model, nil
	default:
		return model, nil
	}
}

func (model Model) defaultCacheFile() string {
	if origin := model.tree.CacheOrigin(); origin != "" {
		return origin
	}
	name := model.cfg.CacheFile
	if name == "" {
		name = services.DefaultCacheName
	}
	if filepath.IsAbs(name) {
		return name
	}
	base := model.tree.URL()
	if base == "" {
		base = model.state.CurrentPath()
	}
	return filepath.Join(base, name)
}

func (model Model) startPrompt(mode, value string) (tea.Model, tea.Cmd) {
	input := textinput.New()
	input.Prompt = promptLabel(mode) + ": "
	input.SetValue(value)
	input.CursorEnd()
	input.Focus()
	model.prompt = input
	model.promptMode = mode
	model.suggestions = nil
	model.status = promptHint(mode)
	return model, textinput.Blink
}

func (model Model) handlePromptKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		model.status = fmt.Sprintf("%s cancelled", promptLabel(model.promptMode))
		model.promptMode = ""
		model.suggestions = nil
		return model, nil
	case tea.KeyEnter:
		mode := model.promptMode
		value := strings.TrimSpace(model.prompt.Value())
		model.promptMode = ""
		model.suggestions = nil
		return model.submitPrompt(mode, value)
	}
	if key.Matches(msg, model.keys.Complete) && isPathPrompt(model.promptMode) {
		completed, suggestions := completePath(model.prompt.Value())
		model.prompt.SetValue(completed)
		model.prompt.CursorEnd()
		model.suggestions = suggestions
		return model, nil
	}
	var cmd tea.Cmd
	model.prompt, cmd = model.prompt.Update(msg)
	return model, cmd
}

func (model Model) submitPrompt(mode, value string) (tea.Model, tea.Cmd) {
	switch mode {
	case promptOpen:
		if value == "" {
			model.status = "No path given"
			return model, nil
		}
		return model, model.openCmd(expandHome(value))
	case promptReadCache:
		return model, model.readCacheCmd(expandHome(value))
	case promptWriteCache:
		file := expandHome(value)
		return model, model.treeCmd(promptWriteCache, file, func() error {
			return model.tree.WriteCache(context.Background(), file)
		})
	case promptSearch:
		model.state.SearchQuery = value
	case promptExt:
		model.state.FilterExt = value
	case promptSize:
		size, err := parseSizeInput(value)
		if err != nil {
			model.status = fmt.Sprintf("Invalid size %q", value)
			return model, nil
		}
		model.state.MinSizeBytes = size
	}
	model.state.Cursor = 0
	model.ensureCursorVisible()
	model.status = "Filter applied"
	return model, nil
}

func (model Model) treeCmd(command, target string, run func() error) tea.Cmd {
	return func() tea.Msg {
		return commandResultMsg{command: command, target: target, err: run()}
	}
}

func (model Model) openCmd(path string) tea.Cmd {
	return model.treeCmd(promptOpen, path, func() error {
		return model.tree.OpenPath(path)
	})
}

func (model Model) readCacheCmd(file string) tea.Cmd {
	return model.treeCmd(promptReadCache, file, func() error {
		return model.tree.ReadCache(context.Background(), file)
	})
}

// withCurrent runs fn with the entry under the cursor while the tree is
// locked for reading.
func (model *Model) withCurrent(fn func(entry *domain.Entry)) {
	model.tree.View(func(root *domain.Entry) {
		if entry := model.state.CurrentNode(root); entry != nil {
			fn(entry)
		}
	})
}

func (model *Model) syncCurrent() {
	var current *domain.Entry
	model.withCurrent(func(entry *domain.Entry) { current = entry })
	model.state.Selection.SetCurrent(current)
}

func (model *Model) visibleCount() int {
	count := 0
	model.tree.View(func(root *domain.Entry) {
		count = len(model.state.VisibleNodes(root))
	})
	return count
}

func (model *Model) ensureCursorVisible() {
	count := model.visibleCount()
	if count == 0 {
		model.state.Cursor = 0
		model.viewTop = 0
		return
	}
	model.state.ClampCursor(count)
	listHeight := model.listHeight()
	if listHeight <= 0 {
		return
	}
	if model.state.Cursor < model.viewTop {
		model.viewTop = model.state.Cursor
	}
	if model.state.Cursor >= model.viewTop+listHeight {
		model.viewTop = model.state.Cursor - listHeight + 1
	}
	maxTop := count - listHeight
	if maxTop < 0 {
		maxTop = 0
	}
	if model.viewTop > maxTop {
		model.viewTop = maxTop
	}
}

func (model *Model) listHeight() int {
	return model.height - 6
}

func promptLabel(mode string) string {
	switch mode {
	case promptOpen:
		return "Open"
	case promptReadCache:
		return "Read cache"
	case promptWriteCache:
		return "Write cache"
	case promptSearch:
		return "Search"
	case promptExt:
		return "Extension"
	case promptSize:
		return "Min size"
	default:
		return "Filter"
	}
}

func promptHint(mode string) string {
	if isPathPrompt(mode) {
		return "enter confirm  tab complete  esc cancel"
	}
	return "enter apply  esc cancel"
}

func isPathPrompt(mode string) bool {
	return mode == promptOpen || mode == promptReadCache || mode == promptWriteCache
}

func parseSizeInput(input string) (int64, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return 0, nil
	}
	size, err := humanize.ParseBytes(trimmed)
	if err != nil {
		return 0, err
	}
	return int64(size), nil
}

func formatSizeLabel(size int64) string {
	if size <= 0 {
		return ""
	}
	return formatSize(size)
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~"+string(filepath.Separator)) {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

func completePath(input string) (string, []string) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return trimmed, nil
	}
	dir := filepath.Dir(trimmed)
	base := filepath.Base(trimmed)
	if strings.HasSuffix(trimmed, string(filepath.Separator)) {
		dir = trimmed
		base = ""
	}
	if dir == "." {
		dir = ""
	}
	readDir := dir
	if readDir == "" {
		readDir = "."
	}
	entries, err := os.ReadDir(readDir)
	if err != nil {
		return input, nil
	}
	matches := []string{}
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, base) {
			matches = append(matches, name)
		}
	}
	if len(matches) == 0 {
		return input, nil
	}
	completed := commonPrefix(matches)
	if dir != "" {
		completed = filepath.Join(dir, completed)
	}
	if len(matches) == 1 && entriesHasDir(entries, matches[0]) {
		completed += string(filepath.Separator)
	}
	paths := make([]string, 0, len(matches))
	for _, match := range matches {
		if dir != "" {
			paths = append(paths, filepath.Join(dir, match))
		} else {
			paths = append(paths, match)
		}
	}
	return completed, paths
}

func commonPrefix(values []string) string {
	if len(values) == 0 {
		return ""
	}
	prefix := values[0]
	for _, value := range values[1:] {
		for !strings.HasPrefix(value, prefix) && prefix != "" {
			prefix = prefix[:len(prefix)-1]
		}
		if prefix == "" {
			return ""
		}
	}
	return prefix
}

func entriesHasDir(entries []os.DirEntry, name string) bool {
	for _, entry := range entries {
		if entry.Name() == name {
			return entry.IsDir()
		}
	}
	return false
}
