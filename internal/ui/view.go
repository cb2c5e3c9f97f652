package ui

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"dirstat/internal/domain"
	"dirstat/internal/state"
)

type uiStyles struct {
	headerStyle   lipgloss.Style
	mutedStyle    lipgloss.Style
	statusStyle   lipgloss.Style
	warnStyle     lipgloss.Style
	cursorStyle   lipgloss.Style
	selectedStyle lipgloss.Style
	panelBorder   lipgloss.Style
}

func stylesFor(model Model) uiStyles {
	if strings.ToLower(model.state.Prefs.Theme) == "light" {
		return uiStyles{
			headerStyle:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("235")),
			mutedStyle:    lipgloss.NewStyle().Foreground(lipgloss.Color("242")),
			statusStyle:   lipgloss.NewStyle().Foreground(lipgloss.Color("25")).Bold(true),
			warnStyle:     lipgloss.NewStyle().Foreground(lipgloss.Color("124")).Bold(true),
			cursorStyle:   lipgloss.NewStyle().Foreground(lipgloss.Color("90")).Bold(true),
			selectedStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("28")).Bold(true),
			panelBorder:   lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1),
		}
	}
	return uiStyles{
		headerStyle:   lipgloss.NewStyle().Bold(true),
		mutedStyle:    lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		statusStyle:   lipgloss.NewStyle().Foreground(lipgloss.Color("69")).Bold(true),
		warnStyle:     lipgloss.NewStyle().Foreground(lipgloss.Color("204")).Bold(true),
		cursorStyle:   lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Bold(true),
		selectedStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true),
		panelBorder:   lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1),
	}
}

func (model Model) View() string {
	styles := stylesFor(model)
	if model.showHelp {
		return renderHelpView(model, styles)
	}

	// SelectedTotal takes the tree lock itself.
	selectedSize, selectedItems := model.state.Selection.SelectedTotal()
	var body string
	model.tree.View(func(root *domain.Entry) {
		body = renderBody(model, styles, root)
	})
	footer := renderFooter(model, styles, selectedSize, selectedItems)
	return strings.Join([]string{body, footer}, "\n")
}

func renderBody(model Model, styles uiStyles, root *domain.Entry) string {
	visible := model.state.VisibleNodes(root)
	bodyHeight := model.listHeight()
	if bodyHeight < 3 {
		bodyHeight = 3
	}

	leftWidth, rightWidth, showRight := splitPanels(model.width)
	left := renderTreePanel(model, styles, visible, bodyHeight, leftWidth)
	if !showRight {
		return left
	}
	sep := lipgloss.NewStyle().Foreground(lipgloss.Color("238")).Render("│")
	var right string
	switch {
	case model.promptMode != "":
		right = renderPromptPanel(model, styles, rightWidth, bodyHeight)
	default:
		right = renderDetailPanel(model, styles, model.state.CurrentNode(root), rightWidth, bodyHeight)
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, left, sep, right)
}

func renderFooter(model Model, styles uiStyles, selectedSize, selectedItems int64) string {
	statusLine := trimStatus(model.status, model.width)
	if model.busy {
		statusLine = fmt.Sprintf("%s %s  %s", model.spinner.View(), statusLine, progressBar(model.progress, 18))
	}
	statusStyle := styles.mutedStyle
	lower := strings.ToLower(model.status)
	if strings.Contains(lower, "error") || strings.Contains(lower, "cannot") || strings.Contains(lower, "busy") {
		statusStyle = styles.warnStyle
	}
	statusLine = statusStyle.Render(statusLine)
	if model.promptMode != "" {
		statusLine = model.prompt.View()
	}

	selectionInfo := fmt.Sprintf("Selected: %d (%s, %s items)", model.state.Selection.Count(), formatSize(selectedSize), humanize.Comma(selectedItems))
	sortInfo := fmt.Sprintf("Sort: %s", strings.ToUpper(string(model.state.Prefs.SortMode)))
	hiddenInfo := "Hidden: off"
	if model.state.Prefs.ShowHidden {
		hiddenInfo = "Hidden: on"
	}
	left := fmt.Sprintf("%s  %s  %s%s", selectionInfo, sortInfo, hiddenInfo, filterSummary(model))
	keys := "↑/↓ move  → enter  ← up  space select  g open  s rescan  r refresh  a abort  L/W cache  ? help  q quit"
	if model.promptMode != "" {
		keys = promptHint(model.promptMode)
	}
	footerLine := padLine(left, keys, model.width)
	return strings.Join([]string{statusLine, styles.mutedStyle.Render(footerLine)}, "\n")
}

func renderTreePanel(model Model, styles uiStyles, visible []state.VisibleNode, height, width int) string {
	if width < 20 {
		width = 20
	}
	contentWidth := maxInt(width-2, 10)
	crumbs := breadcrumbs(model.state.CurrentPath())
	status := strings.ToUpper(model.tree.State().String())
	headerLine := padLine(styles.headerStyle.Render("dirstat")+"  "+crumbs, styles.statusStyle.Render(status), contentWidth)
	listHeight := height - 1
	if listHeight < 1 {
		listHeight = 1
	}
	if len(visible) == 0 {
		message := "Nothing loaded - press g to open a directory"
		if model.busy {
			message = "Reading..."
		}
		lines := []string{headerLine, message}
		for i := 0; i < maxInt(listHeight-1, 0); i++ {
			lines = append(lines, "")
		}
		return styles.panelBorder.Width(contentWidth).Render(strings.Join(lines, "\n"))
	}
	start := clamp(model.viewTop, 0, maxInt(len(visible)-1, 0))
	end := start + listHeight
	if end > len(visible) {
		end = len(visible)
	}

	lines := make([]string, 0, height)
	lines = append(lines, headerLine)
	sizeWidth := 9
	for index := start; index < end; index++ {
		item := visible[index]
		entry := item.Entry
		indent := strings.Repeat("  ", item.Depth)
		marker := "[ ]"
		if model.state.Selection.IsSelected(entry) {
			marker = styles.selectedStyle.Render("[x]")
		}
		name := entry.Name()
		if item.Depth == 0 {
			name = entry.Path()
		}
		if entry.IsDirLike() && !strings.HasSuffix(name, string(filepath.Separator)) {
			name += string(filepath.Separator)
		}
		lineSize := fmt.Sprintf("%*s", sizeWidth, sizeLabel(entry))
		line := fmt.Sprintf("%s %s %s%s %s%s", lineSize, marker, indent, entryIcon(model, entry), name, entrySuffix(entry))
		if index == model.state.Cursor {
			line = styles.cursorStyle.Render(line)
		}
		lines = append(lines, line)
	}
	for len(lines) < height {
		lines = append(lines, "")
	}
	content := strings.Join(lines, "\n")
	return styles.panelBorder.Width(contentWidth).Render(content)
}

func renderDetailPanel(model Model, styles uiStyles, entry *domain.Entry, width, height int) string {
	contentWidth := maxInt(width-2, 10)
	if entry == nil {
		return styles.panelBorder.Width(contentWidth).Render("No selection")
	}
	totals := entry.Totals()
	lines := []string{
		styles.headerStyle.Render("Path"),
		entry.Path(),
		fmt.Sprintf("Type: %s", entry.Kind()),
		"",
		styles.headerStyle.Render("Size"),
		fmt.Sprintf("Own      : %s", formatSize(entry.Size())),
		fmt.Sprintf("Total    : %s", formatSize(totals.Size)),
		fmt.Sprintf("Allocated: %s", formatSize(totals.Blocks)),
	}
	if entry.Links() > 1 {
		lines = append(lines, fmt.Sprintf("Links    : %d", entry.Links()))
	}
	if entry.IsDirLike() {
		lines = append(lines,
			"",
			styles.headerStyle.Render("Contents"),
			fmt.Sprintf("Items   : %s", humanize.Comma(totals.Items)),
			fmt.Sprintf("Subdirs : %s", humanize.Comma(totals.SubDirs)),
		)
	}
	if totals.Errors > 0 || totals.Excluded > 0 {
		lines = append(lines,
			styles.warnStyle.Render(fmt.Sprintf("Errors  : %s", humanize.Comma(totals.Errors))),
			fmt.Sprintf("Excluded: %s", humanize.Comma(totals.Excluded)),
		)
	}
	lines = append(lines, "", styles.headerStyle.Render("Modified"), formatTime(entry.ModTime()))
	if entry.IsDirLike() {
		lines = append(lines, fmt.Sprintf("Latest: %s", formatTime(entry.LatestModTime())))
	}
	if entry.Incomplete() {
		lines = append(lines, "", styles.warnStyle.Render("Incomplete: reading was aborted"))
	}

	content := strings.Join(lines, "\n")
	content = lipgloss.NewStyle().Width(contentWidth).Height(height).Render(content)
	return styles.panelBorder.Width(contentWidth).Render(content)
}

func renderPromptPanel(model Model, styles uiStyles, width, height int) string {
	contentWidth := maxInt(width-2, 10)
	lines := []string{
		styles.headerStyle.Render(promptLabel(model.promptMode)),
		model.prompt.Value(),
	}
	if len(model.suggestions) > 0 {
		lines = append(lines, "", styles.headerStyle.Render("Suggestions"))
		max := 8
		if len(model.suggestions) < max {
			max = len(model.suggestions)
		}
		lines = append(lines, model.suggestions[:max]...)
		if len(model.suggestions) > max {
			lines = append(lines, "...")
		}
	}
	content := strings.Join(lines, "\n")
	content = lipgloss.NewStyle().Width(contentWidth).Height(height).Render(content)
	return styles.panelBorder.Width(contentWidth).Render(content)
}

func renderHelpView(model Model, styles uiStyles) string {
	bindings := []key.Binding{
		model.keys.Up,
		model.keys.Down,
		model.keys.Enter,
		model.keys.Right,
		model.keys.Back,
		model.keys.Left,
		model.keys.Select,
		model.keys.ClearSelection,
		model.keys.Open,
		model.keys.Rescan,
		model.keys.Refresh,
		model.keys.Abort,
		model.keys.ReadCache,
		model.keys.WriteCache,
		model.keys.Sort,
		model.keys.Hidden,
		model.keys.Search,
		model.keys.ExtFilter,
		model.keys.SizeFilter,
		model.keys.ClearFilter,
		model.keys.Complete,
		model.keys.Help,
		model.keys.Quit,
	}

	lines := []string{styles.headerStyle.Render("dirstat help"), ""}
	lines = append(lines, styles.headerStyle.Render("Navigation"))
	lines = append(lines, "↑/↓ move cursor", "→ enter folder", "← go to parent", "enter expand/collapse")
	lines = append(lines, "", styles.headerStyle.Render("Selection"))
	lines = append(lines, "space toggle select", "selected size counted once per subtree")
	lines = append(lines, "", styles.headerStyle.Render("Reading"))
	lines = append(lines, "g open path", "s rescan everything", "r refresh directory", "a abort reading")
	lines = append(lines, "", styles.headerStyle.Render("Cache files"))
	lines = append(lines, "L read cache", "W write cache (.gz is compressed)")
	lines = append(lines, "", styles.headerStyle.Render("Keys"))
	for _, binding := range bindings {
		keysLabel := strings.Join(binding.Keys(), ", ")
		lines = append(lines, fmt.Sprintf("%-18s %s", keysLabel, binding.Help().Desc))
	}
	lines = append(lines, "", "Press ? to close help")
	content := strings.Join(lines, "\n")
	width := model.width
	if width <= 0 {
		width = 80
	}
	return styles.panelBorder.Width(maxInt(width-2, 10)).Render(content)
}

func breadcrumbs(path string) string {
	if path == "" {
		return "-"
	}
	path = filepath.Clean(path)
	if path == "." {
		return "."
	}
	parts := strings.Split(path, string(filepath.Separator))
	if parts[0] == "" {
		parts[0] = string(filepath.Separator)
	}
	return strings.Join(parts, " › ")
}

func padLine(left, right string, width int) string {
	if width <= 0 {
		return left
	}
	space := width - lipgloss.Width(left) - lipgloss.Width(right)
	if space < 1 {
		return left + " " + right
	}
	return left + strings.Repeat(" ", space) + right
}

func splitPanels(width int) (int, int, bool) {
	if width < 80 {
		return width, 0, false
	}
	left := int(float64(width) * 0.6)
	if left < 40 {
		left = 40
	}
	right := width - left - 1
	if right < 30 {
		return width, 0, false
	}
	return left, right, true
}

func entryIcon(model Model, entry *domain.Entry) string {
	switch entry.Kind() {
	case domain.KindDir:
		if model.state.IsExpanded(entry.Path()) {
			return "📂"
		}
		return "📁"
	case domain.KindBusy:
		return "⏳"
	case domain.KindSymlink:
		return "🔗"
	case domain.KindSpecial:
		return "⚙"
	case domain.KindExcluded:
		return "🚫"
	case domain.KindError:
		return "⚠"
	default:
		return "📄"
	}
}

func entrySuffix(entry *domain.Entry) string {
	switch {
	case entry.Kind() == domain.KindExcluded:
		return "  (excluded)"
	case entry.Kind() == domain.KindError:
		return "  (unreadable)"
	case entry.Incomplete():
		return "  (incomplete)"
	default:
		return ""
	}
}

func formatSize(size int64) string {
	if size < 0 {
		return "-" + humanize.Bytes(uint64(-size))
	}
	return humanize.Bytes(uint64(size))
}

func formatTime(value time.Time) string {
	if value.IsZero() || value.Unix() == 0 {
		return "-"
	}
	return fmt.Sprintf("%s (%s)", value.Format(time.RFC822), humanize.Time(value))
}

func sizeLabel(entry *domain.Entry) string {
	if entry.IsPlaceholder() {
		return "--"
	}
	return formatSize(state.SizeFor(entry))
}

func progressBar(count int64, width int) string {
	if width <= 0 {
		return ""
	}
	pos := int(count % int64(width))
	filled := strings.Repeat("█", pos)
	gap := strings.Repeat("░", width-pos)
	return fmt.Sprintf("[%s%s] %s", filled, gap, humanize.Comma(count))
}

func trimStatus(message string, width int) string {
	if width <= 0 {
		return message
	}
	max := width - 4
	if max <= 0 || len(message) <= max {
		return message
	}
	return message[:max] + "..."
}

func filterSummary(model Model) string {
	parts := []string{}
	if model.state.SearchQuery != "" {
		parts = append(parts, fmt.Sprintf("Search:%s", model.state.SearchQuery))
	}
	if model.state.FilterExt != "" {
		parts = append(parts, fmt.Sprintf("Ext:%s", model.state.FilterExt))
	}
	if model.state.MinSizeBytes > 0 {
		parts = append(parts, fmt.Sprintf("Min:%s", formatSize(model.state.MinSizeBytes)))
	}
	if len(parts) == 0 {
		return ""
	}
	return "  Filters[" + strings.Join(parts, ", ") + "]"
}

func clamp(value, min, max int) int {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
