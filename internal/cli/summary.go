package cli

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"gopkg.in/yaml.v3"

	"dirstat/internal/domain"
	"dirstat/internal/services"
)

const maxPrintedErrors = 5

const (
	outputText = "text"
	outputYAML = "yaml"
)

type largestEntry struct {
	Name string
	Kind domain.Kind
	Size int64
}

type summary struct {
	Path       string
	Totals     domain.Totals
	Incomplete bool
	Largest    []largestEntry
	// State and Duration are only known for a scan.
	State    string
	Duration time.Duration
}

type summaryDocument struct {
	Path       string            `yaml:"path"`
	Size       int64             `yaml:"size"`
	Allocated  int64             `yaml:"allocated"`
	Items      int64             `yaml:"items"`
	Dirs       int64             `yaml:"dirs"`
	Errors     int64             `yaml:"errors"`
	Excluded   int64             `yaml:"excluded"`
	Incomplete bool              `yaml:"incomplete,omitempty"`
	State      string            `yaml:"state,omitempty"`
	Duration   string            `yaml:"duration,omitempty"`
	Largest    []largestDocument `yaml:"largest,omitempty"`
}

type largestDocument struct {
	Name string `yaml:"name"`
	Kind string `yaml:"kind"`
	Size int64  `yaml:"size"`
}

// summarize copies what the report needs out of root. It must run while the
// tree is locked for reading.
func summarize(root *domain.Entry, top int) summary {
	if root == nil {
		return summary{}
	}
	result := summary{Path: root.Path(), Totals: root.Totals()}
	root.Walk(func(node *domain.Entry, _ int) bool {
		if node.Incomplete() {
			result.Incomplete = true
			return false
		}
		return true
	})
	children := append([]*domain.Entry(nil), root.Children()...)
	sort.SliceStable(children, func(i, j int) bool {
		return children[i].Totals().Size > children[j].Totals().Size
	})
	if top >= 0 && len(children) > top {
		children = children[:top]
	}
	for _, child := range children {
		result.Largest = append(result.Largest, largestEntry{
			Name: child.Name(),
			Kind: child.Kind(),
			Size: child.Totals().Size,
		})
	}
	return result
}

func printSummary(out io.Writer, result summary) {
	bold := color.New(color.Bold)
	warn := color.New(color.FgYellow)
	if result.Path == "" {
		warn.Fprintln(out, "Nothing loaded")
		return
	}
	bold.Fprintln(out, result.Path)
	fmt.Fprintf(out, "  %-10s %s (allocated %s)\n", "Size:", humanize.Bytes(uint64(result.Totals.Size)), humanize.Bytes(uint64(result.Totals.Blocks)))
	fmt.Fprintf(out, "  %-10s %s\n", "Items:", humanize.Comma(result.Totals.Items))
	fmt.Fprintf(out, "  %-10s %s\n", "Dirs:", humanize.Comma(result.Totals.SubDirs))
	errorLine := fmt.Sprintf("  %-10s %s\n", "Errors:", humanize.Comma(result.Totals.Errors))
	if result.Totals.Errors > 0 {
		warn.Fprint(out, errorLine)
	} else {
		fmt.Fprint(out, errorLine)
	}
	fmt.Fprintf(out, "  %-10s %s\n", "Excluded:", humanize.Comma(result.Totals.Excluded))
	if result.State != "" {
		fmt.Fprintf(out, "  %-10s %s in %s\n", "State:", result.State, result.Duration.Round(time.Millisecond))
	}
	if result.Incomplete {
		warn.Fprintln(out, "  Reading was aborted; totals are incomplete")
	}
	if len(result.Largest) == 0 {
		return
	}
	bold.Fprintln(out, "Largest entries:")
	for _, entry := range result.Largest {
		name := entry.Name
		if entry.Kind.IsDirLike() {
			name += "/"
		} else if entry.Kind.IsPlaceholder() {
			name += " (" + entry.Kind.String() + ")"
		}
		fmt.Fprintf(out, "  %10s  %s\n", humanize.Bytes(uint64(entry.Size)), name)
	}
}

func printReadErrors(out io.Writer, stats services.ScanStats) {
	if len(stats.ReadErrors) == 0 {
		return
	}
	warn := color.New(color.FgYellow)
	for index, readError := range stats.ReadErrors {
		if index == maxPrintedErrors {
			warn.Fprintf(out, "  ... and %d more\n", stats.Errors-int64(maxPrintedErrors))
			break
		}
		warn.Fprintf(out, "  %s\n", readError.Error())
	}
}

func writeSummary(out io.Writer, format string, result summary) error {
	switch format {
	case "", outputText:
		printSummary(out, result)
		return nil
	case outputYAML:
		return writeSummaryYAML(out, result)
	default:
		return fmt.Errorf("unknown output format %q (want %s or %s)", format, outputText, outputYAML)
	}
}

func writeSummaryYAML(out io.Writer, result summary) error {
	document := summaryDocument{
		Path:       result.Path,
		Size:       result.Totals.Size,
		Allocated:  result.Totals.Blocks,
		Items:      result.Totals.Items,
		Dirs:       result.Totals.SubDirs,
		Errors:     result.Totals.Errors,
		Excluded:   result.Totals.Excluded,
		Incomplete: result.Incomplete,
		State:      result.State,
	}
	if result.State != "" {
		document.Duration = result.Duration.Round(time.Millisecond).String()
	}
	for _, entry := range result.Largest {
		document.Largest = append(document.Largest, largestDocument{
			Name: entry.Name,
			Kind: entry.Kind.String(),
			Size: entry.Size,
		})
	}
	encoder := yaml.NewEncoder(out)
	encoder.SetIndent(2)
	if err := encoder.Encode(document); err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}
	return encoder.Close()
}
