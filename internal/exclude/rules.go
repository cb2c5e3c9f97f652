// Package exclude holds the path patterns that prune directory subtrees from
// a scan.
package exclude

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
)

// GlobPrefix selects doublestar glob syntax for a pattern instead of a
// regular expression.
const GlobPrefix = "glob:"

// DefaultPatterns are the rules installed when configuration supplies none.
var DefaultPatterns = []string{`.*/\.snapshot$`}

type rule struct {
	pattern string
	regex   *regexp.Regexp
	glob    string
}

func newRule(pattern string) (rule, error) {
	if pattern == "" {
		return rule{}, errors.New("empty pattern")
	}
	if strings.HasPrefix(pattern, GlobPrefix) {
		glob := strings.TrimPrefix(pattern, GlobPrefix)
		// Matching against a non-empty path surfaces bad pattern errors.
		if _, err := doublestar.Match(glob, "a"); err != nil {
			return rule{}, fmt.Errorf("invalid glob pattern %q: %w", glob, err)
		}
		return rule{pattern: pattern, glob: glob}, nil
	}
	// Rules match the whole path, not a substring of it.
	regex, err := regexp.Compile(`^(?:` + pattern + `)$`)
	if err != nil {
		return rule{}, fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}
	return rule{pattern: pattern, regex: regex}, nil
}

func (r rule) matches(path string) bool {
	if r.regex != nil {
		return r.regex.MatchString(path)
	}
	matched, _ := doublestar.Match(r.glob, path)
	return matched
}

// Rules is an ordered, goroutine-safe set of exclude patterns.
type Rules struct {
	mu    sync.RWMutex
	rules []rule
}

func NewRules(patterns ...string) (*Rules, error) {
	rules := &Rules{}
	for _, pattern := range patterns {
		if err := rules.Add(pattern); err != nil {
			return nil, err
		}
	}
	return rules, nil
}

// Add appends a pattern. Adding a pattern that is already present is a no-op.
func (rules *Rules) Add(pattern string) error {
	parsed, err := newRule(pattern)
	if err != nil {
		return err
	}
	rules.mu.Lock()
	defer rules.mu.Unlock()
	for _, existing := range rules.rules {
		if existing.pattern == pattern {
			return nil
		}
	}
	rules.rules = append(rules.rules, parsed)
	return nil
}

func (rules *Rules) Remove(pattern string) bool {
	rules.mu.Lock()
	defer rules.mu.Unlock()
	for index, existing := range rules.rules {
		if existing.pattern == pattern {
			rules.rules = append(rules.rules[:index], rules.rules[index+1:]...)
			return true
		}
	}
	return false
}

// Matches reports whether any rule matches the full path. Paths are compared
// with forward slashes on every platform.
func (rules *Rules) Matches(path string) bool {
	if rules == nil {
		return false
	}
	candidate := filepath.ToSlash(path)
	rules.mu.RLock()
	defer rules.mu.RUnlock()
	for _, r := range rules.rules {
		if r.matches(candidate) {
			return true
		}
	}
	return false
}

func (rules *Rules) Patterns() []string {
	if rules == nil {
		return nil
	}
	rules.mu.RLock()
	defer rules.mu.RUnlock()
	patterns := make([]string, len(rules.rules))
	for index, r := range rules.rules {
		patterns[index] = r.pattern
	}
	return patterns
}

func (rules *Rules) Len() int {
	if rules == nil {
		return 0
	}
	rules.mu.RLock()
	defer rules.mu.RUnlock()
	return len(rules.rules)
}

// Clone returns an independent copy, so a running scan is not affected by
// later changes.
func (rules *Rules) Clone() *Rules {
	clone := &Rules{}
	if rules == nil {
		return clone
	}
	rules.mu.RLock()
	defer rules.mu.RUnlock()
	clone.rules = append([]rule(nil), rules.rules...)
	return clone
}
