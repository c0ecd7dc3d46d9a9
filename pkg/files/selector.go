package files

import (
	"path/filepath"
	"sort"
	"strings"
)

// Selector applies include/omit glob patterns to measured files. An empty
// Include list includes everything.
type Selector struct {
	Include []string
	Omit    []string
	// Root is the directory report names are made relative to.
	Root string
}

// Match returns true if key passes the include patterns and no omit pattern.
func (s Selector) Match(key FileKey) bool {
	if len(s.Include) > 0 && !matchesAnyGlob(key, s.Include) {
		return false
	}
	return !matchesAnyGlob(key, s.Omit)
}

// Select filters keys and returns the survivors sorted by display name.
func (s Selector) Select(keys []FileKey) []FileKey {
	var selected []FileKey
	for _, k := range keys {
		if s.Match(k) {
			selected = append(selected, k)
		}
	}
	sort.Slice(selected, func(i, j int) bool {
		return RelativeName(selected[i], s.Root) < RelativeName(selected[j], s.Root)
	})
	return selected
}

// matchesAnyGlob returns true if the file matches any of the glob patterns (OR
// logic). Patterns are tried against the absolute path, the display name and
// the base name, and a "*" in a pattern also spans directory separators.
func matchesAnyGlob(key FileKey, patterns []string) bool {
	abs := filepath.ToSlash(string(key))
	candidates := []string{abs, filepath.Base(abs)}
	if wd, err := filepath.Abs("."); err == nil {
		if rel, err := filepath.Rel(wd, string(key)); err == nil && !strings.HasPrefix(rel, "..") {
			candidates = append(candidates, filepath.ToSlash(rel))
		}
	}
	for _, p := range patterns {
		p = filepath.ToSlash(p)
		for _, c := range candidates {
			if globMatch(p, c) {
				return true
			}
		}
	}
	return false
}

// globMatch is filepath.Match where "*" may cross "/".
func globMatch(pattern, name string) bool {
	if matched, _ := filepath.Match(pattern, name); matched {
		return true
	}
	if !strings.Contains(pattern, "*") {
		return false
	}
	// Try every way of letting one "*" swallow separators.
	parts := strings.Split(pattern, "*")
	return matchParts(parts, name)
}

func matchParts(parts []string, name string) bool {
	if len(parts) == 1 {
		matched, _ := filepath.Match(parts[0], name)
		return matched || parts[0] == name
	}
	head := parts[0]
	if !strings.HasPrefix(name, head) {
		return false
	}
	rest := name[len(head):]
	for i := 0; i <= len(rest); i++ {
		if matchParts(parts[1:], rest[i:]) {
			return true
		}
	}
	return false
}
