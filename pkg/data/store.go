// Package data records which lines and arcs executed, per measured file and
// per measurement context, and merges the facts of independent runs.
package data

import (
	"fmt"
	"sort"
	"sync"

	"github.com/jupierce/source-coverage/pkg/files"
)

// Mode decides, for the whole lifetime of a Store, whether it carries arc
// facts in addition to line facts.
type Mode int

const (
	// LinesMode stores executed lines only.
	LinesMode Mode = iota
	// ArcsMode stores executed arcs; executed lines are implied by them.
	ArcsMode
)

func (m Mode) String() string {
	if m == ArcsMode {
		return "arcs"
	}
	return "lines"
}

// ParseMode parses the persisted name of a mode.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "lines":
		return LinesMode, nil
	case "arcs":
		return ArcsMode, nil
	default:
		return LinesMode, fmt.Errorf("invalid data mode: %s (valid: lines, arcs)", s)
	}
}

// Arc is a possible or observed transfer of control between two lines.
// A negative line number stands for entry into (From) or exit from (To) a
// code object.
type Arc struct {
	From int
	To   int
}

// IsExit reports whether the arc leaves the code object.
func (a Arc) IsExit() bool { return a.To < 0 }

func (a Arc) String() string {
	if a.IsExit() {
		return fmt.Sprintf("%d->exit", a.From)
	}
	return fmt.Sprintf("%d->%d", a.From, a.To)
}

// SortArcs orders arcs by (From, To).
func SortArcs(arcs []Arc) {
	sort.Slice(arcs, func(i, j int) bool {
		if arcs[i].From != arcs[j].From {
			return arcs[i].From < arcs[j].From
		}
		return arcs[i].To < arcs[j].To
	})
}

// facts holds the executed lines and arcs of one file in one context.
type facts struct {
	lines map[int]struct{}
	arcs  map[Arc]struct{}
}

func newFacts() *facts {
	return &facts{lines: map[int]struct{}{}, arcs: map[Arc]struct{}{}}
}

func (f *facts) union(o *facts) {
	for l := range o.lines {
		f.lines[l] = struct{}{}
	}
	for a := range o.arcs {
		f.arcs[a] = struct{}{}
	}
}

// Store is the merged record of what executed. It is safe for concurrent
// use; merging is a per-file, per-context set union.
type Store struct {
	mu      sync.RWMutex
	mode    Mode
	context string
	// byContext[context][file]
	byContext map[string]map[files.FileKey]*facts
	// touched files are measured even if nothing executed in them.
	touched map[files.FileKey]struct{}
	runs    []Run
}

// NewStore creates an empty store whose mode is fixed at creation.
func NewStore(mode Mode) *Store {
	return &Store{
		mode:      mode,
		byContext: map[string]map[files.FileKey]*facts{},
		touched:   map[files.FileKey]struct{}{},
	}
}

// Mode returns the store's mode.
func (s *Store) Mode() Mode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mode
}

// HasArcs reports whether the store records arcs.
func (s *Store) HasArcs() bool { return s.Mode() == ArcsMode }

// SetContext sets the measurement context that subsequent Record calls tag
// their facts with.
func (s *Store) SetContext(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.context = name
}

// Record merges the facts of one run for file into the current context.
// Lines implied by arcs are recorded too. Giving arcs to a lines store, or
// only lines to an arcs store, fails with a ConfigurationMismatchError.
func (s *Store) Record(file files.FileKey, lines []int, arcs []Arc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.mode == LinesMode && len(arcs) > 0 {
		return &ConfigurationMismatchError{Have: LinesMode, Got: ArcsMode}
	}
	if s.mode == ArcsMode && len(arcs) == 0 && len(lines) > 0 {
		return &ConfigurationMismatchError{Have: ArcsMode, Got: LinesMode}
	}

	f := s.factsFor(s.context, file)
	for _, l := range lines {
		if l > 0 {
			f.lines[l] = struct{}{}
		}
	}
	for _, a := range arcs {
		f.arcs[a] = struct{}{}
		if a.From > 0 {
			f.lines[a.From] = struct{}{}
		}
		if a.To > 0 {
			f.lines[a.To] = struct{}{}
		}
	}
	return nil
}

// Touch marks file as measured without recording any execution.
func (s *Store) Touch(file files.FileKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touched[file] = struct{}{}
}

func (s *Store) factsFor(context string, file files.FileKey) *facts {
	byFile, ok := s.byContext[context]
	if !ok {
		byFile = map[files.FileKey]*facts{}
		s.byContext[context] = byFile
	}
	f, ok := byFile[file]
	if !ok {
		f = newFacts()
		byFile[file] = f
	}
	return f
}

// Empty reports whether the store holds no facts and no touched files.
func (s *Store) Empty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.emptyLocked()
}

func (s *Store) emptyLocked() bool {
	if len(s.touched) > 0 {
		return false
	}
	for _, byFile := range s.byContext {
		if len(byFile) > 0 {
			return false
		}
	}
	return true
}

// Merge unions other into s. The result does not depend on merge order. An
// empty store merges into any store; otherwise the modes must agree.
func (s *Store) Merge(other *Store) error {
	if s == other {
		return nil
	}
	snap := other.Snapshot()

	s.mu.Lock()
	defer s.mu.Unlock()

	if snap.mode != s.mode && !snap.emptyLocked() {
		if !s.emptyLocked() {
			return &ConfigurationMismatchError{Have: s.mode, Got: snap.mode}
		}
		s.mode = snap.mode
	}
	for context, byFile := range snap.byContext {
		for file, f := range byFile {
			s.factsFor(context, file).union(f)
		}
	}
	for file := range snap.touched {
		s.touched[file] = struct{}{}
	}
	known := make(map[string]struct{}, len(s.runs))
	for _, r := range s.runs {
		known[r.ID] = struct{}{}
	}
	for _, r := range snap.runs {
		if _, ok := known[r.ID]; !ok {
			s.runs = append(s.runs, r)
		}
	}
	return nil
}

// Snapshot returns a deep copy that later writes to s do not affect.
func (s *Store) Snapshot() *Store {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c := NewStore(s.mode)
	c.context = s.context
	for context, byFile := range s.byContext {
		for file, f := range byFile {
			c.factsFor(context, file).union(f)
		}
	}
	for file := range s.touched {
		c.touched[file] = struct{}{}
	}
	c.runs = append(c.runs, s.runs...)
	return c
}

// MeasuredFiles returns every file with facts in any context, sorted.
func (s *Store) MeasuredFiles() []files.FileKey {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := map[files.FileKey]struct{}{}
	for _, byFile := range s.byContext {
		for file := range byFile {
			seen[file] = struct{}{}
		}
	}
	for file := range s.touched {
		seen[file] = struct{}{}
	}
	keys := make([]files.FileKey, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// Lines returns the executed lines of file across all contexts, sorted.
func (s *Store) Lines(file files.FileKey) []int {
	return s.collectLines(file, nil)
}

// LinesForContext returns the executed lines of file in one context.
func (s *Store) LinesForContext(file files.FileKey, context string) []int {
	return s.collectLines(file, &context)
}

func (s *Store) collectLines(file files.FileKey, only *string) []int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	set := map[int]struct{}{}
	for context, byFile := range s.byContext {
		if only != nil && context != *only {
			continue
		}
		if f, ok := byFile[file]; ok {
			for l := range f.lines {
				set[l] = struct{}{}
			}
		}
	}
	lines := make([]int, 0, len(set))
	for l := range set {
		lines = append(lines, l)
	}
	sort.Ints(lines)
	return lines
}

// Arcs returns the executed arcs of file across all contexts, sorted. A
// lines store always returns nil.
func (s *Store) Arcs(file files.FileKey) []Arc {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.mode != ArcsMode {
		return nil
	}
	set := map[Arc]struct{}{}
	for _, byFile := range s.byContext {
		if f, ok := byFile[file]; ok {
			for a := range f.arcs {
				set[a] = struct{}{}
			}
		}
	}
	arcs := make([]Arc, 0, len(set))
	for a := range set {
		arcs = append(arcs, a)
	}
	SortArcs(arcs)
	return arcs
}

// Contexts returns the names of all measurement contexts with facts, sorted.
func (s *Store) Contexts() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.byContext))
	for name, byFile := range s.byContext {
		if len(byFile) > 0 {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}
