package data

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// Run describes one recording session that contributed facts to a store.
type Run struct {
	ID         string
	Context    string
	Source     string
	RecordedAt time.Time
}

// AddRun registers a recording session against the current context and
// returns it. Source names where the facts came from (a profile path, a
// worker name).
func (s *Store) AddRun(source string) Run {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := Run{
		ID:         uuid.NewString(),
		Context:    s.context,
		Source:     source,
		RecordedAt: time.Now().UTC(),
	}
	s.runs = append(s.runs, r)
	return r
}

// Runs returns the recording sessions merged into the store, oldest first.
func (s *Store) Runs() []Run {
	s.mu.RLock()
	defer s.mu.RUnlock()

	runs := make([]Run, len(s.runs))
	copy(runs, s.runs)
	sort.Slice(runs, func(i, j int) bool {
		if !runs[i].RecordedAt.Equal(runs[j].RecordedAt) {
			return runs[i].RecordedAt.Before(runs[j].RecordedAt)
		}
		return runs[i].ID < runs[j].ID
	})
	return runs
}
