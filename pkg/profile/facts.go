package profile

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"sort"

	"github.com/jupierce/source-coverage/pkg/data"
	"github.com/jupierce/source-coverage/pkg/files"
)

// Facts is the JSON exchange format for recorded executions:
//
//	{"mode": "arcs", "context": "unit",
//	 "files": {"pkg/a.go": {"lines": [1, 2], "arcs": [[1, 2], [2, -1]]}}}
type Facts struct {
	Mode    string               `json:"mode"`
	Context string               `json:"context,omitempty"`
	Files   map[string]FileFacts `json:"files"`
}

// FileFacts are the executed lines and arcs of one file.
type FileFacts struct {
	Lines []int    `json:"lines,omitempty"`
	Arcs  [][2]int `json:"arcs,omitempty"`
}

// ImportFacts decodes Facts from r into a new store of the declared mode.
// Relative file names are resolved against baseDir. A non-empty contextName
// replaces the context named in the facts.
func ImportFacts(r io.Reader, baseDir, contextName string) (*data.Store, Stats, error) {
	var f Facts
	if err := json.NewDecoder(r).Decode(&f); err != nil {
		return nil, Stats{}, fmt.Errorf("decode facts: %w", err)
	}
	mode := data.LinesMode
	if f.Mode != "" {
		var err error
		if mode, err = data.ParseMode(f.Mode); err != nil {
			return nil, Stats{}, err
		}
	}

	if contextName != "" {
		f.Context = contextName
	}
	store := data.NewStore(mode)
	store.SetContext(f.Context)

	names := make([]string, 0, len(f.Files))
	for name := range f.Files {
		names = append(names, name)
	}
	sort.Strings(names)

	var stats Stats
	for _, name := range names {
		ff := f.Files[name]
		path := filepath.FromSlash(name)
		if !filepath.IsAbs(path) && baseDir != "" {
			path = filepath.Join(baseDir, path)
		}
		key := files.Canonical(path)

		arcs := make([]data.Arc, len(ff.Arcs))
		for i, a := range ff.Arcs {
			arcs[i] = data.Arc{From: a[0], To: a[1]}
		}
		if err := store.Record(key, ff.Lines, arcs); err != nil {
			return nil, Stats{}, fmt.Errorf("record %s: %w", name, err)
		}
		store.Touch(key)
		stats.Files++
		stats.Lines += len(ff.Lines)
		stats.Arcs += len(arcs)
	}
	return store, stats, nil
}

// ExportFacts writes the facts of store as JSON, one entry per measured file
// with its lines and arcs across all contexts.
func ExportFacts(w io.Writer, store *data.Store) error {
	f := Facts{Mode: store.Mode().String(), Files: map[string]FileFacts{}}
	for _, key := range store.MeasuredFiles() {
		ff := FileFacts{Lines: store.Lines(key)}
		for _, a := range store.Arcs(key) {
			ff.Arcs = append(ff.Arcs, [2]int{a.From, a.To})
		}
		f.Files[string(key)] = ff
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(f); err != nil {
		return fmt.Errorf("encode facts: %w", err)
	}
	return nil
}
