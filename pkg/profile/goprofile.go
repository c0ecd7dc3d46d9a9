// Package profile feeds recorded executions from outside tools into a fact
// store.
package profile

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/tools/cover"

	"github.com/jupierce/source-coverage/pkg/data"
	"github.com/jupierce/source-coverage/pkg/files"
)

// Stats summarises an import.
type Stats struct {
	Files int
	Lines int
	Arcs  int
}

// ImportGoProfile reads a Go cover profile ("go test -coverprofile") into a
// new lines store. Profile file names are import paths; those under the
// module declared in moduleRoot/go.mod are resolved into moduleRoot, others
// are used as given. A line counts as executed when any block covering it
// ran. Facts are recorded under contextName.
func ImportGoProfile(path, moduleRoot, contextName string) (*data.Store, Stats, error) {
	profiles, err := cover.ParseProfiles(path)
	if err != nil {
		return nil, Stats{}, fmt.Errorf("parse profiles: %w", err)
	}

	moduleName := ""
	if moduleRoot != "" {
		moduleName = ModuleName(moduleRoot)
	}

	store := data.NewStore(data.LinesMode)
	store.SetContext(contextName)
	var stats Stats
	for _, p := range profiles {
		key := files.Canonical(ResolvePath(p.FileName, moduleName, moduleRoot))

		lineCounts := map[int]int{}
		for _, block := range p.Blocks {
			for line := block.StartLine; line <= block.EndLine; line++ {
				if block.Count > lineCounts[line] {
					lineCounts[line] = block.Count
				}
			}
		}

		var executed []int
		for line, count := range lineCounts {
			if count > 0 {
				executed = append(executed, line)
			}
		}

		store.Touch(key)
		if err := store.Record(key, executed, nil); err != nil {
			return nil, Stats{}, fmt.Errorf("record %s: %w", key, err)
		}
		stats.Files++
		stats.Lines += len(executed)
	}
	return store, stats, nil
}

// ResolvePath maps a profile file name to a filesystem path.
func ResolvePath(name, moduleName, moduleRoot string) string {
	if moduleName != "" && (name == moduleName || strings.HasPrefix(name, moduleName+"/")) {
		rel := strings.TrimPrefix(strings.TrimPrefix(name, moduleName), "/")
		return filepath.Join(moduleRoot, filepath.FromSlash(rel))
	}
	if moduleRoot != "" && !filepath.IsAbs(name) {
		return filepath.Join(moduleRoot, filepath.FromSlash(name))
	}
	return name
}

// ModuleName reads the module path from dir/go.mod, or returns "".
func ModuleName(dir string) string {
	content, err := os.ReadFile(filepath.Join(dir, "go.mod"))
	if err != nil {
		return ""
	}

	for _, line := range strings.Split(string(content), "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "module ") {
			return strings.Trim(strings.TrimSpace(strings.TrimPrefix(line, "module ")), `"`)
		}
	}
	return ""
}
