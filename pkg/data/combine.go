package data

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"
)

// FindParallelFiles returns the per-worker data files next to base: files
// named "<base>.<suffix>", sorted. A missing directory has none.
func FindParallelFiles(base string) ([]string, error) {
	dir := filepath.Dir(base)
	prefix := filepath.Base(base) + "."
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read dir %s: %w", dir, err)
	}
	var found []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, prefix) {
			continue
		}
		if strings.HasSuffix(name, "-wal") || strings.HasSuffix(name, "-shm") {
			continue
		}
		found = append(found, filepath.Join(dir, name))
	}
	sort.Strings(found)
	return found, nil
}

// Combine loads the data files at paths concurrently, at most workers at a
// time, and merges them into one store. The result is the same for any order
// of paths.
func Combine(ctx context.Context, paths []string, workers int) (*Store, error) {
	if workers <= 0 {
		workers = 8
	}
	stores := make([]*Store, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, p := range paths {
		i, p := i, p
		g.Go(func() error {
			s, err := Load(gctx, p)
			if err != nil {
				return fmt.Errorf("load %s: %w", p, err)
			}
			stores[i] = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	combined := NewStore(LinesMode)
	for i, s := range stores {
		if err := combined.Merge(s); err != nil {
			return nil, fmt.Errorf("merge %s: %w", paths[i], err)
		}
	}
	return combined, nil
}
