package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jupierce/source-coverage/pkg/data"
	"github.com/jupierce/source-coverage/pkg/profile"
)

type importOptions struct {
	goProfile  string
	factsFile  string
	moduleRoot string
	context    string
	parallel   bool
}

func newImportCmd(g *globalOptions) *cobra.Command {
	opts := &importOptions{}

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Record executed lines or arcs into the data file",
		Long: `Import recorded executions into the data file, merging them with the
facts already there.

Two inputs are understood:
  --go-profile  a "go test -coverprofile" file (lines only)
  --facts       a JSON facts file carrying lines or arcs

With --parallel the facts are written to a separate data file named
after the host, process and a random suffix, to be merged by "combine".`,
		Example: `  # Record a unit test run under the "unit" context
  srccov import --go-profile cover.out --context unit

  # Record arcs produced by an external tracer
  srccov import --facts trace.json

  # One data file per CI worker, merged afterwards
  srccov import --go-profile cover.out --parallel
  srccov combine`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd, g, opts)
		},
	}

	cmd.Flags().StringVar(&opts.goProfile, "go-profile", "", "Go cover profile to import")
	cmd.Flags().StringVar(&opts.factsFile, "facts", "", "JSON facts file to import")
	cmd.Flags().StringVar(&opts.moduleRoot, "module-root", "", "Directory holding go.mod, used to resolve profile paths (default from config, else .)")
	cmd.Flags().StringVar(&opts.context, "context", "", "Measurement context to record the facts under (default from config)")
	cmd.Flags().BoolVar(&opts.parallel, "parallel", false, "Write to a uniquely named data file for later combining")
	cmd.MarkFlagsMutuallyExclusive("go-profile", "facts")
	cmd.MarkFlagsOneRequired("go-profile", "facts")

	return cmd
}

func runImport(cmd *cobra.Command, g *globalOptions, opts *importOptions) error {
	cfg, err := g.loadConfig()
	if err != nil {
		return err
	}
	logger, err := g.newLogger(cmd)
	if err != nil {
		return err
	}
	defer logger.Close()

	ctx := cmd.Context()

	contextName := opts.context
	if contextName == "" {
		contextName = cfg.Run.Context
	}

	var imported *data.Store
	var stats profile.Stats
	var source string
	switch {
	case opts.goProfile != "":
		root := opts.moduleRoot
		if root == "" {
			root = cfg.Run.ModuleRoot
		}
		if root == "" {
			root = "."
		}
		if root, err = filepath.Abs(root); err != nil {
			return fmt.Errorf("resolve module root: %w", err)
		}
		source = opts.goProfile
		logger.Progress("Importing Go profile %s", source)
		imported, stats, err = profile.ImportGoProfile(source, root, contextName)
		if err != nil {
			return fmt.Errorf("import %s: %w", source, err)
		}
	default:
		source = opts.factsFile
		logger.Progress("Importing facts %s", source)
		f, err := os.Open(source)
		if err != nil {
			return fmt.Errorf("open facts: %w", err)
		}
		defer f.Close()
		base, err := filepath.Abs(filepath.Dir(source))
		if err != nil {
			return fmt.Errorf("resolve facts directory: %w", err)
		}
		imported, stats, err = profile.ImportFacts(f, base, contextName)
		if err != nil {
			return fmt.Errorf("import %s: %w", source, err)
		}
	}
	r := imported.AddRun(source)
	logger.Debug("run %s: %d files, %d lines, %d arcs", r.ID, stats.Files, stats.Lines, stats.Arcs)

	if cfg.Run.Branch && !imported.HasArcs() && !imported.Empty() {
		logger.WarnOnce("no-arcs", "Branch coverage was requested but %s only records lines.", source)
	}

	target := cfg.DataFile
	if opts.parallel {
		target = parallelName(cfg.DataFile)
	}

	store, err := loadOrNew(ctx, target)
	if err != nil {
		return err
	}
	if err := store.Merge(imported); err != nil {
		return fmt.Errorf("merge into %s: %w", target, err)
	}
	if err := store.Save(ctx, target); err != nil {
		return fmt.Errorf("save %s: %w", target, err)
	}

	logger.Success("Recorded %d files (%d lines, %d arcs) into %s", stats.Files, stats.Lines, stats.Arcs, target)
	return nil
}

// loadOrNew loads the data file at path, or returns an empty store when
// there is none yet.
func loadOrNew(ctx context.Context, path string) (*data.Store, error) {
	store, err := data.Load(ctx, path)
	if errors.Is(err, os.ErrNotExist) {
		return data.NewStore(data.LinesMode), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return store, nil
}

// parallelName returns a per-process data file name next to base.
func parallelName(base string) string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "localhost"
	}
	return fmt.Sprintf("%s.%s.%d.%s", base, host, os.Getpid(), uuid.NewString()[:8])
}
