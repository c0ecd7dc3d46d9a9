package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jupierce/source-coverage/pkg/data"
)

type combineOptions struct {
	appendData bool
	keep       bool
	workers    int
}

func newCombineCmd(g *globalOptions) *cobra.Command {
	opts := &combineOptions{}

	cmd := &cobra.Command{
		Use:   "combine [data files...]",
		Short: "Merge parallel data files into the data file",
		Long: `Combine merges data files into one. Without arguments it picks up every
"<data file>.*" written by "import --parallel". The result replaces the
data file unless --append is given. Combined files are removed unless
--keep is given.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCombine(cmd, g, opts, args)
		},
	}

	cmd.Flags().BoolVarP(&opts.appendData, "append", "a", false, "Add to the existing data file instead of replacing it")
	cmd.Flags().BoolVar(&opts.keep, "keep", false, "Keep the combined data files")
	cmd.Flags().IntVar(&opts.workers, "max-concurrency", 0, "Maximum data files loaded at once (default from config)")

	return cmd
}

func runCombine(cmd *cobra.Command, g *globalOptions, opts *combineOptions, args []string) error {
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

	paths := args
	if len(paths) == 0 {
		if paths, err = data.FindParallelFiles(cfg.DataFile); err != nil {
			return err
		}
	}
	if len(paths) == 0 {
		logger.Info("No data files to combine.")
		return nil
	}

	workers := opts.workers
	if workers == 0 {
		workers = cfg.Run.Workers
	}

	logger.Progress("Combining %d data files", len(paths))
	combined, err := data.Combine(ctx, paths, workers)
	if err != nil {
		return fmt.Errorf("combine: %w", err)
	}

	if opts.appendData {
		existing, err := loadOrNew(ctx, cfg.DataFile)
		if err != nil {
			return err
		}
		if err := existing.Merge(combined); err != nil {
			return fmt.Errorf("merge into %s: %w", cfg.DataFile, err)
		}
		combined = existing
	}

	if err := combined.Save(ctx, cfg.DataFile); err != nil {
		return fmt.Errorf("save %s: %w", cfg.DataFile, err)
	}

	if !opts.keep {
		for _, p := range paths {
			if p == cfg.DataFile {
				continue
			}
			if err := data.Erase(p); err != nil {
				logger.Warning("Could not remove %s: %v", p, err)
			} else {
				logger.Debug("removed %s", p)
			}
		}
	}

	logger.Success("Combined %d data files into %s (%d files measured)", len(paths), cfg.DataFile, len(combined.MeasuredFiles()))
	return nil
}

