package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/jupierce/source-coverage/pkg/config"
	"github.com/jupierce/source-coverage/pkg/log"
	"github.com/jupierce/source-coverage/pkg/report"
)

// Exit statuses.
const (
	exitOK        = 0
	exitError     = 1
	exitFailUnder = 2
)

// globalOptions are the persistent flags shared by every subcommand.
type globalOptions struct {
	dataFile   string
	configPath string
	verbosity  string
	logDir     string
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:   "srccov",
		Short: "Measure and report Go source coverage",
		Long: `srccov keeps a data file of executed lines and arcs and reports
per-file statement and branch coverage from it.

A typical session:

  1. import    Record a Go cover profile or a facts file into the data file.
  2. combine   Merge per-worker data files written with --parallel.
  3. report    Print the coverage summary table.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.dataFile, "data-file", "", "Data file to read and write (default from config, else .srccov.db)")
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Configuration file (default ./"+config.DefaultFileName+" if present)")
	cmd.PersistentFlags().StringVar(&opts.verbosity, "verbosity", "info", "Log verbosity (error, info, debug, trace)")
	cmd.PersistentFlags().StringVar(&opts.logDir, "log-dir", "", "Also write logs to a timestamped file in this directory")

	cmd.AddCommand(
		newImportCmd(opts),
		newCombineCmd(opts),
		newReportCmd(opts),
		newExportCmd(opts),
		newEraseCmd(opts),
		newDebugCmd(opts),
	)
	return cmd
}

// loadConfig reads the configuration and applies the --data-file override.
func (o *globalOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(o.configPath, ".")
	if err != nil {
		return nil, err
	}
	if o.dataFile != "" {
		cfg.DataFile = o.dataFile
	}
	return cfg, nil
}

// newLogger creates a logger writing to the command's streams.
func (o *globalOptions) newLogger(cmd *cobra.Command) (*log.Logger, error) {
	level, err := log.ParseLevel(o.verbosity)
	if err != nil {
		return nil, err
	}
	logger, err := log.NewWithWriters(level, o.logDir, cmd.OutOrStdout(), cmd.ErrOrStderr())
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	return logger, nil
}

// exitCode maps a command error to the process exit status.
func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	var failUnder *report.FailUnderError
	if errors.As(err, &failUnder) {
		return exitFailUnder
	}
	return exitError
}

// run executes the command line and returns the exit status.
func run(args []string, stdout, stderr io.Writer) int {
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.Execute()
	var failUnder *report.FailUnderError
	switch {
	case err == nil:
	case errors.As(err, &failUnder), errors.Is(err, report.ErrNoData):
		fmt.Fprintln(stderr, err)
	default:
		fmt.Fprintf(stderr, "Error: %v\n", err)
	}
	return exitCode(err)
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}
