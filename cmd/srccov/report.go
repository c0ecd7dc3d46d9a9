package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jupierce/source-coverage/pkg/analysis"
	"github.com/jupierce/source-coverage/pkg/config"
	"github.com/jupierce/source-coverage/pkg/files"
	"github.com/jupierce/source-coverage/pkg/report"
)

type reportOptions struct {
	showMissing  bool
	skipCovered  bool
	skipEmpty    bool
	sort         string
	precision    int
	failUnder    string
	ignoreErrors bool
	include      []string
	omit         []string
	format       string
	root         string
}

func newReportCmd(g *globalOptions) *cobra.Command {
	opts := &reportOptions{}

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print the coverage summary",
		Long: `Report prints one row per measured file with its statement and, for arc
data, branch counts and the resulting coverage percentage, followed by the
total. Flags override the report section of the configuration file.

Exits with status 2 when the total is below --fail-under.`,
		Example: `  # Summary with missing lines, lowest coverage first
  srccov report --show-missing --sort cover

  # Gate CI on 80% total coverage, hiding fully covered files
  srccov report --skip-covered --fail-under 80

  # Markdown for a pull request comment
  srccov report --format markdown --omit '*_test.go'`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReport(cmd, g, opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.showMissing, "show-missing", "m", false, "Show line numbers of statements and branches that were not executed")
	cmd.Flags().BoolVar(&opts.skipCovered, "skip-covered", false, "Skip files with 100% coverage")
	cmd.Flags().BoolVar(&opts.skipEmpty, "skip-empty", false, "Skip files without statements")
	cmd.Flags().StringVar(&opts.sort, "sort", "", "Sort by column: name, stmts, miss, branch, brpart, cover; prefix with - for descending")
	cmd.Flags().IntVar(&opts.precision, "precision", 0, "Digits after the decimal point in percentages")
	cmd.Flags().StringVar(&opts.failUnder, "fail-under", "", "Fail when the total is below this percentage")
	cmd.Flags().BoolVarP(&opts.ignoreErrors, "ignore-errors", "i", false, "Skip files without source or that do not parse")
	cmd.Flags().StringSliceVar(&opts.include, "include", nil, "Only report files matching these globs")
	cmd.Flags().StringSliceVar(&opts.omit, "omit", nil, "Omit files matching these globs")
	cmd.Flags().StringVar(&opts.format, "format", "", "Output format: text or markdown")
	cmd.Flags().StringVar(&opts.root, "root", "", "Directory file names are shown relative to")

	return cmd
}

// applyFlags overrides rc with the flags given on the command line.
func (o *reportOptions) applyFlags(cmd *cobra.Command, rc *config.ReportConfig) error {
	flags := cmd.Flags()
	if flags.Changed("show-missing") {
		rc.ShowMissing = o.showMissing
	}
	if flags.Changed("skip-covered") {
		rc.SkipCovered = o.skipCovered
	}
	if flags.Changed("skip-empty") {
		rc.SkipEmpty = o.skipEmpty
	}
	if flags.Changed("sort") {
		rc.Sort = o.sort
	}
	if flags.Changed("precision") {
		if err := config.CheckPrecision(o.precision); err != nil {
			return err
		}
		rc.Precision = o.precision
	}
	if flags.Changed("fail-under") {
		f, err := config.ParseFailUnder(o.failUnder)
		if err != nil {
			return err
		}
		rc.FailUnder = f
	}
	if flags.Changed("ignore-errors") {
		rc.IgnoreErrors = o.ignoreErrors
	}
	if flags.Changed("include") {
		rc.Include = o.include
	}
	if flags.Changed("omit") {
		rc.Omit = o.omit
	}
	if flags.Changed("format") {
		rc.Format = o.format
	}
	if flags.Changed("root") {
		rc.Root = o.root
	}
	return nil
}

func runReport(cmd *cobra.Command, g *globalOptions, opts *reportOptions) error {
	cfg, err := g.loadConfig()
	if err != nil {
		return err
	}
	rc := cfg.Report
	if err := opts.applyFlags(cmd, &rc); err != nil {
		return err
	}

	logger, err := g.newLogger(cmd)
	if err != nil {
		return err
	}
	defer logger.Close()

	exclude, err := analysis.RegexExcluder(rc.ExcludeLines...)
	if err != nil {
		return &config.ConfigError{Field: "report.exclude_lines", Message: err.Error()}
	}

	store, err := loadOrNew(cmd.Context(), cfg.DataFile)
	if err != nil {
		return err
	}

	reporter := report.NewReporter(store, logger)
	reporter.Analyzer = analysis.NewCache(&analysis.GoAnalyzer{Exclude: exclude})

	res, err := reporter.Report(report.Config{
		Selector:     files.Selector{Include: rc.Include, Omit: rc.Omit, Root: rc.Root},
		ShowMissing:  rc.ShowMissing,
		SkipCovered:  rc.SkipCovered,
		SkipEmpty:    rc.SkipEmpty,
		Sort:         rc.Sort,
		Precision:    rc.Precision,
		FailUnder:    rc.FailUnder,
		IgnoreErrors: rc.IgnoreErrors,
		Format:       report.Format(rc.Format),
	})
	if res != nil {
		fmt.Fprint(cmd.OutOrStdout(), res.Text)
	}
	return err
}
