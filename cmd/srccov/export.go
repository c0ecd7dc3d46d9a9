package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/spf13/cobra"
	"google.golang.org/api/googleapi"

	"github.com/jupierce/source-coverage/pkg/analysis"
	"github.com/jupierce/source-coverage/pkg/data"
	"github.com/jupierce/source-coverage/pkg/files"
	"github.com/jupierce/source-coverage/pkg/log"
	"github.com/jupierce/source-coverage/pkg/profile"
	"github.com/jupierce/source-coverage/pkg/results"
)

// BigQuery row types

type FileCoverageRow struct {
	IngestionTime    time.Time `bigquery:"ingestion_time"`
	CollectionID     string    `bigquery:"collection_id"`
	SourceFilename   string    `bigquery:"source_filename"`
	Statements       int       `bigquery:"statements"`
	Excluded         int       `bigquery:"excluded"`
	Missing          int       `bigquery:"missing"`
	Branches         int       `bigquery:"branches"`
	PartialBranches  int       `bigquery:"partial_branches"`
	MissingBranches  int       `bigquery:"missing_branches"`
	PercentCovered   float64   `bigquery:"percent_covered"`
	MissingFormatted string    `bigquery:"missing_formatted"`
}

type LineCoverageRow struct {
	IngestionTime    time.Time `bigquery:"ingestion_time"`
	CollectionID     string    `bigquery:"collection_id"`
	SourceFilename   string    `bigquery:"source_filename"`
	SourceLine       string    `bigquery:"source_line"`
	SourceLineNumber int       `bigquery:"source_line_number"`
	LineExecutions   int       `bigquery:"line_executions"`
}

const (
	fileCoverageTable = "file_coverage"
	lineCoverageTable = "line_coverage"
	insertBatchSize   = 500
)

type bigqueryOptions struct {
	project      string
	dataset      string
	collection   string
	include      []string
	omit         []string
	ignoreErrors bool
}

func newExportCmd(g *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export coverage data",
		Long:  `Export coverage data for use outside srccov.`,
	}
	cmd.AddCommand(newExportFactsCmd(g), newExportBigQueryCmd(g))
	return cmd
}

func newExportFactsCmd(g *globalOptions) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "facts",
		Short: "Write the data file as a JSON facts file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			store, err := loadOrNew(cmd.Context(), cfg.DataFile)
			if err != nil {
				return err
			}

			var w io.Writer = cmd.OutOrStdout()
			if output != "" && output != "-" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("create %s: %w", output, err)
				}
				defer f.Close()
				w = f
			}
			return profile.ExportFacts(w, store)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "-", "File to write, - for stdout")
	return cmd
}

func newExportBigQueryCmd(g *globalOptions) *cobra.Command {
	opts := &bigqueryOptions{}

	cmd := &cobra.Command{
		Use:   "bigquery",
		Short: "Ingest per-file and per-line coverage into BigQuery",
		Long: `Ingest the data file into BigQuery.

Creates two tables in the dataset:
  - file_coverage: Per-file statement and branch numbers
  - line_coverage: Per-line execution state with source text

The dataset and tables are created if they don't exist. line_executions
is 1 for an executed statement, 0 for a missing one and -1 for lines that
are not statements.`,
		Example: `  srccov export bigquery --project my-project --dataset coverage \
    --collection nightly-2024-05-01 --omit '*_test.go'`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExportBigQuery(cmd, g, opts)
		},
	}

	cmd.Flags().StringVar(&opts.project, "project", "", "GCP project ID (default from config)")
	cmd.Flags().StringVar(&opts.dataset, "dataset", "", "BigQuery dataset name (default from config)")
	cmd.Flags().StringVar(&opts.collection, "collection", "", "Collection ID to tag the rows with (required)")
	cmd.Flags().StringSliceVar(&opts.include, "include", nil, "Only export files matching these globs")
	cmd.Flags().StringSliceVar(&opts.omit, "omit", nil, "Omit files matching these globs")
	cmd.Flags().BoolVarP(&opts.ignoreErrors, "ignore-errors", "i", false, "Skip files without source or that do not parse")
	cmd.MarkFlagRequired("collection")

	return cmd
}

func runExportBigQuery(cmd *cobra.Command, g *globalOptions, opts *bigqueryOptions) error {
	cfg, err := g.loadConfig()
	if err != nil {
		return err
	}
	logger, err := g.newLogger(cmd)
	if err != nil {
		return err
	}
	defer logger.Close()

	project := firstNonEmpty(opts.project, cfg.BigQuery.Project)
	dataset := firstNonEmpty(opts.dataset, cfg.BigQuery.Dataset)
	if project == "" {
		return fmt.Errorf("a BigQuery project is required (--project or bigquery.project)")
	}

	ctx := cmd.Context()
	ingestionTime := time.Now().UTC()

	logger.Info("Ingesting coverage data for collection: %s", opts.collection)
	logger.Info("BigQuery target: %s.%s", project, dataset)

	store, err := data.Load(ctx, cfg.DataFile)
	if err != nil {
		return fmt.Errorf("load %s: %w", cfg.DataFile, err)
	}

	exclude, err := analysis.RegexExcluder(cfg.Report.ExcludeLines...)
	if err != nil {
		return err
	}
	include := opts.include
	if len(include) == 0 {
		include = cfg.Report.Include
	}
	omit := opts.omit
	if len(omit) == 0 {
		omit = cfg.Report.Omit
	}

	rb := &rowBuilder{
		Store:         store,
		Analyzer:      analysis.NewCache(&analysis.GoAnalyzer{Exclude: exclude}),
		Source:        results.FSLoader{},
		Selector:      files.Selector{Include: include, Omit: omit, Root: cfg.Report.Root},
		CollectionID:  opts.collection,
		IngestionTime: ingestionTime,
		IgnoreErrors:  opts.ignoreErrors || cfg.Report.IgnoreErrors,
		Logger:        logger,
	}
	fileRows, lineRows, err := rb.Build()
	if err != nil {
		return err
	}
	logger.Info("Built %d file rows and %d line rows", len(fileRows), len(lineRows))

	bqClient, err := bigquery.NewClient(ctx, project)
	if err != nil {
		return fmt.Errorf("create BigQuery client: %w", err)
	}
	defer bqClient.Close()

	ds := bqClient.Dataset(dataset)
	if err := ensureDatasetAndTables(ctx, ds, logger); err != nil {
		return fmt.Errorf("setup BigQuery: %w", err)
	}

	if err := putBatches(ctx, ds.Table(fileCoverageTable).Inserter(), fileRows); err != nil {
		return fmt.Errorf("insert %s: %w", fileCoverageTable, err)
	}
	if err := putBatches(ctx, ds.Table(lineCoverageTable).Inserter(), lineRows); err != nil {
		return fmt.Errorf("insert %s: %w", lineCoverageTable, err)
	}

	logger.Success("Ingestion complete: %d %s rows, %d %s rows", len(fileRows), fileCoverageTable, len(lineRows), lineCoverageTable)
	return nil
}

// rowBuilder turns the measured files of a store into BigQuery rows.
type rowBuilder struct {
	Store         *data.Store
	Analyzer      analysis.Analyzer
	Source        results.SourceLoader
	Selector      files.Selector
	CollectionID  string
	IngestionTime time.Time
	IgnoreErrors  bool
	Logger        *log.Logger
}

// Build analyzes every selected file and returns one FileCoverageRow per
// file and one LineCoverageRow per source line.
func (b *rowBuilder) Build() ([]FileCoverageRow, []LineCoverageRow, error) {
	var fileRows []FileCoverageRow
	var lineRows []LineCoverageRow

	for _, file := range b.Selector.Select(b.Store.MeasuredFiles()) {
		src, fc, err := b.analyze(file)
		if err != nil {
			if b.IgnoreErrors {
				b.Logger.Warning("Skipping %s: %v", file, err)
				continue
			}
			return nil, nil, err
		}
		name := files.RelativeName(file, b.Selector.Root)
		n := fc.Numbers

		fileRows = append(fileRows, FileCoverageRow{
			IngestionTime:    b.IngestionTime,
			CollectionID:     b.CollectionID,
			SourceFilename:   name,
			Statements:       n.NStatements,
			Excluded:         n.NExcluded,
			Missing:          n.NMissing,
			Branches:         n.NBranches,
			PartialBranches:  n.NPartialBranches,
			MissingBranches:  n.NMissingBranches,
			PercentCovered:   n.PcCovered(),
			MissingFormatted: fc.MissingFormatted(fc.HasArcs),
		})

		state := lineStates(fc)
		for i, text := range strings.Split(strings.TrimSuffix(string(src), "\n"), "\n") {
			lineNum := i + 1
			executions, ok := state[lineNum]
			if !ok {
				executions = -1
			}
			lineRows = append(lineRows, LineCoverageRow{
				IngestionTime:    b.IngestionTime,
				CollectionID:     b.CollectionID,
				SourceFilename:   name,
				SourceLine:       text,
				SourceLineNumber: lineNum,
				LineExecutions:   executions,
			})
		}
	}
	return fileRows, lineRows, nil
}

// analyze reads the source of file once and computes its coverage from it.
func (b *rowBuilder) analyze(file files.FileKey) ([]byte, *results.FileCoverage, error) {
	src, err := b.Source.Load(file)
	if err != nil {
		return nil, nil, &results.NoSourceError{File: file, Err: err}
	}
	static, err := b.Analyzer.Analyze(src, string(file))
	if err != nil {
		return nil, nil, err
	}
	return src, results.Analyze(file, static, b.Store), nil
}

// lineStates maps each statement line to 1 when executed and 0 when missing.
func lineStates(fc *results.FileCoverage) map[int]int {
	state := make(map[int]int, len(fc.Statements))
	for _, l := range fc.Executed {
		state[l] = 1
	}
	for _, l := range fc.Missing {
		state[l] = 0
	}
	return state
}

func putBatches[T any](ctx context.Context, inserter *bigquery.Inserter, rows []T) error {
	for start := 0; start < len(rows); start += insertBatchSize {
		end := min(start+insertBatchSize, len(rows))
		savers := make([]*T, 0, end-start)
		for j := start; j < end; j++ {
			savers = append(savers, &rows[j])
		}
		if err := inserter.Put(ctx, savers); err != nil {
			return fmt.Errorf("batch at offset %d: %w", start, err)
		}
	}
	return nil
}

// ensureDatasetAndTables creates the dataset and tables if they don't exist.
func ensureDatasetAndTables(ctx context.Context, ds *bigquery.Dataset, logger *log.Logger) error {
	if err := ds.Create(ctx, &bigquery.DatasetMetadata{}); err != nil {
		if !isAlreadyExists(err) {
			return fmt.Errorf("create dataset: %w", err)
		}
	} else {
		logger.Info("Created dataset %s", ds.DatasetID)
	}

	tables := []struct {
		name     string
		schema   bigquery.Schema
		clusters []string
	}{
		{
			name: fileCoverageTable,
			schema: bigquery.Schema{
				{Name: "ingestion_time", Type: bigquery.TimestampFieldType, Required: true},
				{Name: "collection_id", Type: bigquery.StringFieldType, Required: true},
				{Name: "source_filename", Type: bigquery.StringFieldType, Required: true},
				{Name: "statements", Type: bigquery.IntegerFieldType, Required: true},
				{Name: "excluded", Type: bigquery.IntegerFieldType, Required: true},
				{Name: "missing", Type: bigquery.IntegerFieldType, Required: true},
				{Name: "branches", Type: bigquery.IntegerFieldType, Required: true},
				{Name: "partial_branches", Type: bigquery.IntegerFieldType, Required: true},
				{Name: "missing_branches", Type: bigquery.IntegerFieldType, Required: true},
				{Name: "percent_covered", Type: bigquery.FloatFieldType, Required: true},
				{Name: "missing_formatted", Type: bigquery.StringFieldType},
			},
			clusters: []string{"collection_id", "source_filename"},
		},
		{
			name: lineCoverageTable,
			schema: bigquery.Schema{
				{Name: "ingestion_time", Type: bigquery.TimestampFieldType, Required: true},
				{Name: "collection_id", Type: bigquery.StringFieldType, Required: true},
				{Name: "source_filename", Type: bigquery.StringFieldType, Required: true},
				{Name: "source_line", Type: bigquery.StringFieldType},
				{Name: "source_line_number", Type: bigquery.IntegerFieldType, Required: true},
				{Name: "line_executions", Type: bigquery.IntegerFieldType, Required: true},
			},
			clusters: []string{"collection_id", "source_filename"},
		},
	}

	for _, t := range tables {
		err := ds.Table(t.name).Create(ctx, &bigquery.TableMetadata{
			Schema: t.schema,
			TimePartitioning: &bigquery.TimePartitioning{
				Field: "ingestion_time",
			},
			Clustering: &bigquery.Clustering{
				Fields: t.clusters,
			},
		})
		if err != nil {
			if !isAlreadyExists(err) {
				return fmt.Errorf("create %s table: %w", t.name, err)
			}
			continue
		}
		logger.Info("Created table %s", t.name)
	}
	return nil
}

func isAlreadyExists(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusConflict {
		return true
	}
	return strings.Contains(err.Error(), "Already Exists") || strings.Contains(err.Error(), "alreadyExists")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
