package report

import (
	"errors"
	"fmt"

	"github.com/jupierce/source-coverage/pkg/analysis"
	"github.com/jupierce/source-coverage/pkg/data"
	"github.com/jupierce/source-coverage/pkg/files"
	"github.com/jupierce/source-coverage/pkg/log"
	"github.com/jupierce/source-coverage/pkg/results"
)

// Format names an output format.
type Format string

const (
	FormatText     Format = "text"
	FormatMarkdown Format = "markdown"
)

// ParseFormat validates an output format name.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case "", FormatText:
		return FormatText, nil
	case FormatMarkdown:
		return FormatMarkdown, nil
	}
	return "", fmt.Errorf("invalid report format: %s (valid: text, markdown)", s)
}

// Config is everything one report invocation needs to know.
type Config struct {
	Selector     files.Selector
	ShowMissing  bool
	SkipCovered  bool
	SkipEmpty    bool
	Sort         string
	Precision    int
	FailUnder    float64
	IgnoreErrors bool
	Format       Format
}

// Result is the outcome of a report: the rendered text plus the totals it
// was computed from.
type Result struct {
	Text    string
	Totals  results.Numbers
	Percent float64
}

// Reporter produces reports from a fact store.
type Reporter struct {
	Store    *data.Store
	Analyzer analysis.Analyzer
	Source   results.SourceLoader
	Logger   *log.Logger
}

// NewReporter creates a Reporter reading sources from disk and analyzing
// them as Go, with analysis results cached per file.
func NewReporter(store *data.Store, logger *log.Logger) *Reporter {
	return &Reporter{
		Store:    store,
		Analyzer: analysis.NewCache(analysis.NewGoAnalyzer()),
		Source:   results.FSLoader{},
		Logger:   logger,
	}
}

// Report runs one report over a snapshot of the store. Configuration errors
// fail before any file is analyzed. A file without source or that does not
// parse aborts the report unless cfg.IgnoreErrors is set, in which case it
// is skipped with a warning issued once per kind of problem. When the total
// misses cfg.FailUnder, the full Result is returned together with a
// *FailUnderError.
func (r *Reporter) Report(cfg Config) (*Result, error) {
	snap := r.Store.Snapshot()
	layout := Layout{Branches: snap.HasArcs(), ShowMissing: cfg.ShowMissing}

	key, err := ParseSortKey(cfg.Sort, layout.Branches)
	if err != nil {
		return nil, err
	}
	format, err := ParseFormat(string(cfg.Format))
	if err != nil {
		return nil, err
	}

	if snap.Empty() {
		r.Logger.WarnOnce("no-data-collected", "No data was collected.")
		return nil, ErrNoData
	}

	var analyzed []FileResult
	for _, file := range cfg.Selector.Select(snap.MeasuredFiles()) {
		fc, err := results.AnalyzeFile(file, r.Source, r.Analyzer, snap)
		if err != nil {
			if skip := r.downgrade(err, cfg.IgnoreErrors); skip {
				continue
			}
			return nil, err
		}
		r.Logger.Debug("analyzed %s: %d statements, %d missing", file, fc.Numbers.NStatements, fc.Numbers.NMissing)
		analyzed = append(analyzed, FileResult{Name: files.RelativeName(file, cfg.Selector.Root), Coverage: fc})
	}

	agg := Aggregate(analyzed, Options{
		SkipCovered: cfg.SkipCovered,
		SkipEmpty:   cfg.SkipEmpty,
		Precision:   cfg.Precision,
	})
	SortRows(agg.Rows, key)

	var text string
	switch format {
	case FormatMarkdown:
		text, err = Markdown(agg, layout)
	default:
		text, err = Text(agg, layout)
	}
	if err != nil {
		return nil, err
	}

	res := &Result{Text: text, Totals: agg.Totals, Percent: agg.Totals.PcCovered()}
	if err := FailUnder(agg.Totals, cfg.FailUnder); err != nil {
		return res, err
	}
	return res, nil
}

// downgrade turns a per-file error into a warning when ignoring errors and
// reports whether the file should be skipped.
func (r *Reporter) downgrade(err error, ignore bool) bool {
	if !ignore {
		return false
	}
	var noSource *results.NoSourceError
	var parseErr *analysis.ParseError
	switch {
	case errors.As(err, &noSource):
		r.Logger.WarnOnce("no-source", "%s", err.Error())
	case errors.As(err, &parseErr):
		r.Logger.WarnOnce("couldnt-parse", "%s", err.Error())
	default:
		return false
	}
	return true
}
