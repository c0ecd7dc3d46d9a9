// Package report folds per-file coverage into rows and totals and renders
// the summary table.
package report

import (
	"github.com/jupierce/source-coverage/pkg/results"
)

// FileResult is one analyzed file ready for aggregation.
type FileResult struct {
	Name     string
	Coverage *results.FileCoverage
}

// Row is a reported file with its Numbers at the report's precision.
type Row struct {
	Name     string
	Coverage *results.FileCoverage
	Numbers  results.Numbers
}

// Options controls aggregation.
type Options struct {
	SkipCovered bool
	SkipEmpty   bool
	Precision   int
}

// Aggregation is the outcome of folding files into rows and totals.
type Aggregation struct {
	Rows           []Row
	Totals         results.Numbers
	SkippedCovered int
	SkippedEmpty   int
}

// Aggregate applies the skip policies to files in order. A file without
// statements is dropped entirely when SkipEmpty is set; a fully covered file
// is left out of the rows when SkipCovered is set but still counts towards
// the totals.
func Aggregate(files []FileResult, opts Options) Aggregation {
	agg := Aggregation{Totals: results.Numbers{Precision: opts.Precision}}
	for _, f := range files {
		n := f.Coverage.Numbers
		n.Precision = opts.Precision

		switch {
		case opts.SkipEmpty && n.NStatements == 0:
			agg.SkippedEmpty++
		case opts.SkipCovered && n.NStatements > 0 && n.NMissing == 0 && n.NMissingBranches == 0:
			agg.SkippedCovered++
			agg.Totals = agg.Totals.Add(n)
		default:
			agg.Rows = append(agg.Rows, Row{Name: f.Name, Coverage: f.Coverage, Numbers: n})
			agg.Totals = agg.Totals.Add(n)
		}
	}
	return agg
}

// Empty reports whether there is nothing to show at all.
func (a Aggregation) Empty() bool {
	return len(a.Rows) == 0 && a.Totals.NStatements == 0 && a.SkippedCovered == 0 && a.SkippedEmpty == 0
}
