package report

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/jupierce/source-coverage/pkg/results"
)

// ErrNoData is returned when there is nothing at all to report.
var ErrNoData = errors.New("No data to report.")

// Layout selects the optional columns of a rendered report.
type Layout struct {
	Branches    bool
	ShowMissing bool
}

// Columns returns the columns a report with this layout shows, in order.
func (l Layout) Columns() []Column {
	cols := []Column{ColName, ColStmts, ColMiss}
	if l.Branches {
		cols = append(cols, ColBranch, ColBrPart)
	}
	cols = append(cols, ColCover)
	if l.ShowMissing {
		cols = append(cols, ColMissing)
	}
	return cols
}

// cells renders the values of one row; fc is nil for the totals.
func (l Layout) cells(name string, n results.Numbers, fc *results.FileCoverage) map[Column]string {
	c := map[Column]string{
		ColName:   name,
		ColStmts:  strconv.Itoa(n.NStatements),
		ColMiss:   strconv.Itoa(n.NMissing),
		ColBranch: strconv.Itoa(n.NBranches),
		ColBrPart: strconv.Itoa(n.NPartialBranches),
		ColCover:  n.PcCoveredStr() + "%",
	}
	if fc != nil {
		c[ColMissing] = fc.MissingFormatted(l.Branches)
	}
	return c
}

// Text renders the summary table:
//
//	Name      Stmts   Miss  Cover
//	-----------------------------
//	main.go       4      1    75%
//	-----------------------------
//	TOTAL         4      1    75%
//
// followed by a note for each skip category. It returns ErrNoData when the
// aggregation is empty.
func Text(agg Aggregation, layout Layout) (string, error) {
	if agg.Empty() {
		return "", ErrNoData
	}

	cols := layout.Columns()
	var table []map[Column]string
	for _, r := range agg.Rows {
		table = append(table, layout.cells(r.Name, r.Numbers, r.Coverage))
	}
	total := layout.cells("TOTAL", agg.Totals, nil)
	all := append(append([]map[Column]string(nil), table...), total)

	widths := map[Column]int{}
	for _, col := range cols {
		widest := 0
		for _, c := range all {
			widest = max(widest, utf8.RuneCountInString(c[col]))
		}
		switch col {
		case ColName:
			widths[col] = max(widest, 5) + 1
		case ColCover:
			widths[col] = max(agg.Totals.PcStrWidth()+4, widest+1)
		case ColMissing:
		default:
			widths[col] = max(7, widest+1)
		}
	}

	line := func(c map[Column]string) string {
		var b strings.Builder
		for _, col := range cols {
			switch col {
			case ColName:
				fmt.Fprintf(&b, "%-*s", widths[col], c[col])
			case ColMissing:
				b.WriteString("   " + c[col])
			default:
				fmt.Fprintf(&b, "%*s", widths[col], c[col])
			}
		}
		return strings.TrimRight(b.String(), " ")
	}

	header := map[Column]string{}
	for _, col := range cols {
		header[col] = string(col)
	}
	head := line(header)
	rule := strings.Repeat("-", utf8.RuneCountInString(head))

	out := []string{head, rule}
	for _, c := range table {
		out = append(out, line(c))
	}
	out = append(out, rule, line(total))
	out = append(out, skipNotes(agg)...)
	return strings.Join(out, "\n") + "\n", nil
}

func skipNotes(agg Aggregation) []string {
	var notes []string
	switch {
	case agg.SkippedCovered == 1:
		notes = append(notes, "", "1 file skipped due to complete coverage.")
	case agg.SkippedCovered > 1:
		notes = append(notes, "", fmt.Sprintf("%d files skipped due to complete coverage.", agg.SkippedCovered))
	}
	switch {
	case agg.SkippedEmpty == 1:
		notes = append(notes, "", "1 empty file skipped.")
	case agg.SkippedEmpty > 1:
		notes = append(notes, "", fmt.Sprintf("%d empty files skipped.", agg.SkippedEmpty))
	}
	return notes
}
