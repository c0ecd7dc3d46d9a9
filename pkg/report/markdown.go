package report

import (
	"bytes"
	"strings"

	"github.com/olekukonko/tablewriter"
)

// Markdown renders the same rows and totals as Text as a markdown table.
// The skip notes follow the table.
func Markdown(agg Aggregation, layout Layout) (string, error) {
	if agg.Empty() {
		return "", ErrNoData
	}

	cols := layout.Columns()
	header := make([]string, len(cols))
	aligns := make([]int, len(cols))
	for i, col := range cols {
		header[i] = string(col)
		aligns[i] = tablewriter.ALIGN_RIGHT
		if col == ColName || col == ColMissing {
			aligns[i] = tablewriter.ALIGN_LEFT
		}
	}

	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetHeader(header)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetBorders(tablewriter.Border{Left: true, Top: false, Right: true, Bottom: false})
	table.SetCenterSeparator("|")
	table.SetColumnAlignment(aligns)

	for _, r := range agg.Rows {
		table.Append(markdownRow(cols, layout.cells(escapeMarkdown(r.Name), r.Numbers, r.Coverage)))
	}
	total := layout.cells("**TOTAL**", agg.Totals, nil)
	total[ColStmts] = "**" + total[ColStmts] + "**"
	total[ColMiss] = "**" + total[ColMiss] + "**"
	total[ColCover] = "**" + total[ColCover] + "**"
	table.Append(markdownRow(cols, total))
	table.Render()

	out := buf.String()
	if notes := skipNotes(agg); len(notes) > 0 {
		out += strings.Join(notes, "\n") + "\n"
	}
	return out, nil
}

func markdownRow(cols []Column, cells map[Column]string) []string {
	row := make([]string, len(cols))
	for i, col := range cols {
		row[i] = cells[col]
	}
	return row
}

func escapeMarkdown(s string) string {
	return strings.NewReplacer("_", "\\_", "*", "\\*").Replace(s)
}
