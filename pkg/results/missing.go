package results

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/jupierce/source-coverage/pkg/data"
)

type missingItem struct {
	line int
	dest int
	text string
}

// MissingFormatted renders the missing lines as comma-separated runs over
// the statement sequence ("1-3, 7"). With branches, the missing arcs of
// partial lines follow as "4->6" or "4->exit", except those that lead to a
// missing line. Items are ordered by line.
func (fc *FileCoverage) MissingFormatted(branches bool) string {
	var items []missingItem
	for _, r := range lineRanges(fc.Statements, intSet(fc.Missing)) {
		text := strconv.Itoa(r[0])
		if r[1] != r[0] {
			text += "-" + strconv.Itoa(r[1])
		}
		items = append(items, missingItem{line: r[0], text: text})
	}

	if branches && fc.HasArcs {
		missing := intSet(fc.Missing)
		for _, line := range fc.PartialLines {
			for _, a := range fc.MissingArcsFrom(line) {
				if _, ok := missing[a.To]; ok {
					continue
				}
				items = append(items, missingItem{line: line, dest: exitLast(a), text: a.String()})
			}
		}
	}

	sort.SliceStable(items, func(i, j int) bool {
		if items[i].line != items[j].line {
			return items[i].line < items[j].line
		}
		return items[i].dest < items[j].dest
	})

	texts := make([]string, len(items))
	for i, it := range items {
		texts[i] = it.text
	}
	return strings.Join(texts, ", ")
}

// lineRanges groups the missing statements into runs of consecutive
// statements; lines that are not statements do not break a run.
func lineRanges(statements []int, missing map[int]struct{}) [][2]int {
	var ranges [][2]int
	start, end := 0, 0
	for _, s := range statements {
		if _, ok := missing[s]; ok {
			if start == 0 {
				start = s
			}
			end = s
			continue
		}
		if start != 0 {
			ranges = append(ranges, [2]int{start, end})
			start = 0
		}
	}
	if start != 0 {
		ranges = append(ranges, [2]int{start, end})
	}
	return ranges
}

func exitLast(a data.Arc) int {
	if a.IsExit() {
		return math.MaxInt
	}
	return a.To
}
