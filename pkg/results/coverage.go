// Package results combines recorded execution facts with static analysis
// into per-file coverage.
package results

import (
	"sort"

	"github.com/jupierce/source-coverage/pkg/analysis"
	"github.com/jupierce/source-coverage/pkg/data"
	"github.com/jupierce/source-coverage/pkg/files"
)

// FileCoverage is the coverage of one file, recomputed for every report.
type FileCoverage struct {
	File files.FileKey

	Statements []int
	Excluded   []int
	Executed   []int
	Missing    []int

	// Branch data, populated only when the store records arcs.
	HasArcs      bool
	PossibleArcs []data.Arc
	ExecutedArcs []data.Arc
	MissingArcs  []data.Arc
	// PartialLines are branch origins taken some ways but not all.
	PartialLines []int

	Numbers Numbers
}

// Analyze computes the coverage of file from its static facts and the
// executed facts in store.
func Analyze(file files.FileKey, static *analysis.StaticInfo, store *data.Store) *FileCoverage {
	fc := &FileCoverage{
		File:       file,
		Statements: append([]int(nil), static.Statements...),
		Excluded:   append([]int(nil), static.Excluded...),
		HasArcs:    store.HasArcs(),
	}

	ran := intSet(store.Lines(file))
	for _, l := range fc.Statements {
		if _, ok := ran[l]; ok {
			fc.Executed = append(fc.Executed, l)
		} else {
			fc.Missing = append(fc.Missing, l)
		}
	}

	fc.Numbers = Numbers{
		NFiles:      1,
		NStatements: len(fc.Statements),
		NExcluded:   len(fc.Excluded),
		NMissing:    len(fc.Missing),
	}

	if fc.HasArcs {
		fc.analyzeArcs(static.Arcs, store.Arcs(file))
	}
	return fc
}

func (fc *FileCoverage) analyzeArcs(possible, executed []data.Arc) {
	taken := make(map[data.Arc]struct{}, len(executed))
	for _, a := range executed {
		taken[a] = struct{}{}
	}

	fc.PossibleArcs = append([]data.Arc(nil), possible...)
	data.SortArcs(fc.PossibleArcs)

	exits := map[int]int{}
	takenFrom := map[int]int{}
	missingFrom := map[int]int{}
	for _, a := range fc.PossibleArcs {
		exits[a.From]++
		if _, ok := taken[a]; ok {
			fc.ExecutedArcs = append(fc.ExecutedArcs, a)
			takenFrom[a.From]++
		} else {
			fc.MissingArcs = append(fc.MissingArcs, a)
			missingFrom[a.From]++
		}
	}

	for from, n := range exits {
		if n < 2 {
			continue
		}
		fc.Numbers.NBranches += n
		fc.Numbers.NMissingBranches += missingFrom[from]
		if missingFrom[from] > 0 && takenFrom[from] > 0 {
			fc.PartialLines = append(fc.PartialLines, from)
		}
	}
	sort.Ints(fc.PartialLines)
	fc.Numbers.NPartialBranches = len(fc.PartialLines)
}

// MissingArcsFrom returns the missing arcs leaving line.
func (fc *FileCoverage) MissingArcsFrom(line int) []data.Arc {
	var out []data.Arc
	for _, a := range fc.MissingArcs {
		if a.From == line {
			out = append(out, a)
		}
	}
	return out
}

func intSet(lines []int) map[int]struct{} {
	s := make(map[int]struct{}, len(lines))
	for _, l := range lines {
		s[l] = struct{}{}
	}
	return s
}
