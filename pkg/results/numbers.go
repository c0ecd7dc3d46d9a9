package results

import (
	"math"
	"strconv"
)

// Numbers is the numeric summary of one file or of a total.
type Numbers struct {
	// Precision is the number of fractional digits percentages display with.
	Precision int

	NFiles           int
	NStatements      int
	NExcluded        int
	NMissing         int
	NBranches        int
	NPartialBranches int
	NMissingBranches int
}

// NExecuted is the number of executed statements.
func (n Numbers) NExecuted() int { return n.NStatements - n.NMissing }

// NExecutedBranches is the number of executed branch arcs.
func (n Numbers) NExecutedBranches() int { return n.NBranches - n.NMissingBranches }

// Add sums two Numbers elementwise. The result keeps n's precision.
func (n Numbers) Add(o Numbers) Numbers {
	return Numbers{
		Precision:        n.Precision,
		NFiles:           n.NFiles + o.NFiles,
		NStatements:      n.NStatements + o.NStatements,
		NExcluded:        n.NExcluded + o.NExcluded,
		NMissing:         n.NMissing + o.NMissing,
		NBranches:        n.NBranches + o.NBranches,
		NPartialBranches: n.NPartialBranches + o.NPartialBranches,
		NMissingBranches: n.NMissingBranches + o.NMissingBranches,
	}
}

// RatioCovered returns the covered and coverable counts, statements and
// branch arcs together.
func (n Numbers) RatioCovered() (covered, total int) {
	return n.NExecuted() + n.NExecutedBranches(), n.NStatements + n.NBranches
}

// PcCovered is the percentage covered. Nothing to cover counts as 100.
func (n Numbers) PcCovered() float64 {
	covered, total := n.RatioCovered()
	if total == 0 {
		return 100.0
	}
	return 100.0 * float64(covered) / float64(total)
}

// DisplayCovered is PcCovered rounded half-to-even at Precision, except
// that a value that is neither 0 nor 100 never rounds to either.
func (n Numbers) DisplayCovered() float64 {
	pc := n.PcCovered()
	step := math.Pow(10, -float64(n.Precision))
	switch {
	case pc > 0 && pc < step:
		return step
	case pc > 100-step && pc < 100:
		return 100 - step
	}
	return RoundHalfEven(pc, n.Precision)
}

// PcCoveredStr renders DisplayCovered with Precision fractional digits and
// no percent sign.
func (n Numbers) PcCoveredStr() string {
	return strconv.FormatFloat(n.DisplayCovered(), 'f', n.Precision, 64)
}

// PcStrWidth is the width of the widest possible PcCoveredStr.
func (n Numbers) PcStrWidth() int {
	if n.Precision > 0 {
		return 4 + n.Precision
	}
	return 3
}

// RoundHalfEven rounds v to precision fractional digits, ties to even.
func RoundHalfEven(v float64, precision int) float64 {
	scale := math.Pow(10, float64(precision))
	return math.RoundToEven(v*scale) / scale
}
