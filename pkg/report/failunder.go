package report

import (
	"fmt"
	"strconv"

	"github.com/jupierce/source-coverage/pkg/results"
)

// FailUnderError reports a total below the configured minimum.
type FailUnderError struct {
	Total     results.Numbers
	Threshold float64
}

func (e *FailUnderError) Error() string {
	return fmt.Sprintf("Coverage failure: total of %s is less than fail-under=%s",
		e.Total.PcCoveredStr(), strconv.FormatFloat(e.Threshold, 'f', e.Total.Precision, 64))
}

// ShouldFailUnder reports whether total, rounded to precision, is below
// threshold. A threshold of 100 is only met by exactly 100.
func ShouldFailUnder(total, threshold float64, precision int) bool {
	if threshold == 100 && total != 100 {
		return true
	}
	return results.RoundHalfEven(total, precision) < threshold
}

// FailUnder returns a *FailUnderError when totals miss threshold. A
// threshold of zero disables the check.
func FailUnder(totals results.Numbers, threshold float64) error {
	if threshold <= 0 {
		return nil
	}
	if ShouldFailUnder(totals.PcCovered(), threshold, totals.Precision) {
		return &FailUnderError{Total: totals, Threshold: threshold}
	}
	return nil
}
