// Package analysis turns source text into the static facts coverage is
// measured against: which lines are statements, which are excluded, and
// which arcs between lines the control flow permits.
package analysis

import (
	"fmt"

	"github.com/jupierce/source-coverage/pkg/data"
)

// StaticInfo is what an analyzer knows about one file without running it.
// Line numbers are normalised: a statement spanning several physical lines
// is reported on its first one. Excluded lines never appear in Statements.
type StaticInfo struct {
	Statements []int
	Excluded   []int
	Arcs       []data.Arc
}

// Analyzer produces StaticInfo for a file's source. Implementations must be
// safe to call repeatedly.
type Analyzer interface {
	Analyze(src []byte, filename string) (*StaticInfo, error)
}

// ParseError is returned when source cannot be parsed.
type ParseError struct {
	Filename string
	Message  string
	Line     int
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("Couldn't parse '%s' as Go source: '%s' at line %d", e.Filename, e.Message, e.Line)
}
