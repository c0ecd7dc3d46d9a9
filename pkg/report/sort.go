package report

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Column names a report column.
type Column string

const (
	ColName    Column = "Name"
	ColStmts   Column = "Stmts"
	ColMiss    Column = "Miss"
	ColBranch  Column = "Branch"
	ColBrPart  Column = "BrPart"
	ColCover   Column = "Cover"
	ColMissing Column = "Missing"
)

// SortKey orders report rows.
type SortKey struct {
	Column  Column
	Reverse bool
}

// InvalidSortKeyError is returned for a sort option that names no sortable
// column of the report.
type InvalidSortKeyError struct {
	Option string
}

func (e *InvalidSortKeyError) Error() string {
	return fmt.Sprintf("Invalid sorting option: '%s'", e.Option)
}

// ParseSortKey parses "[+|-]column". Column names are case-insensitive;
// Branch and BrPart are only valid when branches are reported. An empty
// option sorts by name.
func ParseSortKey(option string, branches bool) (SortKey, error) {
	name := option
	key := SortKey{Column: ColName}
	switch {
	case strings.HasPrefix(name, "-"):
		key.Reverse = true
		name = name[1:]
	case strings.HasPrefix(name, "+"):
		name = name[1:]
	}
	if name == "" {
		if option != "" {
			return SortKey{}, &InvalidSortKeyError{Option: option}
		}
		return key, nil
	}

	sortable := []Column{ColName, ColStmts, ColMiss, ColCover}
	if branches {
		sortable = append(sortable, ColBranch, ColBrPart)
	}
	for _, c := range sortable {
		if strings.EqualFold(name, string(c)) {
			key.Column = c
			return key, nil
		}
	}
	return SortKey{}, &InvalidSortKeyError{Option: option}
}

// SortRows orders rows by key. Equal values fall back to the name,
// ascending, in either direction.
func SortRows(rows []Row, key SortKey) {
	sort.SliceStable(rows, func(i, j int) bool {
		c := compareRows(rows[i], rows[j], key.Column)
		if c == 0 {
			return humanLess(rows[i].Name, rows[j].Name)
		}
		if key.Reverse {
			return c > 0
		}
		return c < 0
	})
}

func compareRows(a, b Row, col Column) int {
	switch col {
	case ColStmts:
		return compareInts(a.Numbers.NStatements, b.Numbers.NStatements)
	case ColMiss:
		return compareInts(a.Numbers.NMissing, b.Numbers.NMissing)
	case ColBranch:
		return compareInts(a.Numbers.NBranches, b.Numbers.NBranches)
	case ColBrPart:
		return compareInts(a.Numbers.NPartialBranches, b.Numbers.NPartialBranches)
	case ColCover:
		pa, pb := a.Numbers.PcCovered(), b.Numbers.PcCovered()
		switch {
		case pa < pb:
			return -1
		case pa > pb:
			return 1
		}
		return 0
	}
	switch {
	case humanLess(a.Name, b.Name):
		return -1
	case humanLess(b.Name, a.Name):
		return 1
	}
	return 0
}

func compareInts(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// humanLess compares names so that runs of digits compare as numbers:
// "file2.go" sorts before "file10.go".
func humanLess(a, b string) bool {
	ca, cb := chunks(a), chunks(b)
	for i := 0; i < len(ca) && i < len(cb); i++ {
		x, y := ca[i], cb[i]
		if x == y {
			continue
		}
		nx, errX := strconv.Atoi(x)
		ny, errY := strconv.Atoi(y)
		if errX == nil && errY == nil && nx != ny {
			return nx < ny
		}
		return x < y
	}
	return len(ca) < len(cb)
}

func chunks(s string) []string {
	var out []string
	start, prevDigit := 0, false
	for i, r := range s {
		digit := r >= '0' && r <= '9'
		if i > 0 && digit != prevDigit {
			out = append(out, s[start:i])
			start = i
		}
		prevDigit = digit
	}
	if start < len(s) {
		out = append(out, s[start:])
	}
	return out
}
