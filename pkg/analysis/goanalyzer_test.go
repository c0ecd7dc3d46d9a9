package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jupierce/source-coverage/pkg/data"
)

func analyzeGo(t *testing.T, src string) *StaticInfo {
	t.Helper()
	info, err := NewGoAnalyzer().Analyze([]byte(src), "sample.go")
	require.NoError(t, err)
	return info
}

func TestGoAnalyzer_IfWithoutElse(t *testing.T) {
	t.Parallel()

	info := analyzeGo(t, `package p

func f(x int) int {
	y := 0
	if x > 0 {
		y = 1
	}
	return y
}
`)

	assert.Equal(t, []int{4, 5, 6, 8}, info.Statements)
	assert.Empty(t, info.Excluded)
	assert.Equal(t, []data.Arc{{From: -3, To: 4}, {From: 4, To: 5}, {From: 5, To: 6}, {From: 5, To: 8}, {From: 6, To: 8}, {From: 8, To: -3}}, info.Arcs)
}

func TestGoAnalyzer_LoopWithContinue(t *testing.T) {
	t.Parallel()

	info := analyzeGo(t, `package p

func g(n int) int {
	s := 0
	for i := 0; i < n; i++ {
		if i == 2 {
			continue
		}
		s += i
	}
	return s
}
`)

	assert.Equal(t, []int{4, 5, 6, 7, 9, 11}, info.Statements)
	assert.Equal(t, []data.Arc{
		{From: -3, To: 4}, {From: 4, To: 5}, {From: 5, To: 6}, {From: 5, To: 11}, {From: 6, To: 7}, {From: 6, To: 9}, {From: 7, To: 5}, {From: 9, To: 5}, {From: 11, To: -3},
	}, info.Arcs)
}

func TestGoAnalyzer_SwitchWithFallthrough(t *testing.T) {
	t.Parallel()

	info := analyzeGo(t, `package p

func h(k int) string {
	switch k {
	case 1:
		return "one"
	case 2:
		fallthrough
	default:
		k++
	}
	return "many"
}
`)

	assert.Equal(t, []int{4, 6, 8, 10, 12}, info.Statements)
	assert.Equal(t, []data.Arc{
		{From: -3, To: 4}, {From: 4, To: 6}, {From: 4, To: 8}, {From: 4, To: 10}, {From: 6, To: -3}, {From: 8, To: 10}, {From: 10, To: 12}, {From: 12, To: -3},
	}, info.Arcs)
}

func TestGoAnalyzer_SwitchWithoutDefaultFallsPast(t *testing.T) {
	t.Parallel()

	info := analyzeGo(t, `package p

func k(v int) {
	switch v {
	case 1:
		println("one")
	}
	println("done")
}
`)

	assert.Equal(t, []data.Arc{{From: -3, To: 4}, {From: 4, To: 6}, {From: 4, To: 8}, {From: 6, To: 8}, {From: 8, To: -3}}, info.Arcs)
}

func TestGoAnalyzer_PanicExits(t *testing.T) {
	t.Parallel()

	info := analyzeGo(t, `package p

func m(ok bool) {
	if !ok {
		panic("no")
	}
}
`)

	assert.Equal(t, []data.Arc{{From: -3, To: 4}, {From: 4, To: -3}, {From: 4, To: 5}, {From: 5, To: -3}}, info.Arcs)
}

func TestGoAnalyzer_PragmaExcludesStatementAndFunction(t *testing.T) {
	t.Parallel()

	info := analyzeGo(t, `package p

func a(x int) int {
	if x > 0 { // pragma: no cover
		return 1
	}
	return 0
}

func b() { // pragma: no cover
	println("b")
}
`)

	assert.Equal(t, []int{7}, info.Statements)
	assert.Equal(t, []int{4, 5, 11}, info.Excluded)
	assert.Equal(t, []data.Arc{{From: 7, To: -3}}, info.Arcs)
}

func TestGoAnalyzer_OneLineClosureAddsNoBranch(t *testing.T) {
	t.Parallel()

	info := analyzeGo(t, `package p

import "sort"

func f(xs []int) int {
	sort.Slice(xs, func(i, j int) bool { return xs[i] < xs[j] })
	return len(xs)
}
`)

	assert.Equal(t, []int{6, 7}, info.Statements)
	assert.Equal(t, []data.Arc{{From: -5, To: 6}, {From: 6, To: 7}, {From: 7, To: -5}}, info.Arcs)
}

func TestGoAnalyzer_MultiLineClosureKeepsItsFlow(t *testing.T) {
	t.Parallel()

	info := analyzeGo(t, `package p

func h() func() int {
	return func() int {
		return 1
	}
}
`)

	assert.Equal(t, []int{4, 5}, info.Statements)
	assert.Equal(t, []data.Arc{{From: -4, To: 5}, {From: -3, To: 4}, {From: 4, To: -3}, {From: 5, To: -4}}, info.Arcs)
}

func TestGoAnalyzer_MultiLineStatementReportsFirstLine(t *testing.T) {
	t.Parallel()

	info := analyzeGo(t, `package p

func n() int {
	return 1 +
		2 +
		3
}
`)

	assert.Equal(t, []int{4}, info.Statements)
}

func TestGoAnalyzer_NoFunctionsIsEmpty(t *testing.T) {
	t.Parallel()

	info := analyzeGo(t, `package p

const answer = 42

type T struct{ A int }
`)

	assert.Empty(t, info.Statements)
	assert.Empty(t, info.Arcs)
}

func TestGoAnalyzer_ParseError(t *testing.T) {
	t.Parallel()

	_, err := NewGoAnalyzer().Analyze([]byte("package p\n\nfunc {\n"), "broken.go")
	require.Error(t, err)

	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "broken.go", perr.Filename)
	assert.Equal(t, 3, perr.Line)
	assert.Contains(t, err.Error(), "Couldn't parse 'broken.go' as Go source: '")
	assert.Contains(t, err.Error(), "' at line 3")
}
