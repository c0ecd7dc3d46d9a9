package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingAnalyzer struct {
	calls int
}

func (c *countingAnalyzer) Analyze(src []byte, filename string) (*StaticInfo, error) {
	c.calls++
	if string(src) == "broken" {
		return nil, &ParseError{Filename: filename, Message: "bad", Line: 1}
	}
	return &StaticInfo{Statements: []int{len(src)}}, nil
}

func TestCache_ReusesUnchangedContent(t *testing.T) {
	t.Parallel()

	inner := &countingAnalyzer{}
	c := NewCache(inner)

	first, err := c.Analyze([]byte("abc"), "/src/a.go")
	require.NoError(t, err)
	second, err := c.Analyze([]byte("abc"), "/src/a.go")
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, inner.calls)
}

func TestCache_ChangedFingerprintReplacesEntry(t *testing.T) {
	t.Parallel()

	inner := &countingAnalyzer{}
	c := NewCache(inner)

	old, err := c.Analyze([]byte("abc"), "/src/a.go")
	require.NoError(t, err)
	updated, err := c.Analyze([]byte("abcdef"), "/src/a.go")
	require.NoError(t, err)

	assert.Equal(t, 2, inner.calls)
	assert.Equal(t, []int{3}, old.Statements)
	assert.Equal(t, []int{6}, updated.Statements)
	assert.Equal(t, 1, c.Len())
}

func TestCache_DoesNotCacheParseErrors(t *testing.T) {
	t.Parallel()

	inner := &countingAnalyzer{}
	c := NewCache(inner)

	_, err := c.Analyze([]byte("broken"), "/src/a.go")
	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	_, err = c.Analyze([]byte("broken"), "/src/a.go")
	require.Error(t, err)

	assert.Equal(t, 2, inner.calls)
	assert.Equal(t, 0, c.Len())
}

func TestRegexExcluder(t *testing.T) {
	t.Parallel()

	exclude, err := RegexExcluder(DefaultExcludePattern, `debugOnly\(`)
	require.NoError(t, err)

	marked := exclude([]byte("a := 1\nb := 2 // PRAGMA: NO COVER\ndebugOnly()\nc := 3\n"))
	assert.Equal(t, map[int]struct{}{2: {}, 3: {}}, marked)

	_, err = RegexExcluder("(")
	require.Error(t, err)
}
