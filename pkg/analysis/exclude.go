package analysis

import (
	"bytes"
	"fmt"
	"regexp"
)

// DefaultExcludePattern marks a line with "// pragma: no cover".
const DefaultExcludePattern = `(?i)//\s*pragma:\s*no\s*cover`

// ExcludePredicate returns the lines of src that are marked for exclusion.
type ExcludePredicate func(src []byte) map[int]struct{}

// RegexExcluder builds an ExcludePredicate matching each pattern against
// every source line.
func RegexExcluder(patterns ...string) (ExcludePredicate, error) {
	var res []*regexp.Regexp
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("compile exclude pattern %q: %w", p, err)
		}
		res = append(res, re)
	}
	return func(src []byte) map[int]struct{} {
		marked := map[int]struct{}{}
		for i, line := range bytes.Split(src, []byte("\n")) {
			for _, re := range res {
				if re.Match(line) {
					marked[i+1] = struct{}{}
					break
				}
			}
		}
		return marked
	}, nil
}
