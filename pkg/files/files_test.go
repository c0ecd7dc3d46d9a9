package files

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonical(t *testing.T) {
	t.Parallel()

	abs, err := filepath.Abs("b.go")
	require.NoError(t, err)
	assert.Equal(t, FileKey(abs), canonical("a/../b.go", false))

	assert.Equal(t, FileKey("/no/such/dir/main.go"), canonical("/No/Such/Dir/Main.go", true))
	assert.Equal(t, FileKey("/No/Such/Dir/Main.go"), canonical("/No/Such/Dir/Main.go", false))
}

func TestCanonical_FollowsSymlinks(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	target := filepath.Join(dir, "real.go")
	link := filepath.Join(dir, "link.go")
	require.NoError(t, os.WriteFile(target, []byte("package x\n"), 0o644))
	require.NoError(t, os.Symlink(target, link))

	assert.Equal(t, Canonical(target), Canonical(link))
	assert.True(t, Same(target, link))
	assert.True(t, Exists(Canonical(link)))
	assert.False(t, Exists(Canonical(filepath.Join(dir, "missing.go"))))
}

func TestRelativeName(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	inside := Canonical(filepath.Join(root, "pkg", "a.go"))

	assert.Equal(t, "pkg/a.go", RelativeName(inside, root))
	assert.Equal(t, "/elsewhere/b.go", RelativeName("/elsewhere/b.go", root))
	assert.Equal(t, filepath.ToSlash(string(inside)), RelativeName(inside, ""))
}

func TestSelector_Match(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		selector Selector
		key      FileKey
		want     bool
	}{
		{"everything by default", Selector{}, "/src/pkg/a.go", true},
		{"omit by base name", Selector{Omit: []string{"*_test.go"}}, "/src/pkg/a_test.go", false},
		{"omit leaves others", Selector{Omit: []string{"*_test.go"}}, "/src/pkg/a.go", true},
		{"include by directory", Selector{Include: []string{"/src/pkg/*"}}, "/src/pkg/a.go", true},
		{"include excludes the rest", Selector{Include: []string{"/src/pkg/*"}}, "/src/cmd/main.go", false},
		{"star crosses directories", Selector{Include: []string{"/src/*.go"}}, "/src/pkg/deep/a.go", true},
		{"omit wins over include", Selector{Include: []string{"/src/*"}, Omit: []string{"*/gen/*"}}, "/src/gen/x.go", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.selector.Match(tt.key))
		})
	}
}

func TestSelector_Select(t *testing.T) {
	t.Parallel()

	s := Selector{Omit: []string{"*_test.go"}, Root: "/src"}
	got := s.Select([]FileKey{"/src/pkg/a.go", "/src/pkg/a_test.go", "/src/cmd/main.go", "/other/x.go"})
	assert.Equal(t, []FileKey{"/other/x.go", "/src/cmd/main.go", "/src/pkg/a.go"}, got)
}
