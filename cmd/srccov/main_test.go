package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jupierce/source-coverage/pkg/data"
	"github.com/jupierce/source-coverage/pkg/report"
)

const demoSource = `package main

func main() {
	a := 1
	if a > 0 {
		a++
	}
	println(a)
}
`

// demoProfile executes every statement of demoSource except "a++".
const demoProfile = `mode: set
example.com/demo/main.go:3.13,5.12 2 1
example.com/demo/main.go:5.12,7.3 1 0
example.com/demo/main.go:7.3,8.12 1 1
`

type project struct {
	root     string
	dataFile string
	profile  string
}

func newProject(t *testing.T) project {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "go.mod"), []byte("module example.com/demo\n\ngo 1.22\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "main.go"), []byte(demoSource), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "cover.out"), []byte(demoProfile), 0o644))
	return project{
		root:     root,
		dataFile: filepath.Join(root, ".srccov.db"),
		profile:  filepath.Join(root, "cover.out"),
	}
}

func (p project) run(t *testing.T, args ...string) (code int, stdout, stderr string) {
	t.Helper()
	var out, errOut bytes.Buffer
	args = append(args, "--data-file", p.dataFile)
	code = run(args, &out, &errOut)
	return code, out.String(), errOut.String()
}

func (p project) importProfile(t *testing.T, extra ...string) {
	t.Helper()
	args := append([]string{"import", "--go-profile", p.profile, "--module-root", p.root}, extra...)
	code, _, stderr := p.run(t, args...)
	require.Equal(t, exitOK, code, stderr)
}

func TestImportAndReport(t *testing.T) {
	t.Parallel()
	p := newProject(t)
	p.importProfile(t)

	code, stdout, stderr := p.run(t, "report", "--root", p.root)
	require.Equal(t, exitOK, code, stderr)
	assert.Equal(t, strings.Join([]string{
		"Name      Stmts   Miss  Cover",
		"-----------------------------",
		"main.go       4      1    75%",
		"-----------------------------",
		"TOTAL         4      1    75%",
		"",
	}, "\n"), stdout)

	code, stdout, _ = p.run(t, "report", "--root", p.root, "--show-missing")
	require.Equal(t, exitOK, code)
	assert.Contains(t, stdout, "main.go       4      1    75%   6\n")
}

func TestReport_FailUnder(t *testing.T) {
	t.Parallel()
	p := newProject(t)
	p.importProfile(t)

	code, stdout, stderr := p.run(t, "report", "--root", p.root, "--fail-under", "80")
	assert.Equal(t, exitFailUnder, code)
	assert.Contains(t, stdout, "TOTAL         4      1    75%")
	assert.Equal(t, "Coverage failure: total of 75 is less than fail-under=80\n", stderr)

	code, _, _ = p.run(t, "report", "--root", p.root, "--fail-under", "75")
	assert.Equal(t, exitOK, code)
}

func TestReport_InvalidFlags(t *testing.T) {
	t.Parallel()
	p := newProject(t)
	p.importProfile(t)

	code, _, stderr := p.run(t, "report", "--fail-under", "150")
	assert.Equal(t, exitError, code)
	assert.Contains(t, stderr, "config error in field 'fail_under'")

	code, _, stderr = p.run(t, "report", "--precision", "11")
	assert.Equal(t, exitError, code)
	assert.Contains(t, stderr, "config error in field 'report.precision'")

	code, _, stderr = p.run(t, "report", "--sort", "size")
	assert.Equal(t, exitError, code)
	assert.Contains(t, stderr, "Invalid sorting option: 'size'")
}

func TestReport_NoData(t *testing.T) {
	t.Parallel()
	p := newProject(t)

	code, stdout, stderr := p.run(t, "report")
	assert.Equal(t, exitError, code)
	assert.Empty(t, stdout)
	assert.Contains(t, stderr, "Coverage warning: No data was collected. (no-data-collected)")
	assert.Contains(t, stderr, "No data to report.\n")
}

func TestImport_RequiresOneInput(t *testing.T) {
	t.Parallel()
	p := newProject(t)

	code, _, _ := p.run(t, "import")
	assert.Equal(t, exitError, code)

	code, _, _ = p.run(t, "import", "--go-profile", p.profile, "--facts", "x.json")
	assert.Equal(t, exitError, code)
}

func TestImport_FactsWithArcs(t *testing.T) {
	t.Parallel()
	p := newProject(t)
	facts := filepath.Join(p.root, "facts.json")
	require.NoError(t, os.WriteFile(facts, []byte(`{"mode": "arcs", "files": {"main.go": {"arcs": [[-3, 4], [4, 5], [5, 8], [8, -3]]}}}`), 0o644))

	code, _, stderr := p.run(t, "import", "--facts", facts, "--context", "e2e")
	require.Equal(t, exitOK, code, stderr)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	store, err := data.Load(ctx, p.dataFile)
	require.NoError(t, err)
	assert.True(t, store.HasArcs())
	assert.Equal(t, []string{"e2e"}, store.Contexts())

	code, stdout, stderr := p.run(t, "report", "--root", p.root)
	require.Equal(t, exitOK, code, stderr)
	assert.Contains(t, stdout, "Name      Stmts   Miss Branch BrPart  Cover")

	// A lines profile cannot be merged into an arcs data file.
	code, _, stderr = p.run(t, "import", "--go-profile", p.profile, "--module-root", p.root)
	assert.Equal(t, exitError, code)
	assert.Contains(t, stderr, "merge into")
}

func TestParallelImportCombine(t *testing.T) {
	t.Parallel()
	p := newProject(t)
	p.importProfile(t, "--parallel", "--context", "shard-1")
	p.importProfile(t, "--parallel", "--context", "shard-2")

	parallel, err := data.FindParallelFiles(p.dataFile)
	require.NoError(t, err)
	require.Len(t, parallel, 2)

	code, _, stderr := p.run(t, "combine")
	require.Equal(t, exitOK, code, stderr)

	parallel, err = data.FindParallelFiles(p.dataFile)
	require.NoError(t, err)
	assert.Empty(t, parallel)

	code, stdout, stderr := p.run(t, "debug", "data")
	require.Equal(t, exitOK, code, stderr)
	assert.Contains(t, stdout, "mode: lines\n")
	assert.Contains(t, stdout, "1 file:\n")
	assert.Contains(t, stdout, `contexts: "shard-1", "shard-2"`)
	assert.Equal(t, 2, strings.Count(stdout, "\nrun "))
}

func TestErase(t *testing.T) {
	t.Parallel()
	p := newProject(t)
	p.importProfile(t)
	p.importProfile(t, "--parallel")

	code, _, stderr := p.run(t, "erase")
	require.Equal(t, exitOK, code, stderr)

	_, err := os.Stat(p.dataFile)
	assert.True(t, os.IsNotExist(err))
	parallel, err := data.FindParallelFiles(p.dataFile)
	require.NoError(t, err)
	assert.Empty(t, parallel)
}

func TestExportFacts(t *testing.T) {
	t.Parallel()
	p := newProject(t)
	p.importProfile(t)

	code, stdout, stderr := p.run(t, "export", "facts")
	require.Equal(t, exitOK, code, stderr)
	assert.Contains(t, stdout, `"mode": "lines"`)
	assert.Contains(t, stdout, "main.go")
}

func TestExitCode(t *testing.T) {
	t.Parallel()

	assert.Equal(t, exitOK, exitCode(nil))
	assert.Equal(t, exitError, exitCode(errors.New("boom")))
	assert.Equal(t, exitFailUnder, exitCode(fmt.Errorf("report: %w", &report.FailUnderError{Threshold: 90})))
}
