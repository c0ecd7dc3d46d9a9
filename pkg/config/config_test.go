package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsWhenNoFile(t *testing.T) {
	t.Parallel()

	cfg, err := Load("", t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, ".srccov.db", cfg.DataFile)
	assert.Equal(t, 8, cfg.Run.Workers)
	assert.Equal(t, "text", cfg.Report.Format)
	assert.Equal(t, 0, cfg.Report.Precision)
	assert.Equal(t, "source_coverage", cfg.BigQuery.Dataset)
	assert.Len(t, cfg.Report.ExcludeLines, 1)
}

func TestLoad_ReadsYAML(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, DefaultFileName), []byte(`
data_file: cov/.srccov.db
run:
  branch: true
  context: nightly
report:
  show_missing: true
  skip_covered: true
  sort: -cover
  precision: 2
  fail_under: 85.5
  omit:
    - "*_test.go"
    - "internal/generated/*"
bigquery:
  project: my-project
`), 0o644))

	cfg, err := Load("", dir)
	require.NoError(t, err)

	assert.Equal(t, "cov/.srccov.db", cfg.DataFile)
	assert.True(t, cfg.Run.Branch)
	assert.Equal(t, "nightly", cfg.Run.Context)
	assert.True(t, cfg.Report.ShowMissing)
	assert.True(t, cfg.Report.SkipCovered)
	assert.False(t, cfg.Report.SkipEmpty)
	assert.Equal(t, "-cover", cfg.Report.Sort)
	assert.Equal(t, 2, cfg.Report.Precision)
	assert.InDelta(t, 85.5, cfg.Report.FailUnder, 1e-9)
	assert.Equal(t, []string{"*_test.go", "internal/generated/*"}, cfg.Report.Omit)
	assert.Equal(t, "my-project", cfg.BigQuery.Project)
	assert.Equal(t, "source_coverage", cfg.BigQuery.Dataset)
}

func TestLoad_ExplicitFileMustExist(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), "")
	require.Error(t, err)
}

func TestLoad_InvalidValues(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("report:\n  fail_under: 120\n"), 0o644))

	_, err := Load(path, "")
	var cerr *ConfigError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "report.fail_under", cerr.Field)
}

func TestParseFailUnder(t *testing.T) {
	t.Parallel()

	f, err := ParseFailUnder("72.5")
	require.NoError(t, err)
	assert.InDelta(t, 72.5, f, 1e-9)

	var cerr *ConfigError
	_, err = ParseFailUnder("lots")
	require.ErrorAs(t, err, &cerr)
	_, err = ParseFailUnder("101")
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "config error in field 'fail_under': must be between 0 and 100, got 101", err.Error())
}

func TestCheckPrecision(t *testing.T) {
	t.Parallel()

	assert.NoError(t, CheckPrecision(0))
	assert.NoError(t, CheckPrecision(10))

	var cerr *ConfigError
	require.ErrorAs(t, CheckPrecision(-1), &cerr)
	require.ErrorAs(t, CheckPrecision(11), &cerr)
	assert.Equal(t, "report.precision", cerr.Field)
}
