package data

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jupierce/source-coverage/pkg/files"
)

func TestSaveLoad_RoundTripsFactsContextsAndRuns(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), DefaultFile)

	s := NewStore(ArcsMode)
	s.SetContext("unit")
	run := s.AddRun("profile.out")
	require.NoError(t, s.Record(fileA, nil, []Arc{{-1, 1}, {1, 2}, {2, -1}}))
	s.SetContext("integration")
	require.NoError(t, s.Record(fileA, nil, []Arc{{1, 3}}))
	s.Touch(fileB)

	require.NoError(t, s.Save(ctx, path))

	loaded, err := Load(ctx, path)
	require.NoError(t, err)

	assert.True(t, loaded.HasArcs())
	assert.Equal(t, []files.FileKey{fileA, fileB}, loaded.MeasuredFiles())
	assert.Equal(t, s.Lines(fileA), loaded.Lines(fileA))
	assert.Equal(t, s.Arcs(fileA), loaded.Arcs(fileA))
	assert.Equal(t, []string{"integration", "unit"}, loaded.Contexts())
	assert.Equal(t, []int{1, 2}, loaded.LinesForContext(fileA, "unit"))

	runs := loaded.Runs()
	require.Len(t, runs, 1)
	assert.Equal(t, run.ID, runs[0].ID)
	assert.Equal(t, "unit", runs[0].Context)
	assert.Equal(t, "profile.out", runs[0].Source)
}

func TestSave_ReplacesExistingFacts(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), DefaultFile)

	first := NewStore(LinesMode)
	require.NoError(t, first.Record(fileA, []int{1, 2, 3}, nil))
	require.NoError(t, first.Save(ctx, path))

	second := NewStore(LinesMode)
	require.NoError(t, second.Record(fileB, []int{9}, nil))
	require.NoError(t, second.Save(ctx, path))

	loaded, err := Load(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, []files.FileKey{fileB}, loaded.MeasuredFiles())
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(context.Background(), filepath.Join(t.TempDir(), "nope.db"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoad_RejectsNewerSchema(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), DefaultFile)
	s := NewStore(LinesMode)
	require.NoError(t, s.Record(fileA, []int{1}, nil))
	require.NoError(t, s.Save(ctx, path))

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, "UPDATE schema_version SET version = ?", schemaVersion+1)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	_, err = Load(ctx, path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "newer than supported")

	err = s.Save(ctx, path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "newer than supported")
}

func TestCombine_MergesParallelFiles(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dir := t.TempDir()
	base := filepath.Join(dir, DefaultFile)

	w1 := NewStore(LinesMode)
	require.NoError(t, w1.Record(fileA, []int{1, 2}, nil))
	require.NoError(t, w1.Save(ctx, base+".worker1"))

	w2 := NewStore(LinesMode)
	require.NoError(t, w2.Record(fileA, []int{2, 3}, nil))
	require.NoError(t, w2.Record(fileB, []int{5}, nil))
	require.NoError(t, w2.Save(ctx, base+".worker2"))

	paths, err := FindParallelFiles(base)
	require.NoError(t, err)
	require.Equal(t, []string{base + ".worker1", base + ".worker2"}, paths)

	forward, err := Combine(ctx, paths, 2)
	require.NoError(t, err)
	backward, err := Combine(ctx, []string{paths[1], paths[0]}, 1)
	require.NoError(t, err)

	assert.Equal(t, []int{1, 2, 3}, forward.Lines(fileA))
	assert.Equal(t, []int{5}, forward.Lines(fileB))
	assert.Equal(t, forward.Lines(fileA), backward.Lines(fileA))
	assert.Equal(t, forward.MeasuredFiles(), backward.MeasuredFiles())
}

func TestCombine_ModeMismatchFails(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dir := t.TempDir()

	lines := NewStore(LinesMode)
	require.NoError(t, lines.Record(fileA, []int{1}, nil))
	require.NoError(t, lines.Save(ctx, filepath.Join(dir, "a.db")))

	arcs := NewStore(ArcsMode)
	require.NoError(t, arcs.Record(fileA, nil, []Arc{{1, 2}}))
	require.NoError(t, arcs.Save(ctx, filepath.Join(dir, "b.db")))

	_, err := Combine(ctx, []string{filepath.Join(dir, "a.db"), filepath.Join(dir, "b.db")}, 2)
	var mismatch *ConfigurationMismatchError
	require.ErrorAs(t, err, &mismatch)
}

func TestErase(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), DefaultFile)

	s := NewStore(LinesMode)
	require.NoError(t, s.Record(fileA, []int{1}, nil))
	require.NoError(t, s.Save(ctx, path))

	require.NoError(t, Erase(path))
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
	require.NoError(t, Erase(path))
}
