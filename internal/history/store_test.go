package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/HendryAvila/dotbot/internal/health"
	"github.com/HendryAvila/dotbot/internal/issues"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func fixedClock(t *testing.T, start time.Time) {
	t.Helper()
	now := start
	timeNow = func() time.Time {
		now = now.Add(time.Second)
		return now
	}
	t.Cleanup(func() { timeNow = time.Now })
}

func sampleResult(root string, status issues.Status, found ...issues.Issue) *health.Result {
	res := &health.Result{Level: health.LevelStandard, Status: status, RepoRoot: root}
	res.Report.Add(found...)
	res.Issues = res.Report.All()
	return res
}

func TestOpen_CreatesDatabase(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "data")
	s, err := Open(dir)
	require.NoError(t, err)
	defer s.Close()
	assert.FileExists(t, filepath.Join(dir, DBFile))
}

func TestOpen_EmptyDir(t *testing.T) {
	_, err := Open("")
	assert.Error(t, err)
}

func TestOpen_DriverFailure(t *testing.T) {
	openDB = func(string, string) (*sql.DB, error) { return nil, errors.New("boom") }
	t.Cleanup(func() { openDB = sql.Open })

	_, err := Open(t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "history: open database")
}

func TestRecordAndList(t *testing.T) {
	s := newTestStore(t)
	fixedClock(t, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	ctx := context.Background()

	first, err := s.Record(ctx, sampleResult("/repo", issues.StatusPass), 15*time.Millisecond)
	require.NoError(t, err)
	second, err := s.Record(ctx, sampleResult("/repo", issues.StatusError,
		issues.Errorf(issues.BrokenFileReference, "a"),
		issues.Errorf(issues.BrokenFileReference, "b"),
		issues.Warnf(issues.OrphanArtifact, "c"),
	), 40*time.Millisecond)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	runs, err := s.List(ctx, "/repo", 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	latest := runs[0]
	assert.Equal(t, second.ID, latest.ID)
	assert.Equal(t, issues.StatusError, latest.Status)
	assert.Equal(t, health.LevelStandard, latest.Level)
	assert.Equal(t, 2, latest.Errors)
	assert.Equal(t, 1, latest.Warnings)
	assert.Equal(t, int64(40), latest.DurationMs)
	assert.Equal(t, map[string]int{"BROKEN_FILE_REFERENCE": 2, "ORPHAN_ARTIFACT": 1}, latest.Codes)
	assert.True(t, latest.CreatedAt.Equal(second.CreatedAt))

	assert.Equal(t, first.ID, runs[1].ID)
	assert.Empty(t, runs[1].Codes)
}

func TestList_FiltersByRepoAndLimits(t *testing.T) {
	s := newTestStore(t)
	fixedClock(t, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := s.Record(ctx, sampleResult(fmt.Sprintf("/repo%d", i%2), issues.StatusPass), time.Millisecond)
		require.NoError(t, err)
	}

	runs, err := s.List(ctx, "/repo0", 0)
	require.NoError(t, err)
	assert.Len(t, runs, 3)
	for _, r := range runs {
		assert.Equal(t, "/repo0", r.RepoRoot)
	}

	runs, err = s.List(ctx, "", 2)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

func TestList_EmptyIsNotNil(t *testing.T) {
	runs, err := newTestStore(t).List(context.Background(), "/nowhere", 5)
	require.NoError(t, err)
	assert.NotNil(t, runs)
	assert.Empty(t, runs)
}

func TestRecord_NilResult(t *testing.T) {
	_, err := newTestStore(t).Record(context.Background(), nil, 0)
	assert.Error(t, err)
}

func TestReopenKeepsRuns(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	require.NoError(t, err)
	_, err = s.Record(context.Background(), sampleResult("/repo", issues.StatusWarning), time.Millisecond)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(dir)
	require.NoError(t, err)
	defer s.Close()
	runs, err := s.List(context.Background(), "/repo", 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, issues.StatusWarning, runs[0].Status)
}
