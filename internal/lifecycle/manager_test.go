package lifecycle

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mail-sticky-go/internal/db"
	"mail-sticky-go/internal/metrics"
	"mail-sticky-go/internal/repository"
)

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time { return c.now }

func newTestManager(t *testing.T, start time.Time) (*Manager, *repository.Repository, *testClock) {
	t.Helper()
	conn, err := db.OpenSQLite(filepath.Join(t.TempDir(), "lifecycle.db"))
	require.NoError(t, err)
	repo := repository.New(conn)
	clock := &testClock{now: start}
	return NewManager(repo, metrics.NewMetrics(prometheus.NewRegistry()), clock.Now), repo, clock
}

func TestRetentionArchivesExpiredRecords(t *testing.T) {
	completedAt := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	mgr, repo, clock := newTestManager(t, completedAt)
	ctx := context.Background()

	done, err := mgr.AddManualRecord(ctx, "Renew passport", "", "")
	require.NoError(t, err)
	open, err := mgr.AddManualRecord(ctx, "Call the plumber", "", "")
	require.NoError(t, err)
	require.NoError(t, mgr.ToggleCompleted(ctx, done.ID, true))

	clock.now = time.Date(2024, 1, 1, 13, 0, 0, 0, time.UTC)
	view, err := mgr.ListActive(ctx, 12*time.Hour)
	require.NoError(t, err)

	require.Len(t, view.Records, 1)
	assert.Equal(t, open.ID, view.Records[0].ID)
	assert.Equal(t, int64(1), view.ActiveCount)
	assert.Equal(t, int64(0), view.CompletedCount)

	rec, err := repo.GetRecord(ctx, done.ID)
	require.NoError(t, err)
	require.NotNil(t, rec.ArchivedAt)
	assert.True(t, rec.ArchivedAt.Equal(clock.now))
}

func TestRetentionBoundary(t *testing.T) {
	completedAt := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	mgr, _, clock := newTestManager(t, completedAt)
	ctx := context.Background()
	retention := 12 * time.Hour

	rec, err := mgr.AddManualRecord(ctx, "Pay rent", "", "")
	require.NoError(t, err)
	require.NoError(t, mgr.ToggleCompleted(ctx, rec.ID, true))

	clock.now = completedAt.Add(retention - time.Second)
	view, err := mgr.ListActive(ctx, retention)
	require.NoError(t, err)
	require.Len(t, view.Records, 1)
	assert.Equal(t, int64(1), view.CompletedCount)

	clock.now = completedAt.Add(retention)
	view, err = mgr.ListActive(ctx, retention)
	require.NoError(t, err)
	assert.Empty(t, view.Records)
	assert.Equal(t, int64(0), view.CompletedCount)
}

func TestListActiveIsIdempotent(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	mgr, _, clock := newTestManager(t, start)
	ctx := context.Background()

	for _, text := range []string{"a", "b", "c"} {
		_, err := mgr.AddManualRecord(ctx, text, "", "")
		require.NoError(t, err)
	}
	view, err := mgr.ListActive(ctx, time.Hour)
	require.NoError(t, err)
	require.NoError(t, mgr.ToggleCompleted(ctx, view.Records[0].ID, true))

	clock.now = start.Add(2 * time.Hour)
	first, err := mgr.ListActive(ctx, time.Hour)
	require.NoError(t, err)
	second, err := mgr.ListActive(ctx, time.Hour)
	require.NoError(t, err)

	assert.Equal(t, first.ActiveCount, second.ActiveCount)
	assert.Equal(t, first.CompletedCount, second.CompletedCount)
	require.Len(t, second.Records, len(first.Records))
	for i := range first.Records {
		assert.Equal(t, first.Records[i].ID, second.Records[i].ID)
	}
}

func TestToggleCompletedReopens(t *testing.T) {
	mgr, repo, _ := newTestManager(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	ctx := context.Background()

	rec, err := mgr.AddManualRecord(ctx, "Water plants", "", "")
	require.NoError(t, err)
	require.NoError(t, mgr.ToggleCompleted(ctx, rec.ID, true))
	require.NoError(t, mgr.ToggleCompleted(ctx, rec.ID, false))

	got, err := repo.GetRecord(ctx, rec.ID)
	require.NoError(t, err)
	assert.False(t, got.Completed)
	assert.Nil(t, got.CompletedAt)

	assert.ErrorIs(t, mgr.ToggleCompleted(ctx, 4242, true), repository.ErrNotFound)
}

func TestArchiveAllCompletedNow(t *testing.T) {
	mgr, _, _ := newTestManager(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	ctx := context.Background()

	first, err := mgr.AddManualRecord(ctx, "one", "", "")
	require.NoError(t, err)
	_, err = mgr.AddManualRecord(ctx, "two", "", "")
	require.NoError(t, err)
	require.NoError(t, mgr.ToggleCompleted(ctx, first.ID, true))

	archived, err := mgr.ArchiveAllCompletedNow(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), archived)

	archived, err = mgr.ArchiveAllCompletedNow(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), archived)

	view, err := mgr.ListActive(ctx, 12*time.Hour)
	require.NoError(t, err)
	assert.Len(t, view.Records, 1)
}

func TestDeleteAndManualAdd(t *testing.T) {
	mgr, _, _ := newTestManager(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	ctx := context.Background()

	_, err := mgr.AddManualRecord(ctx, "   ", "", "")
	assert.ErrorIs(t, err, ErrEmptyText)

	rec, err := mgr.AddManualRecord(ctx, "Pick up dry cleaning", "errand", "")
	require.NoError(t, err)
	assert.Nil(t, rec.SourceMessageID)
	assert.Equal(t, "Pick up dry cleaning", rec.DisplayText())

	require.NoError(t, mgr.Delete(ctx, rec.ID))
	assert.ErrorIs(t, mgr.Delete(ctx, rec.ID), repository.ErrNotFound)
}
