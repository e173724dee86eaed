package repository

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mail-sticky-go/internal/db"
	"mail-sticky-go/internal/model"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	conn, err := db.OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	return New(conn)
}

func sourceRecord(uid string) *model.Record {
	return &model.Record{
		SourceMessageID: &uid,
		Subject:         "subject " + uid,
		Sender:          "a@example.com",
		Received:        "2024-01-01 10:00",
		Summary:         "Reply to " + uid,
		Text:            model.ComposeText("a@example.com", "2024-01-01 10:00", "Reply to "+uid),
	}
}

func TestInsertRecordAndMarkIsExactlyOnce(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.InsertRecordAndMark(ctx, sourceRecord("7"), "actionable"))
	err := repo.InsertRecordAndMark(ctx, sourceRecord("7"), "actionable")
	assert.ErrorIs(t, err, ErrAlreadyProcessed)

	count, err := repo.CountBySource(ctx, "7")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	done, err := repo.IsProcessed(ctx, "7")
	require.NoError(t, err)
	assert.True(t, done)
}

func TestInsertRecordAndMarkConcurrent(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = repo.InsertRecordAndMark(ctx, sourceRecord("42"), "actionable")
		}()
	}
	wg.Wait()

	count, err := repo.CountBySource(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestInsertAfterDropIsRejected(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.MarkProcessed(ctx, "9", model.OutcomeDropped, "marketing"))
	require.NoError(t, repo.MarkProcessed(ctx, "9", model.OutcomeDropped, "marketing"))

	err := repo.InsertRecordAndMark(ctx, sourceRecord("9"), "actionable")
	assert.ErrorIs(t, err, ErrAlreadyProcessed)
}

func TestCursorIsMonotonic(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	cursor, err := repo.GetCursor(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), cursor)

	stored, err := repo.SetCursor(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, uint32(7), stored)

	stored, err = repo.SetCursor(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, uint32(7), stored)

	cursor, err = repo.GetCursor(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint32(7), cursor)

	stored, err = repo.SetCursor(ctx, 12)
	require.NoError(t, err)
	assert.Equal(t, uint32(12), stored)
}

func TestMetadataUpsert(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	_, ok, err := repo.GetMetadata(ctx, "session.window_geometry")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, repo.SaveMetadata(ctx, "session.window_geometry", "500x640+80+80"))
	require.NoError(t, repo.SaveMetadata(ctx, "session.window_geometry", "600x700+0+0"))

	value, ok, err := repo.GetMetadata(ctx, "session.window_geometry")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "600x700+0+0", value)
}

func TestCompletionAndArchive(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	first := &model.Record{Text: "first"}
	second := &model.Record{Text: "second"}
	require.NoError(t, repo.CreateRecord(ctx, first))
	require.NoError(t, repo.CreateRecord(ctx, second))

	require.NoError(t, repo.SetCompleted(ctx, first.ID, true, now))
	rec, err := repo.GetRecord(ctx, first.ID)
	require.NoError(t, err)
	assert.True(t, rec.Completed)
	require.NotNil(t, rec.CompletedAt)

	require.NoError(t, repo.SetCompleted(ctx, first.ID, false, now))
	rec, err = repo.GetRecord(ctx, first.ID)
	require.NoError(t, err)
	assert.False(t, rec.Completed)
	assert.Nil(t, rec.CompletedAt)

	assert.ErrorIs(t, repo.SetCompleted(ctx, 9999, true, now), ErrNotFound)

	require.NoError(t, repo.SetCompleted(ctx, second.ID, true, now))
	archived, err := repo.ArchiveAllCompleted(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), archived)

	archived, err = repo.ArchiveAllCompleted(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(0), archived)

	records, err := repo.ListUnarchived(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, first.ID, records[0].ID)

	active, completed, err := repo.CountActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), active)
	assert.Equal(t, int64(0), completed)
}

func TestListUnarchivedOrdering(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	var ids []uint
	for _, text := range []string{"a", "b", "c"} {
		rec := &model.Record{Text: text}
		require.NoError(t, repo.CreateRecord(ctx, rec))
		ids = append(ids, rec.ID)
	}
	require.NoError(t, repo.SetCompleted(ctx, ids[2], true, time.Now().UTC()))

	records, err := repo.ListUnarchived(ctx)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, []uint{ids[1], ids[0], ids[2]}, []uint{records[0].ID, records[1].ID, records[2].ID})
}

func TestDeleteRecord(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	rec := &model.Record{Text: "gone"}
	require.NoError(t, repo.CreateRecord(ctx, rec))
	require.NoError(t, repo.DeleteRecord(ctx, rec.ID))
	assert.ErrorIs(t, repo.DeleteRecord(ctx, rec.ID), ErrNotFound)

	_, err := repo.GetRecord(ctx, rec.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPendingQueue(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.EnqueuePending(ctx, 5, "timeout"))
	require.NoError(t, repo.EnqueuePending(ctx, 5, "timeout again"))
	require.NoError(t, repo.EnqueuePending(ctx, 3, "boom"))

	pending, err := repo.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, uint32(3), pending[0].UID)
	assert.Equal(t, uint32(5), pending[1].UID)
	assert.Equal(t, 2, pending[1].Attempts)
	assert.Equal(t, "timeout again", pending[1].LastError)

	require.NoError(t, repo.RemovePending(ctx, 5))
	pending, err = repo.ListPending(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}
