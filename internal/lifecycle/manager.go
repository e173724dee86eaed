package lifecycle

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"mail-sticky-go/internal/metrics"
	"mail-sticky-go/internal/model"
	"mail-sticky-go/internal/repository"
)

// ErrEmptyText is returned when a manual record has no text
var ErrEmptyText = errors.New("record text is required")

// Clock returns the current time
type Clock func() time.Time

// ActiveView is the unarchived record set with its counts
type ActiveView struct {
	Records        []model.Record `json:"records"`
	ActiveCount    int64          `json:"active_count"`
	CompletedCount int64          `json:"completed_count"`
}

// Manager owns the active, completed and archived states of records
type Manager struct {
	repo    *repository.Repository
	metrics *metrics.Metrics
	now     Clock
}

// NewManager creates a lifecycle manager; a nil clock uses time.Now in UTC
func NewManager(repo *repository.Repository, metrics *metrics.Metrics, clock Clock) *Manager {
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	return &Manager{repo: repo, metrics: metrics, now: clock}
}

// ListActive archives completed records older than retention, then returns what is left.
func (m *Manager) ListActive(ctx context.Context, retention time.Duration) (*ActiveView, error) {
	records, err := m.repo.ListUnarchived(ctx)
	if err != nil {
		return nil, err
	}

	now := m.now()
	threshold := now.Add(-retention)
	var expired []uint
	for _, rec := range records {
		if rec.Completed && rec.CompletedAt != nil && !rec.CompletedAt.After(threshold) {
			expired = append(expired, rec.ID)
		}
	}

	if len(expired) > 0 {
		archived, err := m.repo.ArchiveRecords(ctx, expired, now)
		if err != nil {
			// The next read retries the same batch.
			logrus.Warnf("Failed to archive %d expired records: %v", len(expired), err)
		} else if archived > 0 {
			logrus.Infof("Archived %d records past retention", archived)
			m.metrics.RecordsArchived.Add(float64(archived))
			if records, err = m.repo.ListUnarchived(ctx); err != nil {
				return nil, err
			}
		}
	}

	view := &ActiveView{Records: records}
	for _, rec := range records {
		if rec.Completed {
			view.CompletedCount++
		} else {
			view.ActiveCount++
		}
	}
	m.metrics.ActiveRecords.Set(float64(view.ActiveCount))
	m.metrics.CompletedRecords.Set(float64(view.CompletedCount))
	return view, nil
}

// ToggleCompleted marks a record done, stamping the completion time, or reopens it
func (m *Manager) ToggleCompleted(ctx context.Context, id uint, done bool) error {
	return m.repo.SetCompleted(ctx, id, done, m.now())
}

// Delete removes a record permanently
func (m *Manager) Delete(ctx context.Context, id uint) error {
	return m.repo.DeleteRecord(ctx, id)
}

// ArchiveAllCompletedNow archives every completed record regardless of retention
func (m *Manager) ArchiveAllCompletedNow(ctx context.Context) (int64, error) {
	archived, err := m.repo.ArchiveAllCompleted(ctx, m.now())
	if err != nil {
		return 0, err
	}
	m.metrics.RecordsArchived.Add(float64(archived))
	return archived, nil
}

// AddManualRecord stores a note that has no mailbox source
func (m *Manager) AddManualRecord(ctx context.Context, text, subject, snippet string) (*model.Record, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyText
	}
	rec := &model.Record{
		Text:      text,
		Subject:   subject,
		Snippet:   snippet,
		CreatedAt: m.now(),
	}
	if err := m.repo.CreateRecord(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}
