package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"mail-sticky-go/internal/model"
)

// CursorKey is the metadata key holding the highest mailbox UID observed.
const CursorKey = "last_uid"

var (
	// ErrAlreadyProcessed is returned when a record for a message UID already exists.
	ErrAlreadyProcessed = errors.New("message already processed")
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("record not found")
)

type Repository struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// DB exposes the underlying connection for health checks.
func (r *Repository) DB() *gorm.DB {
	return r.db
}

func (r *Repository) IsProcessed(ctx context.Context, uid string) (bool, error) {
	return isProcessed(r.db.WithContext(ctx), uid)
}

func isProcessed(tx *gorm.DB, uid string) (bool, error) {
	var count int64
	if err := tx.Model(&model.ProcessedMessage{}).Where("uid = ?", uid).Count(&count).Error; err != nil {
		return false, fmt.Errorf("database error checking processed message: %w", err)
	}
	return count > 0, nil
}

// MarkProcessed adds uid to the processed set. Marking twice is a no-op.
func (r *Repository) MarkProcessed(ctx context.Context, uid, outcome, label string) error {
	processed := model.ProcessedMessage{
		UID:         uid,
		Outcome:     outcome,
		Label:       label,
		ProcessedAt: time.Now().UTC(),
	}
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "uid"}}, DoNothing: true}).
		Create(&processed)
	if result.Error != nil {
		return fmt.Errorf("failed to mark message as processed: %w", result.Error)
	}
	return nil
}

// InsertRecordAndMark stores rec and marks its source UID processed in one transaction.
func (r *Repository) InsertRecordAndMark(ctx context.Context, rec *model.Record, label string) error {
	if rec.SourceMessageID == nil {
		return fmt.Errorf("record has no source message id")
	}
	uid := *rec.SourceMessageID

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		done, err := isProcessed(tx, uid)
		if err != nil {
			return err
		}
		if done {
			return ErrAlreadyProcessed
		}
		if rec.CreatedAt.IsZero() {
			rec.CreatedAt = time.Now().UTC()
		}
		if err := tx.Create(rec).Error; err != nil {
			return fmt.Errorf("failed to create record: %w", err)
		}
		processed := model.ProcessedMessage{
			UID:         uid,
			Outcome:     model.OutcomeStored,
			Label:       label,
			ProcessedAt: rec.CreatedAt,
		}
		if err := tx.Create(&processed).Error; err != nil {
			return fmt.Errorf("failed to mark message as processed: %w", err)
		}
		return nil
	})
}

// CreateRecord stores a record that has no mailbox source.
func (r *Repository) CreateRecord(ctx context.Context, rec *model.Record) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	if err := r.db.WithContext(ctx).Create(rec).Error; err != nil {
		return fmt.Errorf("failed to create record: %w", err)
	}
	return nil
}

func (r *Repository) GetRecord(ctx context.Context, id uint) (*model.Record, error) {
	var rec model.Record
	err := r.db.WithContext(ctx).First(&rec, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get record: %w", err)
	}
	return &rec, nil
}

// CountBySource returns how many records were created from the given message UID.
func (r *Repository) CountBySource(ctx context.Context, uid string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Record{}).Where("source_message_id = ?", uid).Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count records: %w", err)
	}
	return count, nil
}

// ListUnarchived returns records without archived_at, incomplete first, newest first.
func (r *Repository) ListUnarchived(ctx context.Context) ([]model.Record, error) {
	var records []model.Record
	err := r.db.WithContext(ctx).
		Where("archived_at IS NULL").
		Order("completed ASC").
		Order("id DESC").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	return records, nil
}

// CountActive returns the number of unarchived incomplete and completed records.
func (r *Repository) CountActive(ctx context.Context) (active, completed int64, err error) {
	tx := r.db.WithContext(ctx).Model(&model.Record{})
	if err = tx.Where("archived_at IS NULL AND completed = ?", false).Count(&active).Error; err != nil {
		return 0, 0, fmt.Errorf("failed to count active records: %w", err)
	}
	tx = r.db.WithContext(ctx).Model(&model.Record{})
	if err = tx.Where("archived_at IS NULL AND completed = ?", true).Count(&completed).Error; err != nil {
		return 0, 0, fmt.Errorf("failed to count completed records: %w", err)
	}
	return active, completed, nil
}

// ArchiveRecords sets archived_at on the given records that are not archived yet.
func (r *Repository) ArchiveRecords(ctx context.Context, ids []uint, at time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result := r.db.WithContext(ctx).Model(&model.Record{}).
		Where("id IN ? AND archived_at IS NULL", ids).
		Update("archived_at", at)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to archive records: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// ArchiveAllCompleted archives every completed record regardless of age.
func (r *Repository) ArchiveAllCompleted(ctx context.Context, at time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Model(&model.Record{}).
		Where("archived_at IS NULL AND completed = ?", true).
		Update("archived_at", at)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to archive completed records: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// SetCompleted sets the completion flag; completing stamps completed_at, un-completing clears it.
func (r *Repository) SetCompleted(ctx context.Context, id uint, done bool, at time.Time) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec model.Record
		err := tx.Select("id").First(&rec, id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to load record: %w", err)
		}

		updates := map[string]interface{}{"completed": done, "completed_at": nil}
		if done {
			updates["completed_at"] = at
		}
		if err := tx.Model(&model.Record{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return fmt.Errorf("failed to update record: %w", err)
		}
		return nil
	})
}

// DeleteRecord removes a record permanently.
func (r *Repository) DeleteRecord(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&model.Record{}, id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete record: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// GetMetadata returns the value for key and whether it exists.
func (r *Repository) GetMetadata(ctx context.Context, key string) (string, bool, error) {
	return getMetadata(r.db.WithContext(ctx), key)
}

func getMetadata(tx *gorm.DB, key string) (string, bool, error) {
	var meta model.Metadata
	err := tx.Where(&model.Metadata{Key: key}).First(&meta).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get metadata %s: %w", key, err)
	}
	return meta.Value, true, nil
}

func (r *Repository) SaveMetadata(ctx context.Context, key, value string) error {
	return saveMetadata(r.db.WithContext(ctx), key, value)
}

func saveMetadata(tx *gorm.DB, key, value string) error {
	meta := model.Metadata{Key: key, Value: value}
	err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value"}),
	}).Create(&meta).Error
	if err != nil {
		return fmt.Errorf("failed to save metadata %s: %w", key, err)
	}
	return nil
}

// GetCursor returns the persisted cursor, 0 when none was stored yet.
func (r *Repository) GetCursor(ctx context.Context) (uint32, error) {
	return getCursor(r.db.WithContext(ctx))
}

func getCursor(tx *gorm.DB) (uint32, error) {
	raw, ok, err := getMetadata(tx, CursorKey)
	if err != nil || !ok {
		return 0, err
	}
	v, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid cursor value %q: %w", raw, err)
	}
	return uint32(v), nil
}

// SetCursor advances the cursor to uid unless it is already higher, and returns the
// stored value.
func (r *Repository) SetCursor(ctx context.Context, uid uint32) (uint32, error) {
	var stored uint32
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := getCursor(tx)
		if err != nil {
			return err
		}
		if uid <= current {
			stored = current
			return nil
		}
		if err := saveMetadata(tx, CursorKey, strconv.FormatUint(uint64(uid), 10)); err != nil {
			return err
		}
		stored = uid
		return nil
	})
	return stored, err
}

// EnqueuePending records a failed attempt for uid in the retry queue.
func (r *Repository) EnqueuePending(ctx context.Context, uid uint32, errMsg string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var pending model.PendingMessage
		err := tx.Where("uid = ?", uid).First(&pending).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			pending = model.PendingMessage{UID: uid, Attempts: 1, LastError: errMsg}
			if err := tx.Create(&pending).Error; err != nil {
				return fmt.Errorf("failed to enqueue pending message: %w", err)
			}
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to load pending message: %w", err)
		}
		err = tx.Model(&pending).Updates(map[string]interface{}{
			"attempts":   pending.Attempts + 1,
			"last_error": errMsg,
		}).Error
		if err != nil {
			return fmt.Errorf("failed to update pending message: %w", err)
		}
		return nil
	})
}

func (r *Repository) ListPending(ctx context.Context) ([]model.PendingMessage, error) {
	var pending []model.PendingMessage
	if err := r.db.WithContext(ctx).Order("uid ASC").Find(&pending).Error; err != nil {
		return nil, fmt.Errorf("failed to list pending messages: %w", err)
	}
	return pending, nil
}

func (r *Repository) RemovePending(ctx context.Context, uid uint32) error {
	if err := r.db.WithContext(ctx).Where("uid = ?", uid).Delete(&model.PendingMessage{}).Error; err != nil {
		return fmt.Errorf("failed to remove pending message: %w", err)
	}
	return nil
}

// Ping checks the database connection.
func (r *Repository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
