package actionlog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/killallgit/player-api/internal/models"
	"gorm.io/gorm"
)

// GormStore implements Store against a *gorm.DB connection to the
// action log side database.
type GormStore struct {
	db *gorm.DB
}

// New creates an action log store.
func New(db *gorm.DB) Store {
	return &GormStore{db: db}
}

func (s *GormStore) NewRestoreKey() string {
	return uuid.New().String()
}

func toRow(e models.ActionLogEntry) row {
	return row{
		OpID:       e.OpID,
		Op:         string(e.Op),
		MarkerID:   e.MarkerID,
		RestoreKey: e.RestoreKey,
		ParentID:   e.ParentID,
		SectionID:  e.SectionID,
		Start:      e.Start,
		End:        e.End,
		Type:       string(e.Type),
		Final:      e.Final,
		OldStart:   e.OldStart,
		OldEnd:     e.OldEnd,
		Ignored:    e.Ignored,
		At:         e.At,
	}
}

func fromRow(r row) models.ActionLogEntry {
	return models.ActionLogEntry{
		OpID:       r.OpID,
		Op:         models.ActionOp(r.Op),
		MarkerID:   r.MarkerID,
		RestoreKey: r.RestoreKey,
		ParentID:   r.ParentID,
		SectionID:  r.SectionID,
		Start:      r.Start,
		End:        r.End,
		Type:       models.MarkerType(r.Type),
		Final:      r.Final,
		OldStart:   r.OldStart,
		OldEnd:     r.OldEnd,
		Ignored:    r.Ignored,
		At:         r.At,
	}
}

func (s *GormStore) Append(ctx context.Context, entry models.ActionLogEntry) (models.ActionLogEntry, error) {
	if entry.At.IsZero() {
		entry.At = time.Now().UTC()
	}
	if entry.RestoreKey == "" {
		return models.ActionLogEntry{}, fmt.Errorf("appending %s entry: restore key is required", entry.Op)
	}

	r := toRow(entry)
	if err := s.db.WithContext(ctx).Create(&r).Error; err != nil {
		return models.ActionLogEntry{}, fmt.Errorf("appending %s entry: %w", entry.Op, err)
	}
	return fromRow(r), nil
}

func (s *GormStore) All(ctx context.Context) ([]models.ActionLogEntry, error) {
	var rows []row
	if err := s.db.WithContext(ctx).Order("op_id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("listing action log entries: %w", err)
	}
	entries := make([]models.ActionLogEntry, len(rows))
	for i, r := range rows {
		entries[i] = fromRow(r)
	}
	return entries, nil
}

func (s *GormStore) ByRestoreKey(ctx context.Context, key string) ([]models.ActionLogEntry, error) {
	var rows []row
	if err := s.db.WithContext(ctx).Where("restore_key = ?", key).Order("op_id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("listing action log entries for restore key %s: %w", key, err)
	}
	entries := make([]models.ActionLogEntry, len(rows))
	for i, r := range rows {
		entries[i] = fromRow(r)
	}
	return entries, nil
}

func (s *GormStore) LatestByMarkerID(ctx context.Context, markerID uint) (models.ActionLogEntry, bool, error) {
	var r row
	err := s.db.WithContext(ctx).Where("marker_id = ?", markerID).Order("op_id DESC").First(&r).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.ActionLogEntry{}, false, nil
	}
	if err != nil {
		return models.ActionLogEntry{}, false, fmt.Errorf("loading latest action log entry for marker %d: %w", markerID, err)
	}
	return fromRow(r), true, nil
}
