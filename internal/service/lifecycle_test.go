package service

import (
	"context"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/killallgit/player-api/internal/database"
	"github.com/killallgit/player-api/internal/dispatcher"
	"github.com/killallgit/player-api/internal/models"
	"github.com/killallgit/player-api/internal/services/actionlog"
	apperrors "github.com/killallgit/player-api/pkg/errors"
	"github.com/killallgit/player-api/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type seedSectionRow struct {
	ID   uint `gorm:"column:id;primaryKey"`
	Name string
	Type string
}

func (seedSectionRow) TableName() string { return "library_sections" }

type seedItemRow struct {
	ID        uint `gorm:"column:id;primaryKey"`
	Type      string
	Title     string
	ParentID  *uint `gorm:"column:parent_id"`
	SectionID uint  `gorm:"column:section_id"`
	Duration  int64
}

func (seedItemRow) TableName() string { return "library_items" }

type seedMarkerRow struct {
	ID            uint  `gorm:"column:id;primaryKey"`
	ParentID      uint  `gorm:"column:parent_id;index"`
	Start         int64 `gorm:"column:start"`
	End           int64 `gorm:"column:end"`
	Index         int   `gorm:"column:sort_index"`
	Type          string
	Final         bool
	CreatedByUser bool      `gorm:"column:created_by_user"`
	CreatedAt     time.Time `gorm:"column:created_at"`
	ModifiedAt    time.Time `gorm:"column:modified_at"`
}

func (seedMarkerRow) TableName() string { return "library_markers" }

func newTestService(t *testing.T) (*Service, uint, uint) {
	t.Helper()
	dir := t.TempDir()

	library, err := database.Initialize(filepath.Join(dir, "library.db"), false)
	require.NoError(t, err)
	require.NoError(t, library.DB.AutoMigrate(&seedSectionRow{}, &seedItemRow{}, &seedMarkerRow{}))

	actionLogDB, err := database.Initialize(filepath.Join(dir, "actions.db"), false)
	require.NoError(t, err)
	require.NoError(t, actionLogDB.AutoMigrate(actionlog.Models()...))

	section := seedSectionRow{Name: "TV Shows", Type: string(models.ItemSection)}
	require.NoError(t, library.DB.Create(&section).Error)
	episode := seedItemRow{Type: string(models.ItemEpisode), Title: "Episode 1", SectionID: section.ID, Duration: 600000}
	require.NoError(t, library.DB.Create(&episode).Error)

	cfg := &config.Config{}
	cfg.Database.Path = filepath.Join(dir, "library.db")
	cfg.Markers.DatabasePath = filepath.Join(dir, "actions.db")
	cfg.Markers.BackupActions = true
	cfg.Markers.ExtendedStats = true

	svc, err := NewWithHandles(cfg, &database.Handles{Library: library, ActionLog: actionLogDB})
	require.NoError(t, err)
	return svc, section.ID, episode.ID
}

func TestService_New_StartsRunning(t *testing.T) {
	svc, _, _ := newTestService(t)
	assert.Equal(t, StateRunning, svc.State())
}

func TestService_Dispatch_RoutesThroughToEngine(t *testing.T) {
	svc, _, episodeID := newTestService(t)
	ctx := context.Background()

	result, err := svc.Dispatch(ctx, "add", dispatcher.Params{
		"metadataId": itoa(episodeID), "start": "0", "end": "30000", "type": "intro",
	})
	require.NoError(t, err)
	marker := result.(models.Marker)
	assert.Equal(t, int64(30000), marker.End)
}

func TestService_Suspend_BlocksMutatingOperations(t *testing.T) {
	svc, _, episodeID := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.Suspend(ctx))
	assert.Equal(t, StateSuspended, svc.State())

	_, err := svc.Dispatch(ctx, "add", dispatcher.Params{
		"metadataId": itoa(episodeID), "start": "0", "end": "30000", "type": "intro",
	})
	require.Error(t, err)
	appErr, ok := err.(*apperrors.AppError)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrCodeUnavailable, appErr.Code)
}

func TestService_Suspend_Resume_RestoresOperations(t *testing.T) {
	svc, _, episodeID := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.Suspend(ctx))
	_, err := svc.Dispatch(ctx, "resume", nil)
	require.NoError(t, err)
	assert.Equal(t, StateRunning, svc.State())

	result, err := svc.Dispatch(ctx, "add", dispatcher.Params{
		"metadataId": itoa(episodeID), "start": "0", "end": "30000", "type": "intro",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(0), result.(models.Marker).Start)
}

func TestService_Resume_WhileRunning_Fails(t *testing.T) {
	svc, _, _ := newTestService(t)
	err := svc.Resume(context.Background())
	require.Error(t, err)
	appErr, ok := err.(*apperrors.AppError)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrCodeUnavailable, appErr.Code)
}

func TestService_Shutdown_ClosesHandles(t *testing.T) {
	svc, _, _ := newTestService(t)
	require.NoError(t, svc.Shutdown())
	assert.Equal(t, StateShuttingDown, svc.State())
}

func itoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
