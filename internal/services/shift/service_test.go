package shift

import (
	"context"
	"testing"
	"time"

	"github.com/killallgit/player-api/internal/concurrency"
	"github.com/killallgit/player-api/internal/models"
	"github.com/killallgit/player-api/internal/services/actionlog"
	"github.com/killallgit/player-api/internal/services/libraryadapter"
	"github.com/killallgit/player-api/internal/services/markers"
	"github.com/killallgit/player-api/internal/services/markercache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
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
	CreatedByUser bool `gorm:"column:created_by_user"`
	CreatedAt     time.Time
	ModifiedAt    time.Time
}

func (seedMarkerRow) TableName() string { return "library_markers" }

type harness struct {
	shift    Service
	crud     markers.Service
	log      actionlog.Store
	showID   uint
	ep1, ep2 uint
}

func newHarness(t *testing.T) harness {
	libraryDB, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, libraryDB.AutoMigrate(&seedSectionRow{}, &seedItemRow{}, &seedMarkerRow{}))

	actionDB, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, actionDB.AutoMigrate(actionlog.Models()...))

	section := seedSectionRow{Name: "TV Shows", Type: string(models.ItemSection)}
	require.NoError(t, libraryDB.Create(&section).Error)
	show := seedItemRow{Type: string(models.ItemShow), Title: "Show", SectionID: section.ID}
	require.NoError(t, libraryDB.Create(&show).Error)
	season := seedItemRow{Type: string(models.ItemSeason), Title: "Season 1", ParentID: &show.ID, SectionID: section.ID}
	require.NoError(t, libraryDB.Create(&season).Error)
	ep1 := seedItemRow{Type: string(models.ItemEpisode), Title: "Episode 1", ParentID: &season.ID, SectionID: section.ID, Duration: 600000}
	require.NoError(t, libraryDB.Create(&ep1).Error)
	ep2 := seedItemRow{Type: string(models.ItemEpisode), Title: "Episode 2", ParentID: &season.ID, SectionID: section.ID, Duration: 600000}
	require.NoError(t, libraryDB.Create(&ep2).Error)

	adapter := libraryadapter.New(libraryDB)
	cache := markercache.New()
	log := actionlog.New(actionDB)
	locks := concurrency.NewKeyedMutex()

	return harness{
		shift:  New(adapter, log, locks),
		crud:   markers.New(adapter, cache, log, locks),
		log:    log,
		showID: show.ID,
		ep1:    ep1.ID,
		ep2:    ep2.ID,
	}
}

func TestService_CheckShift_NoLinkedConflict(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.crud.Add(ctx, h.ep1, 0, 30000, models.MarkerIntro, false)
	require.NoError(t, err)

	preview, err := h.shift.CheckShift(ctx, h.showID)
	require.NoError(t, err)
	assert.Len(t, preview.AllMarkers, 1)
	assert.False(t, preview.LinkedConflict)
}

func TestService_CheckShift_LinkedConflict(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.crud.Add(ctx, h.ep1, 0, 30000, models.MarkerIntro, false)
	require.NoError(t, err)
	_, err = h.crud.Add(ctx, h.ep1, 500000, 550000, models.MarkerCredits, true)
	require.NoError(t, err)

	preview, err := h.shift.CheckShift(ctx, h.showID)
	require.NoError(t, err)
	assert.True(t, preview.LinkedConflict)
}

func TestService_Shift_CleanUniformShift(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	m, err := h.crud.Add(ctx, h.ep1, 10000, 40000, models.MarkerIntro, false)
	require.NoError(t, err)

	result, err := h.shift.Shift(ctx, h.ep1, 1000, 1000, false, nil)
	require.NoError(t, err)
	assert.True(t, result.Applied)
	require.Len(t, result.AllMarkers, 1)
	assert.Equal(t, m.Start+1000, result.AllMarkers[0].Start)
	assert.Equal(t, m.End+1000, result.AllMarkers[0].End)
}

func TestService_Shift_ClampsCutoffMarker(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.crud.Add(ctx, h.ep1, 0, 10000, models.MarkerIntro, false)
	require.NoError(t, err)

	result, err := h.shift.Shift(ctx, h.ep1, -5000, 0, false, nil)
	require.NoError(t, err)
	assert.True(t, result.Applied)
	require.Len(t, result.AllMarkers, 1)
	assert.Equal(t, int64(0), result.AllMarkers[0].Start, "a negative start must clamp to zero, not error")
}

func TestService_Shift_ErrorMarkerBlocksWithoutForce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.crud.Add(ctx, h.ep1, 0, 10000, models.MarkerIntro, false)
	require.NoError(t, err)

	result, err := h.shift.Shift(ctx, h.ep1, -20000, -20000, false, nil)
	require.NoError(t, err)
	assert.False(t, result.Applied)
	assert.True(t, result.Overflow)
}

func TestService_Shift_ForceAppliesAndDropsErrorMarkers(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.crud.Add(ctx, h.ep1, 0, 10000, models.MarkerIntro, false)
	require.NoError(t, err)

	result, err := h.shift.Shift(ctx, h.ep1, -20000, -20000, true, nil)
	require.NoError(t, err)
	assert.True(t, result.Applied)
	assert.Empty(t, result.AllMarkers, "the error marker must be dropped, never written")
}

func TestService_Shift_LinkedConflictBlocksWithoutForce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.crud.Add(ctx, h.ep1, 0, 10000, models.MarkerIntro, false)
	require.NoError(t, err)
	_, err = h.crud.Add(ctx, h.ep1, 500000, 550000, models.MarkerCredits, true)
	require.NoError(t, err)

	result, err := h.shift.Shift(ctx, h.showID, 1000, 1000, false, nil)
	require.NoError(t, err)
	assert.False(t, result.Applied)
	assert.True(t, result.Conflict)
}

func TestService_Shift_IgnoreIdsExcludesMarker(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	first, err := h.crud.Add(ctx, h.ep1, 0, 10000, models.MarkerIntro, false)
	require.NoError(t, err)
	second, err := h.crud.Add(ctx, h.ep1, 500000, 550000, models.MarkerCredits, true)
	require.NoError(t, err)

	result, err := h.shift.Shift(ctx, h.showID, 1000, 1000, false, []uint{second.ID})
	require.NoError(t, err)
	assert.True(t, result.Applied)
	require.Len(t, result.AllMarkers, 1)
	assert.Equal(t, first.ID, result.AllMarkers[0].ID)
}

func TestService_Shift_RejectsZeroDelta(t *testing.T) {
	h := newHarness(t)
	_, err := h.shift.Shift(context.Background(), h.ep1, 0, 0, false, nil)
	assert.Error(t, err)
}

func TestService_Shift_ReusesMarkerRestoreKeyFromAdd(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	m, err := h.crud.Add(ctx, h.ep1, 10000, 40000, models.MarkerIntro, false)
	require.NoError(t, err)

	_, err = h.shift.Shift(ctx, h.ep1, 1000, 1000, false, nil)
	require.NoError(t, err)

	entries, err := h.log.ByRestoreKey(ctx, mustLatestKey(t, h.log, m.ID))
	require.NoError(t, err)
	require.Len(t, entries, 2, "the shift's edit entry must share the marker's birth key from Add")
	assert.Equal(t, models.ActionAdd, entries[0].Op)
	assert.Equal(t, models.ActionEdit, entries[1].Op)
}

func mustLatestKey(t *testing.T, log actionlog.Store, markerID uint) string {
	t.Helper()
	entry, ok, err := log.LatestByMarkerID(context.Background(), markerID)
	require.NoError(t, err)
	require.True(t, ok)
	return entry.RestoreKey
}
