package actionlog

import (
	"context"
	"testing"

	"github.com/killallgit/player-api/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(Models()...))
	return db
}

func TestGormStore_NewRestoreKey_Unique(t *testing.T) {
	store := New(setupTestDB(t))
	a := store.NewRestoreKey()
	b := store.NewRestoreKey()
	assert.NotEmpty(t, a)
	assert.NotEqual(t, a, b)
}

func TestGormStore_Append_RequiresRestoreKey(t *testing.T) {
	store := New(setupTestDB(t))
	_, err := store.Append(context.Background(), models.ActionLogEntry{Op: models.ActionAdd})
	assert.Error(t, err)
}

func TestGormStore_Append_AssignsOpIDAndTimestamp(t *testing.T) {
	store := New(setupTestDB(t))
	key := store.NewRestoreKey()

	entry, err := store.Append(context.Background(), models.ActionLogEntry{
		Op:         models.ActionAdd,
		MarkerID:   1,
		RestoreKey: key,
		ParentID:   10,
		SectionID:  1,
		Start:      0,
		End:        1000,
		Type:       models.MarkerIntro,
	})
	require.NoError(t, err)
	assert.NotZero(t, entry.OpID)
	assert.False(t, entry.At.IsZero())
}

func TestGormStore_All_OrderedByOpID(t *testing.T) {
	store := New(setupTestDB(t))
	key := store.NewRestoreKey()
	ctx := context.Background()

	_, err := store.Append(ctx, models.ActionLogEntry{Op: models.ActionAdd, MarkerID: 1, RestoreKey: key, ParentID: 10})
	require.NoError(t, err)
	_, err = store.Append(ctx, models.ActionLogEntry{Op: models.ActionEdit, MarkerID: 1, RestoreKey: key, ParentID: 10})
	require.NoError(t, err)
	_, err = store.Append(ctx, models.ActionLogEntry{Op: models.ActionDelete, MarkerID: 1, RestoreKey: key, ParentID: 10})
	require.NoError(t, err)

	entries, err := store.All(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, models.ActionAdd, entries[0].Op)
	assert.Equal(t, models.ActionEdit, entries[1].Op)
	assert.Equal(t, models.ActionDelete, entries[2].Op)
	assert.True(t, entries[0].OpID < entries[1].OpID)
	assert.True(t, entries[1].OpID < entries[2].OpID)
}

func TestGormStore_LatestByMarkerID_ReturnsMostRecentEntry(t *testing.T) {
	store := New(setupTestDB(t))
	ctx := context.Background()
	key := store.NewRestoreKey()

	_, err := store.Append(ctx, models.ActionLogEntry{Op: models.ActionAdd, MarkerID: 1, RestoreKey: key, ParentID: 10})
	require.NoError(t, err)
	_, err = store.Append(ctx, models.ActionLogEntry{Op: models.ActionEdit, MarkerID: 1, RestoreKey: key, ParentID: 10})
	require.NoError(t, err)

	latest, ok, err := store.LatestByMarkerID(ctx, 1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, models.ActionEdit, latest.Op)
	assert.Equal(t, key, latest.RestoreKey)
}

func TestGormStore_LatestByMarkerID_UnknownMarkerReturnsFalse(t *testing.T) {
	store := New(setupTestDB(t))
	_, ok, err := store.LatestByMarkerID(context.Background(), 999999)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestResolveRestoreKey_ReusesExistingKey(t *testing.T) {
	store := New(setupTestDB(t))
	ctx := context.Background()
	key := store.NewRestoreKey()

	_, err := store.Append(ctx, models.ActionLogEntry{Op: models.ActionAdd, MarkerID: 1, RestoreKey: key, ParentID: 10})
	require.NoError(t, err)

	resolved, err := ResolveRestoreKey(ctx, store, 1)
	require.NoError(t, err)
	assert.Equal(t, key, resolved)
}

func TestResolveRestoreKey_MintsNewKeyForUnknownMarker(t *testing.T) {
	store := New(setupTestDB(t))
	resolved, err := ResolveRestoreKey(context.Background(), store, 999999)
	require.NoError(t, err)
	assert.NotEmpty(t, resolved)
}

func TestGormStore_ByRestoreKey(t *testing.T) {
	store := New(setupTestDB(t))
	ctx := context.Background()

	keyA := store.NewRestoreKey()
	keyB := store.NewRestoreKey()

	_, err := store.Append(ctx, models.ActionLogEntry{Op: models.ActionAdd, MarkerID: 1, RestoreKey: keyA, ParentID: 10})
	require.NoError(t, err)
	_, err = store.Append(ctx, models.ActionLogEntry{Op: models.ActionAdd, MarkerID: 2, RestoreKey: keyB, ParentID: 11})
	require.NoError(t, err)
	_, err = store.Append(ctx, models.ActionLogEntry{Op: models.ActionEdit, MarkerID: 1, RestoreKey: keyA, ParentID: 10})
	require.NoError(t, err)

	entries, err := store.ByRestoreKey(ctx, keyA)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	for _, e := range entries {
		assert.Equal(t, keyA, e.RestoreKey)
	}
}
