package actionlog

import (
	"context"

	"github.com/killallgit/player-api/internal/models"
)

// Store is the append-only durable history of marker mutations
// (component B). It owns its schema outright; the caller never writes
// to it directly, only through Append.
type Store interface {
	// NewRestoreKey mints a new stable id correlating an Add with its
	// later Edit/Delete/Restore/Ignore entries, surviving any id
	// renumbering the library database performs.
	NewRestoreKey() string

	// Append durably records one mutation. If entry.At is zero, the
	// current time is used. Returns the entry with OpID assigned.
	Append(ctx context.Context, entry models.ActionLogEntry) (models.ActionLogEntry, error)

	// All returns every entry ordered by OpID ascending (commit order).
	All(ctx context.Context) ([]models.ActionLogEntry, error)

	// ByRestoreKey returns every entry sharing a restore key, ordered by
	// OpID ascending.
	ByRestoreKey(ctx context.Context, key string) ([]models.ActionLogEntry, error)

	// LatestByMarkerID returns the most recently appended entry for a
	// given marker id, if any. Edit/Delete/Shift use it to recover the
	// marker's existing restore key rather than mint an unrelated one.
	LatestByMarkerID(ctx context.Context, markerID uint) (models.ActionLogEntry, bool, error)
}

// ResolveRestoreKey returns the restore key correlating markerID's prior
// mutation history, reusing its most recent action log entry's key. A
// marker with no prior entry (predating the action log) gets a freshly
// minted key, becoming its own lineage root.
func ResolveRestoreKey(ctx context.Context, log Store, markerID uint) (string, error) {
	latest, ok, err := log.LatestByMarkerID(ctx, markerID)
	if err != nil {
		return "", err
	}
	if !ok {
		return log.NewRestoreKey(), nil
	}
	return latest.RestoreKey, nil
}

// Models returns the GORM row types the action log owns, for use by
// AutoMigrate against the action log side database.
func Models() []any {
	return []any{&row{}}
}
