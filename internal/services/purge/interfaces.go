package purge

import (
	"context"

	"github.com/killallgit/player-api/internal/models"
)

// Reconciler is the Purge Reconciler (component F): it detects markers
// the service once knew about that have since vanished from the live
// library database, and supports restoring or permanently ignoring
// them.
type Reconciler interface {
	// Reconcile walks the action log once and rebuilds the in-memory
	// purged index. Called at startup, after the Marker Cache is built,
	// and again on every Resume.
	Reconcile(ctx context.Context) error

	PurgesForSection(sectionID uint) []models.PurgedMarker
	PurgeCheck(ctx context.Context, subtreeRootID uint) ([]models.PurgedMarker, error)

	Restore(ctx context.Context, oldMarkerID uint, sectionID uint) (models.Marker, error)
	Ignore(ctx context.Context, oldMarkerID uint, sectionID uint) error
}
