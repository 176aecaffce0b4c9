package markers

import (
	"context"

	"github.com/killallgit/player-api/internal/models"
)

// Service is the CRUD engine (component D): single-marker Add, Edit
// and Delete with correct re-indexing, overlap rejection and cache /
// action log updates.
type Service interface {
	Add(ctx context.Context, parentID uint, start, end int64, typ models.MarkerType, final bool) (models.Marker, error)
	Edit(ctx context.Context, markerID uint, start, end int64, typ models.MarkerType, final bool) (models.Marker, error)
	Delete(ctx context.Context, markerID uint) (models.Marker, error)
}
