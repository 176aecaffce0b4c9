package libraryadapter

import (
	"context"

	"github.com/killallgit/player-api/internal/models"
)

// SectionOverviewEntry is one markerable leaf item enumerated while
// rebuilding the Marker Cache from scratch.
type SectionOverviewEntry struct {
	ParentID uint
	Type     models.ItemType
}

// Adapter is the typed boundary between the marker core and the
// foreign library database. All writes commit inside a single
// transaction per logical mutation; storage errors are returned
// unchanged for the caller to classify.
type Adapter interface {
	Sections(ctx context.Context) ([]models.Section, error)
	GetSection(ctx context.Context, id uint) (*models.Section, error)

	GetItem(ctx context.Context, id uint) (*models.Item, error)
	ListChildren(ctx context.Context, parentID uint, childType models.ItemType) ([]models.Item, error)

	GetMarker(ctx context.Context, id uint) (*models.Marker, error)
	ListMarkers(ctx context.Context, parentID uint) ([]models.Marker, error)
	ListMarkersForParents(ctx context.Context, parentIDs []uint) (map[uint][]models.Marker, error)
	ListMarkersForSubtree(ctx context.Context, rootID uint) ([]models.Marker, error)
	MarkerableDescendants(ctx context.Context, rootID uint) ([]uint, error)

	SectionOverview(ctx context.Context, sectionID uint) ([]SectionOverviewEntry, error)

	InsertMarker(ctx context.Context, parentID uint, start, end int64, typ models.MarkerType, final bool) (models.Marker, error)
	UpdateMarker(ctx context.Context, id uint, start, end int64, index int, typ models.MarkerType, final bool) error
	UpdateMarkerIndex(ctx context.Context, id uint, index int) error
	DeleteMarker(ctx context.Context, id uint) error

	// WithinTransaction runs fn against an Adapter bound to a single
	// database transaction: every write fn performs through it commits
	// together, or none do. Returning a non-nil error from fn rolls the
	// transaction back.
	WithinTransaction(ctx context.Context, fn func(tx Adapter) error) error
}
