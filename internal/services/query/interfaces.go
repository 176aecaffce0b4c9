package query

import (
	"context"

	"github.com/killallgit/player-api/internal/models"
)

// Service is the read-only Query/Aggregation surface (component G).
type Service interface {
	Libraries(ctx context.Context) ([]models.Section, error)
	Items(ctx context.Context, sectionID uint, filter models.ItemType) ([]models.Item, error)
	Seasons(ctx context.Context, showID uint) ([]models.Item, error)
	Episodes(ctx context.Context, seasonID uint) ([]models.Item, error)
	MarkersForParents(ctx context.Context, parentIDs []uint) (map[uint][]models.Marker, error)
	SectionStats(ctx context.Context, sectionID uint) (models.SectionBreakdown, error)
}
