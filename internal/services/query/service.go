package query

import (
	"context"

	"github.com/killallgit/player-api/internal/models"
	"github.com/killallgit/player-api/internal/services/libraryadapter"
	"github.com/killallgit/player-api/internal/services/markercache"
	apperrors "github.com/killallgit/player-api/pkg/errors"
)

type service struct {
	adapter      libraryadapter.Adapter
	cache        *markercache.Cache
	cacheEnabled bool
}

// New creates the query service. cacheEnabled mirrors the
// extendedMarkerStats config switch: when false, SectionStats always
// falls back to a live scan rather than trusting the cache, matching
// spec.md §6's degrade behavior for a disabled Marker Cache.
func New(adapter libraryadapter.Adapter, cache *markercache.Cache, cacheEnabled bool) Service {
	return &service{adapter: adapter, cache: cache, cacheEnabled: cacheEnabled}
}

func (s *service) Libraries(ctx context.Context) ([]models.Section, error) {
	sections, err := s.adapter.Sections(ctx)
	if err != nil {
		return nil, apperrors.Internal("listing libraries", err)
	}
	return sections, nil
}

func (s *service) Items(ctx context.Context, sectionID uint, filter models.ItemType) ([]models.Item, error) {
	section, err := s.adapter.GetSection(ctx, sectionID)
	if err != nil {
		return nil, apperrors.Internal("loading section", err)
	}
	if section == nil {
		return nil, apperrors.NotFound("section", sectionID)
	}

	entries, err := s.adapter.SectionOverview(ctx, sectionID)
	if err != nil {
		return nil, apperrors.Internal("listing section overview", err)
	}

	items := make([]models.Item, 0, len(entries))
	for _, e := range entries {
		if filter != "" && e.Type != filter {
			continue
		}
		item, err := s.adapter.GetItem(ctx, e.ParentID)
		if err != nil {
			return nil, apperrors.Internal("loading item", err)
		}
		if item != nil {
			items = append(items, *item)
		}
	}
	return items, nil
}

func (s *service) Seasons(ctx context.Context, showID uint) ([]models.Item, error) {
	items, err := s.adapter.ListChildren(ctx, showID, models.ItemSeason)
	if err != nil {
		return nil, apperrors.Internal("listing seasons", err)
	}
	return items, nil
}

func (s *service) Episodes(ctx context.Context, seasonID uint) ([]models.Item, error) {
	items, err := s.adapter.ListChildren(ctx, seasonID, models.ItemEpisode)
	if err != nil {
		return nil, apperrors.Internal("listing episodes", err)
	}
	return items, nil
}

func (s *service) MarkersForParents(ctx context.Context, parentIDs []uint) (map[uint][]models.Marker, error) {
	result, err := s.adapter.ListMarkersForParents(ctx, parentIDs)
	if err != nil {
		return nil, apperrors.Internal("listing markers", err)
	}
	return result, nil
}

func (s *service) SectionStats(ctx context.Context, sectionID uint) (models.SectionBreakdown, error) {
	if s.cacheEnabled && s.cache != nil {
		return s.cache.SectionBreakdown(sectionID), nil
	}
	return s.liveScan(ctx, sectionID)
}

// liveScan recomputes a section's breakdown directly from the library
// database, used when the Marker Cache is disabled or was never built.
func (s *service) liveScan(ctx context.Context, sectionID uint) (models.SectionBreakdown, error) {
	entries, err := s.adapter.SectionOverview(ctx, sectionID)
	if err != nil {
		return models.SectionBreakdown{}, apperrors.Internal("scanning section", err)
	}

	parentIDs := make([]uint, len(entries))
	for i, e := range entries {
		parentIDs[i] = e.ParentID
	}
	byParent, err := s.adapter.ListMarkersForParents(ctx, parentIDs)
	if err != nil {
		return models.SectionBreakdown{}, apperrors.Internal("scanning section markers", err)
	}

	sb := models.SectionBreakdown{
		CollapsedBuckets: make(map[int]int),
		IntroBuckets:     make(map[int]int),
		CreditsBuckets:   make(map[int]int),
	}
	distinct := make(map[models.PackedBucket]struct{})

	for _, parentID := range parentIDs {
		markers := byParent[parentID]
		intros, credits, commercials := 0, 0, 0
		for _, m := range markers {
			switch m.Type {
			case models.MarkerIntro:
				intros++
			case models.MarkerCredits:
				credits++
			case models.MarkerCommercial:
				commercials++
			}
		}
		bucket := models.PackBucket(intros, credits)
		total := bucket.Total() + commercials

		sb.ItemCount++
		distinct[bucket] = struct{}{}
		sb.CollapsedBuckets[total]++
		sb.IntroBuckets[intros]++
		sb.CreditsBuckets[credits]++
		sb.TotalIntros += intros
		sb.TotalCredits += credits
		sb.TotalCommercials += commercials
		sb.TotalMarkers += total
		if total > 0 {
			sb.ItemsWithMarkers++
		}
		if intros > 0 {
			sb.ItemsWithIntros++
		}
		if credits > 0 {
			sb.ItemsWithCredits++
		}
	}

	sb.Buckets = len(distinct)
	return sb, nil
}
