package markers

import (
	"context"
	"fmt"
	"log"

	"github.com/killallgit/player-api/internal/concurrency"
	apperrors "github.com/killallgit/player-api/pkg/errors"

	"github.com/killallgit/player-api/internal/models"
	"github.com/killallgit/player-api/internal/services/actionlog"
	"github.com/killallgit/player-api/internal/services/libraryadapter"
	"github.com/killallgit/player-api/internal/services/markercache"
)

// service is the CRUD engine (component D). It serializes mutations to
// a given parent through locks, never across parents, so unrelated
// requests never wait on each other.
type service struct {
	adapter libraryadapter.Adapter
	cache   *markercache.Cache
	log     actionlog.Store
	locks   *concurrency.KeyedMutex
}

// New creates the CRUD engine.
func New(adapter libraryadapter.Adapter, cache *markercache.Cache, log actionlog.Store, locks *concurrency.KeyedMutex) Service {
	return &service{adapter: adapter, cache: cache, log: log, locks: locks}
}

func validateInterval(start, end, duration int64) error {
	if start < 0 {
		return apperrors.BadRequest("start must be >= 0")
	}
	if start >= end {
		return apperrors.BadRequest("start must be before end")
	}
	if duration > 0 && end > duration {
		return apperrors.BadRequest("end must not exceed the parent's duration")
	}
	return nil
}

// bucketCounts tallies intro/credits/commercial counts across markers.
func bucketCounts(markers []models.Marker) (intros, credits, commercials int) {
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
	return intros, credits, commercials
}

func (s *service) Add(ctx context.Context, parentID uint, start, end int64, typ models.MarkerType, final bool) (models.Marker, error) {
	unlock := s.locks.Lock(parentID)
	defer unlock()

	parent, err := s.adapter.GetItem(ctx, parentID)
	if err != nil {
		return models.Marker{}, apperrors.Internal("loading parent", err)
	}
	if parent == nil || !parent.Type.Markerable() {
		var t any
		if parent != nil {
			t = parent.Type
		}
		return models.Marker{}, apperrors.BadTarget(parentID, t)
	}

	if !typ.IsValid() {
		return models.Marker{}, apperrors.BadRequest(fmt.Sprintf("invalid marker type %q", typ))
	}
	if final && typ != models.MarkerCredits {
		return models.Marker{}, apperrors.BadRequest("final is only valid for credits markers")
	}
	if err := validateInterval(start, end, parent.Duration); err != nil {
		return models.Marker{}, err
	}

	existing, err := s.adapter.ListMarkers(ctx, parentID)
	if err != nil {
		return models.Marker{}, apperrors.Internal("loading siblings", err)
	}

	candidate := models.Marker{Start: start, End: end}
	for _, m := range existing {
		if candidate.Overlaps(m) {
			return models.Marker{}, apperrors.Overlap(parentID)
		}
	}

	var result models.Marker
	var all []models.Marker
	err = s.adapter.WithinTransaction(ctx, func(tx libraryadapter.Adapter) error {
		created, err := tx.InsertMarker(ctx, parentID, start, end, typ, final)
		if err != nil {
			return err
		}

		all = append(append([]models.Marker{}, existing...), created)
		models.SortByStart(all)
		changed := models.Reindex(all)

		for _, i := range changed {
			if all[i].ID == created.ID {
				continue // sort_index was already set at insert time
			}
			if err := tx.UpdateMarkerIndex(ctx, all[i].ID, all[i].Index); err != nil {
				return err
			}
		}

		for _, m := range all {
			if m.ID == created.ID {
				result = m
				break
			}
		}
		if err := tx.UpdateMarkerIndex(ctx, result.ID, result.Index); err != nil {
			return err
		}

		return models.AssertInvariants(all, parent.Duration)
	})
	if err != nil {
		return models.Marker{}, apperrors.Internal("inserting marker", err)
	}

	newIntros, newCredits, newCommercials := bucketCounts(all)
	s.cache.Set(parent.SectionID, parentID, models.Breakdown{
		Bucket:      models.PackBucket(newIntros, newCredits),
		Commercials: newCommercials,
	}, markercache.Ancestors{SeasonID: result.SeasonID, ShowID: result.ShowID})

	key := s.log.NewRestoreKey()
	if _, err := s.log.Append(ctx, models.ActionLogEntry{
		Op:         models.ActionAdd,
		MarkerID:   result.ID,
		RestoreKey: key,
		ParentID:   parentID,
		SectionID:  parent.SectionID,
		Start:      result.Start,
		End:        result.End,
		Type:       result.Type,
		Final:      result.Final,
	}); err != nil {
		return models.Marker{}, apperrors.Internal("recording action log entry", err)
	}

	return result, nil
}

func (s *service) Edit(ctx context.Context, markerID uint, start, end int64, typ models.MarkerType, final bool) (models.Marker, error) {
	current, parent, err := s.loadMarkerAndParent(ctx, markerID)
	if err != nil {
		return models.Marker{}, err
	}

	unlock := s.locks.Lock(current.ParentID)
	defer unlock()

	if final && typ != models.MarkerCredits {
		log.Printf("[WARN] edit of marker %d: final is only valid for credits markers, clearing it", markerID)
		final = false
	}
	if err := validateInterval(start, end, parent.Duration); err != nil {
		return models.Marker{}, err
	}

	siblings, err := s.adapter.ListMarkers(ctx, current.ParentID)
	if err != nil {
		return models.Marker{}, apperrors.Internal("loading siblings", err)
	}

	updated := make([]models.Marker, 0, len(siblings))
	var before models.Marker
	for _, m := range siblings {
		if m.ID == markerID {
			before = m
			m.Start, m.End, m.Type, m.Final = start, end, typ, final
		}
		updated = append(updated, m)
	}

	// overlap check against every other distinct marker post-replacement
	for i := range updated {
		for j := range updated {
			if i == j {
				continue
			}
			if updated[i].Overlaps(updated[j]) {
				return models.Marker{}, apperrors.Overlap(current.ParentID)
			}
		}
	}

	models.SortByStart(updated)
	changed := models.Reindex(updated)

	var target models.Marker
	for _, m := range updated {
		if m.ID == markerID {
			target = m
			break
		}
	}

	err = s.adapter.WithinTransaction(ctx, func(tx libraryadapter.Adapter) error {
		if err := tx.UpdateMarker(ctx, markerID, start, end, target.Index, typ, final); err != nil {
			return err
		}
		for _, i := range changed {
			if updated[i].ID == markerID {
				continue
			}
			if err := tx.UpdateMarkerIndex(ctx, updated[i].ID, updated[i].Index); err != nil {
				return err
			}
		}
		return models.AssertInvariants(updated, parent.Duration)
	})
	if err != nil {
		return models.Marker{}, apperrors.Internal("updating marker", err)
	}

	if before.Type != typ {
		oldIntros, oldCredits, _ := bucketCounts(siblings)
		newIntros, newCredits, _ := bucketCounts(updated)
		if oldIntros != newIntros || oldCredits != newCredits {
			s.cache.Delta(parent.SectionID, current.ParentID, oldIntros, oldCredits, newIntros, newCredits)
		}
		_, _, newCommercials := bucketCounts(updated)
		s.cache.SetCommercials(parent.SectionID, current.ParentID, newCommercials)
	}

	oldStart, oldEnd := before.Start, before.End
	key, err := actionlog.ResolveRestoreKey(ctx, s.log, markerID)
	if err != nil {
		return models.Marker{}, apperrors.Internal("loading marker's action log history", err)
	}
	if _, err := s.log.Append(ctx, models.ActionLogEntry{
		Op:         models.ActionEdit,
		MarkerID:   markerID,
		RestoreKey: key,
		ParentID:   current.ParentID,
		SectionID:  parent.SectionID,
		Start:      target.Start,
		End:        target.End,
		Type:       target.Type,
		Final:      target.Final,
		OldStart:   &oldStart,
		OldEnd:     &oldEnd,
	}); err != nil {
		return models.Marker{}, apperrors.Internal("recording action log entry", err)
	}

	return target, nil
}

func (s *service) Delete(ctx context.Context, markerID uint) (models.Marker, error) {
	current, parent, err := s.loadMarkerAndParent(ctx, markerID)
	if err != nil {
		return models.Marker{}, err
	}

	unlock := s.locks.Lock(current.ParentID)
	defer unlock()

	siblings, err := s.adapter.ListMarkers(ctx, current.ParentID)
	if err != nil {
		return models.Marker{}, apperrors.Internal("loading siblings", err)
	}

	remaining := make([]models.Marker, 0, len(siblings))
	for _, m := range siblings {
		if m.ID != markerID {
			remaining = append(remaining, m)
		}
	}
	models.SortByStart(remaining)
	changed := models.Reindex(remaining)

	err = s.adapter.WithinTransaction(ctx, func(tx libraryadapter.Adapter) error {
		if err := tx.DeleteMarker(ctx, markerID); err != nil {
			return err
		}
		for _, i := range changed {
			if err := tx.UpdateMarkerIndex(ctx, remaining[i].ID, remaining[i].Index); err != nil {
				return err
			}
		}
		return models.AssertInvariants(remaining, parent.Duration)
	})
	if err != nil {
		return models.Marker{}, apperrors.Internal("deleting marker", err)
	}

	if len(remaining) == 0 {
		s.cache.Remove(parent.SectionID, current.ParentID)
	} else {
		oldIntros, oldCredits, _ := bucketCounts(siblings)
		newIntros, newCredits, newCommercials := bucketCounts(remaining)
		s.cache.Delta(parent.SectionID, current.ParentID, oldIntros, oldCredits, newIntros, newCredits)
		s.cache.SetCommercials(parent.SectionID, current.ParentID, newCommercials)
	}

	key, err := actionlog.ResolveRestoreKey(ctx, s.log, markerID)
	if err != nil {
		return models.Marker{}, apperrors.Internal("loading marker's action log history", err)
	}
	if _, err := s.log.Append(ctx, models.ActionLogEntry{
		Op:         models.ActionDelete,
		MarkerID:   markerID,
		RestoreKey: key,
		ParentID:   current.ParentID,
		SectionID:  parent.SectionID,
		Start:      current.Start,
		End:        current.End,
		Type:       current.Type,
		Final:      current.Final,
	}); err != nil {
		return models.Marker{}, apperrors.Internal("recording action log entry", err)
	}

	return current, nil
}

// loadMarkerAndParent resolves a marker id to its current state and
// its owning item, without holding the per-parent lock (the caller
// takes it once the parent id is known).
func (s *service) loadMarkerAndParent(ctx context.Context, markerID uint) (models.Marker, *models.Item, error) {
	marker, err := s.adapter.GetMarker(ctx, markerID)
	if err != nil {
		return models.Marker{}, nil, apperrors.Internal("loading marker", err)
	}
	if marker == nil {
		return models.Marker{}, nil, apperrors.NotFound("marker", markerID)
	}
	parent, err := s.adapter.GetItem(ctx, marker.ParentID)
	if err != nil {
		return models.Marker{}, nil, apperrors.Internal("loading parent", err)
	}
	if parent == nil {
		return models.Marker{}, nil, apperrors.NotFound("item", marker.ParentID)
	}
	return *marker, parent, nil
}
