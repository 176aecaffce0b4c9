package shift

import (
	"context"
	"sort"

	"github.com/killallgit/player-api/internal/concurrency"
	"github.com/killallgit/player-api/internal/models"
	"github.com/killallgit/player-api/internal/services/actionlog"
	"github.com/killallgit/player-api/internal/services/libraryadapter"
	apperrors "github.com/killallgit/player-api/pkg/errors"
)

type service struct {
	adapter libraryadapter.Adapter
	log     actionlog.Store
	locks   *concurrency.KeyedMutex
}

// New creates the Shift Engine.
func New(adapter libraryadapter.Adapter, log actionlog.Store, locks *concurrency.KeyedMutex) Service {
	return &service{adapter: adapter, log: log, locks: locks}
}

func (s *service) CheckShift(ctx context.Context, rootID uint) (ShiftPreview, error) {
	markers, err := s.adapter.ListMarkersForSubtree(ctx, rootID)
	if err != nil {
		return ShiftPreview{}, apperrors.Internal("enumerating subtree markers", err)
	}
	return ShiftPreview{
		AllMarkers:     markers,
		LinkedConflict: hasLinkedConflict(markers),
	}, nil
}

func hasLinkedConflict(markers []models.Marker) bool {
	byParent := make(map[uint]int)
	for _, m := range markers {
		byParent[m.ParentID]++
	}
	for _, n := range byParent {
		if n > 1 {
			return true
		}
	}
	return false
}

func classify(m models.Marker, dStart, dEnd, duration int64) (Classification, int64, int64) {
	newStart, newEnd := m.Start+dStart, m.End+dEnd
	if newEnd <= 0 || newStart >= duration || newEnd <= newStart {
		return ClassError, newStart, newEnd
	}
	if newStart < 0 || newEnd > duration {
		clamped := func(v, lo, hi int64) int64 {
			if v < lo {
				return lo
			}
			if v > hi {
				return hi
			}
			return v
		}
		return ClassCutoff, clamped(newStart, 0, duration), clamped(newEnd, 0, duration)
	}
	return ClassClean, newStart, newEnd
}

func (s *service) Shift(ctx context.Context, rootID uint, dStart, dEnd int64, force bool, ignoreIDs []uint) (ShiftResult, error) {
	if dStart == 0 && dEnd == 0 {
		return ShiftResult{}, apperrors.BadRequest("dStart and dEnd cannot both be zero")
	}

	unlock := s.locks.Lock(rootID)
	defer unlock()

	all, err := s.adapter.ListMarkersForSubtree(ctx, rootID)
	if err != nil {
		return ShiftResult{}, apperrors.Internal("enumerating subtree markers", err)
	}

	ignored := make(map[uint]bool, len(ignoreIDs))
	for _, id := range ignoreIDs {
		ignored[id] = true
	}
	retained := make([]models.Marker, 0, len(all))
	for _, m := range all {
		if !ignored[m.ID] {
			retained = append(retained, m)
		}
	}

	if hasLinkedConflict(retained) && !force {
		return ShiftResult{
			Applied:    false,
			Conflict:   true,
			Overflow:   anyErrorAmong(ctx, s.adapter, retained, dStart, dEnd),
			AllMarkers: all,
		}, nil
	}

	durations := make(map[uint]int64, len(retained))
	for _, m := range retained {
		if _, ok := durations[m.ParentID]; ok {
			continue
		}
		parent, err := s.adapter.GetItem(ctx, m.ParentID)
		if err != nil {
			return ShiftResult{}, apperrors.Internal("loading parent duration", err)
		}
		if parent != nil {
			durations[m.ParentID] = parent.Duration
		}
	}

	type classified struct {
		marker         models.Marker
		classification Classification
		newStart       int64
		newEnd         int64
	}
	classifiedMarkers := make([]classified, len(retained))
	anyError := false
	for i, m := range retained {
		class, newStart, newEnd := classify(m, dStart, dEnd, durations[m.ParentID])
		classifiedMarkers[i] = classified{marker: m, classification: class, newStart: newStart, newEnd: newEnd}
		if class == ClassError {
			anyError = true
		}
	}

	if anyError && !force {
		return ShiftResult{Applied: false, Conflict: false, Overflow: true, AllMarkers: all}, nil
	}

	byParent := make(map[uint][]classified)
	for _, c := range classifiedMarkers {
		if c.classification == ClassError {
			continue // discarded from the shift, never written
		}
		byParent[c.marker.ParentID] = append(byParent[c.marker.ParentID], c)
	}

	parentIDs := make([]uint, 0, len(byParent))
	for id := range byParent {
		parentIDs = append(parentIDs, id)
	}
	sort.Slice(parentIDs, func(i, j int) bool { return parentIDs[i] < parentIDs[j] })

	var mutated []models.Marker
	for _, parentID := range parentIDs {
		siblings, err := s.adapter.ListMarkers(ctx, parentID)
		if err != nil {
			return ShiftResult{}, apperrors.Internal("loading siblings", err)
		}

		newIntervals := make(map[uint]struct{ start, end int64 })
		for _, c := range byParent[parentID] {
			newIntervals[c.marker.ID] = struct{ start, end int64 }{c.newStart, c.newEnd}
		}

		for i := range siblings {
			if nv, ok := newIntervals[siblings[i].ID]; ok {
				siblings[i].Start, siblings[i].End = nv.start, nv.end
			}
		}

		models.SortByStart(siblings)
		changed := models.Reindex(siblings)

		changedIndex := make(map[int]bool, len(changed))
		for _, i := range changed {
			changedIndex[i] = true
		}

		var parentMutated []models.Marker
		err = s.adapter.WithinTransaction(ctx, func(tx libraryadapter.Adapter) error {
			for i, m := range siblings {
				_, movedInterval := newIntervals[m.ID]
				switch {
				case movedInterval:
					if err := tx.UpdateMarker(ctx, m.ID, m.Start, m.End, m.Index, m.Type, m.Final); err != nil {
						return err
					}
					parentMutated = append(parentMutated, m)
				case changedIndex[i]:
					if err := tx.UpdateMarkerIndex(ctx, m.ID, m.Index); err != nil {
						return err
					}
				}
			}
			return models.AssertInvariants(siblings, durations[parentID])
		})
		if err != nil {
			return ShiftResult{}, apperrors.Internal("updating shifted markers", err)
		}
		mutated = append(mutated, parentMutated...)
	}

	for _, m := range mutated {
		orig := mustFind(all, m.ID)
		oldStart, oldEnd := orig.Start, orig.End
		key, err := actionlog.ResolveRestoreKey(ctx, s.log, m.ID)
		if err != nil {
			return ShiftResult{}, apperrors.Internal("loading marker's action log history", err)
		}
		if _, err := s.log.Append(ctx, models.ActionLogEntry{
			Op:         models.ActionEdit,
			MarkerID:   m.ID,
			RestoreKey: key,
			ParentID:   m.ParentID,
			SectionID:  m.SectionID,
			Start:      m.Start,
			End:        m.End,
			Type:       m.Type,
			Final:      m.Final,
			OldStart:   &oldStart,
			OldEnd:     &oldEnd,
		}); err != nil {
			return ShiftResult{}, apperrors.Internal("recording action log entry", err)
		}
	}

	return ShiftResult{Applied: true, Conflict: false, Overflow: false, AllMarkers: mutated}, nil
}

func mustFind(markers []models.Marker, id uint) models.Marker {
	for _, m := range markers {
		if m.ID == id {
			return m
		}
	}
	return models.Marker{}
}

// anyErrorAmong reports whether any retained marker would classify as
// Error under the given delta, used only to populate the Overflow flag
// on a conflict response that never reaches classification itself.
func anyErrorAmong(ctx context.Context, adapter libraryadapter.Adapter, retained []models.Marker, dStart, dEnd int64) bool {
	for _, m := range retained {
		parent, err := adapter.GetItem(ctx, m.ParentID)
		if err != nil || parent == nil {
			continue
		}
		if class, _, _ := classify(m, dStart, dEnd, parent.Duration); class == ClassError {
			return true
		}
	}
	return false
}
