package purge

import (
	"context"
	"sync"

	"github.com/killallgit/player-api/internal/models"
	"github.com/killallgit/player-api/internal/services/actionlog"
	"github.com/killallgit/player-api/internal/services/libraryadapter"
	"github.com/killallgit/player-api/internal/services/markers"
	apperrors "github.com/killallgit/player-api/pkg/errors"
)

type service struct {
	adapter libraryadapter.Adapter
	log     actionlog.Store
	crud    markers.Service

	mu    sync.RWMutex
	index map[uint]map[uint][]models.PurgedMarker // sectionID -> parentID -> candidates
}

// New creates the Purge Reconciler.
func New(adapter libraryadapter.Adapter, log actionlog.Store, crud markers.Service) Reconciler {
	return &service{adapter: adapter, log: log, crud: crud, index: make(map[uint]map[uint][]models.PurgedMarker)}
}

// tracked is the last Add/Edit/Restore entry seen for a marker id that
// has not since been closed out by a Delete or Ignore.
type tracked struct {
	entry models.ActionLogEntry
}

func (s *service) Reconcile(ctx context.Context) error {
	entries, err := s.log.All(ctx)
	if err != nil {
		return apperrors.Internal("listing action log entries", err)
	}

	open := make(map[uint]tracked)
	for _, e := range entries {
		switch e.Op {
		case models.ActionAdd, models.ActionEdit, models.ActionRestore:
			open[e.MarkerID] = tracked{entry: e}
		case models.ActionDelete, models.ActionIgnore:
			delete(open, e.MarkerID)
		}
	}

	index := make(map[uint]map[uint][]models.PurgedMarker)
	for markerID, t := range open {
		live, err := s.resolveLive(ctx, markerID, t.entry)
		if err != nil {
			return err
		}
		if live {
			continue
		}
		sec, ok := index[t.entry.SectionID]
		if !ok {
			sec = make(map[uint][]models.PurgedMarker)
			index[t.entry.SectionID] = sec
		}
		sec[t.entry.ParentID] = append(sec[t.entry.ParentID], models.PurgedMarker{
			RestoreKey:  t.entry.RestoreKey,
			OldMarkerID: markerID,
			ParentID:    t.entry.ParentID,
			SectionID:   t.entry.SectionID,
			Start:       t.entry.Start,
			End:         t.entry.End,
			Type:        t.entry.Type,
			Final:       t.entry.Final,
			LastSeenAt:  t.entry.At,
		})
	}

	s.mu.Lock()
	s.index = index
	s.mu.Unlock()
	return nil
}

// resolveLive reports whether the marker the entry describes still
// exists in the live library database, first by id and then by
// (parentId, start, end, type) fingerprint (spec.md §4.F step 1).
func (s *service) resolveLive(ctx context.Context, markerID uint, entry models.ActionLogEntry) (bool, error) {
	m, err := s.adapter.GetMarker(ctx, markerID)
	if err != nil {
		return false, apperrors.Internal("resolving marker by id", err)
	}
	if m != nil {
		return true, nil
	}

	siblings, err := s.adapter.ListMarkers(ctx, entry.ParentID)
	if err != nil {
		return false, apperrors.Internal("resolving marker by fingerprint", err)
	}
	for _, sib := range siblings {
		if sib.Start == entry.Start && sib.End == entry.End && sib.Type == entry.Type {
			return true, nil
		}
	}
	return false, nil
}

func (s *service) PurgesForSection(sectionID uint) []models.PurgedMarker {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.PurgedMarker
	for _, candidates := range s.index[sectionID] {
		out = append(out, candidates...)
	}
	return out
}

func (s *service) PurgeCheck(ctx context.Context, subtreeRootID uint) ([]models.PurgedMarker, error) {
	root, err := s.adapter.GetItem(ctx, subtreeRootID)
	if err != nil {
		return nil, apperrors.Internal("loading subtree root", err)
	}
	if root == nil {
		return nil, apperrors.NotFound("item", subtreeRootID)
	}

	parentIDs, err := s.adapter.MarkerableDescendants(ctx, subtreeRootID)
	if err != nil {
		return nil, apperrors.Internal("resolving subtree membership", err)
	}
	inSubtree := make(map[uint]bool, len(parentIDs))
	for _, id := range parentIDs {
		inSubtree[id] = true
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.PurgedMarker
	for parentID, candidates := range s.index[root.SectionID] {
		if inSubtree[parentID] {
			out = append(out, candidates...)
		}
	}
	return out, nil
}

func (s *service) findCandidate(sectionID, oldMarkerID uint) (models.PurgedMarker, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, candidates := range s.index[sectionID] {
		for _, c := range candidates {
			if c.OldMarkerID == oldMarkerID {
				return c, true
			}
		}
	}
	return models.PurgedMarker{}, false
}

func (s *service) removeCandidate(sectionID, oldMarkerID uint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sec, ok := s.index[sectionID]
	if !ok {
		return
	}
	for parentID, candidates := range sec {
		for i, c := range candidates {
			if c.OldMarkerID == oldMarkerID {
				sec[parentID] = append(candidates[:i], candidates[i+1:]...)
				return
			}
		}
	}
}

func (s *service) Restore(ctx context.Context, oldMarkerID uint, sectionID uint) (models.Marker, error) {
	candidate, ok := s.findCandidate(sectionID, oldMarkerID)
	if !ok {
		return models.Marker{}, apperrors.NotFound("purged marker", oldMarkerID)
	}

	restored, err := s.crud.Add(ctx, candidate.ParentID, candidate.Start, candidate.End, candidate.Type, candidate.Final)
	if err != nil {
		// left intact so the user can retry, per spec.md §4.F failure semantics
		return models.Marker{}, err
	}

	if _, err := s.log.Append(ctx, models.ActionLogEntry{
		Op:         models.ActionRestore,
		MarkerID:   restored.ID,
		RestoreKey: candidate.RestoreKey,
		ParentID:   restored.ParentID,
		SectionID:  sectionID,
		Start:      restored.Start,
		End:        restored.End,
		Type:       restored.Type,
		Final:      restored.Final,
	}); err != nil {
		return models.Marker{}, apperrors.Internal("recording restore entry", err)
	}

	s.removeCandidate(sectionID, oldMarkerID)
	return restored, nil
}

func (s *service) Ignore(ctx context.Context, oldMarkerID uint, sectionID uint) error {
	candidate, ok := s.findCandidate(sectionID, oldMarkerID)
	if !ok {
		return apperrors.NotFound("purged marker", oldMarkerID)
	}

	if _, err := s.log.Append(ctx, models.ActionLogEntry{
		Op:         models.ActionIgnore,
		MarkerID:   oldMarkerID,
		RestoreKey: candidate.RestoreKey,
		ParentID:   candidate.ParentID,
		SectionID:  sectionID,
		Start:      candidate.Start,
		End:        candidate.End,
		Type:       candidate.Type,
		Final:      candidate.Final,
		Ignored:    true,
	}); err != nil {
		return apperrors.Internal("recording ignore entry", err)
	}

	s.removeCandidate(sectionID, oldMarkerID)
	return nil
}
