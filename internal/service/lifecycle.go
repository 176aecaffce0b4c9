// Package service wires components A-H into the single Service value
// spec.md §9's redesign note calls for, replacing the source's
// process-wide singletons with fields constructed once at startup and
// injected into every component that needs them.
package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/killallgit/player-api/internal/database"
	"github.com/killallgit/player-api/internal/dispatcher"
	"github.com/killallgit/player-api/internal/models"
	"github.com/killallgit/player-api/internal/services/actionlog"
	"github.com/killallgit/player-api/internal/services/libraryadapter"
	"github.com/killallgit/player-api/internal/services/markercache"
	"github.com/killallgit/player-api/internal/services/markers"
	"github.com/killallgit/player-api/internal/services/purge"
	"github.com/killallgit/player-api/internal/services/query"
	"github.com/killallgit/player-api/internal/services/shift"
	"github.com/killallgit/player-api/internal/concurrency"
	apperrors "github.com/killallgit/player-api/pkg/errors"
	"github.com/killallgit/player-api/pkg/config"
)

// State is one of the lifecycle states spec.md §5 names.
type State string

const (
	StateFirstBoot     State = "first_boot"
	StateRunning       State = "running"
	StateSuspended     State = "suspended"
	StateShuttingDown  State = "shutting_down"
)

// Service bundles every marker-core component behind one long-lived
// value: the library/action-log database handles, the Marker Cache,
// the CRUD/Shift/Purge/Query engines, and the Request Dispatcher built
// over them. Suspend and Resume are methods on this value, per spec.md
// §9's "collapse singletons" note.
type Service struct {
	mu    sync.RWMutex
	state State

	cfg     *config.Config
	handles *database.Handles

	adapter libraryadapter.Adapter
	cache   *markercache.Cache
	log     actionlog.Store
	locks   *concurrency.KeyedMutex

	crud     markers.Service
	shiftSvc shift.Service
	purgeSvc purge.Reconciler
	querySvc query.Service
	dispatch dispatcher.Dispatcher
}

// New opens both database handles against the process-wide config,
// builds every engine component over them, runs the initial cache
// rebuild (when extendedStats is enabled) and then the startup Purge
// Reconciler pass (when backupActions is enabled), and returns a Service
// in the Running state. Callers that need FirstBoot's one-time CLI
// setup should complete it before calling New.
func New() (*Service, error) {
	handles, err := database.InitializeWithMigrations(actionlog.Models()...)
	if err != nil {
		return nil, fmt.Errorf("opening database handles: %w", err)
	}
	cfg, err := config.GetConfig()
	if err != nil {
		handles.Close()
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return NewWithHandles(cfg, handles)
}

// NewWithHandles builds a Service over already-open database handles
// and a fully-populated config, bypassing New's dependency on the
// process-wide viper-backed config singleton. Tests (in this package
// and in internal/api) use it to wire a Service over temp-file SQLite
// handles they control directly.
func NewWithHandles(cfg *config.Config, handles *database.Handles) (*Service, error) {
	s := &Service{cfg: cfg, handles: handles, state: StateFirstBoot}
	if err := s.wire(context.Background(), handles.Library); err != nil {
		handles.Close()
		return nil, err
	}
	s.state = StateRunning
	return s, nil
}

// wire (re)builds the engine stack over a given library database
// handle and swaps it into s. It is shared by New and Resume, which is
// exactly the same construction with a freshly reopened handle.
func (s *Service) wire(ctx context.Context, library *database.DB) error {
	adapter := libraryadapter.New(library.DB)
	if s.cache == nil {
		s.cache = markercache.New()
	}
	if s.log == nil {
		s.log = actionlog.New(s.handles.ActionLog.DB)
	}
	if s.locks == nil {
		s.locks = concurrency.NewKeyedMutex()
	}

	crud := markers.New(adapter, s.cache, s.log, s.locks)
	shiftSvc := shift.New(adapter, s.log, s.locks)
	purgeSvc := purge.New(adapter, s.log, crud)
	querySvc := query.New(adapter, s.cache, s.cfg.Markers.ExtendedStats)

	s.adapter, s.crud, s.shiftSvc, s.purgeSvc, s.querySvc = adapter, crud, shiftSvc, purgeSvc, querySvc
	s.dispatch = dispatcher.New(dispatcher.Services{
		Markers:       crud,
		Shift:         shiftSvc,
		Purge:         purgeSvc,
		Query:         querySvc,
		Lifecycle:     s,
		BackupActions: s.cfg.Markers.BackupActions,
	})

	if s.cfg.Markers.ExtendedStats {
		if err := rebuildCache(ctx, adapter, s.cache); err != nil {
			return fmt.Errorf("rebuilding marker cache: %w", err)
		}
	}
	if s.cfg.Markers.BackupActions {
		if err := purgeSvc.Reconcile(ctx); err != nil {
			return fmt.Errorf("running startup purge reconciliation: %w", err)
		}
	}
	return nil
}

// Dispatch routes to the Request Dispatcher, refusing every operation
// but "resume" while suspended and everything while shutting down, per
// spec.md §5's Suspend/Resume contract.
func (s *Service) Dispatch(ctx context.Context, operation string, params dispatcher.Params) (any, error) {
	s.mu.RLock()
	state := s.state
	s.mu.RUnlock()

	switch state {
	case StateShuttingDown:
		return nil, apperrors.Unavailable("service is shutting down")
	case StateSuspended:
		if operation != "resume" {
			return nil, apperrors.Unavailable("service is suspended")
		}
	}
	return s.dispatch.Dispatch(ctx, operation, params)
}

// Suspend closes the library database handle and moves the service to
// Suspended. Every subsequent mutating (and read) operation but resume
// fails with Unavailable until Resume is called. It does not wait for
// in-flight transactions beyond the mutex already serializing writes:
// per-parent/per-subtree locks (component D/E) and the state lock here
// together ensure no write is left half-applied.
func (s *Service) Suspend(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateRunning {
		return apperrors.Unavailable(fmt.Sprintf("cannot suspend from state %q", s.state))
	}
	if err := s.handles.Library.Close(); err != nil {
		return apperrors.Internal("closing library database", err)
	}
	s.state = StateSuspended
	return nil
}

// Resume reopens the library database handle, rebuilds every engine
// component over it, replays the Purge Reconciler and rebuilds the
// Marker Cache (the library DB may have changed while the service held
// no handle to it), and returns to Running.
func (s *Service) Resume(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateSuspended {
		return apperrors.Unavailable(fmt.Sprintf("cannot resume from state %q", s.state))
	}
	library, err := database.InitializeLibrary(s.cfg)
	if err != nil {
		return apperrors.Internal("reopening library database", err)
	}
	s.handles.Library = library
	if err := s.wire(ctx, library); err != nil {
		return apperrors.Internal("rewiring service after resume", err)
	}
	s.state = StateRunning
	return nil
}

// Shutdown closes both database handles and moves the service to
// ShuttingDown; no further operations are dispatched afterward.
func (s *Service) Shutdown() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateShuttingDown
	return s.handles.Close()
}

// State reports the service's current lifecycle state.
func (s *Service) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// rebuildCache repopulates the Marker Cache from scratch, one section
// at a time, per spec.md §4.C's SectionOverview-driven rebuild.
func rebuildCache(ctx context.Context, adapter libraryadapter.Adapter, cache *markercache.Cache) error {
	sections, err := adapter.Sections(ctx)
	if err != nil {
		return fmt.Errorf("listing sections: %w", err)
	}

	for _, section := range sections {
		entries, err := adapter.SectionOverview(ctx, section.ID)
		if err != nil {
			return fmt.Errorf("scanning section %d: %w", section.ID, err)
		}

		parentIDs := make([]uint, len(entries))
		for i, e := range entries {
			parentIDs[i] = e.ParentID
		}
		byParent, err := adapter.ListMarkersForParents(ctx, parentIDs)
		if err != nil {
			return fmt.Errorf("loading markers for section %d: %w", section.ID, err)
		}

		breakdowns := make(map[uint]models.Breakdown, len(parentIDs))
		ancestors := make(map[uint]markercache.Ancestors, len(parentIDs))
		for _, parentID := range parentIDs {
			intros, credits, commercials := 0, 0, 0
			var seasonID, showID *uint
			for _, m := range byParent[parentID] {
				switch m.Type {
				case models.MarkerIntro:
					intros++
				case models.MarkerCredits:
					credits++
				case models.MarkerCommercial:
					commercials++
				}
				seasonID, showID = m.SeasonID, m.ShowID
			}
			if seasonID == nil && showID == nil {
				seasonID, showID, err = resolveAncestors(ctx, adapter, parentID)
				if err != nil {
					return err
				}
			}
			breakdowns[parentID] = models.Breakdown{
				Bucket:      models.PackBucket(intros, credits),
				Commercials: commercials,
			}
			ancestors[parentID] = markercache.Ancestors{SeasonID: seasonID, ShowID: showID}
		}

		cache.RebuildSection(section.ID, breakdowns, ancestors)
	}
	return nil
}

// resolveAncestors walks an item's parent chain to find its season and
// show ids, used when a parent has no markers yet to read them off of.
func resolveAncestors(ctx context.Context, adapter libraryadapter.Adapter, itemID uint) (seasonID, showID *uint, err error) {
	item, err := adapter.GetItem(ctx, itemID)
	if err != nil || item == nil || item.ParentID == nil {
		return nil, nil, err
	}
	season, err := adapter.GetItem(ctx, *item.ParentID)
	if err != nil || season == nil {
		return nil, nil, err
	}
	sid := season.ID
	if season.ParentID == nil {
		return &sid, nil, nil
	}
	show, err := adapter.GetItem(ctx, *season.ParentID)
	if err != nil || show == nil {
		return &sid, nil, err
	}
	shid := show.ID
	return &sid, &shid, nil
}
