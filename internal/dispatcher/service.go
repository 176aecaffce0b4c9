package dispatcher

import (
	"context"

	"github.com/killallgit/player-api/internal/models"
	apperrors "github.com/killallgit/player-api/pkg/errors"
)

type dispatcher struct {
	services Services
}

// New creates the Request Dispatcher (component H) over a fixed set of
// engine services.
func New(services Services) Dispatcher {
	return &dispatcher{services: services}
}

func (d *dispatcher) Dispatch(ctx context.Context, operation string, params Params) (any, error) {
	switch operation {
	case "query":
		return d.query(ctx, params)
	case "add":
		return d.add(ctx, params)
	case "edit":
		return d.edit(ctx, params)
	case "delete":
		return d.delete(ctx, params)
	case "shift":
		return d.shift(ctx, params)
	case "check_shift":
		return d.checkShift(ctx, params)
	case "get_sections":
		return d.services.Query.Libraries(ctx)
	case "get_section":
		return d.getSection(ctx, params)
	case "get_seasons":
		return d.getSeasons(ctx, params)
	case "get_episodes":
		return d.getEpisodes(ctx, params)
	case "get_stats":
		return d.getStats(ctx, params)
	case "purge_check":
		return d.purgeCheck(ctx, params)
	case "all_purges":
		return d.allPurges(ctx, params)
	case "restore":
		return d.restore(ctx, params)
	case "ignore_purge":
		return d.ignorePurge(ctx, params)
	case "suspend":
		return nil, d.services.Lifecycle.Suspend(ctx)
	case "resume":
		return nil, d.services.Lifecycle.Resume(ctx)
	default:
		return nil, apperrors.NotFound("operation", operation)
	}
}

func (d *dispatcher) query(ctx context.Context, raw Params) (any, error) {
	p, err := newQueryParams(raw)
	if err != nil {
		return nil, err
	}
	return d.services.Query.MarkersForParents(ctx, p.keys)
}

func (d *dispatcher) add(ctx context.Context, raw Params) (any, error) {
	p, err := newAddParams(raw)
	if err != nil {
		return nil, err
	}
	return d.services.Markers.Add(ctx, p.parentID, p.start, p.end, p.typ, p.final)
}

func (d *dispatcher) edit(ctx context.Context, raw Params) (any, error) {
	p, err := newEditParams(raw)
	if err != nil {
		return nil, err
	}
	return d.services.Markers.Edit(ctx, p.markerID, p.start, p.end, p.typ, p.final)
}

func (d *dispatcher) delete(ctx context.Context, raw Params) (any, error) {
	p, err := newDeleteParams(raw)
	if err != nil {
		return nil, err
	}
	return d.services.Markers.Delete(ctx, p.markerID)
}

func (d *dispatcher) shift(ctx context.Context, raw Params) (any, error) {
	p, err := newShiftParams(raw)
	if err != nil {
		return nil, err
	}
	if p.dStart == 0 && p.dEnd == 0 {
		return nil, apperrors.BadRequest("shift requires a non-zero delta")
	}
	return d.services.Shift.Shift(ctx, p.rootID, p.dStart, p.dEnd, p.force, p.ignoreIDs)
}

func (d *dispatcher) checkShift(ctx context.Context, raw Params) (any, error) {
	p, err := newIDParams(raw)
	if err != nil {
		return nil, err
	}
	return d.services.Shift.CheckShift(ctx, p.id)
}

func (d *dispatcher) getSection(ctx context.Context, raw Params) (any, error) {
	p, err := newItemsParams(raw)
	if err != nil {
		return nil, err
	}
	return d.services.Query.Items(ctx, p.sectionID, p.filter)
}

func (d *dispatcher) getSeasons(ctx context.Context, raw Params) (any, error) {
	p, err := newIDParams(raw)
	if err != nil {
		return nil, err
	}
	return d.services.Query.Seasons(ctx, p.id)
}

func (d *dispatcher) getEpisodes(ctx context.Context, raw Params) (any, error) {
	p, err := newIDParams(raw)
	if err != nil {
		return nil, err
	}
	return d.services.Query.Episodes(ctx, p.id)
}

func (d *dispatcher) getStats(ctx context.Context, raw Params) (any, error) {
	p, err := newIDParams(raw)
	if err != nil {
		return nil, err
	}
	return d.services.Query.SectionStats(ctx, p.id)
}

func (d *dispatcher) purgeCheck(ctx context.Context, raw Params) (any, error) {
	if !d.services.BackupActions {
		return nil, apperrors.FeatureDisabled("backupActions")
	}
	p, err := newIDParams(raw)
	if err != nil {
		return nil, err
	}
	return d.services.Purge.PurgeCheck(ctx, p.id)
}

func (d *dispatcher) allPurges(ctx context.Context, raw Params) (any, error) {
	if !d.services.BackupActions {
		return nil, apperrors.FeatureDisabled("backupActions")
	}
	p, err := newSectionIDParams(raw)
	if err != nil {
		return nil, err
	}
	markers := d.services.Purge.PurgesForSection(p.sectionID)
	if markers == nil {
		markers = []models.PurgedMarker{}
	}
	return SectionPurges{SectionID: p.sectionID, Markers: markers}, nil
}

func (d *dispatcher) restore(ctx context.Context, raw Params) (any, error) {
	if !d.services.BackupActions {
		return nil, apperrors.FeatureDisabled("backupActions")
	}
	p, err := newPurgeTargetParams(raw)
	if err != nil {
		return nil, err
	}
	return d.services.Purge.Restore(ctx, p.markerID, p.sectionID)
}

func (d *dispatcher) ignorePurge(ctx context.Context, raw Params) (any, error) {
	if !d.services.BackupActions {
		return nil, apperrors.FeatureDisabled("backupActions")
	}
	p, err := newPurgeTargetParams(raw)
	if err != nil {
		return nil, err
	}
	return nil, d.services.Purge.Ignore(ctx, p.markerID, p.sectionID)
}
