package dispatcher

import (
	"strconv"
	"strings"

	"github.com/killallgit/player-api/internal/models"
	apperrors "github.com/killallgit/player-api/pkg/errors"
)

// requireUint parses a required unsigned integer parameter.
func requireUint(p Params, key string) (uint, error) {
	raw, ok := p[key]
	if !ok || raw == "" {
		return 0, apperrors.BadRequest("missing parameter " + key)
	}
	v, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, apperrors.BadRequest("parameter " + key + " must be an integer")
	}
	return uint(v), nil
}

// requireInt64 parses a required signed integer parameter.
func requireInt64(p Params, key string) (int64, error) {
	raw, ok := p[key]
	if !ok || raw == "" {
		return 0, apperrors.BadRequest("missing parameter " + key)
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, apperrors.BadRequest("parameter " + key + " must be an integer")
	}
	return v, nil
}

// optionalInt64 parses an optional signed integer parameter, defaulting
// to def when the key is absent or empty.
func optionalInt64(p Params, key string, def int64) (int64, error) {
	raw, ok := p[key]
	if !ok || raw == "" {
		return def, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, apperrors.BadRequest("parameter " + key + " must be an integer")
	}
	return v, nil
}

// optionalBool parses a 0/1-flavored boolean parameter, defaulting to
// false when absent (spec.md §6 represents booleans as int(0/1)).
func optionalBool(p Params, key string) (bool, error) {
	raw, ok := p[key]
	if !ok || raw == "" {
		return false, nil
	}
	switch raw {
	case "0":
		return false, nil
	case "1":
		return true, nil
	default:
		return false, apperrors.BadRequest("parameter " + key + " must be 0 or 1")
	}
}

// requireMarkerType parses and validates a marker type string.
func requireMarkerType(p Params, key string) (models.MarkerType, error) {
	raw, ok := p[key]
	if !ok || raw == "" {
		return "", apperrors.BadRequest("missing parameter " + key)
	}
	typ := models.MarkerType(raw)
	if !typ.IsValid() {
		return "", apperrors.BadRequest("parameter " + key + " must be one of intro, credits, commercial")
	}
	return typ, nil
}

// optionalItemType parses an optional enumerated item type filter,
// returning "" (meaning "no filter") when absent.
func optionalItemType(p Params, key string) (models.ItemType, error) {
	raw, ok := p[key]
	if !ok || raw == "" {
		return "", nil
	}
	typ := models.ItemType(raw)
	switch typ {
	case models.ItemShow, models.ItemMovie:
		return typ, nil
	default:
		return "", apperrors.BadRequest("parameter " + key + " must be show or movie")
	}
}

// parseUintCSV parses a comma-separated list of unsigned integers. An
// empty string yields an empty (not nil) slice.
func parseUintCSV(raw string) ([]uint, error) {
	if strings.TrimSpace(raw) == "" {
		return []uint{}, nil
	}
	parts := strings.Split(raw, ",")
	ids := make([]uint, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		v, err := strconv.ParseUint(part, 10, 32)
		if err != nil {
			return nil, apperrors.BadRequest("id list must contain only integers")
		}
		ids = append(ids, uint(v))
	}
	return ids, nil
}

// requireUintCSV parses a required comma-separated list of unsigned
// integers, rejecting an empty list.
func requireUintCSV(p Params, key string) ([]uint, error) {
	raw, ok := p[key]
	if !ok || raw == "" {
		return nil, apperrors.BadRequest("missing parameter " + key)
	}
	ids, err := parseUintCSV(raw)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, apperrors.BadRequest("parameter " + key + " must contain at least one id")
	}
	return ids, nil
}

// optionalUintCSV parses an optional comma-separated list of unsigned
// integers, defaulting to an empty slice when absent.
func optionalUintCSV(p Params, key string) ([]uint, error) {
	raw, ok := p[key]
	if !ok {
		return []uint{}, nil
	}
	return parseUintCSV(raw)
}

// addParams is the validated parameter object for the "add" operation.
type addParams struct {
	parentID uint
	start    int64
	end      int64
	typ      models.MarkerType
	final    bool
}

func newAddParams(p Params) (addParams, error) {
	parentID, err := requireUint(p, "metadataId")
	if err != nil {
		return addParams{}, err
	}
	start, err := requireInt64(p, "start")
	if err != nil {
		return addParams{}, err
	}
	end, err := requireInt64(p, "end")
	if err != nil {
		return addParams{}, err
	}
	typ, err := requireMarkerType(p, "type")
	if err != nil {
		return addParams{}, err
	}
	final, err := optionalBool(p, "final")
	if err != nil {
		return addParams{}, err
	}
	return addParams{parentID: parentID, start: start, end: end, typ: typ, final: final}, nil
}

// editParams is the validated parameter object for the "edit"
// operation. userCreated is parsed for validation but not forwarded:
// every marker this service creates is already flagged created-by-user
// at insert time (libraryadapter.InsertMarker), so there is nothing
// for the CRUD engine to toggle.
type editParams struct {
	markerID uint
	start    int64
	end      int64
	typ      models.MarkerType
	final    bool
}

func newEditParams(p Params) (editParams, error) {
	markerID, err := requireUint(p, "id")
	if err != nil {
		return editParams{}, err
	}
	start, err := requireInt64(p, "start")
	if err != nil {
		return editParams{}, err
	}
	end, err := requireInt64(p, "end")
	if err != nil {
		return editParams{}, err
	}
	typ, err := requireMarkerType(p, "type")
	if err != nil {
		return editParams{}, err
	}
	final, err := optionalBool(p, "final")
	if err != nil {
		return editParams{}, err
	}
	if _, err := optionalBool(p, "userCreated"); err != nil {
		return editParams{}, err
	}
	return editParams{markerID: markerID, start: start, end: end, typ: typ, final: final}, nil
}

// deleteParams is the validated parameter object for "delete".
type deleteParams struct {
	markerID uint
}

func newDeleteParams(p Params) (deleteParams, error) {
	markerID, err := requireUint(p, "id")
	if err != nil {
		return deleteParams{}, err
	}
	return deleteParams{markerID: markerID}, nil
}

// shiftParams is the validated parameter object for "shift". The wire
// table allows either a single symmetric `shift` delta or an asymmetric
// `(startShift, endShift)` pair; `shift` wins if both are present.
type shiftParams struct {
	rootID    uint
	dStart    int64
	dEnd      int64
	force     bool
	ignoreIDs []uint
}

func newShiftParams(p Params) (shiftParams, error) {
	rootID, err := requireUint(p, "id")
	if err != nil {
		return shiftParams{}, err
	}
	force, err := optionalBool(p, "force")
	if err != nil {
		return shiftParams{}, err
	}
	ignoreIDs, err := optionalUintCSV(p, "ignored")
	if err != nil {
		return shiftParams{}, err
	}

	var dStart, dEnd int64
	if raw, ok := p["shift"]; ok && raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return shiftParams{}, apperrors.BadRequest("parameter shift must be an integer")
		}
		dStart, dEnd = v, v
	} else {
		dStart, err = optionalInt64(p, "startShift", 0)
		if err != nil {
			return shiftParams{}, err
		}
		dEnd, err = optionalInt64(p, "endShift", 0)
		if err != nil {
			return shiftParams{}, err
		}
	}

	return shiftParams{rootID: rootID, dStart: dStart, dEnd: dEnd, force: force, ignoreIDs: ignoreIDs}, nil
}

// idParams is the validated parameter object for every operation whose
// only input is a single "id": check_shift, get_section, get_seasons,
// get_episodes, get_stats, purge_check.
type idParams struct {
	id uint
}

func newIDParams(p Params) (idParams, error) {
	id, err := requireUint(p, "id")
	if err != nil {
		return idParams{}, err
	}
	return idParams{id: id}, nil
}

// sectionIDParams is the validated parameter object for "all_purges".
type sectionIDParams struct {
	sectionID uint
}

func newSectionIDParams(p Params) (sectionIDParams, error) {
	sectionID, err := requireUint(p, "sectionId")
	if err != nil {
		return sectionIDParams{}, err
	}
	return sectionIDParams{sectionID: sectionID}, nil
}

// purgeTargetParams is the validated parameter object shared by
// "restore" and "ignore_purge".
type purgeTargetParams struct {
	markerID  uint
	sectionID uint
}

func newPurgeTargetParams(p Params) (purgeTargetParams, error) {
	markerID, err := requireUint(p, "markerId")
	if err != nil {
		return purgeTargetParams{}, err
	}
	sectionID, err := requireUint(p, "sectionId")
	if err != nil {
		return purgeTargetParams{}, err
	}
	return purgeTargetParams{markerID: markerID, sectionID: sectionID}, nil
}

// queryParams is the validated parameter object for "query".
type queryParams struct {
	keys []uint
}

func newQueryParams(p Params) (queryParams, error) {
	keys, err := requireUintCSV(p, "keys")
	if err != nil {
		return queryParams{}, err
	}
	return queryParams{keys: keys}, nil
}

// itemsParams is the validated parameter object for "get_section".
type itemsParams struct {
	sectionID uint
	filter    models.ItemType
}

func newItemsParams(p Params) (itemsParams, error) {
	sectionID, err := requireUint(p, "id")
	if err != nil {
		return itemsParams{}, err
	}
	filter, err := optionalItemType(p, "filter")
	if err != nil {
		return itemsParams{}, err
	}
	return itemsParams{sectionID: sectionID, filter: filter}, nil
}
