package shift

import (
	"context"

	"github.com/killallgit/player-api/internal/models"
)

// Classification is the per-marker verdict the shift algorithm assigns
// before deciding whether, and how, to commit a candidate's new
// interval (spec.md §4.E).
type Classification string

const (
	ClassError  Classification = "error"
	ClassCutoff Classification = "cutoff"
	ClassClean  Classification = "clean"
)

// ShiftPreview is CheckShift's read-only result: every marker in the
// subtree, and whether any parent carries more than one retained
// marker ("linked").
type ShiftPreview struct {
	AllMarkers     []models.Marker
	LinkedConflict bool
}

// ShiftResult is Shift's outcome. When Applied is false, no marker was
// written; Conflict and Overflow explain why.
type ShiftResult struct {
	Applied    bool
	Conflict   bool
	Overflow   bool
	AllMarkers []models.Marker
}

// Service is the Shift Engine (component E): bulk time-shift over a
// subtree root, with per-candidate Error/Cutoff/Clean classification
// and linked-conflict detection.
type Service interface {
	CheckShift(ctx context.Context, rootID uint) (ShiftPreview, error)
	Shift(ctx context.Context, rootID uint, dStart, dEnd int64, force bool, ignoreIDs []uint) (ShiftResult, error)
}
