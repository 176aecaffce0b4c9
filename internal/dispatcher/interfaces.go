// Package dispatcher maps externally-named operations (spec.md §6's
// wire table) onto the engine services (components D-G), parsing and
// validating the transport-independent parameter map before calling
// through. It is the one place that knows the wire operation names;
// everything past it speaks Go types.
package dispatcher

import (
	"context"

	"github.com/killallgit/player-api/internal/models"
	"github.com/killallgit/player-api/internal/services/markers"
	"github.com/killallgit/player-api/internal/services/purge"
	"github.com/killallgit/player-api/internal/services/query"
	"github.com/killallgit/player-api/internal/services/shift"
)

// Params is the transport-independent parameter map handed to an
// operation. Every value arrives as a string; the dispatcher parses
// and validates each one against the operation's typed parameter
// object rather than trusting the caller's types.
type Params map[string]string

// Lifecycle is the subset of the top-level service the dispatcher
// needs for the suspend/resume operations (spec.md §5). It is
// satisfied by the service wiring layer built on top of this package.
type Lifecycle interface {
	Suspend(ctx context.Context) error
	Resume(ctx context.Context) error
}

// Dispatcher is the Request Dispatcher (component H).
type Dispatcher interface {
	// Dispatch routes a wire operation name to its engine call. An
	// unknown name returns NotFound; a parameter parse or validation
	// failure returns BadRequest; any other error propagates from the
	// engine unchanged.
	Dispatch(ctx context.Context, operation string, params Params) (any, error)
}

// SectionPurges is the all_purges result shape: every purged marker
// known for a section, grouped only by the section itself (parents are
// carried on each entry).
type SectionPurges struct {
	SectionID uint                  `json:"sectionId"`
	Markers   []models.PurgedMarker `json:"markers"`
}

// Services bundles the engine surfaces the dispatcher routes to.
type Services struct {
	Markers   markers.Service
	Shift     shift.Service
	Purge     purge.Reconciler
	Query     query.Service
	Lifecycle Lifecycle

	// BackupActions gates purge/restore/ignore operations (spec.md §6);
	// when false they fail with FeatureDisabled rather than reaching
	// the Purge Reconciler at all.
	BackupActions bool
}
