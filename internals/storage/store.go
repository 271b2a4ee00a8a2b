package storage

import (
	"context"
	"time"
	"upwatch/internals/modules/monitor"

	"github.com/google/uuid"
)

// Store is the persistence collaborator consumed by the check engine.
// Implementations must be safe for concurrent use; the scheduler calls
// into it from many check goroutines at once.
type Store interface {
	// ListDueMonitors returns enabled monitors whose next check time is
	// at or before now.
	ListDueMonitors(ctx context.Context, now time.Time) ([]monitor.Monitor, error)

	// GetMonitor returns a single monitor. A missing row yields an
	// apperror with Kind NotFound.
	GetMonitor(ctx context.Context, id uuid.UUID) (monitor.Monitor, error)

	// UpdateMonitorState applies the tracker's post-check state in one
	// write. A missing or disabled row yields Kind NotFound so a check
	// that lost its monitor mid-flight is discarded.
	UpdateMonitorState(ctx context.Context, id uuid.UUID, upd monitor.StateUpdate) error

	SaveCheckResult(ctx context.Context, result *monitor.CheckResult) error

	SaveAlert(ctx context.Context, alert *monitor.Alert) error

	// LatestAlert returns the most recent alert for a monitor+type pair,
	// or nil when none exists. Serves the suppression window check.
	LatestAlert(ctx context.Context, monitorID uuid.UUID, typ monitor.AlertType) (*monitor.Alert, error)

	// GetSettings returns the raw JSON value for a settings key, or nil
	// when the key has never been written.
	GetSettings(ctx context.Context, key string) ([]byte, error)
}
