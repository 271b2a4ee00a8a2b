package tracker

import (
	"context"
	"encoding/json"
	"time"
	"upwatch/internals/modules/monitor"
	"upwatch/internals/modules/probe"
	"upwatch/internals/modules/validation"
	"upwatch/internals/storage"
	"upwatch/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Verdict is the combined probe outcome and validation result for one
// check.
type Verdict struct {
	Outcome    probe.Outcome
	Validation validation.Result
}

func (v Verdict) Passed() bool {
	return v.Outcome.Succeeded && v.Validation.Passed
}

// StatusCache receives the latest status per monitor so dashboards can
// get a snapshot without a database read. Loss of the cache degrades
// snapshots, never correctness.
type StatusCache interface {
	SetStatus(ctx context.Context, userID, monitorID uuid.UUID, payload []byte) error
	DelStatus(ctx context.Context, userID, monitorID uuid.UUID) error
}

// Applied reports the persisted effect of one verdict.
type Applied struct {
	Monitor    monitor.Monitor // post-update view
	Result     monitor.CheckResult
	Transition *monitor.AlertType // nil when no state change occurred
}

type Tracker struct {
	store         storage.Store
	cache         StatusCache
	downThreshold int32
	logger        *zerolog.Logger
}

func New(store storage.Store, cache StatusCache, downThreshold int32, logger *zerolog.Logger) *Tracker {
	if downThreshold < 1 {
		downThreshold = 1
	}
	return &Tracker{
		store:         store,
		cache:         cache,
		downThreshold: downThreshold,
		logger:        logger,
	}
}

// Apply persists the monitor's new state and the check result, in that
// order. A failed state write advances nothing, so the monitor stays
// due and the next tick retries it; a state write rejected with
// NotFound means the monitor was deleted or disabled mid-check and the
// cycle is discarded.
func (t *Tracker) Apply(ctx context.Context, m monitor.Monitor, v Verdict) (Applied, error) {
	now := v.Outcome.CheckedAt
	if now.IsZero() {
		now = time.Now()
	}

	passed := v.Passed()
	var transition *monitor.AlertType

	m.TotalChecks++
	if passed {
		m.SuccessfulChecks++
		m.ConsecutiveFails = 0
		if m.Status != monitor.StatusUp {
			if m.Status == monitor.StatusDown {
				typ := monitor.AlertRecovery
				transition = &typ
			}
			m.Status = monitor.StatusUp
		}
	} else {
		m.ConsecutiveFails++
		// below the threshold the previous displayed status is kept
		if m.Status != monitor.StatusDown && m.ConsecutiveFails >= t.downThreshold {
			typ := monitor.AlertFailure
			transition = &typ
			m.Status = monitor.StatusDown
		}
	}

	m.LastLatencyMs = v.Outcome.LatencyMs
	m.LastCheckedAt = &now
	m.NextCheckAt = now.Add(m.Interval())

	// the state write goes first and gates the result insert: a monitor
	// deleted or disabled mid-check rejects it with NotFound and the
	// whole cycle is discarded, nothing persisted
	upd := monitor.StateUpdate{
		Status:           m.Status,
		LastCheckedAt:    now,
		NextCheckAt:      m.NextCheckAt,
		LastLatencyMs:    m.LastLatencyMs,
		ConsecutiveFails: m.ConsecutiveFails,
		TotalChecks:      m.TotalChecks,
		SuccessfulChecks: m.SuccessfulChecks,
	}
	if err := t.store.UpdateMonitorState(ctx, m.ID, upd); err != nil {
		if apperror.IsKind(err, apperror.NotFound) {
			t.dropStatus(ctx, &m)
		}
		return Applied{}, err
	}

	result := buildResult(&m, v, now)
	if err := t.store.SaveCheckResult(ctx, &result); err != nil {
		return Applied{}, err
	}

	t.cacheStatus(ctx, &m, now)

	return Applied{Monitor: m, Result: result, Transition: transition}, nil
}

func buildResult(m *monitor.Monitor, v Verdict, now time.Time) monitor.CheckResult {
	status := monitor.CheckFailure
	if v.Passed() {
		status = monitor.CheckSuccess
	}

	var httpStatus *int
	if v.Outcome.HTTPStatus != 0 {
		code := v.Outcome.HTTPStatus
		httpStatus = &code
	}

	return monitor.CheckResult{
		ID:             uuid.New(),
		MonitorID:      m.ID,
		Status:         status,
		HTTPStatus:     httpStatus,
		LatencyMs:      v.Outcome.LatencyMs,
		ErrorMessage:   v.Outcome.ErrorMessage,
		FailureReasons: v.Validation.Failures,
		ResponseBody:   v.Outcome.Body,
		ResponseMeta:   v.Outcome.Headers,
		CheckedAt:      now,
	}
}

type statusPayload struct {
	MonitorID string         `json:"monitor_id"`
	Status    monitor.Status `json:"status"`
	LatencyMs int64          `json:"latency_ms"`
	CheckedAt time.Time      `json:"checked_at"`
}

func (t *Tracker) cacheStatus(ctx context.Context, m *monitor.Monitor, now time.Time) {
	if t.cache == nil {
		return
	}

	payload, err := json.Marshal(statusPayload{
		MonitorID: m.ID.String(),
		Status:    m.Status,
		LatencyMs: m.LastLatencyMs,
		CheckedAt: now,
	})
	if err != nil {
		return
	}

	if err := t.cache.SetStatus(ctx, m.UserID, m.ID, payload); err != nil {
		t.logger.Warn().Err(err).Str("monitor_id", m.ID.String()).Msg("failed to cache latest status")
	}
}

// dropStatus evicts the cached entry of a monitor that disappeared
// mid-check so snapshots stop showing it. Best effort.
func (t *Tracker) dropStatus(ctx context.Context, m *monitor.Monitor) {
	if t.cache == nil {
		return
	}

	if err := t.cache.DelStatus(ctx, m.UserID, m.ID); err != nil {
		t.logger.Warn().Err(err).Str("monitor_id", m.ID.String()).Msg("failed to evict cached status")
	}
}
