package scheduler

import (
	"context"
	"sync"
	"time"
	"upwatch/config"
	"upwatch/internals/modules/hub"
	"upwatch/internals/modules/monitor"
	"upwatch/internals/modules/probe"
	"upwatch/internals/modules/tracker"
	"upwatch/internals/modules/validation"
	"upwatch/internals/storage"
	"upwatch/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type Prober interface {
	Execute(ctx context.Context, m *monitor.Monitor) probe.Outcome
}

type StateTracker interface {
	Apply(ctx context.Context, m monitor.Monitor, v tracker.Verdict) (tracker.Applied, error)
}

type AlertDispatcher interface {
	Dispatch(ctx context.Context, m monitor.Monitor, typ monitor.AlertType, result monitor.CheckResult) (*monitor.Alert, error)
}

type Broadcaster interface {
	Broadcast(userID uuid.UUID, evt hub.Event)
}

// Scheduler drives due monitors through probe -> validation -> tracker
// -> dispatcher on a fixed tick, then notifies the event hub. It owns
// no business logic itself.
type Scheduler struct {
	store      storage.Store
	prober     Prober
	tracker    StateTracker
	dispatcher AlertDispatcher
	hub        Broadcaster

	interval time.Duration
	sem      chan struct{}

	mu       sync.Mutex
	inflight map[uuid.UUID]struct{}

	wg     sync.WaitGroup
	logger *zerolog.Logger
}

func New(
	store storage.Store,
	prober Prober,
	stateTracker StateTracker,
	dispatcher AlertDispatcher,
	broadcaster Broadcaster,
	cfg *config.SchedulerConfig,
	logger *zerolog.Logger,
) *Scheduler {
	return &Scheduler{
		store:      store,
		prober:     prober,
		tracker:    stateTracker,
		dispatcher: dispatcher,
		hub:        broadcaster,
		interval:   cfg.Interval,
		sem:        make(chan struct{}, cfg.MaxConcurrency),
		inflight:   make(map[uuid.UUID]struct{}),
		logger:     logger,
	}
}

// Run blocks until ctx is cancelled, then waits for in-flight checks to
// drain. One pass runs immediately so a restart does not delay overdue
// monitors by a full tick.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.Tick(ctx)

	for {
		select {
		case <-ctx.Done():
			s.wg.Wait()
			s.logger.Info().Msg("scheduler stopped")
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick selects due monitors and launches a bounded number of checks.
// A store failure skips the whole tick; per-monitor failures are
// isolated inside runCheck.
func (s *Scheduler) Tick(ctx context.Context) {
	now := time.Now()

	monitors, err := s.store.ListDueMonitors(ctx, now)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list due monitors, skipping tick")
		return
	}

	for i := range monitors {
		m := monitors[i]

		// never two in-flight checks for the same monitor
		if !s.markInflight(m.ID) {
			s.logger.Debug().Str("monitor_id", m.ID.String()).Msg("previous check still in flight, skipping")
			continue
		}

		select {
		case s.sem <- struct{}{}:
		default:
			// concurrency budget exhausted; the monitor stays due and
			// waits for the next tick instead of queuing
			s.clearInflight(m.ID)
			continue
		}

		s.wg.Add(1)
		go s.runCheck(ctx, m.ID)
	}
}

// Wait blocks until all launched checks finish. Test and shutdown hook.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func (s *Scheduler) runCheck(ctx context.Context, id uuid.UUID) {
	defer s.wg.Done()
	defer func() {
		<-s.sem
		s.clearInflight(id)
	}()

	// re-fetch so a monitor disabled or deleted after selection is
	// discarded without persisting anything (benign race)
	m, err := s.store.GetMonitor(ctx, id)
	if err != nil {
		if apperror.IsKind(err, apperror.NotFound) {
			s.logger.Debug().Str("monitor_id", id.String()).Msg("monitor deleted before check, discarded")
		} else {
			s.logger.Error().Err(err).Str("monitor_id", id.String()).Msg("failed to reload monitor, cycle abandoned")
		}
		return
	}
	if !m.Enabled {
		s.logger.Debug().Str("monitor_id", id.String()).Msg("monitor disabled before check, discarded")
		return
	}

	outcome := s.prober.Execute(ctx, &m)
	verdict := tracker.Verdict{
		Outcome:    outcome,
		Validation: validation.Evaluate(outcome, m.Rules),
	}

	applied, err := s.tracker.Apply(ctx, m, verdict)
	if err != nil {
		if apperror.IsKind(err, apperror.NotFound) {
			s.logger.Debug().Str("monitor_id", id.String()).Msg("monitor deleted or disabled mid-check, result discarded")
		} else {
			// next check time was not advanced, the monitor stays due
			s.logger.Error().Err(err).Str("monitor_id", id.String()).Msg("failed to persist check, cycle abandoned")
		}
		return
	}

	if applied.Transition != nil {
		s.handleTransition(ctx, &applied)
	}

	s.hub.Broadcast(m.UserID, hub.Event{
		Type: hub.EventStatusUpdate,
		Payload: hub.StatusUpdate{
			MonitorID: applied.Monitor.ID.String(),
			Status:    applied.Monitor.Status,
			LatencyMs: applied.Monitor.LastLatencyMs,
			CheckedAt: applied.Result.CheckedAt,
		},
	})
}

func (s *Scheduler) handleTransition(ctx context.Context, applied *tracker.Applied) {
	m := applied.Monitor
	typ := *applied.Transition

	alertRec, err := s.dispatcher.Dispatch(ctx, m, typ, applied.Result)
	if err != nil {
		s.logger.Error().Err(err).
			Str("monitor_id", m.ID.String()).
			Str("type", string(typ)).
			Msg("alert dispatch failed")
		return
	}
	if alertRec == nil {
		return
	}

	s.hub.Broadcast(m.UserID, hub.Event{
		Type: hub.EventAlert,
		Payload: hub.AlertNotice{
			MonitorID: m.ID.String(),
			Type:      string(typ),
			Message:   alertRec.Message,
			SentAt:    alertRec.SentAt,
		},
	})
}

func (s *Scheduler) markInflight(id uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.inflight[id]; exists {
		return false
	}
	s.inflight[id] = struct{}{}
	return true
}

func (s *Scheduler) clearInflight(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inflight, id)
}
