package storage

import (
	"context"
	"sort"
	"sync"
	"time"
	"upwatch/internals/modules/monitor"
	"upwatch/pkg/apperror"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory Store used by tests and local runs. Data
// is copied on the way in and out so callers never share mutable state
// with the store.
type MemoryStore struct {
	mu       sync.RWMutex
	monitors map[uuid.UUID]monitor.Monitor
	results  []monitor.CheckResult
	alerts   []monitor.Alert
	settings map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		monitors: make(map[uuid.UUID]monitor.Monitor),
		settings: make(map[string][]byte),
	}
}

// PutMonitor seeds or replaces a monitor. Test setup helper.
func (s *MemoryStore) PutMonitor(m monitor.Monitor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.monitors[m.ID] = m
}

// DeleteMonitor removes a monitor, simulating a CRUD-layer delete.
func (s *MemoryStore) DeleteMonitor(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.monitors, id)
}

// PutSettings seeds a settings row with raw JSON.
func (s *MemoryStore) PutSettings(key string, raw []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings[key] = raw
}

func (s *MemoryStore) ListDueMonitors(ctx context.Context, now time.Time) ([]monitor.Monitor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	due := make([]monitor.Monitor, 0)
	for _, m := range s.monitors {
		if m.Enabled && !m.NextCheckAt.After(now) {
			due = append(due, m)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].NextCheckAt.Before(due[j].NextCheckAt) })
	return due, nil
}

func (s *MemoryStore) GetMonitor(ctx context.Context, id uuid.UUID) (monitor.Monitor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.monitors[id]
	if !ok {
		return monitor.Monitor{}, &apperror.Error{
			Kind:    apperror.NotFound,
			Op:      "store.memory.get_monitor",
			Message: "monitor not found",
		}
	}
	return m, nil
}

func (s *MemoryStore) UpdateMonitorState(ctx context.Context, id uuid.UUID, upd monitor.StateUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.monitors[id]
	if !ok || !m.Enabled {
		// a disabled monitor rejects the write just like a deleted one
		return &apperror.Error{
			Kind:    apperror.NotFound,
			Op:      "store.memory.update_monitor_state",
			Message: "monitor not found",
		}
	}

	last := upd.LastCheckedAt
	m.Status = upd.Status
	m.LastCheckedAt = &last
	m.NextCheckAt = upd.NextCheckAt
	m.LastLatencyMs = upd.LastLatencyMs
	m.ConsecutiveFails = upd.ConsecutiveFails
	m.TotalChecks = upd.TotalChecks
	m.SuccessfulChecks = upd.SuccessfulChecks
	s.monitors[id] = m
	return nil
}

func (s *MemoryStore) SaveCheckResult(ctx context.Context, result *monitor.CheckResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *result
	if cp.ID == uuid.Nil {
		cp.ID = uuid.New()
		result.ID = cp.ID
	}
	s.results = append(s.results, cp)
	return nil
}

func (s *MemoryStore) SaveAlert(ctx context.Context, alert *monitor.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *alert
	if cp.ID == uuid.Nil {
		cp.ID = uuid.New()
		alert.ID = cp.ID
	}
	s.alerts = append(s.alerts, cp)
	return nil
}

func (s *MemoryStore) LatestAlert(ctx context.Context, monitorID uuid.UUID, typ monitor.AlertType) (*monitor.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *monitor.Alert
	for i := range s.alerts {
		a := s.alerts[i]
		if a.MonitorID != monitorID || a.Type != typ {
			continue
		}
		if latest == nil || a.SentAt.After(latest.SentAt) {
			cp := a
			latest = &cp
		}
	}
	return latest, nil
}

func (s *MemoryStore) GetSettings(ctx context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	raw, ok := s.settings[key]
	if !ok {
		return nil, nil
	}
	cp := make([]byte, len(raw))
	copy(cp, raw)
	return cp, nil
}

// CheckResults returns a snapshot of saved results. Test helper.
func (s *MemoryStore) CheckResults() []monitor.CheckResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]monitor.CheckResult, len(s.results))
	copy(out, s.results)
	return out
}

// Alerts returns a snapshot of saved alerts. Test helper.
func (s *MemoryStore) Alerts() []monitor.Alert {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]monitor.Alert, len(s.alerts))
	copy(out, s.alerts)
	return out
}
