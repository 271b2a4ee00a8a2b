package hub

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Connection is one live client stream. A user may hold several at once
// (multiple tabs or devices).
type Connection struct {
	UserID    uuid.UUID
	CreatedAt time.Time

	events    chan Event
	done      chan struct{}
	closeOnce sync.Once
}

// Events is the stream of events addressed to this connection.
func (c *Connection) Events() <-chan Event {
	return c.events
}

// Done is closed when the connection is removed from the hub.
func (c *Connection) Done() <-chan struct{} {
	return c.done
}

// trySend never blocks the broadcasting path. A slow consumer whose
// buffer is full loses the event rather than stalling other users.
func (c *Connection) trySend(evt Event) {
	select {
	case <-c.done:
	case c.events <- evt:
	default:
	}
}

// SnapshotSource provides cached latest statuses for a user, used to
// seed new connections.
type SnapshotSource interface {
	Snapshot(ctx context.Context, userID uuid.UUID) (map[string]string, error)
}

// Hub owns the registry of live connections and fans events out to the
// owning user's connections only. Constructed once at process start and
// injected wherever events originate.
type Hub struct {
	mu    sync.RWMutex
	conns map[uuid.UUID]map[*Connection]struct{}

	snapshots SnapshotSource
	logger    *zerolog.Logger
}

func New(snapshots SnapshotSource, logger *zerolog.Logger) *Hub {
	return &Hub{
		conns:     make(map[uuid.UUID]map[*Connection]struct{}),
		snapshots: snapshots,
		logger:    logger,
	}
}

// AddConnection registers a stream for the user and immediately queues
// a snapshot event with the user's cached monitor statuses.
func (h *Hub) AddConnection(ctx context.Context, userID uuid.UUID) *Connection {
	conn := &Connection{
		UserID:    userID,
		CreatedAt: time.Now(),
		events:    make(chan Event, 32),
		done:      make(chan struct{}),
	}

	h.mu.Lock()
	set, ok := h.conns[userID]
	if !ok {
		set = make(map[*Connection]struct{})
		h.conns[userID] = set
	}
	set[conn] = struct{}{}
	h.mu.Unlock()

	conn.trySend(Event{Type: EventSnapshot, Payload: h.buildSnapshot(ctx, userID)})

	return conn
}

// RemoveConnection discards the entry. Safe to call more than once.
func (h *Hub) RemoveConnection(conn *Connection) {
	h.mu.Lock()
	if set, ok := h.conns[conn.UserID]; ok {
		delete(set, conn)
		if len(set) == 0 {
			delete(h.conns, conn.UserID)
		}
	}
	h.mu.Unlock()

	conn.closeOnce.Do(func() { close(conn.done) })
}

// Broadcast fans an event out to every connection of one user. Events
// never cross user boundaries.
func (h *Hub) Broadcast(userID uuid.UUID, evt Event) {
	h.mu.RLock()
	targets := make([]*Connection, 0, len(h.conns[userID]))
	for conn := range h.conns[userID] {
		targets = append(targets, conn)
	}
	h.mu.RUnlock()

	for _, conn := range targets {
		conn.trySend(evt)
	}
}

func (h *Hub) Stats() Stats {
	h.mu.RLock()
	defer h.mu.RUnlock()

	total := 0
	for _, set := range h.conns {
		total += len(set)
	}

	return Stats{
		TotalConnections: total,
		ActiveUsers:      len(h.conns),
		Timestamp:        time.Now(),
	}
}

// Shutdown closes every connection; handlers observing Done unwind.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	conns := make([]*Connection, 0)
	for _, set := range h.conns {
		for conn := range set {
			conns = append(conns, conn)
		}
	}
	h.conns = make(map[uuid.UUID]map[*Connection]struct{})
	h.mu.Unlock()

	for _, conn := range conns {
		conn.closeOnce.Do(func() { close(conn.done) })
	}
}

func (h *Hub) buildSnapshot(ctx context.Context, userID uuid.UUID) SnapshotPayload {
	payload := SnapshotPayload{Monitors: []json.RawMessage{}}

	if h.snapshots == nil {
		return payload
	}

	cached, err := h.snapshots.Snapshot(ctx, userID)
	if err != nil {
		h.logger.Warn().Err(err).Str("user_id", userID.String()).Msg("failed to load status snapshot")
		return payload
	}

	for _, raw := range cached {
		if json.Valid([]byte(raw)) {
			payload.Monitors = append(payload.Monitors, json.RawMessage(raw))
		}
	}
	return payload
}
