package hub

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *zerolog.Logger {
	l := zerolog.New(io.Discard)
	return &l
}

type fakeSnapshots struct {
	data map[uuid.UUID]map[string]string
	err  error
}

func (f *fakeSnapshots) Snapshot(ctx context.Context, userID uuid.UUID) (map[string]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.data[userID], nil
}

func recvEvent(t *testing.T, conn *Connection) Event {
	t.Helper()
	select {
	case evt := <-conn.Events():
		return evt
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestAddConnectionQueuesSnapshot(t *testing.T) {
	userID := uuid.New()
	snaps := &fakeSnapshots{data: map[uuid.UUID]map[string]string{
		userID: {
			"m1": `{"monitor_id":"m1","status":"up"}`,
			"m2": `not json`, // skipped
		},
	}}
	h := New(snaps, testLogger())

	conn := h.AddConnection(context.Background(), userID)
	defer h.RemoveConnection(conn)

	evt := recvEvent(t, conn)
	require.Equal(t, EventSnapshot, evt.Type)

	payload, ok := evt.Payload.(SnapshotPayload)
	require.True(t, ok)
	require.Len(t, payload.Monitors, 1)
	assert.Contains(t, string(payload.Monitors[0]), `"status":"up"`)
}

func TestAddConnectionSnapshotErrorDegradesToEmpty(t *testing.T) {
	h := New(&fakeSnapshots{err: errors.New("redis gone")}, testLogger())

	conn := h.AddConnection(context.Background(), uuid.New())
	defer h.RemoveConnection(conn)

	evt := recvEvent(t, conn)
	require.Equal(t, EventSnapshot, evt.Type)
	payload, ok := evt.Payload.(SnapshotPayload)
	require.True(t, ok)
	assert.Empty(t, payload.Monitors)
}

func TestBroadcastIsScopedToUser(t *testing.T) {
	h := New(nil, testLogger())

	alice := uuid.New()
	bob := uuid.New()

	aliceConn := h.AddConnection(context.Background(), alice)
	bobConn := h.AddConnection(context.Background(), bob)
	defer h.RemoveConnection(aliceConn)
	defer h.RemoveConnection(bobConn)

	// drain snapshots
	recvEvent(t, aliceConn)
	recvEvent(t, bobConn)

	h.Broadcast(alice, Event{Type: EventStatusUpdate, Payload: StatusUpdate{MonitorID: "m1"}})

	evt := recvEvent(t, aliceConn)
	assert.Equal(t, EventStatusUpdate, evt.Type)

	select {
	case evt := <-bobConn.Events():
		t.Fatalf("event leaked across users: %v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBroadcastReachesAllUserConnections(t *testing.T) {
	h := New(nil, testLogger())
	userID := uuid.New()

	c1 := h.AddConnection(context.Background(), userID)
	c2 := h.AddConnection(context.Background(), userID)
	defer h.RemoveConnection(c1)
	defer h.RemoveConnection(c2)
	recvEvent(t, c1)
	recvEvent(t, c2)

	h.Broadcast(userID, Event{Type: EventAlert, Payload: AlertNotice{MonitorID: "m1"}})

	assert.Equal(t, EventAlert, recvEvent(t, c1).Type)
	assert.Equal(t, EventAlert, recvEvent(t, c2).Type)
}

func TestBroadcastDropsWhenBufferFull(t *testing.T) {
	h := New(nil, testLogger())
	userID := uuid.New()

	conn := h.AddConnection(context.Background(), userID)
	defer h.RemoveConnection(conn)

	// nobody reads; this must not block however many events arrive
	done := make(chan struct{})
	go func() {
		for i := 0; i < 200; i++ {
			h.Broadcast(userID, Event{Type: EventStatusUpdate, Payload: StatusUpdate{}})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("broadcast blocked on a slow consumer")
	}
}

func TestRemoveConnectionIsIdempotent(t *testing.T) {
	h := New(nil, testLogger())
	conn := h.AddConnection(context.Background(), uuid.New())

	h.RemoveConnection(conn)
	h.RemoveConnection(conn)

	select {
	case <-conn.Done():
	default:
		t.Fatal("done channel not closed after removal")
	}
}

func TestStats(t *testing.T) {
	h := New(nil, testLogger())

	alice := uuid.New()
	bob := uuid.New()
	c1 := h.AddConnection(context.Background(), alice)
	c2 := h.AddConnection(context.Background(), alice)
	c3 := h.AddConnection(context.Background(), bob)

	stats := h.Stats()
	assert.Equal(t, 3, stats.TotalConnections)
	assert.Equal(t, 2, stats.ActiveUsers)
	assert.False(t, stats.Timestamp.IsZero())

	h.RemoveConnection(c1)
	h.RemoveConnection(c2)
	h.RemoveConnection(c3)

	stats = h.Stats()
	assert.Equal(t, 0, stats.TotalConnections)
	assert.Equal(t, 0, stats.ActiveUsers)
}

func TestShutdownClosesEveryConnection(t *testing.T) {
	h := New(nil, testLogger())
	c1 := h.AddConnection(context.Background(), uuid.New())
	c2 := h.AddConnection(context.Background(), uuid.New())

	h.Shutdown()

	for _, conn := range []*Connection{c1, c2} {
		select {
		case <-conn.Done():
		case <-time.After(time.Second):
			t.Fatal("connection not closed by shutdown")
		}
	}
	assert.Equal(t, 0, h.Stats().TotalConnections)
}
