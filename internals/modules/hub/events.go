package hub

import (
	"encoding/json"
	"time"
	"upwatch/internals/modules/monitor"
)

// Event types pushed to connected clients.
const (
	EventSnapshot     = "snapshot"
	EventStatusUpdate = "status_update"
	EventAlert        = "alert"
)

type Event struct {
	Type    string
	Payload any
}

type StatusUpdate struct {
	MonitorID string         `json:"monitor_id"`
	Status    monitor.Status `json:"status"`
	LatencyMs int64          `json:"latency_ms"`
	CheckedAt time.Time      `json:"checked_at"`
}

type AlertNotice struct {
	MonitorID string    `json:"monitor_id"`
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	SentAt    time.Time `json:"sent_at"`
}

// SnapshotPayload carries the cached latest statuses of the user's
// monitors, sent once when a connection opens.
type SnapshotPayload struct {
	Monitors []json.RawMessage `json:"monitors"`
}

// Stats is the aggregate reported by the status endpoint.
type Stats struct {
	TotalConnections int       `json:"totalConnections"`
	ActiveUsers      int       `json:"activeUsers"`
	Timestamp        time.Time `json:"timestamp"`
}
