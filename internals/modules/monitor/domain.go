package monitor

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending Status = "pending"
	StatusUp      Status = "up"
	StatusDown    Status = "down"
	StatusUnknown Status = "unknown"
)

type AuthType string

const (
	AuthNone  AuthType = "none"
	AuthBasic AuthType = "basic"
	AuthToken AuthType = "token"
	AuthLogin AuthType = "login"
)

// AuthConfig holds the per-strategy credentials and knobs. Which fields
// matter depends on the monitor's AuthType.
type AuthConfig struct {
	Username     string `json:"username,omitempty"`
	Password     string `json:"password,omitempty"`
	TokenURL     string `json:"token_url,omitempty"`
	TokenField   string `json:"token_field,omitempty"`   // dot-path into the token response
	HeaderName   string `json:"header_name,omitempty"`   // defaults to Authorization
	HeaderPrefix string `json:"header_prefix,omitempty"` // defaults to "Bearer "
	LoginURL     string `json:"login_url,omitempty"`
	CookieName   string `json:"cookie_name,omitempty"`
}

// ValidationRules are all optional; every present rule must pass.
type ValidationRules struct {
	StatusCode   int      `json:"status_code,omitempty"` // 0 means default 200
	RequiredKeys []string `json:"required_keys,omitempty"`
	CustomCheck  string   `json:"custom_check,omitempty"`
}

type Monitor struct {
	ID               uuid.UUID
	UserID           uuid.UUID
	CollectionID     *uuid.UUID
	Name             string
	URL              string
	AuthType         AuthType
	AuthConfig       AuthConfig
	Rules            ValidationRules
	AlertEmails      []string
	IntervalMin      int32
	Enabled          bool
	Status           Status
	LastCheckedAt    *time.Time
	NextCheckAt      time.Time
	LastLatencyMs    int64
	ConsecutiveFails int32
	TotalChecks      int64
	SuccessfulChecks int64
}

// Interval returns the configured check interval as a duration.
func (m *Monitor) Interval() time.Duration {
	return time.Duration(m.IntervalMin) * time.Minute
}

type CheckStatus string

const (
	CheckSuccess CheckStatus = "success"
	CheckFailure CheckStatus = "failure"
)

// CheckResult is the immutable record of one probe. Created once by the
// state tracker, never mutated afterwards.
type CheckResult struct {
	ID             uuid.UUID
	MonitorID      uuid.UUID
	Status         CheckStatus
	HTTPStatus     *int
	LatencyMs      int64
	ErrorMessage   string
	FailureReasons []string
	ResponseBody   string
	ResponseMeta   map[string]string
	CheckedAt      time.Time
}

type AlertType string

const (
	AlertFailure  AlertType = "failure"
	AlertRecovery AlertType = "recovery"
)

type Alert struct {
	ID         uuid.UUID
	MonitorID  uuid.UUID
	Type       AlertType
	Message    string
	Recipients []string
	EmailSent  bool
	EmailError string
	SentAt     time.Time
}

// StateUpdate is the full post-check monitor state computed by the
// tracker and applied in one write. All fields are concrete values, not
// deltas, so a retried write stays idempotent.
type StateUpdate struct {
	Status           Status
	LastCheckedAt    time.Time
	NextCheckAt      time.Time
	LastLatencyMs    int64
	ConsecutiveFails int32
	TotalChecks      int64
	SuccessfulChecks int64
}
