package probe

import "time"

type ErrorKind string

const (
	ErrKindNone       ErrorKind = ""
	ErrKindTimeout    ErrorKind = "timeout"
	ErrKindNetwork    ErrorKind = "network_error"
	ErrKindAuthFailed ErrorKind = "auth_failed"
)

// Outcome is the normalized result of one probe. Succeeded means the
// main request completed with a response; whether that response is
// healthy is the validator's call.
type Outcome struct {
	Succeeded    bool
	HTTPStatus   int
	LatencyMs    int64
	ErrorKind    ErrorKind
	ErrorMessage string
	Body         string // truncated
	Headers      map[string]string
	CheckedAt    time.Time
}
