package probe

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"time"
	"upwatch/config"
	"upwatch/internals/modules/monitor"
	"upwatch/pkg/httpclient"

	"github.com/rs/zerolog"
)

// Executor performs one HTTP check against a monitor's target. The
// configured timeout bounds the full check, auth pre-flight included.
type Executor struct {
	client  *http.Client
	timeout time.Duration
	maxBody int
	logger  *zerolog.Logger
}

func NewExecutor(cfg *config.ProbeConfig, logger *zerolog.Logger) *Executor {
	return &Executor{
		client:  httpclient.NewHttpClient(),
		timeout: cfg.Timeout,
		maxBody: cfg.MaxBodyBytes,
		logger:  logger,
	}
}

func (e *Executor) Execute(ctx context.Context, m *monitor.Monitor) Outcome {
	start := time.Now()

	reqCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	fail := func(kind ErrorKind, err error) Outcome {
		return Outcome{
			Succeeded:    false,
			LatencyMs:    time.Since(start).Milliseconds(),
			ErrorKind:    kind,
			ErrorMessage: err.Error(),
			CheckedAt:    time.Now(),
		}
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, m.URL, nil)
	if err != nil {
		// URL was validated at registration, so a build failure is a
		// stored-data problem, not a target problem
		e.logger.Error().Err(err).Str("monitor_id", m.ID.String()).Msg("failed to build probe request")
		return fail(ErrKindNetwork, err)
	}

	auth := authenticatorFor(m.AuthType)
	if err := auth.prepare(reqCtx, e.client, m.AuthConfig, req); err != nil {
		if classify(err) == ErrKindTimeout {
			return fail(ErrKindTimeout, err)
		}
		return fail(ErrKindAuthFailed, err)
	}

	resp, err := e.client.Do(req)
	latency := time.Since(start).Milliseconds()
	if err != nil {
		return fail(classify(err), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, int64(e.maxBody)))
	if err != nil {
		return fail(classify(err), err)
	}

	return Outcome{
		Succeeded:  true,
		HTTPStatus: resp.StatusCode,
		LatencyMs:  latency,
		Body:       string(body),
		Headers:    headerSubset(resp.Header),
		CheckedAt:  time.Now(),
	}
}

// classify maps transport errors to the probe error taxonomy. DNS,
// connection refused and TLS failures all land on network_error.
func classify(err error) ErrorKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrKindTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrKindTimeout
	}

	return ErrKindNetwork
}

var keptHeaders = []string{"Content-Type", "Content-Length", "Server", "Date"}

func headerSubset(h http.Header) map[string]string {
	subset := make(map[string]string, len(keptHeaders))
	for _, name := range keptHeaders {
		if v := h.Get(name); v != "" {
			subset[name] = v
		}
	}
	return subset
}
