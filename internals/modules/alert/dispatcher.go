package alert

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
	"upwatch/internals/modules/monitor"
	"upwatch/internals/storage"
	"upwatch/pkg/mailer"

	"github.com/rs/zerolog"
)

type Mailer interface {
	Send(cfg mailer.Config, recipients []string, subject, body string) error
}

// TransitionPublisher pushes transition events to a message broker for
// downstream integrations. Optional; nil disables publishing.
type TransitionPublisher interface {
	Publish(ctx context.Context, body []byte) error
}

type Dispatcher struct {
	store     storage.Store
	mailer    Mailer
	publisher TransitionPublisher
	logger    *zerolog.Logger
}

func NewDispatcher(store storage.Store, mail Mailer, publisher TransitionPublisher, logger *zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		store:     store,
		mailer:    mail,
		publisher: publisher,
		logger:    logger,
	}
}

// Dispatch decides whether a transition warrants a notification and
// performs delivery. It returns the recorded alert, or nil when the
// transition was skipped (alerts disabled, no recipients, suppressed).
// Settings are re-read on every call so reconfiguration applies live.
func (d *Dispatcher) Dispatch(ctx context.Context, m monitor.Monitor, typ monitor.AlertType, result monitor.CheckResult) (*monitor.Alert, error) {
	policy := d.loadPolicy(ctx)

	if !policy.Enabled {
		d.logger.Debug().
			Str("monitor_id", m.ID.String()).
			Str("type", string(typ)).
			Msg("alerts disabled, transition skipped")
		return nil, nil
	}

	if len(m.AlertEmails) == 0 {
		d.logger.Debug().
			Str("monitor_id", m.ID.String()).
			Msg("no alert recipients configured, dispatch skipped")
		return nil, nil
	}

	now := time.Now()

	last, err := d.store.LatestAlert(ctx, m.ID, typ)
	if err != nil {
		return nil, err
	}
	window := time.Duration(policy.SuppressionSec) * time.Second
	if last != nil && now.Sub(last.SentAt) < window {
		d.logger.Debug().
			Str("monitor_id", m.ID.String()).
			Str("type", string(typ)).
			Time("last_sent_at", last.SentAt).
			Msg("alert suppressed inside suppression window")
		return nil, nil
	}

	subject, body := composeMessage(&m, typ, &result)

	sendErr := d.deliver(ctx, m.AlertEmails, subject, body, policy.RetryCount)

	alert := &monitor.Alert{
		MonitorID:  m.ID,
		Type:       typ,
		Message:    body,
		Recipients: m.AlertEmails,
		EmailSent:  sendErr == nil,
		SentAt:     now,
	}
	if sendErr != nil {
		alert.EmailError = sendErr.Error()
		d.logger.Error().
			Err(sendErr).
			Str("monitor_id", m.ID.String()).
			Str("type", string(typ)).
			Msg("alert email delivery failed after retries")
	}

	if err := d.store.SaveAlert(ctx, alert); err != nil {
		return nil, err
	}

	d.publish(ctx, &m, typ, alert)

	return alert, nil
}

func (d *Dispatcher) loadPolicy(ctx context.Context) monitor.AlertPolicy {
	raw, err := d.store.GetSettings(ctx, monitor.SettingsKeyAlerts)
	if err != nil {
		d.logger.Warn().Err(err).Msg("failed to load alert settings, using defaults")
		return monitor.DefaultAlertPolicy()
	}

	policy, err := monitor.ParseAlertPolicy(raw)
	if err != nil {
		d.logger.Warn().Err(err).Msg("malformed alert settings, using defaults")
	}
	return policy
}

// deliver attempts the send up to retryCount times and returns the
// final attempt's error.
func (d *Dispatcher) deliver(ctx context.Context, recipients []string, subject, body string, retryCount int) error {
	smtpRaw, err := d.store.GetSettings(ctx, monitor.SettingsKeySMTP)
	if err != nil {
		return fmt.Errorf("load smtp settings: %w", err)
	}
	smtp, err := monitor.ParseSMTPSettings(smtpRaw)
	if err != nil {
		return fmt.Errorf("parse smtp settings: %w", err)
	}

	cfg := mailer.Config{
		Host:     smtp.Host,
		Port:     smtp.Port,
		Username: smtp.Username,
		Password: smtp.Password,
		From:     smtp.From,
	}

	attempts := retryCount
	if attempts < 1 {
		attempts = 1
	}

	var sendErr error
	for i := 0; i < attempts; i++ {
		sendErr = d.mailer.Send(cfg, recipients, subject, body)
		if sendErr == nil {
			return nil
		}
	}
	return sendErr
}

func composeMessage(m *monitor.Monitor, typ monitor.AlertType, result *monitor.CheckResult) (subject, body string) {
	name := m.Name
	if name == "" {
		name = m.URL
	}

	switch typ {
	case monitor.AlertRecovery:
		subject = fmt.Sprintf("[upwatch] %s recovered", name)
		body = fmt.Sprintf("Monitor %s (%s) is up again. Latency: %dms.", name, m.URL, result.LatencyMs)
	default:
		subject = fmt.Sprintf("[upwatch] %s is down", name)
		body = fmt.Sprintf("Monitor %s (%s) is down.", name, m.URL)
		if result.ErrorMessage != "" {
			body += fmt.Sprintf(" Error: %s.", result.ErrorMessage)
		}
		for _, reason := range result.FailureReasons {
			body += fmt.Sprintf("\n- %s", reason)
		}
	}
	return subject, body
}

type transitionEvent struct {
	MonitorID string    `json:"monitor_id"`
	Type      string    `json:"type"`
	Status    string    `json:"status"`
	Message   string    `json:"message"`
	SentAt    time.Time `json:"sent_at"`
}

func (d *Dispatcher) publish(ctx context.Context, m *monitor.Monitor, typ monitor.AlertType, alert *monitor.Alert) {
	if d.publisher == nil {
		return
	}

	body, err := json.Marshal(transitionEvent{
		MonitorID: m.ID.String(),
		Type:      string(typ),
		Status:    string(m.Status),
		Message:   alert.Message,
		SentAt:    alert.SentAt,
	})
	if err != nil {
		return
	}

	if err := d.publisher.Publish(ctx, body); err != nil {
		d.logger.Warn().Err(err).Str("monitor_id", m.ID.String()).Msg("failed to publish transition event")
	}
}
