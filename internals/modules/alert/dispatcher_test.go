package alert

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"
	"upwatch/internals/modules/monitor"
	"upwatch/internals/storage"
	"upwatch/pkg/mailer"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *zerolog.Logger {
	l := zerolog.New(io.Discard)
	return &l
}

type fakeMailer struct {
	calls     int
	failFirst int // fail this many leading attempts
	err       error
	lastCfg   mailer.Config
	lastTo    []string
	lastSubj  string
	lastBody  string
}

func (f *fakeMailer) Send(cfg mailer.Config, recipients []string, subject, body string) error {
	f.calls++
	f.lastCfg = cfg
	f.lastTo = recipients
	f.lastSubj = subject
	f.lastBody = body
	if f.err != nil {
		return f.err
	}
	if f.calls <= f.failFirst {
		return errors.New("smtp unavailable")
	}
	return nil
}

type fakePublisher struct {
	bodies [][]byte
	err    error
}

func (f *fakePublisher) Publish(ctx context.Context, body []byte) error {
	if f.err != nil {
		return f.err
	}
	f.bodies = append(f.bodies, body)
	return nil
}

func downMonitor() monitor.Monitor {
	return monitor.Monitor{
		ID:          uuid.New(),
		UserID:      uuid.New(),
		Name:        "checkout",
		URL:         "https://shop.example.com/health",
		Status:      monitor.StatusDown,
		AlertEmails: []string{"ops@example.com"},
	}
}

func failureResult(m *monitor.Monitor) monitor.CheckResult {
	return monitor.CheckResult{
		ID:             uuid.New(),
		MonitorID:      m.ID,
		Status:         monitor.CheckFailure,
		LatencyMs:      120,
		ErrorMessage:   "connection refused",
		FailureReasons: []string{"probe failed: network_error"},
		CheckedAt:      time.Now(),
	}
}

func TestDispatchSendsAndRecords(t *testing.T) {
	store := storage.NewMemoryStore()
	mail := &fakeMailer{}
	d := NewDispatcher(store, mail, nil, testLogger())

	m := downMonitor()
	alert, err := d.Dispatch(context.Background(), m, monitor.AlertFailure, failureResult(&m))
	require.NoError(t, err)
	require.NotNil(t, alert)

	assert.Equal(t, 1, mail.calls)
	assert.Equal(t, []string{"ops@example.com"}, mail.lastTo)
	assert.Contains(t, mail.lastSubj, "checkout is down")
	assert.Contains(t, mail.lastBody, "connection refused")
	assert.Contains(t, mail.lastBody, "probe failed: network_error")

	saved := store.Alerts()
	require.Len(t, saved, 1)
	assert.True(t, saved[0].EmailSent)
	assert.Empty(t, saved[0].EmailError)
	assert.Equal(t, monitor.AlertFailure, saved[0].Type)
}

func TestDispatchRecoverySubject(t *testing.T) {
	store := storage.NewMemoryStore()
	mail := &fakeMailer{}
	d := NewDispatcher(store, mail, nil, testLogger())

	m := downMonitor()
	m.Status = monitor.StatusUp
	result := failureResult(&m)
	result.Status = monitor.CheckSuccess

	alert, err := d.Dispatch(context.Background(), m, monitor.AlertRecovery, result)
	require.NoError(t, err)
	require.NotNil(t, alert)
	assert.Contains(t, mail.lastSubj, "recovered")
}

func TestDispatchUsesConfiguredSMTP(t *testing.T) {
	store := storage.NewMemoryStore()
	store.PutSettings(monitor.SettingsKeySMTP, []byte(`{"host":"mail.internal","port":587,"from":"alerts@example.com"}`))
	mail := &fakeMailer{}
	d := NewDispatcher(store, mail, nil, testLogger())

	m := downMonitor()
	_, err := d.Dispatch(context.Background(), m, monitor.AlertFailure, failureResult(&m))
	require.NoError(t, err)

	assert.Equal(t, "mail.internal", mail.lastCfg.Host)
	assert.Equal(t, 587, mail.lastCfg.Port)
	assert.Equal(t, "alerts@example.com", mail.lastCfg.From)
}

func TestDispatchSkippedWhenDisabled(t *testing.T) {
	store := storage.NewMemoryStore()
	store.PutSettings(monitor.SettingsKeyAlerts, []byte(`{"enabled":false}`))
	mail := &fakeMailer{}
	d := NewDispatcher(store, mail, nil, testLogger())

	m := downMonitor()
	alert, err := d.Dispatch(context.Background(), m, monitor.AlertFailure, failureResult(&m))
	require.NoError(t, err)
	assert.Nil(t, alert)
	assert.Zero(t, mail.calls)
	assert.Empty(t, store.Alerts())
}

func TestDispatchSkippedWithoutRecipients(t *testing.T) {
	store := storage.NewMemoryStore()
	mail := &fakeMailer{}
	d := NewDispatcher(store, mail, nil, testLogger())

	m := downMonitor()
	m.AlertEmails = nil
	alert, err := d.Dispatch(context.Background(), m, monitor.AlertFailure, failureResult(&m))
	require.NoError(t, err)
	assert.Nil(t, alert)
	assert.Zero(t, mail.calls)
}

func TestDispatchSuppressionWindow(t *testing.T) {
	store := storage.NewMemoryStore()
	mail := &fakeMailer{}
	d := NewDispatcher(store, mail, nil, testLogger())

	m := downMonitor()
	result := failureResult(&m)

	first, err := d.Dispatch(context.Background(), m, monitor.AlertFailure, result)
	require.NoError(t, err)
	require.NotNil(t, first)

	// same transition inside the window is suppressed
	second, err := d.Dispatch(context.Background(), m, monitor.AlertFailure, result)
	require.NoError(t, err)
	assert.Nil(t, second)
	assert.Equal(t, 1, mail.calls)
	assert.Len(t, store.Alerts(), 1)

	// a different transition type is not suppressed by the failure alert
	recovery, err := d.Dispatch(context.Background(), m, monitor.AlertRecovery, result)
	require.NoError(t, err)
	assert.NotNil(t, recovery)
}

func TestDispatchSuppressionExpires(t *testing.T) {
	store := storage.NewMemoryStore()
	store.PutSettings(monitor.SettingsKeyAlerts, []byte(`{"enabled":true,"suppression_sec":60,"retry_count":1}`))
	mail := &fakeMailer{}
	d := NewDispatcher(store, mail, nil, testLogger())

	m := downMonitor()

	// a previous alert older than the window does not suppress
	old := monitor.Alert{
		MonitorID: m.ID,
		Type:      monitor.AlertFailure,
		SentAt:    time.Now().Add(-2 * time.Minute),
	}
	require.NoError(t, store.SaveAlert(context.Background(), &old))

	alert, err := d.Dispatch(context.Background(), m, monitor.AlertFailure, failureResult(&m))
	require.NoError(t, err)
	assert.NotNil(t, alert)
	assert.Equal(t, 1, mail.calls)
}

func TestDispatchRetriesThenSucceeds(t *testing.T) {
	store := storage.NewMemoryStore()
	mail := &fakeMailer{failFirst: 1}
	d := NewDispatcher(store, mail, nil, testLogger())

	m := downMonitor()
	alert, err := d.Dispatch(context.Background(), m, monitor.AlertFailure, failureResult(&m))
	require.NoError(t, err)
	require.NotNil(t, alert)

	// default policy retries twice
	assert.Equal(t, 2, mail.calls)
	assert.True(t, alert.EmailSent)
}

func TestDispatchRecordsDeliveryFailure(t *testing.T) {
	store := storage.NewMemoryStore()
	mail := &fakeMailer{err: errors.New("smtp down")}
	d := NewDispatcher(store, mail, nil, testLogger())

	m := downMonitor()
	alert, err := d.Dispatch(context.Background(), m, monitor.AlertFailure, failureResult(&m))
	require.NoError(t, err)
	require.NotNil(t, alert)

	assert.Equal(t, 2, mail.calls)
	assert.False(t, alert.EmailSent)
	assert.Contains(t, alert.EmailError, "smtp down")

	// the record still lands so suppression works on the next transition
	require.Len(t, store.Alerts(), 1)
	assert.False(t, store.Alerts()[0].EmailSent)
}

func TestDispatchPublishesTransitionEvent(t *testing.T) {
	store := storage.NewMemoryStore()
	mail := &fakeMailer{}
	pub := &fakePublisher{}
	d := NewDispatcher(store, mail, pub, testLogger())

	m := downMonitor()
	_, err := d.Dispatch(context.Background(), m, monitor.AlertFailure, failureResult(&m))
	require.NoError(t, err)

	require.Len(t, pub.bodies, 1)
	assert.Contains(t, string(pub.bodies[0]), m.ID.String())
	assert.Contains(t, string(pub.bodies[0]), `"type":"failure"`)
}

func TestDispatchPublishFailureIsNotFatal(t *testing.T) {
	store := storage.NewMemoryStore()
	mail := &fakeMailer{}
	pub := &fakePublisher{err: errors.New("broker gone")}
	d := NewDispatcher(store, mail, pub, testLogger())

	m := downMonitor()
	alert, err := d.Dispatch(context.Background(), m, monitor.AlertFailure, failureResult(&m))
	require.NoError(t, err)
	assert.NotNil(t, alert)
}
