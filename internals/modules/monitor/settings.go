package monitor

import "encoding/json"

// Settings keys in the settings store.
const (
	SettingsKeySMTP   = "smtp"
	SettingsKeyAlerts = "alerts"
)

type SMTPSettings struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	From     string `json:"from"`
}

// AlertPolicy governs dispatching. It is re-read on every dispatch so a
// settings change applies without restart.
type AlertPolicy struct {
	Enabled        bool  `json:"enabled"`
	SuppressionSec int64 `json:"suppression_sec"`
	RetryCount     int   `json:"retry_count"`
}

func DefaultAlertPolicy() AlertPolicy {
	return AlertPolicy{
		Enabled:        true,
		SuppressionSec: 600,
		RetryCount:     2,
	}
}

// ParseAlertPolicy decodes the raw settings row, falling back to the
// defaults when the row is absent.
func ParseAlertPolicy(raw []byte) (AlertPolicy, error) {
	if len(raw) == 0 {
		return DefaultAlertPolicy(), nil
	}
	var p AlertPolicy
	if err := json.Unmarshal(raw, &p); err != nil {
		return DefaultAlertPolicy(), err
	}
	return p, nil
}

func ParseSMTPSettings(raw []byte) (SMTPSettings, error) {
	var s SMTPSettings
	if len(raw) == 0 {
		return s, nil
	}
	err := json.Unmarshal(raw, &s)
	return s, err
}
