package mailer

import (
	"errors"

	"gopkg.in/gomail.v2"
)

// Config carries the SMTP parameters for one delivery. It is passed per
// send because the values come from the settings store and may change
// between dispatches.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type Mailer struct{}

func New() *Mailer {
	return &Mailer{}
}

func (m *Mailer) Send(cfg Config, recipients []string, subject, body string) error {
	if cfg.Host == "" {
		return errors.New("smtp host is not configured")
	}
	if len(recipients) == 0 {
		return errors.New("no recipients")
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", cfg.From)
	msg.SetHeader("To", recipients...)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)

	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	return d.DialAndSend(msg)
}
