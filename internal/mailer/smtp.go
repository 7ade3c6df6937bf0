// Package mailer sends checkout confirmations over SMTP.
package mailer

import (
	"context"
	"errors"
	"fmt"

	"gopkg.in/gomail.v2"

	"github.com/Ishimwe-William/attendance-system-rfid-125khz-based/internal/notify"
)

// Config holds the SMTP transport settings, supplied via environment.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTP sends multipart (plain + HTML) mail through a single SMTP account.
type SMTP struct {
	dialer *gomail.Dialer
	from   string
}

// New creates an SMTP mailer. From falls back to the auth username, the way
// the sending account usually doubles as the from address.
func New(cfg Config) (*SMTP, error) {
	if cfg.Host == "" {
		return nil, errors.New("smtp host required")
	}
	from := cfg.From
	if from == "" {
		from = cfg.Username
	}
	if from == "" {
		return nil, errors.New("smtp from address required")
	}
	return &SMTP{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   from,
	}, nil
}

// Send delivers one checkout confirmation. There is no retry and the dial is
// not bounded by ctx; a failure is reported to the caller and recorded on
// the attendance record.
func (m *SMTP) Send(ctx context.Context, msg notify.CheckoutEmail) error {
	if msg.Email == "" {
		return errors.New("recipient email required")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	text, err := msg.RenderText()
	if err != nil {
		return fmt.Errorf("render text body: %w", err)
	}
	html, err := msg.RenderHTML()
	if err != nil {
		return fmt.Errorf("render html body: %w", err)
	}

	mail := gomail.NewMessage()
	mail.SetHeader("From", m.from)
	mail.SetHeader("To", msg.Email)
	mail.SetHeader("Subject", notify.Subject)
	mail.SetBody("text/plain", text)
	mail.AddAlternative("text/html", html)

	if err := m.dialer.DialAndSend(mail); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}
