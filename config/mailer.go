package config

import (
	"crypto/tls"
	"fmt"

	mail "github.com/go-mail/mail/v2"
)

// Mailer sends mail through the configured SMTP relay.
type Mailer struct {
	settings SMTPSettings
}

func NewMailer(settings SMTPSettings) *Mailer {
	if settings.Port == 0 {
		settings.Port = 587
	}
	return &Mailer{settings: settings}
}

// Configured reports whether the relay host and sender are set.
func (m *Mailer) Configured() bool {
	return m != nil && m.settings.Host != "" && m.settings.From != ""
}

func (m *Mailer) SendMail(to []string, subject, html string) error {
	if len(to) == 0 {
		return nil
	}
	if !m.Configured() {
		return fmt.Errorf("smtp not configured (SMTP_HOST/SMTP_FROM)")
	}

	msg := mail.NewMessage()
	msg.SetHeader("From", m.settings.From)
	msg.SetHeader("To", to...)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", html)

	d := mail.NewDialer(m.settings.Host, m.settings.Port, m.settings.User, m.settings.Pass)
	d.StartTLSPolicy = mail.MandatoryStartTLS
	d.TLSConfig = &tls.Config{
		ServerName:         m.settings.Host,
		InsecureSkipVerify: m.settings.SkipTLSVerify,
	}

	return d.DialAndSend(msg)
}
