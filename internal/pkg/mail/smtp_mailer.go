package mail

import (
	"fmt"
	"net/smtp"

	"github.com/gofiber/fiber/v2/log"
	"github.com/quillsign/quillsign/internal/pkg/env"
)

// Sender is the narrow mail interface the lifecycle services depend on.
// Delivery failures are reported to callers but treated as degraded
// results, never as operation failures.
type Sender interface {
	Send(to, subject, body string) error
}

// SMTPMailer sends HTML mail via the configured SMTP relay.
type SMTPMailer struct{}

// NewSMTPMailer creates the default mailer.
func NewSMTPMailer() *SMTPMailer {
	return &SMTPMailer{}
}

// Send delivers one message.
func (m *SMTPMailer) Send(to, subject, body string) error {
	return SendMail(to, subject, body)
}

// SendMail sends an email via SMTP using env configuration.
func SendMail(to string, subject string, body string) error {
	host := env.GetEnv("SMTP_HOST", "")
	port := env.GetEnv("SMTP_PORT", "")
	username := env.GetEnv("SMTP_USERNAME", "")
	password := env.GetEnv("SMTP_PASSWORD", "")
	sender := env.GetEnv("SMTP_SENDER", "")

	if sender == "" {
		sender = fmt.Sprintf("no-reply@%s", "localhost")
		log.Warnf("[Mail] SMTP_SENDER not set, using default sender: %s", sender)
	}

	var auth smtp.Auth
	if username != "" && password != "" {
		auth = smtp.PlainAuth("", username, password, host)
	}

	addr := fmt.Sprintf("%s:%s", host, port)

	msg := []byte(
		fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n", sender, to, subject) +
			"MIME-Version: 1.0\r\n" +
			"Content-Type: text/html; charset=UTF-8\r\n\r\n" +
			body,
	)

	err := smtp.SendMail(addr, auth, sender, []string{to}, msg)
	if err != nil {
		log.Errorf("[Mail] SMTP send error: %v", err)
	} else {
		log.Infof("[Mail] Email sent to %s via %s", to, addr)
	}
	return err
}
