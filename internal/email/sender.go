package email

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"net"
	"net/mail"
	"net/smtp"
	"strconv"

	"agrolink/api/internal/config"
)

// TemplateHeader names the template a rendered message came from, so
// senders can classify mail without parsing the body.
const TemplateHeader = "X-Template-ID"

// Sender delivers a fully rendered RFC 5322 message.
type Sender interface {
	Send(ctx context.Context, to []string, subject string, rawMessage []byte) error
}

type SMTPSender struct {
	addr string
	from string
	auth smtp.Auth
}

// NewSMTPSender falls back to a LoggingSender when SMTP_HOST is empty.
func NewSMTPSender(cfg *config.Config) Sender {
	if cfg.SmtpHost == "" {
		log.Println("SMTP host not configured, emails will only be logged")
		return &LoggingSender{from: cfg.SmtpFromAddress}
	}
	return &SMTPSender{
		addr: net.JoinHostPort(cfg.SmtpHost, strconv.Itoa(cfg.SmtpPort)),
		from: cfg.SmtpFromAddress,
		auth: smtp.PlainAuth("", cfg.SmtpUsername, cfg.SmtpPassword, cfg.SmtpHost),
	}
}

func (s *SMTPSender) Send(ctx context.Context, to []string, subject string, rawMessage []byte) error {
	// net/smtp has no context support; at least skip work for abandoned tasks.
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := smtp.SendMail(s.addr, s.auth, s.from, to, rawMessage); err != nil {
		return fmt.Errorf("smtp send %q to %v: %w", subject, to, err)
	}
	log.Printf("Email %q sent via SMTP to %v", subject, to)
	return nil
}

// LoggingSender writes messages to the process log.
type LoggingSender struct {
	from string
}

func (s *LoggingSender) Send(_ context.Context, to []string, subject string, rawMessage []byte) error {
	log.Printf("[email] from=%s to=%v subject=%q\n%s", s.from, to, subject, rawMessage)
	return nil
}

// parseRaw returns the template id header and the body of a raw message.
func parseRaw(rawMessage []byte) (templateID string, body string, err error) {
	msg, err := mail.ReadMessage(bytes.NewReader(rawMessage))
	if err != nil {
		return "", "", fmt.Errorf("parse raw email: %w", err)
	}
	b, err := io.ReadAll(msg.Body)
	if err != nil {
		return "", "", fmt.Errorf("read email body: %w", err)
	}
	return msg.Header.Get(TemplateHeader), string(b), nil
}
