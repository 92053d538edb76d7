package email

import (
	"context"
	"fmt"
	"log"

	"github.com/resend/resend-go/v2"

	"agrolink/api/internal/config"
)

// ResendSender delivers mail through the Resend HTTP API.
type ResendSender struct {
	client *resend.Client
	from   string
}

// NewResendSender creates a Resend-backed sender using cfg.ResendAPIKey.
func NewResendSender(cfg *config.Config) Sender {
	return &ResendSender{
		client: resend.NewClient(cfg.ResendAPIKey),
		from:   cfg.SmtpFromAddress,
	}
}

// Send extracts the plain-text body from rawMessage and sends it via Resend.
func (s *ResendSender) Send(ctx context.Context, to []string, subject string, rawMessage []byte) error {
	_, body, err := parseRaw(rawMessage)
	if err != nil {
		return err
	}

	params := &resend.SendEmailRequest{
		From:    s.from,
		To:      to,
		Subject: subject,
		Text:    body,
	}
	sent, err := s.client.Emails.Send(params)
	if err != nil {
		log.Printf("Failed to send email via Resend to %v: %v", to, err)
		return fmt.Errorf("resend error: %w", err)
	}
	log.Printf("Email sent via Resend to %v (id %s, Subject: %s)", to, sent.Id, subject)
	return nil
}
