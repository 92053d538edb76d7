package tasks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"mime"
	"text/template"
	"time"

	"github.com/hibiken/asynq"

	"agrolink/api/internal/email"
)

const fallbackFromAddress = "noreply@agrolink.local"

// EmailTaskPayload is the payload of TypeEmailDelivery.
type EmailTaskPayload struct {
	To         string                 `json:"to"`
	TemplateID string                 `json:"template_id"`
	Locale     string                 `json:"locale,omitempty"`
	Data       map[string]interface{} `json:"data"`
}

// renderedEmail is a template after substitution.
type renderedEmail struct {
	Subject string
	Body    string
}

func renderTemplate(id, subject, body string, data map[string]interface{}) (*renderedEmail, error) {
	var out renderedEmail
	for _, part := range []struct {
		name string
		text string
		dst  *string
	}{
		{"subject", subject, &out.Subject},
		{"body", body, &out.Body},
	} {
		tmpl, err := template.New(id + ":" + part.name).Option("missingkey=zero").Parse(part.text)
		if err != nil {
			return nil, fmt.Errorf("parse %s of %s: %w", part.name, id, err)
		}
		var buf bytes.Buffer
		if err := tmpl.Execute(&buf, data); err != nil {
			return nil, fmt.Errorf("execute %s of %s: %w", part.name, id, err)
		}
		*part.dst = buf.String()
	}
	return &out, nil
}

// composeMessage builds a plain-text RFC 5322 message carrying the template
// id header.
func composeMessage(from, to, templateID string, msg *renderedEmail, now time.Time) []byte {
	var b bytes.Buffer
	headers := [][2]string{
		{"To", to},
		{"From", from},
		{"Subject", mime.QEncoding.Encode("utf-8", msg.Subject)},
		{email.TemplateHeader, templateID},
		{"Date", now.Format(time.RFC1123Z)},
		{"MIME-Version", "1.0"},
		{"Content-Type", `text/plain; charset="UTF-8"`},
	}
	for _, h := range headers {
		fmt.Fprintf(&b, "%s: %s\r\n", h[0], h[1])
	}
	b.WriteString("\r\n")
	b.WriteString(msg.Body)
	b.WriteString("\r\n")
	return b.Bytes()
}

// HandleEmailDeliveryTask renders a stored template and sends it. Missing or
// broken templates are not retried; transport failures are.
func (p *TaskProcessor) HandleEmailDeliveryTask(ctx context.Context, t *asynq.Task) error {
	var payload EmailTaskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("decode email task: %v: %w", err, asynq.SkipRetry)
	}

	tmpl, err := p.emailTemplateService.GetTemplate(ctx, payload.TemplateID, payload.Locale)
	if err != nil {
		log.Printf("email template %s (%s) unavailable: %v", payload.TemplateID, payload.Locale, err)
		return fmt.Errorf("email template %s not found: %w", payload.TemplateID, asynq.SkipRetry)
	}

	msg, err := renderTemplate(payload.TemplateID, tmpl.Subject, tmpl.Body, payload.Data)
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	from := p.cfg.SmtpFromAddress
	if from == "" {
		from = fallbackFromAddress
	}

	raw := composeMessage(from, payload.To, payload.TemplateID, msg, time.Now())
	if err := p.emailSender.Send(ctx, []string{payload.To}, msg.Subject, raw); err != nil {
		return fmt.Errorf("deliver %s to %s: %w", payload.TemplateID, payload.To, err)
	}

	log.Printf("Delivered %s email to %s", payload.TemplateID, payload.To)
	return nil
}
