package email

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

const mockEmailTTL = 5 * time.Minute

var ErrMockEmailNotFound = errors.New("mock email not found")

// MockEmail is what MOCK_SERVICES mode records instead of delivering mail.
type MockEmail struct {
	To         string    `json:"to"`
	From       string    `json:"from"`
	Subject    string    `json:"subject"`
	Body       string    `json:"body"`
	TemplateID string    `json:"templateId"`
	SentAt     time.Time `json:"sent_at"`
}

// RedisSender stores one MockEmail per recipient so end-to-end tests can
// read OTP codes and notifications through the service API.
type RedisSender struct {
	client *redis.Client
	from   string
}

func NewRedisSender(client *redis.Client, from string) *RedisSender {
	return &RedisSender{client: client, from: from}
}

// MockEmailKey is the Redis key for the latest mock email of a template sent to a recipient.
func MockEmailKey(to, templateID string) string {
	return fmt.Sprintf("mockemail:%s:%s", to, templateID)
}

func (s *RedisSender) Send(ctx context.Context, to []string, subject string, rawMessage []byte) error {
	templateID, body, err := parseRaw(rawMessage)
	if err != nil || templateID == "" {
		templateID, body = "unknown", string(rawMessage)
	}

	pipe := s.client.TxPipeline()
	for _, recipient := range to {
		data, err := json.Marshal(MockEmail{
			To:         recipient,
			From:       s.from,
			Subject:    subject,
			Body:       body,
			TemplateID: templateID,
			SentAt:     time.Now().UTC(),
		})
		if err != nil {
			return fmt.Errorf("encode mock email: %w", err)
		}
		pipe.Set(ctx, MockEmailKey(recipient, templateID), data, mockEmailTTL)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store mock email %s: %w", templateID, err)
	}

	log.Printf("Mock email %s stored for %v", templateID, to)
	return nil
}

// TakeMockEmail polls until the email arrives or ctx ends, then removes it so
// the next lookup sees only newer mail.
func TakeMockEmail(ctx context.Context, client *redis.Client, to, templateID string) (*MockEmail, error) {
	key := MockEmailKey(to, templateID)
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	for {
		raw, err := client.GetDel(ctx, key).Bytes()
		switch {
		case err == nil:
			var m MockEmail
			if err := json.Unmarshal(raw, &m); err != nil {
				return nil, fmt.Errorf("decode mock email %s: %w", key, err)
			}
			return &m, nil
		case !errors.Is(err, redis.Nil):
			return nil, fmt.Errorf("read mock email %s: %w", key, err)
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %s", ErrMockEmailNotFound, key)
		case <-ticker.C:
		}
	}
}
