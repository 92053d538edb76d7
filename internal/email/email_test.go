package email

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSender struct {
	calls int
	err   error
}

func (r *recordingSender) Send(ctx context.Context, to []string, subject string, rawMessage []byte) error {
	r.calls++
	return r.err
}

const rawMessage = "To: farmer@example.com\r\nFrom: noreply@example.com\r\nSubject: New contract request\r\n" +
	TemplateHeader + ": contract_request\r\n\r\nYou have a new contract request.\r\n"

func TestParseRaw(t *testing.T) {
	templateID, body, err := parseRaw([]byte(rawMessage))
	require.NoError(t, err)
	assert.Equal(t, "contract_request", templateID)
	assert.Contains(t, body, "You have a new contract request.")
}

func TestFanoutSender_CallsAllAndJoinsErrors(t *testing.T) {
	smtpDown := errors.New("smtp down")
	failing := &recordingSender{err: smtpDown}
	mirror := &recordingSender{}
	f := NewFanoutSender(failing, mirror)
	f.Mirror(nil)

	err := f.Send(context.Background(), []string{"a@example.com"}, "s", []byte(rawMessage))
	require.Error(t, err)
	assert.ErrorIs(t, err, smtpDown)
	assert.Equal(t, 1, failing.calls)
	assert.Equal(t, 1, mirror.calls)
}

func TestFanoutSender_MirrorOnly(t *testing.T) {
	mirror := &recordingSender{}
	f := NewFanoutSender(nil, mirror)

	require.NoError(t, f.Send(context.Background(), nil, "s", nil))
	assert.Equal(t, 1, mirror.calls)
}

func TestFanoutSender_Empty(t *testing.T) {
	err := NewFanoutSender(nil).Send(context.Background(), nil, "s", nil)
	assert.ErrorIs(t, err, ErrNoSenders)
}

func TestFileEmailSender_Appends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mail", "emails.log")
	sender, err := NewFileEmailSender(path)
	require.NoError(t, err)

	require.NoError(t, sender.Send(context.Background(), []string{"a@example.com"}, "first", []byte(rawMessage)))
	require.NoError(t, sender.Send(context.Background(), []string{"b@example.com"}, "second", []byte(rawMessage)))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `subject="first"`)
	assert.Contains(t, string(data), `subject="second"`)
}

func TestMockEmailKey(t *testing.T) {
	assert.Equal(t, "mockemail:a@example.com:otp", MockEmailKey("a@example.com", "otp"))
}
