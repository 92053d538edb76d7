package email

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// FileEmailSender appends every outgoing message to a local log, enabled by
// LOG_EMAILS for development.
type FileEmailSender struct {
	mu   sync.Mutex
	path string
}

func NewFileEmailSender(path string) (*FileEmailSender, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("email log path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create email log dir: %w", err)
	}
	return &FileEmailSender{path: path}, nil
}

func (s *FileEmailSender) Send(_ context.Context, to []string, subject string, rawMessage []byte) error {
	var b strings.Builder
	fmt.Fprintf(&b, "=== %s to=%s subject=%q\n", time.Now().UTC().Format(time.RFC3339), strings.Join(to, ","), subject)
	b.Write(rawMessage)
	b.WriteString("\n=== end\n\n")

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open email log: %w", err)
	}
	if _, err := f.WriteString(b.String()); err != nil {
		f.Close()
		return fmt.Errorf("append email log: %w", err)
	}
	return f.Close()
}
