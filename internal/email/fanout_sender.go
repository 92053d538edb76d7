package email

import (
	"context"
	"errors"
	"fmt"
	"log"
)

var ErrNoSenders = errors.New("email: no senders configured")

// FanoutSender delivers each message through a primary sender and any number
// of mirrors, such as the LOG_EMAILS file log.
type FanoutSender struct {
	primary Sender
	mirrors []Sender
}

func NewFanoutSender(primary Sender, mirrors ...Sender) *FanoutSender {
	f := &FanoutSender{primary: primary}
	for _, m := range mirrors {
		f.Mirror(m)
	}
	return f
}

// Mirror registers an extra destination. Nil senders are ignored.
func (f *FanoutSender) Mirror(s Sender) {
	if s != nil {
		f.mirrors = append(f.mirrors, s)
	}
}

// Send tries every destination even after a failure. A mirror failure is
// logged and still reported, so the task queue retries the message.
func (f *FanoutSender) Send(ctx context.Context, to []string, subject string, rawMessage []byte) error {
	if f.primary == nil && len(f.mirrors) == 0 {
		return ErrNoSenders
	}

	var errs []error
	if f.primary != nil {
		if err := f.primary.Send(ctx, to, subject, rawMessage); err != nil {
			errs = append(errs, fmt.Errorf("primary: %w", err))
		}
	}
	for i, m := range f.mirrors {
		if err := m.Send(ctx, to, subject, rawMessage); err != nil {
			log.Printf("email mirror %d failed for %v: %v", i, to, err)
			errs = append(errs, fmt.Errorf("mirror %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}
