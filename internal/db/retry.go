package db

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
)

const (
	DefaultMaxRetries = 3
	retryBackoff      = 50 * time.Millisecond
)

// ErrVersionConflict reports that a compare-and-swap write lost to a
// concurrent writer.
var ErrVersionConflict = errors.New("document was modified concurrently")

// TryVersioned runs a read-plan-write cycle again while it keeps losing the
// version race, up to DefaultMaxRetries extra attempts.
func TryVersioned(ctx context.Context, op func(ctx context.Context) error) error {
	return WithRetries(ctx, op, DefaultMaxRetries, IsVersionConflict)
}

// WithRetries calls op until it succeeds, returns an error retryable rejects,
// or maxRetries extra attempts are spent. The linear backoff stops early
// when ctx ends.
func WithRetries(ctx context.Context, op func(ctx context.Context) error, maxRetries int, retryable func(error) bool) error {
	for attempt := 0; ; attempt++ {
		err := op(ctx)
		if err == nil || attempt >= maxRetries || !retryable(err) {
			return err
		}

		timer := time.NewTimer(retryBackoff * time.Duration(attempt+1))
		select {
		case <-ctx.Done():
			timer.Stop()
			return errors.Join(err, ctx.Err())
		case <-timer.C:
		}
	}
}

// IsMongoDuplicateKeyError reports a unique index violation, which the
// payment and user stores treat as "already exists".
func IsMongoDuplicateKeyError(err error) bool {
	return err != nil && mongo.IsDuplicateKeyError(err)
}

func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrVersionConflict)
}
