package storage

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/mcoot/typerace-go/internal/model"
)

// readAttempts is the initial prompt pool read plus one retry
const readAttempts = 2

// RetryingStorage retries prompt pool reads once when the backend is unavailable.
// Writes pass straight through so a failed save always reaches the caller.
type RetryingStorage struct {
	Storage
	delay time.Duration
}

// WithReadRetry wraps s so LoadPromptPool is retried once after delay
func WithReadRetry(s Storage, delay time.Duration) *RetryingStorage {
	return &RetryingStorage{Storage: s, delay: delay}
}

// Unwrap returns the decorated backend
func (r *RetryingStorage) Unwrap() Storage {
	return r.Storage
}

func (r *RetryingStorage) LoadPromptPool(ctx context.Context, activeOnly bool) ([]model.Prompt, error) {
	op := func() ([]model.Prompt, error) {
		pool, err := r.Storage.LoadPromptPool(ctx, activeOnly)
		if err != nil && !errors.Is(err, model.ErrStorageUnavailable) {
			return nil, backoff.Permanent(err)
		}
		return pool, err
	}
	return backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewConstantBackOff(r.delay)),
		backoff.WithMaxTries(readAttempts),
	)
}
