package engine

import (
	"context"
	"math/rand/v2"
	"time"
)

// Locker is a non-blocking process level write lock.
type Locker interface {
	// TryLock takes the lock if it is free and reports whether it did.
	TryLock(ctx context.Context) (bool, error)
	Unlock() error
}

// RetryPolicy bounds the retries of AcquireLock.
type RetryPolicy struct {
	Attempts int
	MinDelay time.Duration
	MaxDelay time.Duration
	// OnRetry is called before sleeping after a failed attempt.
	OnRetry func(attempt int)
}

// DefaultRetryPolicy retries 100 times, sleeping 10 to 90 ms between tries.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Attempts: 100, MinDelay: 10 * time.Millisecond, MaxDelay: 90 * time.Millisecond}
}

// AcquireLock takes l, retrying with a random delay while another writer
// holds it. It returns ErrLocked once the attempts are exhausted.
func AcquireLock(ctx context.Context, l Locker, p RetryPolicy) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}
	for attempt := 1; ; attempt++ {
		ok, err := l.TryLock(ctx)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		if attempt >= attempts {
			return ErrLocked
		}
		if p.OnRetry != nil {
			p.OnRetry(attempt)
		}
		delay := p.MinDelay
		if span := p.MaxDelay - p.MinDelay; span > 0 {
			delay += rand.N(span)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}
