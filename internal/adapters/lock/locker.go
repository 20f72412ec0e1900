// Package lock serializes bookings that compete for the same location and day.
package lock

import (
	"context"
	"errors"
	"time"
)

// ErrNotOwner is returned when Unlock is called with a token that no longer
// holds the lock.
var ErrNotOwner = errors.New("lock not held by caller")

// Locker is a best-effort mutual exclusion keyed by string.
// A lock expires after its ttl even if never released.
type Locker interface {
	// TryLock attempts to take key without waiting.
	// POST: ok is true and token identifies the holder, or ok is false
	TryLock(ctx context.Context, key string, ttl time.Duration) (ok bool, token string, err error)

	// Unlock releases key if token still holds it.
	Unlock(ctx context.Context, key, token string) error
}

// Acquire retries TryLock until it succeeds, ctx ends or wait elapses.
// PRE: ttl > 0, wait >= 0
// POST: Returns the holder token, or an error if the lock was not obtained
func Acquire(ctx context.Context, l Locker, key string, ttl, wait time.Duration) (string, error) {
	deadline := time.Now().Add(wait)
	backoff := 10 * time.Millisecond
	for {
		ok, token, err := l.TryLock(ctx, key, ttl)
		if err != nil {
			return "", err
		}
		if ok {
			return token, nil
		}
		if !time.Now().Add(backoff).Before(deadline) {
			return "", ErrTimeout
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(backoff):
		}
		if backoff < 200*time.Millisecond {
			backoff *= 2
		}
	}
}

// ErrTimeout is returned by Acquire when the lock stays held past the wait.
var ErrTimeout = errors.New("timed out waiting for lock")

// BookingKey names the lock guarding one location's day.
func BookingKey(location, date string) string {
	return "booking:" + location + ":" + date
}
