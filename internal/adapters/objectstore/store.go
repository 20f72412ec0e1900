// Package objectstore keeps patient file bytes outside the database.
package objectstore

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrNotFound is returned when a key does not exist.
var ErrNotFound = errors.New("object not found")

// Store puts, links and removes objects by key.
type Store interface {
	// Put uploads size bytes from r under key.
	// PRE: key is non-empty, size >= 0
	// POST: the object is retrievable under key
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error

	// PresignGet returns a time-limited download URL. downloadName sets the
	// file name offered to the browser.
	PresignGet(ctx context.Context, key, downloadName string, expiry time.Duration) (string, error)

	Remove(ctx context.Context, key string) error
}
