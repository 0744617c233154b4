// Package photostore persists the raw bytes of scan photos.
package photostore

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned when a storage key has no photo behind it.
var ErrNotFound = errors.New("photo not found")

type PhotoStore interface {
	// Save writes r under a fresh key derived from owner and returns the key.
	Save(ctx context.Context, owner, mimeType string, r io.Reader) (storageKey string, err error)
	Get(ctx context.Context, storageKey string) (io.ReadCloser, string, error)
	Delete(ctx context.Context, storageKey string) error
}
