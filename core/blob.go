package core

import (
	"context"
	"io"
)

// ErrBlobNotFound is returned by BlobStore.Open when no blob exists under the key.
var ErrBlobNotFound = NewError(ErrNotFound, "blob not found")

// BlobStore is a flat key -> file store.
type BlobStore interface {
	// Put writes r under key, replacing any previous content.
	Put(ctx context.Context, key string, r io.Reader) error
	// Open returns the content stored under key, or ErrBlobNotFound.
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}
