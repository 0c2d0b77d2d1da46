// Package blob provides the document stores: local filesystem, Backblaze B2 and memory.
package blob

import (
	"context"
	"path"
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/dossier/core"
)

var ErrInvalidKey = errors.New("invalid blob key")

// cleanKey rejects keys that would escape the store's namespace.
func cleanKey(key string) (string, error) {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return "", ErrInvalidKey
	}
	cleaned := path.Clean(key)
	if cleaned != key || cleaned == "." || strings.HasPrefix(cleaned, "../") || cleaned == ".." {
		return "", ErrInvalidKey
	}
	return cleaned, nil
}

// New returns the BlobStore selected by conf.Storage.Backend.
func New(ctx context.Context, conf *core.Config) (core.BlobStore, error) {
	switch conf.Storage.Backend {
	case core.StorageLocal, "":
		return NewLocalStore(conf.Storage.Root)
	case core.StorageB2:
		return NewB2Store(ctx, conf.Storage.B2KeyID, conf.Storage.B2AppKey, conf.Storage.B2Bucket)
	default:
		return nil, errors.Errorf("unknown storage backend %q", conf.Storage.Backend)
	}
}
