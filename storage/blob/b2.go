package blob

import (
	"context"
	"io"

	"github.com/kurin/blazer/b2"
	"github.com/pkg/errors"

	"github.com/trezcool/dossier/core"
)

// B2Store keeps blobs as objects of a Backblaze B2 bucket.
type B2Store struct {
	client *b2.Client
	bucket *b2.Bucket

	// newWriter starts an upload of key; cancelling ctx before Close abandons it.
	newWriter func(ctx context.Context, key string) io.WriteCloser
}

var _ core.BlobStore = (*B2Store)(nil) // interface compliance check

func NewB2Store(ctx context.Context, keyID, appKey, bucketName string) (*B2Store, error) {
	client, err := b2.NewClient(ctx, keyID, appKey)
	if err != nil {
		return nil, errors.Wrap(err, "creating b2 client")
	}
	bucket, err := client.Bucket(ctx, bucketName)
	if err != nil {
		return nil, errors.Wrap(err, "getting b2 bucket")
	}
	s := &B2Store{client: client, bucket: bucket}
	s.newWriter = func(ctx context.Context, key string) io.WriteCloser {
		return s.bucket.Object(key).NewWriter(ctx)
	}
	return s, nil
}

func (s *B2Store) Put(ctx context.Context, key string, r io.Reader) error {
	key, err := cleanKey(key)
	if err != nil {
		return err
	}
	wctx, cancel := context.WithCancel(ctx)
	defer cancel()

	w := s.newWriter(wctx, key)
	if _, err = io.Copy(w, r); err != nil {
		cancel() // never commit a truncated object
		_ = w.Close()
		return errors.Wrap(err, "writing b2 object")
	}
	return errors.Wrap(w.Close(), "closing b2 writer")
}

func (s *B2Store) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	obj := s.bucket.Object(key)
	// the reader only fails on first Read, so look the object up first
	if _, err := obj.Attrs(ctx); err != nil {
		if b2.IsNotExist(err) {
			return nil, core.ErrBlobNotFound
		}
		return nil, errors.Wrap(err, "getting b2 object")
	}
	return obj.NewReader(ctx), nil
}

func (s *B2Store) Delete(ctx context.Context, key string) error {
	if err := s.bucket.Object(key).Delete(ctx); err != nil && !b2.IsNotExist(err) {
		return errors.Wrap(err, "deleting b2 object")
	}
	return nil
}

func (s *B2Store) Exists(ctx context.Context, key string) (bool, error) {
	if _, err := s.bucket.Object(key).Attrs(ctx); err != nil {
		if b2.IsNotExist(err) {
			return false, nil
		}
		return false, errors.Wrap(err, "getting b2 object")
	}
	return true, nil
}
