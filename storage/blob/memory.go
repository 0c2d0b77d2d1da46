package blob

import (
	"bytes"
	"context"
	"io"
	"io/ioutil"
	"sort"
	"sync"

	"github.com/pkg/errors"

	"github.com/trezcool/dossier/core"
)

// MemoryStore keeps blobs in a map. Used by tests and demos.
type MemoryStore struct {
	mutex sync.RWMutex
	blobs map[string][]byte
}

var _ core.BlobStore = (*MemoryStore)(nil) // interface compliance check

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[string][]byte)}
}

func (s *MemoryStore) Put(_ context.Context, key string, r io.Reader) error {
	key, err := cleanKey(key)
	if err != nil {
		return err
	}
	data, err := ioutil.ReadAll(r)
	if err != nil {
		return errors.Wrap(err, "reading blob")
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.blobs[key] = data
	return nil
}

func (s *MemoryStore) Open(_ context.Context, key string) (io.ReadCloser, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	data, ok := s.blobs[key]
	if !ok {
		return nil, core.ErrBlobNotFound
	}
	return ioutil.NopCloser(bytes.NewReader(data)), nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	delete(s.blobs, key)
	return nil
}

func (s *MemoryStore) Exists(_ context.Context, key string) (bool, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	_, ok := s.blobs[key]
	return ok, nil
}

// Keys lists the stored keys in order.
func (s *MemoryStore) Keys() []string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	keys := make([]string, 0, len(s.blobs))
	for k := range s.blobs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
