package blob

import (
	"context"
	"io/ioutil"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/trezcool/dossier/core"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func Test_cleanKey(t *testing.T) {
	tests := []struct {
		key     string
		wantErr bool
	}{
		{key: "documents/a.pdf"},
		{key: "a.pdf"},
		{key: "", wantErr: true},
		{key: "/etc/passwd", wantErr: true},
		{key: "../secret.pdf", wantErr: true},
		{key: "documents/../../x", wantErr: true},
		{key: "documents//a.pdf", wantErr: true},
		{key: `documents\a.pdf`, wantErr: true},
		{key: "..", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			_, err := cleanKey(tt.key)
			if tt.wantErr {
				assert.Equal(t, ErrInvalidKey, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func testStore(t *testing.T, store core.BlobStore) {
	ctx := context.Background()
	const key = "documents/report.pdf"

	exists, err := store.Exists(ctx, key)
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = store.Open(ctx, key)
	assert.True(t, errors.Is(err, core.ErrBlobNotFound))
	assert.True(t, errors.Is(err, core.ErrNotFound))

	require.NoError(t, store.Put(ctx, key, strings.NewReader("%PDF-1 first")))
	require.NoError(t, store.Put(ctx, key, strings.NewReader("%PDF-1 second")))

	rc, err := store.Open(ctx, key)
	require.NoError(t, err)
	data, err := ioutil.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "%PDF-1 second", string(data))

	exists, err = store.Exists(ctx, key)
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, store.Delete(ctx, key))
	require.NoError(t, store.Delete(ctx, key), "deleting a missing blob is not an error")

	exists, err = store.Exists(ctx, key)
	require.NoError(t, err)
	assert.False(t, exists)

	assert.Equal(t, ErrInvalidKey, store.Put(ctx, "../escape.pdf", strings.NewReader("x")))
}

func TestLocalStore(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)
	testStore(t, store)
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	testStore(t, store)
	assert.Empty(t, store.Keys())
}

func TestNew(t *testing.T) {
	conf := core.NewTestConfig()
	conf.Storage.Root = t.TempDir()

	store, err := New(context.Background(), conf)
	require.NoError(t, err)
	assert.IsType(t, &LocalStore{}, store)

	conf.Storage.Backend = "ftp"
	_, err = New(context.Background(), conf)
	assert.Error(t, err)
}
