package persist_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/watershed-sentinel/internal/persist"
)

// fakeStore is an in-memory persist.Store with fault injection and call
// counting.
type fakeStore struct {
	mu      sync.Mutex
	data    map[string][]byte
	saveErr error
	loadErr error
	loads   int
	saves   int
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: make(map[string][]byte)}
}

func (f *fakeStore) Save(_ context.Context, key string, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saves++
	if f.saveErr != nil {
		return f.saveErr
	}
	f.data[key] = append([]byte(nil), value...)
	return nil
}

func (f *fakeStore) Load(_ context.Context, key string) ([]byte, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loads++
	if f.loadErr != nil {
		return nil, false, f.loadErr
	}
	value, ok := f.data[key]
	return value, ok, nil
}

func (f *fakeStore) Close() error { return nil }

func TestTiered_SaveWritesBothTiers(t *testing.T) {
	local, remote := newFakeStore(), newFakeStore()
	tiered := persist.NewTiered(local, remote, discardLogger())

	require.NoError(t, tiered.Save(context.Background(), "k", []byte("v")))

	assert.Equal(t, []byte("v"), local.data["k"])
	assert.Equal(t, []byte("v"), remote.data["k"])
}

func TestTiered_RemoteSaveFailureIsNotFatalLocally(t *testing.T) {
	local, remote := newFakeStore(), newFakeStore()
	remote.saveErr = errors.New("bucket unavailable")
	tiered := persist.NewTiered(local, remote, discardLogger())

	err := tiered.Save(context.Background(), "k", []byte("v"))

	require.Error(t, err)
	assert.Equal(t, []byte("v"), local.data["k"], "local write must land despite remote failure")
}

func TestTiered_LoadLocalFirst(t *testing.T) {
	local, remote := newFakeStore(), newFakeStore()
	local.data["k"] = []byte("local")
	remote.data["k"] = []byte("remote")
	tiered := persist.NewTiered(local, remote, discardLogger())

	value, ok, err := tiered.Load(context.Background(), "k")

	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("local"), value)
	assert.Zero(t, remote.loads, "remote must not be consulted on a local hit")
}

func TestTiered_RemoteFallbackOncePerKey(t *testing.T) {
	local, remote := newFakeStore(), newFakeStore()
	remote.data["k"] = []byte("remote")
	tiered := persist.NewTiered(local, remote, discardLogger())
	ctx := context.Background()

	value, ok, err := tiered.Load(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("remote"), value)
	assert.Equal(t, []byte("remote"), local.data["k"], "remote hit must backfill local")

	// Drop the local copy; the remote fallback for this key is spent, so
	// the load must miss instead of reaching out again.
	delete(local.data, "k")
	_, ok, err = tiered.Load(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 1, remote.loads)
}

func TestTiered_NoRemote(t *testing.T) {
	local := newFakeStore()
	tiered := persist.NewTiered(local, nil, discardLogger())
	ctx := context.Background()

	require.NoError(t, tiered.Save(ctx, "k", []byte("v")))
	value, ok, err := tiered.Load(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("v"), value)

	_, ok, err = tiered.Load(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
