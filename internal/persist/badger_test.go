package persist_test

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/watershed-sentinel/internal/persist"
)

func newInMemoryBadger(t *testing.T) *persist.Badger {
	t.Helper()
	b, err := persist.OpenBadger(persist.BadgerConfig{InMemory: true}, slog.Default())
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func TestBadger_SaveLoad(t *testing.T) {
	b := newInMemoryBadger(t)
	ctx := context.Background()

	require.NoError(t, b.Save(ctx, "k", []byte("v1")))

	value, ok, err := b.Load(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("v1"), value)
}

func TestBadger_Overwrite(t *testing.T) {
	b := newInMemoryBadger(t)
	ctx := context.Background()

	require.NoError(t, b.Save(ctx, "k", []byte("v1")))
	require.NoError(t, b.Save(ctx, "k", []byte("v2")))

	value, ok, err := b.Load(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("v2"), value)
}

func TestBadger_Absent(t *testing.T) {
	b := newInMemoryBadger(t)

	value, ok, err := b.Load(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, value)
}

func TestBadger_OnDisk(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	b, err := persist.OpenBadger(persist.BadgerConfig{Path: dir, SyncWrites: true}, slog.Default())
	require.NoError(t, err)
	require.NoError(t, b.Save(ctx, "k", []byte("survives")))
	require.NoError(t, b.Close())

	// Reopen and confirm the value survived the restart.
	b, err = persist.OpenBadger(persist.BadgerConfig{Path: dir, SyncWrites: true}, slog.Default())
	require.NoError(t, err)
	defer b.Close()

	value, ok, err := b.Load(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("survives"), value)
}
