package persist

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"
)

// BadgerConfig holds settings for the local embedded store.
type BadgerConfig struct {
	// Path is the directory for Badger files. Ignored when InMemory is set.
	Path string
	// InMemory disables disk persistence, for tests.
	InMemory bool
	// SyncWrites fsyncs every write. On for production, off for tests.
	SyncWrites bool
}

// Badger is the local-disk persistence tier, an embedded BadgerDB.
type Badger struct {
	db *badger.DB
}

// OpenBadger opens (or creates) the local store.
func OpenBadger(cfg BadgerConfig, logger *slog.Logger) (*Badger, error) {
	opts := badger.DefaultOptions(cfg.Path).
		WithInMemory(cfg.InMemory).
		WithSyncWrites(cfg.SyncWrites).
		WithLogger(nil)
	if cfg.InMemory {
		opts.Dir = ""
		opts.ValueDir = ""
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %q: %w", cfg.Path, err)
	}
	if logger != nil {
		logger.Info("badger store opened", "path", cfg.Path, "in_memory", cfg.InMemory)
	}
	return &Badger{db: db}, nil
}

func (b *Badger) Save(_ context.Context, key string, value []byte) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
	if err != nil {
		return fmt.Errorf("badger save %q: %w", key, err)
	}
	return nil
}

func (b *Badger) Load(_ context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("badger load %q: %w", key, err)
	}
	return value, true, nil
}

func (b *Badger) Close() error {
	return b.db.Close()
}
