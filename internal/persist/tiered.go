package persist

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// Tiered layers a fast local store over an optional remote one.
//
// Saves go to both tiers; a remote failure is reported but does not block the
// local write. Loads are local-first, falling back to the remote at most once
// per process per key — the "warm once" pattern. A remote hit backfills the
// local tier so the next restart is fast.
type Tiered struct {
	local  Store
	remote Store // may be nil
	logger *slog.Logger

	mu            sync.Mutex
	remoteChecked map[string]bool
}

// NewTiered composes the two tiers. remote may be nil for local-only
// deployments.
func NewTiered(local, remote Store, logger *slog.Logger) *Tiered {
	return &Tiered{
		local:         local,
		remote:        remote,
		logger:        logger,
		remoteChecked: make(map[string]bool),
	}
}

func (t *Tiered) Save(ctx context.Context, key string, value []byte) error {
	localErr := t.local.Save(ctx, key, value)

	var remoteErr error
	if t.remote != nil {
		if remoteErr = t.remote.Save(ctx, key, value); remoteErr != nil {
			t.logger.Warn("remote persistence save failed", "key", key, "error", remoteErr)
		}
	}
	if localErr != nil {
		return localErr
	}
	return remoteErr
}

func (t *Tiered) Load(ctx context.Context, key string) ([]byte, bool, error) {
	value, ok, err := t.local.Load(ctx, key)
	if err != nil {
		return nil, false, err
	}
	if ok {
		return value, true, nil
	}
	if t.remote == nil || !t.markRemoteChecked(key) {
		return nil, false, nil
	}

	value, ok, err = t.remote.Load(ctx, key)
	if err != nil || !ok {
		return nil, false, err
	}
	// Backfill so the local tier serves this key from now on.
	if err := t.local.Save(ctx, key, value); err != nil {
		t.logger.Warn("local backfill failed", "key", key, "error", err)
	}
	return value, true, nil
}

// markRemoteChecked records the fallback attempt, returning false if this
// key's remote fallback was already spent this process.
func (t *Tiered) markRemoteChecked(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.remoteChecked[key] {
		return false
	}
	t.remoteChecked[key] = true
	return true
}

func (t *Tiered) Close() error {
	errs := []error{t.local.Close()}
	if t.remote != nil {
		errs = append(errs, t.remote.Close())
	}
	return errors.Join(errs...)
}
