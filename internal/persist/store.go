// Package persist provides the durable key-value persistence used to survive
// process restarts: a Badger local-disk tier for fast restart, an optional
// GCS blob tier for cross-instance survival, and a tiered composite that
// reads local-first with a once-per-process remote fallback.
//
// Writes are whole-document overwrites, not append-only logs; the system
// tolerates last-writer-wins and assumes a single-writer deployment.
package persist

import "context"

// Store is the durable persistence contract shared by the health tracker,
// the event ledger, and the scoring engine.
type Store interface {
	// Save overwrites the value under key.
	Save(ctx context.Context, key string, value []byte) error
	// Load returns the value under key, reporting false when absent.
	Load(ctx context.Context, key string) ([]byte, bool, error)
	Close() error
}

// Keys for the documents the sentinel persists.
const (
	KeySourceHealth = "sentinel/source-health"
	KeyChangeEvents = "sentinel/change-events"
	KeyScoredHucs   = "sentinel/scored-hucs"
)
