// Package store holds the change-event ledger. It is deliberately dumb: it
// keeps everything and lets the scoring engine decide relevance, which makes
// it a restartable ledger rather than a second place where policy lives.
package store

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/watershed-sentinel/internal/domain"
	"github.com/couchcryptid/watershed-sentinel/internal/observability"
	"github.com/couchcryptid/watershed-sentinel/internal/persist"
)

// EventStore is the append/query layer over all currently-held change
// events, de-duplicated by event ID and persisted wholesale.
type EventStore struct {
	store   persist.Store
	clock   clockwork.Clock
	logger  *slog.Logger
	metrics *observability.Metrics

	// retention caps event age for storage growth. Zero keeps everything;
	// events are otherwise only functionally expired by scoring decay.
	retention time.Duration

	mu     sync.RWMutex
	events map[string]domain.ChangeEvent
	loaded bool
}

// New creates an EventStore. Events are loaded lazily on first use.
func New(store persist.Store, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics, retention time.Duration) *EventStore {
	return &EventStore{
		store:     store,
		clock:     clock,
		logger:    logger,
		metrics:   metrics,
		retention: retention,
		events:    make(map[string]domain.ChangeEvent),
	}
}

// Append adds events to the ledger, skipping IDs already present, then
// persists the full collection. Re-ingesting the same adapter output is
// idempotent. Returns the number of events actually added.
func (s *EventStore) Append(ctx context.Context, events []domain.ChangeEvent) int {
	if len(events) == 0 {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoaded(ctx)

	added := 0
	for _, ev := range events {
		if _, ok := s.events[ev.ID]; ok {
			continue
		}
		s.events[ev.ID] = ev
		added++
	}
	s.pruneLocked()
	if added > 0 {
		s.persistLocked(ctx)
	}
	return added
}

// All returns every held event, including geography-less ones, newest first.
func (s *EventStore) All(ctx context.Context) []domain.ChangeEvent {
	s.mu.Lock()
	s.ensureLoaded(ctx)
	out := make([]domain.ChangeEvent, 0, len(s.events))
	for _, ev := range s.events {
		out = append(out, ev)
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].DetectedAt.Equal(out[j].DetectedAt) {
			return out[i].DetectedAt.After(out[j].DetectedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// ActiveHucs returns the distinct watershed units with at least one held
// event, sorted for deterministic scoring order.
func (s *EventStore) ActiveHucs(ctx context.Context) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoaded(ctx)

	seen := make(map[string]bool)
	for _, ev := range s.events {
		if ev.Geography.HUC8 != "" {
			seen[ev.Geography.HUC8] = true
		}
	}
	hucs := make([]string, 0, len(seen))
	for huc := range seen {
		hucs = append(hucs, huc)
	}
	sort.Strings(hucs)
	return hucs
}

// EventsForHuc returns the events located in one watershed unit.
func (s *EventStore) EventsForHuc(ctx context.Context, huc8 string) []domain.ChangeEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoaded(ctx)

	var out []domain.ChangeEvent
	for _, ev := range s.events {
		if ev.Geography.HUC8 == huc8 {
			out = append(out, ev)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// pruneLocked drops events older than the retention cap. Caller must hold mu.
func (s *EventStore) pruneLocked() {
	if s.retention <= 0 {
		return
	}
	cutoff := s.clock.Now().Add(-s.retention)
	for id, ev := range s.events {
		if ev.DetectedAt.Before(cutoff) {
			delete(s.events, id)
		}
	}
}

func (s *EventStore) ensureLoaded(ctx context.Context) {
	if s.loaded {
		return
	}
	s.loaded = true

	data, ok, err := s.store.Load(ctx, persist.KeyChangeEvents)
	if err != nil {
		s.logger.Error("load change events failed", "error", err)
		s.metrics.PersistenceErrors.WithLabelValues("change-events").Inc()
		return
	}
	if !ok {
		return
	}
	var events []domain.ChangeEvent
	if err := json.Unmarshal(data, &events); err != nil {
		s.logger.Error("decode change events failed", "error", err)
		s.metrics.PersistenceErrors.WithLabelValues("change-events").Inc()
		return
	}
	for _, ev := range events {
		s.events[ev.ID] = ev
	}
	s.pruneLocked()
}

func (s *EventStore) persistLocked(ctx context.Context) {
	events := make([]domain.ChangeEvent, 0, len(s.events))
	for _, ev := range s.events {
		events = append(events, ev)
	}
	sort.Slice(events, func(i, j int) bool { return events[i].ID < events[j].ID })

	data, err := json.Marshal(events)
	if err != nil {
		s.logger.Error("encode change events failed", "error", err)
		return
	}
	if err := s.store.Save(ctx, persist.KeyChangeEvents, data); err != nil {
		s.logger.Error("persist change events failed", "error", err)
		s.metrics.PersistenceErrors.WithLabelValues("change-events").Inc()
	}
}
