// Package health tracks per-source poll health: a HEALTHY/DEGRADED/OFFLINE
// state machine driven purely by consecutive failure counts, with a fixed
// backoff window that keeps a dead upstream from dominating poll time.
package health

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/watershed-sentinel/internal/domain"
	"github.com/couchcryptid/watershed-sentinel/internal/observability"
	"github.com/couchcryptid/watershed-sentinel/internal/persist"
)

// backoffWindow is how long an OFFLINE source waits between poll attempts.
const backoffWindow = time.Hour

// Tracker owns every source's SourceState. All mutations write the full
// state map through to durable storage; reads warm the map from storage once
// per process lifetime.
type Tracker struct {
	store   persist.Store
	clock   clockwork.Clock
	logger  *slog.Logger
	metrics *observability.Metrics

	mu     sync.Mutex
	states map[domain.Source]*domain.SourceState
	loaded bool
}

// New creates a Tracker. State is loaded lazily on first use.
func New(store persist.Store, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Tracker {
	return &Tracker{
		store:   store,
		clock:   clock,
		logger:  logger,
		metrics: metrics,
		states:  make(map[domain.Source]*domain.SourceState),
	}
}

// State returns a copy of one source's state, creating a fresh HEALTHY entry
// on first sight.
func (t *Tracker) State(ctx context.Context, source domain.Source) domain.SourceState {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ensureLoaded(ctx)
	return t.stateLocked(source).Clone()
}

// RecordSuccess marks a poll success: timestamps updated, failure count
// reset, status back to HEALTHY. knownIDs, when non-nil, replaces the
// source's de-duplication baseline wholesale.
func (t *Tracker) RecordSuccess(ctx context.Context, source domain.Source, knownIDs map[string]bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ensureLoaded(ctx)

	now := t.clock.Now().UTC()
	s := t.stateLocked(source)
	s.LastPollAt = now
	s.LastSuccessAt = now
	s.FirstFailureAt = time.Time{}
	s.ConsecutiveFailures = 0
	s.Status = domain.StatusHealthy
	if knownIDs != nil {
		s.KnownIDs = knownIDs
	}

	t.setStatusGauge(source, s.Status)
	t.persistLocked(ctx)
}

// RecordFailure marks a poll failure and recomputes status from the new
// consecutive failure count.
func (t *Tracker) RecordFailure(ctx context.Context, source domain.Source, reason string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ensureLoaded(ctx)

	now := t.clock.Now().UTC()
	s := t.stateLocked(source)
	s.LastPollAt = now
	if s.FirstFailureAt.IsZero() {
		s.FirstFailureAt = now
	}
	s.ConsecutiveFailures++
	s.Status = domain.StatusForFailures(s.ConsecutiveFailures)

	t.logger.Warn("source poll failed",
		"source", source,
		"reason", reason,
		"consecutive_failures", s.ConsecutiveFailures,
		"status", s.Status,
	)
	t.setStatusGauge(source, s.Status)
	t.persistLocked(ctx)
}

// ShouldPoll reports whether a source is due. Only OFFLINE sources are ever
// held back, and only until the backoff window since their last poll attempt
// has elapsed.
func (t *Tracker) ShouldPoll(ctx context.Context, source domain.Source) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ensureLoaded(ctx)

	s := t.stateLocked(source)
	if s.Status != domain.StatusOffline {
		return true
	}
	return t.clock.Now().Sub(s.LastPollAt) >= backoffWindow
}

// AllStatuses returns a copy of every tracked source state.
func (t *Tracker) AllStatuses(ctx context.Context) []domain.SourceState {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ensureLoaded(ctx)

	out := make([]domain.SourceState, 0, len(t.states))
	for _, source := range domain.AllSources() {
		if s, ok := t.states[source]; ok {
			out = append(out, s.Clone())
		}
	}
	return out
}

// SourceSummary is one row of the operational health summary.
type SourceSummary struct {
	Source              domain.Source       `json:"source"`
	Status              domain.SourceStatus `json:"status"`
	ConsecutiveFailures int                 `json:"consecutive_failures"`
	LastSuccessAt       time.Time           `json:"last_success_at,omitzero"`
	DownSince           time.Time           `json:"down_since,omitzero"`
}

// Summary is the read-only health rollup exposed for operational visibility.
type Summary struct {
	Healthy  int             `json:"healthy"`
	Degraded int             `json:"degraded"`
	Offline  int             `json:"offline"`
	Sources  []SourceSummary `json:"sources"`
}

// GetHealthSummary counts sources by status and lists per-source detail.
func (t *Tracker) GetHealthSummary(ctx context.Context) Summary {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ensureLoaded(ctx)

	var sum Summary
	for _, source := range domain.AllSources() {
		s, ok := t.states[source]
		if !ok {
			continue
		}
		switch s.Status {
		case domain.StatusDegraded:
			sum.Degraded++
		case domain.StatusOffline:
			sum.Offline++
		default:
			sum.Healthy++
		}
		sum.Sources = append(sum.Sources, SourceSummary{
			Source:              source,
			Status:              s.Status,
			ConsecutiveFailures: s.ConsecutiveFailures,
			LastSuccessAt:       s.LastSuccessAt,
			DownSince:           s.FirstFailureAt,
		})
	}
	return sum
}

// stateLocked returns the mutable entry for a source, creating it if absent.
// Caller must hold mu.
func (t *Tracker) stateLocked(source domain.Source) *domain.SourceState {
	s, ok := t.states[source]
	if !ok {
		s = &domain.SourceState{Source: source, Status: domain.StatusHealthy}
		t.states[source] = s
	}
	return s
}

// ensureLoaded warms the state map from durable storage once per process.
// Caller must hold mu. A load failure starts from empty state rather than
// failing the caller.
func (t *Tracker) ensureLoaded(ctx context.Context) {
	if t.loaded {
		return
	}
	t.loaded = true

	data, ok, err := t.store.Load(ctx, persist.KeySourceHealth)
	if err != nil {
		t.logger.Error("load source health state failed", "error", err)
		t.metrics.PersistenceErrors.WithLabelValues("source-health").Inc()
		return
	}
	if !ok {
		return
	}
	var states map[domain.Source]*domain.SourceState
	if err := json.Unmarshal(data, &states); err != nil {
		t.logger.Error("decode source health state failed", "error", err)
		t.metrics.PersistenceErrors.WithLabelValues("source-health").Inc()
		return
	}
	t.states = states
	for source, s := range states {
		t.setStatusGauge(source, s.Status)
	}
}

// persistLocked writes the full state map through to durable storage. A
// failure is logged and swallowed: in-memory state keeps working and a
// restart before the next successful save loses recent changes, which is an
// accepted degradation. Caller must hold mu.
func (t *Tracker) persistLocked(ctx context.Context) {
	data, err := json.Marshal(t.states)
	if err != nil {
		t.logger.Error("encode source health state failed", "error", err)
		return
	}
	if err := t.store.Save(ctx, persist.KeySourceHealth, data); err != nil {
		t.logger.Error("persist source health state failed", "error", err)
		t.metrics.PersistenceErrors.WithLabelValues("source-health").Inc()
	}
}

func (t *Tracker) setStatusGauge(source domain.Source, status domain.SourceStatus) {
	var v float64
	switch status {
	case domain.StatusDegraded:
		v = 1
	case domain.StatusOffline:
		v = 2
	}
	t.metrics.SourceStatus.WithLabelValues(string(source)).Set(v)
}
