// Package scheduler drives the two cadences of the sentinel core: polling
// every source whose health allows it, and running discrete scoring passes.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/watershed-sentinel/internal/domain"
	"github.com/couchcryptid/watershed-sentinel/internal/health"
	"github.com/couchcryptid/watershed-sentinel/internal/observability"
	"github.com/couchcryptid/watershed-sentinel/internal/scoring"
	"github.com/couchcryptid/watershed-sentinel/internal/source"
	"github.com/couchcryptid/watershed-sentinel/internal/store"
)

// maxConcurrentPolls bounds the poll fan-out so a burst of slow upstream
// caches does not pile up goroutines.
const maxConcurrentPolls = 4

// Announcer publishes newly-detected change events for downstream consumers.
type Announcer interface {
	Publish(ctx context.Context, events []domain.ChangeEvent) error
}

// Config holds the scheduler cadences.
type Config struct {
	PollInterval  time.Duration
	ScoreInterval time.Duration
	// PollTimeout bounds one adapter poll, including its snapshot read.
	PollTimeout time.Duration
}

// Scheduler orchestrates adapters, the health tracker, the event ledger, the
// scoring engine, and the optional announcer.
type Scheduler struct {
	adapters  []source.Adapter
	tracker   *health.Tracker
	events    *store.EventStore
	engine    *scoring.Engine
	announcer Announcer // nil when announcing is disabled

	clock   clockwork.Clock
	logger  *slog.Logger
	metrics *observability.Metrics
	cfg     Config

	// sourceMu serializes polling per source; cross-source polls run
	// concurrently but the same source must never race on its baseline.
	sourceMu map[domain.Source]*sync.Mutex
	ready    atomic.Bool
}

// New wires a Scheduler.
func New(adapters []source.Adapter, tracker *health.Tracker, events *store.EventStore, engine *scoring.Engine, announcer Announcer, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics, cfg Config) *Scheduler {
	sourceMu := make(map[domain.Source]*sync.Mutex, len(adapters))
	for _, a := range adapters {
		sourceMu[a.Source()] = &sync.Mutex{}
	}
	return &Scheduler{
		adapters:  adapters,
		tracker:   tracker,
		events:    events,
		engine:    engine,
		announcer: announcer,
		clock:     clock,
		logger:    logger,
		metrics:   metrics,
		cfg:       cfg,
		sourceMu:  sourceMu,
	}
}

// CheckReadiness reports nil once the scheduler has completed its first
// poll-and-score cycle.
func (s *Scheduler) CheckReadiness(_ context.Context) error {
	if !s.ready.Load() {
		return errors.New("scheduler has not completed a poll cycle yet")
	}
	return nil
}

// Run polls immediately on start, then holds both cadences until the context
// is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("scheduler started",
		"sources", len(s.adapters),
		"poll_interval", s.cfg.PollInterval,
		"score_interval", s.cfg.ScoreInterval,
	)

	s.PollAll(ctx)
	s.engine.Run(ctx)
	s.ready.Store(true)

	pollTicker := s.clock.NewTicker(s.cfg.PollInterval)
	defer pollTicker.Stop()
	scoreTicker := s.clock.NewTicker(s.cfg.ScoreInterval)
	defer scoreTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopping", "reason", ctx.Err())
			return nil
		case <-pollTicker.Chan():
			s.PollAll(ctx)
		case <-scoreTicker.Chan():
			s.engine.Run(ctx)
		}
	}
}

// PollAll polls every registered source whose health allows it, concurrently
// across sources.
func (s *Scheduler) PollAll(ctx context.Context) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentPolls)
	for _, adapter := range s.adapters {
		g.Go(func() error {
			s.pollSource(gctx, adapter)
			return nil
		})
	}
	_ = g.Wait() // pollSource never returns an error; failures go to the tracker
}

// pollSource runs one adapter poll end to end: backoff check, snapshot diff,
// ledger append, announce, health bookkeeping. Any adapter error discards
// the poll's results entirely — partial emission would cause duplicate or
// missed-dedup storms on retry.
func (s *Scheduler) pollSource(ctx context.Context, adapter source.Adapter) {
	src := adapter.Source()
	mu := s.sourceMu[src]
	mu.Lock()
	defer mu.Unlock()

	if !s.tracker.ShouldPoll(ctx, src) {
		s.metrics.PollsTotal.WithLabelValues(string(src), "skipped").Inc()
		s.logger.Debug("source in backoff, skipping", "source", src)
		return
	}

	prev := s.tracker.State(ctx, src)

	pollCtx, cancel := context.WithTimeout(ctx, s.cfg.PollTimeout)
	res, err := adapter.Poll(pollCtx, prev)
	cancel()
	if err != nil {
		s.tracker.RecordFailure(ctx, src, err.Error())
		s.metrics.PollsTotal.WithLabelValues(string(src), "failure").Inc()
		return
	}

	added := s.events.Append(ctx, res.Events)
	s.announce(ctx, res.Events)
	s.tracker.RecordSuccess(ctx, src, res.KnownIDs)

	s.metrics.PollsTotal.WithLabelValues(string(src), "success").Inc()
	s.metrics.EventsEmitted.WithLabelValues(string(src)).Add(float64(len(res.Events)))
	if added > 0 {
		s.logger.Info("new change events",
			"source", src,
			"events", added,
			"known_ids", len(res.KnownIDs),
		)
	}
}

// announce is best-effort: a broker outage must not fail a poll that already
// landed in the ledger.
func (s *Scheduler) announce(ctx context.Context, events []domain.ChangeEvent) {
	if s.announcer == nil || len(events) == 0 {
		return
	}
	if err := s.announcer.Publish(ctx, events); err != nil {
		s.logger.Warn("announce change events failed", "events", len(events), "error", err)
		s.metrics.AnnounceErrors.Inc()
		return
	}
	s.metrics.AnnouncedEvents.Add(float64(len(events)))
}
