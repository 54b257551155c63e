package scheduler_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/watershed-sentinel/internal/domain"
	"github.com/couchcryptid/watershed-sentinel/internal/geo"
	"github.com/couchcryptid/watershed-sentinel/internal/health"
	"github.com/couchcryptid/watershed-sentinel/internal/observability"
	"github.com/couchcryptid/watershed-sentinel/internal/persist"
	"github.com/couchcryptid/watershed-sentinel/internal/scheduler"
	"github.com/couchcryptid/watershed-sentinel/internal/scoring"
	"github.com/couchcryptid/watershed-sentinel/internal/source"
	"github.com/couchcryptid/watershed-sentinel/internal/store"
)

var schedTime = time.Date(2026, time.August, 30, 12, 0, 0, 0, time.UTC)

type memStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemStore() *memStore { return &memStore{data: make(map[string][]byte)} }

func (m *memStore) Save(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = append([]byte(nil), value...)
	return nil
}

func (m *memStore) Load(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	value, ok := m.data[key]
	return value, ok, nil
}

func (m *memStore) Close() error { return nil }

var _ persist.Store = (*memStore)(nil)

// fakeAdapter returns a canned PollResult or error and counts invocations.
type fakeAdapter struct {
	source domain.Source

	mu    sync.Mutex
	res   source.PollResult
	err   error
	polls int
}

func (f *fakeAdapter) Source() domain.Source { return f.source }

func (f *fakeAdapter) Poll(_ context.Context, _ domain.SourceState) (source.PollResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.polls++
	if f.err != nil {
		return source.PollResult{}, f.err
	}
	return f.res, nil
}

func (f *fakeAdapter) pollCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.polls
}

type fakeAnnouncer struct {
	mu        sync.Mutex
	published []domain.ChangeEvent
	err       error
}

func (f *fakeAnnouncer) Publish(_ context.Context, events []domain.ChangeEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, events...)
	return nil
}

type fixture struct {
	sched   *scheduler.Scheduler
	tracker *health.Tracker
	events  *store.EventStore
	clock   *clockwork.FakeClock
}

func newFixture(t *testing.T, adapters []source.Adapter, announcer scheduler.Announcer) fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	metrics := observability.NewMetricsForTesting()
	clock := clockwork.NewFakeClockAt(schedTime)
	ps := newMemStore()

	tracker := health.New(ps, clock, logger, metrics)
	events := store.New(ps, clock, logger, metrics, 0)
	engine := scoring.NewEngine(events, geo.Empty(), scoring.DefaultRules(), ps, clock, logger, metrics)
	cfg := scheduler.Config{PollInterval: 5 * time.Minute, ScoreInterval: 10 * time.Minute, PollTimeout: 30 * time.Second}
	sched := scheduler.New(adapters, tracker, events, engine, announcer, clock, logger, metrics, cfg)
	return fixture{sched: sched, tracker: tracker, events: events, clock: clock}
}

func changeEvent(id string, src domain.Source) domain.ChangeEvent {
	return domain.ChangeEvent{
		ID:         id,
		Source:     src,
		DetectedAt: schedTime,
		ChangeType: domain.ChangeNewRecord,
		Geography:  domain.Geography{HUC8: "02070008"},
		Severity:   domain.SeverityHigh,
	}
}

func TestScheduler_PollAllAppendsAndAnnounces(t *testing.T) {
	ctx := context.Background()
	adapter := &fakeAdapter{
		source: domain.SourceStreamGauges,
		res: source.PollResult{
			Events:   []domain.ChangeEvent{changeEvent("g1", domain.SourceStreamGauges)},
			KnownIDs: map[string]bool{"site-1": true},
		},
	}
	announcer := &fakeAnnouncer{}
	f := newFixture(t, []source.Adapter{adapter}, announcer)

	f.sched.PollAll(ctx)

	require.Len(t, f.events.All(ctx), 1)
	require.Len(t, announcer.published, 1)
	assert.Equal(t, "g1", announcer.published[0].ID)

	state := f.tracker.State(ctx, domain.SourceStreamGauges)
	assert.Equal(t, domain.StatusHealthy, state.Status)
	assert.Equal(t, map[string]bool{"site-1": true}, state.KnownIDs)
}

func TestScheduler_FailureDiscardsAndRecords(t *testing.T) {
	ctx := context.Background()
	adapter := &fakeAdapter{source: domain.SourceWeatherAlerts, err: errors.New("cache unreadable")}
	f := newFixture(t, []source.Adapter{adapter}, nil)

	f.sched.PollAll(ctx)

	assert.Empty(t, f.events.All(ctx), "a failed poll contributes nothing to the ledger")
	state := f.tracker.State(ctx, domain.SourceWeatherAlerts)
	assert.Equal(t, 1, state.ConsecutiveFailures)
	assert.Nil(t, state.KnownIDs, "baseline untouched on failure")
}

func TestScheduler_OneFailingSourceDoesNotBlockOthers(t *testing.T) {
	ctx := context.Background()
	failing := &fakeAdapter{source: domain.SourceWeatherAlerts, err: errors.New("http 503")}
	working := &fakeAdapter{
		source: domain.SourceStreamGauges,
		res: source.PollResult{
			Events:   []domain.ChangeEvent{changeEvent("g1", domain.SourceStreamGauges)},
			KnownIDs: map[string]bool{"site-1": true},
		},
	}
	f := newFixture(t, []source.Adapter{failing, working}, nil)

	f.sched.PollAll(ctx)

	assert.Len(t, f.events.All(ctx), 1)
	assert.Equal(t, domain.StatusHealthy, f.tracker.State(ctx, domain.SourceStreamGauges).Status)
	assert.Equal(t, 1, f.tracker.State(ctx, domain.SourceWeatherAlerts).ConsecutiveFailures)
}

func TestScheduler_OfflineSourceIsSkipped(t *testing.T) {
	ctx := context.Background()
	adapter := &fakeAdapter{source: domain.SourceCompliance, err: errors.New("http 503")}
	f := newFixture(t, []source.Adapter{adapter}, nil)

	for i := 0; i < 10; i++ {
		f.sched.PollAll(ctx)
	}
	require.Equal(t, domain.StatusOffline, f.tracker.State(ctx, domain.SourceCompliance).Status)
	require.Equal(t, 10, adapter.pollCount())

	// Inside the backoff window the adapter is not invoked at all.
	f.clock.Advance(10 * time.Minute)
	f.sched.PollAll(ctx)
	assert.Equal(t, 10, adapter.pollCount())

	f.clock.Advance(time.Hour)
	f.sched.PollAll(ctx)
	assert.Equal(t, 11, adapter.pollCount())
}

func TestScheduler_AnnounceFailureDoesNotFailPoll(t *testing.T) {
	ctx := context.Background()
	adapter := &fakeAdapter{
		source: domain.SourceFloodForecasts,
		res: source.PollResult{
			Events:   []domain.ChangeEvent{changeEvent("f1", domain.SourceFloodForecasts)},
			KnownIDs: map[string]bool{"f1": true},
		},
	}
	f := newFixture(t, []source.Adapter{adapter}, &fakeAnnouncer{err: errors.New("broker down")})

	f.sched.PollAll(ctx)

	assert.Len(t, f.events.All(ctx), 1, "the ledger append stands despite the broker outage")
	assert.Equal(t, domain.StatusHealthy, f.tracker.State(ctx, domain.SourceFloodForecasts).Status)
}

func TestScheduler_ReadinessAfterFirstCycle(t *testing.T) {
	adapter := &fakeAdapter{source: domain.SourceStreamGauges, res: source.PollResult{KnownIDs: map[string]bool{}}}
	f := newFixture(t, []source.Adapter{adapter}, nil)

	require.Error(t, f.sched.CheckReadiness(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = f.sched.Run(ctx)
	}()

	require.Eventually(t, func() bool {
		return f.sched.CheckReadiness(context.Background()) == nil
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop on context cancel")
	}
}
