package store_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/watershed-sentinel/internal/domain"
	"github.com/couchcryptid/watershed-sentinel/internal/observability"
	"github.com/couchcryptid/watershed-sentinel/internal/persist"
	"github.com/couchcryptid/watershed-sentinel/internal/store"
)

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

var baseTime = time.Date(2026, time.August, 30, 12, 0, 0, 0, time.UTC)

func newEventStore(ps persist.Store, clock clockwork.Clock, retention time.Duration) *store.EventStore {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return store.New(ps, clock, logger, observability.NewMetricsForTesting(), retention)
}

func event(id, huc8 string, detectedAt time.Time) domain.ChangeEvent {
	return domain.ChangeEvent{
		ID:         id,
		Source:     domain.SourceStreamGauges,
		DetectedAt: detectedAt,
		ChangeType: domain.ChangeNewRecord,
		Geography:  domain.Geography{HUC8: huc8},
		Severity:   domain.SeverityHigh,
	}
}

func TestEventStore_AppendDeduplicates(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClockAt(baseTime)
	es := newEventStore(newMemStore(), clock, 0)

	added := es.Append(ctx, []domain.ChangeEvent{
		event("a", "02070008", baseTime),
		event("b", "02070009", baseTime),
	})
	assert.Equal(t, 2, added)

	added = es.Append(ctx, []domain.ChangeEvent{
		event("a", "02070008", baseTime),
		event("c", "02070008", baseTime),
	})
	assert.Equal(t, 1, added, "re-appended IDs are skipped")
	assert.Len(t, es.All(ctx), 3)
}

func TestEventStore_AllNewestFirst(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClockAt(baseTime)
	es := newEventStore(newMemStore(), clock, 0)

	es.Append(ctx, []domain.ChangeEvent{
		event("old", "02070008", baseTime.Add(-2*time.Hour)),
		event("new", "02070008", baseTime),
		event("mid", "02070009", baseTime.Add(-time.Hour)),
	})

	all := es.All(ctx)
	require.Len(t, all, 3)
	assert.Equal(t, "new", all[0].ID)
	assert.Equal(t, "mid", all[1].ID)
	assert.Equal(t, "old", all[2].ID)
}

func TestEventStore_ActiveHucs(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClockAt(baseTime)
	es := newEventStore(newMemStore(), clock, 0)

	noGeo := event("x", "", baseTime)
	es.Append(ctx, []domain.ChangeEvent{
		event("a", "02070009", baseTime),
		event("b", "02070008", baseTime),
		event("c", "02070009", baseTime),
		noGeo,
	})

	assert.Equal(t, []string{"02070008", "02070009"}, es.ActiveHucs(ctx),
		"distinct, sorted, geography-less events excluded")
	assert.Len(t, es.All(ctx), 4, "geography-less events still held")
}

func TestEventStore_EventsForHuc(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClockAt(baseTime)
	es := newEventStore(newMemStore(), clock, 0)

	es.Append(ctx, []domain.ChangeEvent{
		event("a", "02070008", baseTime),
		event("b", "02070009", baseTime),
		event("c", "02070008", baseTime),
	})

	got := es.EventsForHuc(ctx, "02070008")
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "c", got[1].ID)
	assert.Empty(t, es.EventsForHuc(ctx, "02070099"))
}

func TestEventStore_RetentionPrunes(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClockAt(baseTime)
	es := newEventStore(newMemStore(), clock, 7*24*time.Hour)

	es.Append(ctx, []domain.ChangeEvent{
		event("stale", "02070008", baseTime.Add(-8*24*time.Hour)),
		event("fresh", "02070008", baseTime),
	})

	all := es.All(ctx)
	require.Len(t, all, 1)
	assert.Equal(t, "fresh", all[0].ID)

	// An append after a week passes prunes what has aged out since.
	clock.Advance(8 * 24 * time.Hour)
	es.Append(ctx, []domain.ChangeEvent{event("later", "02070009", clock.Now())})
	all = es.All(ctx)
	require.Len(t, all, 1)
	assert.Equal(t, "later", all[0].ID)
}

func TestEventStore_ZeroRetentionKeepsEverything(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClockAt(baseTime)
	es := newEventStore(newMemStore(), clock, 0)

	es.Append(ctx, []domain.ChangeEvent{event("ancient", "02070008", baseTime.Add(-365*24*time.Hour))})
	assert.Len(t, es.All(ctx), 1)
}

func TestEventStore_SurvivesRestart(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClockAt(baseTime)
	ps := newMemStore()

	es := newEventStore(ps, clock, 0)
	es.Append(ctx, []domain.ChangeEvent{
		event("a", "02070008", baseTime),
		event("b", "02070009", baseTime),
	})
	before := es.All(ctx)

	reloaded := newEventStore(ps, clock, 0)
	if diff := cmp.Diff(before, reloaded.All(ctx)); diff != "" {
		t.Fatalf("reloaded ledger mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []string{"02070008", "02070009"}, reloaded.ActiveHucs(ctx))
}
