// Package scoring turns the rolling event set into a ranked, leveled list of
// hot watershed units: time-decayed severity plus compound-pattern and
// spatial-correlation boosts.
package scoring

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/watershed-sentinel/internal/domain"
	"github.com/couchcryptid/watershed-sentinel/internal/geo"
	"github.com/couchcryptid/watershed-sentinel/internal/observability"
	"github.com/couchcryptid/watershed-sentinel/internal/persist"
)

// EventSource is the ledger view the engine scores from.
type EventSource interface {
	All(ctx context.Context) []domain.ChangeEvent
	ActiveHucs(ctx context.Context) []string
}

// Engine computes one scoring pass over the full current event set. A pass
// is a discrete batch, triggered externally, and never runs concurrently
// with itself.
type Engine struct {
	events  EventSource
	geo     *geo.Index
	rules   Rules
	store   persist.Store
	clock   clockwork.Clock
	logger  *slog.Logger
	metrics *observability.Metrics

	mu   sync.Mutex
	last []domain.ScoredHuc
}

// NewEngine wires the engine to its collaborators.
func NewEngine(events EventSource, index *geo.Index, rules Rules, store persist.Store, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Engine {
	return &Engine{
		events:  events,
		geo:     index,
		rules:   rules,
		store:   store,
		clock:   clock,
		logger:  logger,
		metrics: metrics,
	}
}

// Run executes one scoring pass and persists the ranked result, replacing
// the previous set wholesale so inactive basins silently drop out.
func (e *Engine) Run(ctx context.Context) []domain.ScoredHuc {
	e.mu.Lock()
	defer e.mu.Unlock()

	start := time.Now()
	now := e.clock.Now().UTC()

	hucs := e.events.ActiveHucs(ctx)
	byHuc := make(map[string][]domain.ChangeEvent)
	for _, ev := range e.events.All(ctx) {
		if ev.Geography.HUC8 != "" {
			byHuc[ev.Geography.HUC8] = append(byHuc[ev.Geography.HUC8], ev)
		}
	}

	scored := make([]domain.ScoredHuc, 0, len(hucs))
	for _, huc := range hucs {
		scored = append(scored, e.scoreHuc(huc, byHuc, now))
	}
	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].HUC8 < scored[j].HUC8
	})

	e.persist(ctx, scored)
	e.last = scored

	e.metrics.ScoringPasses.Inc()
	e.metrics.ScoringDuration.Observe(time.Since(start).Seconds())
	e.metrics.ActiveHucs.Set(float64(len(scored)))
	top := 0.0
	if len(scored) > 0 {
		top = scored[0].Score
	}
	e.metrics.TopScore.Set(top)

	e.logger.Info("scoring pass complete",
		"active_hucs", len(scored),
		"top_score", top,
		"duration", time.Since(start),
	)
	return scored
}

// Latest returns the result of the most recent pass this process ran.
func (e *Engine) Latest() []domain.ScoredHuc {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]domain.ScoredHuc, len(e.last))
	copy(out, e.last)
	return out
}

// scoreHuc runs the full per-unit pipeline: decay sum, pattern multiplier,
// geographic bonus, level classification.
func (e *Engine) scoreHuc(huc string, byHuc map[string][]domain.ChangeEvent, now time.Time) domain.ScoredHuc {
	events := byHuc[huc]
	neighbors := e.geo.Neighbors(huc)

	breakdown := make([]domain.EventScore, 0, len(events))
	rawTotal := 0.0
	for _, ev := range events {
		es := e.decayedScore(ev, now)
		breakdown = append(breakdown, es)
		rawTotal += es.Score
	}
	sort.Slice(breakdown, func(i, j int) bool { return breakdown[i].Score > breakdown[j].Score })

	// Firing patterns are collected but only the maximum multiplier
	// applies; multipliers never stack, so an over-specified rule set
	// cannot runaway-amplify a single incident.
	var fired []domain.PatternMatch
	multiplier := 1.0
	for _, p := range e.rules.Patterns {
		match, ok := e.matchPattern(p, huc, events, neighbors, byHuc, now)
		if !ok {
			continue
		}
		fired = append(fired, match)
		if p.Multiplier > multiplier {
			multiplier = p.Multiplier
		}
	}
	total := rawTotal * multiplier

	// The adjacency bonus is a binary condition with a flat multiplier:
	// one qualifying neighbor is as good as five, so a single incident
	// straddling a unit boundary cannot double-count itself upward.
	bonus := false
	for _, n := range e.geo.SameParentNeighbors(huc) {
		if len(byHuc[n]) > 0 {
			bonus = true
			break
		}
	}
	if bonus {
		total *= e.rules.GeoBonus
	}

	return domain.ScoredHuc{
		HUC8:           huc,
		State:          e.geo.State(huc),
		Score:          total,
		Level:          e.rules.Levels.LevelFor(total),
		Events:         breakdown,
		ActivePatterns: fired,
		GeoBonus:       bonus,
		LastScored:     now,
	}
}

// decayedScore fades an event's base score linearly over the decay window,
// bottoming out at the floor weight. A long-ago critical event still nudges
// the score; it just stops dominating.
func (e *Engine) decayedScore(ev domain.ChangeEvent, now time.Time) domain.EventScore {
	base := e.rules.BaseScore(ev.Source, ev.Severity)

	hours := now.Sub(ev.DetectedAt).Hours()
	if hours < 0 {
		hours = 0
	}
	decay := e.rules.Decay.Floor
	if hours < e.rules.Decay.WindowHours {
		decay = 1 - hours/e.rules.Decay.WindowHours
		if decay < e.rules.Decay.Floor {
			decay = e.rules.Decay.Floor
		}
	}

	return domain.EventScore{
		EventID:  ev.ID,
		Source:   ev.Source,
		Severity: ev.Severity,
		Base:     base,
		Decay:    decay,
		Score:    base * decay,
	}
}

// matchPattern checks one compound pattern against the target unit. The
// candidate pool is the unit's own events plus, unless the pattern requires
// a single unit, the events of its adjacent units, all restricted to the
// pattern's time window.
func (e *Engine) matchPattern(p Pattern, huc string, events []domain.ChangeEvent, neighbors []string, byHuc map[string][]domain.ChangeEvent, now time.Time) (domain.PatternMatch, bool) {
	cutoff := now.Add(-time.Duration(p.WindowHours * float64(time.Hour)))

	pool := make([]domain.ChangeEvent, 0, len(events))
	for _, ev := range events {
		if !ev.DetectedAt.Before(cutoff) {
			pool = append(pool, ev)
		}
	}
	if !p.SameHuc {
		for _, n := range neighbors {
			for _, ev := range byHuc[n] {
				if !ev.DetectedAt.Before(cutoff) {
					pool = append(pool, ev)
				}
			}
		}
	}

	inAnyGroup := make(map[domain.Source]bool)
	for _, group := range p.SourceGroups {
		satisfied := false
		for _, src := range group {
			inAnyGroup[src] = true
			for _, ev := range pool {
				if ev.Source == src {
					satisfied = true
				}
			}
		}
		if !satisfied {
			return domain.PatternMatch{}, false
		}
	}

	var matchedIDs []string
	sources := make(map[domain.Source]bool)
	hucs := make(map[string]bool)
	for _, ev := range pool {
		if !inAnyGroup[ev.Source] {
			continue
		}
		matchedIDs = append(matchedIDs, ev.ID)
		sources[ev.Source] = true
		hucs[ev.Geography.HUC8] = true
	}
	if p.MinSources > 0 && len(sources) < p.MinSources {
		return domain.PatternMatch{}, false
	}
	if p.MinHucs > 0 && len(hucs) < p.MinHucs {
		return domain.PatternMatch{}, false
	}

	sort.Strings(matchedIDs)
	return domain.PatternMatch{
		Name:       p.Name,
		Multiplier: p.Multiplier,
		EventIDs:   matchedIDs,
	}, true
}

func (e *Engine) persist(ctx context.Context, scored []domain.ScoredHuc) {
	data, err := json.Marshal(scored)
	if err != nil {
		e.logger.Error("encode scored hucs failed", "error", err)
		return
	}
	if err := e.store.Save(ctx, persist.KeyScoredHucs, data); err != nil {
		e.logger.Error("persist scored hucs failed", "error", err)
		e.metrics.PersistenceErrors.WithLabelValues("scored-hucs").Inc()
	}
}
