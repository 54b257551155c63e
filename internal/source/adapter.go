// Package source contains the change-source adapters, one per upstream feed.
//
// Each adapter reads the current full snapshot of its feed's already-warmed
// raw cache (no network calls here — freshness is the collector's job),
// diffs the record identifiers against the previous poll's baseline, and
// emits one normalized ChangeEvent per newly-seen record. The full current
// identifier set becomes the next baseline; records that disappear upstream
// are silently absorbed into it, no "resolved" event is emitted.
//
// Adapters never touch the health tracker. The scheduler checks ShouldPoll
// before invoking an adapter and records the success or failure afterwards.
// On error an adapter returns nothing: partial event emission is disallowed
// so a retry cannot double-emit or lose dedup state.
package source

import (
	"context"
	"regexp"
	"strings"

	"github.com/couchcryptid/watershed-sentinel/internal/domain"
	"github.com/couchcryptid/watershed-sentinel/internal/observability"
)

// PollResult is one successful poll: the events for records not in the
// previous baseline, and the full current identifier set.
type PollResult struct {
	Events   []domain.ChangeEvent
	KnownIDs map[string]bool
}

// Adapter is the per-feed polling contract.
type Adapter interface {
	Source() domain.Source
	Poll(ctx context.Context, prev domain.SourceState) (PollResult, error)
}

// stateTokenRe finds a trailing two-letter uppercase token, the usual spot
// for a state code in NWS sender names ("NWS Baltimore MD") and facility
// strings. Lossy on purpose.
var stateTokenRe = regexp.MustCompile(`\b([A-Z]{2})\b\s*$`)

// uspsStates validates extracted tokens so "IV" in "Station IV" doesn't
// become a state.
var uspsStates = map[string]bool{
	"AL": true, "AK": true, "AZ": true, "AR": true, "CA": true, "CO": true,
	"CT": true, "DE": true, "DC": true, "FL": true, "GA": true, "HI": true,
	"ID": true, "IL": true, "IN": true, "IA": true, "KS": true, "KY": true,
	"LA": true, "ME": true, "MD": true, "MA": true, "MI": true, "MN": true,
	"MS": true, "MO": true, "MT": true, "NE": true, "NV": true, "NH": true,
	"NJ": true, "NM": true, "NY": true, "NC": true, "ND": true, "OH": true,
	"OK": true, "OR": true, "PA": true, "RI": true, "SC": true, "SD": true,
	"TN": true, "TX": true, "UT": true, "VT": true, "VA": true, "WA": true,
	"WV": true, "WI": true, "WY": true, "PR": true, "VI": true, "GU": true,
	"AS": true, "MP": true,
}

// extractState pulls a best-effort state code out of free text. Returns ""
// on a miss and counts it; extraction is enrichment, not a scoring input
// requiring precision.
func extractState(text string, metrics *observability.Metrics) string {
	m := stateTokenRe.FindStringSubmatch(strings.TrimSpace(text))
	if len(m) == 2 && uspsStates[m[1]] {
		return m[1]
	}
	if metrics != nil {
		metrics.GeoExtractMisses.Inc()
	}
	return ""
}
