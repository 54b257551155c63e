package domain

import "time"

// Level is the operator-facing classification of a basin's score.
type Level string

const (
	LevelNormal   Level = "normal"
	LevelWatch    Level = "watch"
	LevelAdvisory Level = "advisory"
	LevelAlert    Level = "alert"
)

// EventScore is the per-event breakdown inside a ScoredHuc, kept so an
// operator can see why a basin scored high, not just the number.
type EventScore struct {
	EventID  string   `json:"event_id"`
	Source   Source   `json:"source"`
	Severity Severity `json:"severity"`
	Base     float64  `json:"base"`
	Decay    float64  `json:"decay"`
	Score    float64  `json:"score"`
}

// PatternMatch records one compound pattern that fired for a basin, with the
// event IDs that satisfied it.
type PatternMatch struct {
	Name       string   `json:"name"`
	Multiplier float64  `json:"multiplier"`
	EventIDs   []string `json:"event_ids"`
}

// ScoredHuc is the scoring engine's output for one watershed unit. The whole
// set is recomputed and replaced on every pass; a basin with no remaining
// events simply stops appearing.
type ScoredHuc struct {
	HUC8           string         `json:"huc8"`
	State          string         `json:"state,omitempty"`
	Score          float64        `json:"score"`
	Level          Level          `json:"level"`
	Events         []EventScore   `json:"events"`
	ActivePatterns []PatternMatch `json:"active_patterns,omitempty"`
	GeoBonus       bool           `json:"geo_bonus"`
	LastScored     time.Time      `json:"last_scored"`
}
