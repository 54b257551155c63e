package domain

import "time"

// SourceStatus is the health classification of one upstream feed.
type SourceStatus string

const (
	StatusHealthy  SourceStatus = "healthy"
	StatusDegraded SourceStatus = "degraded"
	StatusOffline  SourceStatus = "offline"
)

// Consecutive-failure thresholds for status classification.
const (
	DegradedFailureThreshold = 3
	OfflineFailureThreshold  = 10
)

// StatusForFailures classifies a source purely from its consecutive failure
// count. Status is never a function of event content.
func StatusForFailures(n int) SourceStatus {
	switch {
	case n >= OfflineFailureThreshold:
		return StatusOffline
	case n >= DegradedFailureThreshold:
		return StatusDegraded
	default:
		return StatusHealthy
	}
}

// SourceState is one feed's de-duplication memory plus poll telemetry. It is
// owned by the health tracker and the feed's adapter; nothing is shared
// across sources.
type SourceState struct {
	Source              Source       `json:"source"`
	LastPollAt          time.Time    `json:"last_poll_at"`
	LastSuccessAt       time.Time    `json:"last_success_at"`
	FirstFailureAt      time.Time    `json:"first_failure_at,omitzero"`
	ConsecutiveFailures int          `json:"consecutive_failures"`
	Status              SourceStatus `json:"status"`

	// KnownIDs is the set of upstream record identifiers already converted
	// to events. Replaced wholesale by each successful poll.
	KnownIDs map[string]bool `json:"known_ids,omitempty"`
}

// Clone returns a deep copy so callers can read state without racing the
// tracker's own mutations.
func (s SourceState) Clone() SourceState {
	out := s
	if s.KnownIDs != nil {
		out.KnownIDs = make(map[string]bool, len(s.KnownIDs))
		for id := range s.KnownIDs {
			out.KnownIDs[id] = true
		}
	}
	return out
}
