package domain

import (
	"fmt"
	"time"
)

// Source identifies an upstream monitoring feed.
type Source string

const (
	SourceWeatherAlerts    Source = "weather-alerts"
	SourceStreamGauges     Source = "stream-gauges"
	SourceDischargePermits Source = "discharge-permits"
	SourceFloodForecasts   Source = "flood-forecasts"
	SourceCompliance       Source = "compliance"
)

// AllSources lists every registered feed in stable order.
func AllSources() []Source {
	return []Source{
		SourceWeatherAlerts,
		SourceStreamGauges,
		SourceDischargePermits,
		SourceFloodForecasts,
		SourceCompliance,
	}
}

// Severity is the per-source urgency hint attached to a change event.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityModerate Severity = "moderate"
	SeverityLow      Severity = "low"
)

// ChangeType says what kind of upstream change the event records.
// Only new-record detection is emitted today; updated/escalated records
// are reserved values for adapters that learn to diff record content.
type ChangeType string

const (
	ChangeNewRecord ChangeType = "new_record"
	ChangeUpdated   ChangeType = "record_updated"
	ChangeEscalated ChangeType = "record_escalated"
)

// Geography locates an event. Either field may be empty; an event without a
// HUC8 never participates in per-basin aggregation, pattern matching, or the
// adjacency bonus, but still appears in global queries.
type Geography struct {
	HUC8  string `json:"huc8,omitempty"`
	State string `json:"state,omitempty"`
}

// ChangeEvent is an immutable fact: a source saw something it had not seen
// before. Created once by an adapter, never mutated, aged out of relevance by
// the scoring engine's decay rather than deleted.
type ChangeEvent struct {
	ID     string `json:"id"`
	Source Source `json:"source"`

	// DetectedAt is when this system first observed the record. It is the
	// authoritative timestamp for decay; SourceTimestamp is the upstream's
	// own (possibly absent, possibly wrong) notion of when it happened.
	DetectedAt      time.Time  `json:"detected_at"`
	SourceTimestamp *time.Time `json:"source_timestamp,omitempty"`

	ChangeType ChangeType `json:"change_type"`
	Geography  Geography  `json:"geography"`
	Severity   Severity   `json:"severity"`

	// Payload carries source-specific display detail. It never feeds scoring.
	Payload map[string]string `json:"payload,omitempty"`

	// SourceRecordID is the upstream identifier the adapter de-duplicated on.
	SourceRecordID string `json:"source_record_id"`
}

// NewEventID builds a globally unique event ID from the source, the upstream
// record identifier, and the detection time.
func NewEventID(source Source, recordID string, detectedAt time.Time) string {
	return fmt.Sprintf("%s-%s-%d", source, recordID, detectedAt.Unix())
}
