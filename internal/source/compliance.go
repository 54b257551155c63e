package source

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/watershed-sentinel/internal/domain"
	"github.com/couchcryptid/watershed-sentinel/internal/observability"
)

// EnforcementRecord is one cached EPA ECHO enforcement action.
type EnforcementRecord struct {
	ID           string    `json:"id"` // ECHO activity identifier
	FacilityName string    `json:"facility_name,omitempty"`
	HUC8         string    `json:"huc8,omitempty"`
	State        string    `json:"state,omitempty"`
	ActionType   string    `json:"action_type,omitempty"`
	PenaltyUSD   float64   `json:"penalty_usd,omitempty"`
	FiledOn      time.Time `json:"filed_on,omitzero"`
}

// EnforcementReader lists the current snapshot of the compliance raw cache.
type EnforcementReader interface {
	Enforcements(ctx context.Context) ([]EnforcementRecord, error)
}

// Compliance adapts the ECHO enforcement cache into change events,
// classifying severity by penalty magnitude.
type Compliance struct {
	reader  EnforcementReader
	clock   clockwork.Clock
	metrics *observability.Metrics
}

func NewCompliance(reader EnforcementReader, clock clockwork.Clock, metrics *observability.Metrics) *Compliance {
	return &Compliance{reader: reader, clock: clock, metrics: metrics}
}

func (a *Compliance) Source() domain.Source { return domain.SourceCompliance }

func (a *Compliance) Poll(ctx context.Context, prev domain.SourceState) (PollResult, error) {
	records, err := a.reader.Enforcements(ctx)
	if err != nil {
		return PollResult{}, fmt.Errorf("compliance snapshot: %w", err)
	}

	now := a.clock.Now().UTC()
	res := PollResult{KnownIDs: make(map[string]bool, len(records))}
	for _, r := range records {
		if r.ID == "" {
			return PollResult{}, fmt.Errorf("enforcement record missing id (facility %q)", r.FacilityName)
		}
		res.KnownIDs[r.ID] = true
		if prev.KnownIDs[r.ID] {
			continue
		}

		state := r.State
		if state == "" {
			state = extractState(r.FacilityName, a.metrics)
		}
		var sourceTS *time.Time
		if !r.FiledOn.IsZero() {
			filed := r.FiledOn
			sourceTS = &filed
		}

		res.Events = append(res.Events, domain.ChangeEvent{
			ID:              domain.NewEventID(domain.SourceCompliance, r.ID, now),
			Source:          domain.SourceCompliance,
			DetectedAt:      now,
			SourceTimestamp: sourceTS,
			ChangeType:      domain.ChangeNewRecord,
			Geography:       domain.Geography{HUC8: r.HUC8, State: state},
			Severity:        penaltySeverity(r.PenaltyUSD),
			Payload: map[string]string{
				"facility":    r.FacilityName,
				"action_type": r.ActionType,
				"penalty_usd": strconv.FormatFloat(r.PenaltyUSD, 'f', 0, 64),
			},
			SourceRecordID: r.ID,
		})
	}
	return res, nil
}

// penaltySeverity classifies an enforcement action by assessed penalty.
// Seven-figure penalties mark the most serious violations; an action with no
// penalty at all is usually an informal notice.
func penaltySeverity(penaltyUSD float64) domain.Severity {
	switch {
	case penaltyUSD >= 1_000_000:
		return domain.SeverityCritical
	case penaltyUSD >= 100_000:
		return domain.SeverityHigh
	case penaltyUSD > 0:
		return domain.SeverityModerate
	default:
		return domain.SeverityLow
	}
}
