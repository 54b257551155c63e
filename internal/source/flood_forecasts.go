package source

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/watershed-sentinel/internal/domain"
)

// ForecastRecord is one cached NWS AHPS river forecast.
type ForecastRecord struct {
	ID         string    `json:"id"` // gauge + forecast issuance, assigned by the collector
	GaugeID    string    `json:"gauge_id"`
	HUC8       string    `json:"huc8,omitempty"`
	State      string    `json:"state,omitempty"`
	Category   string    `json:"category"` // major, moderate, minor, action
	CrestFt    float64   `json:"crest_ft,omitempty"`
	ForecastAt time.Time `json:"forecast_at,omitzero"`
}

// ForecastReader lists the current snapshot of the flood-forecast raw cache.
type ForecastReader interface {
	Forecasts(ctx context.Context) ([]ForecastRecord, error)
}

// FloodForecasts adapts the AHPS forecast cache into change events.
type FloodForecasts struct {
	reader ForecastReader
	clock  clockwork.Clock
}

func NewFloodForecasts(reader ForecastReader, clock clockwork.Clock) *FloodForecasts {
	return &FloodForecasts{reader: reader, clock: clock}
}

func (a *FloodForecasts) Source() domain.Source { return domain.SourceFloodForecasts }

func (a *FloodForecasts) Poll(ctx context.Context, prev domain.SourceState) (PollResult, error) {
	forecasts, err := a.reader.Forecasts(ctx)
	if err != nil {
		return PollResult{}, fmt.Errorf("flood forecasts snapshot: %w", err)
	}

	now := a.clock.Now().UTC()
	res := PollResult{KnownIDs: make(map[string]bool, len(forecasts))}
	for _, f := range forecasts {
		if f.ID == "" {
			return PollResult{}, fmt.Errorf("forecast record missing id (gauge %q)", f.GaugeID)
		}
		res.KnownIDs[f.ID] = true
		if prev.KnownIDs[f.ID] {
			continue
		}

		var sourceTS *time.Time
		if !f.ForecastAt.IsZero() {
			at := f.ForecastAt
			sourceTS = &at
		}

		res.Events = append(res.Events, domain.ChangeEvent{
			ID:              domain.NewEventID(domain.SourceFloodForecasts, f.ID, now),
			Source:          domain.SourceFloodForecasts,
			DetectedAt:      now,
			SourceTimestamp: sourceTS,
			ChangeType:      domain.ChangeNewRecord,
			Geography:       domain.Geography{HUC8: f.HUC8, State: f.State},
			Severity:        forecastSeverity(f.Category),
			Payload: map[string]string{
				"gauge":    f.GaugeID,
				"category": f.Category,
				"crest_ft": strconv.FormatFloat(f.CrestFt, 'f', 1, 64),
			},
			SourceRecordID: f.ID,
		})
	}
	return res, nil
}

// forecastSeverity maps AHPS flood categories onto the sentinel scale.
// "action" stage and anything unrecognized is low.
func forecastSeverity(category string) domain.Severity {
	switch strings.ToLower(strings.TrimSpace(category)) {
	case "major":
		return domain.SeverityCritical
	case "moderate":
		return domain.SeverityHigh
	case "minor":
		return domain.SeverityModerate
	default:
		return domain.SeverityLow
	}
}
