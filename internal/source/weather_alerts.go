package source

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/watershed-sentinel/internal/domain"
	"github.com/couchcryptid/watershed-sentinel/internal/observability"
)

// CAPAlert is one cached NWS CAP alert record.
type CAPAlert struct {
	ID         string    `json:"id"`
	Event      string    `json:"event"` // e.g. "Flash Flood Warning"
	Severity   string    `json:"severity"`
	Headline   string    `json:"headline,omitempty"`
	AreaDesc   string    `json:"area_desc,omitempty"`
	SenderName string    `json:"sender_name,omitempty"`
	State      string    `json:"state,omitempty"`
	HUC8       string    `json:"huc8,omitempty"`
	Sent       time.Time `json:"sent,omitzero"`
}

// AlertReader lists the current snapshot of the weather-alert raw cache.
type AlertReader interface {
	Alerts(ctx context.Context) ([]CAPAlert, error)
}

// WeatherAlerts adapts the NWS CAP alert cache into change events.
type WeatherAlerts struct {
	reader  AlertReader
	clock   clockwork.Clock
	metrics *observability.Metrics
}

func NewWeatherAlerts(reader AlertReader, clock clockwork.Clock, metrics *observability.Metrics) *WeatherAlerts {
	return &WeatherAlerts{reader: reader, clock: clock, metrics: metrics}
}

func (a *WeatherAlerts) Source() domain.Source { return domain.SourceWeatherAlerts }

func (a *WeatherAlerts) Poll(ctx context.Context, prev domain.SourceState) (PollResult, error) {
	alerts, err := a.reader.Alerts(ctx)
	if err != nil {
		return PollResult{}, fmt.Errorf("weather alerts snapshot: %w", err)
	}

	now := a.clock.Now().UTC()
	res := PollResult{KnownIDs: make(map[string]bool, len(alerts))}
	for _, al := range alerts {
		if al.ID == "" {
			return PollResult{}, fmt.Errorf("weather alert record missing id (event %q)", al.Event)
		}
		res.KnownIDs[al.ID] = true
		if prev.KnownIDs[al.ID] {
			continue
		}

		state := al.State
		if state == "" {
			state = extractState(al.SenderName, a.metrics)
		}
		var sourceTS *time.Time
		if !al.Sent.IsZero() {
			sent := al.Sent
			sourceTS = &sent
		}

		res.Events = append(res.Events, domain.ChangeEvent{
			ID:              domain.NewEventID(domain.SourceWeatherAlerts, al.ID, now),
			Source:          domain.SourceWeatherAlerts,
			DetectedAt:      now,
			SourceTimestamp: sourceTS,
			ChangeType:      domain.ChangeNewRecord,
			Geography:       domain.Geography{HUC8: al.HUC8, State: state},
			Severity:        capSeverity(al.Severity),
			Payload: map[string]string{
				"event":    al.Event,
				"headline": al.Headline,
				"area":     al.AreaDesc,
			},
			SourceRecordID: al.ID,
		})
	}
	return res, nil
}

// capSeverity maps CAP severity strings onto the sentinel scale. CAP defines
// Extreme/Severe/Moderate/Minor/Unknown; anything unrecognized is low.
func capSeverity(s string) domain.Severity {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "extreme":
		return domain.SeverityCritical
	case "severe":
		return domain.SeverityHigh
	case "moderate":
		return domain.SeverityModerate
	default:
		return domain.SeverityLow
	}
}
