package source

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/watershed-sentinel/internal/domain"
)

// GaugeReading is one cached USGS NWIS gage-height observation paired with
// the site's NWS flood stage, when one is published.
type GaugeReading struct {
	ID           string    `json:"id"` // site + observation window, assigned by the collector
	SiteID       string    `json:"site_id"`
	SiteName     string    `json:"site_name,omitempty"`
	HUC8         string    `json:"huc8,omitempty"`
	State        string    `json:"state,omitempty"`
	GageHeightFt float64   `json:"gage_height_ft"`
	FloodStageFt float64   `json:"flood_stage_ft,omitempty"` // 0 when the site has no rating
	ObservedAt   time.Time `json:"observed_at,omitzero"`
}

// GaugeReader lists the current snapshot of the stream-gauge raw cache.
type GaugeReader interface {
	Readings(ctx context.Context) ([]GaugeReading, error)
}

// StreamGauges adapts the USGS gauge cache into change events, classifying
// severity by how far a reading exceeds the site's flood stage.
type StreamGauges struct {
	reader GaugeReader
	clock  clockwork.Clock
}

func NewStreamGauges(reader GaugeReader, clock clockwork.Clock) *StreamGauges {
	return &StreamGauges{reader: reader, clock: clock}
}

func (a *StreamGauges) Source() domain.Source { return domain.SourceStreamGauges }

func (a *StreamGauges) Poll(ctx context.Context, prev domain.SourceState) (PollResult, error) {
	readings, err := a.reader.Readings(ctx)
	if err != nil {
		return PollResult{}, fmt.Errorf("stream gauges snapshot: %w", err)
	}

	now := a.clock.Now().UTC()
	res := PollResult{KnownIDs: make(map[string]bool, len(readings))}
	for _, r := range readings {
		if r.ID == "" {
			return PollResult{}, fmt.Errorf("gauge reading missing id (site %q)", r.SiteID)
		}
		res.KnownIDs[r.ID] = true
		if prev.KnownIDs[r.ID] {
			continue
		}

		var sourceTS *time.Time
		if !r.ObservedAt.IsZero() {
			observed := r.ObservedAt
			sourceTS = &observed
		}

		res.Events = append(res.Events, domain.ChangeEvent{
			ID:              domain.NewEventID(domain.SourceStreamGauges, r.ID, now),
			Source:          domain.SourceStreamGauges,
			DetectedAt:      now,
			SourceTimestamp: sourceTS,
			ChangeType:      domain.ChangeNewRecord,
			Geography:       domain.Geography{HUC8: r.HUC8, State: r.State},
			Severity:        gaugeSeverity(r.GageHeightFt, r.FloodStageFt),
			Payload: map[string]string{
				"site":        r.SiteID,
				"site_name":   r.SiteName,
				"gage_height": strconv.FormatFloat(r.GageHeightFt, 'f', 2, 64),
				"flood_stage": strconv.FormatFloat(r.FloodStageFt, 'f', 2, 64),
			},
			SourceRecordID: r.ID,
		})
	}
	return res, nil
}

// gaugeSeverity classifies by the exceedance ratio of gage height over flood
// stage: 1.5x is a major flood in progress, 1.0x is flood stage reached,
// 0.8x is approaching. Sites without a published flood stage stay low — the
// reading itself is new information but carries no exceedance signal.
func gaugeSeverity(heightFt, floodStageFt float64) domain.Severity {
	if floodStageFt <= 0 {
		return domain.SeverityLow
	}
	ratio := heightFt / floodStageFt
	switch {
	case ratio >= 1.5:
		return domain.SeverityCritical
	case ratio >= 1.0:
		return domain.SeverityHigh
	case ratio >= 0.8:
		return domain.SeverityModerate
	default:
		return domain.SeverityLow
	}
}
