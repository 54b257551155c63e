package source

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/watershed-sentinel/internal/domain"
)

// PermitRecord is one cached EPA NPDES discharge permit issuance.
type PermitRecord struct {
	ID            string    `json:"id"` // NPDES permit number
	FacilityName  string    `json:"facility_name,omitempty"`
	HUC8          string    `json:"huc8,omitempty"`
	State         string    `json:"state,omitempty"`
	MajorFacility bool      `json:"major_facility,omitempty"`
	IssuedOn      time.Time `json:"issued_on,omitzero"`
}

// PermitReader lists the current snapshot of the discharge-permit raw cache.
type PermitReader interface {
	Permits(ctx context.Context) ([]PermitRecord, error)
}

// DischargePermits adapts the NPDES permit cache into change events. A new
// permit is a moderate signal on its own; it matters mostly when compound
// patterns pair it with gauge or compliance activity in the same basin.
type DischargePermits struct {
	reader PermitReader
	clock  clockwork.Clock
}

func NewDischargePermits(reader PermitReader, clock clockwork.Clock) *DischargePermits {
	return &DischargePermits{reader: reader, clock: clock}
}

func (a *DischargePermits) Source() domain.Source { return domain.SourceDischargePermits }

func (a *DischargePermits) Poll(ctx context.Context, prev domain.SourceState) (PollResult, error) {
	permits, err := a.reader.Permits(ctx)
	if err != nil {
		return PollResult{}, fmt.Errorf("discharge permits snapshot: %w", err)
	}

	now := a.clock.Now().UTC()
	res := PollResult{KnownIDs: make(map[string]bool, len(permits))}
	for _, p := range permits {
		if p.ID == "" {
			return PollResult{}, fmt.Errorf("permit record missing id (facility %q)", p.FacilityName)
		}
		res.KnownIDs[p.ID] = true
		if prev.KnownIDs[p.ID] {
			continue
		}

		severity := domain.SeverityModerate
		if p.MajorFacility {
			severity = domain.SeverityHigh
		}
		var sourceTS *time.Time
		if !p.IssuedOn.IsZero() {
			issued := p.IssuedOn
			sourceTS = &issued
		}

		res.Events = append(res.Events, domain.ChangeEvent{
			ID:              domain.NewEventID(domain.SourceDischargePermits, p.ID, now),
			Source:          domain.SourceDischargePermits,
			DetectedAt:      now,
			SourceTimestamp: sourceTS,
			ChangeType:      domain.ChangeNewRecord,
			Geography:       domain.Geography{HUC8: p.HUC8, State: p.State},
			Severity:        severity,
			Payload: map[string]string{
				"permit":   p.ID,
				"facility": p.FacilityName,
			},
			SourceRecordID: p.ID,
		})
	}
	return res, nil
}
