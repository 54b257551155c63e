package source

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
)

// The collector layer maintains one JSON snapshot file per feed. These
// readers are the adapter-side view of those files: a full read per poll,
// no mutation, no network.

func readSnapshot[T any](path string) ([]T, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot %s: %w", path, err)
	}
	var records []T
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parse snapshot %s: %w", path, err)
	}
	return records, nil
}

// AlertFile reads CAP alerts from a snapshot file.
type AlertFile struct{ Path string }

func (f AlertFile) Alerts(_ context.Context) ([]CAPAlert, error) {
	return readSnapshot[CAPAlert](f.Path)
}

// GaugeFile reads gauge readings from a snapshot file.
type GaugeFile struct{ Path string }

func (f GaugeFile) Readings(_ context.Context) ([]GaugeReading, error) {
	return readSnapshot[GaugeReading](f.Path)
}

// PermitFile reads permit records from a snapshot file.
type PermitFile struct{ Path string }

func (f PermitFile) Permits(_ context.Context) ([]PermitRecord, error) {
	return readSnapshot[PermitRecord](f.Path)
}

// ForecastFile reads forecast records from a snapshot file.
type ForecastFile struct{ Path string }

func (f ForecastFile) Forecasts(_ context.Context) ([]ForecastRecord, error) {
	return readSnapshot[ForecastRecord](f.Path)
}

// EnforcementFile reads enforcement records from a snapshot file.
type EnforcementFile struct{ Path string }

func (f EnforcementFile) Enforcements(_ context.Context) ([]EnforcementRecord, error) {
	return readSnapshot[EnforcementRecord](f.Path)
}
