// Command genfeeds writes sample raw-cache snapshot files for every feed,
// plus a matching HUC8 adjacency index, so the sentinel can be run locally
// without the collector layer. The data covers three adjacent Potomac-basin
// units so compound patterns and the adjacency bonus have something to fire
// on.
//
// Usage:
//
//	go run ./cmd/genfeeds -cache-dir data/cache -geo-out data/huc8.json
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/couchcryptid/watershed-sentinel/internal/geo"
	"github.com/couchcryptid/watershed-sentinel/internal/source"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cacheDir := flag.String("cache-dir", "data/cache", "directory for feed snapshot files")
	geoOut := flag.String("geo-out", "data/huc8.json", "output path for the adjacency index")
	flag.Parse()

	if err := os.MkdirAll(*cacheDir, 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}

	now := time.Now().UTC().Truncate(time.Minute)

	// Middle Potomac units: Catoctin (02070008), Monocacy (02070009), and
	// the Washington metro reach (02070010) — all under parent 0207.
	files := map[string]any{
		"alerts.json": []source.CAPAlert{
			{
				ID: "NWS-IDP-PROD-5541200", Event: "Flash Flood Warning",
				Severity: "Severe", Headline: "Flash Flood Warning for Frederick County",
				AreaDesc: "Frederick, MD", SenderName: "NWS Baltimore MD",
				HUC8: "02070009", Sent: now.Add(-30 * time.Minute),
			},
			{
				ID: "NWS-IDP-PROD-5541207", Event: "Flood Watch",
				Severity: "Moderate", AreaDesc: "Loudoun, VA",
				SenderName: "NWS Baltimore MD", HUC8: "02070008",
				Sent: now.Add(-2 * time.Hour),
			},
		},
		"gauges.json": []source.GaugeReading{
			{
				ID: "01643000-" + now.Format("2006010215"), SiteID: "01643000",
				SiteName: "Monocacy River at Jug Bridge near Frederick, MD",
				HUC8:     "02070009", State: "MD",
				GageHeightFt: 19.4, FloodStageFt: 18.0,
				ObservedAt: now.Add(-15 * time.Minute),
			},
			{
				ID: "01638500-" + now.Format("2006010215"), SiteID: "01638500",
				SiteName: "Potomac River at Point of Rocks, MD",
				HUC8:     "02070008", State: "MD",
				GageHeightFt: 14.1, FloodStageFt: 16.0,
				ObservedAt: now.Add(-15 * time.Minute),
			},
		},
		"permits.json": []source.PermitRecord{
			{
				ID: "MD0021555", FacilityName: "Frederick WWTP MD",
				HUC8: "02070009", State: "MD",
				IssuedOn: now.Add(-48 * time.Hour),
			},
		},
		"forecasts.json": []source.ForecastRecord{
			{
				ID: "FDRM2-" + now.Format("20060102"), GaugeID: "FDRM2",
				HUC8: "02070009", State: "MD", Category: "moderate",
				CrestFt: 21.5, ForecastAt: now.Add(-time.Hour),
			},
		},
		"enforcement.json": []source.EnforcementRecord{
			{
				ID: "06-2026-0113", FacilityName: "Catoctin Processing VA",
				HUC8: "02070008", State: "VA", ActionType: "formal",
				PenaltyUSD: 250000, FiledOn: now.Add(-72 * time.Hour),
			},
		},
	}

	for name, records := range files {
		path := filepath.Join(*cacheDir, name)
		if err := writeJSON(path, records); err != nil {
			return err
		}
		log.Printf("wrote %s", path)
	}

	index := map[string]geo.Unit{
		"02070008": {Neighbors: []string{"02070009", "02070010"}, State: "MD"},
		"02070009": {Neighbors: []string{"02070008", "02070010"}, State: "MD"},
		"02070010": {Neighbors: []string{"02070008", "02070009"}, State: "DC"},
	}
	if err := writeJSON(*geoOut, index); err != nil {
		return err
	}
	log.Printf("wrote %s", *geoOut)
	return nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
