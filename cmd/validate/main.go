// Command validate checks a deployment's static configuration before it
// ships: the scoring rules file and the HUC8 adjacency index. It verifies
// rule invariants the engine assumes (ascending bands, known sources,
// sane multipliers) and index consistency (symmetric adjacency, parents
// matching HUC8 prefixes).
//
// Usage:
//
//	go run ./cmd/validate -rules configs/rules.yaml -geo data/huc8.json
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/couchcryptid/watershed-sentinel/internal/geo"
	"github.com/couchcryptid/watershed-sentinel/internal/scoring"
)

// phase tracks pass/fail for one validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	rulesPath := flag.String("rules", "", "scoring rules YAML file (omit to check compiled-in defaults)")
	geoPath := flag.String("geo", "", "HUC8 adjacency index JSON file")
	flag.Parse()

	phases := []*phase{
		checkRules(*rulesPath),
	}
	if *geoPath != "" {
		phases = append(phases, checkGeoIndex(*geoPath))
	}

	failed := false
	for _, p := range phases {
		if p.passed() {
			fmt.Printf("PASS  %s\n", p.name)
			continue
		}
		failed = true
		fmt.Printf("FAIL  %s\n", p.name)
		for _, e := range p.errors {
			fmt.Printf("      %s\n", e)
		}
	}
	if failed {
		os.Exit(1)
	}
}

func checkRules(path string) *phase {
	p := &phase{name: "scoring rules"}

	rules := scoring.DefaultRules()
	if path != "" {
		var err error
		rules, err = scoring.LoadRules(path)
		if err != nil {
			p.errorf("%v", err)
			return p
		}
	} else if err := rules.Validate(); err != nil {
		p.errorf("default rules: %v", err)
		return p
	}

	// Warn-level checks beyond what the engine strictly requires.
	for _, pat := range rules.Patterns {
		if pat.MinSources > 0 {
			distinct := make(map[string]bool)
			for _, g := range pat.SourceGroups {
				for _, s := range g {
					distinct[string(s)] = true
				}
			}
			if pat.MinSources > len(distinct) {
				p.errorf("pattern %q: min_sources %d exceeds the %d distinct sources its groups mention; it can never fire",
					pat.Name, pat.MinSources, len(distinct))
			}
		}
		if pat.WindowHours > rules.Decay.WindowHours {
			p.errorf("pattern %q: window %.0fh exceeds the decay window %.0fh; matched events may already be at floor weight",
				pat.Name, pat.WindowHours, rules.Decay.WindowHours)
		}
	}
	return p
}

func checkGeoIndex(path string) *phase {
	p := &phase{name: "geo index"}

	index, err := geo.LoadFile(path)
	if err != nil {
		p.errorf("%v", err)
		return p
	}
	if index.Len() == 0 {
		p.errorf("index is empty")
		return p
	}

	// Re-read the raw file to walk every unit; the Index type only exposes
	// per-unit lookups.
	data, err := os.ReadFile(path)
	if err != nil {
		p.errorf("%v", err)
		return p
	}
	units, err := decodeUnits(data)
	if err != nil {
		p.errorf("%v", err)
		return p
	}

	for huc8, u := range units {
		if len(huc8) != 8 {
			p.errorf("unit %q: HUC8 must be 8 digits", huc8)
			continue
		}
		if u.Parent != "" && huc8[:4] != u.Parent {
			p.errorf("unit %q: parent %q does not match its HUC8 prefix", huc8, u.Parent)
		}
		for _, n := range u.Neighbors {
			if n == huc8 {
				p.errorf("unit %q lists itself as a neighbor", huc8)
			}
			back, ok := units[n]
			if !ok {
				p.errorf("unit %q: neighbor %q is not in the index", huc8, n)
				continue
			}
			if !contains(back.Neighbors, huc8) {
				p.errorf("adjacency not symmetric: %q lists %q but not vice versa", huc8, n)
			}
		}
	}
	return p
}

func decodeUnits(data []byte) (map[string]geo.Unit, error) {
	var units map[string]geo.Unit
	if err := json.Unmarshal(data, &units); err != nil {
		return nil, fmt.Errorf("parse geo index: %w", err)
	}
	return units, nil
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
