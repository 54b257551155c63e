package scoring

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/couchcryptid/watershed-sentinel/internal/domain"
)

// Rules is the static scoring configuration: decay shape, per-source base
// scores, compound patterns, level bands, and the geographic bonus. Loaded
// once from YAML (or compiled-in defaults) and never mutated at runtime.
type Rules struct {
	Decay      DecayRules                                    `yaml:"decay"`
	BaseScores map[domain.Source]map[domain.Severity]float64 `yaml:"base_scores"`
	Levels     LevelBands                                    `yaml:"levels"`
	GeoBonus   float64                                       `yaml:"geo_bonus"`
	Patterns   []Pattern                                     `yaml:"patterns"`
}

// DecayRules shape the linear fade of an event's contribution: full weight
// at detection, sliding to Floor over WindowHours, then holding at Floor
// forever. Events never fully vanish from scoring; they stop dominating.
type DecayRules struct {
	WindowHours float64 `yaml:"window_hours"`
	Floor       float64 `yaml:"floor"`
}

// LevelBands are the ascending score thresholds for operator-facing levels.
// Scores below Watch are normal.
type LevelBands struct {
	Watch    float64 `yaml:"watch"`
	Advisory float64 `yaml:"advisory"`
	Alert    float64 `yaml:"alert"`
}

// LevelFor classifies a score into its band.
func (b LevelBands) LevelFor(score float64) domain.Level {
	switch {
	case score >= b.Alert:
		return domain.LevelAlert
	case score >= b.Advisory:
		return domain.LevelAdvisory
	case score >= b.Watch:
		return domain.LevelWatch
	default:
		return domain.LevelNormal
	}
}

// Pattern is one compound rule: co-occurring events from independent source
// groups inside a time window indicate higher confidence than any single
// source alone.
type Pattern struct {
	Name string `yaml:"name"`

	// SourceGroups each require at least one matching event from one of
	// their member sources.
	SourceGroups [][]domain.Source `yaml:"source_groups"`

	// MinSources optionally requires this many distinct sources among the
	// matched events.
	MinSources int `yaml:"min_sources,omitempty"`

	// MinHucs optionally requires matches spread across this many distinct
	// watershed units, for "spreading" patterns.
	MinHucs int `yaml:"min_hucs,omitempty"`

	WindowHours float64 `yaml:"window_hours"`

	// SameHuc restricts matching to the target unit only, instead of the
	// target plus its adjacent units.
	SameHuc bool `yaml:"same_huc,omitempty"`

	Multiplier float64 `yaml:"multiplier"`
}

// BaseScore looks up the contribution of one event before decay. Unknown
// source/severity combinations score 1 so a misconfigured table degrades
// instead of zeroing events out.
func (r Rules) BaseScore(source domain.Source, severity domain.Severity) float64 {
	if bySeverity, ok := r.BaseScores[source]; ok {
		if v, ok := bySeverity[severity]; ok {
			return v
		}
	}
	return 1
}

// Validate rejects rule sets the engine cannot score sensibly with.
func (r Rules) Validate() error {
	if r.Decay.WindowHours <= 0 {
		return errors.New("decay.window_hours must be positive")
	}
	if r.Decay.Floor < 0 || r.Decay.Floor > 1 {
		return errors.New("decay.floor must be in [0,1]")
	}
	if r.GeoBonus < 1 {
		return errors.New("geo_bonus must be >= 1")
	}
	if !(r.Levels.Watch < r.Levels.Advisory && r.Levels.Advisory < r.Levels.Alert) {
		return errors.New("level bands must ascend: watch < advisory < alert")
	}

	known := make(map[domain.Source]bool)
	for _, s := range domain.AllSources() {
		known[s] = true
	}
	for src := range r.BaseScores {
		if !known[src] {
			return fmt.Errorf("base_scores: unknown source %q", src)
		}
	}
	for _, p := range r.Patterns {
		if p.Name == "" {
			return errors.New("pattern missing name")
		}
		if len(p.SourceGroups) == 0 {
			return fmt.Errorf("pattern %q has no source groups", p.Name)
		}
		for _, group := range p.SourceGroups {
			if len(group) == 0 {
				return fmt.Errorf("pattern %q has an empty source group", p.Name)
			}
			for _, src := range group {
				if !known[src] {
					return fmt.Errorf("pattern %q: unknown source %q", p.Name, src)
				}
			}
		}
		if p.WindowHours <= 0 {
			return fmt.Errorf("pattern %q: window_hours must be positive", p.Name)
		}
		if p.Multiplier < 1 {
			return fmt.Errorf("pattern %q: multiplier must be >= 1", p.Name)
		}
	}
	return nil
}

// LoadRules reads and validates a YAML rules file.
func LoadRules(path string) (Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Rules{}, fmt.Errorf("read rules: %w", err)
	}
	rules := DefaultRules()
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return Rules{}, fmt.Errorf("parse rules %s: %w", path, err)
	}
	if err := rules.Validate(); err != nil {
		return Rules{}, fmt.Errorf("rules %s: %w", path, err)
	}
	return rules, nil
}

// DefaultRules is the compiled-in rule set, used when no rules file is
// configured and as the base that a partial YAML file overrides.
func DefaultRules() Rules {
	return Rules{
		Decay:    DecayRules{WindowHours: 72, Floor: 0.1},
		Levels:   LevelBands{Watch: 5, Advisory: 15, Alert: 30},
		GeoBonus: 1.25,
		BaseScores: map[domain.Source]map[domain.Severity]float64{
			// Direct measurements score highest; paperwork signals lowest.
			domain.SourceStreamGauges: {
				domain.SeverityCritical: 12, domain.SeverityHigh: 8,
				domain.SeverityModerate: 4, domain.SeverityLow: 1,
			},
			domain.SourceWeatherAlerts: {
				domain.SeverityCritical: 10, domain.SeverityHigh: 6,
				domain.SeverityModerate: 3, domain.SeverityLow: 1,
			},
			domain.SourceFloodForecasts: {
				domain.SeverityCritical: 10, domain.SeverityHigh: 6,
				domain.SeverityModerate: 3, domain.SeverityLow: 1,
			},
			domain.SourceCompliance: {
				domain.SeverityCritical: 8, domain.SeverityHigh: 5,
				domain.SeverityModerate: 3, domain.SeverityLow: 1,
			},
			domain.SourceDischargePermits: {
				domain.SeverityCritical: 6, domain.SeverityHigh: 4,
				domain.SeverityModerate: 2, domain.SeverityLow: 1,
			},
		},
		Patterns: []Pattern{
			{
				Name: "storm-confirmed-flooding",
				SourceGroups: [][]domain.Source{
					{domain.SourceWeatherAlerts, domain.SourceFloodForecasts},
					{domain.SourceStreamGauges},
				},
				WindowHours: 6,
				SameHuc:     true,
				Multiplier:  2.5,
			},
			{
				Name: "regional-flood-spread",
				SourceGroups: [][]domain.Source{
					{domain.SourceStreamGauges},
				},
				MinHucs:     3,
				WindowHours: 6,
				Multiplier:  1.5,
			},
			{
				Name: "discharge-under-enforcement",
				SourceGroups: [][]domain.Source{
					{domain.SourceDischargePermits},
					{domain.SourceCompliance},
				},
				WindowHours: 72,
				SameHuc:     true,
				Multiplier:  1.75,
			},
			{
				Name: "multi-source-escalation",
				SourceGroups: [][]domain.Source{
					{domain.SourceWeatherAlerts},
					{domain.SourceStreamGauges},
					{domain.SourceCompliance, domain.SourceDischargePermits},
				},
				MinSources:  3,
				WindowHours: 24,
				Multiplier:  3,
			},
		},
	}
}
