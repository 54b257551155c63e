// Package geo provides the static watershed adjacency index: HUC8 → adjacent
// HUC8s, parent HUC4, and owning state. Pure data, loaded once, never mutated.
package geo

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

// Unit describes one HUC8 entry in the index data file.
type Unit struct {
	Neighbors []string `json:"neighbors"`
	Parent    string   `json:"parent,omitempty"`
	State     string   `json:"state,omitempty"`
}

// Index is an immutable lookup over watershed units. Unknown HUC8s resolve to
// empty results, never errors — geography is best-effort throughout.
type Index struct {
	units map[string]Unit
}

// NewIndex builds an index from an in-memory unit map. Entries without an
// explicit parent default to the first four digits of their HUC8.
func NewIndex(units map[string]Unit) *Index {
	normalized := make(map[string]Unit, len(units))
	for huc8, u := range units {
		if u.Parent == "" && len(huc8) >= 4 {
			u.Parent = huc8[:4]
		}
		sort.Strings(u.Neighbors)
		normalized[huc8] = u
	}
	return &Index{units: normalized}
}

// LoadFile reads an index data file: a JSON object keyed by HUC8.
func LoadFile(path string) (*Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read geo index: %w", err)
	}
	var units map[string]Unit
	if err := json.Unmarshal(data, &units); err != nil {
		return nil, fmt.Errorf("parse geo index %s: %w", path, err)
	}
	return NewIndex(units), nil
}

// Empty returns an index with no units, for deployments without adjacency
// data. Scoring still works; adjacency-based boosts never fire.
func Empty() *Index {
	return &Index{units: map[string]Unit{}}
}

// Len reports the number of indexed units.
func (ix *Index) Len() int { return len(ix.units) }

// Neighbors returns the HUC8s adjacent to the given unit.
func (ix *Index) Neighbors(huc8 string) []string {
	return ix.units[huc8].Neighbors
}

// Parent returns the unit's parent HUC4, or "" when unknown.
func (ix *Index) Parent(huc8 string) string {
	return ix.units[huc8].Parent
}

// State returns the unit's owning state code, or "" when unknown.
func (ix *Index) State(huc8 string) string {
	return ix.units[huc8].State
}

// SameParentNeighbors returns the adjacent units that share the given unit's
// parent HUC4 — the aggregation tier used for the geographic correlation
// bonus, so an incident straddling a sub-region boundary does not qualify.
func (ix *Index) SameParentNeighbors(huc8 string) []string {
	parent := ix.Parent(huc8)
	if parent == "" {
		return nil
	}
	var out []string
	for _, n := range ix.Neighbors(huc8) {
		if ix.Parent(n) == parent {
			out = append(out, n)
		}
	}
	return out
}
