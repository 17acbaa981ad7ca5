package consumption

import (
	"sort"

	"github.com/hazyhaar/brine-ledger/pkg/classify"
)

// NegligibleKg is the quantity under which a group-norm line is dropped.
const NegligibleKg = 1e-4

// Norm is a per-kilogram-of-output coefficient for one component.
type Norm struct {
	Component string
	PerKg     float64
}

// NormTable holds the fixed coefficients of each classification group.
type NormTable map[classify.Group][]Norm

// DefaultNorms are the reference formulations of the plant, in kilograms of
// component per kilogram of finished product.
var DefaultNorms = NormTable{
	classify.Regions: {
		{"Water", 0.0450},
		{"Salt", 0.0600},
		{"Preservative", 0.0020},
		{"Colorant", 0.0000},
		{"Sugar", 0.0050},
	},
	classify.RetailChain: {
		{"Water", 0.0380},
		{"Salt", 0.0550},
		{"Preservative", 0.0025},
		{"Colorant", 0.00005},
		{"Sugar", 0.0050},
	},
	classify.ColdSmoked: {
		{"Water", 0.0200},
		{"Salt", 0.0700},
		{"Preservative", 0.0015},
		{"Colorant", 0.0000},
		{"Sugar", 0.0100},
	},
}

// Apply computes the consumption of quantityKg of output under the group's
// norms. Lines below NegligibleKg are omitted; a group with no norms yields
// an empty result.
func (t NormTable) Apply(g classify.Group, quantityKg float64) []Line {
	norms := t[g]
	lines := make([]Line, 0, len(norms))
	for _, n := range norms {
		q := n.PerKg * quantityKg
		if q < NegligibleKg {
			continue
		}
		lines = append(lines, Line{Component: n.Component, QuantityKg: q})
	}
	return lines
}

// Components returns the distinct component names used by the table, sorted.
func (t NormTable) Components() []string {
	seen := make(map[string]bool)
	var names []string
	for _, norms := range t {
		for _, n := range norms {
			if !seen[n.Component] {
				seen[n.Component] = true
				names = append(names, n.Component)
			}
		}
	}
	sort.Strings(names)
	return names
}
