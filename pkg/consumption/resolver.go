// Package consumption computes the components consumed by production.
//
// Three sources compete, tried in order:
//
//  1. the persisted ledger (consumption entries written at import time),
//  2. the recipe table linked to the product,
//  3. the fixed norms of the product's classification group.
//
// Once entries exist they are the audit-grade answer and are returned as is,
// even if the recipe has changed since.
package consumption

import (
	"context"
	"fmt"
	"sort"

	"github.com/hazyhaar/brine-ledger/pkg/catalog"
	"github.com/hazyhaar/brine-ledger/pkg/classify"
)

// Strategy names the source a Resolution came from.
type Strategy string

const (
	StrategyLedger Strategy = "ledger"
	StrategyRecipe Strategy = "recipe"
	StrategyNorm   Strategy = "norm"
)

// Line is the consumed quantity of one component.
type Line struct {
	Component   string  `json:"component_name"`
	ComponentID int64   `json:"-"`
	QuantityKg  float64 `json:"qty_kg"`
}

// Resolution is the consumption of one production record or quantity.
type Resolution struct {
	Strategy Strategy       `json:"strategy"`
	Group    classify.Group `json:"group"`
	Lines    []Line         `json:"lines"`
}

// Subject is what to resolve. RecordID is zero for a quantity that has no
// persisted record yet.
type Subject struct {
	RecordID     int64
	DeclaredName string
	RecipeID     *int64
	RecipeName   string
	QuantityKg   float64
}

// Source gives access to persisted data. Both the store and an open store
// transaction implement it.
type Source interface {
	ConsumptionEntries(ctx context.Context, recordID int64) ([]catalog.ConsumptionEntry, error)
	RecipeItems(ctx context.Context, recipeID int64) ([]catalog.RecipeItem, error)
}

// Resolver applies the strategies in priority order.
type Resolver struct {
	src   Source
	norms NormTable
}

// NewResolver returns a Resolver reading from src. A nil table selects
// DefaultNorms.
func NewResolver(src Source, norms NormTable) *Resolver {
	if norms == nil {
		norms = DefaultNorms
	}
	return &Resolver{src: src, norms: norms}
}

// Norms returns the group-norm table in use.
func (r *Resolver) Norms() NormTable {
	return r.norms
}

// Resolve returns the consumption of s, preferring ledger entries.
func (r *Resolver) Resolve(ctx context.Context, s Subject) (*Resolution, error) {
	if s.RecordID != 0 {
		entries, err := r.src.ConsumptionEntries(ctx, s.RecordID)
		if err != nil {
			return nil, fmt.Errorf("ledger lookup for record %d: %w", s.RecordID, err)
		}
		if len(entries) > 0 {
			lines := make([]Line, len(entries))
			for i, e := range entries {
				lines[i] = Line{Component: e.ComponentName, ComponentID: e.ComponentID, QuantityKg: e.QuantityKg}
			}
			return &Resolution{
				Strategy: StrategyLedger,
				Group:    classify.ForProduct(s.DeclaredName, s.RecipeName),
				Lines:    lines,
			}, nil
		}
	}
	return r.Compute(ctx, s)
}

// Compute resolves s from the recipe table or the group norms, ignoring the
// ledger. It is what the import writes into the ledger.
func (r *Resolver) Compute(ctx context.Context, s Subject) (*Resolution, error) {
	group := classify.ForProduct(s.DeclaredName, s.RecipeName)

	if s.RecipeID != nil {
		items, err := r.src.RecipeItems(ctx, *s.RecipeID)
		if err != nil {
			return nil, fmt.Errorf("recipe lookup for %q: %w", s.DeclaredName, err)
		}
		return &Resolution{
			Strategy: StrategyRecipe,
			Group:    group,
			Lines:    FromRecipe(items, s.QuantityKg),
		}, nil
	}

	return &Resolution{
		Strategy: StrategyNorm,
		Group:    group,
		Lines:    r.norms.Apply(group, s.QuantityKg),
	}, nil
}

// FromRecipe multiplies each coefficient by the output quantity and sums by
// component. Components with a zero result are left out.
func FromRecipe(items []catalog.RecipeItem, quantityKg float64) []Line {
	byComponent := make(map[string]*Line)
	var order []string
	for _, it := range items {
		q := it.QuantityPerKg * quantityKg
		l, ok := byComponent[it.ComponentName]
		if !ok {
			l = &Line{Component: it.ComponentName, ComponentID: it.ComponentID}
			byComponent[it.ComponentName] = l
			order = append(order, it.ComponentName)
		}
		l.QuantityKg += q
	}
	sort.Strings(order)

	lines := make([]Line, 0, len(order))
	for _, name := range order {
		if l := byComponent[name]; l.QuantityKg > 0 {
			lines = append(lines, *l)
		}
	}
	return lines
}

// Sum merges lines by component name, in name order.
func Sum(sets ...[]Line) []Line {
	totals := make(map[string]float64)
	ids := make(map[string]int64)
	for _, set := range sets {
		for _, l := range set {
			totals[l.Component] += l.QuantityKg
			if l.ComponentID != 0 {
				ids[l.Component] = l.ComponentID
			}
		}
	}
	names := make([]string, 0, len(totals))
	for n := range totals {
		names = append(names, n)
	}
	sort.Strings(names)

	out := make([]Line, len(names))
	for i, n := range names {
		out[i] = Line{Component: n, ComponentID: ids[n], QuantityKg: totals[n]}
	}
	return out
}
