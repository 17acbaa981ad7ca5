// Package report builds the daily production report: per-product totals and
// piece counts, and per-group component consumption, in the fixed group
// display order.
package report

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hazyhaar/brine-ledger/pkg/catalog"
	"github.com/hazyhaar/brine-ledger/pkg/classify"
	"github.com/hazyhaar/brine-ledger/pkg/consumption"
	"github.com/hazyhaar/brine-ledger/pkg/store"
)

// ReportFault is any fault while building a report. Stored data is unaffected.
type ReportFault struct {
	Date string
	Err  error
}

func (e *ReportFault) Error() string {
	return fmt.Sprintf("report for %s: %v", e.Date, e.Err)
}

func (e *ReportFault) Unwrap() error { return e.Err }

// Source is the read side of the store used by the aggregator.
type Source interface {
	consumption.Source
	ProductionForDate(ctx context.Context, date time.Time) ([]store.ProductionLine, error)
}

// ProductLine is the output of one product on the date.
type ProductLine struct {
	Name     string               `json:"product_name"`
	TotalKg  float64              `json:"total_kg"`
	Pieces   int64                `json:"pieces"`
	Strategy consumption.Strategy `json:"strategy"`
}

// Group holds the products of one classification group and the components
// they consumed.
type Group struct {
	Group      classify.Group     `json:"group"`
	TotalKg    float64            `json:"total_kg"`
	Products   []ProductLine      `json:"products"`
	Components []consumption.Line `json:"components"`
}

// Report is the production of one date.
type Report struct {
	Date   string  `json:"date"`
	Groups []Group `json:"groups"`
}

// Pieces is the number of whole packages in quantityKg. A non-positive
// package weight yields 0.
func Pieces(quantityKg, packageWeightKg float64) int64 {
	if packageWeightKg <= 0 || quantityKg <= 0 {
		return 0
	}
	return decimal.NewFromFloat(quantityKg).
		Div(decimal.NewFromFloat(packageWeightKg)).
		Floor().
		IntPart()
}

// Aggregator builds reports.
type Aggregator struct {
	src      Source
	resolver *consumption.Resolver
}

// NewAggregator returns an Aggregator over src. A nil table selects
// consumption.DefaultNorms.
func NewAggregator(src Source, norms consumption.NormTable) *Aggregator {
	return &Aggregator{src: src, resolver: consumption.NewResolver(src, norms)}
}

type productAcc struct {
	line   ProductLine
	weight float64
}

type groupAcc struct {
	totalKg  float64
	normKg   float64
	products map[int64]*productAcc
	lines    [][]consumption.Line
}

// Build aggregates the production of date. Ledger and recipe consumption is
// summed per record; norm-based consumption is computed once on the group
// total.
func (a *Aggregator) Build(ctx context.Context, date time.Time) (*Report, error) {
	day := catalog.FormatDate(date)
	records, err := a.src.ProductionForDate(ctx, date)
	if err != nil {
		return nil, &ReportFault{Date: day, Err: err}
	}

	groups := make(map[classify.Group]*groupAcc)
	for _, rec := range records {
		res, err := a.resolver.Resolve(ctx, consumption.Subject{
			RecordID:     rec.Record.ID,
			DeclaredName: rec.Product.DeclaredName,
			RecipeID:     rec.Product.RecipeID,
			RecipeName:   rec.Product.RecipeName,
			QuantityKg:   rec.Record.QuantityKg,
		})
		if err != nil {
			return nil, &ReportFault{Date: day, Err: err}
		}

		g, ok := groups[res.Group]
		if !ok {
			g = &groupAcc{products: make(map[int64]*productAcc)}
			groups[res.Group] = g
		}
		g.totalKg += rec.Record.QuantityKg

		p, ok := g.products[rec.Product.ID]
		if !ok {
			p = &productAcc{
				line:   ProductLine{Name: rec.Product.DeclaredName, Strategy: res.Strategy},
				weight: rec.Product.PackageWeightKg,
			}
			g.products[rec.Product.ID] = p
		}
		p.line.TotalKg += rec.Record.QuantityKg

		if res.Strategy == consumption.StrategyNorm {
			g.normKg += rec.Record.QuantityKg
		} else {
			g.lines = append(g.lines, res.Lines)
		}
	}

	rep := &Report{Date: day, Groups: []Group{}}
	for _, key := range classify.Order {
		g, ok := groups[key]
		if !ok || g.totalKg <= 0 {
			continue
		}
		lines := g.lines
		if g.normKg > 0 {
			lines = append(lines, a.resolver.Norms().Apply(key, g.normKg))
		}

		out := Group{
			Group:      key,
			TotalKg:    g.totalKg,
			Products:   make([]ProductLine, 0, len(g.products)),
			Components: consumption.Sum(lines...),
		}
		for _, p := range g.products {
			p.line.Pieces = Pieces(p.line.TotalKg, p.weight)
			out.Products = append(out.Products, p.line)
		}
		sort.Slice(out.Products, func(i, j int) bool { return out.Products[i].Name < out.Products[j].Name })
		rep.Groups = append(rep.Groups, out)
	}
	return rep, nil
}
