package report

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/hazyhaar/brine-ledger/pkg/catalog"
	"github.com/hazyhaar/brine-ledger/pkg/classify"
	"github.com/hazyhaar/brine-ledger/pkg/consumption"
	"github.com/hazyhaar/brine-ledger/pkg/importer"
	"github.com/hazyhaar/brine-ledger/pkg/ledger"
	"github.com/hazyhaar/brine-ledger/pkg/store"
)

var nov6 = time.Date(2025, 11, 6, 0, 0, 0, 0, time.UTC)

const tolerance = 1e-9

func openStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(store.DriverSQLite, filepath.Join(t.TempDir(), "report.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	regions := make(map[string]float64)
	for _, n := range consumption.DefaultNorms[classify.Regions] {
		regions[n.Component] = n.PerKg
	}
	m := &catalog.Manifest{
		Components: consumption.DefaultNorms.Components(),
		Recipes: []catalog.RecipeSpec{
			{Name: "Regions", Items: regions},
			{Name: "Cold-smoked", Items: map[string]float64{"Salt": 0.07, "Water": 0.02}},
		},
		Products: []catalog.ProductSpec{
			{Name: "Trout A", PackageWeightKg: 0.5},
			{Name: "Trout B", PackageWeightKg: 0.25},
			{Name: "Trout Regional", PackageWeightKg: 1, Recipe: "Regions"},
			{Name: "Herring Магнит", PackageWeightKg: 0.3},
			{Name: "Salmon", PackageWeightKg: 0.2, Recipe: "Cold-smoked"},
		},
	}
	if _, err := s.ApplyManifest(context.Background(), m); err != nil {
		t.Fatalf("ApplyManifest: %v", err)
	}
	return s
}

// insertRaw stores production without write-offs, as left by an older import.
func insertRaw(t *testing.T, s *store.Store, name string, qty float64) int64 {
	t.Helper()
	ctx := context.Background()
	p, err := s.ResolveProduct(ctx, name)
	if err != nil {
		t.Fatalf("ResolveProduct(%q): %v", name, err)
	}
	var id int64
	err = s.WithTx(ctx, func(tx *store.Tx) error {
		id, err = tx.InsertProductionRecord(ctx, nov6, p.ID, qty)
		return err
	})
	if err != nil {
		t.Fatal(err)
	}
	return id
}

func component(lines []consumption.Line, name string) float64 {
	for _, l := range lines {
		if l.Component == name {
			return l.QuantityKg
		}
	}
	return math.NaN()
}

func TestPieces(t *testing.T) {
	tests := []struct {
		qty, weight float64
		want        int64
	}{
		{10, 0, 0},
		{10, -1, 0},
		{100, 0.5, 200},
		{40, 0.3, 133},
		{0.7, 0.1, 7},
		{0.49, 0.5, 0},
	}
	for _, tt := range tests {
		if got := Pieces(tt.qty, tt.weight); got != tt.want {
			t.Errorf("Pieces(%v, %v) = %d, want %d", tt.qty, tt.weight, got, tt.want)
		}
	}
}

func TestBuild_ExampleScenario(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	e := ledger.NewEngine(s, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))

	b, err := importer.Parse(&importer.Table{
		Header: []string{"Production date", "Product name", "Volume"},
		Rows: [][]string{
			{"06.11.2025:00", "Trout A", "100"},
			{"06.11.2025", "Unknown X", "50"},
			{"06.11.2025", "Trout A", "-5"},
		},
		FirstLine: 2,
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.Reconcile(ctx, "export.xlsx", b); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}

	rep, err := NewAggregator(s, nil).Build(ctx, nov6)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if rep.Date != "2025-11-06" || len(rep.Groups) != 1 {
		t.Fatalf("report = %+v", rep)
	}
	g := rep.Groups[0]
	if g.Group != classify.Regions || g.TotalKg != 100 {
		t.Errorf("group = %v %v", g.Group, g.TotalKg)
	}
	if len(g.Products) != 1 {
		t.Fatalf("products = %+v", g.Products)
	}
	p := g.Products[0]
	if p.Name != "Trout A" || p.TotalKg != 100 || p.Pieces != 200 || p.Strategy != consumption.StrategyLedger {
		t.Errorf("product = %+v", p)
	}
	want := consumption.DefaultNorms.Apply(classify.Regions, 100)
	if len(g.Components) != len(want) {
		t.Fatalf("components = %+v, want %+v", g.Components, want)
	}
	for _, w := range want {
		if got := component(g.Components, w.Component); math.Abs(got-w.QuantityKg) > tolerance {
			t.Errorf("%s = %v, want %v", w.Component, got, w.QuantityKg)
		}
	}
}

func TestBuild_GroupOrderAndOmission(t *testing.T) {
	s := openStore(t)
	insertRaw(t, s, "Salmon", 10)
	insertRaw(t, s, "Trout A", 20)

	rep, err := NewAggregator(s, nil).Build(context.Background(), nov6)
	if err != nil {
		t.Fatal(err)
	}
	if len(rep.Groups) != 2 {
		t.Fatalf("groups = %+v", rep.Groups)
	}
	if rep.Groups[0].Group != classify.Regions || rep.Groups[1].Group != classify.ColdSmoked {
		t.Errorf("order = %v, %v", rep.Groups[0].Group, rep.Groups[1].Group)
	}
	if _, ok := findGroup(rep, classify.RetailChain); ok {
		t.Error("retail-chain has no production and must be omitted")
	}
}

func TestBuild_NormsOnGroupTotal(t *testing.T) {
	s := openStore(t)
	insertRaw(t, s, "Trout A", 30)
	insertRaw(t, s, "Trout B", 70)
	insertRaw(t, s, "Trout A", 10)

	rep, err := NewAggregator(s, nil).Build(context.Background(), nov6)
	if err != nil {
		t.Fatal(err)
	}
	g, ok := findGroup(rep, classify.Regions)
	if !ok {
		t.Fatal("regions missing")
	}
	if g.TotalKg != 110 || len(g.Products) != 2 {
		t.Fatalf("group = %+v", g)
	}
	if g.Products[0].Name != "Trout A" || g.Products[0].TotalKg != 40 || g.Products[0].Pieces != 80 {
		t.Errorf("trout a = %+v", g.Products[0])
	}
	if g.Products[0].Strategy != consumption.StrategyNorm {
		t.Errorf("strategy = %q", g.Products[0].Strategy)
	}
	if got := component(g.Components, "Salt"); math.Abs(got-6.6) > tolerance {
		t.Errorf("salt = %v, want 6.6", got)
	}
}

func TestBuild_RecipeMatchesNorms(t *testing.T) {
	s := openStore(t)
	insertRaw(t, s, "Trout Regional", 80)
	byRecipe, err := NewAggregator(s, nil).Build(context.Background(), nov6)
	if err != nil {
		t.Fatal(err)
	}

	other := openStore(t)
	insertRaw(t, other, "Trout A", 80)
	byNorm, err := NewAggregator(other, nil).Build(context.Background(), nov6)
	if err != nil {
		t.Fatal(err)
	}

	r, n := byRecipe.Groups[0], byNorm.Groups[0]
	if r.Products[0].Strategy != consumption.StrategyRecipe || n.Products[0].Strategy != consumption.StrategyNorm {
		t.Fatalf("strategies = %q, %q", r.Products[0].Strategy, n.Products[0].Strategy)
	}
	if len(r.Components) != len(n.Components) {
		t.Fatalf("recipe = %+v, norm = %+v", r.Components, n.Components)
	}
	for i := range r.Components {
		if r.Components[i].Component != n.Components[i].Component ||
			math.Abs(r.Components[i].QuantityKg-n.Components[i].QuantityKg) > tolerance {
			t.Errorf("line %d: recipe %+v, norm %+v", i, r.Components[i], n.Components[i])
		}
	}
}

func TestBuild_LedgerWinsOverRecipe(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	id := insertRaw(t, s, "Salmon", 10)
	ids, _ := s.ComponentIDs(ctx)
	err := s.WithTx(ctx, func(tx *store.Tx) error {
		return tx.InsertConsumptionEntry(ctx, id, ids["Salt"], 5)
	})
	if err != nil {
		t.Fatal(err)
	}

	rep, err := NewAggregator(s, nil).Build(ctx, nov6)
	if err != nil {
		t.Fatal(err)
	}
	g, _ := findGroup(rep, classify.ColdSmoked)
	if g == nil || len(g.Components) != 1 || g.Components[0].QuantityKg != 5 {
		t.Fatalf("components = %+v, want the ledger entry only", g)
	}
	if g.Products[0].Strategy != consumption.StrategyLedger {
		t.Errorf("strategy = %q", g.Products[0].Strategy)
	}
}

func TestBuild_RetailClassification(t *testing.T) {
	s := openStore(t)
	insertRaw(t, s, "Herring Магнит", 3)

	rep, err := NewAggregator(s, nil).Build(context.Background(), nov6)
	if err != nil {
		t.Fatal(err)
	}
	g, ok := findGroup(rep, classify.RetailChain)
	if !ok || g.Products[0].Pieces != 10 {
		t.Fatalf("report = %+v", rep)
	}
}

func TestBuild_EmptyDate(t *testing.T) {
	s := openStore(t)
	rep, err := NewAggregator(s, nil).Build(context.Background(), nov6)
	if err != nil {
		t.Fatal(err)
	}
	if len(rep.Groups) != 0 {
		t.Errorf("groups = %+v", rep.Groups)
	}
}

type failingSource struct{ store.Store }

func (failingSource) ProductionForDate(context.Context, time.Time) ([]store.ProductionLine, error) {
	return nil, errors.New("connection reset")
}

func TestBuild_Fault(t *testing.T) {
	_, err := NewAggregator(failingSource{}, nil).Build(context.Background(), nov6)
	var rf *ReportFault
	if !errors.As(err, &rf) || rf.Date != "2025-11-06" {
		t.Fatalf("err = %v, want ReportFault", err)
	}
}

func TestWriteXLSX(t *testing.T) {
	rep := &Report{
		Date: "2025-11-06",
		Groups: []Group{{
			Group:      classify.Regions,
			TotalKg:    100,
			Products:   []ProductLine{{Name: "Trout A", TotalKg: 100, Pieces: 200, Strategy: consumption.StrategyLedger}},
			Components: []consumption.Line{{Component: "Salt", QuantityKg: 6.00004}},
		}},
	}
	var buf bytes.Buffer
	if err := WriteXLSX(&buf, rep); err != nil {
		t.Fatalf("WriteXLSX: %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer f.Close()

	products, err := f.GetRows(sheetProducts)
	if err != nil {
		t.Fatal(err)
	}
	if len(products) != 2 || products[1][2] != "Trout A" || products[1][4] != "200" {
		t.Errorf("products = %v", products)
	}
	components, err := f.GetRows(sheetComponents)
	if err != nil {
		t.Fatal(err)
	}
	if len(components) != 2 || components[1][2] != "Salt" || components[1][3] != "6" {
		t.Errorf("components = %v", components)
	}
}

func findGroup(r *Report, g classify.Group) (*Group, bool) {
	for i := range r.Groups {
		if r.Groups[i].Group == g {
			return &r.Groups[i], true
		}
	}
	return nil, false
}
