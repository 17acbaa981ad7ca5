package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/hazyhaar/brine-ledger/pkg/catalog"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(DriverSQLite, filepath.Join(t.TempDir(), "brine.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func seed(t *testing.T, s *Store) {
	t.Helper()
	m := &catalog.Manifest{
		Components: []string{"Salt", "Water"},
		Recipes: []catalog.RecipeSpec{
			{Name: "Cold-smoked", Items: map[string]float64{"Salt": 0.07, "Water": 0.02}},
		},
		Products: []catalog.ProductSpec{
			{Name: "Trout  A", PackageWeightKg: 0.5},
			{Name: "Herring x/k", PackageWeightKg: 0.3, Recipe: "Cold-smoked"},
		},
	}
	if _, err := s.ApplyManifest(context.Background(), m); err != nil {
		t.Fatalf("ApplyManifest: %v", err)
	}
}

func TestRebind(t *testing.T) {
	pg := dialect{name: DriverPostgres}
	if got := pg.rebind("a = ? AND b = ?"); got != "a = $1 AND b = $2" {
		t.Errorf("rebind = %q", got)
	}
	lite := dialect{name: DriverSQLite}
	if got := lite.rebind("a = ?"); got != "a = ?" {
		t.Errorf("sqlite rebind = %q", got)
	}
}

func TestOpen_UnknownDriver(t *testing.T) {
	if _, err := Open("oracle", "x"); err == nil {
		t.Fatal("expected error")
	}
}

func TestApplyManifest_Idempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	seed(t, s)
	seed(t, s)

	products, err := s.Products(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(products) != 2 {
		t.Fatalf("products = %d, want 2", len(products))
	}
	herring := products[0]
	if herring.DeclaredName != "Herring x/k" || herring.RecipeID == nil || herring.RecipeName != "Cold-smoked" {
		t.Errorf("herring = %+v", herring)
	}

	items, err := s.RecipeItems(ctx, *herring.RecipeID)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 2 || items[0].ComponentName != "Salt" || items[0].QuantityPerKg != 0.07 {
		t.Errorf("items = %+v", items)
	}
}

func TestResolveProduct(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	seed(t, s)

	p, err := s.ResolveProduct(ctx, " trout a ")
	if err != nil {
		t.Fatalf("ResolveProduct: %v", err)
	}
	if p.DeclaredName != "Trout  A" || p.PackageWeightKg != 0.5 || p.RecipeID != nil {
		t.Errorf("product = %+v", p)
	}

	if _, err := s.ResolveProduct(ctx, "Unknown X"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestProductionLifecycle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	seed(t, s)

	day := time.Date(2025, 11, 6, 0, 0, 0, 0, time.UTC)
	other := day.AddDate(0, 0, 1)
	p, err := s.ResolveProduct(ctx, "Trout A")
	if err != nil {
		t.Fatal(err)
	}
	ids, err := s.ComponentIDs(ctx)
	if err != nil {
		t.Fatal(err)
	}

	err = s.WithTx(ctx, func(tx *Tx) error {
		for _, d := range []time.Time{day, other} {
			rid, err := tx.InsertProductionRecord(ctx, d, p.ID, 100)
			if err != nil {
				return err
			}
			if err := tx.InsertConsumptionEntry(ctx, rid, ids["Salt"], 6); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("WithTx: %v", err)
	}

	lines, err := s.ProductionForDate(ctx, day)
	if err != nil {
		t.Fatal(err)
	}
	if len(lines) != 1 || lines[0].Product.DeclaredName != "Trout  A" || !lines[0].Record.Date.Equal(day) {
		t.Fatalf("lines = %+v", lines)
	}
	entries, err := s.ConsumptionEntries(ctx, lines[0].Record.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].ComponentName != "Salt" || entries[0].QuantityKg != 6 {
		t.Errorf("entries = %+v", entries)
	}

	dates, err := s.ProductionDates(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(dates) != 2 || !dates[0].Equal(other) {
		t.Errorf("dates = %v", dates)
	}

	err = s.WithTx(ctx, func(tx *Tx) error {
		if _, err := tx.DeleteConsumptionEntriesForDate(ctx, day); err != nil {
			return err
		}
		n, err := tx.DeleteProductionRecordsForDate(ctx, day)
		if n != 1 {
			t.Errorf("deleted records = %d, want 1", n)
		}
		return err
	})
	if err != nil {
		t.Fatalf("delete: %v", err)
	}

	if lines, _ := s.ProductionForDate(ctx, other); len(lines) != 1 {
		t.Errorf("other date must be untouched, got %d lines", len(lines))
	}
	if n, err := s.OrphanEntries(ctx); err != nil || n != 0 {
		t.Errorf("orphans = %d, %v", n, err)
	}
}

func TestForeignKeyOrdering(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	seed(t, s)

	day := time.Date(2025, 11, 6, 0, 0, 0, 0, time.UTC)
	p, _ := s.ResolveProduct(ctx, "Trout A")
	ids, _ := s.ComponentIDs(ctx)
	err := s.WithTx(ctx, func(tx *Tx) error {
		rid, err := tx.InsertProductionRecord(ctx, day, p.ID, 10)
		if err != nil {
			return err
		}
		return tx.InsertConsumptionEntry(ctx, rid, ids["Water"], 1)
	})
	if err != nil {
		t.Fatal(err)
	}

	err = s.WithTx(ctx, func(tx *Tx) error {
		_, err := tx.DeleteProductionRecordsForDate(ctx, day)
		return err
	})
	if err == nil {
		t.Fatal("deleting records before their entries must fail")
	}
	if lines, _ := s.ProductionForDate(ctx, day); len(lines) != 1 {
		t.Errorf("failed tx must roll back, lines = %d", len(lines))
	}
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	seed(t, s)

	boom := errors.New("boom")
	err := s.WithTx(ctx, func(tx *Tx) error {
		if _, err := tx.UpsertComponent(ctx, "Sugar"); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	ids, _ := s.ComponentIDs(ctx)
	if _, ok := ids["Sugar"]; ok {
		t.Error("component from a rolled back tx is visible")
	}
}

func TestProductionRecord_RejectsNonPositive(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	seed(t, s)
	p, _ := s.ResolveProduct(ctx, "Trout A")

	err := s.WithTx(ctx, func(tx *Tx) error {
		_, err := tx.InsertProductionRecord(ctx, time.Now(), p.ID, 0)
		return err
	})
	if err == nil {
		t.Fatal("zero quantity must violate the check constraint")
	}
}

func TestImportRuns(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	start := time.Date(2025, 11, 6, 8, 0, 0, 0, time.UTC)
	err := s.WithTx(ctx, func(tx *Tx) error {
		if err := tx.InsertImportRun(ctx, ImportRun{ID: "a", Source: "x.xlsx", StartedAt: start, Dates: []string{"2025-11-06"}, Accepted: 2}); err != nil {
			return err
		}
		return tx.InsertImportRun(ctx, ImportRun{ID: "b", Source: "y.csv", StartedAt: start.Add(time.Hour), RowErrors: 1, NotFound: 1})
	})
	if err != nil {
		t.Fatal(err)
	}

	runs, err := s.ImportRuns(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 || runs[0].ID != "b" {
		t.Fatalf("runs = %+v", runs)
	}
	if runs[1].Accepted != 2 || len(runs[1].Dates) != 1 || !runs[1].StartedAt.Equal(start) {
		t.Errorf("run a = %+v", runs[1])
	}
	if runs[0].Dates != nil {
		t.Errorf("run b dates = %v", runs[0].Dates)
	}
}

func TestEnsureComponents(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	if err := s.EnsureComponents(ctx, []string{"Salt", "Sugar", "Salt"}); err != nil {
		t.Fatal(err)
	}
	ids, _ := s.ComponentIDs(ctx)
	if len(ids) != 2 {
		t.Errorf("components = %v", ids)
	}
}
