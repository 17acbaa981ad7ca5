package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hazyhaar/brine-ledger/pkg/classify"
	"github.com/hazyhaar/brine-ledger/pkg/consumption"
	"github.com/hazyhaar/brine-ledger/pkg/report"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := loadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Addr != ":8430" || cfg.Database.Driver != "sqlite" || cfg.Database.DSN != "brine.db" {
		t.Errorf("defaults = %+v", cfg)
	}
}

func TestLoadConfig_Overrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := "addr: \":9000\"\ndatabase:\n  driver: postgres\n  dsn: postgres://plant@db/brine\noperator_token: t0k\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Addr != ":9000" || cfg.Database.Driver != "postgres" || cfg.OperatorToken != "t0k" {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.LogLevel != "info" || cfg.Catalog != "catalog.yaml" {
		t.Errorf("unset keys must keep defaults: %+v", cfg)
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	os.WriteFile(path, []byte("addr: [\n"), 0o644)
	if _, err := loadConfig(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestPrintReport(t *testing.T) {
	rep := &report.Report{
		Date: "2025-11-06",
		Groups: []report.Group{{
			Group:      classify.Regions,
			TotalKg:    100,
			Products:   []report.ProductLine{{Name: "Trout A", TotalKg: 100, Pieces: 200, Strategy: consumption.StrategyLedger}},
			Components: []consumption.Line{{Component: "Salt", QuantityKg: 6}},
		}},
	}
	var buf bytes.Buffer
	if err := printReport(&buf, rep); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"Production 2025-11-06", "Regions", "Trout A", "200 pcs", "Salt", "6.000 kg"} {
		if !strings.Contains(out, want) {
			t.Errorf("output lacks %q:\n%s", want, out)
		}
	}
}
