package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/brine-ledger/pkg/store"
)

type config struct {
	Addr          string         `yaml:"addr"`
	LogLevel      string         `yaml:"log_level"`
	Database      databaseConfig `yaml:"database"`
	OperatorToken string         `yaml:"operator_token"`
	Catalog       string         `yaml:"catalog"`
	TLS           tlsConfig      `yaml:"tls"`
}

// tlsConfig enables HTTPS when both files are set.
type tlsConfig struct {
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

type databaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		cmdServe(os.Args[2:])
	case "import":
		cmdImport(os.Args[2:])
	case "report":
		cmdReport(os.Args[2:])
	case "seed":
		cmdSeed(os.Args[2:])
	case "mcp":
		cmdMCP(os.Args[2:])
	default:
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: brine <command> [flags]

Commands:
  serve    Start the HTTP server
  import   Reconcile a production export (-file or -url)
  report   Print the production report of a date
  seed     Load the catalog (components, recipes, products) from YAML
  mcp      Serve the MCP tools on stdin/stdout
`)
}

func defaultConfig() config {
	return config{
		Addr:     ":8430",
		LogLevel: "info",
		Database: databaseConfig{Driver: store.DriverSQLite, DSN: "brine.db"},
		Catalog:  "catalog.yaml",
	}
}

// loadConfig reads path over the defaults. A missing file is not an error.
func loadConfig(path string) (config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

func newLogger(level string) *slog.Logger {
	var l slog.Level
	switch strings.ToLower(level) {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l}))
}

// setup loads the config, builds the logger and opens the store. It exits
// the process on failure.
func setup(cfgPath string) (config, *slog.Logger, *store.Store) {
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "brine: %v\n", err)
		os.Exit(1)
	}
	logger := newLogger(cfg.LogLevel)

	s, err := store.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		logger.Error("open database", "driver", cfg.Database.Driver, "error", err)
		os.Exit(1)
	}
	logger.Debug("database open", "driver", s.Driver())
	return cfg, logger, s
}
