// Package store persists the catalog, production records and the consumption
// ledger on database/sql. SQLite (modernc.org/sqlite) is the default engine;
// PostgreSQL is reached through the pgx stdlib driver.
//
// Consumption entries reference production records with an enforced foreign
// key, so a date must be cleared entries-first.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// ErrNotFound is returned by lookups that match no row.
var ErrNotFound = errors.New("not found")

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type dialect struct {
	name string
	ddl  []string
}

// rebind rewrites ? placeholders to $n for PostgreSQL.
func (d dialect) rebind(q string) string {
	if d.name != DriverPostgres {
		return q
	}
	var b strings.Builder
	n := 0
	for _, c := range q {
		if c == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(c)
	}
	return b.String()
}

var sqliteDDL = []string{
	`CREATE TABLE IF NOT EXISTS components (
		id   INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE
	)`,
	`CREATE TABLE IF NOT EXISTS recipes (
		id   INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE
	)`,
	`CREATE TABLE IF NOT EXISTS recipe_items (
		recipe_id       INTEGER NOT NULL REFERENCES recipes(id),
		component_id    INTEGER NOT NULL REFERENCES components(id),
		quantity_per_kg REAL NOT NULL CHECK (quantity_per_kg >= 0),
		PRIMARY KEY (recipe_id, component_id)
	)`,
	`CREATE TABLE IF NOT EXISTS products (
		id                INTEGER PRIMARY KEY AUTOINCREMENT,
		declared_name     TEXT NOT NULL,
		name_key          TEXT NOT NULL UNIQUE,
		package_weight_kg REAL NOT NULL,
		recipe_id         INTEGER REFERENCES recipes(id)
	)`,
	`CREATE TABLE IF NOT EXISTS production_records (
		id              INTEGER PRIMARY KEY AUTOINCREMENT,
		production_date TEXT NOT NULL,
		product_id      INTEGER NOT NULL REFERENCES products(id),
		quantity_kg     REAL NOT NULL CHECK (quantity_kg > 0)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_production_records_date ON production_records(production_date)`,
	`CREATE TABLE IF NOT EXISTS consumption_entries (
		id                   INTEGER PRIMARY KEY AUTOINCREMENT,
		production_record_id INTEGER NOT NULL REFERENCES production_records(id),
		component_id         INTEGER NOT NULL REFERENCES components(id),
		quantity_kg          REAL NOT NULL CHECK (quantity_kg >= 0)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_consumption_entries_record ON consumption_entries(production_record_id)`,
	`CREATE TABLE IF NOT EXISTS import_runs (
		id         TEXT PRIMARY KEY,
		source     TEXT NOT NULL,
		started_at INTEGER NOT NULL,
		dates      TEXT NOT NULL,
		accepted   INTEGER NOT NULL,
		row_errors INTEGER NOT NULL,
		not_found  INTEGER NOT NULL
	)`,
}

var postgresDDL = []string{
	`CREATE TABLE IF NOT EXISTS components (
		id   BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL UNIQUE
	)`,
	`CREATE TABLE IF NOT EXISTS recipes (
		id   BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL UNIQUE
	)`,
	`CREATE TABLE IF NOT EXISTS recipe_items (
		recipe_id       BIGINT NOT NULL REFERENCES recipes(id),
		component_id    BIGINT NOT NULL REFERENCES components(id),
		quantity_per_kg DOUBLE PRECISION NOT NULL CHECK (quantity_per_kg >= 0),
		PRIMARY KEY (recipe_id, component_id)
	)`,
	`CREATE TABLE IF NOT EXISTS products (
		id                BIGSERIAL PRIMARY KEY,
		declared_name     TEXT NOT NULL,
		name_key          TEXT NOT NULL UNIQUE,
		package_weight_kg DOUBLE PRECISION NOT NULL,
		recipe_id         BIGINT REFERENCES recipes(id)
	)`,
	`CREATE TABLE IF NOT EXISTS production_records (
		id              BIGSERIAL PRIMARY KEY,
		production_date TEXT NOT NULL,
		product_id      BIGINT NOT NULL REFERENCES products(id),
		quantity_kg     DOUBLE PRECISION NOT NULL CHECK (quantity_kg > 0)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_production_records_date ON production_records(production_date)`,
	`CREATE TABLE IF NOT EXISTS consumption_entries (
		id                   BIGSERIAL PRIMARY KEY,
		production_record_id BIGINT NOT NULL REFERENCES production_records(id),
		component_id         BIGINT NOT NULL REFERENCES components(id),
		quantity_kg          DOUBLE PRECISION NOT NULL CHECK (quantity_kg >= 0)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_consumption_entries_record ON consumption_entries(production_record_id)`,
	`CREATE TABLE IF NOT EXISTS import_runs (
		id         TEXT PRIMARY KEY,
		source     TEXT NOT NULL,
		started_at BIGINT NOT NULL,
		dates      TEXT NOT NULL,
		accepted   INTEGER NOT NULL,
		row_errors INTEGER NOT NULL,
		not_found  INTEGER NOT NULL
	)`,
}

// conn carries the queries shared by Store and Tx.
type conn struct {
	q querier
	d dialect
}

// Store is an open database.
type Store struct {
	conn
	db *sql.DB
}

// Open connects to the database and creates the schema if needed.
// For SQLite the dsn is a file path; foreign keys, WAL and a busy timeout
// are enabled on every connection.
func Open(driver, dsn string) (*Store, error) {
	var (
		db  *sql.DB
		d   dialect
		err error
	)
	switch driver {
	case DriverSQLite, "":
		d = dialect{name: DriverSQLite, ddl: sqliteDDL}
		db, err = sql.Open("sqlite", sqliteDSN(dsn))
	case DriverPostgres:
		d = dialect{name: DriverPostgres, ddl: postgresDDL}
		db, err = sql.Open("pgx", dsn)
	default:
		return nil, fmt.Errorf("unknown database driver %q", driver)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s db: %w", d.name, err)
	}

	for _, stmt := range d.ddl {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("create schema: %w", err)
		}
	}

	return &Store{conn: conn{q: db, d: d}, db: db}, nil
}

func sqliteDSN(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_pragma=foreign_keys(1)&_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)"
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Driver returns the engine name.
func (s *Store) Driver() string {
	return s.d.name
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Tx is a scoped transaction.
type Tx struct {
	conn
	tx *sql.Tx
}

// WithTx runs fn in a transaction, committing when fn returns nil and rolling
// back on error or panic.
func (s *Store) WithTx(ctx context.Context, fn func(*Tx) error) (err error) {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	tx := &Tx{conn: conn{q: sqlTx, d: s.d}, tx: sqlTx}

	defer func() {
		if p := recover(); p != nil {
			sqlTx.Rollback()
			panic(p)
		}
		if err != nil {
			sqlTx.Rollback()
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	if err = sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (c conn) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return c.q.ExecContext(ctx, c.d.rebind(query), args...)
}

func (c conn) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return c.q.QueryContext(ctx, c.d.rebind(query), args...)
}

func (c conn) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return c.q.QueryRowContext(ctx, c.d.rebind(query), args...)
}
