package store

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// ImportRun is the audit row written by each successful import.
type ImportRun struct {
	ID        string    `json:"id"`
	Source    string    `json:"source"`
	StartedAt time.Time `json:"started_at"`
	Dates     []string  `json:"dates"`
	Accepted  int       `json:"accepted"`
	RowErrors int       `json:"row_errors"`
	NotFound  int       `json:"not_found"`
}

// InsertImportRun records a run inside the import transaction.
func (tx *Tx) InsertImportRun(ctx context.Context, r ImportRun) error {
	_, err := tx.exec(ctx,
		`INSERT INTO import_runs (id, source, started_at, dates, accepted, row_errors, not_found)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Source, r.StartedAt.UnixMilli(), strings.Join(r.Dates, ","), r.Accepted, r.RowErrors, r.NotFound)
	if err != nil {
		return fmt.Errorf("insert import run %s: %w", r.ID, err)
	}
	return nil
}

// ImportRuns lists the most recent runs first. A limit <= 0 means 50.
func (c conn) ImportRuns(ctx context.Context, limit int) ([]ImportRun, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := c.query(ctx,
		`SELECT id, source, started_at, dates, accepted, row_errors, not_found
		 FROM import_runs ORDER BY started_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list import runs: %w", err)
	}
	defer rows.Close()

	var out []ImportRun
	for rows.Next() {
		var (
			r     ImportRun
			ms    int64
			dates string
		)
		if err := rows.Scan(&r.ID, &r.Source, &ms, &dates, &r.Accepted, &r.RowErrors, &r.NotFound); err != nil {
			return nil, fmt.Errorf("scan import run: %w", err)
		}
		r.StartedAt = time.UnixMilli(ms).UTC()
		if dates != "" {
			r.Dates = strings.Split(dates, ",")
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
