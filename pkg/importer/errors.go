package importer

import (
	"fmt"
	"strings"
)

// MissingColumnsError aborts an import whose header lacks a required column.
type MissingColumnsError struct {
	Required []string `json:"required"`
	Missing  []string `json:"missing"`
	Found    []string `json:"found"`
}

func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("missing required columns %s (required: %s; found: %s)",
		quoteList(e.Missing), quoteList(e.Required), quoteList(e.Found))
}

// RowError rejects one data row; the rest of the batch goes on.
type RowError struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}

func (e RowError) Error() string {
	return fmt.Sprintf("row %d: %s", e.Row, e.Reason)
}

// NoValidRowsError aborts an import in which no row survived validation.
type NoValidRowsError struct {
	RowErrors []RowError
	Skipped   int
}

func (e *NoValidRowsError) Error() string {
	return fmt.Sprintf("no valid rows in import (%d rejected, %d skipped)", len(e.RowErrors), e.Skipped)
}

func quoteList(items []string) string {
	q := make([]string, len(items))
	for i, s := range items {
		q[i] = fmt.Sprintf("%q", s)
	}
	return "[" + strings.Join(q, ", ") + "]"
}
