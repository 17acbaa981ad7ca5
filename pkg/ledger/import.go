package ledger

import (
	"context"
	"io"

	"github.com/hazyhaar/brine-ledger/pkg/importer"
)

// Import reads a payload, validates its rows and reconciles them. Header
// faults (*importer.MissingColumnsError) and empty imports
// (*importer.NoValidRowsError) abort before anything is written.
func (e *Engine) Import(ctx context.Context, source string, r io.Reader, filename string, opts importer.Options) (*Result, error) {
	tbl, err := importer.Read(r, filename, opts)
	if err != nil {
		return nil, err
	}
	batch, err := importer.Parse(tbl)
	if err != nil {
		return nil, err
	}
	e.logger.Debug("import parsed",
		"source", source,
		"accepted", len(batch.Rows),
		"row_errors", len(batch.Errors),
		"skipped", batch.Skipped)
	return e.Reconcile(ctx, source, batch)
}
