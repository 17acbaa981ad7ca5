// Package ledger reconciles an import against the stored production of the
// dates it touches. For every such date the consumption entries and then the
// production records are deleted, and the accepted rows are inserted together
// with their computed write-offs. The whole replace is one transaction.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hazyhaar/brine-ledger/pkg/catalog"
	"github.com/hazyhaar/brine-ledger/pkg/consumption"
	"github.com/hazyhaar/brine-ledger/pkg/importer"
	"github.com/hazyhaar/brine-ledger/pkg/store"
)

// ProductNotFoundError is a row whose declared name matches no product. The
// row is skipped; the import goes on.
type ProductNotFoundError struct {
	Row  int    `json:"row"`
	Name string `json:"name"`
}

func (e ProductNotFoundError) Error() string {
	return fmt.Sprintf("row %d: product %q not found in catalog", e.Row, e.Name)
}

// ReconciliationFault is any persistence fault during the replace. Nothing of
// the import was committed.
type ReconciliationFault struct {
	Op  string
	Err error
}

func (e *ReconciliationFault) Error() string {
	return fmt.Sprintf("reconciliation failed (%s), import rolled back: %v", e.Op, e.Err)
}

func (e *ReconciliationFault) Unwrap() error { return e.Err }

func fault(op string, err error) error {
	return &ReconciliationFault{Op: op, Err: err}
}

// Result summarizes a committed import.
type Result struct {
	RunID     string                 `json:"run_id"`
	Source    string                 `json:"source"`
	Dates     []string               `json:"dates"`
	Accepted  int                    `json:"accepted"`
	Skipped   int                    `json:"skipped"`
	RowErrors []importer.RowError    `json:"row_errors"`
	NotFound  []ProductNotFoundError `json:"not_found"`
}

// NotFoundNames lists the unmatched declared names, one per row.
func (r *Result) NotFoundNames() []string {
	names := make([]string, len(r.NotFound))
	for i, nf := range r.NotFound {
		names[i] = nf.Name
	}
	return names
}

// Engine writes imports into the store.
type Engine struct {
	store  *store.Store
	norms  consumption.NormTable
	logger *slog.Logger
	now    func() time.Time
}

// NewEngine returns an Engine. A nil table selects consumption.DefaultNorms.
func NewEngine(s *store.Store, norms consumption.NormTable, logger *slog.Logger) *Engine {
	if norms == nil {
		norms = consumption.DefaultNorms
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{store: s, norms: norms, logger: logger, now: time.Now}
}

// Prepare registers the components named by the group norms so that
// norm-based write-offs can reference them.
func (e *Engine) Prepare(ctx context.Context) error {
	return e.store.EnsureComponents(ctx, e.norms.Components())
}

// Reconcile replaces the stored production of every date in the batch with
// the batch's rows. A batch without rows is rejected with
// *importer.NoValidRowsError; persistence faults come back as
// *ReconciliationFault.
func (e *Engine) Reconcile(ctx context.Context, source string, batch *importer.Batch) (*Result, error) {
	if batch == nil || len(batch.Rows) == 0 {
		nv := &importer.NoValidRowsError{}
		if batch != nil {
			nv.RowErrors, nv.Skipped = batch.Errors, batch.Skipped
		}
		return nil, nv
	}

	dates := batch.Dates()
	res := &Result{
		RunID:     uuid.NewString(),
		Source:    source,
		Dates:     make([]string, len(dates)),
		Skipped:   batch.Skipped,
		RowErrors: batch.Errors,
	}
	for i, d := range dates {
		res.Dates[i] = catalog.FormatDate(d)
	}
	started := e.now().UTC()

	err := e.store.WithTx(ctx, func(tx *store.Tx) error {
		for _, d := range dates {
			entries, err := tx.DeleteConsumptionEntriesForDate(ctx, d)
			if err != nil {
				return fault("clear consumption", err)
			}
			records, err := tx.DeleteProductionRecordsForDate(ctx, d)
			if err != nil {
				return fault("clear production", err)
			}
			e.logger.Debug("date cleared", "date", catalog.FormatDate(d), "records", records, "entries", entries)
		}

		componentIDs, err := tx.ComponentIDs(ctx)
		if err != nil {
			return fault("load components", err)
		}
		resolver := consumption.NewResolver(tx, e.norms)

		for _, row := range batch.Rows {
			p, err := tx.ResolveProduct(ctx, row.Name)
			if errors.Is(err, store.ErrNotFound) {
				res.NotFound = append(res.NotFound, ProductNotFoundError{Row: row.Line, Name: row.Name})
				continue
			}
			if err != nil {
				return fault("resolve product", err)
			}

			recordID, err := tx.InsertProductionRecord(ctx, row.Date, p.ID, row.QuantityKg)
			if err != nil {
				return fault("insert production", err)
			}
			if err := e.writeOff(ctx, tx, resolver, componentIDs, recordID, p, row.QuantityKg); err != nil {
				return err
			}
			res.Accepted++
		}

		err = tx.InsertImportRun(ctx, store.ImportRun{
			ID:        res.RunID,
			Source:    source,
			StartedAt: started,
			Dates:     res.Dates,
			Accepted:  res.Accepted,
			RowErrors: len(res.RowErrors),
			NotFound:  len(res.NotFound),
		})
		if err != nil {
			return fault("record run", err)
		}
		return nil
	})
	if err != nil {
		var rf *ReconciliationFault
		if !errors.As(err, &rf) {
			err = fault("commit", err)
		}
		e.logger.Error("import rolled back", "source", source, "error", err)
		return nil, err
	}

	e.logger.Info("import reconciled",
		"run", res.RunID,
		"source", source,
		"dates", len(res.Dates),
		"accepted", res.Accepted,
		"row_errors", len(res.RowErrors),
		"not_found", len(res.NotFound))
	return res, nil
}

// writeOff computes the consumption of a new record and persists it.
func (e *Engine) writeOff(ctx context.Context, tx *store.Tx, resolver *consumption.Resolver,
	componentIDs map[string]int64, recordID int64, p *catalog.Product, quantityKg float64) error {
	resolution, err := resolver.Compute(ctx, consumption.Subject{
		RecordID:     recordID,
		DeclaredName: p.DeclaredName,
		RecipeID:     p.RecipeID,
		RecipeName:   p.RecipeName,
		QuantityKg:   quantityKg,
	})
	if err != nil {
		return fault("compute consumption", err)
	}

	for _, l := range resolution.Lines {
		id := l.ComponentID
		if id == 0 {
			var ok bool
			if id, ok = componentIDs[l.Component]; !ok {
				return fault("write off", fmt.Errorf("component %q is not registered", l.Component))
			}
		}
		if err := tx.InsertConsumptionEntry(ctx, recordID, id, l.QuantityKg); err != nil {
			return fault("write off", err)
		}
	}
	return nil
}
