package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hazyhaar/brine-ledger/pkg/catalog"
)

// ProductionLine is a production record joined with its product.
type ProductionLine struct {
	Record  catalog.ProductionRecord
	Product catalog.Product
}

// DeleteConsumptionEntriesForDate removes the write-offs of every record of
// the date. It must run before DeleteProductionRecordsForDate.
func (tx *Tx) DeleteConsumptionEntriesForDate(ctx context.Context, date time.Time) (int64, error) {
	res, err := tx.exec(ctx,
		`DELETE FROM consumption_entries
		 WHERE production_record_id IN (SELECT id FROM production_records WHERE production_date = ?)`,
		catalog.FormatDate(date))
	if err != nil {
		return 0, fmt.Errorf("delete consumption for %s: %w", catalog.FormatDate(date), err)
	}
	return res.RowsAffected()
}

// DeleteProductionRecordsForDate removes the production records of the date.
func (tx *Tx) DeleteProductionRecordsForDate(ctx context.Context, date time.Time) (int64, error) {
	res, err := tx.exec(ctx, `DELETE FROM production_records WHERE production_date = ?`, catalog.FormatDate(date))
	if err != nil {
		return 0, fmt.Errorf("delete production for %s: %w", catalog.FormatDate(date), err)
	}
	return res.RowsAffected()
}

// InsertProductionRecord stores a record and returns its id.
func (tx *Tx) InsertProductionRecord(ctx context.Context, date time.Time, productID int64, quantityKg float64) (int64, error) {
	var id int64
	err := tx.queryRow(ctx,
		`INSERT INTO production_records (production_date, product_id, quantity_kg) VALUES (?, ?, ?) RETURNING id`,
		catalog.FormatDate(date), productID, quantityKg).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert production record: %w", err)
	}
	return id, nil
}

// InsertConsumptionEntry stores one write-off of a record.
func (tx *Tx) InsertConsumptionEntry(ctx context.Context, recordID, componentID int64, quantityKg float64) error {
	_, err := tx.exec(ctx,
		`INSERT INTO consumption_entries (production_record_id, component_id, quantity_kg) VALUES (?, ?, ?)`,
		recordID, componentID, quantityKg)
	if err != nil {
		return fmt.Errorf("insert consumption entry for record %d: %w", recordID, err)
	}
	return nil
}

// ConsumptionEntries returns the write-offs of a record by component name.
func (c conn) ConsumptionEntries(ctx context.Context, recordID int64) ([]catalog.ConsumptionEntry, error) {
	rows, err := c.query(ctx,
		`SELECT ce.id, ce.production_record_id, ce.component_id, c.name, ce.quantity_kg
		 FROM consumption_entries ce JOIN components c ON c.id = ce.component_id
		 WHERE ce.production_record_id = ?
		 ORDER BY c.name`, recordID)
	if err != nil {
		return nil, fmt.Errorf("consumption entries of record %d: %w", recordID, err)
	}
	defer rows.Close()

	var out []catalog.ConsumptionEntry
	for rows.Next() {
		var e catalog.ConsumptionEntry
		if err := rows.Scan(&e.ID, &e.RecordID, &e.ComponentID, &e.ComponentName, &e.QuantityKg); err != nil {
			return nil, fmt.Errorf("scan consumption entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ProductionForDate returns the records of a date in insertion order.
func (c conn) ProductionForDate(ctx context.Context, date time.Time) ([]ProductionLine, error) {
	rows, err := c.query(ctx,
		`SELECT pr.id, pr.production_date, pr.quantity_kg, `+productColumns+`
		 FROM production_records pr
		 JOIN products p ON p.id = pr.product_id
		 LEFT JOIN recipes r ON r.id = p.recipe_id
		 WHERE pr.production_date = ?
		 ORDER BY pr.id`, catalog.FormatDate(date))
	if err != nil {
		return nil, fmt.Errorf("production for %s: %w", catalog.FormatDate(date), err)
	}
	defer rows.Close()

	var out []ProductionLine
	for rows.Next() {
		var (
			l       ProductionLine
			dateStr string
			rid     sql.NullInt64
		)
		err := rows.Scan(&l.Record.ID, &dateStr, &l.Record.QuantityKg,
			&l.Product.ID, &l.Product.DeclaredName, &l.Product.PackageWeightKg, &rid, &l.Product.RecipeName)
		if err != nil {
			return nil, fmt.Errorf("scan production record: %w", err)
		}
		if rid.Valid {
			id := rid.Int64
			l.Product.RecipeID = &id
		}
		if l.Record.Date, err = catalog.ParseDate(dateStr); err != nil {
			return nil, fmt.Errorf("record %d has bad date %q: %w", l.Record.ID, dateStr, err)
		}
		l.Record.ProductID = l.Product.ID
		out = append(out, l)
	}
	return out, rows.Err()
}

// ProductionDates lists the dates holding production records, newest first.
func (c conn) ProductionDates(ctx context.Context) ([]time.Time, error) {
	rows, err := c.query(ctx, `SELECT DISTINCT production_date FROM production_records ORDER BY production_date DESC`)
	if err != nil {
		return nil, fmt.Errorf("production dates: %w", err)
	}
	defer rows.Close()

	var out []time.Time
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("scan date: %w", err)
		}
		d, err := catalog.ParseDate(s)
		if err != nil {
			return nil, fmt.Errorf("bad stored date %q: %w", s, err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// OrphanEntries counts consumption entries whose record no longer exists.
// It is zero whenever foreign keys are enforced.
func (c conn) OrphanEntries(ctx context.Context) (int, error) {
	var n int
	err := c.queryRow(ctx,
		`SELECT COUNT(*) FROM consumption_entries ce
		 LEFT JOIN production_records pr ON pr.id = ce.production_record_id
		 WHERE pr.id IS NULL`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count orphan entries: %w", err)
	}
	return n, nil
}
