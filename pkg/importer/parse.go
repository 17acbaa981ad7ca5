// Package importer turns a production-declaration export into validated
// production rows.
package importer

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Canonical names of the required columns.
const (
	ColumnDate     = "Production date"
	ColumnName     = "Product name"
	ColumnQuantity = "Volume"
)

// RequiredColumns lists the canonical names in reporting order.
var RequiredColumns = []string{ColumnDate, ColumnName, ColumnQuantity}

// columnAliases are the header texts accepted for each column, compared after
// trimming and lowercasing. The declaration system exports Russian headers.
var columnAliases = map[string][]string{
	ColumnDate:     {"production date", "дата выработки"},
	ColumnName:     {"product name", "наименование продукции"},
	ColumnQuantity: {"volume", "объём", "объем"},
}

// dateLayout is day.month.year; one- and two-digit day and month are accepted.
const dateLayout = "2.1.2006"

// Row is one accepted production line.
type Row struct {
	Line       int       `json:"row"`
	Date       time.Time `json:"production_date"`
	Name       string    `json:"product_name"`
	QuantityKg float64   `json:"quantity_kg"`
}

// Batch is the outcome of parsing one payload.
type Batch struct {
	Rows    []Row      `json:"rows"`
	Errors  []RowError `json:"row_errors"`
	Skipped int        `json:"skipped"`
}

// Dates returns the distinct dates of the accepted rows, ascending.
func (b *Batch) Dates() []time.Time {
	seen := make(map[time.Time]bool)
	var dates []time.Time
	for _, r := range b.Rows {
		if !seen[r.Date] {
			seen[r.Date] = true
			dates = append(dates, r.Date)
		}
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates
}

type columns struct {
	date, name, qty int
}

// locateColumns finds the required columns by exact, case- and
// whitespace-insensitive header match.
func locateColumns(header []string) (columns, error) {
	idx := map[string]int{}
	for _, col := range RequiredColumns {
		for i, h := range header {
			if matchesAlias(h, columnAliases[col]) {
				idx[col] = i
				break
			}
		}
	}

	var missing []string
	for _, col := range RequiredColumns {
		if _, ok := idx[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		found := make([]string, 0, len(header))
		for _, h := range header {
			if h = strings.TrimSpace(h); h != "" {
				found = append(found, h)
			}
		}
		return columns{}, &MissingColumnsError{Required: RequiredColumns, Missing: missing, Found: found}
	}
	return columns{date: idx[ColumnDate], name: idx[ColumnName], qty: idx[ColumnQuantity]}, nil
}

func matchesAlias(header string, aliases []string) bool {
	h := strings.ToLower(strings.TrimSpace(header))
	for _, a := range aliases {
		if h == a {
			return true
		}
	}
	return false
}

// Parse validates every data row of t. Row failures are collected, never
// fatal. It returns a *MissingColumnsError when the header is incomplete and
// a *NoValidRowsError (with the batch) when nothing was accepted.
func Parse(t *Table) (*Batch, error) {
	cols, err := locateColumns(t.Header)
	if err != nil {
		return nil, err
	}

	b := &Batch{}
	for i, cells := range t.Rows {
		res := parseRow(t.FirstLine+i, cells, cols)
		switch {
		case res.blank:
		case res.skip:
			b.Skipped++
		case res.err != nil:
			b.Errors = append(b.Errors, *res.err)
		default:
			b.Rows = append(b.Rows, res.row)
		}
	}

	if len(b.Rows) == 0 {
		return b, &NoValidRowsError{RowErrors: b.Errors, Skipped: b.Skipped}
	}
	return b, nil
}

// rowResult is the outcome of one row: accepted, rejected, skipped or blank.
type rowResult struct {
	row   Row
	err   *RowError
	skip  bool
	blank bool
}

func parseRow(line int, cells []string, cols columns) rowResult {
	if isBlank(cells) {
		return rowResult{blank: true}
	}

	rawName := cell(cells, cols.name)
	rawQty := cell(cells, cols.qty)
	if rawName == "" && rawQty == "" {
		return rowResult{skip: true}
	}

	reject := func(reason string) rowResult {
		return rowResult{err: &RowError{Row: line, Reason: reason}}
	}

	name := strings.TrimSpace(rawName)
	if name == "" {
		return reject("empty name")
	}

	if rawQty == "" {
		return reject("missing quantity")
	}
	qty, err := ParseQuantity(rawQty)
	if err != nil {
		return reject(err.Error())
	}
	if qty <= 0 {
		return reject("quantity must be > 0")
	}

	rawDate := cell(cells, cols.date)
	if rawDate == "" {
		return reject("missing date")
	}
	date, err := ParseDate(rawDate)
	if err != nil {
		return reject(err.Error())
	}

	return rowResult{row: Row{Line: line, Date: date, Name: name, QuantityKg: qty}}
}

// ParseDate reads a DD.MM.YYYY cell. A ":..." suffix left by the export's
// timestamp column is cut at the first colon.
func ParseDate(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if i := strings.IndexByte(s, ':'); i >= 0 {
		s = strings.TrimSpace(s[:i])
	}
	d, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %v", raw, err)
	}
	return d, nil
}

// ParseQuantity reads a quantity cell. Spaces (including non-breaking) are
// thousands separators and either "." or "," is the decimal separator. A cell
// holding both is ambiguous and rejected, as is a value that does not fit a
// finite float64.
func ParseQuantity(raw string) (float64, error) {
	s := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\u00a0', '\u202f', '\t':
			return -1
		}
		return r
	}, raw)
	if strings.Contains(s, ".") && strings.Contains(s, ",") {
		return 0, fmt.Errorf("invalid quantity %q: both . and , present", raw)
	}
	s = strings.ReplaceAll(s, ",", ".")

	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("invalid quantity %q", raw)
	}
	f, _ := d.Float64()
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, fmt.Errorf("invalid quantity %q: out of range", raw)
	}
	return f, nil
}

func cell(cells []string, i int) string {
	if i < len(cells) {
		return strings.TrimSpace(cells[i])
	}
	return ""
}

func isBlank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
