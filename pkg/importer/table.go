package importer

import (
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"
)

// Table is one tabular payload: a header row and the data rows below it.
// Rows may be shorter than the header.
type Table struct {
	Header []string
	Rows   [][]string
	// FirstLine is the 1-based sheet row number of Rows[0].
	FirstLine int
}

// Options controls how a payload is decoded.
type Options struct {
	// Format forces "xlsx" or "csv"; empty means detect from the file name.
	Format string
	// Delimiter is the CSV field separator (default ';').
	Delimiter string
	// Encoding is the CSV source encoding (default UTF-8), e.g. "windows-1251".
	Encoding string
}

// Read decodes a payload, choosing the reader from opts.Format or the file
// extension.
func Read(r io.Reader, filename string, opts Options) (*Table, error) {
	format := strings.ToLower(opts.Format)
	if format == "" {
		switch strings.ToLower(filepath.Ext(filename)) {
		case ".xlsx", ".xlsm":
			format = "xlsx"
		case ".csv", ".txt":
			format = "csv"
		}
	}
	switch format {
	case "xlsx":
		return ReadXLSX(r)
	case "csv":
		return ReadCSV(r, opts)
	default:
		return nil, fmt.Errorf("unsupported payload format for %q (want .xlsx or .csv)", filename)
	}
}

// ReadXLSX reads the first sheet of a workbook. Cells are read unformatted so
// numbers keep a plain decimal form whatever the sheet's number format.
func ReadXLSX(r io.Reader) (*Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}

	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	return tableFromRows(rows)
}

// ReadCSV reads a delimited text export, transcoding it to UTF-8 first when
// opts.Encoding names another charset.
func ReadCSV(r io.Reader, opts Options) (*Table, error) {
	if enc := opts.Encoding; enc != "" && !isUTF8(enc) {
		e, err := htmlindex.Get(enc)
		if err != nil {
			return nil, fmt.Errorf("unsupported encoding %q: %w", enc, err)
		}
		r = transform.NewReader(r, e.NewDecoder())
	}

	cr := csv.NewReader(r)
	cr.Comma = ';'
	if opts.Delimiter != "" {
		cr.Comma = []rune(opts.Delimiter)[0]
	}
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	if len(rows) > 0 && len(rows[0]) > 0 {
		rows[0][0] = strings.TrimPrefix(rows[0][0], "\ufeff")
	}
	return tableFromRows(rows)
}

func tableFromRows(rows [][]string) (*Table, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("payload is empty: no header row")
	}
	return &Table{Header: rows[0], Rows: rows[1:], FirstLine: 2}, nil
}

func isUTF8(enc string) bool {
	e := strings.ToLower(strings.ReplaceAll(enc, "-", ""))
	return e == "utf8" || e == ""
}
