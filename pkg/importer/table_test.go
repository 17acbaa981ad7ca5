package importer

import (
	"bytes"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/htmlindex"
)

func buildWorkbook(t *testing.T, rows [][]any) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, row := range rows {
		cellRef, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatal(err)
		}
		r := row
		if err := f.SetSheetRow("Sheet1", cellRef, &r); err != nil {
			t.Fatalf("SetSheetRow: %v", err)
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("WriteToBuffer: %v", err)
	}
	return buf
}

func TestReadXLSX(t *testing.T) {
	buf := buildWorkbook(t, [][]any{
		{"Дата выработки", "Наименование продукции", "Объём"},
		{"06.11.2025:00", "Форель х/к", 100.5},
		{},
		{"07.11.2025", "Сельдь Магнит", 40},
	})

	tbl, err := ReadXLSX(buf)
	if err != nil {
		t.Fatalf("ReadXLSX: %v", err)
	}
	if len(tbl.Header) != 3 || tbl.Header[2] != "Объём" {
		t.Errorf("header = %v", tbl.Header)
	}

	b, err := Parse(tbl)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(b.Rows) != 2 {
		t.Fatalf("rows = %+v", b.Rows)
	}
	if b.Rows[0].QuantityKg != 100.5 || b.Rows[1].Line != 4 {
		t.Errorf("rows = %+v", b.Rows)
	}
}

func TestReadXLSX_NotAWorkbook(t *testing.T) {
	if _, err := ReadXLSX(strings.NewReader("not a zip")); err == nil {
		t.Fatal("expected error")
	}
}

func TestReadCSV_Windows1251(t *testing.T) {
	enc, err := htmlindex.Get("windows-1251")
	if err != nil {
		t.Fatal(err)
	}
	payload, err := enc.NewEncoder().String("Дата выработки;Наименование продукции;Объём\n06.11.2025;Форель;12,5\n")
	if err != nil {
		t.Fatal(err)
	}

	tbl, err := ReadCSV(strings.NewReader(payload), Options{Encoding: "windows-1251"})
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	if tbl.Header[1] != "Наименование продукции" {
		t.Errorf("header not transcoded: %q", tbl.Header[1])
	}
	if len(tbl.Rows) != 1 || tbl.Rows[0][1] != "Форель" {
		t.Errorf("rows = %v", tbl.Rows)
	}
}

func TestReadCSV_BOMAndDelimiter(t *testing.T) {
	payload := "\ufeffProduction date,Product name,Volume\n06.11.2025,Trout A,100\n06.11.2025,Trout B\n"
	tbl, err := ReadCSV(strings.NewReader(payload), Options{Delimiter: ","})
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	if tbl.Header[0] != "Production date" {
		t.Errorf("BOM not stripped: %q", tbl.Header[0])
	}
	if len(tbl.Rows) != 2 || len(tbl.Rows[1]) != 2 {
		t.Errorf("rows = %v", tbl.Rows)
	}
}

func TestReadCSV_UnknownEncoding(t *testing.T) {
	if _, err := ReadCSV(strings.NewReader("a;b"), Options{Encoding: "klingon"}); err == nil {
		t.Fatal("expected error")
	}
}

func TestRead_DetectFormat(t *testing.T) {
	csv := "Production date;Product name;Volume\n06.11.2025;Trout A;1\n"
	if _, err := Read(strings.NewReader(csv), "export.CSV", Options{}); err != nil {
		t.Errorf("csv: %v", err)
	}
	if _, err := Read(buildWorkbook(t, [][]any{{"a"}}), "export.xlsx", Options{}); err != nil {
		t.Errorf("xlsx: %v", err)
	}
	if _, err := Read(strings.NewReader(csv), "export.pdf", Options{}); err == nil {
		t.Error("pdf should be rejected")
	}
	if _, err := Read(strings.NewReader(csv), "upload", Options{Format: "csv"}); err != nil {
		t.Errorf("forced csv: %v", err)
	}
}

func TestReadCSV_Empty(t *testing.T) {
	if _, err := ReadCSV(strings.NewReader(""), Options{}); err == nil {
		t.Fatal("expected error for empty payload")
	}
}
