package report

import (
	"fmt"
	"io"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

const (
	sheetProducts   = "Products"
	sheetComponents = "Components"
)

// grams rounds a kilogram quantity to three decimals.
func grams(kg float64) float64 {
	return decimal.NewFromFloat(kg).Round(3).InexactFloat64()
}

// WriteXLSX renders the report as a workbook with a Products and a
// Components sheet.
func WriteXLSX(w io.Writer, r *Report) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetProducts); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(sheetComponents); err != nil {
		return fmt.Errorf("add sheet: %w", err)
	}

	products := [][]any{{"Date", "Group", "Product", "Total kg", "Pieces", "Source"}}
	components := [][]any{{"Date", "Group", "Component", "Quantity kg"}}
	for _, g := range r.Groups {
		for _, p := range g.Products {
			products = append(products, []any{r.Date, g.Group.String(), p.Name, grams(p.TotalKg), p.Pieces, string(p.Strategy)})
		}
		for _, c := range g.Components {
			components = append(components, []any{r.Date, g.Group.String(), c.Component, grams(c.QuantityKg)})
		}
	}

	if err := writeRows(f, sheetProducts, products); err != nil {
		return err
	}
	if err := writeRows(f, sheetComponents, components); err != nil {
		return err
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		r := row
		if err := f.SetSheetRow(sheet, cell, &r); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}
