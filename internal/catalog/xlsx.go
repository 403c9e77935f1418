package catalog

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/Simplici0/candle.works/internal/pricing"
	"github.com/Simplici0/candle.works/internal/store"
)

// Row is one priced product in an export.
type Row struct {
	SKU    string
	Name   string
	Stock  int
	Result pricing.Result
}

const (
	catalogSheet   = "Catalog"
	materialsSheet = "Materials"
)

// ExportXLSX writes the priced catalog with one break-even column per market.
// A market without a break-even price gets the error token.
func ExportXLSX(w io.Writer, markets []pricing.Market, rows []Row) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName(f.GetSheetName(0), catalogSheet); err != nil {
		return fmt.Errorf("name sheet: %w", err)
	}

	header := []interface{}{"sku", "name", "stock", "cogs", "weight_g", "recommended_price", "multiplier"}
	for _, m := range markets {
		header = append(header, "break_even_"+m.ID)
	}
	if err := f.SetSheetRow(catalogSheet, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i, r := range rows {
		res := r.Result
		line := []interface{}{
			r.SKU,
			r.Name,
			r.Stock,
			money(res.COGS),
			pricing.Number(pricing.Grams(res.Weight.Grams)),
			money(res.Recommended.Price),
			pricing.Number(pricing.Fixed2(res.Recommended.Multiplier)),
		}
		for _, m := range markets {
			mr, ok := res.Market(m.ID)
			if !ok || !mr.OK {
				line = append(line, pricing.ErrorToken)
				continue
			}
			line = append(line, money(mr.BreakEven.Price))
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("cell for row %d: %w", i+2, err)
		}
		if err := f.SetSheetRow(catalogSheet, cell, &line); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	if err := f.SetColWidth(catalogSheet, "B", "B", 36); err != nil {
		return fmt.Errorf("set column width: %w", err)
	}
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func money(v float64) float64 {
	return pricing.Number(pricing.Fixed2(v))
}

var materialsHeader = []string{"name", "kind", "unit", "cost_per_unit", "stock_qty", "reorder_level", "supplier"}

// ExportMaterialsXLSX writes the materials price list. The file can be edited
// and read back with ReadMaterialPrices.
func ExportMaterialsXLSX(w io.Writer, materials []store.Material) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName(f.GetSheetName(0), materialsSheet); err != nil {
		return fmt.Errorf("name sheet: %w", err)
	}

	header := make([]interface{}, len(materialsHeader))
	for i, h := range materialsHeader {
		header[i] = h
	}
	if err := f.SetSheetRow(materialsSheet, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i, m := range materials {
		line := []interface{}{
			m.Name,
			m.Kind.String(),
			m.Unit,
			m.CostPerUnit,
			m.StockQty,
			m.ReorderLevel,
			m.Supplier,
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("cell for row %d: %w", i+2, err)
		}
		if err := f.SetSheetRow(materialsSheet, cell, &line); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// ReadMaterialPrices reads the first sheet of a price list and returns the
// new cost per material name. Rows with an empty cost cell are left out.
func ReadMaterialPrices(r io.Reader) (map[string]float64, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer func() { _ = f.Close() }()

	rows, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: name", ErrMissingColumn)
	}

	nameCol, costCol := -1, -1
	for i, h := range rows[0] {
		switch strings.ToLower(strings.TrimSpace(h)) {
		case "name":
			nameCol = i
		case "cost_per_unit":
			costCol = i
		}
	}
	if nameCol < 0 {
		return nil, fmt.Errorf("%w: name", ErrMissingColumn)
	}
	if costCol < 0 {
		return nil, fmt.Errorf("%w: cost_per_unit", ErrMissingColumn)
	}

	prices := make(map[string]float64)
	for i, row := range rows[1:] {
		if nameCol >= len(row) || costCol >= len(row) {
			continue
		}
		name := strings.TrimSpace(row[nameCol])
		raw := strings.TrimSpace(row[costCol])
		if name == "" || raw == "" {
			continue
		}
		cost, err := pricing.ParseNumber(strings.ReplaceAll(raw, ",", "."))
		if err != nil {
			return nil, fmt.Errorf("row %d: cost for %q: %w", i+2, name, err)
		}
		prices[name] = cost
	}
	return prices, nil
}
