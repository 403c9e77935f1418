// Package catalog moves products and materials in and out of spreadsheet
// formats: Etsy listing exports on the way in, XLSX workbooks both ways.
package catalog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/Simplici0/candle.works/internal/pricing"
	"github.com/Simplici0/candle.works/internal/store"
)

// ErrMissingColumn is returned when a required column is absent from the header.
var ErrMissingColumn = errors.New("missing column")

// Template holds the BOM lines every imported product starts with.
type Template struct {
	Lines []pricing.BOMLine
}

// DefaultTemplate starts products with an empty labor line at laborRate.
func DefaultTemplate(laborRate float64) Template {
	labor := pricing.NewBOMLine(pricing.Labor)
	labor.Rate = laborRate
	return Template{Lines: []pricing.BOMLine{labor}}
}

// RowIssue explains why a CSV row was skipped. Row is 1-based and counts the header.
type RowIssue struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}

// Import is the outcome of reading a listings export.
type Import struct {
	Products []store.Product `json:"products"`
	Skipped  []RowIssue      `json:"skipped"`
}

var nonSKU = regexp.MustCompile(`[^A-Z0-9]+`)

// ImportEtsyCSV reads an Etsy "Download Data" listings CSV. Only TITLE,
// DESCRIPTION, PRICE, QUANTITY and SKU are used; TITLE is required. A listing
// without a SKU gets one derived from its title.
func ImportEtsyCSV(r io.Reader, tmpl Template) (Import, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return Import{}, fmt.Errorf("%w: TITLE", ErrMissingColumn)
		}
		return Import{}, fmt.Errorf("read csv header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.ToUpper(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if _, dup := cols[name]; !dup {
			cols[name] = i
		}
	}
	if _, ok := cols["TITLE"]; !ok {
		return Import{}, fmt.Errorf("%w: TITLE", ErrMissingColumn)
	}

	out := Import{Products: []store.Product{}, Skipped: []RowIssue{}}
	seen := map[string]int{}
	row := 1
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		row++
		if err != nil {
			return Import{}, fmt.Errorf("read csv row %d: %w", row, err)
		}
		field := func(name string) string {
			i, ok := cols[name]
			if !ok || i >= len(rec) {
				return ""
			}
			return strings.TrimSpace(rec[i])
		}

		title := field("TITLE")
		if title == "" {
			out.Skipped = append(out.Skipped, RowIssue{Row: row, Reason: "empty title"})
			continue
		}

		p := store.Product{
			SKU:         field("SKU"),
			Name:        title,
			Description: field("DESCRIPTION"),
			Lines:       append([]pricing.BOMLine(nil), tmpl.Lines...),
			Shipping:    map[string]float64{},
		}
		if p.SKU == "" {
			p.SKU = skuFromTitle(title)
		}
		if prev, dup := seen[strings.ToUpper(p.SKU)]; dup {
			out.Skipped = append(out.Skipped, RowIssue{Row: row, Reason: fmt.Sprintf("sku %s already used on row %d", p.SKU, prev)})
			continue
		}

		if raw := field("PRICE"); raw != "" {
			price, err := pricing.ParseNumber(strings.ReplaceAll(raw, ",", ""))
			if err != nil {
				out.Skipped = append(out.Skipped, RowIssue{Row: row, Reason: fmt.Sprintf("invalid price %q", raw)})
				continue
			}
			p.SellingPrice = &price
		}
		if raw := field("QUANTITY"); raw != "" {
			if _, err := pricing.ParseNumber(raw); err != nil {
				out.Skipped = append(out.Skipped, RowIssue{Row: row, Reason: fmt.Sprintf("invalid quantity %q", raw)})
				continue
			}
			p.Stock = pricing.Count(raw)
		}

		seen[strings.ToUpper(p.SKU)] = row
		out.Products = append(out.Products, p)
	}
	return out, nil
}

func skuFromTitle(title string) string {
	sku := strings.Trim(nonSKU.ReplaceAllString(strings.ToUpper(title), "-"), "-")
	if len(sku) > 32 {
		sku = strings.TrimRight(sku[:32], "-")
	}
	if sku == "" {
		return "ETSY"
	}
	return sku
}
