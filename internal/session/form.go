package session

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Simplici0/candle.works/internal/pricing"
	"github.com/Simplici0/candle.works/internal/store"
)

// ErrUnknownField is returned for an edit naming a field the form does not have.
var ErrUnknownField = errors.New("unknown form field")

// Form field names outside the BOM lines.
const (
	FieldSKU          = "sku"
	FieldName         = "name"
	FieldDescription  = "description"
	FieldManualWeight = "manual_weight_g"
	FieldSellingPrice = "selling_price"
	shippingPrefix    = "shipping."
)

// Line field names, used as "<kind>.<field>", e.g. "wax.amount".
const (
	LineName      = "name"
	LineAttribute = "attribute"
	LineAmount    = "amount"
	LineRate      = "rate"
	LineQuantity  = "quantity"
)

// Edit is one field change. Field is a name such as "wax.rate",
// "manual_weight_g" or "shipping.etsy".
type Edit struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

// Form is the raw text state of a product being priced. Nothing in it is
// parsed until a recompute.
type Form struct {
	SKU          string
	Name         string
	Description  string
	Lines        map[pricing.ComponentKind]pricing.RawLine
	Weight       pricing.Override
	SellingPrice pricing.Override
	Shipping     map[string]string
}

func newForm() Form {
	return Form{
		Lines:    make(map[pricing.ComponentKind]pricing.RawLine, len(pricing.Kinds)),
		Shipping: map[string]string{},
	}
}

// set applies one edit. Touching manual weight or selling price hands the
// field to the user, even when the new text is empty.
func (f *Form) set(e Edit) error {
	field := strings.TrimSpace(e.Field)
	switch field {
	case FieldSKU:
		f.SKU = e.Value
		return nil
	case FieldName:
		f.Name = e.Value
		return nil
	case FieldDescription:
		f.Description = e.Value
		return nil
	case FieldManualWeight:
		f.Weight = pricing.Override{Raw: e.Value, Touched: true}
		return nil
	case FieldSellingPrice:
		f.SellingPrice = pricing.Override{Raw: e.Value, Touched: true}
		return nil
	}

	if market, ok := strings.CutPrefix(field, shippingPrefix); ok && market != "" {
		f.Shipping[market] = e.Value
		return nil
	}

	kindLabel, lineField, ok := strings.Cut(field, ".")
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownField, e.Field)
	}
	kind, err := pricing.ParseKind(kindLabel)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrUnknownField, e.Field)
	}
	line := f.line(kind)
	switch lineField {
	case LineName:
		line.Name = e.Value
	case LineAttribute:
		line.Attribute = e.Value
	case LineAmount:
		line.Amount = e.Value
	case LineRate:
		line.Rate = e.Value
	case LineQuantity:
		line.Quantity = e.Value
	default:
		return fmt.Errorf("%w: %q", ErrUnknownField, e.Field)
	}
	f.Lines[kind] = line
	return nil
}

func (f *Form) line(k pricing.ComponentKind) pricing.RawLine {
	if l, ok := f.Lines[k]; ok {
		return l
	}
	return pricing.RawLine{Kind: k, Quantity: "1"}
}

// bomLines parses every line in canonical kind order.
func (f Form) bomLines() []pricing.BOMLine {
	lines := make([]pricing.BOMLine, 0, len(f.Lines))
	for _, k := range pricing.Kinds {
		if raw, ok := f.Lines[k]; ok {
			lines = append(lines, raw.Parse())
		}
	}
	return lines
}

// fromProduct fills a form with a stored product's values.
func fromProduct(p store.Product) Form {
	f := newForm()
	f.SKU = p.SKU
	f.Name = p.Name
	f.Description = p.Description
	for _, l := range p.Lines {
		f.Lines[l.Kind] = pricing.RawLine{
			Kind:      l.Kind,
			Name:      l.Name,
			Attribute: l.Attribute,
			Amount:    pricing.Plain(l.Amount),
			Rate:      pricing.Plain(l.Rate),
			Quantity:  fmt.Sprint(l.Quantity),
		}
	}
	if p.ManualWeightG != nil {
		f.Weight = pricing.Override{Raw: pricing.Plain(*p.ManualWeightG), Touched: true}
	}
	if p.SellingPrice != nil {
		f.SellingPrice = pricing.Override{Raw: pricing.Plain(*p.SellingPrice), Touched: true}
	}
	for market, cost := range p.Shipping {
		f.Shipping[market] = pricing.Plain(cost)
	}
	return f
}

// toProduct folds the form back into a record. Only user-owned override
// fields are persisted, and shipping entries that do not parse are dropped.
func (f Form) toProduct(id int64, stock int) store.Product {
	p := store.Product{
		ID:          id,
		SKU:         strings.TrimSpace(f.SKU),
		Name:        strings.TrimSpace(f.Name),
		Description: f.Description,
		Lines:       f.bomLines(),
		Stock:       stock,
		Shipping:    map[string]float64{},
	}
	if v, ok := f.Weight.Manual(); ok {
		p.ManualWeightG = &v
	}
	if v, ok := f.SellingPrice.Manual(); ok {
		p.SellingPrice = &v
	}
	for market, raw := range f.Shipping {
		if v, err := pricing.ParseNumber(raw); err == nil {
			p.Shipping[market] = v
		}
	}
	return p
}
