package pricing

// BOMLine is one Bill-of-Materials component of a product.
type BOMLine struct {
	Kind ComponentKind `json:"kind"`
	Name string        `json:"name"`
	// Attribute is free text; for fragrance lines it holds the fragrance type.
	Attribute string  `json:"attribute,omitempty"`
	Amount    float64 `json:"amount"`
	Rate      float64 `json:"rate"`
	Quantity  int     `json:"quantity"`
}

// NewBOMLine returns a line of kind k with the default quantity of one.
func NewBOMLine(k ComponentKind) BOMLine {
	return BOMLine{Kind: k, Quantity: 1}
}

// RawLine holds the text of a line exactly as it was typed into a form.
type RawLine struct {
	Kind      ComponentKind
	Name      string
	Attribute string
	Amount    string
	Rate      string
	Quantity  string
}

// Parse coerces the raw text into a line. Empty, garbage and negative values become zero.
func (r RawLine) Parse() BOMLine {
	return BOMLine{
		Kind:      r.Kind,
		Name:      r.Name,
		Attribute: r.Attribute,
		Amount:    Number(r.Amount),
		Rate:      Number(r.Rate),
		Quantity:  Count(r.Quantity),
	}
}

// BreakdownRow is the display row of an active line.
type BreakdownRow struct {
	Kind       ComponentKind `json:"kind"`
	Name       string        `json:"name"`
	Amount     float64       `json:"amount"`
	AmountUnit string        `json:"amount_unit"`
	Rate       float64       `json:"rate"`
	RateUnit   string        `json:"rate_unit"`
	LineTotal  float64       `json:"line_total"`
}

// AmountWithUnit renders the consumed amount, e.g. "100 g" or "2 unit".
func (r BreakdownRow) AmountWithUnit() string {
	return Plain(r.Amount) + " " + r.AmountUnit
}

// UnitCostWithUnit renders the rate, e.g. "$10.00/kg".
func (r BreakdownRow) UnitCostWithUnit() string {
	return Money(r.Rate) + "/" + r.RateUnit
}

// LineResult is the evaluation of one BOM line.
type LineResult struct {
	Kind    ComponentKind
	Cost    float64
	WeightG float64
	Active  bool
	Row     BreakdownRow
}

// EvaluateLine computes a line's cost and weight contribution. It never fails:
// negative or non-finite inputs are treated as absent.
func EvaluateLine(l BOMLine) LineResult {
	l.Amount = sanitize(l.Amount)
	l.Rate = sanitize(l.Rate)
	if l.Quantity < 0 {
		l.Quantity = 0
	}

	spec := l.Kind.Unit()
	res := LineResult{Kind: l.Kind}
	if spec.Weighted {
		res.WeightG = l.Amount
	}

	cost := sanitize(spec.cost(l))
	if cost <= 0 {
		return res
	}

	res.Cost = cost
	res.Active = true
	res.Row = BreakdownRow{
		Kind:       l.Kind,
		Name:       l.Name,
		Amount:     spec.quantity(l),
		AmountUnit: spec.AmountUnit,
		Rate:       l.Rate,
		RateUnit:   spec.RateUnit,
		LineTotal:  cost,
	}
	return res
}
