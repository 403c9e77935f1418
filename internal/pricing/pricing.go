package pricing

// Market is a place a product is sold, with the fee model that applies there.
type Market struct {
	ID   string
	Name string
	Fees FeeModel
}

// Input represents the complete state a pricing pass is computed from.
type Input struct {
	Lines        []BOMLine
	ManualWeight Override
	// SellingPrice is evaluated per market when the user has set it.
	SellingPrice Override
	// Shipping holds the raw carrier cost text per market id.
	Shipping map[string]string
	Curve    Curve
	Markets  []Market
}

// PriceCheck is the outcome of selling at a particular price on a market.
type PriceCheck struct {
	Price  float64 `json:"price"`
	Fees   Fees    `json:"fees"`
	Net    float64 `json:"net"`
	Margin float64 `json:"margin"`
}

func checkPrice(model FeeModel, price, cogs, shipping float64) PriceCheck {
	fees := model.Fees(price, shipping)
	net := price - cogs - shipping - fees.Total
	pc := PriceCheck{Price: price, Fees: fees, Net: net}
	if price > 0 {
		pc.Margin = net / price
	}
	return pc
}

// MarketResult contains the break-even solution for one market.
type MarketResult struct {
	MarketID string
	Name     string
	Shipping float64
	// OK is false when shipping was not a valid number or no price breaks even.
	OK        bool
	BreakEven PriceCheck
	// AtSellingPrice is set when the user entered a selling price.
	AtSellingPrice *PriceCheck
}

// BreakEvenText renders the break-even price or the error token.
func (m MarketResult) BreakEvenText() string {
	if !m.OK {
		return ErrorToken
	}
	return Money(m.BreakEven.Price)
}

// TotalFeesText renders the fees charged at the break-even price, or the
// error token when there is none.
func (m MarketResult) TotalFeesText() string {
	if !m.OK {
		return ErrorToken
	}
	return Money(m.BreakEven.Fees.Total)
}

// NetAtBreakEvenText renders the net at the break-even price.
func (m MarketResult) NetAtBreakEvenText() string {
	if !m.OK {
		return ErrorToken
	}
	return Money(m.BreakEven.Net)
}

// Result groups the full pricing output. It is always produced whole.
type Result struct {
	Revision     uint64
	COGS         float64
	MaterialCost float64
	LaborCost    float64
	Breakdown    []BreakdownRow
	Weight       WeightResolution
	// AutoWeightG is the weight summed from the BOM, regardless of any override.
	AutoWeightG float64
	Recommended Recommendation
	Markets     []MarketResult
}

// Market returns the result for a market id.
func (r Result) Market(id string) (MarketResult, bool) {
	for _, m := range r.Markets {
		if m.MarketID == id {
			return m, true
		}
	}
	return MarketResult{}, false
}

// Calculate runs one full pricing pass. It performs no I/O and never fails;
// invalid inputs degrade to zero contributions or to the error token.
func Calculate(in Input) Result {
	costing := Aggregate(in.Lines)
	cogs := costing.COGS()

	curve := in.Curve
	if !curve.Valid() {
		curve = DefaultCurve()
	}

	res := Result{
		COGS:         cogs,
		MaterialCost: costing.MaterialCost,
		LaborCost:    costing.LaborCost,
		Breakdown:    costing.Breakdown,
		Weight:       ResolveWeight(in.Lines, in.ManualWeight),
		AutoWeightG:  costing.WeightG,
		Recommended:  curve.Recommend(costing.MaterialCost, costing.LaborCost),
		Markets:      make([]MarketResult, 0, len(in.Markets)),
	}

	sellingPrice, hasSellingPrice := in.SellingPrice.Manual()

	for _, m := range in.Markets {
		mr := MarketResult{MarketID: m.ID, Name: m.Name}
		shipping, err := ParseNumber(in.Shipping[m.ID])
		if err == nil {
			mr.Shipping = shipping
			if price, err := BreakEven(m.Fees, cogs, shipping); err == nil {
				mr.OK = true
				mr.BreakEven = checkPrice(m.Fees, price, cogs, shipping)
			}
			if hasSellingPrice {
				pc := checkPrice(m.Fees, sellingPrice, cogs, shipping)
				mr.AtSellingPrice = &pc
			}
		}
		res.Markets = append(res.Markets, mr)
	}

	return res
}
