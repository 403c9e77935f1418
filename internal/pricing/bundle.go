package pricing

// BundleRow is the display form of a breakdown row.
type BundleRow struct {
	Kind             string `json:"kind"`
	Name             string `json:"name,omitempty"`
	AmountWithUnit   string `json:"amount_with_unit"`
	UnitCostWithUnit string `json:"unit_cost_with_unit"`
	LineTotal        string `json:"line_total"`
}

// BundleMarket is the display form of a market result.
type BundleMarket struct {
	Name           string `json:"name"`
	BreakEvenPrice string `json:"break_even_price"`
	TotalFees      string `json:"total_fees"`
	NetAtBreakEven string `json:"net_at_break_even"`
	// Set only when a selling price was entered.
	NetAtSellingPrice    string `json:"net_at_selling_price,omitempty"`
	MarginAtSellingPrice string `json:"margin_at_selling_price,omitempty"`
}

// Bundle is the result as presented to a client.
type Bundle struct {
	Revision         uint64                  `json:"revision"`
	COGS             string                  `json:"cogs"`
	Breakdown        []BundleRow             `json:"breakdown"`
	ResolvedWeightG  string                  `json:"resolved_weight_g"`
	WeightIsManual   bool                    `json:"weight_is_manual"`
	RecommendedPrice string                  `json:"recommended_price"`
	PerMarket        map[string]BundleMarket `json:"per_market"`
}

// Bundle renders r for display.
func (r Result) Bundle() Bundle {
	b := Bundle{
		Revision:         r.Revision,
		COGS:             Money(r.COGS),
		Breakdown:        make([]BundleRow, 0, len(r.Breakdown)),
		ResolvedWeightG:  Grams(r.Weight.Grams),
		WeightIsManual:   r.Weight.Manual,
		RecommendedPrice: r.Recommended.String(),
		PerMarket:        make(map[string]BundleMarket, len(r.Markets)),
	}
	for _, row := range r.Breakdown {
		b.Breakdown = append(b.Breakdown, BundleRow{
			Kind:             row.Kind.String(),
			Name:             row.Name,
			AmountWithUnit:   row.AmountWithUnit(),
			UnitCostWithUnit: row.UnitCostWithUnit(),
			LineTotal:        Money(row.LineTotal),
		})
	}
	for _, m := range r.Markets {
		bm := BundleMarket{
			Name:           m.Name,
			BreakEvenPrice: m.BreakEvenText(),
			TotalFees:      m.TotalFeesText(),
			NetAtBreakEven: m.NetAtBreakEvenText(),
		}
		if m.AtSellingPrice != nil {
			bm.NetAtSellingPrice = Money(m.AtSellingPrice.Net)
			bm.MarginAtSellingPrice = Fixed2(m.AtSellingPrice.Margin*100) + "%"
		}
		b.PerMarket[m.MarketID] = bm
	}
	return b
}
