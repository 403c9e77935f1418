package pricing

import "sort"

// Costing is the aggregated manufacturing cost of one finished unit.
type Costing struct {
	Total        float64
	MaterialCost float64
	LaborCost    float64
	WeightG      float64
	Breakdown    []BreakdownRow
}

// Aggregate evaluates every line and sums the results at full precision.
// The breakdown follows the canonical kind order regardless of input order.
func Aggregate(lines []BOMLine) Costing {
	ordered := make([]BOMLine, len(lines))
	copy(ordered, lines)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Kind < ordered[j].Kind })

	c := Costing{Breakdown: make([]BreakdownRow, 0, len(ordered))}
	for _, l := range ordered {
		res := EvaluateLine(l)
		c.WeightG += res.WeightG
		if !res.Active {
			continue
		}
		c.Total += res.Cost
		if res.Kind == Labor {
			c.LaborCost += res.Cost
		} else {
			c.MaterialCost += res.Cost
		}
		c.Breakdown = append(c.Breakdown, res.Row)
	}
	return c
}

// COGS returns the total at the four-decimal internal precision.
func (c Costing) COGS() float64 {
	return Round4(c.Total)
}
