package pricing

import "github.com/shopspring/decimal"

// Round4 rounds to the internal four-decimal precision.
func Round4(v float64) float64 {
	return decimal.NewFromFloat(v).Round(4).InexactFloat64()
}

// Fixed2 renders v with exactly two decimals.
func Fixed2(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}

// Money renders a currency amount as "$X.XX".
func Money(v float64) string {
	d := decimal.NewFromFloat(v).Round(2)
	if d.IsNegative() {
		return "-$" + d.Abs().StringFixed(2)
	}
	return "$" + d.StringFixed(2)
}

// Grams renders a weight with one decimal.
func Grams(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(1)
}

// Plain renders a quantity without trailing zeros.
func Plain(v float64) string {
	return decimal.NewFromFloat(v).Round(4).String()
}
