package pricing

import (
	"fmt"
	"strings"
)

// ComponentKind identifies one of the fixed Bill-of-Materials categories.
type ComponentKind int

const (
	Wax ComponentKind = iota
	Fragrance
	Wick
	PrimaryContainer
	SecondaryContainer
	Box
	Wrap
	BusinessCard
	Labor
)

// Kinds lists every component kind in the order it is presented to users.
var Kinds = []ComponentKind{
	Wax,
	Fragrance,
	Wick,
	PrimaryContainer,
	SecondaryContainer,
	Box,
	Wrap,
	BusinessCard,
	Labor,
}

// UnitSpec describes how a kind's amount and rate are denominated and combined.
type UnitSpec struct {
	Label      string
	AmountUnit string
	RateUnit   string
	Weighted   bool

	cost     func(BOMLine) float64
	quantity func(BOMLine) float64
}

func gramsAtKilogramRate(l BOMLine) float64 { return l.Amount * l.Rate / 1000 }
func countAtUnitRate(l BOMLine) float64     { return float64(l.Quantity) * l.Rate }
func flatRate(l BOMLine) float64            { return l.Rate }
func minutesAtHourlyRate(l BOMLine) float64 { return l.Amount / 60 * l.Rate }

func amountUsed(l BOMLine) float64   { return l.Amount }
func quantityUsed(l BOMLine) float64 { return float64(l.Quantity) }
func singleUnit(BOMLine) float64     { return 1 }

var unitTable = map[ComponentKind]UnitSpec{
	Wax:                {Label: "wax", AmountUnit: "g", RateUnit: "kg", Weighted: true, cost: gramsAtKilogramRate, quantity: amountUsed},
	Fragrance:          {Label: "fragrance", AmountUnit: "g", RateUnit: "kg", Weighted: true, cost: gramsAtKilogramRate, quantity: amountUsed},
	Wick:               {Label: "wick", AmountUnit: "unit", RateUnit: "unit", cost: countAtUnitRate, quantity: quantityUsed},
	PrimaryContainer:   {Label: "primary_container", AmountUnit: "unit", RateUnit: "unit", cost: countAtUnitRate, quantity: quantityUsed},
	SecondaryContainer: {Label: "secondary_container", AmountUnit: "g", RateUnit: "kg", Weighted: true, cost: gramsAtKilogramRate, quantity: amountUsed},
	Box:                {Label: "box", AmountUnit: "unit", RateUnit: "unit", cost: countAtUnitRate, quantity: quantityUsed},
	Wrap:               {Label: "wrap", AmountUnit: "unit", RateUnit: "unit", cost: flatRate, quantity: singleUnit},
	BusinessCard:       {Label: "business_card", AmountUnit: "unit", RateUnit: "unit", cost: flatRate, quantity: singleUnit},
	Labor:              {Label: "labor", AmountUnit: "min", RateUnit: "h", cost: minutesAtHourlyRate, quantity: amountUsed},
}

// Unit returns the unit semantics for k. Unknown kinds get a zero-cost spec.
func (k ComponentKind) Unit() UnitSpec {
	if spec, ok := unitTable[k]; ok {
		return spec
	}
	return UnitSpec{Label: "unknown", cost: func(BOMLine) float64 { return 0 }, quantity: singleUnit}
}

// Valid reports whether k is one of the declared kinds.
func (k ComponentKind) Valid() bool {
	_, ok := unitTable[k]
	return ok
}

func (k ComponentKind) String() string {
	return k.Unit().Label
}

// ParseKind resolves a kind from its label ("wax", "primary_container", ...).
func ParseKind(s string) (ComponentKind, error) {
	label := strings.ToLower(strings.TrimSpace(s))
	for _, k := range Kinds {
		if unitTable[k].Label == label {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown component kind %q", s)
}

func (k ComponentKind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("unknown component kind %d", int(k))
	}
	return []byte(k.String()), nil
}

func (k *ComponentKind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}
