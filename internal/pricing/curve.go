package pricing

const (
	DefaultMarkupMax   = 5.0
	DefaultMarkupMin   = 1.5
	DefaultDecayFactor = 20.0
)

// Curve maps material cost to a markup multiplier that decays hyperbolically
// from MarkupMax toward MarkupMin as cost grows.
type Curve struct {
	MarkupMax   float64
	MarkupMin   float64
	DecayFactor float64
}

// DefaultCurve returns the stock curve parameters.
func DefaultCurve() Curve {
	return Curve{
		MarkupMax:   DefaultMarkupMax,
		MarkupMin:   DefaultMarkupMin,
		DecayFactor: DefaultDecayFactor,
	}
}

// Valid reports whether the parameters describe a usable curve.
func (c Curve) Valid() bool {
	return c.MarkupMax > 0 && c.MarkupMin > 0 && c.DecayFactor > 0 && c.MarkupMin <= c.MarkupMax
}

// Markup returns the multiplier for the given material cost.
func (c Curve) Markup(materialCost float64) float64 {
	if !c.Valid() {
		c = DefaultCurve()
	}
	materialCost = sanitize(materialCost)
	return c.MarkupMin + (c.MarkupMax-c.MarkupMin)/(1+materialCost/c.DecayFactor)
}

// Recommendation is a suggested retail price and the multiplier behind it.
type Recommendation struct {
	Price      float64
	Multiplier float64
}

// Recommend marks materials up along the curve; labor passes through 1:1.
func (c Curve) Recommend(materialCost, laborCost float64) Recommendation {
	materialCost = sanitize(materialCost)
	markup := c.Markup(materialCost)
	return Recommendation{
		Price:      materialCost*markup + sanitize(laborCost),
		Multiplier: markup,
	}
}

// String renders "$PRICE (xMULT)".
func (r Recommendation) String() string {
	return Money(r.Price) + " (x" + Fixed2(r.Multiplier) + ")"
}
