package pricing

import (
	"fmt"
	"math"
)

// ErrorToken is displayed in place of a break-even price that cannot be computed.
const ErrorToken = "Error"

const (
	netTolerance     = 0.001
	maxBisectRounds  = 200
	maxWidenAttempts = 60
)

// BreakEven returns the minimum price at which a sale nets zero after cogs,
// carrier shipping and the marketplace's fees.
//
// Affine models are inverted in closed form:
//
//	price = (cogs + shipping + fixed + rate*shipping) / (1 - rate)
//
// anything else is solved by bisection on [cogs, 10*(cogs+shipping)], widening
// the upper bound if fees are still not covered there.
func BreakEven(model FeeModel, cogs, shipping float64) (float64, error) {
	if !finiteNonNegative(cogs) || !finiteNonNegative(shipping) {
		return 0, fmt.Errorf("%w: cogs=%v shipping=%v", ErrInvalidInput, cogs, shipping)
	}
	if am, ok := model.(AffineFeeModel); ok {
		if rate, fixed, ok := am.Affine(); ok {
			if rate >= 1 {
				return 0, fmt.Errorf("%w: %s fee rate %.4f", ErrNoBreakEven, model.Name(), rate)
			}
			return (cogs + shipping + fixed + rate*shipping) / (1 - rate), nil
		}
	}
	return bisectBreakEven(model, cogs, shipping)
}

func bisectBreakEven(model FeeModel, cogs, shipping float64) (float64, error) {
	net := func(price float64) float64 { return Net(model, price, cogs, shipping) }

	lo := cogs
	if net(lo) >= 0 {
		return lo, nil
	}
	hi := 10 * (cogs + shipping)
	if hi <= lo {
		hi = lo + 1
	}
	for i := 0; net(hi) < 0; i++ {
		if i >= maxWidenAttempts {
			return 0, fmt.Errorf("%w: %s", ErrNoBreakEven, model.Name())
		}
		lo, hi = hi, hi*2
	}

	for i := 0; i < maxBisectRounds; i++ {
		mid := (lo + hi) / 2
		n := net(mid)
		if math.Abs(n) <= netTolerance {
			return mid, nil
		}
		if n < 0 {
			lo = mid
		} else {
			hi = mid
		}
	}
	return hi, nil
}

// BreakEvenText solves from raw field text and renders "$X.XX", or the
// ErrorToken when either input is not a valid number.
func BreakEvenText(model FeeModel, cogsRaw, shippingRaw string) string {
	cogs, err := ParseNumber(cogsRaw)
	if err != nil {
		return ErrorToken
	}
	shipping, err := ParseNumber(shippingRaw)
	if err != nil {
		return ErrorToken
	}
	price, err := BreakEven(model, cogs, shipping)
	if err != nil {
		return ErrorToken
	}
	return Money(price)
}

func finiteNonNegative(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0
}
