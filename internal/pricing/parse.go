package pricing

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var (
	// ErrInvalidInput is returned for text that is not a finite, non-negative number.
	ErrInvalidInput = errors.New("invalid numeric input")
	// ErrNoBreakEven is returned when no price can cover costs and fees.
	ErrNoBreakEven = errors.New("no break-even price")
)

const maxQuantity = 1_000_000

// ParseNumber parses user-entered text strictly.
func ParseNumber(raw string) (float64, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, fmt.Errorf("%w: empty", ErrInvalidInput)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidInput, raw)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidInput, raw)
	}
	if v < 0 {
		return 0, fmt.Errorf("%w: negative %q", ErrInvalidInput, raw)
	}
	return v, nil
}

// Number coerces user-entered text to a non-negative number; anything unparseable is zero.
func Number(raw string) float64 {
	v, err := ParseNumber(raw)
	if err != nil {
		return 0
	}
	return v
}

// Count coerces user-entered text to a non-negative whole quantity.
func Count(raw string) int {
	v := math.Floor(Number(raw))
	if v > maxQuantity {
		return maxQuantity
	}
	return int(v)
}

func sanitize(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}
