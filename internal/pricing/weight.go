package pricing

// Override is a form field the user may take over from auto-fill.
// Touched is set when the user edits the field; auto-filled text leaves it unset.
type Override struct {
	Raw     string `json:"raw"`
	Touched bool   `json:"touched"`
}

// Manual returns the user-entered value when the field was touched and holds a
// valid non-negative number.
func (o Override) Manual() (float64, bool) {
	if !o.Touched {
		return 0, false
	}
	v, err := ParseNumber(o.Raw)
	if err != nil {
		return 0, false
	}
	return v, true
}

// Suggest returns the field auto-filled with text, unless the user owns it.
func (o Override) Suggest(text string) Override {
	if _, ok := o.Manual(); ok {
		return o
	}
	return Override{Raw: text}
}

// WeightResolution is the finished-unit weight and where it came from.
type WeightResolution struct {
	Grams  float64
	Manual bool
}

// ResolveWeight applies the manual-override precedence: a valid manual weight is
// used verbatim, otherwise the weight-bearing lines are summed.
func ResolveWeight(lines []BOMLine, manual Override) WeightResolution {
	if v, ok := manual.Manual(); ok {
		return WeightResolution{Grams: v, Manual: true}
	}
	var total float64
	for _, l := range lines {
		total += EvaluateLine(l).WeightG
	}
	return WeightResolution{Grams: total}
}
