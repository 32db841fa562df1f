package slope

// DefaultColor is returned for values no range claims.
const DefaultColor = "#9ca3af"

// Classify returns the colour for value.
//
// The last range is an open-ended catch-all: any value at or above its Min
// takes its colour, whatever its Max says and even when an earlier range
// nominally covers the value too. Below that, ranges are walked in order and
// the first with Min <= value < Max wins. Everything else, and every value
// against an empty table, gets DefaultColor.
func Classify(value float64, ranges []Range) string {
	n := len(ranges)
	if n == 0 {
		return DefaultColor
	}
	if last := ranges[n-1]; value >= last.Min {
		return last.Color
	}
	for _, r := range ranges[:n-1] {
		if r.Min <= value && value < r.Max {
			return r.Color
		}
	}
	return DefaultColor
}
