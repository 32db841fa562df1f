// Package slope classifies terrain-slope grids into colour buckets and
// tessellates them into vector polygons.
package slope

import "fmt"

const (
	// MinRanges is the smallest table a RangeTable will shrink to.
	MinRanges = 2

	// OpenEndedFrom is the lower bound at which a label switches to "> min%".
	OpenEndedFrom = 75.0

	// DefaultWidth is the span of a range created by Add.
	DefaultWidth = 25.0

	// DefaultStart is where Add starts when the table has no entries.
	DefaultStart = 100.0

	// NewRangeColor is the colour given to ranges created by Add.
	NewRangeColor = "#a855f7"
)

// Range is a [Min, Max) slope-percent bucket mapped to a display colour.
type Range struct {
	Min   float64 `json:"min" mapstructure:"min"`
	Max   float64 `json:"max" mapstructure:"max"`
	Color string  `json:"color" mapstructure:"color"`
	Label string  `json:"label" mapstructure:"label"`
}

// Label derives the display label for a range with the given bounds.
func Label(min, max float64) string {
	if min >= OpenEndedFrom {
		return fmt.Sprintf("> %g%%", min)
	}
	return fmt.Sprintf("%g – %g%%", min, max)
}

// DefaultRanges is the table a session starts with.
func DefaultRanges() []Range {
	mk := func(min, max float64, color string) Range {
		return Range{Min: min, Max: max, Color: color, Label: Label(min, max)}
	}
	return []Range{
		mk(0, 5, "#22c55e"),
		mk(5, 15, "#eab308"),
		mk(15, 30, "#f97316"),
		mk(30, 75, "#ef4444"),
		mk(75, 100, "#7f1d1d"),
	}
}

// RangeTable is an ordered, user-editable list of ranges. Order is
// significant: Classify takes the first match. The table never holds fewer
// than MinRanges entries once constructed; validity of the bounds themselves
// (sortedness, overlap) is left to the caller.
type RangeTable struct {
	ranges []Range
}

// NewRangeTable copies initial into a new table, falling back to
// DefaultRanges when initial is too short.
func NewRangeTable(initial []Range) *RangeTable {
	if len(initial) < MinRanges {
		initial = DefaultRanges()
	}
	rs := make([]Range, len(initial))
	copy(rs, initial)
	return &RangeTable{ranges: rs}
}

// Len returns the number of ranges.
func (t *RangeTable) Len() int { return len(t.ranges) }

// Ranges returns the live slice in classification order. Callers must not
// modify it; use Snapshot for an independent copy.
func (t *RangeTable) Ranges() []Range { return t.ranges }

// Snapshot returns a copy suitable for display or persistence.
func (t *RangeTable) Snapshot() []Range {
	out := make([]Range, len(t.ranges))
	copy(out, t.ranges)
	return out
}

// At returns range i.
func (t *RangeTable) At(i int) (Range, bool) {
	if i < 0 || i >= len(t.ranges) {
		return Range{}, false
	}
	return t.ranges[i], true
}

// Add appends a DefaultWidth-wide range starting at the current last Max.
func (t *RangeTable) Add() Range {
	start := DefaultStart
	if n := len(t.ranges); n > 0 {
		start = t.ranges[n-1].Max
	}
	r := Range{
		Min:   start,
		Max:   start + DefaultWidth,
		Color: NewRangeColor,
		Label: Label(start, start+DefaultWidth),
	}
	t.ranges = append(t.ranges, r)
	return r
}

// EditMin replaces the lower bound of range i and re-derives its label.
func (t *RangeTable) EditMin(i int, v float64) bool {
	if i < 0 || i >= len(t.ranges) {
		return false
	}
	r := &t.ranges[i]
	r.Min = v
	r.Label = Label(r.Min, r.Max)
	return true
}

// EditMax replaces the upper bound of range i and re-derives its label.
func (t *RangeTable) EditMax(i int, v float64) bool {
	if i < 0 || i >= len(t.ranges) {
		return false
	}
	r := &t.ranges[i]
	r.Max = v
	r.Label = Label(r.Min, r.Max)
	return true
}

// EditColor replaces the colour of range i.
func (t *RangeTable) EditColor(i int, color string) bool {
	if i < 0 || i >= len(t.ranges) {
		return false
	}
	t.ranges[i].Color = color
	return true
}

// Delete removes range i unless the table would drop below MinRanges.
func (t *RangeTable) Delete(i int) bool {
	if i < 0 || i >= len(t.ranges) || len(t.ranges) <= MinRanges {
		return false
	}
	t.ranges = append(t.ranges[:i], t.ranges[i+1:]...)
	return true
}
