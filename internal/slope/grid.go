package slope

import "slopemap/internal/geom"

const (
	MinResolution = 3
	MaxResolution = 100
)

// ClampResolution bounds a requested grid size to [MinResolution, MaxResolution].
func ClampResolution(n int) int {
	if n < MinResolution {
		return MinResolution
	}
	if n > MaxResolution {
		return MaxResolution
	}
	return n
}

// Stats summarises a grid in slope percent.
type Stats struct {
	Min  float64 `json:"min"`
	Mean float64 `json:"mean"`
	Max  float64 `json:"max"`
}

// ScalarGrid is an n×n slope-percent grid covering BBox uniformly. Row 0 is
// the southern edge. Rows may be ragged when the provider misbehaves.
type ScalarGrid struct {
	Size        int
	BBox        *geom.BBox
	Values      [][]float64
	Source      string
	SourceLabel string
	Stats       Stats
}

// Ready reports whether the grid has enough to tessellate.
func (g *ScalarGrid) Ready() bool {
	return g != nil && g.BBox != nil && g.BBox.Valid() && len(g.Values) > 0
}

// N is the declared size, falling back to the observed row count.
func (g *ScalarGrid) N() int {
	if g.Size > 0 {
		return g.Size
	}
	return len(g.Values)
}
