package slope

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Feature property keys written by Tessellate.
const (
	PropSlope = "slope"
	PropColor = "color"
	PropRow   = "row"
	PropCol   = "col"
)

// Tessellate turns grid into one square polygon per cell, classified with
// ranges. A grid that is not ready yields an empty collection. Cells outside
// the declared n×n extent, missing cells of short rows and non-finite values
// are skipped.
func Tessellate(grid *ScalarGrid, ranges []Range) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	if !grid.Ready() {
		return fc
	}
	n := grid.N()
	b := grid.BBox
	dx := (b.MaxX - b.MinX) / float64(n)
	dy := (b.MaxY - b.MinY) / float64(n)

	for r, row := range grid.Values {
		if r >= n {
			break
		}
		for c, v := range row {
			if c >= n {
				break
			}
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			x0 := b.MinX + float64(c)*dx
			y0 := b.MinY + float64(r)*dy
			ring := orb.Ring{
				{x0, y0},
				{x0 + dx, y0},
				{x0 + dx, y0 + dy},
				{x0, y0 + dy},
				{x0, y0},
			}
			f := geojson.NewFeature(orb.Polygon{ring})
			f.Properties[PropSlope] = math.Round(v*10) / 10
			f.Properties[PropColor] = Classify(v, ranges)
			f.Properties[PropRow] = r
			f.Properties[PropCol] = c
			fc.Append(f)
		}
	}
	return fc
}
