package geom

import (
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

var (
	// ErrMalformedBBox is returned for bbox strings that are not exactly four
	// comma-separated finite numbers.
	ErrMalformedBBox = errors.New("bbox must have exactly 4 comma-separated numbers")
	// ErrNoGeometry is returned when an input parses but holds no geometry.
	ErrNoGeometry = errors.New("no geometries found")
)

// Point is a geographic position in degrees.
type Point struct {
	X float64 // longitude
	Y float64 // latitude
}

// BBox is an axis-aligned geographic rectangle in degrees.
type BBox struct {
	MinX float64
	MinY float64
	MaxX float64
	MaxY float64
}

// NewBBox builds a bbox from two arbitrary corners, normalising swapped ones.
func NewBBox(x0, y0, x1, y1 float64) BBox {
	return BBox{
		MinX: math.Min(x0, x1),
		MinY: math.Min(y0, y1),
		MaxX: math.Max(x0, x1),
		MaxY: math.Max(y0, y1),
	}
}

// ParseBBox parses "minX,minY,maxX,maxY". Corners are taken as given;
// callers check Valid before using the result as a region.
func ParseBBox(s string) (BBox, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return BBox{}, ErrMalformedBBox
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return BBox{}, ErrMalformedBBox
		}
		v[i] = f
	}
	return BBox{MinX: v[0], MinY: v[1], MaxX: v[2], MaxY: v[3]}, nil
}

// String formats the bbox as "minX,minY,maxX,maxY" at full precision.
func (b BBox) String() string {
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
	return f(b.MinX) + "," + f(b.MinY) + "," + f(b.MaxX) + "," + f(b.MaxY)
}

// Valid reports whether the box has a positive extent on both axes.
func (b BBox) Valid() bool { return b.MaxX > b.MinX && b.MaxY > b.MinY }

func (b BBox) Width() float64  { return b.MaxX - b.MinX }
func (b BBox) Height() float64 { return b.MaxY - b.MinY }

func (b BBox) Center() Point {
	return Point{X: (b.MinX + b.MaxX) / 2, Y: (b.MinY + b.MaxY) / 2}
}

// Contains reports whether p lies inside b, edges included.
func (b BBox) Contains(p Point) bool {
	return p.X >= b.MinX && p.X <= b.MaxX && p.Y >= b.MinY && p.Y <= b.MaxY
}

// Bound converts to an orb.Bound.
func (b BBox) Bound() orb.Bound {
	return orb.Bound{Min: orb.Point{b.MinX, b.MinY}, Max: orb.Point{b.MaxX, b.MaxY}}
}

// Ring returns the closed outline of the box, counter-clockwise from the
// south-west corner.
func (b BBox) Ring() orb.Ring {
	return orb.Ring{
		{b.MinX, b.MinY},
		{b.MaxX, b.MinY},
		{b.MaxX, b.MaxY},
		{b.MinX, b.MaxY},
		{b.MinX, b.MinY},
	}
}

// FromBound converts an orb.Bound back to a BBox.
func FromBound(b orb.Bound) BBox {
	return BBox{MinX: b.Min[0], MinY: b.Min[1], MaxX: b.Max[0], MaxY: b.Max[1]}
}

// Data is user-supplied geometry ready to be published to the map.
type Data struct {
	Features *geojson.FeatureCollection
	BBox     BBox
}

// Counts returns the number of point, line and polygon features.
func (d Data) Counts() (points, lines, polygons int) {
	if d.Features == nil {
		return 0, 0, 0
	}
	for _, f := range d.Features.Features {
		switch f.Geometry.(type) {
		case orb.Point, orb.MultiPoint:
			points++
		case orb.LineString, orb.MultiLineString:
			lines++
		case orb.Polygon, orb.MultiPolygon, orb.Ring:
			polygons++
		}
	}
	return points, lines, polygons
}

// CollectionBounds returns the union of all feature bounds.
func CollectionBounds(fc *geojson.FeatureCollection) (BBox, bool) {
	if fc == nil {
		return BBox{}, false
	}
	var (
		bound orb.Bound
		seen  bool
	)
	for _, f := range fc.Features {
		if f == nil || f.Geometry == nil {
			continue
		}
		if !seen {
			bound = f.Geometry.Bound()
			seen = true
			continue
		}
		bound = bound.Union(f.Geometry.Bound())
	}
	return FromBound(bound), seen
}
