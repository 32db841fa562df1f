package geom

import (
	"errors"
	"fmt"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"
	"github.com/paulmach/orb/geojson"
)

// ParseWKT parses one WKT geometry (POINT, MULTIPOINT, LINESTRING,
// MULTILINESTRING, POLYGON, MULTIPOLYGON, GEOMETRYCOLLECTION) into Data.
// Collections are flattened into one feature per member.
func ParseWKT(s string) (Data, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Data{}, errors.New("empty wkt")
	}
	g, err := wkt.Unmarshal(s)
	if err != nil {
		return Data{}, fmt.Errorf("wkt: %w", err)
	}
	fc := geojson.NewFeatureCollection()
	if col, ok := g.(orb.Collection); ok {
		for _, member := range col {
			fc.Append(geojson.NewFeature(member))
		}
	} else {
		fc.Append(geojson.NewFeature(g))
	}
	bbox, ok := CollectionBounds(fc)
	if !ok {
		return Data{}, ErrNoGeometry
	}
	return Data{Features: fc, BBox: bbox}, nil
}
