package geom

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/paulmach/orb/geojson"
)

// LoadGeo reads a GeoJSON file (FeatureCollection, Feature or bare geometry).
func LoadGeo(path string) (Data, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Data{}, err
	}
	return ParseGeoJSON(b)
}

// ParseGeoJSON decodes a GeoJSON document into a FeatureCollection. Features
// without geometry are dropped.
func ParseGeoJSON(b []byte) (Data, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(b, &head); err != nil {
		return Data{}, err
	}

	fc := geojson.NewFeatureCollection()
	switch head.Type {
	case "FeatureCollection":
		in, err := geojson.UnmarshalFeatureCollection(b)
		if err != nil {
			return Data{}, err
		}
		for _, f := range in.Features {
			if f != nil && f.Geometry != nil {
				fc.Append(f)
			}
		}
	case "Feature":
		f, err := geojson.UnmarshalFeature(b)
		if err != nil {
			return Data{}, err
		}
		if f.Geometry != nil {
			fc.Append(f)
		}
	case "":
		return Data{}, fmt.Errorf("invalid geojson: missing type")
	default:
		g, err := geojson.UnmarshalGeometry(b)
		if err != nil {
			return Data{}, err
		}
		if g.Geometry() != nil {
			fc.Append(geojson.NewFeature(g.Geometry()))
		}
	}

	bbox, ok := CollectionBounds(fc)
	if !ok {
		return Data{}, ErrNoGeometry
	}
	return Data{Features: fc, BBox: bbox}, nil
}

// LookupProperty finds key in props, preferring an exact match and falling
// back to a case-insensitive one.
func LookupProperty(props geojson.Properties, key string) (interface{}, bool) {
	if v, ok := props[key]; ok {
		return v, true
	}
	for k, v := range props {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	return nil, false
}

// NormalizeProperties rewrites props onto canonical keys. fields maps each
// canonical key to the source names it may arrive under; the first source
// name found wins, an exact key before case-insensitive ones. Keys not named in fields are kept
// as-is. Missing canonical keys are left unset.
func NormalizeProperties(props geojson.Properties, fields map[string][]string) geojson.Properties {
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	// sorted so keys differing only in case resolve the same way every run
	sort.Strings(keys)

	out := make(geojson.Properties, len(props))
	used := make(map[string]bool, len(fields))
	for canonical, sources := range fields {
		for _, src := range append([]string{canonical}, sources...) {
			k, ok := matchKey(props, keys, src)
			if !ok {
				continue
			}
			out[canonical] = props[k]
			used[strings.ToLower(k)] = true
			break
		}
	}
	for _, k := range keys {
		if used[strings.ToLower(k)] {
			continue
		}
		if _, ok := out[k]; !ok {
			out[k] = props[k]
		}
	}
	return out
}

// matchKey finds name among sorted keys, exact match first, then the first
// case-insensitive one.
func matchKey(props geojson.Properties, keys []string, name string) (string, bool) {
	if _, ok := props[name]; ok {
		return name, true
	}
	for _, k := range keys {
		if strings.EqualFold(k, name) {
			return k, true
		}
	}
	return "", false
}
