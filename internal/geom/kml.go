package geom

import (
	"encoding/xml"
	"errors"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

type kmlCoords struct {
	Coordinates string `xml:"coordinates"`
}

type kmlPolygon struct {
	Outer kmlCoords   `xml:"outerBoundaryIs>LinearRing"`
	Inner []kmlCoords `xml:"innerBoundaryIs>LinearRing"`
}

type kmlPlacemark struct {
	Name       string      `xml:"name"`
	Point      *kmlCoords  `xml:"Point"`
	LineString *kmlCoords  `xml:"LineString"`
	Polygon    *kmlPolygon `xml:"Polygon"`
}

type kmlDoc struct {
	Placemarks []kmlPlacemark `xml:"Placemark"`
	Document   []kmlDoc       `xml:"Document"`
	Folders    []kmlDoc       `xml:"Folder"`
}

func (d kmlDoc) walk(fn func(kmlPlacemark)) {
	for _, pm := range d.Placemarks {
		fn(pm)
	}
	for _, c := range d.Document {
		c.walk(fn)
	}
	for _, c := range d.Folders {
		c.walk(fn)
	}
}

// LoadKML reads a KML file. See ParseKML.
func LoadKML(path string) (Data, error) {
	f, err := os.Open(path)
	if err != nil {
		return Data{}, err
	}
	defer f.Close()
	return ParseKML(f)
}

// ParseKML extracts Point, LineString and Polygon placemarks, nested in
// Documents and Folders at any depth. The placemark name is kept as the
// "name" property. KML coordinates are "lon,lat[,alt]"; altitude is dropped.
func ParseKML(r io.Reader) (Data, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Data{}, err
	}
	var doc kmlDoc
	if err := xml.Unmarshal(data, &doc); err != nil {
		return Data{}, err
	}

	fc := geojson.NewFeatureCollection()
	doc.walk(func(pm kmlPlacemark) {
		var g orb.Geometry
		switch {
		case pm.Point != nil:
			if pts := parseKMLCoords(pm.Point.Coordinates); len(pts) > 0 {
				g = pts[0]
			}
		case pm.LineString != nil:
			if pts := parseKMLCoords(pm.LineString.Coordinates); len(pts) > 1 {
				g = orb.LineString(pts)
			}
		case pm.Polygon != nil:
			outer := parseKMLCoords(pm.Polygon.Outer.Coordinates)
			if len(outer) < 3 {
				return
			}
			poly := orb.Polygon{orb.Ring(outer)}
			for _, in := range pm.Polygon.Inner {
				if ring := parseKMLCoords(in.Coordinates); len(ring) >= 3 {
					poly = append(poly, orb.Ring(ring))
				}
			}
			g = poly
		}
		if g == nil {
			return
		}
		f := geojson.NewFeature(g)
		if pm.Name != "" {
			f.Properties["name"] = strings.TrimSpace(pm.Name)
		}
		fc.Append(f)
	})
	bbox, ok := CollectionBounds(fc)
	if !ok {
		return Data{}, errors.New("kml: no placemarks found")
	}
	return Data{Features: fc, BBox: bbox}, nil
}

// parseKMLCoords splits whitespace-separated "lon,lat[,alt]" tuples.
func parseKMLCoords(s string) []orb.Point {
	var pts []orb.Point
	for _, tuple := range strings.Fields(s) {
		vals := strings.Split(tuple, ",")
		if len(vals) < 2 {
			continue
		}
		lon, err1 := strconv.ParseFloat(strings.TrimSpace(vals[0]), 64)
		lat, err2 := strconv.ParseFloat(strings.TrimSpace(vals[1]), 64)
		if err1 != nil || err2 != nil {
			continue
		}
		pts = append(pts, orb.Point{lon, lat})
	}
	return pts
}
