package mapview

import (
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/simplify"
)

// simplifyAbove is the vertex count above which geometry is simplified
// before rasterising.
const simplifyAbove = 8

// Render draws every visible layer, bottom to top, into width×height cells.
// A cell takes the colour of the topmost layer that touched it.
func (m *Map) Render() string {
	if m.width <= 0 || m.height <= 0 {
		return ""
	}
	buf := newBrailleBuf(m.width, m.height)
	if m.alive && m.view.Valid() {
		tol := m.microSize()
		for _, l := range m.layers {
			if l.Hidden {
				continue
			}
			src := m.sources[l.Source]
			if src == nil || src.data == nil {
				continue
			}
			for _, f := range src.data.Features {
				if f == nil || f.Geometry == nil {
					continue
				}
				m.drawFeature(buf, l, f, tol)
			}
		}
	}
	return strings.Join(buf.lines(), "\n")
}

func (m *Map) drawFeature(buf *brailleBuf, l *Layer, f *geojson.Feature, tol float64) {
	g := f.Geometry
	if b, ok := g.(orb.Bound); ok {
		g = b.ToPolygon()
	}
	if !m.inView(g.Bound()) {
		return
	}
	if tol > 0 && vertexCount(g) > simplifyAbove {
		g = simplify.DouglasPeucker(tol).Simplify(orb.Clone(g))
		if g == nil {
			return
		}
	}

	switch l.Type {
	case Fill:
		color := m.palette.resolve(m.featureColor(l, f, l.Paint.FillColor), l.Paint.FillOpacity, DefaultFillColor)
		switch g := g.(type) {
		case orb.Polygon:
			buf.fillRings(m.projectPolygon(g), color)
		case orb.MultiPolygon:
			for _, p := range g {
				buf.fillRings(m.projectPolygon(p), color)
			}
		case orb.Point:
			m.drawPoint(buf, g, color)
		case orb.MultiPoint:
			for _, p := range g {
				m.drawPoint(buf, p, color)
			}
		}
	case Line:
		color := m.palette.resolve(m.featureColor(l, f, l.Paint.LineColor), 1, DefaultLineColor)
		switch g := g.(type) {
		case orb.Polygon:
			for _, r := range g {
				m.drawPath(buf, orb.LineString(r), color)
			}
		case orb.MultiPolygon:
			for _, p := range g {
				for _, r := range p {
					m.drawPath(buf, orb.LineString(r), color)
				}
			}
		case orb.LineString:
			m.drawPath(buf, g, color)
		case orb.MultiLineString:
			for _, ls := range g {
				m.drawPath(buf, ls, color)
			}
		case orb.Ring:
			m.drawPath(buf, orb.LineString(g), color)
		}
	}
}

// featureColor applies the layer's data-driven colour when the feature
// carries one.
func (m *Map) featureColor(l *Layer, f *geojson.Feature, static string) string {
	if l.Paint.ColorProperty == "" {
		return static
	}
	if s, ok := f.Properties[l.Paint.ColorProperty].(string); ok && s != "" {
		return s
	}
	return static
}

func (m *Map) projectPolygon(p orb.Polygon) [][][2]int {
	rings := make([][][2]int, 0, len(p))
	for _, r := range p {
		pr := m.projectPath(orb.LineString(r))
		if len(pr) >= 3 {
			rings = append(rings, pr)
		}
	}
	return rings
}

func (m *Map) projectPath(ls orb.LineString) [][2]int {
	out := make([][2]int, 0, len(ls))
	for _, p := range ls {
		x, y, ok := m.Project(p[0], p[1])
		if !ok {
			continue
		}
		if n := len(out); n > 0 && out[n-1] == [2]int{x, y} {
			continue
		}
		out = append(out, [2]int{x, y})
	}
	return out
}

func (m *Map) drawPath(buf *brailleBuf, ls orb.LineString, color string) {
	pts := m.projectPath(ls)
	if len(pts) == 1 {
		buf.setPixel(pts[0][0], pts[0][1], color)
		return
	}
	for i := 0; i+1 < len(pts); i++ {
		buf.drawLine(pts[i][0], pts[i][1], pts[i+1][0], pts[i+1][1], color)
	}
}

func (m *Map) drawPoint(buf *brailleBuf, p orb.Point, color string) {
	if x, y, ok := m.Project(p[0], p[1]); ok {
		buf.setPixel(x, y, color)
	}
}

func (m *Map) inView(b orb.Bound) bool {
	v := m.view
	return b.Max[0] >= v.MinX && b.Min[0] <= v.MaxX && b.Max[1] >= v.MinY && b.Min[1] <= v.MaxY
}

func vertexCount(g orb.Geometry) int {
	switch g := g.(type) {
	case orb.LineString:
		return len(g)
	case orb.Ring:
		return len(g)
	case orb.Polygon:
		n := 0
		for _, r := range g {
			n += len(r)
		}
		return n
	case orb.MultiPolygon:
		n := 0
		for _, p := range g {
			n += vertexCount(p)
		}
		return n
	case orb.MultiLineString:
		n := 0
		for _, ls := range g {
			n += len(ls)
		}
		return n
	}
	return 0
}
