package mapview

import (
	"math"
	"sort"

	"github.com/dhconnelly/rtreego"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

const (
	dimensions  = 2
	minChildren = 25
	maxChildren = 50
	minExtent   = 1e-9
)

// indexItem wraps a feature position for R-Tree indexing.
type indexItem struct {
	idx  int
	rect *rtreego.Rect
}

func (it *indexItem) Bounds() *rtreego.Rect { return it.rect }

type featureIndex struct {
	tree *rtreego.Rtree
}

func boundRect(b orb.Bound) (*rtreego.Rect, error) {
	w := math.Max(b.Max[0]-b.Min[0], minExtent)
	h := math.Max(b.Max[1]-b.Min[1], minExtent)
	return rtreego.NewRect(rtreego.Point{b.Min[0], b.Min[1]}, []float64{w, h})
}

func (s *geoSource) buildIndex() *featureIndex {
	idx := &featureIndex{tree: rtreego.NewTree(dimensions, minChildren, maxChildren)}
	if s.data == nil {
		return idx
	}
	for i, f := range s.data.Features {
		if f == nil || f.Geometry == nil {
			continue
		}
		r, err := boundRect(f.Geometry.Bound())
		if err != nil {
			continue
		}
		idx.tree.Insert(&indexItem{idx: i, rect: r})
	}
	return idx
}

// hit returns the topmost feature of the source at p. Lines and points
// match within tol.
func (s *geoSource) hit(p orb.Point, tol float64) (int, bool) {
	if s.index == nil {
		s.index = s.buildIndex()
	}
	q := rtreego.Point{p[0], p[1]}.ToRect(math.Max(tol, minExtent))
	found := s.index.tree.SearchIntersect(q)
	ids := make([]int, 0, len(found))
	for _, sp := range found {
		if it, ok := sp.(*indexItem); ok {
			ids = append(ids, it.idx)
		}
	}
	// later features draw on top
	sort.Sort(sort.Reverse(sort.IntSlice(ids)))
	for _, i := range ids {
		if covers(s.data.Features[i].Geometry, p, tol) {
			return i, true
		}
	}
	return 0, false
}

func covers(g orb.Geometry, p orb.Point, tol float64) bool {
	switch g := g.(type) {
	case orb.Polygon:
		return planar.PolygonContains(g, p)
	case orb.MultiPolygon:
		return planar.MultiPolygonContains(g, p)
	case orb.Bound:
		return g.Contains(p)
	default:
		return planar.DistanceFrom(g, p) <= tol
	}
}

// Click delivers a click at terminal cell (cx, cy) to the topmost visible
// layer with a click handler whose feature lies under the pointer.
func (m *Map) Click(cx, cy int) bool { return m.dispatch(EventClick, cx, cy) }

// Hover is Click for pointer motion.
func (m *Map) Hover(cx, cy int) bool { return m.dispatch(EventHover, cx, cy) }

func (m *Map) dispatch(t EventType, cx, cy int) bool {
	if !m.alive {
		return false
	}
	byLayer := m.handlers[t]
	if len(byLayer) == 0 {
		return false
	}
	lon, lat, ok := m.Unproject(cx, cy)
	if !ok {
		return false
	}
	tol := math.Max(m.view.Width()/float64(m.width), m.view.Height()/float64(m.height)) / 2
	for i := len(m.layers) - 1; i >= 0; i-- {
		l := m.layers[i]
		hs := byLayer[l.ID]
		if l.Hidden || len(hs) == 0 {
			continue
		}
		src := m.sources[l.Source]
		if src == nil || src.data == nil {
			continue
		}
		fi, ok := src.hit(orb.Point{lon, lat}, tol)
		if !ok {
			continue
		}
		ev := Event{
			Type:    t,
			LayerID: l.ID,
			Feature: src.data.Features[fi],
			Lon:     lon,
			Lat:     lat,
			CellX:   cx,
			CellY:   cy,
		}
		for _, h := range hs {
			h(ev)
		}
		return true
	}
	return false
}
