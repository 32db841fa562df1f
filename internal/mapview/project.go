package mapview

import (
	"math"

	"slopemap/internal/geom"
)

// Each terminal cell holds a 2×4 braille micro grid.
const (
	microX = 2
	microY = 4
)

// Bounds is the geographic extent currently in view.
func (m *Map) Bounds() geom.BBox { return m.view }

// FitBounds shows b, padded by 5% and widened on one axis so that micro
// pixels stay square.
func (m *Map) FitBounds(b geom.BBox) {
	if !b.Valid() {
		return
	}
	padX, padY := b.Width()*0.05, b.Height()*0.05
	v := geom.BBox{MinX: b.MinX - padX, MinY: b.MinY - padY, MaxX: b.MaxX + padX, MaxY: b.MaxY + padY}
	if m.width > 0 && m.height > 0 {
		want := float64(m.width*microX) / float64(m.height*microY)
		got := v.Width() / v.Height()
		c := v.Center()
		if got < want {
			half := v.Height() * want / 2
			v.MinX, v.MaxX = c.X-half, c.X+half
		} else if got > want {
			half := v.Width() / want / 2
			v.MinY, v.MaxY = c.Y-half, c.Y+half
		}
	}
	m.view = v
}

// PanCells moves the view by whole cells in screen directions: positive dx
// moves east, positive dy moves south.
func (m *Map) PanCells(dx, dy int) {
	if m.width <= 0 || m.height <= 0 {
		return
	}
	sx := float64(dx) * m.view.Width() / float64(m.width)
	sy := float64(dy) * m.view.Height() / float64(m.height)
	m.view.MinX += sx
	m.view.MaxX += sx
	m.view.MinY -= sy
	m.view.MaxY -= sy
}

// Zoom scales the view around its centre; f > 1 zooms in.
func (m *Map) Zoom(f float64) {
	if f <= 0 || math.IsNaN(f) || math.IsInf(f, 0) {
		return
	}
	c := m.view.Center()
	hw, hh := m.view.Width()/2/f, m.view.Height()/2/f
	m.view = geom.BBox{MinX: c.X - hw, MinY: c.Y - hh, MaxX: c.X + hw, MaxY: c.Y + hh}
}

// PointerDrag pans so the content follows a drag of (dx, dy) cells. It does
// nothing while drag-pan is disabled.
func (m *Map) PointerDrag(dx, dy int) bool {
	if !m.dragPan {
		return false
	}
	m.PanCells(-dx, -dy)
	return true
}

// Project maps lon/lat onto the micro grid. Points outside the view map
// outside [0, w*2) × [0, h*4).
func (m *Map) Project(lon, lat float64) (int, int, bool) {
	if !m.view.Valid() || m.width <= 0 || m.height <= 0 {
		return 0, 0, false
	}
	nx := (lon - m.view.MinX) / m.view.Width()
	ny := (lat - m.view.MinY) / m.view.Height()
	wMic := float64(m.width*microX - 1)
	hMic := float64(m.height*microY - 1)
	return int(math.Floor(nx*wMic + 0.5)), int(math.Floor((1-ny)*hMic + 0.5)), true
}

// Unproject converts a terminal cell back to the lon/lat at its centre.
func (m *Map) Unproject(cx, cy int) (float64, float64, bool) {
	if !m.view.Valid() || m.width <= 0 || m.height <= 0 {
		return 0, 0, false
	}
	wMic := float64(m.width*microX - 1)
	hMic := float64(m.height*microY - 1)
	if wMic <= 0 || hMic <= 0 {
		return 0, 0, false
	}
	nx := (float64(cx*microX) + 0.5) / wMic
	ny := 1 - (float64(cy*microY)+1.5)/hMic
	return m.view.MinX + nx*m.view.Width(), m.view.MinY + ny*m.view.Height(), true
}

// microSize is the geographic size of one micro pixel along its smaller axis.
func (m *Map) microSize() float64 {
	if m.width <= 0 || m.height <= 0 {
		return 0
	}
	return math.Min(m.view.Width()/float64(m.width*microX), m.view.Height()/float64(m.height*microY))
}
