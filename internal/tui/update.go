package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"slopemap/internal/draw"
	"slopemap/internal/geom"
	"slopemap/internal/logging"
	"slopemap/internal/mapview"
)

const zoomStep = 1.2

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	// after teardown every late message is dropped
	if !m.mv.Alive() {
		return m, nil
	}
	var cmd tea.Cmd
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case gridLoadedMsg:
		m.onGridLoaded(msg)
	case concessionsMsg:
		m.onConcessions(msg)
	case intersectMsg:
		m.onIntersect(msg)
	case tea.KeyMsg:
		cmd = m.handleKey(msg)
	case tea.MouseMsg:
		m.handleMouse(msg)
	}
	if !m.mv.Alive() {
		return m, cmd
	}
	if c := m.drainInbox(); c != nil {
		cmd = tea.Batch(cmd, c)
	}
	m.resizeMap()
	return m, cmd
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	if msg.String() == "ctrl+c" {
		return m.teardown()
	}
	if m.pasteMode {
		return m.handlePasteKey(msg)
	}
	if m.editField != "" {
		switch msg.String() {
		case "esc":
			m.cancelEdit()
		case "enter":
			m.applyEdit()
		default:
			var cmd tea.Cmd
			m.input, cmd = m.input.Update(msg)
			return cmd
		}
		return nil
	}
	if m.showAttrs {
		switch msg.String() {
		case "esc", "t":
			m.showAttrs = false
			return nil
		case "up", "down", "pgup", "pgdown", "home", "end":
			var cmd tea.Cmd
			m.tbl, cmd = m.tbl.Update(msg)
			return cmd
		}
	}

	switch msg.String() {
	case "q":
		return m.teardown()
	case "d":
		m.drawer.Toggle()
		if m.drawer.Active() {
			m.status = "draw mode: drag a rectangle on the map"
		} else {
			m.status = "draw mode off"
		}
	case "r":
		if m.bbox == nil {
			m.status = "no region yet  press d to draw one"
			return nil
		}
		return m.commit(*m.bbox)
	case "g":
		m.showRanges = !m.showRanges
		if !m.showRanges {
			m.cancelEdit()
		}
	case "a":
		if m.showRanges {
			m.addRange()
		}
	case "x":
		if m.showRanges {
			m.deleteRange()
		}
	case "e":
		if m.showRanges {
			m.beginEdit(editMin)
		}
	case "E":
		if m.showRanges {
			m.beginEdit(editMax)
		}
	case "c":
		if m.showRanges {
			m.beginEdit(editColor)
		}
	case "1":
		m.toggleOverlay(overlayConcessions, "concessions")
	case "2":
		m.toggleOverlay(overlayUser, "user data")
	case "3":
		m.toggleOverlay(overlaySlope, "slope cells")
	case "4":
		m.toggleOverlay(overlayIntersection, "intersection")
	case "i":
		return m.intersect()
	case "p":
		m.pasteMode = true
		m.ta.SetValue("")
		m.ta.Focus()
		m.status = "paste mode"
	case "t":
		m.showAttrs = !m.showAttrs
		if m.showAttrs {
			m.refreshAttrs()
		}
	case "+", "=":
		m.mv.Zoom(zoomStep)
	case "-", "_":
		m.mv.Zoom(1 / zoomStep)
	case "up":
		if m.showRanges {
			m.rangeTbl.MoveUp(1)
		} else {
			m.mv.PanCells(0, -1)
		}
	case "down":
		if m.showRanges {
			m.rangeTbl.MoveDown(1)
		} else {
			m.mv.PanCells(0, 1)
		}
	case "left":
		m.mv.PanCells(-2, 0)
	case "right":
		m.mv.PanCells(2, 0)
	case "h":
		m.helpVisible = !m.helpVisible
	case "esc":
		m.inspectPopup = ""
	}
	return nil
}

func (m *Model) handlePasteKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "esc":
		m.pasteMode = false
		m.ta.Blur()
		m.status = "view mode"
		return nil
	case "enter":
		w := strings.TrimSpace(m.ta.Value())
		if w == "" {
			m.status = "paste: empty"
			return nil
		}
		d, err := geom.ParseWKT(w)
		if err != nil {
			m.status = "wkt error: " + err.Error()
			return nil
		}
		m.setUserData(d)
		m.pasteMode = false
		m.ta.Blur()
		return nil
	}
	var cmd tea.Cmd
	m.ta, cmd = m.ta.Update(msg)
	return cmd
}

func (m *Model) intersect() tea.Cmd {
	if m.opts.Backend == nil {
		m.status = "intersection needs the backend (offline)"
		return nil
	}
	if m.user.Features == nil || len(m.user.Features.Features) == 0 {
		m.status = "no user geometry  load a file or press p to paste WKT"
		return nil
	}
	m.status = "intersecting with concessions..."
	return m.runIntersect(m.user.Features)
}

// teardown restores the canvas and releases the map before quitting.
func (m *Model) teardown() tea.Cmd {
	m.drawer.Close()
	m.mv.Destroy()
	m.log.Info("shutdown")
	return tea.Quit
}

func (m *Model) handleMouse(msg tea.MouseMsg) {
	ox, oy, w, h := m.layout()
	cx, cy := msg.X-ox, msg.Y-oy
	inMap := cx >= 0 && cx < w && cy >= 0 && cy < h && !m.pasteMode && !m.showAttrs

	m.hoverHasGeo = false
	if inMap {
		m.hoverLon, m.hoverLat, m.hoverHasGeo = m.mv.Unproject(cx, cy)
	}
	// gestures keep tracking when the pointer leaves the map
	at := func() (geom.Point, bool) {
		lon, lat, ok := m.mv.Unproject(clamp(cx, 0, w-1), clamp(cy, 0, h-1))
		return geom.Point{X: lon, Y: lat}, ok
	}

	switch {
	case msg.Button == tea.MouseButtonWheelUp && msg.Action == tea.MouseActionPress:
		m.mv.Zoom(zoomStep)
	case msg.Button == tea.MouseButtonWheelDown && msg.Action == tea.MouseActionPress:
		m.mv.Zoom(1 / zoomStep)
	case msg.Action == tea.MouseActionPress && msg.Button == tea.MouseButtonLeft:
		if !inMap {
			return
		}
		if m.drawer.Active() {
			if p, ok := at(); ok {
				m.drawer.PointerDown(p)
			}
			return
		}
		m.drag = &dragState{x: msg.X, y: msg.Y}
	case msg.Action == tea.MouseActionMotion:
		if m.drawer.State() == draw.Drawing {
			if p, ok := at(); ok {
				m.drawer.PointerMove(p)
			}
			return
		}
		if m.drag != nil {
			dx, dy := msg.X-m.drag.x, msg.Y-m.drag.y
			if (dx != 0 || dy != 0) && m.mv.PointerDrag(dx, dy) {
				m.drag.x, m.drag.y = msg.X, msg.Y
				m.drag.moved = true
			}
			return
		}
		m.hoverInfo = ""
		hit := inMap && m.mv.Hover(cx, cy)
		// an armed drawer owns the cursor
		if !m.drawer.Active() {
			if hit {
				m.mv.SetCursor(mapview.CursorPointer)
			} else {
				m.mv.SetCursor(mapview.CursorDefault)
			}
		}
	case msg.Action == tea.MouseActionRelease:
		if m.drawer.State() == draw.Drawing {
			if p, ok := at(); ok {
				m.drawer.PointerUp(p)
			}
			return
		}
		drag := m.drag
		m.drag = nil
		if drag == nil || drag.moved || !inMap {
			return
		}
		if !m.mv.Click(cx, cy) {
			m.inspectPopup = ""
		}
		m.log.Debug("map click",
			logging.Float64("lon", m.hoverLon), logging.Float64("lat", m.hoverLat))
	}
}

// resizeMap keeps the map canvas matched to the current layout.
func (m *Model) resizeMap() {
	if m.width == 0 || m.height == 0 {
		return
	}
	_, _, w, h := m.layout()
	if cw, ch := m.mv.Size(); cw != w || ch != h {
		m.mv.Resize(w, h)
	}
}

// layout returns the map's origin and size in terminal cells. View and the
// mouse handler must agree on it.
func (m Model) layout() (x, y, w, h int) {
	cw := max(10, m.width)
	h = max(4, m.height-headerHeight-footerHeight)
	if m.showRanges {
		x = sidebarWidth + 1
	}
	w = cw - x
	if m.inspectPopup != "" && !m.showAttrs {
		w -= popupWidth + 1
	}
	return x, headerHeight, max(10, w), h
}

func clamp(v, lo, hi int) int {
	return min(max(v, lo), hi)
}

func (m Model) regionLabel() string {
	if m.bbox == nil {
		return "no region"
	}
	s := fmt.Sprintf("region %s", m.bbox.String())
	if m.loading {
		s += "  loading..."
	}
	return s
}
