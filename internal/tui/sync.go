package tui

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"slopemap/internal/geom"
	"slopemap/internal/logging"
	"slopemap/internal/mapview"
	"slopemap/internal/overlay"
	"slopemap/internal/provider"
	"slopemap/internal/slope"
)

// Stacking ranks, bottom to top.
const (
	zSlope = iota
	zConcessions
	zUser
	zIntersection
	zRegion
	zPreview
)

var (
	slopePaint        = overlay.Paint{ColorProperty: slope.PropColor, FillOpacity: 0.85, Z: zSlope}
	concessionPaint   = overlay.Paint{FillColor: "#38bdf8", FillOpacity: 0.35, LineColor: "#0ea5e9", Z: zConcessions}
	userPaint         = overlay.Paint{FillColor: "#a3e635", FillOpacity: 0.3, LineColor: "#a3e635", Z: zUser}
	intersectionPaint = overlay.Paint{FillColor: "#f59e0b", FillOpacity: 0.6, LineColor: "#fbbf24", Z: zIntersection}
	regionPaint       = overlay.Paint{NoFill: true, LineColor: "#e5e7eb", Z: zRegion}
	previewPaint      = overlay.Paint{NoFill: true, LineColor: "#f472b6", Z: zPreview}
)

type gridLoadedMsg struct {
	token uint64
	bbox  geom.BBox
	grid  *slope.ScalarGrid
	err   error
}

type concessionsMsg struct {
	token uint64
	res   *provider.Concessions
	err   error
}

type intersectMsg struct {
	res *provider.IntersectResult
	err error
}

func bboxCollection(b geom.BBox) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	fc.Append(geojson.NewFeature(orb.Polygon{b.Ring()}))
	return fc
}

// commit makes b the active region and starts fetching for it. Every commit
// takes a fresh token; answers carrying an older one are dropped.
func (m *Model) commit(b geom.BBox) tea.Cmd {
	m.token++
	m.bbox = &b
	m.loading = true
	m.upsert(overlayRegion, bboxCollection(b), regionPaint, overlay.Handlers{})
	m.status = "loading slope grid for " + b.String()
	m.log.Info("region committed", logging.String("bbox", b.String()), logging.Int("token", int(m.token)))

	cmds := []tea.Cmd{m.fetchGrid(m.token, b)}
	if m.opts.Backend != nil {
		cmds = append(cmds, m.fetchConcessions(m.token, b))
	}
	return tea.Batch(cmds...)
}

func (m Model) fetchGrid(token uint64, b geom.BBox) tea.Cmd {
	grid, res, timeout := m.opts.Grid, m.opts.Resolution, m.opts.Timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		g, err := grid.SlopeGrid(ctx, b.String(), res)
		return gridLoadedMsg{token: token, bbox: b, grid: g, err: err}
	}
}

func (m Model) fetchConcessions(token uint64, b geom.BBox) tea.Cmd {
	backend, timeout := m.opts.Backend, m.opts.Timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		res, err := backend.Concessions(ctx, b)
		return concessionsMsg{token: token, res: res, err: err}
	}
}

func (m Model) runIntersect(user *geojson.FeatureCollection) tea.Cmd {
	backend, timeout := m.opts.Backend, m.opts.Timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		res, err := backend.Intersect(ctx, user)
		return intersectMsg{res: res, err: err}
	}
}

func (m *Model) onGridLoaded(msg gridLoadedMsg) {
	if msg.token != m.token {
		m.log.Debug("stale grid discarded",
			logging.Int("token", int(msg.token)), logging.Int("current", int(m.token)))
		return
	}
	m.loading = false
	if msg.err != nil {
		m.status = "slope error: " + msg.err.Error()
		m.log.Warn("grid fetch failed", logging.String("bbox", msg.bbox.String()), logging.Err(msg.err))
		return
	}
	m.grid = msg.grid
	m.syncSlope()
	st := msg.grid.Stats
	m.status = fmt.Sprintf("%s  min %.1f%%  mean %.1f%%  max %.1f%%",
		msg.grid.SourceLabel, st.Min, st.Mean, st.Max)
}

func (m *Model) onConcessions(msg concessionsMsg) {
	if msg.token != m.token {
		m.log.Debug("stale concessions discarded", logging.Int("token", int(msg.token)))
		return
	}
	if msg.err != nil {
		m.log.Warn("concession fetch failed", logging.Err(msg.err))
		m.status = "concessions unavailable: " + msg.err.Error()
		return
	}
	m.concessions = msg.res
	m.upsert(overlayConcessions, msg.res.Features, concessionPaint, overlay.Handlers{
		OnClick: m.showFeature("concession"),
	})
}

func (m *Model) onIntersect(msg intersectMsg) {
	if msg.err != nil {
		m.status = "intersection error: " + msg.err.Error()
		m.log.Warn("intersection failed", logging.Err(msg.err))
		return
	}
	m.upsert(overlayIntersection, msg.res.Features, intersectionPaint, overlay.Handlers{
		OnClick: m.showFeature("overlap"),
	})
	s := msg.res.Summary
	m.status = fmt.Sprintf("intersection: %d of %d concessions overlap %d input features",
		s.Intersecting, s.ConcessionsInBBox, s.InputFeatures)
}

// syncSlope reclassifies the cached grid with the current ranges and pushes
// the cells to the map. Without a ready grid it does nothing.
func (m *Model) syncSlope() {
	if !m.grid.Ready() {
		return
	}
	fc := slope.Tessellate(m.grid, m.ranges.Ranges())
	m.upsert(overlaySlope, fc, slopePaint, overlay.Handlers{
		OnClick: m.showFeature("cell"),
		OnHover: m.hoverCell(),
	})
}

// upsert syncs an overlay and reapplies its visibility toggle.
func (m *Model) upsert(id string, fc *geojson.FeatureCollection, p overlay.Paint, h overlay.Handlers) {
	m.syncer.Upsert(id, fc, p, h)
	if v, ok := m.visible[id]; ok && !v {
		m.syncer.SetVisible(id, false)
	}
}

func (m *Model) toggleOverlay(id, name string) {
	m.visible[id] = !m.visible[id]
	m.syncer.SetVisible(id, m.visible[id])
	m.status = fmt.Sprintf("%s: %v", name, m.visible[id])
}

func (m *Model) setUserData(d geom.Data) {
	m.user = d
	m.upsert(overlayUser, d.Features, userPaint, overlay.Handlers{OnClick: m.showFeature("feature")})
	if d.BBox.Valid() {
		m.mv.FitBounds(d.BBox)
	}
	pts, ls, polys := d.Counts()
	m.status = fmt.Sprintf("user data  counts: pts=%d ls=%d poly=%d", pts, ls, polys)
	if m.showAttrs {
		m.refreshAttrs()
	}
}

// showFeature returns a click handler that fills the inspect popup.
func (m *Model) showFeature(kind string) mapview.Handler {
	in := m.in
	return func(e mapview.Event) {
		in.inspect = featurePopup(kind, e)
	}
}

func (m *Model) hoverCell() mapview.Handler {
	in := m.in
	return func(e mapview.Event) {
		if v, ok := e.Feature.Properties[slope.PropSlope].(float64); ok {
			in.hover = fmt.Sprintf("slope %.1f%%", v)
		}
	}
}

// drainInbox applies callback output gathered during the current Update.
func (m *Model) drainInbox() tea.Cmd {
	var cmd tea.Cmd
	if b := m.in.committed; b != nil {
		m.in.committed = nil
		cmd = m.commit(*b)
	}
	if m.in.inspect != "" {
		m.inspectPopup = m.in.inspect
		m.in.inspect = ""
	}
	if m.in.hover != "" {
		m.hoverInfo, m.in.hover = m.in.hover, ""
	}
	return cmd
}

// loadGeometry reads a GeoJSON, WKT, CSV or KML file by extension.
func loadGeometry(path string) (geom.Data, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return geom.LoadCSV(path)
	case ".kml":
		return geom.LoadKML(path)
	case ".wkt", ".txt":
		b, err := os.ReadFile(path)
		if err != nil {
			return geom.Data{}, err
		}
		return geom.ParseWKT(string(b))
	default:
		return geom.LoadGeo(path)
	}
}
