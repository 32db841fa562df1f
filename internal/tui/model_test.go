package tui

import (
	"context"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"slopemap/internal/draw"
	"slopemap/internal/geom"
	"slopemap/internal/mapview"
	"slopemap/internal/overlay"
	"slopemap/internal/provider"
	"slopemap/internal/slope"
)

type fakeBackend struct {
	concessions *provider.Concessions
	result      *provider.IntersectResult
	got         *geojson.FeatureCollection
}

func (f *fakeBackend) Concessions(context.Context, geom.BBox) (*provider.Concessions, error) {
	return f.concessions, nil
}

func (f *fakeBackend) Intersect(_ context.Context, user *geojson.FeatureCollection) (*provider.IntersectResult, error) {
	f.got = user
	return f.result, nil
}

func newTestModel(t *testing.T, opts Options) Model {
	t.Helper()
	m, _ := step(t, New(opts), tea.WindowSizeMsg{Width: 100, Height: 30})
	return m
}

func step(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	nm, ok := next.(Model)
	require.True(t, ok)
	return nm, cmd
}

func key(s string) tea.KeyMsg { return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)} }

var enter = tea.KeyMsg{Type: tea.KeyEnter}

func mouse(x, y int, action tea.MouseAction, button tea.MouseButton) tea.MouseMsg {
	return tea.MouseMsg{X: x, Y: y, Action: action, Button: button}
}

// runCmd executes cmd and flattens batches into their messages.
func runCmd(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		var out []tea.Msg
		for _, c := range batch {
			out = append(out, runCmd(c)...)
		}
		return out
	}
	return []tea.Msg{msg}
}

func flatGrid(b geom.BBox, n int, v float64) *slope.ScalarGrid {
	vals := make([][]float64, n)
	for r := range vals {
		vals[r] = make([]float64, n)
		for c := range vals[r] {
			vals[r][c] = v
		}
	}
	return &slope.ScalarGrid{Size: n, BBox: &b, Values: vals, SourceLabel: "test grid"}
}

func slopeFeatures(t *testing.T, m Model) []*geojson.Feature {
	t.Helper()
	src, ok := m.mv.Source(overlaySlope)
	require.True(t, ok, "slope overlay missing")
	return src.Data().Features
}

// loaded commits b and delivers a flat grid for it.
func loaded(t *testing.T, m Model, b geom.BBox, v float64) Model {
	t.Helper()
	m.commit(b)
	m, _ = step(t, m, gridLoadedMsg{token: m.token, bbox: b, grid: flatGrid(b, 3, v)})
	return m
}

func TestModel_StaleGridDiscarded(t *testing.T) {
	m := newTestModel(t, Options{})
	b1 := geom.NewBBox(-70, -27, -69.9, -26.9)
	b2 := geom.NewBBox(-71, -28, -70.9, -27.9)
	m.commit(b1)
	m.commit(b2)
	require.Equal(t, uint64(2), m.token)

	m, _ = step(t, m, gridLoadedMsg{token: 1, bbox: b1, grid: flatGrid(b1, 3, 1)})
	assert.Nil(t, m.grid)
	assert.True(t, m.loading)
	assert.False(t, m.mv.Layer(overlay.FillLayerID(overlaySlope)))

	g2 := flatGrid(b2, 3, 1)
	m, _ = step(t, m, gridLoadedMsg{token: 2, bbox: b2, grid: g2})
	assert.Same(t, g2, m.grid)
	assert.False(t, m.loading)
	assert.Len(t, slopeFeatures(t, m), 9)
	assert.Contains(t, m.status, "test grid")
}

func TestModel_GridErrorKeepsPreviousCells(t *testing.T) {
	m := newTestModel(t, Options{})
	b := geom.NewBBox(-70, -27, -69.9, -26.9)
	m = loaded(t, m, b, 1)

	m.commit(b)
	m, _ = step(t, m, gridLoadedMsg{token: m.token, bbox: b, err: provider.ErrEmptyGrid})
	assert.Contains(t, m.status, "slope error")
	assert.False(t, m.loading)
	assert.Len(t, slopeFeatures(t, m), 9)
}

func TestModel_DrawCommitsRegionAndFetches(t *testing.T) {
	m := newTestModel(t, Options{Grid: provider.NewSynthetic(), Resolution: 5})

	m, _ = step(t, m, key("d"))
	assert.Equal(t, draw.Armed, m.drawer.State())
	assert.Equal(t, draw.CursorCrosshair, m.mv.Cursor())
	assert.False(t, m.mv.DragPan())

	m, cmd := step(t, m, mouse(20, 6, tea.MouseActionPress, tea.MouseButtonLeft))
	assert.Nil(t, cmd)
	assert.Equal(t, draw.Drawing, m.drawer.State())

	m, _ = step(t, m, mouse(40, 12, tea.MouseActionMotion, tea.MouseButtonLeft))
	assert.True(t, m.mv.Layer(overlay.LineLayerID(overlayPreview)))

	m, cmd = step(t, m, mouse(40, 12, tea.MouseActionRelease, tea.MouseButtonLeft))
	require.NotNil(t, cmd)
	require.NotNil(t, m.bbox)
	assert.Equal(t, draw.Armed, m.drawer.State())
	assert.False(t, m.mv.Layer(overlay.LineLayerID(overlayPreview)))
	assert.True(t, m.mv.Layer(overlay.LineLayerID(overlayRegion)))

	lon0, lat0, _ := m.mv.Unproject(20, 5)
	lon1, lat1, _ := m.mv.Unproject(40, 11)
	assert.Equal(t, geom.NewBBox(lon0, lat0, lon1, lat1), *m.bbox)

	msgs := runCmd(cmd)
	require.Len(t, msgs, 1)
	m, _ = step(t, m, msgs[0])
	assert.Len(t, slopeFeatures(t, m), 25)
	assert.Contains(t, m.status, provider.SourceLabel(provider.SourceSynthetic))
}

func TestModel_DegenerateDrawDoesNothing(t *testing.T) {
	m := newTestModel(t, Options{})
	m, _ = step(t, m, key("d"))
	m, _ = step(t, m, mouse(20, 6, tea.MouseActionPress, tea.MouseButtonLeft))
	m, cmd := step(t, m, mouse(20, 6, tea.MouseActionRelease, tea.MouseButtonLeft))
	assert.Nil(t, cmd)
	assert.Nil(t, m.bbox)
	assert.Equal(t, draw.Armed, m.drawer.State())
	assert.False(t, m.mv.Layer(overlay.LineLayerID(overlayPreview)))

	m, _ = step(t, m, key("d"))
	assert.Equal(t, draw.Idle, m.drawer.State())
	assert.True(t, m.mv.DragPan())
	assert.Equal(t, draw.CursorDefault, m.mv.Cursor())
}

func TestModel_RangeEditReclassifies(t *testing.T) {
	m := newTestModel(t, Options{})
	m = loaded(t, m, geom.NewBBox(-70, -27, -69.9, -26.9), 1)
	for _, f := range slopeFeatures(t, m) {
		require.Equal(t, "#22c55e", f.Properties[slope.PropColor])
	}

	m, _ = step(t, m, key("g"))
	m, _ = step(t, m, key("c"))
	require.Equal(t, editColor, m.editField)
	assert.Equal(t, "#22c55e", m.input.Value())

	m.input.SetValue("#0000ff")
	m, _ = step(t, m, enter)
	assert.Empty(t, m.editField)
	for _, f := range slopeFeatures(t, m) {
		assert.Equal(t, "#0000ff", f.Properties[slope.PropColor])
	}
	assert.Equal(t, "#0000ff", m.rangeTbl.Rows()[0][3])

	m, _ = step(t, m, key("e"))
	m.input.SetValue("not a number")
	m, _ = step(t, m, enter)
	assert.Contains(t, m.status, "not a number")
	r, _ := m.ranges.At(0)
	assert.Equal(t, 0.0, r.Min)
}

func TestModel_RangeEditRejectsNonFinite(t *testing.T) {
	m := newTestModel(t, Options{})
	m, _ = step(t, m, key("g"))
	for _, in := range []string{"NaN", "Inf", "-inf", "+Infinity"} {
		m, _ = step(t, m, key("E"))
		m.input.SetValue(in)
		m, _ = step(t, m, enter)
		assert.Contains(t, m.status, "not a number", in)
		r, _ := m.ranges.At(0)
		assert.Equal(t, 5.0, r.Max, in)
		assert.Equal(t, "0 – 5%", r.Label, in)
	}
}

func TestModel_AddAndDeleteRange(t *testing.T) {
	m := newTestModel(t, Options{})
	m, _ = step(t, m, key("g"))
	m, _ = step(t, m, key("a"))
	assert.Equal(t, 6, m.ranges.Len())
	assert.Len(t, m.rangeTbl.Rows(), 6)
	assert.Equal(t, 5, m.rangeTbl.Cursor())

	m, _ = step(t, m, key("x"))
	assert.Equal(t, 5, m.ranges.Len())
	assert.Len(t, m.rangeTbl.Rows(), 5)
}

func TestModel_ToggleOverlay(t *testing.T) {
	m := newTestModel(t, Options{})
	m = loaded(t, m, geom.NewBBox(-70, -27, -69.9, -26.9), 1)

	m, _ = step(t, m, key("3"))
	spec, ok := m.mv.LayerSpec(overlay.FillLayerID(overlaySlope))
	require.True(t, ok)
	assert.True(t, spec.Hidden)

	// a new grid keeps the overlay hidden
	m = loaded(t, m, geom.NewBBox(-70, -27, -69.9, -26.9), 2)
	spec, _ = m.mv.LayerSpec(overlay.FillLayerID(overlaySlope))
	assert.True(t, spec.Hidden)

	m, _ = step(t, m, key("3"))
	spec, _ = m.mv.LayerSpec(overlay.FillLayerID(overlaySlope))
	assert.False(t, spec.Hidden)
}

func TestModel_ClickAndHoverCell(t *testing.T) {
	m := newTestModel(t, Options{})
	b := geom.NewBBox(-70, -27, -69.9, -26.9)
	m = loaded(t, m, b, 12.34)
	m.mv.FitBounds(b)

	m, _ = step(t, m, mouse(50, 14, tea.MouseActionMotion, tea.MouseButtonNone))
	assert.Equal(t, "slope 12.3%", m.hoverInfo)
	assert.True(t, m.hoverHasGeo)
	assert.Equal(t, mapview.CursorPointer, m.mv.Cursor())

	m, _ = step(t, m, mouse(50, 14, tea.MouseActionPress, tea.MouseButtonLeft))
	m, _ = step(t, m, mouse(50, 14, tea.MouseActionRelease, tea.MouseButtonLeft))
	assert.Contains(t, m.inspectPopup, "slope: 12.3%")
	w, _ := m.mv.Size()
	assert.Equal(t, 100-popupWidth-1, w)

	m, _ = step(t, m, key("esc"))
	assert.Empty(t, m.inspectPopup)
}

func TestModel_HoverCursor(t *testing.T) {
	m := newTestModel(t, Options{})
	b := geom.NewBBox(-70, -27, -69.9, -26.9)
	m = loaded(t, m, b, 3)
	m.mv.FitBounds(b)

	m, _ = step(t, m, mouse(50, 14, tea.MouseActionMotion, tea.MouseButtonNone))
	assert.Equal(t, mapview.CursorPointer, m.mv.Cursor())

	// left edge lies in the padding outside the cells
	m, _ = step(t, m, mouse(0, 14, tea.MouseActionMotion, tea.MouseButtonNone))
	assert.Equal(t, mapview.CursorDefault, m.mv.Cursor())
	assert.Empty(t, m.hoverInfo)

	m, _ = step(t, m, key("d"))
	m, _ = step(t, m, mouse(50, 14, tea.MouseActionMotion, tea.MouseButtonNone))
	assert.Equal(t, draw.CursorCrosshair, m.mv.Cursor())
}

func TestModel_DragPansWithoutClicking(t *testing.T) {
	m := newTestModel(t, Options{})
	before := m.mv.Bounds()
	m, _ = step(t, m, mouse(50, 14, tea.MouseActionPress, tea.MouseButtonLeft))
	m, _ = step(t, m, mouse(45, 14, tea.MouseActionMotion, tea.MouseButtonLeft))
	m, _ = step(t, m, mouse(45, 14, tea.MouseActionRelease, tea.MouseButtonLeft))
	after := m.mv.Bounds()
	assert.Greater(t, after.MinX, before.MinX)
	assert.Nil(t, m.drag)
}

func TestModel_PasteAndIntersect(t *testing.T) {
	inter := geojson.NewFeatureCollection()
	inter.Append(geojson.NewFeature(orb.Polygon{geom.NewBBox(-70, -27, -69.95, -26.95).Ring()}))
	backend := &fakeBackend{
		concessions: &provider.Concessions{Features: geojson.NewFeatureCollection()},
		result: &provider.IntersectResult{
			Features: inter,
			Summary:  provider.IntersectSummary{InputFeatures: 1, ConcessionsInBBox: 2, Intersecting: 1},
		},
	}
	m := newTestModel(t, Options{Backend: backend})

	m, cmd := step(t, m, key("i"))
	assert.Nil(t, cmd)
	assert.Contains(t, m.status, "no user geometry")

	m, _ = step(t, m, key("p"))
	require.True(t, m.pasteMode)
	m.ta.SetValue("POLYGON((-70 -27, -69.9 -27, -69.9 -26.9, -70 -26.9, -70 -27))")
	m, _ = step(t, m, enter)
	assert.False(t, m.pasteMode)
	assert.True(t, m.mv.Layer(overlay.FillLayerID(overlayUser)))
	assert.Contains(t, m.status, "poly=1")

	m, cmd = step(t, m, key("i"))
	msgs := runCmd(cmd)
	require.Len(t, msgs, 1)
	m, _ = step(t, m, msgs[0])
	assert.Same(t, m.user.Features, backend.got)
	assert.True(t, m.mv.Layer(overlay.FillLayerID(overlayIntersection)))
	assert.Equal(t, "intersection: 1 of 2 concessions overlap 1 input features", m.status)
}

func TestModel_IntersectOffline(t *testing.T) {
	m := newTestModel(t, Options{})
	m, cmd := step(t, m, key("i"))
	assert.Nil(t, cmd)
	assert.Contains(t, m.status, "offline")
}

func TestModel_ConcessionsFetchedWithGrid(t *testing.T) {
	fc := geojson.NewFeatureCollection()
	f := geojson.NewFeature(orb.Polygon{geom.NewBBox(-70, -27, -69.95, -26.95).Ring()})
	f.Properties["nombre"] = "MINA UNO"
	fc.Append(f)
	backend := &fakeBackend{concessions: &provider.Concessions{Features: fc, Source: "test"}}
	m := newTestModel(t, Options{Backend: backend})

	cmd := m.commit(geom.NewBBox(-70, -27, -69.9, -26.9))
	msgs := runCmd(cmd)
	require.Len(t, msgs, 2)
	for _, msg := range msgs {
		m, _ = step(t, m, msg)
	}
	assert.True(t, m.mv.Layer(overlay.FillLayerID(overlayConcessions)))
	assert.NotNil(t, m.grid)

	// concessions answered for an older region are dropped
	old := m.concessions
	m.commit(geom.NewBBox(-71, -28, -70.9, -27.9))
	m, _ = step(t, m, concessionsMsg{token: m.token - 1, res: &provider.Concessions{}})
	assert.Same(t, old, m.concessions)
}

func TestModel_LayerOrderIndependentOfArrival(t *testing.T) {
	want := []string{
		overlay.FillLayerID(overlaySlope), overlay.LineLayerID(overlaySlope),
		overlay.FillLayerID(overlayConcessions), overlay.LineLayerID(overlayConcessions),
		overlay.LineLayerID(overlayRegion),
	}
	b := geom.NewBBox(-70, -27, -69.9, -26.9)
	fc := geojson.NewFeatureCollection()
	fc.Append(geojson.NewFeature(orb.Polygon{geom.NewBBox(-70, -27, -69.95, -26.95).Ring()}))

	for _, concessionsFirst := range []bool{true, false} {
		backend := &fakeBackend{concessions: &provider.Concessions{Features: fc}}
		m := newTestModel(t, Options{Backend: backend})
		m.commit(b)
		grid := gridLoadedMsg{token: m.token, bbox: b, grid: flatGrid(b, 3, 1)}
		conc := concessionsMsg{token: m.token, res: backend.concessions}
		msgs := []tea.Msg{grid, conc}
		if concessionsFirst {
			msgs = []tea.Msg{conc, grid}
		}
		for _, msg := range msgs {
			m, _ = step(t, m, msg)
		}
		assert.Equal(t, want, m.mv.LayerIDs(), "concessions first: %v", concessionsFirst)
	}
}

func TestModel_ClickPrefersConcessionOverCell(t *testing.T) {
	b := geom.NewBBox(-70, -27, -69.9, -26.9)
	fc := geojson.NewFeatureCollection()
	f := geojson.NewFeature(orb.Polygon{b.Ring()})
	f.Properties["nombre"] = "MINA UNO"
	fc.Append(f)
	m := newTestModel(t, Options{Backend: &fakeBackend{}})
	m.commit(b)
	m, _ = step(t, m, concessionsMsg{token: m.token, res: &provider.Concessions{Features: fc}})
	m, _ = step(t, m, gridLoadedMsg{token: m.token, bbox: b, grid: flatGrid(b, 3, 1)})
	m.mv.FitBounds(b)

	m, _ = step(t, m, mouse(50, 14, tea.MouseActionPress, tea.MouseButtonLeft))
	m, _ = step(t, m, mouse(50, 14, tea.MouseActionRelease, tea.MouseButtonLeft))
	assert.Contains(t, m.inspectPopup, "MINA UNO")
}

func TestModel_QuitTearsDown(t *testing.T) {
	m := newTestModel(t, Options{})
	m, _ = step(t, m, key("d"))

	m, cmd := step(t, m, key("q"))
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
	assert.False(t, m.mv.Alive())
	assert.Equal(t, draw.Idle, m.drawer.State())
	assert.Equal(t, draw.CursorDefault, m.mv.Cursor())

	b := geom.NewBBox(-70, -27, -69.9, -26.9)
	m, cmd = step(t, m, gridLoadedMsg{token: m.token, bbox: b, grid: flatGrid(b, 3, 1)})
	assert.Nil(t, cmd)
	assert.Nil(t, m.grid)
	assert.Empty(t, m.View())
}

func TestModel_InitialBBoxCommitsOnStart(t *testing.T) {
	b := geom.NewBBox(-70, -27, -69.9, -26.9)
	m := New(Options{InitialBBox: &b, Resolution: 4})
	require.NotNil(t, m.bbox)
	msgs := runCmd(m.Init())
	require.Len(t, msgs, 1)
	m, _ = step(t, m, msgs[0])
	assert.Len(t, slopeFeatures(t, m), 16)
}

func TestModel_AttributesTable(t *testing.T) {
	m := newTestModel(t, Options{})
	d, err := geom.ParseGeoJSON([]byte(`{"type":"FeatureCollection","features":[
		{"type":"Feature","properties":{"name":"a","area":1.5},"geometry":{"type":"Point","coordinates":[-70,-27]}},
		{"type":"Feature","properties":{"name":"b","owner":"x"},"geometry":{"type":"Point","coordinates":[-69,-26]}}]}`))
	require.NoError(t, err)
	m.setUserData(d)

	m, _ = step(t, m, key("t"))
	require.True(t, m.showAttrs)
	var titles []string
	for _, c := range m.tbl.Columns() {
		titles = append(titles, c.Title)
	}
	assert.Equal(t, []string{"#", "area", "name", "owner"}, titles)
	require.Len(t, m.tbl.Rows(), 2)
	assert.Equal(t, []string{"2", "", "b", "x"}, []string(m.tbl.Rows()[1]))
	assert.NotEmpty(t, m.View())

	m, _ = step(t, m, key("t"))
	assert.False(t, m.showAttrs)
}

func TestModel_ViewShowsDrawBadge(t *testing.T) {
	m := newTestModel(t, Options{})
	assert.NotContains(t, m.View(), "DRAW")
	m, _ = step(t, m, key("d"))
	assert.Contains(t, m.View(), "DRAW crosshair")
}
