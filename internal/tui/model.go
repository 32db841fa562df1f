package tui

import (
	"context"
	"time"

	table "github.com/charmbracelet/bubbles/table"
	textarea "github.com/charmbracelet/bubbles/textarea"
	textinput "github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/paulmach/orb/geojson"

	"slopemap/internal/draw"
	"slopemap/internal/geom"
	"slopemap/internal/logging"
	"slopemap/internal/mapview"
	"slopemap/internal/overlay"
	"slopemap/internal/provider"
	"slopemap/internal/slope"
)

// Overlay ids on the map.
const (
	overlaySlope        = "slope-cells"
	overlayPreview      = "draw-preview"
	overlayRegion       = "draw-bbox"
	overlayConcessions  = "concessions"
	overlayUser         = "user-data"
	overlayIntersection = "intersection"
)

// Backend serves concession polygons and intersections.
type Backend interface {
	Concessions(ctx context.Context, b geom.BBox) (*provider.Concessions, error)
	Intersect(ctx context.Context, user *geojson.FeatureCollection) (*provider.IntersectResult, error)
}

// Options wires the model to its collaborators.
type Options struct {
	Grid    provider.GridProvider
	Backend Backend // nil when offline
	Logger  logging.Logger

	Resolution int
	Timeout    time.Duration
	Epsilon    float64
	Ranges     []slope.Range

	// InitialBBox, when set, is committed on start.
	InitialBBox *geom.BBox
	// GeometryPath is a GeoJSON, WKT, CSV or KML file shown as user data.
	GeometryPath string
}

// inbox collects output of drawer and map callbacks, which fire
// synchronously inside Update while Model is a value.
type inbox struct {
	committed *geom.BBox
	inspect   string
	hover     string
}

type dragState struct {
	x, y  int
	moved bool
}

type Model struct {
	width  int
	height int

	helpVisible bool
	status      string

	opts Options
	log  logging.Logger

	mv     *mapview.Map
	drawer *draw.Drawer
	syncer *overlay.Syncer
	in     *inbox

	// committed region and the grid fetched for it
	bbox    *geom.BBox
	grid    *slope.ScalarGrid
	token   uint64
	loading bool

	ranges *slope.RangeTable

	user        geom.Data
	concessions *provider.Concessions
	visible     map[string]bool

	drag *dragState

	// paste mode
	pasteMode bool
	ta        textarea.Model

	// range editor
	showRanges bool
	rangeTbl   table.Model
	editField  string
	input      textinput.Model

	// attributes table
	showAttrs bool
	tbl       table.Model

	inspectPopup string

	hoverHasGeo bool
	hoverLon    float64
	hoverLat    float64
	hoverInfo   string

	initCmd tea.Cmd
}

func New(opts Options) Model {
	if opts.Logger == nil {
		opts.Logger = logging.NewNopLogger()
	}
	if opts.Grid == nil {
		opts.Grid = provider.NewSynthetic()
	}
	if opts.Resolution == 0 {
		opts.Resolution = 30
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Epsilon <= 0 {
		opts.Epsilon = draw.DefaultEpsilon
	}
	log := opts.Logger.Named("tui")

	m := Model{
		helpVisible: true,
		status:      "slopemap ready  press d to draw a region",
		opts:        opts,
		log:         log,
		in:          &inbox{},
		ranges:      slope.NewRangeTable(opts.Ranges),
		visible: map[string]bool{
			overlayConcessions:  true,
			overlayUser:         true,
			overlaySlope:        true,
			overlayIntersection: true,
		},
	}
	m.mv = mapview.New(80, 20, mapview.WithLogger(log))
	m.syncer = overlay.NewSyncer(m.mv, log)

	syncer, in := m.syncer, m.in
	m.drawer = draw.New(m.mv, draw.Callbacks{
		OnPreview: func(b geom.BBox) {
			syncer.Upsert(overlayPreview, bboxCollection(b), previewPaint, overlay.Handlers{})
		},
		OnCommit: func(b geom.BBox) {
			syncer.Remove(overlayPreview)
			in.committed = &b
		},
		OnCancel: func() { syncer.Remove(overlayPreview) },
	}, draw.WithEpsilon(opts.Epsilon), draw.WithLogger(log))

	m.ta = textarea.New()
	m.ta.Placeholder = "Paste WKT here (POINT, LINESTRING, POLYGON, MULTI*). Press Enter to load; Esc to cancel."
	m.ta.CharLimit = 0
	m.ta.SetWidth(50)
	m.ta.SetHeight(6)

	m.input = textinput.New()
	m.input.CharLimit = 32

	m.rangeTbl = table.New(table.WithFocused(true))
	m.rangeTbl.SetHeight(8)
	m.refreshRangeTable()

	m.tbl = table.New(table.WithFocused(true))
	m.tbl.SetHeight(12)

	if opts.GeometryPath != "" {
		if d, err := loadGeometry(opts.GeometryPath); err != nil {
			m.status = "load error: " + err.Error()
			log.Warn("geometry load failed", logging.String("path", opts.GeometryPath), logging.Err(err))
		} else {
			m.setUserData(d)
		}
	}
	if opts.InitialBBox != nil && opts.InitialBBox.Valid() {
		m.mv.FitBounds(*opts.InitialBBox)
		m.initCmd = m.commit(*opts.InitialBBox)
	}
	return m
}

func (m Model) Init() tea.Cmd { return m.initCmd }

// Map exposes the surface, mainly for tests.
func (m Model) Map() *mapview.Map { return m.mv }
