// Package mapview is a terminal map surface. It holds named GeoJSON sources
// and an ordered stack of fill and line layers drawn from them, renders the
// stack into braille cells and routes pointer events to per-layer handlers.
package mapview

import (
	"errors"
	"fmt"
	"slices"

	"github.com/paulmach/orb/geojson"

	"slopemap/internal/geom"
	"slopemap/internal/logging"
)

var (
	ErrSourceExists    = errors.New("source already exists")
	ErrUnknownSource   = errors.New("unknown source")
	ErrSourceInUse     = errors.New("source is used by a layer")
	ErrLayerExists     = errors.New("layer already exists")
	ErrUnknownLayer    = errors.New("unknown layer")
	ErrUnknownProperty = errors.New("unknown property")
	ErrDestroyed       = errors.New("map destroyed")
)

// LayerType selects how a layer draws its source.
type LayerType string

const (
	Fill LayerType = "fill"
	Line LayerType = "line"
)

// Paint and layout property names accepted by SetPaintProperty and
// SetLayoutProperty.
const (
	PropFillColor     = "fill-color"
	PropFillOpacity   = "fill-opacity"
	PropLineColor     = "line-color"
	PropColorProperty = "color-property"
	PropVisibility    = "visibility"

	Visible = "visible"
	None    = "none"
)

// Cursor names shown while hovering interactive features.
const (
	CursorDefault = ""
	CursorPointer = "pointer"
)

// Paint is a layer's style. When ColorProperty is set, a feature's string
// property of that name overrides the static colour.
type Paint struct {
	FillColor     string
	FillOpacity   float64
	LineColor     string
	ColorProperty string
}

// Layer draws one source. Layers later in the stack draw on top. Z orders
// the stack: a layer goes above every layer with Z not greater than its own
// and below the rest, so equal ranks keep insertion order.
type Layer struct {
	ID     string
	Type   LayerType
	Source string
	Paint  Paint
	Hidden bool
	Z      int
}

// EventType names a pointer event layers can subscribe to.
type EventType string

const (
	EventClick EventType = "click"
	EventHover EventType = "mousemove"
)

// Event is delivered to handlers when a pointer event hits a feature.
type Event struct {
	Type    EventType
	LayerID string
	Feature *geojson.Feature
	Lon     float64
	Lat     float64
	CellX   int
	CellY   int
}

type Handler func(Event)

// Source is a live handle to a source's data.
type Source interface {
	SetData(fc *geojson.FeatureCollection)
	Data() *geojson.FeatureCollection
}

type geoSource struct {
	id      string
	data    *geojson.FeatureCollection
	version int
	index   *featureIndex
}

func (s *geoSource) SetData(fc *geojson.FeatureCollection) {
	if fc == nil {
		fc = geojson.NewFeatureCollection()
	}
	s.data = fc
	s.version++
	s.index = nil
}

func (s *geoSource) Data() *geojson.FeatureCollection { return s.data }

// Map is the surface. Like the rest of the UI it is driven from a single
// goroutine and is not safe for concurrent use.
type Map struct {
	sources  map[string]*geoSource
	layers   []*Layer
	handlers map[EventType]map[string][]Handler

	view   geom.BBox
	width  int
	height int

	dragPan bool
	cursor  string
	alive   bool

	palette *palette
	log     logging.Logger
}

// Option configures a Map.
type Option func(*Map)

// WithLogger attaches a logger.
func WithLogger(l logging.Logger) Option { return func(m *Map) { m.log = l } }

// WithBackground sets the colour fills are blended against.
func WithBackground(hex string) Option {
	return func(m *Map) { m.palette = newPalette(hex) }
}

// WorldBounds is the initial view.
var WorldBounds = geom.BBox{MinX: -180, MinY: -90, MaxX: 180, MaxY: 90}

// New returns a live map of width×height terminal cells showing the world.
func New(width, height int, opts ...Option) *Map {
	m := &Map{
		sources:  make(map[string]*geoSource),
		handlers: make(map[EventType]map[string][]Handler),
		view:     WorldBounds,
		width:    width,
		height:   height,
		dragPan:  true,
		alive:    true,
		palette:  newPalette(DefaultBackground),
		log:      logging.NewNopLogger(),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Alive reports whether the map has not been destroyed.
func (m *Map) Alive() bool { return m.alive }

// Destroy releases everything the map holds. Subsequent mutations fail with
// ErrDestroyed and rendering yields blank cells.
func (m *Map) Destroy() {
	if !m.alive {
		return
	}
	m.alive = false
	m.sources = make(map[string]*geoSource)
	m.layers = nil
	m.handlers = make(map[EventType]map[string][]Handler)
	m.log.Debug("map destroyed")
}

func (m *Map) SetDragPan(enabled bool) { m.dragPan = enabled }
func (m *Map) DragPan() bool           { return m.dragPan }
func (m *Map) SetCursor(name string)   { m.cursor = name }
func (m *Map) Cursor() string          { return m.cursor }

// Resize sets the canvas size in terminal cells.
func (m *Map) Resize(width, height int) {
	m.width, m.height = width, height
}

func (m *Map) Size() (int, int) { return m.width, m.height }

func (m *Map) AddSource(id string, data *geojson.FeatureCollection) error {
	if !m.alive {
		return ErrDestroyed
	}
	if _, ok := m.sources[id]; ok {
		return fmt.Errorf("%w: %s", ErrSourceExists, id)
	}
	s := &geoSource{id: id}
	s.SetData(data)
	m.sources[id] = s
	return nil
}

func (m *Map) Source(id string) (Source, bool) {
	s, ok := m.sources[id]
	if !ok {
		return nil, false
	}
	return s, true
}

// RemoveSource fails while any layer still draws from the source.
func (m *Map) RemoveSource(id string) error {
	if !m.alive {
		return ErrDestroyed
	}
	if _, ok := m.sources[id]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSource, id)
	}
	for _, l := range m.layers {
		if l.Source == id {
			return fmt.Errorf("%w: %s by %s", ErrSourceInUse, id, l.ID)
		}
	}
	delete(m.sources, id)
	return nil
}

// AddLayer inserts a layer at the top of its Z rank.
func (m *Map) AddLayer(spec Layer) error {
	if !m.alive {
		return ErrDestroyed
	}
	if m.Layer(spec.ID) {
		return fmt.Errorf("%w: %s", ErrLayerExists, spec.ID)
	}
	if _, ok := m.sources[spec.Source]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSource, spec.Source)
	}
	l := spec
	at := len(m.layers)
	for i, cur := range m.layers {
		if cur.Z > l.Z {
			at = i
			break
		}
	}
	m.layers = slices.Insert(m.layers, at, &l)
	return nil
}

func (m *Map) Layer(id string) bool {
	return m.layer(id) != nil
}

// LayerSpec returns a copy of the layer's current definition.
func (m *Map) LayerSpec(id string) (Layer, bool) {
	l := m.layer(id)
	if l == nil {
		return Layer{}, false
	}
	return *l, true
}

// LayerIDs lists layers bottom to top.
func (m *Map) LayerIDs() []string {
	ids := make([]string, len(m.layers))
	for i, l := range m.layers {
		ids[i] = l.ID
	}
	return ids
}

// RemoveLayer drops the layer and every handler bound to it.
func (m *Map) RemoveLayer(id string) error {
	if !m.alive {
		return ErrDestroyed
	}
	for i, l := range m.layers {
		if l.ID == id {
			m.layers = append(m.layers[:i], m.layers[i+1:]...)
			for _, byLayer := range m.handlers {
				delete(byLayer, id)
			}
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrUnknownLayer, id)
}

func (m *Map) SetPaintProperty(layerID, name string, value any) error {
	if !m.alive {
		return ErrDestroyed
	}
	l := m.layer(layerID)
	if l == nil {
		return fmt.Errorf("%w: %s", ErrUnknownLayer, layerID)
	}
	switch name {
	case PropFillColor, PropLineColor, PropColorProperty:
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("%s: want string, got %T", name, value)
		}
		switch name {
		case PropFillColor:
			l.Paint.FillColor = s
		case PropLineColor:
			l.Paint.LineColor = s
		default:
			l.Paint.ColorProperty = s
		}
	case PropFillOpacity:
		f, ok := value.(float64)
		if !ok {
			return fmt.Errorf("%s: want float64, got %T", name, value)
		}
		l.Paint.FillOpacity = f
	default:
		return fmt.Errorf("%w: %s", ErrUnknownProperty, name)
	}
	return nil
}

func (m *Map) SetLayoutProperty(layerID, name string, value any) error {
	if !m.alive {
		return ErrDestroyed
	}
	l := m.layer(layerID)
	if l == nil {
		return fmt.Errorf("%w: %s", ErrUnknownLayer, layerID)
	}
	if name != PropVisibility {
		return fmt.Errorf("%w: %s", ErrUnknownProperty, name)
	}
	switch value {
	case Visible:
		l.Hidden = false
	case None:
		l.Hidden = true
	default:
		return fmt.Errorf("visibility: want %q or %q, got %v", Visible, None, value)
	}
	return nil
}

// On registers h for events hitting features of layerID. Handlers stay bound
// until the layer is removed or the map destroyed.
func (m *Map) On(event EventType, layerID string, h Handler) {
	if !m.alive || h == nil {
		return
	}
	byLayer, ok := m.handlers[event]
	if !ok {
		byLayer = make(map[string][]Handler)
		m.handlers[event] = byLayer
	}
	byLayer[layerID] = append(byLayer[layerID], h)
}

// HandlerCount reports how many handlers are bound for event on layerID.
func (m *Map) HandlerCount(event EventType, layerID string) int {
	return len(m.handlers[event][layerID])
}

func (m *Map) layer(id string) *Layer {
	for _, l := range m.layers {
		if l.ID == id {
			return l
		}
	}
	return nil
}
