// Package overlay keeps named feature collections in sync with a map
// surface. Each overlay owns one source and a fill and a line layer drawn
// from it; the first Upsert creates them and later ones only swap the data.
package overlay

import (
	"github.com/paulmach/orb/geojson"

	"slopemap/internal/logging"
	"slopemap/internal/mapview"
)

// Surface is the part of the map the syncer drives.
type Surface interface {
	AddSource(id string, data *geojson.FeatureCollection) error
	Source(id string) (mapview.Source, bool)
	RemoveSource(id string) error
	AddLayer(spec mapview.Layer) error
	Layer(id string) bool
	RemoveLayer(id string) error
	SetPaintProperty(layerID, name string, value any) error
	SetLayoutProperty(layerID, name string, value any) error
	On(event mapview.EventType, layerID string, h mapview.Handler)
	Alive() bool
}

// Paint styles an overlay's two layers.
type Paint struct {
	FillColor     string
	FillOpacity   float64
	LineColor     string
	ColorProperty string
	// NoFill skips the fill layer, for outline-only overlays.
	NoFill bool
	// Z is the stacking rank of both layers; higher draws on top.
	Z int
}

// Handlers are bound to the overlay's fill layer (or its line layer when
// there is no fill) once per surface lifetime.
type Handlers struct {
	OnClick mapview.Handler
	OnHover mapview.Handler
}

func FillLayerID(id string) string { return id + "-fill" }
func LineLayerID(id string) string { return id + "-line" }

// Syncer mirrors overlays onto one surface. It must be used from the UI
// event loop only.
type Syncer struct {
	surface  Surface
	registry *Registry
	log      logging.Logger
}

// NewSyncer binds a syncer to surface. A nil logger is replaced by a no-op.
func NewSyncer(surface Surface, log logging.Logger) *Syncer {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Syncer{surface: surface, registry: NewRegistry(), log: log.Named("overlay")}
}

// Registry exposes the per-surface bookkeeping, mainly for inspection.
func (s *Syncer) Registry() *Registry { return s.registry }

func (s *Syncer) live() bool {
	return s.surface != nil && s.surface.Alive()
}

// Upsert shows fc under id. The first call for an id creates the source and
// layers and attaches handlers; later calls only replace the data and leave
// layers, paint and handlers as they are. Calls after the surface is torn
// down are ignored.
func (s *Syncer) Upsert(id string, fc *geojson.FeatureCollection, paint Paint, handlers Handlers) {
	if !s.live() {
		return
	}
	if fc == nil {
		fc = geojson.NewFeatureCollection()
	}

	if src, ok := s.surface.Source(id); ok {
		src.SetData(fc)
		s.registry.markSource(id)
		s.log.Debug("overlay updated", logging.String("id", id), logging.Int("features", len(fc.Features)))
		return
	}

	if err := s.surface.AddSource(id, fc); err != nil {
		s.warn("add source", id, err)
		return
	}
	s.registry.markSource(id)

	fillID, lineID := FillLayerID(id), LineLayerID(id)
	if !paint.NoFill && !s.surface.Layer(fillID) {
		err := s.surface.AddLayer(mapview.Layer{
			ID:     fillID,
			Type:   mapview.Fill,
			Source: id,
			Z:      paint.Z,
			Paint: mapview.Paint{
				FillColor:     paint.FillColor,
				FillOpacity:   paint.FillOpacity,
				ColorProperty: paint.ColorProperty,
			},
		})
		if err != nil {
			s.warn("add fill layer", id, err)
		}
	}
	if !s.surface.Layer(lineID) {
		err := s.surface.AddLayer(mapview.Layer{
			ID:     lineID,
			Type:   mapview.Line,
			Source: id,
			Z:      paint.Z,
			Paint:  mapview.Paint{LineColor: paint.LineColor, ColorProperty: paint.ColorProperty},
		})
		if err != nil {
			s.warn("add line layer", id, err)
		}
	}

	if !s.registry.handlersAttached(id) {
		target := fillID
		if paint.NoFill {
			target = lineID
		}
		if handlers.OnClick != nil {
			s.surface.On(mapview.EventClick, target, handlers.OnClick)
		}
		if handlers.OnHover != nil {
			s.surface.On(mapview.EventHover, target, handlers.OnHover)
		}
		s.registry.markHandlers(id)
	}
	s.log.Debug("overlay created", logging.String("id", id), logging.Int("features", len(fc.Features)))
}

// Remove drops id's layers, then its source, then its registry entry.
// Unknown ids are a no-op.
func (s *Syncer) Remove(id string) {
	if !s.live() {
		return
	}
	for _, lid := range []string{FillLayerID(id), LineLayerID(id)} {
		if s.surface.Layer(lid) {
			if err := s.surface.RemoveLayer(lid); err != nil {
				s.warn("remove layer", id, err)
			}
		}
	}
	if _, ok := s.surface.Source(id); ok {
		if err := s.surface.RemoveSource(id); err != nil {
			s.warn("remove source", id, err)
		}
	}
	if s.registry.forget(id) {
		s.log.Debug("overlay removed", logging.String("id", id))
	}
}

// SetVisible shows or hides both of id's layers.
func (s *Syncer) SetVisible(id string, visible bool) {
	if !s.live() {
		return
	}
	v := mapview.None
	if visible {
		v = mapview.Visible
	}
	for _, lid := range []string{FillLayerID(id), LineLayerID(id)} {
		if !s.surface.Layer(lid) {
			continue
		}
		if err := s.surface.SetLayoutProperty(lid, mapview.PropVisibility, v); err != nil {
			s.warn("set visibility", id, err)
		}
	}
}

// SetPaint updates a paint property on one of id's layers.
func (s *Syncer) SetPaint(layerID, name string, value any) {
	if !s.live() || !s.surface.Layer(layerID) {
		return
	}
	if err := s.surface.SetPaintProperty(layerID, name, value); err != nil {
		s.warn("set paint", layerID, err)
	}
}

func (s *Syncer) warn(op, id string, err error) {
	s.log.Warn("surface call failed",
		logging.String("op", op), logging.String("id", id), logging.Err(err))
}
