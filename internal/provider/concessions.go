package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/paulmach/orb/geojson"

	"slopemap/internal/geom"
)

// ConcessionFields maps canonical concession property names to the names
// upstream services use for them. Lookups are case-insensitive.
var ConcessionFields = map[string][]string{
	"nombre":              {"NOMBRE", "nombre_concesion"},
	"tipo":                {"TIPO_CONCESION", "tipo_concesion"},
	"titular":             {"TITULAR_NOMBRE", "titular_nombre"},
	"estado":              {"SITUACION_CONCESION", "situacion"},
	"hectareas":           {"HECTAREAS", "superficie_ha"},
	"expediente":          {"NUMERO_ROL", "rol"},
	"comuna":              {"COMUNA"},
	"id_concesion":        {"ID_CONCESION"},
	"ano_inscripcion":     {"ANO_INSCRIPCION"},
	"rut_titular":         {"TITULAR_RUT"},
	"fecha_actualizacion": {"FECHA_ACTUALIZACION"},
}

// Concessions is a normalised concession layer.
type Concessions struct {
	Features *geojson.FeatureCollection
	Source   string
}

// IntersectSummary counts what an intersection request touched.
type IntersectSummary struct {
	InputFeatures     int `json:"input_features"`
	ConcessionsInBBox int `json:"concessions_in_bbox"`
	Intersecting      int `json:"intersecting"`
}

// IntersectResult is the overlap of user geometry with concessions. Each
// feature carries overlap_area_deg2 and overlap_pct.
type IntersectResult struct {
	Features *geojson.FeatureCollection
	Summary  IntersectSummary
}

// Concessions fetches GET /wfs/polygons and normalises feature properties
// once, on the way in.
func (c *HTTPClient) Concessions(ctx context.Context, b geom.BBox) (*Concessions, error) {
	key := b.String()
	if c.cache != nil {
		if v, ok := c.cache.get(key); ok {
			c.log.Debug("concession cache hit")
			return v, nil
		}
	}
	q := url.Values{}
	q.Set("bbox", key)

	var raw json.RawMessage
	if err := c.do(ctx, "GET", "/wfs/polygons", q, nil, &raw); err != nil {
		return nil, fmt.Errorf("fetch concessions: %w", err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(raw)
	if err != nil {
		return nil, fmt.Errorf("decode concessions: %w", err)
	}
	var meta struct {
		Source string `json:"source"`
	}
	_ = json.Unmarshal(raw, &meta)

	normalizeAll(fc)
	out := &Concessions{Features: fc, Source: meta.Source}
	if c.cache != nil {
		c.cache.put(key, out)
	}
	return out, nil
}

// Intersect posts user geometry to /intersection/intersect.
func (c *HTTPClient) Intersect(ctx context.Context, user *geojson.FeatureCollection) (*IntersectResult, error) {
	if user == nil || len(user.Features) == 0 {
		return nil, geom.ErrNoGeometry
	}
	var raw json.RawMessage
	if err := c.do(ctx, "POST", "/intersection/intersect", nil, user, &raw); err != nil {
		return nil, fmt.Errorf("intersect: %w", err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(raw)
	if err != nil {
		return nil, fmt.Errorf("decode intersection: %w", err)
	}
	var meta struct {
		Summary IntersectSummary `json:"summary"`
	}
	_ = json.Unmarshal(raw, &meta)

	normalizeAll(fc)
	return &IntersectResult{Features: fc, Summary: meta.Summary}, nil
}

func normalizeAll(fc *geojson.FeatureCollection) {
	for _, f := range fc.Features {
		f.Properties = geom.NormalizeProperties(f.Properties, ConcessionFields)
	}
}

type cacheEntry struct {
	value   *Concessions
	expires time.Time
}

// concessionCache is a small bbox-keyed TTL cache.
type concessionCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]cacheEntry
}

func newConcessionCache(ttl time.Duration) *concessionCache {
	return &concessionCache{ttl: ttl, now: time.Now, entries: make(map[string]cacheEntry)}
}

func (c *concessionCache) get(key string) (*Concessions, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.now().After(e.expires) {
		delete(c.entries, key)
		return nil, false
	}
	return e.value, true
}

func (c *concessionCache) put(key string, v *Concessions) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{value: v, expires: c.now().Add(c.ttl)}
}
