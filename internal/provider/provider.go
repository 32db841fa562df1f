// Package provider supplies slope grids, concession polygons and
// intersection results to the map, either from the backend API or from a
// local synthetic terrain model.
package provider

import (
	"context"
	"errors"

	"slopemap/internal/logging"
	"slopemap/internal/slope"
)

// ErrEmptyGrid is returned when a provider answers with no usable rows.
var ErrEmptyGrid = errors.New("empty slope grid")

// Source identifiers and their display labels.
const (
	SourceLiDAR     = "lidar"
	SourceALOS      = "alos_world3d"
	SourceSRTM      = "open_elevation_srtm"
	SourceSynthetic = "synthetic"
)

var sourceLabels = map[string]string{
	SourceLiDAR:     "LiDAR Local",
	SourceALOS:      "ALOS World 3D (30m)",
	SourceSRTM:      "Open-Elevation SRTM (30m)",
	SourceSynthetic: "Datos Sintéticos (offline)",
}

// SourceLabel maps a source id to its label, falling back to the id.
func SourceLabel(source string) string {
	if l, ok := sourceLabels[source]; ok {
		return l
	}
	return source
}

// GridProvider produces a slope-percent grid for a bbox string.
type GridProvider interface {
	SlopeGrid(ctx context.Context, bbox string, resolution int) (*slope.ScalarGrid, error)
}

// Fallback asks Primary first and Secondary when Primary fails.
type Fallback struct {
	Primary   GridProvider
	Secondary GridProvider
	Log       logging.Logger
}

func (f *Fallback) SlopeGrid(ctx context.Context, bbox string, resolution int) (*slope.ScalarGrid, error) {
	if f.Primary != nil {
		g, err := f.Primary.SlopeGrid(ctx, bbox, resolution)
		if err == nil {
			return g, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if f.Secondary == nil {
			return nil, err
		}
		if f.Log != nil {
			f.Log.Warn("primary grid provider failed, falling back",
				logging.String("bbox", bbox), logging.Err(err))
		}
	}
	if f.Secondary == nil {
		return nil, errors.New("no grid provider configured")
	}
	return f.Secondary.SlopeGrid(ctx, bbox, resolution)
}
