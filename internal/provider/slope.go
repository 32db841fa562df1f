package provider

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"slopemap/internal/geom"
	"slopemap/internal/slope"
)

type slopeResponse struct {
	GridSize      int         `json:"grid_size"`
	BBox          string      `json:"bbox"`
	SlopesPercent [][]float64 `json:"slopes_percent"`
	Stats         struct {
		MinPct  float64 `json:"min_slope_pct"`
		MaxPct  float64 `json:"max_slope_pct"`
		MeanPct float64 `json:"mean_slope_pct"`
	} `json:"stats"`
	Source      string `json:"source"`
	SourceLabel string `json:"source_label"`
}

// SlopeGrid fetches GET /dem/slope. Any failure yields no grid at all.
func (c *HTTPClient) SlopeGrid(ctx context.Context, bbox string, resolution int) (*slope.ScalarGrid, error) {
	b, err := geom.ParseBBox(bbox)
	if err != nil {
		return nil, err
	}
	q := url.Values{}
	q.Set("bbox", bbox)
	q.Set("resolution", strconv.Itoa(resolution))

	var resp slopeResponse
	if err := c.do(ctx, "GET", "/dem/slope", q, nil, &resp); err != nil {
		return nil, fmt.Errorf("fetch slope grid: %w", err)
	}
	if len(resp.SlopesPercent) == 0 {
		return nil, ErrEmptyGrid
	}
	if resp.BBox != "" {
		if rb, err := geom.ParseBBox(resp.BBox); err == nil {
			b = rb
		}
	}
	label := resp.SourceLabel
	if label == "" {
		label = SourceLabel(resp.Source)
	}
	return &slope.ScalarGrid{
		Size:        resp.GridSize,
		BBox:        &b,
		Values:      resp.SlopesPercent,
		Source:      resp.Source,
		SourceLabel: label,
		Stats: slope.Stats{
			Min:  resp.Stats.MinPct,
			Mean: resp.Stats.MeanPct,
			Max:  resp.Stats.MaxPct,
		},
	}, nil
}
