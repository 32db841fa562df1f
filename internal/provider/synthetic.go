package provider

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"slopemap/internal/geom"
	"slopemap/internal/slope"
)

const (
	// DefaultSigma is the Gaussian pre-smoothing applied before Horn's kernel.
	DefaultSigma = 0.8
	// gaussTruncate matches the usual cut-off of four standard deviations.
	gaussTruncate = 4.0

	metresPerDegLon = 111320.0
	metresPerDegLat = 110540.0
)

// Synthetic computes slope offline from an analytic terrain model.
type Synthetic struct {
	Sigma float64
}

func NewSynthetic() *Synthetic { return &Synthetic{Sigma: DefaultSigma} }

// SyntheticElevation is the offline terrain model, in metres.
func SyntheticElevation(lon, lat float64) float64 {
	e := 500 + 200*math.Sin(lat*0.1) + 150*math.Cos(lon*0.1)
	return math.Round(e*10) / 10
}

func (s *Synthetic) SlopeGrid(ctx context.Context, bbox string, resolution int) (*slope.ScalarGrid, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b, err := geom.ParseBBox(bbox)
	if err != nil {
		return nil, err
	}
	if !b.Valid() {
		return nil, fmt.Errorf("%w: empty extent", geom.ErrMalformedBBox)
	}
	n := slope.ClampResolution(resolution)

	xs, ys := linspace(b.MinX, b.MaxX, n), linspace(b.MinY, b.MaxY, n)
	elev := make([][]float64, n)
	for r, y := range ys {
		elev[r] = make([]float64, n)
		for c, x := range xs {
			elev[r][c] = SyntheticElevation(x, y)
		}
	}

	sigma := s.Sigma
	if sigma > 0 {
		elev = gaussianFilter(elev, sigma)
	}

	latC := (b.MinY + b.MaxY) / 2
	dxM := b.Width() / float64(n-1) * metresPerDegLon * math.Cos(latC*math.Pi/180)
	dyM := b.Height() / float64(n-1) * metresPerDegLat
	pct := hornSlopePercent(elev, dxM, dyM)

	flat := make([]float64, 0, n*n)
	for _, row := range pct {
		flat = append(flat, row...)
	}
	return &slope.ScalarGrid{
		Size:        n,
		BBox:        &b,
		Values:      pct,
		Source:      SourceSynthetic,
		SourceLabel: SourceLabel(SourceSynthetic),
		Stats: slope.Stats{
			Min:  round2(floats.Min(flat)),
			Mean: round2(floats.Sum(flat) / float64(len(flat))),
			Max:  round2(floats.Max(flat)),
		},
	}, nil
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }

// linspace returns n evenly spaced values from start to stop inclusive.
func linspace(start, stop float64, n int) []float64 {
	out := make([]float64, n)
	if n == 1 {
		out[0] = start
		return out
	}
	step := (stop - start) / float64(n-1)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	out[n-1] = stop
	return out
}

// mirror folds i into [0, n) reflecting about the edge itself, so the edge
// sample repeats (d c b a | a b c d | d c b a).
func mirror(i, n int) int {
	for i < 0 || i >= n {
		if i < 0 {
			i = -i - 1
		} else {
			i = 2*n - i - 1
		}
	}
	return i
}

// reflect folds i into [0, n) reflecting about the edge sample, which is
// not repeated (d c b | a b c d | c b a).
func reflect(i, n int) int {
	if n == 1 {
		return 0
	}
	for i < 0 || i >= n {
		if i < 0 {
			i = -i
		} else {
			i = 2*(n-1) - i
		}
	}
	return i
}

func gaussianKernel(sigma float64) []float64 {
	radius := int(gaussTruncate*sigma + 0.5)
	k := make([]float64, 2*radius+1)
	for i := range k {
		x := float64(i - radius)
		k[i] = math.Exp(-0.5 * x * x / (sigma * sigma))
	}
	floats.Scale(1/floats.Sum(k), k)
	return k
}

// gaussianFilter smooths z separably, rows then columns.
func gaussianFilter(z [][]float64, sigma float64) [][]float64 {
	k := gaussianKernel(sigma)
	radius := len(k) / 2
	rows := len(z)
	if rows == 0 {
		return z
	}
	cols := len(z[0])

	tmp := make([][]float64, rows)
	for r := range z {
		tmp[r] = make([]float64, cols)
		for c := 0; c < cols; c++ {
			var acc float64
			for j, w := range k {
				acc += w * z[r][mirror(c+j-radius, cols)]
			}
			tmp[r][c] = acc
		}
	}
	out := make([][]float64, rows)
	for r := range tmp {
		out[r] = make([]float64, cols)
		for c := 0; c < cols; c++ {
			var acc float64
			for j, w := range k {
				acc += w * tmp[mirror(r+j-radius, rows)][c]
			}
			out[r][c] = acc
		}
	}
	return out
}

// hornSlopePercent applies Horn's 3×3 kernel with reflected edges:
//
//	a b c
//	d e f
//	g h i
//
// dz/dx = ((c+2f+i) - (a+2d+g)) / 8dx, dz/dy = ((g+2h+i) - (a+2b+c)) / 8dy.
func hornSlopePercent(z [][]float64, dx, dy float64) [][]float64 {
	rows := len(z)
	out := make([][]float64, rows)
	if rows == 0 {
		return out
	}
	cols := len(z[0])
	at := func(r, c int) float64 { return z[reflect(r, rows)][reflect(c, cols)] }
	for r := 0; r < rows; r++ {
		out[r] = make([]float64, cols)
		for c := 0; c < cols; c++ {
			a, b, cc := at(r-1, c-1), at(r-1, c), at(r-1, c+1)
			d, f := at(r, c-1), at(r, c+1)
			g, h, i := at(r+1, c-1), at(r+1, c), at(r+1, c+1)
			dzdx := ((cc + 2*f + i) - (a + 2*d + g)) / (8 * dx)
			dzdy := ((g + 2*h + i) - (a + 2*b + cc)) / (8 * dy)
			out[r][c] = math.Tan(math.Atan(math.Hypot(dzdx, dzdy))) * 100
		}
	}
	return out
}
