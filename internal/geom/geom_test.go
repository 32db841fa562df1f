package geom

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBBox_NormalizesCorners(t *testing.T) {
	b := NewBBox(-69.5, -26.5, -70.0, -27.0)
	assert.Equal(t, BBox{MinX: -70.0, MinY: -27.0, MaxX: -69.5, MaxY: -26.5}, b)
	assert.True(t, b.Valid())
}

func TestBBox_StringFullPrecision(t *testing.T) {
	b := BBox{MinX: -70.123456789012, MinY: -27, MaxX: -69.5, MaxY: -26.5000001}
	assert.Equal(t, "-70.123456789012,-27,-69.5,-26.5000001", b.String())

	back, err := ParseBBox(b.String())
	require.NoError(t, err)
	assert.Equal(t, b, back)
}

func TestParseBBox_Malformed(t *testing.T) {
	for _, s := range []string{"", "1,2,3", "1,2,3,4,5", "a,b,c,d", "1,2,NaN,4", "1,,3,4"} {
		_, err := ParseBBox(s)
		assert.ErrorIs(t, err, ErrMalformedBBox, s)
	}
}

func TestParseBBox_Spaces(t *testing.T) {
	b, err := ParseBBox(" -71.5, -33.0 ,-71.0,-32.5")
	require.NoError(t, err)
	assert.Equal(t, BBox{MinX: -71.5, MinY: -33, MaxX: -71, MaxY: -32.5}, b)
}

func TestBBox_Ring(t *testing.T) {
	r := BBox{MinX: 0, MinY: 0, MaxX: 2, MaxY: 1}.Ring()
	require.Len(t, r, 5)
	assert.Equal(t, r[0], r[4])
	assert.Equal(t, orb.Point{2, 1}, r[2])
}

func TestParseGeoJSON_Variants(t *testing.T) {
	tests := []struct {
		name  string
		doc   string
		count int
		bbox  BBox
	}{
		{
			name: "collection",
			doc: `{"type":"FeatureCollection","features":[
				{"type":"Feature","properties":{"name":"a"},"geometry":{"type":"Polygon","coordinates":[[[-70.65,-27.35],[-70.6,-27.35],[-70.6,-27.3],[-70.65,-27.3],[-70.65,-27.35]]]}},
				{"type":"Feature","properties":{},"geometry":{"type":"Point","coordinates":[-70.7,-27.2]}},
				{"type":"Feature","properties":{},"geometry":null}]}`,
			count: 2,
			bbox:  BBox{MinX: -70.7, MinY: -27.35, MaxX: -70.6, MaxY: -27.2},
		},
		{
			name:  "feature",
			doc:   `{"type":"Feature","properties":{},"geometry":{"type":"LineString","coordinates":[[0,0],[1,2]]}}`,
			count: 1,
			bbox:  BBox{MinX: 0, MinY: 0, MaxX: 1, MaxY: 2},
		},
		{
			name:  "bare geometry",
			doc:   `{"type":"MultiPoint","coordinates":[[1,1],[3,4]]}`,
			count: 1,
			bbox:  BBox{MinX: 1, MinY: 1, MaxX: 3, MaxY: 4},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := ParseGeoJSON([]byte(tt.doc))
			require.NoError(t, err)
			assert.Len(t, d.Features.Features, tt.count)
			assert.InDelta(t, tt.bbox.MinX, d.BBox.MinX, 1e-9)
			assert.InDelta(t, tt.bbox.MinY, d.BBox.MinY, 1e-9)
			assert.InDelta(t, tt.bbox.MaxX, d.BBox.MaxX, 1e-9)
			assert.InDelta(t, tt.bbox.MaxY, d.BBox.MaxY, 1e-9)
		})
	}
}

func TestParseGeoJSON_Errors(t *testing.T) {
	_, err := ParseGeoJSON([]byte(`{"features":[]}`))
	assert.Error(t, err)

	_, err = ParseGeoJSON([]byte(`{"type":"FeatureCollection","features":[]}`))
	assert.ErrorIs(t, err, ErrNoGeometry)

	_, err = ParseGeoJSON([]byte(`not json`))
	assert.Error(t, err)
}

func TestLoadGeo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "area.geojson")
	require.NoError(t, os.WriteFile(path, []byte(`{"type":"Point","coordinates":[-70,-27]}`), 0o600))
	d, err := LoadGeo(path)
	require.NoError(t, err)
	pts, lines, polys := d.Counts()
	assert.Equal(t, 1, pts)
	assert.Zero(t, lines)
	assert.Zero(t, polys)
}

func TestParseWKT(t *testing.T) {
	d, err := ParseWKT("POLYGON((-70 -27, -69.5 -27, -69.5 -26.5, -70 -26.5, -70 -27))")
	require.NoError(t, err)
	_, _, polys := d.Counts()
	assert.Equal(t, 1, polys)
	assert.Equal(t, BBox{MinX: -70, MinY: -27, MaxX: -69.5, MaxY: -26.5}, d.BBox)

	d, err = ParseWKT("LINESTRING(0 0, 3 3)")
	require.NoError(t, err)
	_, lines, _ := d.Counts()
	assert.Equal(t, 1, lines)

	_, err = ParseWKT("  ")
	assert.Error(t, err)
	_, err = ParseWKT("TRIANGLE(1 2)")
	assert.Error(t, err)
}

func TestLookupProperty(t *testing.T) {
	props := geojson.Properties{"NOMBRE": "San José", "hectareas": 12.5}

	v, ok := LookupProperty(props, "nombre")
	require.True(t, ok)
	assert.Equal(t, "San José", v)

	v, ok = LookupProperty(props, "hectareas")
	require.True(t, ok)
	assert.Equal(t, 12.5, v)

	_, ok = LookupProperty(props, "titular")
	assert.False(t, ok)
}

func TestNormalizeProperties(t *testing.T) {
	fields := map[string][]string{
		"nombre":  {"NOMBRE"},
		"titular": {"TITULAR_NOMBRE", "Titular"},
		"estado":  {"SITUACION_CONCESION"},
	}
	in := geojson.Properties{
		"Nombre":         "Mina Uno",
		"titular_nombre": "ACME",
		"OBJECTID":       7,
	}
	out := NormalizeProperties(in, fields)

	assert.Equal(t, "Mina Uno", out["nombre"])
	assert.Equal(t, "ACME", out["titular"])
	assert.Equal(t, 7, out["OBJECTID"])
	assert.NotContains(t, out, "Nombre")
	assert.NotContains(t, out, "titular_nombre")
	assert.NotContains(t, out, "estado")
}

func TestNormalizeProperties_CaseCollisionIsStable(t *testing.T) {
	fields := map[string][]string{"nombre": {"NOMBRE"}}
	in := geojson.Properties{"Nombre": "lower", "NOMBRE": "upper"}
	for i := 0; i < 50; i++ {
		out := NormalizeProperties(in, fields)
		require.Equal(t, "upper", out["nombre"])
		assert.Len(t, out, 1)
	}

	// an exact canonical key beats case variants
	in["nombre"] = "exact"
	assert.Equal(t, "exact", NormalizeProperties(in, fields)["nombre"])
}
