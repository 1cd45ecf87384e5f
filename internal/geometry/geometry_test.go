package geometry

import (
	"math"
	"testing"

	"github.com/paulmach/orb"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/healthmap/internal/model"
)

func square(minX, minY, maxX, maxY float64) orb.Polygon {
	return orb.Polygon{orb.Ring{
		{minX, minY}, {maxX, minY}, {maxX, maxY}, {minX, maxY}, {minX, minY},
	}}
}

func TestNewPoint(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		x, y    float64
		wantErr bool
	}{
		{"origin", 0, 0, false},
		{"almaty", 76.95, 43.24, false},
		{"corner", 180, -90, false},
		{"x too large", 180.01, 0, true},
		{"y too small", 0, -90.5, true},
		{"nan", math.NaN(), 0, true},
		{"inf", 0, math.Inf(1), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p, err := NewPoint(tt.x, tt.y)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, eris.Is(err, model.ErrInvalidInput))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, model.Point{X: tt.x, Y: tt.y}, p)
		})
	}
}

func TestParsePoint(t *testing.T) {
	t.Parallel()

	p, err := ParsePoint(" 76.9 ", "43.2")
	require.NoError(t, err)
	assert.Equal(t, model.Point{X: 76.9, Y: 43.2}, p)

	for _, in := range [][2]string{{"", "1"}, {"abc", "1"}, {"1", "x"}, {"500", "1"}} {
		_, err := ParsePoint(in[0], in[1])
		assert.True(t, eris.Is(err, model.ErrInvalidInput), "%v", in)
	}
}

func TestParseCoord(t *testing.T) {
	t.Parallel()

	assert.Nil(t, ParseCoord("", ""))
	assert.Nil(t, ParseCoord("n/a", "43"))
	c := ParseCoord("76.9", "43.2")
	require.NotNil(t, c)
	assert.Equal(t, 76.9, c.X)
}

func TestDistanceKM(t *testing.T) {
	t.Parallel()

	a := model.Point{X: 0, Y: 0}
	assert.Equal(t, 0.0, DistanceKM(a, a))
	assert.InDelta(t, 111.0, DistanceKM(a, model.Point{X: 1, Y: 0}), 1e-9)
	assert.InDelta(t, 555.0, DistanceKM(a, model.Point{X: 3, Y: 4}), 1e-9)
	// Symmetric.
	b := model.Point{X: 0.01, Y: 0.02}
	assert.Equal(t, DistanceKM(a, b), DistanceKM(b, a))
}

func TestNearestDistance(t *testing.T) {
	t.Parallel()

	p := model.Point{X: 0, Y: 0}

	_, ok := NearestDistance(p, nil)
	assert.False(t, ok)

	_, ok = NearestDistance(p, []*model.Point{nil, nil})
	assert.False(t, ok)

	d, ok := NearestDistance(p, []*model.Point{
		{X: 0.1, Y: 0},
		nil,
		{X: 0, Y: 0.01},
		{X: 1, Y: 1},
	})
	require.True(t, ok)
	assert.InDelta(t, 1.11, d, 1e-9)
}

func TestRound2(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   float64
		want float64
	}{
		{1.1111, 1.11},
		{0.555000001, 0.56},
		{1.999, 2.0},
		{0.125, 0.12},
		{1.125, 1.12},
		{0.375, 0.38},
		{0.015, 0.01},
		{0, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Round2(tt.in), "Round2(%v)", tt.in)
	}
}

func TestContains(t *testing.T) {
	t.Parallel()

	sq := square(0, 0, 1, 1)

	assert.True(t, Contains(sq, model.Point{X: 0.5, Y: 0.5}))
	assert.False(t, Contains(sq, model.Point{X: 1.5, Y: 0.5}))
	// Boundary counts as inside.
	assert.True(t, Contains(sq, model.Point{X: 0, Y: 0.5}))

	mp := orb.MultiPolygon{square(10, 10, 11, 11), sq}
	assert.True(t, Contains(mp, model.Point{X: 0.2, Y: 0.2}))
	assert.True(t, Contains(mp, model.Point{X: 10.5, Y: 10.5}))
	assert.False(t, Contains(mp, model.Point{X: 5, Y: 5}))

	withHole := orb.Polygon{sq[0], square(0.4, 0.4, 0.6, 0.6)[0]}
	assert.False(t, Contains(withHole, model.Point{X: 0.5, Y: 0.5}))
	assert.True(t, Contains(withHole, model.Point{X: 0.1, Y: 0.1}))

	assert.False(t, Contains(orb.Point{0.5, 0.5}, model.Point{X: 0.5, Y: 0.5}))
	assert.False(t, Contains(nil, model.Point{}))
	assert.False(t, Contains(orb.Polygon{}, model.Point{}))
}

func TestCentroid(t *testing.T) {
	t.Parallel()

	c, ok := Centroid(square(0, 0, 2, 2))
	require.True(t, ok)
	assert.InDelta(t, 1.0, c.X, 1e-9)
	assert.InDelta(t, 1.0, c.Y, 1e-9)

	c, ok = Centroid(orb.Point{3, 4})
	require.True(t, ok)
	assert.Equal(t, model.Point{X: 3, Y: 4}, c)

	_, ok = Centroid(nil)
	assert.False(t, ok)
	_, ok = Centroid(orb.Polygon{})
	assert.False(t, ok)
}

func TestWKBRoundTrip(t *testing.T) {
	t.Parallel()

	sq := square(76.9, 43.2, 77.0, 43.3)
	b, err := EncodeWKB(sq)
	require.NoError(t, err)

	g, err := DecodeWKB(b)
	require.NoError(t, err)
	assert.True(t, orb.Equal(sq, g))

	g, err = DecodeWKB(nil)
	require.NoError(t, err)
	assert.Nil(t, g)

	_, err = DecodeWKB([]byte{0x01, 0x02})
	assert.Error(t, err)

	b, err = EncodeWKB(nil)
	require.NoError(t, err)
	assert.Nil(t, b)
}

func TestWKTAndGeoJSON(t *testing.T) {
	t.Parallel()

	g, err := DecodeWKT("POLYGON((0 0,1 0,1 1,0 1,0 0))")
	require.NoError(t, err)
	assert.True(t, Contains(g, model.Point{X: 0.5, Y: 0.5}))
	assert.Contains(t, EncodeWKT(g), "POLYGON")
	assert.Equal(t, "", EncodeWKT(nil))

	_, err = DecodeWKT("NOT WKT")
	assert.Error(t, err)

}

func TestZoneFeatures(t *testing.T) {
	t.Parallel()

	fc := ZoneFeatures([]model.DemandZone{
		{X: 1, Y: 2, Population: 1600, Priority: model.PriorityLow, Geometry: square(0, 0, 1, 1)},
		{X: 3, Y: 4, Population: 2000, Priority: model.PriorityCritical, District: "Medeu"},
	})
	require.Len(t, fc.Features, 2)
	assert.Equal(t, "Polygon", fc.Features[0].Geometry.GeoJSONType())
	assert.Equal(t, orb.Point{3, 4}, fc.Features[1].Geometry)
	assert.Equal(t, "critical", fc.Features[1].Properties["priority"])
	assert.Equal(t, "Medeu", fc.Features[1].Properties["district"])

	assert.Empty(t, ZoneFeatures(nil).Features)
}
