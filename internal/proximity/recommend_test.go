package proximity

import (
	"context"
	"errors"
	"testing"

	"github.com/paulmach/orb"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/healthmap/internal/dataset"
	"github.com/sells-group/healthmap/internal/model"
)

// tinySquare is a small cell polygon centred on (xKM, yKM).
func tinySquare(xKM, yKM float64) orb.Polygon {
	cx, cy, h := deg(xKM), deg(yKM), deg(0.01)
	return orb.Polygon{orb.Ring{
		{cx - h, cy - h}, {cx + h, cy - h}, {cx + h, cy + h}, {cx - h, cy + h}, {cx - h, cy - h},
	}}
}

func recommendFixture() *fakeData {
	return &fakeData{
		facilities: []model.Facility{
			at("busy", 1.0, 0, "", ""),
			{Name: "no coords"},
			at("near", 0.5, 0, "", ""),
			at("quiet", 2.0, 0, "", ""),
		},
		cells: []model.PopulationCell{
			// 0.6 km from "near".
			{ID: 1, X: deg(0.5), Y: deg(0.6), TotalPopulation: 1000},
			// 0.8 km from "near": outside every catchment.
			{ID: 2, X: deg(0.5), Y: deg(-0.8), TotalPopulation: 9000},
			// Polygon centroid is 0.36 km from "busy"; X/Y point elsewhere.
			{ID: 3, X: 50, Y: 50, TotalPopulation: 5000, Geometry: tinySquare(1.2, -0.3)},
			{ID: 4, X: deg(2.0), Y: deg(0.1), TotalPopulation: 100000, IsDeleted: true},
		},
	}
}

func TestRecommendFacilities_ScoreOrder(t *testing.T) {
	s := newTestService(recommendFixture())

	got, err := s.RecommendFacilities(context.Background(), model.Point{}, 0)
	require.NoError(t, err)
	require.Len(t, got, 3)

	// Nearest-first would be near, busy, quiet; the catchment of "busy"
	// pushes it last.
	assert.Equal(t, "near", got[0].Name)
	assert.Equal(t, int64(1000), got[0].Catchment)
	assert.Equal(t, 0.5, got[0].DistanceKM)
	assert.InDelta(t, 0.5*DistanceWeight+1000*CatchmentWeight, got[0].Score, 1e-9)

	assert.Equal(t, "quiet", got[1].Name)
	assert.Equal(t, int64(0), got[1].Catchment, "deleted cells do not count")
	assert.InDelta(t, 1.4, got[1].Score, 1e-9)

	assert.Equal(t, "busy", got[2].Name)
	assert.Equal(t, int64(5000), got[2].Catchment)
	assert.InDelta(t, 2.2, got[2].Score, 1e-9)

	for i := 1; i < len(got); i++ {
		assert.LessOrEqual(t, got[i-1].Score, got[i].Score)
	}
}

func TestRecommendFacilities_K(t *testing.T) {
	s := newTestService(recommendFixture())

	got, err := s.RecommendFacilities(context.Background(), model.Point{}, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, []string{"near", "quiet"}, []string{got[0].Name, got[1].Name})

	_, err = s.RecommendFacilities(context.Background(), model.Point{}, MaxK+1)
	require.Error(t, err)
	assert.True(t, eris.Is(err, model.ErrInvalidInput))
}

func TestRecommendFacilities_TopFiveByDefault(t *testing.T) {
	data := &fakeData{}
	for i := 0; i < 8; i++ {
		data.facilities = append(data.facilities, at(string(rune('a'+i)), float64(i+1), 0, "", ""))
	}
	s := newTestService(data)

	got, err := s.RecommendFacilities(context.Background(), model.Point{}, 0)
	require.NoError(t, err)
	require.Len(t, got, DefaultK)
	assert.Equal(t, "a", got[0].Name)
	assert.Equal(t, "e", got[4].Name)
}

func TestRecommendFacilities_Errors(t *testing.T) {
	s := newTestService(recommendFixture())
	_, err := s.RecommendFacilities(context.Background(), model.Point{X: 200}, 1)
	assert.True(t, eris.Is(err, model.ErrInvalidInput))

	s = newTestService(&fakeData{err: eris.Wrap(model.ErrUpstreamUnavailable, "dataset: list cells")})
	_, err = s.RecommendFacilities(context.Background(), model.Point{}, 1)
	require.Error(t, err)
	assert.True(t, eris.Is(err, model.ErrUpstreamUnavailable))
}

func TestPopulationByRegion(t *testing.T) {
	regions := []dataset.RegionPopulation{
		{Region: "Алмалинский район", Population: 45001},
		{Region: "Медеуский район", Population: 12000},
	}
	s := newTestService(&fakeData{regions: regions})

	got, err := s.PopulationByRegion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, regions, got)

	s = newTestService(&fakeData{err: errors.New("down")})
	_, err = s.PopulationByRegion(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "proximity: population by region")
}
