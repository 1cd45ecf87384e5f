package proximity

import (
	"cmp"
	"context"
	"slices"

	"github.com/rotisserie/eris"

	"github.com/sells-group/healthmap/internal/dataset"
	"github.com/sells-group/healthmap/internal/geometry"
	"github.com/sells-group/healthmap/internal/model"
)

// Load-aware ranking weights. A facility's score is
// distance*DistanceWeight + catchment*CatchmentWeight; lower is better, so
// a slightly farther facility with a lighter catchment can outrank the
// nearest one.
const (
	CatchmentRadiusKM = 0.7
	DistanceWeight    = 0.7
	CatchmentWeight   = 0.0003
)

// RecommendedFacility is a facility ranked by distance and catchment load.
type RecommendedFacility struct {
	model.Facility
	DistanceKM float64 `json:"distance_km"` // rounded to two decimals
	Catchment  int64   `json:"catchment_population"`
	Score      float64 `json:"score"`
}

// RecommendFacilities ranks facilities with coordinates for someone at p
// and returns the best k (k <= 0 means DefaultK). The catchment of a
// facility is the population of every non-deleted cell whose centroid lies
// within CatchmentRadiusKM of it. Equal scores keep registry order.
func (s *Service) RecommendFacilities(ctx context.Context, p model.Point, k int) ([]RecommendedFacility, error) {
	p, err := geometry.NewPoint(p.X, p.Y)
	if err != nil {
		return nil, err
	}
	if k <= 0 {
		k = DefaultK
	}
	if k > MaxK {
		return nil, eris.Wrapf(model.ErrInvalidInput, "proximity: k %d exceeds %d", k, MaxK)
	}

	facilities, err := s.facilities.ListFacilities(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "proximity: recommend facilities")
	}
	cells, err := s.population.ListDenseCells(ctx, 0)
	if err != nil {
		return nil, eris.Wrap(err, "proximity: recommend facilities")
	}
	centres := cellCentres(cells)

	out := make([]RecommendedFacility, 0, len(facilities))
	for _, f := range facilities {
		if f.Coord == nil {
			continue
		}
		d := geometry.DistanceKM(p, *f.Coord)
		pop := catchment(*f.Coord, centres)
		out = append(out, RecommendedFacility{
			Facility:   f,
			DistanceKM: geometry.Round2(d),
			Catchment:  pop,
			Score:      d*DistanceWeight + float64(pop)*CatchmentWeight,
		})
	}

	slices.SortStableFunc(out, func(a, b RecommendedFacility) int {
		return cmp.Compare(a.Score, b.Score)
	})
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}

type cellCentre struct {
	at         model.Point
	population int64
}

func cellCentres(cells []model.PopulationCell) []cellCentre {
	out := make([]cellCentre, 0, len(cells))
	for _, c := range cells {
		if c.IsDeleted {
			continue
		}
		at, ok := geometry.Centroid(c.Geometry)
		if !ok {
			at = model.Point{X: c.X, Y: c.Y}
		}
		out = append(out, cellCentre{at: at, population: c.TotalPopulation})
	}
	return out
}

func catchment(at model.Point, centres []cellCentre) int64 {
	var total int64
	for _, c := range centres {
		if geometry.DistanceKM(at, c.at) <= CatchmentRadiusKM {
			total += c.population
		}
	}
	return total
}

// PopulationByRegion returns the non-deleted population per region in
// region name order.
func (s *Service) PopulationByRegion(ctx context.Context) ([]dataset.RegionPopulation, error) {
	regions, err := s.population.PopulationByRegion(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "proximity: population by region")
	}
	return regions, nil
}
