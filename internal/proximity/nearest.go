package proximity

import (
	"cmp"
	"context"
	"slices"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/healthmap/internal/geometry"
	"github.com/sells-group/healthmap/internal/model"
)

// Limits on the number of nearest facilities returned.
const (
	DefaultK = 5
	MaxK     = 100
)

// NearestQuery selects facilities near Point. K <= 0 means DefaultK.
// District and Category are optional case-insensitive substring filters.
type NearestQuery struct {
	Point    model.Point
	K        int
	District string
	Category string
}

// NearestFacility is a facility with its distance from the query point.
type NearestFacility struct {
	model.Facility
	// DistanceKM is rounded to two decimals for display; ordering uses the
	// unrounded value.
	DistanceKM float64 `json:"distance_km"`

	raw float64
}

// FindNearest returns up to K facilities with coordinates, nearest first.
// Ties keep registry order.
func (s *Service) FindNearest(ctx context.Context, q NearestQuery) ([]NearestFacility, error) {
	p, err := geometry.NewPoint(q.Point.X, q.Point.Y)
	if err != nil {
		return nil, err
	}
	k := q.K
	if k <= 0 {
		k = DefaultK
	}
	if k > MaxK {
		return nil, eris.Wrapf(model.ErrInvalidInput, "proximity: k %d exceeds %d", k, MaxK)
	}

	facilities, err := s.facilities.ListFacilities(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "proximity: find nearest")
	}

	district := normalizeDistrict(q.District)
	category := fold(q.Category)

	out := make([]NearestFacility, 0, len(facilities))
	for _, f := range facilities {
		if f.Coord == nil {
			continue
		}
		if !matchDistrict(f.District, district) {
			continue
		}
		if category != "" && !strings.Contains(fold(f.Categories), category) {
			continue
		}
		d := geometry.DistanceKM(p, *f.Coord)
		out = append(out, NearestFacility{Facility: f, DistanceKM: geometry.Round2(d), raw: d})
	}

	slices.SortStableFunc(out, func(a, b NearestFacility) int {
		return cmp.Compare(a.raw, b.raw)
	})
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}
