package geometry

import (
	"math"
	"strconv"

	"github.com/sells-group/healthmap/internal/model"
)

// KMPerDegree converts planar degree distance to kilometres. This is a flat
// approximation applied uniformly; it is not a geodesic distance.
const KMPerDegree = 111.0

// DistanceKM returns the planar distance between two points scaled to km.
func DistanceKM(a, b model.Point) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y) * KMPerDegree
}

// NearestDistance returns the smallest DistanceKM from p to any non-nil
// candidate. ok is false when there are no candidates.
func NearestDistance(p model.Point, candidates []*model.Point) (d float64, ok bool) {
	d = math.Inf(1)
	for _, c := range candidates {
		if c == nil {
			continue
		}
		if cd := DistanceKM(p, *c); cd < d {
			d = cd
			ok = true
		}
	}
	if !ok {
		return 0, false
	}
	return d, true
}

// Round2 rounds the exact binary value of v to two decimals, ties to even.
// 0.125 becomes 0.12 and 0.015 (stored as 0.01499...) becomes 0.01.
func Round2(v float64) float64 {
	r, err := strconv.ParseFloat(strconv.FormatFloat(v, 'f', 2, 64), 64)
	if err != nil {
		return v
	}
	return r
}
