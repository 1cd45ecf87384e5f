package geometry

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"github.com/sells-group/healthmap/internal/model"
)

// Contains reports whether the polygon or multipolygon g contains p.
// Points on the outer ring count as inside. Other geometry types never
// contain anything.
func Contains(g orb.Geometry, p model.Point) bool {
	switch t := g.(type) {
	case orb.Polygon:
		if len(t) == 0 {
			return false
		}
		return planar.PolygonContains(t, p.Orb())
	case orb.MultiPolygon:
		return planar.MultiPolygonContains(t, p.Orb())
	case orb.Ring:
		return len(t) > 0 && planar.RingContains(t, p.Orb())
	default:
		return false
	}
}

// Centroid returns the area-weighted centroid of g. Point geometries return
// themselves. ok is false for nil or empty geometries.
func Centroid(g orb.Geometry) (model.Point, bool) {
	if g == nil {
		return model.Point{}, false
	}
	if pt, isPoint := g.(orb.Point); isPoint {
		return model.Point{X: pt.X(), Y: pt.Y()}, true
	}
	if isEmpty(g) {
		return model.Point{}, false
	}
	c, _ := planar.CentroidArea(g)
	return model.Point{X: c.X(), Y: c.Y()}, true
}

func isEmpty(g orb.Geometry) bool {
	switch t := g.(type) {
	case orb.Polygon:
		return len(t) == 0 || len(t[0]) == 0
	case orb.MultiPolygon:
		for _, p := range t {
			if len(p) > 0 && len(p[0]) > 0 {
				return false
			}
		}
		return true
	case orb.Ring:
		return len(t) == 0
	case orb.LineString:
		return len(t) == 0
	case orb.MultiPoint:
		return len(t) == 0
	case orb.Collection:
		return len(t) == 0
	}
	return false
}
