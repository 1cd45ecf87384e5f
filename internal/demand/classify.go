// Package demand computes demand zones: dense population cells that lie
// far from every medical facility, classified by how far.
package demand

import (
	"github.com/sells-group/healthmap/internal/geometry"
	"github.com/sells-group/healthmap/internal/model"
)

// MinPopulation is the smallest cell population considered dense.
const MinPopulation int64 = 1500

// Distance thresholds (kilometres).
const (
	servedRadiusKM = 0.5 // cells closer than this are already served
	moderateKM     = 1.0
	criticalKM     = 1.5
)

// ClassifyPriority returns the tier for a nearest-facility distance.
// Rules:
//   - critical: d >= 1.5
//   - moderate: 1.0 <= d < 1.5
//   - low:      d < 1.0
func ClassifyPriority(d float64) model.Priority {
	if d >= criticalKM {
		return model.PriorityCritical
	}
	if d >= moderateKM {
		return model.PriorityModerate
	}
	return model.PriorityLow
}

// ResolveDistrict returns the name of the first district in order whose
// polygon contains p, or model.UnknownDistrict.
func ResolveDistrict(districts []model.District, p model.Point) string {
	for _, d := range districts {
		if geometry.Contains(d.Geometry, p) {
			return d.Name
		}
	}
	return model.UnknownDistrict
}
