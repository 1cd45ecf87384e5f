package proximity

import (
	"context"
	"math"
	"slices"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/healthmap/internal/model"
	"github.com/sells-group/healthmap/internal/zonecache"
)

// OverloadThreshold is the population per facility above which a district
// is overloaded.
const OverloadThreshold = 15000

// Coverage statuses.
const (
	StatusNormal     = "normal"
	StatusOverloaded = "overloaded"
)

// DistrictCoverage is the population load on one district's facilities.
// PopulationPerClinic is nil when the district has no facilities.
type DistrictCoverage struct {
	District            string `json:"district"`
	Population          int64  `json:"population"`
	ClinicCount         int    `json:"clinic_count"`
	PopulationPerClinic *int64 `json:"population_per_clinic"`
	Status              string `json:"status"`
}

// DistrictCoverage reports every region with recorded population, in region
// name order. Facilities count toward a region only on an exact district
// label match.
func (s *Service) DistrictCoverage(ctx context.Context) ([]DistrictCoverage, error) {
	regions, err := s.population.PopulationByRegion(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "proximity: district coverage")
	}
	facilities, err := s.facilities.ListFacilities(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "proximity: district coverage")
	}

	counts := make(map[string]int)
	for _, f := range facilities {
		if f.District != "" {
			counts[f.District]++
		}
	}

	out := make([]DistrictCoverage, 0, len(regions))
	for _, r := range regions {
		c := DistrictCoverage{
			District:    r.Region,
			Population:  r.Population,
			ClinicCount: counts[r.Region],
			Status:      StatusNormal,
		}
		if c.ClinicCount > 0 {
			ratio := coverageRatio(r.Population, c.ClinicCount)
			c.PopulationPerClinic = &ratio
			if ratio > OverloadThreshold {
				c.Status = StatusOverloaded
			}
		}
		out = append(out, c)
	}
	return out, nil
}

// coverageRatio rounds population/count to the nearest integer, halves to even.
func coverageRatio(population int64, count int) int64 {
	return int64(math.RoundToEven(float64(population) / float64(count)))
}

// AgeStructure sums the age brackets of one district; "" or "all" means the
// whole city.
func (s *Service) AgeStructure(ctx context.Context, district string) (model.AgeStructure, error) {
	district = strings.TrimSpace(district)
	if strings.EqualFold(district, "all") {
		district = ""
	}
	a, err := s.population.SumAgeStructure(ctx, district)
	if err != nil {
		return model.AgeStructure{}, eris.Wrap(err, "proximity: age structure")
	}
	return a, nil
}

// DistrictCount is the number of facilities labelled with one district.
type DistrictCount struct {
	District string `json:"district"`
	Count    int    `json:"count"`
}

// ClinicSummary describes how facilities spread over districts. Max and Min
// are nil when no facility carries a district label.
type ClinicSummary struct {
	Total     int             `json:"total"`
	Max       *DistrictCount  `json:"max"`
	Min       *DistrictCount  `json:"min"`
	Mean      float64         `json:"mean"`
	Districts []DistrictCount `json:"districts"`
}

// ClinicSummary groups facilities by district label (groups in name order)
// and reports the largest and smallest group, first on ties, and the mean
// group size.
func (s *Service) ClinicSummary(ctx context.Context) (ClinicSummary, error) {
	facilities, err := s.facilities.ListFacilities(ctx)
	if err != nil {
		return ClinicSummary{}, eris.Wrap(err, "proximity: clinic summary")
	}

	counts := make(map[string]int)
	for _, f := range facilities {
		if f.District != "" {
			counts[f.District]++
		}
	}

	sum := ClinicSummary{Districts: make([]DistrictCount, 0, len(counts))}
	for d, n := range counts {
		sum.Districts = append(sum.Districts, DistrictCount{District: d, Count: n})
		sum.Total += n
	}
	slices.SortFunc(sum.Districts, func(a, b DistrictCount) int {
		return strings.Compare(a.District, b.District)
	})

	for i := range sum.Districts {
		dc := sum.Districts[i]
		if sum.Max == nil || dc.Count > sum.Max.Count {
			sum.Max = &dc
		}
		if sum.Min == nil || dc.Count < sum.Min.Count {
			sum.Min = &dc
		}
	}
	if n := len(sum.Districts); n > 0 {
		sum.Mean = float64(sum.Total) / float64(n)
	}
	return sum, nil
}

// HighDemandZones lists the cached demand zones matching f.
func (s *Service) HighDemandZones(ctx context.Context, f zonecache.Filter) ([]model.DemandZone, error) {
	if f.Priority != "" && !f.Priority.Valid() {
		return nil, eris.Wrapf(model.ErrInvalidInput, "proximity: unknown priority %q", f.Priority)
	}
	zones, err := s.zones.List(ctx, f)
	if err != nil {
		return nil, eris.Wrap(err, "proximity: high demand zones")
	}
	return zones, nil
}
