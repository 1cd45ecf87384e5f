// Package proximity answers on-demand queries over the live facility and
// population data: nearest facilities to a point and per-district
// aggregates. Queries take no locks and may observe concurrent ingest.
package proximity

import (
	"strings"

	"golang.org/x/text/cases"

	"github.com/sells-group/healthmap/internal/dataset"
	"github.com/sells-group/healthmap/internal/zonecache"
)

// Service runs proximity and coverage queries.
type Service struct {
	facilities dataset.FacilityRegistry
	population dataset.PopulationStore
	zones      zonecache.Cache
}

// NewService creates a Service.
func NewService(facilities dataset.FacilityRegistry, population dataset.PopulationStore, zones zonecache.Cache) *Service {
	return &Service{facilities: facilities, population: population, zones: zones}
}

// fold case-folds s for case-insensitive matching. Cyrillic labels need
// full Unicode folding. Casers are not safe for concurrent use, so each
// call builds its own.
func fold(s string) string {
	return cases.Fold().String(strings.TrimSpace(s))
}

// normalizeDistrict prepares a district filter: the " район" (district)
// suffix users type is dropped before matching.
func normalizeDistrict(s string) string {
	s = fold(s)
	s = strings.ReplaceAll(s, " район", "")
	s = strings.TrimSuffix(s, " district")
	return strings.TrimSpace(s)
}

// matchDistrict reports whether label contains the normalised filter.
func matchDistrict(label, filter string) bool {
	if filter == "" {
		return true
	}
	return strings.Contains(fold(label), filter)
}
