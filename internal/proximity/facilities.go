package proximity

import (
	"context"
	"slices"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/healthmap/internal/model"
)

// FacilityQuery filters the registry listing. All fields are optional.
type FacilityQuery struct {
	District string
	City     string
	Search   string // matched against name, description, categories and address
}

// SearchFacilities lists registry facilities matching q in name order.
func (s *Service) SearchFacilities(ctx context.Context, q FacilityQuery) ([]model.Facility, error) {
	facilities, err := s.facilities.ListFacilities(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "proximity: search facilities")
	}

	district := normalizeDistrict(q.District)
	city := fold(q.City)
	search := fold(q.Search)

	out := make([]model.Facility, 0, len(facilities))
	for _, f := range facilities {
		if !matchDistrict(f.District, district) {
			continue
		}
		if city != "" && fold(f.City) != city {
			continue
		}
		if search != "" &&
			!strings.Contains(fold(f.Name), search) &&
			!strings.Contains(fold(f.Description), search) &&
			!strings.Contains(fold(f.Categories), search) &&
			!strings.Contains(fold(f.Address), search) {
			continue
		}
		out = append(out, f)
	}
	return out, nil
}

// Districts returns the distinct non-empty facility district labels, sorted.
func (s *Service) Districts(ctx context.Context) ([]string, error) {
	facilities, err := s.facilities.ListFacilities(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "proximity: list districts")
	}

	seen := make(map[string]bool)
	out := []string{}
	for _, f := range facilities {
		if f.District == "" || seen[f.District] {
			continue
		}
		seen[f.District] = true
		out = append(out, f.District)
	}
	slices.Sort(out)
	return out, nil
}
