package api

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/healthmap/internal/geometry"
	"github.com/sells-group/healthmap/internal/model"
	"github.com/sells-group/healthmap/internal/proximity"
	"github.com/sells-group/healthmap/internal/report"
	"github.com/sells-group/healthmap/internal/zonecache"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func (s *Server) listFacilities(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	facilities, err := s.svc.SearchFacilities(r.Context(), proximity.FacilityQuery{
		District: q.Get("district"),
		City:     q.Get("city"),
		Search:   q.Get("search"),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(facilities))
}

func (s *Server) nearestFacilities(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	p, err := geometry.ParsePoint(q.Get("x"), q.Get("y"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	k, err := parseK(q.Get("k"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	nearest, err := s.svc.FindNearest(r.Context(), proximity.NearestQuery{
		Point:    p,
		K:        k,
		District: q.Get("district"),
		Category: q.Get("category"),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(nearest))
}

// parseK reads an optional result count; empty means the service default.
func parseK(ks string) (int, error) {
	if ks == "" {
		return 0, nil
	}
	k, err := strconv.Atoi(ks)
	if err != nil {
		return 0, eris.Wrapf(model.ErrInvalidInput, "api: parse k %q", ks)
	}
	return k, nil
}

// recommendedFacilities ranks facilities by distance and catchment load.
func (s *Server) recommendedFacilities(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	p, err := geometry.ParsePoint(q.Get("x"), q.Get("y"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	k, err := parseK(q.Get("k"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	ranked, err := s.svc.RecommendFacilities(r.Context(), p, k)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(ranked))
}

func (s *Server) populationByRegion(w http.ResponseWriter, r *http.Request) {
	regions, err := s.svc.PopulationByRegion(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(regions))
}

func (s *Server) facilityDistricts(w http.ResponseWriter, r *http.Request) {
	districts, err := s.svc.Districts(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(districts))
}

func (s *Server) districtStats(w http.ResponseWriter, r *http.Request) {
	rows, err := s.svc.DistrictCoverage(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(rows))
}

func (s *Server) ageStructure(w http.ResponseWriter, r *http.Request) {
	district := r.URL.Query().Get("district")
	ages, err := s.svc.AgeStructure(r.Context(), district)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if district == "" {
		district = "all"
	}
	writeJSON(w, http.StatusOK, struct {
		District string `json:"district"`
		model.AgeStructure
		Total int64 `json:"total"`
	}{district, ages, ages.Total()})
}

func (s *Server) clinicSummary(w http.ResponseWriter, r *http.Request) {
	sum, err := s.svc.ClinicSummary(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func zoneFilter(r *http.Request) zonecache.Filter {
	q := r.URL.Query()
	return zonecache.Filter{
		Priority: model.Priority(strings.ToLower(strings.TrimSpace(q.Get("priority")))),
		District: q.Get("district"),
	}
}

// highDemandZones returns the cached zones as a GeoJSON FeatureCollection.
func (s *Server) highDemandZones(w http.ResponseWriter, r *http.Request) {
	zones, err := s.svc.HighDemandZones(r.Context(), zoneFilter(r))
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, geometry.ZoneFeatures(zones))
}

func (s *Server) exportHighDemandZones(w http.ResponseWriter, r *http.Request) {
	zones, err := s.svc.HighDemandZones(r.Context(), zoneFilter(r))
	if err != nil {
		writeError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := report.WriteZonesXLSX(&buf, zones); err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", report.Filename("demand_zones", s.now())))
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) recompute(w http.ResponseWriter, r *http.Request) {
	res, err := s.engine.Run(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
