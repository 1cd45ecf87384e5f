package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/healthmap/internal/demand"
	"github.com/sells-group/healthmap/internal/model"
	"github.com/sells-group/healthmap/internal/proximity"
)

func TestFormatResult(t *testing.T) {
	var buf bytes.Buffer
	formatResult(&buf, demand.Result{
		Scanned: 120,
		Zones:   4,
		ByPriority: map[model.Priority]int{
			model.PriorityLow: 1, model.PriorityModerate: 1, model.PriorityCritical: 2,
		},
		DiscardedServed: 100,
		Duration:        1500 * time.Millisecond,
	})
	out := buf.String()
	assert.Contains(t, out, "120 cells")
	assert.Contains(t, out, "4 (low 1, moderate 1, critical 2)")
	assert.Contains(t, out, "100 served")
	assert.Contains(t, out, "1.5s")
}

func TestFormatZones(t *testing.T) {
	var buf bytes.Buffer
	formatZones(&buf, []model.DemandZone{
		{Priority: model.PriorityCritical, District: "Almaly", Population: 2100, DistanceKM: 1.5, X: 76.9, Y: 43.2},
	})
	out := buf.String()
	assert.Contains(t, out, "PRIORITY")
	assert.Contains(t, out, "critical")
	assert.Contains(t, out, "1.50")
	assert.Contains(t, out, "76.900000")
}

func TestFormatNearest(t *testing.T) {
	var buf bytes.Buffer
	formatNearest(&buf, []proximity.NearestFacility{
		{Facility: model.Facility{Name: "Clinic A", District: "Almaly"}, DistanceKM: 0.42},
	})
	assert.Contains(t, buf.String(), "Clinic A")
	assert.Contains(t, buf.String(), "0.42")
}

func TestFormatRecommended(t *testing.T) {
	var buf bytes.Buffer
	formatRecommended(&buf, []proximity.RecommendedFacility{
		{Facility: model.Facility{Name: "Quiet clinic"}, DistanceKM: 2, Score: 1.4},
		{Facility: model.Facility{Name: "Busy clinic"}, DistanceKM: 1, Catchment: 5000, Score: 2.2},
	})
	out := buf.String()
	assert.Contains(t, out, "CATCHMENT")
	assert.Less(t, strings.Index(out, "Quiet clinic"), strings.Index(out, "Busy clinic"))
	assert.Contains(t, out, "5000")
	assert.Contains(t, out, "2.200")
}

func TestFormatCoverage(t *testing.T) {
	ratio := int64(22500)
	var buf bytes.Buffer
	formatCoverage(&buf, []proximity.DistrictCoverage{
		{District: "Almaly", Population: 45001, ClinicCount: 2, PopulationPerClinic: &ratio, Status: "overloaded"},
		{District: "Medeu", Population: 100, Status: "normal"},
	})
	out := buf.String()
	assert.Contains(t, out, "22500")
	assert.Contains(t, out, "overloaded")
	assert.Contains(t, out, "-")
}

func TestFormatAges(t *testing.T) {
	var buf bytes.Buffer
	formatAges(&buf, "all", model.AgeStructure{F0_14: 10, F66: 5})
	out := buf.String()
	assert.Contains(t, out, "all")
	assert.Contains(t, out, "66+")
	assert.Contains(t, out, "15")
}

func TestFormatClinics(t *testing.T) {
	var buf bytes.Buffer
	a := proximity.DistrictCount{District: "Almaly", Count: 3}
	b := proximity.DistrictCount{District: "Medeu", Count: 1}
	formatClinics(&buf, proximity.ClinicSummary{
		Total: 4, Mean: 2, Max: &a, Min: &b,
		Districts: []proximity.DistrictCount{a, b},
	})
	out := buf.String()
	assert.Contains(t, out, "Total: 4")
	assert.Contains(t, out, "Max: Almaly (3)")
	assert.Contains(t, out, "Min: Medeu (1)")
}

func TestWriteFile(t *testing.T) {
	dir := t.TempDir()

	ok := filepath.Join(dir, "ok.txt")
	require.NoError(t, writeFile(ok, func(f *os.File) error {
		_, err := f.WriteString("data")
		return err
	}))
	b, err := os.ReadFile(ok)
	require.NoError(t, err)
	assert.Equal(t, "data", string(b))

	bad := filepath.Join(dir, "bad.txt")
	err = writeFile(bad, func(*os.File) error { return errors.New("render failed") })
	require.Error(t, err)
	_, statErr := os.Stat(bad)
	assert.True(t, os.IsNotExist(statErr))
}
