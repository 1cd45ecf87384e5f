package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/sells-group/healthmap/internal/demand"
	"github.com/sells-group/healthmap/internal/model"
	"github.com/sells-group/healthmap/internal/proximity"
)

func formatResult(w io.Writer, res demand.Result) {
	fmt.Fprintf(w, "Version:   %s\n", res.Version.ID)
	fmt.Fprintf(w, "Scanned:   %d cells\n", res.Scanned)
	fmt.Fprintf(w, "Zones:     %d (low %d, moderate %d, critical %d)\n", res.Zones,
		res.ByPriority[model.PriorityLow], res.ByPriority[model.PriorityModerate], res.ByPriority[model.PriorityCritical])
	fmt.Fprintf(w, "Discarded: %d served, %d without facilities\n", res.DiscardedServed, res.DiscardedNoFacility)
	fmt.Fprintf(w, "Duration:  %s\n", res.Duration)
}

func formatZones(w io.Writer, zones []model.DemandZone) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PRIORITY\tDISTRICT\tPOPULATION\tDISTANCE KM\tX\tY")
	for _, z := range zones {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%.2f\t%.6f\t%.6f\n", z.Priority, z.District, z.Population, z.DistanceKM, z.X, z.Y)
	}
	_ = tw.Flush()
}

func formatNearest(w io.Writer, nearest []proximity.NearestFacility) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tNAME\tDISTANCE KM\tDISTRICT\tADDRESS")
	for i, n := range nearest {
		fmt.Fprintf(tw, "%d\t%s\t%.2f\t%s\t%s\n", i+1, n.Name, n.DistanceKM, n.District, n.Address)
	}
	_ = tw.Flush()
}

func formatRecommended(w io.Writer, ranked []proximity.RecommendedFacility) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tNAME\tDISTANCE KM\tCATCHMENT\tSCORE\tADDRESS")
	for i, r := range ranked {
		fmt.Fprintf(tw, "%d\t%s\t%.2f\t%d\t%.3f\t%s\n", i+1, r.Name, r.DistanceKM, r.Catchment, r.Score, r.Address)
	}
	_ = tw.Flush()
}

func formatCoverage(w io.Writer, rows []proximity.DistrictCoverage) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DISTRICT\tPOPULATION\tCLINICS\tPER CLINIC\tSTATUS")
	for _, r := range rows {
		ratio := "-"
		if r.PopulationPerClinic != nil {
			ratio = fmt.Sprint(*r.PopulationPerClinic)
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%s\t%s\n", r.District, r.Population, r.ClinicCount, ratio, r.Status)
	}
	_ = tw.Flush()
}

func formatAges(w io.Writer, district string, a model.AgeStructure) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "District:\t%s\n", district)
	for _, b := range []struct {
		label string
		n     int64
	}{
		{"0-14", a.F0_14}, {"15-25", a.F15_25}, {"26-35", a.F26_35}, {"36-45", a.F36_45},
		{"46-55", a.F46_55}, {"56-65", a.F56_65}, {"66+", a.F66}, {"total", a.Total()},
	} {
		fmt.Fprintf(tw, "%s\t%d\n", b.label, b.n)
	}
	_ = tw.Flush()
}

func formatClinics(w io.Writer, s proximity.ClinicSummary) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DISTRICT\tCLINICS")
	for _, d := range s.Districts {
		fmt.Fprintf(tw, "%s\t%d\n", d.District, d.Count)
	}
	_ = tw.Flush()

	fmt.Fprintf(w, "\nTotal: %d  Mean: %.1f\n", s.Total, s.Mean)
	if s.Max != nil && s.Min != nil {
		fmt.Fprintf(w, "Max: %s (%d)  Min: %s (%d)\n", s.Max.District, s.Max.Count, s.Min.District, s.Min.Count)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
