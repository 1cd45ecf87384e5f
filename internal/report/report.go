// Package report renders demand zones and district coverage as xlsx
// workbooks for planners.
package report

import (
	"io"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/healthmap/internal/geometry"
	"github.com/sells-group/healthmap/internal/model"
	"github.com/sells-group/healthmap/internal/proximity"
)

// Sheet names.
const (
	SheetZones    = "Demand zones"
	SheetCoverage = "District coverage"
)

var (
	zoneHeader     = []string{"X", "Y", "Population", "District", "Priority", "Distance, km", "Updated at", "Geometry (WKT)"}
	coverageHeader = []string{"District", "Population", "Clinics", "Population per clinic", "Status"}
)

// WriteZonesXLSX writes zones to w as a single-sheet workbook.
func WriteZonesXLSX(w io.Writer, zones []model.DemandZone) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet(SheetZones)
	if err != nil {
		return eris.Wrap(err, "report: add zones sheet")
	}
	addRow(sheet, zoneHeader...)

	for _, z := range zones {
		row := sheet.AddRow()
		row.AddCell().SetFloat(z.X)
		row.AddCell().SetFloat(z.Y)
		row.AddCell().SetInt64(z.Population)
		row.AddCell().SetString(z.District)
		row.AddCell().SetString(string(z.Priority))
		row.AddCell().SetFloat(z.DistanceKM)
		row.AddCell().SetString(z.UpdatedAt.UTC().Format(time.RFC3339))
		row.AddCell().SetString(geometry.EncodeWKT(z.Geometry))
	}

	return write(f, w)
}

// WriteCoverageXLSX writes the per-district coverage table to w. Districts
// without clinics leave the ratio cell empty.
func WriteCoverageXLSX(w io.Writer, rows []proximity.DistrictCoverage) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet(SheetCoverage)
	if err != nil {
		return eris.Wrap(err, "report: add coverage sheet")
	}
	addRow(sheet, coverageHeader...)

	for _, r := range rows {
		row := sheet.AddRow()
		row.AddCell().SetString(r.District)
		row.AddCell().SetInt64(r.Population)
		row.AddCell().SetInt(r.ClinicCount)
		ratio := row.AddCell()
		if r.PopulationPerClinic != nil {
			ratio.SetInt64(*r.PopulationPerClinic)
		}
		row.AddCell().SetString(r.Status)
	}

	return write(f, w)
}

func addRow(sheet *xlsx.Sheet, values ...string) {
	row := sheet.AddRow()
	for _, v := range values {
		row.AddCell().SetString(v)
	}
}

func write(f *xlsx.File, w io.Writer) error {
	if err := f.Write(w); err != nil {
		return eris.Wrap(err, "report: write workbook")
	}
	return nil
}

// Filename returns a timestamped export file name such as
// demand_zones_20240102T150405Z.xlsx.
func Filename(prefix string, at time.Time) string {
	return prefix + "_" + at.UTC().Format("20060102T150405Z") + ".xlsx"
}
