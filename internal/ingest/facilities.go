package ingest

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/sells-group/healthmap/internal/geometry"
	"github.com/sells-group/healthmap/internal/model"
)

// Registry spreadsheet headers, as exported from 2GIS.
const (
	colName        = "Наименование"
	colDescription = "Описание"
	colCategories  = "Рубрики"
	colAddress     = "Адрес"
	colDistrict    = "Район"
	colCity        = "Город"
	colX           = "X"
	colY           = "Y"
)

// LoadFacilitiesXLSX reads the facility registry from the first sheet of an
// xlsx workbook. Rows without a name are skipped; a blank or unparsable
// X/Y leaves the facility without coordinates. Duplicate names keep the
// last row.
func (l *Loader) LoadFacilitiesXLSX(ctx context.Context, path string) (int64, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return 0, eris.Wrapf(err, "ingest: open xlsx %s", path)
	}
	if len(f.Sheets) == 0 {
		return 0, eris.Errorf("ingest: %s has no sheets", path)
	}
	facilities, err := parseFacilities(f.Sheets[0])
	if err != nil {
		return 0, eris.Wrapf(err, "ingest: %s", path)
	}

	var total int64
	for start := 0; start < len(facilities); start += l.batchSize {
		if err := ctx.Err(); err != nil {
			return total, eris.Wrap(err, "ingest: facilities")
		}
		end := min(start+l.batchSize, len(facilities))
		n, err := l.w.UpsertFacilities(ctx, facilities[start:end])
		if err != nil {
			return total, eris.Wrap(err, "ingest: upsert facilities")
		}
		total += n
	}

	zap.L().Info("ingest: facilities loaded",
		zap.String("path", path),
		zap.Int64("rows", total),
	)
	return total, nil
}

func parseFacilities(sheet *xlsx.Sheet) ([]model.Facility, error) {
	if len(sheet.Rows) == 0 {
		return nil, eris.New("sheet is empty")
	}

	header := make(map[string]int)
	for i, c := range sheet.Rows[0].Cells {
		header[strings.TrimSpace(c.String())] = i
	}
	if _, ok := header[colName]; !ok {
		return nil, eris.Errorf("missing column %q", colName)
	}

	byName := make(map[string]int)
	var out []model.Facility
	var noCoord int
	for _, row := range sheet.Rows[1:] {
		get := func(col string) string {
			i, ok := header[col]
			if !ok || row == nil || i >= len(row.Cells) {
				return ""
			}
			return strings.TrimSpace(row.Cells[i].String())
		}

		name := get(colName)
		if name == "" {
			continue
		}
		fac := model.Facility{
			Name:        name,
			Description: get(colDescription),
			Categories:  get(colCategories),
			Address:     get(colAddress),
			District:    get(colDistrict),
			City:        get(colCity),
			Coord:       geometry.ParseCoord(decimal(get(colX)), decimal(get(colY))),
		}
		if fac.Coord == nil {
			noCoord++
		}
		if i, dup := byName[name]; dup {
			out[i] = fac
			continue
		}
		byName[name] = len(out)
		out = append(out, fac)
	}

	if noCoord > 0 {
		zap.L().Debug("ingest: facilities without coordinates", zap.Int("count", noCoord))
	}
	return out, nil
}

// decimal accepts a comma decimal separator.
func decimal(s string) string {
	return strings.Replace(s, ",", ".", 1)
}
