package ingest

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/sells-group/healthmap/internal/model"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

type recordingWriter struct {
	facilities [][]model.Facility
	districts  [][]model.District
	cells      [][]model.PopulationCell
	err        error
}

func (w *recordingWriter) UpsertFacilities(_ context.Context, f []model.Facility) (int64, error) {
	if w.err != nil {
		return 0, w.err
	}
	w.facilities = append(w.facilities, append([]model.Facility(nil), f...))
	return int64(len(f)), nil
}

func (w *recordingWriter) UpsertDistricts(_ context.Context, d []model.District) (int64, error) {
	if w.err != nil {
		return 0, w.err
	}
	w.districts = append(w.districts, append([]model.District(nil), d...))
	return int64(len(d)), nil
}

func (w *recordingWriter) UpsertCells(_ context.Context, c []model.PopulationCell) (int64, error) {
	if w.err != nil {
		return 0, w.err
	}
	w.cells = append(w.cells, append([]model.PopulationCell(nil), c...))
	return int64(len(c)), nil
}

// clockwise square with lower-left corner (x, y) and side s.
func shell(x, y, s float64) []shp.Point {
	return []shp.Point{{X: x, Y: y}, {X: x, Y: y + s}, {X: x + s, Y: y + s}, {X: x + s, Y: y}, {X: x, Y: y}}
}

func hole(x, y, s float64) []shp.Point {
	return []shp.Point{{X: x, Y: y}, {X: x + s, Y: y}, {X: x + s, Y: y + s}, {X: x, Y: y + s}, {X: x, Y: y}}
}

func polygon(parts ...[]shp.Point) *shp.Polygon {
	p := shp.Polygon(*shp.NewPolyLine(parts))
	return &p
}

func writeShapefile(t *testing.T, fields []shp.Field, shapes []shp.Shape, attrs [][]any) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "layer.shp")
	w, err := shp.Create(path, shp.POLYGON)
	require.NoError(t, err)
	require.NoError(t, w.SetFields(fields))
	for i, s := range shapes {
		row := int(w.Write(s))
		for j, v := range attrs[i] {
			require.NoError(t, w.WriteAttribute(row, j, v))
		}
	}
	w.Close()
	return path
}

func TestLoadDistrictShapefile(t *testing.T) {
	path := writeShapefile(t,
		[]shp.Field{shp.StringField("NAME", 40)},
		[]shp.Shape{
			polygon(shell(0, 0, 10), hole(4, 4, 2)),
			polygon(shell(20, 0, 5), shell(30, 0, 5)),
			polygon(shell(40, 0, 5)),
		},
		[][]any{{"Almaly"}, {"Bostandyk"}, {""}},
	)

	w := &recordingWriter{}
	n, err := NewLoader(w, 0).LoadDistrictShapefile(context.Background(), path, "name")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	require.Len(t, w.districts, 1)
	got := w.districts[0]
	require.Len(t, got, 2)
	assert.Equal(t, "Almaly", got[0].Name)

	mp, ok := got[0].Geometry.(orb.MultiPolygon)
	require.True(t, ok)
	require.Len(t, mp, 1)
	assert.Len(t, mp[0], 2, "hole attached to shell")

	mp, ok = got[1].Geometry.(orb.MultiPolygon)
	require.True(t, ok)
	assert.Len(t, mp, 2)
}

func TestLoadDistrictShapefile_MissingField(t *testing.T) {
	path := writeShapefile(t,
		[]shp.Field{shp.StringField("NAME", 40)},
		[]shp.Shape{polygon(shell(0, 0, 1))},
		[][]any{{"x"}},
	)
	_, err := NewLoader(&recordingWriter{}, 0).LoadDistrictShapefile(context.Background(), path, "district")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `field "district" not found`)
}

func TestLoadDistrictShapefile_OpenError(t *testing.T) {
	_, err := NewLoader(&recordingWriter{}, 0).LoadDistrictShapefile(context.Background(), filepath.Join(t.TempDir(), "none.shp"), "name")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ingest: open shapefile")
}

func TestLoadGridShapefile(t *testing.T) {
	fields := []shp.Field{
		shp.NumberField("id", 10),
		shp.NumberField("total_popu", 10),
		shp.StringField("name_regio", 40),
		shp.NumberField("is_deleted", 1),
		shp.NumberField("f0_14", 10),
		shp.NumberField("f66", 10),
	}
	path := writeShapefile(t, fields,
		[]shp.Shape{
			polygon(shell(76.9, 43.2, 0.002)),
			polygon(shell(76.902, 43.2, 0.002)),
			polygon(shell(76.904, 43.2, 0.002)),
		},
		[][]any{
			{1, 2000, "Almaly", 0, 300, 150},
			{2, 1600, "Almaly", 1, 10, 20},
			{3, 1800, "Medeu", 0, 0, 0},
		},
	)

	w := &recordingWriter{}
	n, err := NewLoader(w, 2).LoadGridShapefile(context.Background(), path, DefaultGridFields())
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	require.Len(t, w.cells, 2, "two batches of at most 2")
	cells := append(w.cells[0], w.cells[1]...)
	require.Len(t, cells, 3)

	c := cells[0]
	assert.Equal(t, int64(1), c.ID)
	assert.Equal(t, int64(2000), c.TotalPopulation)
	assert.Equal(t, "Almaly", c.Region)
	assert.False(t, c.IsDeleted)
	assert.Equal(t, int64(300), c.Ages.F0_14)
	assert.Equal(t, int64(150), c.Ages.F66)
	assert.Zero(t, c.Ages.F26_35)
	assert.InDelta(t, 76.901, c.X, 1e-9)
	assert.InDelta(t, 43.201, c.Y, 1e-9)

	assert.True(t, cells[1].IsDeleted)
	assert.Equal(t, "Medeu", cells[2].Region)
}

func TestLoadGridShapefile_WriterError(t *testing.T) {
	path := writeShapefile(t,
		[]shp.Field{shp.NumberField("id", 10), shp.NumberField("total_popu", 10)},
		[]shp.Shape{polygon(shell(0, 0, 1))},
		[][]any{{1, 10}},
	)
	w := &recordingWriter{err: errors.New("db down")}
	_, err := NewLoader(w, 0).LoadGridShapefile(context.Background(), path, DefaultGridFields())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ingest: upsert cells")
}

func TestLoadGridShapefile_Cancelled(t *testing.T) {
	path := writeShapefile(t,
		[]shp.Field{shp.NumberField("id", 10), shp.NumberField("total_popu", 10)},
		[]shp.Shape{polygon(shell(0, 0, 1))},
		[][]any{{1, 10}},
	)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewLoader(&recordingWriter{}, 0).LoadGridShapefile(ctx, path, DefaultGridFields())
	require.ErrorIs(t, err, context.Canceled)
}

func writeWorkbook(t *testing.T, rows [][]string) string {
	t.Helper()
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Sheet1")
	require.NoError(t, err)
	for _, r := range rows {
		row := sheet.AddRow()
		for _, v := range r {
			row.AddCell().SetString(v)
		}
	}
	path := filepath.Join(t.TempDir(), "registry.xlsx")
	require.NoError(t, f.Save(path))
	return path
}

func TestLoadFacilitiesXLSX(t *testing.T) {
	path := writeWorkbook(t, [][]string{
		{"Наименование", "Описание", "Рубрики", "Адрес", "Район", "Город", "Y", "X"},
		{"Clinic A", "", "Поликлиники", "Abay 1", "Алмалинский район", "Алматы", "43.25", "76.93"},
		{"Clinic B", "", "Больницы", "Tole bi 5", "Медеуский район", "Алматы", "", "76.95"},
		{"", "", "", "", "", "", "", ""},
		{"Clinic C", "", "Аптеки", "", "", "Алматы", "43,2", "76,9"},
		{"Clinic A", "Детская поликлиника", "Поликлиники", "Abay 2", "Алмалинский район", "Алматы", "43.26", "76.94"},
	})

	w := &recordingWriter{}
	n, err := NewLoader(w, 0).LoadFacilitiesXLSX(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	require.Len(t, w.facilities, 1)
	got := w.facilities[0]
	require.Len(t, got, 3)

	assert.Equal(t, "Clinic A", got[0].Name)
	assert.Equal(t, "Abay 2", got[0].Address, "last duplicate wins")
	require.NotNil(t, got[0].Coord)
	assert.Equal(t, model.Point{X: 76.94, Y: 43.26}, *got[0].Coord)
	assert.Equal(t, "Алмалинский район", got[0].District)
	assert.Equal(t, "Детская поликлиника", got[0].Description)
	assert.Empty(t, got[1].Description)

	assert.Nil(t, got[1].Coord, "blank Y")
	require.NotNil(t, got[2].Coord)
	assert.Equal(t, model.Point{X: 76.9, Y: 43.2}, *got[2].Coord)
}

func TestLoadFacilitiesXLSX_MissingNameColumn(t *testing.T) {
	path := writeWorkbook(t, [][]string{{"Name", "X", "Y"}, {"a", "1", "2"}})
	_, err := NewLoader(&recordingWriter{}, 0).LoadFacilitiesXLSX(context.Background(), path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `missing column "Наименование"`)
}

func TestSignedArea(t *testing.T) {
	flat := func(pts []shp.Point) []float64 {
		var out []float64
		for _, p := range pts {
			out = append(out, p.X, p.Y)
		}
		return out
	}
	assert.Less(t, signedArea(flat(shell(0, 0, 1))), 0.0)
	assert.Greater(t, signedArea(flat(hole(0, 0, 1))), 0.0)
}
