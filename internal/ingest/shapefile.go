// Package ingest loads the reference datasets (district polygons, the
// population grid and the facility registry) into a dataset.Writer.
package ingest

import (
	"context"
	"strconv"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/wkb"
	"go.uber.org/zap"

	"github.com/sells-group/healthmap/internal/dataset"
	"github.com/sells-group/healthmap/internal/geometry"
	"github.com/sells-group/healthmap/internal/model"
)

const defaultBatchSize = 1000

// Loader writes parsed records to a dataset backend in batches.
type Loader struct {
	w         dataset.Writer
	batchSize int
}

// NewLoader creates a Loader. batchSize <= 0 uses the default.
func NewLoader(w dataset.Writer, batchSize int) *Loader {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &Loader{w: w, batchSize: batchSize}
}

// GridFields names the attribute columns of a population grid shapefile.
type GridFields struct {
	ID         string
	Population string
	Region     string
	Deleted    string
	Ages       [7]string // f0_14 .. f66
}

// DefaultGridFields matches the grid published by the city statistics office.
func DefaultGridFields() GridFields {
	return GridFields{
		ID:         "id",
		Population: "total_popu",
		Region:     "name_regio",
		Deleted:    "is_deleted",
		Ages:       [7]string{"f0_14", "f15_25", "f26_35", "f36_45", "f46_55", "f56_65", "f66"},
	}
}

// LoadDistrictShapefile reads district polygons, taking the name from
// nameField, and upserts them. Records without a polygon or a name are
// skipped.
func (l *Loader) LoadDistrictShapefile(ctx context.Context, path, nameField string) (int64, error) {
	r, err := openShapefile(path)
	if err != nil {
		return 0, err
	}
	defer func() { _ = r.Close() }()

	nameIdx, ok := r.field(nameField)
	if !ok {
		return 0, eris.Errorf("ingest: field %q not found in %s", nameField, path)
	}

	var (
		batch   []model.District
		total   int64
		skipped int
	)
	for r.Next() {
		if err := ctx.Err(); err != nil {
			return total, eris.Wrap(err, "ingest: districts")
		}
		n, shape := r.Shape()
		name := r.attr(nameIdx)
		g, err := polygonGeometry(shape)
		if err != nil || g == nil || name == "" {
			zap.L().Debug("ingest: skipping district record", zap.Int("record", n), zap.Error(err))
			skipped++
			continue
		}
		batch = append(batch, model.District{Name: name, Geometry: g})
		if len(batch) >= l.batchSize {
			if total, err = l.flushDistricts(ctx, batch, total); err != nil {
				return total, err
			}
			batch = batch[:0]
		}
	}
	if total, err = l.flushDistricts(ctx, batch, total); err != nil {
		return total, err
	}

	zap.L().Info("ingest: districts loaded",
		zap.String("path", path),
		zap.Int64("rows", total),
		zap.Int("skipped", skipped),
	)
	return total, nil
}

func (l *Loader) flushDistricts(ctx context.Context, batch []model.District, total int64) (int64, error) {
	if len(batch) == 0 {
		return total, nil
	}
	n, err := l.w.UpsertDistricts(ctx, batch)
	if err != nil {
		return total, eris.Wrap(err, "ingest: upsert districts")
	}
	return total + n, nil
}

// LoadGridShapefile reads population grid cells. A cell's X/Y is the
// centroid of its polygon.
func (l *Loader) LoadGridShapefile(ctx context.Context, path string, fields GridFields) (int64, error) {
	r, err := openShapefile(path)
	if err != nil {
		return 0, err
	}
	defer func() { _ = r.Close() }()

	idIdx, ok := r.field(fields.ID)
	if !ok {
		return 0, eris.Errorf("ingest: field %q not found in %s", fields.ID, path)
	}
	popIdx, ok := r.field(fields.Population)
	if !ok {
		return 0, eris.Errorf("ingest: field %q not found in %s", fields.Population, path)
	}
	regionIdx, hasRegion := r.field(fields.Region)
	deletedIdx, hasDeleted := r.field(fields.Deleted)
	var ageIdx [7]int
	for i, name := range fields.Ages {
		idx, ok := r.field(name)
		if !ok {
			idx = -1
		}
		ageIdx[i] = idx
	}

	var (
		batch   []model.PopulationCell
		total   int64
		skipped int
	)
	for r.Next() {
		if err := ctx.Err(); err != nil {
			return total, eris.Wrap(err, "ingest: grid")
		}
		n, shape := r.Shape()

		g, gErr := polygonGeometry(shape)
		id, idErr := strconv.ParseInt(r.attr(idIdx), 10, 64)
		if gErr != nil || g == nil || idErr != nil {
			zap.L().Debug("ingest: skipping grid record", zap.Int("record", n), zap.Error(gErr))
			skipped++
			continue
		}
		c, _ := geometry.Centroid(g)

		cell := model.PopulationCell{
			ID:              id,
			X:               c.X,
			Y:               c.Y,
			Geometry:        g,
			TotalPopulation: r.number(popIdx),
		}
		if hasRegion {
			cell.Region = r.attr(regionIdx)
		}
		if hasDeleted {
			cell.IsDeleted = parseBool(r.attr(deletedIdx))
		}
		ages := [7]*int64{
			&cell.Ages.F0_14, &cell.Ages.F15_25, &cell.Ages.F26_35, &cell.Ages.F36_45,
			&cell.Ages.F46_55, &cell.Ages.F56_65, &cell.Ages.F66,
		}
		for i, idx := range ageIdx {
			if idx >= 0 {
				*ages[i] = r.number(idx)
			}
		}

		batch = append(batch, cell)
		if len(batch) >= l.batchSize {
			if total, err = l.flushCells(ctx, batch, total); err != nil {
				return total, err
			}
			batch = batch[:0]
		}
	}
	if total, err = l.flushCells(ctx, batch, total); err != nil {
		return total, err
	}

	zap.L().Info("ingest: grid loaded",
		zap.String("path", path),
		zap.Int64("rows", total),
		zap.Int("skipped", skipped),
	)
	return total, nil
}

func (l *Loader) flushCells(ctx context.Context, batch []model.PopulationCell, total int64) (int64, error) {
	if len(batch) == 0 {
		return total, nil
	}
	n, err := l.w.UpsertCells(ctx, batch)
	if err != nil {
		return total, eris.Wrap(err, "ingest: upsert cells")
	}
	return total + n, nil
}

type shapeReader struct {
	*shp.Reader
	fields map[string]int
}

func openShapefile(path string) (*shapeReader, error) {
	r, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: open shapefile %s", path)
	}
	fields := r.Fields()
	idx := make(map[string]int, len(fields))
	for i, f := range fields {
		name := strings.TrimRight(f.String(), "\x00")
		idx[strings.ToLower(name)] = i
	}
	return &shapeReader{Reader: r, fields: idx}, nil
}

func (r *shapeReader) field(name string) (int, bool) {
	i, ok := r.fields[strings.ToLower(name)]
	return i, ok
}

func (r *shapeReader) attr(idx int) string {
	return strings.TrimSpace(strings.TrimRight(r.Attribute(idx), "\x00"))
}

// number reads a numeric attribute; dBase stores numbers as text, sometimes
// with a fractional part.
func (r *shapeReader) number(idx int) int64 {
	s := r.attr(idx)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return int64(f)
	}
	return 0
}

func parseBool(s string) bool {
	switch strings.ToLower(s) {
	case "1", "t", "true", "y", "yes":
		return true
	}
	return false
}

// polygonGeometry converts a shapefile polygon to an orb MultiPolygon.
// Clockwise parts start a new polygon; counter-clockwise parts are holes
// of the preceding one. Non-polygon shapes yield nil.
func polygonGeometry(shape shp.Shape) (orb.Geometry, error) {
	p, ok := shape.(*shp.Polygon)
	if !ok || p == nil || p.NumParts == 0 || len(p.Points) == 0 {
		return nil, nil
	}

	mp := geom.NewMultiPolygon(geom.XY).SetSRID(4326)
	var cur *geom.Polygon
	for i := int32(0); i < p.NumParts; i++ {
		start := p.Parts[i]
		end := int32(len(p.Points))
		if i+1 < p.NumParts {
			end = p.Parts[i+1]
		}
		if start < 0 || end > int32(len(p.Points)) || end-start < 4 {
			zap.L().Debug("ingest: skipping short ring", zap.Int32("part", i))
			continue
		}

		flat := make([]float64, 0, (end-start)*2)
		for j := start; j < end; j++ {
			flat = append(flat, p.Points[j].X, p.Points[j].Y)
		}
		ring := geom.NewLinearRingFlat(geom.XY, flat)

		if cur != nil && signedArea(flat) > 0 {
			if err := cur.Push(ring); err != nil {
				return nil, eris.Wrap(err, "ingest: push hole")
			}
			continue
		}
		if cur != nil {
			if err := mp.Push(cur); err != nil {
				return nil, eris.Wrap(err, "ingest: push polygon")
			}
		}
		cur = geom.NewPolygon(geom.XY)
		if err := cur.Push(ring); err != nil {
			return nil, eris.Wrap(err, "ingest: push shell")
		}
	}
	if cur != nil {
		if err := mp.Push(cur); err != nil {
			return nil, eris.Wrap(err, "ingest: push polygon")
		}
	}
	if mp.NumPolygons() == 0 {
		return nil, nil
	}

	b, err := wkb.Marshal(mp, wkb.NDR)
	if err != nil {
		return nil, eris.Wrap(err, "ingest: encode wkb")
	}
	return geometry.DecodeWKB(b)
}

// signedArea is positive for counter-clockwise rings.
func signedArea(flat []float64) float64 {
	var a float64
	n := len(flat) / 2
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		a += flat[2*i]*flat[2*j+1] - flat[2*j]*flat[2*i+1]
	}
	return a / 2
}
