package dataset

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/healthmap/internal/db"
	"github.com/sells-group/healthmap/internal/geometry"
	"github.com/sells-group/healthmap/internal/model"
)

// PostgresStore implements Store over the PostGIS tables in schema health.
type PostgresStore struct {
	pool db.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Migrate implements Store.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	return MigratePostgres(ctx, s.pool)
}

// ListFacilities implements FacilityRegistry.
func (s *PostgresStore) ListFacilities(ctx context.Context) ([]model.Facility, error) {
	sql := `
		SELECT name, categories, address, district, city, description, x, y
		FROM health.facilities ORDER BY name
	`
	rows, err := s.pool.Query(ctx, sql)
	if err != nil {
		return nil, unavailable(err, "list facilities")
	}
	defer rows.Close()

	var out []model.Facility
	for rows.Next() {
		var (
			f    model.Facility
			x, y *float64
		)
		if err := rows.Scan(&f.Name, &f.Categories, &f.Address, &f.District, &f.City, &f.Description, &x, &y); err != nil {
			return nil, unavailable(err, "scan facility")
		}
		f.Coord = facilityCoord(f.Name, x, y)
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable(err, "iterate facilities")
	}
	return out, nil
}

// facilityCoord validates a stored coordinate. Missing or out-of-range
// values leave the facility without a location.
func facilityCoord(name string, x, y *float64) *model.Point {
	if x == nil || y == nil {
		return nil
	}
	p, err := geometry.NewPoint(*x, *y)
	if err != nil {
		zap.L().Debug("dataset: ignoring facility coordinate",
			zap.String("facility", name), zap.Error(err))
		return nil
	}
	return &p
}

// ListDistricts implements DistrictStore.
func (s *PostgresStore) ListDistricts(ctx context.Context) ([]model.District, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, name, ST_AsBinary(geom) FROM health.districts ORDER BY id`)
	if err != nil {
		return nil, unavailable(err, "list districts")
	}
	defer rows.Close()

	var out []model.District
	for rows.Next() {
		var (
			d   model.District
			raw []byte
		)
		if err := rows.Scan(&d.ID, &d.Name, &raw); err != nil {
			return nil, unavailable(err, "scan district")
		}
		if d.Geometry, err = geometry.DecodeWKB(raw); err != nil {
			zap.L().Debug("dataset: skipping district with unreadable geometry",
				zap.String("district", d.Name), zap.Error(err))
			continue
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable(err, "iterate districts")
	}
	return out, nil
}

const cellColumns = `id, x, y, total_population, name_region, is_deleted,
		f0_14, f15_25, f26_35, f36_45, f46_55, f56_65, f66, ST_AsBinary(geom)`

// ListDenseCells implements PopulationStore.
func (s *PostgresStore) ListDenseCells(ctx context.Context, minPopulation int64) ([]model.PopulationCell, error) {
	sql := `SELECT ` + cellColumns + `
		FROM health.population_cells
		WHERE NOT is_deleted AND total_population >= $1
		ORDER BY id`
	rows, err := s.pool.Query(ctx, sql, minPopulation)
	if err != nil {
		return nil, unavailable(err, "list dense cells")
	}
	defer rows.Close()

	var out []model.PopulationCell
	for rows.Next() {
		c, err := scanCell(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable(err, "iterate cells")
	}
	return out, nil
}

func scanCell(rows pgx.Rows) (model.PopulationCell, error) {
	var (
		c   model.PopulationCell
		raw []byte
	)
	err := rows.Scan(
		&c.ID, &c.X, &c.Y, &c.TotalPopulation, &c.Region, &c.IsDeleted,
		&c.Ages.F0_14, &c.Ages.F15_25, &c.Ages.F26_35, &c.Ages.F36_45,
		&c.Ages.F46_55, &c.Ages.F56_65, &c.Ages.F66, &raw,
	)
	if err != nil {
		return c, unavailable(err, "scan cell")
	}
	if c.Geometry, err = geometry.DecodeWKB(raw); err != nil {
		// The engine falls back to (x, y) for cells without a geometry.
		zap.L().Debug("dataset: cell geometry unreadable", zap.Int64("cell", c.ID), zap.Error(err))
		c.Geometry = nil
	}
	return c, nil
}

// PopulationByRegion implements PopulationStore.
func (s *PostgresStore) PopulationByRegion(ctx context.Context) ([]RegionPopulation, error) {
	sql := `
		SELECT name_region, COALESCE(SUM(total_population), 0)::bigint
		FROM health.population_cells
		WHERE NOT is_deleted
		GROUP BY name_region
		ORDER BY name_region
	`
	rows, err := s.pool.Query(ctx, sql)
	if err != nil {
		return nil, unavailable(err, "population by region")
	}
	defer rows.Close()

	var out []RegionPopulation
	for rows.Next() {
		var r RegionPopulation
		if err := rows.Scan(&r.Region, &r.Population); err != nil {
			return nil, unavailable(err, "scan region population")
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable(err, "iterate region population")
	}
	return out, nil
}

// SumAgeStructure implements PopulationStore.
func (s *PostgresStore) SumAgeStructure(ctx context.Context, region string) (model.AgeStructure, error) {
	sql := `
		SELECT COALESCE(SUM(f0_14), 0)::bigint, COALESCE(SUM(f15_25), 0)::bigint,
		       COALESCE(SUM(f26_35), 0)::bigint, COALESCE(SUM(f36_45), 0)::bigint,
		       COALESCE(SUM(f46_55), 0)::bigint, COALESCE(SUM(f56_65), 0)::bigint,
		       COALESCE(SUM(f66), 0)::bigint
		FROM health.population_cells
		WHERE NOT is_deleted AND ($1 = '' OR name_region = $1)
	`
	var a model.AgeStructure
	err := s.pool.QueryRow(ctx, sql, region).Scan(
		&a.F0_14, &a.F15_25, &a.F26_35, &a.F36_45, &a.F46_55, &a.F56_65, &a.F66,
	)
	if err != nil {
		return model.AgeStructure{}, unavailable(err, "sum age structure")
	}
	return a, nil
}

// UpsertFacilities implements Writer.
func (s *PostgresStore) UpsertFacilities(ctx context.Context, facilities []model.Facility) (int64, error) {
	rows := make([][]any, 0, len(facilities))
	for _, f := range facilities {
		var x, y *float64
		if f.Coord != nil {
			x, y = &f.Coord.X, &f.Coord.Y
		}
		rows = append(rows, []any{f.Name, f.Categories, f.Address, f.District, f.City, f.Description, x, y})
	}
	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "health.facilities",
		Columns:      []string{"name", "categories", "address", "district", "city", "description", "x", "y"},
		ConflictKeys: []string{"name"},
	}, rows)
	return n, eris.Wrap(err, "dataset: upsert facilities")
}

// UpsertDistricts implements Writer.
func (s *PostgresStore) UpsertDistricts(ctx context.Context, districts []model.District) (int64, error) {
	rows := make([][]any, 0, len(districts))
	for _, d := range districts {
		raw, err := geometry.EncodeWKB(d.Geometry)
		if err != nil {
			return 0, eris.Wrapf(err, "dataset: district %s", d.Name)
		}
		rows = append(rows, []any{d.Name, raw})
	}
	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "health.districts",
		Columns:      []string{"name", "geom"},
		ConflictKeys: []string{"name"},
		StageTypes:   map[string]string{"geom": "bytea"},
		Expressions:  map[string]string{"geom": "ST_Multi(ST_SetSRID(ST_GeomFromWKB(%s), 4326))"},
	}, rows)
	return n, eris.Wrap(err, "dataset: upsert districts")
}

// UpsertCells implements Writer.
func (s *PostgresStore) UpsertCells(ctx context.Context, cells []model.PopulationCell) (int64, error) {
	rows := make([][]any, 0, len(cells))
	for _, c := range cells {
		raw, err := geometry.EncodeWKB(c.Geometry)
		if err != nil {
			return 0, eris.Wrapf(err, "dataset: cell %d", c.ID)
		}
		rows = append(rows, []any{
			c.ID, c.X, c.Y, c.TotalPopulation, c.Region, c.IsDeleted,
			c.Ages.F0_14, c.Ages.F15_25, c.Ages.F26_35, c.Ages.F36_45,
			c.Ages.F46_55, c.Ages.F56_65, c.Ages.F66, raw,
		})
	}
	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table: "health.population_cells",
		Columns: []string{
			"id", "x", "y", "total_population", "name_region", "is_deleted",
			"f0_14", "f15_25", "f26_35", "f36_45", "f46_55", "f56_65", "f66", "geom",
		},
		ConflictKeys: []string{"id"},
		StageTypes:   map[string]string{"geom": "bytea"},
		Expressions:  map[string]string{"geom": "ST_SetSRID(ST_GeomFromWKB(%s), 4326)"},
	}, rows)
	return n, eris.Wrap(err, "dataset: upsert cells")
}
