package dataset

import (
	"context"
	"database/sql"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/sells-group/healthmap/internal/geometry"
	"github.com/sells-group/healthmap/internal/model"
)

// SQLiteStore implements Store on a single-file SQLite database. Geometries
// are stored as WKB blobs.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens a SQLite database at the given path and configures WAL mode.
func OpenSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

// DB exposes the handle so the zone cache can share the file.
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS districts (
	id   INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL UNIQUE,
	geom BLOB
);

CREATE TABLE IF NOT EXISTS population_cells (
	id               INTEGER PRIMARY KEY,
	x                REAL NOT NULL,
	y                REAL NOT NULL,
	total_population INTEGER NOT NULL DEFAULT 0,
	name_region      TEXT NOT NULL DEFAULT '',
	is_deleted       INTEGER NOT NULL DEFAULT 0,
	f0_14            INTEGER NOT NULL DEFAULT 0,
	f15_25           INTEGER NOT NULL DEFAULT 0,
	f26_35           INTEGER NOT NULL DEFAULT 0,
	f36_45           INTEGER NOT NULL DEFAULT 0,
	f46_55           INTEGER NOT NULL DEFAULT 0,
	f56_65           INTEGER NOT NULL DEFAULT 0,
	f66              INTEGER NOT NULL DEFAULT 0,
	geom             BLOB
);

CREATE TABLE IF NOT EXISTS facilities (
	name        TEXT PRIMARY KEY,
	categories  TEXT NOT NULL DEFAULT '',
	address     TEXT NOT NULL DEFAULT '',
	district    TEXT NOT NULL DEFAULT '',
	city        TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	x           REAL,
	y           REAL
);

CREATE TABLE IF NOT EXISTS zone_versions (
	id         TEXT PRIMARY KEY,
	created_at DATETIME NOT NULL,
	zone_count INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS zone_current (
	singleton  INTEGER PRIMARY KEY CHECK (singleton = 1),
	version_id TEXT NOT NULL REFERENCES zone_versions(id)
);

CREATE TABLE IF NOT EXISTS demand_zones (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	version_id  TEXT NOT NULL REFERENCES zone_versions(id) ON DELETE CASCADE,
	x           REAL NOT NULL,
	y           REAL NOT NULL,
	population  INTEGER NOT NULL,
	district    TEXT NOT NULL,
	priority    TEXT NOT NULL,
	distance_km REAL NOT NULL,
	geom        BLOB,
	updated_at  DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_population_cells_region ON population_cells(name_region);
CREATE INDEX IF NOT EXISTS idx_facilities_district ON facilities(district);
CREATE INDEX IF NOT EXISTS idx_demand_zones_version ON demand_zones(version_id, priority);
`

// Migrate implements Store.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteSchema)
	return eris.Wrap(err, "sqlite: migrate")
}

// ListFacilities implements FacilityRegistry.
func (s *SQLiteStore) ListFacilities(ctx context.Context) ([]model.Facility, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, categories, address, district, city, description, x, y FROM facilities ORDER BY name`)
	if err != nil {
		return nil, unavailable(err, "list facilities")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.Facility
	for rows.Next() {
		var (
			f    model.Facility
			x, y sql.NullFloat64
		)
		if err := rows.Scan(&f.Name, &f.Categories, &f.Address, &f.District, &f.City, &f.Description, &x, &y); err != nil {
			return nil, unavailable(err, "scan facility")
		}
		if x.Valid && y.Valid {
			f.Coord = facilityCoord(f.Name, &x.Float64, &y.Float64)
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable(err, "iterate facilities")
	}
	return out, nil
}

// ListDistricts implements DistrictStore.
func (s *SQLiteStore) ListDistricts(ctx context.Context) ([]model.District, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, geom FROM districts ORDER BY id`)
	if err != nil {
		return nil, unavailable(err, "list districts")
	}
	defer rows.Close() //nolint:errcheck

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
			zap.L().Debug("sqlite: skipping district with unreadable geometry",
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

// ListDenseCells implements PopulationStore.
func (s *SQLiteStore) ListDenseCells(ctx context.Context, minPopulation int64) ([]model.PopulationCell, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, x, y, total_population, name_region, is_deleted,
		       f0_14, f15_25, f26_35, f36_45, f46_55, f56_65, f66, geom
		FROM population_cells
		WHERE is_deleted = 0 AND total_population >= ?
		ORDER BY id`, minPopulation)
	if err != nil {
		return nil, unavailable(err, "list dense cells")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.PopulationCell
	for rows.Next() {
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
			return nil, unavailable(err, "scan cell")
		}
		if c.Geometry, err = geometry.DecodeWKB(raw); err != nil {
			zap.L().Debug("sqlite: cell geometry unreadable", zap.Int64("cell", c.ID), zap.Error(err))
			c.Geometry = nil
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable(err, "iterate cells")
	}
	return out, nil
}

// PopulationByRegion implements PopulationStore.
func (s *SQLiteStore) PopulationByRegion(ctx context.Context) ([]RegionPopulation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name_region, COALESCE(SUM(total_population), 0)
		FROM population_cells
		WHERE is_deleted = 0
		GROUP BY name_region
		ORDER BY name_region`)
	if err != nil {
		return nil, unavailable(err, "population by region")
	}
	defer rows.Close() //nolint:errcheck

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
func (s *SQLiteStore) SumAgeStructure(ctx context.Context, region string) (model.AgeStructure, error) {
	var a model.AgeStructure
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(f0_14), 0), COALESCE(SUM(f15_25), 0), COALESCE(SUM(f26_35), 0),
		       COALESCE(SUM(f36_45), 0), COALESCE(SUM(f46_55), 0), COALESCE(SUM(f56_65), 0),
		       COALESCE(SUM(f66), 0)
		FROM population_cells
		WHERE is_deleted = 0 AND (? = '' OR name_region = ?)`, region, region).Scan(
		&a.F0_14, &a.F15_25, &a.F26_35, &a.F36_45, &a.F46_55, &a.F56_65, &a.F66,
	)
	if err != nil {
		return model.AgeStructure{}, unavailable(err, "sum age structure")
	}
	return a, nil
}

// UpsertFacilities implements Writer.
func (s *SQLiteStore) UpsertFacilities(ctx context.Context, facilities []model.Facility) (int64, error) {
	return s.inTx(ctx, "facilities", len(facilities), `
		INSERT INTO facilities (name, categories, address, district, city, description, x, y)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			categories = excluded.categories,
			address = excluded.address,
			district = excluded.district,
			city = excluded.city,
			description = excluded.description,
			x = excluded.x,
			y = excluded.y`,
		func(i int) ([]any, error) {
			f := facilities[i]
			var x, y sql.NullFloat64
			if f.Coord != nil {
				x = sql.NullFloat64{Float64: f.Coord.X, Valid: true}
				y = sql.NullFloat64{Float64: f.Coord.Y, Valid: true}
			}
			return []any{f.Name, f.Categories, f.Address, f.District, f.City, f.Description, x, y}, nil
		})
}

// UpsertDistricts implements Writer.
func (s *SQLiteStore) UpsertDistricts(ctx context.Context, districts []model.District) (int64, error) {
	return s.inTx(ctx, "districts", len(districts), `
		INSERT INTO districts (name, geom) VALUES (?, ?)
		ON CONFLICT(name) DO UPDATE SET geom = excluded.geom`,
		func(i int) ([]any, error) {
			raw, err := geometry.EncodeWKB(districts[i].Geometry)
			if err != nil {
				return nil, err
			}
			return []any{districts[i].Name, raw}, nil
		})
}

// UpsertCells implements Writer.
func (s *SQLiteStore) UpsertCells(ctx context.Context, cells []model.PopulationCell) (int64, error) {
	return s.inTx(ctx, "cells", len(cells), `
		INSERT INTO population_cells (id, x, y, total_population, name_region, is_deleted,
			f0_14, f15_25, f26_35, f36_45, f46_55, f56_65, f66, geom)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			x = excluded.x, y = excluded.y,
			total_population = excluded.total_population,
			name_region = excluded.name_region,
			is_deleted = excluded.is_deleted,
			f0_14 = excluded.f0_14, f15_25 = excluded.f15_25, f26_35 = excluded.f26_35,
			f36_45 = excluded.f36_45, f46_55 = excluded.f46_55, f56_65 = excluded.f56_65,
			f66 = excluded.f66, geom = excluded.geom`,
		func(i int) ([]any, error) {
			c := cells[i]
			raw, err := geometry.EncodeWKB(c.Geometry)
			if err != nil {
				return nil, err
			}
			return []any{
				c.ID, c.X, c.Y, c.TotalPopulation, c.Region, c.IsDeleted,
				c.Ages.F0_14, c.Ages.F15_25, c.Ages.F26_35, c.Ages.F36_45,
				c.Ages.F46_55, c.Ages.F56_65, c.Ages.F66, raw,
			}, nil
		})
}

// inTx runs one prepared statement n times inside a transaction.
func (s *SQLiteStore) inTx(ctx context.Context, what string, n int, query string, args func(i int) ([]any, error)) (int64, error) {
	if n == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: begin upsert %s", what)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: prepare upsert %s", what)
	}
	defer stmt.Close() //nolint:errcheck

	var total int64
	for i := 0; i < n; i++ {
		a, err := args(i)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: encode %s row %d", what, i)
		}
		res, err := stmt.ExecContext(ctx, a...)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: upsert %s row %d", what, i)
		}
		affected, _ := res.RowsAffected()
		total += affected
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrapf(err, "sqlite: commit upsert %s", what)
	}
	return total, nil
}
