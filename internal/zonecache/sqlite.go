package zonecache

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/sells-group/healthmap/internal/geometry"
	"github.com/sells-group/healthmap/internal/model"
)

// SQLiteCache stores zone versions in the tables created by
// dataset.SQLiteStore.Migrate.
type SQLiteCache struct {
	db *sql.DB
}

// NewSQLiteCache creates a new SQLiteCache.
func NewSQLiteCache(db *sql.DB) *SQLiteCache {
	return &SQLiteCache{db: db}
}

// Replace implements Cache.
func (c *SQLiteCache) Replace(ctx context.Context, zones []model.DemandZone) (Version, error) {
	v := newVersion(len(zones))
	id := v.ID.String()

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return Version{}, eris.Wrap(err, "zonecache: begin replace")
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO zone_versions (id, created_at, zone_count) VALUES (?, ?, ?)`,
		id, v.CreatedAt, v.ZoneCount,
	); err != nil {
		return Version{}, eris.Wrap(err, "zonecache: insert version")
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO demand_zones (version_id, x, y, population, district, priority, distance_km, geom, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return Version{}, eris.Wrap(err, "zonecache: prepare insert")
	}
	defer stmt.Close() //nolint:errcheck

	for i, z := range zones {
		raw, err := geometry.EncodeWKB(z.Geometry)
		if err != nil {
			return Version{}, eris.Wrapf(err, "zonecache: encode zone %d", i)
		}
		if _, err := stmt.ExecContext(ctx, id, z.X, z.Y, z.Population, z.District,
			string(z.Priority), z.DistanceKM, raw, z.UpdatedAt); err != nil {
			return Version{}, eris.Wrapf(err, "zonecache: insert zone %d", i)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO zone_current (singleton, version_id) VALUES (1, ?)
		ON CONFLICT(singleton) DO UPDATE SET version_id = excluded.version_id`, id); err != nil {
		return Version{}, eris.Wrap(err, "zonecache: swap current version")
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM demand_zones WHERE version_id <> ?`, id); err != nil {
		return Version{}, eris.Wrap(err, "zonecache: prune zones")
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM zone_versions WHERE id <> ?`, id); err != nil {
		return Version{}, eris.Wrap(err, "zonecache: prune versions")
	}

	if err := tx.Commit(); err != nil {
		return Version{}, eris.Wrap(err, "zonecache: commit replace")
	}
	return v, nil
}

// List implements Cache.
func (c *SQLiteCache) List(ctx context.Context, f Filter) ([]model.DemandZone, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT z.x, z.y, z.population, z.district, z.priority, z.distance_km, z.geom, z.updated_at
		FROM demand_zones z
		JOIN zone_current c ON c.version_id = z.version_id
		WHERE (? = '' OR z.priority = ?) AND (? = '' OR z.district = ?)
		ORDER BY z.id`,
		string(f.Priority), string(f.Priority), f.District, f.District)
	if err != nil {
		return nil, unavailable(err, "list zones")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.DemandZone
	for rows.Next() {
		var (
			z        model.DemandZone
			priority string
			raw      []byte
		)
		if err := rows.Scan(&z.X, &z.Y, &z.Population, &z.District, &priority,
			&z.DistanceKM, &raw, &z.UpdatedAt); err != nil {
			return nil, unavailable(err, "scan zone")
		}
		z.Priority = model.Priority(priority)
		if z.Geometry, err = geometry.DecodeWKB(raw); err != nil {
			return nil, eris.Wrap(err, "zonecache: zone geometry")
		}
		out = append(out, z)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable(err, "iterate zones")
	}
	return out, nil
}

// Current implements Cache.
func (c *SQLiteCache) Current(ctx context.Context) (Version, error) {
	var (
		v  Version
		id string
	)
	err := c.db.QueryRowContext(ctx, `
		SELECT v.id, v.created_at, v.zone_count
		FROM zone_current c
		JOIN zone_versions v ON v.id = c.version_id`).Scan(&id, &v.CreatedAt, &v.ZoneCount)
	if errors.Is(err, sql.ErrNoRows) {
		return Version{}, nil
	}
	if err != nil {
		return Version{}, unavailable(err, "current version")
	}
	if v.ID, err = uuid.Parse(id); err != nil {
		return Version{}, eris.Wrapf(err, "zonecache: parse version id %q", id)
	}
	return v, nil
}
