package zonecache

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/healthmap/internal/db"
	"github.com/sells-group/healthmap/internal/geometry"
	"github.com/sells-group/healthmap/internal/model"
)

// stageTable receives COPY rows before they are moved into
// health.demand_zones with their geometry decoded.
const stageTable = "_zone_stage"

var stageColumns = []string{
	"seq", "x", "y", "population", "district", "priority", "distance_km", "geom", "updated_at",
}

// PostgresCache stores zone versions in health.demand_zones. The version
// row, its zones, the pointer swap and the pruning of older versions all
// commit in one transaction.
type PostgresCache struct {
	pool db.Pool
}

// NewPostgresCache creates a new PostgresCache.
func NewPostgresCache(pool db.Pool) *PostgresCache {
	return &PostgresCache{pool: pool}
}

// Replace implements Cache.
func (c *PostgresCache) Replace(ctx context.Context, zones []model.DemandZone) (Version, error) {
	v := newVersion(len(zones))

	rows := make([][]any, 0, len(zones))
	for i, z := range zones {
		raw, err := geometry.EncodeWKB(z.Geometry)
		if err != nil {
			return Version{}, eris.Wrapf(err, "zonecache: encode zone %d", i)
		}
		rows = append(rows, []any{
			int64(i), z.X, z.Y, z.Population, z.District, string(z.Priority), z.DistanceKM, raw, z.UpdatedAt,
		})
	}

	tx, err := c.pool.Begin(ctx)
	if err != nil {
		return Version{}, eris.Wrap(err, "zonecache: begin replace")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx,
		`INSERT INTO health.zone_versions (id, created_at, zone_count) VALUES ($1, $2, $3)`,
		v.ID, v.CreatedAt, v.ZoneCount,
	); err != nil {
		return Version{}, eris.Wrap(err, "zonecache: insert version")
	}

	if len(rows) > 0 {
		if _, err := tx.Exec(ctx, `
			CREATE TEMP TABLE _zone_stage (
				seq         BIGINT,
				x           DOUBLE PRECISION,
				y           DOUBLE PRECISION,
				population  BIGINT,
				district    TEXT,
				priority    TEXT,
				distance_km DOUBLE PRECISION,
				geom        BYTEA,
				updated_at  TIMESTAMPTZ
			) ON COMMIT DROP`); err != nil {
			return Version{}, eris.Wrap(err, "zonecache: create stage table")
		}

		if _, err := db.CopyRows(ctx, tx, stageTable, stageColumns, rows); err != nil {
			return Version{}, eris.Wrap(err, "zonecache: stage zones")
		}

		if _, err := tx.Exec(ctx, `
			INSERT INTO health.demand_zones
				(version_id, x, y, population, district, priority, distance_km, geom, updated_at)
			SELECT $1, x, y, population, district, priority, distance_km,
			       ST_SetSRID(ST_GeomFromWKB(geom), 4326), updated_at
			FROM _zone_stage ORDER BY seq`, v.ID); err != nil {
			return Version{}, eris.Wrap(err, "zonecache: insert zones")
		}
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO health.zone_current (singleton, version_id) VALUES (true, $1)
		ON CONFLICT (singleton) DO UPDATE SET version_id = EXCLUDED.version_id`, v.ID); err != nil {
		return Version{}, eris.Wrap(err, "zonecache: swap current version")
	}

	if _, err := tx.Exec(ctx, `DELETE FROM health.zone_versions WHERE id <> $1`, v.ID); err != nil {
		return Version{}, eris.Wrap(err, "zonecache: prune versions")
	}

	if err := tx.Commit(ctx); err != nil {
		return Version{}, eris.Wrap(err, "zonecache: commit replace")
	}
	return v, nil
}

// List implements Cache.
func (c *PostgresCache) List(ctx context.Context, f Filter) ([]model.DemandZone, error) {
	sql := `
		SELECT z.x, z.y, z.population, z.district, z.priority, z.distance_km,
		       ST_AsBinary(z.geom), z.updated_at
		FROM health.demand_zones z
		JOIN health.zone_current c ON c.version_id = z.version_id
		WHERE ($1 = '' OR z.priority = $1) AND ($2 = '' OR z.district = $2)
		ORDER BY z.id
	`
	rows, err := c.pool.Query(ctx, sql, string(f.Priority), f.District)
	if err != nil {
		return nil, unavailable(err, "list zones")
	}
	defer rows.Close()

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
func (c *PostgresCache) Current(ctx context.Context) (Version, error) {
	var (
		v       Version
		created time.Time
	)
	err := c.pool.QueryRow(ctx, `
		SELECT v.id, v.created_at, v.zone_count
		FROM health.zone_current c
		JOIN health.zone_versions v ON v.id = c.version_id`).Scan(&v.ID, &created, &v.ZoneCount)
	if errors.Is(err, pgx.ErrNoRows) {
		return Version{}, nil
	}
	if err != nil {
		return Version{}, unavailable(err, "current version")
	}
	v.CreatedAt = created.UTC()
	return v, nil
}

func unavailable(err error, action string) error {
	return eris.Wrapf(model.ErrUpstreamUnavailable, "zonecache: %s: %v", action, err)
}
