// Package tiles serves Mapbox Vector Tiles for the map layers straight from
// PostGIS, with an in-memory LRU in front.
package tiles

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/healthmap/internal/db"
)

// Layer names.
const (
	LayerDemandZones = "demand_zones"
	LayerDistricts   = "districts"
	LayerPopulation  = "population"
	LayerFacilities  = "facilities"
)

// LayerConfig maps a PostGIS table to a tile layer.
type LayerConfig struct {
	Table   string `json:"table"`
	Columns string `json:"columns"` // comma-separated attribute columns
	Where   string `json:"where,omitempty"`
	MinZoom int    `json:"min_zoom"`
	MaxZoom int    `json:"max_zoom"`

	// CacheTTL caps how long a rendered tile of this layer is reused.
	// Zero uses the cache-wide TTL.
	CacheTTL time.Duration `json:"cache_ttl,omitempty"`
}

// ZoneTileTTL bounds demand-zone tile staleness when the zone set is
// replaced by another process (CLI recompute or a second replica), which
// the in-process OnReplace hook never sees.
const ZoneTileTTL = 30 * time.Second

// allowedTables lists the tables a layer may read.
var allowedTables = map[string]bool{
	"health.demand_zones":     true,
	"health.districts":        true,
	"health.population_cells": true,
	"health.facilities":       true,
}

// DefaultLayers returns the map layers.
func DefaultLayers() map[string]LayerConfig {
	return map[string]LayerConfig{
		LayerDemandZones: {
			Table:    "health.demand_zones",
			Columns:  "population, district, priority, distance_km",
			Where:    "version_id = (SELECT version_id FROM health.zone_current)",
			MinZoom:  9,
			MaxZoom:  18,
			CacheTTL: ZoneTileTTL,
		},
		LayerDistricts: {
			Table:   "health.districts",
			Columns: "id, name",
			MinZoom: 6,
			MaxZoom: 16,
		},
		LayerPopulation: {
			Table:   "health.population_cells",
			Columns: "id, total_population, name_region",
			Where:   "NOT is_deleted",
			MinZoom: 10,
			MaxZoom: 18,
		},
		LayerFacilities: {
			Table:   "health.facilities",
			Columns: "name, categories, district, address",
			Where:   "geom IS NOT NULL",
			MinZoom: 8,
			MaxZoom: 18,
		},
	}
}

// tileSQL builds the ST_AsMVT query for a layer. Geometries are stored in
// 4326 and projected to the 3857 tile envelope.
func tileSQL(layer LayerConfig) string {
	where := "geom && ST_Transform(ST_TileEnvelope($1, $2, $3), 4326)"
	if layer.Where != "" {
		where += " AND " + layer.Where
	}
	return fmt.Sprintf(`
		SELECT ST_AsMVT(q, $4, 4096, 'geom') FROM (
			SELECT %s,
				ST_AsMVTGeom(
					ST_Transform(geom, 3857),
					ST_TileEnvelope($1, $2, $3),
					4096, 256, true
				) AS geom
			FROM %s
			WHERE %s
		) q`,
		layer.Columns, layer.Table, where,
	)
}

// GenerateMVT renders one tile of layer name.
func GenerateMVT(ctx context.Context, pool db.Pool, name string, layer LayerConfig, z, x, y int) ([]byte, error) {
	if !allowedTables[layer.Table] {
		return nil, eris.Errorf("tiles: table %q is not allowed", layer.Table)
	}

	var tile []byte
	if err := pool.QueryRow(ctx, tileSQL(layer), z, x, y, name).Scan(&tile); err != nil {
		return nil, eris.Wrapf(err, "tiles: generate %s %d/%d/%d", name, z, x, y)
	}
	return tile, nil
}
