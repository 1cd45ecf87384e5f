package main

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/healthmap/internal/dataset"
	"github.com/sells-group/healthmap/internal/demand"
	"github.com/sells-group/healthmap/internal/proximity"
	"github.com/sells-group/healthmap/internal/resilience"
	"github.com/sells-group/healthmap/internal/tiles"
	"github.com/sells-group/healthmap/internal/zonecache"
)

const defaultSQLitePath = "healthmap.db"

// env holds the backends a command works against.
type env struct {
	Store dataset.Store
	Zones zonecache.Cache
	Guard demand.Guard

	pool   *pgxpool.Pool
	sqlite *dataset.SQLiteStore
}

// initEnv connects to the configured backend. The first Postgres ping is
// retried while the database comes up.
func initEnv(ctx context.Context) (*env, error) {
	if err := cfg.Validate("store"); err != nil {
		return nil, err
	}

	switch cfg.Store.Driver {
	case "postgres":
		pool, err := connectPostgres(ctx)
		if err != nil {
			return nil, err
		}
		return &env{
			Store: dataset.NewPostgresStore(pool),
			Zones: zonecache.NewPostgresCache(pool),
			Guard: demand.NewAdvisoryGuard(pool),
			pool:  pool,
		}, nil

	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = defaultSQLitePath
		}
		st, err := dataset.OpenSQLite(dsn)
		if err != nil {
			return nil, err
		}
		return &env{
			Store:  st,
			Zones:  zonecache.NewSQLiteCache(st.DB()),
			Guard:  &demand.LocalGuard{},
			sqlite: st,
		}, nil

	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

func connectPostgres(ctx context.Context) (*pgxpool.Pool, error) {
	pc, err := pgxpool.ParseConfig(cfg.Store.DatabaseURL)
	if err != nil {
		return nil, eris.Wrap(err, "parse database url")
	}
	if cfg.Store.MaxConns > 0 {
		pc.MaxConns = cfg.Store.MaxConns
	}
	if cfg.Store.MinConns > 0 {
		pc.MinConns = cfg.Store.MinConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, eris.Wrap(err, "create connection pool")
	}

	retry := resilience.DefaultRetryConfig()
	retry.OnRetry = resilience.RetryLogger("postgres ping")
	if err := resilience.Do(ctx, retry, pool.Ping); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "ping database")
	}

	zap.L().Debug("connected to database", zap.String("host", pc.ConnConfig.Host))
	return pool, nil
}

// Close releases the backend.
func (e *env) Close() {
	if e.pool != nil {
		e.pool.Close()
	}
	if e.sqlite != nil {
		if err := e.sqlite.Close(); err != nil {
			zap.L().Warn("close sqlite", zap.Error(err))
		}
	}
}

// Engine builds a demand engine over the env's datasets and cache.
func (e *env) Engine() *demand.Engine {
	return demand.NewEngine(e.Store, e.Zones, demand.WithGuard(e.Guard))
}

// Service builds the query service.
func (e *env) Service() *proximity.Service {
	return proximity.NewService(e.Store, e.Store, e.Zones)
}

// TileHandler returns nil on backends without PostGIS.
func (e *env) TileHandler() *tiles.Handler {
	if e.pool == nil {
		return nil
	}
	layers := tiles.DefaultLayers()
	if cfg.Tiles.ZoneTTL > 0 {
		zones := layers[tiles.LayerDemandZones]
		zones.CacheTTL = cfg.Tiles.ZoneTTL
		layers[tiles.LayerDemandZones] = zones
	}
	return tiles.NewHandler(e.pool, layers, tiles.NewCache(cfg.Tiles.CacheSize, cfg.Tiles.CacheTTL))
}
