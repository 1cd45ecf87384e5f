package demand

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/healthmap/internal/dataset"
	"github.com/sells-group/healthmap/internal/geometry"
	"github.com/sells-group/healthmap/internal/metrics"
	"github.com/sells-group/healthmap/internal/model"
	"github.com/sells-group/healthmap/internal/zonecache"
)

// Datasets is the read side the engine needs.
type Datasets interface {
	dataset.FacilityRegistry
	dataset.DistrictStore
	dataset.PopulationStore
}

// Result summarises one recompute pass.
type Result struct {
	Version             zonecache.Version      `json:"version"`
	Scanned             int                    `json:"scanned"`
	Zones               int                    `json:"zones"`
	DiscardedNoFacility int                    `json:"discarded_no_facility"`
	DiscardedServed     int                    `json:"discarded_served"`
	Skipped             int                    `json:"skipped"`
	ByPriority          map[model.Priority]int `json:"by_priority"`
	Duration            time.Duration          `json:"duration"`
}

// Engine recomputes the demand-zone cache.
type Engine struct {
	data      Datasets
	cache     zonecache.Cache
	guard     Guard
	onReplace []func(zonecache.Version)
	now       func() time.Time
	log       *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithGuard replaces the default in-process guard.
func WithGuard(g Guard) Option {
	return func(e *Engine) { e.guard = g }
}

// WithClock overrides the zone timestamp source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates an Engine writing to cache.
func NewEngine(data Datasets, cache zonecache.Cache, opts ...Option) *Engine {
	e := &Engine{
		data:  data,
		cache: cache,
		guard: &LocalGuard{},
		now:   func() time.Time { return time.Now().UTC() },
		log:   zap.L().With(zap.String("component", "demand.engine")),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// OnReplace registers fn to run after every successful cache replace.
func (e *Engine) OnReplace(fn func(zonecache.Version)) {
	e.onReplace = append(e.onReplace, fn)
}

// Run loads a fresh snapshot and recomputes under the guard.
func (e *Engine) Run(ctx context.Context) (Result, error) {
	var res Result
	err := e.guard.Do(ctx, func(ctx context.Context) error {
		snap, err := dataset.LoadSnapshot(ctx, e.data, e.data)
		if err != nil {
			return err
		}
		res, err = e.Recompute(ctx, snap)
		return err
	})
	switch {
	case err == nil:
		metrics.RecomputeTotal.WithLabelValues(metrics.OutcomeOK).Inc()
	case eris.Is(err, model.ErrRecomputeInProgress):
		metrics.RecomputeTotal.WithLabelValues(metrics.OutcomeBusy).Inc()
	default:
		metrics.RecomputeTotal.WithLabelValues(metrics.OutcomeError).Inc()
	}
	return res, err
}

// Recompute builds the zone set from the dense cells and snap, then replaces
// the cache in one call. On any read error the cache is left untouched.
func (e *Engine) Recompute(ctx context.Context, snap dataset.Snapshot) (Result, error) {
	start := time.Now()

	cells, err := e.data.ListDenseCells(ctx, MinPopulation)
	if err != nil {
		return Result{}, eris.Wrap(err, "demand: list dense cells")
	}

	res := Result{
		Scanned:    len(cells),
		ByPriority: make(map[model.Priority]int, len(model.Priorities)),
	}
	zones := e.buildZones(ctx, cells, snap, &res)
	if err := ctx.Err(); err != nil {
		return Result{}, eris.Wrap(err, "demand: recompute cancelled")
	}

	v, err := e.cache.Replace(ctx, zones)
	if err != nil {
		return Result{}, eris.Wrap(err, "demand: replace cache")
	}
	res.Version = v
	res.Zones = len(zones)
	res.Duration = time.Since(start)

	for _, fn := range e.onReplace {
		fn(v)
	}
	metrics.RecomputeDuration.Observe(res.Duration.Seconds())
	for _, p := range model.Priorities {
		metrics.DemandZones.WithLabelValues(string(p)).Set(float64(res.ByPriority[p]))
	}

	e.log.Info("demand zones recomputed",
		zap.String("version", v.ID.String()),
		zap.Int("scanned", res.Scanned),
		zap.Int("zones", res.Zones),
		zap.Int("discarded_no_facility", res.DiscardedNoFacility),
		zap.Int("discarded_served", res.DiscardedServed),
		zap.Int("skipped", res.Skipped),
		zap.Int("facilities", len(snap.Facilities)),
		zap.Int("districts", len(snap.Districts)),
		zap.Duration("duration", res.Duration),
	)
	return res, nil
}

func (e *Engine) buildZones(ctx context.Context, cells []model.PopulationCell, snap dataset.Snapshot, res *Result) []model.DemandZone {
	coords := snap.FacilityCoords()
	now := e.now()

	zones := make([]model.DemandZone, 0, len(cells)/4)
	for i, cell := range cells {
		if i%1000 == 0 && ctx.Err() != nil {
			return nil
		}
		// Stores already filter these; the invariant must hold regardless.
		if cell.IsDeleted || cell.TotalPopulation < MinPopulation {
			res.Skipped++
			continue
		}

		centroid, ok := geometry.Centroid(cell.Geometry)
		if !ok {
			centroid = model.Point{X: cell.X, Y: cell.Y}
		}

		d, ok := geometry.NearestDistance(centroid, coords)
		if !ok {
			res.DiscardedNoFacility++
			continue
		}
		if d < servedRadiusKM {
			res.DiscardedServed++
			continue
		}

		priority := ClassifyPriority(d)
		district := ResolveDistrict(snap.Districts, centroid)
		e.log.Debug("demand zone",
			zap.Int64("cell", cell.ID),
			zap.Float64("distance_km", d),
			zap.String("priority", string(priority)),
			zap.String("district", district),
		)

		zones = append(zones, model.DemandZone{
			X:          cell.X,
			Y:          cell.Y,
			Population: cell.TotalPopulation,
			District:   district,
			Priority:   priority,
			DistanceKM: geometry.Round2(d),
			Geometry:   cell.Geometry,
			UpdatedAt:  now,
		})
		res.ByPriority[priority]++
	}
	return zones
}
