// Package dataset provides the read-only population, facility and district
// collections the demand engine and proximity queries consume, plus the
// write paths used by ingest.
package dataset

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/healthmap/internal/model"
)

// FacilityRegistry lists medical facilities ordered by name.
type FacilityRegistry interface {
	ListFacilities(ctx context.Context) ([]model.Facility, error)
}

// DistrictStore lists district polygons in a fixed order (by id).
type DistrictStore interface {
	ListDistricts(ctx context.Context) ([]model.District, error)
}

// RegionPopulation is the summed population of one region label.
type RegionPopulation struct {
	Region     string `json:"district"`
	Population int64  `json:"population"`
}

// PopulationStore reads the population grid. Soft-deleted cells are never
// returned or counted.
type PopulationStore interface {
	// ListDenseCells returns cells with population >= minPopulation, by id.
	ListDenseCells(ctx context.Context, minPopulation int64) ([]model.PopulationCell, error)
	// PopulationByRegion sums population per region, ordered by region name.
	PopulationByRegion(ctx context.Context) ([]RegionPopulation, error)
	// SumAgeStructure sums the age brackets for one region; "" means all.
	SumAgeStructure(ctx context.Context, region string) (model.AgeStructure, error)
}

// Writer loads reference data. Rows are upserted by their natural key.
type Writer interface {
	UpsertFacilities(ctx context.Context, facilities []model.Facility) (int64, error)
	UpsertDistricts(ctx context.Context, districts []model.District) (int64, error)
	UpsertCells(ctx context.Context, cells []model.PopulationCell) (int64, error)
}

// Store is a complete dataset backend.
type Store interface {
	FacilityRegistry
	DistrictStore
	PopulationStore
	Writer
	Migrate(ctx context.Context) error
}

// Snapshot is the reference data for one recompute pass. It is never
// modified after LoadSnapshot returns.
type Snapshot struct {
	Facilities []model.Facility
	Districts  []model.District
	TakenAt    time.Time
}

// FacilityCoords returns the coordinates of every facility, including nil
// entries for facilities without one.
func (s Snapshot) FacilityCoords() []*model.Point {
	coords := make([]*model.Point, len(s.Facilities))
	for i := range s.Facilities {
		coords[i] = s.Facilities[i].Coord
	}
	return coords
}

// LoadSnapshot fetches facilities and districts concurrently.
func LoadSnapshot(ctx context.Context, facilities FacilityRegistry, districts DistrictStore) (Snapshot, error) {
	var snap Snapshot

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		fs, err := facilities.ListFacilities(gctx)
		if err != nil {
			return err
		}
		snap.Facilities = fs
		return nil
	})
	g.Go(func() error {
		ds, err := districts.ListDistricts(gctx)
		if err != nil {
			return err
		}
		snap.Districts = ds
		return nil
	})
	if err := g.Wait(); err != nil {
		return Snapshot{}, eris.Wrap(err, "dataset: load snapshot")
	}

	snap.TakenAt = time.Now().UTC()
	return snap, nil
}

// unavailable marks a failed dataset read so callers can tell it apart from
// bad input.
func unavailable(err error, action string) error {
	return eris.Wrapf(model.ErrUpstreamUnavailable, "dataset: %s: %v", action, err)
}
