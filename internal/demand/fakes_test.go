package demand

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/healthmap/internal/dataset"
	"github.com/sells-group/healthmap/internal/model"
	"github.com/sells-group/healthmap/internal/zonecache"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

// fakeData serves fixed datasets. ListDenseCells returns cells unfiltered so
// the engine's own checks are exercised.
type fakeData struct {
	cells      []model.PopulationCell
	facilities []model.Facility
	districts  []model.District
	cellsErr   error
	facErr     error
}

func (f *fakeData) ListFacilities(context.Context) ([]model.Facility, error) {
	return f.facilities, f.facErr
}

func (f *fakeData) ListDistricts(context.Context) ([]model.District, error) {
	return f.districts, nil
}

func (f *fakeData) ListDenseCells(context.Context, int64) ([]model.PopulationCell, error) {
	return f.cells, f.cellsErr
}

func (f *fakeData) PopulationByRegion(context.Context) ([]dataset.RegionPopulation, error) {
	return nil, nil
}

func (f *fakeData) SumAgeStructure(context.Context, string) (model.AgeStructure, error) {
	return model.AgeStructure{}, nil
}

// failingCache rejects every write.
type failingCache struct {
	zonecache.Cache
	err error
}

func (c failingCache) Replace(context.Context, []model.DemandZone) (zonecache.Version, error) {
	return zonecache.Version{}, c.err
}
