package zonecache

import (
	"context"
	"sync/atomic"

	"github.com/sells-group/healthmap/internal/model"
)

type memorySet struct {
	version Version
	zones   []model.DemandZone
}

// MemoryCache keeps the current set behind an atomic pointer.
type MemoryCache struct {
	current atomic.Pointer[memorySet]
}

// NewMemoryCache returns an empty MemoryCache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{}
}

// Replace implements Cache.
func (c *MemoryCache) Replace(_ context.Context, zones []model.DemandZone) (Version, error) {
	set := &memorySet{
		version: newVersion(len(zones)),
		zones:   append([]model.DemandZone(nil), zones...),
	}
	c.current.Store(set)
	return set.version, nil
}

// List implements Cache.
func (c *MemoryCache) List(_ context.Context, f Filter) ([]model.DemandZone, error) {
	set := c.current.Load()
	if set == nil {
		return nil, nil
	}
	out := make([]model.DemandZone, 0, len(set.zones))
	for _, z := range set.zones {
		if f.Match(z) {
			out = append(out, z)
		}
	}
	return out, nil
}

// Current implements Cache.
func (c *MemoryCache) Current(context.Context) (Version, error) {
	set := c.current.Load()
	if set == nil {
		return Version{}, nil
	}
	return set.version, nil
}
