// Package zonecache stores the most recent demand-zone set. Every Replace
// writes a complete new version and then swaps the current pointer, so
// readers see either the previous set or the new one, never a partial or
// empty window.
package zonecache

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/sells-group/healthmap/internal/model"
)

// Version identifies one materialised zone set.
type Version struct {
	ID        uuid.UUID `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	ZoneCount int       `json:"zone_count"`
}

// IsZero reports whether no version has been written yet.
func (v Version) IsZero() bool {
	return v.ID == uuid.Nil
}

// Filter narrows List. The zero value matches every zone.
type Filter struct {
	Priority model.Priority
	District string
}

// Match reports whether z passes the filter.
func (f Filter) Match(z model.DemandZone) bool {
	if f.Priority != "" && z.Priority != f.Priority {
		return false
	}
	if f.District != "" && z.District != f.District {
		return false
	}
	return true
}

// Cache holds the current demand-zone set.
type Cache interface {
	// Replace stores zones as a new version and makes it current.
	Replace(ctx context.Context, zones []model.DemandZone) (Version, error)
	// List returns the zones of the current version matching f, in the
	// order they were written.
	List(ctx context.Context, f Filter) ([]model.DemandZone, error)
	// Current returns the current version, zero when none exists.
	Current(ctx context.Context) (Version, error)
}

func newVersion(n int) Version {
	return Version{ID: uuid.New(), CreatedAt: time.Now().UTC(), ZoneCount: n}
}
