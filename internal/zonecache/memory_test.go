package zonecache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/healthmap/internal/model"
)

func zonesFixture() []model.DemandZone {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return []model.DemandZone{
		{X: 1, Y: 1, Population: 2000, District: "Central", Priority: model.PriorityCritical, DistanceKM: 1.52, UpdatedAt: now},
		{X: 2, Y: 2, Population: 1800, District: "North", Priority: model.PriorityLow, DistanceKM: 0.7, UpdatedAt: now},
		{X: 3, Y: 3, Population: 1600, District: "Central", Priority: model.PriorityModerate, DistanceKM: 1.1, UpdatedAt: now},
	}
}

func TestFilterMatch(t *testing.T) {
	t.Parallel()

	z := model.DemandZone{District: "Central", Priority: model.PriorityCritical}
	assert.True(t, Filter{}.Match(z))
	assert.True(t, Filter{Priority: model.PriorityCritical}.Match(z))
	assert.True(t, Filter{District: "Central", Priority: model.PriorityCritical}.Match(z))
	assert.False(t, Filter{Priority: model.PriorityLow}.Match(z))
	assert.False(t, Filter{District: "North"}.Match(z))
}

func TestMemoryCache_Empty(t *testing.T) {
	t.Parallel()

	c := NewMemoryCache()
	v, err := c.Current(context.Background())
	require.NoError(t, err)
	assert.True(t, v.IsZero())

	zones, err := c.List(context.Background(), Filter{})
	require.NoError(t, err)
	assert.Empty(t, zones)
}

func TestMemoryCache_ReplaceAndList(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	c := NewMemoryCache()
	v1, err := c.Replace(ctx, zonesFixture())
	require.NoError(t, err)
	assert.Equal(t, 3, v1.ZoneCount)
	assert.False(t, v1.IsZero())

	all, err := c.List(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "Central", all[0].District)
	assert.Equal(t, "North", all[1].District)

	central, err := c.List(ctx, Filter{District: "Central"})
	require.NoError(t, err)
	assert.Len(t, central, 2)

	critical, err := c.List(ctx, Filter{Priority: model.PriorityCritical})
	require.NoError(t, err)
	require.Len(t, critical, 1)
	assert.Equal(t, 1.52, critical[0].DistanceKM)

	// A second replace swaps the whole set.
	v2, err := c.Replace(ctx, zonesFixture()[:1])
	require.NoError(t, err)
	assert.NotEqual(t, v1.ID, v2.ID)

	cur, err := c.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, v2.ID, cur.ID)

	all, err = c.List(ctx, Filter{})
	require.NoError(t, err)
	assert.Len(t, all, 1)

	// Replacing with nothing yields an empty current set.
	_, err = c.Replace(ctx, nil)
	require.NoError(t, err)
	all, err = c.List(ctx, Filter{})
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestMemoryCache_ReplaceCopiesInput(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	zones := zonesFixture()
	c := NewMemoryCache()
	_, err := c.Replace(ctx, zones)
	require.NoError(t, err)

	zones[0].District = "mutated"
	got, err := c.List(ctx, Filter{})
	require.NoError(t, err)
	assert.Equal(t, "Central", got[0].District)
}

func TestMemoryCache_ReadersNeverSeeEmptyWindow(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	c := NewMemoryCache()
	_, err := c.Replace(ctx, zonesFixture())
	require.NoError(t, err)

	var (
		wg    sync.WaitGroup
		stop  = make(chan struct{})
		short = make(chan int, 1)
	)
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				zones, _ := c.List(ctx, Filter{})
				if len(zones) != 3 {
					select {
					case short <- len(zones):
					default:
					}
					return
				}
			}
		}()
	}

	for i := 0; i < 500; i++ {
		_, err := c.Replace(ctx, zonesFixture())
		require.NoError(t, err)
	}
	close(stop)
	wg.Wait()

	select {
	case n := <-short:
		t.Fatalf("reader observed a partial set of %d zones", n)
	default:
	}
}
