package stations

import (
	"context"
	"fmt"
	"time"

	"github.com/eko/gocache/lib/v4/cache"
	"github.com/eko/gocache/lib/v4/store"
	redisstore "github.com/eko/gocache/store/redis/v4"

	"github.com/crossingcast/crossingcast/pkg/redis_client"
	"github.com/crossingcast/crossingcast/pkg/timetable"
)

// LocationCache resolves tiplocs to display names through redis, so every
// instance sharing the redis doesn't re-derive names from its own reference
// file. Misses fall back to the timetable store's reference data.
type LocationCache struct {
	Cache *cache.Cache[string]
	Store *timetable.Store
}

func (c *LocationCache) Setup(timetableStore *timetable.Store) {
	redisStore := redisstore.NewRedis(redis_client.Client, store.WithExpiration(90*time.Minute))

	c.Cache = cache.New[string](redisStore)
	c.Store = timetableStore
}

func (c *LocationCache) Get(tiploc string) string {
	fullTiplocID := fmt.Sprintf("GB:TIPLOC:%s", tiploc)

	cacheValue, err := c.Cache.Get(context.Background(), fullTiplocID)
	if err == nil && cacheValue != "" {
		return cacheValue
	}

	name := c.Store.LocationName(tiploc)
	c.Cache.Set(context.Background(), fullTiplocID, name)

	return name
}
