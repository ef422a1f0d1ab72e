package rbac

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/edushield/edushield/pkg/observability"
)

// PermissionCache holds resolved permission sets per user with a
// short TTL. Any role mutation purges the whole cache; the sets are
// cheap to rebuild and correctness beats cleverness here.
type PermissionCache struct {
	cache   *lru.LRU[int64, PermissionSet]
	metrics *observability.Metrics
}

// NewPermissionCache creates a permission cache. A nil metrics
// receiver disables instrumentation.
func NewPermissionCache(size int, ttl time.Duration, metrics *observability.Metrics) *PermissionCache {
	if size <= 0 {
		size = 1024
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &PermissionCache{
		cache:   lru.NewLRU[int64, PermissionSet](size, nil, ttl),
		metrics: metrics,
	}
}

// Get returns the cached permission set for a user
func (c *PermissionCache) Get(userID int64) (PermissionSet, bool) {
	set, ok := c.cache.Get(userID)
	if c.metrics != nil {
		if ok {
			c.metrics.PermissionCacheHits.Inc()
		} else {
			c.metrics.PermissionCacheMisses.Inc()
		}
	}
	return set, ok
}

// Set stores a resolved permission set for a user
func (c *PermissionCache) Set(userID int64, set PermissionSet) {
	c.cache.Add(userID, set)
}

// InvalidateUser drops a single user's cached set
func (c *PermissionCache) InvalidateUser(userID int64) {
	c.cache.Remove(userID)
}

// InvalidateAll drops every cached set. Called after any role,
// permission, or menu mutation since the LRU cannot be queried by
// role membership.
func (c *PermissionCache) InvalidateAll() {
	c.cache.Purge()
}

// Len returns the number of cached sets
func (c *PermissionCache) Len() int {
	return c.cache.Len()
}
