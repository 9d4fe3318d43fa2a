package app

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"placement/internal/common"
	"placement/internal/domain/drive"
)

// DriveCache is a per-instance read cache for single-drive lookups. Values are
// cloned on the way in and out so callers never share slices with the cache.
type DriveCache struct {
	cache *expirable.LRU[common.UUID, drive.JobDrive]
}

// NewDriveCache returns nil when size is not positive, which disables caching.
func NewDriveCache(size int, ttl time.Duration) *DriveCache {
	if size <= 0 {
		return nil
	}
	return &DriveCache{cache: expirable.NewLRU[common.UUID, drive.JobDrive](size, nil, ttl)}
}

func (c *DriveCache) Get(id common.UUID) (*drive.JobDrive, bool) {
	if c == nil {
		return nil, false
	}
	value, ok := c.cache.Get(id)
	if !ok {
		driveCacheTotal.WithLabelValues("miss").Inc()
		return nil, false
	}
	driveCacheTotal.WithLabelValues("hit").Inc()
	clone := value.Clone()
	return &clone, true
}

func (c *DriveCache) Set(d drive.JobDrive) {
	if c == nil {
		return
	}
	c.cache.Add(d.ID, d.Clone())
}

func (c *DriveCache) Invalidate(id common.UUID) {
	if c == nil {
		return
	}
	c.cache.Remove(id)
}
