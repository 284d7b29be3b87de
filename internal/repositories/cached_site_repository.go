package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto"
	"golang.org/x/sync/singleflight"

	"github.com/kyvra-tech/geoipmap-backend/internal/config"
	"github.com/kyvra-tech/geoipmap-backend/internal/models"
	"github.com/kyvra-tech/geoipmap-backend/pkg/metrics"
)

const siteCacheName = "site"

// CachedSiteRepository keeps site rows in memory so every geo request does not
// hit the site table for its timezone. Concurrent misses for the same site share
// one database lookup.
type CachedSiteRepository struct {
	next    SiteRepository
	cache   *ristretto.Cache
	ttl     time.Duration
	group   singleflight.Group
	metrics *metrics.Metrics
}

// NewCachedSiteRepository wraps next with a TTL cache sized by cfg.
func NewCachedSiteRepository(next SiteRepository, cfg config.CacheConfig, m *metrics.Metrics) (*CachedSiteRepository, error) {
	maxKeys := int64(cfg.MaxSiteKeys)
	if maxKeys < 1 {
		maxKeys = 1
	}

	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters:        maxKeys * 10,
		MaxCost:            maxKeys,
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("create site cache: %w", err)
	}

	return &CachedSiteRepository{
		next:    next,
		cache:   cache,
		ttl:     cfg.SiteTTL,
		metrics: m,
	}, nil
}

func siteCacheKey(siteID int) string {
	return fmt.Sprintf("site:%d", siteID)
}

// GetSite returns a copy of the cached site, loading it on a miss.
func (r *CachedSiteRepository) GetSite(ctx context.Context, siteID int) (*models.Site, error) {
	key := siteCacheKey(siteID)

	if v, ok := r.cache.Get(key); ok {
		r.metrics.RecordCacheLookup(siteCacheName, true)
		site := *v.(*models.Site)
		return &site, nil
	}
	r.metrics.RecordCacheLookup(siteCacheName, false)

	v, err, _ := r.group.Do(key, func() (interface{}, error) {
		site, err := r.next.GetSite(ctx, siteID)
		if err != nil {
			return nil, err
		}
		r.cache.SetWithTTL(key, site, 1, r.ttl)
		r.cache.Wait()
		return site, nil
	})
	if err != nil {
		return nil, err
	}

	site := *v.(*models.Site)
	return &site, nil
}

func (r *CachedSiteRepository) GetTimezone(ctx context.Context, siteID int) (string, error) {
	site, err := r.GetSite(ctx, siteID)
	if err != nil {
		return "", err
	}
	return site.Timezone, nil
}

// ListSiteIDs is not cached; the archiver calls it once per run.
func (r *CachedSiteRepository) ListSiteIDs(ctx context.Context) ([]int, error) {
	return r.next.ListSiteIDs(ctx)
}

// Invalidate drops a site so the next lookup reloads it.
func (r *CachedSiteRepository) Invalidate(siteID int) {
	r.cache.Del(siteCacheKey(siteID))
}

// Close releases the cache's background goroutines.
func (r *CachedSiteRepository) Close() {
	r.cache.Close()
}
