package repositories

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kyvra-tech/geoipmap-backend/internal/config"
	"github.com/kyvra-tech/geoipmap-backend/internal/models"
	"github.com/kyvra-tech/geoipmap-backend/pkg/errors"
	"github.com/kyvra-tech/geoipmap-backend/pkg/metrics"
)

type countingSiteRepository struct {
	calls int32
	delay time.Duration
	sites map[int]*models.Site
}

func (r *countingSiteRepository) GetSite(ctx context.Context, siteID int) (*models.Site, error) {
	atomic.AddInt32(&r.calls, 1)
	time.Sleep(r.delay)
	site, ok := r.sites[siteID]
	if !ok {
		return nil, errors.ErrSiteNotFound
	}
	copied := *site
	return &copied, nil
}

func (r *countingSiteRepository) GetTimezone(ctx context.Context, siteID int) (string, error) {
	site, err := r.GetSite(ctx, siteID)
	if err != nil {
		return "", err
	}
	return site.Timezone, nil
}

func (r *countingSiteRepository) ListSiteIDs(ctx context.Context) ([]int, error) {
	return []int{1}, nil
}

func newCachedRepo(t *testing.T, next SiteRepository) *CachedSiteRepository {
	t.Helper()
	repo, err := NewCachedSiteRepository(next, config.CacheConfig{SiteTTL: time.Minute, MaxSiteKeys: 100}, metrics.NewMetrics())
	if err != nil {
		t.Fatalf("Failed to create cache: %v", err)
	}
	t.Cleanup(repo.Close)
	return repo
}

func TestCachedSiteRepositoryHitsCache(t *testing.T) {
	backend := &countingSiteRepository{sites: map[int]*models.Site{1: {ID: 1, Timezone: "Asia/Tokyo"}}}
	repo := newCachedRepo(t, backend)

	for i := 0; i < 3; i++ {
		tz, err := repo.GetTimezone(context.Background(), 1)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if tz != "Asia/Tokyo" {
			t.Errorf("Expected Asia/Tokyo, got %s", tz)
		}
	}

	if calls := atomic.LoadInt32(&backend.calls); calls != 1 {
		t.Errorf("Expected 1 backend call, got %d", calls)
	}
}

func TestCachedSiteRepositoryReturnsCopies(t *testing.T) {
	backend := &countingSiteRepository{sites: map[int]*models.Site{1: {ID: 1, Timezone: "UTC"}}}
	repo := newCachedRepo(t, backend)

	site, err := repo.GetSite(context.Background(), 1)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	site.Timezone = "mutated"

	again, err := repo.GetSite(context.Background(), 1)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if again.Timezone != "UTC" {
		t.Errorf("Cached site was mutated through a returned pointer: %s", again.Timezone)
	}
}

func TestCachedSiteRepositoryDoesNotCacheErrors(t *testing.T) {
	backend := &countingSiteRepository{sites: map[int]*models.Site{}}
	repo := newCachedRepo(t, backend)

	for i := 0; i < 2; i++ {
		if _, err := repo.GetSite(context.Background(), 7); !errors.Is(err, errors.ErrSiteNotFound) {
			t.Fatalf("Expected ErrSiteNotFound, got %v", err)
		}
	}
	if calls := atomic.LoadInt32(&backend.calls); calls != 2 {
		t.Errorf("Expected 2 backend calls, got %d", calls)
	}
}

func TestCachedSiteRepositoryDeduplicatesConcurrentMisses(t *testing.T) {
	backend := &countingSiteRepository{
		delay: 50 * time.Millisecond,
		sites: map[int]*models.Site{2: {ID: 2, Timezone: "UTC+2"}},
	}
	repo := newCachedRepo(t, backend)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := repo.GetSite(context.Background(), 2); err != nil {
				t.Errorf("Unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if calls := atomic.LoadInt32(&backend.calls); calls != 1 {
		t.Errorf("Expected a single backend call, got %d", calls)
	}
}

func TestCachedSiteRepositoryInvalidate(t *testing.T) {
	backend := &countingSiteRepository{sites: map[int]*models.Site{1: {ID: 1, Timezone: "UTC"}}}
	repo := newCachedRepo(t, backend)

	repo.GetSite(context.Background(), 1)
	repo.Invalidate(1)
	repo.GetSite(context.Background(), 1)

	if calls := atomic.LoadInt32(&backend.calls); calls != 2 {
		t.Errorf("Expected reload after invalidate, got %d calls", calls)
	}
}
