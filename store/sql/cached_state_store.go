package sqlstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	glog "github.com/goliatone/go-logger/glog"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/railsonsantospb/unifi-relay/core"
)

const stateCacheKeyPrefix = "unifi-relay::site_state::v1"

type cachedEntry struct {
	Entry core.StateEntry
	Found bool
}

// CachedStateStore serves Load through a read-through cache and drops the
// cached value whenever a swap writes. Swaps always go to the base store, so
// a missed invalidation only leaves Load stale until the entry expires.
type CachedStateStore struct {
	base   core.StateStore
	cache  repositorycache.CacheService
	logger core.Logger
}

func NewCachedStateStore(base core.StateStore, cacheService repositorycache.CacheService, logger core.Logger) (*CachedStateStore, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base state store is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: state cache service is required")
	}
	return &CachedStateStore{base: base, cache: cacheService, logger: glog.Ensure(logger)}, nil
}

// StateCacheKey returns unifi-relay::site_state::v1::<escaped key>.
func StateCacheKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", fmt.Errorf("sqlstore: state key is required")
	}
	return stateCacheKeyPrefix + "::" + url.PathEscape(key), nil
}

func (s *CachedStateStore) Load(ctx context.Context, key string) (core.StateEntry, bool, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.StateEntry{}, false, fmt.Errorf("sqlstore: cached state store is not configured")
	}
	cacheKey, err := StateCacheKey(key)
	if err != nil {
		return core.StateEntry{}, false, err
	}
	cached, err := repositorycache.GetOrFetch(ctx, s.cache, cacheKey, func(ctx context.Context) (cachedEntry, error) {
		entry, found, fetchErr := s.base.Load(ctx, key)
		if fetchErr != nil {
			return cachedEntry{}, fetchErr
		}
		return cachedEntry{Entry: entry, Found: found}, nil
	})
	if err != nil {
		return core.StateEntry{}, false, err
	}
	return cached.Entry, cached.Found, nil
}

func (s *CachedStateStore) CompareAndSwap(ctx context.Context, key string, next core.StateEntry) (bool, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return false, fmt.Errorf("sqlstore: cached state store is not configured")
	}
	cacheKey, err := StateCacheKey(key)
	if err != nil {
		return false, err
	}
	changed, err := s.base.CompareAndSwap(ctx, key, next)
	if err != nil {
		return false, err
	}
	if !changed {
		return false, nil
	}
	// The row is committed; the caller must still see the change.
	if err := s.cache.Delete(ctx, cacheKey); err != nil {
		s.logger.WithContext(ctx).Warn("state cache invalidation failed", "key", key, "error", err)
	}
	return true, nil
}
