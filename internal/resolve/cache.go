package resolve

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"javmeta/resolverservice/internal/domain"
	"javmeta/resolverservice/internal/metrics"
)

const (
	defaultCacheTTL        = 24 * time.Hour
	defaultStaleTTL        = 72 * time.Hour
	defaultCacheMaxEntries = 2000
)

type cacheConfig struct {
	cacheTTL        time.Duration
	staleTTL        time.Duration
	cacheMaxEntries int
}

func defaultCacheConfig() cacheConfig {
	return cacheConfig{
		cacheTTL:        defaultCacheTTL,
		staleTTL:        defaultStaleTTL,
		cacheMaxEntries: defaultCacheMaxEntries,
	}
}

type cachedResult struct {
	result      domain.ResolveResult
	updatedAt   time.Time
	expiresAt   time.Time
	staleUntil  time.Time
	refreshing  bool
	refreshOnce sync.Once
}

func (s *Service) cacheLookup(key string, now time.Time) (domain.ResolveResult, bool, bool) {
	if s.redisCache != nil {
		result, found, err := s.redisCache.Get(context.Background(), key)
		if err == nil && found {
			metrics.CacheHitsTotal.Inc()
			s.cacheStoreMemoryOnly(key, result, now)
			return result, true, false
		}
	}

	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()

	entry, ok := s.cache[key]
	if !ok {
		metrics.CacheMissesTotal.Inc()
		return domain.ResolveResult{}, false, false
	}

	if now.Before(entry.expiresAt) {
		metrics.CacheHitsTotal.Inc()
		return cloneResolveResult(entry.result), true, false
	}

	if now.Before(entry.staleUntil) {
		metrics.CacheHitsTotal.Inc()
		// One refresh per stale period, even when several requests
		// land in the stale window at once.
		needsRefresh := false
		entry.refreshOnce.Do(func() {
			needsRefresh = true
			entry.refreshing = true
		})
		return cloneResolveResult(entry.result), true, needsRefresh
	}

	metrics.CacheMissesTotal.Inc()
	delete(s.cache, key)
	return domain.ResolveResult{}, false, false
}

func (s *Service) cacheStore(key string, result domain.ResolveResult, now time.Time) {
	cacheTTL := s.cacheCfg.cacheTTL
	if cacheTTL <= 0 {
		cacheTTL = defaultCacheTTL
	}
	staleTTL := s.cacheCfg.staleTTL
	if staleTTL <= cacheTTL {
		staleTTL = cacheTTL * 3
	}

	if s.redisCache != nil {
		_ = s.redisCache.Set(context.Background(), key, result, cacheTTL)
	}

	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()

	s.cache[key] = &cachedResult{
		result:     cloneResolveResult(result),
		updatedAt:  now,
		expiresAt:  now.Add(cacheTTL),
		staleUntil: now.Add(staleTTL),
	}
	s.trimCacheLocked(now)
}

func (s *Service) cacheStoreMemoryOnly(key string, result domain.ResolveResult, now time.Time) {
	cacheTTL := s.cacheCfg.cacheTTL
	if cacheTTL <= 0 {
		cacheTTL = defaultCacheTTL
	}
	staleTTL := s.cacheCfg.staleTTL
	if staleTTL <= cacheTTL {
		staleTTL = cacheTTL * 3
	}

	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()

	s.cache[key] = &cachedResult{
		result:     cloneResolveResult(result),
		updatedAt:  now,
		expiresAt:  now.Add(cacheTTL),
		staleUntil: now.Add(staleTTL),
	}
	s.trimCacheLocked(now)
}

func (s *Service) cacheClearRefreshing(key string) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	if entry := s.cache[key]; entry != nil {
		entry.refreshing = false
	}
}

func (s *Service) trimCacheLocked(now time.Time) {
	maxEntries := s.cacheCfg.cacheMaxEntries
	if maxEntries <= 0 {
		maxEntries = defaultCacheMaxEntries
	}

	for key, entry := range s.cache {
		if now.After(entry.staleUntil) {
			delete(s.cache, key)
		}
	}

	if len(s.cache) <= maxEntries {
		return
	}

	type pair struct {
		key   string
		entry *cachedResult
	}
	items := make([]pair, 0, len(s.cache))
	for key, entry := range s.cache {
		items = append(items, pair{key: key, entry: entry})
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].entry.updatedAt.Before(items[j].entry.updatedAt)
	})
	for i := 0; i < len(items)-maxEntries; i++ {
		delete(s.cache, items[i].key)
	}
}

func cloneResolveResult(result domain.ResolveResult) domain.ResolveResult {
	cloned := result
	if result.ContentIDs != nil {
		cloned.ContentIDs = make(map[string]string, len(result.ContentIDs))
		for k, v := range result.ContentIDs {
			cloned.ContentIDs[k] = v
		}
	}
	if result.Record != nil {
		cloned.Record = make(domain.MergedRecord, len(result.Record))
		for k, v := range result.Record {
			cloned.Record[k] = v
		}
	}
	if result.Provenance != nil {
		cloned.Provenance = make(domain.Provenance, len(result.Provenance))
		for k, v := range result.Provenance {
			cloned.Provenance[k] = v
		}
	}
	cloned.Providers = append([]domain.ProviderStatus(nil), result.Providers...)
	cloned.Contributing = append([]string(nil), result.Contributing...)
	cloned.MissingRequired = append([]string(nil), result.MissingRequired...)
	return cloned
}

func buildResolveCacheKey(code string, providers []string, strategy domain.MergeStrategy) string {
	names := make([]string, 0, len(providers))
	for _, raw := range providers {
		value := strings.ToLower(strings.TrimSpace(raw))
		if value != "" {
			names = append(names, value)
		}
	}
	sort.Strings(names)
	return strings.Join([]string{
		"c=" + code,
		"p=" + strings.Join(names, ","),
		"s=" + string(strategy),
	}, "|")
}
