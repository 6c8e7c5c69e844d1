package resolve

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"log/slog"

	"golang.org/x/sync/semaphore"

	"javmeta/resolverservice/internal/codes"
	"javmeta/resolverservice/internal/domain"
)

// maxConcurrentLookups caps simultaneous provider lookups so a wide
// provider roster cannot open an unbounded number of upstream
// connections.
const maxConcurrentLookups = 8

type preparedResolve struct {
	code       string
	selected   []string
	contentIDs map[string]string
	noCache    bool
}

func (s *Service) Resolve(ctx context.Context, request domain.ResolveRequest, providerNames []string) (domain.ResolveResult, error) {
	prepared, err := s.prepareResolve(request, providerNames)
	if err != nil {
		return domain.ResolveResult{}, err
	}

	if s.cacheDisabled || prepared.noCache {
		return s.executePreparedResolve(ctx, prepared), nil
	}

	startedAt := time.Now()
	cacheKey := buildResolveCacheKey(prepared.code, prepared.selected, s.cfg.Strategy)

	if cached, ok, needsRefresh := s.cacheLookup(cacheKey, startedAt); ok {
		if needsRefresh {
			s.refreshCacheAsync(cacheKey, prepared)
		}
		cached.ElapsedMS = time.Since(startedAt).Milliseconds()
		return cached, nil
	}

	result := s.executePreparedResolve(ctx, prepared)
	if !result.NoData() {
		s.cacheStore(cacheKey, result, time.Now())
	}
	return result, nil
}

func (s *Service) refreshCacheAsync(cacheKey string, prepared preparedResolve) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout+2*time.Second)
		defer cancel()
		result := s.executePreparedResolve(ctx, prepared)
		if result.NoData() {
			s.cacheClearRefreshing(cacheKey)
			return
		}
		s.cacheStore(cacheKey, result, time.Now())
	}()
}

func (s *Service) prepareResolve(request domain.ResolveRequest, providerNames []string) (preparedResolve, error) {
	// Filename-shaped input (release-group noise around the code) is
	// accepted by falling back to token extraction.
	code := codes.Normalize(request.Code)
	if !codes.Validate(code) {
		extracted, ok := codes.Extract(request.Code)
		if !ok {
			return preparedResolve{}, fmt.Errorf("%w: %q", ErrInvalidCode, strings.TrimSpace(request.Code))
		}
		code = extracted
	}

	selected, err := s.resolveProviders(providerNames)
	if err != nil {
		return preparedResolve{}, err
	}

	contentIDs := make(map[string]string, len(selected))
	for _, name := range selected {
		contentIDs[name] = s.transcoder.ContentID(code, name)
	}

	return preparedResolve{
		code:       code,
		selected:   selected,
		contentIDs: contentIDs,
		noCache:    request.NoCache,
	}, nil
}

func (s *Service) executePreparedResolve(ctx context.Context, prepared preparedResolve) domain.ResolveResult {
	runCtx := ctx
	if _, hasDeadline := ctx.Deadline(); !hasDeadline && s.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	startedAt := time.Now()
	statuses := make([]domain.ProviderStatus, len(prepared.selected))
	records := make([]domain.PartialRecord, len(prepared.selected))

	var mu sync.Mutex
	sem := semaphore.NewWeighted(maxConcurrentLookups)
	var wg sync.WaitGroup

	for i, name := range prepared.selected {
		wg.Add(1)
		go func(index int, providerKey string) {
			defer wg.Done()

			if err := sem.Acquire(runCtx, 1); err != nil {
				mu.Lock()
				statuses[index] = domain.ProviderStatus{
					Name:  providerKey,
					OK:    false,
					Error: "context cancelled",
				}
				mu.Unlock()
				return
			}
			defer sem.Release(1)

			now := time.Now()
			if blocked, until, lastErr := s.isProviderBlocked(providerKey, now); blocked {
				mu.Lock()
				statuses[index] = domain.ProviderStatus{
					Name:  providerKey,
					OK:    false,
					Error: fmt.Sprintf("provider temporarily unhealthy until %s: %s", until.UTC().Format(time.RFC3339), lastErr),
				}
				mu.Unlock()
				return
			}

			provider := s.providers[providerKey]
			contentID := prepared.contentIDs[providerKey]

			lookupStartedAt := time.Now()
			record, lookupErr := provider.Lookup(runCtx, contentID)
			elapsed := time.Since(lookupStartedAt)

			notFound := errors.Is(lookupErr, domain.ErrNotFound)
			healthErr := lookupErr
			if notFound {
				// A miss means the provider answered; only genuine
				// failures feed the circuit breaker.
				healthErr = nil
			}
			s.recordProviderResult(providerKey, prepared.code, healthErr, elapsed, time.Now())

			status := domain.ProviderStatus{
				Name:  providerKey,
				OK:    lookupErr == nil || notFound,
				Found: lookupErr == nil && len(record) > 0,
			}
			if lookupErr != nil && !notFound {
				status.Error = lookupErr.Error()
				slog.Warn("provider lookup failed",
					slog.String("provider", providerKey),
					slog.String("code", prepared.code),
					slog.String("contentId", contentID),
					slog.Int64("elapsedMs", elapsed.Milliseconds()),
					slog.String("error", lookupErr.Error()),
				)
			}

			mu.Lock()
			statuses[index] = status
			if status.Found {
				records[index] = record
			}
			mu.Unlock()
		}(i, name)
	}
	wg.Wait()

	byProvider := make(map[string]domain.PartialRecord, len(prepared.selected))
	contributing := make([]string, 0, len(prepared.selected))
	for i, name := range prepared.selected {
		if records[i] != nil {
			byProvider[name] = records[i]
			contributing = append(contributing, name)
		}
	}

	merged, provenance := s.merger.merge(byProvider)
	s.filterSkipGenres(merged, provenance)
	missing := s.missingRequiredFields(merged)

	slog.Info("resolve completed",
		slog.String("code", prepared.code),
		slog.Int("providers", len(prepared.selected)),
		slog.Int("contributing", len(contributing)),
		slog.Int("fields", len(merged)),
		slog.Int64("elapsedMs", time.Since(startedAt).Milliseconds()),
	)

	return domain.ResolveResult{
		Code:            prepared.code,
		ContentIDs:      prepared.contentIDs,
		Record:          merged,
		Provenance:      provenance,
		Providers:       statuses,
		Contributing:    contributing,
		Strategy:        s.cfg.Strategy,
		MissingRequired: missing,
		ElapsedMS:       time.Since(startedAt).Milliseconds(),
	}
}

// filterSkipGenres drops configured genre names from the merged genre
// and category lists. Names compare case-insensitively. A field emptied
// by the filter is removed entirely, along with its provenance entry:
// an empty list is not a valid merged value.
func (s *Service) filterSkipGenres(record domain.MergedRecord, provenance domain.Provenance) {
	if len(s.cfg.SkipGenres) == 0 || record == nil {
		return
	}
	skip := make(map[string]struct{}, len(s.cfg.SkipGenres))
	for _, name := range s.cfg.SkipGenres {
		skip[strings.ToLower(strings.TrimSpace(name))] = struct{}{}
	}
	for _, field := range []string{domain.FieldGenres, domain.FieldCategories} {
		value, ok := record[field]
		if !ok {
			continue
		}
		items, ok := toList(value)
		if !ok {
			continue
		}
		kept := make([]any, 0, len(items))
		for _, item := range items {
			if _, drop := skip[strings.ToLower(strings.TrimSpace(dedupeKeyFor(item)))]; drop {
				continue
			}
			kept = append(kept, item)
		}
		if len(kept) == 0 {
			delete(record, field)
			delete(provenance, field)
			continue
		}
		record[field] = rebuildList(kept)
	}
}

func (s *Service) missingRequiredFields(record domain.MergedRecord) []string {
	if len(s.cfg.RequiredFields) == 0 {
		return nil
	}
	var missing []string
	for _, field := range s.cfg.RequiredFields {
		if !isValidValue(record[field]) {
			missing = append(missing, field)
		}
	}
	return missing
}
