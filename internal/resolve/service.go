package resolve

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"javmeta/resolverservice/internal/codes"
	"javmeta/resolverservice/internal/domain"
)

var (
	ErrInvalidCode     = errors.New("identifier does not look like a release code")
	ErrNoProviders     = errors.New("no metadata providers configured")
	ErrUnknownProvider = errors.New("unknown provider")
)

// Provider is one metadata source. Lookup receives the provider-specific
// content ID already derived by the coordinator and returns the fields
// it knows about, domain.ErrNotFound when the catalog has no entry, or
// any other error for a genuine failure. Errors never abort the
// fan-out; the coordinator downgrades them to a per-provider status.
type Provider interface {
	Name() string
	Info() domain.ProviderInfo
	Lookup(ctx context.Context, contentID string) (domain.PartialRecord, error)
}

// Config is the immutable resolution policy: enabled provider order,
// the global merge strategy, per-field priority lists keyed by the
// canonical priority field names, genres to drop from merged lists, and
// fields a complete record is expected to carry.
type Config struct {
	Strategy       domain.MergeStrategy
	FieldPriority  map[string][]string
	SkipGenres     []string
	RequiredFields []string
}

type Service struct {
	providers     map[string]Provider
	order         []string
	transcoder    *codes.Transcoder
	merger        *merger
	cfg           Config
	timeout       time.Duration
	cacheDisabled bool
	cacheCfg      cacheConfig
	cacheMu       sync.Mutex
	cache         map[string]*cachedResult
	redisCache    *RedisCacheBackend
	healthMu      sync.Mutex
	health        map[string]*providerHealth
}

type ServiceOption func(*Service)

func WithRedisCache(backend *RedisCacheBackend) ServiceOption {
	return func(s *Service) {
		s.redisCache = backend
	}
}

func WithCacheTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) {
		if ttl > 0 {
			s.cacheCfg.cacheTTL = ttl
			s.cacheCfg.staleTTL = ttl * 3
		}
	}
}

func WithCacheDisabled(disabled bool) ServiceOption {
	return func(s *Service) {
		s.cacheDisabled = disabled
	}
}

// NewService builds the resolver over the given providers. Registration
// order is semantic: it is the default priority order for fields
// without a configured list, so the slice order is preserved rather
// than sorted.
func NewService(providers []Provider, transcoder *codes.Transcoder, cfg Config, timeout time.Duration, opts ...ServiceOption) *Service {
	registry := make(map[string]Provider, len(providers))
	order := make([]string, 0, len(providers))
	for _, provider := range providers {
		if provider == nil {
			continue
		}
		name := strings.ToLower(strings.TrimSpace(provider.Name()))
		if name == "" {
			continue
		}
		if _, exists := registry[name]; exists {
			continue
		}
		registry[name] = provider
		order = append(order, name)
	}

	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if transcoder == nil {
		transcoder = codes.NewTranscoder(codes.FanzaRules())
	}
	cfg.Strategy = domain.NormalizeMergeStrategy(string(cfg.Strategy))

	svc := &Service{
		providers:  registry,
		order:      order,
		transcoder: transcoder,
		merger:     newMerger(cfg.Strategy, cfg.FieldPriority, order),
		cfg:        cfg,
		timeout:    timeout,
		cacheCfg:   defaultCacheConfig(),
		cache:      make(map[string]*cachedResult),
		health:     make(map[string]*providerHealth),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Providers lists provider infos sorted by name for display; the
// semantic order lives in EnabledOrder.
func (s *Service) Providers() []domain.ProviderInfo {
	if len(s.providers) == 0 {
		return nil
	}
	items := make([]domain.ProviderInfo, 0, len(s.providers))
	for _, name := range s.order {
		info := s.providers[name].Info()
		if info.Name == "" {
			info.Name = name
		}
		if info.Label == "" {
			info.Label = info.Name
		}
		items = append(items, info)
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].Name < items[j].Name
	})
	return items
}

// EnabledOrder returns the enabled provider names in registration
// order.
func (s *Service) EnabledOrder() []string {
	return append([]string(nil), s.order...)
}

// ContentID exposes the transcoder for diagnostics endpoints.
func (s *Service) ContentID(code, provider string) string {
	return s.transcoder.ContentID(code, provider)
}

func (s *Service) resolveProviders(providerNames []string) ([]string, error) {
	if len(s.order) == 0 {
		return nil, ErrNoProviders
	}
	if len(providerNames) == 0 {
		return append([]string(nil), s.order...), nil
	}

	selected := make([]string, 0, len(providerNames))
	seen := make(map[string]struct{}, len(providerNames))
	for _, rawName := range providerNames {
		name := strings.ToLower(strings.TrimSpace(rawName))
		if name == "" {
			continue
		}
		if _, ok := s.providers[name]; !ok {
			return nil, errUnknownProvider(name)
		}
		if _, exists := seen[name]; exists {
			continue
		}
		seen[name] = struct{}{}
		selected = append(selected, name)
	}
	if len(selected) == 0 {
		return nil, ErrNoProviders
	}
	return selected, nil
}

func errUnknownProvider(name string) error {
	return unknownProviderError(name)
}

type unknownProviderError string

func (e unknownProviderError) Error() string {
	return "unknown provider: " + string(e)
}

func (e unknownProviderError) Is(target error) bool {
	return target == ErrUnknownProvider
}
