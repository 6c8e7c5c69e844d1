package app

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	HTTPAddr       string
	RequestTimeout time.Duration
	LogLevel       string
	LogFormat      string
	UserAgent      string

	Providers      []string
	MergeStrategy  string
	FieldPriority  map[string][]string
	SkipGenres     []string
	RequiredFields []string

	FanzaAPIURL    string
	R18DevBaseURL  string
	R18DevLanguage string
	RequestDelay   time.Duration

	RedisURL      string
	CacheTTL      time.Duration
	CacheDisabled bool
}

// priorityFields are the merge fields with a dedicated priority env
// var (RESOLVER_PRIORITY_<FIELD>); fields without one fall back to the
// enabled provider order.
var priorityFields = []string{
	"id", "title", "original_title", "description", "release_date",
	"year", "runtime", "cast", "directors", "genres", "studio",
	"label", "series", "cover", "poster", "gallery", "rating", "votes",
}

func LoadConfig() Config {
	return Config{
		HTTPAddr:       getEnv("HTTP_ADDR", ":8090"),
		RequestTimeout: time.Duration(getEnvInt("REQUEST_TIMEOUT_SECONDS", 30)) * time.Second,
		LogLevel:       strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat:      strings.ToLower(getEnv("LOG_FORMAT", "text")),
		UserAgent:      getEnv("USER_AGENT", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"),

		Providers:      getEnvList("RESOLVER_PROVIDERS", []string{"fanza", "r18dev"}),
		MergeStrategy:  strings.ToLower(getEnv("RESOLVER_MERGE_STRATEGY", "priority")),
		FieldPriority:  loadFieldPriority(),
		SkipGenres:     getEnvList("RESOLVER_SKIP_GENRES", []string{"4k", "ハイビジョン", "独占配信"}),
		RequiredFields: getEnvList("RESOLVER_REQUIRED_FIELDS", []string{"id", "title", "year"}),

		FanzaAPIURL:    getEnv("FANZA_API_URL", "https://api.video.dmm.co.jp/graphql"),
		R18DevBaseURL:  getEnv("R18DEV_BASE_URL", "https://r18.dev"),
		R18DevLanguage: strings.ToLower(getEnv("R18DEV_LANGUAGE", "en")),
		RequestDelay:   time.Duration(getEnvInt("PROVIDER_REQUEST_DELAY_MS", 1000)) * time.Millisecond,

		RedisURL:      getEnv("REDIS_URL", ""),
		CacheTTL:      time.Duration(getEnvInt("RESOLVE_CACHE_TTL_HOURS", 24)) * time.Hour,
		CacheDisabled: getEnvBool("RESOLVE_CACHE_DISABLED", false),
	}
}

// loadFieldPriority reads RESOLVER_PRIORITY_<FIELD> vars, each a comma
// separated provider list, e.g. RESOLVER_PRIORITY_TITLE=r18dev,fanza.
func loadFieldPriority() map[string][]string {
	priority := make(map[string][]string, len(priorityFields))
	for _, field := range priorityFields {
		key := "RESOLVER_PRIORITY_" + strings.ToUpper(field)
		if list := getEnvList(key, nil); len(list) > 0 {
			priority[field] = list
		}
	}
	return priority
}

func getEnv(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func getEnvInt(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	raw := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if raw == "" {
		return fallback
	}
	switch raw {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvList(key string, fallback []string) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	parts := strings.Split(raw, ",")
	values := make([]string, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))
	for _, part := range parts {
		value := strings.ToLower(strings.TrimSpace(part))
		if value == "" {
			continue
		}
		if _, exists := seen[value]; exists {
			continue
		}
		seen[value] = struct{}{}
		values = append(values, value)
	}
	if len(values) == 0 {
		return fallback
	}
	return values
}
