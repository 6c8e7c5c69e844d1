package app

import (
	"reflect"
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg := LoadConfig()
	if cfg.HTTPAddr != ":8090" {
		t.Fatalf("HTTPAddr = %q", cfg.HTTPAddr)
	}
	if !reflect.DeepEqual(cfg.Providers, []string{"fanza", "r18dev"}) {
		t.Fatalf("Providers = %v", cfg.Providers)
	}
	if cfg.MergeStrategy != "priority" {
		t.Fatalf("MergeStrategy = %q", cfg.MergeStrategy)
	}
	if !reflect.DeepEqual(cfg.RequiredFields, []string{"id", "title", "year"}) {
		t.Fatalf("RequiredFields = %v", cfg.RequiredFields)
	}
	if !reflect.DeepEqual(cfg.SkipGenres, []string{"4k", "ハイビジョン", "独占配信"}) {
		t.Fatalf("SkipGenres = %v", cfg.SkipGenres)
	}
	if cfg.R18DevLanguage != "en" {
		t.Fatalf("R18DevLanguage = %q", cfg.R18DevLanguage)
	}
	if cfg.RequestDelay != time.Second {
		t.Fatalf("RequestDelay = %v", cfg.RequestDelay)
	}
	if cfg.CacheTTL != 24*time.Hour {
		t.Fatalf("CacheTTL = %v", cfg.CacheTTL)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("RESOLVER_PROVIDERS", "R18dev, Fanza, r18dev")
	t.Setenv("RESOLVER_MERGE_STRATEGY", "MERGE")
	t.Setenv("RESOLVER_PRIORITY_TITLE", "r18dev,fanza")
	t.Setenv("RESOLVER_SKIP_GENRES", "4K, Featured")
	t.Setenv("PROVIDER_REQUEST_DELAY_MS", "250")
	t.Setenv("RESOLVE_CACHE_DISABLED", "true")

	cfg := LoadConfig()
	if !reflect.DeepEqual(cfg.Providers, []string{"r18dev", "fanza"}) {
		t.Fatalf("Providers = %v", cfg.Providers)
	}
	if cfg.MergeStrategy != "merge" {
		t.Fatalf("MergeStrategy = %q", cfg.MergeStrategy)
	}
	if !reflect.DeepEqual(cfg.FieldPriority["title"], []string{"r18dev", "fanza"}) {
		t.Fatalf("FieldPriority = %v", cfg.FieldPriority)
	}
	if !reflect.DeepEqual(cfg.SkipGenres, []string{"4k", "featured"}) {
		t.Fatalf("SkipGenres = %v", cfg.SkipGenres)
	}
	if cfg.RequestDelay != 250*time.Millisecond {
		t.Fatalf("RequestDelay = %v", cfg.RequestDelay)
	}
	if !cfg.CacheDisabled {
		t.Fatalf("CacheDisabled = false")
	}
}
