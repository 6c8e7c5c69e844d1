package apihttp

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"javmeta/resolverservice/internal/codes"
	"javmeta/resolverservice/internal/domain"
	"javmeta/resolverservice/internal/metrics"
	"javmeta/resolverservice/internal/resolve"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type ResolveService interface {
	Resolve(ctx context.Context, request domain.ResolveRequest, providers []string) (domain.ResolveResult, error)
	Providers() []domain.ProviderInfo
	ProviderDiagnostics() []domain.ProviderDiagnostics
	EnabledOrder() []string
	ContentID(code, provider string) string
}

type Server struct {
	resolver ResolveService
	logger   *slog.Logger
}

const maxCodeLength = 100

type ServerOption func(*Server)

func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

func NewServer(resolver ResolveService, options ...ServerOption) *Server {
	server := &Server{
		resolver: resolver,
		logger:   slog.Default(),
	}
	for _, option := range options {
		if option != nil {
			option(server)
		}
	}
	if server.logger == nil {
		server.logger = slog.Default()
	}
	return server
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/resolve/providers", s.handleProviders)
	mux.HandleFunc("/resolve/providers/health", s.handleProvidersHealth)
	mux.HandleFunc("/resolve/transcode", s.handleTranscode)
	mux.HandleFunc("/resolve", s.handleResolve)
	traced := otelhttp.NewHandler(loggingMiddleware(s.logger, mux), "metadata-resolver",
		otelhttp.WithFilter(func(r *http.Request) bool {
			p := r.URL.Path
			return p != "/metrics" && p != "/health"
		}),
	)
	return recoveryMiddleware(s.logger, rateLimitMiddleware(50, 100, metricsMiddleware(traced)))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC(),
	})
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/resolve" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.resolver == nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "resolver service is not configured")
		return
	}

	code := strings.TrimSpace(r.URL.Query().Get("code"))
	if code == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "code is required")
		return
	}
	if len(code) > maxCodeLength {
		writeError(w, http.StatusBadRequest, "invalid_request", "code too long (max 100 characters)")
		return
	}

	providers := parseCSV(r.URL.Query().Get("providers"))
	noCache := parseOptionalBool(r.URL.Query().Get("nocache")) || parseOptionalBool(r.URL.Query().Get("noCache"))

	result, err := s.resolver.Resolve(r.Context(), domain.ResolveRequest{
		Code:    code,
		NoCache: noCache,
	}, providers)
	if err != nil {
		s.logger.Warn("resolve request failed",
			slog.String("code", truncate(code, 40)),
			slog.Any("providers", providers),
			slog.String("error", err.Error()),
		)
		switch {
		case errors.Is(err, resolve.ErrInvalidCode):
			metrics.ResolvesTotal.WithLabelValues("invalid").Inc()
			writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		case errors.Is(err, resolve.ErrUnknownProvider):
			metrics.ResolvesTotal.WithLabelValues("invalid").Inc()
			writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		case errors.Is(err, resolve.ErrNoProviders):
			writeError(w, http.StatusServiceUnavailable, "service_unavailable", err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "internal_error", "resolve failed")
		}
		return
	}

	failedProviders := make([]string, 0, len(result.Providers))
	for _, providerStatus := range result.Providers {
		if !providerStatus.OK {
			failedProviders = append(failedProviders, providerStatus.Name)
		}
	}
	s.logger.Info("resolve completed",
		slog.String("code", result.Code),
		slog.Any("providers", providers),
		slog.Int("contributing", len(result.Contributing)),
		slog.Int64("elapsedMs", result.ElapsedMS),
		slog.Int("failedProviders", len(failedProviders)),
	)
	if len(failedProviders) > 0 {
		s.logger.Warn("resolve providers partially failed",
			slog.String("code", result.Code),
			slog.Any("failedProviders", failedProviders),
		)
	}

	if result.NoData() {
		metrics.ResolvesTotal.WithLabelValues("no_data").Inc()
		writeJSON(w, http.StatusNotFound, map[string]any{
			"error": map[string]string{
				"code":    "no_data",
				"message": "no provider returned data for " + result.Code,
			},
			"result": result,
		})
		return
	}

	metrics.ResolvesTotal.WithLabelValues("ok").Inc()
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleProviders(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/resolve/providers" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.resolver == nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "resolver service is not configured")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": s.resolver.Providers(),
		"order": s.resolver.EnabledOrder(),
	})
}

func (s *Server) handleProvidersHealth(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/resolve/providers/health" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.resolver == nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "resolver service is not configured")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"checkedAt": time.Now().UTC(),
		"items":     s.resolver.ProviderDiagnostics(),
	})
}

// handleTranscode exposes the code-to-content-ID derivation for
// debugging provider lookups without performing one.
func (s *Server) handleTranscode(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/resolve/transcode" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.resolver == nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "resolver service is not configured")
		return
	}

	rawCode := strings.TrimSpace(r.URL.Query().Get("code"))
	if rawCode == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "code is required")
		return
	}
	code := codes.Normalize(rawCode)
	if !codes.Validate(code) {
		extracted, ok := codes.Extract(rawCode)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_request", "code does not look like a release code")
			return
		}
		code = extracted
	}

	selected := parseCSV(r.URL.Query().Get("providers"))
	if len(selected) == 0 {
		selected = s.resolver.EnabledOrder()
	}
	contentIDs := make(map[string]string, len(selected))
	for _, provider := range selected {
		contentIDs[provider] = s.resolver.ContentID(code, provider)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"code":       code,
		"contentIds": contentIDs,
	})
}

func parseCSV(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
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
		out = append(out, value)
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}

func parseOptionalBool(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}
