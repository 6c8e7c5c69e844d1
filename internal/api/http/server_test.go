package apihttp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"javmeta/resolverservice/internal/codes"
	"javmeta/resolverservice/internal/domain"
	"javmeta/resolverservice/internal/resolve"
)

type fakeResolver struct {
	result domain.ResolveResult
	err    error
}

func (f *fakeResolver) Resolve(_ context.Context, _ domain.ResolveRequest, _ []string) (domain.ResolveResult, error) {
	return f.result, f.err
}

func (f *fakeResolver) Providers() []domain.ProviderInfo {
	return []domain.ProviderInfo{{Name: "fanza", Label: "Fanza", Kind: "graphql", Enabled: true}}
}

func (f *fakeResolver) ProviderDiagnostics() []domain.ProviderDiagnostics {
	return []domain.ProviderDiagnostics{{Name: "fanza", Enabled: true}}
}

func (f *fakeResolver) EnabledOrder() []string { return []string{"fanza"} }

func (f *fakeResolver) ContentID(code, provider string) string {
	return codes.FanzaRules().Derive(code)
}

func TestHandleResolveOK(t *testing.T) {
	resolver := &fakeResolver{result: domain.ResolveResult{
		Code:         "SONE-638",
		Record:       domain.MergedRecord{"title": "T"},
		Contributing: []string{"fanza"},
		Strategy:     domain.MergeStrategyPriority,
	}}
	server := NewServer(resolver)

	req := httptest.NewRequest(http.MethodGet, "/resolve?code=sone-638", nil)
	recorder := httptest.NewRecorder()
	server.Handler().ServeHTTP(recorder, req)

	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", recorder.Code, recorder.Body.String())
	}
	var payload domain.ResolveResult
	if err := json.Unmarshal(recorder.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.Code != "SONE-638" || payload.Record["title"] != "T" {
		t.Fatalf("payload = %+v", payload)
	}
}

func TestHandleResolveMissingCode(t *testing.T) {
	server := NewServer(&fakeResolver{})
	req := httptest.NewRequest(http.MethodGet, "/resolve", nil)
	recorder := httptest.NewRecorder()
	server.Handler().ServeHTTP(recorder, req)
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", recorder.Code)
	}
}

func TestHandleResolveErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{resolve.ErrInvalidCode, http.StatusBadRequest},
		{resolve.ErrUnknownProvider, http.StatusBadRequest},
		{resolve.ErrNoProviders, http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		server := NewServer(&fakeResolver{err: tc.err})
		req := httptest.NewRequest(http.MethodGet, "/resolve?code=SONE-638", nil)
		recorder := httptest.NewRecorder()
		server.Handler().ServeHTTP(recorder, req)
		if recorder.Code != tc.want {
			t.Fatalf("error %v: status = %d, want %d", tc.err, recorder.Code, tc.want)
		}
	}
}

func TestHandleResolveNoData(t *testing.T) {
	resolver := &fakeResolver{result: domain.ResolveResult{
		Code:      "SONE-638",
		Record:    domain.MergedRecord{},
		Providers: []domain.ProviderStatus{{Name: "fanza", OK: true}},
	}}
	server := NewServer(resolver)

	req := httptest.NewRequest(http.MethodGet, "/resolve?code=SONE-638", nil)
	recorder := httptest.NewRecorder()
	server.Handler().ServeHTTP(recorder, req)
	if recorder.Code != http.StatusNotFound {
		t.Fatalf("status = %d, body = %s", recorder.Code, recorder.Body.String())
	}
}

func TestHandleTranscode(t *testing.T) {
	server := NewServer(&fakeResolver{})
	req := httptest.NewRequest(http.MethodGet, "/resolve/transcode?code=milk-225", nil)
	recorder := httptest.NewRecorder()
	server.Handler().ServeHTTP(recorder, req)

	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", recorder.Code, recorder.Body.String())
	}
	var payload struct {
		Code       string            `json:"code"`
		ContentIDs map[string]string `json:"contentIds"`
	}
	if err := json.Unmarshal(recorder.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.Code != "MILK-225" {
		t.Fatalf("code = %q", payload.Code)
	}
	if payload.ContentIDs["fanza"] != "h_1240milk00225" {
		t.Fatalf("contentIds = %v", payload.ContentIDs)
	}
}

func TestHandleTranscodeFilenameInput(t *testing.T) {
	server := NewServer(&fakeResolver{})
	req := httptest.NewRequest(http.MethodGet, "/resolve/transcode?code=%5BHD%5D+milk-225+uncensored.mp4", nil)
	recorder := httptest.NewRecorder()
	server.Handler().ServeHTTP(recorder, req)

	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", recorder.Code, recorder.Body.String())
	}
	var payload struct {
		Code string `json:"code"`
	}
	if err := json.Unmarshal(recorder.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.Code != "MILK-225" {
		t.Fatalf("code = %q", payload.Code)
	}
}

func TestHandleProviders(t *testing.T) {
	server := NewServer(&fakeResolver{})
	req := httptest.NewRequest(http.MethodGet, "/resolve/providers", nil)
	recorder := httptest.NewRecorder()
	server.Handler().ServeHTTP(recorder, req)
	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d", recorder.Code)
	}
	var payload struct {
		Items []domain.ProviderInfo `json:"items"`
		Order []string              `json:"order"`
	}
	if err := json.Unmarshal(recorder.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(payload.Items) != 1 || payload.Items[0].Name != "fanza" {
		t.Fatalf("items = %v", payload.Items)
	}
	if len(payload.Order) != 1 || payload.Order[0] != "fanza" {
		t.Fatalf("order = %v", payload.Order)
	}
}

func TestHandleHealth(t *testing.T) {
	server := NewServer(&fakeResolver{})
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	recorder := httptest.NewRecorder()
	server.Handler().ServeHTTP(recorder, req)
	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d", recorder.Code)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	server := NewServer(&fakeResolver{})
	req := httptest.NewRequest(http.MethodPost, "/resolve?code=SONE-638", nil)
	recorder := httptest.NewRecorder()
	server.Handler().ServeHTTP(recorder, req)
	if recorder.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d", recorder.Code)
	}
}
