package r18dev

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"javmeta/resolverservice/internal/domain"
)

const sampleDetail = `{
  "content_id": "sone00638",
  "dvd_id": "SONE-638",
  "title_en": "English Title",
  "title_ja": "日本語タイトル",
  "release_date": "2024-06-14",
  "runtime_mins": 150,
  "comment_en": "An <b>english</b> comment",
  "jacket_full_url": "https://pics.example/jacket_full.jpg",
  "jacket_thumb_url": "https://pics.example/jacket_thumb.jpg",
  "sample_url": "https://pics.example/sample.mp4",
  "actresses": [
    {"id": 1008887, "name_romaji": "Actress Romaji", "name_kanji": "女優", "name_kana": "かな", "image_url": "https://pics.example/a.jpg"}
  ],
  "actors": [],
  "directors": [
    {"id": 101, "name_romaji": "Director Romaji", "name_kanji": "監督"}
  ],
  "categories": [
    {"id": 501, "name_en": "Drama", "name_ja": "ドラマ"},
    {"id": 502, "name_en": "", "name_ja": "コメディ"}
  ],
  "maker_name_en": "Maker EN",
  "maker_name_ja": "メーカー",
  "label_name_en": "Label EN",
  "label_name_ja": "レーベル",
  "series_name_en": "Series EN",
  "series_name_ja": "シリーズ",
  "gallery": [
    {"image_full": "https://pics.example/g1.jpg", "image_thumb": "https://pics.example/g1t.jpg"},
    {"image_full": "", "image_thumb": "https://pics.example/g2t.jpg"}
  ]
}`

func newTestServer(t *testing.T, wantPath string, payload string, status int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if wantPath != "" && r.URL.Path != wantPath {
			t.Errorf("path = %q, want %q", r.URL.Path, wantPath)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(payload))
	}))
}

func TestLookupEnglishPreference(t *testing.T) {
	server := newTestServer(t, "/videos/vod/movies/detail/-/combined=sone00638/json", sampleDetail, http.StatusOK)
	defer server.Close()

	provider := New(Config{BaseURL: server.URL, Language: "en"})
	record, err := provider.Lookup(context.Background(), "sone00638")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}

	if record[domain.FieldID] != "SONE-638" {
		t.Fatalf("id = %v", record[domain.FieldID])
	}
	if record[domain.FieldTitle] != "English Title" {
		t.Fatalf("title = %v", record[domain.FieldTitle])
	}
	if record[domain.FieldTitleJP] != "日本語タイトル" {
		t.Fatalf("title_jp = %v", record[domain.FieldTitleJP])
	}
	if record[domain.FieldOriginalTitle] != "日本語タイトル" {
		t.Fatalf("original_title = %v", record[domain.FieldOriginalTitle])
	}
	if record[domain.FieldRuntime] != 150 {
		t.Fatalf("runtime = %v", record[domain.FieldRuntime])
	}
	if record[domain.FieldDescription] != "An english comment" {
		t.Fatalf("description = %v", record[domain.FieldDescription])
	}
	if record[domain.FieldStudio] != "Maker EN" {
		t.Fatalf("studio = %v", record[domain.FieldStudio])
	}

	actresses, ok := record[domain.FieldActresses].([]domain.Person)
	if !ok || len(actresses) != 1 {
		t.Fatalf("actresses = %v", record[domain.FieldActresses])
	}
	if actresses[0].Name != "Actress Romaji" || actresses[0].ID != "1008887" {
		t.Fatalf("actress = %+v", actresses[0])
	}

	directors, ok := record[domain.FieldDirectors].([]string)
	if !ok || len(directors) != 1 || directors[0] != "Director Romaji" {
		t.Fatalf("directors = %v", record[domain.FieldDirectors])
	}

	genres, ok := record[domain.FieldGenres].([]string)
	if !ok || len(genres) != 2 || genres[0] != "Drama" || genres[1] != "コメディ" {
		t.Fatalf("genres = %v", record[domain.FieldGenres])
	}

	gallery, ok := record[domain.FieldGallery].([]string)
	if !ok || len(gallery) != 2 || gallery[1] != "https://pics.example/g2t.jpg" {
		t.Fatalf("gallery = %v", record[domain.FieldGallery])
	}
}

func TestLookupJapanesePreference(t *testing.T) {
	server := newTestServer(t, "", sampleDetail, http.StatusOK)
	defer server.Close()

	provider := New(Config{BaseURL: server.URL, Language: "jp"})
	record, err := provider.Lookup(context.Background(), "sone00638")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if record[domain.FieldTitle] != "日本語タイトル" {
		t.Fatalf("title = %v", record[domain.FieldTitle])
	}
	if record[domain.FieldStudio] != "メーカー" {
		t.Fatalf("studio = %v", record[domain.FieldStudio])
	}
	actresses := record[domain.FieldActresses].([]domain.Person)
	if actresses[0].Name != "女優" {
		t.Fatalf("actress = %+v", actresses[0])
	}
}

func TestLookupNotFound(t *testing.T) {
	server := newTestServer(t, "", `{}`, http.StatusNotFound)
	defer server.Close()

	provider := New(Config{BaseURL: server.URL})
	_, err := provider.Lookup(context.Background(), "nope99999")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
}

func TestLookupEmptyPayloadIsMiss(t *testing.T) {
	server := newTestServer(t, "", `{}`, http.StatusOK)
	defer server.Close()

	provider := New(Config{BaseURL: server.URL})
	_, err := provider.Lookup(context.Background(), "sone00638")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
}
