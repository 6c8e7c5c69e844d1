// Package r18dev looks up metadata in the r18.dev combined JSON API.
// The API keys entries by the same content IDs as the DMM catalog and
// carries both English and Japanese field variants; the configured
// language decides which one becomes the primary value.
package r18dev

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"javmeta/resolverservice/internal/domain"
	"javmeta/resolverservice/internal/providers/common"
)

const defaultBaseURL = "https://r18.dev"

type Config struct {
	BaseURL      string
	Language     string // "en" or "jp"
	Client       *http.Client
	UserAgent    string
	RequestDelay time.Duration
	Retry        common.RetryConfig
}

type Provider struct {
	baseURL    string
	useEnglish bool
	http       *http.Client
	userAgent  string
	pacer      *common.Pacer
	retry      common.RetryConfig
}

func New(cfg Config) *Provider {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	httpClient := cfg.Client
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	retry := cfg.Retry
	if retry.MaxAttempts <= 0 {
		retry = common.DefaultRetryConfig()
	}
	return &Provider{
		baseURL:    baseURL,
		useEnglish: !strings.EqualFold(strings.TrimSpace(cfg.Language), "jp"),
		http:       httpClient,
		userAgent:  strings.TrimSpace(cfg.UserAgent),
		pacer:      common.NewPacer(cfg.RequestDelay),
		retry:      retry,
	}
}

func (p *Provider) Name() string { return "r18dev" }

func (p *Provider) Info() domain.ProviderInfo {
	return domain.ProviderInfo{
		Name:    "r18dev",
		Label:   "R18.dev",
		Kind:    "json",
		Enabled: true,
	}
}

type person struct {
	ID         any    `json:"id"`
	NameRomaji string `json:"name_romaji"`
	NameKanji  string `json:"name_kanji"`
	NameKana   string `json:"name_kana"`
	ImageURL   string `json:"image_url"`
}

type category struct {
	ID     any    `json:"id"`
	NameEN string `json:"name_en"`
	NameJA string `json:"name_ja"`
}

type combinedDetail struct {
	ContentID    string     `json:"content_id"`
	DVDID        string     `json:"dvd_id"`
	TitleEN      string     `json:"title_en"`
	TitleJA      string     `json:"title_ja"`
	ReleaseDate  string     `json:"release_date"`
	RuntimeMins  int        `json:"runtime_mins"`
	CommentEN    string     `json:"comment_en"`
	JacketFull   string     `json:"jacket_full_url"`
	JacketThumb  string     `json:"jacket_thumb_url"`
	SampleURL    string     `json:"sample_url"`
	Actresses    []person   `json:"actresses"`
	Actors       []person   `json:"actors"`
	Directors    []person   `json:"directors"`
	Categories   []category `json:"categories"`
	MakerNameEN  string     `json:"maker_name_en"`
	MakerNameJA  string     `json:"maker_name_ja"`
	LabelNameEN  string     `json:"label_name_en"`
	LabelNameJA  string     `json:"label_name_ja"`
	SeriesNameEN string     `json:"series_name_en"`
	SeriesNameJA string     `json:"series_name_ja"`
	Gallery      []struct {
		ImageFull  string `json:"image_full"`
		ImageThumb string `json:"image_thumb"`
	} `json:"gallery"`
}

func (p *Provider) Lookup(ctx context.Context, contentID string) (domain.PartialRecord, error) {
	contentID = strings.TrimSpace(contentID)
	if contentID == "" {
		return nil, domain.ErrNotFound
	}
	if err := p.pacer.Wait(ctx); err != nil {
		return nil, err
	}

	url := p.baseURL + "/videos/vod/movies/detail/-/combined=" + contentID + "/json"

	var detail combinedDetail
	lookupErr := common.RetryWithBackoff(ctx, p.retry, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		if p.userAgent != "" {
			req.Header.Set("User-Agent", p.userAgent)
		}
		detail = combinedDetail{}
		return common.FetchJSON(ctx, p.http, req, &detail)
	})
	if lookupErr != nil {
		return nil, lookupErr
	}
	if detail.ContentID == "" {
		return nil, domain.ErrNotFound
	}

	return p.formatRecord(detail), nil
}

// pick returns the preferred language variant, falling back to the
// other when the preferred one is empty.
func (p *Provider) pick(en, ja string) string {
	en = strings.TrimSpace(en)
	ja = strings.TrimSpace(ja)
	if p.useEnglish {
		if en != "" {
			return en
		}
		return ja
	}
	if ja != "" {
		return ja
	}
	return en
}

func (p *Provider) formatRecord(detail combinedDetail) domain.PartialRecord {
	record := domain.PartialRecord{
		domain.FieldSource:    "r18dev",
		domain.FieldContentID: detail.ContentID,
	}

	if id := strings.TrimSpace(detail.DVDID); id != "" {
		record[domain.FieldID] = id
	}

	if title := p.pick(detail.TitleEN, detail.TitleJA); title != "" {
		record[domain.FieldTitle] = title
	}
	if en := strings.TrimSpace(detail.TitleEN); en != "" {
		record[domain.FieldTitleEN] = en
	}
	if ja := strings.TrimSpace(detail.TitleJA); ja != "" {
		record[domain.FieldTitleJP] = ja
		record[domain.FieldOriginalTitle] = ja
	}

	if date := common.NormalizeDate(detail.ReleaseDate); date != "" {
		record[domain.FieldReleaseDate] = date
		if year := common.ParseYear(date); year > 0 {
			record[domain.FieldYear] = year
		}
	}
	if detail.RuntimeMins > 0 {
		record[domain.FieldRuntime] = detail.RuntimeMins
	}
	if description := common.CleanHTMLText(detail.CommentEN); description != "" {
		record[domain.FieldDescription] = description
	}

	if url := strings.TrimSpace(detail.JacketFull); url != "" {
		record[domain.FieldCoverURL] = url
	}
	if url := strings.TrimSpace(detail.JacketThumb); url != "" {
		record[domain.FieldPosterURL] = url
	}
	if url := strings.TrimSpace(detail.SampleURL); url != "" {
		record[domain.FieldSampleURL] = url
	}

	if people := p.formatPeople(detail.Actresses); len(people) > 0 {
		record[domain.FieldActresses] = people
	}
	if people := p.formatPeople(detail.Actors); len(people) > 0 {
		record[domain.FieldActors] = people
	}

	if len(detail.Directors) > 0 {
		directors := make([]string, 0, len(detail.Directors))
		for _, d := range detail.Directors {
			name := p.pick(d.NameRomaji, d.NameKanji)
			if name != "" {
				directors = append(directors, name)
			}
		}
		if len(directors) > 0 {
			record[domain.FieldDirectors] = directors
		}
	}

	if len(detail.Categories) > 0 {
		genres := make([]string, 0, len(detail.Categories))
		for _, c := range detail.Categories {
			if name := p.pick(c.NameEN, c.NameJA); name != "" {
				genres = append(genres, name)
			}
		}
		if len(genres) > 0 {
			record[domain.FieldGenres] = genres
		}
	}

	if maker := p.pick(detail.MakerNameEN, detail.MakerNameJA); maker != "" {
		record[domain.FieldStudio] = maker
	}
	if label := p.pick(detail.LabelNameEN, detail.LabelNameJA); label != "" {
		record[domain.FieldLabel] = label
	}
	if series := p.pick(detail.SeriesNameEN, detail.SeriesNameJA); series != "" {
		record[domain.FieldSeries] = series
	}

	if len(detail.Gallery) > 0 {
		gallery := make([]string, 0, len(detail.Gallery))
		for _, img := range detail.Gallery {
			url := strings.TrimSpace(img.ImageFull)
			if url == "" {
				url = strings.TrimSpace(img.ImageThumb)
			}
			if url != "" {
				gallery = append(gallery, url)
			}
		}
		if len(gallery) > 0 {
			record[domain.FieldGallery] = gallery
		}
	}

	return record
}

func (p *Provider) formatPeople(people []person) []domain.Person {
	formatted := make([]domain.Person, 0, len(people))
	for _, entry := range people {
		name := p.pick(entry.NameRomaji, entry.NameKanji)
		if name == "" {
			continue
		}
		formatted = append(formatted, domain.Person{
			ID:         idString(entry.ID),
			Name:       name,
			NameKanji:  strings.TrimSpace(entry.NameKanji),
			NameRomaji: strings.TrimSpace(entry.NameRomaji),
			NameKana:   strings.TrimSpace(entry.NameKana),
			ImageURL:   strings.TrimSpace(entry.ImageURL),
		})
	}
	return formatted
}

// idString tolerates numeric and string IDs in upstream payloads.
func idString(id any) string {
	switch v := id.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatInt(int64(v), 10)
	case nil:
		return ""
	default:
		return ""
	}
}
