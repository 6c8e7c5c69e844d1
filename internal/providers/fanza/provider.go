// Package fanza looks up metadata in the DMM/Fanza GraphQL catalog.
package fanza

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"javmeta/resolverservice/internal/codes"
	"javmeta/resolverservice/internal/domain"
	"javmeta/resolverservice/internal/providers/common"
)

const defaultAPIURL = "https://api.video.dmm.co.jp/graphql"

const contentPageQuery = `
query ContentPageData($id: ID!) {
 ppvContent(id: $id) {
  id
  floor
  title
  releaseStatus
  description
  packageImage {
    largeUrl
    mediumUrl
  }
  sampleImages {
    number
    imageUrl
    largeImageUrl
  }
  deliveryStartDate
  makerReleasedAt
  duration
  actresses {
    id
    name
    nameRuby
    imageUrl
  }
  directors {
    id
    name
  }
  series {
    id
    name
  }
  maker {
    id
    name
  }
  label {
    id
    name
  }
  genres {
    id
    name
  }
  contentType
  makerContentId
  }
  reviewSummary(contentId: $id) {
    average
    total
    withCommentTotal
  }
}
`

type Config struct {
	APIURL       string
	Client       *http.Client
	UserAgent    string
	RequestDelay time.Duration
	Retry        common.RetryConfig
}

type Provider struct {
	apiURL    string
	http      *http.Client
	userAgent string
	pacer     *common.Pacer
	retry     common.RetryConfig
}

func New(cfg Config) *Provider {
	apiURL := strings.TrimSpace(cfg.APIURL)
	if apiURL == "" {
		apiURL = defaultAPIURL
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
		apiURL:    apiURL,
		http:      httpClient,
		userAgent: strings.TrimSpace(cfg.UserAgent),
		pacer:     common.NewPacer(cfg.RequestDelay),
		retry:     retry,
	}
}

func (p *Provider) Name() string { return "fanza" }

func (p *Provider) Info() domain.ProviderInfo {
	return domain.ProviderInfo{
		Name:    "fanza",
		Label:   "Fanza",
		Kind:    "graphql",
		Enabled: true,
	}
}

type graphqlRequest struct {
	OperationName string         `json:"operationName"`
	Query         string         `json:"query"`
	Variables     map[string]any `json:"variables"`
}

type graphqlResponse struct {
	Data struct {
		PPVContent *ppvContent `json:"ppvContent"`
		Review     *struct {
			Average          float64 `json:"average"`
			Total            int     `json:"total"`
			WithCommentTotal int     `json:"withCommentTotal"`
		} `json:"reviewSummary"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

type namedEntity struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type ppvContent struct {
	ID            string `json:"id"`
	Floor         string `json:"floor"`
	Title         string `json:"title"`
	ReleaseStatus string `json:"releaseStatus"`
	Description   string `json:"description"`
	PackageImage  *struct {
		LargeURL  string `json:"largeUrl"`
		MediumURL string `json:"mediumUrl"`
	} `json:"packageImage"`
	SampleImages []struct {
		Number        int    `json:"number"`
		ImageURL      string `json:"imageUrl"`
		LargeImageURL string `json:"largeImageUrl"`
	} `json:"sampleImages"`
	DeliveryStartDate string `json:"deliveryStartDate"`
	MakerReleasedAt   string `json:"makerReleasedAt"`
	Duration          int    `json:"duration"`
	Actresses         []struct {
		ID       string `json:"id"`
		Name     string `json:"name"`
		NameRuby string `json:"nameRuby"`
		ImageURL string `json:"imageUrl"`
	} `json:"actresses"`
	Directors      []namedEntity `json:"directors"`
	Series         *namedEntity  `json:"series"`
	Maker          *namedEntity  `json:"maker"`
	Label          *namedEntity  `json:"label"`
	Genres         []namedEntity `json:"genres"`
	ContentType    string        `json:"contentType"`
	MakerContentID string        `json:"makerContentId"`
}

func (p *Provider) Lookup(ctx context.Context, contentID string) (domain.PartialRecord, error) {
	contentID = strings.TrimSpace(contentID)
	if contentID == "" {
		return nil, domain.ErrNotFound
	}
	if err := p.pacer.Wait(ctx); err != nil {
		return nil, err
	}

	payload, err := json.Marshal(graphqlRequest{
		OperationName: "ContentPageData",
		Query:         contentPageQuery,
		Variables:     map[string]any{"id": contentID},
	})
	if err != nil {
		return nil, err
	}

	var decoded graphqlResponse
	lookupErr := common.RetryWithBackoff(ctx, p.retry, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiURL, bytes.NewReader(payload))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		if p.userAgent != "" {
			req.Header.Set("User-Agent", p.userAgent)
		}
		decoded = graphqlResponse{}
		return common.FetchJSON(ctx, p.http, req, &decoded)
	})
	if lookupErr != nil {
		return nil, lookupErr
	}

	if len(decoded.Errors) > 0 {
		return nil, fmt.Errorf("fanza graphql: %s", decoded.Errors[0].Message)
	}
	content := decoded.Data.PPVContent
	if content == nil || content.ID == "" {
		return nil, domain.ErrNotFound
	}

	return p.formatRecord(content, decoded), nil
}

func (p *Provider) formatRecord(content *ppvContent, decoded graphqlResponse) domain.PartialRecord {
	record := domain.PartialRecord{
		domain.FieldSource:    "fanza",
		domain.FieldContentID: strings.ToLower(content.ID),
	}

	id := strings.TrimSpace(content.MakerContentID)
	if id == "" {
		id = codes.ToCanonical(content.ID)
	}
	record[domain.FieldID] = id

	if title := strings.TrimSpace(content.Title); title != "" {
		record[domain.FieldTitle] = title
		record[domain.FieldOriginalTitle] = title
	}
	if description := common.CleanHTMLText(content.Description); description != "" {
		record[domain.FieldDescription] = description
	}

	releaseDate := common.NormalizeDate(content.DeliveryStartDate)
	if releaseDate == "" {
		releaseDate = common.NormalizeDate(content.MakerReleasedAt)
	}
	if releaseDate != "" {
		record[domain.FieldReleaseDate] = releaseDate
	}
	if year := common.ParseYear(releaseDate); year > 0 {
		record[domain.FieldYear] = year
	}

	// Duration arrives in seconds; the record carries minutes.
	if content.Duration > 0 {
		record[domain.FieldRuntime] = content.Duration / 60
	}

	if len(content.Actresses) > 0 {
		actresses := make([]domain.Person, 0, len(content.Actresses))
		for _, a := range content.Actresses {
			name := strings.TrimSpace(a.Name)
			if name == "" {
				continue
			}
			actresses = append(actresses, domain.Person{
				ID:       a.ID,
				Name:     name,
				NameKana: strings.TrimSpace(a.NameRuby),
				ImageURL: strings.TrimSpace(a.ImageURL),
			})
		}
		if len(actresses) > 0 {
			record[domain.FieldActresses] = actresses
		}
	}

	if len(content.Directors) > 0 {
		directors := make([]string, 0, len(content.Directors))
		for _, d := range content.Directors {
			if name := strings.TrimSpace(d.Name); name != "" {
				directors = append(directors, name)
			}
		}
		if len(directors) > 0 {
			record[domain.FieldDirectors] = directors
		}
	}

	if len(content.Genres) > 0 {
		genres := make([]string, 0, len(content.Genres))
		for _, g := range content.Genres {
			if name := strings.TrimSpace(g.Name); name != "" {
				genres = append(genres, name)
			}
		}
		if len(genres) > 0 {
			record[domain.FieldGenres] = genres
		}
	}

	if content.Maker != nil && content.Maker.Name != "" {
		record[domain.FieldStudio] = content.Maker.Name
	}
	if content.Label != nil && content.Label.Name != "" {
		record[domain.FieldLabel] = content.Label.Name
	}
	if content.Series != nil && content.Series.Name != "" {
		record[domain.FieldSeries] = content.Series.Name
	}

	if content.PackageImage != nil {
		if url := strings.TrimSpace(content.PackageImage.LargeURL); url != "" {
			record[domain.FieldCoverURL] = url
		}
		if url := strings.TrimSpace(content.PackageImage.MediumURL); url != "" {
			record[domain.FieldPosterURL] = url
		}
	}

	if len(content.SampleImages) > 0 {
		gallery := make([]string, 0, len(content.SampleImages))
		for _, img := range content.SampleImages {
			url := strings.TrimSpace(img.LargeImageURL)
			if url == "" {
				url = strings.TrimSpace(img.ImageURL)
			}
			if url != "" {
				gallery = append(gallery, url)
			}
		}
		if len(gallery) > 0 {
			record[domain.FieldGallery] = gallery
		}
	}

	if review := decoded.Data.Review; review != nil {
		if review.Average > 0 {
			record[domain.FieldRating] = review.Average
		}
		if review.Total > 0 {
			record[domain.FieldVotes] = review.Total
		}
	}

	return record
}
