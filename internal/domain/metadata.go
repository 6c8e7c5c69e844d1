package domain

import "time"

// PartialRecord is the metadata one provider returned for one canonical
// code. Fields are provider-defined; values are strings, numbers,
// []string, []Person, or whatever else the provider's payload decodes
// to. A nil PartialRecord means the provider had no data.
type PartialRecord map[string]any

// MergedRecord is the single resolved record after priority/merge
// resolution across providers.
type MergedRecord map[string]any

// Provenance maps a merged field name to the provider whose value was
// selected. Fields combined in merge mode have no entry.
type Provenance map[string]string

// Person is a structured cast/crew entry. List merging de-duplicates
// people by name, falling back to ID.
type Person struct {
	ID         string `json:"id,omitempty"`
	Name       string `json:"name"`
	NameKanji  string `json:"name_jp,omitempty"`
	NameRomaji string `json:"name_romaji,omitempty"`
	NameKana   string `json:"name_kana,omitempty"`
	ImageURL   string `json:"image_url,omitempty"`
}

type MergeStrategy string

const (
	MergeStrategyPriority MergeStrategy = "priority"
	MergeStrategyMerge    MergeStrategy = "merge"
)

func NormalizeMergeStrategy(raw string) MergeStrategy {
	switch MergeStrategy(raw) {
	case MergeStrategyMerge:
		return MergeStrategyMerge
	default:
		return MergeStrategyPriority
	}
}

// Canonical metadata field names shared by providers and the merge
// resolver. Providers may emit additional fields; these are the ones
// with configured priority lists.
const (
	FieldTitle         = "title"
	FieldTitleEN       = "title_en"
	FieldTitleJP       = "title_jp"
	FieldOriginalTitle = "original_title"
	FieldID            = "id"
	FieldContentID     = "content_id"
	FieldActresses     = "actresses"
	FieldActors        = "actors"
	FieldDirectors     = "directors"
	FieldGenres        = "genres"
	FieldCategories    = "categories"
	FieldMaker         = "maker"
	FieldStudio        = "studio"
	FieldLabel         = "label"
	FieldSeries        = "series"
	FieldReleaseDate   = "release_date"
	FieldYear          = "year"
	FieldRuntime       = "runtime"
	FieldDescription   = "description"
	FieldCoverURL      = "cover_url"
	FieldPosterURL     = "poster_url"
	FieldSampleURL     = "sample_url"
	FieldGallery       = "gallery"
	FieldRating        = "rating"
	FieldVotes         = "votes"
	FieldSource        = "source"
)

type ProviderInfo struct {
	Name    string `json:"name"`
	Label   string `json:"label"`
	Kind    string `json:"kind"`
	Enabled bool   `json:"enabled"`
}

// ProviderStatus records how one provider fared during a fan-out. Found
// distinguishes "lookup worked but the code is unknown there" from a
// genuine failure; both leave the provider out of the merge.
type ProviderStatus struct {
	Name  string `json:"name"`
	OK    bool   `json:"ok"`
	Found bool   `json:"found"`
	Error string `json:"error,omitempty"`
}

type ProviderDiagnostics struct {
	Name                string     `json:"name"`
	Label               string     `json:"label"`
	Kind                string     `json:"kind"`
	Enabled             bool       `json:"enabled"`
	ConsecutiveFailures int        `json:"consecutiveFailures"`
	BlockedUntil        *time.Time `json:"blockedUntil,omitempty"`
	LastError           string     `json:"lastError,omitempty"`
	LastSuccessAt       *time.Time `json:"lastSuccessAt,omitempty"`
	LastFailureAt       *time.Time `json:"lastFailureAt,omitempty"`
	LastLatencyMS       int64      `json:"lastLatencyMs,omitempty"`
	LastTimeout         bool       `json:"lastTimeout,omitempty"`
	LastCode            string     `json:"lastCode,omitempty"`
	TotalRequests       int64      `json:"totalRequests,omitempty"`
	TotalFailures       int64      `json:"totalFailures,omitempty"`
	TimeoutCount        int64      `json:"timeoutCount,omitempty"`
}

// ResolveRequest carries one identifier resolution. Code may be any
// free-form spelling; normalization happens in the resolver. NoCache
// forces a fresh fan-out even when a cached envelope exists.
type ResolveRequest struct {
	Code    string `json:"code"`
	NoCache bool   `json:"noCache,omitempty"`
}

// ResolveResult is the envelope handed to downstream consumers
// (renderer, translator). It is never mutated after construction.
type ResolveResult struct {
	Code            string            `json:"code"`
	ContentIDs      map[string]string `json:"contentIds,omitempty"`
	Record          MergedRecord      `json:"record"`
	Provenance      Provenance        `json:"provenance,omitempty"`
	Providers       []ProviderStatus  `json:"providers"`
	Contributing    []string          `json:"contributing"`
	Strategy        MergeStrategy     `json:"strategy"`
	MissingRequired []string          `json:"missingRequired,omitempty"`
	ElapsedMS       int64             `json:"elapsedMs"`
}

// NoData reports whether every provider came back empty. The envelope
// still carries the per-provider statuses for diagnostics.
func (r ResolveResult) NoData() bool {
	return len(r.Contributing) == 0
}
