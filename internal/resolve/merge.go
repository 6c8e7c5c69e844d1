package resolve

import (
	"fmt"
	"sort"
	"strings"

	"javmeta/resolverservice/internal/domain"
)

// fieldAliases maps provider field names to the canonical key used for
// priority lookup, so one configured list covers every spelling of the
// same concept.
var fieldAliases = map[string]string{
	domain.FieldTitleEN:    domain.FieldTitle,
	domain.FieldTitleJP:    domain.FieldOriginalTitle,
	domain.FieldActresses:  "cast",
	domain.FieldActors:     "cast",
	domain.FieldCategories: domain.FieldGenres,
	domain.FieldMaker:      domain.FieldStudio,
	domain.FieldCoverURL:   "cover",
	domain.FieldPosterURL:  "poster",
}

// mergeableListFields are the fields combined across providers when the
// strategy is "merge". Everything else always resolves by priority.
var mergeableListFields = map[string]struct{}{
	domain.FieldActresses:  {},
	domain.FieldActors:     {},
	domain.FieldDirectors:  {},
	domain.FieldGenres:     {},
	domain.FieldCategories: {},
	domain.FieldGallery:    {},
}

// merger resolves each field of the union of provider records either by
// walking a priority list (first valid value wins) or, for designated
// list fields in merge mode, by concatenating lists in priority order
// with first-seen de-duplication.
type merger struct {
	strategy     domain.MergeStrategy
	priority     map[string][]string
	defaultOrder []string
}

func newMerger(strategy domain.MergeStrategy, priority map[string][]string, defaultOrder []string) *merger {
	normalized := make(map[string][]string, len(priority))
	for field, providers := range priority {
		key := strings.ToLower(strings.TrimSpace(field))
		if key == "" {
			continue
		}
		list := make([]string, 0, len(providers))
		for _, name := range providers {
			name = strings.ToLower(strings.TrimSpace(name))
			if name != "" {
				list = append(list, name)
			}
		}
		if len(list) > 0 {
			normalized[key] = list
		}
	}
	return &merger{
		strategy:     strategy,
		priority:     normalized,
		defaultOrder: append([]string(nil), defaultOrder...),
	}
}

// merge builds one record from the per-provider partials. Provenance is
// recorded only for priority-resolved fields; merge-combined lists have
// no single source.
func (m *merger) merge(byProvider map[string]domain.PartialRecord) (domain.MergedRecord, domain.Provenance) {
	if len(byProvider) == 0 {
		return domain.MergedRecord{}, domain.Provenance{}
	}

	fields := make([]string, 0, 32)
	seen := make(map[string]struct{}, 32)
	for _, record := range byProvider {
		for field := range record {
			if _, exists := seen[field]; exists {
				continue
			}
			seen[field] = struct{}{}
			fields = append(fields, field)
		}
	}
	sort.Strings(fields)

	merged := make(domain.MergedRecord, len(fields))
	provenance := make(domain.Provenance, len(fields))

	for _, field := range fields {
		order := m.priorityFor(field)
		if m.strategy == domain.MergeStrategyMerge {
			if _, mergeable := mergeableListFields[field]; mergeable {
				if combined := mergeListField(field, order, byProvider); combined != nil {
					merged[field] = combined
				}
				continue
			}
		}
		if value, source, ok := firstValid(field, order, byProvider); ok {
			merged[field] = value
			provenance[field] = source
		}
	}

	return merged, provenance
}

// priorityFor resolves the provider order for a field: an exact
// configured list, then the canonical alias's list, then the enabled
// provider order.
func (m *merger) priorityFor(field string) []string {
	key := strings.ToLower(strings.TrimSpace(field))
	if order, ok := m.priority[key]; ok {
		return order
	}
	if alias, ok := fieldAliases[key]; ok {
		if order, ok := m.priority[alias]; ok {
			return order
		}
	}
	return m.defaultOrder
}

func firstValid(field string, order []string, byProvider map[string]domain.PartialRecord) (any, string, bool) {
	for _, provider := range order {
		record, ok := byProvider[provider]
		if !ok {
			continue
		}
		value, ok := record[field]
		if !ok || !isValidValue(value) {
			continue
		}
		return value, provider, true
	}
	return nil, "", false
}

func mergeListField(field string, order []string, byProvider map[string]domain.PartialRecord) any {
	combined := make([]any, 0, 8)
	seen := make(map[string]struct{}, 8)
	for _, provider := range order {
		record, ok := byProvider[provider]
		if !ok {
			continue
		}
		value, ok := record[field]
		if !ok || !isValidValue(value) {
			continue
		}
		items, ok := toList(value)
		if !ok {
			continue
		}
		for _, item := range items {
			key := strings.ToLower(strings.TrimSpace(dedupeKeyFor(item)))
			if key == "" {
				continue
			}
			if _, exists := seen[key]; exists {
				continue
			}
			seen[key] = struct{}{}
			combined = append(combined, item)
		}
	}
	if len(combined) == 0 {
		return nil
	}
	return rebuildList(combined)
}

// dedupeKeyFor identifies one list element: people by name (ID as the
// fallback), strings by themselves, anything else by its printed form.
func dedupeKeyFor(item any) string {
	switch v := item.(type) {
	case domain.Person:
		if v.Name != "" {
			return v.Name
		}
		return v.ID
	case *domain.Person:
		if v == nil {
			return ""
		}
		if v.Name != "" {
			return v.Name
		}
		return v.ID
	case string:
		return v
	case map[string]any:
		if name, ok := v["name"].(string); ok && name != "" {
			return name
		}
		if id, ok := v["id"].(string); ok && id != "" {
			return id
		}
		return fmt.Sprintf("%v", v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// toList widens the supported list shapes to []any. Providers emit
// []string, []Person or decoded []any; anything else is not a list.
func toList(value any) ([]any, bool) {
	switch v := value.(type) {
	case []any:
		return v, true
	case []string:
		items := make([]any, len(v))
		for i, s := range v {
			items[i] = s
		}
		return items, true
	case []domain.Person:
		items := make([]any, len(v))
		for i, p := range v {
			items[i] = p
		}
		return items, true
	default:
		return nil, false
	}
}

// rebuildList narrows a combined []any back to a homogeneous slice when
// every element shares a type, keeping JSON output and consumers typed.
func rebuildList(items []any) any {
	if len(items) == 0 {
		return []any{}
	}
	allStrings := true
	allPeople := true
	for _, item := range items {
		if _, ok := item.(string); !ok {
			allStrings = false
		}
		if _, ok := item.(domain.Person); !ok {
			allPeople = false
		}
	}
	if allStrings {
		out := make([]string, len(items))
		for i, item := range items {
			out[i] = item.(string)
		}
		return out
	}
	if allPeople {
		out := make([]domain.Person, len(items))
		for i, item := range items {
			out[i] = item.(domain.Person)
		}
		return out
	}
	return items
}

// isValidValue implements the field validity rule: nil, blank strings,
// empty lists and maps, and numeric zero are all treated as absent.
// Strings like "0" and boolean false stay valid.
func isValidValue(value any) bool {
	switch v := value.(type) {
	case nil:
		return false
	case string:
		return strings.TrimSpace(v) != ""
	case int:
		return v != 0
	case int32:
		return v != 0
	case int64:
		return v != 0
	case float32:
		return v != 0
	case float64:
		return v != 0
	case []any:
		return len(v) > 0
	case []string:
		return len(v) > 0
	case []domain.Person:
		return len(v) > 0
	case map[string]any:
		return len(v) > 0
	case domain.Person:
		return v.Name != "" || v.ID != ""
	default:
		return true
	}
}
