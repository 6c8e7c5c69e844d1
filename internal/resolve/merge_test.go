package resolve

import (
	"reflect"
	"testing"

	"javmeta/resolverservice/internal/domain"
)

func TestMergePriorityFirstValidWins(t *testing.T) {
	m := newMerger(domain.MergeStrategyPriority, map[string][]string{
		"title": {"r18dev", "fanza"},
	}, []string{"fanza", "r18dev"})

	merged, provenance := m.merge(map[string]domain.PartialRecord{
		"fanza":  {"title": "Fanza Title", "runtime": 120},
		"r18dev": {"title": "R18 Title"},
	})

	if merged["title"] != "R18 Title" {
		t.Fatalf("expected r18dev title to win, got %v", merged["title"])
	}
	if provenance["title"] != "r18dev" {
		t.Fatalf("provenance = %q", provenance["title"])
	}
	if merged["runtime"] != 120 {
		t.Fatalf("runtime should come from the only provider that has it, got %v", merged["runtime"])
	}
	if provenance["runtime"] != "fanza" {
		t.Fatalf("runtime provenance = %q", provenance["runtime"])
	}
}

func TestMergeSkipsInvalidValues(t *testing.T) {
	m := newMerger(domain.MergeStrategyPriority, map[string][]string{
		"title": {"r18dev", "fanza"},
	}, []string{"r18dev", "fanza"})

	merged, provenance := m.merge(map[string]domain.PartialRecord{
		"r18dev": {"title": "   ", "year": 0, "genres": []string{}},
		"fanza":  {"title": "Fallback Title", "year": 2024, "genres": []string{"Drama"}},
	})

	if merged["title"] != "Fallback Title" {
		t.Fatalf("blank title should be skipped, got %v", merged["title"])
	}
	if merged["year"] != 2024 {
		t.Fatalf("zero year should be skipped, got %v", merged["year"])
	}
	if provenance["genres"] != "fanza" {
		t.Fatalf("empty list should be skipped, got provenance %q", provenance["genres"])
	}
}

func TestMergeDeterministicAcrossRuns(t *testing.T) {
	m := newMerger(domain.MergeStrategyPriority, nil, []string{"fanza", "r18dev"})
	records := map[string]domain.PartialRecord{
		"fanza":  {"title": "A", "year": 2020},
		"r18dev": {"title": "B", "year": 2021, "runtime": 90},
	}

	first, _ := m.merge(records)
	for i := 0; i < 20; i++ {
		again, _ := m.merge(records)
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("merge not deterministic: %v vs %v", first, again)
		}
	}
	if first["title"] != "A" {
		t.Fatalf("default order should prefer first registered provider, got %v", first["title"])
	}
}

func TestMergeModeCombinesListFields(t *testing.T) {
	m := newMerger(domain.MergeStrategyMerge, map[string][]string{
		"genres": {"fanza", "r18dev"},
	}, []string{"fanza", "r18dev"})

	merged, provenance := m.merge(map[string]domain.PartialRecord{
		"fanza":  {"genres": []string{"Drama", "Comedy"}, "title": "T1"},
		"r18dev": {"genres": []string{"Comedy", "Action"}, "title": "T2"},
	})

	want := []string{"Drama", "Comedy", "Action"}
	if got, ok := merged["genres"].([]string); !ok || !reflect.DeepEqual(got, want) {
		t.Fatalf("merged genres = %v, want %v", merged["genres"], want)
	}
	if _, ok := provenance["genres"]; ok {
		t.Fatalf("merge-combined fields must not carry provenance")
	}
	// Scalar fields still resolve by priority even in merge mode.
	if merged["title"] != "T1" || provenance["title"] != "fanza" {
		t.Fatalf("title = %v from %q", merged["title"], provenance["title"])
	}
}

func TestMergeModeDeduplicatesPeopleByName(t *testing.T) {
	m := newMerger(domain.MergeStrategyMerge, nil, []string{"r18dev", "fanza"})

	merged, _ := m.merge(map[string]domain.PartialRecord{
		"r18dev": {"actresses": []domain.Person{
			{ID: "1", Name: "Yua Mikami", NameRomaji: "Mikami Yua"},
		}},
		"fanza": {"actresses": []domain.Person{
			{ID: "900", Name: "Yua Mikami"},
			{ID: "901", Name: "Another Actress"},
		}},
	})

	people, ok := merged["actresses"].([]domain.Person)
	if !ok {
		t.Fatalf("actresses type = %T", merged["actresses"])
	}
	if len(people) != 2 {
		t.Fatalf("expected 2 unique people, got %d: %v", len(people), people)
	}
	if people[0].ID != "1" {
		t.Fatalf("first-seen entry should survive, got %+v", people[0])
	}
	if people[1].Name != "Another Actress" {
		t.Fatalf("second entry = %+v", people[1])
	}
}

func TestPriorityAliasSharesConfiguredList(t *testing.T) {
	m := newMerger(domain.MergeStrategyPriority, map[string][]string{
		"title":  {"r18dev", "fanza"},
		"genres": {"r18dev", "fanza"},
	}, []string{"fanza", "r18dev"})

	merged, provenance := m.merge(map[string]domain.PartialRecord{
		"fanza":  {"title_en": "F", "categories": []string{"A"}},
		"r18dev": {"title_en": "R", "categories": []string{"B"}},
	})

	if merged["title_en"] != "R" {
		t.Fatalf("title_en should follow the title priority list, got %v", merged["title_en"])
	}
	if provenance["categories"] != "r18dev" {
		t.Fatalf("categories should follow the genres priority list, got %q", provenance["categories"])
	}
}

func TestMergeEmptyInput(t *testing.T) {
	m := newMerger(domain.MergeStrategyPriority, nil, []string{"fanza"})
	merged, provenance := m.merge(nil)
	if len(merged) != 0 || len(provenance) != 0 {
		t.Fatalf("expected empty merge, got %v / %v", merged, provenance)
	}
}

func TestIsValidValue(t *testing.T) {
	valid := []any{"x", "0", "false", 1, -1, 2.5, true, false,
		[]string{"a"}, []domain.Person{{Name: "A"}}, map[string]any{"k": 1}}
	for _, v := range valid {
		if !isValidValue(v) {
			t.Fatalf("expected %#v to be valid", v)
		}
	}
	invalid := []any{nil, "", "   ", 0, int64(0), 0.0,
		[]string{}, []any{}, []domain.Person{}, map[string]any{}}
	for _, v := range invalid {
		if isValidValue(v) {
			t.Fatalf("expected %#v to be invalid", v)
		}
	}
}
