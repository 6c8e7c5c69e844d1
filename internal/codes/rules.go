package codes

import (
	"strings"
)

// RuleKind tags a transcode rule variant. Rules are evaluated in table
// order; the first rule whose prefix set (or the catch-all Default)
// matches decides the content ID.
type RuleKind string

const (
	// FixedOverride glues a numeric namespace onto one specific prefix
	// with non-standard padding (historic label quirks).
	FixedOverride RuleKind = "fixed_override"
	// NoPad keeps the minimal 3-digit padding instead of the usual 5.
	NoPad RuleKind = "no_pad"
	// LeadingOne prepends a literal "1" before the prefix.
	LeadingOne RuleKind = "leading_one"
	// Namespaced prepends a per-prefix literal namespace marker (h_NNN).
	Namespaced RuleKind = "namespaced"
	// NumericPrefix prepends a short per-prefix numeric literal.
	NumericPrefix RuleKind = "numeric_prefix"
	// Default concatenates prefix and 5-digit-padded number.
	Default RuleKind = "default"
)

// Rule matches a set of lowercased prefixes and describes how to build
// the content ID: Literals[prefix] (or the shared Literal) is prepended,
// the numeric suffix is zero-padded to Pad digits.
type Rule struct {
	Kind     RuleKind
	Literal  string
	Literals map[string]string
	Prefixes map[string]struct{}
	Pad      int
}

func (r Rule) matches(prefix string) bool {
	if r.Kind == Default {
		return true
	}
	if r.Prefixes != nil {
		_, ok := r.Prefixes[prefix]
		return ok
	}
	_, ok := r.Literals[prefix]
	return ok
}

func (r Rule) apply(prefix, number string) string {
	literal := r.Literal
	if r.Literals != nil {
		literal = r.Literals[prefix]
	}
	return literal + prefix + zfill(number, r.Pad)
}

// zfill left-pads a digit string with zeros to the given width, leaving
// longer strings untouched.
func zfill(number string, pad int) string {
	if len(number) >= pad {
		return number
	}
	return strings.Repeat("0", pad-len(number)) + number
}

// RuleTable is an ordered list of transcode rules for one content-ID
// scheme. The zero table derives nothing; use NewRuleTable or a scheme
// constructor such as FanzaRules.
type RuleTable struct {
	rules []Rule
}

func NewRuleTable(rules ...Rule) RuleTable {
	return RuleTable{rules: rules}
}

// Derive converts a canonical code to this scheme's content ID. When
// the code does not split into exactly prefix and number on a hyphen,
// the lowercased input is returned unchanged: the caller gets a plain
// lookup miss downstream rather than an error.
func (t RuleTable) Derive(code string) string {
	parts := strings.Split(code, "-")
	if len(parts) != 2 {
		return strings.ToLower(code)
	}
	prefix := strings.ToLower(parts[0])
	number := parts[1]
	for _, rule := range t.rules {
		if rule.matches(prefix) {
			return rule.apply(prefix, number)
		}
	}
	return strings.ToLower(prefix) + number
}

func prefixSet(prefixes ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(prefixes))
	for _, p := range prefixes {
		set[strings.ToLower(p)] = struct{}{}
	}
	return set
}

// FanzaRules returns the DMM/Fanza content-ID scheme. r18.dev keys its
// combined endpoint by the same IDs, so both providers share this
// table.
func FanzaRules() RuleTable {
	return NewRuleTable(
		Rule{
			Kind:     FixedOverride,
			Literals: map[string]string{"t28": "55"},
			Pad:      5,
		},
		Rule{
			Kind:     FixedOverride,
			Literals: map[string]string{"abf": "118", "abw": "118"},
			Pad:      3,
		},
		Rule{
			Kind:     NoPad,
			Prefixes: prefixSet("smus", "smjh", "smub", "smjs", "smjx", "orecz", "nost", "mfc", "mfcs"),
			Pad:      3,
		},
		Rule{
			Kind:     LeadingOne,
			Literal:  "1",
			Prefixes: prefixSet("sdmf", "dldss", "sw", "start", "stars", "piyo", "sdam", "sdmm", "hawa", "fsdss", "senn"),
			Pad:      5,
		},
		Rule{
			Kind: Namespaced,
			Literals: map[string]string{
				"milk":  "h_1240",
				"ambi":  "h_237",
				"fnew":  "h_491",
				"einav": "h_1350",
				"pjab":  "h_1604",
			},
			Pad: 5,
		},
		Rule{
			Kind:     NumericPrefix,
			Literals: map[string]string{"dhld": "36", "fays": "55"},
			Pad:      5,
		},
		Rule{Kind: Default, Pad: 5},
	)
}

// Transcoder maps provider names to their content-ID rule tables.
type Transcoder struct {
	tables   map[string]RuleTable
	fallback RuleTable
}

// NewTranscoder builds a transcoder whose unregistered providers fall
// back to the given table.
func NewTranscoder(fallback RuleTable) *Transcoder {
	return &Transcoder{
		tables:   make(map[string]RuleTable),
		fallback: fallback,
	}
}

// Register installs (or replaces) the rule table for a provider.
func (t *Transcoder) Register(provider string, table RuleTable) {
	t.tables[strings.ToLower(strings.TrimSpace(provider))] = table
}

// ContentID derives the provider-specific content ID for a canonical
// code.
func (t *Transcoder) ContentID(code, provider string) string {
	if table, ok := t.tables[strings.ToLower(strings.TrimSpace(provider))]; ok {
		return table.Derive(code)
	}
	return t.fallback.Derive(code)
}
