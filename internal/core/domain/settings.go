package domain

import (
	"fmt"
	"sort"
	"strings"
)

// DefaultRankingRules is the rule chain applied when an index has no
// explicit ranking configuration.
var DefaultRankingRules = []string{
	"words", "typo", "proximity", "attribute", "sort", "exactness",
}

// Settings is the raw, untrusted representation of index configuration.
// It is the form used for storage meta records and transport; the indexer
// never consumes it directly. A nil slice (JSON null or absent key) means
// "reset to default" for that field.
//
// All keys are always serialized so that a meta record produced from the
// same configuration is byte-identical across dumps.
type Settings struct {
	DisplayedAttributes  []string            `json:"displayedAttributes"`
	SearchableAttributes []string            `json:"searchableAttributes"`
	FilterableAttributes []string            `json:"filterableAttributes"`
	SortableAttributes   []string            `json:"sortableAttributes"`
	RankingRules         []string            `json:"rankingRules"`
	StopWords            []string            `json:"stopWords"`
	Synonyms             map[string][]string `json:"synonyms"`
	DistinctAttribute    *string             `json:"distinctAttribute"`
}

// CheckedSettings is the validated representation of index configuration,
// the only form accepted by the indexer. It is reachable exclusively via
// Settings.Check.
type CheckedSettings struct {
	// DisplayedAttributes lists the fields returned on retrieval.
	// nil means all fields.
	DisplayedAttributes []string `json:"displayedAttributes"`

	// SearchableAttributes lists the fields the indexer tokenizes.
	// nil means all fields.
	SearchableAttributes []string `json:"searchableAttributes"`

	FilterableAttributes []string            `json:"filterableAttributes"`
	SortableAttributes   []string            `json:"sortableAttributes"`
	RankingRules         []string            `json:"rankingRules"`
	StopWords            []string            `json:"stopWords"`
	Synonyms             map[string][]string `json:"synonyms"`

	// DistinctAttribute is nil when no distinct field is configured.
	DistinctAttribute *string `json:"distinctAttribute"`
}

// Check validates the raw settings and produces the checked form.
// Validation failure is a Schema error; untrusted input must never reach
// the indexer unchecked.
func (s Settings) Check() (CheckedSettings, error) {
	var out CheckedSettings

	displayed, err := checkAttributeList("displayedAttributes", s.DisplayedAttributes)
	if err != nil {
		return out, err
	}
	searchable, err := checkAttributeList("searchableAttributes", s.SearchableAttributes)
	if err != nil {
		return out, err
	}

	filterable, err := checkAttributeSet("filterableAttributes", s.FilterableAttributes)
	if err != nil {
		return out, err
	}
	sortable, err := checkAttributeSet("sortableAttributes", s.SortableAttributes)
	if err != nil {
		return out, err
	}

	rules := s.RankingRules
	if rules == nil {
		rules = DefaultRankingRules
	}
	checkedRules := make([]string, 0, len(rules))
	for _, rule := range rules {
		if err := checkRankingRule(rule); err != nil {
			return out, err
		}
		checkedRules = append(checkedRules, rule)
	}

	stopWords := make([]string, 0, len(s.StopWords))
	seenStop := make(map[string]struct{}, len(s.StopWords))
	for _, w := range s.StopWords {
		w = strings.ToLower(strings.TrimSpace(w))
		if w == "" {
			return out, ErrInvalidSettings.WithDetails("stopWords: empty word")
		}
		if _, ok := seenStop[w]; ok {
			continue
		}
		seenStop[w] = struct{}{}
		stopWords = append(stopWords, w)
	}
	sort.Strings(stopWords)

	var synonyms map[string][]string
	if len(s.Synonyms) > 0 {
		synonyms = make(map[string][]string, len(s.Synonyms))
		for word, alternatives := range s.Synonyms {
			word = strings.ToLower(strings.TrimSpace(word))
			if word == "" {
				return out, ErrInvalidSettings.WithDetails("synonyms: empty word")
			}
			checked := make([]string, 0, len(alternatives))
			for _, alt := range alternatives {
				alt = strings.ToLower(strings.TrimSpace(alt))
				if alt == "" {
					return out, ErrInvalidSettings.WithDetails(
						fmt.Sprintf("synonyms: empty alternative for %q", word))
				}
				checked = append(checked, alt)
			}
			synonyms[word] = checked
		}
	}

	if s.DistinctAttribute != nil && strings.TrimSpace(*s.DistinctAttribute) == "" {
		return out, ErrInvalidSettings.WithDetails("distinctAttribute: empty field name")
	}

	out = CheckedSettings{
		DisplayedAttributes:  displayed,
		SearchableAttributes: searchable,
		FilterableAttributes: filterable,
		SortableAttributes:   sortable,
		RankingRules:         checkedRules,
		StopWords:            stopWords,
		Synonyms:             synonyms,
		DistinctAttribute:    s.DistinctAttribute,
	}
	return out, nil
}

// IntoUnchecked downgrades checked settings to the raw form used by
// storage and snapshot meta records. It strips nothing but the type-level
// validation guarantee; the values are carried as-is so that
// Check().IntoUnchecked() is the identity on dump output.
func (s CheckedSettings) IntoUnchecked() Settings {
	return Settings{
		DisplayedAttributes:  s.DisplayedAttributes,
		SearchableAttributes: s.SearchableAttributes,
		FilterableAttributes: s.FilterableAttributes,
		SortableAttributes:   s.SortableAttributes,
		RankingRules:         s.RankingRules,
		StopWords:            s.StopWords,
		Synonyms:             s.Synonyms,
		DistinctAttribute:    s.DistinctAttribute,
	}
}

// DefaultCheckedSettings returns the configuration of a fresh index.
func DefaultCheckedSettings() CheckedSettings {
	rules := make([]string, len(DefaultRankingRules))
	copy(rules, DefaultRankingRules)
	return CheckedSettings{
		RankingRules: rules,
		StopWords:    []string{},
	}
}

// checkAttributeList validates displayed/searchable attribute lists.
// The single-element wildcard list ["*"] collapses to nil (all fields).
func checkAttributeList(field string, attrs []string) ([]string, error) {
	if attrs == nil {
		return nil, nil
	}
	if len(attrs) == 1 && attrs[0] == "*" {
		return nil, nil
	}
	out := make([]string, 0, len(attrs))
	for _, a := range attrs {
		if strings.TrimSpace(a) == "" {
			return nil, ErrInvalidSettings.WithDetails(field + ": empty attribute name")
		}
		if a == "*" {
			return nil, ErrInvalidSettings.WithDetails(field + ": wildcard must be the only entry")
		}
		out = append(out, a)
	}
	return out, nil
}

// checkAttributeSet validates filterable/sortable attributes, which have
// set semantics: deduplicated and sorted.
func checkAttributeSet(field string, attrs []string) ([]string, error) {
	if attrs == nil {
		return nil, nil
	}
	seen := make(map[string]struct{}, len(attrs))
	out := make([]string, 0, len(attrs))
	for _, a := range attrs {
		if strings.TrimSpace(a) == "" {
			return nil, ErrInvalidSettings.WithDetails(field + ": empty attribute name")
		}
		if _, ok := seen[a]; ok {
			continue
		}
		seen[a] = struct{}{}
		out = append(out, a)
	}
	sort.Strings(out)
	return out, nil
}

// checkRankingRule accepts the built-in rules plus asc(field)/desc(field).
func checkRankingRule(rule string) error {
	switch rule {
	case "words", "typo", "proximity", "attribute", "sort", "exactness":
		return nil
	}
	for _, prefix := range []string{"asc(", "desc("} {
		if strings.HasPrefix(rule, prefix) && strings.HasSuffix(rule, ")") {
			field := rule[len(prefix) : len(rule)-1]
			if strings.TrimSpace(field) == "" {
				return ErrInvalidSettings.WithDetails("rankingRules: empty field in " + rule)
			}
			return nil
		}
	}
	return ErrInvalidSettings.WithDetails("rankingRules: unknown rule " + rule)
}
