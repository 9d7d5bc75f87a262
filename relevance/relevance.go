// Package relevance scores free text for scholarship relevance with a
// weighted keyword presence test.
package relevance

import (
	"strings"
)

// Keywords configures a Scorer
type Keywords struct {
	Positive       []string `json:"positive"`
	Negative       []string `json:"negative"`
	PositiveWeight int      `json:"positive_weight"`
	NegativeWeight int      `json:"negative_weight"` // subtracted per matched negative keyword
}

// DefaultKeywords returns the stock keyword lists and weights
func DefaultKeywords() Keywords {
	return Keywords{
		Positive: []string{
			"scholarship",
			"grant",
			"fellowship",
			"aid",
			"tuition",
			"stipend",
		},
		Negative: []string{
			"loan",
			"scam",
			"sweepstakes",
		},
		PositiveWeight: 10,
		NegativeWeight: 50,
	}
}

// Scorer computes relevance scores. It is immutable and safe for concurrent use.
type Scorer struct {
	positive       []string
	negative       []string
	positiveWeight int
	negativeWeight int
}

// New creates a Scorer. Zero weights fall back to the defaults; nil lists
// fall back to the default lists.
func New(kw Keywords) *Scorer {
	defaults := DefaultKeywords()
	if kw.Positive == nil {
		kw.Positive = defaults.Positive
	}
	if kw.Negative == nil {
		kw.Negative = defaults.Negative
	}
	if kw.PositiveWeight == 0 {
		kw.PositiveWeight = defaults.PositiveWeight
	}
	if kw.NegativeWeight == 0 {
		kw.NegativeWeight = defaults.NegativeWeight
	}

	// negative weight is a penalty magnitude
	if kw.NegativeWeight < 0 {
		kw.NegativeWeight = -kw.NegativeWeight
	}

	return &Scorer{
		positive:       normalize(kw.Positive),
		negative:       normalize(kw.Negative),
		positiveWeight: kw.PositiveWeight,
		negativeWeight: kw.NegativeWeight,
	}
}

func normalize(words []string) []string {
	out := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.ToLower(strings.TrimSpace(w))
		if w != "" {
			out = append(out, w)
		}
	}
	return out
}

// Score returns positiveWeight per distinct positive keyword present minus
// negativeWeight per distinct negative keyword present. Repeats of the same
// keyword do not add up.
func (s *Scorer) Score(text string) int {
	if strings.TrimSpace(text) == "" {
		return 0
	}
	lower := strings.ToLower(text)

	score := 0
	for _, kw := range s.positive {
		if strings.Contains(lower, kw) {
			score += s.positiveWeight
		}
	}
	for _, kw := range s.negative {
		if strings.Contains(lower, kw) {
			score -= s.negativeWeight
		}
	}
	return score
}

// IsScholarship reports whether text scores above zero
func (s *Scorer) IsScholarship(text string) bool {
	return s.Score(text) > 0
}

// Match lists the keywords that fired for a piece of text
type Match struct {
	Positive []string `json:"positive"`
	Negative []string `json:"negative"`
	Score    int      `json:"score"`
}

// Matches reports which keywords fired, for logging
func (s *Scorer) Matches(text string) Match {
	m := Match{Score: s.Score(text)}
	if m.Score == 0 && strings.TrimSpace(text) == "" {
		return m
	}
	lower := strings.ToLower(text)
	for _, kw := range s.positive {
		if strings.Contains(lower, kw) {
			m.Positive = append(m.Positive, kw)
		}
	}
	for _, kw := range s.negative {
		if strings.Contains(lower, kw) {
			m.Negative = append(m.Negative, kw)
		}
	}
	return m
}

var defaultScorer = New(DefaultKeywords())

// Score scores text with the default keywords
func Score(text string) int {
	return defaultScorer.Score(text)
}

// IsScholarship classifies text with the default keywords
func IsScholarship(text string) bool {
	return defaultScorer.IsScholarship(text)
}
