// Package extract pulls normalized scholarship fields (award amount and
// application deadline) out of unstructured text.
//
// The same Extractor is shared by ingestion and enrichment so both paths
// agree on what "$10,000" or "Deadline: March 15, 2025" means.
package extract

import (
	"regexp"
	"strings"
	"time"
)

// Config controls extraction thresholds and keyword lists
type Config struct {
	MinAmount        float64  `json:"min_amount"`         // amounts below this are treated as noise (street numbers, years)
	DeadlineKeywords []string `json:"deadline_keywords"`  // words that mark a line as talking about a deadline
	FuzzyWindowLimit int      `json:"fuzzy_window_limit"` // windows at least this long skip fuzzy date parsing
}

// DefaultConfig returns the extraction defaults
func DefaultConfig() Config {
	return Config{
		MinAmount: 100,
		DeadlineKeywords: []string{
			"deadline",
			"due date",
			"closes",
			"ends",
			"expires",
			"application period",
		},
		FuzzyWindowLimit: 100,
	}
}

// Extractor extracts amounts and deadlines. It is safe for concurrent use.
type Extractor struct {
	config    Config
	keywordRe *regexp.Regexp
}

// New creates an Extractor. Empty config fields fall back to defaults.
func New(config Config) *Extractor {
	defaults := DefaultConfig()
	if config.MinAmount <= 0 {
		config.MinAmount = defaults.MinAmount
	}
	if len(config.DeadlineKeywords) == 0 {
		config.DeadlineKeywords = defaults.DeadlineKeywords
	}
	if config.FuzzyWindowLimit <= 0 {
		config.FuzzyWindowLimit = defaults.FuzzyWindowLimit
	}

	quoted := make([]string, 0, len(config.DeadlineKeywords))
	for _, kw := range config.DeadlineKeywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		// allow "due date" to match "due  date" across extra whitespace
		quoted = append(quoted, strings.ReplaceAll(regexp.QuoteMeta(kw), " ", `\s+`))
	}

	return &Extractor{
		config:    config,
		keywordRe: regexp.MustCompile(`(?i)\b(?:` + strings.Join(quoted, "|") + `)\b`),
	}
}

// Config returns the extractor's effective configuration
func (e *Extractor) Config() Config {
	return e.config
}

// Fields is the combined extraction result for a block of text
type Fields struct {
	Amount   *string
	Deadline *time.Time
}

// Fields runs both amount and deadline extraction
func (e *Extractor) Fields(text string) Fields {
	var f Fields
	if amount, ok := e.Amount(text); ok {
		f.Amount = &amount
	}
	if deadline, ok := e.Deadline(text); ok {
		f.Deadline = &deadline
	}
	return f
}

var defaultExtractor = New(DefaultConfig())

// Amount extracts the largest award amount using the default configuration
func Amount(text string) (string, bool) {
	return defaultExtractor.Amount(text)
}

// Deadline extracts the first deadline using the default configuration
func Deadline(text string) (time.Time, bool) {
	return defaultExtractor.Deadline(text)
}

// FormatDeadline renders a deadline the way records store it
func FormatDeadline(t time.Time) string {
	return t.Format("2006-01-02")
}
