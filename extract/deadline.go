package extract

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

var (
	months = map[string]time.Month{
		"january": time.January, "february": time.February, "march": time.March,
		"april": time.April, "may": time.May, "june": time.June,
		"july": time.July, "august": time.August, "september": time.September,
		"october": time.October, "november": time.November, "december": time.December,
	}

	// March 15, 2025 / March 15th 2025
	monthDayYearRe = regexp.MustCompile(`(?i)\b(january|february|march|april|may|june|july|august|september|october|november|december)\s+(\d{1,2})(?:st|nd|rd|th)?,?\s+(\d{4})\b`)
	// 03/15/2025
	numericDateRe = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})/(\d{4})\b`)

	monthPrefixes = []string{"jan", "feb", "mar", "apr", "may", "jun", "jul", "aug", "sep", "oct", "nov", "dec"}
)

const (
	// maxFuzzyTokens bounds how many tokens a fuzzy candidate run may span
	maxFuzzyTokens = 6

	// deadlines outside these years are parse failures; dateparse reports
	// year 0 for yearless input such as "March 15" or "3/15"
	minDeadlineYear = 1900
	maxDeadlineYear = 2199
)

// Deadline returns the first deadline found on a keyword line. The window
// searched is the keyword line plus the line after it.
func (e *Extractor) Deadline(text string) (time.Time, bool) {
	if strings.TrimSpace(text) == "" {
		return time.Time{}, false
	}

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if !e.keywordRe.MatchString(line) {
			continue
		}

		window := strings.TrimSpace(line)
		if i+1 < len(lines) {
			window = strings.TrimSpace(window + " " + strings.TrimSpace(lines[i+1]))
		}

		if t, ok := strictDate(window); ok {
			return t, true
		}
		if len(window) < e.config.FuzzyWindowLimit {
			if t, ok := fuzzyDate(window); ok {
				return t, true
			}
		}
	}

	return time.Time{}, false
}

// strictDate tries the full month name and MM/DD/YYYY patterns in order
func strictDate(window string) (time.Time, bool) {
	for _, m := range monthDayYearRe.FindAllStringSubmatch(window, -1) {
		day, _ := strconv.Atoi(m[2])
		year, _ := strconv.Atoi(m[3])
		if t, ok := dateOf(year, months[strings.ToLower(m[1])], day); ok {
			return t, true
		}
	}

	for _, m := range numericDateRe.FindAllStringSubmatch(window, -1) {
		month, _ := strconv.Atoi(m[1])
		day, _ := strconv.Atoi(m[2])
		year, _ := strconv.Atoi(m[3])
		if month < 1 || month > 12 {
			continue
		}
		if t, ok := dateOf(year, time.Month(month), day); ok {
			return t, true
		}
	}

	return time.Time{}, false
}

// dateOf builds a UTC date and rejects values time.Date would normalize,
// such as February 30, and years outside the plausible range
func dateOf(year int, month time.Month, day int) (time.Time, bool) {
	if year < minDeadlineYear || year > maxDeadlineYear {
		return time.Time{}, false
	}
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	if t.Year() != year || t.Month() != month || t.Day() != day {
		return time.Time{}, false
	}
	return t, true
}

// fuzzyDate tries token runs of the window with dateparse, longest first.
// Runs without a month word or two date separators are skipped so bare
// numbers, decimals and years never count as dates.
func fuzzyDate(window string) (time.Time, bool) {
	var tokens []string
	for _, tok := range strings.Fields(window) {
		tok = strings.Trim(tok, ",;:!?()[]\"'")
		tok = strings.TrimRight(tok, ".")
		if tok != "" {
			tokens = append(tokens, tok)
		}
	}

	longest := len(tokens)
	if longest > maxFuzzyTokens {
		longest = maxFuzzyTokens
	}

	for n := longest; n >= 1; n-- {
		for i := 0; i+n <= len(tokens); i++ {
			run := strings.Join(tokens[i:i+n], " ")
			if !looksLikeDate(run) {
				continue
			}
			t, err := dateparse.ParseAny(run)
			if err != nil {
				continue
			}
			if d, ok := dateOf(t.Year(), t.Month(), t.Day()); ok {
				return d, true
			}
		}
	}

	return time.Time{}, false
}

func looksLikeDate(run string) bool {
	if !strings.ContainsAny(run, "0123456789") {
		return false
	}
	words := strings.Fields(strings.ToLower(run))
	if len(words) == 0 {
		return false
	}
	// a run must start on the date itself, not on surrounding prose
	if !startsWithDigit(words[0]) && !isMonthWord(words[0]) {
		return false
	}
	for _, word := range words {
		if isMonthWord(word) {
			return true
		}
	}
	// numeric dates need day, month and year: "2025-04-01" but not "3.5"
	separators := 0
	for _, r := range run {
		if r == '/' || r == '-' || r == '.' {
			separators++
		}
	}
	return separators >= 2
}

func startsWithDigit(word string) bool {
	return word != "" && word[0] >= '0' && word[0] <= '9'
}

func isMonthWord(word string) bool {
	for _, prefix := range monthPrefixes {
		if strings.HasPrefix(word, prefix) {
			return true
		}
	}
	return false
}
