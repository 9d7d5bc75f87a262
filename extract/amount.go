package extract

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var (
	// $10,000 / $ 5000 / $2,500.00 / $10k
	dollarRe = regexp.MustCompile(`\$\s?(\d{1,3}(?:,\d{3})+|\d+)(?:\.(\d{1,2}))?(?:\s?([kK])\b)?`)
	// 10k / 2.5K without a currency sign
	shorthandRe = regexp.MustCompile(`\b(\d+(?:\.\d+)?)\s?[kK]\b`)
	// 5,000 dollars / 300 dollar
	wordsRe = regexp.MustCompile(`(?i)\b(\d{1,3}(?:,\d{3})+|\d+)(?:\.\d{1,2})?\s*dollars?\b`)

	amountPrinter = message.NewPrinter(language.English)
)

// maxAmount caps parsed values; longer digit runs are phone numbers, IDs
// or garbage and would overflow the integer rendering
const maxAmount = 1e12

// Amount returns the largest monetary amount in text, normalized as
// "$" plus a thousands-grouped integer. Amounts under the configured floor
// are ignored.
func (e *Extractor) Amount(text string) (string, bool) {
	if strings.TrimSpace(text) == "" {
		return "", false
	}

	best := -1.0
	consider := func(v float64) {
		if v < e.config.MinAmount || v > maxAmount {
			return
		}
		if v > best {
			best = v
		}
	}

	for _, m := range dollarRe.FindAllStringSubmatch(text, -1) {
		v, ok := parseNumber(m[1])
		if !ok {
			continue
		}
		if m[2] != "" {
			cents, _ := strconv.ParseFloat("0."+m[2], 64)
			v += cents
		}
		if m[3] != "" {
			v *= 1000
		}
		consider(v)
	}

	for _, m := range shorthandRe.FindAllStringSubmatch(text, -1) {
		if v, ok := parseNumber(m[1]); ok {
			consider(v * 1000)
		}
	}

	for _, m := range wordsRe.FindAllStringSubmatch(text, -1) {
		if v, ok := parseNumber(m[1]); ok {
			consider(v)
		}
	}

	if best < 0 {
		return "", false
	}
	return formatAmount(best), true
}

func parseNumber(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil || math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

// formatAmount renders 10000.4 as "$10,000"
func formatAmount(v float64) string {
	return amountPrinter.Sprintf("$%d", int64(math.Round(v)))
}
