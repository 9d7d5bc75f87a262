package scraper

import (
	"fmt"
	"math"
	"strings"

	"github.com/scholarscout/scraper/models"
)

// HeuristicRules are the phrase lists for rule-based classification
type HeuristicRules struct {
	ApplicationPhrases []string `json:"application_phrases"`
	ArticlePhrases     []string `json:"article_phrases"`
	ApplicationPaths   []string `json:"application_paths"` // URL substrings that boost the application score
	ArticlePaths       []string `json:"article_paths"`     // URL substrings that boost the article score
	InfoKeywords       []string `json:"info_keywords"`
	PathBonus          int      `json:"path_bonus"`
}

// DefaultHeuristicRules returns the stock phrase lists
func DefaultHeuristicRules() HeuristicRules {
	return HeuristicRules{
		ApplicationPhrases: []string{
			"apply now",
			"submit application",
			"application form",
			"application deadline",
			"start application",
			"create account",
			"sign up to apply",
			"begin application",
		},
		ArticlePhrases: []string{
			"share this",
			"related articles",
			"read more",
			"by author",
			"published on",
			"comments section",
			"subscribe to",
			"newsletter",
			"blog post",
		},
		ApplicationPaths: []string{"/apply", "/application"},
		ArticlePaths:     []string{"/blog/", "/news/", "/article/"},
		InfoKeywords:     []string{"scholarship", "financial aid"},
		PathBonus:        3,
	}
}

func (r HeuristicRules) withDefaults() HeuristicRules {
	defaults := DefaultHeuristicRules()
	if r.ApplicationPhrases == nil {
		r.ApplicationPhrases = defaults.ApplicationPhrases
	}
	if r.ArticlePhrases == nil {
		r.ArticlePhrases = defaults.ArticlePhrases
	}
	if r.ApplicationPaths == nil {
		r.ApplicationPaths = defaults.ApplicationPaths
	}
	if r.ArticlePaths == nil {
		r.ArticlePaths = defaults.ArticlePaths
	}
	if r.InfoKeywords == nil {
		r.InfoKeywords = defaults.InfoKeywords
	}
	if r.PathBonus == 0 {
		r.PathBonus = defaults.PathBonus
	}
	return r
}

// ClassifyHeuristically classifies content from phrase presence and URL
// shape. It needs no network access.
func ClassifyHeuristically(rules HeuristicRules, targetURL, content string) models.ClassificationResult {
	rules = rules.withDefaults()
	contentLower := strings.ToLower(content)
	urlLower := strings.ToLower(targetURL)

	appScore := countPresent(contentLower, rules.ApplicationPhrases)
	articleScore := countPresent(contentLower, rules.ArticlePhrases)

	if containsAny(urlLower, rules.ArticlePaths) {
		articleScore += rules.PathBonus
	}
	if containsAny(urlLower, rules.ApplicationPaths) {
		appScore += rules.PathBonus
	}

	var classification models.Classification
	var confidence float64
	switch {
	case appScore > articleScore && appScore >= 2:
		classification = models.ClassApplication
		confidence = scaledConfidence(appScore)
	case articleScore > appScore && articleScore >= 2:
		classification = models.ClassArticle
		confidence = scaledConfidence(articleScore)
	case containsAny(contentLower, rules.InfoKeywords):
		classification = models.ClassInfo
		confidence = 0.5
	default:
		classification = models.ClassOther
		confidence = 0.3
	}

	return models.ClassificationResult{
		Classification: classification,
		Confidence:     confidence,
		Reason:         fmt.Sprintf("heuristic classification (app_score=%d, article_score=%d)", appScore, articleScore),
		AIUsed:         false,
	}
}

// scaledConfidence is 0.4 plus 0.1 per point, capped at 0.7
func scaledConfidence(score int) float64 {
	return math.Min(0.7, 0.4+float64(score)*0.1)
}

func countPresent(text string, phrases []string) int {
	n := 0
	for _, p := range phrases {
		if p != "" && strings.Contains(text, strings.ToLower(p)) {
			n++
		}
	}
	return n
}

func containsAny(text string, needles []string) bool {
	for _, n := range needles {
		if n != "" && strings.Contains(text, strings.ToLower(n)) {
			return true
		}
	}
	return false
}

func mentionsApply(s string) bool {
	s = strings.ToLower(s)
	return strings.Contains(s, "apply") || strings.Contains(s, "application")
}
