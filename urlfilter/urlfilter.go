// Package urlfilter decides from URL shape alone whether a link is likely a
// direct scholarship page or an article about one.
package urlfilter

import (
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/scholarscout/scraper/models"
)

// Rules holds the domain and path lists a Gatekeeper evaluates
type Rules struct {
	TrustedDomains   []string `json:"trusted_domains"`
	ArticleDomains   []string `json:"article_domains"`
	ArticlePaths     []string `json:"article_paths"`     // regular expressions, matched case-insensitively
	ScholarshipPaths []string `json:"scholarship_paths"` // regular expressions, matched case-insensitively
	EduSuffix        string   `json:"edu_suffix"`
}

// DefaultRules returns the stock rule lists
func DefaultRules() Rules {
	return Rules{
		TrustedDomains: []string{
			"fastweb.com",
			"scholarships.com",
			"bold.org",
			"niche.com",
			"cappex.com",
			"chegg.com",
			"collegeboard.org",
			"petersons.com",
			"unigo.com",
			"scholarshipamerica.org",
			"thescholarshipsystem.com",
			"goingmerry.com",
			"raise.me",
			"scholly.com",
			"jlv.org",
			"questbridge.org",
			"coca-colascholarsfoundation.org",
			"goldwaterscholarship.gov",
			"nsf.gov",
			"ed.gov",
		},
		ArticleDomains: []string{
			"medium.com",
			"wordpress.com",
			"blogger.com",
			"substack.com",
			"hubspot.com",
			"wix.com",
			"squarespace.com",
			"tumblr.com",
			"ghost.io",
			"telegraph.co.uk",
			"theguardian.com",
			"nytimes.com",
			"washingtonpost.com",
			"cnn.com",
			"bbc.com",
			"forbes.com",
			"huffpost.com",
			"buzzfeed.com",
		},
		ArticlePaths: []string{
			`/blog/`,
			`/blogs/`,
			`/news/`,
			`/article/`,
			`/articles/`,
			`/story/`,
			`/stories/`,
			`/press[-_]?release/`,
			`/press/`,
			`/featured/`,
			`/insights/`,
			`/about[-_]?us/`,
			`/about/`,
			`/learn/`,
			`/resources/article`,
			`/post/`,
			`/posts/`,
			`/updates/`,
			`/announcements/`,
			`/media/`,
			`/magazine/`,
			`/journal/`,
		},
		ScholarshipPaths: []string{
			`/apply`,
			`/application`,
			`/scholarship`,
			`/scholarships`,
			`/financial[-_]?aid`,
			`/submit`,
			`/register`,
			`/eligibility`,
			`/award`,
			`/grants?/`,
			`/funding`,
			`/portal`,
		},
		EduSuffix: ".edu",
	}
}

type pathPattern struct {
	source string
	re     *regexp.Regexp
}

// Gatekeeper applies a fixed rule cascade to URLs. It is immutable once built.
type Gatekeeper struct {
	trusted          []string
	articleDomains   []string
	articlePaths     []pathPattern
	scholarshipPaths []pathPattern
	eduSuffix        string
}

// New compiles rules into a Gatekeeper. Nil lists fall back to defaults.
func New(rules Rules) (*Gatekeeper, error) {
	defaults := DefaultRules()
	if rules.TrustedDomains == nil {
		rules.TrustedDomains = defaults.TrustedDomains
	}
	if rules.ArticleDomains == nil {
		rules.ArticleDomains = defaults.ArticleDomains
	}
	if rules.ArticlePaths == nil {
		rules.ArticlePaths = defaults.ArticlePaths
	}
	if rules.ScholarshipPaths == nil {
		rules.ScholarshipPaths = defaults.ScholarshipPaths
	}
	if rules.EduSuffix == "" {
		rules.EduSuffix = defaults.EduSuffix
	}

	articlePaths, err := compilePatterns(rules.ArticlePaths)
	if err != nil {
		return nil, fmt.Errorf("article paths: %w", err)
	}
	scholarshipPaths, err := compilePatterns(rules.ScholarshipPaths)
	if err != nil {
		return nil, fmt.Errorf("scholarship paths: %w", err)
	}

	return &Gatekeeper{
		trusted:          lowerAll(rules.TrustedDomains),
		articleDomains:   lowerAll(rules.ArticleDomains),
		articlePaths:     articlePaths,
		scholarshipPaths: scholarshipPaths,
		eduSuffix:        strings.ToLower(rules.EduSuffix),
	}, nil
}

// MustNew is New for rule sets known to be valid, such as DefaultRules
func MustNew(rules Rules) *Gatekeeper {
	g, err := New(rules)
	if err != nil {
		panic(err)
	}
	return g
}

func compilePatterns(sources []string) ([]pathPattern, error) {
	patterns := make([]pathPattern, 0, len(sources))
	for _, src := range sources {
		re, err := regexp.Compile("(?i)" + src)
		if err != nil {
			return nil, fmt.Errorf("compile %q: %w", src, err)
		}
		patterns = append(patterns, pathPattern{source: src, re: re})
	}
	return patterns, nil
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func verdict(valid bool, rule models.FilterRule, match string) models.FilterVerdict {
	return models.FilterVerdict{Valid: valid, Rule: rule, Reason: string(rule), Match: match}
}

// Filter evaluates rawURL against the cascade; the first matching rule wins
func (g *Gatekeeper) Filter(rawURL string) models.FilterVerdict {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return verdict(false, models.RuleInvalid, "")
	}

	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Hostname() == "" {
		return verdict(false, models.RuleInvalid, "")
	}

	domain := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	path := strings.ToLower(u.Path)

	for _, trusted := range g.trusted {
		if domainMatches(domain, trusted) {
			return verdict(true, models.RuleTrustedDomain, trusted)
		}
	}

	if strings.HasSuffix(domain, g.eduSuffix) {
		return verdict(true, models.RuleEduDomain, g.eduSuffix)
	}

	for _, blocked := range g.articleDomains {
		if domainMatches(domain, blocked) {
			return verdict(false, models.RuleArticleDomain, blocked)
		}
	}

	for _, p := range g.articlePaths {
		if p.re.MatchString(path) {
			return verdict(false, models.RuleArticlePath, p.source)
		}
	}

	for _, p := range g.scholarshipPaths {
		if p.re.MatchString(path) {
			return verdict(true, models.RuleScholarshipPath, p.source)
		}
	}

	return verdict(true, models.RuleNeutral, "")
}

// domainMatches is true for an exact match or any subdomain of want
func domainMatches(domain, want string) bool {
	return domain == want || strings.HasSuffix(domain, "."+want)
}

// FilterBatch returns the URLs that pass Filter, in input order
func (g *Gatekeeper) FilterBatch(urls []string) []string {
	var valid []string
	for _, u := range urls {
		if g.Filter(u).Valid {
			valid = append(valid, u)
		}
	}
	return valid
}

type scoredURL struct {
	url   string
	score int
}

// BestURL returns the URL most likely to be a direct scholarship link, or
// "" when none pass the filter. Ties keep input order.
func (g *Gatekeeper) BestURL(urls []string) string {
	seen := make(map[string]struct{}, len(urls))
	var scored []scoredURL

	for _, raw := range urls {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if _, dup := seen[raw]; dup {
			continue
		}
		seen[raw] = struct{}{}

		v := g.Filter(raw)
		if !v.Valid {
			continue
		}

		score := 0
		switch v.Rule {
		case models.RuleTrustedDomain:
			score += 100
		case models.RuleEduDomain:
			score += 80
		case models.RuleScholarshipPath:
			score += 50
		}
		lower := strings.ToLower(raw)
		if strings.Contains(lower, "/apply") || strings.Contains(lower, "/application") {
			score += 30
		}

		scored = append(scored, scoredURL{url: raw, score: score})
	}

	if len(scored) == 0 {
		return ""
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].score > scored[j].score
	})
	return scored[0].url
}

// Stats summarizes a batch re-evaluation
type Stats struct {
	Total   int                       `json:"total"`
	Valid   int                       `json:"valid"`
	Blocked int                       `json:"blocked"`
	ByRule  map[models.FilterRule]int `json:"by_rule"`
}

// Evaluate runs Filter over urls and tallies the verdicts
func (g *Gatekeeper) Evaluate(urls []string) Stats {
	stats := Stats{ByRule: make(map[models.FilterRule]int)}
	for _, u := range urls {
		v := g.Filter(u)
		stats.Total++
		if v.Valid {
			stats.Valid++
		} else {
			stats.Blocked++
		}
		stats.ByRule[v.Rule]++
	}
	return stats
}
