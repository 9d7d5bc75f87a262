package sources

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/mmcdole/gofeed"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/scholarscout/scraper/extract"
	"github.com/scholarscout/scraper/models"
	"github.com/scholarscout/scraper/page"
)

// Feed is one RSS or Atom feed and the keywords an entry must mention
type Feed struct {
	Name     string   `json:"name"`
	URL      string   `json:"url"`
	Keywords []string `json:"keywords"`
}

// DefaultFeeds returns the stock scholarship feeds
func DefaultFeeds() []Feed {
	return []Feed{
		{Name: "Scholarships.com", URL: "https://www.scholarships.com/feed/", Keywords: []string{"scholarship", "grant", "award"}},
		{Name: "FastWeb", URL: "https://www.fastweb.com/college-scholarships/feed", Keywords: []string{"scholarship", "financial aid"}},
		{Name: "GoOverseas", URL: "https://www.gooverseas.com/blog/feed", Keywords: []string{"scholarship", "study abroad", "funding"}},
		{Name: "IIE", URL: "https://www.iie.org/feed/", Keywords: []string{"scholarship", "fellowship", "grant"}},
		{Name: "Scholarship America", URL: "https://scholarshipamerica.org/feed/", Keywords: []string{"scholarship", "student"}},
		{Name: "JMO", URL: "https://www.jmof.org/feed/", Keywords: []string{"scholarship", "jack kent cooke"}},
		{Name: "Chegg", URL: "https://www.chegg.com/scholarships/rss", Keywords: []string{"scholarship", "college"}},
	}
}

// RSSConfig contains RSS source configuration
type RSSConfig struct {
	Feeds          []Feed
	Timeout        time.Duration
	UserAgent      string
	EntriesPerFeed int // entries examined per feed
	LimitPerFeed   int // candidates kept per feed
	TitleLimit     int
	SummaryLimit   int
	Extractor      *extract.Extractor
	Logger         *slog.Logger
}

// DefaultRSSConfig returns default RSS configuration
func DefaultRSSConfig() RSSConfig {
	return RSSConfig{
		Feeds:          DefaultFeeds(),
		Timeout:        15 * time.Second,
		UserAgent:      page.DefaultUserAgent,
		EntriesPerFeed: 20,
		LimitPerFeed:   5,
		TitleLimit:     200,
		SummaryLimit:   500,
	}
}

// RSS reads scholarship feeds
type RSS struct {
	config    RSSConfig
	client    *http.Client
	policy    *bluemonday.Policy
	extractor *extract.Extractor
	logger    *slog.Logger
}

// NewRSS creates an RSS source. A nil Feeds list uses the defaults; an
// empty one makes Fetch a no-op.
func NewRSS(config RSSConfig) *RSS {
	defaults := DefaultRSSConfig()
	if config.Feeds == nil {
		config.Feeds = defaults.Feeds
	}
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}
	if config.UserAgent == "" {
		config.UserAgent = defaults.UserAgent
	}
	if config.EntriesPerFeed <= 0 {
		config.EntriesPerFeed = defaults.EntriesPerFeed
	}
	if config.LimitPerFeed <= 0 {
		config.LimitPerFeed = defaults.LimitPerFeed
	}
	if config.TitleLimit <= 0 {
		config.TitleLimit = defaults.TitleLimit
	}
	if config.SummaryLimit <= 0 {
		config.SummaryLimit = defaults.SummaryLimit
	}

	extractor := config.Extractor
	if extractor == nil {
		extractor = extract.New(extract.DefaultConfig())
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &RSS{
		config: config,
		client: &http.Client{
			Timeout:   config.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		policy:    bluemonday.StrictPolicy(),
		extractor: extractor,
		logger:    logger,
	}
}

// Name returns the source name
func (r *RSS) Name() string { return "rss" }

// Platform returns models.PlatformRSS
func (r *RSS) Platform() models.Platform { return models.PlatformRSS }

// Fetch reads every configured feed. A failing feed is logged and skipped.
func (r *RSS) Fetch(ctx context.Context) ([]models.Candidate, error) {
	var all []models.Candidate
	for _, feed := range r.config.Feeds {
		if err := ctx.Err(); err != nil {
			return all, err
		}

		candidates, err := r.FetchFeed(ctx, feed)
		if err != nil {
			r.logger.WarnContext(ctx, "feed fetch failed", "feed", feed.Name, "url", feed.URL, "err", err)
			continue
		}
		r.logger.InfoContext(ctx, "feed fetched", "feed", feed.Name, "candidates", len(candidates))
		all = append(all, candidates...)
	}
	return all, nil
}

// FetchFeed reads one feed and returns keyword-matching entries as candidates
func (r *RSS) FetchFeed(ctx context.Context, feed Feed) ([]models.Candidate, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feed.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build feed request: %w", err)
	}
	req.Header.Set("User-Agent", r.config.UserAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %d", page.ErrStatus, resp.StatusCode)
	}

	parsed, err := gofeed.NewParser().Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	return r.candidates(feed, parsed.Items), nil
}

func (r *RSS) candidates(feed Feed, items []*gofeed.Item) []models.Candidate {
	keywords := make([]string, 0, len(feed.Keywords))
	for _, kw := range feed.Keywords {
		if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" {
			keywords = append(keywords, kw)
		}
	}

	if len(items) > r.config.EntriesPerFeed {
		items = items[:r.config.EntriesPerFeed]
	}

	var out []models.Candidate
	for _, it := range items {
		if len(out) >= r.config.LimitPerFeed {
			break
		}

		title := strings.TrimSpace(it.Title)
		link := strings.TrimSpace(it.Link)
		if title == "" || link == "" {
			continue
		}

		summary := it.Description
		if summary == "" {
			summary = it.Content
		}
		summary = r.stripHTML(summary)

		if !matchesAnyKeyword(strings.ToLower(title+" "+summary), keywords) {
			continue
		}

		description := page.Truncate(summary, r.config.SummaryLimit)
		if description == "" {
			description = title
		}

		candidate := models.Candidate{
			Title:       page.Truncate(title, r.config.TitleLimit),
			SourceURL:   link,
			Description: &description,
			Platform:    models.PlatformRSS,
			DatePosted:  published(it),
		}

		fields := r.extractor.Fields(title + " " + summary)
		candidate.Amount = fields.Amount
		if fields.Deadline != nil {
			deadline := extract.FormatDeadline(*fields.Deadline)
			candidate.Deadline = &deadline
		}

		out = append(out, candidate)
	}
	return out
}

// stripHTML removes markup and decodes entities
func (r *RSS) stripHTML(s string) string {
	text := html.UnescapeString(r.policy.Sanitize(s))
	return strings.Join(strings.Fields(text), " ")
}

func published(it *gofeed.Item) *time.Time {
	switch {
	case it.PublishedParsed != nil:
		t := it.PublishedParsed.UTC()
		return &t
	case it.UpdatedParsed != nil:
		t := it.UpdatedParsed.UTC()
		return &t
	}
	t := time.Now().UTC()
	return &t
}

func matchesAnyKeyword(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
