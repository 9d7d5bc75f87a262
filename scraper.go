// Package scraper classifies scholarship pages by content: direct
// application pages and specific scholarship information are worth saving,
// articles about scholarships and unrelated pages are not.
package scraper

import (
	"context"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/scholarscout/scraper/models"
	"github.com/scholarscout/scraper/page"
	"github.com/scholarscout/scraper/urlfilter"
)

// ReasonFetchFailed is the UNKNOWN reason for unreachable or near-empty pages
const ReasonFetchFailed = "could not fetch page content"

// Classification paths reported to the Observer
const (
	PathAI        = "ai"
	PathHeuristic = "heuristic"
	PathUnknown   = "unknown"
)

// Config contains classifier configuration
type Config struct {
	FetchTimeout          time.Duration
	UserAgent             string
	ContentBudget         int // runes of clean text kept for analysis
	AnalyzerBudget        int // runes of clean text sent to the Analyzer
	MinContentLength      int // pages with less clean text are UNKNOWN
	MaxConcurrentAnalyses int
	Heuristics            HeuristicRules
	Gatekeeper            *urlfilter.Gatekeeper // picks DirectApplyURL on the heuristic path
	Logger                *slog.Logger
	Observer              Observer
}

// DefaultConfig returns default classifier configuration
func DefaultConfig() Config {
	return Config{
		FetchTimeout:          15 * time.Second,
		UserAgent:             page.DefaultUserAgent,
		ContentBudget:         4000,
		AnalyzerBudget:        3000,
		MinContentLength:      100,
		MaxConcurrentAnalyses: 3,
		Heuristics:            DefaultHeuristicRules(),
	}
}

// Analyzer is a semantic classification backend such as *llm.Client
type Analyzer interface {
	Classify(ctx context.Context, content string) (models.ClassificationResult, error)
}

// Fetcher downloads pages; *page.Fetcher is the production implementation
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*page.Page, error)
}

// Observer receives one call per classification
type Observer interface {
	ObserveClassification(classification models.Classification, path string)
}

// Classifier is the Content Classifier
type Classifier struct {
	config            Config
	fetcher           Fetcher
	analyzer          Analyzer
	analyzerSemaphore chan struct{} // limits concurrent Analyzer requests
	logger            *slog.Logger
}

// New creates a Classifier. analyzer may be nil, in which case every page
// is classified with heuristics.
func New(config Config, analyzer Analyzer) *Classifier {
	defaults := DefaultConfig()
	if config.FetchTimeout <= 0 {
		config.FetchTimeout = defaults.FetchTimeout
	}
	if config.ContentBudget <= 0 {
		config.ContentBudget = defaults.ContentBudget
	}
	if config.AnalyzerBudget <= 0 {
		config.AnalyzerBudget = defaults.AnalyzerBudget
	}
	if config.MinContentLength <= 0 {
		config.MinContentLength = defaults.MinContentLength
	}
	if config.MaxConcurrentAnalyses <= 0 {
		config.MaxConcurrentAnalyses = defaults.MaxConcurrentAnalyses
	}
	config.Heuristics = config.Heuristics.withDefaults()
	if config.Gatekeeper == nil {
		config.Gatekeeper = urlfilter.MustNew(urlfilter.DefaultRules())
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Classifier{
		config: config,
		fetcher: page.NewFetcher(page.Config{
			Timeout:   config.FetchTimeout,
			UserAgent: config.UserAgent,
		}),
		analyzer:          analyzer,
		analyzerSemaphore: make(chan struct{}, config.MaxConcurrentAnalyses),
		logger:            logger,
	}
}

// WithFetcher replaces the page fetcher, mainly for tests
func (c *Classifier) WithFetcher(f Fetcher) *Classifier {
	c.fetcher = f
	return c
}

// acquireAnalyzerSlot acquires a slot in the Analyzer semaphore or returns error if context is cancelled
func (c *Classifier) acquireAnalyzerSlot(ctx context.Context) error {
	select {
	case c.analyzerSemaphore <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// releaseAnalyzerSlot releases a slot in the Analyzer semaphore
func (c *Classifier) releaseAnalyzerSlot() {
	<-c.analyzerSemaphore
}

// ClassifyURL fetches and classifies a page. It never fails: fetch problems
// yield an UNKNOWN verdict and analysis problems fall back to heuristics.
func (c *Classifier) ClassifyURL(ctx context.Context, targetURL string) models.ClassificationResult {
	fetchCtx, cancel := context.WithTimeout(ctx, c.config.FetchTimeout)
	defer cancel()

	p, err := c.fetcher.Fetch(fetchCtx, targetURL)
	if err != nil {
		c.logger.WarnContext(ctx, "page fetch failed", "url", targetURL, "err", err)
		return c.observe(models.UnknownResult(ReasonFetchFailed), PathUnknown)
	}

	content := page.Truncate(p.CleanText(), c.config.ContentBudget)
	if utf8.RuneCountInString(content) < c.config.MinContentLength {
		c.logger.InfoContext(ctx, "page content too short", "url", targetURL, "runes", utf8.RuneCountInString(content))
		return c.observe(models.UnknownResult(ReasonFetchFailed), PathUnknown)
	}

	if c.analyzer != nil {
		if result, ok := c.analyze(ctx, targetURL, content); ok {
			return c.observe(result, PathAI)
		}
	}

	result := ClassifyHeuristically(c.config.Heuristics, targetURL, content)
	if result.IsWorthSaving() {
		c.fillFromPage(&result, p)
	}
	return c.observe(result, PathHeuristic)
}

// ClassifyContent classifies already extracted text, skipping the fetch.
// Text under the minimum length is UNKNOWN just as for fetched pages.
func (c *Classifier) ClassifyContent(ctx context.Context, targetURL, text string) models.ClassificationResult {
	content := page.Truncate(text, c.config.ContentBudget)
	if utf8.RuneCountInString(content) < c.config.MinContentLength {
		return c.observe(models.UnknownResult(ReasonFetchFailed), PathUnknown)
	}
	if c.analyzer != nil {
		if result, ok := c.analyze(ctx, targetURL, content); ok {
			return c.observe(result, PathAI)
		}
	}
	return c.observe(ClassifyHeuristically(c.config.Heuristics, targetURL, content), PathHeuristic)
}

func (c *Classifier) analyze(ctx context.Context, targetURL, content string) (models.ClassificationResult, bool) {
	if err := c.acquireAnalyzerSlot(ctx); err != nil {
		c.logger.WarnContext(ctx, "context cancelled while waiting for analyzer slot, using heuristics", "url", targetURL, "err", err)
		return models.ClassificationResult{}, false
	}
	result, err := c.analyzer.Classify(ctx, page.Truncate(content, c.config.AnalyzerBudget))
	c.releaseAnalyzerSlot()
	if err != nil {
		c.logger.WarnContext(ctx, "AI classification failed, using heuristics", "url", targetURL, "err", err)
		return models.ClassificationResult{}, false
	}
	result.AIUsed = true
	return result, true
}

// fillFromPage sets the scholarship name from the page title and the
// direct apply URL from the best apply-related link
func (c *Classifier) fillFromPage(result *models.ClassificationResult, p *page.Page) {
	if title := p.Title(); title != "" {
		result.ScholarshipName = &title
	}

	var candidates []string
	for _, link := range p.Links() {
		if mentionsApply(link.URL) || mentionsApply(link.Text) {
			candidates = append(candidates, link.URL)
		}
	}
	if best := c.config.Gatekeeper.BestURL(candidates); best != "" {
		result.DirectApplyURL = &best
	}
}

func (c *Classifier) observe(result models.ClassificationResult, path string) models.ClassificationResult {
	if c.config.Observer != nil {
		c.config.Observer.ObserveClassification(result.Classification, path)
	}
	return result
}

// ShouldSave is a quick save decision for a URL: whether it is worth
// saving, why, and a better direct application URL when one was found
func (c *Classifier) ShouldSave(ctx context.Context, targetURL string) (bool, string, string) {
	result := c.ClassifyURL(ctx, targetURL)

	betterURL := ""
	if result.DirectApplyURL != nil {
		betterURL = *result.DirectApplyURL
	}
	return result.IsWorthSaving(), result.Reason, betterURL
}
