// Package enrich revisits stored scholarships that lack an amount and
// backfills missing fields from a fresh fetch of their page.
package enrich

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"
	"unicode/utf8"

	"github.com/scholarscout/scraper/extract"
	"github.com/scholarscout/scraper/models"
	"github.com/scholarscout/scraper/page"
	"github.com/scholarscout/scraper/storage"
)

// Store is the slice of the record store enrichment needs; *db.DB satisfies it
type Store interface {
	ListMissingAmount(ctx context.Context, limit int) ([]*models.Record, error)
	ApplyEnrichment(ctx context.Context, id int64, update models.RecordUpdate) (bool, error)
}

// Fetcher downloads pages
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*page.Page, error)
}

// Observer receives enrichment counters
type Observer interface {
	ObserveEnrichment(updated bool)
	ObserveFetchFailure(component string)
}

// Config contains enrichment configuration
type Config struct {
	FetchTimeout         time.Duration
	UserAgent            string
	FullTextLimit        int           // runes of body text kept
	DescriptionLimit     int           // runes of full text used as a replacement description
	MinUsefulDescription int           // shorter descriptions may be replaced
	DefaultLimit         int           // sample size when Run is called with limit <= 0
	Delay                time.Duration // pause between records; zero disables
	Extractor            *extract.Extractor
	Archive              storage.Archive // optional snapshot archive
	Logger               *slog.Logger
	Observer             Observer
}

// DefaultConfig returns default enrichment configuration
func DefaultConfig() Config {
	return Config{
		FetchTimeout:         30 * time.Second,
		UserAgent:            page.DefaultUserAgent,
		FullTextLimit:        5000,
		DescriptionLimit:     500,
		MinUsefulDescription: 100,
		DefaultLimit:         5,
		Delay:                2 * time.Second,
	}
}

// Summary reports one enrichment run
type Summary struct {
	Candidates int `json:"candidates"` // records lacking an amount
	Attempted  int `json:"attempted"`
	Updated    int `json:"updated"`
	Failed     int `json:"failed"`
}

// Processor is the Enrichment Processor
type Processor struct {
	config    Config
	store     Store
	fetcher   Fetcher
	extractor *extract.Extractor
	logger    *slog.Logger
}

// New creates a Processor. store may be nil when only Enrich is used.
func New(config Config, store Store) *Processor {
	defaults := DefaultConfig()
	if config.FetchTimeout <= 0 {
		config.FetchTimeout = defaults.FetchTimeout
	}
	if config.FullTextLimit <= 0 {
		config.FullTextLimit = defaults.FullTextLimit
	}
	if config.DescriptionLimit <= 0 {
		config.DescriptionLimit = defaults.DescriptionLimit
	}
	if config.MinUsefulDescription <= 0 {
		config.MinUsefulDescription = defaults.MinUsefulDescription
	}
	if config.DefaultLimit <= 0 {
		config.DefaultLimit = defaults.DefaultLimit
	}

	extractor := config.Extractor
	if extractor == nil {
		extractor = extract.New(extract.DefaultConfig())
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Processor{
		config: config,
		store:  store,
		fetcher: page.NewFetcher(page.Config{
			Timeout:   config.FetchTimeout,
			UserAgent: config.UserAgent,
		}),
		extractor: extractor,
		logger:    logger,
	}
}

// WithFetcher replaces the page fetcher, mainly for tests
func (p *Processor) WithFetcher(f Fetcher) *Processor {
	p.fetcher = f
	return p
}

// Enrich re-fetches url and extracts amount, deadline and body text with
// the same extractor ingestion uses
func (p *Processor) Enrich(ctx context.Context, url string) (models.EnrichmentResult, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, p.config.FetchTimeout)
	defer cancel()

	pg, err := p.fetcher.Fetch(fetchCtx, url)
	if err != nil {
		if p.config.Observer != nil {
			p.config.Observer.ObserveFetchFailure("enrich")
		}
		return models.EnrichmentResult{}, fmt.Errorf("enrichment fetch failed: %w", err)
	}

	text := pg.BodyText()
	fields := p.extractor.Fields(text)
	result := models.EnrichmentResult{
		Amount:   fields.Amount,
		Deadline: fields.Deadline,
		FullText: page.Truncate(text, p.config.FullTextLimit),
	}

	p.archive(ctx, url, pg.Title(), result.FullText)

	p.logger.InfoContext(ctx, "page enriched",
		"url", url,
		"amount_found", result.Amount != nil,
		"deadline_found", result.Deadline != nil,
	)
	return result, nil
}

func (p *Processor) archive(ctx context.Context, url, title, text string) {
	if p.config.Archive == nil || text == "" {
		return
	}
	key, err := p.config.Archive.SaveSnapshot(ctx, storage.Snapshot{
		URL:       url,
		Title:     title,
		Text:      text,
		FetchedAt: time.Now().UTC(),
	})
	if err != nil {
		p.logger.WarnContext(ctx, "snapshot archive failed", "url", url, "err", err)
		return
	}
	p.logger.DebugContext(ctx, "snapshot archived", "url", url, "key", key)
}

// Apply turns an enrichment result into an update for rec. Populated
// amount and deadline values are never replaced; the description is
// replaced only when missing or too short to be useful.
func (p *Processor) Apply(rec *models.Record, result models.EnrichmentResult) (models.RecordUpdate, bool) {
	var update models.RecordUpdate

	if rec.Amount == nil && result.Amount != nil {
		amount := *result.Amount
		update.Amount = &amount
	}

	if rec.Deadline == nil && result.Deadline != nil {
		deadline := extract.FormatDeadline(*result.Deadline)
		update.Deadline = &deadline
	}

	if result.FullText != "" && (rec.Description == nil || utf8.RuneCountInString(*rec.Description) < p.config.MinUsefulDescription) {
		description := page.Truncate(result.FullText, p.config.DescriptionLimit) + "..."
		update.Description = &description
	}

	return update, !update.IsEmpty()
}

// Run enriches a uniform random sample of at most limit records lacking an
// amount. Per-record failures are logged and counted, never fatal.
func (p *Processor) Run(ctx context.Context, limit int) (Summary, error) {
	if p.store == nil {
		return Summary{}, fmt.Errorf("enrichment run requires a store")
	}
	if limit <= 0 {
		limit = p.config.DefaultLimit
	}

	candidates, err := p.store.ListMissingAmount(ctx, 0)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to load enrichment candidates: %w", err)
	}

	summary := Summary{Candidates: len(candidates)}
	if len(candidates) == 0 {
		p.logger.InfoContext(ctx, "no candidates for enrichment")
		return summary, nil
	}

	for i, rec := range sample(candidates, limit) {
		if i > 0 && !p.pause(ctx) {
			break
		}
		summary.Attempted++

		result, err := p.Enrich(ctx, rec.SourceURL)
		if err != nil {
			p.logger.WarnContext(ctx, "enrichment failed", "id", rec.ID, "url", rec.SourceURL, "err", err)
			summary.Failed++
			continue
		}

		update, ok := p.Apply(rec, result)
		if !ok {
			p.observe(false)
			continue
		}

		changed, err := p.store.ApplyEnrichment(ctx, rec.ID, update)
		if err != nil {
			p.logger.ErrorContext(ctx, "failed to persist enrichment", "id", rec.ID, "err", err)
			summary.Failed++
			continue
		}
		p.observe(changed)
		if changed {
			summary.Updated++
		}
	}

	p.logger.InfoContext(ctx, "enrichment complete",
		"candidates", summary.Candidates,
		"attempted", summary.Attempted,
		"updated", summary.Updated,
		"failed", summary.Failed,
	)
	return summary, nil
}

func (p *Processor) observe(updated bool) {
	if p.config.Observer != nil {
		p.config.Observer.ObserveEnrichment(updated)
	}
}

// pause waits out the politeness delay, returning false if ctx ends first
func (p *Processor) pause(ctx context.Context) bool {
	if p.config.Delay <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(p.config.Delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// sample returns up to n records chosen uniformly without replacement
func sample(records []*models.Record, n int) []*models.Record {
	shuffled := make([]*models.Record, len(records))
	copy(shuffled, records)
	rand.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	if n < len(shuffled) {
		shuffled = shuffled[:n]
	}
	return shuffled
}
