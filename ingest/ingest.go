// Package ingest decides whether a scraped candidate becomes a stored
// scholarship record.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/scholarscout/scraper/db"
	"github.com/scholarscout/scraper/extract"
	"github.com/scholarscout/scraper/models"
	"github.com/scholarscout/scraper/relevance"
	"github.com/scholarscout/scraper/sources"
)

// Store is the persistence the coordinator needs; *db.DB satisfies it
type Store interface {
	GetByURL(ctx context.Context, sourceURL string) (*models.Record, error)
	CreateRecord(ctx context.Context, rec *models.Record) (int64, error)
}

// Validator classifies a candidate URL; *scraper.Classifier satisfies it
type Validator interface {
	ClassifyURL(ctx context.Context, targetURL string) models.ClassificationResult
}

// Observer receives one call per ingestion decision
type Observer interface {
	ObserveIngest(platform models.Platform, reason models.IngestReason)
}

// Options control a single ingestion
type Options struct {
	Validate bool // run the content classifier on source_url before saving
}

// Config contains coordinator configuration
type Config struct {
	Scorer        *relevance.Scorer
	Extractor     *extract.Extractor
	Validator     Validator // required when Options.Validate is set
	FailOpen      bool      // save candidates whose validation verdict is UNKNOWN
	MaxTitleRunes int
	Delay         time.Duration // pause after each validated candidate in a batch; 0 disables
	Logger        *slog.Logger
	Observer      Observer
}

// DefaultConfig returns default coordinator configuration
func DefaultConfig() Config {
	return Config{
		MaxTitleRunes: 500,
		Delay:         2 * time.Second,
	}
}

// BatchSummary counts outcomes of IngestBatch
type BatchSummary struct {
	Total    int                         `json:"total"`
	Saved    int                         `json:"saved"`
	Errors   int                         `json:"errors"`
	ByReason map[models.IngestReason]int `json:"by_reason"`
}

// Coordinator is the Ingestion Coordinator. It is the only writer of new
// records.
type Coordinator struct {
	config    Config
	store     Store
	scorer    *relevance.Scorer
	extractor *extract.Extractor
	logger    *slog.Logger
}

// New creates a Coordinator
func New(config Config, store Store) *Coordinator {
	if config.MaxTitleRunes <= 0 {
		config.MaxTitleRunes = DefaultConfig().MaxTitleRunes
	}

	scorer := config.Scorer
	if scorer == nil {
		scorer = relevance.New(relevance.DefaultKeywords())
	}
	extractor := config.Extractor
	if extractor == nil {
		extractor = extract.New(extract.DefaultConfig())
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Coordinator{
		config:    config,
		store:     store,
		scorer:    scorer,
		extractor: extractor,
		logger:    logger,
	}
}

// Ingest runs the acceptance pipeline for one candidate: duplicate check,
// relevance gate, optional classifier validation, amount backfill, insert.
// Rejections are outcomes, not errors; only store failures are returned.
func (c *Coordinator) Ingest(ctx context.Context, candidate models.Candidate, opts Options) (models.IngestOutcome, error) {
	sourceURL := strings.TrimSpace(candidate.SourceURL)
	if sourceURL == "" || strings.TrimSpace(candidate.Title) == "" {
		return c.reject(ctx, candidate, models.IngestOutcome{Reason: models.ReasonInvalid}), nil
	}
	candidate.SourceURL = sourceURL

	existing, err := c.store.GetByURL(ctx, sourceURL)
	if err != nil {
		return models.IngestOutcome{}, fmt.Errorf("duplicate check failed: %w", err)
	}
	if existing != nil {
		return c.reject(ctx, candidate, models.IngestOutcome{Reason: models.ReasonDuplicate, RecordID: existing.ID}), nil
	}

	description := candidate.DescriptionText()
	score := c.scorer.Score(description)
	if score <= 0 {
		return c.reject(ctx, candidate, models.IngestOutcome{Reason: models.ReasonLowRelevance, Score: score}), nil
	}

	var verdict *models.ClassificationResult
	if opts.Validate {
		if c.config.Validator == nil {
			return models.IngestOutcome{}, errors.New("validation requested but no validator is configured")
		}
		result := c.config.Validator.ClassifyURL(ctx, sourceURL)
		verdict = &result
		if !c.accepts(result) {
			return c.reject(ctx, candidate, models.IngestOutcome{
				Reason:         models.ReasonClassifierRejected,
				Score:          score,
				Classification: verdict,
			}), nil
		}
	}

	rec := c.buildRecord(candidate, description)

	id, err := c.store.CreateRecord(ctx, rec)
	if errors.Is(err, db.ErrDuplicate) {
		// lost a race with a concurrent ingestion of the same URL
		return c.reject(ctx, candidate, models.IngestOutcome{Reason: models.ReasonDuplicate, Score: score, Classification: verdict}), nil
	}
	if err != nil {
		return models.IngestOutcome{}, fmt.Errorf("failed to save record: %w", err)
	}

	outcome := models.IngestOutcome{
		Accepted:       true,
		RecordID:       id,
		Reason:         models.ReasonSaved,
		Score:          score,
		Classification: verdict,
	}
	c.logger.InfoContext(ctx, "scholarship saved",
		"id", id,
		"url", sourceURL,
		"platform", candidate.Platform,
		"score", score,
		"amount", ptrValue(rec.Amount),
	)
	c.observe(candidate.Platform, outcome.Reason)
	return outcome, nil
}

// accepts applies the validation policy to a classifier verdict
func (c *Coordinator) accepts(result models.ClassificationResult) bool {
	if result.IsWorthSaving() {
		return true
	}
	return result.Classification == models.ClassUnknown && c.config.FailOpen
}

func (c *Coordinator) buildRecord(candidate models.Candidate, description string) *models.Record {
	// extracted amount wins, candidate amount is the fallback
	amount := candidate.Amount
	if extracted, ok := c.extractor.Amount(description); ok {
		amount = &extracted
	}

	platform := candidate.Platform
	if platform == "" {
		platform = models.PlatformGeneral
	}

	var raw *string
	if candidate.Description != nil {
		text := *candidate.Description
		raw = &text
	}

	title := strings.TrimSpace(candidate.Title)
	if utf8.RuneCountInString(title) > c.config.MaxTitleRunes {
		title = string([]rune(title)[:c.config.MaxTitleRunes])
	}

	return &models.Record{
		Title:       title,
		SourceURL:   candidate.SourceURL,
		Description: candidate.Description,
		Amount:      amount,
		Deadline:    candidate.Deadline,
		Platform:    platform,
		RawText:     raw,
	}
}

func (c *Coordinator) reject(ctx context.Context, candidate models.Candidate, outcome models.IngestOutcome) models.IngestOutcome {
	attrs := []any{"url", candidate.SourceURL, "reason", outcome.Reason}
	switch outcome.Reason {
	case models.ReasonLowRelevance:
		attrs = append(attrs, "title", candidate.Title, "score", outcome.Score)
	case models.ReasonClassifierRejected:
		if outcome.Classification != nil {
			attrs = append(attrs,
				"classification", outcome.Classification.Classification,
				"classifier_reason", outcome.Classification.Reason,
			)
		}
	}
	c.logger.InfoContext(ctx, "candidate not saved", attrs...)
	c.observe(candidate.Platform, outcome.Reason)
	return outcome
}

func (c *Coordinator) observe(platform models.Platform, reason models.IngestReason) {
	if c.config.Observer == nil {
		return
	}
	if platform == "" {
		platform = models.PlatformGeneral
	}
	c.config.Observer.ObserveIngest(platform, reason)
}

// IngestBatch ingests candidates sequentially. A failing item is logged and
// counted without affecting the rest of the batch.
func (c *Coordinator) IngestBatch(ctx context.Context, candidates []models.Candidate, opts Options) BatchSummary {
	summary := BatchSummary{ByReason: map[models.IngestReason]int{}}

	// set when the previous candidate's page was fetched by the validator
	fetched := false
	for _, candidate := range candidates {
		if ctx.Err() != nil {
			break
		}
		if fetched && !c.pause(ctx) {
			break
		}
		summary.Total++

		outcome, err := c.Ingest(ctx, candidate, opts)
		if err != nil {
			c.logger.ErrorContext(ctx, "ingestion failed", "url", candidate.SourceURL, "err", err)
			summary.Errors++
			fetched = false
			continue
		}
		fetched = outcome.Classification != nil
		summary.ByReason[outcome.Reason]++
		if outcome.Accepted {
			summary.Saved++
		}
	}

	return summary
}

// pause waits out the politeness delay. It reports false if ctx ends first.
func (c *Coordinator) pause(ctx context.Context) bool {
	if c.config.Delay <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(c.config.Delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func ptrValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// IngestSource fetches one cycle of candidates from src and ingests them
func (c *Coordinator) IngestSource(ctx context.Context, src sources.Source, opts Options) (BatchSummary, error) {
	candidates, err := src.Fetch(ctx)
	if err != nil {
		return BatchSummary{}, fmt.Errorf("source %s: %w", src.Name(), err)
	}

	summary := c.IngestBatch(ctx, candidates, opts)
	c.logger.InfoContext(ctx, "source cycle complete",
		"source", src.Name(),
		"total", summary.Total,
		"saved", summary.Saved,
		"errors", summary.Errors,
	)
	return summary, nil
}
