// Package app wires the triage components into one service shared by the
// HTTP API and the command line tool.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	scraper "github.com/scholarscout/scraper"
	"github.com/scholarscout/scraper/config"
	"github.com/scholarscout/scraper/db"
	"github.com/scholarscout/scraper/enrich"
	"github.com/scholarscout/scraper/ingest"
	"github.com/scholarscout/scraper/llm"
	"github.com/scholarscout/scraper/metrics"
	"github.com/scholarscout/scraper/scheduler"
	"github.com/scholarscout/scraper/sources"
	"github.com/scholarscout/scraper/storage"
	"github.com/scholarscout/scraper/urlfilter"
)

// Snapshot backends
const (
	SnapshotNone = "none"
	SnapshotFS   = "fs"
	SnapshotS3   = "s3"
)

// SnapshotConfig selects where enrichment archives fetched pages
type SnapshotConfig struct {
	Backend  string // none, fs or s3
	BasePath string // fs only
	S3       storage.S3Config
}

// Config contains service configuration
type Config struct {
	DB          db.Config
	LLM         llm.Config // an empty APIKey disables the AI path
	RulesPath   string     // json5 rules file; empty uses built-in lists
	FailOpen    bool
	Snapshots   SnapshotConfig
	FeedURLs    []string // replaces the rules feed list when set
	EnrichLimit int
	Logger      *slog.Logger
}

// App holds the wired components
type App struct {
	DB          *db.DB
	Rules       config.Rules
	Metrics     *metrics.Metrics
	Gatekeeper  *urlfilter.Gatekeeper
	Classifier  *scraper.Classifier
	Coordinator *ingest.Coordinator
	Enricher    *enrich.Processor
	RSS         *sources.RSS
	Archive     storage.Archive

	config Config
	logger *slog.Logger
}

// GetEnv retrieves an environment variable or returns a default value
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	v, err := strconv.ParseBool(GetEnv(key, strconv.FormatBool(defaultValue)))
	if err != nil {
		return defaultValue
	}
	return v
}

func getEnvInt(key string, defaultValue int) int {
	v, err := strconv.Atoi(GetEnv(key, strconv.Itoa(defaultValue)))
	if err != nil {
		return defaultValue
	}
	return v
}

// ConfigFromEnv reads the service configuration from the environment.
// PostgreSQL is used when DB_DRIVER is postgres or DB_HOST is set,
// otherwise a local SQLite file.
func ConfigFromEnv() Config {
	dbConfig := db.Config{
		Driver: db.DriverSQLite,
		DSN:    GetEnv("SQLITE_PATH", "./scholarships.db"),
	}
	dbHost := GetEnv("DB_HOST", "")
	if GetEnv("DB_DRIVER", "") == db.DriverPostgres || dbHost != "" {
		dbConfig = db.Config{
			Driver: db.DriverPostgres,
			DSN: fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
				GetEnv("DB_HOST", "localhost"),
				GetEnv("DB_PORT", "5432"),
				GetEnv("DB_USER", "scholarships"),
				GetEnv("DB_PASSWORD", "scholarships_dev_pass"),
				GetEnv("DB_NAME", "scholarships"),
			),
		}
	}

	var feeds []string
	for _, f := range strings.Split(GetEnv("RSS_FEEDS", ""), ",") {
		if f = strings.TrimSpace(f); f != "" {
			feeds = append(feeds, f)
		}
	}

	return Config{
		DB: dbConfig,
		LLM: llm.Config{
			APIKey:  GetEnv("OPENAI_API_KEY", ""),
			BaseURL: GetEnv("OPENAI_BASE_URL", llm.DefaultBaseURL),
			Model:   GetEnv("OPENAI_MODEL", llm.DefaultModel),
		},
		RulesPath: GetEnv("TRIAGE_RULES", ""),
		FailOpen:  getEnvBool("VALIDATION_FAIL_OPEN", false),
		Snapshots: SnapshotConfig{
			Backend:  GetEnv("SNAPSHOT_BACKEND", SnapshotNone),
			BasePath: GetEnv("STORAGE_BASE_PATH", "./storage"),
			S3: storage.S3Config{
				Endpoint:        GetEnv("S3_ENDPOINT", ""),
				Region:          GetEnv("S3_REGION", "us-east-1"),
				Bucket:          GetEnv("S3_BUCKET", ""),
				AccessKeyID:     GetEnv("S3_ACCESS_KEY_ID", ""),
				Prefix:          GetEnv("S3_PREFIX", ""),
				SecretAccessKey: GetEnv("S3_SECRET_ACCESS_KEY", ""),
				UsePathStyle:    getEnvBool("S3_USE_PATH_STYLE", false),
			},
		},
		FeedURLs:    feeds,
		EnrichLimit: getEnvInt("ENRICH_LIMIT", enrich.DefaultConfig().DefaultLimit),
	}
}

// New opens the store and builds every component
func New(ctx context.Context, cfg Config) (*App, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	rules, err := config.LoadRules(cfg.RulesPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load rules: %w", err)
	}
	gatekeeper, err := rules.Gatekeeper()
	if err != nil {
		return nil, fmt.Errorf("failed to compile url rules: %w", err)
	}

	archive, err := newArchive(ctx, cfg.Snapshots)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize snapshot storage: %w", err)
	}

	database, err := db.New(cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	m := metrics.New("")
	extractor := rules.Extractor()

	var analyzer scraper.Analyzer
	if cfg.LLM.APIKey != "" {
		analyzer = llm.NewClient(cfg.LLM)
	} else {
		logger.Info("no AI key configured, classifying with heuristics only")
	}

	classifierConfig := scraper.DefaultConfig()
	classifierConfig.Heuristics = rules.Heuristics
	classifierConfig.Gatekeeper = gatekeeper
	classifierConfig.Logger = logger
	classifierConfig.Observer = m
	classifier := scraper.New(classifierConfig, analyzer)

	ingestConfig := ingest.DefaultConfig()
	ingestConfig.Scorer = rules.Scorer()
	ingestConfig.Extractor = extractor
	ingestConfig.Validator = classifier
	ingestConfig.FailOpen = cfg.FailOpen
	ingestConfig.Logger = logger
	ingestConfig.Observer = m

	enrichConfig := enrich.DefaultConfig()
	enrichConfig.Extractor = extractor
	enrichConfig.Archive = archive
	enrichConfig.Logger = logger
	enrichConfig.Observer = m

	rssConfig := sources.DefaultRSSConfig()
	rssConfig.Feeds = rules.Feeds
	if len(cfg.FeedURLs) > 0 {
		rssConfig.Feeds = feedsFromURLs(cfg.FeedURLs, rules.Relevance.Positive)
	}
	rssConfig.Extractor = extractor
	rssConfig.Logger = logger

	if cfg.EnrichLimit <= 0 {
		cfg.EnrichLimit = enrichConfig.DefaultLimit
	}

	return &App{
		DB:          database,
		Rules:       rules,
		Metrics:     m,
		Gatekeeper:  gatekeeper,
		Classifier:  classifier,
		Coordinator: ingest.New(ingestConfig, database),
		Enricher:    enrich.New(enrichConfig, database),
		RSS:         sources.NewRSS(rssConfig),
		Archive:     archive,
		config:      cfg,
		logger:      logger,
	}, nil
}

func newArchive(ctx context.Context, cfg SnapshotConfig) (storage.Archive, error) {
	switch cfg.Backend {
	case "", SnapshotNone:
		return nil, nil
	case SnapshotFS:
		return storage.New(storage.Config{BasePath: cfg.BasePath})
	case SnapshotS3:
		return storage.NewS3Storage(ctx, cfg.S3)
	}
	return nil, fmt.Errorf("unknown snapshot backend %q", cfg.Backend)
}

// feedsFromURLs builds feeds for bare URLs, matching entries on the
// relevance keywords
func feedsFromURLs(urls, keywords []string) []sources.Feed {
	feeds := make([]sources.Feed, 0, len(urls))
	for _, u := range urls {
		feeds = append(feeds, sources.Feed{Name: u, URL: u, Keywords: keywords})
	}
	return feeds
}

// Close releases the store
func (a *App) Close() error {
	return a.DB.Close()
}

// Options returns the ingestion options used for scheduled and pushed
// candidates
func (a *App) Options(skipValidation bool) ingest.Options {
	return ingest.Options{Validate: !skipValidation}
}

// IngestRSS runs one RSS cycle into the store
func (a *App) IngestRSS(ctx context.Context) (ingest.BatchSummary, error) {
	return a.Coordinator.IngestSource(ctx, a.RSS, a.Options(false))
}

// Enrich runs one enrichment pass. limit <= 0 uses the configured limit.
func (a *App) Enrich(ctx context.Context, limit int) (enrich.Summary, error) {
	if limit <= 0 {
		limit = a.config.EnrichLimit
	}
	return a.Enricher.Run(ctx, limit)
}

// Tasks returns the recurring jobs for the scheduler
func (a *App) Tasks() []scheduler.Task {
	return []scheduler.Task{
		{
			Name:     "rss-ingest",
			Interval: scheduler.RSSInterval,
			Run: func(ctx context.Context) error {
				_, err := a.IngestRSS(ctx)
				return err
			},
		},
		{
			Name:     "enrichment",
			Interval: scheduler.EnrichmentInterval,
			Run: func(ctx context.Context) error {
				_, err := a.Enrich(ctx, 0)
				return err
			},
		},
	}
}

// UpdateStats refreshes the record and connection pool gauges
func (a *App) UpdateStats(ctx context.Context) error {
	a.Metrics.UpdateDBStats(a.DB.DB())

	total, err := a.DB.Count(ctx)
	if err != nil {
		return fmt.Errorf("failed to count records: %w", err)
	}
	missing, err := a.DB.CountMissingAmount(ctx)
	if err != nil {
		return fmt.Errorf("failed to count records missing an amount: %w", err)
	}
	a.Metrics.UpdateRecordStats(total, missing)
	return nil
}
