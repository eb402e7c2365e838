package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

var ErrMissingRequired = errors.New("missing required configuration")

type Config struct {
	DBHost string `envconfig:"DB_HOST" default:"postgres"`
	DBPort int    `envconfig:"DB_PORT" default:"5432"`
	DBUser string `envconfig:"DB_USER" default:"knowledgehub"`
	DBPass string `envconfig:"DB_PASS" default:"password"`
	DBName string `envconfig:"DB_NAME" default:"knowledgehub"`

	WeaviateHost   string `envconfig:"WEAVIATE_HOST" default:"localhost:8080"`
	WeaviateScheme string `envconfig:"WEAVIATE_SCHEME" default:"http"`

	NSQLookupd string `envconfig:"NSQ_LOOKUPD" default:"nsqlookupd:4161"`
	NSQDHost   string `envconfig:"NSQD_HOST" default:"nsqd:4150"`
	NSQDHTTP   string `envconfig:"NSQD_HTTP" default:"nsqd:4151"`

	// Content management system (Payload CMS read API)
	CMSBaseURL string `envconfig:"CMS_BASE_URL" default:"http://payload:3000"`
	CMSAPIKey  string `envconfig:"CMS_API_KEY"`

	// Webhook authentication
	WebhookSecret    string        `envconfig:"WEBHOOK_SECRET"`
	WebhookFreshness time.Duration `envconfig:"WEBHOOK_FRESHNESS" default:"5m"`

	GeminiAPIKey string `envconfig:"GEMINI_API_KEY"`

	// Query rewriter (OpenAI-compatible chat endpoint)
	RewriterBaseURL string        `envconfig:"REWRITER_BASE_URL"`
	RewriterModel   string        `envconfig:"REWRITER_MODEL" default:"gpt-4o-mini"`
	RewriterAPIKey  string        `envconfig:"REWRITER_API_KEY"`
	RewriterTimeout time.Duration `envconfig:"REWRITER_TIMEOUT" default:"8s"`
	MaxHistoryTurns int           `envconfig:"MAX_HISTORY_TURNS" default:"5"`

	// Retrieval
	SearchAlpha float64       `envconfig:"SEARCH_ALPHA" default:"0.5"` // dense weight: 0=sparse only, 1=dense only
	SearchTopK  int           `envconfig:"SEARCH_TOP_K" default:"10"`
	LegTimeout  time.Duration `envconfig:"RETRIEVAL_LEG_TIMEOUT" default:"10s"`

	// Sync pipeline
	SyncConcurrency int           `envconfig:"SYNC_CONCURRENCY" default:"8"`
	SyncMaxRetries  int           `envconfig:"SYNC_MAX_RETRIES" default:"5"`
	SyncBackoffBase time.Duration `envconfig:"SYNC_BACKOFF_BASE" default:"2s"`

	// Server
	ServerPort   int    `envconfig:"SERVER_PORT" default:"8081"`
	QueryLogPath string `envconfig:"QUERY_LOG_PATH" default:"data/logs/query.log"`

	MigrationPath string `envconfig:"MIGRATION_PATH" default:"file://migrations"`

	// Resilience
	BootstrapRetryAttempts     int `envconfig:"BOOTSTRAP_RETRY_ATTEMPTS" default:"10"`
	BootstrapRetryDelaySeconds int `envconfig:"BOOTSTRAP_RETRY_DELAY_SECONDS" default:"2"`
}

func Load() (*Config, error) {
	// Try loading .env from current dir and repo root.
	// Ignore errors, as env vars might be set in the shell.
	_ = godotenv.Load(".env")

	cwd, _ := os.Getwd()
	rootEnv := filepath.Join(cwd, "../.env")
	_ = godotenv.Load(rootEnv)

	var cfg Config
	err := envconfig.Process("", &cfg)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.DBHost == "" {
		return fmt.Errorf("%w: DB_HOST", ErrMissingRequired)
	}
	if c.DBUser == "" {
		return fmt.Errorf("%w: DB_USER", ErrMissingRequired)
	}
	if c.DBName == "" {
		return fmt.Errorf("%w: DB_NAME", ErrMissingRequired)
	}
	if c.WebhookSecret == "" {
		return fmt.Errorf("%w: WEBHOOK_SECRET", ErrMissingRequired)
	}
	if c.CMSBaseURL == "" {
		return fmt.Errorf("%w: CMS_BASE_URL", ErrMissingRequired)
	}
	if c.SearchAlpha < 0 || c.SearchAlpha > 1 {
		return fmt.Errorf("SEARCH_ALPHA must be between 0 and 1, got %f", c.SearchAlpha)
	}
	return nil
}
