// Package config defines the configuration for the FloatChat service.
// Configuration is loaded once at process initialization and is immutable
// thereafter, following 12-Factor principles.
//
// Values are resolved from the OS environment, with a .env file as a
// fallback for local development. Any missing required value or invalid
// format fails startup immediately.
package config

import (
	"time"

	"floatchat/internal/types"
)

// SecretString is an alias for types.SecretString, the redacted secret type
// used to prevent accidental logging of sensitive values.
type SecretString = types.SecretString

// Config is the top-level configuration struct. It is populated once during
// startup and never modified. Sub-components receive only the subsets they
// require.
type Config struct {
	Environment string `envconfig:"APP_ENV" default:"local" validate:"oneof=local dev staging prod"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	Server   ServerConfig
	Database DatabaseConfig
	LLM      LLMConfig
	Ingest   IngestConfig
	Chat     ChatConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port           string        `envconfig:"PORT" default:"8080"`
	RequestTimeout time.Duration `envconfig:"REQUEST_TIMEOUT" default:"30s"`
	CORSOrigins    []string      `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
}

// DatabaseConfig holds pgx pool connection and tuning parameters.
type DatabaseConfig struct {
	URL SecretString `envconfig:"DATABASE_URL" validate:"required"`

	MaxConns        int           `envconfig:"DB_MAX_CONNS" default:"10"`
	MinConns        int           `envconfig:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
}

// LLMConfig holds the generative-text service endpoint and limits.
type LLMConfig struct {
	BaseURL string       `envconfig:"LLM_BASE_URL" validate:"required,url"`
	APIKey  SecretString `envconfig:"LLM_API_KEY"`
	Model   string       `envconfig:"LLM_MODEL" default:"llama3"`

	// Timeout bounds a single completion call; the client retries once
	// with backoff before surfacing the upstream as unavailable.
	Timeout      time.Duration `envconfig:"LLM_TIMEOUT" default:"30s"`
	RetryBackoff time.Duration `envconfig:"LLM_RETRY_BACKOFF" default:"2s"`
	MaxTokens    int           `envconfig:"LLM_MAX_TOKENS" default:"1024"`
}

// IngestConfig holds batch ingestion settings.
type IngestConfig struct {
	// IndexURL is the ARGO global profile index; mirrors are tried after it.
	IndexURL    string   `envconfig:"ARGO_INDEX_URL" default:"https://data-argo.ifremer.fr/ar_index_global_prof.txt.gz"`
	Mirrors     []string `envconfig:"ARGO_INDEX_MIRRORS" default:"https://usgodae.org/ftp/outgoing/argo/ar_index_global_prof.txt.gz"`
	DaysBack    int      `envconfig:"INGEST_DAYS_BACK" default:"30"`
	Region      string   `envconfig:"INGEST_REGION"`
	Limit       int      `envconfig:"INGEST_LIMIT" default:"500"`
	Parallelism int      `envconfig:"INGEST_PARALLELISM" default:"4"`
}

// ChatConfig holds grounding limits for the answer composer.
type ChatConfig struct {
	// MaxContextProfiles caps how many retrieved profiles feed the prompt;
	// results beyond the cap are truncated oldest-first and reported.
	MaxContextProfiles int `envconfig:"CHAT_MAX_CONTEXT_PROFILES" default:"50"`

	// AggregateThreshold is the retrieved-set size above which the context
	// switches from per-profile excerpts to aggregated summaries.
	AggregateThreshold int `envconfig:"CHAT_AGGREGATE_THRESHOLD" default:"15"`
}
