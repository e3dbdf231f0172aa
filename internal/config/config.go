// Package config loads PreventIA's typed configuration from a JSON file
// with environment-variable overrides, in a Default/Load/env-override
// shape.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/preventia/preventia-core/internal/errs"
	"github.com/preventia/preventia-core/internal/logging"
)

// SentimentConfig holds the NLP sentiment thresholds (§6).
type SentimentConfig struct {
	PositiveThreshold float64 `json:"positive_threshold"`
	NegativeThreshold float64 `json:"negative_threshold"`
}

// KeywordsConfig holds NLP keyword-extraction tuning.
type KeywordsConfig struct {
	TopN int `json:"top_n"`
}

// NLPConfig groups NLP pipeline configuration.
type NLPConfig struct {
	Sentiment SentimentConfig `json:"sentiment"`
	Keywords  KeywordsConfig  `json:"keywords"`
}

// OrchestratorConfig groups scraper orchestrator configuration.
type OrchestratorConfig struct {
	Workers int `json:"workers"`
}

// RetentionConfig groups data-retention configuration.
type RetentionConfig struct {
	DefaultDays int `json:"default_days"`
}

// SourcesConfig groups Source Registry configuration.
type SourcesConfig struct {
	// FullContentOverrideHash is a bcrypt hash of the elevated-privilege
	// override token required to register a source with content_type=full.
	// Empty means the full override path is disabled entirely.
	FullContentOverrideHash string `json:"full_content_override_hash"`
}

// DatabaseConfig groups persistence-layer connection settings.
type DatabaseConfig struct {
	URL            string `json:"url"`
	MaxConnections int32  `json:"max_connections"`
	MigrationsPath string `json:"migrations_path"`
}

// Config is PreventIA's root configuration object, matching spec.md §6's
// enumerated configuration and environment sections.
type Config struct {
	UserAgent            string          `json:"user_agent"`
	RespectRobotsTxt     bool            `json:"respect_robots_txt"`
	RequestDelaySeconds  float64         `json:"request_delay_seconds"`
	RobotsCacheTTLHours  int             `json:"robots_cache_ttl_hours"`
	NLP                  NLPConfig       `json:"nlp"`
	Orchestrator         OrchestratorConfig `json:"orchestrator"`
	Retention            RetentionConfig `json:"retention"`
	Sources              SourcesConfig   `json:"sources"`
	Database             DatabaseConfig  `json:"database"`
	SentryDSN            string          `json:"sentry_dsn"`
	LogLevel             string          `json:"log_level"`
	LogFormat            string          `json:"log_format"`
	APIAddr              string          `json:"api_addr"`
	SearchIndexPath      string          `json:"search_index_path"`
	ExtractorsConfigPath string          `json:"extractors_config_path"`
}

// Default returns the baseline configuration, matching spec.md §6's
// defaults exactly.
func Default() *Config {
	return &Config{
		RespectRobotsTxt:    true,
		RequestDelaySeconds: 2.0,
		RobotsCacheTTLHours: 24,
		NLP: NLPConfig{
			Sentiment: SentimentConfig{PositiveThreshold: 0.3, NegativeThreshold: -0.3},
			Keywords:  KeywordsConfig{TopN: 15},
		},
		Orchestrator: OrchestratorConfig{Workers: 4},
		Retention:    RetentionConfig{DefaultDays: 365},
		Database: DatabaseConfig{
			MaxConnections: 10,
			MigrationsPath: "file://migrations",
		},
		LogLevel:        "info",
		LogFormat:       "text",
		APIAddr:              ":8080",
		SearchIndexPath:      "data/articles.bleve",
		ExtractorsConfigPath: "config/extractors.json",
	}
}

// Load reads a JSON configuration file (if path is non-empty and exists)
// layered over Default(), then applies environment-variable overrides, and
// finally validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, errs.Wrap(errs.KindConfiguration, "read config file", err)
			}
		} else if err := json.Unmarshal(data, cfg); err != nil {
			return nil, errs.Wrap(errs.KindConfiguration, "parse config file", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("USER_AGENT"); v != "" {
		cfg.UserAgent = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("SENTRY_DSN"); v != "" {
		cfg.SentryDSN = v
	}
	if v := os.Getenv("PREVENTIA_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("PREVENTIA_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}
	if v := os.Getenv("PREVENTIA_API_ADDR"); v != "" {
		cfg.APIAddr = v
	}
	if v := os.Getenv("PREVENTIA_RESPECT_ROBOTS_TXT"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.RespectRobotsTxt = b
		}
	}
	if v := os.Getenv("PREVENTIA_REQUEST_DELAY_SECONDS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.RequestDelaySeconds = f
		}
	}
	if v := os.Getenv("PREVENTIA_ROBOTS_CACHE_TTL_HOURS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RobotsCacheTTLHours = n
		}
	}
	if v := os.Getenv("PREVENTIA_ORCHESTRATOR_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Orchestrator.Workers = n
		}
	}
	if v := os.Getenv("PREVENTIA_RETENTION_DEFAULT_DAYS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Retention.DefaultDays = n
		}
	}
	if v := os.Getenv("PREVENTIA_SOURCES_FULL_OVERRIDE_HASH"); v != "" {
		cfg.Sources.FullContentOverrideHash = v
	}
	if v := os.Getenv("PREVENTIA_SEARCH_INDEX_PATH"); v != "" {
		cfg.SearchIndexPath = v
	}
	if v := os.Getenv("PREVENTIA_EXTRACTORS_CONFIG_PATH"); v != "" {
		cfg.ExtractorsConfigPath = v
	}
}

// Validate fails closed on missing required configuration per §7's
// ConfigurationFail category: the process refuses to start.
func (c *Config) Validate() error {
	if c.UserAgent == "" {
		return errs.New(errs.KindConfiguration, "user_agent is required")
	}
	if c.Database.URL == "" {
		return errs.New(errs.KindConfiguration, "DATABASE_URL is required")
	}
	if c.RequestDelaySeconds < 1.0 {
		return errs.New(errs.KindConfiguration, fmt.Sprintf("request_delay_seconds must be >= 1.0, got %v", c.RequestDelaySeconds))
	}
	if !c.RespectRobotsTxt {
		logging.Default().Warn("respect_robots_txt is disabled; this must never be true in production")
	}
	return nil
}

// LogLevelValue parses c.LogLevel, falling back to info on error.
func (c *Config) LogLevelValue() logging.Level {
	lvl, err := logging.ParseLevel(c.LogLevel)
	if err != nil {
		return logging.InfoLevel
	}
	return lvl
}

// LogFormatValue parses c.LogFormat, falling back to text.
func (c *Config) LogFormatValue() logging.Format {
	if c.LogFormat == "json" {
		return logging.JSONFormat
	}
	return logging.TextFormat
}
