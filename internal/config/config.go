// Package config defines the top-level configuration for the up/down
// evaluation tool and provides validation helpers.
package config

import (
	"fmt"
	"math"
	"strings"

	"github.com/quantfold/updownbot/internal/backtest"
	"github.com/quantfold/updownbot/internal/domain"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by UPDOWN_* environment variables.
type Config struct {
	Mode     string `toml:"mode"`
	LogLevel string `toml:"log_level"`

	// SignalsCSV points at a historical signal export. When set, signals are
	// read from the file; otherwise they come from Postgres.
	SignalsCSV string `toml:"signals_csv"`

	// Market restricts the signal set to one market slug (e.g. "btc-updown").
	// Empty means all markets.
	Market string `toml:"market"`

	Strategy  StrategySettings `toml:"strategy"`
	StrategyB StrategySettings `toml:"strategy_b"`
	Grid      backtest.Grid    `toml:"grid"`
	Backtest  BacktestConfig   `toml:"backtest"`

	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
}

// StrategySettings is the TOML shape of a strategy parameter set. It converts
// to domain.StrategyConfig via ToDomain.
type StrategySettings struct {
	Name              string                   `toml:"name"`
	EdgeThresholds    domain.PhaseValues       `toml:"edge_thresholds"`
	MinProbability    domain.PhaseValues       `toml:"min_probability"`
	BlendWeights      domain.BlendWeights      `toml:"blend_weights"`
	RegimeMultipliers domain.RegimeMultipliers `toml:"regime_multipliers"`
	SkipMarkets       []string                 `toml:"skip_markets"`
	MinConfidence     float64                  `toml:"min_confidence"`
}

// ToDomain converts the TOML settings into the domain config the engine runs.
func (s StrategySettings) ToDomain() domain.StrategyConfig {
	cfg := domain.StrategyConfig{
		Name:              s.Name,
		EdgeThresholds:    s.EdgeThresholds,
		MinProbability:    s.MinProbability,
		BlendWeights:      s.BlendWeights,
		RegimeMultipliers: s.RegimeMultipliers,
		MinConfidence:     s.MinConfidence,
	}
	if len(s.SkipMarkets) > 0 {
		cfg.SkipMarkets = make([]string, len(s.SkipMarkets))
		copy(cfg.SkipMarkets, s.SkipMarkets)
	}
	return cfg
}

// BacktestConfig holds engine-level run parameters shared by all modes.
type BacktestConfig struct {
	TradeSize float64 `toml:"trade_size"`
	Folds     int     `toml:"folds"`
	SortBy    string  `toml:"sort_by"`
	Workers   int     `toml:"workers"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Enabled       bool   `toml:"enabled"`
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters for the result cache.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters for report archival.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	Prefix         string `toml:"prefix"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	strategy := StrategySettings{
		Name:           "baseline",
		EdgeThresholds: domain.PhaseValues{Early: 0.05, Mid: 0.04, Late: 0.03},
		MinProbability: domain.PhaseValues{Early: 0.55, Mid: 0.55, Late: 0.55},
		BlendWeights:   domain.BlendWeights{VolImplied: 0.6, Technical: 0.4},
		RegimeMultipliers: domain.RegimeMultipliers{
			Chop:         1.5,
			Range:        1.2,
			TrendAligned: 0.9,
			TrendOpposed: 1.3,
		},
		MinConfidence: 0.5,
	}
	return Config{
		Mode:     "backtest",
		LogLevel: "info",
		Strategy: strategy,
		StrategyB: func() StrategySettings {
			b := strategy
			b.Name = "challenger"
			return b
		}(),
		Backtest: BacktestConfig{
			TradeSize: 5.0,
			Folds:     5,
			SortBy:    "sharpe_ratio",
			Workers:   0,
		},
		Postgres: PostgresConfig{
			Enabled:       false,
			Host:          "localhost",
			Port:          5432,
			Database:      "updownbot",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Enabled:    false,
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
			TLSEnabled: false,
		},
		S3: S3Config{
			Enabled:        false,
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "updownbot-reports",
			Prefix:         "runs",
			UseSSL:         false,
			ForcePathStyle: true,
		},
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"backtest": true,
	"optimize": true,
	"crossval": true,
	"abtest":   true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// validSortMetrics enumerates the accepted values for Backtest.SortBy.
var validSortMetrics = map[string]bool{
	"sharpe_ratio": true,
	"win_rate":     true,
	"total_pnl":    true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: backtest, optimize, crossval, abtest)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	if c.SignalsCSV == "" && !c.Postgres.Enabled {
		errs = append(errs, "no signal source: set signals_csv or enable postgres")
	}

	errs = append(errs, validateStrategy("strategy", c.Strategy)...)
	if strings.ToLower(c.Mode) == "abtest" {
		errs = append(errs, validateStrategy("strategy_b", c.StrategyB)...)
	}

	if c.Backtest.TradeSize <= 0 || !isFinite(c.Backtest.TradeSize) {
		errs = append(errs, fmt.Sprintf("backtest: trade_size must be a positive finite number, got %v", c.Backtest.TradeSize))
	}
	if c.Backtest.Folds < 2 {
		errs = append(errs, fmt.Sprintf("backtest: folds must be >= 2, got %d", c.Backtest.Folds))
	}
	if !validSortMetrics[c.Backtest.SortBy] {
		errs = append(errs, fmt.Sprintf("backtest: unknown sort_by %q (valid: sharpe_ratio, win_rate, total_pnl)", c.Backtest.SortBy))
	}
	if c.Backtest.Workers < 0 {
		errs = append(errs, "backtest: workers must be >= 0 (0 means all CPUs)")
	}

	if c.Postgres.Enabled {
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Host == "" {
				errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
			}
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
			}
			if c.Postgres.Database == "" {
				errs = append(errs, "postgres: database must not be empty")
			}
		}
		if c.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns < 0 {
			errs = append(errs, "postgres: pool_min_conns must be >= 0")
		}
		if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
		}
	}

	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	if c.S3.Enabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty")
		}
		if c.S3.Region == "" {
			errs = append(errs, "s3: region must not be empty")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// validateStrategy checks one strategy table. Thresholds and probabilities
// must be finite, multipliers non-negative, and the blend weights must sum to
// roughly 1.
func validateStrategy(section string, s StrategySettings) []string {
	var errs []string

	for _, f := range []struct {
		name string
		val  float64
	}{
		{"edge_thresholds.early", s.EdgeThresholds.Early},
		{"edge_thresholds.mid", s.EdgeThresholds.Mid},
		{"edge_thresholds.late", s.EdgeThresholds.Late},
		{"min_probability.early", s.MinProbability.Early},
		{"min_probability.mid", s.MinProbability.Mid},
		{"min_probability.late", s.MinProbability.Late},
		{"min_confidence", s.MinConfidence},
	} {
		if !isFinite(f.val) {
			errs = append(errs, fmt.Sprintf("%s: %s must be finite, got %v", section, f.name, f.val))
		}
	}

	for _, m := range []struct {
		name string
		val  float64
	}{
		{"regime_multipliers.chop", s.RegimeMultipliers.Chop},
		{"regime_multipliers.range", s.RegimeMultipliers.Range},
		{"regime_multipliers.trend_aligned", s.RegimeMultipliers.TrendAligned},
		{"regime_multipliers.trend_opposed", s.RegimeMultipliers.TrendOpposed},
	} {
		if !isFinite(m.val) || m.val < 0 {
			errs = append(errs, fmt.Sprintf("%s: %s must be a non-negative finite number, got %v", section, m.name, m.val))
		}
	}

	sum := s.BlendWeights.VolImplied + s.BlendWeights.Technical
	if !isFinite(sum) || math.Abs(sum-1.0) > 0.05 {
		errs = append(errs, fmt.Sprintf("%s: blend_weights must sum to ~1.0, got %v", section, sum))
	}

	for i, p := range []float64{s.MinProbability.Early, s.MinProbability.Mid, s.MinProbability.Late} {
		if p < 0 || p > 1 {
			phase := []string{"early", "mid", "late"}[i]
			errs = append(errs, fmt.Sprintf("%s: min_probability.%s must be in [0, 1], got %v", section, phase, p))
		}
	}

	return errs
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
