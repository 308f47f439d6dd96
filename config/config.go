package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"market-rankings/database"
	"market-rankings/distribution"
	"market-rankings/momentum"
	"market-rankings/notifications"
	"market-rankings/ranking"
)

// Config holds application configuration
type Config struct {
	// Database configuration
	Database database.Config

	// Redis configuration
	Redis RedisConfig

	Momentum     MomentumConfig
	Ranking      RankingConfig
	Distribution DistributionConfig
	Schedule     ScheduleConfig

	// Optional run-outcome webhook; disabled when WEBHOOK_URL is empty
	Webhook notifications.WebhookConfig

	HTTPPort  string
	LogLevel  string
	LogFormat string
}

// RedisConfig holds the optional results cache settings
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     string
	Password string
	TTL      time.Duration
}

// MomentumConfig holds scorer parameters
type MomentumConfig struct {
	TopN        int // scores kept in the cached leaderboard
	WeightsFile string
	Weights     momentum.Weights
}

// RankingConfig holds cross-sectional ranking parameters
type RankingConfig struct {
	Key                  string
	TieBreak             string
	LookbackCalendarDays []int
	Workers              int
	UnitTimeout          time.Duration
	Granularities        []string
}

// DistributionConfig holds distribution-day detector parameters
type DistributionConfig struct {
	Symbols      []string
	LookbackDays int
	HistoryRows  int // bars read per symbol; must cover the lookback plus forward rallies
}

// ScheduleConfig holds cron specs for serve mode. An empty spec disables the job.
type ScheduleConfig struct {
	Momentum      string
	Rankings      string
	Distribution  string
	NotifyChannel string
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() *Config {
	// Load .env file if exists
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("No .env file found, using environment variables")
	}

	return &Config{
		Database: database.Config{
			Host:         getEnvOrDefault("DB_HOST", "localhost"),
			Port:         getEnvInt("DB_PORT", 5432),
			DBName:       getEnvOrDefault("DB_NAME", "stocks"),
			User:         getEnvOrDefault("DB_USER", "postgres"),
			Password:     getEnvOrDefault("DB_PASSWORD", ""),
			SSLMode:      getEnvOrDefault("DB_SSLMODE", "disable"),
			MaxOpenConns: getEnvInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns: getEnvInt("DB_MAX_IDLE_CONNS", 5),
		},

		Redis: RedisConfig{
			Enabled:  getEnvBool("REDIS_ENABLED", false),
			Host:     getEnvOrDefault("REDIS_HOST", "localhost"),
			Port:     getEnvOrDefault("REDIS_PORT", "6379"),
			Password: getEnvOrDefault("REDIS_PASSWORD", ""),
			TTL:      getEnvDuration("REDIS_TTL", 24*time.Hour),
		},

		Momentum: MomentumConfig{
			TopN:        getEnvInt("MOMENTUM_TOP_N", 100),
			WeightsFile: getEnvOrDefault("RANKER_WEIGHTS_FILE", ""),
			Weights:     momentum.DefaultWeights(),
		},

		Ranking: RankingConfig{
			Key:                  getEnvOrDefault("RANKING_KEY", string(ranking.ByPerformance1D)),
			TieBreak:             getEnvOrDefault("RANKING_TIE_BREAK", string(ranking.TieBreakKey)),
			LookbackCalendarDays: getEnvIntList("RANKING_LOOKBACK_CALENDAR_DAYS", []int{7, 28, 84}),
			Workers:              getEnvInt("RANKING_WORKERS", 4),
			UnitTimeout:          getEnvDuration("RANKING_UNIT_TIMEOUT", 2*time.Minute),
			Granularities:        getEnvList("RANKING_GRANULARITIES", []string{"sector", "industry"}),
		},

		Distribution: DistributionConfig{
			Symbols:      getEnvList("DISTRIBUTION_SYMBOLS", []string{"SPY", "QQQ", "IWM"}),
			LookbackDays: getEnvInt("DISTRIBUTION_LOOKBACK_DAYS", 25),
			HistoryRows:  getEnvInt("DISTRIBUTION_HISTORY_ROWS", 90),
		},

		Schedule: ScheduleConfig{
			Momentum:      getEnvOrDefault("SCHEDULE_MOMENTUM", "0 30 18 * * 1-5"),
			Rankings:      getEnvOrDefault("SCHEDULE_RANKINGS", "0 45 18 * * 1-5"),
			Distribution:  getEnvOrDefault("SCHEDULE_DISTRIBUTION", "0 0 19 * * 1-5"),
			NotifyChannel: getEnvOrDefault("NOTIFY_CHANNEL", "loaders_done"),
		},

		Webhook: notifications.WebhookConfig{
			URL:        getEnvOrDefault("WEBHOOK_URL", ""),
			Method:     getEnvOrDefault("WEBHOOK_METHOD", "POST"),
			AuthType:   getEnvOrDefault("WEBHOOK_AUTH_TYPE", ""),
			AuthHeader: getEnvOrDefault("WEBHOOK_AUTH_HEADER", ""),
			AuthValue:  getEnvOrDefault("WEBHOOK_AUTH_VALUE", ""),
			Retries:    getEnvInt("WEBHOOK_RETRIES", 3),
			RetryDelay: getEnvDuration("WEBHOOK_RETRY_DELAY", 5*time.Second),
			Statuses:   getEnvList("WEBHOOK_STATUSES", []string{"failed", "partial"}),
		},

		HTTPPort:  getEnvOrDefault("HTTP_PORT", "8080"),
		LogLevel:  getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat: getEnvOrDefault("LOG_FORMAT", "console"),
	}
}

// Load reads the environment, applies the weights file if set and validates the result
func Load() (*Config, error) {
	cfg := LoadFromEnv()
	if cfg.Momentum.WeightsFile != "" {
		w, err := LoadWeightsFile(cfg.Momentum.WeightsFile)
		if err != nil {
			return nil, err
		}
		cfg.Momentum.Weights = w
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every section and joins the failures
func (c *Config) Validate() error {
	var errs []error

	if err := c.Database.Validate(); err != nil {
		errs = append(errs, err)
	}

	if _, err := ranking.ParseSortKey(c.Ranking.Key); err != nil {
		errs = append(errs, database.NewValidationErrorWithValue("RANKING_KEY", err.Error(), c.Ranking.Key))
	}
	if _, err := ranking.ParseTieBreak(c.Ranking.TieBreak); err != nil {
		errs = append(errs, database.NewValidationErrorWithValue("RANKING_TIE_BREAK", err.Error(), c.Ranking.TieBreak))
	}
	if _, err := ranking.LookbackWindowsFromDays(c.Ranking.LookbackCalendarDays); err != nil {
		errs = append(errs, database.NewValidationErrorWithValue("RANKING_LOOKBACK_CALENDAR_DAYS", err.Error(), c.Ranking.LookbackCalendarDays))
	}
	if _, err := c.Ranking.ParsedGranularities(); err != nil {
		errs = append(errs, database.NewValidationErrorWithValue("RANKING_GRANULARITIES", err.Error(), c.Ranking.Granularities))
	}
	if c.Ranking.Workers <= 0 {
		errs = append(errs, database.NewValidationErrorWithValue("RANKING_WORKERS", "must be positive", c.Ranking.Workers))
	}
	if c.Ranking.UnitTimeout <= 0 {
		errs = append(errs, database.NewValidationErrorWithValue("RANKING_UNIT_TIMEOUT", "must be positive", c.Ranking.UnitTimeout))
	}

	if c.Distribution.LookbackDays <= 0 {
		errs = append(errs, database.NewValidationErrorWithValue("DISTRIBUTION_LOOKBACK_DAYS", "must be positive", c.Distribution.LookbackDays))
	}
	if c.Distribution.HistoryRows <= c.Distribution.LookbackDays {
		errs = append(errs, database.NewValidationErrorWithValue("DISTRIBUTION_HISTORY_ROWS", "must exceed the lookback", c.Distribution.HistoryRows))
	}
	if c.Momentum.TopN < 0 {
		errs = append(errs, database.NewValidationErrorWithValue("MOMENTUM_TOP_N", "must not be negative", c.Momentum.TopN))
	}
	if err := validateWeights(c.Momentum.Weights); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// Ranker builds the configured ranker. Call after Validate.
func (r RankingConfig) Ranker() (*ranking.Ranker, error) {
	key, err := ranking.ParseSortKey(r.Key)
	if err != nil {
		return nil, err
	}
	tb, err := ranking.ParseTieBreak(r.TieBreak)
	if err != nil {
		return nil, err
	}
	windows, err := ranking.LookbackWindowsFromDays(r.LookbackCalendarDays)
	if err != nil {
		return nil, err
	}
	return &ranking.Ranker{Key: key, TieBreak: tb, Windows: windows}, nil
}

// ParsedGranularities validates the configured granularity names
func (r RankingConfig) ParsedGranularities() ([]ranking.Granularity, error) {
	if len(r.Granularities) == 0 {
		return nil, fmt.Errorf("at least one granularity is required")
	}
	out := make([]ranking.Granularity, 0, len(r.Granularities))
	for _, name := range r.Granularities {
		g, err := ranking.ParseGranularity(name)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, nil
}

// Rules returns the detector rules with the configured lookback
func (d DistributionConfig) Rules() distribution.Rules {
	rules := distribution.DefaultRules()
	rules.LookbackDays = d.LookbackDays
	return rules
}

// getEnvInt gets environment variable as int or returns default value
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	intValue, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		log.Warn().Str("key", key).Str("value", value).Msg("⚠️ Invalid integer, using default")
		return defaultValue
	}
	return intValue
}

// getEnvBool accepts the strconv.ParseBool spellings
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		return defaultValue
	}
	return b
}

// getEnvDuration parses Go duration syntax ("90s", "2m")
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		log.Warn().Str("key", key).Str("value", value).Msg("⚠️ Invalid duration, using default")
		return defaultValue
	}
	return d
}

// getEnvList splits a comma separated variable, dropping empty items
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// getEnvIntList parses a comma separated list of ints; any bad item yields the default
func getEnvIntList(key string, defaultValue []int) []int {
	items := getEnvList(key, nil)
	if items == nil {
		return defaultValue
	}
	out := make([]int, 0, len(items))
	for _, item := range items {
		n, err := strconv.Atoi(item)
		if err != nil {
			log.Warn().Str("key", key).Str("value", item).Msg("⚠️ Invalid integer list, using default")
			return defaultValue
		}
		out = append(out, n)
	}
	return out
}

// getEnvOrDefault gets environment variable or returns default value
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
