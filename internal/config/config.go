package config

import (
	"errors"
	"fmt"
	"io"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

var validLogLevels = []string{"debug", "info", "warn", "error"}

// Config is the root application configuration.
type Config struct {
	Server    ServerConfig
	GitHub    GitHubConfig
	RateLimit RateLimitConfig
	Retry     RetryConfig
	Collector CollectorConfig
	Cache     CacheConfig
	Health    HealthConfig
	Telemetry TelemetryConfig
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr"`
	LogLevel   string `yaml:"log_level"`
}

// GitHubConfig configures upstream hosting API interactions.
type GitHubConfig struct {
	APIBaseURL     string
	RequestTimeout time.Duration
	FallbackToken  string
	App            AppAuthConfig
}

// AppAuthConfig configures an optional GitHub App installation used as the
// service credential when neither a caller token nor a fallback token is set.
type AppAuthConfig struct {
	Enabled        bool   `yaml:"enabled"`
	AppID          int64  `yaml:"app_id"`
	InstallationID int64  `yaml:"installation_id"`
	PrivateKeyPath string `yaml:"private_key_path"`
}

// RateLimitConfig configures rate-limit pacing controls.
type RateLimitConfig struct {
	MinRemainingThreshold int
	MinResetBuffer        time.Duration
	SecondaryLimitBackoff time.Duration
}

// RetryConfig configures retries for upstream calls.
type RetryConfig struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// CollectorConfig tunes repository discovery and commit collection.
type CollectorConfig struct {
	MaxUserRepoPages          int
	MaxOrgRepoPages           int
	OrgRepoLimit              int
	PersonalRepoLimit         int
	MaxRepos                  int
	WaveSize                  int
	WaveDelay                 time.Duration
	OrgCommitPages            int
	PersonalCommitPages       int
	PageEstimateMultiplier    int
	MatchedEstimateMultiplier int
	RecordEstimateMultiplier  int
}

// WithDefaults returns a copy with zero-valued tunables replaced by the
// production defaults.
func (c CollectorConfig) WithDefaults() CollectorConfig {
	if c.MaxUserRepoPages <= 0 {
		c.MaxUserRepoPages = 10
	}
	if c.MaxOrgRepoPages <= 0 {
		c.MaxOrgRepoPages = 10
	}
	if c.OrgRepoLimit <= 0 {
		c.OrgRepoLimit = 10
	}
	if c.PersonalRepoLimit <= 0 {
		c.PersonalRepoLimit = 10
	}
	if c.MaxRepos <= 0 {
		c.MaxRepos = 20
	}
	if c.WaveSize <= 0 {
		c.WaveSize = 5
	}
	if c.WaveDelay <= 0 {
		c.WaveDelay = 500 * time.Millisecond
	}
	if c.OrgCommitPages <= 0 {
		c.OrgCommitPages = 10
	}
	if c.PersonalCommitPages <= 0 {
		c.PersonalCommitPages = 5
	}
	if c.PageEstimateMultiplier <= 0 {
		c.PageEstimateMultiplier = 5
	}
	if c.MatchedEstimateMultiplier <= 0 {
		c.MatchedEstimateMultiplier = 20
	}
	if c.RecordEstimateMultiplier <= 0 {
		c.RecordEstimateMultiplier = 10
	}
	return c
}

// CacheConfig configures the stats result cache.
type CacheConfig struct {
	Backend       string
	TTL           time.Duration
	Namespace     string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// HealthConfig configures health probe behavior.
type HealthConfig struct {
	GitHubProbeInterval time.Duration
}

// TelemetryConfig configures OpenTelemetry behavior.
type TelemetryConfig struct {
	OTELEnabled          bool
	OTELTraceMode        string
	OTELTraceSampleRatio float64
}

// Load reads configuration from YAML and validates the result.
func Load(reader io.Reader) (*Config, error) {
	if reader == nil {
		return nil, fmt.Errorf("config reader is nil")
	}

	decoder := yaml.NewDecoder(reader)
	decoder.KnownFields(true)

	var raw rawConfig
	if err := decoder.Decode(&raw); err != nil {
		return nil, fmt.Errorf("unmarshal yaml: %w", err)
	}

	cfg := raw.toConfig()
	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate validates configuration values.
func (c *Config) Validate() error {
	var errs []string

	if !slices.Contains(validLogLevels, c.Server.LogLevel) {
		errs = append(errs, "server.log_level must be one of debug|info|warn|error")
	}

	if c.GitHub.RequestTimeout <= 0 {
		errs = append(errs, "github.request_timeout must be > 0")
	}
	if c.GitHub.App.Enabled {
		if c.GitHub.App.AppID <= 0 {
			errs = append(errs, "github.app.app_id must be > 0 when github.app.enabled=true")
		}
		if c.GitHub.App.InstallationID <= 0 {
			errs = append(errs, "github.app.installation_id must be > 0 when github.app.enabled=true")
		}
		if c.GitHub.App.PrivateKeyPath == "" {
			errs = append(errs, "github.app.private_key_path is required when github.app.enabled=true")
		}
	}

	if c.Collector.WaveSize <= 0 {
		errs = append(errs, "collector.wave_size must be > 0")
	}
	if c.Collector.PageEstimateMultiplier <= 0 {
		errs = append(errs, "collector.page_estimate_multiplier must be > 0")
	}
	if c.Collector.MatchedEstimateMultiplier <= 0 {
		errs = append(errs, "collector.matched_estimate_multiplier must be > 0")
	}
	if c.Collector.RecordEstimateMultiplier <= 0 {
		errs = append(errs, "collector.record_estimate_multiplier must be > 0")
	}
	if c.Collector.MaxRepos < c.Collector.WaveSize {
		errs = append(errs, "collector.max_repos must be >= collector.wave_size")
	}

	if c.Cache.Backend != "memory" && c.Cache.Backend != "redis" {
		errs = append(errs, "cache.backend must be memory or redis")
	}
	if c.Cache.Backend == "redis" && c.Cache.RedisAddr == "" {
		errs = append(errs, "cache.redis_addr is required when cache.backend=redis")
	}
	if c.Cache.TTL <= 0 {
		errs = append(errs, "cache.ttl must be > 0")
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = ":8080"
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = "info"
	}
	if cfg.GitHub.RequestTimeout <= 0 {
		cfg.GitHub.RequestTimeout = 5 * time.Second
	}
	if cfg.RateLimit.SecondaryLimitBackoff <= 0 {
		cfg.RateLimit.SecondaryLimitBackoff = 30 * time.Second
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry.MaxAttempts = 3
	}
	if cfg.Retry.InitialBackoff <= 0 {
		cfg.Retry.InitialBackoff = 500 * time.Millisecond
	}
	if cfg.Retry.MaxBackoff <= 0 {
		cfg.Retry.MaxBackoff = 5 * time.Second
	}

	cfg.Collector = cfg.Collector.WithDefaults()

	if cfg.Cache.Backend == "" {
		cfg.Cache.Backend = "memory"
	}
	if cfg.Cache.TTL <= 0 {
		cfg.Cache.TTL = time.Hour
	}
	if cfg.Cache.Namespace == "" {
		cfg.Cache.Namespace = "github-activity"
	}
	if cfg.Health.GitHubProbeInterval <= 0 {
		cfg.Health.GitHubProbeInterval = time.Minute
	}
}

type duration struct {
	time.Duration
}

func (d *duration) UnmarshalYAML(value *yaml.Node) error {
	if value == nil || value.Kind == 0 || strings.TrimSpace(value.Value) == "" {
		d.Duration = 0
		return nil
	}

	var raw string
	if err := value.Decode(&raw); err != nil {
		return fmt.Errorf("decode duration: %w", err)
	}

	parsed, err := parseFlexibleDuration(raw)
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

func parseFlexibleDuration(raw string) (time.Duration, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return 0, nil
	}

	if standard, err := time.ParseDuration(trimmed); err == nil {
		return standard, nil
	}

	if strings.HasSuffix(trimmed, "d") {
		return parseDurationWithMultiplier(strings.TrimSuffix(trimmed, "d"), 24)
	}
	if strings.HasSuffix(trimmed, "w") {
		return parseDurationWithMultiplier(strings.TrimSuffix(trimmed, "w"), 24*7)
	}

	return 0, fmt.Errorf("parse duration %q: invalid unit", raw)
}

func parseDurationWithMultiplier(numeric string, multiplierHours float64) (time.Duration, error) {
	value, err := strconv.ParseFloat(strings.TrimSpace(numeric), 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration value %q: %w", numeric, err)
	}

	nanos := value * multiplierHours * float64(time.Hour)
	if nanos > math.MaxInt64 || nanos < math.MinInt64 {
		return 0, fmt.Errorf("parse duration value %q: out of range", numeric)
	}
	return time.Duration(nanos), nil
}

type rawConfig struct {
	Server    ServerConfig `yaml:"server"`
	GitHub    rawGitHub    `yaml:"github"`
	RateLimit rawRateLimit `yaml:"rate_limit"`
	Retry     rawRetry     `yaml:"retry"`
	Collector rawCollector `yaml:"collector"`
	Cache     rawCache     `yaml:"cache"`
	Health    rawHealth    `yaml:"health"`
	Telemetry rawTelemetry `yaml:"telemetry"`
}

type rawGitHub struct {
	APIBaseURL     string        `yaml:"api_base_url"`
	RequestTimeout duration      `yaml:"request_timeout"`
	FallbackToken  string        `yaml:"fallback_token"`
	App            AppAuthConfig `yaml:"app"`
}

type rawRateLimit struct {
	MinRemainingThreshold int      `yaml:"min_remaining_threshold"`
	MinResetBuffer        duration `yaml:"min_reset_buffer"`
	SecondaryLimitBackoff duration `yaml:"secondary_limit_backoff"`
}

type rawRetry struct {
	MaxAttempts    int      `yaml:"max_attempts"`
	InitialBackoff duration `yaml:"initial_backoff"`
	MaxBackoff     duration `yaml:"max_backoff"`
}

type rawCollector struct {
	MaxUserRepoPages          int      `yaml:"max_user_repo_pages"`
	MaxOrgRepoPages           int      `yaml:"max_org_repo_pages"`
	OrgRepoLimit              int      `yaml:"org_repo_limit"`
	PersonalRepoLimit         int      `yaml:"personal_repo_limit"`
	MaxRepos                  int      `yaml:"max_repos"`
	WaveSize                  int      `yaml:"wave_size"`
	WaveDelay                 duration `yaml:"wave_delay"`
	OrgCommitPages            int      `yaml:"org_commit_pages"`
	PersonalCommitPages       int      `yaml:"personal_commit_pages"`
	PageEstimateMultiplier    int      `yaml:"page_estimate_multiplier"`
	MatchedEstimateMultiplier int      `yaml:"matched_estimate_multiplier"`
	RecordEstimateMultiplier  int      `yaml:"record_estimate_multiplier"`
}

type rawCache struct {
	Backend       string   `yaml:"backend"`
	TTL           duration `yaml:"ttl"`
	Namespace     string   `yaml:"namespace"`
	RedisAddr     string   `yaml:"redis_addr"`
	RedisPassword string   `yaml:"redis_password"`
	RedisDB       int      `yaml:"redis_db"`
}

type rawHealth struct {
	GitHubProbeInterval duration `yaml:"github_probe_interval"`
}

type rawTelemetry struct {
	OTELEnabled          bool    `yaml:"otel_enabled"`
	OTELTraceMode        string  `yaml:"otel_trace_mode"`
	OTELTraceSampleRatio float64 `yaml:"otel_trace_sample_ratio"`
}

func (r rawConfig) toConfig() *Config {
	return &Config{
		Server: r.Server,
		GitHub: GitHubConfig{
			APIBaseURL:     r.GitHub.APIBaseURL,
			RequestTimeout: r.GitHub.RequestTimeout.Duration,
			FallbackToken:  r.GitHub.FallbackToken,
			App:            r.GitHub.App,
		},
		RateLimit: RateLimitConfig{
			MinRemainingThreshold: r.RateLimit.MinRemainingThreshold,
			MinResetBuffer:        r.RateLimit.MinResetBuffer.Duration,
			SecondaryLimitBackoff: r.RateLimit.SecondaryLimitBackoff.Duration,
		},
		Retry: RetryConfig{
			MaxAttempts:    r.Retry.MaxAttempts,
			InitialBackoff: r.Retry.InitialBackoff.Duration,
			MaxBackoff:     r.Retry.MaxBackoff.Duration,
		},
		Collector: CollectorConfig{
			MaxUserRepoPages:          r.Collector.MaxUserRepoPages,
			MaxOrgRepoPages:           r.Collector.MaxOrgRepoPages,
			OrgRepoLimit:              r.Collector.OrgRepoLimit,
			PersonalRepoLimit:         r.Collector.PersonalRepoLimit,
			MaxRepos:                  r.Collector.MaxRepos,
			WaveSize:                  r.Collector.WaveSize,
			WaveDelay:                 r.Collector.WaveDelay.Duration,
			OrgCommitPages:            r.Collector.OrgCommitPages,
			PersonalCommitPages:       r.Collector.PersonalCommitPages,
			PageEstimateMultiplier:    r.Collector.PageEstimateMultiplier,
			MatchedEstimateMultiplier: r.Collector.MatchedEstimateMultiplier,
			RecordEstimateMultiplier:  r.Collector.RecordEstimateMultiplier,
		},
		Cache: CacheConfig{
			Backend:       r.Cache.Backend,
			TTL:           r.Cache.TTL.Duration,
			Namespace:     r.Cache.Namespace,
			RedisAddr:     r.Cache.RedisAddr,
			RedisPassword: r.Cache.RedisPassword,
			RedisDB:       r.Cache.RedisDB,
		},
		Health: HealthConfig{
			GitHubProbeInterval: r.Health.GitHubProbeInterval.Duration,
		},
		Telemetry: TelemetryConfig{
			OTELEnabled:          r.Telemetry.OTELEnabled,
			OTELTraceMode:        r.Telemetry.OTELTraceMode,
			OTELTraceSampleRatio: r.Telemetry.OTELTraceSampleRatio,
		},
	}
}
