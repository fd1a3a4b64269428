package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/recipescrape/recipescrape/internal/cache"
	"github.com/recipescrape/recipescrape/pkg/errors"
)

// DefaultPath is where the configuration (and saved settings) live unless --config says otherwise
const DefaultPath = "recipescrape.yaml"

// Configuration represents the complete application configuration
type Configuration struct {
	Global     GlobalConfig     `yaml:"global"`
	Cache      cache.Config     `yaml:"cache"`
	Output     OutputConfig     `yaml:"output"`
	HTTP       HTTPConfig       `yaml:"http"`
	Mealie     MealieConfig     `yaml:"mealie"`
	Scrapers   ScrapersConfig   `yaml:"scrapers"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
}

// GlobalConfig represents global application settings
type GlobalConfig struct {
	LogLevel  string `yaml:"log_level"`
	LogFile   string `yaml:"log_file"`
	LogFormat string `yaml:"log_format"`
}

// OutputConfig controls where scraper results are written
type OutputConfig struct {
	Directory string   `yaml:"directory"`
	S3        S3Config `yaml:"s3"`
}

// S3Config represents the optional object storage sink
type S3Config struct {
	Enabled         bool   `yaml:"enabled"`
	Bucket          string `yaml:"bucket"`
	Prefix          string `yaml:"prefix"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	ForcePathStyle  bool   `yaml:"force_path_style"`
	AccessKeyID     string `yaml:"access_key_id,omitempty"`
	SecretAccessKey string `yaml:"secret_access_key,omitempty"`
}

// HTTPConfig represents outbound HTTP settings
type HTTPConfig struct {
	Timeout        time.Duration        `yaml:"timeout"`
	UserAgent      string               `yaml:"user_agent"`
	Retry          RetryConfig          `yaml:"retry"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
}

// RetryConfig represents retry configuration
type RetryConfig struct {
	MaxAttempts  int           `yaml:"max_attempts"`
	InitialDelay time.Duration `yaml:"initial_delay"`
	MaxDelay     time.Duration `yaml:"max_delay"`
}

// CircuitBreakerConfig represents circuit breaker configuration
type CircuitBreakerConfig struct {
	Enabled          bool          `yaml:"enabled"`
	FailureThreshold int           `yaml:"failure_threshold"`
	Timeout          time.Duration `yaml:"timeout"`
}

// MealieConfig holds the Mealie connection and food builder settings
type MealieConfig struct {
	URL                 string  `yaml:"url"`
	APIToken            string  `yaml:"api_token"`
	PerPage             int     `yaml:"per_page"`
	ConfidenceThreshold float64 `yaml:"confidence_threshold"`
	Workers             int     `yaml:"workers"`
}

// ScrapersConfig holds per-scraper settings
type ScrapersConfig struct {
	RecipeTinEats RecipeTinEatsConfig `yaml:"recipetineats"`
}

// RecipeTinEatsConfig configures the category crawler
type RecipeTinEatsConfig struct {
	BaseURL string `yaml:"base_url"`
	Workers int    `yaml:"workers"`
}

// MonitoringConfig represents monitoring settings
type MonitoringConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
}

// MetricsConfig represents metrics configuration
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Port    int    `yaml:"port"`
	Path    string `yaml:"path"`
}

// NewDefault returns a configuration with sensible defaults
func NewDefault() *Configuration {
	return &Configuration{
		Global: GlobalConfig{
			LogLevel:  "INFO",
			LogFile:   "",
			LogFormat: "text",
		},
		Cache: cache.Config{
			Path:          cache.DefaultPath,
			SweepInterval: cache.DefaultSweepInterval,
			DefaultTTL:    cache.DefaultTTL,
		},
		Output: OutputConfig{
			Directory: "./outputs",
			S3: S3Config{
				Enabled: false,
				Region:  "us-east-1",
			},
		},
		HTTP: HTTPConfig{
			Timeout:   30 * time.Second,
			UserAgent: "recipescrape/1.0",
			Retry: RetryConfig{
				MaxAttempts:  3,
				InitialDelay: 500 * time.Millisecond,
				MaxDelay:     10 * time.Second,
			},
			CircuitBreaker: CircuitBreakerConfig{
				Enabled:          true,
				FailureThreshold: 5,
				Timeout:          30 * time.Second,
			},
		},
		Mealie: MealieConfig{
			PerPage:             25,
			ConfidenceThreshold: 0.85,
			Workers:             0,
		},
		Scrapers: ScrapersConfig{
			RecipeTinEats: RecipeTinEatsConfig{
				BaseURL: "https://www.recipetineats.com/",
				Workers: 0,
			},
		},
		Monitoring: MonitoringConfig{
			Metrics: MetricsConfig{
				Enabled: false,
				Port:    9090,
				Path:    "/metrics",
			},
		},
	}
}

// Load builds the effective configuration: defaults, then the file at path,
// then environment overrides. A missing file is only an error when required is set.
func Load(path string, required bool) (*Configuration, error) {
	cfg := NewDefault()

	if path != "" {
		if err := cfg.LoadFromFile(path); err != nil {
			if required || !os.IsNotExist(errorsCause(err)) {
				return nil, err
			}
		}
	}

	if err := cfg.LoadFromEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromFile loads configuration from a YAML file
func (c *Configuration) LoadFromFile(filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeConfigLoad, "failed to read config file").
			WithComponent("config").
			WithContext("path", filename)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return errors.Wrap(err, errors.ErrCodeConfigLoad, "failed to parse config file").
			WithComponent("config").
			WithContext("path", filename)
	}

	return nil
}

// LoadFromEnv loads configuration from environment variables
func (c *Configuration) LoadFromEnv() error {
	// Global settings; LOGGING_LEVEL is kept for existing setups
	if val := os.Getenv("LOGGING_LEVEL"); val != "" {
		c.Global.LogLevel = strings.ToUpper(val)
	}
	if val := os.Getenv("RECIPESCRAPE_LOG_LEVEL"); val != "" {
		c.Global.LogLevel = strings.ToUpper(val)
	}
	if val := os.Getenv("RECIPESCRAPE_LOG_FILE"); val != "" {
		c.Global.LogFile = val
	}
	if val := os.Getenv("RECIPESCRAPE_LOG_FORMAT"); val != "" {
		c.Global.LogFormat = val
	}

	// Cache settings
	if val := os.Getenv("RECIPESCRAPE_CACHE_PATH"); val != "" {
		c.Cache.Path = val
	}
	if err := envDuration("RECIPESCRAPE_CACHE_SWEEP_INTERVAL", &c.Cache.SweepInterval); err != nil {
		return err
	}
	if err := envDuration("RECIPESCRAPE_CACHE_DEFAULT_TTL", &c.Cache.DefaultTTL); err != nil {
		return err
	}

	// Output settings
	if val := os.Getenv("RECIPESCRAPE_OUTPUT_DIR"); val != "" {
		c.Output.Directory = val
	}
	if val := os.Getenv("RECIPESCRAPE_S3_BUCKET"); val != "" {
		c.Output.S3.Bucket = val
		c.Output.S3.Enabled = true
	}
	if val := os.Getenv("RECIPESCRAPE_S3_PREFIX"); val != "" {
		c.Output.S3.Prefix = val
	}
	if val := os.Getenv("RECIPESCRAPE_S3_REGION"); val != "" {
		c.Output.S3.Region = val
	}
	if val := os.Getenv("RECIPESCRAPE_S3_ENDPOINT"); val != "" {
		c.Output.S3.Endpoint = val
	}

	// HTTP settings
	if err := envDuration("RECIPESCRAPE_HTTP_TIMEOUT", &c.HTTP.Timeout); err != nil {
		return err
	}
	if val := os.Getenv("RECIPESCRAPE_USER_AGENT"); val != "" {
		c.HTTP.UserAgent = val
	}

	// Mealie settings
	if val := firstEnv("RECIPESCRAPE_MEALIE_URL", "MEALIE_URL"); val != "" {
		c.Mealie.URL = val
	}
	if val := firstEnv("RECIPESCRAPE_MEALIE_API_TOKEN", "MEALIE_API_TOKEN"); val != "" {
		c.Mealie.APIToken = val
	}
	if err := envInt("RECIPESCRAPE_MEALIE_WORKERS", &c.Mealie.Workers); err != nil {
		return err
	}

	// Monitoring settings
	if val := os.Getenv("RECIPESCRAPE_METRICS_ENABLED"); val != "" {
		c.Monitoring.Metrics.Enabled = strings.ToLower(val) == "true"
	}
	if err := envInt("RECIPESCRAPE_METRICS_PORT", &c.Monitoring.Metrics.Port); err != nil {
		return err
	}

	return nil
}

// SaveToFile saves the configuration to a YAML file
func (c *Configuration) SaveToFile(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeConfigSave, "failed to marshal config").
			WithComponent("config")
	}

	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return errors.Wrap(err, errors.ErrCodeConfigSave, "failed to create config directory").
				WithComponent("config").
				WithContext("path", filename)
		}
	}

	// The file may hold an API token
	if err := os.WriteFile(filename, data, 0600); err != nil {
		return errors.Wrap(err, errors.ErrCodeConfigSave, "failed to write config file").
			WithComponent("config").
			WithContext("path", filename)
	}

	return nil
}

// Validate validates the configuration
func (c *Configuration) Validate() error {
	validLogLevels := []string{"TRACE", "DEBUG", "INFO", "WARN", "WARNING", "ERROR", "FATAL", "CRITICAL"}
	logLevelValid := false
	for _, level := range validLogLevels {
		if strings.ToUpper(c.Global.LogLevel) == level {
			logLevelValid = true
			break
		}
	}
	if !logLevelValid {
		return invalid("invalid log_level: %s (must be one of: %s)",
			c.Global.LogLevel, strings.Join(validLogLevels, ", "))
	}

	switch strings.ToLower(c.Global.LogFormat) {
	case "", "text", "json":
	default:
		return invalid("invalid log_format: %s (must be text or json)", c.Global.LogFormat)
	}

	if c.Cache.Path == "" {
		return invalid("cache.path must not be empty")
	}
	if c.Cache.SweepInterval <= 0 {
		return invalid("cache.sweep_interval must be greater than 0")
	}
	if c.Cache.DefaultTTL < 0 {
		return invalid("cache.default_ttl must not be negative")
	}

	if c.Output.S3.Enabled && c.Output.S3.Bucket == "" {
		return invalid("output.s3.bucket is required when S3 output is enabled")
	}
	if !c.Output.S3.Enabled && c.Output.Directory == "" {
		return invalid("output.directory must not be empty")
	}

	if c.HTTP.Timeout <= 0 {
		return invalid("http.timeout must be greater than 0")
	}
	if c.HTTP.Retry.MaxAttempts < 1 {
		return invalid("http.retry.max_attempts must be at least 1")
	}
	if c.HTTP.CircuitBreaker.Enabled && c.HTTP.CircuitBreaker.FailureThreshold <= 0 {
		return invalid("http.circuit_breaker.failure_threshold must be greater than 0")
	}

	if c.Mealie.PerPage <= 0 {
		return invalid("mealie.per_page must be greater than 0")
	}
	if c.Mealie.ConfidenceThreshold < 0 || c.Mealie.ConfidenceThreshold > 1 {
		return invalid("mealie.confidence_threshold must be between 0 and 1")
	}
	if c.Mealie.Workers < 0 || c.Scrapers.RecipeTinEats.Workers < 0 {
		return invalid("worker counts must not be negative")
	}

	if c.Monitoring.Metrics.Enabled && (c.Monitoring.Metrics.Port <= 0 || c.Monitoring.Metrics.Port > 65535) {
		return invalid("monitoring.metrics.port must be between 1 and 65535")
	}

	return nil
}

func invalid(format string, args ...interface{}) error {
	return errors.Newf(errors.ErrCodeInvalidConfig, format, args...).WithComponent("config")
}

func firstEnv(names ...string) string {
	for _, name := range names {
		if val := os.Getenv(name); val != "" {
			return val
		}
	}
	return ""
}

func envDuration(name string, target *time.Duration) error {
	val := os.Getenv(name)
	if val == "" {
		return nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInvalidConfig, fmt.Sprintf("invalid duration in %s", name)).
			WithComponent("config")
	}
	*target = d
	return nil
}

func envInt(name string, target *int) error {
	val := os.Getenv(name)
	if val == "" {
		return nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInvalidConfig, fmt.Sprintf("invalid integer in %s", name)).
			WithComponent("config")
	}
	*target = n
	return nil
}

// errorsCause unwraps a structured error to the underlying cause
func errorsCause(err error) error {
	if e, ok := err.(*errors.Error); ok && e.Cause != nil {
		return e.Cause
	}
	return err
}
