package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig
	Log        LogConfig
	Upload     UploadConfig
	CORS       CORSConfig
	Model      ModelConfig
	Resilience ResilienceConfig
	Metrics    MetricsConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            string        `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	Environment     string        `mapstructure:"environment"`
}

// IsProduction reports whether the server runs in production mode.
func (s *ServerConfig) IsProduction() bool {
	return s.Environment == "production"
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// UploadConfig holds upload limits.
type UploadConfig struct {
	MaxFileSizeMB int64 `mapstructure:"max_file_size_mb"`
}

// MaxBytes returns the upload limit in bytes.
func (u *UploadConfig) MaxBytes() int64 {
	return u.MaxFileSizeMB << 20
}

// CORSConfig holds CORS settings.
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// ModelProviderConfig holds settings for a single vision model provider.
type ModelProviderConfig struct {
	Provider     string `mapstructure:"provider"`
	APIKey       string `mapstructure:"api_key"`
	DefaultModel string `mapstructure:"default_model"`
	BaseURL      string `mapstructure:"base_url"`
	MaxRetries   int    `mapstructure:"max_retries"`
	TimeoutSecs  int    `mapstructure:"timeout_secs"`
}

// Timeout returns the per-call timeout, defaulting to 120s.
func (p *ModelProviderConfig) Timeout() time.Duration {
	if p.TimeoutSecs <= 0 {
		return 120 * time.Second
	}
	return time.Duration(p.TimeoutSecs) * time.Second
}

// ModelConfig holds vision model settings with multi-provider fallback support.
type ModelConfig struct {
	// Flat fields describe the primary provider when Primary is unset.
	Provider     string `mapstructure:"provider"`
	APIKey       string `mapstructure:"api_key"`
	DefaultModel string `mapstructure:"default_model"`
	BaseURL      string `mapstructure:"base_url"`
	MaxRetries   int    `mapstructure:"max_retries"`
	TimeoutSecs  int    `mapstructure:"timeout_secs"`

	Primary   ModelProviderConfig `mapstructure:"primary"`
	Secondary ModelProviderConfig `mapstructure:"secondary"`
	Tertiary  ModelProviderConfig `mapstructure:"tertiary"`
}

// PrimaryConfig returns the primary provider config, falling back to the flat fields.
func (m *ModelConfig) PrimaryConfig() *ModelProviderConfig {
	if m.Primary.Provider != "" {
		return &m.Primary
	}
	return &ModelProviderConfig{
		Provider:     m.Provider,
		APIKey:       m.APIKey,
		DefaultModel: m.DefaultModel,
		BaseURL:      m.BaseURL,
		MaxRetries:   m.MaxRetries,
		TimeoutSecs:  m.TimeoutSecs,
	}
}

// SecondaryConfig returns the secondary provider config, or nil if not configured.
func (m *ModelConfig) SecondaryConfig() *ModelProviderConfig {
	if m.Secondary.Provider != "" {
		return &m.Secondary
	}
	return nil
}

// TertiaryConfig returns the tertiary provider config, or nil if not configured.
func (m *ModelConfig) TertiaryConfig() *ModelProviderConfig {
	if m.Tertiary.Provider != "" {
		return &m.Tertiary
	}
	return nil
}

// ProviderConfigs returns the configured providers in fallback order.
func (m *ModelConfig) ProviderConfigs() []*ModelProviderConfig {
	cfgs := []*ModelProviderConfig{m.PrimaryConfig()}
	if s := m.SecondaryConfig(); s != nil {
		cfgs = append(cfgs, s)
	}
	if t := m.TertiaryConfig(); t != nil {
		cfgs = append(cfgs, t)
	}
	return cfgs
}

// ResilienceConfig holds retry and circuit breaker settings for outbound model calls.
type ResilienceConfig struct {
	RetryInitialBackoff     time.Duration `mapstructure:"retry_initial_backoff"`
	RetryMaxBackoff         time.Duration `mapstructure:"retry_max_backoff"`
	RetryMultiplier         float64       `mapstructure:"retry_multiplier"`
	BreakerEnabled          bool          `mapstructure:"breaker_enabled"`
	BreakerMinRequests      uint32        `mapstructure:"breaker_min_requests"`
	BreakerFailureRatio     float64       `mapstructure:"breaker_failure_ratio"`
	BreakerOpenTimeout      time.Duration `mapstructure:"breaker_open_timeout"`
	BreakerHalfOpenMaxCalls uint32        `mapstructure:"breaker_half_open_max_calls"`
}

// MetricsConfig holds Prometheus exposition settings.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// Validate checks the settings the service cannot start without.
func (c *Config) Validate() error {
	var errs []error
	for i, p := range c.Model.ProviderConfigs() {
		if p.Provider == "" {
			errs = append(errs, fmt.Errorf("model provider %d: provider is required", i+1))
		}
		if p.APIKey == "" {
			errs = append(errs, fmt.Errorf("model provider %d (%s): api key is required", i+1, p.Provider))
		}
	}
	if c.Upload.MaxFileSizeMB <= 0 {
		errs = append(errs, errors.New("upload max file size must be positive"))
	}
	return errors.Join(errs...)
}

// Load reads configuration from environment variables with the DOCEXTRACT_ prefix.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("DOCEXTRACT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Server defaults
	v.SetDefault("server.port", ":8080")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "180s")
	v.SetDefault("server.shutdown_timeout", "15s")
	v.SetDefault("server.environment", "development")

	// Log defaults
	v.SetDefault("log.level", "debug")
	v.SetDefault("log.format", "console")

	v.SetDefault("upload.max_file_size_mb", 10)

	v.SetDefault("cors.allowed_origins", "http://localhost:3000,http://127.0.0.1:3000")

	// Model defaults (flat)
	v.SetDefault("model.provider", "openai")
	v.SetDefault("model.api_key", "")
	v.SetDefault("model.default_model", "gpt-4o")
	v.SetDefault("model.base_url", "")
	v.SetDefault("model.max_retries", 0)
	v.SetDefault("model.timeout_secs", 120)

	// Model primary/secondary/tertiary defaults
	for _, slot := range []string{"primary", "secondary", "tertiary"} {
		v.SetDefault("model."+slot+".provider", "")
		v.SetDefault("model."+slot+".api_key", "")
		v.SetDefault("model."+slot+".default_model", "")
		v.SetDefault("model."+slot+".base_url", "")
		v.SetDefault("model."+slot+".max_retries", 0)
		v.SetDefault("model."+slot+".timeout_secs", 120)
	}

	// Resilience defaults
	v.SetDefault("resilience.retry_initial_backoff", "500ms")
	v.SetDefault("resilience.retry_max_backoff", "5s")
	v.SetDefault("resilience.retry_multiplier", 2.0)
	v.SetDefault("resilience.breaker_enabled", true)
	v.SetDefault("resilience.breaker_min_requests", 10)
	v.SetDefault("resilience.breaker_failure_ratio", 0.5)
	v.SetDefault("resilience.breaker_open_timeout", "30s")
	v.SetDefault("resilience.breaker_half_open_max_calls", 2)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")

	// Bind environment variables explicitly for nested keys
	envBindings := map[string]string{
		"server.port":                            "DOCEXTRACT_SERVER_PORT",
		"server.read_timeout":                    "DOCEXTRACT_SERVER_READ_TIMEOUT",
		"server.write_timeout":                   "DOCEXTRACT_SERVER_WRITE_TIMEOUT",
		"server.shutdown_timeout":                "DOCEXTRACT_SERVER_SHUTDOWN_TIMEOUT",
		"server.environment":                     "DOCEXTRACT_SERVER_ENVIRONMENT",
		"log.level":                              "DOCEXTRACT_LOG_LEVEL",
		"log.format":                             "DOCEXTRACT_LOG_FORMAT",
		"upload.max_file_size_mb":                "DOCEXTRACT_UPLOAD_MAX_FILE_SIZE_MB",
		"cors.allowed_origins":                   "DOCEXTRACT_CORS_ALLOWED_ORIGINS",
		"model.provider":                         "DOCEXTRACT_MODEL_PROVIDER",
		"model.api_key":                          "DOCEXTRACT_MODEL_API_KEY",
		"model.default_model":                    "DOCEXTRACT_MODEL_DEFAULT_MODEL",
		"model.base_url":                         "DOCEXTRACT_MODEL_BASE_URL",
		"model.max_retries":                      "DOCEXTRACT_MODEL_MAX_RETRIES",
		"model.timeout_secs":                     "DOCEXTRACT_MODEL_TIMEOUT_SECS",
		"resilience.retry_initial_backoff":       "DOCEXTRACT_RESILIENCE_RETRY_INITIAL_BACKOFF",
		"resilience.retry_max_backoff":           "DOCEXTRACT_RESILIENCE_RETRY_MAX_BACKOFF",
		"resilience.retry_multiplier":            "DOCEXTRACT_RESILIENCE_RETRY_MULTIPLIER",
		"resilience.breaker_enabled":             "DOCEXTRACT_RESILIENCE_BREAKER_ENABLED",
		"resilience.breaker_min_requests":        "DOCEXTRACT_RESILIENCE_BREAKER_MIN_REQUESTS",
		"resilience.breaker_failure_ratio":       "DOCEXTRACT_RESILIENCE_BREAKER_FAILURE_RATIO",
		"resilience.breaker_open_timeout":        "DOCEXTRACT_RESILIENCE_BREAKER_OPEN_TIMEOUT",
		"resilience.breaker_half_open_max_calls": "DOCEXTRACT_RESILIENCE_BREAKER_HALF_OPEN_MAX_CALLS",
		"metrics.enabled":                        "DOCEXTRACT_METRICS_ENABLED",
		"metrics.path":                           "DOCEXTRACT_METRICS_PATH",
	}
	for _, slot := range []string{"primary", "secondary", "tertiary"} {
		for _, field := range []string{"provider", "api_key", "default_model", "base_url", "max_retries", "timeout_secs"} {
			key := "model." + slot + "." + field
			envBindings[key] = "DOCEXTRACT_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		}
	}
	for key, env := range envBindings {
		_ = v.BindEnv(key, env)
	}

	cfg := &Config{}

	// Platforms like Railway/Render set PORT. Use it if DOCEXTRACT_SERVER_PORT is not explicitly set.
	serverPort := v.GetString("server.port")
	if port := os.Getenv("PORT"); port != "" && os.Getenv("DOCEXTRACT_SERVER_PORT") == "" {
		serverPort = ":" + port
	}

	cfg.Server = ServerConfig{
		Port:            serverPort,
		ReadTimeout:     v.GetDuration("server.read_timeout"),
		WriteTimeout:    v.GetDuration("server.write_timeout"),
		ShutdownTimeout: v.GetDuration("server.shutdown_timeout"),
		Environment:     v.GetString("server.environment"),
	}
	cfg.Log = LogConfig{
		Level:  v.GetString("log.level"),
		Format: v.GetString("log.format"),
	}
	cfg.Upload = UploadConfig{
		MaxFileSizeMB: v.GetInt64("upload.max_file_size_mb"),
	}

	// Parse CORS allowed origins from comma-separated string
	var corsOrigins []string
	for _, o := range strings.Split(v.GetString("cors.allowed_origins"), ",") {
		o = strings.TrimSpace(o)
		if o != "" {
			corsOrigins = append(corsOrigins, o)
		}
	}
	cfg.CORS = CORSConfig{AllowedOrigins: corsOrigins}

	cfg.Model = ModelConfig{
		Provider:     v.GetString("model.provider"),
		APIKey:       v.GetString("model.api_key"),
		DefaultModel: v.GetString("model.default_model"),
		BaseURL:      v.GetString("model.base_url"),
		MaxRetries:   v.GetInt("model.max_retries"),
		TimeoutSecs:  v.GetInt("model.timeout_secs"),
		Primary:      providerConfig(v, "primary"),
		Secondary:    providerConfig(v, "secondary"),
		Tertiary:     providerConfig(v, "tertiary"),
	}

	cfg.Resilience = ResilienceConfig{
		RetryInitialBackoff:     v.GetDuration("resilience.retry_initial_backoff"),
		RetryMaxBackoff:         v.GetDuration("resilience.retry_max_backoff"),
		RetryMultiplier:         v.GetFloat64("resilience.retry_multiplier"),
		BreakerEnabled:          v.GetBool("resilience.breaker_enabled"),
		BreakerMinRequests:      v.GetUint32("resilience.breaker_min_requests"),
		BreakerFailureRatio:     v.GetFloat64("resilience.breaker_failure_ratio"),
		BreakerOpenTimeout:      v.GetDuration("resilience.breaker_open_timeout"),
		BreakerHalfOpenMaxCalls: v.GetUint32("resilience.breaker_half_open_max_calls"),
	}

	cfg.Metrics = MetricsConfig{
		Enabled: v.GetBool("metrics.enabled"),
		Path:    v.GetString("metrics.path"),
	}

	return cfg, nil
}

func providerConfig(v *viper.Viper, slot string) ModelProviderConfig {
	prefix := "model." + slot + "."
	return ModelProviderConfig{
		Provider:     v.GetString(prefix + "provider"),
		APIKey:       v.GetString(prefix + "api_key"),
		DefaultModel: v.GetString(prefix + "default_model"),
		BaseURL:      v.GetString(prefix + "base_url"),
		MaxRetries:   v.GetInt(prefix + "max_retries"),
		TimeoutSecs:  v.GetInt(prefix + "timeout_secs"),
	}
}
