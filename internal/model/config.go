package model

import "time"

// Config holds the complete pipeline configuration
type Config struct {
	Primary     LLMConfig         `yaml:"primary" mapstructure:"primary"`
	Secondary   LLMConfig         `yaml:"secondary" mapstructure:"secondary"`
	Extraction  ExtractionConfig  `yaml:"extraction" mapstructure:"extraction"`
	Validation  ValidationConfig  `yaml:"validation" mapstructure:"validation"`
	Cache       CacheConfig       `yaml:"cache" mapstructure:"cache"`
	Monitor     MonitorConfig     `yaml:"monitor" mapstructure:"monitor"`
	Concurrency ConcurrencyConfig `yaml:"concurrency" mapstructure:"concurrency"`
	Output      OutputConfig      `yaml:"output" mapstructure:"output"`
}

// LLMConfig holds one AI backend's configuration
type LLMConfig struct {
	// Provider name: "openai", "anthropic", ""
	Provider string `yaml:"provider" mapstructure:"provider"`

	// Model name (provider-specific)
	Model string `yaml:"model" mapstructure:"model"`

	// APIKey for the backend (recommended to come from the environment)
	APIKey string `yaml:"api_key" mapstructure:"api_key"`

	// BaseURL for custom endpoints
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`

	// Timeout for API requests in seconds
	Timeout int `yaml:"timeout" mapstructure:"timeout"`

	// MaxTokens for response generation
	MaxTokens int `yaml:"max_tokens" mapstructure:"max_tokens"`

	// Proxy settings
	HTTPProxy  string `yaml:"http_proxy" mapstructure:"http_proxy"`
	HTTPSProxy string `yaml:"https_proxy" mapstructure:"https_proxy"`
	NoProxy    string `yaml:"no_proxy" mapstructure:"no_proxy"`
}

// ExtractionConfig controls the orchestrator's fallback chain
type ExtractionConfig struct {
	// DegradedEnabled allows the regex-based last-resort extractor
	DegradedEnabled bool `yaml:"degraded_enabled" mapstructure:"degraded_enabled"`

	// DegradedConfidence is the fixed confidence assigned to degraded results
	DegradedConfidence float64 `yaml:"degraded_confidence" mapstructure:"degraded_confidence"`

	// Version tags extraction results and cache keys; bump to invalidate cache
	Version string `yaml:"version" mapstructure:"version"`
}

// ValidationConfig controls the validation engine
type ValidationConfig struct {
	// Strict promotes all issues to blocking failures
	Strict bool `yaml:"strict" mapstructure:"strict"`

	// MinAverageConfidence below which structured validation fails.
	// Nil means the default; an explicit zero disables the threshold.
	MinAverageConfidence *float64 `yaml:"min_average_confidence" mapstructure:"min_average_confidence"`

	// CountTolerance is the allowed structured-vs-FHIR count divergence per
	// type. Nil means the default; an explicit zero requires exact counts.
	CountTolerance *int `yaml:"count_tolerance" mapstructure:"count_tolerance"`
}

// CacheConfig controls the extraction result cache
type CacheConfig struct {
	Enabled         bool          `yaml:"enabled" mapstructure:"enabled"`
	TTL             time.Duration `yaml:"ttl" mapstructure:"ttl"`
	CleanupInterval time.Duration `yaml:"cleanup_interval" mapstructure:"cleanup_interval"`
}

// MonitorConfig controls error metrics and alerting
type MonitorConfig struct {
	// HistorySize caps the in-memory error event ring buffer
	HistorySize int `yaml:"history_size" mapstructure:"history_size"`

	// RateWindow is the sliding window for error-rate-per-minute
	RateWindow time.Duration `yaml:"rate_window" mapstructure:"rate_window"`

	// ErrorRatePerMinute threshold that triggers an alert
	ErrorRatePerMinute float64 `yaml:"error_rate_per_minute" mapstructure:"error_rate_per_minute"`

	// CriticalPerHour threshold that triggers an alert
	CriticalPerHour int `yaml:"critical_per_hour" mapstructure:"critical_per_hour"`

	// AlertCooldown suppresses duplicate alerts per (type, severity)
	AlertCooldown time.Duration `yaml:"alert_cooldown" mapstructure:"alert_cooldown"`
}

// ConcurrencyConfig controls batch processing and backend rate limits
type ConcurrencyConfig struct {
	// BatchWorkers is the worker count for batch document processing
	BatchWorkers int `yaml:"batch_workers" mapstructure:"batch_workers"`

	// RequestsPerSecond is the per-backend request rate limit
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`

	// Burst is the rate limiter burst size
	Burst int `yaml:"burst" mapstructure:"burst"`
}

// OutputConfig controls CLI output behavior
type OutputConfig struct {
	Verbose bool `yaml:"verbose" mapstructure:"verbose"`

	// JSONPath is where process/batch results are written ("" = stdout only)
	JSONPath string `yaml:"json_path" mapstructure:"json_path"`
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Primary: LLMConfig{
			Provider:  "", // Disabled by default
			Timeout:   60,
			MaxTokens: 4000,
		},
		Secondary: LLMConfig{
			Provider:  "",
			Timeout:   60,
			MaxTokens: 4000,
		},
		Extraction: ExtractionConfig{
			DegradedEnabled:    true,
			DegradedConfidence: 0.3,
			Version:            "v1",
		},
		Validation: ValidationConfig{
			Strict:               false,
			MinAverageConfidence: floatPtr(0.3),
			CountTolerance:       intPtr(2),
		},
		Cache: CacheConfig{
			Enabled:         true,
			TTL:             24 * time.Hour,
			CleanupInterval: time.Hour,
		},
		Monitor: MonitorConfig{
			HistorySize:        1000,
			RateWindow:         5 * time.Minute,
			ErrorRatePerMinute: 10,
			CriticalPerHour:    5,
			AlertCooldown:      5 * time.Minute,
		},
		Concurrency: ConcurrencyConfig{
			BatchWorkers:      4,
			RequestsPerSecond: 1,
			Burst:             2,
		},
		Output: OutputConfig{},
	}
}

func floatPtr(v float64) *float64 { return &v }

func intPtr(v int) *int { return &v }
