package config

import (
	"time"

	"github.com/ajitpratap0/adagent/pkg/clients"
	"github.com/ajitpratap0/adagent/pkg/errors"
)

// Config is the root configuration.
type Config struct {
	// Drivers controls artifact location and the build loop
	Drivers DriversConfig `yaml:"drivers" json:"drivers"`
	// Probe controls API probing
	Probe ProbeConfig `yaml:"probe" json:"probe"`
	// HTTP configures the client used by generated drivers
	HTTP HTTPConfig `yaml:"http" json:"http"`
	// Store configures the record store used by extract
	Store StoreConfig `yaml:"store" json:"store"`
	// Observability configures logging, metrics and tracing
	Observability ObservabilityConfig `yaml:"observability" json:"observability"`
	// Sources overrides or extends the built-in API catalog
	Sources map[string]SourceConfig `yaml:"sources" json:"sources"`
}

// DriversConfig contains build settings.
type DriversConfig struct {
	// Dir is where driver artifacts are written
	Dir string `yaml:"dir" json:"dir"`
	// MaxAttempts bounds generate-and-test attempts per build
	MaxAttempts int `yaml:"max_attempts" json:"max_attempts"`
	// SampleSize is how many records the harness draws
	SampleSize int `yaml:"sample_size" json:"sample_size"`
}

// ProbeConfig contains prober settings.
type ProbeConfig struct {
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}

// HTTPConfig contains settings for generated drivers' HTTP traffic.
type HTTPConfig struct {
	// RequestTimeout of zero means no timeout
	RequestTimeout time.Duration `yaml:"request_timeout" json:"request_timeout"`
	// RateLimit paces requests per second (0 = unlimited)
	RateLimit   float64 `yaml:"rate_limit" json:"rate_limit"`
	RateBurst   int     `yaml:"rate_burst" json:"rate_burst"`
	UserAgent   string  `yaml:"user_agent" json:"user_agent"`
	EnableHTTP2 bool    `yaml:"enable_http2" json:"enable_http2"`
}

// StoreConfig contains record store settings.
type StoreConfig struct {
	// Path of the SQLite database file
	Path string `yaml:"path" json:"path"`
}

// ObservabilityConfig contains monitoring settings.
type ObservabilityConfig struct {
	// LogLevel sets logging verbosity (debug, info, warn, error)
	LogLevel string `yaml:"log_level" json:"log_level"`
	// LogEncoding is console or json
	LogEncoding   string `yaml:"log_encoding" json:"log_encoding"`
	EnableTracing bool   `yaml:"enable_tracing" json:"enable_tracing"`
	// MetricsAddr serves /metrics when non-empty
	MetricsAddr string `yaml:"metrics_addr" json:"metrics_addr"`
}

// SourceConfig describes a platform API.
type SourceConfig struct {
	BaseURL  string            `yaml:"base_url" json:"base_url"`
	Endpoint string            `yaml:"endpoint" json:"endpoint"`
	Headers  map[string]string `yaml:"headers" json:"headers"`
}

// Default returns a Config with defaults applied.
func Default() *Config {
	return &Config{
		Drivers: DriversConfig{
			Dir:         "drivers",
			MaxAttempts: 3,
			SampleSize:  3,
		},
		Probe: ProbeConfig{
			Timeout: 10 * time.Second,
		},
		HTTP: HTTPConfig{
			RequestTimeout: 0,
			RateLimit:      0,
			RateBurst:      1,
			UserAgent:      "adagent/1.0",
			EnableHTTP2:    true,
		},
		Store: StoreConfig{
			Path: "adagent.db",
		},
		Observability: ObservabilityConfig{
			LogLevel:    "info",
			LogEncoding: "console",
		},
		Sources: make(map[string]SourceConfig),
	}
}

// Validate checks required fields and value ranges.
func (c *Config) Validate() error {
	if c.Drivers.Dir == "" {
		return errors.New(errors.ErrorTypeConfig, "drivers.dir is required")
	}
	if c.Drivers.MaxAttempts <= 0 {
		return errors.New(errors.ErrorTypeConfig, "drivers.max_attempts must be positive")
	}
	if c.Drivers.SampleSize <= 0 {
		return errors.New(errors.ErrorTypeConfig, "drivers.sample_size must be positive")
	}
	if c.Probe.Timeout < 0 {
		return errors.New(errors.ErrorTypeConfig, "probe.timeout cannot be negative")
	}
	if c.HTTP.RequestTimeout < 0 {
		return errors.New(errors.ErrorTypeConfig, "http.request_timeout cannot be negative")
	}
	if c.HTTP.RateLimit < 0 {
		return errors.New(errors.ErrorTypeConfig, "http.rate_limit cannot be negative")
	}
	switch c.Observability.LogEncoding {
	case "", "console", "json":
	default:
		return errors.Newf(errors.ErrorTypeConfig, "observability.log_encoding must be console or json, got %q", c.Observability.LogEncoding)
	}
	for name, src := range c.Sources {
		if src.BaseURL == "" {
			return errors.Newf(errors.ErrorTypeConfig, "sources.%s.base_url is required", name)
		}
	}
	return nil
}

// ClientConfig converts the HTTP section into a client configuration.
func (h HTTPConfig) ClientConfig() *clients.HTTPConfig {
	cc := clients.DefaultHTTPConfig()
	cc.RequestTimeout = h.RequestTimeout
	cc.RateLimit = h.RateLimit
	cc.RateBurst = h.RateBurst
	cc.EnableHTTP2 = h.EnableHTTP2
	if h.UserAgent != "" {
		cc.UserAgent = h.UserAgent
	}
	return cc
}
