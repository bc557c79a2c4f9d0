// Package config provides the framework-level configuration for idconnect.
// It defines a single FrameworkConfig structure that governs how connector
// instances are pooled, retried, rate limited and observed, independent of
// the connector-specific properties each connector type declares.
//
// The configuration is organized into logical sections:
//   - Pool: instance pool sizing, checkout wait and idle eviction
//   - Reliability: retry of instance creation and operation rate limiting
//   - Observability: metrics and tracing
//   - Logging: zap logger settings
//
// Example usage:
//
//	cfg := config.NewFrameworkConfig()
//	cfg.Pool.MaxObjects = 4
//
//	if err := cfg.Validate(); err != nil {
//	    log.Fatal(err)
//	}
package config

import (
	"fmt"
	"time"

	"github.com/ajitpratap0/idconnect/pkg/logger"
)

// FrameworkConfig is the configuration shared by every connector facade.
type FrameworkConfig struct {
	// Pool settings control how many connector instances exist
	Pool PoolConfig `yaml:"pool" json:"pool" toml:"pool" mapstructure:"pool"`

	// Reliability settings for instance creation and operation throughput
	Reliability ReliabilityConfig `yaml:"reliability" json:"reliability" toml:"reliability" mapstructure:"reliability"`

	// Observability settings for monitoring and debugging
	Observability ObservabilityConfig `yaml:"observability" json:"observability" toml:"observability" mapstructure:"observability"`

	// Logging configures the global logger
	Logging logger.Config `yaml:"logging" json:"logging" toml:"logging" mapstructure:"logging"`
}

// PoolConfig contains connector instance pool settings.
type PoolConfig struct {
	// MaxObjects caps the number of instances, idle plus active
	MaxObjects int `yaml:"max_objects" json:"max_objects" toml:"max_objects" mapstructure:"max_objects"`
	// MaxIdle caps the number of idle instances kept for reuse
	MaxIdle int `yaml:"max_idle" json:"max_idle" toml:"max_idle" mapstructure:"max_idle"`
	// MinIdle is the number of idle instances the evictor keeps warm
	MinIdle int `yaml:"min_idle" json:"min_idle" toml:"min_idle" mapstructure:"min_idle"`
	// MaxWait bounds how long a checkout waits for a free slot
	MaxWait time.Duration `yaml:"max_wait" json:"max_wait" toml:"max_wait" mapstructure:"max_wait"`
	// MinEvictableIdleTime is how long an instance may stay idle before eviction
	MinEvictableIdleTime time.Duration `yaml:"min_evictable_idle_time" json:"min_evictable_idle_time" toml:"min_evictable_idle_time" mapstructure:"min_evictable_idle_time"`
	// EvictionInterval is how often the evictor runs; zero disables it
	EvictionInterval time.Duration `yaml:"eviction_interval" json:"eviction_interval" toml:"eviction_interval" mapstructure:"eviction_interval"`
}

// ReliabilityConfig contains retry and throttling settings.
type ReliabilityConfig struct {
	// RetryAttempts is the number of attempts to create an instance
	RetryAttempts int `yaml:"retry_attempts" json:"retry_attempts" toml:"retry_attempts" mapstructure:"retry_attempts"`
	// RetryDelay is the initial delay between attempts
	RetryDelay time.Duration `yaml:"retry_delay" json:"retry_delay" toml:"retry_delay" mapstructure:"retry_delay"`
	// RateLimitPerSec limits operations per second (0 = unlimited)
	RateLimitPerSec int `yaml:"rate_limit_per_sec" json:"rate_limit_per_sec" toml:"rate_limit_per_sec" mapstructure:"rate_limit_per_sec"`
	// RateLimitBurst is the token bucket size, defaulting to RateLimitPerSec
	RateLimitBurst int `yaml:"rate_limit_burst" json:"rate_limit_burst" toml:"rate_limit_burst" mapstructure:"rate_limit_burst"`
}

// ObservabilityConfig contains metrics and tracing settings.
type ObservabilityConfig struct {
	// EnableMetrics records Prometheus operation and pool metrics
	EnableMetrics bool `yaml:"enable_metrics" json:"enable_metrics" toml:"enable_metrics" mapstructure:"enable_metrics"`
	// EnableTracing wraps every operation in an OpenTelemetry span
	EnableTracing bool `yaml:"enable_tracing" json:"enable_tracing" toml:"enable_tracing" mapstructure:"enable_tracing"`
	// TracingSampleRate controls trace sampling (0.0-1.0)
	TracingSampleRate float64 `yaml:"tracing_sample_rate" json:"tracing_sample_rate" toml:"tracing_sample_rate" mapstructure:"tracing_sample_rate"`
	// TracingExporter selects the span exporter (stdout, none)
	TracingExporter string `yaml:"tracing_exporter" json:"tracing_exporter" toml:"tracing_exporter" mapstructure:"tracing_exporter"`
}

// NewFrameworkConfig creates a FrameworkConfig with sensible defaults.
// The pool defaults follow the classic identity connector framework:
// ten instances, one kept warm, a two minute idle eviction and a two and a
// half minute checkout wait.
func NewFrameworkConfig() *FrameworkConfig {
	return &FrameworkConfig{
		Pool: PoolConfig{
			MaxObjects:           10,
			MaxIdle:              10,
			MinIdle:              1,
			MaxWait:              150 * time.Second,
			MinEvictableIdleTime: 120 * time.Second,
			EvictionInterval:     30 * time.Second,
		},
		Reliability: ReliabilityConfig{
			RetryAttempts:   3,
			RetryDelay:      time.Second,
			RateLimitPerSec: 0,
		},
		Observability: ObservabilityConfig{
			EnableMetrics:     true,
			EnableTracing:     false,
			TracingSampleRate: 0.1,
			TracingExporter:   "stdout",
		},
		Logging: logger.Config{
			Level:    "info",
			Encoding: "json",
		},
	}
}

// Validate validates the configuration for correctness.
func (fc *FrameworkConfig) Validate() error {
	if fc.Pool.MaxObjects <= 0 {
		return fmt.Errorf("pool.max_objects must be positive")
	}
	if fc.Pool.MaxIdle < 0 {
		return fmt.Errorf("pool.max_idle cannot be negative")
	}
	if fc.Pool.MinIdle < 0 {
		return fmt.Errorf("pool.min_idle cannot be negative")
	}
	if fc.Pool.MinIdle > fc.Pool.MaxIdle {
		return fmt.Errorf("pool.min_idle (%d) cannot exceed pool.max_idle (%d)", fc.Pool.MinIdle, fc.Pool.MaxIdle)
	}
	if fc.Pool.MinIdle > fc.Pool.MaxObjects {
		return fmt.Errorf("pool.min_idle (%d) cannot exceed pool.max_objects (%d)", fc.Pool.MinIdle, fc.Pool.MaxObjects)
	}
	if fc.Pool.MaxWait < 0 {
		return fmt.Errorf("pool.max_wait cannot be negative")
	}
	if fc.Reliability.RetryAttempts < 0 {
		return fmt.Errorf("reliability.retry_attempts cannot be negative")
	}
	if fc.Reliability.RateLimitPerSec < 0 {
		return fmt.Errorf("reliability.rate_limit_per_sec cannot be negative")
	}
	if fc.Observability.TracingSampleRate < 0 || fc.Observability.TracingSampleRate > 1 {
		return fmt.Errorf("observability.tracing_sample_rate must be between 0 and 1")
	}
	return nil
}

// IsRateLimited returns true if rate limiting is enabled
func (r *ReliabilityConfig) IsRateLimited() bool {
	return r.RateLimitPerSec > 0
}

// Burst returns the token bucket size for the rate limiter
func (r *ReliabilityConfig) Burst() int {
	if r.RateLimitBurst > 0 {
		return r.RateLimitBurst
	}
	if r.RateLimitPerSec > 0 {
		return r.RateLimitPerSec
	}
	return 1
}
