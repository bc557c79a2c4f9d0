package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of environment variables that override framework settings.
const EnvPrefix = "IDCONNECT"

// Load loads a configuration from a YAML or TOML file, chosen by extension
func Load(filePath string, config interface{}) error {
	data, err := os.ReadFile(filePath) //nolint:gosec // G304: File path is controlled by caller and validated
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	// Substitute environment variables
	content := substituteEnvVars(string(data))

	if isTOML(filePath) {
		if err := toml.Unmarshal([]byte(content), config); err != nil {
			return fmt.Errorf("failed to parse TOML: %w", err)
		}
		return nil
	}

	if err := yaml.Unmarshal([]byte(content), config); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}

	return nil
}

// LoadFramework reads the "framework" section of a connector file through
// viper, starting from NewFrameworkConfig defaults. ${VAR} references are
// substituted as in Load. Every setting can be
// overridden with IDCONNECT_FRAMEWORK_<SECTION>_<KEY>, e.g.
// IDCONNECT_FRAMEWORK_POOL_MAX_OBJECTS.
// An empty filePath yields defaults plus environment overrides.
func LoadFramework(filePath string) (*FrameworkConfig, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setFrameworkDefaults(v, NewFrameworkConfig())

	if filePath != "" {
		data, err := os.ReadFile(filePath) //nolint:gosec // G304: File path is controlled by caller
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		v.SetConfigType(configType(filePath))
		if err := v.ReadConfig(strings.NewReader(substituteEnvVars(string(data)))); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	// Unmarshal walks AllSettings, which is where env overrides are applied
	wrapper := struct {
		Framework *FrameworkConfig `mapstructure:"framework"`
	}{Framework: NewFrameworkConfig()}
	if err := v.Unmarshal(&wrapper); err != nil {
		return nil, fmt.Errorf("failed to decode framework config: %w", err)
	}
	if err := wrapper.Framework.Validate(); err != nil {
		return nil, err
	}
	return wrapper.Framework, nil
}

// setFrameworkDefaults registers every key so AutomaticEnv can override it.
func setFrameworkDefaults(v *viper.Viper, d *FrameworkConfig) {
	v.SetDefault("framework.pool.max_objects", d.Pool.MaxObjects)
	v.SetDefault("framework.pool.max_idle", d.Pool.MaxIdle)
	v.SetDefault("framework.pool.min_idle", d.Pool.MinIdle)
	v.SetDefault("framework.pool.max_wait", d.Pool.MaxWait)
	v.SetDefault("framework.pool.min_evictable_idle_time", d.Pool.MinEvictableIdleTime)
	v.SetDefault("framework.pool.eviction_interval", d.Pool.EvictionInterval)
	v.SetDefault("framework.reliability.retry_attempts", d.Reliability.RetryAttempts)
	v.SetDefault("framework.reliability.retry_delay", d.Reliability.RetryDelay)
	v.SetDefault("framework.reliability.rate_limit_per_sec", d.Reliability.RateLimitPerSec)
	v.SetDefault("framework.reliability.rate_limit_burst", d.Reliability.RateLimitBurst)
	v.SetDefault("framework.observability.enable_metrics", d.Observability.EnableMetrics)
	v.SetDefault("framework.observability.enable_tracing", d.Observability.EnableTracing)
	v.SetDefault("framework.observability.tracing_sample_rate", d.Observability.TracingSampleRate)
	v.SetDefault("framework.observability.tracing_exporter", d.Observability.TracingExporter)
	v.SetDefault("framework.logging.level", d.Logging.Level)
	v.SetDefault("framework.logging.encoding", d.Logging.Encoding)
	v.SetDefault("framework.logging.development", d.Logging.Development)
}

func configType(filePath string) string {
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".toml":
		return "toml"
	case ".json":
		return "json"
	default:
		return "yaml"
	}
}

func isTOML(filePath string) bool {
	return strings.EqualFold(filepath.Ext(filePath), ".toml")
}

// substituteEnvVars replaces ${VAR_NAME} with environment variable values
func substituteEnvVars(content string) string {
	for {
		start := strings.Index(content, "${")
		if start == -1 {
			break
		}
		end := strings.Index(content[start:], "}")
		if end == -1 {
			break
		}
		end += start

		varName := content[start+2 : end]
		envValue := os.Getenv(varName)
		content = content[:start] + envValue + content[end+1:]
	}
	return content
}
