package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ajitpratap0/idconnect/pkg/errors"
	"github.com/ajitpratap0/idconnect/pkg/security"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestFrameworkConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*FrameworkConfig)
		wantErr string
	}{
		{name: "defaults", mutate: func(*FrameworkConfig) {}},
		{name: "zero max objects", mutate: func(c *FrameworkConfig) { c.Pool.MaxObjects = 0 }, wantErr: "max_objects"},
		{name: "min idle above max idle", mutate: func(c *FrameworkConfig) { c.Pool.MinIdle = 20 }, wantErr: "min_idle"},
		{name: "negative wait", mutate: func(c *FrameworkConfig) { c.Pool.MaxWait = -time.Second }, wantErr: "max_wait"},
		{name: "negative rate", mutate: func(c *FrameworkConfig) { c.Reliability.RateLimitPerSec = -1 }, wantErr: "rate_limit"},
		{name: "sample rate", mutate: func(c *FrameworkConfig) { c.Observability.TracingSampleRate = 2 }, wantErr: "sample_rate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewFrameworkConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestReliabilityBurst(t *testing.T) {
	r := ReliabilityConfig{}
	assert.False(t, r.IsRateLimited())
	assert.Equal(t, 1, r.Burst())

	r.RateLimitPerSec = 5
	assert.True(t, r.IsRateLimited())
	assert.Equal(t, 5, r.Burst())

	r.RateLimitBurst = 2
	assert.Equal(t, 2, r.Burst())
}

type testConfig struct {
	Host     string                  `yaml:"host"`
	User     string                  `yaml:"user"`
	Password *security.GuardedString `yaml:"password"`
	Port     int                     `yaml:"port"`
	Tables   []string                `yaml:"tables"`
}

var testFields = Descriptors[testConfig]{
	{Name: "host", Required: true, Order: 1, Get: func(c *testConfig) interface{} { return c.Host }},
	{Name: "user", NonBlank: true, Order: 2, Get: func(c *testConfig) interface{} { return c.User }},
	{Name: "password", Required: true, Confidential: true, Order: 3, Get: func(c *testConfig) interface{} { return c.Password }},
	{Name: "port", Order: 4, Get: func(c *testConfig) interface{} { return c.Port },
		Check: func(v interface{}) error {
			if p := v.(int); p < 0 || p > 65535 {
				return errors.New(errors.ErrorTypeValidation, "port out of range")
			}
			return nil
		}},
	{Name: "tables", Required: true, Order: 5, Get: func(c *testConfig) interface{} { return c.Tables }},
}

func TestDescriptorsValidate(t *testing.T) {
	valid := func() *testConfig {
		return &testConfig{Host: "h", User: "u", Password: security.GuardString("p"), Tables: []string{"users"}}
	}

	tests := []struct {
		name   string
		mutate func(*testConfig)
		field  string
	}{
		{name: "valid", mutate: func(*testConfig) {}},
		{name: "missing host", mutate: func(c *testConfig) { c.Host = "" }, field: "host"},
		{name: "blank user", mutate: func(c *testConfig) { c.User = " \t" }, field: "user"},
		{name: "nil password", mutate: func(c *testConfig) { c.Password = nil }, field: "password"},
		{name: "bad port", mutate: func(c *testConfig) { c.Port = 70000 }, field: "port"},
		{name: "no tables", mutate: func(c *testConfig) { c.Tables = nil }, field: "tables"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := testFields.Validate(cfg)
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
			var e *errors.Error
			require.True(t, errors.As(err, &e))
			field, ok := e.Detail("field")
			require.True(t, ok)
			assert.Equal(t, tt.field, field)
		})
	}

	assert.Error(t, testFields.Validate(nil))
}

func TestDescriptorsDescribe(t *testing.T) {
	cfg := &testConfig{Host: "db", Password: security.GuardString("hunter2")}
	infos := testFields.Describe(cfg)
	require.Len(t, infos, 5)
	assert.Equal(t, "host", infos[0].Name)
	assert.Equal(t, "db", infos[0].Value)
	assert.Equal(t, security.Mask, infos[2].Value)
	assert.True(t, infos[2].Confidential)

	for _, info := range testFields.Describe(nil) {
		assert.Empty(t, info.Value)
	}
	assert.Equal(t, []string{"password"}, testFields.Confidential())
}

func TestLoadYAMLWithEnvSubstitution(t *testing.T) {
	t.Setenv("IDC_TEST_HOST", "ldap.internal")
	path := writeFile(t, "conn.yaml", `
connector: sample
framework:
  pool:
    max_objects: 3
    max_idle: 3
    max_wait: 5s
properties:
  host: ${IDC_TEST_HOST}
  user: admin
`)

	cf, err := LoadConnectorFile(path)
	require.NoError(t, err)
	assert.Equal(t, "sample", cf.Connector)
	assert.Equal(t, "ldap.internal", cf.Properties["host"])
	assert.Equal(t, 3, cf.Framework.Pool.MaxObjects)
	assert.Equal(t, 5*time.Second, cf.Framework.Pool.MaxWait)
	// untouched sections keep defaults
	assert.Equal(t, 3, cf.Framework.Reliability.RetryAttempts)
	assert.Equal(t, "info", cf.Framework.Logging.Level)
}

func TestLoadTOML(t *testing.T) {
	path := writeFile(t, "conn.toml", `
connector = "dbtable"

[properties]
table = "accounts"
keyColumn = "login"
`)

	cf, err := LoadConnectorFile(path)
	require.NoError(t, err)
	assert.Equal(t, "dbtable", cf.Connector)
	assert.Equal(t, "accounts", cf.Properties["table"])
	assert.Equal(t, 10, cf.Framework.Pool.MaxObjects)
}

func TestLoadConnectorFileErrors(t *testing.T) {
	_, err := LoadConnectorFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))

	path := writeFile(t, "noconn.yaml", "properties: {host: x}\n")
	_, err = LoadConnectorFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connector is required")

	path = writeFile(t, "badpool.yaml", "connector: sample\nframework:\n  pool:\n    max_objects: 0\n")
	_, err = LoadConnectorFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid framework section")
}

func TestLoadFrameworkEnvOverride(t *testing.T) {
	path := writeFile(t, "framework.yaml", `
framework:
  pool:
    max_objects: 4
    max_idle: 4
  reliability:
    retry_attempts: 5
`)
	t.Setenv("IDCONNECT_FRAMEWORK_POOL_MAX_OBJECTS", "7")

	fc, err := LoadFramework(path)
	require.NoError(t, err)
	assert.Equal(t, 7, fc.Pool.MaxObjects)
	assert.Equal(t, 4, fc.Pool.MaxIdle)
	assert.Equal(t, 5, fc.Reliability.RetryAttempts)
	assert.Equal(t, 150*time.Second, fc.Pool.MaxWait)
}

func TestLoadFrameworkDefaults(t *testing.T) {
	fc, err := LoadFramework("")
	require.NoError(t, err)
	assert.Equal(t, NewFrameworkConfig().Pool, fc.Pool)
}

func TestDecodeProperties(t *testing.T) {
	t.Setenv("IDC_TEST_SECRET", "s3cret")

	props := map[string]interface{}{
		"host":     "db.local",
		"user":     "svc",
		"password": "env:IDC_TEST_SECRET",
		"port":     5432,
		"tables":   []interface{}{"a", "b"},
	}

	var cfg testConfig
	require.NoError(t, DecodeProperties(context.Background(), props, &cfg, testFields.Confidential(), nil))
	assert.Equal(t, "db.local", cfg.Host)
	assert.Equal(t, 5432, cfg.Port)
	assert.Equal(t, []string{"a", "b"}, cfg.Tables)
	require.NotNil(t, cfg.Password)
	assert.True(t, cfg.Password.Equals(security.GuardString("s3cret")))

	// the caller's map is not modified
	assert.Equal(t, "env:IDC_TEST_SECRET", props["password"])
}

func TestDecodePropertiesUnresolvable(t *testing.T) {
	props := map[string]interface{}{"password": "vault:secret/data/app#pw"}
	var cfg testConfig
	err := DecodeProperties(context.Background(), props, &cfg, []string{"password"}, security.NewResolver())
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

// scalarRecorder keeps every scalar the yaml decoder hands it.
type scalarRecorder struct {
	Host     string                  `yaml:"host"`
	Password *security.GuardedString `yaml:"password"`
	seen     []string
}

func (r *scalarRecorder) UnmarshalYAML(node *yaml.Node) error {
	var walk func(n *yaml.Node)
	walk = func(n *yaml.Node) {
		if n.Kind == yaml.ScalarNode {
			r.seen = append(r.seen, n.Value)
		}
		for _, c := range n.Content {
			walk(c)
		}
	}
	walk(node)
	type plain scalarRecorder
	return node.Decode((*plain)(r))
}

func TestDecodePropertiesKeepsSecretsOutOfYAML(t *testing.T) {
	t.Setenv("IDC_TEST_SECRET", "s3cret")
	props := map[string]interface{}{"host": "db.local", "password": "env:IDC_TEST_SECRET"}

	var cfg scalarRecorder
	require.NoError(t, DecodeProperties(context.Background(), props, &cfg, []string{"password"}, nil))
	assert.Equal(t, "db.local", cfg.Host)
	assert.Contains(t, cfg.seen, "db.local")
	assert.NotContains(t, cfg.seen, "s3cret")
	assert.NotContains(t, cfg.seen, "password")
	require.NotNil(t, cfg.Password)
	assert.True(t, cfg.Password.Equals(security.GuardString("s3cret")))
}

func TestDecodePropertiesConfidentialFieldMustBeGuarded(t *testing.T) {
	type loose struct {
		Token string `yaml:"token"`
	}
	var cfg loose
	err := DecodeProperties(context.Background(), map[string]interface{}{"token": "literal"}, &cfg, []string{"token"}, nil)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
	assert.NotContains(t, err.Error(), "literal")
}

func TestConnectorFileFrameworkEnvOverride(t *testing.T) {
	t.Setenv("IDC_TEST_MAX", "4")
	t.Setenv("IDCONNECT_FRAMEWORK_POOL_MAX_OBJECTS", "3")
	path := writeFile(t, "conn.yaml", `
connector: sample
framework:
  pool:
    max_objects: 8
    max_idle: ${IDC_TEST_MAX}
    min_idle: 0
`)

	cf, err := LoadConnectorFile(path)
	require.NoError(t, err)
	assert.Equal(t, 3, cf.Framework.Pool.MaxObjects)
	assert.Equal(t, 4, cf.Framework.Pool.MaxIdle)

	t.Setenv("IDCONNECT_FRAMEWORK_POOL_MAX_OBJECTS", "0")
	_, err = LoadConnectorFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid framework section")
}
