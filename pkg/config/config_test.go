package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ajitpratap0/adagent/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "adagent.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "drivers", cfg.Drivers.Dir)
	assert.Equal(t, 3, cfg.Drivers.MaxAttempts)
	assert.Equal(t, 3, cfg.Drivers.SampleSize)
	assert.Equal(t, 10*time.Second, cfg.Probe.Timeout)
	assert.Zero(t, cfg.HTTP.RequestTimeout)
}

func TestLoad(t *testing.T) {
	t.Setenv("ADAGENT_TEST_KEY", "secret")
	path := writeConfig(t, `
drivers:
  dir: /tmp/drivers
  max_attempts: 5
probe:
  timeout: 2s
http:
  request_timeout: 30s
  rate_limit: 5
sources:
  seznam:
    base_url: http://localhost:3004
    endpoint: /api/v2/campaigns
    headers:
      X-Seznam-Api-Key: ${ADAGENT_TEST_KEY}
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/drivers", cfg.Drivers.Dir)
	assert.Equal(t, 5, cfg.Drivers.MaxAttempts)
	assert.Equal(t, 3, cfg.Drivers.SampleSize, "unset fields keep defaults")
	assert.Equal(t, 2*time.Second, cfg.Probe.Timeout)
	assert.Equal(t, 30*time.Second, cfg.HTTP.RequestTimeout)
	assert.Equal(t, "secret", cfg.Sources["seznam"].Headers["X-Seznam-Api-Key"])

	cc := cfg.HTTP.ClientConfig()
	assert.Equal(t, 30*time.Second, cc.RequestTimeout)
	assert.Equal(t, 5.0, cc.RateLimit)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Equal(t, errors.ErrorTypeFile, errors.TypeOf(err))

	_, err = Load(writeConfig(t, "drivers: [unclosed"))
	require.Error(t, err)
	assert.Equal(t, errors.ErrorTypeConfig, errors.TypeOf(err))

	_, err = Load(writeConfig(t, "drivers:\n  max_attempts: 0\n"))
	require.Error(t, err)
	assert.Equal(t, errors.ErrorTypeConfig, errors.TypeOf(err))
	assert.Contains(t, err.Error(), "max_attempts")
}

func TestSave_UnwritablePath(t *testing.T) {
	err := Save(filepath.Join(t.TempDir(), "missing", "out.yaml"), Default())
	require.Error(t, err)
	assert.Equal(t, errors.ErrorTypeFile, errors.TypeOf(err))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"empty dir", func(c *Config) { c.Drivers.Dir = "" }, "drivers.dir"},
		{"zero sample", func(c *Config) { c.Drivers.SampleSize = 0 }, "sample_size"},
		{"negative rate", func(c *Config) { c.HTTP.RateLimit = -1 }, "rate_limit"},
		{"bad encoding", func(c *Config) { c.Observability.LogEncoding = "xml" }, "log_encoding"},
		{"source without url", func(c *Config) { c.Sources["x"] = SourceConfig{} }, "sources.x.base_url"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSubstituteEnvVars(t *testing.T) {
	t.Setenv("A_VAR", "one")
	assert.Equal(t, "x=one y= z", substituteEnvVars("x=${A_VAR} y=${UNSET_VAR_ADAGENT} z"))
	assert.Equal(t, "no vars", substituteEnvVars("no vars"))
	assert.Equal(t, "open ${never", substituteEnvVars("open ${never"))
}

func TestSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.yaml")
	cfg := Default()
	cfg.Drivers.Dir = "elsewhere"
	require.NoError(t, Save(path, cfg))

	var raw map[string]interface{}
	require.NoError(t, LoadInto(path, &raw))
	drivers, ok := raw["drivers"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "elsewhere", drivers["dir"])
}
