package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := loadConfig(viper.New())
	require.NoError(t, err)
	assert.Equal(t, "drivers", cfg.Drivers.Dir)
	assert.Equal(t, 3, cfg.Drivers.MaxAttempts)
}

func TestLoadConfig_Overrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "adagent.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
drivers:
  dir: /tmp/from-file
  max_attempts: 5
store:
  path: file.db
`), 0o644))

	v := viper.New()
	v.Set("config", path)
	v.Set("store", "flag.db")
	v.Set("tracing", true)

	cfg, err := loadConfig(v)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/from-file", cfg.Drivers.Dir)
	assert.Equal(t, 5, cfg.Drivers.MaxAttempts)
	assert.Equal(t, "flag.db", cfg.Store.Path)
	assert.True(t, cfg.Observability.EnableTracing)
}

func TestLoadConfig_Environment(t *testing.T) {
	t.Setenv("ADAGENT_MAX_ATTEMPTS", "7")

	v := viper.New()
	v.SetEnvPrefix("ADAGENT")
	v.SetEnvKeyReplacer(envKeyReplacer)
	v.AutomaticEnv()

	cfg, err := loadConfig(v)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Drivers.MaxAttempts)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	v := viper.New()
	v.Set("config", filepath.Join(t.TempDir(), "absent.yaml"))
	_, err := loadConfig(v)
	assert.Error(t, err)
}
