package config

import (
	"os"
	"regexp"

	"github.com/ajitpratap0/adagent/pkg/errors"
	"gopkg.in/yaml.v3"
)

var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Load reads a YAML file over Default() and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()
	if err := LoadInto(path, cfg); err != nil {
		return nil, err
	}
	if cfg.Sources == nil {
		cfg.Sources = map[string]SourceConfig{}
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid config "+path)
	}
	return cfg, nil
}

// LoadInto decodes path into out. ${NAME} references are expanded from the
// environment first; unset names become empty.
func LoadInto(path string, out any) error {
	raw, err := os.ReadFile(path) //nolint:gosec // operator-supplied path
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "read config "+path)
	}
	if err := yaml.Unmarshal([]byte(substituteEnvVars(string(raw))), out); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "decode config "+path)
	}
	return nil
}

func Save(path string, v any) error {
	raw, err := yaml.Marshal(v)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "encode config")
	}
	//nolint:gosec // config files are not secret
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "write config "+path)
	}
	return nil
}

func substituteEnvVars(s string) string {
	return envRef.ReplaceAllStringFunc(s, func(ref string) string {
		return os.Getenv(envRef.FindStringSubmatch(ref)[1])
	})
}
