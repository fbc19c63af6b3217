// Package config loads the storefront client settings from a YAML file,
// then applies environment overrides.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	SourceBuiltin = "builtin"
	SourceRemote  = "remote"

	EnvBaseURL = "STOREFRONT_URL"
)

type Config struct {
	BaseURL string `yaml:"base_url"`
	// CatalogSource is "builtin" for the compiled-in catalog or "remote" to
	// load it once from the backend.
	CatalogSource string        `yaml:"catalog_source"`
	Timeout       time.Duration `yaml:"timeout"`
	Debug         bool          `yaml:"debug"`
}

func Default() *Config {
	return &Config{
		BaseURL:       "http://localhost:8080",
		CatalogSource: SourceBuiltin,
		Timeout:       15 * time.Second,
	}
}

// DefaultPath is ~/.config/template-store/client.yaml or the platform
// equivalent.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "client.yaml"
	}
	return filepath.Join(dir, "template-store", "client.yaml")
}

// Load reads path over the defaults. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	cfg.applyEnvOverrides(os.LookupEnv)
	return cfg, nil
}

func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func (c *Config) applyEnvOverrides(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvBaseURL); ok && v != "" {
		c.BaseURL = v
	}
}

func (c *Config) Validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid base_url %q: want http(s)://host[:port]", c.BaseURL)
	}
	if c.CatalogSource != SourceBuiltin && c.CatalogSource != SourceRemote {
		return fmt.Errorf("invalid catalog_source %q (valid: %s, %s)", c.CatalogSource, SourceBuiltin, SourceRemote)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("invalid timeout %s: must be positive", c.Timeout)
	}
	return nil
}
