// Copyright 2026 The switchGuard Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package config provides configuration management for the switchGuard server.
// It handles loading and parsing YAML configuration files, and provides
// structured access to application settings including server bind address,
// provider endpoints and credentials, health-check tuning, fallback behavior,
// and logging options.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/traylinx/switchGuard/internal/constant"
	"github.com/traylinx/switchGuard/internal/provider"
)

// Config represents the application's configuration, loaded from a YAML file.
type Config struct {
	// Host is the network host/interface on which the API server will bind.
	// Default is empty ("") to bind all interfaces. Use "127.0.0.1" for
	// local-only access.
	Host string `yaml:"host" json:"-"`

	// Port is the network port on which the API server will listen.
	Port int `yaml:"port" json:"-"`

	// Debug enables or disables debug-level logging.
	Debug bool `yaml:"debug" json:"debug"`

	// LoggingToFile controls whether logs are written to rotating files or stdout.
	LoggingToFile bool `yaml:"logging-to-file" json:"logging-to-file"`

	// Providers lists the backends the guard routes between.
	Providers []ProviderConfig `yaml:"providers" json:"providers"`

	// Health tunes the provider health monitor.
	Health HealthConfig `yaml:"health" json:"health"`

	// Catalog tunes the model catalog cache.
	Catalog CatalogConfig `yaml:"catalog" json:"catalog"`

	// Fallback sets defaults for fallback resolution.
	Fallback FallbackConfig `yaml:"fallback" json:"fallback"`

	// EquivalenceTablePath points at the YAML file holding the size-alias
	// equivalence table. Empty uses the built-in defaults.
	EquivalenceTablePath string `yaml:"equivalence-table" json:"equivalence-table"`
}

// ProviderConfig describes one backend in the YAML file.
type ProviderConfig struct {
	// Name is the provider identifier (ollama, lmstudio, gemini, claude,
	// openai-compat).
	Name string `yaml:"name" json:"name"`

	// Kind is "local" or "remote". Defaults per provider when omitted.
	Kind string `yaml:"kind" json:"kind"`

	// BaseURL is the root address of the provider.
	BaseURL string `yaml:"base-url" json:"base-url"`

	// APIKey is an optional bearer credential.
	APIKey string `yaml:"api-key" json:"-"`

	// Enabled toggles the provider. Defaults to true.
	Enabled *bool `yaml:"enabled" json:"enabled"`
}

// HealthConfig tunes the health monitor.
type HealthConfig struct {
	// CacheTTL is how long a health-check result stays valid.
	CacheTTL time.Duration `yaml:"cache-ttl" json:"cache-ttl"`

	// Timeout is the per-probe deadline.
	Timeout time.Duration `yaml:"timeout" json:"timeout"`

	// RecoveryPollInterval is the delay between forced re-checks while
	// waiting for a provider to recover.
	RecoveryPollInterval time.Duration `yaml:"recovery-poll-interval" json:"recovery-poll-interval"`
}

// CatalogConfig tunes the discovered-model cache held by the model manager.
type CatalogConfig struct {
	// TTL is how long a discovery snapshot stays valid.
	TTL time.Duration `yaml:"ttl" json:"ttl"`
}

// FallbackConfig sets resolution defaults.
type FallbackConfig struct {
	// PreferLocal biases the candidate hierarchy toward local providers.
	PreferLocal bool `yaml:"prefer-local" json:"prefer-local"`

	// MaxAttempts caps how many candidate providers a resolution may try.
	// Zero means no cap.
	MaxAttempts int `yaml:"max-attempts" json:"max-attempts"`
}

// defaultBaseURLs supplies base addresses for providers left blank in the config.
var defaultBaseURLs = map[string]string{
	constant.Ollama:       "http://localhost:11434",
	constant.LMStudio:     "http://localhost:1234",
	constant.Gemini:       "https://generativelanguage.googleapis.com",
	constant.Claude:       "https://api.anthropic.com",
	constant.OpenAICompat: "https://api.openai.com",
}

// defaultKinds classifies the known providers when the config omits kind.
var defaultKinds = map[string]provider.Kind{
	constant.Ollama:       provider.KindLocal,
	constant.LMStudio:     provider.KindLocal,
	constant.Gemini:       provider.KindRemote,
	constant.Claude:       provider.KindRemote,
	constant.OpenAICompat: provider.KindRemote,
}

// DefaultConfig returns a configuration with every known provider enabled on
// its default endpoint.
func DefaultConfig() *Config {
	cfg := &Config{
		Port: 8417,
		Health: HealthConfig{
			CacheTTL:             5 * time.Minute,
			Timeout:              3 * time.Second,
			RecoveryPollInterval: 2 * time.Second,
		},
		Catalog: CatalogConfig{TTL: 10 * time.Minute},
		Fallback: FallbackConfig{
			PreferLocal: true,
		},
	}
	for _, name := range provider.DefaultHierarchy {
		cfg.Providers = append(cfg.Providers, ProviderConfig{Name: name})
	}
	return cfg
}

// LoadConfig reads and parses the YAML configuration file at the given path,
// fills in defaults, and validates the result.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: failed to read %s: %w", path, err)
	}
	cfg := DefaultConfig()
	cfg.Providers = nil
	// ${VAR} placeholders let credentials live in the environment (or a
	// .env file) instead of the config file.
	data = []byte(os.ExpandEnv(string(data)))
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse %s: %w", path, err)
	}
	if len(cfg.Providers) == 0 {
		for _, name := range provider.DefaultHierarchy {
			cfg.Providers = append(cfg.Providers, ProviderConfig{Name: name})
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for inconsistencies and applies
// per-provider defaults in place.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("config: invalid port %d", c.Port)
	}
	if c.Health.CacheTTL <= 0 {
		c.Health.CacheTTL = 5 * time.Minute
	}
	if c.Health.Timeout <= 0 {
		c.Health.Timeout = 3 * time.Second
	}
	if c.Health.RecoveryPollInterval <= 0 {
		c.Health.RecoveryPollInterval = 2 * time.Second
	}
	if c.Catalog.TTL <= 0 {
		c.Catalog.TTL = 10 * time.Minute
	}
	seen := make(map[string]bool, len(c.Providers))
	for i := range c.Providers {
		pc := &c.Providers[i]
		if !provider.IsKnown(pc.Name) {
			return fmt.Errorf("config: unknown provider %q", pc.Name)
		}
		if seen[pc.Name] {
			return fmt.Errorf("config: provider %q configured twice", pc.Name)
		}
		seen[pc.Name] = true
		if pc.BaseURL == "" {
			pc.BaseURL = defaultBaseURLs[pc.Name]
		}
		if pc.Kind == "" {
			pc.Kind = string(defaultKinds[pc.Name])
		}
		if pc.Kind != string(provider.KindLocal) && pc.Kind != string(provider.KindRemote) {
			return fmt.Errorf("config: provider %q has invalid kind %q", pc.Name, pc.Kind)
		}
	}
	return nil
}

// BuildRegistry converts the provider section into a provider.Registry.
func (c *Config) BuildRegistry() (*provider.Registry, error) {
	providers := make([]*provider.Provider, 0, len(c.Providers))
	for _, pc := range c.Providers {
		enabled := true
		if pc.Enabled != nil {
			enabled = *pc.Enabled
		}
		providers = append(providers, &provider.Provider{
			Name:    pc.Name,
			Kind:    provider.Kind(pc.Kind),
			BaseURL: pc.BaseURL,
			APIKey:  pc.APIKey,
			Enabled: enabled,
		})
	}
	return provider.NewRegistry(providers)
}
