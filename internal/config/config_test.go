// Copyright 2026 The switchGuard Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/traylinx/switchGuard/internal/constant"
	"github.com/traylinx/switchGuard/internal/provider"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 8417, cfg.Port)
	assert.Equal(t, 5*time.Minute, cfg.Health.CacheTTL)
	assert.Equal(t, 3*time.Second, cfg.Health.Timeout)
	assert.Equal(t, 10*time.Minute, cfg.Catalog.TTL)
	assert.True(t, cfg.Fallback.PreferLocal)
	assert.Len(t, cfg.Providers, len(provider.DefaultHierarchy))
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
host: 127.0.0.1
port: 9000
debug: true
providers:
  - name: ollama
    base-url: http://localhost:11434
  - name: gemini
    api-key: test-key
health:
  cache-ttl: 1m
  timeout: 500ms
fallback:
  prefer-local: true
  max-attempts: 3
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.Host)
	assert.Equal(t, 9000, cfg.Port)
	assert.True(t, cfg.Debug)
	assert.Equal(t, time.Minute, cfg.Health.CacheTTL)
	assert.Equal(t, 500*time.Millisecond, cfg.Health.Timeout)
	assert.Equal(t, 3, cfg.Fallback.MaxAttempts)

	require.Len(t, cfg.Providers, 2)
	assert.Equal(t, "test-key", cfg.Providers[1].APIKey)
	// Omitted fields fall back to per-provider defaults.
	assert.Equal(t, "https://generativelanguage.googleapis.com", cfg.Providers[1].BaseURL)
	assert.Equal(t, string(provider.KindRemote), cfg.Providers[1].Kind)
	assert.Equal(t, string(provider.KindLocal), cfg.Providers[0].Kind)
}

func TestLoadConfigExpandsEnvPlaceholders(t *testing.T) {
	t.Setenv("GUARD_TEST_KEY", "sk-from-env")
	path := writeConfig(t, `
providers:
  - name: gemini
    api-key: ${GUARD_TEST_KEY}
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "sk-from-env", cfg.Providers[0].APIKey)
}

func TestLoadConfigEmptyProvidersGetsDefaults(t *testing.T) {
	path := writeConfig(t, "port: 9000\n")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Len(t, cfg.Providers, len(provider.DefaultHierarchy))
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestValidateRejectsUnknownProvider(t *testing.T) {
	path := writeConfig(t, `
providers:
  - name: skynet
`)
	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown provider")
}

func TestValidateRejectsDuplicateProvider(t *testing.T) {
	path := writeConfig(t, `
providers:
  - name: ollama
  - name: ollama
`)
	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "configured twice")
}

func TestValidateRejectsBadPort(t *testing.T) {
	path := writeConfig(t, "port: -1\n")
	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid port")
}

func TestValidateRejectsBadKind(t *testing.T) {
	path := writeConfig(t, `
providers:
  - name: ollama
    kind: orbital
`)
	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid kind")
}

func TestBuildRegistry(t *testing.T) {
	disabled := false
	cfg := DefaultConfig()
	cfg.Providers = []ProviderConfig{
		{Name: constant.Ollama, Kind: "local", BaseURL: "http://localhost:11434"},
		{Name: constant.Gemini, Kind: "remote", BaseURL: "https://example.com", Enabled: &disabled},
	}

	reg, err := cfg.BuildRegistry()
	require.NoError(t, err)

	assert.True(t, reg.Get(constant.Ollama).Enabled)
	assert.False(t, reg.Get(constant.Gemini).Enabled)
	assert.Equal(t, []string{constant.Ollama}, reg.Enabled())
}
