// Copyright 2026 The switchGuard Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package health provides TTL-cached liveness probing for the configured
// providers. Probes are plain HTTP GETs against each provider's canonical
// health path; results are cached per provider and overwritten on every
// re-check.
package health

import (
	"time"
)

// HealthStatus is the cached outcome of the most recent liveness probe for
// one provider.
type HealthStatus struct {
	// Provider is the name of the provider this status belongs to.
	Provider string `json:"provider"`

	// IsHealthy reports whether the last probe returned a 2xx response.
	IsHealthy bool `json:"is_healthy"`

	// LastChecked is when the probe behind this status ran.
	LastChecked time.Time `json:"last_checked"`

	// ResponseTime is the probe round-trip time. Zero when the probe never
	// completed.
	ResponseTime time.Duration `json:"response_time,omitempty"`

	// Error describes why the provider is unhealthy. Empty when healthy.
	Error string `json:"error,omitempty"`

	// ModelsCount is the number of models the provider reported on its
	// health endpoint, where the endpoint exposes that (ollama /api/tags).
	ModelsCount int `json:"models_count,omitempty"`
}

// CheckOptions tunes a single health check. The zero value uses the monitor's
// configured defaults.
type CheckOptions struct {
	// Timeout is the per-probe deadline.
	Timeout time.Duration

	// CacheTTL is how long an existing cached status is considered fresh.
	CacheTTL time.Duration

	// ForceRefresh bypasses the cache and always probes live.
	ForceRefresh bool
}
