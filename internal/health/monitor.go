// Copyright 2026 The switchGuard Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package health

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"github.com/traylinx/switchGuard/internal/constant"
	"github.com/traylinx/switchGuard/internal/provider"
)

// Monitor probes provider liveness endpoints and caches the results.
// Construct one per guard instance with NewMonitor; it owns its cache and
// shares no global state, so independent instances (e.g. in tests) never
// interfere.
type Monitor struct {
	registry *provider.Registry
	client   *http.Client

	defaultTimeout time.Duration
	defaultTTL     time.Duration

	mu    sync.RWMutex
	cache map[string]*HealthStatus
}

// Option customizes a Monitor.
type Option func(*Monitor)

// WithHTTPClient replaces the probe HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(m *Monitor) { m.client = client }
}

// WithDefaults sets the default probe timeout and cache TTL.
func WithDefaults(timeout, ttl time.Duration) Option {
	return func(m *Monitor) {
		if timeout > 0 {
			m.defaultTimeout = timeout
		}
		if ttl > 0 {
			m.defaultTTL = ttl
		}
	}
}

// NewMonitor creates a health monitor over the given provider registry.
func NewMonitor(registry *provider.Registry, opts ...Option) *Monitor {
	m := &Monitor{
		registry:       registry,
		client:         &http.Client{},
		defaultTimeout: 3 * time.Second,
		defaultTTL:     5 * time.Minute,
		cache:          make(map[string]*HealthStatus),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// CheckHealth returns the health status for the named provider. A cached
// status younger than the TTL is returned unchanged unless opts.ForceRefresh
// is set; otherwise a live probe runs and its result overwrites the cache.
// CheckHealth never returns an error: probe failures are reported inside the
// returned status.
func (m *Monitor) CheckHealth(ctx context.Context, name string, opts CheckOptions) *HealthStatus {
	ttl := opts.CacheTTL
	if ttl <= 0 {
		ttl = m.defaultTTL
	}

	if !opts.ForceRefresh {
		if cached := m.cachedFresh(name, ttl); cached != nil {
			return cached
		}
	}

	status := m.probe(ctx, name, opts)

	m.mu.Lock()
	m.cache[name] = status
	m.mu.Unlock()

	return status
}

// CheckAll probes every enabled provider concurrently and returns once all
// probes have settled. Results follow registration order.
func (m *Monitor) CheckAll(ctx context.Context, opts CheckOptions) []*HealthStatus {
	names := m.registry.Enabled()
	results := make([]*HealthStatus, len(names))

	var wg sync.WaitGroup
	for i, name := range names {
		wg.Add(1)
		go func(i int, name string) {
			defer wg.Done()
			results[i] = m.CheckHealth(ctx, name, opts)
		}(i, name)
	}
	wg.Wait()

	return results
}

// WaitForRecovery repeatedly force-refreshes the provider's health on the
// given poll interval until it reports healthy, maxWait elapses, or ctx is
// cancelled. It reports whether recovery was observed.
func (m *Monitor) WaitForRecovery(ctx context.Context, name string, maxWait, pollInterval time.Duration) bool {
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	deadline := time.Now().Add(maxWait)

	for {
		status := m.CheckHealth(ctx, name, CheckOptions{ForceRefresh: true})
		if status.IsHealthy {
			return true
		}
		if time.Now().Add(pollInterval).After(deadline) {
			return false
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(pollInterval):
		}
	}
}

// ClearCache drops the cached status for the named providers, or every cached
// status when called with no arguments. The next check probes live.
func (m *Monitor) ClearCache(names ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(names) == 0 {
		m.cache = make(map[string]*HealthStatus)
		return
	}
	for _, name := range names {
		delete(m.cache, name)
	}
}

// CachedStatus returns the cached status for a provider without probing, or
// nil when nothing is cached.
func (m *Monitor) CachedStatus(name string) *HealthStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cache[name]
}

func (m *Monitor) cachedFresh(name string, ttl time.Duration) *HealthStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cached, ok := m.cache[name]
	if !ok {
		return nil
	}
	if time.Since(cached.LastChecked) >= ttl {
		return nil
	}
	return cached
}

// probe performs one live liveness check. Every failure mode ends in an
// unhealthy status with a populated Error; probe itself never fails.
func (m *Monitor) probe(ctx context.Context, name string, opts CheckOptions) *HealthStatus {
	status := &HealthStatus{
		Provider:    name,
		LastChecked: time.Now(),
	}

	p := m.registry.Get(name)
	if p == nil {
		status.Error = fmt.Sprintf("provider %q is not configured", name)
		return status
	}
	if p.BaseURL == "" {
		status.Error = fmt.Sprintf("provider %q has no base URL", name)
		return status
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = m.defaultTimeout
	}
	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	url := p.BaseURL + provider.HealthPath(name)
	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, url, nil)
	if err != nil {
		status.Error = fmt.Sprintf("failed to build probe request: %v", err)
		return status
	}
	if p.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.APIKey)
	}

	start := time.Now()
	resp, err := m.client.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || probeCtx.Err() == context.DeadlineExceeded {
			status.Error = fmt.Sprintf("Timeout after %s", timeout)
		} else {
			status.Error = fmt.Sprintf("connection failed: %v", err)
		}
		log.Debugf("health probe %s failed: %s", name, status.Error)
		return status
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		status.ResponseTime = elapsed
		status.Error = fmt.Sprintf("unexpected status: %s", resp.Status)
		log.Debugf("health probe %s returned %s", name, resp.Status)
		return status
	}

	status.IsHealthy = true
	status.ResponseTime = elapsed

	// Ollama's tags endpoint doubles as a model listing; record the count.
	if name == constant.Ollama {
		if body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20)); err == nil {
			if models := gjson.GetBytes(body, "models"); models.IsArray() {
				status.ModelsCount = len(models.Array())
			}
		}
	}

	log.Debugf("health probe %s ok in %s", name, elapsed)
	return status
}
