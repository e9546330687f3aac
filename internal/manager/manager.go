// Copyright 2026 The switchGuard Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package manager orchestrates discovery, health monitoring, and fallback
// resolution. It owns the TTL-bounded catalog cache and the per-(provider,
// model) usage state table, and exposes the aggregate views the API serves.
package manager

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/traylinx/switchGuard/internal/catalog"
	"github.com/traylinx/switchGuard/internal/discovery"
	"github.com/traylinx/switchGuard/internal/fallback"
	"github.com/traylinx/switchGuard/internal/health"
	"github.com/traylinx/switchGuard/internal/provider"
)

// ErrNoSource is returned by RefreshCatalog when Initialize was never called
// with a discovery source.
var ErrNoSource = errors.New("manager: no discovery source configured")

// ModelStatus tracks the runtime state of one (provider, model) pair.
// Transitions: unknown -> available <-> failed, driven purely by explicit
// usage tracking calls.
type ModelStatus string

const (
	// StatusUnknown means the model was discovered but never used.
	StatusUnknown ModelStatus = "unknown"

	// StatusAvailable means the model's most recent use succeeded.
	StatusAvailable ModelStatus = "available"

	// StatusFailed means the model's most recent use failed.
	StatusFailed ModelStatus = "failed"
)

// ModelState is the tracked runtime status and usage history of one
// (provider, model) pair.
type ModelState struct {
	// Info is the discovered model metadata.
	Info *catalog.ModelInfo `json:"info"`

	// Status is the current state machine position.
	Status ModelStatus `json:"status"`

	// UsageCount increments on every tracked use, successful or not.
	UsageCount int64 `json:"usage_count"`

	// LastUsed is when the model was last tracked. Zero means never.
	LastUsed time.Time `json:"last_used"`

	// ResponseTime is the latency of the most recent tracked use, when the
	// caller recorded one.
	ResponseTime time.Duration `json:"response_time,omitempty"`

	// ErrorMessage describes the most recent failure. Cleared on success.
	ErrorMessage string `json:"error_message,omitempty"`
}

// UsageRecord carries the details of one model invocation for tracking.
type UsageRecord struct {
	Model        string
	Provider     string
	Success      bool
	ResponseTime time.Duration
	ErrorMessage string
}

// ProviderSummary is a derived, read-only per-provider aggregate.
type ProviderSummary struct {
	Provider        string        `json:"provider"`
	IsHealthy       bool          `json:"is_healthy"`
	ModelCount      int           `json:"model_count"`
	AvailableModels int           `json:"available_models"`
	FailedModels    int           `json:"failed_models"`
	AvgResponseTime time.Duration `json:"avg_response_time,omitempty"`
	LastHealthCheck time.Time     `json:"last_health_check"`
}

// UsageExport is a serializable snapshot of usage and health for external
// inspection. It is not a persistence format.
type UsageExport struct {
	ExportedAt time.Time          `json:"exported_at"`
	Models     []*ModelState      `json:"models"`
	Providers  []*ProviderSummary `json:"providers"`
	Summary    ExportSummary      `json:"summary"`
}

// ExportSummary holds the global totals of a usage export.
type ExportSummary struct {
	TotalModels      int   `json:"total_models"`
	TotalUsage       int64 `json:"total_usage"`
	ActiveProviders  int   `json:"active_providers"`
	HealthyProviders int   `json:"healthy_providers"`
}

// Manager coordinates discovery, health, and fallback for one guard instance.
// Construct with NewManager; all state is instance-owned.
type Manager struct {
	registry *provider.Registry
	monitor  *health.Monitor
	resolver *fallback.Resolver

	catalogTTL time.Duration
	defaults   fallback.Options

	mu        sync.RWMutex
	source    discovery.Source
	snapshot  catalog.Snapshot
	fetchedAt time.Time
	states    map[string]*ModelState
}

// Option customizes a Manager.
type Option func(*Manager)

// WithCatalogTTL sets how long a discovery snapshot stays valid.
func WithCatalogTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.catalogTTL = ttl
		}
	}
}

// WithFallbackDefaults sets the default resolution options.
func WithFallbackDefaults(opts fallback.Options) Option {
	return func(m *Manager) { m.defaults = opts }
}

// NewManager creates a model manager.
func NewManager(registry *provider.Registry, monitor *health.Monitor, resolver *fallback.Resolver, opts ...Option) *Manager {
	m := &Manager{
		registry:   registry,
		monitor:    monitor,
		resolver:   resolver,
		catalogTTL: 10 * time.Minute,
		states:     make(map[string]*ModelState),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// stateKey builds the composite key for the state table.
func stateKey(providerName, model string) string {
	return providerName + ":" + model
}

// Initialize pulls the first catalog snapshot from the discovery source and
// runs an initial health sweep. A discovery failure is logged, not returned:
// the manager stays usable but reports itself uninitialized until a later
// refresh succeeds.
func (m *Manager) Initialize(ctx context.Context, source discovery.Source) {
	m.mu.Lock()
	m.source = source
	m.mu.Unlock()

	if err := m.RefreshCatalog(ctx); err != nil {
		log.Errorf("manager: initial model discovery failed: %v", err)
	}

	m.monitor.CheckAll(ctx, health.CheckOptions{})
}

// RefreshCatalog re-runs discovery and replaces the catalog snapshot
// wholesale. New (provider, model) pairs get a fresh unknown state; existing
// states are kept.
func (m *Manager) RefreshCatalog(ctx context.Context) error {
	m.mu.RLock()
	source := m.source
	m.mu.RUnlock()
	if source == nil {
		return ErrNoSource
	}

	snapshot, err := source.ListAllProviderModels(ctx)
	if err != nil {
		return fmt.Errorf("manager: model discovery failed: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshot = snapshot
	m.fetchedAt = time.Now()
	for providerName, models := range snapshot {
		for _, info := range models {
			key := stateKey(providerName, info.ID)
			if existing, ok := m.states[key]; ok {
				existing.Info = info
				continue
			}
			m.states[key] = &ModelState{Info: info, Status: StatusUnknown}
		}
	}
	log.Infof("manager: catalog refreshed, %d models tracked", len(m.states))
	return nil
}

// Ready reports whether a catalog snapshot exists and is inside its TTL.
func (m *Manager) Ready() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.readyLocked()
}

func (m *Manager) readyLocked() bool {
	return m.snapshot != nil && time.Since(m.fetchedAt) < m.catalogTTL
}

// Snapshot returns the cached catalog, or nil when uninitialized/expired.
func (m *Manager) Snapshot() catalog.Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.readyLocked() {
		return nil
	}
	return m.snapshot
}

// GetRecommendedModel resolves the requested model against the cached
// catalog. An uninitialized or expired cache degrades to a Result explaining
// the situation, never an error.
func (m *Manager) GetRecommendedModel(ctx context.Context, model string, preferLocal bool) *fallback.Result {
	snapshot := m.Snapshot()
	if snapshot == nil {
		ref := provider.ParseModelRef(model)
		return &fallback.Result{
			OriginalModel:    model,
			SelectedModel:    model,
			SelectedProvider: ref.Provider,
			FallbackReason:   "model discovery has not been initialized; call initialize or refresh the catalog",
		}
	}

	opts := m.defaults
	opts.PreferLocal = preferLocal
	return m.resolver.Resolve(ctx, model, snapshot, opts)
}

// RecoverFromModelFailure continues the fallback hierarchy past the provider
// of a model that failed in actual use.
func (m *Manager) RecoverFromModelFailure(ctx context.Context, failedModel string) *fallback.Result {
	snapshot := m.Snapshot()
	if snapshot == nil {
		ref := provider.ParseModelRef(failedModel)
		return &fallback.Result{
			OriginalModel:    failedModel,
			SelectedModel:    failedModel,
			SelectedProvider: ref.Provider,
			FallbackReason:   "model discovery has not been initialized; call initialize or refresh the catalog",
		}
	}
	return m.resolver.RecoverFromFailure(ctx, failedModel, snapshot, m.defaults)
}

// GetModelAlternatives suggests up to limit equivalent models for a failed
// one. Returns nil when the catalog is uninitialized.
func (m *Manager) GetModelAlternatives(ctx context.Context, failedModel string, limit int) []string {
	snapshot := m.Snapshot()
	if snapshot == nil {
		return nil
	}
	return m.resolver.SuggestAlternatives(ctx, failedModel, snapshot, limit)
}

// TrackModelUsage records one use of a model, driving the unknown ->
// available <-> failed state machine.
func (m *Manager) TrackModelUsage(model, providerName string, success bool) {
	m.TrackUsage(UsageRecord{Model: model, Provider: providerName, Success: success})
}

// TrackUsage records one use of a model with full details. A pair never seen
// by discovery gets a state entry lazily, so counters stay consistent when
// callers race a catalog refresh.
func (m *Manager) TrackUsage(rec UsageRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := stateKey(rec.Provider, rec.Model)
	state, ok := m.states[key]
	if !ok {
		state = &ModelState{
			Info:   &catalog.ModelInfo{ID: rec.Model, Provider: rec.Provider},
			Status: StatusUnknown,
		}
		m.states[key] = state
	}

	state.UsageCount++
	state.LastUsed = time.Now()
	if rec.ResponseTime > 0 {
		state.ResponseTime = rec.ResponseTime
	}
	if rec.Success {
		state.Status = StatusAvailable
		state.ErrorMessage = ""
	} else {
		state.Status = StatusFailed
		if rec.ErrorMessage != "" {
			state.ErrorMessage = rec.ErrorMessage
		} else {
			state.ErrorMessage = "model invocation failed"
		}
	}
}

// GetModelState returns a copy of the tracked state for a (provider, model)
// pair, or nil when untracked.
func (m *Manager) GetModelState(providerName, model string) *ModelState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	state, ok := m.states[stateKey(providerName, model)]
	if !ok {
		return nil
	}
	copied := *state
	return &copied
}

// GetProviderSummary aggregates health and usage for one provider.
func (m *Manager) GetProviderSummary(providerName string) *ProviderSummary {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.summaryLocked(providerName)
}

func (m *Manager) summaryLocked(providerName string) *ProviderSummary {
	summary := &ProviderSummary{Provider: providerName}

	var totalLatency time.Duration
	var latencySamples int
	for key, state := range m.states {
		if !strings.HasPrefix(key, providerName+":") {
			continue
		}
		summary.ModelCount++
		switch state.Status {
		case StatusAvailable:
			summary.AvailableModels++
		case StatusFailed:
			summary.FailedModels++
		}
		if state.ResponseTime > 0 {
			totalLatency += state.ResponseTime
			latencySamples++
		}
	}
	if latencySamples > 0 {
		summary.AvgResponseTime = totalLatency / time.Duration(latencySamples)
	}

	if status := m.monitor.CachedStatus(providerName); status != nil {
		summary.IsHealthy = status.IsHealthy
		summary.LastHealthCheck = status.LastChecked
	}
	return summary
}

// GetAllProviderSummaries returns one summary per enabled provider, sorted
// healthy-first, then by available model count descending.
func (m *Manager) GetAllProviderSummaries() []*ProviderSummary {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := m.registry.Enabled()
	summaries := make([]*ProviderSummary, 0, len(names))
	for _, name := range names {
		summaries = append(summaries, m.summaryLocked(name))
	}
	sort.SliceStable(summaries, func(i, j int) bool {
		if summaries[i].IsHealthy != summaries[j].IsHealthy {
			return summaries[i].IsHealthy
		}
		return summaries[i].AvailableModels > summaries[j].AvailableModels
	})
	return summaries
}

// GetMostUsedModels returns up to limit tracked states ordered by usage count
// descending.
func (m *Manager) GetMostUsedModels(limit int) []*ModelState {
	return m.sortedStates(limit, func(a, b *ModelState) bool {
		return a.UsageCount > b.UsageCount
	})
}

// GetRecentlyUsedModels returns up to limit tracked states ordered by last
// use, newest first. Never-used models sort last.
func (m *Manager) GetRecentlyUsedModels(limit int) []*ModelState {
	return m.sortedStates(limit, func(a, b *ModelState) bool {
		return a.LastUsed.After(b.LastUsed)
	})
}

func (m *Manager) sortedStates(limit int, less func(a, b *ModelState) bool) []*ModelState {
	m.mu.RLock()
	states := make([]*ModelState, 0, len(m.states))
	for _, state := range m.states {
		copied := *state
		states = append(states, &copied)
	}
	m.mu.RUnlock()

	sort.SliceStable(states, func(i, j int) bool { return less(states[i], states[j]) })
	if limit > 0 && len(states) > limit {
		states = states[:limit]
	}
	return states
}

// ClearUsageStats zeroes every usage counter and last-used timestamp without
// discarding the state entries themselves.
func (m *Manager) ClearUsageStats() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, state := range m.states {
		state.UsageCount = 0
		state.LastUsed = time.Time{}
	}
	log.Debug("manager: usage statistics cleared")
}

// ExportUsageStats assembles a serializable snapshot of per-model usage,
// per-provider health, and global totals.
func (m *Manager) ExportUsageStats() *UsageExport {
	export := &UsageExport{
		ExportedAt: time.Now(),
		Models:     m.sortedStates(0, func(a, b *ModelState) bool { return a.UsageCount > b.UsageCount }),
		Providers:  m.GetAllProviderSummaries(),
	}

	export.Summary.TotalModels = len(export.Models)
	for _, state := range export.Models {
		export.Summary.TotalUsage += state.UsageCount
	}
	export.Summary.ActiveProviders = len(export.Providers)
	for _, summary := range export.Providers {
		if summary.IsHealthy {
			export.Summary.HealthyProviders++
		}
	}
	return export
}
