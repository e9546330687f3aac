// Copyright 2026 The switchGuard Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package manager

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/traylinx/switchGuard/internal/catalog"
	"github.com/traylinx/switchGuard/internal/constant"
	"github.com/traylinx/switchGuard/internal/fallback"
	"github.com/traylinx/switchGuard/internal/health"
	"github.com/traylinx/switchGuard/internal/provider"
)

// fakeSource implements discovery.Source from a fixed snapshot.
type fakeSource struct {
	snapshot catalog.Snapshot
	err      error
	calls    int
}

func (f *fakeSource) ListAllProviderModels(ctx context.Context) (catalog.Snapshot, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.snapshot, nil
}

func testSnapshot() catalog.Snapshot {
	return catalog.Snapshot{
		constant.Ollama: {
			{ID: "llama3.2:3b", Aliases: []string{"llama3.2", "small"}, Provider: constant.Ollama},
			{ID: "mistral:7b", Provider: constant.Ollama},
		},
		constant.Gemini: {
			{ID: "gemini-2.0-flash", Provider: constant.Gemini},
		},
	}
}

func newTestManager(t *testing.T, opts ...Option) *Manager {
	t.Helper()
	reg, err := provider.NewRegistry([]*provider.Provider{
		{Name: constant.Ollama, Kind: provider.KindLocal, BaseURL: "http://127.0.0.1:1", Enabled: true},
		{Name: constant.Gemini, Kind: provider.KindRemote, BaseURL: "http://127.0.0.1:1", Enabled: true},
	})
	require.NoError(t, err)

	monitor := health.NewMonitor(reg, health.WithDefaults(50*time.Millisecond, time.Minute))
	equiv, err := fallback.NewEquivalence("")
	require.NoError(t, err)
	resolver := fallback.NewResolver(reg, monitor, equiv)
	return NewManager(reg, monitor, resolver, opts...)
}

func TestInitializeSeedsStates(t *testing.T) {
	m := newTestManager(t)
	source := &fakeSource{snapshot: testSnapshot()}

	m.Initialize(context.Background(), source)

	assert.True(t, m.Ready())
	assert.Equal(t, 1, source.calls)

	state := m.GetModelState(constant.Ollama, "llama3.2:3b")
	require.NotNil(t, state)
	assert.Equal(t, StatusUnknown, state.Status)
	assert.Zero(t, state.UsageCount)

	// Initial health sweep ran for every enabled provider.
	assert.NotNil(t, m.monitor.CachedStatus(constant.Ollama))
	assert.NotNil(t, m.monitor.CachedStatus(constant.Gemini))
}

func TestInitializeDiscoveryFailureDegrades(t *testing.T) {
	m := newTestManager(t)
	source := &fakeSource{err: errors.New("discovery exploded")}

	m.Initialize(context.Background(), source)

	assert.False(t, m.Ready())

	result := m.GetRecommendedModel(context.Background(), "llama3.2", true)
	require.NotNil(t, result)
	assert.False(t, result.IsOriginalAvailable)
	assert.Contains(t, result.FallbackReason, "not been initialized")
	assert.Equal(t, "llama3.2", result.SelectedModel)
}

func TestCatalogTTLExpiryTreatedAsUninitialized(t *testing.T) {
	m := newTestManager(t, WithCatalogTTL(20*time.Millisecond))
	m.Initialize(context.Background(), &fakeSource{snapshot: testSnapshot()})

	assert.True(t, m.Ready())
	time.Sleep(30 * time.Millisecond)
	assert.False(t, m.Ready())

	result := m.GetRecommendedModel(context.Background(), "llama3.2", false)
	assert.Contains(t, result.FallbackReason, "not been initialized")
}

func TestGetRecommendedModelDirectHit(t *testing.T) {
	m := newTestManager(t)
	m.Initialize(context.Background(), &fakeSource{snapshot: testSnapshot()})

	result := m.GetRecommendedModel(context.Background(), "ollama:mistral:7b", false)

	assert.True(t, result.IsOriginalAvailable)
	assert.Equal(t, constant.Ollama, result.SelectedProvider)
}

func TestTrackModelUsageStateMachine(t *testing.T) {
	m := newTestManager(t)
	m.Initialize(context.Background(), &fakeSource{snapshot: testSnapshot()})

	m.TrackModelUsage("llama3.2:3b", constant.Ollama, true)
	state := m.GetModelState(constant.Ollama, "llama3.2:3b")
	assert.Equal(t, StatusAvailable, state.Status)
	assert.Equal(t, int64(1), state.UsageCount)
	assert.False(t, state.LastUsed.IsZero())

	m.TrackModelUsage("llama3.2:3b", constant.Ollama, false)
	state = m.GetModelState(constant.Ollama, "llama3.2:3b")
	assert.Equal(t, StatusFailed, state.Status)
	assert.Equal(t, int64(2), state.UsageCount)
	assert.NotEmpty(t, state.ErrorMessage)

	m.TrackModelUsage("llama3.2:3b", constant.Ollama, true)
	state = m.GetModelState(constant.Ollama, "llama3.2:3b")
	assert.Equal(t, StatusAvailable, state.Status)
	assert.Empty(t, state.ErrorMessage)
}

func TestTrackUsageLazilyCreatesState(t *testing.T) {
	m := newTestManager(t)

	m.TrackUsage(UsageRecord{
		Model:        "undiscovered",
		Provider:     constant.Gemini,
		Success:      false,
		ResponseTime: 120 * time.Millisecond,
		ErrorMessage: "rate limited",
	})

	state := m.GetModelState(constant.Gemini, "undiscovered")
	require.NotNil(t, state)
	assert.Equal(t, StatusFailed, state.Status)
	assert.Equal(t, "rate limited", state.ErrorMessage)
	assert.Equal(t, 120*time.Millisecond, state.ResponseTime)
}

func TestClearUsageStatsKeepsEntries(t *testing.T) {
	m := newTestManager(t)
	m.Initialize(context.Background(), &fakeSource{snapshot: testSnapshot()})

	m.TrackModelUsage("llama3.2:3b", constant.Ollama, true)
	m.TrackModelUsage("gemini-2.0-flash", constant.Gemini, true)

	m.ClearUsageStats()

	state := m.GetModelState(constant.Ollama, "llama3.2:3b")
	require.NotNil(t, state, "entries must survive a stats clear")
	assert.Zero(t, state.UsageCount)
	assert.True(t, state.LastUsed.IsZero())
	assert.Equal(t, "llama3.2:3b", state.Info.ID)
}

func TestGetMostUsedModels(t *testing.T) {
	m := newTestManager(t)
	m.Initialize(context.Background(), &fakeSource{snapshot: testSnapshot()})

	for i := 0; i < 3; i++ {
		m.TrackModelUsage("llama3.2:3b", constant.Ollama, true)
	}
	m.TrackModelUsage("gemini-2.0-flash", constant.Gemini, true)

	top := m.GetMostUsedModels(2)
	require.Len(t, top, 2)
	assert.Equal(t, "llama3.2:3b", top[0].Info.ID)
	assert.Equal(t, int64(3), top[0].UsageCount)
}

func TestGetRecentlyUsedModels(t *testing.T) {
	m := newTestManager(t)
	m.Initialize(context.Background(), &fakeSource{snapshot: testSnapshot()})

	m.TrackModelUsage("mistral:7b", constant.Ollama, true)
	time.Sleep(2 * time.Millisecond)
	m.TrackModelUsage("gemini-2.0-flash", constant.Gemini, true)

	recent := m.GetRecentlyUsedModels(2)
	require.Len(t, recent, 2)
	assert.Equal(t, "gemini-2.0-flash", recent[0].Info.ID)
}

func TestExportUsageStatsTotals(t *testing.T) {
	m := newTestManager(t)
	m.Initialize(context.Background(), &fakeSource{snapshot: testSnapshot()})

	m.TrackModelUsage("llama3.2:3b", constant.Ollama, true)
	m.TrackModelUsage("llama3.2:3b", constant.Ollama, true)
	m.TrackModelUsage("gemini-2.0-flash", constant.Gemini, false)

	export := m.ExportUsageStats()

	assert.Equal(t, int64(3), export.Summary.TotalUsage)
	assert.Equal(t, len(export.Models), export.Summary.TotalModels)
	assert.Equal(t, 2, export.Summary.ActiveProviders)

	var sum int64
	for _, state := range export.Models {
		sum += state.UsageCount
	}
	assert.Equal(t, export.Summary.TotalUsage, sum)
}

func TestProviderSummariesSortedHealthyFirst(t *testing.T) {
	m := newTestManager(t)
	m.Initialize(context.Background(), &fakeSource{snapshot: testSnapshot()})

	// Both providers point at a dead address, so the initial sweep marked
	// them unhealthy; summaries still sort deterministically by available
	// model count.
	m.TrackModelUsage("llama3.2:3b", constant.Ollama, true)
	m.TrackModelUsage("mistral:7b", constant.Ollama, true)
	m.TrackModelUsage("gemini-2.0-flash", constant.Gemini, false)

	summaries := m.GetAllProviderSummaries()
	require.Len(t, summaries, 2)
	assert.Equal(t, constant.Ollama, summaries[0].Provider)
	assert.Equal(t, 2, summaries[0].AvailableModels)
	assert.Equal(t, 1, summaries[1].FailedModels)
}

func TestRefreshCatalogKeepsExistingStates(t *testing.T) {
	m := newTestManager(t)
	source := &fakeSource{snapshot: testSnapshot()}
	m.Initialize(context.Background(), source)

	m.TrackModelUsage("llama3.2:3b", constant.Ollama, true)
	require.NoError(t, m.RefreshCatalog(context.Background()))

	state := m.GetModelState(constant.Ollama, "llama3.2:3b")
	assert.Equal(t, int64(1), state.UsageCount, "refresh must not reset usage")
	assert.Equal(t, 2, source.calls)
}

func TestGetModelAlternativesUninitialized(t *testing.T) {
	m := newTestManager(t)
	assert.Nil(t, m.GetModelAlternatives(context.Background(), "small", 3))
}

func TestRefreshCatalogWithoutSource(t *testing.T) {
	m := newTestManager(t)
	err := m.RefreshCatalog(context.Background())
	require.ErrorIs(t, err, ErrNoSource)
}
