// Copyright 2026 The switchGuard Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package fallback decides which provider should serve a requested model when
// the original provider is unhealthy or lacks the model. Resolution walks an
// ordered candidate hierarchy sequentially, consulting the health monitor per
// candidate, and always terminates in a fully populated Result rather than an
// error.
package fallback

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/traylinx/switchGuard/internal/catalog"
	"github.com/traylinx/switchGuard/internal/health"
	"github.com/traylinx/switchGuard/internal/provider"
)

// Options tunes one resolution attempt.
type Options struct {
	// PreferLocal moves local providers to the front of the candidate
	// hierarchy.
	PreferLocal bool

	// PreferRemote moves remote providers to the front. Ignored when
	// PreferLocal is also set.
	PreferRemote bool

	// ExcludeProviders are removed from the candidate hierarchy entirely.
	ExcludeProviders []string

	// MaxAttempts caps how many candidates are tried. Zero tries all.
	MaxAttempts int

	// Timeout overrides the per-candidate health probe timeout.
	Timeout time.Duration
}

// Result describes the outcome of a resolution attempt.
type Result struct {
	// OriginalModel is the reference the caller asked for, verbatim.
	OriginalModel string `json:"original_model"`

	// SelectedModel is the model to actually use. Equals OriginalModel when
	// no substitution happened.
	SelectedModel string `json:"selected_model"`

	// SelectedProvider is the provider that should serve the request.
	SelectedProvider string `json:"selected_provider"`

	// FallbackReason explains why the original was bypassed. Empty when the
	// original was served directly.
	FallbackReason string `json:"fallback_reason,omitempty"`

	// AttemptedProviders lists every provider consulted, in order, without
	// duplicates.
	AttemptedProviders []string `json:"attempted_providers"`

	// IsOriginalAvailable reports whether the requested provider could serve
	// the requested model as-is.
	IsOriginalAvailable bool `json:"is_original_available"`
}

// Resolver implements the fallback search. Construct with NewResolver; it is
// safe for concurrent use.
type Resolver struct {
	registry  *provider.Registry
	monitor   *health.Monitor
	equiv     *Equivalence
	hierarchy []string
}

// NewResolver creates a resolver over the given registry and monitor. The
// candidate hierarchy follows provider.DefaultHierarchy restricted to enabled
// providers.
func NewResolver(registry *provider.Registry, monitor *health.Monitor, equiv *Equivalence) *Resolver {
	enabled := make(map[string]bool)
	for _, name := range registry.Enabled() {
		enabled[name] = true
	}
	hierarchy := make([]string, 0, len(provider.DefaultHierarchy))
	for _, name := range provider.DefaultHierarchy {
		if enabled[name] {
			hierarchy = append(hierarchy, name)
		}
	}
	return &Resolver{
		registry:  registry,
		monitor:   monitor,
		equiv:     equiv,
		hierarchy: hierarchy,
	}
}

// Resolve decides which provider/model should serve requestedModel given the
// current catalog snapshot. It never returns an error; every outcome is
// described by the Result.
func (r *Resolver) Resolve(ctx context.Context, requestedModel string, snapshot catalog.Snapshot, opts Options) *Result {
	ref := provider.ParseModelRef(requestedModel)

	result := &Result{
		OriginalModel:    requestedModel,
		SelectedModel:    requestedModel,
		SelectedProvider: ref.Provider,
	}

	// Direct availability: a catalog hit on the original provider wins
	// without a health check.
	if snapshot.Find(ref.Provider, ref.Model) != nil && !contains(opts.ExcludeProviders, ref.Provider) {
		result.IsOriginalAvailable = true
		result.AttemptedProviders = []string{ref.Provider}
		return result
	}

	hierarchy := r.buildHierarchy(ref.Provider, opts)

	for _, candidate := range hierarchy {
		if opts.MaxAttempts > 0 && len(result.AttemptedProviders) >= opts.MaxAttempts {
			break
		}
		result.AttemptedProviders = append(result.AttemptedProviders, candidate)

		status := r.monitor.CheckHealth(ctx, candidate, health.CheckOptions{Timeout: opts.Timeout})
		if !status.IsHealthy {
			log.Debugf("fallback: skipping unhealthy provider %s: %s", candidate, status.Error)
			continue
		}

		match := r.findEquivalent(ref.Model, candidate, snapshot)
		if match == nil {
			continue
		}

		result.SelectedProvider = candidate
		result.SelectedModel = match.ID
		result.FallbackReason = fmt.Sprintf("%q is not available on %s; using equivalent %s:%s", requestedModel, ref.Provider, candidate, match.ID)
		log.Infof("fallback: %s -> %s:%s", requestedModel, candidate, match.ID)
		return result
	}

	result.FallbackReason = fmt.Sprintf("no healthy provider offers %q (attempted: %s)", requestedModel, strings.Join(result.AttemptedProviders, ", "))
	return result
}

// RecoverFromFailure handles a model that failed in actual use, as opposed to
// one that merely could not be found. The hierarchy search continues just past
// the failed model's provider; if nothing past it works, a full Resolve runs
// with the failed provider excluded.
func (r *Resolver) RecoverFromFailure(ctx context.Context, failedModel string, snapshot catalog.Snapshot, opts Options) *Result {
	ref := provider.ParseModelRef(failedModel)

	start := -1
	for i, name := range r.hierarchy {
		if name == ref.Provider {
			start = i
			break
		}
	}

	if start >= 0 {
		result := &Result{
			OriginalModel:    failedModel,
			SelectedModel:    failedModel,
			SelectedProvider: ref.Provider,
		}
		for _, candidate := range r.hierarchy[start+1:] {
			if contains(opts.ExcludeProviders, candidate) {
				continue
			}
			result.AttemptedProviders = append(result.AttemptedProviders, candidate)

			status := r.monitor.CheckHealth(ctx, candidate, health.CheckOptions{Timeout: opts.Timeout})
			if !status.IsHealthy {
				continue
			}
			match := r.findEquivalent(ref.Model, candidate, snapshot)
			if match == nil {
				continue
			}
			result.SelectedProvider = candidate
			result.SelectedModel = match.ID
			result.FallbackReason = fmt.Sprintf("%q failed on %s; recovered to %s:%s", failedModel, ref.Provider, candidate, match.ID)
			return result
		}
	}

	opts.ExcludeProviders = append(append([]string{}, opts.ExcludeProviders...), ref.Provider)
	return r.Resolve(ctx, failedModel, snapshot, opts)
}

// SuggestAlternatives collects up to max equivalent models for a failed model,
// walking healthy providers local-first and stopping once the quota is filled.
// Returned entries are fully qualified "provider:model" references.
func (r *Resolver) SuggestAlternatives(ctx context.Context, failedModel string, snapshot catalog.Snapshot, max int) []string {
	if max <= 0 {
		max = 3
	}
	ref := provider.ParseModelRef(failedModel)

	candidates := append([]string{}, r.hierarchy...)
	sort.SliceStable(candidates, func(i, j int) bool {
		pi, pj := r.registry.Get(candidates[i]), r.registry.Get(candidates[j])
		return pi != nil && pj != nil && pi.IsLocal() && !pj.IsLocal()
	})

	suggestions := make([]string, 0, max)
	seen := map[string]bool{ref.Provider + ":" + ref.Model: true}

	for _, candidate := range candidates {
		if len(suggestions) >= max {
			break
		}
		status := r.monitor.CheckHealth(ctx, candidate, health.CheckOptions{})
		if !status.IsHealthy {
			continue
		}
		match := r.findEquivalent(ref.Model, candidate, snapshot)
		if match == nil {
			continue
		}
		key := candidate + ":" + match.ID
		if seen[key] {
			continue
		}
		seen[key] = true
		suggestions = append(suggestions, key)
	}
	return suggestions
}

// buildHierarchy orders the candidate providers for one resolution: default
// ordering, original provider first, then the local/remote preference applied
// as a stable sort, then exclusions dropped.
func (r *Resolver) buildHierarchy(originalProvider string, opts Options) []string {
	hierarchy := make([]string, 0, len(r.hierarchy)+1)
	if !contains(opts.ExcludeProviders, originalProvider) && r.registry.Get(originalProvider) != nil {
		hierarchy = append(hierarchy, originalProvider)
	}
	for _, name := range r.hierarchy {
		if name != originalProvider {
			hierarchy = append(hierarchy, name)
		}
	}

	if opts.PreferLocal || opts.PreferRemote {
		sort.SliceStable(hierarchy, func(i, j int) bool {
			pi, pj := r.registry.Get(hierarchy[i]), r.registry.Get(hierarchy[j])
			if pi == nil || pj == nil {
				return false
			}
			if opts.PreferLocal {
				return pi.IsLocal() && !pj.IsLocal()
			}
			return !pi.IsLocal() && pj.IsLocal()
		})
	}

	out := hierarchy[:0]
	for _, name := range hierarchy {
		if !contains(opts.ExcludeProviders, name) {
			out = append(out, name)
		}
	}
	return out
}

// findEquivalent locates a model on the candidate provider equivalent to the
// requested name. Matching order: exact id/alias, size-alias class lookup,
// then substring containment as a last resort.
func (r *Resolver) findEquivalent(modelName, candidate string, snapshot catalog.Snapshot) *catalog.ModelInfo {
	if m := snapshot.Find(candidate, modelName); m != nil {
		return m
	}

	table := r.equiv.Table()
	if class, ok := table.ClassOf(modelName); ok {
		if canonical, ok := table.CanonicalFor(class, candidate); ok {
			if m := snapshot.Find(candidate, canonical); m != nil {
				return m
			}
		}
	}

	lower := strings.ToLower(modelName)
	for _, m := range snapshot[candidate] {
		id := strings.ToLower(m.ID)
		if strings.Contains(id, lower) || strings.Contains(lower, id) {
			return m
		}
	}
	return nil
}

func contains(list []string, name string) bool {
	for _, item := range list {
		if item == name {
			return true
		}
	}
	return false
}
