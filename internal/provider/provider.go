// Copyright 2026 The switchGuard Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package provider defines the static set of AI backends switchGuard can route
// between, together with their liveness endpoints and the "provider:model"
// reference syntax used across the application.
package provider

import (
	"fmt"
	"sort"
	"strings"

	"github.com/traylinx/switchGuard/internal/constant"
)

// Kind distinguishes locally hosted backends from remote APIs.
type Kind string

const (
	// KindLocal marks a provider running on the same machine or LAN.
	KindLocal Kind = "local"

	// KindRemote marks a cloud-hosted provider reached over the internet.
	KindRemote Kind = "remote"
)

// Provider describes one backend identity. The provider set is enumerated at
// process start and never extended at runtime.
type Provider struct {
	// Name is the canonical provider identifier (see internal/constant).
	Name string `json:"name"`

	// Kind is local or remote.
	Kind Kind `json:"kind"`

	// BaseURL is the root address for all requests to this provider.
	BaseURL string `json:"base_url"`

	// APIKey is an optional bearer credential sent on liveness probes.
	APIKey string `json:"-"`

	// Enabled controls whether the provider participates in routing.
	Enabled bool `json:"enabled"`
}

// IsLocal reports whether the provider runs locally.
func (p *Provider) IsLocal() bool {
	return p.Kind == KindLocal
}

// healthPaths maps each known provider to its canonical liveness-probe path.
// Unknown providers fall back to DefaultHealthPath; see HealthPath.
var healthPaths = map[string]string{
	constant.Ollama:       "/api/tags",
	constant.LMStudio:     "/v1/models",
	constant.Gemini:       "/v1beta/models",
	constant.Claude:       "/v1/models",
	constant.OpenAICompat: "/v1/models",
}

// DefaultHealthPath is used for provider tags without a dedicated entry in the
// health path table.
const DefaultHealthPath = "/health"

// HealthPath returns the liveness-probe path for the named provider. An
// unrecognized name resolves to DefaultHealthPath rather than an error so a
// misconfigured tag degrades to a failed probe instead of a crash.
func HealthPath(name string) string {
	if path, ok := healthPaths[name]; ok {
		return path
	}
	return DefaultHealthPath
}

// KnownProviders maps recognized provider identifiers to display names.
var KnownProviders = map[string]string{
	constant.Ollama:       "Ollama (Local)",
	constant.LMStudio:     "LM Studio (Local)",
	constant.Gemini:       "Google Gemini",
	constant.Claude:       "Anthropic Claude",
	constant.OpenAICompat: "OpenAI Compatible",
}

// DefaultHierarchy is the base candidate ordering for fallback resolution:
// local providers first, then remote.
var DefaultHierarchy = []string{
	constant.Ollama,
	constant.LMStudio,
	constant.Gemini,
	constant.Claude,
	constant.OpenAICompat,
}

// IsKnown reports whether name is a recognized provider identifier.
func IsKnown(name string) bool {
	_, ok := KnownProviders[name]
	return ok
}

// ModelRef is a parsed model reference.
type ModelRef struct {
	// Provider is the explicit or defaulted provider identifier.
	Provider string

	// Model is the bare model name or alias.
	Model string

	// Explicit reports whether the provider was spelled out in the input.
	Explicit bool
}

// String reassembles the reference in "provider:model" form.
func (r ModelRef) String() string {
	return r.Provider + ":" + r.Model
}

// ParseModelRef splits a model reference into provider and model parts.
// Syntax: "provider:model" where ":" is the separator. A bare name, or a
// prefix that is not a known provider, is treated as a model on the default
// provider.
//
// Examples:
//   - "ollama:llama3.2"       -> {ollama, llama3.2, explicit}
//   - "llama3.2"              -> {ollama, llama3.2, defaulted}
//   - "meta-llama/llama-4:8b" -> {ollama, meta-llama/llama-4:8b, defaulted}
func ParseModelRef(ref string) ModelRef {
	ref = strings.TrimSpace(ref)
	idx := strings.Index(ref, ":")
	if idx > 0 {
		candidate := strings.ToLower(ref[:idx])
		if IsKnown(candidate) {
			return ModelRef{
				Provider: candidate,
				Model:    strings.TrimSpace(ref[idx+1:]),
				Explicit: true,
			}
		}
	}
	return ModelRef{Provider: constant.DefaultProvider, Model: ref}
}

// Registry holds the enumerated provider set for one guard instance. It is
// built once from configuration and read-only afterwards, so no locking is
// needed.
type Registry struct {
	providers map[string]*Provider
	order     []string
}

// NewRegistry builds a registry from the given providers, preserving the order
// in which they are passed. Duplicate or unknown names are rejected so a typo
// in configuration surfaces at startup.
func NewRegistry(providers []*Provider) (*Registry, error) {
	r := &Registry{providers: make(map[string]*Provider, len(providers))}
	for _, p := range providers {
		if !IsKnown(p.Name) {
			available := Names()
			return nil, fmt.Errorf("unknown provider %q, use one of: %s", p.Name, strings.Join(available, ", "))
		}
		if _, dup := r.providers[p.Name]; dup {
			return nil, fmt.Errorf("provider %q configured twice", p.Name)
		}
		r.providers[p.Name] = p
		r.order = append(r.order, p.Name)
	}
	return r, nil
}

// Get returns the provider with the given name, or nil if not registered.
func (r *Registry) Get(name string) *Provider {
	return r.providers[name]
}

// All returns every registered provider in registration order.
func (r *Registry) All() []*Provider {
	out := make([]*Provider, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.providers[name])
	}
	return out
}

// Enabled returns the names of all enabled providers in registration order.
func (r *Registry) Enabled() []string {
	out := make([]string, 0, len(r.order))
	for _, name := range r.order {
		if r.providers[name].Enabled {
			out = append(out, name)
		}
	}
	return out
}

// Names returns all recognized provider identifiers, sorted.
func Names() []string {
	names := make([]string, 0, len(KnownProviders))
	for name := range KnownProviders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
