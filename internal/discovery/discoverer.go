// Copyright 2026 The switchGuard Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package discovery

import (
	"context"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/traylinx/switchGuard/internal/catalog"
	"github.com/traylinx/switchGuard/internal/provider"
)

// OllamaDiscoverer lists models from an Ollama server's /api/tags endpoint.
type OllamaDiscoverer struct {
	p       *provider.Provider
	fetcher Fetcher
}

// NewOllamaDiscoverer creates a discoverer for the given Ollama provider.
func NewOllamaDiscoverer(p *provider.Provider, fetcher Fetcher) *OllamaDiscoverer {
	return &OllamaDiscoverer{p: p, fetcher: fetcher}
}

// ProviderID returns the provider identifier.
func (d *OllamaDiscoverer) ProviderID() string {
	return d.p.Name
}

// Discover fetches and parses the Ollama tag listing. Each model gets its
// untagged name as an alias, so "llama3.2:3b" also answers to "llama3.2".
func (d *OllamaDiscoverer) Discover(ctx context.Context) ([]*catalog.ModelInfo, error) {
	body, err := d.fetcher.Fetch(ctx, d.p.BaseURL+"/api/tags")
	if err != nil {
		return nil, fmt.Errorf("ollama discovery failed: %w", err)
	}

	models := gjson.GetBytes(body, "models")
	if !models.IsArray() {
		return nil, fmt.Errorf("ollama discovery: unexpected response shape")
	}

	out := make([]*catalog.ModelInfo, 0)
	models.ForEach(func(_, item gjson.Result) bool {
		name := item.Get("name").String()
		if name == "" {
			return true
		}
		info := &catalog.ModelInfo{
			ID:          name,
			Provider:    d.p.Name,
			Description: item.Get("details.family").String(),
		}
		if idx := strings.Index(name, ":"); idx > 0 {
			info.Aliases = append(info.Aliases, name[:idx])
		}
		out = append(out, info)
		return true
	})
	return out, nil
}

// OpenAICompatDiscoverer lists models from any provider exposing an
// OpenAI-style /v1/models endpoint (LM Studio, OpenAI-compatible gateways,
// Claude, and Gemini's OpenAI surface all qualify).
type OpenAICompatDiscoverer struct {
	p       *provider.Provider
	path    string
	fetcher Fetcher
}

// NewOpenAICompatDiscoverer creates a discoverer for an OpenAI-compatible
// provider. An empty path defaults to /v1/models.
func NewOpenAICompatDiscoverer(p *provider.Provider, path string, fetcher Fetcher) *OpenAICompatDiscoverer {
	if path == "" {
		path = "/v1/models"
	}
	return &OpenAICompatDiscoverer{p: p, path: path, fetcher: fetcher}
}

// ProviderID returns the provider identifier.
func (d *OpenAICompatDiscoverer) ProviderID() string {
	return d.p.Name
}

// Discover fetches and parses the model listing.
func (d *OpenAICompatDiscoverer) Discover(ctx context.Context) ([]*catalog.ModelInfo, error) {
	auth := ""
	if d.p.APIKey != "" {
		auth = "Bearer " + d.p.APIKey
	}

	var body []byte
	var err error
	if hf, ok := d.fetcher.(*HTTPFetcher); ok && auth != "" {
		body, err = hf.FetchWithAuth(ctx, d.p.BaseURL+d.path, auth)
	} else {
		body, err = d.fetcher.Fetch(ctx, d.p.BaseURL+d.path)
	}
	if err != nil {
		return nil, fmt.Errorf("%s discovery failed: %w", d.p.Name, err)
	}

	// OpenAI puts the listing under "data"; Gemini's native endpoint uses
	// "models" with a "name" field.
	items := gjson.GetBytes(body, "data")
	if !items.IsArray() {
		items = gjson.GetBytes(body, "models")
	}
	if !items.IsArray() {
		return nil, fmt.Errorf("%s discovery: unexpected response shape", d.p.Name)
	}

	out := make([]*catalog.ModelInfo, 0)
	items.ForEach(func(_, item gjson.Result) bool {
		id := item.Get("id").String()
		if id == "" {
			id = strings.TrimPrefix(item.Get("name").String(), "models/")
		}
		if id == "" {
			return true
		}
		info := &catalog.ModelInfo{
			ID:          id,
			Provider:    d.p.Name,
			Description: item.Get("description").String(),
		}
		if display := item.Get("display_name").String(); display != "" && !strings.EqualFold(display, id) {
			info.Aliases = append(info.Aliases, display)
		}
		out = append(out, info)
		return true
	})
	return out, nil
}
