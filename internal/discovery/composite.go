// Copyright 2026 The switchGuard Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package discovery

import (
	"context"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/traylinx/switchGuard/internal/catalog"
	"github.com/traylinx/switchGuard/internal/constant"
	"github.com/traylinx/switchGuard/internal/provider"
)

// Composite fans discovery out to every registered per-provider discoverer
// concurrently and assembles the results into one catalog snapshot. A
// provider whose discovery fails contributes an empty model list rather than
// failing the whole snapshot.
type Composite struct {
	discoverers []ModelDiscoverer
}

// NewComposite creates a composite source over the given discoverers.
func NewComposite(discoverers ...ModelDiscoverer) *Composite {
	return &Composite{discoverers: discoverers}
}

// ForRegistry builds the default discoverer set for every enabled provider in
// the registry: the Ollama tag listing for ollama, the OpenAI-style model
// listing for everything else.
func ForRegistry(registry *provider.Registry) *Composite {
	fetcher := NewHTTPFetcher()
	var discoverers []ModelDiscoverer
	for _, p := range registry.All() {
		if !p.Enabled {
			continue
		}
		switch p.Name {
		case constant.Ollama:
			discoverers = append(discoverers, NewOllamaDiscoverer(p, fetcher))
		case constant.Gemini:
			discoverers = append(discoverers, NewOpenAICompatDiscoverer(p, "/v1beta/models", fetcher))
		default:
			discoverers = append(discoverers, NewOpenAICompatDiscoverer(p, "", fetcher))
		}
	}
	return NewComposite(discoverers...)
}

// ListAllProviderModels implements Source.
func (c *Composite) ListAllProviderModels(ctx context.Context) (catalog.Snapshot, error) {
	snapshot := make(catalog.Snapshot, len(c.discoverers))

	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, d := range c.discoverers {
		wg.Add(1)
		go func(d ModelDiscoverer) {
			defer wg.Done()
			models, err := d.Discover(ctx)
			if err != nil {
				log.Warnf("discovery: %s listing failed: %v", d.ProviderID(), err)
				models = nil
			}
			mu.Lock()
			snapshot[d.ProviderID()] = models
			mu.Unlock()
		}(d)
	}
	wg.Wait()

	log.Infof("discovery: %d models across %d providers", snapshot.ModelCount(), len(snapshot))
	return snapshot, nil
}
