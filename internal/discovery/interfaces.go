// Copyright 2026 The switchGuard Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package discovery provides model discovery interfaces and implementations.
// Discoverers query each provider's model-listing endpoint; the composite
// source fans out to all of them and assembles the full catalog snapshot the
// model manager caches.
package discovery

import (
	"context"

	"github.com/traylinx/switchGuard/internal/catalog"
)

// Source lists the models of every provider in one call. It is the single
// collaborator the model manager consumes.
type Source interface {
	// ListAllProviderModels returns a catalog snapshot mapping provider name
	// to its servable models.
	ListAllProviderModels(ctx context.Context) (catalog.Snapshot, error)
}

// ModelDiscoverer is the interface each per-provider discovery strategy
// implements.
type ModelDiscoverer interface {
	// Discover returns the models the provider currently serves.
	Discover(ctx context.Context) ([]*catalog.ModelInfo, error)

	// ProviderID returns the identifier for this discoverer's provider.
	ProviderID() string
}

// Fetcher is the interface for retrieving raw content from a remote source.
type Fetcher interface {
	// Fetch retrieves the content at the given URL.
	Fetch(ctx context.Context, url string) ([]byte, error)
}
