// Copyright 2026 The switchGuard Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package discovery

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/traylinx/switchGuard/internal/constant"
	"github.com/traylinx/switchGuard/internal/provider"
)

func TestOllamaDiscoverer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/tags", r.URL.Path)
		w.Write([]byte(`{"models":[
			{"name":"llama3.2:3b","details":{"family":"llama"}},
			{"name":"mistral:7b","details":{"family":"mistral"}},
			{"name":""}
		]}`))
	}))
	defer server.Close()

	p := &provider.Provider{Name: constant.Ollama, BaseURL: server.URL, Enabled: true}
	d := NewOllamaDiscoverer(p, NewHTTPFetcher())

	models, err := d.Discover(context.Background())
	require.NoError(t, err)
	require.Len(t, models, 2)

	assert.Equal(t, "llama3.2:3b", models[0].ID)
	assert.Equal(t, constant.Ollama, models[0].Provider)
	assert.Contains(t, models[0].Aliases, "llama3.2")
	assert.Equal(t, "llama", models[0].Description)
}

func TestOpenAICompatDiscoverer(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{"data":[{"id":"gpt-4o-mini"},{"id":"gpt-4o"}]}`))
	}))
	defer server.Close()

	p := &provider.Provider{Name: constant.OpenAICompat, BaseURL: server.URL, APIKey: "sk-test", Enabled: true}
	d := NewOpenAICompatDiscoverer(p, "", NewHTTPFetcher())

	models, err := d.Discover(context.Background())
	require.NoError(t, err)
	require.Len(t, models, 2)
	assert.Equal(t, "gpt-4o-mini", models[0].ID)
	assert.Equal(t, "Bearer sk-test", gotAuth)
}

func TestOpenAICompatDiscovererGeminiShape(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"models":[
			{"name":"models/gemini-2.0-flash","display_name":"Gemini 2.0 Flash","description":"fast"}
		]}`))
	}))
	defer server.Close()

	p := &provider.Provider{Name: constant.Gemini, BaseURL: server.URL, Enabled: true}
	d := NewOpenAICompatDiscoverer(p, "/v1beta/models", NewHTTPFetcher())

	models, err := d.Discover(context.Background())
	require.NoError(t, err)
	require.Len(t, models, 1)
	assert.Equal(t, "gemini-2.0-flash", models[0].ID)
	assert.Contains(t, models[0].Aliases, "Gemini 2.0 Flash")
	assert.Equal(t, "fast", models[0].Description)
}

func TestDiscovererUnexpectedShape(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"unexpected":true}`))
	}))
	defer server.Close()

	p := &provider.Provider{Name: constant.Ollama, BaseURL: server.URL, Enabled: true}
	_, err := NewOllamaDiscoverer(p, NewHTTPFetcher()).Discover(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected response shape")
}

func TestCompositeListAllProviderModels(t *testing.T) {
	ollamaSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"models":[{"name":"llama3.2:3b"}]}`))
	}))
	defer ollamaSrv.Close()
	openaiSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[{"id":"gpt-4o"}]}`))
	}))
	defer openaiSrv.Close()

	composite := NewComposite(
		NewOllamaDiscoverer(&provider.Provider{Name: constant.Ollama, BaseURL: ollamaSrv.URL, Enabled: true}, NewHTTPFetcher()),
		NewOpenAICompatDiscoverer(&provider.Provider{Name: constant.OpenAICompat, BaseURL: openaiSrv.URL, Enabled: true}, "", NewHTTPFetcher()),
	)

	snapshot, err := composite.ListAllProviderModels(context.Background())
	require.NoError(t, err)
	assert.Len(t, snapshot, 2)
	assert.Len(t, snapshot[constant.Ollama], 1)
	assert.Len(t, snapshot[constant.OpenAICompat], 1)
}

func TestCompositeToleratesFailingProvider(t *testing.T) {
	okSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"models":[{"name":"llama3.2:3b"}]}`))
	}))
	defer okSrv.Close()

	composite := NewComposite(
		NewOllamaDiscoverer(&provider.Provider{Name: constant.Ollama, BaseURL: okSrv.URL, Enabled: true}, NewHTTPFetcher()),
		// Nothing listens here; its listing fails but the snapshot survives.
		NewOpenAICompatDiscoverer(&provider.Provider{Name: constant.Claude, BaseURL: "http://127.0.0.1:1", Enabled: true}, "", NewHTTPFetcher()),
	)

	snapshot, err := composite.ListAllProviderModels(context.Background())
	require.NoError(t, err)
	assert.Len(t, snapshot[constant.Ollama], 1)
	assert.Empty(t, snapshot[constant.Claude])
}

func TestForRegistryBuildsDiscovererPerEnabledProvider(t *testing.T) {
	reg, err := provider.NewRegistry([]*provider.Provider{
		{Name: constant.Ollama, BaseURL: "http://localhost:11434", Enabled: true},
		{Name: constant.Gemini, BaseURL: "http://localhost:9", Enabled: true},
		{Name: constant.Claude, BaseURL: "http://localhost:9", Enabled: false},
	})
	require.NoError(t, err)

	composite := ForRegistry(reg)
	assert.Len(t, composite.discoverers, 2)
}
