// Copyright 2026 The switchGuard Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package constant defines provider name constants used throughout switchGuard.
// These constants identify the backends the guard can route between, ensuring
// consistent naming across the application.
package constant

const (
	// Ollama represents the local Ollama inference server provider identifier.
	Ollama = "ollama"

	// LMStudio represents the local LM Studio inference server provider identifier.
	LMStudio = "lmstudio"

	// Gemini represents the Google Gemini provider identifier.
	Gemini = "gemini"

	// Claude represents the Anthropic Claude provider identifier.
	Claude = "claude"

	// OpenAICompat represents any OpenAI-compatible remote provider identifier.
	OpenAICompat = "openai-compat"

	// DefaultProvider is the provider assumed for bare model names without a
	// "provider:" prefix.
	DefaultProvider = Ollama
)
