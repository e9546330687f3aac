// Copyright 2026 The switchGuard Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package catalog defines the model catalog types shared by discovery,
// fallback resolution, and the model manager. A catalog snapshot is produced
// wholesale by discovery and never mutated afterwards.
package catalog

import (
	"strings"
)

// ModelInfo represents one servable model as reported by discovery.
type ModelInfo struct {
	// ID is the canonical model identifier.
	ID string `json:"id"`

	// Aliases lists human-friendly names for the model, such as a size-class
	// alias ("small").
	Aliases []string `json:"aliases,omitempty"`

	// Provider is the backend that serves this model.
	Provider string `json:"provider"`

	// Description provides free-text information about the model.
	Description string `json:"description,omitempty"`
}

// Matches reports whether name equals the model's id or one of its aliases,
// case-insensitively.
func (m *ModelInfo) Matches(name string) bool {
	if strings.EqualFold(m.ID, name) {
		return true
	}
	for _, alias := range m.Aliases {
		if strings.EqualFold(alias, name) {
			return true
		}
	}
	return false
}

// Snapshot maps provider name to the models that provider serves.
type Snapshot map[string][]*ModelInfo

// Find returns the first model on the given provider whose id or alias
// matches name, or nil.
func (s Snapshot) Find(providerName, name string) *ModelInfo {
	for _, m := range s[providerName] {
		if m.Matches(name) {
			return m
		}
	}
	return nil
}

// ModelCount returns the total number of models across all providers.
func (s Snapshot) ModelCount() int {
	total := 0
	for _, models := range s {
		total += len(models)
	}
	return total
}
