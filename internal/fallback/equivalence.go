// Copyright 2026 The switchGuard Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package fallback

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/traylinx/switchGuard/internal/constant"
)

// EquivalenceTable maps size-alias classes ("small", "medium", "large") to the
// canonical model each provider serves for that class. The table is loaded
// from YAML so catalogs can evolve without code changes, with a built-in
// default when no file is configured.
type EquivalenceTable struct {
	// Version identifies the table revision for operator inspection.
	Version int `yaml:"version" json:"version"`

	// Classes maps alias class -> provider -> canonical model id.
	Classes map[string]map[string]string `yaml:"classes" json:"classes"`
}

// DefaultEquivalenceTable returns the built-in size-alias table.
func DefaultEquivalenceTable() *EquivalenceTable {
	return &EquivalenceTable{
		Version: 1,
		Classes: map[string]map[string]string{
			"small": {
				constant.Ollama:       "llama3.2:3b",
				constant.LMStudio:     "llama-3.2-3b-instruct",
				constant.Gemini:       "gemini-2.0-flash-lite",
				constant.Claude:       "claude-3-5-haiku-latest",
				constant.OpenAICompat: "gpt-4o-mini",
			},
			"medium": {
				constant.Ollama:       "llama3.1:8b",
				constant.LMStudio:     "llama-3.1-8b-instruct",
				constant.Gemini:       "gemini-2.0-flash",
				constant.Claude:       "claude-sonnet-4-20250514",
				constant.OpenAICompat: "gpt-4o",
			},
			"large": {
				constant.Ollama:       "llama3.1:70b",
				constant.LMStudio:     "llama-3.1-70b-instruct",
				constant.Gemini:       "gemini-2.5-pro",
				constant.Claude:       "claude-opus-4-20250514",
				constant.OpenAICompat: "gpt-4.1",
			},
		},
	}
}

// ClassOf resolves the alias class for a model name. The name may be the
// class itself ("small") or any provider's canonical model for a class.
func (t *EquivalenceTable) ClassOf(name string) (string, bool) {
	lower := strings.ToLower(name)
	if _, ok := t.Classes[lower]; ok {
		return lower, true
	}
	for class, byProvider := range t.Classes {
		for _, model := range byProvider {
			if strings.EqualFold(model, name) {
				return class, true
			}
		}
	}
	return "", false
}

// CanonicalFor returns the canonical model the given provider serves for an
// alias class.
func (t *EquivalenceTable) CanonicalFor(class, providerName string) (string, bool) {
	byProvider, ok := t.Classes[class]
	if !ok {
		return "", false
	}
	model, ok := byProvider[providerName]
	return model, ok
}

// Equivalence holds the active table and supports hot-reloading it from a
// YAML file.
type Equivalence struct {
	mu    sync.RWMutex
	table *EquivalenceTable
	path  string

	watcher *fsnotify.Watcher
	stop    chan struct{}
}

// NewEquivalence creates an Equivalence seeded with the built-in table. When
// path is non-empty the file is loaded immediately and replaces the defaults.
func NewEquivalence(path string) (*Equivalence, error) {
	e := &Equivalence{
		table: DefaultEquivalenceTable(),
		path:  path,
		stop:  make(chan struct{}),
	}
	if path != "" {
		if err := e.Reload(); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// Table returns the active table.
func (e *Equivalence) Table() *EquivalenceTable {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.table
}

// Reload re-reads the table from disk and swaps it in atomically.
func (e *Equivalence) Reload() error {
	data, err := os.ReadFile(e.path)
	if err != nil {
		return fmt.Errorf("equivalence: failed to read %s: %w", e.path, err)
	}
	table := &EquivalenceTable{}
	if err := yaml.Unmarshal(data, table); err != nil {
		return fmt.Errorf("equivalence: failed to parse %s: %w", e.path, err)
	}
	if len(table.Classes) == 0 {
		return fmt.Errorf("equivalence: %s defines no classes", e.path)
	}
	e.mu.Lock()
	e.table = table
	e.mu.Unlock()
	log.Infof("equivalence table reloaded from %s (version %d, %d classes)", e.path, table.Version, len(table.Classes))
	return nil
}

// StartWatcher begins watching the table file for changes and reloads it on
// write. No-op when no file path is configured.
func (e *Equivalence) StartWatcher() error {
	if e.path == "" {
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	e.watcher = watcher

	// Watch the directory: editors replace files on save, which drops the
	// watch if set on the file itself.
	if err := watcher.Add(filepath.Dir(e.path)); err != nil {
		watcher.Close()
		return err
	}

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(e.path) {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				if err := e.Reload(); err != nil {
					log.Warnf("equivalence table reload failed: %v", err)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Warnf("equivalence table watcher error: %v", err)
			case <-e.stop:
				return
			}
		}
	}()
	return nil
}

// StopWatcher shuts down the file watcher.
func (e *Equivalence) StopWatcher() {
	close(e.stop)
	if e.watcher != nil {
		_ = e.watcher.Close()
	}
}
