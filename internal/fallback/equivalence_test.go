// Copyright 2026 The switchGuard Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package fallback

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/traylinx/switchGuard/internal/constant"
)

func TestDefaultEquivalenceTable(t *testing.T) {
	table := DefaultEquivalenceTable()

	for _, class := range []string{"small", "medium", "large"} {
		byProvider, ok := table.Classes[class]
		require.True(t, ok, "missing class %s", class)
		assert.NotEmpty(t, byProvider)
	}

	model, ok := table.CanonicalFor("small", constant.Ollama)
	require.True(t, ok)
	assert.NotEmpty(t, model)
}

func TestClassOf(t *testing.T) {
	table := DefaultEquivalenceTable()

	class, ok := table.ClassOf("small")
	require.True(t, ok)
	assert.Equal(t, "small", class)

	// A provider's canonical model resolves to its class too.
	canonical, _ := table.CanonicalFor("medium", constant.Gemini)
	class, ok = table.ClassOf(canonical)
	require.True(t, ok)
	assert.Equal(t, "medium", class)

	_, ok = table.ClassOf("not-a-class-or-model")
	assert.False(t, ok)
}

func TestNewEquivalenceLoadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "equivalence.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
version: 7
classes:
  small:
    ollama: tiny-model
`), 0o644))

	equiv, err := NewEquivalence(path)
	require.NoError(t, err)

	table := equiv.Table()
	assert.Equal(t, 7, table.Version)
	model, ok := table.CanonicalFor("small", constant.Ollama)
	require.True(t, ok)
	assert.Equal(t, "tiny-model", model)
}

func TestNewEquivalenceRejectsEmptyTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "equivalence.yaml")
	require.NoError(t, os.WriteFile(path, []byte("version: 1\n"), 0o644))

	_, err := NewEquivalence(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no classes")
}

func TestReloadSwapsTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "equivalence.yaml")
	require.NoError(t, os.WriteFile(path, []byte("version: 1\nclasses:\n  small:\n    ollama: one\n"), 0o644))

	equiv, err := NewEquivalence(path)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("version: 2\nclasses:\n  small:\n    ollama: two\n"), 0o644))
	require.NoError(t, equiv.Reload())

	model, _ := equiv.Table().CanonicalFor("small", constant.Ollama)
	assert.Equal(t, "two", model)
	assert.Equal(t, 2, equiv.Table().Version)
}

func TestWatcherReloadsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "equivalence.yaml")
	require.NoError(t, os.WriteFile(path, []byte("version: 1\nclasses:\n  small:\n    ollama: one\n"), 0o644))

	equiv, err := NewEquivalence(path)
	require.NoError(t, err)
	require.NoError(t, equiv.StartWatcher())
	defer equiv.StopWatcher()

	require.NoError(t, os.WriteFile(path, []byte("version: 2\nclasses:\n  small:\n    ollama: two\n"), 0o644))

	assert.Eventually(t, func() bool {
		return equiv.Table().Version == 2
	}, 2*time.Second, 20*time.Millisecond)
}
