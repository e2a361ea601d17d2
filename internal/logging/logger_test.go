package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetLogging(t *testing.T) {
	t.Helper()
	CloseAll()
	configMu.Lock()
	config = Config{}
	logsDir = ""
	configMu.Unlock()
	t.Cleanup(func() {
		CloseAll()
		configMu.Lock()
		config = Config{}
		logsDir = ""
		configMu.Unlock()
	})
}

func TestAllCategoriesLog(t *testing.T) {
	resetLogging(t)
	ws := t.TempDir()

	require.NoError(t, Initialize(ws, Config{DebugMode: true, Level: "debug"}))
	require.True(t, IsDebugMode())

	for _, cat := range AllCategories {
		Get(cat).Info("hello from %s", cat)
	}
	CloseAll()

	entries, err := os.ReadDir(filepath.Join(ws, ".assist", "logs"))
	require.NoError(t, err)

	found := make(map[string]bool)
	for _, e := range entries {
		for _, cat := range AllCategories {
			if strings.HasSuffix(e.Name(), "_"+string(cat)+".log") {
				found[string(cat)] = true
			}
		}
	}
	for _, cat := range AllCategories {
		assert.True(t, found[string(cat)], "missing log file for %s", cat)
	}
}

func TestProductionModeWritesNothing(t *testing.T) {
	resetLogging(t)
	ws := t.TempDir()

	require.NoError(t, Initialize(ws, Config{DebugMode: false}))
	Session("should not be written")

	_, err := os.Stat(filepath.Join(ws, ".assist", "logs"))
	assert.True(t, os.IsNotExist(err), "logs dir must not exist in production mode")
}

func TestCategoryFilter(t *testing.T) {
	resetLogging(t)
	ws := t.TempDir()

	require.NoError(t, Initialize(ws, Config{
		DebugMode:  true,
		Categories: map[string]bool{"tools": false},
	}))

	assert.False(t, IsCategoryEnabled(CategoryTools))
	assert.True(t, IsCategoryEnabled(CategorySession), "unlisted categories default to enabled")
}

func TestLevelFiltersDebug(t *testing.T) {
	resetLogging(t)
	ws := t.TempDir()

	require.NoError(t, Initialize(ws, Config{DebugMode: true, Level: "warn"}))
	Get(CategoryChain).Debug("hidden")
	Get(CategoryChain).Warn("visible")
	CloseAll()

	matches, err := filepath.Glob(filepath.Join(ws, ".assist", "logs", "*_chain.log"))
	require.NoError(t, err)
	require.Len(t, matches, 1)

	data, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	assert.NotContains(t, string(data), "hidden")
	assert.Contains(t, string(data), "visible")
}

func TestSetDebugModeToggle(t *testing.T) {
	resetLogging(t)
	ws := t.TempDir()

	require.NoError(t, Initialize(ws, Config{}))
	assert.False(t, IsCategoryEnabled(CategoryCLI))

	SetDebugMode(true)
	assert.True(t, IsCategoryEnabled(CategoryCLI))
	_, err := os.Stat(filepath.Join(ws, ".assist", "logs"))
	assert.NoError(t, err)

	SetDebugMode(false)
	assert.False(t, IsCategoryEnabled(CategoryCLI))
}

func TestInitializeRequiresWorkspace(t *testing.T) {
	resetLogging(t)
	assert.Error(t, Initialize("", Config{}))
}
