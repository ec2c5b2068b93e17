package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadWatcher_Defaults(t *testing.T) {
	os.Clearenv()
	cfg, err := LoadWatcher()
	require.NoError(t, err)
	assert.Equal(t, "localhost", cfg.Broker.Host)
	assert.Equal(t, 5672, cfg.Broker.Port)
	assert.Equal(t, ".", cfg.RootPath)
	assert.Contains(t, cfg.IgnorePatterns, "node_modules")
	assert.Equal(t, "python", cfg.ExtensionMap[".py"])
}

func TestLoadWatcher_EnvOverride(t *testing.T) {
	os.Clearenv()
	os.Setenv("WATCHER_ROOT_PATH", "/srv/repo")
	os.Setenv("WATCHER_BROKER_HOST", "broker.internal")
	os.Setenv("WATCHER_IGNORE_PATTERNS", "vendor,*.log")
	defer os.Clearenv()

	cfg, err := LoadWatcher()
	require.NoError(t, err)
	assert.Equal(t, "/srv/repo", cfg.RootPath)
	assert.Equal(t, "broker.internal", cfg.Broker.Host)
	assert.Equal(t, []string{"vendor", "*.log"}, cfg.IgnorePatterns)
}

func TestLoadWatcher_ConfigFileOverridesPatterns(t *testing.T) {
	os.Clearenv()
	dir := t.TempDir()
	path := filepath.Join(dir, "pipeline.yaml")
	require.NoError(t, os.WriteFile(path, []byte(""+
		"ignore_patterns:\n  - vendor\n  - .build\n"+
		"extension_map:\n  .py: python\n  .sql: sql\n"), 0644))
	os.Setenv("WATCHER_CONFIG_FILE", path)
	defer os.Clearenv()

	cfg, err := LoadWatcher()
	require.NoError(t, err)
	assert.Equal(t, []string{"vendor", ".build"}, cfg.IgnorePatterns)
	assert.Equal(t, "python", cfg.ExtensionMap[".py"])
	assert.Equal(t, "sql", cfg.ExtensionMap[".sql"])
}

func TestLoadAnalyzer_RequiresLanguage(t *testing.T) {
	os.Clearenv()
	cfg, err := LoadAnalyzer("python")
	require.NoError(t, err)
	assert.Equal(t, "python", cfg.Language)

	_, err = LoadAnalyzer("")
	require.Error(t, err)
}

func TestLoadIngest_Defaults(t *testing.T) {
	os.Clearenv()
	cfg, err := LoadIngest()
	require.NoError(t, err)
	assert.Equal(t, "bolt://localhost:7687", cfg.Graph.URI)
	assert.Equal(t, 4, cfg.Prefetch)
}
