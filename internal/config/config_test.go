package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir(), "")
	require.NoError(t, err)

	assert.Equal(t, DefaultDatabasePath, cfg.DatabasePath)
	assert.Equal(t, DefaultStorageDir, cfg.StorageDir)
	assert.Equal(t, DefaultCatalogPath, cfg.CatalogPath)
	assert.Equal(t, DefaultLogLevel, cfg.LogLevel)
}

func TestLoadFromYAMLFile(t *testing.T) {
	dir := t.TempDir()
	yaml := "database_path: analytics.duckdb\nstorage_dir: /var/lib/insightql\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(yaml), 0o644))

	cfg, err := Load(dir, "")
	require.NoError(t, err)

	assert.Equal(t, "analytics.duckdb", cfg.DatabasePath)
	assert.Equal(t, "/var/lib/insightql", cfg.StorageDir)
	// Keys the file omits keep their defaults.
	assert.Equal(t, DefaultLogLevel, cfg.LogLevel)
}

func TestLoadExplicitFileWins(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName),
		[]byte("log_level: warn\n"), 0o644))

	other := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(other, []byte("log_level: error\n"), 0o644))

	cfg, err := Load(dir, other)
	require.NoError(t, err)
	assert.Equal(t, "error", cfg.LogLevel)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileNameAlt),
		[]byte("storage_dir: from-file\n"), 0o644))

	t.Setenv("INSIGHTQL_STORAGE_DIR", "from-env")
	t.Setenv("INSIGHTQL_LOG_LEVEL", "debug")

	cfg, err := Load(dir, "")
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.StorageDir)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(t.TempDir(), "does-not-exist.yaml")
	require.Error(t, err)
}
