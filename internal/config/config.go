// Package config loads InsightQL configuration from a yaml file and
// the environment, with sensible defaults. Precedence, lowest to
// highest: defaults, config file, INSIGHTQL_* environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config file names searched in the working directory.
const (
	FileName    = "insightql.yaml"
	FileNameAlt = "insightql.yml"
)

// Default values.
const (
	DefaultDatabasePath = ":memory:"
	DefaultStorageDir   = "data"
	DefaultCatalogPath  = "insightql.db"
	DefaultLogLevel     = "info"
)

// Config holds all runtime configuration.
type Config struct {
	// DatabasePath is the DuckDB database path; ":memory:" keeps the
	// engine in memory.
	DatabasePath string `koanf:"database_path"`

	// StorageDir is where dataset parquet files live.
	StorageDir string `koanf:"storage_dir"`

	// CatalogPath is the SQLite catalog database path.
	CatalogPath string `koanf:"catalog_path"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
}

// Load builds the configuration. cfgFile may be empty, in which case
// insightql.yaml / insightql.yml in dir are tried.
func Load(dir, cfgFile string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(map[string]interface{}{
		"database_path": DefaultDatabasePath,
		"storage_dir":   DefaultStorageDir,
		"catalog_path":  DefaultCatalogPath,
		"log_level":     DefaultLogLevel,
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if cfgFile == "" {
		cfgFile = findConfigFile(dir)
	}
	if cfgFile != "" {
		if err := k.Load(file.Provider(cfgFile), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", cfgFile, err)
		}
	}

	// INSIGHTQL_STORAGE_DIR -> storage_dir
	if err := k.Load(env.Provider("INSIGHTQL_", ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, "INSIGHTQL_"))
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	return &cfg, nil
}

// findConfigFile looks for a config file in dir; empty string when
// none exists.
func findConfigFile(dir string) string {
	for _, name := range []string{FileName, FileNameAlt} {
		candidate := filepath.Join(dir, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}
