package storage

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/insightstack/insightql/pkg/dataset"
)

// Local stores dataset bytes as parquet files under a single
// directory. The locator is the file name relative to that directory.
type Local struct {
	fs     afero.Fs
	dir    string
	logger *slog.Logger
}

// NewLocal creates a local store rooted at dir on the given
// filesystem. Pass afero.NewOsFs() for real disk access or
// afero.NewMemMapFs() in tests.
func NewLocal(fs afero.Fs, dir string, logger *slog.Logger) (*Local, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage dir %s: %w", dir, err)
	}
	return &Local{fs: fs, dir: dir, logger: logger}, nil
}

// Fetch reads the bytes behind a local location. Any other storage
// kind fails fast rather than silently no-oping.
func (s *Local) Fetch(_ context.Context, loc dataset.StorageLocation) ([]byte, error) {
	if loc.Kind != dataset.KindLocal {
		return nil, &UnsupportedStorageError{Kind: loc.Kind}
	}

	path := filepath.Join(s.dir, loc.Locator)
	data, err := afero.ReadFile(s.fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset bytes at %s: %w", path, err)
	}
	return data, nil
}

// Put validates the bytes as parquet and writes them under a fresh
// file name.
func (s *Local) Put(_ context.Context, data []byte) (dataset.StorageLocation, error) {
	if _, err := Describe(data); err != nil {
		return dataset.StorageLocation{}, fmt.Errorf("refusing to store non-parquet bytes: %w", err)
	}

	name := uuid.NewString() + ".parquet"
	path := filepath.Join(s.dir, name)
	if err := afero.WriteFile(s.fs, path, data, 0o644); err != nil {
		return dataset.StorageLocation{}, fmt.Errorf("failed to write dataset bytes to %s: %w", path, err)
	}

	s.logger.Debug("dataset bytes stored", "locator", name, "bytes", len(data))
	return dataset.StorageLocation{Kind: dataset.KindLocal, Locator: name}, nil
}

// Ensure Local implements Store.
var _ Store = (*Local)(nil)
