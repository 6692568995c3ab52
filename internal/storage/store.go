// Package storage moves dataset bytes between the outside world and
// the materializer. Datasets are stored as parquet files; the local
// filesystem backend sits behind an afero.Fs so tests can run fully
// in memory.
package storage

import (
	"context"
	"fmt"

	"github.com/insightstack/insightql/pkg/dataset"
)

// Store fetches and persists dataset bytes.
type Store interface {
	// Fetch returns the bytes behind a storage location.
	Fetch(ctx context.Context, loc dataset.StorageLocation) ([]byte, error)

	// Put persists bytes and returns the location they can be fetched
	// from later.
	Put(ctx context.Context, data []byte) (dataset.StorageLocation, error)
}

// UnsupportedStorageError reports a storage kind with no backend.
type UnsupportedStorageError struct {
	Kind dataset.Kind
}

func (e *UnsupportedStorageError) Error() string {
	return fmt.Sprintf("storage kind %q is not yet implemented", string(e.Kind))
}
