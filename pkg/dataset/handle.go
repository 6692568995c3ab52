// Package dataset defines immutable references to stored datasets.
// A Handle points at where a dataset's bytes live; it carries no data
// itself and is shared by reference between the query core and the
// table materializer.
package dataset

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Kind identifies a storage backend.
type Kind string

// Supported storage kinds. Only KindLocal has a concrete backend.
const (
	KindLocal Kind = "local"
)

// TableNamePrefix is prepended to the dataset id when deriving the
// engine table name.
const TableNamePrefix = "df_"

// StorageLocation describes where a dataset's bytes can be fetched from.
type StorageLocation struct {
	Kind    Kind   `json:"kind"`
	Locator string `json:"locator"`
}

// Handle is an immutable reference to a dataset's byte-level storage
// location. Treat a Handle as a value: never mutate its slices after
// construction.
type Handle struct {
	ID         uuid.UUID       `json:"id"`
	Location   StorageLocation `json:"storageLocation"`
	ColumnIDs  []uuid.UUID     `json:"columnIds"`
	PrimaryKey []string        `json:"primaryKey,omitempty"`
	CreatedAt  time.Time       `json:"createdAt"`
}

// New creates a Handle with a fresh id. Nil slices are normalized to
// empty so downstream code never sees nil.
func New(loc StorageLocation, columnIDs []uuid.UUID) Handle {
	if columnIDs == nil {
		columnIDs = []uuid.UUID{}
	}
	return Handle{
		ID:        uuid.New(),
		Location:  loc,
		ColumnIDs: columnIDs,
		CreatedAt: time.Now().UTC(),
	}
}

// TableName returns the deterministic engine table name for this handle.
func (h Handle) TableName() string {
	return TableNameForID(h.ID)
}

// TableNameForID derives the engine table name for a dataset id:
// "df_" plus the id with every "-" replaced by "_". This format is
// part of the interop contract and must not change.
func TableNameForID(id uuid.UUID) string {
	return TableNamePrefix + strings.ReplaceAll(id.String(), "-", "_")
}
