package insight

import (
	"fmt"

	"github.com/google/uuid"
)

// MissingDatasetError reports a compile against a table that has no
// materialized data. Compilation never proceeds past it.
type MissingDatasetError struct {
	Table  string
	Joined bool
}

func (e *MissingDatasetError) Error() string {
	if e.Joined {
		return fmt.Sprintf("Joined table %s has no cached data. Load data first.", e.Table)
	}
	return fmt.Sprintf("Base table %s has no cached data. Load data first.", e.Table)
}

// JoinKeyNotFoundError reports a join key field id that does not
// resolve against its table's schema.
type JoinKeyNotFoundError struct {
	Table   string
	FieldID uuid.UUID
}

func (e *JoinKeyNotFoundError) Error() string {
	return fmt.Sprintf("Join key fields not found: field %s on table %s", e.FieldID, e.Table)
}
