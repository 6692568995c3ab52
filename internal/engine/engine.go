// Package engine wraps the embedded columnar SQL engine behind a
// small opaque interface: execute SQL, probe the catalog, and move
// columnar bytes in and out. The query core depends only on this
// interface, never on the concrete database.
package engine

import (
	"context"
	"database/sql"
	"fmt"
)

// Engine is the embedded SQL engine as seen by the query core.
type Engine interface {
	// Query executes a statement and returns all rows as maps keyed
	// by column name.
	Query(ctx context.Context, sqlStr string) ([]map[string]any, error)

	// Exec executes a statement that returns no rows.
	Exec(ctx context.Context, sqlStr string) error

	// TableExists probes the engine catalog for a table name.
	TableExists(ctx context.Context, name string) (bool, error)

	// DropTable removes a table if it exists.
	DropTable(ctx context.Context, name string) error

	// ImportColumnar bulk-loads columnar bytes into a new table.
	ImportColumnar(ctx context.Context, name string, data []byte) error

	// ExportColumnar runs a query and returns its result as columnar
	// bytes suitable for ImportColumnar.
	ExportColumnar(ctx context.Context, sqlStr string) ([]byte, error)

	// Close releases the underlying connection.
	Close() error
}

// scanRows drains sql.Rows into maps keyed by column name. Byte
// slices are converted to strings for readability.
func scanRows(rows *sql.Rows) ([]map[string]any, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var results []map[string]any
	for rows.Next() {
		values := make([]any, len(cols))
		valuePtrs := make([]any, len(cols))
		for i := range values {
			valuePtrs[i] = &values[i]
		}

		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, err
		}

		row := make(map[string]any, len(cols))
		for i, col := range cols {
			val := values[i]
			if b, ok := val.([]byte); ok {
				val = string(b)
			}
			row[col] = val
		}
		results = append(results, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return results, nil
}
