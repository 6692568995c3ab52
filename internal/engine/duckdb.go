package engine

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "github.com/marcboeker/go-duckdb" // duckdb driver

	"github.com/insightstack/insightql/pkg/insight"
)

// DuckDB implements Engine on an embedded DuckDB database.
type DuckDB struct {
	db     *sql.DB
	logger *slog.Logger
}

// OpenDuckDB opens a DuckDB database. Use ":memory:" or an empty path
// for an in-memory database.
func OpenDuckDB(ctx context.Context, path string, logger *slog.Logger) (*DuckDB, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if path == "" {
		path = ":memory:"
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open duckdb connection: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping duckdb: %w", err)
	}

	logger.Debug("duckdb connected", "path", path)
	return &DuckDB{db: db, logger: logger}, nil
}

// Close closes the underlying connection.
func (d *DuckDB) Close() error {
	if d.db != nil {
		return d.db.Close()
	}
	return nil
}

// Query executes a statement and returns all rows as maps.
func (d *DuckDB) Query(ctx context.Context, sqlStr string) ([]map[string]any, error) {
	d.logger.Debug("executing query", "sql", sqlStr)

	rows, err := d.db.QueryContext(ctx, sqlStr)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanRows(rows)
}

// Exec executes a statement that returns no rows.
func (d *DuckDB) Exec(ctx context.Context, sqlStr string) error {
	d.logger.Debug("executing statement", "sql", sqlStr)

	if _, err := d.db.ExecContext(ctx, sqlStr); err != nil {
		return fmt.Errorf("failed to execute SQL: %w", err)
	}
	return nil
}

// TableExists probes information_schema for the table name.
func (d *DuckDB) TableExists(ctx context.Context, name string) (bool, error) {
	var one int
	err := d.db.QueryRowContext(ctx,
		"SELECT 1 FROM information_schema.tables WHERE table_name = ?", name).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to probe catalog for %s: %w", name, err)
	}
	return true, nil
}

// DropTable removes a table if it exists.
func (d *DuckDB) DropTable(ctx context.Context, name string) error {
	return d.Exec(ctx, "DROP TABLE IF EXISTS "+insight.QuoteIdent(name))
}

// ImportColumnar stages the parquet bytes in a temporary file and
// creates the table from it. DuckDB infers the schema from the file.
func (d *DuckDB) ImportColumnar(ctx context.Context, name string, data []byte) error {
	tmp, err := stageTempFile(data)
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp) }()

	createSQL := fmt.Sprintf("CREATE TABLE %s AS SELECT * FROM read_parquet(%s)",
		insight.QuoteIdent(name), insight.QuoteString(tmp))
	if err := d.Exec(ctx, createSQL); err != nil {
		return fmt.Errorf("failed to import columnar data into %s: %w", name, err)
	}

	d.logger.Debug("columnar import complete", "table", name, "bytes", len(data))
	return nil
}

// ExportColumnar writes the query result to a temporary parquet file
// and returns its bytes.
func (d *DuckDB) ExportColumnar(ctx context.Context, sqlStr string) ([]byte, error) {
	dir, err := os.MkdirTemp("", "insightql-export-")
	if err != nil {
		return nil, fmt.Errorf("failed to create export dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(dir) }()

	path := filepath.Join(dir, "result.parquet")
	copySQL := fmt.Sprintf("COPY (%s) TO %s (FORMAT PARQUET)", sqlStr, insight.QuoteString(path))
	if err := d.Exec(ctx, copySQL); err != nil {
		return nil, fmt.Errorf("failed to export query result: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read exported result: %w", err)
	}
	return data, nil
}

// stageTempFile writes data to a temp parquet file and returns its path.
func stageTempFile(data []byte) (string, error) {
	f, err := os.CreateTemp("", "insightql-import-*.parquet")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("failed to stage import file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("failed to close import file: %w", err)
	}
	return f.Name(), nil
}

// Ensure DuckDB implements Engine.
var _ Engine = (*DuckDB)(nil)
