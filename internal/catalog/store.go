// Package catalog persists dataset handles and saved insight
// descriptors as flat records in a SQLite database. It is the
// standalone implementation of the persistence collaborator the query
// core expects to exist around it; the core packages never import it.
package catalog

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // sqlite driver

	"github.com/insightstack/insightql/pkg/dataset"
	"github.com/insightstack/insightql/pkg/insight"
)

// Store is a SQLite-backed record store.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (or creates) the catalog database and initializes its
// schema.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog at %s: %w", path, err)
	}

	s := &Store{db: db, logger: logger}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS datasets (
		id         TEXT PRIMARY KEY,
		payload    TEXT NOT NULL,
		created_at TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS insights (
		id         TEXT PRIMARY KEY,
		name       TEXT NOT NULL,
		payload    TEXT NOT NULL,
		created_at TEXT NOT NULL
	);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize catalog schema: %w", err)
	}
	return nil
}

// SaveDataset inserts or replaces a dataset handle record.
func (s *Store) SaveDataset(h dataset.Handle) error {
	payload, err := json.Marshal(h)
	if err != nil {
		return fmt.Errorf("failed to encode dataset %s: %w", h.ID, err)
	}

	_, err = s.db.Exec(
		"INSERT OR REPLACE INTO datasets (id, payload, created_at) VALUES (?, ?, ?)",
		h.ID.String(), string(payload), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to save dataset %s: %w", h.ID, err)
	}

	s.logger.Debug("dataset saved", "dataset", h.ID)
	return nil
}

// GetDataset fetches a dataset handle by id.
func (s *Store) GetDataset(id uuid.UUID) (dataset.Handle, error) {
	var payload string
	err := s.db.QueryRow("SELECT payload FROM datasets WHERE id = ?", id.String()).Scan(&payload)
	if err == sql.ErrNoRows {
		return dataset.Handle{}, fmt.Errorf("dataset %s not found", id)
	}
	if err != nil {
		return dataset.Handle{}, fmt.Errorf("failed to load dataset %s: %w", id, err)
	}

	var h dataset.Handle
	if err := json.Unmarshal([]byte(payload), &h); err != nil {
		return dataset.Handle{}, fmt.Errorf("failed to decode dataset %s: %w", id, err)
	}
	return h, nil
}

// ListDatasets returns all dataset handles ordered by creation time.
func (s *Store) ListDatasets() ([]dataset.Handle, error) {
	rows, err := s.db.Query("SELECT payload FROM datasets ORDER BY created_at")
	if err != nil {
		return nil, fmt.Errorf("failed to list datasets: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var handles []dataset.Handle
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var h dataset.Handle
		if err := json.Unmarshal([]byte(payload), &h); err != nil {
			return nil, fmt.Errorf("failed to decode dataset record: %w", err)
		}
		handles = append(handles, h)
	}
	return handles, rows.Err()
}

// DeleteDataset removes a dataset record.
func (s *Store) DeleteDataset(id uuid.UUID) error {
	if _, err := s.db.Exec("DELETE FROM datasets WHERE id = ?", id.String()); err != nil {
		return fmt.Errorf("failed to delete dataset %s: %w", id, err)
	}
	return nil
}

// SaveInsight inserts or replaces a saved descriptor.
func (s *Store) SaveInsight(in insight.Insight) error {
	payload, err := in.ToJSON()
	if err != nil {
		return fmt.Errorf("failed to encode insight %s: %w", in.ID, err)
	}

	_, err = s.db.Exec(
		"INSERT OR REPLACE INTO insights (id, name, payload, created_at) VALUES (?, ?, ?, ?)",
		in.ID.String(), in.Name, string(payload), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to save insight %s: %w", in.ID, err)
	}

	s.logger.Debug("insight saved", "insight", in.ID, "name", in.Name)
	return nil
}

// GetInsight fetches a saved descriptor by id.
func (s *Store) GetInsight(id uuid.UUID) (insight.Insight, error) {
	var payload string
	err := s.db.QueryRow("SELECT payload FROM insights WHERE id = ?", id.String()).Scan(&payload)
	if err == sql.ErrNoRows {
		return insight.Insight{}, fmt.Errorf("insight %s not found", id)
	}
	if err != nil {
		return insight.Insight{}, fmt.Errorf("failed to load insight %s: %w", id, err)
	}
	return insight.FromJSON([]byte(payload))
}

// ListInsights returns all saved descriptors ordered by creation time.
func (s *Store) ListInsights() ([]insight.Insight, error) {
	rows, err := s.db.Query("SELECT payload FROM insights ORDER BY created_at")
	if err != nil {
		return nil, fmt.Errorf("failed to list insights: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var insights []insight.Insight
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		in, err := insight.FromJSON([]byte(payload))
		if err != nil {
			return nil, err
		}
		insights = append(insights, in)
	}
	return insights, rows.Err()
}

// DeleteInsight removes a saved descriptor.
func (s *Store) DeleteInsight(id uuid.UUID) error {
	if _, err := s.db.Exec("DELETE FROM insights WHERE id = ?", id.String()); err != nil {
		return fmt.Errorf("failed to delete insight %s: %w", id, err)
	}
	return nil
}
