package query

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/insightstack/insightql/pkg/dataset"
)

// fakeEngine records executed statements and serves canned rows.
type fakeEngine struct {
	mu      sync.Mutex
	queries []string
	imports []string
	tables  map[string]bool
	rows    func(sqlStr string) ([]map[string]any, error)
	export  []byte
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{tables: map[string]bool{}}
}

func (e *fakeEngine) Query(_ context.Context, sqlStr string) ([]map[string]any, error) {
	e.mu.Lock()
	e.queries = append(e.queries, sqlStr)
	e.mu.Unlock()
	if e.rows != nil {
		return e.rows(sqlStr)
	}
	return nil, nil
}

func (e *fakeEngine) Exec(_ context.Context, sqlStr string) error {
	e.mu.Lock()
	e.queries = append(e.queries, sqlStr)
	e.mu.Unlock()
	return nil
}

func (e *fakeEngine) TableExists(_ context.Context, name string) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tables[name], nil
}

func (e *fakeEngine) DropTable(_ context.Context, name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.tables, name)
	return nil
}

func (e *fakeEngine) ImportColumnar(_ context.Context, name string, _ []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.imports = append(e.imports, name)
	e.tables[name] = true
	return nil
}

func (e *fakeEngine) ExportColumnar(_ context.Context, sqlStr string) ([]byte, error) {
	e.mu.Lock()
	e.queries = append(e.queries, sqlStr)
	e.mu.Unlock()
	return e.export, nil
}

func (e *fakeEngine) Close() error { return nil }

func (e *fakeEngine) lastQuery() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.queries) == 0 {
		return ""
	}
	return e.queries[len(e.queries)-1]
}

// fakeStore keeps dataset bytes in a map keyed by locator.
type fakeStore struct {
	mu    sync.Mutex
	blobs map[string][]byte
	puts  int
}

func newFakeStore() *fakeStore {
	return &fakeStore{blobs: map[string][]byte{}}
}

func (s *fakeStore) Fetch(_ context.Context, loc dataset.StorageLocation) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.blobs[loc.Locator]
	if !ok {
		return nil, fmt.Errorf("no blob at %s", loc.Locator)
	}
	return data, nil
}

func (s *fakeStore) Put(_ context.Context, data []byte) (dataset.StorageLocation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.puts++
	loc := dataset.StorageLocation{Kind: dataset.KindLocal, Locator: fmt.Sprintf("blob-%d", s.puts)}
	s.blobs[loc.Locator] = data
	return loc, nil
}

// newTestHandle registers fake bytes for a fresh handle.
func newTestHandle(s *fakeStore, locator string) dataset.Handle {
	s.mu.Lock()
	s.blobs[locator] = []byte("parquet-bytes")
	s.mu.Unlock()
	return dataset.New(dataset.StorageLocation{Kind: dataset.KindLocal, Locator: locator}, nil)
}

func containsInOrder(s string, parts ...string) bool {
	for _, p := range parts {
		i := strings.Index(s, p)
		if i < 0 {
			return false
		}
		s = s[i+len(p):]
	}
	return true
}
