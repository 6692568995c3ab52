package insight

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Insight is a declarative, immutable query descriptor: one base
// table plus optional joins, selected columns, filters, ordering,
// grouping and a row limit. All update methods return a new value;
// slices are never nil after construction.
type Insight struct {
	ID             uuid.UUID   `json:"id"`
	Name           string      `json:"name"`
	BaseTable      TableInfo   `json:"baseTable"`
	SelectedFields []uuid.UUID `json:"selectedFields"`
	Metrics        []Metric    `json:"metrics"`
	Filters        []Predicate `json:"filters"`
	GroupBy        []string    `json:"groupBy"`
	OrderBy        []SortOrder `json:"orderBy"`
	Limit          int         `json:"limit,omitempty"`
	Joins          []JoinSpec  `json:"joins"`
}

// Config is the construction input for an Insight.
type Config struct {
	Name           string
	BaseTable      TableInfo
	SelectedFields []uuid.UUID
	Metrics        []Metric
	Filters        []Predicate
	GroupBy        []string
	OrderBy        []SortOrder
	Limit          int
	Joins          []JoinSpec
}

// New validates the config and builds an Insight. The name must be
// non-empty and the base table must have an id.
func New(cfg Config) (Insight, error) {
	if cfg.Name == "" {
		return Insight{}, fmt.Errorf("insight name must not be empty")
	}
	if cfg.BaseTable.ID == uuid.Nil {
		return Insight{}, fmt.Errorf("insight %q has no base table", cfg.Name)
	}
	in := Insight{
		ID:             uuid.New(),
		Name:           cfg.Name,
		BaseTable:      cfg.BaseTable,
		SelectedFields: cfg.SelectedFields,
		Metrics:        cfg.Metrics,
		Filters:        cfg.Filters,
		GroupBy:        cfg.GroupBy,
		OrderBy:        cfg.OrderBy,
		Limit:          cfg.Limit,
		Joins:          cfg.Joins,
	}
	in.normalize()
	return in, nil
}

// normalize replaces nil slices with empty ones.
func (in *Insight) normalize() {
	if in.SelectedFields == nil {
		in.SelectedFields = []uuid.UUID{}
	}
	if in.Metrics == nil {
		in.Metrics = []Metric{}
	}
	if in.Filters == nil {
		in.Filters = []Predicate{}
	}
	if in.GroupBy == nil {
		in.GroupBy = []string{}
	}
	if in.OrderBy == nil {
		in.OrderBy = []SortOrder{}
	}
	if in.Joins == nil {
		in.Joins = []JoinSpec{}
	}
}

// WithFilters returns a copy with the filter list replaced.
func (in Insight) WithFilters(filters ...Predicate) Insight {
	in.Filters = append([]Predicate{}, filters...)
	return in
}

// WithOrderBy returns a copy with the sort order replaced.
func (in Insight) WithOrderBy(orders ...SortOrder) Insight {
	in.OrderBy = append([]SortOrder{}, orders...)
	return in
}

// WithGroupBy returns a copy with group columns and metrics replaced.
func (in Insight) WithGroupBy(columns []string, metrics ...Metric) Insight {
	in.GroupBy = append([]string{}, columns...)
	in.Metrics = append([]Metric{}, metrics...)
	return in
}

// WithSelectedFields returns a copy with the projection replaced.
func (in Insight) WithSelectedFields(ids ...uuid.UUID) Insight {
	in.SelectedFields = append([]uuid.UUID{}, ids...)
	return in
}

// WithLimit returns a copy with the row limit replaced.
func (in Insight) WithLimit(n int) Insight {
	in.Limit = n
	return in
}

// WithJoin returns a copy with the join appended. An empty join type
// defaults to inner.
func (in Insight) WithJoin(j JoinSpec) Insight {
	if j.Type == "" {
		j.Type = JoinInner
	}
	if j.SelectedFields == nil {
		j.SelectedFields = []uuid.UUID{}
	}
	joins := make([]JoinSpec, len(in.Joins), len(in.Joins)+1)
	copy(joins, in.Joins)
	in.Joins = append(joins, j)
	return in
}

// ToJSON serializes the descriptor. Reconstructing via FromJSON and
// recompiling yields byte-identical SQL.
func (in Insight) ToJSON() ([]byte, error) {
	return json.Marshal(in)
}

// FromJSON reconstructs a descriptor serialized with ToJSON.
func FromJSON(data []byte) (Insight, error) {
	var in Insight
	if err := json.Unmarshal(data, &in); err != nil {
		return Insight{}, fmt.Errorf("failed to decode insight: %w", err)
	}
	in.normalize()
	return in, nil
}
