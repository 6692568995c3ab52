// Package insight defines declarative query descriptors and the
// compiler that turns them into SQL for the embedded engine.
package insight

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// Field maps a logical column id to its physical column name.
type Field struct {
	ID           uuid.UUID `json:"id"`
	DisplayName  string    `json:"displayName"`
	ColumnName   string    `json:"columnName"`
	Type         string    `json:"type,omitempty"`
	IsIdentifier bool      `json:"isIdentifier,omitempty"`
	IsReference  bool      `json:"isReference,omitempty"`
}

// TableInfo is a dataset's schema view. DatasetID is nil when the
// table has no materialized data yet; compiling a query against such
// a table fails.
type TableInfo struct {
	ID          uuid.UUID  `json:"id"`
	DisplayName string     `json:"displayName"`
	DatasetID   *uuid.UUID `json:"datasetHandleId,omitempty"`
	Fields      []Field    `json:"fields"`
}

// FieldByID resolves a field id against the table's schema.
func (t TableInfo) FieldByID(id uuid.UUID) (Field, bool) {
	for _, f := range t.Fields {
		if f.ID == id {
			return f, true
		}
	}
	return Field{}, false
}

// hasColumn reports whether the table has a field with the given
// physical column name.
func (t TableInfo) hasColumn(name string) bool {
	for _, f := range t.Fields {
		if f.ColumnName == name {
			return true
		}
	}
	return false
}

// uuidSuffix matches a trailing UUID appended to auto-generated table
// display names, optionally preceded by a separator.
var uuidSuffix = regexp.MustCompile(`[ _-]?[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

// baseDisplayName returns the display name with any trailing
// UUID-looking suffix stripped. Used to build column aliases for
// disambiguation.
func (t TableInfo) baseDisplayName() string {
	return uuidSuffix.ReplaceAllString(t.DisplayName, "")
}

// Op is a closed set of predicate operators.
type Op int

// Predicate operators. The compiler switches exhaustively over these;
// an out-of-range value is a compile error, never silently emitted.
const (
	OpEq Op = iota
	OpNeq
	OpGt
	OpGte
	OpLt
	OpLte
	OpIn
	OpNotIn
	OpIsNull
	OpIsNotNull
)

var opSQL = map[Op]string{
	OpEq:        "=",
	OpNeq:       "!=",
	OpGt:        ">",
	OpGte:       ">=",
	OpLt:        "<",
	OpLte:       "<=",
	OpIn:        "IN",
	OpNotIn:     "NOT IN",
	OpIsNull:    "IS NULL",
	OpIsNotNull: "IS NOT NULL",
}

// String returns the SQL spelling of the operator.
func (o Op) String() string {
	if s, ok := opSQL[o]; ok {
		return s
	}
	return fmt.Sprintf("Op(%d)", int(o))
}

// ParseOp parses an operator from its SQL spelling, case-insensitively.
func ParseOp(s string) (Op, error) {
	needle := strings.ToUpper(strings.TrimSpace(s))
	for op, sql := range opSQL {
		if sql == needle {
			return op, nil
		}
	}
	return 0, fmt.Errorf("unknown operator %q", s)
}

// MarshalJSON encodes the operator as its SQL spelling so persisted
// descriptors stay readable and stable across versions.
func (o Op) MarshalJSON() ([]byte, error) {
	s, ok := opSQL[o]
	if !ok {
		return nil, fmt.Errorf("cannot marshal unknown operator %d", int(o))
	}
	return json.Marshal(s)
}

// UnmarshalJSON decodes an operator from its SQL spelling.
func (o *Op) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	op, err := ParseOp(s)
	if err != nil {
		return err
	}
	*o = op
	return nil
}

// Predicate is a single filter condition. Value is ignored for
// OpIsNull/OpIsNotNull and must be a slice for OpIn/OpNotIn.
type Predicate struct {
	Column string `json:"column"`
	Op     Op     `json:"op"`
	Value  any    `json:"value,omitempty"`
}

// SortDirection is ASC or DESC.
type SortDirection string

// Sort directions.
const (
	Asc  SortDirection = "ASC"
	Desc SortDirection = "DESC"
)

// SortOrder is one ORDER BY entry.
type SortOrder struct {
	Column    string        `json:"column"`
	Direction SortDirection `json:"direction"`
}

// AggFunc is an aggregation function name.
type AggFunc string

// Supported aggregation functions. AggCount ignores its source column.
const (
	AggCount AggFunc = "COUNT"
	AggSum   AggFunc = "SUM"
	AggAvg   AggFunc = "AVG"
	AggMin   AggFunc = "MIN"
	AggMax   AggFunc = "MAX"
)

// Metric is one aggregation in the projection, emitted as
// FUNC("column") AS "name".
type Metric struct {
	Name   string  `json:"name"`
	Func   AggFunc `json:"func"`
	Column string  `json:"column,omitempty"`
}

// JoinType selects the SQL join flavor.
type JoinType string

// Join types.
const (
	JoinInner JoinType = "inner"
	JoinLeft  JoinType = "left"
	JoinRight JoinType = "right"
	JoinOuter JoinType = "outer"
)

// Keyword returns the SQL join keyword for the type. The zero value
// defaults to INNER.
func (j JoinType) Keyword() string {
	switch j {
	case JoinLeft:
		return "LEFT"
	case JoinRight:
		return "RIGHT"
	case JoinOuter:
		return "FULL OUTER"
	default:
		return "INNER"
	}
}

// JoinKey names the field pair a join is made on.
type JoinKey struct {
	BaseField   uuid.UUID `json:"baseField"`
	JoinedField uuid.UUID `json:"joinedField"`
}

// JoinSpec describes one joined table.
type JoinSpec struct {
	Table          TableInfo   `json:"table"`
	SelectedFields []uuid.UUID `json:"selectedFields"`
	On             JoinKey     `json:"joinOn"`
	Type           JoinType    `json:"joinType"`
}
