package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/insightstack/insightql/internal/query"
	"github.com/insightstack/insightql/pkg/insight"
)

// filterOps is checked in order so two-character operators win over
// their one-character prefixes.
var filterOps = []struct {
	symbol string
	op     insight.Op
}{
	{"!=", insight.OpNeq},
	{">=", insight.OpGte},
	{"<=", insight.OpLte},
	{"=", insight.OpEq},
	{">", insight.OpGt},
	{"<", insight.OpLt},
}

// parseFilter parses "column<op>value" into a predicate. Values that
// look numeric or boolean are typed accordingly; everything else is a
// string. The suffixes ":null" and ":notnull" map to IS NULL checks.
func parseFilter(s string) (insight.Predicate, error) {
	if col, ok := strings.CutSuffix(s, ":null"); ok {
		return insight.Predicate{Column: col, Op: insight.OpIsNull}, nil
	}
	if col, ok := strings.CutSuffix(s, ":notnull"); ok {
		return insight.Predicate{Column: col, Op: insight.OpIsNotNull}, nil
	}

	for _, cand := range filterOps {
		if idx := strings.Index(s, cand.symbol); idx > 0 {
			col := strings.TrimSpace(s[:idx])
			raw := strings.TrimSpace(s[idx+len(cand.symbol):])
			return insight.Predicate{Column: col, Op: cand.op, Value: parseValue(raw)}, nil
		}
	}
	return insight.Predicate{}, fmt.Errorf("cannot parse filter %q: expected column<op>value", s)
}

// parseValue types a raw flag value.
func parseValue(raw string) any {
	if raw == "null" {
		return nil
	}
	if raw == "true" {
		return true
	}
	if raw == "false" {
		return false
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	return raw
}

// parseSort parses "column[:asc|desc]".
func parseSort(s string) insight.SortOrder {
	col, dir, found := strings.Cut(s, ":")
	order := insight.SortOrder{Column: col, Direction: insight.Asc}
	if found && strings.EqualFold(dir, "desc") {
		order.Direction = insight.Desc
	}
	return order
}

// parseAgg parses "func:column:name"; name defaults to "func(column)"
// and count needs no column.
func parseAgg(s string) (insight.Metric, error) {
	parts := strings.SplitN(s, ":", 3)
	fn := insight.AggFunc(strings.ToUpper(parts[0]))
	switch fn {
	case insight.AggCount, insight.AggSum, insight.AggAvg, insight.AggMin, insight.AggMax:
	default:
		return insight.Metric{}, fmt.Errorf("unknown aggregation %q", parts[0])
	}

	m := insight.Metric{Func: fn}
	if len(parts) > 1 {
		m.Column = parts[1]
	}
	if len(parts) > 2 {
		m.Name = parts[2]
	} else {
		m.Name = fmt.Sprintf("%s(%s)", strings.ToLower(string(fn)), m.Column)
	}
	if fn != insight.AggCount && m.Column == "" {
		return insight.Metric{}, fmt.Errorf("aggregation %q needs a column", parts[0])
	}
	return m, nil
}

// parseJoin parses "dataset-id:left:right[:type]".
func parseJoin(s string) (uuid.UUID, query.JoinOptions, error) {
	parts := strings.Split(s, ":")
	if len(parts) < 3 {
		return uuid.Nil, query.JoinOptions{}, fmt.Errorf("cannot parse join %q: expected dataset-id:left:right[:type]", s)
	}

	id, err := uuid.Parse(parts[0])
	if err != nil {
		return uuid.Nil, query.JoinOptions{}, fmt.Errorf("invalid join dataset id %q: %w", parts[0], err)
	}

	opts := query.JoinOptions{LeftColumn: parts[1], RightColumn: parts[2], Type: insight.JoinInner}
	if len(parts) > 3 {
		switch t := insight.JoinType(strings.ToLower(parts[3])); t {
		case insight.JoinInner, insight.JoinLeft, insight.JoinRight, insight.JoinOuter:
			opts.Type = t
		default:
			return uuid.Nil, query.JoinOptions{}, fmt.Errorf("unknown join type %q", parts[3])
		}
	}
	return id, opts, nil
}
