package query

import (
	"context"
	"fmt"
	"strings"

	"github.com/insightstack/insightql/pkg/dataset"
	"github.com/insightstack/insightql/pkg/insight"
)

// DefaultPreviewRows is the row cap used by Preview when the caller
// passes a non-positive count.
const DefaultPreviewRows = 10

// SQL materializes the referenced datasets and compiles the
// accumulated operations to a SQL string without executing it.
func (b *Builder) SQL(ctx context.Context) (string, error) {
	return b.sqlForOps(ctx, b.ops)
}

// Rows compiles and executes the chain, returning the result rows.
func (b *Builder) Rows(ctx context.Context) ([]map[string]any, error) {
	sqlStr, err := b.SQL(ctx)
	if err != nil {
		return nil, err
	}
	return b.eng.Query(ctx, sqlStr)
}

// Preview is shorthand for Limit(n).Rows(). A non-positive n defaults
// to DefaultPreviewRows.
func (b *Builder) Preview(ctx context.Context, n int) ([]map[string]any, error) {
	if n <= 0 {
		n = DefaultPreviewRows
	}
	return b.Limit(n).Rows(ctx)
}

// Run compiles and executes the chain, exports the result as columnar
// bytes, and wraps them in a brand-new dataset handle. The handle's
// column-id list is empty: the result schema is not re-resolved to
// field ids here.
func (b *Builder) Run(ctx context.Context) (dataset.Handle, error) {
	sqlStr, err := b.SQL(ctx)
	if err != nil {
		return dataset.Handle{}, err
	}

	data, err := b.eng.ExportColumnar(ctx, sqlStr)
	if err != nil {
		return dataset.Handle{}, err
	}

	loc, err := b.store.Put(ctx, data)
	if err != nil {
		return dataset.Handle{}, err
	}

	h := dataset.New(loc, nil)
	b.logger.Debug("query result materialized", "dataset", h.ID, "bytes", len(data))
	return h, nil
}

// Count returns the number of rows the chain would produce, ignoring
// pagination, sorting and projection operations.
func (b *Builder) Count(ctx context.Context) (int64, error) {
	ops := make([]operation, 0, len(b.ops))
	for _, op := range b.ops {
		switch op.kind {
		case opLimit, opOffset, opSort, opSelect:
			continue
		default:
			ops = append(ops, op)
		}
	}

	inner, err := b.sqlForOps(ctx, ops)
	if err != nil {
		return 0, err
	}

	rows, err := b.eng.Query(ctx, "SELECT COUNT(*) FROM ("+inner+")")
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, fmt.Errorf("count query returned no rows")
	}
	for _, v := range rows[0] {
		return toInt64(v)
	}
	return 0, fmt.Errorf("count query returned no columns")
}

// sqlForOps builds the plan from ops, ensures every referenced table
// is materialized, and emits SQL. The plan is rebuilt on every call;
// nothing is cached across structural changes to the operation list.
func (b *Builder) sqlForOps(ctx context.Context, ops []operation) (string, error) {
	p := buildPlan(ops)

	baseName, err := b.mat.EnsureLoaded(ctx, b.handle)
	if err != nil {
		return "", err
	}

	joinNames := make([]string, len(p.joins))
	for i, j := range p.joins {
		name, err := b.mat.EnsureLoaded(ctx, j.handle)
		if err != nil {
			return "", err
		}
		joinNames[i] = name
	}

	aggregated := len(p.metrics) > 0 || len(p.groupCols) > 0

	sel := "*"
	switch {
	case aggregated:
		parts := make([]string, 0, len(p.groupCols)+len(p.metrics))
		for _, g := range p.groupCols {
			parts = append(parts, insight.QuoteIdent(g))
		}
		for _, m := range p.metrics {
			parts = append(parts, m.SQL())
		}
		sel = strings.Join(parts, ", ")
	case len(p.selection) > 0:
		parts := make([]string, len(p.selection))
		for i, c := range p.selection {
			parts[i] = insight.QuoteIdent(c)
		}
		sel = strings.Join(parts, ", ")
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(sel)
	sb.WriteString(" FROM ")
	sb.WriteString(insight.QuoteIdent(baseName))
	for i, j := range p.joins {
		sb.WriteString(" ")
		sb.WriteString(j.opts.Type.Keyword())
		sb.WriteString(" JOIN ")
		sb.WriteString(insight.QuoteIdent(joinNames[i]))
		sb.WriteString(" ON ")
		sb.WriteString(insight.QuoteIdent(baseName))
		sb.WriteString(".")
		sb.WriteString(insight.QuoteIdent(j.opts.LeftColumn))
		sb.WriteString(" = ")
		sb.WriteString(insight.QuoteIdent(joinNames[i]))
		sb.WriteString(".")
		sb.WriteString(insight.QuoteIdent(j.opts.RightColumn))
	}

	if len(p.filters) > 0 {
		parts := make([]string, len(p.filters))
		for i, f := range p.filters {
			rendered, err := f.SQL()
			if err != nil {
				return "", err
			}
			parts[i] = rendered
		}
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(parts, " AND "))
	}

	if len(p.groupCols) > 0 {
		quoted := make([]string, len(p.groupCols))
		for i, g := range p.groupCols {
			quoted[i] = insight.QuoteIdent(g)
		}
		sb.WriteString(" GROUP BY ")
		sb.WriteString(strings.Join(quoted, ", "))
	}

	if len(p.sorts) > 0 {
		parts := make([]string, len(p.sorts))
		for i, s := range p.sorts {
			dir := s.Direction
			if dir != insight.Desc {
				dir = insight.Asc
			}
			parts[i] = insight.QuoteIdent(s.Column) + " " + string(dir)
		}
		sb.WriteString(" ORDER BY ")
		sb.WriteString(strings.Join(parts, ", "))
	}

	if p.limit > 0 {
		fmt.Fprintf(&sb, " LIMIT %d", p.limit)
	}
	if p.offset > 0 {
		fmt.Fprintf(&sb, " OFFSET %d", p.offset)
	}

	return sb.String(), nil
}

// toInt64 normalizes the numeric types drivers hand back for counts.
func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int32:
		return int64(n), nil
	case int:
		return int64(n), nil
	case uint64:
		return int64(n), nil
	case float64:
		return int64(n), nil
	default:
		return 0, fmt.Errorf("unexpected count value of type %T", v)
	}
}
