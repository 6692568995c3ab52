package insight

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/insightstack/insightql/pkg/dataset"
)

// Compile turns a descriptor into a SQL string. It is pure and
// deterministic for a given descriptor; it returns an error rather
// than emitting invalid SQL. Clause order is always
// SELECT ... FROM ... [WHERE] [GROUP BY] [ORDER BY] [LIMIT]
// regardless of how the descriptor was assembled.
func Compile(in Insight) (string, error) {
	if len(in.Joins) > 0 {
		return compileJoin(in)
	}
	return compileSimple(in)
}

// tableNameOf resolves a table's engine name, failing when the table
// has no materialized dataset behind it.
func tableNameOf(t TableInfo, joined bool) (string, error) {
	if t.DatasetID == nil {
		return "", &MissingDatasetError{Table: t.DisplayName, Joined: joined}
	}
	return dataset.TableNameForID(*t.DatasetID), nil
}

// visibleFields returns the fields a table contributes to the
// projection: the selected fields in order when a selection exists,
// otherwise every field whose physical name does not carry the
// internal-marker prefix.
func visibleFields(t TableInfo, selected []uuid.UUID) []Field {
	if len(selected) > 0 {
		fields := make([]Field, 0, len(selected))
		for _, id := range selected {
			if f, ok := t.FieldByID(id); ok {
				fields = append(fields, f)
			}
		}
		return fields
	}
	fields := make([]Field, 0, len(t.Fields))
	for _, f := range t.Fields {
		if strings.HasPrefix(f.ColumnName, "_") {
			continue
		}
		fields = append(fields, f)
	}
	return fields
}

// renderPredicate renders one filter condition. The operator set is
// closed; anything else is an error.
func renderPredicate(p Predicate, resolve func(string) string) (string, error) {
	col := resolve(p.Column)
	switch p.Op {
	case OpIsNull:
		return col + " IS NULL", nil
	case OpIsNotNull:
		return col + " IS NOT NULL", nil
	case OpIn, OpNotIn:
		return col + " " + p.Op.String() + " " + formatValueList(p.Value), nil
	case OpEq, OpNeq, OpGt, OpGte, OpLt, OpLte:
		return col + " " + p.Op.String() + " " + FormatValue(p.Value), nil
	default:
		return "", fmt.Errorf("unknown predicate operator %d on column %q", int(p.Op), p.Column)
	}
}

// whereClause renders " WHERE ..." or "" for an empty filter list.
// Predicates join with AND in descriptor order.
func whereClause(filters []Predicate, resolve func(string) string) (string, error) {
	if len(filters) == 0 {
		return "", nil
	}
	parts := make([]string, len(filters))
	for i, p := range filters {
		rendered, err := renderPredicate(p, resolve)
		if err != nil {
			return "", err
		}
		parts[i] = rendered
	}
	return " WHERE " + strings.Join(parts, " AND "), nil
}

// orderClause renders " ORDER BY ..." or "".
func orderClause(orders []SortOrder) string {
	if len(orders) == 0 {
		return ""
	}
	parts := make([]string, len(orders))
	for i, o := range orders {
		dir := o.Direction
		if dir != Desc {
			dir = Asc
		}
		parts[i] = QuoteIdent(o.Column) + " " + string(dir)
	}
	return " ORDER BY " + strings.Join(parts, ", ")
}

// limitClause renders " LIMIT n" only for a positive limit. A zero
// limit intentionally compiles to no clause at all for compatibility
// with persisted descriptors; see DESIGN.md before changing this.
func limitClause(n int) string {
	if n > 0 {
		return fmt.Sprintf(" LIMIT %d", n)
	}
	return ""
}

// metricExpr renders one aggregation. COUNT ignores its source column.
func metricExpr(m Metric, resolve func(string) string) string {
	if m.Func == AggCount {
		return "COUNT(*) AS " + QuoteIdent(m.Name)
	}
	return fmt.Sprintf("%s(%s) AS %s", m.Func, resolve(m.Column), QuoteIdent(m.Name))
}

// bareIdent is the resolver for single-table queries: quote the
// column name as-is.
func bareIdent(col string) string {
	return QuoteIdent(col)
}

// SQL renders the predicate with a bare quoted column reference. The
// deferred query builder shares these formatting rules with the
// descriptor compiler.
func (p Predicate) SQL() (string, error) {
	return renderPredicate(p, bareIdent)
}

// SQL renders the metric as a projection expression with a bare
// quoted source column.
func (m Metric) SQL() string {
	return metricExpr(m, bareIdent)
}

// compileSimple handles descriptors without joins.
func compileSimple(in Insight) (string, error) {
	table, err := tableNameOf(in.BaseTable, false)
	if err != nil {
		return "", err
	}

	aggregated := len(in.Metrics) > 0 || len(in.GroupBy) > 0

	var proj []string
	if aggregated {
		for _, g := range in.GroupBy {
			proj = append(proj, QuoteIdent(g))
		}
		for _, m := range in.Metrics {
			proj = append(proj, metricExpr(m, bareIdent))
		}
	} else {
		for _, f := range visibleFields(in.BaseTable, in.SelectedFields) {
			proj = append(proj, QuoteIdent(f.ColumnName))
		}
		if len(proj) == 0 {
			proj = []string{"*"}
		}
	}

	where, err := whereClause(in.Filters, bareIdent)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(strings.Join(proj, ", "))
	b.WriteString(" FROM ")
	b.WriteString(QuoteIdent(table))
	b.WriteString(where)
	if aggregated && len(in.GroupBy) > 0 {
		b.WriteString(" GROUP BY ")
		b.WriteString(joinQuoted(in.GroupBy))
	}
	b.WriteString(orderClause(in.OrderBy))
	b.WriteString(limitClause(in.Limit))
	return b.String(), nil
}

// joinPart is one resolved joined table during compilation.
type joinPart struct {
	spec    JoinSpec
	table   string
	alias   string
	baseKey Field
	joinKey Field
}

// compileJoin handles descriptors with one or more joins: the base
// table is aliased "base", joined tables "j", "j2", ...; colliding
// column names are re-aliased "<tableDisplayName>.<columnName>" so the
// result set stays unambiguous, with the base-side join key exempt.
func compileJoin(in Insight) (string, error) {
	baseTable, err := tableNameOf(in.BaseTable, false)
	if err != nil {
		return "", err
	}

	parts := make([]joinPart, len(in.Joins))
	for i, j := range in.Joins {
		table, err := tableNameOf(j.Table, true)
		if err != nil {
			return "", err
		}
		baseKey, ok := in.BaseTable.FieldByID(j.On.BaseField)
		if !ok {
			return "", &JoinKeyNotFoundError{Table: in.BaseTable.DisplayName, FieldID: j.On.BaseField}
		}
		joinKey, ok := j.Table.FieldByID(j.On.JoinedField)
		if !ok {
			return "", &JoinKeyNotFoundError{Table: j.Table.DisplayName, FieldID: j.On.JoinedField}
		}
		alias := "j"
		if i > 0 {
			alias = fmt.Sprintf("j%d", i+1)
		}
		parts[i] = joinPart{spec: j, table: table, alias: alias, baseKey: baseKey, joinKey: joinKey}
	}

	baseFields := visibleFields(in.BaseTable, in.SelectedFields)

	// Count how many participating tables carry each column name.
	counts := map[string]int{}
	for _, f := range baseFields {
		counts[f.ColumnName]++
	}
	for i := range parts {
		for _, f := range visibleFields(parts[i].spec.Table, parts[i].spec.SelectedFields) {
			counts[f.ColumnName]++
		}
	}

	// Base-side join key columns keep their bare name even when they
	// collide with a joined table's column.
	baseKeyCols := map[string]bool{}
	for i := range parts {
		baseKeyCols[parts[i].baseKey.ColumnName] = true
	}

	// resolve maps a bare column name to an unambiguous reference.
	resolve := func(col string) string {
		if counts[col] <= 1 {
			return QuoteIdent(col)
		}
		if in.BaseTable.hasColumn(col) {
			return "base." + QuoteIdent(col)
		}
		for i := range parts {
			if parts[i].spec.Table.hasColumn(col) {
				return parts[i].alias + "." + QuoteIdent(col)
			}
		}
		return QuoteIdent(col)
	}

	var from strings.Builder
	from.WriteString(QuoteIdent(baseTable))
	from.WriteString(" AS base")
	for i := range parts {
		from.WriteString(" ")
		from.WriteString(parts[i].spec.Type.Keyword())
		from.WriteString(" JOIN ")
		from.WriteString(QuoteIdent(parts[i].table))
		from.WriteString(" AS ")
		from.WriteString(parts[i].alias)
		from.WriteString(" ON base.")
		from.WriteString(QuoteIdent(parts[i].baseKey.ColumnName))
		from.WriteString(" = ")
		from.WriteString(parts[i].alias)
		from.WriteString(".")
		from.WriteString(QuoteIdent(parts[i].joinKey.ColumnName))
	}

	aggregated := len(in.Metrics) > 0 || len(in.GroupBy) > 0

	if aggregated {
		var aggProj []string
		for _, g := range in.GroupBy {
			aggProj = append(aggProj, resolve(g))
		}
		for _, m := range in.Metrics {
			aggProj = append(aggProj, metricExpr(m, resolve))
		}

		where, err := whereClause(in.Filters, resolve)
		if err != nil {
			return "", err
		}

		var b strings.Builder
		b.WriteString("SELECT ")
		b.WriteString(strings.Join(aggProj, ", "))
		b.WriteString(" FROM ")
		b.WriteString(from.String())
		b.WriteString(where)
		if len(in.GroupBy) > 0 {
			b.WriteString(" GROUP BY ")
			b.WriteString(joinQuoted(in.GroupBy))
		}
		b.WriteString(orderClause(in.OrderBy))
		b.WriteString(limitClause(in.Limit))
		return b.String(), nil
	}

	// Non-aggregated joins select through a derived table so filters
	// and ordering see the disambiguated column names.
	var proj []string
	baseDisplay := in.BaseTable.baseDisplayName()
	for _, f := range baseFields {
		ref := "base." + QuoteIdent(f.ColumnName)
		if counts[f.ColumnName] > 1 && !baseKeyCols[f.ColumnName] {
			ref += " AS " + QuoteIdent(baseDisplay+"."+f.ColumnName)
		}
		proj = append(proj, ref)
	}
	for i := range parts {
		display := parts[i].spec.Table.baseDisplayName()
		for _, f := range visibleFields(parts[i].spec.Table, parts[i].spec.SelectedFields) {
			ref := parts[i].alias + "." + QuoteIdent(f.ColumnName)
			if counts[f.ColumnName] > 1 {
				ref += " AS " + QuoteIdent(display+"."+f.ColumnName)
			}
			proj = append(proj, ref)
		}
	}
	if len(proj) == 0 {
		proj = []string{"*"}
	}

	where, err := whereClause(in.Filters, bareIdent)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("SELECT * FROM (SELECT ")
	b.WriteString(strings.Join(proj, ", "))
	b.WriteString(" FROM ")
	b.WriteString(from.String())
	b.WriteString(")")
	b.WriteString(where)
	b.WriteString(orderClause(in.OrderBy))
	b.WriteString(limitClause(in.Limit))
	return b.String(), nil
}

// joinQuoted quotes and comma-joins plain column names.
func joinQuoted(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = QuoteIdent(c)
	}
	return strings.Join(quoted, ", ")
}
