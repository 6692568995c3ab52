package insight

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
)

var (
	usersDS  = uuid.MustParse("11111111-1111-1111-1111-111111111111")
	ordersDS = uuid.MustParse("22222222-2222-2222-2222-222222222222")

	usersTable  = `"df_11111111_1111_1111_1111_111111111111"`
	ordersTable = `"df_22222222_2222_2222_2222_222222222222"`
)

// mkTable builds a TableInfo whose field ids can be looked up with
// fieldID.
func mkTable(display string, dsID *uuid.UUID, cols ...string) TableInfo {
	fields := make([]Field, len(cols))
	for i, c := range cols {
		fields[i] = Field{ID: uuid.New(), DisplayName: c, ColumnName: c}
	}
	return TableInfo{ID: uuid.New(), DisplayName: display, DatasetID: dsID, Fields: fields}
}

func fieldID(t *testing.T, tbl TableInfo, col string) uuid.UUID {
	t.Helper()
	for _, f := range tbl.Fields {
		if f.ColumnName == col {
			return f.ID
		}
	}
	t.Fatalf("no field %q on table %s", col, tbl.DisplayName)
	return uuid.Nil
}

func mustInsight(t *testing.T, cfg Config) Insight {
	t.Helper()
	in, err := New(cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return in
}

func TestCompileSimpleSelect(t *testing.T) {
	users := mkTable("Users", &usersDS, "id", "name", "email")
	in := mustInsight(t, Config{Name: "all users", BaseTable: users})

	sql, err := Compile(in)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	want := `SELECT "id", "name", "email" FROM ` + usersTable
	if sql != want {
		t.Errorf("got  %s\nwant %s", sql, want)
	}
}

func TestCompileSkipsInternalColumns(t *testing.T) {
	users := mkTable("Users", &usersDS, "id", "_rowid", "name")
	in := mustInsight(t, Config{Name: "q", BaseTable: users})

	sql, err := Compile(in)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	if strings.Contains(sql, "_rowid") {
		t.Errorf("internal column leaked into projection: %s", sql)
	}
}

func TestCompileSelectedFieldsNarrowProjection(t *testing.T) {
	users := mkTable("Users", &usersDS, "id", "name", "email")
	in := mustInsight(t, Config{
		Name:           "q",
		BaseTable:      users,
		SelectedFields: []uuid.UUID{fieldID(t, users, "email"), fieldID(t, users, "id")},
	})

	sql, err := Compile(in)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	want := `SELECT "email", "id" FROM ` + usersTable
	if sql != want {
		t.Errorf("got  %s\nwant %s", sql, want)
	}
}

func TestCompileMissingDataset(t *testing.T) {
	users := mkTable("My Users", nil, "id", "name")
	in := mustInsight(t, Config{Name: "q", BaseTable: users})

	_, err := Compile(in)
	var missing *MissingDatasetError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingDatasetError, got %v", err)
	}
	if !strings.Contains(err.Error(), "My Users") {
		t.Errorf("error should name the table: %v", err)
	}
	if !strings.Contains(err.Error(), "Load data first") {
		t.Errorf("error should tell the user what to do: %v", err)
	}
}

func TestCompileFilters(t *testing.T) {
	users := mkTable("Users", &usersDS, "id", "name", "age")

	tests := []struct {
		name    string
		filters []Predicate
		want    string
	}{
		{
			"equality with quote doubling",
			[]Predicate{{Column: "name", Op: OpEq, Value: "O'Brien"}},
			` WHERE "name" = 'O''Brien'`,
		},
		{
			"numeric comparison",
			[]Predicate{{Column: "age", Op: OpGte, Value: 21}},
			` WHERE "age" >= 21`,
		},
		{
			"multiple predicates AND in order",
			[]Predicate{
				{Column: "age", Op: OpGt, Value: 18},
				{Column: "name", Op: OpNeq, Value: "bob"},
			},
			` WHERE "age" > 18 AND "name" != 'bob'`,
		},
		{
			"in list",
			[]Predicate{{Column: "name", Op: OpIn, Value: []string{"a", "b"}}},
			` WHERE "name" IN ('a', 'b')`,
		},
		{
			"not in list",
			[]Predicate{{Column: "age", Op: OpNotIn, Value: []int{1, 2}}},
			` WHERE "age" NOT IN (1, 2)`,
		},
		{
			"is null takes no value",
			[]Predicate{{Column: "name", Op: OpIsNull, Value: "ignored"}},
			` WHERE "name" IS NULL`,
		},
		{
			"is not null",
			[]Predicate{{Column: "name", Op: OpIsNotNull}},
			` WHERE "name" IS NOT NULL`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := mustInsight(t, Config{Name: "q", BaseTable: users, Filters: tt.filters})
			sql, err := Compile(in)
			if err != nil {
				t.Fatalf("Compile failed: %v", err)
			}
			if !strings.HasSuffix(sql, tt.want) {
				t.Errorf("got  %s\nwant suffix %s", sql, tt.want)
			}
		})
	}
}

func TestCompileClauseOrder(t *testing.T) {
	users := mkTable("Users", &usersDS, "id", "name", "age")
	in := mustInsight(t, Config{
		Name:      "q",
		BaseTable: users,
		Filters:   []Predicate{{Column: "age", Op: OpGt, Value: 18}},
		GroupBy:   []string{"name"},
		Metrics:   []Metric{{Name: "n", Func: AggCount}},
		OrderBy:   []SortOrder{{Column: "n", Direction: Desc}},
		Limit:     5,
	})

	sql, err := Compile(in)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	want := `SELECT "name", COUNT(*) AS "n" FROM ` + usersTable +
		` WHERE "age" > 18 GROUP BY "name" ORDER BY "n" DESC LIMIT 5`
	if sql != want {
		t.Errorf("got  %s\nwant %s", sql, want)
	}
}

func TestCompileGroupByWithoutMetrics(t *testing.T) {
	users := mkTable("Users", &usersDS, "id", "name", "age")
	in := mustInsight(t, Config{Name: "q", BaseTable: users, GroupBy: []string{"name", "age"}})

	sql, err := Compile(in)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	want := `SELECT "name", "age" FROM ` + usersTable + ` GROUP BY "name", "age"`
	if sql != want {
		t.Errorf("got  %s\nwant %s", sql, want)
	}
}

func TestCompileNoGroupByMeansNoGroupClause(t *testing.T) {
	users := mkTable("Users", &usersDS, "id", "name")
	in := mustInsight(t, Config{Name: "q", BaseTable: users})

	sql, err := Compile(in)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	if strings.Contains(sql, "GROUP BY") {
		t.Errorf("unexpected GROUP BY in %s", sql)
	}
}

func TestCompileZeroLimitOmitsLimitClause(t *testing.T) {
	// A zero limit compiles to no LIMIT clause at all. Existing
	// dashboards depend on this, so it is pinned here.
	users := mkTable("Users", &usersDS, "id", "name")
	in := mustInsight(t, Config{Name: "q", BaseTable: users, Limit: 0})

	sql, err := Compile(in)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	if strings.Contains(sql, "LIMIT") {
		t.Errorf("unexpected LIMIT clause in %s", sql)
	}

	in = in.WithLimit(-3)
	sql, _ = Compile(in)
	if strings.Contains(sql, "LIMIT") {
		t.Errorf("negative limit should not emit a clause: %s", sql)
	}
}

func TestCompileJoinScenario(t *testing.T) {
	// users(id, name, email) inner join orders(order_id, user_id,
	// amount, status) on users.id = orders.user_id, SUM(amount)
	// grouped by name.
	users := mkTable("Users", &usersDS, "id", "name", "email")
	orders := mkTable("Orders", &ordersDS, "order_id", "user_id", "amount", "status")

	in := mustInsight(t, Config{
		Name:      "revenue by user",
		BaseTable: users,
		GroupBy:   []string{"name"},
		Metrics:   []Metric{{Name: "Total Amount", Func: AggSum, Column: "amount"}},
		Joins: []JoinSpec{{
			Table: orders,
			Type:  JoinInner,
			On:    JoinKey{BaseField: fieldID(t, users, "id"), JoinedField: fieldID(t, orders, "user_id")},
		}},
	})

	sql, err := Compile(in)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}

	want := `SELECT "name", SUM("amount") AS "Total Amount" FROM ` + usersTable +
		` AS base INNER JOIN ` + ordersTable + ` AS j ON base."id" = j."user_id" GROUP BY "name"`
	if sql != want {
		t.Errorf("got  %s\nwant %s", sql, want)
	}
}

func TestCompileJoinDisambiguation(t *testing.T) {
	// Both tables carry "name"; the copies must be aliased with their
	// table display names. The base-side join key keeps its bare name.
	users := mkTable("Users", &usersDS, "id", "name")
	orders := mkTable("Orders", &ordersDS, "order_id", "user_id", "name")

	in := mustInsight(t, Config{
		Name:      "q",
		BaseTable: users,
		Joins: []JoinSpec{{
			Table: orders,
			Type:  JoinLeft,
			On:    JoinKey{BaseField: fieldID(t, users, "id"), JoinedField: fieldID(t, orders, "user_id")},
		}},
	})

	sql, err := Compile(in)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}

	want := `SELECT * FROM (SELECT base."id", base."name" AS "Users.name", ` +
		`j."order_id", j."user_id", j."name" AS "Orders.name" FROM ` + usersTable +
		` AS base LEFT JOIN ` + ordersTable + ` AS j ON base."id" = j."user_id")`
	if sql != want {
		t.Errorf("got  %s\nwant %s", sql, want)
	}
}

func TestCompileJoinKeyExemptFromAliasing(t *testing.T) {
	// Join key column "id" exists on both sides: the base copy stays
	// bare, the joined copy is aliased.
	left := mkTable("A", &usersDS, "id", "name")
	right := mkTable("B", &ordersDS, "id", "amount")

	in := mustInsight(t, Config{
		Name:      "q",
		BaseTable: left,
		Joins: []JoinSpec{{
			Table: right,
			Type:  JoinInner,
			On:    JoinKey{BaseField: fieldID(t, left, "id"), JoinedField: fieldID(t, right, "id")},
		}},
	})

	sql, err := Compile(in)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	if strings.Contains(sql, `base."id" AS`) {
		t.Errorf("base-side join key must keep its bare name: %s", sql)
	}
	if !strings.Contains(sql, `j."id" AS "B.id"`) {
		t.Errorf("joined-side copy must be aliased: %s", sql)
	}
}

func TestCompileJoinStripsUUIDSuffixFromDisplayName(t *testing.T) {
	users := mkTable("Users 123e4567-e89b-12d3-a456-426614174000", &usersDS, "id", "name")
	orders := mkTable("Orders", &ordersDS, "user_id", "name")

	in := mustInsight(t, Config{
		Name:      "q",
		BaseTable: users,
		Joins: []JoinSpec{{
			Table: orders,
			Type:  JoinInner,
			On:    JoinKey{BaseField: fieldID(t, users, "id"), JoinedField: fieldID(t, orders, "user_id")},
		}},
	})

	sql, err := Compile(in)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	if !strings.Contains(sql, `AS "Users.name"`) {
		t.Errorf("uuid suffix should be stripped from alias prefix: %s", sql)
	}
}

func TestCompileMultipleJoinAliases(t *testing.T) {
	users := mkTable("Users", &usersDS, "id", "name")
	orders := mkTable("Orders", &ordersDS, "user_id", "amount")
	thirdDS := uuid.MustParse("33333333-3333-3333-3333-333333333333")
	payments := mkTable("Payments", &thirdDS, "payer_id", "total")

	in := mustInsight(t, Config{
		Name:      "q",
		BaseTable: users,
		Joins: []JoinSpec{
			{Table: orders, Type: JoinInner, On: JoinKey{BaseField: fieldID(t, users, "id"), JoinedField: fieldID(t, orders, "user_id")}},
			{Table: payments, Type: JoinLeft, On: JoinKey{BaseField: fieldID(t, users, "id"), JoinedField: fieldID(t, payments, "payer_id")}},
		},
	})

	sql, err := Compile(in)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	if !strings.Contains(sql, " AS j ON ") || !strings.Contains(sql, " AS j2 ON ") {
		t.Errorf("expected aliases j and j2 in %s", sql)
	}
}

func TestCompileJoinKeyNotFound(t *testing.T) {
	users := mkTable("Users", &usersDS, "id", "name")
	orders := mkTable("Orders", &ordersDS, "user_id", "amount")

	in := mustInsight(t, Config{
		Name:      "q",
		BaseTable: users,
		Joins: []JoinSpec{{
			Table: orders,
			Type:  JoinInner,
			On:    JoinKey{BaseField: uuid.New(), JoinedField: fieldID(t, orders, "user_id")},
		}},
	})

	_, err := Compile(in)
	var notFound *JoinKeyNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected JoinKeyNotFoundError, got %v", err)
	}
	if !strings.Contains(err.Error(), "Join key fields not found") {
		t.Errorf("unexpected message: %v", err)
	}
}

func TestCompileJoinedTableMissingDataset(t *testing.T) {
	users := mkTable("Users", &usersDS, "id", "name")
	orders := mkTable("Pending Orders", nil, "user_id", "amount")

	in := mustInsight(t, Config{
		Name:      "q",
		BaseTable: users,
		Joins: []JoinSpec{{
			Table: orders,
			Type:  JoinInner,
			On:    JoinKey{BaseField: fieldID(t, users, "id"), JoinedField: fieldID(t, orders, "user_id")},
		}},
	})

	_, err := Compile(in)
	var missing *MissingDatasetError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingDatasetError, got %v", err)
	}
	if !missing.Joined {
		t.Error("error should mark the joined table")
	}
	if !strings.Contains(err.Error(), "Pending Orders") {
		t.Errorf("error should name the joined table: %v", err)
	}
}

func TestCompileCountIgnoresSourceColumn(t *testing.T) {
	users := mkTable("Users", &usersDS, "id", "name")
	in := mustInsight(t, Config{
		Name:      "q",
		BaseTable: users,
		Metrics:   []Metric{{Name: "rows", Func: AggCount, Column: "whatever"}},
	})

	sql, err := Compile(in)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	want := `SELECT COUNT(*) AS "rows" FROM ` + usersTable
	if sql != want {
		t.Errorf("got  %s\nwant %s", sql, want)
	}
}
