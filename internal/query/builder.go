// Package query provides a chainable, deferred-execution builder over
// a dataset. Chain calls accumulate an immutable operation list; SQL
// is compiled lazily when a terminal method runs, after the
// referenced datasets have been materialized into the engine.
package query

import (
	"log/slog"

	"github.com/insightstack/insightql/internal/engine"
	"github.com/insightstack/insightql/internal/materialize"
	"github.com/insightstack/insightql/internal/storage"
	"github.com/insightstack/insightql/pkg/dataset"
	"github.com/insightstack/insightql/pkg/insight"
)

type opKind int

const (
	opFilter opKind = iota
	opSort
	opGroup
	opJoin
	opLimit
	opOffset
	opSelect
)

// JoinOptions configures a builder join. An empty Type defaults to
// inner.
type JoinOptions struct {
	Type        insight.JoinType
	LeftColumn  string
	RightColumn string
}

type joinOp struct {
	handle dataset.Handle
	opts   JoinOptions
}

// operation is one accumulated chain call. Only the fields relevant
// to its kind are set.
type operation struct {
	kind       opKind
	predicates []insight.Predicate
	sorts      []insight.SortOrder
	groupCols  []string
	metrics    []insight.Metric
	join       joinOp
	n          int
	columns    []string
}

// Builder wraps a dataset handle and an accumulated operation list.
// Every chain method returns a new Builder; it is safe to keep a
// prefix and branch multiple chains off it.
type Builder struct {
	handle dataset.Handle
	ops    []operation

	mat    *materialize.Materializer
	eng    engine.Engine
	store  storage.Store
	logger *slog.Logger
}

// NewBuilder creates a builder over a dataset handle.
func NewBuilder(h dataset.Handle, mat *materialize.Materializer, eng engine.Engine, store storage.Store, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Builder{handle: h, mat: mat, eng: eng, store: store, logger: logger}
}

// with returns a new builder with op appended. The shared prefix is
// copied so sibling chains never see each other's operations.
func (b *Builder) with(op operation) *Builder {
	ops := make([]operation, len(b.ops), len(b.ops)+1)
	copy(ops, b.ops)
	nb := *b
	nb.ops = append(ops, op)
	return &nb
}

// Filter appends predicates. Repeated Filter calls concatenate; all
// accumulated predicates are ANDed at compile time.
func (b *Builder) Filter(predicates ...insight.Predicate) *Builder {
	return b.with(operation{kind: opFilter, predicates: predicates})
}

// Sort replaces any previously set sort order; the last Sort call
// wins. This deliberately differs from Filter's accumulation.
func (b *Builder) Sort(orders ...insight.SortOrder) *Builder {
	return b.with(operation{kind: opSort, sorts: orders})
}

// GroupBy sets the group columns and aggregation list outright.
func (b *Builder) GroupBy(columns []string, metrics ...insight.Metric) *Builder {
	return b.with(operation{kind: opGroup, groupCols: columns, metrics: metrics})
}

// Join appends a join to the plan.
func (b *Builder) Join(h dataset.Handle, opts JoinOptions) *Builder {
	if opts.Type == "" {
		opts.Type = insight.JoinInner
	}
	return b.with(operation{kind: opJoin, join: joinOp{handle: h, opts: opts}})
}

// Limit caps the number of returned rows.
func (b *Builder) Limit(n int) *Builder {
	return b.with(operation{kind: opLimit, n: n})
}

// Offset skips leading rows.
func (b *Builder) Offset(n int) *Builder {
	return b.with(operation{kind: opOffset, n: n})
}

// Select narrows the projection to the named columns.
func (b *Builder) Select(columns ...string) *Builder {
	return b.with(operation{kind: opSelect, columns: columns})
}

// plan is the ephemeral structure compiled from the operation list.
// It is rebuilt from scratch on every terminal call, never cached.
type plan struct {
	filters   []insight.Predicate
	sorts     []insight.SortOrder
	joins     []joinOp
	groupCols []string
	metrics   []insight.Metric
	selection []string
	limit     int
	offset    int
}

// buildPlan folds the operation list into a plan. Filters
// concatenate; sort, group, select, limit and offset replace.
func buildPlan(ops []operation) plan {
	var p plan
	for _, op := range ops {
		switch op.kind {
		case opFilter:
			p.filters = append(p.filters, op.predicates...)
		case opSort:
			p.sorts = op.sorts
		case opGroup:
			p.groupCols = op.groupCols
			p.metrics = op.metrics
		case opJoin:
			p.joins = append(p.joins, op.join)
		case opLimit:
			p.limit = op.n
		case opOffset:
			p.offset = op.n
		case opSelect:
			p.selection = op.columns
		}
	}
	return p
}
