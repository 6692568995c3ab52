package cli

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/insightstack/insightql/internal/query"
	"github.com/insightstack/insightql/pkg/insight"
)

type queryFlags struct {
	selects []string
	filters []string
	sorts   []string
	groups  string
	aggs    []string
	joins   []string
	limit   int
	offset  int
	count   bool
	sqlOnly bool
}

// registerQueryFlags binds the chain flags onto a flag set.
func registerQueryFlags(fs *pflag.FlagSet, flags *queryFlags) {
	fs.StringArrayVar(&flags.selects, "select", nil, "columns to project")
	fs.StringArrayVar(&flags.filters, "filter", nil, `filter, e.g. "amount>100" or "name=O'Brien"`)
	fs.StringArrayVar(&flags.sorts, "sort", nil, "sort order, e.g. amount:desc")
	fs.StringVar(&flags.groups, "group", "", "comma-separated group columns")
	fs.StringArrayVar(&flags.aggs, "agg", nil, "aggregation func:column:name, e.g. sum:amount:Total")
	fs.StringArrayVar(&flags.joins, "join", nil, "join dataset-id:left:right[:type]")
	fs.IntVar(&flags.limit, "limit", 0, "row limit")
	fs.IntVar(&flags.offset, "offset", 0, "row offset")
	fs.BoolVar(&flags.count, "count", false, "print the row count instead of rows")
	fs.BoolVar(&flags.sqlOnly, "sql", false, "print the compiled SQL without executing")
}

func newQueryCmd() *cobra.Command {
	var flags queryFlags

	cmd := &cobra.Command{
		Use:   "query <dataset-id>",
		Short: "Run a deferred query chain against a dataset",
		Long: `Builds a query chain over a registered dataset and executes it.

Examples:
  insightql query <id> --filter "status=shipped" --sort amount:desc --limit 20
  insightql query <id> --group status --agg sum:amount:Total
  insightql query <id> --join "<other-id>:id:user_id:left" --count`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid dataset id %q: %w", args[0], err)
			}

			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			h, err := a.catalog.GetDataset(id)
			if err != nil {
				return err
			}

			b := query.NewBuilder(h, a.mat, a.engine, a.store, a.logger)
			if b, err = applyFlags(b, a, flags); err != nil {
				return err
			}

			if flags.count {
				n, err := b.Count(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), n)
				return nil
			}

			if flags.sqlOnly {
				sqlStr, err := b.SQL(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), sqlStr)
				return nil
			}

			rows, err := b.Rows(ctx)
			if err != nil {
				return err
			}
			return renderResults(cmd.OutOrStdout(), rows, formatFlag)
		},
	}

	registerQueryFlags(cmd.Flags(), &flags)

	return cmd
}

// applyFlags translates CLI flags into builder chain calls.
func applyFlags(b *query.Builder, a *app, flags queryFlags) (*query.Builder, error) {
	if len(flags.filters) > 0 {
		preds := make([]insight.Predicate, 0, len(flags.filters))
		for _, f := range flags.filters {
			p, err := parseFilter(f)
			if err != nil {
				return nil, err
			}
			preds = append(preds, p)
		}
		b = b.Filter(preds...)
	}

	for _, j := range flags.joins {
		id, opts, err := parseJoin(j)
		if err != nil {
			return nil, err
		}
		jh, err := a.catalog.GetDataset(id)
		if err != nil {
			return nil, err
		}
		b = b.Join(jh, opts)
	}

	if flags.groups != "" || len(flags.aggs) > 0 {
		metrics := make([]insight.Metric, 0, len(flags.aggs))
		for _, agg := range flags.aggs {
			m, err := parseAgg(agg)
			if err != nil {
				return nil, err
			}
			metrics = append(metrics, m)
		}
		b = b.GroupBy(splitList(flags.groups), metrics...)
	}

	if len(flags.sorts) > 0 {
		orders := make([]insight.SortOrder, 0, len(flags.sorts))
		for _, s := range flags.sorts {
			orders = append(orders, parseSort(s))
		}
		b = b.Sort(orders...)
	}

	if len(flags.selects) > 0 {
		b = b.Select(flags.selects...)
	}
	if flags.limit > 0 {
		b = b.Limit(flags.limit)
	}
	if flags.offset > 0 {
		b = b.Offset(flags.offset)
	}
	return b, nil
}

// splitList splits a comma-separated flag value, trimming blanks.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
