package query

import (
	"context"
	"fmt"
	"strings"

	"github.com/insightstack/insightql/internal/engine"
)

// batchIndexColumn tags each sub-query's rows in a combined batch
// statement. It is stripped before results are returned.
const batchIndexColumn = "batchIndex"

// BatchQuery executes independent SELECT statements in a single round
// trip and returns their result sets in input order. A single query
// passes through unchanged; multiple queries are combined with a
// tagged UNION ALL and demultiplexed on the way back.
func BatchQuery(ctx context.Context, eng engine.Engine, queries []string) ([][]map[string]any, error) {
	if len(queries) == 0 {
		return nil, nil
	}

	if len(queries) == 1 {
		rows, err := eng.Query(ctx, queries[0])
		if err != nil {
			return nil, err
		}
		return [][]map[string]any{rows}, nil
	}

	parts := make([]string, len(queries))
	for i, q := range queries {
		parts[i] = fmt.Sprintf("SELECT %d AS %s, * FROM (%s)", i, batchIndexColumn, q)
	}
	combined := strings.Join(parts, " UNION ALL ")

	rows, err := eng.Query(ctx, combined)
	if err != nil {
		return nil, err
	}

	results := make([][]map[string]any, len(queries))
	for i := range results {
		results[i] = []map[string]any{}
	}
	for _, row := range rows {
		idx, err := toInt64(row[batchIndexColumn])
		if err != nil {
			return nil, fmt.Errorf("batch result missing %s column: %w", batchIndexColumn, err)
		}
		if idx < 0 || int(idx) >= len(queries) {
			return nil, fmt.Errorf("batch index %d out of range", idx)
		}
		delete(row, batchIndexColumn)
		results[idx] = append(results[idx], row)
	}
	return results, nil
}
