package query

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/insightstack/insightql/internal/engine"
	"github.com/insightstack/insightql/internal/materialize"
	"github.com/insightstack/insightql/pkg/dataset"
	"github.com/insightstack/insightql/pkg/insight"
)

// HandleResolver maps a dataset id to its handle. The catalog is the
// usual implementation.
type HandleResolver func(ctx context.Context, id uuid.UUID) (dataset.Handle, error)

// ExecuteDescriptor materializes every dataset a descriptor touches,
// compiles it, and runs the resulting SQL.
func ExecuteDescriptor(ctx context.Context, eng engine.Engine, mat *materialize.Materializer, resolve HandleResolver, in insight.Insight) ([]map[string]any, error) {
	var handles []dataset.Handle
	for _, id := range descriptorDatasetIDs(in) {
		h, err := resolve(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve dataset %s: %w", id, err)
		}
		handles = append(handles, h)
	}
	if err := mat.EnsureAll(ctx, handles); err != nil {
		return nil, err
	}

	sqlStr, err := insight.Compile(in)
	if err != nil {
		return nil, err
	}
	return eng.Query(ctx, sqlStr)
}

// descriptorDatasetIDs collects the dataset ids behind the base table
// and every join, in descriptor order.
func descriptorDatasetIDs(in insight.Insight) []uuid.UUID {
	var ids []uuid.UUID
	if in.BaseTable.DatasetID != nil {
		ids = append(ids, *in.BaseTable.DatasetID)
	}
	for _, j := range in.Joins {
		if j.Table.DatasetID != nil {
			ids = append(ids, *j.Table.DatasetID)
		}
	}
	return ids
}
