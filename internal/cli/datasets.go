package cli

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/insightstack/insightql/internal/storage"
)

func newDatasetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "datasets",
		Short: "List registered datasets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			handles, err := a.catalog.ListDatasets()
			if err != nil {
				return err
			}

			rows := make([]map[string]any, len(handles))
			for i, h := range handles {
				rows[i] = map[string]any{
					"id":      h.ID.String(),
					"table":   h.TableName(),
					"locator": h.Location.Locator,
					"created": h.CreatedAt.Format("2006-01-02 15:04:05"),
				}
			}
			return renderRows(cmd.OutOrStdout(), []string{"id", "table", "locator", "created"}, rows, formatFlag)
		},
	}
}

func newDescribeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "describe <dataset-id>",
		Short: "Show a dataset's parquet schema",
		Args:  cobra.ExactArgs(1),
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

			data, err := a.store.Fetch(ctx, h.Location)
			if err != nil {
				return err
			}

			cols, err := a.describeColumns(data)
			if err != nil {
				return err
			}
			return renderRows(cmd.OutOrStdout(), []string{"column", "type", "optional"}, cols, formatFlag)
		},
	}
}

func (a *app) describeColumns(data []byte) ([]map[string]any, error) {
	cols, err := storage.Describe(data)
	if err != nil {
		return nil, err
	}
	rows := make([]map[string]any, len(cols))
	for i, c := range cols {
		rows[i] = map[string]any{"column": c.Name, "type": c.Type, "optional": c.Optional}
	}
	return rows, nil
}
