package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/insightstack/insightql/internal/storage"
	"github.com/insightstack/insightql/pkg/dataset"
)

func newLoadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "load <file.parquet>",
		Short: "Register a parquet file as a new dataset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", args[0], err)
			}

			cols, err := storage.Describe(data)
			if err != nil {
				return fmt.Errorf("%s is not a valid parquet file: %w", args[0], err)
			}

			loc, err := a.store.Put(ctx, data)
			if err != nil {
				return err
			}

			h := dataset.New(loc, nil)
			if err := a.catalog.SaveDataset(h); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Dataset %s registered (%d columns, table %s)\n",
				h.ID, len(cols), h.TableName())
			return nil
		},
	}
}
