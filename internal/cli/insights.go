package cli

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/insightstack/insightql/internal/query"
	"github.com/insightstack/insightql/pkg/insight"
)

func newInsightsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "insights",
		Short: "Manage saved insight descriptors",
	}
	cmd.AddCommand(newInsightsListCmd())
	cmd.AddCommand(newInsightsShowCmd())
	cmd.AddCommand(newInsightsRunCmd())
	return cmd
}

func newInsightsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List saved insights",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			insights, err := a.catalog.ListInsights()
			if err != nil {
				return err
			}

			rows := make([]map[string]any, len(insights))
			for i, in := range insights {
				rows[i] = map[string]any{
					"id":    in.ID.String(),
					"name":  in.Name,
					"base":  in.BaseTable.DisplayName,
					"joins": len(in.Joins),
				}
			}
			return renderRows(cmd.OutOrStdout(), []string{"id", "name", "base", "joins"}, rows, formatFlag)
		},
	}
}

func newInsightsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <insight-id>",
		Short: "Show a saved insight and its compiled SQL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid insight id %q: %w", args[0], err)
			}

			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			in, err := a.catalog.GetInsight(id)
			if err != nil {
				return err
			}

			sqlStr, err := insight.Compile(in)
			if err != nil {
				return err
			}

			payload, err := in.ToJSON()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Name: %s\n", in.Name)
			fmt.Fprintf(out, "SQL:  %s\n", sqlStr)
			fmt.Fprintf(out, "JSON: %s\n", payload)
			return nil
		},
	}
}

func newInsightsRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <insight-id>",
		Short: "Execute a saved insight",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid insight id %q: %w", args[0], err)
			}

			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			in, err := a.catalog.GetInsight(id)
			if err != nil {
				return err
			}

			rows, err := query.ExecuteDescriptor(ctx, a.engine, a.mat, a.resolveDataset, in)
			if err != nil {
				return err
			}
			return renderResults(cmd.OutOrStdout(), rows, formatFlag)
		},
	}
}
