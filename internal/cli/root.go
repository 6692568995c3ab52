// Package cli provides the insightql command-line interface.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/insightstack/insightql/internal/catalog"
	"github.com/insightstack/insightql/internal/config"
	"github.com/insightstack/insightql/internal/engine"
	"github.com/insightstack/insightql/internal/materialize"
	"github.com/insightstack/insightql/internal/storage"
	"github.com/insightstack/insightql/pkg/dataset"
)

// Version information (set at build time).
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
)

var (
	cfgFile    string
	formatFlag string
	verbose    bool
)

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "insightql",
		Short: "InsightQL - embedded analytics query engine",
		Long: `InsightQL composes declarative insights over tabular datasets and
executes them with an embedded DuckDB engine. Datasets are stored as
parquet files and materialized into the engine on first use.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: insightql.yaml)")
	rootCmd.PersistentFlags().StringVar(&formatFlag, "format", "table", "output format: table or json")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(newLoadCmd())
	rootCmd.AddCommand(newDatasetsCmd())
	rootCmd.AddCommand(newDescribeCmd())
	rootCmd.AddCommand(newQueryCmd())
	rootCmd.AddCommand(newInsightsCmd())

	return rootCmd
}

// Execute runs the CLI.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// app bundles the wired runtime components behind the commands.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	engine  *engine.DuckDB
	store   *storage.Local
	catalog *catalog.Store
	mat     *materialize.Materializer
}

// openApp loads config and wires engine, storage, catalog and
// materializer together.
func openApp(ctx context.Context) (*app, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(cwd, cfgFile)
	if err != nil {
		return nil, err
	}

	level := slog.LevelInfo
	if verbose || cfg.LogLevel == "debug" {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	eng, err := engine.OpenDuckDB(ctx, cfg.DatabasePath, logger)
	if err != nil {
		return nil, err
	}

	store, err := storage.NewLocal(afero.NewOsFs(), cfg.StorageDir, logger)
	if err != nil {
		_ = eng.Close()
		return nil, err
	}

	cat, err := catalog.Open(cfg.CatalogPath, logger)
	if err != nil {
		_ = eng.Close()
		return nil, err
	}

	return &app{
		cfg:     cfg,
		logger:  logger,
		engine:  eng,
		store:   store,
		catalog: cat,
		mat:     materialize.New(eng, store, logger),
	}, nil
}

// Close releases the app's resources.
func (a *app) Close() {
	_ = a.catalog.Close()
	_ = a.engine.Close()
}

// resolveDataset adapts the catalog to the query package's resolver
// signature.
func (a *app) resolveDataset(_ context.Context, id uuid.UUID) (dataset.Handle, error) {
	return a.catalog.GetDataset(id)
}
