package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ehr/loinc-etl/internal/config"
	"github.com/ehr/loinc-etl/internal/domain/ontology"
	"github.com/ehr/loinc-etl/internal/pipeline"
	"github.com/ehr/loinc-etl/internal/platform/db"
	"github.com/ehr/loinc-etl/internal/platform/export"
	"github.com/ehr/loinc-etl/internal/platform/source"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "loinc-etl",
		Short:        "Load the LOINC hierarchy into an i2b2 ontology table",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(transformCmd())
	rootCmd.AddCommand(schemaCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config) zerolog.Logger {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if cfg.IsDev() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || cfg.LogLevel == "" {
		level = zerolog.InfoLevel
	}
	return logger.Level(level)
}

// loadConfig loads and validates the configuration and applies the export
// flag overrides of cmd.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if cmd.Flags().Changed("format") {
		cfg.ExportFormat, _ = cmd.Flags().GetString("format")
	}
	if cmd.Flags().Changed("out") {
		cfg.ExportDir, _ = cmd.Flags().GetString("out")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func newFetcher(cfg *config.Config, logger zerolog.Logger) source.Fetcher {
	if cfg.UsesArchiveDir() {
		return source.NewDirFetcher(cfg.LOINCArchiveDir, logger)
	}
	return source.NewClient(source.ClientConfig{
		BaseURL:    cfg.LOINCBaseURL,
		Username:   cfg.LOINCUsername,
		Password:   cfg.LOINCPassword,
		Timeout:    cfg.HTTPTimeout,
		RetryCount: cfg.HTTPRetryCount,
	}, logger)
}

func sources(cfg *config.Config) pipeline.Sources {
	return pipeline.Sources{
		TableDownload:     cfg.LOINCTableDownload,
		TableFile:         cfg.LOINCTableFile,
		HierarchyDownload: cfg.LOINCHierarchyDownload,
		HierarchyFile:     cfg.LOINCHierarchyFile,
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func addExportFlags(cmd *cobra.Command, outUsage string) {
	cmd.Flags().String("format", "", "Export format: csv or xlsx (overrides EXPORT_FORMAT)")
	cmd.Flags().String("out", "", outUsage)
}

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Download, transform and load LOINC, then export the inserted rows",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := cfg.RequireDatabase(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}
			noExport, _ := cmd.Flags().GetBool("no-export")
			logger := newLogger(cfg)

			ctx, cancel := signalContext()
			defer cancel()

			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()
			logger.Info().Msg("connected to database")

			if err := db.CreateSchema(ctx, pool, cfg.OntologySchema); err != nil {
				return err
			}

			format, _ := export.ParseFormat(cfg.ExportFormat)
			repo := ontology.NewConceptRepoPG(pool, cfg.OntologySchema, cfg.OntologyTable)
			svc := ontology.NewService(repo, ontology.Options{LegacyFullName: cfg.LegacyFullName}, logger)

			var exporter pipeline.Exporter
			if !noExport {
				exporter = export.NewWriter(cfg.ExportDir, logger)
			}

			report, err := pipeline.New(newFetcher(cfg, logger), svc, exporter, sources(cfg), format, logger).Run(ctx)
			if err != nil {
				logger.Error().Err(err).Msg("load failed")
				return err
			}

			logger.Info().Object("pool", db.GetPoolStats(pool)).Msg("connection pool")
			fmt.Printf("Inserted %d row(s) into %s.%s in %s.\n",
				report.Inserted, cfg.OntologySchema, cfg.OntologyTable, report.Duration.Round(time.Millisecond))
			if report.ExportLocation != "" {
				fmt.Printf("Snapshot written to %s\n", report.ExportLocation)
			}
			return nil
		},
	}
	addExportFlags(cmd, "Snapshot destination directory or URL (overrides EXPORT_DIR)")
	cmd.Flags().Bool("no-export", false, "Skip the snapshot export")
	return cmd
}

func transformCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "transform",
		Short: "Download and transform LOINC without a database, exporting the rows for review",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			logger := newLogger(cfg)

			ctx, cancel := signalContext()
			defer cancel()

			format, _ := export.ParseFormat(cfg.ExportFormat)
			svc := ontology.NewService(nil, ontology.Options{LegacyFullName: cfg.LegacyFullName}, logger)
			exporter := export.NewWriter(cfg.ExportDir, logger)

			report, err := pipeline.New(newFetcher(cfg, logger), svc, exporter, sources(cfg), format, logger).Transform(ctx)
			if err != nil {
				logger.Error().Err(err).Msg("transform failed")
				return err
			}

			fmt.Printf("Transformed %d code(s) into %d row(s), %d excluded, %d filtered.\n",
				report.Codes, report.Rows, report.Excluded, report.Filtered)
			fmt.Printf("Rows written to %s\n", report.ExportLocation)
			return nil
		},
	}
	addExportFlags(cmd, "Output directory or URL (overrides EXPORT_DIR)")
	return cmd
}

func schemaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Manage the ontology table",
	}

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Create the ontology schema and table if they do not exist",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := cfg.RequireDatabase(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}
			if !db.ValidIdentifier(cfg.OntologySchema) || !db.ValidIdentifier(cfg.OntologyTable) {
				return fmt.Errorf("invalid config: ONTOLOGY_SCHEMA and ONTOLOGY_TABLE must be plain identifiers")
			}

			ctx, cancel := signalContext()
			defer cancel()

			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			if err := db.CreateSchema(ctx, pool, cfg.OntologySchema); err != nil {
				return err
			}
			repo := ontology.NewConceptRepoPG(pool, cfg.OntologySchema, cfg.OntologyTable)
			created, err := ontology.NewService(repo, ontology.Options{}, newLogger(cfg)).EnsureTable(ctx)
			if err != nil {
				return err
			}

			if created {
				fmt.Printf("Created table %s.%s\n", cfg.OntologySchema, cfg.OntologyTable)
			} else {
				fmt.Printf("Table %s.%s already exists\n", cfg.OntologySchema, cfg.OntologyTable)
			}
			return nil
		},
	}

	cmd.AddCommand(initCmd)
	return cmd
}
