package main

import (
	"context"
	"fmt"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"sql-sandbox/configs"
	"sql-sandbox/internal/assignment"
	"sql-sandbox/internal/fixtures"
	"sql-sandbox/pkg/db"
	"sql-sandbox/pkg/logger"
	"sql-sandbox/pkg/redis"
)

var (
	seedAssignments  string
	seedFixtures     string
	seedSkipCatalog  bool
	seedSkipFixtures bool
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load the assignment catalog and the sample tables",
	Long: `Upserts the assignments from a YAML file into the catalog database and
runs the fixture script against the sandbox database. Both steps are
idempotent.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		conf, err := configs.LoadConfig()
		if err != nil {
			return err
		}
		log, err := logger.NewFromConfig(conf)
		if err != nil {
			return err
		}
		defer func() { _ = log.Sync() }()

		if !seedSkipFixtures {
			if err := seedSampleTables(ctx, conf, log); err != nil {
				return err
			}
		}
		if !seedSkipCatalog {
			if err := seedCatalog(ctx, conf, log); err != nil {
				return err
			}
		}
		return nil
	},
}

func init() {
	seedCmd.Flags().StringVar(&seedAssignments, "assignments", "configs/assignments.yaml", "assignment catalog file")
	seedCmd.Flags().StringVar(&seedFixtures, "fixtures", "configs/sample_data.sql", "sample table script for the sandbox database")
	seedCmd.Flags().BoolVar(&seedSkipCatalog, "skip-catalog", false, "do not touch the catalog database")
	seedCmd.Flags().BoolVar(&seedSkipFixtures, "skip-fixtures", false, "do not touch the sandbox database")
}

func seedSampleTables(ctx context.Context, conf *configs.Config, log *zap.Logger) error {
	conn, err := db.NewConnection(ctx, conf.Sandbox.DbConfig)
	if err != nil {
		return fmt.Errorf("sandbox database: %w", err)
	}
	defer conn.Close()

	spinner, _ := pterm.DefaultSpinner.Start("Loading sample tables from " + seedFixtures)
	n, err := fixtures.LoadFile(ctx, conn, seedFixtures, log)
	if err != nil {
		spinner.Fail("Sample tables not loaded")
		return err
	}
	spinner.Success(fmt.Sprintf("Ran %d fixture statements", n))
	return nil
}

func seedCatalog(ctx context.Context, conf *configs.Config, log *zap.Logger) error {
	items, err := assignment.LoadSeedFile(seedAssignments, time.Now().UTC())
	if err != nil {
		return err
	}
	for i := range items {
		if items[i].SchemaContext == "" {
			items[i].SchemaContext = conf.Sandbox.DefaultSchema
		}
		if !conf.Sandbox.HasSchema(items[i].SchemaContext) {
			return fmt.Errorf("assignment %q: schema context %q is not listed in sandbox.schemas", items[i].ID, items[i].SchemaContext)
		}
	}

	conn, err := db.NewConnection(ctx, conf.Catalog)
	if err != nil {
		return fmt.Errorf("catalog database: %w", err)
	}
	defer conn.Close()

	cache, err := redis.NewRedis(ctx, conf.Redis)
	if err != nil {
		log.Warn("redis unavailable, cached catalog entries expire on their own", zap.Error(err))
		cache = nil
	}
	defer func() { _ = cache.Close() }()

	spinner, _ := pterm.DefaultSpinner.Start("Seeding assignment catalog from " + seedAssignments)
	svc := assignment.NewService(assignment.NewRepository(conn), cache, conf.Catalog.CacheTTL, log)
	if err := svc.Seed(ctx, items); err != nil {
		spinner.Fail("Catalog not seeded")
		return err
	}
	spinner.Success(fmt.Sprintf("Seeded %d assignments", len(items)))
	return nil
}
