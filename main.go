package main

import (
	"context"
	"log"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"pepdensity/adapters/excel"
	"pepdensity/adapters/postgres"
	"pepdensity/app"
	"pepdensity/internal"
	"pepdensity/internal/config"
	"pepdensity/internal/migration"
	"pepdensity/internal/testkit"
	"pepdensity/ports"
	"pepdensity/ui"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	logger := internal.NewDefaultLogger()

	ledger, cleanup, err := initLedger(cfg, logger)
	if err != nil {
		log.Fatalf("Failed to initialize ledger: %v", err)
	}
	defer cleanup()

	ctx := context.Background()

	if cfg.Data.MatrixFile != "" {
		if cfg.Data.CovariateFile == "" {
			log.Fatal("MATRIX_FILE is set but COVARIATE_FILE is not")
		}
		source := excel.NewTableSource(cfg.Data.MatrixFile, cfg.Data.CovariateFile)
		table, err := source.LoadFeatureTable(ctx)
		if err != nil {
			log.Fatalf("Failed to load feature table: %v", err)
		}
		logger.Info("loaded %d features x %d samples from %s",
			table.FeatureCount(), table.SampleCount(), cfg.Data.MatrixFile)

		sweep := app.NewDensitySweepService(cfg.Density, cfg.Sweep.Workers, ledger, logger)
		outcome, err := sweep.Run(ctx, app.SweepRequest{Table: table})
		if err != nil {
			log.Fatalf("Sweep failed: %v", err)
		}

		if cfg.Data.ReferenceFile != "" {
			reference := excel.NewReferenceSource(cfg.Data.ReferenceFile, cfg.Density.FDRThreshold)
			comparison := app.NewComparisonService(ledger, reference, logger)
			if _, err := comparison.Compare(ctx, outcome.Manifest.Sweep); err != nil {
				log.Fatalf("Comparison failed: %v", err)
			}
		}
	} else {
		logger.Info("no MATRIX_FILE configured, serving existing sweeps only")
	}

	server := ui.NewServer(ledger, logger)
	log.Fatal(server.ListenAndServe(cfg.Server.Port))
}

// initLedger picks the Postgres ledger when DATABASE_URL is set and falls
// back to the in-memory ledger for local runs.
func initLedger(cfg *config.Config, logger *internal.Logger) (ports.LedgerPort, func(), error) {
	if cfg.Database.URL == "" {
		logger.Warn("DATABASE_URL not set, artifacts are kept in memory only")
		return testkit.NewInMemoryLedger(), func() {}, nil
	}

	db, err := sqlx.Connect("postgres", cfg.Database.URL)
	if err != nil {
		return nil, nil, err
	}
	if err := migration.NewRunner().Run(context.Background(), db); err != nil {
		db.Close()
		return nil, nil, err
	}
	repo := postgres.NewLedgerRepositoryFromDB(db)
	return repo, func() { db.Close() }, nil
}
