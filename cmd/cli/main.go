// Command cli runs the density pipeline from the terminal: a sweep over an
// intensity table, optionally followed by the reference comparison, printing
// a summary instead of serving it.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"sort"

	"github.com/joho/godotenv"

	"pepdensity/adapters/excel"
	"pepdensity/app"
	"pepdensity/domain/stats"
	"pepdensity/internal"
	"pepdensity/internal/config"
	"pepdensity/internal/testkit"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("cli: %v", err)
	}

	matrixFile := flag.String("matrix", cfg.Data.MatrixFile, "intensity matrix file (xlsx or csv)")
	covariateFile := flag.String("covariates", cfg.Data.CovariateFile, "sample covariate file (xlsx or csv)")
	referenceFile := flag.String("reference", cfg.Data.ReferenceFile, "reference calls file for comparison (optional)")
	bins := flag.Int("bins", cfg.Density.BinCount, "histogram bin count")
	threshold := flag.Float64("fdr", cfg.Density.FDRThreshold, "FDR significance threshold")
	workers := flag.Int("workers", cfg.Sweep.Workers, "parallel feature workers")
	flag.Parse()

	if *matrixFile == "" || *covariateFile == "" {
		fmt.Fprintln(os.Stderr, "cli: -matrix and -covariates are required")
		flag.Usage()
		os.Exit(2)
	}
	cfg.Density.BinCount = *bins
	cfg.Density.FDRThreshold = *threshold

	ctx := context.Background()
	logger := internal.NewDefaultLogger()

	table, err := excel.NewTableSource(*matrixFile, *covariateFile).LoadFeatureTable(ctx)
	if err != nil {
		log.Fatalf("cli: load table: %v", err)
	}

	ledger := testkit.NewInMemoryLedger()
	sweep := app.NewDensitySweepService(cfg.Density, *workers, ledger, logger)
	outcome, err := sweep.Run(ctx, app.SweepRequest{Table: table})
	if err != nil {
		log.Fatalf("cli: sweep: %v", err)
	}
	printManifest(outcome.Manifest)

	if *referenceFile == "" {
		return
	}
	reference := excel.NewReferenceSource(*referenceFile, cfg.Density.FDRThreshold)
	comparisons, err := app.NewComparisonService(ledger, reference, logger).Compare(ctx, outcome.Manifest.Sweep)
	if err != nil {
		log.Fatalf("cli: compare: %v", err)
	}
	printComparisons(comparisons)
}

func printManifest(m stats.SweepManifest) {
	fmt.Printf("sweep %s\n", m.Sweep)
	fmt.Printf("  fingerprint  %s\n", m.Fingerprint)
	fmt.Printf("  features     %d (tested %d, skipped %d, failed fits %d)\n",
		m.FeatureCount, m.Tested, m.Skipped, m.FailedFits)
	fmt.Printf("  config       bins=%d degree=%d interactions=%v fdr=%g\n",
		m.BinCount, m.MainDegree, m.InteractionDegrees, m.FDRThreshold)
	if len(m.SignificantByFamily) > 0 {
		fmt.Println("  significant calls:")
		families := make([]string, 0, len(m.SignificantByFamily))
		for family := range m.SignificantByFamily {
			families = append(families, family)
		}
		sort.Strings(families)
		for _, family := range families {
			fmt.Printf("    %-40s %d\n", family, m.SignificantByFamily[family])
		}
	}
}

func printComparisons(comparisons []stats.FamilyComparison) {
	fmt.Println("reference comparison:")
	for _, c := range comparisons {
		fmt.Printf("  %s/%s: shared=%d both=%d density-only=%d reference-only=%d jaccard=%.3f\n",
			c.Model, c.Kind, c.SharedTested, len(c.Both), len(c.DensityExtra), len(c.ReferenceExtra), c.Jaccard)
	}
}
