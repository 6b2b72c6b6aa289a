// Command dev runs a full sweep over a seeded synthetic table and serves the
// report from memory. Useful for exercising the pipeline without input files
// or a database.
package main

import (
	"context"
	"flag"
	"log"

	"pepdensity/app"
	"pepdensity/internal"
	"pepdensity/internal/config"
	"pepdensity/internal/testkit"
	"pepdensity/ui"
)

func main() {
	port := flag.String("port", "8080", "report server port")
	seed := flag.Int64("seed", 1914, "synthetic table seed")
	shift := flag.Float64("shift", 1.2, "group shift for the non-null features, in sd units")
	flag.Parse()

	logger := internal.NewDefaultLogger()
	ledger := testkit.NewInMemoryLedger()

	spec := testkit.DefaultTableSpec()
	spec.Seed = *seed
	spec.Shift = *shift
	spec.DegenerateRows = 1
	table := testkit.NewTable(spec)

	sweep := app.NewDensitySweepService(config.DefaultDensityConfig(), 4, ledger, logger)
	outcome, err := sweep.Run(context.Background(), app.SweepRequest{Table: table})
	if err != nil {
		log.Fatalf("dev: sweep: %v", err)
	}
	logger.Info("dev sweep %s: tested=%d skipped=%d",
		outcome.Manifest.Sweep, outcome.Manifest.Tested, outcome.Manifest.Skipped)

	server := ui.NewServer(ledger, logger)
	log.Fatal(server.ListenAndServe(*port))
}
