package main

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"pepdensity/internal/migration"
)

func main() {
	_ = godotenv.Load()

	databaseURL := flag.String("database-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection string")
	flag.Parse()

	if *databaseURL == "" {
		log.Fatal("migrate: set DATABASE_URL or pass -database-url")
	}

	db, err := sqlx.Connect("postgres", *databaseURL)
	if err != nil {
		log.Fatalf("migrate: connect: %v", err)
	}
	defer db.Close()

	runner := migration.NewRunner()
	if err := runner.Run(context.Background(), db); err != nil {
		log.Fatalf("migrate: %v", err)
	}
	log.Printf("migrate: schema version %s is current", runner.Version())
}
