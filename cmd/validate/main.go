package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"flag"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"CTFIndexer/internal/gamma"
	"CTFIndexer/internal/validate"
)

func main() {
	godotenv.Load()

	var (
		useGamma   = flag.Bool("gamma", false, "cross-check resolved markets against the Gamma API")
		gammaURL   = flag.String("gamma-url", gamma.DefaultBaseURL, "Gamma API base URL")
		sampleSize = flag.Int("sample", 20, "markets to sample for the upstream cross-check")
		timeout    = flag.Duration("timeout", 5*time.Minute, "overall run timeout")
	)
	flag.Parse()

	pgURL := os.Getenv("CTF_POSTGRES_DSN")
	if pgURL == "" {
		pgURL = "postgres://localhost:5432/ctfindexer?sslmode=disable"
	}

	db, err := sql.Open("postgres", pgURL)
	if err != nil {
		log.Fatalf("FATAL: open db: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		log.Fatalf("FATAL: postgres ping: %v", err)
	}

	var gammaClient *gamma.Client
	if *useGamma {
		gammaClient = gamma.NewClient(*gammaURL)
	}

	validator := validate.NewValidator(db, gammaClient, *sampleSize)
	report, err := validator.Run(ctx)
	if err != nil {
		log.Fatalf("FATAL: validation run: %v", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		log.Fatalf("FATAL: encode report: %v", err)
	}

	if !report.Passed {
		os.Exit(1)
	}
}
