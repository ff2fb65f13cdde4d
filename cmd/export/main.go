// Command export dumps the projection tables to JSON Lines files plus a
// manifest, for offline analysis or loading into another store.
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"CTFIndexer/internal/projection"
)

type manifestFile struct {
	Table string `json:"table"`
	Path  string `json:"path"`
	Rows  int64  `json:"rows"`
}

type manifest struct {
	ManifestID   string         `json:"manifest_id"`
	CreatedAt    time.Time      `json:"created_at"`
	AsOfSequence int64          `json:"as_of_sequence"`
	Files        []manifestFile `json:"files"`
}

var exportTables = []string{
	"markets",
	"users",
	"positions",
	"token_registry",
	"market_participations",
	"global_stats",
	"daily_stats",
	"trades",
	"splits",
	"merges",
	"redemptions",
}

func main() {
	godotenv.Load()

	var (
		outDir  = flag.String("out", "export", "output directory")
		timeout = flag.Duration("timeout", 30*time.Minute, "overall export timeout")
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

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		log.Fatalf("FATAL: create output dir: %v", err)
	}

	watermark, err := projection.Watermark(ctx, db)
	if err != nil {
		log.Fatalf("FATAL: read watermark: %v", err)
	}

	m := manifest{
		ManifestID:   uuid.New().String(),
		CreatedAt:    time.Now().UTC(),
		AsOfSequence: watermark,
	}

	for _, table := range exportTables {
		path := filepath.Join(*outDir, table+".jsonl")
		rows, err := exportTable(ctx, db, table, path)
		if err != nil {
			log.Fatalf("FATAL: export %s: %v", table, err)
		}
		m.Files = append(m.Files, manifestFile{Table: table, Path: path, Rows: rows})
		log.Printf("INFO: exported %s (%d rows)", table, rows)
	}

	manifestPath := filepath.Join(*outDir, "manifest.json")
	f, err := os.Create(manifestPath)
	if err != nil {
		log.Fatalf("FATAL: create manifest: %v", err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(m); err != nil {
		log.Fatalf("FATAL: write manifest: %v", err)
	}

	log.Printf("INFO: export complete (manifest %s, as of sequence %d)", m.ManifestID, watermark)
}

// exportTable streams one projection table to a JSON Lines file. Column
// names come from the result set so the export tracks schema changes.
func exportTable(ctx context.Context, db *sql.DB, table, path string) (int64, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf("SELECT * FROM projections.%s", table))
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return 0, err
	}

	f, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	values := make([]interface{}, len(cols))
	targets := make([]interface{}, len(cols))
	for i := range values {
		targets[i] = &values[i]
	}

	var count int64
	for rows.Next() {
		if err := rows.Scan(targets...); err != nil {
			return count, err
		}

		record := make(map[string]interface{}, len(cols))
		for i, col := range cols {
			switch v := values[i].(type) {
			case []byte:
				record[col] = string(v)
			default:
				record[col] = v
			}
		}

		if err := enc.Encode(record); err != nil {
			return count, err
		}
		count++
	}
	return count, rows.Err()
}
