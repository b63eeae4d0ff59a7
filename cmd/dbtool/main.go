package main

import (
	"database/sql"
	"log"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"fleet-control-service/internal/adapters/repositories"
	"fleet-control-service/internal/config"
	"fleet-control-service/internal/platform/db"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	store, err := db.Open(cfg.DSN())
	if err != nil {
		log.Fatal(err)
	}
	defer store.Close()

	seedPath := config.Get("SEED_PATH", cfg.SeedPath)
	if err := initAndSeed(store, seedPath); err != nil {
		log.Fatal(err)
	}
}

func initAndSeed(store *sql.DB, seedPath string) error {
	log.Println("Initializing database schema...")
	if err := repositories.InitSchema(store); err != nil {
		log.Fatalf("schema initialization failed: %v", err)
	}
	log.Println("Schema ready.")

	log.Println("Seeding database...")
	if err := repositories.SeedFromJSON(store, seedPath); err != nil {
		log.Fatalf("seeding failed: %v", err)
	}
	log.Println("Seeding complete.")

	return nil
}
