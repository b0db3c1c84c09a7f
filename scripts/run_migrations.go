package main

import (
	"context"
	"os"

	"github.com/Santi4567/Akima-sub001/internal/config"
	"github.com/Santi4567/Akima-sub001/internal/database"
	"github.com/Santi4567/Akima-sub001/internal/logging"
	"github.com/Santi4567/Akima-sub001/migrations"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log := logging.New(cfg.Log)

	if len(os.Args) < 2 {
		log.Fatal("Usage: go run scripts/run_migrations.go [up|down]")
	}

	direction := database.Direction(os.Args[1])
	if direction != database.Up && direction != database.Down {
		log.Fatal("Direction must be 'up' or 'down'")
	}

	db, err := database.NewConnection(&cfg.Database)
	if err != nil {
		log.Fatalf("Connect to database: %v", err)
	}
	defer db.Close()

	applied, err := database.Migrate(context.Background(), db, migrations.Files, direction)
	if err != nil {
		log.Fatalf("Run migrations: %v", err)
	}

	for _, name := range applied {
		log.Infof("Ran migration: %s", name)
	}
	log.Infof("Successfully ran %d migration(s) %s", len(applied), direction)
}
