package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	pg "github.com/NordCoder/Stocker/internal/repository/postgres"
)

func main() {
	_ = godotenv.Load()
	status := flag.Bool("status", false, "print migration status instead of migrating")
	flag.Parse()

	dbURL := os.Getenv("DB_DSN")
	if dbURL == "" {
		log.Fatal("DB_DSN is empty")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *status {
		if err := pg.MigrationStatus(ctx, dbURL); err != nil {
			log.Fatalf("migration status: %v", err)
		}
		return
	}
	if err := pg.Migrate(ctx, dbURL); err != nil {
		log.Fatalf("migrate up: %v", err)
	}
	log.Println("migrations: up OK")
}
