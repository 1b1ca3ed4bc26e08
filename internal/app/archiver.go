package app

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"payment-service/internal/config"
	"payment-service/internal/database"
	"payment-service/internal/repositories/postgresrepo"
	"payment-service/internal/worker"
)

// Archiver consumes the payment-event topic and mirrors it into Postgres for
// reconciliation and reporting.
type Archiver struct {
	cfg     *config.Config
	manager *worker.PartitionManager
}

func NewArchiver() (*Archiver, error) {
	a := new(Archiver)

	a.cfg = config.New()

	db, err := database.NewPostgres(a.cfg.Postgres.URL)
	if err != nil {
		return nil, fmt.Errorf("database connection error: %w", err)
	}

	archiveRepo := postgresrepo.NewArchiveRepository(db)
	a.manager = worker.NewPartitionManager(a.cfg, archiveRepo)

	return a, nil
}

func (a *Archiver) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		log.Println("Received shutdown signal")
		cancel()
	}()

	return a.manager.Start(ctx)
}
