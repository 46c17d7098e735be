package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/abelzeko/kenai-ingest/internal/config"
	"github.com/abelzeko/kenai-ingest/internal/integration"
	"github.com/abelzeko/kenai-ingest/internal/repository"
	"github.com/abelzeko/kenai-ingest/internal/usecases"
	"github.com/joho/godotenv"
)

func main() {
	// Configure logging
	log.SetOutput(os.Stdout)
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	log.Println("Starting Kenai ingestion run...")

	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file loaded: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		log.Fatalf("Ingestion failed: %v", err)
	}
	log.Println("Ingestion finished")
}

func run(ctx context.Context, args []string) error {
	cfg, err := config.Load(ctx, "ingest", args)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Initialize repositories
	writer, err := repository.NewRawDataWriter(cfg.OutputDir)
	if err != nil {
		return err
	}
	ledger, err := repository.NewSQLiteFetchLogRepository(cfg.LedgerPath)
	if err != nil {
		return fmt.Errorf("failed to initialize fetch ledger: %w", err)
	}
	defer ledger.Close()

	// Initialize upstream clients
	fetcher := integration.NewFetcher(cfg.HTTPTimeout)
	useCase := usecases.NewIngestUseCase(
		integration.NewFishCountClient(fetcher, cfg.Fish),
		integration.NewNWISClient(fetcher, cfg.Water.BaseURL),
		integration.NewTideClient(fetcher, cfg.Tide),
		writer,
		ledger,
		cfg,
	)

	summary, err := useCase.RunAll(ctx)
	if summary != nil {
		for dataset, path := range summary.Files {
			log.Printf("%s: %s", dataset, path)
		}
		if len(summary.FailedMonths) > 0 {
			log.Printf("Tidal months without data: %v", summary.FailedMonths)
		}
	}
	return err
}
