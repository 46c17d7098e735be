package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/abelzeko/kenai-ingest/internal/api"
	"github.com/abelzeko/kenai-ingest/internal/config"
	"github.com/abelzeko/kenai-ingest/internal/inspection"
	"github.com/abelzeko/kenai-ingest/internal/repository"
	"github.com/joho/godotenv"
)

func main() {
	// Configure logging
	log.SetOutput(os.Stdout)
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)

	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file loaded: %v", err)
	}

	if err := run(context.Background(), os.Args[1:], os.Stdout); err != nil {
		log.Fatalf("Inspection failed: %v", err)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	cfg, err := config.Load(ctx, "inspect", args)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	rng := cfg.Range()

	writer, err := repository.NewRawDataWriter(cfg.OutputDir)
	if err != nil {
		return err
	}

	var ledger repository.FetchLogRepository
	if _, err := os.Stat(cfg.LedgerPath); err == nil {
		sqlite, err := repository.NewSQLiteFetchLogRepository(cfg.LedgerPath)
		if err != nil {
			return err
		}
		defer sqlite.Close()
		ledger = sqlite
	}

	report, levels, err := inspection.NewInspector(writer, ledger).Inspect(rng)
	if err != nil {
		return err
	}
	if _, err := report.WriteTo(out); err != nil {
		return err
	}

	var chart bytes.Buffer
	title := fmt.Sprintf("Daily max water level, station %s, %s", cfg.Tide.Station, rng)
	switch err := inspection.RenderSeaLevelChart(&chart, levels, title); {
	case errors.Is(err, inspection.ErrNotEnoughPoints):
		log.Printf("Not enough sea level data for a chart")
	case err != nil:
		return err
	default:
		path := chartPath(cfg.ChartPath, cfg.LedgerPath, rng.String())
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return fmt.Errorf("failed to create chart directory: %w", err)
		}
		if err := os.WriteFile(path, chart.Bytes(), 0644); err != nil {
			return fmt.Errorf("failed to write chart: %w", err)
		}
		log.Printf("Chart written to %s", path)
	}

	if !cfg.Notify {
		return nil
	}
	notifier, err := api.NewTelegramNotifier(cfg.Telegram.Token, cfg.Telegram.ChatID, "")
	if err != nil {
		return err
	}
	return notifier.SendReport(report.String(), chart.Bytes(), title)
}

// chartPath keeps the chart out of the raw data directory: an explicit path
// wins, otherwise the chart goes next to the ledger
func chartPath(explicit, ledgerPath, rng string) string {
	if explicit != "" {
		return explicit
	}
	return filepath.Join(filepath.Dir(ledgerPath), fmt.Sprintf("%s_sea_level_max.png", rng))
}
