package integration

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/abelzeko/kenai-ingest/internal/config"
	"github.com/abelzeko/kenai-ingest/internal/entities"
	"github.com/abelzeko/kenai-ingest/internal/table"
	"github.com/tidwall/gjson"
)

// FishCountClient retrieves daily fish counts from the ADFG FishCounts export
type FishCountClient struct {
	fetcher *Fetcher
	cfg     config.FishConfig
}

// NewFishCountClient creates a client for one count location and species
func NewFishCountClient(fetcher *Fetcher, cfg config.FishConfig) *FishCountClient {
	if cfg.UserAgent == "" {
		cfg.UserAgent = config.DefaultUserAgent
	}
	return &FishCountClient{fetcher: fetcher, cfg: cfg}
}

// BuildURL returns the export URL for every year of the range, newest first
func (c *FishCountClient) BuildURL(rng entities.DateRange) string {
	years := rng.Years()
	parts := make([]string, len(years))
	for i, y := range years {
		parts[i] = strconv.Itoa(y)
	}
	return fmt.Sprintf("%s?ADFG=export.JSON&countLocationID=%d&year=%s&speciesID=%d",
		c.cfg.BaseURL, c.cfg.LocationID, strings.Join(parts, ","), c.cfg.SpeciesID)
}

// FetchCounts downloads the counts for the range as a raw table with the
// upstream column names
func (c *FishCountClient) FetchCounts(ctx context.Context, rng entities.DateRange) (*table.Table, error) {
	url := c.BuildURL(rng)
	payload, err := c.fetcher.GetJSON(ctx, url, map[string]string{"User-Agent": c.cfg.UserAgent})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch fish count data: %w", err)
	}

	t, err := ParseFishPayload(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to parse fish count data: %w", err)
	}
	log.Printf("Parsed %d fish count rows with columns %v", t.Len(), t.Columns)
	return t, nil
}

// ParseFishPayload rebuilds a table from the parallel COLUMNS and DATA arrays
func ParseFishPayload(payload gjson.Result) (*table.Table, error) {
	columns := payload.Get("COLUMNS")
	data := payload.Get("DATA")
	if !columns.IsArray() || !data.IsArray() {
		return nil, fmt.Errorf("payload lacks COLUMNS or DATA arrays: %w", table.ErrSchemaMismatch)
	}

	var names []string
	for _, c := range columns.Array() {
		names = append(names, c.String())
	}

	var rows [][]string
	for i, r := range data.Array() {
		if !r.IsArray() {
			return nil, fmt.Errorf("DATA row %d is not an array: %w", i, table.ErrSchemaMismatch)
		}
		var row []string
		for _, cell := range r.Array() {
			row = append(row, cell.String())
		}
		rows = append(rows, row)
	}

	return table.New(names, rows)
}
