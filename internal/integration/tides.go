package integration

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/abelzeko/kenai-ingest/internal/config"
	"github.com/abelzeko/kenai-ingest/internal/entities"
)

// noaaTimeLayout is the CO-OPS timestamp format, wall clock in the requested time zone
const noaaTimeLayout = "2006-01-02 15:04"

// ErrNoData is returned when CO-OPS answers with an error document instead of data
var ErrNoData = errors.New("no water level data returned")

type waterLevelResponse struct {
	Data  []waterLevelRecord `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// waterLevelRecord mirrors one CO-OPS observation; v is empty when the
// sensor reported nothing
type waterLevelRecord struct {
	Time  string `json:"t"`
	Value string `json:"v"`
}

// TideClient reads observed water levels from the NOAA CO-OPS data API
type TideClient struct {
	fetcher *Fetcher
	cfg     config.TideConfig
}

// NewTideClient creates a client for one tide station
func NewTideClient(fetcher *Fetcher, cfg config.TideConfig) *TideClient {
	return &TideClient{fetcher: fetcher, cfg: cfg}
}

// MonthEnd returns the last day of the month containing d
func MonthEnd(d civil.Date) civil.Date {
	// Day 0 of the next month normalises to the last day of this one
	return civil.DateOf(time.Date(d.Year, d.Month+1, 0, 0, 0, 0, 0, time.UTC))
}

// BuildURL returns the water level query for the calendar month starting at monthStart
func (c *TideClient) BuildURL(monthStart civil.Date) string {
	q := url.Values{}
	q.Set("begin_date", compactDate(monthStart))
	q.Set("end_date", compactDate(MonthEnd(monthStart)))
	q.Set("station", c.cfg.Station)
	q.Set("product", "water_level")
	q.Set("datum", c.cfg.Datum)
	q.Set("time_zone", c.cfg.TimeZone)
	q.Set("units", c.cfg.Units)
	q.Set("format", "json")
	return c.cfg.BaseURL + "?" + q.Encode()
}

// FetchMonth returns every observation of the month starting at monthStart
func (c *TideClient) FetchMonth(ctx context.Context, monthStart civil.Date) ([]entities.SeaLevelReading, error) {
	body, err := c.fetcher.Get(ctx, c.BuildURL(monthStart), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch water levels for month ending %s: %w", MonthEnd(monthStart), err)
	}

	readings, err := ParseWaterLevels(body)
	if err != nil {
		return nil, fmt.Errorf("month ending %s: %w", MonthEnd(monthStart), err)
	}
	log.Printf("Parsed %d water level readings for %d-%02d", len(readings), monthStart.Year, monthStart.Month)
	return readings, nil
}

// ParseWaterLevels decodes a CO-OPS water level document. A blank value is
// kept as a null reading rather than rejected.
func ParseWaterLevels(body []byte) ([]entities.SeaLevelReading, error) {
	var resp waterLevelResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse water level response: %w", err)
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("%w: %s", ErrNoData, strings.TrimSpace(resp.Error.Message))
	}

	readings := make([]entities.SeaLevelReading, 0, len(resp.Data))
	for _, rec := range resp.Data {
		ts, err := time.ParseInLocation(noaaTimeLayout, rec.Time, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("invalid timestamp %q: %w", rec.Time, err)
		}
		level, err := entities.ParseNullFloat(rec.Value)
		if err != nil {
			return nil, fmt.Errorf("invalid water level at %s: %w", rec.Time, err)
		}
		readings = append(readings, entities.SeaLevelReading{Timestamp: ts, Level: level})
	}
	return readings, nil
}

func compactDate(d civil.Date) string {
	return fmt.Sprintf("%04d%02d%02d", d.Year, int(d.Month), d.Day)
}
