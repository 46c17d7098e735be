// Package usecases contains the application's business logic
package usecases

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/abelzeko/kenai-ingest/internal/config"
	"github.com/abelzeko/kenai-ingest/internal/entities"
	"github.com/abelzeko/kenai-ingest/internal/integration"
	"github.com/abelzeko/kenai-ingest/internal/repository"
	"github.com/abelzeko/kenai-ingest/internal/table"
	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
)

// Layouts accepted for upstream date cells. The first is what the fish
// count export uses, e.g. "June, 16 2024 00:00:00".
var dateLayouts = []string{
	"January, 2 2006 15:04:05",
	"2006-01-02",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.000",
	"01/02/2006",
}

// IngestUseCase runs the fish, water and tidal pipelines of one ingestion run
type IngestUseCase struct {
	fish   *integration.FishCountClient
	water  *integration.NWISClient
	tides  *integration.TideClient
	writer *repository.RawDataWriter
	ledger repository.FetchLogRepository
	cfg    *config.Config
	runID  string
}

// NewIngestUseCase creates a use case with a fresh run identifier. ledger may be nil.
func NewIngestUseCase(
	fish *integration.FishCountClient,
	water *integration.NWISClient,
	tides *integration.TideClient,
	writer *repository.RawDataWriter,
	ledger repository.FetchLogRepository,
	cfg *config.Config,
) *IngestUseCase {
	return &IngestUseCase{
		fish:   fish,
		water:  water,
		tides:  tides,
		writer: writer,
		ledger: ledger,
		cfg:    cfg,
		runID:  uuid.NewString(),
	}
}

// RunID identifies this run in the fetch ledger
func (uc *IngestUseCase) RunID() string {
	return uc.runID
}

// TideResult is the outcome of the tidal pipeline
type TideResult struct {
	Records      []entities.SeaLevelRecord
	Months       int
	FailedMonths []civil.Date
}

// RunSummary describes what a full run produced
type RunSummary struct {
	RunID        string
	Files        map[string]string
	FailedMonths []civil.Date
}

// RunAll runs every pipeline, writes the datasets that succeeded and returns
// the combined failures of those that did not
func (uc *IngestUseCase) RunAll(ctx context.Context) (*RunSummary, error) {
	rng := uc.cfg.Range()
	if err := rng.Validate(); err != nil {
		return nil, err
	}
	log.Printf("Starting ingestion run %s for %s", uc.runID, rng)

	summary := &RunSummary{RunID: uc.runID, Files: make(map[string]string)}
	var result *multierror.Error

	write := func(dataset string, records interface{}) {
		path, err := uc.writer.Write(rng, dataset, records)
		if err != nil {
			result = multierror.Append(result, err)
			return
		}
		summary.Files[dataset] = path
	}

	if fish, err := uc.RunFishPipeline(ctx); err != nil {
		result = multierror.Append(result, fmt.Errorf("fish pipeline: %w", err))
	} else {
		write(repository.DatasetFish, fish)
	}

	if water, err := uc.RunWaterPipeline(ctx); err != nil {
		result = multierror.Append(result, fmt.Errorf("water pipeline: %w", err))
	} else {
		write(repository.DatasetWater, water)
	}

	if tides, err := uc.RunTidePipeline(ctx); err != nil {
		result = multierror.Append(result, fmt.Errorf("tidal pipeline: %w", err))
	} else {
		summary.FailedMonths = tides.FailedMonths
		write(repository.DatasetSeaLevel, tides.Records)
	}

	log.Printf("Ingestion run %s finished, %d of 3 datasets written", uc.runID, len(summary.Files))
	return summary, result.ErrorOrNil()
}

// RunFishPipeline fetches the fish counts for the configured range and keeps
// only year, date and count
func (uc *IngestUseCase) RunFishPipeline(ctx context.Context) ([]entities.FishCount, error) {
	rng := uc.cfg.Range()
	log.Printf("Starting fish count pipeline for %s", rng)

	t, err := uc.fish.FetchCounts(ctx, rng)
	if err != nil {
		uc.record(repository.DatasetFish, rng.String(), 0, err)
		return nil, err
	}

	records, err := FishRecords(t, rng)
	uc.record(repository.DatasetFish, rng.String(), len(records), err)
	if err != nil {
		return nil, err
	}
	log.Printf("Fish count pipeline produced %s rows", humanize.Comma(int64(len(records))))
	return records, nil
}

// FishRecords reduces a raw fish count table to typed records within rng.
// Duplicate dates are kept as delivered and a blank count is kept as null.
func FishRecords(t *table.Table, rng entities.DateRange) ([]entities.FishCount, error) {
	t, err := t.Select("YEAR", "COUNTDATE", "FISHCOUNT")
	if err != nil {
		return nil, err
	}
	t, err = t.Rename(map[string]string{"YEAR": "year", "COUNTDATE": "date", "FISHCOUNT": "fish_count"})
	if err != nil {
		return nil, err
	}

	records := make([]entities.FishCount, 0, t.Len())
	var outside int
	for i, row := range t.Rows {
		date, err := parseDate(row[1])
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		if !rng.Contains(date) {
			outside++
			continue
		}
		count, err := entities.ParseNullFloat(strings.TrimSpace(row[2]))
		if err != nil {
			return nil, fmt.Errorf("row %d: invalid fish count %q: %w", i, row[2], table.ErrSchemaMismatch)
		}
		year := date.Year
		if strings.TrimSpace(row[0]) != "" {
			if year, err = parseInt(row[0]); err != nil {
				return nil, fmt.Errorf("row %d: invalid year %q: %w", i, row[0], table.ErrSchemaMismatch)
			}
		}
		records = append(records, entities.FishCount{Year: year, Date: date, FishCount: count})
	}

	if outside > 0 {
		log.Printf("Discarded %d fish count rows outside %s", outside, rng)
	}
	return records, nil
}

// RunWaterPipeline fetches daily temperature and discharge statistics and
// outer-joins them on date
func (uc *IngestUseCase) RunWaterPipeline(ctx context.Context) ([]entities.WaterRecord, error) {
	rng := uc.cfg.Range()
	wc := uc.cfg.Water
	log.Printf("Starting water data pipeline for site %s, %s", wc.Site, rng)

	temp, err := uc.fetchDaily(ctx, wc.TempParam)
	if err != nil {
		return nil, err
	}
	log.Printf("Site %s: %s (%.4f, %.4f)", temp.Site.Code, temp.Site.Name, temp.Site.Latitude, temp.Site.Longitude)

	discharge, err := uc.fetchDaily(ctx, wc.DischargeParam)
	if err != nil {
		return nil, err
	}

	tempTable, err := prepareDaily(temp.Table, map[string]string{
		wc.TempParam + "_Maximum": "water_temp_max",
		wc.TempParam + "_Minimum": "water_temp_min",
		wc.TempParam + "_Mean":    "water_temp_mean",
	})
	if err != nil {
		return nil, fmt.Errorf("temperature table: %w", err)
	}
	dischargeTable, err := prepareDaily(discharge.Table, map[string]string{
		wc.DischargeParam + "_Mean": "water_discharge_mean",
	})
	if err != nil {
		return nil, fmt.Errorf("discharge table: %w", err)
	}

	joined, err := table.OuterJoin(tempTable, dischargeTable, "date")
	if err != nil {
		return nil, err
	}

	records, err := WaterRecords(joined)
	if err != nil {
		return nil, err
	}
	log.Printf("Water data pipeline produced %s rows", humanize.Comma(int64(len(records))))
	return records, nil
}

func (uc *IngestUseCase) fetchDaily(ctx context.Context, paramCd string) (*integration.DailyValues, error) {
	rng := uc.cfg.Range()
	dv, err := uc.water.GetDailyValues(ctx, uc.cfg.Water.Site, rng.StartDate(), rng.EndDate(), paramCd)
	rows := 0
	if dv != nil {
		rows = dv.Table.Len()
	}
	uc.record(repository.DatasetWater, paramCd, rows, err)
	return dv, err
}

// prepareDaily drops the site and qualifier columns, renames the value
// columns and reduces datetimes to ISO dates
func prepareDaily(t *table.Table, names map[string]string) (*table.Table, error) {
	t, err := t.Drop("site_no")
	if err != nil {
		return nil, err
	}
	t = t.DropFunc(func(c string) bool { return strings.HasSuffix(c, "_cd") })

	names["datetime"] = "date"
	t, err = t.Rename(names)
	if err != nil {
		return nil, err
	}

	keep := []string{"date"}
	for _, n := range names {
		if n != "date" {
			keep = append(keep, n)
		}
	}
	sort.Strings(keep[1:])
	if t, err = t.Select(keep...); err != nil {
		return nil, err
	}

	err = t.Apply("date", func(s string) (string, error) {
		d, err := parseDate(s)
		if err != nil {
			return "", err
		}
		return d.String(), nil
	})
	return t, err
}

// WaterRecords maps a joined water table onto records ordered by date.
// Absent cells become null.
func WaterRecords(t *table.Table) ([]entities.WaterRecord, error) {
	cols := []string{"date", "water_temp_max", "water_temp_min", "water_temp_mean", "water_discharge_mean"}
	idx := make([]int, len(cols))
	for i, c := range cols {
		j, err := t.Index(c)
		if err != nil {
			return nil, err
		}
		idx[i] = j
	}

	records := make([]entities.WaterRecord, 0, t.Len())
	for r, row := range t.Rows {
		date, err := civil.ParseDate(row[idx[0]])
		if err != nil {
			return nil, fmt.Errorf("row %d: invalid date %q: %w", r, row[idx[0]], err)
		}
		var values [4]entities.NullFloat
		for i := range values {
			if values[i], err = entities.ParseNullFloat(row[idx[i+1]]); err != nil {
				return nil, fmt.Errorf("row %d column %s: %w", r, cols[i+1], err)
			}
		}
		records = append(records, entities.WaterRecord{
			Date:               date,
			WaterTempMax:       values[0],
			WaterTempMin:       values[1],
			WaterTempMean:      values[2],
			WaterDischargeMean: values[3],
		})
	}

	sort.SliceStable(records, func(i, j int) bool { return records[i].Date.Before(records[j].Date) })
	return records, nil
}

// RunTidePipeline fetches the configured range one month at a time and
// reduces every day to its minimum and maximum level. A failed month is
// reported in FailedMonths and contributes no rows.
func (uc *IngestUseCase) RunTidePipeline(ctx context.Context) (*TideResult, error) {
	rng := uc.cfg.Range()
	months := MonthRange(rng)
	log.Printf("Starting tidal pipeline for station %s, %d months", uc.cfg.Tide.Station, len(months))

	res := &TideResult{Months: len(months)}
	var readings []entities.SeaLevelReading
	for _, m := range months {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("tidal pipeline cancelled before %s: %w", monthKey(m), err)
		}
		batch, err := uc.FetchTideMonth(ctx, m)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("tidal pipeline cancelled during %s: %w", monthKey(m), ctx.Err())
			}
			log.Printf("Warning: skipping tidal month %s: %v", monthKey(m), err)
			res.FailedMonths = append(res.FailedMonths, m)
			continue
		}
		readings = append(readings, batch...)
	}

	res.Records = AggregateDailyExtrema(readings)
	log.Printf("Tidal pipeline produced %s day rows, %d of %d months failed",
		humanize.Comma(int64(len(res.Records))), len(res.FailedMonths), res.Months)
	return res, nil
}

// FetchTideMonth fetches one calendar month of readings and records the outcome
func (uc *IngestUseCase) FetchTideMonth(ctx context.Context, monthStart civil.Date) ([]entities.SeaLevelReading, error) {
	readings, err := uc.tides.FetchMonth(ctx, monthStart)
	uc.record(repository.DatasetSeaLevel, monthKey(monthStart), len(readings), err)
	return readings, err
}

// MonthRange returns the first day of every month from January of the start
// year through December of the end year
func MonthRange(rng entities.DateRange) []civil.Date {
	if rng.StartYear > rng.EndYear {
		return nil
	}
	months := make([]civil.Date, 0, 12*(rng.EndYear-rng.StartYear+1))
	for y := rng.StartYear; y <= rng.EndYear; y++ {
		for m := time.January; m <= time.December; m++ {
			months = append(months, civil.Date{Year: y, Month: m, Day: 1})
		}
	}
	return months
}

// AggregateDailyExtrema groups readings by calendar day. Null readings are
// ignored; a day with only null readings yields a null minimum and maximum.
func AggregateDailyExtrema(readings []entities.SeaLevelReading) []entities.SeaLevelRecord {
	byDay := make(map[civil.Date]*entities.SeaLevelRecord)
	for _, r := range readings {
		day := civil.DateOf(r.Timestamp)
		rec, ok := byDay[day]
		if !ok {
			rec = &entities.SeaLevelRecord{Date: day}
			byDay[day] = rec
		}
		if !r.Level.Valid {
			continue
		}
		if !rec.Min.Valid || r.Level.Value < rec.Min.Value {
			rec.Min = r.Level
		}
		if !rec.Max.Valid || r.Level.Value > rec.Max.Value {
			rec.Max = r.Level
		}
	}

	records := make([]entities.SeaLevelRecord, 0, len(byDay))
	for _, rec := range byDay {
		records = append(records, *rec)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Date.Before(records[j].Date) })
	return records
}

func (uc *IngestUseCase) record(dataset, unit string, rows int, err error) {
	if uc.ledger == nil {
		return
	}
	entry := entities.FetchLogEntry{
		RunID:     uc.runID,
		Dataset:   dataset,
		Unit:      unit,
		Status:    entities.FetchOK,
		Rows:      rows,
		FetchedAt: time.Now(),
	}
	if err != nil {
		entry.Status = entities.FetchFailed
		entry.Error = err.Error()
	}
	if lerr := uc.ledger.RecordFetch(entry); lerr != nil {
		log.Printf("Warning: %v", lerr)
	}
}

func monthKey(d civil.Date) string {
	return fmt.Sprintf("%04d-%02d", d.Year, int(d.Month))
}

func parseDate(s string) (civil.Date, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return civil.DateOf(t), nil
		}
	}
	return civil.Date{}, fmt.Errorf("unrecognised date %q: %w", s, table.ErrSchemaMismatch)
}

func parseInt(s string) (int, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if f != float64(int(f)) {
		return 0, errors.New("not a whole number")
	}
	return int(f), nil
}
