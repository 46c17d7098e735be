// Package entities contains the core domain objects for the ingestion pipelines
package entities

import (
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
)

// ErrInvalidRange is returned when a date range starts after it ends
var ErrInvalidRange = errors.New("start year must not be after end year")

// DateRange is an inclusive range of calendar years shared by all pipelines
type DateRange struct {
	StartYear int
	EndYear   int
}

// Validate checks that the range is well formed
func (r DateRange) Validate() error {
	if r.StartYear <= 0 || r.EndYear <= 0 {
		return fmt.Errorf("invalid date range %d-%d: years must be positive", r.StartYear, r.EndYear)
	}
	if r.StartYear > r.EndYear {
		return fmt.Errorf("invalid date range %d-%d: %w", r.StartYear, r.EndYear, ErrInvalidRange)
	}
	return nil
}

// Years returns every year of the range, newest first
func (r DateRange) Years() []int {
	years := make([]int, 0, r.EndYear-r.StartYear+1)
	for y := r.EndYear; y >= r.StartYear; y-- {
		years = append(years, y)
	}
	return years
}

// StartDate is January 1 of the start year
func (r DateRange) StartDate() civil.Date {
	return civil.Date{Year: r.StartYear, Month: time.January, Day: 1}
}

// EndDate is December 31 of the end year
func (r DateRange) EndDate() civil.Date {
	return civil.Date{Year: r.EndYear, Month: time.December, Day: 31}
}

// Contains reports whether d falls inside the range
func (r DateRange) Contains(d civil.Date) bool {
	return !d.Before(r.StartDate()) && !d.After(r.EndDate())
}

// String renders the range the way output files are named, e.g. "2015-2024"
func (r DateRange) String() string {
	return fmt.Sprintf("%d-%d", r.StartYear, r.EndYear)
}

// FishCount is one daily count for the configured location and species.
// A count the service left blank stays null.
type FishCount struct {
	Year      int        `csv:"year"`
	Date      civil.Date `csv:"date"`
	FishCount NullFloat  `csv:"fish_count"`
}

// WaterRecord is the joined daily temperature and discharge for one site.
// Either side may be null when only one series has data for the date.
type WaterRecord struct {
	Date               civil.Date `csv:"date"`
	WaterTempMax       NullFloat  `csv:"water_temp_max"`
	WaterTempMin       NullFloat  `csv:"water_temp_min"`
	WaterTempMean      NullFloat  `csv:"water_temp_mean"`
	WaterDischargeMean NullFloat  `csv:"water_discharge_mean"`
}

// SeaLevelRecord holds the daily extrema of the observed water level
type SeaLevelRecord struct {
	Date civil.Date `csv:"date"`
	Min  NullFloat  `csv:"min"`
	Max  NullFloat  `csv:"max"`
}

// SeaLevelReading is a single sub-daily water level observation
type SeaLevelReading struct {
	Timestamp time.Time
	Level     NullFloat
}

// FetchStatus is the outcome of one fetch unit
type FetchStatus string

const (
	FetchOK     FetchStatus = "ok"
	FetchFailed FetchStatus = "failed"
)

// FetchLogEntry records one fetch unit of a run: a whole dataset request, a
// parameter series or a single tide month
type FetchLogEntry struct {
	ID        int64
	RunID     string
	Dataset   string
	Unit      string
	Status    FetchStatus
	Rows      int
	Error     string
	FetchedAt time.Time
}
