package repository

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/abelzeko/kenai-ingest/internal/entities"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readHeader(t *testing.T, path string) ([]string, int) {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.NotEmpty(t, records)
	return records[0], len(records) - 1
}

func TestRawDataRoundTrip(t *testing.T) {
	w, err := NewRawDataWriter(filepath.Join(t.TempDir(), "raw"))
	require.NoError(t, err)
	rng := entities.DateRange{StartYear: 2020, EndYear: 2020}

	in := []entities.SeaLevelRecord{
		{Date: civil.Date{Year: 2020, Month: time.January, Day: 1}, Min: entities.Float(-5.25), Max: entities.Float(6)},
		{Date: civil.Date{Year: 2020, Month: time.January, Day: 2}, Min: entities.Null(), Max: entities.Null()},
		{Date: civil.Date{Year: 2020, Month: time.January, Day: 3}, Min: entities.Float(0), Max: entities.Float(0)},
	}
	path, err := w.Write(rng, DatasetSeaLevel, in)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(w.OutputDir, "2020-2020_sea_level_data_raw.csv"), path)

	header, rows := readHeader(t, path)
	assert.Equal(t, []string{"date", "min", "max"}, header, "no index column")
	assert.Equal(t, len(in), rows)

	var out []entities.SeaLevelRecord
	require.NoError(t, w.Read(path, &out))
	assert.Equal(t, in, out)
}

func TestRawDataWaterAndFishHeaders(t *testing.T) {
	w, err := NewRawDataWriter(t.TempDir())
	require.NoError(t, err)
	rng := entities.DateRange{StartYear: 2015, EndYear: 2024}

	path, err := w.Write(rng, DatasetWater, []entities.WaterRecord{{
		Date:               civil.Date{Year: 2015, Month: time.March, Day: 4},
		WaterTempMean:      entities.Float(1.5),
		WaterDischargeMean: entities.Float(1930),
	}})
	require.NoError(t, err)
	header, rows := readHeader(t, path)
	assert.Equal(t, []string{"date", "water_temp_max", "water_temp_min", "water_temp_mean", "water_discharge_mean"}, header)
	assert.Equal(t, 1, rows)

	path, err = w.Write(rng, DatasetFish, []entities.FishCount{})
	require.NoError(t, err)
	header, rows = readHeader(t, path)
	assert.Equal(t, []string{"year", "date", "fish_count"}, header)
	assert.Equal(t, 0, rows)
}

func TestRawDataOverwrites(t *testing.T) {
	w, err := NewRawDataWriter(t.TempDir())
	require.NoError(t, err)
	rng := entities.DateRange{StartYear: 2020, EndYear: 2020}
	day := civil.Date{Year: 2020, Month: time.July, Day: 1}

	_, err = w.Write(rng, DatasetFish, []entities.FishCount{{Year: 2020, Date: day, FishCount: entities.Float(1)}, {Year: 2020, Date: day, FishCount: entities.Float(2)}})
	require.NoError(t, err)
	path, err := w.Write(rng, DatasetFish, []entities.FishCount{{Year: 2020, Date: day, FishCount: entities.Float(3)}})
	require.NoError(t, err)

	var out []entities.FishCount
	require.NoError(t, w.Read(path, &out))
	assert.Equal(t, []entities.FishCount{{Year: 2020, Date: day, FishCount: entities.Float(3)}}, out)
}

func TestRawDataFishNullCount(t *testing.T) {
	w, err := NewRawDataWriter(t.TempDir())
	require.NoError(t, err)
	rng := entities.DateRange{StartYear: 2020, EndYear: 2020}
	day := civil.Date{Year: 2020, Month: time.July, Day: 1}

	path, err := w.Write(rng, DatasetFish, []entities.FishCount{{Year: 2020, Date: day, FishCount: entities.Null()}})
	require.NoError(t, err)
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "year,date,fish_count\n2020,2020-07-01,\n", string(content))

	var out []entities.FishCount
	require.NoError(t, w.Read(path, &out))
	require.Len(t, out, 1)
	assert.False(t, out[0].FishCount.Valid)
}

func TestRawDataRejectsNonSlice(t *testing.T) {
	w, err := NewRawDataWriter(t.TempDir())
	require.NoError(t, err)
	_, err = w.Write(entities.DateRange{StartYear: 2020, EndYear: 2020}, DatasetFish, entities.FishCount{})
	assert.Error(t, err)
}

func TestFetchLogRepository(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "ledger", "test-ingest.db")
	repo, err := NewSQLiteFetchLogRepository(dbPath)
	require.NoError(t, err)
	defer repo.Close()

	latest, err := repo.GetLatestRunID()
	require.NoError(t, err)
	assert.Equal(t, "", latest)

	entries := []entities.FetchLogEntry{
		{RunID: "run-1", Dataset: DatasetFish, Unit: "2020-2020", Status: entities.FetchOK, Rows: 90},
		{RunID: "run-2", Dataset: DatasetSeaLevel, Unit: "2020-01", Status: entities.FetchOK, Rows: 31},
		{RunID: "run-2", Dataset: DatasetSeaLevel, Unit: "2020-02", Status: entities.FetchFailed, Error: "unexpected status code 500"},
	}
	for _, e := range entries {
		require.NoError(t, repo.RecordFetch(e))
	}

	latest, err = repo.GetLatestRunID()
	require.NoError(t, err)
	assert.Equal(t, "run-2", latest)

	run, err := repo.GetRunEntries("run-2")
	require.NoError(t, err)
	require.Len(t, run, 2)
	assert.Equal(t, "2020-01", run[0].Unit)
	assert.Equal(t, 31, run[0].Rows)
	assert.False(t, run[0].FetchedAt.IsZero())

	failed, err := repo.GetFailedUnits("run-2")
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "2020-02", failed[0].Unit)
	assert.Equal(t, entities.FetchFailed, failed[0].Status)
	assert.Equal(t, "unexpected status code 500", failed[0].Error)
}
