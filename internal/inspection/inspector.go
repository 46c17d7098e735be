package inspection

import (
	"errors"
	"fmt"
	"io/fs"
	"log"

	"github.com/abelzeko/kenai-ingest/internal/entities"
	"github.com/abelzeko/kenai-ingest/internal/repository"
)

// Inspector reads the raw data files of a range back and summarises them
type Inspector struct {
	writer *repository.RawDataWriter
	ledger repository.FetchLogRepository
}

// NewInspector creates an inspector. ledger may be nil.
func NewInspector(writer *repository.RawDataWriter, ledger repository.FetchLogRepository) *Inspector {
	return &Inspector{writer: writer, ledger: ledger}
}

// Inspect builds the report for rng and returns the sea level records for
// charting. A dataset without a file is reported as absent.
func (i *Inspector) Inspect(rng entities.DateRange) (*Report, []entities.SeaLevelRecord, error) {
	report := &Report{
		Range:    rng,
		Sections: make(map[string][]Stats),
		Rows:     make(map[string]int),
	}

	var fish []entities.FishCount
	if ok, err := i.read(rng, repository.DatasetFish, &fish); err != nil {
		return nil, nil, err
	} else if ok {
		report.Sections[repository.DatasetFish] = DescribeFish(fish)
		report.Rows[repository.DatasetFish] = len(fish)
	}

	var water []entities.WaterRecord
	if ok, err := i.read(rng, repository.DatasetWater, &water); err != nil {
		return nil, nil, err
	} else if ok {
		report.Sections[repository.DatasetWater] = DescribeWater(water)
		report.Rows[repository.DatasetWater] = len(water)
	}

	var levels []entities.SeaLevelRecord
	if ok, err := i.read(rng, repository.DatasetSeaLevel, &levels); err != nil {
		return nil, nil, err
	} else if ok {
		report.Sections[repository.DatasetSeaLevel] = DescribeSeaLevel(levels)
		report.Rows[repository.DatasetSeaLevel] = len(levels)
		report.MissingDays = MissingSeaLevelDays(levels)
	}

	if i.ledger != nil {
		runID, err := i.ledger.GetLatestRunID()
		if err != nil {
			return nil, nil, err
		}
		if runID != "" {
			failed, err := i.ledger.GetFailedUnits(runID)
			if err != nil {
				return nil, nil, err
			}
			report.RunID = runID
			report.FailedUnits = failed
		}
	}

	return report, levels, nil
}

func (i *Inspector) read(rng entities.DateRange, dataset string, out interface{}) (bool, error) {
	path := i.writer.Path(rng, dataset)
	if err := i.writer.Read(path, out); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			log.Printf("No %s file at %s", dataset, path)
			return false, nil
		}
		return false, fmt.Errorf("failed to inspect %s: %w", dataset, err)
	}
	return true, nil
}
