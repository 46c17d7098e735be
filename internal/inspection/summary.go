// Package inspection summarises raw data files for a quick look after a run
package inspection

import (
	"math"
	"sort"

	"github.com/abelzeko/kenai-ingest/internal/entities"
)

// Stats are the descriptive statistics of one numeric column
type Stats struct {
	Column  string
	Count   int
	Missing int
	Mean    float64
	Std     float64
	Min     float64
	Q25     float64
	Median  float64
	Q75     float64
	Max     float64
}

// Describe computes statistics over the valid values of a column. Std is
// the sample standard deviation and is NaN for fewer than two values;
// every statistic is NaN when no value is valid.
func Describe(column string, values []entities.NullFloat) Stats {
	s := Stats{Column: column}
	var valid []float64
	for _, v := range values {
		if v.Valid {
			valid = append(valid, v.Value)
		} else {
			s.Missing++
		}
	}
	s.Count = len(valid)

	nan := math.NaN()
	if s.Count == 0 {
		s.Mean, s.Std, s.Min, s.Q25, s.Median, s.Q75, s.Max = nan, nan, nan, nan, nan, nan, nan
		return s
	}

	sort.Float64s(valid)
	var sum float64
	for _, v := range valid {
		sum += v
	}
	s.Mean = sum / float64(s.Count)

	s.Std = nan
	if s.Count > 1 {
		var sq float64
		for _, v := range valid {
			sq += (v - s.Mean) * (v - s.Mean)
		}
		s.Std = math.Sqrt(sq / float64(s.Count-1))
	}

	s.Min = valid[0]
	s.Max = valid[s.Count-1]
	s.Q25 = quantile(valid, 0.25)
	s.Median = quantile(valid, 0.5)
	s.Q75 = quantile(valid, 0.75)
	return s
}

// quantile interpolates linearly between the closest ranks of sorted
func quantile(sorted []float64, q float64) float64 {
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	frac := pos - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}

// DescribeFish summarises the fish count column
func DescribeFish(records []entities.FishCount) []Stats {
	counts := make([]entities.NullFloat, len(records))
	for i, r := range records {
		counts[i] = r.FishCount
	}
	return []Stats{Describe("fish_count", counts)}
}

// DescribeWater summarises every water metric
func DescribeWater(records []entities.WaterRecord) []Stats {
	cols := [4][]entities.NullFloat{}
	for _, r := range records {
		cols[0] = append(cols[0], r.WaterTempMax)
		cols[1] = append(cols[1], r.WaterTempMin)
		cols[2] = append(cols[2], r.WaterTempMean)
		cols[3] = append(cols[3], r.WaterDischargeMean)
	}
	return []Stats{
		Describe("water_temp_max", cols[0]),
		Describe("water_temp_min", cols[1]),
		Describe("water_temp_mean", cols[2]),
		Describe("water_discharge_mean", cols[3]),
	}
}

// DescribeSeaLevel summarises the daily minimum and maximum
func DescribeSeaLevel(records []entities.SeaLevelRecord) []Stats {
	var mins, maxs []entities.NullFloat
	for _, r := range records {
		mins = append(mins, r.Min)
		maxs = append(maxs, r.Max)
	}
	return []Stats{Describe("min", mins), Describe("max", maxs)}
}

// MissingSeaLevelDays returns the days whose minimum or maximum is null
func MissingSeaLevelDays(records []entities.SeaLevelRecord) []entities.SeaLevelRecord {
	var missing []entities.SeaLevelRecord
	for _, r := range records {
		if !r.Min.Valid || !r.Max.Valid {
			missing = append(missing, r)
		}
	}
	return missing
}
