package inspection

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/abelzeko/kenai-ingest/internal/entities"
	"github.com/dustin/go-humanize"
)

// maxListedDays caps how many gap days are printed individually
const maxListedDays = 20

// Report collects what the inspection tool prints about one range
type Report struct {
	Range       entities.DateRange
	Sections    map[string][]Stats
	Rows        map[string]int
	MissingDays []entities.SeaLevelRecord
	RunID       string
	FailedUnits []entities.FetchLogEntry
}

// sectionOrder fixes the print order of datasets
var sectionOrder = []string{"fish", "water_temp", "sea_level"}

// WriteTo prints the report as aligned text tables
func (r *Report) WriteTo(w io.Writer) (int64, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Raw data summary for %s\n", r.Range)

	for _, name := range sectionOrder {
		stats, ok := r.Sections[name]
		if !ok {
			fmt.Fprintf(&b, "\n%s: no data file\n", name)
			continue
		}
		fmt.Fprintf(&b, "\n%s (%s rows)\n", name, humanize.Comma(int64(r.Rows[name])))
		tw := tabwriter.NewWriter(&b, 0, 0, 2, ' ', tabwriter.AlignRight)
		fmt.Fprintln(tw, "column\tcount\tmissing\tmean\tstd\tmin\t25%\t50%\t75%\tmax\t")
		for _, s := range stats {
			fmt.Fprintf(tw, "%s\t%d\t%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t\n",
				s.Column, s.Count, s.Missing,
				num(s.Mean), num(s.Std), num(s.Min), num(s.Q25), num(s.Median), num(s.Q75), num(s.Max))
		}
		tw.Flush()
	}

	if _, ok := r.Sections["sea_level"]; ok {
		fmt.Fprintf(&b, "\nSea level days with missing values: %d\n", len(r.MissingDays))
		for i, d := range r.MissingDays {
			if i == maxListedDays {
				fmt.Fprintf(&b, "  ... and %d more\n", len(r.MissingDays)-maxListedDays)
				break
			}
			fmt.Fprintf(&b, "  %s min=%s max=%s\n", d.Date, orNull(d.Min), orNull(d.Max))
		}
	}

	if r.RunID != "" {
		fmt.Fprintf(&b, "\nLatest run %s: %d failed fetch units\n", r.RunID, len(r.FailedUnits))
		for _, u := range r.FailedUnits {
			fmt.Fprintf(&b, "  %s %s: %s\n", u.Dataset, u.Unit, u.Error)
		}
	}

	n, err := io.WriteString(w, b.String())
	return int64(n), err
}

// String returns the printed report
func (r *Report) String() string {
	var b strings.Builder
	r.WriteTo(&b)
	return b.String()
}

func num(v float64) string {
	if math.IsNaN(v) {
		return "NaN"
	}
	return strconv.FormatFloat(v, 'f', 3, 64)
}

func orNull(v entities.NullFloat) string {
	if !v.Valid {
		return "null"
	}
	return v.String()
}
