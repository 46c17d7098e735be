package integration

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/abelzeko/kenai-ingest/internal/table"
	"github.com/tidwall/gjson"
)

// SiteInfo is the monitoring site metadata returned with a series
type SiteInfo struct {
	Code      string
	Name      string
	Latitude  float64
	Longitude float64
}

// DailyValues is one parameter's daily statistics for a site. The table has
// a datetime column, a site_no column and, per statistic, a value column
// named "<param>_<Statistic>" followed by its "_cd" qualifier column.
type DailyValues struct {
	Site  SiteInfo
	Table *table.Table
}

// NWISClient reads daily values from the USGS water services
type NWISClient struct {
	fetcher *Fetcher
	baseURL string
}

// NewNWISClient creates a daily values client
func NewNWISClient(fetcher *Fetcher, baseURL string) *NWISClient {
	if baseURL == "" {
		baseURL = "https://waterservices.usgs.gov/nwis/dv/"
	}
	return &NWISClient{fetcher: fetcher, baseURL: baseURL}
}

// BuildURL returns the daily values query for one site and parameter
func (c *NWISClient) BuildURL(site string, start, end civil.Date, paramCd string) string {
	q := url.Values{}
	q.Set("format", "json")
	q.Set("sites", site)
	q.Set("startDT", start.String())
	q.Set("endDT", end.String())
	q.Set("parameterCd", paramCd)
	q.Set("siteStatus", "all")
	return c.baseURL + "?" + q.Encode()
}

// GetDailyValues fetches every daily statistic of paramCd for the site
func (c *NWISClient) GetDailyValues(ctx context.Context, site string, start, end civil.Date, paramCd string) (*DailyValues, error) {
	payload, err := c.fetcher.GetJSON(ctx, c.BuildURL(site, start, end, paramCd), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch daily values for parameter %s: %w", paramCd, err)
	}

	dv, err := ParseDailyValues(payload, site)
	if err != nil {
		return nil, fmt.Errorf("failed to parse daily values for parameter %s: %w", paramCd, err)
	}
	log.Printf("Parsed %d daily rows for parameter %s at site %s (%s)", dv.Table.Len(), paramCd, dv.Site.Code, dv.Site.Name)
	return dv, nil
}

// ParseDailyValues converts a WaterML-JSON daily values document into a table
func ParseDailyValues(payload gjson.Result, site string) (*DailyValues, error) {
	series := payload.Get("value.timeSeries")
	if !series.IsArray() {
		return nil, fmt.Errorf("payload lacks value.timeSeries: %w", table.ErrSchemaMismatch)
	}

	dv := &DailyValues{Site: SiteInfo{Code: site}}
	columns := []string{"datetime", "site_no"}
	cells := make(map[string]map[string]string)

	for i, ts := range series.Array() {
		if i == 0 {
			dv.Site = SiteInfo{
				Code:      ts.Get("sourceInfo.siteCode.0.value").String(),
				Name:      ts.Get("sourceInfo.siteName").String(),
				Latitude:  ts.Get("sourceInfo.geoLocation.geogLocation.latitude").Float(),
				Longitude: ts.Get("sourceInfo.geoLocation.geogLocation.longitude").Float(),
			}
			if dv.Site.Code == "" {
				dv.Site.Code = site
			}
		}

		param := ts.Get("variable.variableCode.0.value").String()
		statistic := ts.Get(`variable.options.option.#(name=="Statistic").value`).String()
		if param == "" || statistic == "" {
			return nil, fmt.Errorf("time series %d lacks parameter or statistic: %w", i, table.ErrSchemaMismatch)
		}
		valueCol := param + "_" + statistic
		qualCol := valueCol + "_cd"
		columns = append(columns, valueCol, qualCol)

		noData := ts.Get("variable.noDataValue")
		methods := ts.Get("values").Array()
		if len(methods) > 1 {
			log.Printf("Warning: %s has %d methods, using the first", valueCol, len(methods))
		}
		if len(methods) == 0 {
			continue
		}

		for _, v := range methods[0].Get("value").Array() {
			dt := v.Get("dateTime").String()
			row, ok := cells[dt]
			if !ok {
				row = make(map[string]string)
				cells[dt] = row
			}
			row[valueCol] = cleanValue(v.Get("value").String(), noData)
			var quals []string
			for _, q := range v.Get("qualifiers").Array() {
				quals = append(quals, q.String())
			}
			row[qualCol] = strings.Join(quals, ",")
		}
	}

	dates := make([]string, 0, len(cells))
	for dt := range cells {
		dates = append(dates, dt)
	}
	sort.Strings(dates)

	rows := make([][]string, 0, len(dates))
	for _, dt := range dates {
		row := []string{dt, dv.Site.Code}
		for _, c := range columns[2:] {
			row = append(row, cells[dt][c])
		}
		rows = append(rows, row)
	}

	t, err := table.New(columns, rows)
	if err != nil {
		return nil, err
	}
	dv.Table = t
	return dv, nil
}

// cleanValue blanks out the service's no-data sentinel
func cleanValue(raw string, noData gjson.Result) string {
	if !noData.Exists() || raw == "" {
		return raw
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err == nil && v == noData.Float() {
		return ""
	}
	return raw
}
