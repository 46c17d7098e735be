package integration

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/abelzeko/kenai-ingest/internal/config"
	"github.com/abelzeko/kenai-ingest/internal/entities"
	"github.com/abelzeko/kenai-ingest/internal/table"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

const fishPayload = `{
  "COLUMNS": ["YEAR","COUNTDATE","FISHCOUNT","SPECIESID","COUNTLOCATIONID","COUNTLOCATION","SPECIES"],
  "DATA": [[2020,"July, 15 2020 00:00:00",1523,420,40,"Kenai River","Sockeye"]]
}`

func TestBuildFishURL(t *testing.T) {
	c := NewFishCountClient(NewFetcher(0), config.FishConfig{
		BaseURL:    "https://example.test/FishCounts/index.cfm",
		LocationID: 40,
		SpeciesID:  420,
	})
	got := c.BuildURL(entities.DateRange{StartYear: 2015, EndYear: 2017})
	assert.Equal(t, "https://example.test/FishCounts/index.cfm?ADFG=export.JSON&countLocationID=40&year=2017,2016,2015&speciesID=420", got)
}

func TestFetchCountsSendsUserAgent(t *testing.T) {
	var query, agent string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.RawQuery
		agent = r.Header.Get("User-Agent")
		io.WriteString(w, fishPayload)
	}))
	defer server.Close()

	c := NewFishCountClient(NewFetcher(0), config.FishConfig{BaseURL: server.URL, LocationID: 40, SpeciesID: 420})
	tbl, err := c.FetchCounts(context.Background(), entities.DateRange{StartYear: 2020, EndYear: 2020})
	require.NoError(t, err)

	assert.Equal(t, config.DefaultUserAgent, agent)
	assert.Equal(t, "ADFG=export.JSON&countLocationID=40&year=2020&speciesID=420", query)
	assert.Equal(t, 1, tbl.Len())
	assert.Equal(t, []string{"2020", "July, 15 2020 00:00:00", "1523", "420", "40", "Kenai River", "Sockeye"}, tbl.Rows[0])
}

func TestFetchCountsPropagatesHTTPFailure(t *testing.T) {
	server := mockServer(http.StatusUnauthorized, "text/plain", "authentication error")
	defer server.Close()

	c := NewFishCountClient(NewFetcher(0), config.FishConfig{BaseURL: server.URL})
	_, err := c.FetchCounts(context.Background(), entities.DateRange{StartYear: 2020, EndYear: 2020})

	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, http.StatusUnauthorized, fetchErr.StatusCode)
	assert.Equal(t, "authentication error", fetchErr.Body)
}

func TestParseFishPayloadSchemaDrift(t *testing.T) {
	cases := map[string]string{
		"missing columns": `{"DATA": [[1]]}`,
		"arity mismatch":  `{"COLUMNS": ["A","B"], "DATA": [[1]]}`,
		"row not array":   `{"COLUMNS": ["A"], "DATA": [1]}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseFishPayload(gjson.Parse(body))
			require.Error(t, err)
			assert.True(t, errors.Is(err, table.ErrSchemaMismatch))
		})
	}
}
