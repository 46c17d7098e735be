package integration

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockServer creates a test server that serves a fixed response
func mockServer(status int, contentType, body string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(status)
		io.WriteString(w, body)
	}))
}

func TestGetReturnsBodyOn200(t *testing.T) {
	var gotAgent string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAgent = r.Header.Get("User-Agent")
		io.WriteString(w, `{"ok":true}`)
	}))
	defer server.Close()

	f := NewFetcher(0)
	body, err := f.Get(context.Background(), server.URL, map[string]string{"User-Agent": "test-agent"})
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, string(body))
	assert.Equal(t, "test-agent", gotAgent)
}

func TestGetReportsStatusAndHTMLBody(t *testing.T) {
	server := mockServer(http.StatusForbidden, "text/html", `
<!DOCTYPE html>
<html><head><title>Denied</title><style>p{}</style></head>
<body>
<h1>Authentication   required</h1>
<script>var x=1;</script>
<p>Please sign in.</p>
</body></html>`)
	defer server.Close()

	_, err := NewFetcher(0).Get(context.Background(), server.URL, nil)
	require.Error(t, err)

	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, http.StatusForbidden, fetchErr.StatusCode)
	assert.Equal(t, "Authentication required Please sign in.", fetchErr.Body)
	assert.Contains(t, err.Error(), "403")
}

func TestGetJSONRejectsNonJSON(t *testing.T) {
	server := mockServer(http.StatusOK, "text/html", "<html><body>maintenance</body></html>")
	defer server.Close()

	_, err := NewFetcher(0).GetJSON(context.Background(), server.URL, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidJSON))
	assert.Contains(t, err.Error(), "maintenance")
}

func TestGetHonoursCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := NewFetcher(0).Get(ctx, server.URL, nil)
	require.Error(t, err)
	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.NotNil(t, fetchErr.Err)
}

func TestSummarizeBodyTruncates(t *testing.T) {
	long := strings.Repeat("a", maxBodySummary+50)
	out := summarizeBody("text/plain", []byte(long))
	assert.Equal(t, maxBodySummary+3, len(out))
	assert.True(t, strings.HasSuffix(out, "..."))
}
