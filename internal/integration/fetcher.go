// Package integration handles external service interactions
package integration

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"
)

// maxBodySummary bounds how much of a failed response ends up in an error
const maxBodySummary = 300

// ErrInvalidJSON is returned when a 200 response does not carry JSON
var ErrInvalidJSON = errors.New("response is not valid JSON")

// FetchError describes a failed request: either the transport failed (Err is
// set) or the server answered with a status other than 200.
type FetchError struct {
	URL        string
	StatusCode int
	Body       string
	Err        error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("request to %s failed: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("unexpected status code %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Fetcher performs single GET requests against the upstream services.
// It never retries.
type Fetcher struct {
	client *resty.Client
}

// NewFetcher creates a fetcher. A zero timeout keeps the client default.
func NewFetcher(timeout time.Duration) *Fetcher {
	client := resty.New()
	client.SetRetryCount(0)
	if timeout > 0 {
		client.SetTimeout(timeout)
	}
	return &Fetcher{client: client}
}

// Get fetches url and returns the body of a 200 response
func (f *Fetcher) Get(ctx context.Context, url string, headers map[string]string) ([]byte, error) {
	log.Printf("Sending HTTP request to %s", url)
	resp, err := f.client.R().
		SetContext(ctx).
		SetHeaders(headers).
		Get(url)
	if err != nil {
		log.Printf("Error fetching data: %v", err)
		return nil, &FetchError{URL: url, Err: err}
	}

	if resp.StatusCode() != http.StatusOK {
		log.Printf("Received unexpected status code: %d %s", resp.StatusCode(), resp.Status())
		return nil, &FetchError{
			URL:        url,
			StatusCode: resp.StatusCode(),
			Body:       summarizeBody(resp.Header().Get("Content-Type"), resp.Body()),
		}
	}
	log.Printf("Successfully received HTTP response with status: %s (%d bytes)", resp.Status(), len(resp.Body()))

	return resp.Body(), nil
}

// GetJSON fetches url and parses the body as JSON
func (f *Fetcher) GetJSON(ctx context.Context, url string, headers map[string]string) (gjson.Result, error) {
	body, err := f.Get(ctx, url, headers)
	if err != nil {
		return gjson.Result{}, err
	}
	if !gjson.ValidBytes(body) {
		return gjson.Result{}, fmt.Errorf("%s: %w: %s", url, ErrInvalidJSON, summarizeBody("", body))
	}
	return gjson.ParseBytes(body), nil
}

// summarizeBody turns a response body into a short single-line message.
// HTML pages are reduced to their visible text.
func summarizeBody(contentType string, body []byte) string {
	text := string(body)
	trimmed := bytes.TrimSpace(body)
	if strings.Contains(contentType, "html") || bytes.HasPrefix(trimmed, []byte("<")) {
		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
		if err == nil {
			doc.Find("script, style").Remove()
			text = doc.Find("body").Text()
			if strings.TrimSpace(text) == "" {
				text = doc.Text()
			}
		}
	}

	text = strings.Join(strings.Fields(text), " ")
	if utf8.RuneCountInString(text) > maxBodySummary {
		runes := []rune(text)
		text = string(runes[:maxBodySummary]) + "..."
	}
	return text
}
