// Package airtable provides a minimal client for the Airtable REST API,
// sufficient to read records from a shared view.
package airtable

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
)

// Client defines the Airtable operations used by the connector.
type Client interface {
	// ListRecords returns all records in a table view, following pagination.
	ListRecords(ctx context.Context, baseID, tableID, viewID string) ([]Record, error)
}

// Record is a single Airtable row. Fields is the raw column map; callers
// own the per-base field-name assumptions.
type Record struct {
	ID          string         `json:"id"`
	CreatedTime time.Time      `json:"createdTime"`
	Fields      map[string]any `json:"fields"`
}

type listResponse struct {
	Records []Record `json:"records"`
	Offset  string   `json:"offset"`
}

// Option configures the Airtable client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = u
	}
}

// WithTimeout overrides the default request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *httpClient) {
		c.client.Timeout = d
	}
}

type httpClient struct {
	key     string
	baseURL string
	client  *http.Client
}

// NewClient creates an Airtable client with the given API key.
func NewClient(key string, opts ...Option) Client {
	c := &httpClient{
		key:     key,
		baseURL: "https://api.airtable.com/v0",
		client:  &http.Client{Timeout: 10 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) ListRecords(ctx context.Context, baseID, tableID, viewID string) ([]Record, error) {
	var records []Record
	offset := ""

	for {
		page, next, err := c.listPage(ctx, baseID, tableID, viewID, offset)
		if err != nil {
			return nil, err
		}
		records = append(records, page...)
		if next == "" {
			return records, nil
		}
		offset = next
	}
}

func (c *httpClient) listPage(ctx context.Context, baseID, tableID, viewID, offset string) ([]Record, string, error) {
	endpoint := fmt.Sprintf("%s/%s/%s", c.baseURL, url.PathEscape(baseID), url.PathEscape(tableID))

	q := url.Values{}
	if viewID != "" {
		q.Set("view", viewID)
	}
	if offset != "" {
		q.Set("offset", offset)
	}
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, "", eris.Wrap(err, "airtable: create request")
	}
	req.Header.Set("Authorization", "Bearer "+c.key)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, "", eris.Wrap(err, "airtable: list records")
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4*1024*1024))
	if err != nil {
		return nil, "", eris.Wrap(err, "airtable: read body")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, "", eris.Errorf("airtable: status %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	var parsed listResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, "", eris.Wrap(err, "airtable: parse response")
	}

	return parsed.Records, parsed.Offset, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
