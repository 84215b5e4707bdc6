package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"marketplace/internal/models"
)

// Record is the denormalized projection of a listing held by the
// external search provider. It is never authoritative; the listings
// table wins on any conflict.
type Record struct {
	ObjectID  string          `json:"objectID"`
	Title     string          `json:"title"`
	Price     int64           `json:"price"`
	Category  string          `json:"category"`
	Location  string          `json:"location"`
	Active    bool            `json:"active"`
	ExpiresAt int64           `json:"expiresAt"`
	CreatedAt int64           `json:"createdAtTimestamp"`
	Facets    json.RawMessage `json:"facets,omitempty"`
}

func RecordFromListing(l models.Listing) Record {
	record := Record{
		ObjectID:  l.ID,
		Title:     l.Title,
		Price:     l.Price,
		Category:  l.Category,
		Location:  l.Location,
		Active:    l.Active,
		ExpiresAt: l.ExpiresAt.Unix(),
		CreatedAt: l.CreatedAt.Unix(),
	}
	if l.Facets != "" {
		record.Facets = json.RawMessage(l.Facets)
	}
	return record
}

// Client is the synchronization sink for listing projections. Every
// method may fail independently of the authoritative store; callers
// treat failures as best-effort.
type Client interface {
	Upsert(ctx context.Context, record Record) error
	Remove(ctx context.Context, listingID string) error
	UpsertMany(ctx context.Context, records []Record) (int, error)
}

// HTTPClient talks to a generic JSON index provider: PUT to upsert a
// document, DELETE to remove one, POST /batch for bulk writes.
type HTTPClient struct {
	baseURL string
	index   string
	httpc   *http.Client
}

func NewHTTPClient(baseURL, index string) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		index:   index,
		httpc:   &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *HTTPClient) Upsert(ctx context.Context, record Record) error {
	body, err := json.Marshal(record)
	if err != nil {
		return err
	}
	url := fmt.Sprintf("%s/indexes/%s/documents/%s", c.baseURL, c.index, record.ObjectID)
	return c.do(ctx, http.MethodPut, url, body)
}

func (c *HTTPClient) Remove(ctx context.Context, listingID string) error {
	url := fmt.Sprintf("%s/indexes/%s/documents/%s", c.baseURL, c.index, listingID)
	return c.do(ctx, http.MethodDelete, url, nil)
}

func (c *HTTPClient) UpsertMany(ctx context.Context, records []Record) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	body, err := json.Marshal(records)
	if err != nil {
		return 0, err
	}
	url := fmt.Sprintf("%s/indexes/%s/documents/batch", c.baseURL, c.index)
	if err := c.do(ctx, http.MethodPost, url, body); err != nil {
		return 0, err
	}
	return len(records), nil
}

func (c *HTTPClient) do(ctx context.Context, method, url string, body []byte) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= 300 {
		return fmt.Errorf("index provider returned %d for %s %s", resp.StatusCode, method, url)
	}
	return nil
}
