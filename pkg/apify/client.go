// Package apify runs Apify actors and reads their datasets.
package apify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadflow/internal/resilience"
)

const defaultBaseURL = "https://api.apify.com/v2"

// Item is one dataset record. Actors emit arbitrary JSON objects.
type Item map[string]any

// Client defines the Apify operations leadflow uses.
type Client interface {
	// RunActor starts actorID with input and waits up to the configured
	// timeout for it to finish.
	RunActor(ctx context.Context, actorID string, input any) (*Run, error)
	DatasetItems(ctx context.Context, datasetID string, limit int) ([]Item, error)
}

// Run is an actor run.
type Run struct {
	ID               string `json:"id"`
	Status           string `json:"status"`
	DefaultDatasetID string `json:"defaultDatasetId"`
}

// Succeeded reports whether the run finished successfully.
func (r *Run) Succeeded() bool {
	return r.Status == "SUCCEEDED"
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the API base URL.
func WithBaseURL(u string) Option {
	return func(c *httpClient) { c.baseURL = u }
}

// WithWait sets how long RunActor waits for the run to finish.
func WithWait(d time.Duration) Option {
	return func(c *httpClient) { c.wait = d }
}

type httpClient struct {
	token   string
	baseURL string
	wait    time.Duration
	http    *http.Client
}

// NewClient creates an Apify client.
func NewClient(token string, opts ...Option) Client {
	c := &httpClient{
		token:   token,
		baseURL: defaultBaseURL,
		wait:    300 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.http = &http.Client{Timeout: c.wait + 30*time.Second}
	return c
}

func (c *httpClient) RunActor(ctx context.Context, actorID string, input any) (*Run, error) {
	buf, err := json.Marshal(input)
	if err != nil {
		return nil, eris.Wrap(err, "apify: marshal input")
	}
	// Actor IDs use "user/name"; the API path wants "user~name".
	path := fmt.Sprintf("/acts/%s/runs?waitForFinish=%d",
		url.PathEscape(strings.ReplaceAll(actorID, "/", "~")), int(c.wait.Seconds()))

	var out struct {
		Data Run `json:"data"`
	}
	if err := c.do(ctx, http.MethodPost, path, bytes.NewReader(buf), &out); err != nil {
		return nil, eris.Wrapf(err, "apify: run actor %s", actorID)
	}
	return &out.Data, nil
}

func (c *httpClient) DatasetItems(ctx context.Context, datasetID string, limit int) ([]Item, error) {
	path := fmt.Sprintf("/datasets/%s/items?format=json&clean=true", url.PathEscape(datasetID))
	if limit > 0 {
		path += fmt.Sprintf("&limit=%d", limit)
	}
	var items []Item
	if err := c.do(ctx, http.MethodGet, path, nil, &items); err != nil {
		return nil, eris.Wrapf(err, "apify: dataset %s items", datasetID)
	}
	return items, nil
}

func (c *httpClient) do(ctx context.Context, method, path string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return eris.Wrap(err, "create request")
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrap(err, "execute request")
	}
	defer resp.Body.Close() //nolint:errcheck

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return eris.Wrap(err, "read response body")
	}
	if err := resilience.CheckResponse("apify", resp, data); err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return eris.Wrap(err, "decode response")
	}
	return nil
}

// Fields flattens an item to the string fields a lead record can use.
// Non-string scalars are formatted; nested values are dropped.
func (it Item) Fields() map[string]string {
	out := make(map[string]string, len(it))
	for k, v := range it {
		switch t := v.(type) {
		case string:
			if s := strings.TrimSpace(t); s != "" {
				out[k] = s
			}
		case float64, bool:
			out[k] = fmt.Sprint(t)
		}
	}
	return out
}
