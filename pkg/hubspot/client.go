// Package hubspot syncs contacts through the HubSpot CRM v3 API.
package hubspot

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/leadflow/internal/resilience"
)

const defaultBaseURL = "https://api.hubapi.com"

// Client defines the HubSpot contact operations.
type Client interface {
	FindContactByEmail(ctx context.Context, email string) (*Contact, error)
	CreateContact(ctx context.Context, props map[string]string) (*Contact, error)
	UpdateContact(ctx context.Context, id string, props map[string]string) (*Contact, error)
}

// Contact is a HubSpot contact object.
type Contact struct {
	ID         string            `json:"id"`
	Properties map[string]string `json:"properties"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the API base URL.
func WithBaseURL(u string) Option {
	return func(c *httpClient) { c.baseURL = u }
}

// WithRateLimit sets requests per second. Zero disables limiting.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
	}
}

type httpClient struct {
	token   string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates a HubSpot client authenticated with a private app token.
// The default limit stays under HubSpot's 10 requests per second.
func NewClient(token string, opts ...Option) Client {
	c := &httpClient{
		token:   token,
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
		limiter: rate.NewLimiter(9, 9),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) FindContactByEmail(ctx context.Context, email string) (*Contact, error) {
	body := map[string]any{
		"filterGroups": []any{map[string]any{
			"filters": []any{map[string]string{"propertyName": "email", "operator": "EQ", "value": email}},
		}},
		"limit": 1,
	}
	var out struct {
		Results []Contact `json:"results"`
	}
	if err := c.do(ctx, http.MethodPost, "/crm/v3/objects/contacts/search", body, &out); err != nil {
		return nil, eris.Wrapf(err, "hubspot: search contact %s", email)
	}
	if len(out.Results) == 0 {
		return nil, nil
	}
	return &out.Results[0], nil
}

func (c *httpClient) CreateContact(ctx context.Context, props map[string]string) (*Contact, error) {
	var out Contact
	if err := c.do(ctx, http.MethodPost, "/crm/v3/objects/contacts", map[string]any{"properties": props}, &out); err != nil {
		return nil, eris.Wrap(err, "hubspot: create contact")
	}
	return &out, nil
}

func (c *httpClient) UpdateContact(ctx context.Context, id string, props map[string]string) (*Contact, error) {
	var out Contact
	if err := c.do(ctx, http.MethodPatch, "/crm/v3/objects/contacts/"+id, map[string]any{"properties": props}, &out); err != nil {
		return nil, eris.Wrapf(err, "hubspot: update contact %s", id)
	}
	return &out, nil
}

// UpsertContactByEmail updates the contact matching email or creates it,
// returning the contact ID.
func UpsertContactByEmail(ctx context.Context, c Client, email string, props map[string]string) (string, error) {
	if email == "" {
		return "", eris.New("hubspot: contact email is required")
	}
	existing, err := c.FindContactByEmail(ctx, email)
	if err != nil {
		return "", err
	}
	if existing != nil {
		if _, err := c.UpdateContact(ctx, existing.ID, props); err != nil {
			return "", err
		}
		return existing.ID, nil
	}
	created, err := c.CreateContact(ctx, props)
	if err != nil {
		return "", err
	}
	return created.ID, nil
}

func (c *httpClient) do(ctx context.Context, method, path string, body, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return eris.Wrap(err, "rate limit")
		}
	}

	buf, err := json.Marshal(body)
	if err != nil {
		return eris.Wrap(err, "marshal request")
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(buf))
	if err != nil {
		return eris.Wrap(err, "create request")
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrap(err, "execute request")
	}
	defer resp.Body.Close() //nolint:errcheck

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return eris.Wrap(err, "read response body")
	}
	if err := resilience.CheckResponse("hubspot", resp, data); err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return eris.Wrap(err, "decode response")
	}
	return nil
}
