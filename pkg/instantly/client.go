// Package instantly is a client for the Instantly v2 outreach API.
package instantly

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/leadflow/internal/resilience"
)

const defaultBaseURL = "https://api.instantly.ai/api/v2"

// Client defines the Instantly operations leadflow uses.
type Client interface {
	AddLeads(ctx context.Context, campaignID string, leads []Lead) (*AddResult, error)
	DeleteLeads(ctx context.Context, emails []string, campaignID string) (int, error)
	ListCampaigns(ctx context.Context) ([]Campaign, error)
	ListLeads(ctx context.Context, campaignID string, q LeadQuery) ([]CampaignLead, error)
}

// Lead is one lead in an upload payload.
type Lead struct {
	Email           string            `json:"email"`
	FirstName       string            `json:"first_name,omitempty"`
	LastName        string            `json:"last_name,omitempty"`
	CompanyName     string            `json:"company_name,omitempty"`
	CustomVariables map[string]string `json:"custom_variables,omitempty"`
}

// AddResult summarizes an upload.
type AddResult struct {
	Uploaded          int `json:"leads_uploaded"`
	AlreadyInCampaign int `json:"already_in_campaign"`
	InvalidEmails     int `json:"invalid_email_count"`
}

// Campaign is an outreach campaign.
type Campaign struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Status int    `json:"status"`
}

// CampaignLead is a lead as the campaign sees it. Status carries the
// human-set interest label such as "Meeting Booked".
type CampaignLead struct {
	Email      string `json:"email"`
	Status     string `json:"status"`
	Replied    bool   `json:"replied"`
	ReplyCount int    `json:"email_reply_count"`
}

// HasReplied reports whether the lead ever answered.
func (l CampaignLead) HasReplied() bool {
	return l.Replied || l.ReplyCount > 0
}

// LeadQuery filters ListLeads.
type LeadQuery struct {
	Status string
	Limit  int
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

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) { c.http = hc }
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates an Instantly client. Retries are left to the caller so
// rate-limit backoff can follow the outreach policy.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
		limiter: rate.NewLimiter(5, 5),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) AddLeads(ctx context.Context, campaignID string, leads []Lead) (*AddResult, error) {
	body := map[string]any{"campaign_id": campaignID, "leads": leads}
	var out AddResult
	if err := c.do(ctx, http.MethodPost, "/leads", body, &out); err != nil {
		return nil, eris.Wrapf(err, "instantly: add %d leads to %s", len(leads), campaignID)
	}
	return &out, nil
}

func (c *httpClient) DeleteLeads(ctx context.Context, emails []string, campaignID string) (int, error) {
	body := map[string]any{"delete_list": emails}
	if campaignID != "" {
		body["campaign_id"] = campaignID
	}
	var out struct {
		Deleted *int `json:"deleted_count"`
	}
	if err := c.do(ctx, http.MethodDelete, "/leads", body, &out); err != nil {
		return 0, eris.Wrapf(err, "instantly: delete %d leads", len(emails))
	}
	if out.Deleted != nil {
		return *out.Deleted, nil
	}
	return len(emails), nil
}

func (c *httpClient) ListCampaigns(ctx context.Context) ([]Campaign, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/campaigns", nil, &raw); err != nil {
		return nil, eris.Wrap(err, "instantly: list campaigns")
	}
	var campaigns []Campaign
	if err := decodeList(raw, &campaigns); err != nil {
		return nil, eris.Wrap(err, "instantly: decode campaigns")
	}
	return campaigns, nil
}

func (c *httpClient) ListLeads(ctx context.Context, campaignID string, q LeadQuery) ([]CampaignLead, error) {
	params := url.Values{"campaign_id": {campaignID}}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Status != "" {
		params.Set("status", q.Status)
	}

	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/leads?"+params.Encode(), nil, &raw); err != nil {
		return nil, eris.Wrapf(err, "instantly: list leads for %s", campaignID)
	}
	var leads []CampaignLead
	if err := decodeList(raw, &leads); err != nil {
		return nil, eris.Wrap(err, "instantly: decode leads")
	}
	return leads, nil
}

// decodeList accepts a bare array or an envelope keyed items or leads.
func decodeList[T any](raw json.RawMessage, out *[]T) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if raw[0] == '[' {
		return json.Unmarshal(raw, out)
	}
	var env struct {
		Items []T `json:"items"`
		Leads []T `json:"leads"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return err
	}
	if env.Items != nil {
		*out = env.Items
	} else {
		*out = env.Leads
	}
	return nil
}

func (c *httpClient) do(ctx context.Context, method, path string, body, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return eris.Wrap(err, "rate limit")
		}
	}

	var rdr io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return eris.Wrap(err, "marshal request")
		}
		rdr = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return eris.Wrap(err, "create request")
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
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
	if err := resilience.CheckResponse("instantly", resp, data); err != nil {
		return err
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return eris.Wrap(err, "decode response")
	}
	return nil
}
