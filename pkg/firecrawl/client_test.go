package firecrawl

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadflow/internal/resilience"
)

func TestScrape_Success(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/scrape", r.URL.Path)
		assert.Equal(t, "Bearer fc-key", r.Header.Get("Authorization"))

		var req ScrapeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "https://acme.com", req.URL)
		assert.Equal(t, []string{"markdown"}, req.Formats)
		assert.True(t, req.OnlyMainContent)

		w.Write([]byte(`{"success":true,"data":{"markdown":"# Acme","metadata":{"title":"Acme","statusCode":200}}}`)) //nolint:errcheck
	}))
	defer srv.Close()

	resp, err := NewClient("fc-key", WithBaseURL(srv.URL)).Scrape(context.Background(), ScrapeRequest{
		URL:             "https://acme.com",
		OnlyMainContent: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "# Acme", resp.Data.Markdown)
	assert.Equal(t, "Acme", resp.Data.Metadata.Title)
}

func TestScrape_HTTPError(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		w.Write([]byte(`{"error":"credits"}`)) //nolint:errcheck
	}))
	defer srv.Close()

	_, err := NewClient("k", WithBaseURL(srv.URL)).Scrape(context.Background(), ScrapeRequest{URL: "https://acme.com"})
	require.Error(t, err)
	assert.Equal(t, http.StatusPaymentRequired, resilience.StatusCode(err))
	assert.False(t, resilience.IsTransient(err))
}

func TestScrape_Unsuccessful(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"success":false}`)) //nolint:errcheck
	}))
	defer srv.Close()

	_, err := NewClient("k", WithBaseURL(srv.URL)).Scrape(context.Background(), ScrapeRequest{URL: "https://acme.com"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsuccessful")
}
