package research

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadflow/pkg/firecrawl"
	"github.com/sells-group/leadflow/pkg/jina"
	"github.com/sells-group/leadflow/pkg/perplexity"
)

type mockJina struct{ mock.Mock }

func (m *mockJina) Read(ctx context.Context, url string) (*jina.ReadResponse, error) {
	args := m.Called(ctx, url)
	if v := args.Get(0); v != nil {
		return v.(*jina.ReadResponse), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockJina) Search(ctx context.Context, query string) (*jina.SearchResponse, error) {
	args := m.Called(ctx, query)
	if v := args.Get(0); v != nil {
		return v.(*jina.SearchResponse), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockFirecrawl struct{ mock.Mock }

func (m *mockFirecrawl) Scrape(ctx context.Context, req firecrawl.ScrapeRequest) (*firecrawl.ScrapeResponse, error) {
	args := m.Called(ctx, req)
	if v := args.Get(0); v != nil {
		return v.(*firecrawl.ScrapeResponse), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockPerplexity struct{ mock.Mock }

func (m *mockPerplexity) ChatCompletion(ctx context.Context, req perplexity.ChatCompletionRequest) (*perplexity.ChatCompletionResponse, error) {
	args := m.Called(ctx, req)
	if v := args.Get(0); v != nil {
		return v.(*perplexity.ChatCompletionResponse), args.Error(1)
	}
	return nil, args.Error(1)
}

func page(text string) *jina.ReadResponse {
	return &jina.ReadResponse{Code: 200, Data: jina.ReadData{Content: text}}
}

func TestContent_JinaFirst(t *testing.T) {
	t.Parallel()
	reader := &mockJina{}
	reader.On("Read", mock.Anything, "https://acme.com").Return(page(strings.Repeat("a", 300)), nil)
	scraper := &mockFirecrawl{}

	text, err := NewContent(reader, scraper, 100).FetchText(context.Background(), "acme.com")
	require.NoError(t, err)
	assert.Len(t, text, 100)
	scraper.AssertNotCalled(t, "Scrape", mock.Anything, mock.Anything)
}

func TestContent_FallsBackOnErrorOrThinPage(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		resp *jina.ReadResponse
		err  error
	}{
		{"error", nil, errors.New("jina down")},
		{"thin page", page("Loading..."), nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reader := &mockJina{}
			reader.On("Read", mock.Anything, mock.Anything).Return(tt.resp, tt.err)
			scraper := &mockFirecrawl{}
			scraper.On("Scrape", mock.Anything, firecrawl.ScrapeRequest{URL: "https://acme.com", OnlyMainContent: true}).
				Return(&firecrawl.ScrapeResponse{Success: true, Data: firecrawl.PageData{Markdown: "# Acme"}}, nil)

			text, err := NewContent(reader, scraper, 0).FetchText(context.Background(), "acme.com")
			require.NoError(t, err)
			assert.Equal(t, "# Acme", text)
		})
	}
}

func TestContent_AllFail(t *testing.T) {
	t.Parallel()
	reader := &mockJina{}
	reader.On("Read", mock.Anything, mock.Anything).Return(nil, errors.New("jina down"))
	scraper := &mockFirecrawl{}
	scraper.On("Scrape", mock.Anything, mock.Anything).Return(nil, errors.New("firecrawl down"))

	_, err := NewContent(reader, scraper, 0).FetchText(context.Background(), "acme.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "research: fetch acme.com")
	assert.Contains(t, err.Error(), "firecrawl down")
}

func TestContent_Unavailable(t *testing.T) {
	t.Parallel()
	_, err := NewContent(nil, nil, 0).FetchText(context.Background(), "acme.com")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestNews_JinaCapsItems(t *testing.T) {
	t.Parallel()
	var hits []jina.SearchResult
	for i := 0; i < 8; i++ {
		hits = append(hits, jina.SearchResult{Title: "t", Description: "d"})
	}
	hits[0] = jina.SearchResult{Title: "Raise", Content: "  Series B closed  "}
	search := &mockJina{}
	search.On("Search", mock.Anything, `"Ridge" news`).Return(&jina.SearchResponse{Data: hits}, nil)

	items, err := NewNews(search, nil, 0).Search(context.Background(), "Ridge")
	require.NoError(t, err)
	require.Len(t, items, 5)
	assert.Equal(t, NewsItem{Title: "Raise", Snippet: "Series B closed"}, items[0])
}

func TestNews_PerplexityFallback(t *testing.T) {
	t.Parallel()
	search := &mockJina{}
	search.On("Search", mock.Anything, mock.Anything).Return(&jina.SearchResponse{}, nil)
	answers := &mockPerplexity{}
	answers.On("ChatCompletion", mock.Anything, mock.Anything).Return(&perplexity.ChatCompletionResponse{
		SearchResults: []perplexity.SearchResult{{Title: "Ridge hires CMO", Snippet: "New marketing chief", URL: "https://n"}},
	}, nil)

	items, err := NewNews(search, answers, 3).Search(context.Background(), "Ridge")
	require.NoError(t, err)
	assert.Equal(t, []NewsItem{{Title: "Ridge hires CMO", Snippet: "New marketing chief", URL: "https://n"}}, items)
}

func TestNews_PerplexityContentOnly(t *testing.T) {
	t.Parallel()
	answers := &mockPerplexity{}
	answers.On("ChatCompletion", mock.Anything, mock.Anything).Return(&perplexity.ChatCompletionResponse{
		Choices: []perplexity.Choice{{Message: perplexity.Message{Role: "assistant", Content: "Ridge opened an office."}}},
	}, nil)

	items, err := NewNews(nil, answers, 0).Search(context.Background(), "Ridge")
	require.NoError(t, err)
	assert.Equal(t, []NewsItem{{Title: "Ridge", Snippet: "Ridge opened an office."}}, items)
}

func TestNews_Errors(t *testing.T) {
	t.Parallel()
	_, err := NewNews(nil, nil, 0).Search(context.Background(), "Ridge")
	assert.ErrorIs(t, err, ErrUnavailable)

	search := &mockJina{}
	search.On("Search", mock.Anything, mock.Anything).Return(nil, errors.New("429"))
	_, err = NewNews(search, nil, 0).Search(context.Background(), "Ridge")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "research: news for Ridge")
}

func TestFormatNews(t *testing.T) {
	t.Parallel()
	got := FormatNews([]NewsItem{
		{Title: "A", Snippet: "one"},
		{Title: "B"},
		{Snippet: "three"},
		{},
	})
	assert.Equal(t, "A: one\nB\nthree", got)
}

func TestTruncate(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "héllo", Truncate("héllo", 10))
	assert.Equal(t, "hé", Truncate("héllo", 2))
	assert.Equal(t, "héllo", Truncate("héllo", 0))
}
