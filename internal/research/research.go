// Package research gathers website text and recent news for a company.
// Each source is a short waterfall: the primary provider first, then a
// fallback when the primary fails or returns nothing usable.
package research

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadflow/pkg/firecrawl"
	"github.com/sells-group/leadflow/pkg/jina"
	"github.com/sells-group/leadflow/pkg/perplexity"
)

// ErrUnavailable is returned when no provider is configured.
var ErrUnavailable = eris.New("research: no provider configured")

const (
	defaultMaxRunes = 8000
	defaultMaxNews  = 5
	callTimeout     = 45 * time.Second
	// minContent is the shortest reader output treated as a real page.
	minContent = 200
)

// ContentFetcher returns readable text for a company website.
type ContentFetcher interface {
	FetchText(ctx context.Context, domain string) (string, error)
}

// NewsItem is one search hit about a company.
type NewsItem struct {
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	URL     string `json:"url"`
}

// NewsFetcher returns recent news items for a company.
type NewsFetcher interface {
	Search(ctx context.Context, company string) ([]NewsItem, error)
}

// FormatNews renders items one per line as "title: snippet".
func FormatNews(items []NewsItem) string {
	lines := make([]string, 0, len(items))
	for _, it := range items {
		switch {
		case it.Title != "" && it.Snippet != "":
			lines = append(lines, it.Title+": "+it.Snippet)
		case it.Title != "":
			lines = append(lines, it.Title)
		case it.Snippet != "":
			lines = append(lines, it.Snippet)
		}
	}
	return strings.Join(lines, "\n")
}

// Truncate caps s at max runes.
func Truncate(s string, max int) string {
	if max <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}

// Content reads a site through Jina Reader and falls back to Firecrawl.
// Either client may be nil.
type Content struct {
	reader   jina.Client
	scraper  firecrawl.Client
	maxRunes int
}

// NewContent creates a Content fetcher. maxRunes <= 0 uses 8000.
func NewContent(reader jina.Client, scraper firecrawl.Client, maxRunes int) *Content {
	if maxRunes <= 0 {
		maxRunes = defaultMaxRunes
	}
	return &Content{reader: reader, scraper: scraper, maxRunes: maxRunes}
}

// FetchText returns up to maxRunes of page text for domain.
func (c *Content) FetchText(ctx context.Context, domain string) (string, error) {
	if c.reader == nil && c.scraper == nil {
		return "", ErrUnavailable
	}
	target := "https://" + strings.TrimPrefix(domain, "https://")
	log := zap.L().With(zap.String("component", "research"), zap.String("domain", domain))

	var lastErr error
	if c.reader != nil {
		text, err := c.read(ctx, target)
		if err == nil && len(strings.TrimSpace(text)) >= minContent {
			return Truncate(text, c.maxRunes), nil
		}
		if err != nil {
			log.Debug("research: jina read failed, trying fallback", zap.Error(err))
			lastErr = err
		}
	}
	if c.scraper != nil {
		text, err := c.scrape(ctx, target)
		if err == nil && strings.TrimSpace(text) != "" {
			return Truncate(text, c.maxRunes), nil
		}
		if err != nil {
			lastErr = err
		}
	}
	if lastErr != nil {
		return "", eris.Wrapf(lastErr, "research: fetch %s", domain)
	}
	return "", nil
}

func (c *Content) read(ctx context.Context, target string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()
	resp, err := c.reader.Read(ctx, target)
	if err != nil {
		return "", err
	}
	return resp.Data.Content, nil
}

func (c *Content) scrape(ctx context.Context, target string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()
	resp, err := c.scraper.Scrape(ctx, firecrawl.ScrapeRequest{URL: target, OnlyMainContent: true})
	if err != nil {
		return "", err
	}
	return resp.Data.Markdown, nil
}

// News searches Jina and falls back to Perplexity's cited search results.
// Either client may be nil.
type News struct {
	search   jina.Client
	answers  perplexity.Client
	maxItems int
}

// NewNews creates a News fetcher. maxItems <= 0 uses 5.
func NewNews(search jina.Client, answers perplexity.Client, maxItems int) *News {
	if maxItems <= 0 {
		maxItems = defaultMaxNews
	}
	return &News{search: search, answers: answers, maxItems: maxItems}
}

// Search returns at most maxItems news items about company.
func (n *News) Search(ctx context.Context, company string) ([]NewsItem, error) {
	if n.search == nil && n.answers == nil {
		return nil, ErrUnavailable
	}
	log := zap.L().With(zap.String("component", "research"), zap.String("company", company))

	var lastErr error
	if n.search != nil {
		items, err := n.jinaSearch(ctx, company)
		if err == nil && len(items) > 0 {
			return items, nil
		}
		if err != nil {
			log.Debug("research: jina search failed, trying fallback", zap.Error(err))
			lastErr = err
		}
	}
	if n.answers != nil {
		items, err := n.perplexitySearch(ctx, company)
		if err == nil {
			return items, nil
		}
		lastErr = err
	}
	if lastErr != nil {
		return nil, eris.Wrapf(lastErr, "research: news for %s", company)
	}
	return nil, nil
}

func (n *News) jinaSearch(ctx context.Context, company string) ([]NewsItem, error) {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()
	resp, err := n.search.Search(ctx, fmt.Sprintf("%q news", company))
	if err != nil {
		return nil, err
	}
	items := make([]NewsItem, 0, n.maxItems)
	for _, r := range resp.Data {
		if len(items) == n.maxItems {
			break
		}
		snippet := r.Description
		if snippet == "" {
			snippet = Truncate(strings.TrimSpace(r.Content), 300)
		}
		items = append(items, NewsItem{Title: r.Title, Snippet: snippet, URL: r.URL})
	}
	return items, nil
}

func (n *News) perplexitySearch(ctx context.Context, company string) ([]NewsItem, error) {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()
	resp, err := n.answers.ChatCompletion(ctx, perplexity.ChatCompletionRequest{
		Messages: []perplexity.Message{
			{Role: "system", Content: "Be precise and concise."},
			{Role: "user", Content: fmt.Sprintf("What are the most recent news stories about the company %s?", company)},
		},
	})
	if err != nil {
		return nil, err
	}
	items := make([]NewsItem, 0, n.maxItems)
	for _, r := range resp.SearchResults {
		if len(items) == n.maxItems {
			break
		}
		items = append(items, NewsItem{Title: r.Title, Snippet: r.Snippet, URL: r.URL})
	}
	if len(items) == 0 {
		if text := strings.TrimSpace(resp.Content()); text != "" {
			items = append(items, NewsItem{Title: company, Snippet: Truncate(text, 600)})
		}
	}
	return items, nil
}
