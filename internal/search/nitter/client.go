// Package nitter searches a Nitter instance by scraping its HTML timeline.
// It is the fallback when no API bearer token is configured.
package nitter

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/Muchai10/safeguardcrawler/internal/search"
	"github.com/Muchai10/safeguardcrawler/internal/search/twitter"
	"github.com/Muchai10/safeguardcrawler/pkg/logger"
)

// Nitter renders dates as "Jan 2, 2006 · 3:04 PM UTC" in the title attribute.
const dateLayout = "Jan 2, 2006 · 3:04 PM MST"

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (c *Client) Search(ctx context.Context, query string, maxResults int) ([]search.Post, error) {
	searchURL := fmt.Sprintf("%s/search?f=tweets&q=%s", c.baseURL, url.QueryEscape(query))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", search.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, search.ErrRateLimited
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: nitter returned status %d", search.ErrUnavailable, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	posts := parseTimeline(doc, maxResults)

	logger.Debug("Nitter search completed",
		zap.String("query", query),
		zap.Int("results", len(posts)),
	)

	return posts, nil
}

func (c *Client) HealthCheck(ctx context.Context) error {
	_, err := c.Search(ctx, "Kenya", 1)
	return err
}

func parseTimeline(doc *goquery.Document, maxResults int) []search.Post {
	posts := make([]search.Post, 0)
	doc.Find("div.timeline-item").EachWithBreak(func(i int, s *goquery.Selection) bool {
		if maxResults > 0 && len(posts) >= maxResults {
			return false
		}

		link, _ := s.Find("a.tweet-link").Attr("href")
		id := statusID(link)
		text := strings.TrimSpace(s.Find("div.tweet-content").Text())
		if id == "" || text == "" {
			return true
		}

		handle := strings.TrimPrefix(strings.TrimSpace(s.Find("a.username").First().Text()), "@")

		var createdAt string
		if title, ok := s.Find("span.tweet-date a").Attr("title"); ok {
			if ts, err := time.Parse(dateLayout, title); err == nil {
				createdAt = ts.UTC().Format(time.RFC3339)
			} else {
				createdAt = title
			}
		}

		posts = append(posts, search.Post{
			ID:        id,
			Text:      text,
			AuthorID:  handle,
			CreatedAt: createdAt,
			URL:       twitter.StatusURL(id),
		})
		return true
	})
	return posts
}

// statusID extracts 123 from "/someone/status/123#m".
func statusID(href string) string {
	idx := strings.Index(href, "/status/")
	if idx < 0 {
		return ""
	}
	id := href[idx+len("/status/"):]
	if cut := strings.IndexAny(id, "#?/"); cut >= 0 {
		id = id[:cut]
	}
	return id
}
