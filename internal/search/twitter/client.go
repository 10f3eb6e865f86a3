package twitter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Muchai10/safeguardcrawler/internal/metrics"
	"github.com/Muchai10/safeguardcrawler/internal/search"
	"github.com/Muchai10/safeguardcrawler/pkg/circuitbreaker"
	"github.com/Muchai10/safeguardcrawler/pkg/logger"
	"github.com/Muchai10/safeguardcrawler/pkg/retry"
)

const (
	recentSearchPath = "/2/tweets/search/recent"
	// The recent search endpoint rejects max_results outside [10, 100].
	minPageSize = 10
	maxPageSize = 100
)

// errServer marks responses worth retrying.
var errServer = errors.New("twitter server error")

type Client struct {
	bearerToken string
	baseURL     string
	httpClient  *http.Client
	cb          *circuitbreaker.CircuitBreaker
	retryConfig retry.Config
}

func NewClient(bearerToken, baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = "https://api.twitter.com"
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	cb := circuitbreaker.NewCircuitBreaker("twitter", circuitbreaker.Config{
		FailureThreshold: 3,
		Cooldown:         5 * time.Minute,
		OnStateChange:    metrics.ObserveBreaker,
		SuccessThreshold: 1,
		IsFailure: func(err error) bool {
			return !errors.Is(err, search.ErrUnauthorized) && !errors.Is(err, context.Canceled)
		},
		Logger: logger.GetLogger(),
	})

	return &Client{
		bearerToken: bearerToken,
		baseURL:     strings.TrimRight(baseURL, "/"),
		httpClient:  &http.Client{Timeout: timeout},
		cb:          cb,
		retryConfig: retry.Config{
			MaxAttempts:     3,
			InitialDelay:    time.Second,
			MaxDelay:        8 * time.Second,
			Multiplier:      2.0,
			JitterFraction:  0.2,
			RetryableErrors: []error{errServer},
			Logger:          logger.GetLogger(),
		},
	}
}

type tweet struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	AuthorID  string `json:"author_id"`
	CreatedAt string `json:"created_at"`
	Lang      string `json:"lang"`
}

type searchResponse struct {
	Data []tweet `json:"data"`
	Meta struct {
		ResultCount int    `json:"result_count"`
		NextToken   string `json:"next_token"`
	} `json:"meta"`
	Errors []struct {
		Title  string `json:"title"`
		Detail string `json:"detail"`
	} `json:"errors"`
}

func (c *Client) Search(ctx context.Context, query string, maxResults int) ([]search.Post, error) {
	pageSize := min(max(maxResults, minPageSize), maxPageSize)

	params := url.Values{}
	params.Set("query", query)
	params.Set("max_results", strconv.Itoa(pageSize))
	params.Set("tweet.fields", "text,author_id,created_at,lang")

	var resp *searchResponse
	err := c.cb.Execute(ctx, func() error {
		return retry.Do(ctx, c.retryConfig, func() error {
			r, err := c.get(ctx, params)
			if err != nil {
				return err
			}
			resp = r
			return nil
		})
	})
	if err != nil {
		if errors.Is(err, circuitbreaker.ErrCircuitOpen) || errors.Is(err, circuitbreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %v", search.ErrUnavailable, err)
		}
		return nil, err
	}

	posts := make([]search.Post, 0, len(resp.Data))
	for _, tw := range resp.Data {
		posts = append(posts, search.Post{
			ID:        tw.ID,
			Text:      tw.Text,
			AuthorID:  tw.AuthorID,
			CreatedAt: tw.CreatedAt,
			Lang:      tw.Lang,
			URL:       StatusURL(tw.ID),
		})
	}

	// The endpoint's floor is 10; honour smaller requested limits locally.
	if maxResults > 0 && len(posts) > maxResults {
		posts = posts[:maxResults]
	}

	logger.Debug("Twitter search completed",
		zap.String("query", query),
		zap.Int("results", len(posts)),
	)

	return posts, nil
}

// HealthCheck issues the cheapest real query. Any error, including rate
// limiting, means the cycle should not start.
func (c *Client) HealthCheck(ctx context.Context) error {
	if c.bearerToken == "" {
		return fmt.Errorf("%w: TWITTER_BEARER_TOKEN not set", search.ErrNotConfigured)
	}
	_, err := c.Search(ctx, "Kenya", minPageSize)
	return err
}

func (c *Client) get(ctx context.Context, params url.Values) (*searchResponse, error) {
	endpoint := fmt.Sprintf("%s%s?%s", c.baseURL, recentSearchPath, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Authorization", "Bearer "+c.bearerToken)
	req.Header.Set("User-Agent", "safeguard-monitor/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, retry.Permanent(ctx.Err())
		}
		return nil, fmt.Errorf("%w: %v", errServer, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %v", errServer, err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		reset := resp.Header.Get("x-rate-limit-reset")
		return nil, retry.Permanent(fmt.Errorf("%w (reset=%s)", search.ErrRateLimited, reset))
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, retry.Permanent(fmt.Errorf("%w: status %d", search.ErrUnauthorized, resp.StatusCode))
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: status %d", errServer, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, retry.Permanent(fmt.Errorf("search returned status %d: %s", resp.StatusCode, truncate(string(body), 200)))
	}

	var out searchResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, retry.Permanent(fmt.Errorf("failed to parse response: %w", err))
	}
	if len(out.Data) == 0 && len(out.Errors) > 0 {
		return nil, retry.Permanent(fmt.Errorf("search error: %s: %s", out.Errors[0].Title, out.Errors[0].Detail))
	}

	return &out, nil
}

func StatusURL(id string) string {
	return "https://twitter.com/user/status/" + id
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
