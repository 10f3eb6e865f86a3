package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrRateLimited   = errors.New("search rate limited")
	ErrUnauthorized  = errors.New("search credentials rejected")
	ErrNotConfigured = errors.New("search capability not configured")
	ErrUnavailable   = errors.New("search service unavailable")
)

// Post is one search hit. CreatedAt stays raw; callers decide how to treat
// values they cannot parse.
type Post struct {
	ID        string
	Text      string
	AuthorID  string
	CreatedAt string
	Lang      string
	URL       string
}

type Searcher interface {
	Search(ctx context.Context, query string, maxResults int) ([]Post, error)
}

type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

type Client interface {
	Searcher
	HealthChecker
}

// IsCycleFatal reports errors after which further searches in the same cycle
// are pointless.
func IsCycleFatal(err error) bool {
	return errors.Is(err, ErrRateLimited) || errors.Is(err, ErrUnauthorized) || errors.Is(err, ErrNotConfigured)
}

// Scope restricts a keyword query to a region and language.
type Scope struct {
	RegionTerms []string
	Language    string
}

// Query builds `"kill you" (Kenya OR Nairobi OR Mombasa) -is:retweet lang:en`.
func (s Scope) Query(keyword string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%q", keyword)
	if len(s.RegionTerms) > 0 {
		b.WriteString(" (")
		b.WriteString(strings.Join(s.RegionTerms, " OR "))
		b.WriteString(")")
	}
	b.WriteString(" -is:retweet")
	if s.Language != "" {
		b.WriteString(" lang:")
		b.WriteString(s.Language)
	}
	return b.String()
}

// Unavailable stands in when neither an API token nor a fallback is configured,
// so every cycle fails its pre-flight check instead of the process refusing to start.
type Unavailable struct {
	Reason string
}

func (u Unavailable) Search(ctx context.Context, query string, maxResults int) ([]Post, error) {
	return nil, fmt.Errorf("%w: %s", ErrNotConfigured, u.Reason)
}

func (u Unavailable) HealthCheck(ctx context.Context) error {
	return fmt.Errorf("%w: %s", ErrNotConfigured, u.Reason)
}
