package scan

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/Muchai10/safeguardcrawler/internal/search"
	"github.com/Muchai10/safeguardcrawler/internal/sentiment"
	"github.com/Muchai10/safeguardcrawler/internal/threat"
)

type fakeSearcher struct {
	byKeyword map[string][]search.Post
	errs      map[string]error
	queries   []string
}

func (f *fakeSearcher) Search(ctx context.Context, query string, maxResults int) ([]search.Post, error) {
	f.queries = append(f.queries, query)
	for kw, err := range f.errs {
		if strings.HasPrefix(query, `"`+kw+`"`) {
			return nil, err
		}
	}
	for kw, posts := range f.byKeyword {
		if strings.HasPrefix(query, `"`+kw+`"`) {
			return posts, nil
		}
	}
	return nil, nil
}

type countingAnalyzer struct {
	calls int
}

func (c *countingAnalyzer) Analyze(ctx context.Context, text string) (*sentiment.Result, error) {
	c.calls++
	return &sentiment.Result{Label: "negative", Score: 0.9}, nil
}

func newTestExecutor(s search.Searcher, a sentiment.Analyzer) (*Executor, *[]time.Duration) {
	var sleeps []time.Duration
	e := NewExecutor(s, threat.NewScorer(threat.DefaultLexicon(), a), Config{
		Scope:        search.Scope{RegionTerms: []string{"Kenya", "Nairobi", "Mombasa"}, Language: "en"},
		MaxResults:   10,
		KeywordDelay: 3 * time.Second,
	})
	e.sleep = func(ctx context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		return nil
	}
	return e, &sleeps
}

func post(id, text string) search.Post {
	return search.Post{
		ID:        id,
		Text:      text,
		AuthorID:  "42",
		CreatedAt: "2024-05-01T10:00:00.000Z",
		URL:       "https://twitter.com/user/status/" + id,
	}
}

func TestShortPostsAreSkippedBeforeScoring(t *testing.T) {
	a := &countingAnalyzer{}
	s := &fakeSearcher{byKeyword: map[string][]search.Post{
		"nitakupiga": {post("1", "   nitakupiga leo   ")},
	}}
	e, _ := newTestExecutor(s, a)

	res, err := e.RunScan(context.Background(), []string{"nitakupiga"})
	if err != nil {
		t.Fatalf("RunScan: %v", err)
	}
	if res.Skipped != 1 || len(res.Records) != 0 {
		t.Fatalf("skipped=%d records=%d", res.Skipped, len(res.Records))
	}
	if a.calls != 0 {
		t.Fatalf("analyzer called %d times for a short post", a.calls)
	}
}

func TestAdmissionAndRecordShape(t *testing.T) {
	long := "I will kill you in Nairobi tomorrow " + strings.Repeat("z", 600)
	s := &fakeSearcher{byKeyword: map[string][]search.Post{
		"kill you": {
			post("1", long),
			post("2", "you are such an idiot honestly"),
			post("3", "lovely weather in town today friends"),
		},
		"attack you": {
			post("1", long),
		},
	}}
	e, _ := newTestExecutor(s, nil)

	res, err := e.RunScan(context.Background(), []string{"kill you", "attack you"})
	if err != nil {
		t.Fatalf("RunScan: %v", err)
	}
	if len(res.Records) != 1 {
		t.Fatalf("records=%d want 1", len(res.Records))
	}
	if res.Discarded != 2 || res.Duplicates != 1 || res.PostsSeen != 4 {
		t.Fatalf("discarded=%d duplicates=%d seen=%d", res.Discarded, res.Duplicates, res.PostsSeen)
	}

	r := res.Records[0]
	if r.KeywordSearched != "kill you" || r.ThreatLevel != 95 || r.ThreatCategory != "high_threat" {
		t.Fatalf("record=%+v", r)
	}
	if n := len([]rune(r.Content)); n != MaxContentLength {
		t.Fatalf("content length=%d want %d", n, MaxContentLength)
	}
	if r.AuthorHandle != "user_42" {
		t.Fatalf("author=%q", r.AuthorHandle)
	}
	if r.Sentiment != "N/A" || r.SentimentScore != 0 {
		t.Fatalf("sentiment=%q/%v", r.Sentiment, r.SentimentScore)
	}
	if r.PostedAt == nil || !r.PostedAt.Equal(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)) {
		t.Fatalf("posted_at=%v", r.PostedAt)
	}
}

func TestUnparseableTimestampBecomesNil(t *testing.T) {
	p := post("9", "nitakuchapa kesho asubuhi sana")
	p.CreatedAt = "yesterday-ish"
	s := &fakeSearcher{byKeyword: map[string][]search.Post{"nitakuchapa": {p}}}
	e, _ := newTestExecutor(s, nil)

	res, err := e.RunScan(context.Background(), []string{"nitakuchapa"})
	if err != nil || len(res.Records) != 1 {
		t.Fatalf("records=%v err=%v", res, err)
	}
	if res.Records[0].PostedAt != nil {
		t.Fatalf("posted_at=%v want nil", res.Records[0].PostedAt)
	}
}

func TestDelayBetweenKeywordsOnly(t *testing.T) {
	s := &fakeSearcher{}
	e, sleeps := newTestExecutor(s, nil)

	if _, err := e.RunScan(context.Background(), []string{"a", "b", "c"}); err != nil {
		t.Fatalf("RunScan: %v", err)
	}
	if len(*sleeps) != 2 {
		t.Fatalf("sleeps=%d want 2", len(*sleeps))
	}
	if len(s.queries) != 3 || s.queries[0] != `"a" (Kenya OR Nairobi OR Mombasa) -is:retweet lang:en` {
		t.Fatalf("queries=%v", s.queries)
	}
}

func TestKeywordErrorContinues(t *testing.T) {
	s := &fakeSearcher{
		errs: map[string]error{"kill you": errors.New("connection reset")},
		byKeyword: map[string][]search.Post{
			"attack you": {post("5", "they will attack you at the market")},
		},
	}
	e, _ := newTestExecutor(s, nil)

	res, err := e.RunScan(context.Background(), []string{"kill you", "attack you"})
	if err != nil {
		t.Fatalf("RunScan: %v", err)
	}
	if res.KeywordErrors != 1 || res.Aborted || len(res.Records) != 1 {
		t.Fatalf("errors=%d aborted=%v records=%d", res.KeywordErrors, res.Aborted, len(res.Records))
	}
}

func TestRateLimitAbortsRemainingKeywords(t *testing.T) {
	s := &fakeSearcher{
		errs: map[string]error{"attack you": search.ErrRateLimited},
		byKeyword: map[string][]search.Post{
			"kill you":    {post("1", "I will kill you tomorrow morning")},
			"nitakuchapa": {post("2", "nitakuchapa kesho asubuhi sana")},
		},
	}
	e, _ := newTestExecutor(s, nil)

	res, err := e.RunScan(context.Background(), []string{"kill you", "attack you", "nitakuchapa"})
	if err != nil {
		t.Fatalf("RunScan: %v", err)
	}
	if !res.Aborted || len(s.queries) != 2 {
		t.Fatalf("aborted=%v queries=%d", res.Aborted, len(s.queries))
	}
	if len(res.Records) != 1 {
		t.Fatalf("records admitted before the abort must be kept, got %d", len(res.Records))
	}
}

func TestAnonymizedAuthor(t *testing.T) {
	s := &fakeSearcher{byKeyword: map[string][]search.Post{
		"kill you": {post("1", "I will kill you tomorrow morning")},
	}}
	e, _ := newTestExecutor(s, nil)
	e.cfg.AnonymizeAuthors = true
	e.cfg.AuthorSalt = "pepper"

	res, err := e.RunScan(context.Background(), []string{"kill you"})
	if err != nil || len(res.Records) != 1 {
		t.Fatalf("records=%v err=%v", res, err)
	}
	h := res.Records[0].AuthorHandle
	if h == "user_42" || !strings.HasPrefix(h, "user_") || len(h) != len("user_")+12 {
		t.Fatalf("author=%q", h)
	}
}
