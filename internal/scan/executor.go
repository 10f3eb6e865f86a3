// Package scan runs one pass over the keyword list and turns search hits into
// admitted threat records.
package scan

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Muchai10/safeguardcrawler/internal/metrics"
	"github.com/Muchai10/safeguardcrawler/internal/search"
	"github.com/Muchai10/safeguardcrawler/internal/sentiment"
	"github.com/Muchai10/safeguardcrawler/internal/storage/models"
	"github.com/Muchai10/safeguardcrawler/internal/threat"
	"github.com/Muchai10/safeguardcrawler/pkg/logger"
	"github.com/Muchai10/safeguardcrawler/pkg/utils"
)

const (
	// MinContentLength: shorter posts (after trimming) are skipped unscored.
	MinContentLength = 20
	MaxContentLength = 500
)

type Config struct {
	Scope            search.Scope
	MaxResults       int
	KeywordDelay     time.Duration
	AnonymizeAuthors bool
	AuthorSalt       string
}

type Result struct {
	Records       []models.ThreatRecord
	PostsSeen     int
	Skipped       int
	Discarded     int
	Duplicates    int
	KeywordErrors int
	// Aborted is set when a rate-limit or credential error ended the pass early.
	Aborted bool
}

type Executor struct {
	searcher search.Searcher
	scorer   *threat.Scorer
	cfg      Config
	sleep    func(ctx context.Context, d time.Duration) error
}

func NewExecutor(searcher search.Searcher, scorer *threat.Scorer, cfg Config) *Executor {
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 10
	}
	return &Executor{
		searcher: searcher,
		scorer:   scorer,
		cfg:      cfg,
		sleep:    sleepContext,
	}
}

// RunScan searches each keyword in order, with the configured delay between
// searches. It returns an error only if ctx ends mid-pass; the partial result
// is still returned.
func (e *Executor) RunScan(ctx context.Context, keywords []string) (*Result, error) {
	res := &Result{Records: make([]models.ThreatRecord, 0)}
	seen := make(map[string]struct{})

	for i, keyword := range keywords {
		if i > 0 && e.cfg.KeywordDelay > 0 {
			if err := e.sleep(ctx, e.cfg.KeywordDelay); err != nil {
				return res, err
			}
		}

		posts, err := e.searcher.Search(ctx, e.cfg.Scope.Query(keyword), e.cfg.MaxResults)
		if err != nil {
			res.KeywordErrors++
			metrics.KeywordErrors.WithLabelValues(keyword).Inc()

			if search.IsCycleFatal(err) {
				logger.Warn("Search rejected, ending scan early",
					zap.String("keyword", keyword),
					zap.Int("remaining", len(keywords)-i-1),
					zap.Error(err),
				)
				res.Aborted = true
				break
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return res, err
			}

			logger.Error("Keyword search failed", zap.String("keyword", keyword), zap.Error(err))
			continue
		}

		metrics.PostsFetched.WithLabelValues(keyword).Add(float64(len(posts)))
		res.PostsSeen += len(posts)

		for _, post := range posts {
			e.process(ctx, keyword, post, res, seen)
		}
	}

	logger.Info("Scan pass completed",
		zap.Int("keywords", len(keywords)),
		zap.Int("posts_seen", res.PostsSeen),
		zap.Int("admitted", len(res.Records)),
		zap.Int("skipped", res.Skipped),
		zap.Int("discarded", res.Discarded),
		zap.Int("keyword_errors", res.KeywordErrors),
		zap.Bool("aborted", res.Aborted),
	)

	return res, nil
}

func (e *Executor) process(ctx context.Context, keyword string, post search.Post, res *Result, seen map[string]struct{}) {
	text := strings.TrimSpace(post.Text)
	if utils.RuneLen(text) < MinContentLength {
		res.Skipped++
		metrics.PostsSkipped.WithLabelValues("too_short").Inc()
		return
	}

	if _, dup := seen[post.URL]; dup {
		res.Duplicates++
		metrics.PostsSkipped.WithLabelValues("duplicate").Inc()
		return
	}

	scored := e.scorer.Assess(ctx, text)
	if !scored.Admitted() {
		res.Discarded++
		metrics.PostsSkipped.WithLabelValues("below_threshold").Inc()
		return
	}

	seen[post.URL] = struct{}{}
	metrics.ThreatsAdmitted.WithLabelValues(string(scored.Category)).Inc()

	res.Records = append(res.Records, models.ThreatRecord{
		KeywordSearched: keyword,
		PostURL:         post.URL,
		AuthorHandle:    e.authorHandle(post.AuthorID),
		Content:         utils.TruncateRunes(text, MaxContentLength),
		PostedAt:        parseTimestamp(post.CreatedAt),
		ThreatCategory:  string(scored.Category),
		ThreatLevel:     scored.Level,
		Sentiment:       sentiment.LabelOf(scored.Sentiment),
		SentimentScore:  sentiment.ScoreOf(scored.Sentiment),
	})

	logger.Debug("Threat admitted",
		zap.String("keyword", keyword),
		zap.String("post_url", post.URL),
		zap.Stringer("score", scored),
	)
}

func (e *Executor) authorHandle(authorID string) string {
	if authorID == "" {
		return "user_unknown"
	}
	if e.cfg.AnonymizeAuthors {
		return "user_" + utils.AnonymizeID(authorID, e.cfg.AuthorSalt)
	}
	return "user_" + authorID
}

// parseTimestamp returns nil for anything that is not RFC 3339.
func parseTimestamp(raw string) *time.Time {
	if raw == "" {
		return nil
	}
	ts, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil
	}
	ts = ts.UTC()
	return &ts
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
