package sentiment

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Muchai10/safeguardcrawler/internal/metrics"
	"github.com/Muchai10/safeguardcrawler/pkg/logger"
	"github.com/Muchai10/safeguardcrawler/pkg/utils"
)

type Cache interface {
	GetSentiment(ctx context.Context, textHash string) (*Result, bool, error)
	SetSentiment(ctx context.Context, textHash string, res *Result, ttl time.Duration) error
}

// CachedAnalyzer memoises results by the hash of the text actually sent to the
// model. Errors are never cached.
type CachedAnalyzer struct {
	next  Analyzer
	cache Cache
	ttl   time.Duration
}

func NewCachedAnalyzer(next Analyzer, cache Cache, ttl time.Duration) *CachedAnalyzer {
	return &CachedAnalyzer{next: next, cache: cache, ttl: ttl}
}

func (c *CachedAnalyzer) Analyze(ctx context.Context, text string) (*Result, error) {
	key := utils.HashString(utils.TruncateRunes(text, MaxChars))

	if res, ok, err := c.cache.GetSentiment(ctx, key); err != nil {
		logger.Warn("Sentiment cache read failed", zap.Error(err))
	} else if ok {
		metrics.SentimentCache.WithLabelValues("hit").Inc()
		return res, nil
	}
	metrics.SentimentCache.WithLabelValues("miss").Inc()

	res, err := c.next.Analyze(ctx, text)
	if err != nil {
		return nil, err
	}

	if err := c.cache.SetSentiment(ctx, key, res, c.ttl); err != nil {
		logger.Warn("Sentiment cache write failed", zap.Error(err))
	}
	return res, nil
}
