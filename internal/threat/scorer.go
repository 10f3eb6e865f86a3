package threat

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/Muchai10/safeguardcrawler/internal/metrics"
	"github.com/Muchai10/safeguardcrawler/internal/sentiment"
	"github.com/Muchai10/safeguardcrawler/pkg/logger"
	"github.com/Muchai10/safeguardcrawler/pkg/utils"
)

const (
	// AdmissionThreshold: only levels strictly above this are persisted.
	AdmissionThreshold = 50

	LocationBoost = 10
	BoostCap      = 95
)

var baseLevels = map[Category]int{
	HighThreat: 85,
	Threat:     65,
	Harassment: 40,
	Neutral:    0,
}

func BaseLevel(c Category) int {
	return baseLevels[c]
}

type Scored struct {
	Sentiment *sentiment.Result
	Category  Category
	Level     int
}

func (s Scored) Admitted() bool {
	return s.Level > AdmissionThreshold
}

// Score is the pure part of scoring: the level comes only from the category
// and the location boost, so a missing signal never lowers it.
func Score(lex Lexicon, text string, signal *sentiment.Result) Scored {
	category := lex.Classify(text)
	level := BaseLevel(category)

	if lex.MentionsLocation(text) {
		level = min(BoostCap, level+LocationBoost)
	}

	return Scored{
		Sentiment: signal,
		Category:  category,
		Level:     level,
	}
}

// Scorer adds the sentiment call in front of Score. A nil analyzer means the
// model is not loaded.
type Scorer struct {
	lexicon  Lexicon
	analyzer sentiment.Analyzer
}

func NewScorer(lex Lexicon, analyzer sentiment.Analyzer) *Scorer {
	return &Scorer{lexicon: lex, analyzer: analyzer}
}

func (s *Scorer) Lexicon() Lexicon {
	return s.lexicon
}

func (s *Scorer) Assess(ctx context.Context, text string) Scored {
	return Score(s.lexicon, text, s.sentimentOf(ctx, text))
}

func (s *Scorer) sentimentOf(ctx context.Context, text string) (res *sentiment.Result) {
	if s.analyzer == nil {
		metrics.SentimentRequests.WithLabelValues("unavailable").Inc()
		return nil
	}

	defer func() {
		if r := recover(); r != nil {
			logger.Error("Sentiment analysis panicked", zap.Any("panic", r))
			metrics.SentimentRequests.WithLabelValues("error").Inc()
			res = nil
		}
	}()

	out, err := s.analyzer.Analyze(ctx, utils.TruncateRunes(text, sentiment.MaxChars))
	if err != nil {
		logger.Warn("Sentiment analysis failed, continuing without it", zap.Error(err))
		metrics.SentimentRequests.WithLabelValues("error").Inc()
		return nil
	}
	if out == nil {
		metrics.SentimentRequests.WithLabelValues("unavailable").Inc()
		return nil
	}

	metrics.SentimentRequests.WithLabelValues("ok").Inc()
	normalized := sentiment.Normalize(*out)
	return &normalized
}

func (s Scored) String() string {
	return fmt.Sprintf("%s/%d sentiment=%s", s.Category, s.Level, sentiment.LabelOf(s.Sentiment))
}
