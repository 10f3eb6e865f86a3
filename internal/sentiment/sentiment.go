// Package sentiment wraps the external sentiment model. A nil *Result means the
// signal is absent; callers branch on that, never on a sentinel label.
package sentiment

import (
	"context"
	"errors"
	"math"
	"strings"

	"github.com/Muchai10/safeguardcrawler/pkg/utils"
)

// MaxChars bounds how much of a post is sent to the model.
const MaxChars = 512

// Unavailable is the persisted label when no sentiment could be computed.
const Unavailable = "N/A"

var ErrMalformedResponse = errors.New("malformed sentiment response")

type Result struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

type Analyzer interface {
	Analyze(ctx context.Context, text string) (*Result, error)
}

// Normalize applies the presentation rules: capitalized label, score clamped to
// [0,1] and rounded to 3 decimals.
func Normalize(r Result) Result {
	score := r.Score
	if score < 0 || math.IsNaN(score) {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	return Result{
		Label: utils.Capitalize(strings.TrimSpace(r.Label)),
		Score: math.Round(score*1000) / 1000,
	}
}

// LabelOf and ScoreOf render an optional result for storage.
func LabelOf(r *Result) string {
	if r == nil {
		return Unavailable
	}
	return r.Label
}

func ScoreOf(r *Result) float64 {
	if r == nil {
		return 0
	}
	return r.Score
}
