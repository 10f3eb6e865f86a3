package threat

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/Muchai10/safeguardcrawler/internal/sentiment"
)

func TestClassifyPriority(t *testing.T) {
	lex := DefaultLexicon()
	tests := []struct {
		in   string
		want Category
	}{
		{"", Neutral},
		{"lovely weather in the city today", Neutral},
		{"you are so STUPID", Harassment},
		{"nitakuchapa kesho", Threat},
		{"I will hurt you, idiot", Threat},
		{"I will KILL you, idiot, and beat you", HighThreat},
		{"wataka shambulio", HighThreat},
		{"matusi tu", Harassment},
	}
	for _, tt := range tests {
		if got := lex.Classify(tt.in); got != tt.want {
			t.Fatalf("Classify(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestClassifyHighTierAlwaysWins(t *testing.T) {
	lex := DefaultLexicon()
	lower := append(append([]string{}, lex.Medium...), lex.Low...)
	for _, high := range lex.High {
		for _, other := range lower {
			text := other + " and " + strings.ToUpper(high)
			if got := lex.Classify(text); got != HighThreat {
				t.Fatalf("Classify(%q) = %q, want high_threat", text, got)
			}
		}
	}
}

func TestScoreLevels(t *testing.T) {
	lex := DefaultLexicon()
	tests := []struct {
		in       string
		category Category
		level    int
	}{
		{"I will kill you in Nairobi tomorrow", HighThreat, 95},
		{"I will kill you tomorrow", HighThreat, 85},
		{"nitakuchapa kesho", Threat, 65},
		{"nitakuchapa kesho huko Kibera", Threat, 75},
		{"you idiot", Harassment, 40},
		{"you idiot from mombasa", Harassment, 50},
		{"hello from kisumu", Neutral, 10},
		{"hello there", Neutral, 0},
	}
	for _, tt := range tests {
		got := Score(lex, tt.in, nil)
		if got.Category != tt.category || got.Level != tt.level {
			t.Fatalf("Score(%q) = %s/%d, want %s/%d", tt.in, got.Category, got.Level, tt.category, tt.level)
		}
	}
}

func TestScoreLevelIsAlwaysBaseOrBoosted(t *testing.T) {
	lex := DefaultLexicon()
	allowed := map[int]bool{}
	for _, base := range baseLevels {
		allowed[base] = true
		allowed[min(BoostCap, base+LocationBoost)] = true
	}

	words := append(append(append([]string{"hello", "Nakuru", "MATHARE"}, lex.High...), lex.Medium...), lex.Low...)
	for _, a := range words {
		for _, b := range words {
			got := Score(lex, a+" "+b, nil)
			if !allowed[got.Level] {
				t.Fatalf("Score(%q) level %d not in allowed set", a+" "+b, got.Level)
			}
			if got.Level > BoostCap {
				t.Fatalf("level %d exceeds cap", got.Level)
			}
		}
	}
}

type stubAnalyzer struct {
	res   *sentiment.Result
	err   error
	panic bool
	seen  string
}

func (s *stubAnalyzer) Analyze(ctx context.Context, text string) (*sentiment.Result, error) {
	s.seen = text
	if s.panic {
		panic("model crashed")
	}
	return s.res, s.err
}

func TestAssessWithoutAnalyzer(t *testing.T) {
	s := NewScorer(DefaultLexicon(), nil)
	got := s.Assess(context.Background(), "nitakuchapa kesho")
	if got.Sentiment != nil {
		t.Fatalf("sentiment=%v want nil", got.Sentiment)
	}
	if got.Category != Threat || got.Level != 65 || !got.Admitted() {
		t.Fatalf("got %s", got)
	}
	if sentiment.LabelOf(got.Sentiment) != "N/A" || sentiment.ScoreOf(got.Sentiment) != 0 {
		t.Fatalf("absent sentiment should persist as N/A / 0")
	}
}

func TestAssessDegradesOnAnalyzerFailure(t *testing.T) {
	tests := []struct {
		text         string
		wantCategory Category
		wantLevel    int
	}{
		{"I will kill you in Nairobi tomorrow", HighThreat, 95},
		{"nitakuchapa kesho asubuhi", Threat, 65},
	}
	for _, tt := range tests {
		for _, a := range []*stubAnalyzer{
			{err: errors.New("timeout")},
			{panic: true},
		} {
			s := NewScorer(DefaultLexicon(), a)
			got := s.Assess(context.Background(), tt.text)
			if got.Sentiment != nil {
				t.Fatalf("%q: sentiment=%v want nil", tt.text, got.Sentiment)
			}
			if got.Category != tt.wantCategory || got.Level != tt.wantLevel {
				t.Fatalf("%q: threat detection suppressed: %s", tt.text, got)
			}
			if sentiment.LabelOf(got.Sentiment) != "N/A" {
				t.Fatalf("%q: label=%q want N/A", tt.text, sentiment.LabelOf(got.Sentiment))
			}
		}
	}
}

func TestAssessNormalizesAndTruncates(t *testing.T) {
	a := &stubAnalyzer{res: &sentiment.Result{Label: "negative", Score: 0.91234}}
	s := NewScorer(DefaultLexicon(), a)

	text := "I will kill you " + strings.Repeat("x", 1000)
	got := s.Assess(context.Background(), text)
	if got.Sentiment == nil || got.Sentiment.Label != "Negative" || got.Sentiment.Score != 0.912 {
		t.Fatalf("sentiment=%+v", got.Sentiment)
	}
	if n := utf8.RuneCountInString(a.seen); n != sentiment.MaxChars {
		t.Fatalf("analyzer saw %d chars, want %d", n, sentiment.MaxChars)
	}
}
