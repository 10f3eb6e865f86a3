package sentiment

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Muchai10/safeguardcrawler/internal/llm"
	"github.com/Muchai10/safeguardcrawler/pkg/utils"
)

type Completer interface {
	Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error)
}

// LLMAnalyzer asks an OpenAI-compatible chat model for a three-way sentiment
// label, mirroring the twitter-xlm-roberta label set.
type LLMAnalyzer struct {
	llm Completer
}

func NewLLMAnalyzer(c Completer) *LLMAnalyzer {
	return &LLMAnalyzer{llm: c}
}

const systemPrompt = `You are a sentiment classifier for short social media posts written in English, Swahili or Sheng.
Classify the overall sentiment of the post as exactly one of: positive, neutral, negative.
Return ONLY a JSON object: {"label": "<positive|neutral|negative>", "score": <confidence between 0 and 1>}`

func (a *LLMAnalyzer) Analyze(ctx context.Context, text string) (*Result, error) {
	text = utils.TruncateRunes(text, MaxChars)

	resp, err := a.llm.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: systemPrompt,
		UserPrompt:   text,
		Temperature:  0,
		MaxTokens:    40,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to classify sentiment: %w", err)
	}

	res, err := parseResult(resp.Content)
	if err != nil {
		return nil, err
	}
	return res, nil
}

func parseResult(content string) (*Result, error) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("%w: %q", ErrMalformedResponse, content)
	}

	var raw Result
	if err := json.Unmarshal([]byte(content[start:end+1]), &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	switch strings.ToLower(strings.TrimSpace(raw.Label)) {
	case "positive", "neutral", "negative":
	default:
		return nil, fmt.Errorf("%w: unknown label %q", ErrMalformedResponse, raw.Label)
	}

	res := Normalize(raw)
	return &res, nil
}
