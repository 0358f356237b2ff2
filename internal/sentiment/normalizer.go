// Package sentiment scores review text and extracts short pros and cons,
// using a language model when available and star ratings otherwise.
package sentiment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/utafrali/revu/internal/domain"
	"github.com/utafrali/revu/internal/llm"
	apperrors "github.com/utafrali/revu/pkg/errors"
)

// DefaultBatchSize is the number of reviews classified per model call.
const DefaultBatchSize = 10

const (
	toolName       = "submit_review_analysis"
	batchMaxTokens = 2048
)

// ErrMalformedOutput means the model reply did not match the tool schema or
// did not cover every review of the batch.
var ErrMalformedOutput = errors.New("malformed classifier output")

// Source says where a set of results came from.
type Source string

const (
	SourceAI        Source = "ai"
	SourceHeuristic Source = "heuristic"
)

// Input is a review to classify. ID must be unique within one call.
type Input struct {
	ID         int
	Title      string
	Text       string
	StarRating float64
}

// Result is the classification of one review.
type Result struct {
	ID             int
	SentimentScore float64
	Pros           []string
	Cons           []string
}

// Messenger sends Messages API requests. *llm.Client implements it.
type Messenger interface {
	Configured() bool
	CreateMessage(ctx context.Context, req llm.Request) (*llm.Response, error)
}

// Normalizer classifies reviews in batches.
type Normalizer struct {
	client    Messenger
	batchSize int
	logger    *slog.Logger
}

// NewNormalizer creates a Normalizer. A non-positive batchSize uses DefaultBatchSize.
func NewNormalizer(client Messenger, batchSize int, logger *slog.Logger) *Normalizer {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Normalizer{client: client, batchSize: batchSize, logger: logger}
}

// Normalize classifies inputs with the model, or, if any part of that fails,
// scores every input with Heuristic. Results are in input order and never mix
// the two sources.
func (n *Normalizer) Normalize(ctx context.Context, inputs []Input) ([]Result, Source) {
	results, err := n.Classify(ctx, inputs)
	if err == nil {
		return results, SourceAI
	}

	fallbackTotal.WithLabelValues(fallbackReason(err)).Inc()
	n.logger.WarnContext(ctx, "ai sentiment unavailable, using star ratings for all reviews",
		slog.Int("reviews", len(inputs)),
		slog.String("error", err.Error()),
	)

	results = make([]Result, len(inputs))
	for i, in := range inputs {
		results[i] = Heuristic(in)
	}
	return results, SourceHeuristic
}

// Classify sends inputs to the model in batches and returns one result per
// input, in input order. It fails as a whole if any batch fails; partial
// results are never returned. Without credentials it fails immediately.
func (n *Normalizer) Classify(ctx context.Context, inputs []Input) ([]Result, error) {
	if len(inputs) == 0 {
		return []Result{}, nil
	}
	if !n.client.Configured() {
		return nil, apperrors.NotConfigured(llm.APIName)
	}

	results := make([]Result, 0, len(inputs))
	for start := 0; start < len(inputs); start += n.batchSize {
		end := min(start+n.batchSize, len(inputs))
		batch, err := n.classifyBatch(ctx, inputs[start:end])
		if err != nil {
			return nil, fmt.Errorf("classify reviews %d-%d: %w", start, end, err)
		}
		results = append(results, batch...)
	}

	return results, nil
}

func (n *Normalizer) classifyBatch(ctx context.Context, batch []Input) ([]Result, error) {
	resp, err := n.client.CreateMessage(ctx, llm.Request{
		MaxTokens:  batchMaxTokens,
		System:     systemPrompt,
		Messages:   []llm.Message{{Role: "user", Content: buildPrompt(batch)}},
		Tools:      []llm.Tool{analysisTool},
		ToolChoice: &llm.ToolChoice{Type: "tool", Name: toolName},
	})
	if err != nil {
		return nil, err
	}

	input, ok := resp.ToolInput(toolName)
	if !ok {
		return nil, fmt.Errorf("%w: no %s tool call in response", ErrMalformedOutput, toolName)
	}
	return parseToolInput(input, batch)
}

type toolOutput struct {
	Reviews []struct {
		ID             *int     `json:"id"`
		SentimentScore *float64 `json:"sentiment_score"`
		Pros           []any    `json:"pros"`
		Cons           []any    `json:"cons"`
	} `json:"reviews"`
}

// parseToolInput validates the tool call against batch and returns results
// in batch order. Scores are clamped to [0,1]; pros and cons are trimmed,
// capped and stripped of non-string entries.
func parseToolInput(raw json.RawMessage, batch []Input) ([]Result, error) {
	var out toolOutput
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}

	byID := make(map[int]Result, len(out.Reviews))
	for _, item := range out.Reviews {
		if item.ID == nil || item.SentimentScore == nil {
			return nil, fmt.Errorf("%w: review entry missing id or sentiment_score", ErrMalformedOutput)
		}
		byID[*item.ID] = Result{
			ID:             *item.ID,
			SentimentScore: domain.Clamp(*item.SentimentScore, 0, 1),
			Pros:           domain.NormalizePoints(stringsOnly(item.Pros)),
			Cons:           domain.NormalizePoints(stringsOnly(item.Cons)),
		}
	}

	results := make([]Result, len(batch))
	for i, in := range batch {
		r, ok := byID[in.ID]
		if !ok {
			return nil, fmt.Errorf("%w: no result for review %d", ErrMalformedOutput, in.ID)
		}
		results[i] = r
	}
	return results, nil
}

func stringsOnly(items []any) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		if s, ok := it.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func buildPrompt(batch []Input) string {
	var sb strings.Builder
	sb.WriteString("Analyze the following product reviews:\n\n")
	for _, in := range batch {
		fmt.Fprintf(&sb, "[Review %d] (Star rating: %s/5)\n%s\n\n",
			in.ID, strconv.FormatFloat(in.StarRating, 'f', -1, 64), in.Text)
	}
	return sb.String()
}

func fallbackReason(err error) string {
	switch {
	case errors.Is(err, apperrors.ErrServiceUnavail):
		return "not_configured"
	case errors.Is(err, ErrMalformedOutput):
		return "malformed"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "upstream"
	}
}
