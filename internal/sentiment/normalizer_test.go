package sentiment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/revu/internal/llm"
	apperrors "github.com/utafrali/revu/pkg/errors"
)

// fakeMessenger answers each CreateMessage call with the next scripted reply.
type fakeMessenger struct {
	configured bool
	replies    []func(req llm.Request) (*llm.Response, error)
	requests   []llm.Request
}

func (f *fakeMessenger) Configured() bool { return f.configured }

func (f *fakeMessenger) CreateMessage(_ context.Context, req llm.Request) (*llm.Response, error) {
	f.requests = append(f.requests, req)
	i := len(f.requests) - 1
	if i >= len(f.replies) {
		return nil, errors.New("unexpected call")
	}
	return f.replies[i](req)
}

func toolReply(body string) func(llm.Request) (*llm.Response, error) {
	return func(llm.Request) (*llm.Response, error) {
		return &llm.Response{Content: []llm.ContentBlock{
			{Type: "tool_use", Name: toolName, Input: json.RawMessage(body)},
		}}, nil
	}
}

// echoReply scores every review in the prompt at 0.9 with one pro.
func echoReply(req llm.Request) (*llm.Response, error) {
	var items []string
	for _, line := range strings.Split(req.Messages[0].Content, "\n") {
		var id int
		if _, err := fmt.Sscanf(line, "[Review %d]", &id); err == nil {
			items = append(items, fmt.Sprintf(`{"id": %d, "sentiment_score": 0.9, "pros": ["AI pro"], "cons": []}`, id))
		}
	}
	return toolReply(`{"reviews": [` + strings.Join(items, ",") + `]}`)(req)
}

func failReply(llm.Request) (*llm.Response, error) {
	return nil, apperrors.Upstream(llm.APIName, errors.New("overloaded"))
}

func makeInputs(n int) []Input {
	inputs := make([]Input, n)
	for i := range inputs {
		inputs[i] = Input{ID: i, Title: fmt.Sprintf("Title %d", i), Text: fmt.Sprintf("Review text %d", i), StarRating: 5}
	}
	return inputs
}

func newTestNormalizer(m *fakeMessenger) *Normalizer {
	return NewNormalizer(m, 10, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestClassify_BatchesOfTen(t *testing.T) {
	m := &fakeMessenger{configured: true, replies: []func(llm.Request) (*llm.Response, error){echoReply, echoReply, echoReply}}
	n := newTestNormalizer(m)

	results, err := n.Classify(context.Background(), makeInputs(25))
	require.NoError(t, err)
	require.Len(t, results, 25)
	require.Len(t, m.requests, 3)

	for i, r := range results {
		assert.Equal(t, i, r.ID)
		assert.Equal(t, 0.9, r.SentimentScore)
		assert.Equal(t, []string{"AI pro"}, r.Pros)
	}

	req := m.requests[0]
	assert.Equal(t, batchMaxTokens, req.MaxTokens)
	assert.Equal(t, systemPrompt, req.System)
	require.Len(t, req.Tools, 1)
	assert.Equal(t, "submit_review_analysis", req.Tools[0].Name)
	assert.Equal(t, &llm.ToolChoice{Type: "tool", Name: "submit_review_analysis"}, req.ToolChoice)
	assert.Contains(t, req.Messages[0].Content, "[Review 0] (Star rating: 5/5)\nReview text 0\n")
	assert.Contains(t, m.requests[2].Messages[0].Content, "[Review 24]")
	assert.NotContains(t, m.requests[2].Messages[0].Content, "[Review 19]")
}

func TestClassify_Empty(t *testing.T) {
	m := &fakeMessenger{configured: false}
	results, err := newTestNormalizer(m).Classify(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Empty(t, m.requests)
}

func TestClassify_NotConfiguredMakesNoCall(t *testing.T) {
	m := &fakeMessenger{configured: false}
	_, err := newTestNormalizer(m).Classify(context.Background(), makeInputs(3))
	assert.ErrorIs(t, err, apperrors.ErrServiceUnavail)
	assert.Empty(t, m.requests)
}

func TestClassify_FailureInMiddleBatchFailsWhole(t *testing.T) {
	m := &fakeMessenger{configured: true, replies: []func(llm.Request) (*llm.Response, error){echoReply, failReply, echoReply}}
	results, err := newTestNormalizer(m).Classify(context.Background(), makeInputs(30))
	require.Error(t, err)
	assert.Nil(t, results)
	assert.Contains(t, err.Error(), "classify reviews 10-20")
	assert.Len(t, m.requests, 2)
}

func TestClassify_MalformedOutputs(t *testing.T) {
	tests := []struct {
		name  string
		reply func(llm.Request) (*llm.Response, error)
	}{
		{"no tool call", func(llm.Request) (*llm.Response, error) {
			return &llm.Response{Content: []llm.ContentBlock{{Type: "text", Text: "I think they are positive."}}}, nil
		}},
		{"wrong tool", func(llm.Request) (*llm.Response, error) {
			return &llm.Response{Content: []llm.ContentBlock{{Type: "tool_use", Name: "other", Input: json.RawMessage(`{}`)}}}, nil
		}},
		{"not an object", toolReply(`[1, 2]`)},
		{"missing review id", toolReply(`{"reviews": [{"id": 0, "sentiment_score": 0.5, "pros": [], "cons": []}]}`)},
		{"missing score", toolReply(`{"reviews": [
			{"id": 0, "pros": [], "cons": []},
			{"id": 1, "sentiment_score": 0.5, "pros": [], "cons": []}]}`)},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			m := &fakeMessenger{configured: true, replies: []func(llm.Request) (*llm.Response, error){tc.reply}}
			_, err := newTestNormalizer(m).Classify(context.Background(), makeInputs(2))
			assert.ErrorIs(t, err, ErrMalformedOutput)
		})
	}
}

func TestClassify_ClampsAndTrims(t *testing.T) {
	long := strings.Repeat("a", 140)
	m := &fakeMessenger{configured: true, replies: []func(llm.Request) (*llm.Response, error){
		toolReply(`{"reviews": [
			{"id": 1, "sentiment_score": -0.4, "pros": [], "cons": ["  loud fan  ", "", 42, "c3", "c4"]},
			{"id": 0, "sentiment_score": 1.7, "pros": ["` + long + `"], "cons": []}
		]}`),
	}}

	results, err := newTestNormalizer(m).Classify(context.Background(), makeInputs(2))
	require.NoError(t, err)

	assert.Equal(t, 0, results[0].ID)
	assert.Equal(t, 1.0, results[0].SentimentScore)
	assert.Equal(t, []string{strings.Repeat("a", 100)}, results[0].Pros)

	assert.Equal(t, 1, results[1].ID)
	assert.Equal(t, 0.0, results[1].SentimentScore)
	assert.Equal(t, []string{"loud fan", "c3", "c4"}, results[1].Cons)
	assert.Equal(t, []string{}, results[1].Pros)
}

func TestNormalize_AllOrNothing(t *testing.T) {
	m := &fakeMessenger{configured: true, replies: []func(llm.Request) (*llm.Response, error){echoReply, failReply, echoReply}}
	inputs := makeInputs(30)
	inputs[3].StarRating = 1
	inputs[3].Title = "Broke"

	before := testutil.ToFloat64(fallbackTotal.WithLabelValues("upstream"))
	results, source := newTestNormalizer(m).Normalize(context.Background(), inputs)

	assert.Equal(t, SourceHeuristic, source)
	require.Len(t, results, 30)
	for i, r := range results {
		assert.NotEqual(t, []string{"AI pro"}, r.Pros, "review %d must not keep AI output", i)
	}
	assert.Equal(t, 1.0, results[0].SentimentScore)
	assert.Equal(t, []string{"Title 0"}, results[0].Pros)
	assert.Equal(t, 0.0, results[3].SentimentScore)
	assert.Equal(t, []string{"Broke"}, results[3].Cons)
	assert.Equal(t, before+1, testutil.ToFloat64(fallbackTotal.WithLabelValues("upstream")))
}

func TestNormalize_AI(t *testing.T) {
	m := &fakeMessenger{configured: true, replies: []func(llm.Request) (*llm.Response, error){echoReply}}
	results, source := newTestNormalizer(m).Normalize(context.Background(), makeInputs(4))
	assert.Equal(t, SourceAI, source)
	assert.Len(t, results, 4)
}

func TestHeuristic(t *testing.T) {
	tests := []struct {
		name string
		in   Input
		want Result
	}{
		{"five stars", Input{ID: 1, Title: "Excellent", StarRating: 5},
			Result{ID: 1, SentimentScore: 1, Pros: []string{"Excellent"}, Cons: []string{}}},
		{"four stars no title", Input{ID: 2, StarRating: 4},
			Result{ID: 2, SentimentScore: 0.75, Pros: []string{"Positive review"}, Cons: []string{}}},
		{"three stars neutral", Input{ID: 3, Title: "Okay", StarRating: 3},
			Result{ID: 3, SentimentScore: 0.5, Pros: []string{}, Cons: []string{}}},
		{"two stars", Input{ID: 4, Title: "Meh", StarRating: 2},
			Result{ID: 4, SentimentScore: 0.25, Pros: []string{}, Cons: []string{"Meh"}}},
		{"one star blank title", Input{ID: 5, Title: "  ", StarRating: 1},
			Result{ID: 5, SentimentScore: 0, Pros: []string{}, Cons: []string{"Negative review"}}},
		{"zero stars is unrated", Input{ID: 6, Title: "Arrived late", StarRating: 0},
			Result{ID: 6, SentimentScore: 0.5, Pros: []string{}, Cons: []string{}}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Heuristic(tc.in))
		})
	}
}

func TestFallbackReason(t *testing.T) {
	assert.Equal(t, "not_configured", fallbackReason(apperrors.NotConfigured("anthropic")))
	assert.Equal(t, "malformed", fallbackReason(fmt.Errorf("batch: %w", ErrMalformedOutput)))
	assert.Equal(t, "timeout", fallbackReason(context.DeadlineExceeded))
	assert.Equal(t, "upstream", fallbackReason(errors.New("boom")))
}
