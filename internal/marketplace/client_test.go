package marketplace

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/revu/internal/quota"
)

type fakeGateway struct {
	calls    []quota.Call
	response string
	err      error
}

func (f *fakeGateway) Request(_ context.Context, call quota.Call) (json.RawMessage, error) {
	f.calls = append(f.calls, call)
	if f.err != nil {
		return nil, f.err
	}
	return json.RawMessage(f.response), nil
}

func newTestClient(gw *fakeGateway) *Client {
	return NewClient(gw, "", slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func floatPtr(f float64) *float64 { return &f }

const searchFixture = `{
  "organic_results": [
    {"asin": "B0NESTED", "title": "Nested", "price": {"value": "$24.99", "extracted_value": 24.99},
     "rating": 4.6, "reviews": {"total": 1520}, "thumbnail": "https://img/1.jpg", "link": "https://amazon.com/dp/B0NESTED"},
    {"title": "No ASIN", "price": 10},
    {"asin": "B0BARE", "title": "Bare", "price": 15.5, "rating": "4.1", "reviews": 88},
    {"asin": "B0EXTRACTED", "title": "Extracted", "extracted_price": 9.99},
    {"asin": "B0STRING", "title": "String value", "price": {"value": "$1,299.00"}},
    {"asin": "B0NONE", "title": "No price", "price": {"raw": "See options"}}
  ]
}`

func TestSearchProducts_ParsesHeterogeneousShapes(t *testing.T) {
	gw := &fakeGateway{response: searchFixture}
	c := newTestClient(gw)
	pid := "p-1"

	listings, err := c.SearchProducts(context.Background(), "wireless headphones", &pid)
	require.NoError(t, err)
	require.Len(t, listings, 5)

	assert.Equal(t, "B0NESTED", listings[0].ASIN)
	assert.Equal(t, 24.99, *listings[0].Price)
	assert.Equal(t, 4.6, *listings[0].Rating)
	assert.Equal(t, 1520, *listings[0].ReviewCount)
	assert.Equal(t, "https://img/1.jpg", listings[0].ImageURL)

	assert.Equal(t, 15.5, *listings[1].Price)
	assert.Equal(t, 4.1, *listings[1].Rating)
	assert.Equal(t, 88, *listings[1].ReviewCount)

	assert.Equal(t, 9.99, *listings[2].Price)
	assert.Nil(t, listings[2].Rating)
	assert.Nil(t, listings[2].ReviewCount)

	assert.Equal(t, 1299.0, *listings[3].Price)
	assert.Nil(t, listings[4].Price)

	require.Len(t, gw.calls, 1)
	call := gw.calls[0]
	assert.Equal(t, EngineSearch, call.Endpoint)
	assert.Equal(t, "search", call.Path)
	assert.Equal(t, "amazon", call.Params.Get("engine"))
	assert.Equal(t, "amazon.com", call.Params.Get("amazon_domain"))
	assert.Equal(t, "wireless headphones", call.Params.Get("k"))
	assert.Equal(t, &pid, call.ProductID)
}

func TestSearchProducts_Declined(t *testing.T) {
	c := newTestClient(&fakeGateway{err: quota.ErrDeclined})

	listings, err := c.SearchProducts(context.Background(), "x", nil)
	require.NoError(t, err)
	assert.Empty(t, listings)
}

func TestSearchProducts_UpstreamError(t *testing.T) {
	c := newTestClient(&fakeGateway{err: errors.New("connection reset")})

	_, err := c.SearchProducts(context.Background(), "x", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "serpapi amazon")
}

func TestResolveCanonicalID(t *testing.T) {
	c := newTestClient(&fakeGateway{response: searchFixture})
	asin, err := c.ResolveCanonicalID(context.Background(), "headphones", nil)
	require.NoError(t, err)
	assert.Equal(t, "B0NESTED", asin)

	c = newTestClient(&fakeGateway{response: `{"organic_results": []}`})
	asin, err = c.ResolveCanonicalID(context.Background(), "nothing", nil)
	require.NoError(t, err)
	assert.Empty(t, asin)

	c = newTestClient(&fakeGateway{err: quota.ErrDeclined})
	asin, err = c.ResolveCanonicalID(context.Background(), "declined", nil)
	require.NoError(t, err)
	assert.Empty(t, asin)
}

func TestFetchReviews_ShapePriority(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     []RawReview
	}{
		{
			name: "reviews_results wins over top_reviews",
			response: `{
				"reviews_results": {"reviews": [{"title": "Great", "body": "Love the sound", "rating": 5, "date": "2025-01-02"}]},
				"top_reviews": [{"title": "ignored", "text": "ignored", "rating": 1}]
			}`,
			want: []RawReview{{Title: "Great", Text: "Love the sound", Rating: 5, Date: "2025-01-02"}},
		},
		{
			name: "empty primary falls back to top_reviews",
			response: `{
				"reviews_results": {"reviews": []},
				"top_reviews": [{"title": "Ok", "text": "Does the job", "rating": 3.0}]
			}`,
			want: []RawReview{{Title: "Ok", Text: "Does the job", Rating: 3}},
		},
		{
			name: "reviews_results of the wrong shape is skipped",
			response: `{
				"reviews_results": [1, 2, 3],
				"reviews_information": {"authors_reviews": [{"title": "Bad", "body": "Broke in a week", "rating": 1}]}
			}`,
			want: []RawReview{{Title: "Bad", Text: "Broke in a week", Rating: 1}},
		},
		{
			name: "missing rating defaults to 3, title-only text is kept",
			response: `{"top_reviews": [
				{"title": "Solid value"},
				{"title": "", "body": "  ", "text": ""},
				{"body": "Fine", "rating": null}
			]}`,
			want: []RawReview{
				{Title: "Solid value", Text: "Solid value", Rating: 3},
				{Text: "Fine", Rating: 3},
			},
		},
		{
			name:     "no reviews anywhere",
			response: `{"product_results": {"title": "x"}}`,
			want:     []RawReview{},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			gw := &fakeGateway{response: tc.response}
			got, err := newTestClient(gw).FetchReviews(context.Background(), "B001", nil)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)

			require.Len(t, gw.calls, 1)
			assert.Equal(t, EngineProduct, gw.calls[0].Endpoint)
			assert.Equal(t, "B001", gw.calls[0].Params.Get("asin"))
		})
	}
}

func TestFetchReviews_Declined(t *testing.T) {
	got, err := newTestClient(&fakeGateway{err: quota.ErrDeclined}).FetchReviews(context.Background(), "B001", nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestConvertSentiment(t *testing.T) {
	tests := []struct {
		in   *float64
		want float64
	}{
		{nil, 0.5},
		{floatPtr(1), 0},
		{floatPtr(2), 0.25},
		{floatPtr(3), 0.5},
		{floatPtr(4), 0.75},
		{floatPtr(5), 1},
		{floatPtr(4.5), 0.88},
		{floatPtr(3.4), 0.6},
		{floatPtr(0), 0.5},
		{floatPtr(-2), 0},
		{floatPtr(7), 1},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, ConvertSentiment(tc.in))
	}
}
