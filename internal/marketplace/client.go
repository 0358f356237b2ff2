// Package marketplace searches Amazon and fetches product reviews through SerpApi.
package marketplace

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/utafrali/revu/internal/domain"
	"github.com/utafrali/revu/internal/quota"
)

// SerpApi engines used by the client. They double as usage endpoint labels.
const (
	EngineSearch  = "amazon"
	EngineProduct = "amazon_product"
)

// defaultStarRating is assumed for reviews that carry no rating.
const defaultStarRating = 3.0

// Requester performs a metered API call. *quota.Gateway implements it.
type Requester interface {
	Request(ctx context.Context, call quota.Call) (json.RawMessage, error)
}

// Listing is one Amazon search result.
type Listing struct {
	ASIN        string
	Title       string
	Price       *float64
	Rating      *float64
	ReviewCount *int
	ImageURL    string
	Link        string
}

// RawReview is a review as scraped, before sentiment scoring.
type RawReview struct {
	Title  string
	Text   string
	Rating float64
	Date   string
}

// Client is the SerpApi review source adapter.
type Client struct {
	gateway      Requester
	amazonDomain string
	logger       *slog.Logger
}

// NewClient creates a marketplace client. amazonDomain defaults to amazon.com.
func NewClient(gateway Requester, amazonDomain string, logger *slog.Logger) *Client {
	if amazonDomain == "" {
		amazonDomain = "amazon.com"
	}
	return &Client{
		gateway:      gateway,
		amazonDomain: amazonDomain,
		logger:       logger,
	}
}

// SearchProducts searches Amazon by keyword. Results without an ASIN are
// dropped. A declined call yields no results and no error.
func (c *Client) SearchProducts(ctx context.Context, query string, productID *string) ([]Listing, error) {
	data, err := c.request(ctx, EngineSearch, url.Values{"k": {query}}, productID)
	if err != nil || data == nil {
		return nil, err
	}

	var resp searchResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("decode amazon search: %w", err)
	}

	listings := make([]Listing, 0, len(resp.OrganicResults))
	for _, r := range resp.OrganicResults {
		if r.ASIN == "" {
			continue
		}
		listings = append(listings, Listing{
			ASIN:        r.ASIN,
			Title:       r.Title,
			Price:       extractPrice(r),
			Rating:      r.Rating.ptr(),
			ReviewCount: r.reviewCount(),
			ImageURL:    r.Thumbnail,
			Link:        r.Link,
		})
	}

	return listings, nil
}

// ResolveCanonicalID returns the ASIN of the top search hit for productName,
// or "" when there are no results or the call was declined.
func (c *Client) ResolveCanonicalID(ctx context.Context, productName string, productID *string) (string, error) {
	listings, err := c.SearchProducts(ctx, productName, productID)
	if err != nil {
		return "", err
	}
	if len(listings) == 0 {
		return "", nil
	}
	return listings[0].ASIN, nil
}

// FetchReviews returns the reviews SerpApi exposes for asin. Reviews with
// no title and no body are dropped. A declined call yields no reviews.
func (c *Client) FetchReviews(ctx context.Context, asin string, productID *string) ([]RawReview, error) {
	data, err := c.request(ctx, EngineProduct, url.Values{"asin": {asin}}, productID)
	if err != nil || data == nil {
		return nil, err
	}

	var resp productResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("decode amazon product: %w", err)
	}

	entries := extractReviews(resp)
	reviews := make([]RawReview, 0, len(entries))
	for _, e := range entries {
		text := firstNonEmpty(e.Body, e.Text, e.Title)
		if text == "" {
			continue
		}
		rating := defaultStarRating
		if e.Rating.Valid {
			rating = e.Rating.Value
		}
		reviews = append(reviews, RawReview{
			Title:  e.Title,
			Text:   text,
			Rating: rating,
			Date:   e.Date,
		})
	}

	return reviews, nil
}

func (c *Client) request(ctx context.Context, engine string, params url.Values, productID *string) (json.RawMessage, error) {
	params.Set("engine", engine)
	params.Set("amazon_domain", c.amazonDomain)

	data, err := c.gateway.Request(ctx, quota.Call{
		Endpoint:  engine,
		Path:      "search",
		Params:    params,
		ProductID: productID,
	})
	if err != nil {
		if errors.Is(err, quota.ErrDeclined) {
			return nil, nil
		}
		return nil, fmt.Errorf("serpapi %s: %w", engine, err)
	}
	return data, nil
}

// ConvertSentiment maps a 1-5 star rating onto a 0-1 sentiment score. A
// missing or zero rating is neutral (0.5); others are clamped to [1,5] first.
func ConvertSentiment(starRating *float64) float64 {
	if starRating == nil || *starRating == 0 {
		return 0.5
	}
	r := domain.Clamp(*starRating, 1, 5)
	return domain.Round((r-1)/4, 2)
}
