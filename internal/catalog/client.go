// Package catalog lists products from the Best Buy Products API.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/utafrali/revu/internal/domain"
	"github.com/utafrali/revu/internal/quota"
)

// Usage endpoint labels.
const (
	EndpointCategory = "products_by_category"
	EndpointSearch   = "products_search"
)

// productFields is the Best Buy "show" projection.
var productFields = strings.Join([]string{
	"sku", "name", "shortDescription", "longDescription",
	"salePrice", "regularPrice",
	"customerReviewAverage", "customerReviewCount",
	"image", "largeFrontImage", "thumbnailImage",
	"categoryPath", "url",
}, ",")

// categoryMap maps Best Buy category IDs to revu category slugs.
var categoryMap = map[string]string{
	"abcat0502000":       "electronics",     // Laptops
	"abcat0501000":       "electronics",     // Desktops
	"abcat0204000":       "electronics",     // Headphones
	"abcat0101000":       "electronics",     // TVs
	"pcmcat241600050001": "electronics",     // Cell Phones
	"abcat0904000":       "electronics",     // Cameras
	"abcat0912000":       "electronics",     // Wearable Technology
	"abcat0901000":       "electronics",     // Home Audio
	"pcmcat312300050015": "home-kitchen",    // Small Kitchen Appliances
	"pcmcat242800050021": "health-wellness", // Health & Fitness
}

// Requester performs a metered API call. *quota.Gateway implements it.
type Requester interface {
	Request(ctx context.Context, call quota.Call) (json.RawMessage, error)
}

// CategoryRef is one entry of a product's categoryPath.
type CategoryRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Product is a Best Buy product as returned by the API.
type Product struct {
	SKU                   json.Number   `json:"sku"`
	Name                  string        `json:"name"`
	ShortDescription      string        `json:"shortDescription"`
	LongDescription       string        `json:"longDescription"`
	SalePrice             *float64      `json:"salePrice"`
	RegularPrice          *float64      `json:"regularPrice"`
	CustomerReviewAverage *float64      `json:"customerReviewAverage"`
	CustomerReviewCount   *int          `json:"customerReviewCount"`
	Image                 string        `json:"image"`
	LargeFrontImage       string        `json:"largeFrontImage"`
	ThumbnailImage        string        `json:"thumbnailImage"`
	CategoryPath          []CategoryRef `json:"categoryPath"`
	URL                   string        `json:"url"`
}

// Price returns the sale price, falling back to the regular price.
func (p Product) Price() decimal.Decimal {
	switch {
	case p.SalePrice != nil:
		return decimal.NewFromFloat(*p.SalePrice).Round(2)
	case p.RegularPrice != nil:
		return decimal.NewFromFloat(*p.RegularPrice).Round(2)
	default:
		return decimal.Zero
	}
}

// ImageURL returns the best available image.
func (p Product) ImageURL() string {
	for _, u := range []string{p.Image, p.LargeFrontImage, p.ThumbnailImage} {
		if u != "" {
			return u
		}
	}
	return ""
}

// Description returns the short description, falling back to the long one.
func (p Product) Description() string {
	if p.ShortDescription != "" {
		return p.ShortDescription
	}
	return p.LongDescription
}

// Listing is one page of Best Buy results.
type Listing struct {
	From        int       `json:"from"`
	To          int       `json:"to"`
	Total       int       `json:"total"`
	CurrentPage int       `json:"currentPage"`
	TotalPages  int       `json:"totalPages"`
	Products    []Product `json:"products"`
}

// Client is the Best Buy catalog source adapter.
type Client struct {
	gateway Requester
	logger  *slog.Logger
}

// NewClient creates a catalog client.
func NewClient(gateway Requester, logger *slog.Logger) *Client {
	return &Client{gateway: gateway, logger: logger}
}

// SearchByCategory lists products under a Best Buy category with at least
// minReviews customer reviews, best rated first.
func (c *Client) SearchByCategory(ctx context.Context, categoryID string, page, pageSize, minReviews int) (*Listing, error) {
	path := fmt.Sprintf("products(categoryPath.id=%s&customerReviewCount>=%d)", categoryID, minReviews)
	return c.list(ctx, EndpointCategory, path, page, pageSize)
}

// SearchByKeyword lists products matching query, best rated first.
func (c *Client) SearchByKeyword(ctx context.Context, query string, page, pageSize int) (*Listing, error) {
	path := fmt.Sprintf("products(search=%s)", url.PathEscape(query))
	return c.list(ctx, EndpointSearch, path, page, pageSize)
}

func (c *Client) list(ctx context.Context, endpoint, path string, page, pageSize int) (*Listing, error) {
	data, err := c.gateway.Request(ctx, quota.Call{
		Endpoint: endpoint,
		Path:     path,
		Params: url.Values{
			"format":   {"json"},
			"show":     {productFields},
			"sort":     {"customerReviewAverage.desc"},
			"page":     {strconv.Itoa(page)},
			"pageSize": {strconv.Itoa(pageSize)},
		},
	})
	if err != nil {
		if errors.Is(err, quota.ErrDeclined) {
			return &Listing{Products: []Product{}}, nil
		}
		return nil, fmt.Errorf("bestbuy %s: %w", endpoint, err)
	}

	var listing Listing
	if err := json.Unmarshal(data, &listing); err != nil {
		return nil, fmt.Errorf("decode bestbuy listing: %w", err)
	}
	if listing.Products == nil {
		listing.Products = []Product{}
	}
	return &listing, nil
}

// ConvertRating maps a 0-5 Best Buy review average onto the 0-10 scale.
// A missing or zero rating is 0.
func ConvertRating(rating *float64) float64 {
	if rating == nil || *rating == 0 {
		return 0
	}
	return domain.Round(*rating*2, 1)
}

// MapCategory returns the revu slug for the first categoryPath entry with a
// known ID. Unknown paths fall back to domain.DefaultCategorySlug, which
// misfiles products from unmapped Best Buy categories.
func MapCategory(path []CategoryRef) string {
	for _, c := range path {
		if slug, ok := categoryMap[c.ID]; ok {
			return slug
		}
	}
	return domain.DefaultCategorySlug
}

// MappedCategoryIDs returns every Best Buy category ID with a mapping, sorted.
func MappedCategoryIDs() []string {
	ids := make([]string, 0, len(categoryMap))
	for id := range categoryMap {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
