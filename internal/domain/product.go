package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product sort orders accepted by the list endpoint.
const (
	SortRatingDesc = "rating_desc"
	SortRatingAsc  = "rating_asc"
	SortPriceAsc   = "price_asc"
	SortPriceDesc  = "price_desc"
	SortNewest     = "newest"
)

// Product is a catalog entry aggregated from Best Buy or Amazon.
// Rating is on the 0-10 display scale and, once any review exists, is always
// derived from the product's reviews.
type Product struct {
	ID               string          `json:"id"`
	Name             string          `json:"name"`
	Description      string          `json:"description"`
	Category         string          `json:"category"`
	Price            decimal.Decimal `json:"price"`
	Rating           float64         `json:"rating"`
	ReviewCount      int             `json:"review_count"`
	ImageURL         string          `json:"image_url"`
	SourceURL        string          `json:"source_url"`
	BestBuySKU       *string         `json:"bestbuy_sku,omitempty"`
	AmazonASIN       *string         `json:"amazon_asin,omitempty"`
	ReviewsFetchedAt *time.Time      `json:"reviews_fetched_at,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// ProductDetail is a product together with every stored review.
type ProductDetail struct {
	Product
	Reviews []Review `json:"reviews"`
}

// NormalizeSort returns s if it is a known sort order, otherwise SortRatingDesc.
func NormalizeSort(s string) string {
	switch s {
	case SortRatingDesc, SortRatingAsc, SortPriceAsc, SortPriceDesc, SortNewest:
		return s
	default:
		return SortRatingDesc
	}
}

// RefreshState is where a product sits in the review cache lifecycle.
type RefreshState int

const (
	// RefreshFresh means reviews were fetched (or attempted) inside the cache window.
	RefreshFresh RefreshState = iota
	// RefreshStaleNoID means the cache expired and no marketplace ID is known yet.
	RefreshStaleNoID
	// RefreshStaleWithID means the cache expired and the marketplace ID is known.
	RefreshStaleWithID
)

func (s RefreshState) String() string {
	switch s {
	case RefreshFresh:
		return "fresh"
	case RefreshStaleNoID:
		return "stale_no_id"
	case RefreshStaleWithID:
		return "stale_with_id"
	default:
		return "unknown"
	}
}

// RefreshStateAt classifies p at now for a cache window of cacheDays days.
// A zero window makes every product stale.
func (p *Product) RefreshStateAt(now time.Time, cacheDays int) RefreshState {
	if p.ReviewsFetchedAt != nil && p.ReviewsFetchedAt.After(now.AddDate(0, 0, -cacheDays)) {
		return RefreshFresh
	}
	if p.AmazonASIN == nil || *p.AmazonASIN == "" {
		return RefreshStaleNoID
	}
	return RefreshStaleWithID
}
