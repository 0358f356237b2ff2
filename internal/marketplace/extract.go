package marketplace

import (
	"encoding/json"
	"strings"
)

type searchResponse struct {
	OrganicResults []organicResult `json:"organic_results"`
}

type organicResult struct {
	ASIN           string          `json:"asin"`
	Title          string          `json:"title"`
	Price          json.RawMessage `json:"price"`
	ExtractedPrice flexNumber      `json:"extracted_price"`
	Rating         flexNumber      `json:"rating"`
	Reviews        json.RawMessage `json:"reviews"`
	Thumbnail      string          `json:"thumbnail"`
	Link           string          `json:"link"`
}

// reviewCount reads "reviews" as either {"total": n} or a bare number.
func (r organicResult) reviewCount() *int {
	var obj struct {
		Total flexNumber `json:"total"`
	}
	if decodeLenient(r.Reviews, &obj) && obj.Total.Valid {
		n := int(obj.Total.Value)
		return &n
	}
	var bare flexNumber
	if decodeLenient(r.Reviews, &bare) && bare.Valid {
		n := int(bare.Value)
		return &n
	}
	return nil
}

// priceExtractors are tried in order; the first non-nil price wins.
var priceExtractors = []func(organicResult) *float64{
	nestedPrice,
	barePrice,
	func(r organicResult) *float64 { return r.ExtractedPrice.ptr() },
}

func extractPrice(r organicResult) *float64 {
	for _, extract := range priceExtractors {
		if p := extract(r); p != nil {
			return p
		}
	}
	return nil
}

// nestedPrice reads {"price": {"extracted_value": 19.99, "value": "$19.99"}}.
func nestedPrice(r organicResult) *float64 {
	var obj struct {
		ExtractedValue flexNumber `json:"extracted_value"`
		Value          flexNumber `json:"value"`
	}
	if !decodeLenient(r.Price, &obj) {
		return nil
	}
	if p := obj.ExtractedValue.ptr(); p != nil {
		return p
	}
	return obj.Value.ptr()
}

// barePrice reads {"price": 19.99}.
func barePrice(r organicResult) *float64 {
	var n flexNumber
	if !decodeLenient(r.Price, &n) {
		return nil
	}
	return n.ptr()
}

type productResponse struct {
	ReviewsResults     json.RawMessage `json:"reviews_results"`
	TopReviews         json.RawMessage `json:"top_reviews"`
	ReviewsInformation json.RawMessage `json:"reviews_information"`
}

type reviewEntry struct {
	Title  string     `json:"title"`
	Body   string     `json:"body"`
	Text   string     `json:"text"`
	Rating flexNumber `json:"rating"`
	Date   string     `json:"date"`
}

// reviewExtractors locate the review list in the shapes SerpApi returns, in
// priority order. The first non-empty list wins.
var reviewExtractors = []func(productResponse) []reviewEntry{
	// reviews_results.reviews
	func(r productResponse) []reviewEntry {
		var section struct {
			Reviews []reviewEntry `json:"reviews"`
		}
		decodeLenient(r.ReviewsResults, &section)
		return section.Reviews
	},
	// top_reviews
	func(r productResponse) []reviewEntry {
		var list []reviewEntry
		decodeLenient(r.TopReviews, &list)
		return list
	},
	// reviews_information.authors_reviews
	func(r productResponse) []reviewEntry {
		var info struct {
			AuthorsReviews []reviewEntry `json:"authors_reviews"`
		}
		decodeLenient(r.ReviewsInformation, &info)
		return info.AuthorsReviews
	},
}

func extractReviews(r productResponse) []reviewEntry {
	for _, extract := range reviewExtractors {
		if entries := extract(r); len(entries) > 0 {
			return entries
		}
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
