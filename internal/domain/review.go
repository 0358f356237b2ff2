package domain

import (
	"math"
	"strings"
	"time"
	"unicode/utf8"
)

// ReviewSource tags where a review came from.
type ReviewSource string

const (
	ReviewSourceAmazon  ReviewSource = "amazon"
	ReviewSourceBestBuy ReviewSource = "bestbuy"
)

// Limits on the pros and cons stored with a review.
const (
	MaxReviewPoints     = 3
	MaxReviewPointChars = 100
)

// Review is a single stored review. Sentiment is in [0,1], 1 most positive.
type Review struct {
	ID             string       `json:"id"`
	ProductID      string       `json:"product_id"`
	Source         ReviewSource `json:"source"`
	Text           string       `json:"text"`
	SentimentScore float64      `json:"sentiment_score"`
	Pros           []string     `json:"pros"`
	Cons           []string     `json:"cons"`
	SourceRating   *float64     `json:"source_rating,omitempty"`
	ScrapedAt      time.Time    `json:"scraped_at"`
}

// RecomputeRating derives a product's 0-10 rating from its reviews: the mean
// sentiment scaled by 10 and rounded to one decimal. No reviews rate 0.
func RecomputeRating(reviews []Review) float64 {
	if len(reviews) == 0 {
		return 0
	}
	var sum float64
	for _, r := range reviews {
		sum += r.SentimentScore
	}
	return Round(sum/float64(len(reviews))*10, 1)
}

// NormalizePoints trims each item, drops empty ones, truncates each to
// MaxReviewPointChars runes and keeps at most MaxReviewPoints. It never
// returns nil.
func NormalizePoints(items []string) []string {
	out := make([]string, 0, MaxReviewPoints)
	for _, item := range items {
		if len(out) == MaxReviewPoints {
			break
		}
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		if utf8.RuneCountInString(item) > MaxReviewPointChars {
			item = string([]rune(item)[:MaxReviewPointChars])
		}
		out = append(out, item)
	}
	return out
}

// Round rounds v to the given number of decimal places, half away from zero.
func Round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

// Clamp limits v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
