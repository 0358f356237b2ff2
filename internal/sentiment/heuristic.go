package sentiment

import (
	"strings"

	"github.com/utafrali/revu/internal/domain"
	"github.com/utafrali/revu/internal/marketplace"
)

// Score thresholds above and below which the review title becomes a pro or a con.
const (
	positiveThreshold = 0.6
	negativeThreshold = 0.3
)

// Heuristic scores a review from its star rating alone. Clearly positive
// reviews get their title as the single pro, clearly negative ones as the
// single con.
func Heuristic(in Input) Result {
	rating := in.StarRating
	score := marketplace.ConvertSentiment(&rating)

	r := Result{ID: in.ID, SentimentScore: score, Pros: []string{}, Cons: []string{}}
	switch {
	case score > positiveThreshold:
		r.Pros = domain.NormalizePoints([]string{titleOr(in.Title, "Positive review")})
	case score < negativeThreshold:
		r.Cons = domain.NormalizePoints([]string{titleOr(in.Title, "Negative review")})
	}
	return r
}

func titleOr(title, fallback string) string {
	if strings.TrimSpace(title) == "" {
		return fallback
	}
	return title
}
