package service

import "github.com/prometheus/client_golang/prometheus"

// Refresh outcomes.
const (
	outcomeFresh      = "fresh"
	outcomeNoMatch    = "no_match"
	outcomeIDConflict = "id_conflict"
	outcomeNoReviews  = "no_reviews"
	outcomeRefreshed  = "refreshed"
	outcomeFailed     = "failed"
)

var refreshTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "revu_review_refresh_total",
		Help: "Review refresh attempts by outcome.",
	},
	[]string{"outcome"},
)

func init() {
	prometheus.MustRegister(refreshTotal)
}
