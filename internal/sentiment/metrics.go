package sentiment

import "github.com/prometheus/client_golang/prometheus"

var fallbackTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "revu_sentiment_fallback_total",
		Help: "Review sets scored from star ratings because AI classification failed.",
	},
	[]string{"reason"},
)

func init() {
	prometheus.MustRegister(fallbackTotal)
}
