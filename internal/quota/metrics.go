package quota

import "github.com/prometheus/client_golang/prometheus"

var (
	callsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "revu_external_api_calls_total",
			Help: "Successful metered calls to external APIs.",
		},
		[]string{"api", "endpoint"},
	)

	declinedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "revu_external_api_declined_total",
			Help: "Calls skipped because the monthly quota was reached.",
		},
		[]string{"api"},
	)
)

func init() {
	prometheus.MustRegister(callsTotal, declinedTotal)
}
