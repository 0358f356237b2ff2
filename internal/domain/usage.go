package domain

import "time"

// External APIs whose calls are metered.
const (
	APISerpApi = "serpapi"
	APIBestBuy = "bestbuy"
)

// APIUsage records one successful outbound call. Records are append-only.
// ProductID is advisory and not a foreign key.
type APIUsage struct {
	ID        string    `json:"id"`
	APIName   string    `json:"api_name"`
	Endpoint  string    `json:"endpoint"`
	ProductID *string   `json:"product_id,omitempty"`
	CalledAt  time.Time `json:"called_at"`
}

// UsageStats summarises the current month's consumption of one API.
type UsageStats struct {
	Used      int `json:"used"`
	Limit     int `json:"limit"`
	Remaining int `json:"remaining"`
}

// NewUsageStats computes remaining quota, never negative.
func NewUsageStats(used, limit int) UsageStats {
	return UsageStats{Used: used, Limit: limit, Remaining: max(0, limit-used)}
}

// MonthStart returns midnight UTC on the first day of t's month.
func MonthStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
