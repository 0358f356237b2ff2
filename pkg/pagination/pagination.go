package pagination

import (
	"net/http"
	"strconv"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Params holds pagination parameters extracted from query strings.
type Params struct {
	Page   int
	Limit  int
	Offset int
}

// FromRequest reads ?page and ?limit. Invalid or missing values fall back to
// page 1 and DefaultLimit; limits above MaxLimit are capped.
func FromRequest(r *http.Request) Params {
	q := r.URL.Query()
	page := positiveInt(q.Get("page"), 1)
	limit := positiveInt(q.Get("limit"), DefaultLimit)
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return Params{Page: page, Limit: limit, Offset: (page - 1) * limit}
}

func positiveInt(raw string, def int) int {
	if v, err := strconv.Atoi(raw); err == nil && v > 0 {
		return v
	}
	return def
}

// Meta describes the page returned to the client.
type Meta struct {
	Total int `json:"total"`
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Pages int `json:"pages"`
}

// NewMeta computes page metadata for total matching rows.
func NewMeta(total int, p Params) Meta {
	pages := 0
	if p.Limit > 0 {
		pages = (total + p.Limit - 1) / p.Limit
	}
	return Meta{Total: total, Page: p.Page, Limit: p.Limit, Pages: pages}
}
