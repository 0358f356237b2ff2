package domain

// DefaultCategorySlug is used when a Best Buy category path has no mapping.
const DefaultCategorySlug = "electronics"

// Category groups products. ProductCount is recomputed by the sync job only.
type Category struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Slug         string `json:"slug"`
	ProductCount int    `json:"product_count"`
}

// CanonicalCategories are the categories the catalog is organised into.
var CanonicalCategories = []Category{
	{Name: "Electronics", Slug: "electronics"},
	{Name: "Home & Kitchen", Slug: "home-kitchen"},
	{Name: "Health & Wellness", Slug: "health-wellness"},
	{Name: "Sports & Outdoors", Slug: "sports-outdoors"},
	{Name: "Beauty & Personal Care", Slug: "beauty-personal-care"},
	{Name: "Toys & Games", Slug: "toys-games"},
	{Name: "Fashion & Accessories", Slug: "fashion-accessories"},
	{Name: "Office Supplies", Slug: "office-supplies"},
}
