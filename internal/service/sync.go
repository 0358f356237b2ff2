package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/utafrali/revu/internal/catalog"
	"github.com/utafrali/revu/internal/domain"
	"github.com/utafrali/revu/internal/marketplace"
	"github.com/utafrali/revu/internal/repository"
)

// SyncSource selects which catalog sources a sync run pulls from.
type SyncSource string

const (
	SyncSourceAmazon  SyncSource = "amazon"
	SyncSourceBestBuy SyncSource = "bestbuy"
	SyncSourceAll     SyncSource = "all"
)

// Sync defaults.
const (
	DefaultSyncLimit = 15
	seedSyncLimit    = 10

	// bestBuyMinReviews is the review count a Best Buy product needs to be synced.
	bestBuyMinReviews = 10
	topRatedInReport  = 5
)

// ParseSyncSource validates a --source value.
func ParseSyncSource(s string) (SyncSource, error) {
	switch src := SyncSource(strings.ToLower(strings.TrimSpace(s))); src {
	case SyncSourceAmazon, SyncSourceBestBuy, SyncSourceAll:
		return src, nil
	case "":
		return SyncSourceAmazon, nil
	default:
		return "", fmt.Errorf("unknown sync source %q: want amazon, bestbuy or all", s)
	}
}

type categorySearch struct {
	slug    string
	queries []string
}

// amazonSearches are the Amazon keyword searches that populate each category.
var amazonSearches = []categorySearch{
	{"electronics", []string{
		"best wireless headphones 2025",
		"best laptops 2025",
		"best smartwatch 2025",
		"best bluetooth speaker",
		"best noise cancelling earbuds",
		"best 4k monitor",
		"best mechanical keyboard",
	}},
	{"home-kitchen", []string{
		"best air fryer",
		"best robot vacuum",
		"best instant pot pressure cooker",
		"best coffee maker",
		"best blender",
		"best knife set kitchen",
		"best air purifier home",
	}},
	{"health-wellness", []string{
		"best fitness tracker 2025",
		"best massage gun",
		"best yoga mat",
		"best foam roller",
		"best resistance bands set",
		"best weight scale smart",
		"best meditation cushion",
	}},
	{"sports-outdoors", []string{
		"best running shoes men",
		"best running shoes women",
		"best hiking backpack",
		"best camping tent",
		"best water bottle insulated",
		"best cycling helmet",
		"best adjustable dumbbells",
	}},
	{"beauty-personal-care", []string{
		"best electric toothbrush",
		"best hair dryer",
		"best electric shaver men",
		"best skincare set",
		"best hair straightener",
		"best face moisturizer",
		"best beard trimmer",
	}},
	{"toys-games", []string{
		"best board games adults",
		"best lego sets 2025",
		"best puzzle 1000 piece",
		"best remote control car",
		"best kids tablet",
		"best drone with camera",
		"best card games family",
	}},
	{"fashion-accessories", []string{
		"best mens wallet leather",
		"best sunglasses polarized",
		"best crossbody bag women",
		"best watch men under 100",
		"best backpack laptop",
		"best winter gloves touchscreen",
		"best belt men leather",
	}},
	{"office-supplies", []string{
		"best standing desk",
		"best office chair ergonomic",
		"best monitor stand",
		"best desk lamp",
		"best wireless mouse",
		"best webcam 2025",
		"best desk organizer",
	}},
}

// MarketplaceSearcher searches Amazon listings. *marketplace.Client implements it.
type MarketplaceSearcher interface {
	SearchProducts(ctx context.Context, query string, productID *string) ([]marketplace.Listing, error)
}

// CatalogSearcher lists Best Buy products. *catalog.Client implements it.
type CatalogSearcher interface {
	SearchByCategory(ctx context.Context, categoryID string, page, pageSize, minReviews int) (*catalog.Listing, error)
}

// SyncOptions controls one sync run.
type SyncOptions struct {
	Clean       bool
	Limit       int
	Source      SyncSource
	SeedIfEmpty bool
}

// SyncReport summarises a sync run.
type SyncReport struct {
	SeedSkipped   bool
	Queries       int
	FailedQueries int
	Created       int
	Updated       int
	Skipped       int
	TotalProducts int
	Categories    []domain.Category
	TopRated      []domain.Product
	Usage         map[string]domain.UsageStats
}

// SyncService populates the catalog from Amazon and Best Buy listings.
type SyncService struct {
	products   repository.ProductRepository
	categories repository.CategoryRepository
	resetter   repository.Resetter
	amazon     MarketplaceSearcher
	bestBuy    CatalogSearcher
	listCache  repository.ProductListCache
	usage      *UsageService
	logger     *slog.Logger
}

// NewSyncService creates a new sync service. listCache and usage may be nil.
func NewSyncService(
	products repository.ProductRepository,
	categories repository.CategoryRepository,
	resetter repository.Resetter,
	amazon MarketplaceSearcher,
	bestBuy CatalogSearcher,
	listCache repository.ProductListCache,
	usage *UsageService,
	logger *slog.Logger,
) *SyncService {
	return &SyncService{
		products:   products,
		categories: categories,
		resetter:   resetter,
		amazon:     amazon,
		bestBuy:    bestBuy,
		listCache:  listCache,
		usage:      usage,
		logger:     logger,
	}
}

// Run performs one sync. A failed search is logged and skipped; store
// failures abort the run. Cached product pages are dropped once the
// catalog may have changed, even when the run fails partway.
func (s *SyncService) Run(ctx context.Context, opts SyncOptions) (*SyncReport, error) {
	report := &SyncReport{}

	if opts.SeedIfEmpty {
		n, err := s.products.Count(ctx)
		if err != nil {
			return nil, fmt.Errorf("count products: %w", err)
		}
		if n > 0 {
			s.logger.InfoContext(ctx, "catalog already seeded, skipping sync", slog.Int("products", n))
			report.SeedSkipped = true
			report.TotalProducts = n
			return report, nil
		}
		if opts.Limit <= 0 {
			opts.Limit = seedSyncLimit
		}
	}
	if opts.Limit <= 0 {
		opts.Limit = DefaultSyncLimit
	}
	if opts.Source == "" {
		opts.Source = SyncSourceAmazon
	}

	if opts.Clean {
		if err := s.resetter.ResetAll(ctx); err != nil {
			return nil, fmt.Errorf("reset catalog: %w", err)
		}
		s.logger.InfoContext(ctx, "catalog data cleared")
		s.invalidateListCache(ctx)
	}
	defer s.invalidateListCache(ctx)

	if err := s.categories.EnsureExists(ctx, domain.CanonicalCategories); err != nil {
		return nil, fmt.Errorf("ensure categories: %w", err)
	}

	if opts.Source == SyncSourceAmazon || opts.Source == SyncSourceAll {
		if err := s.syncAmazon(ctx, opts.Limit, report); err != nil {
			return nil, err
		}
	}
	if opts.Source == SyncSourceBestBuy || opts.Source == SyncSourceAll {
		if err := s.syncBestBuy(ctx, opts.Limit, report); err != nil {
			return nil, err
		}
	}

	if err := s.categories.RecountProducts(ctx); err != nil {
		return nil, fmt.Errorf("recount category products: %w", err)
	}

	if err := s.summarise(ctx, report); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "catalog sync complete",
		slog.Int("queries", report.Queries),
		slog.Int("failed_queries", report.FailedQueries),
		slog.Int("created", report.Created),
		slog.Int("updated", report.Updated),
		slog.Int("skipped", report.Skipped),
		slog.Int("total", report.TotalProducts),
	)

	return report, nil
}

// invalidateListCache drops cached product pages. Failures only log: the
// entries expire on their own.
func (s *SyncService) invalidateListCache(ctx context.Context) {
	if s.listCache == nil {
		return
	}
	if err := s.listCache.Invalidate(ctx); err != nil {
		s.logger.WarnContext(ctx, "failed to invalidate product list cache", slog.String("error", err.Error()))
	}
}

func (s *SyncService) syncAmazon(ctx context.Context, limit int, report *SyncReport) error {
	for _, cs := range amazonSearches {
		for _, query := range cs.queries {
			if err := ctx.Err(); err != nil {
				return err
			}
			report.Queries++

			listings, err := s.amazon.SearchProducts(ctx, query, nil)
			if err != nil {
				report.FailedQueries++
				s.logger.WarnContext(ctx, "amazon search failed",
					slog.String("query", query),
					slog.String("error", err.Error()),
				)
				continue
			}
			if len(listings) == 0 {
				s.logger.InfoContext(ctx, "amazon search returned nothing", slog.String("query", query))
				continue
			}
			if len(listings) > limit {
				listings = listings[:limit]
			}

			for _, l := range listings {
				p, ok := amazonProduct(l, cs.slug)
				if !ok {
					if strings.TrimSpace(l.Title) != "" {
						report.Skipped++
					}
					continue
				}
				created, err := s.products.UpsertByASIN(ctx, p)
				if err != nil {
					return fmt.Errorf("upsert amazon product %s: %w", l.ASIN, err)
				}
				report.count(created)
			}
		}
	}
	return nil
}

// amazonProduct converts a search hit into a product. Hits without a title
// or a positive price are rejected.
func amazonProduct(l marketplace.Listing, category string) (*domain.Product, bool) {
	title := strings.TrimSpace(l.Title)
	if l.ASIN == "" || title == "" || l.Price == nil || *l.Price <= 0 {
		return nil, false
	}

	reviewCount := 0
	if l.ReviewCount != nil {
		reviewCount = *l.ReviewCount
	}
	asin := l.ASIN

	return &domain.Product{
		Name:        title,
		Category:    category,
		Price:       decimal.NewFromFloat(*l.Price).Round(2),
		Rating:      catalog.ConvertRating(l.Rating),
		ReviewCount: reviewCount,
		ImageURL:    l.ImageURL,
		SourceURL:   l.Link,
		AmazonASIN:  &asin,
	}, true
}

func (s *SyncService) syncBestBuy(ctx context.Context, limit int, report *SyncReport) error {
	for _, id := range catalog.MappedCategoryIDs() {
		if err := ctx.Err(); err != nil {
			return err
		}
		report.Queries++

		listing, err := s.bestBuy.SearchByCategory(ctx, id, 1, limit, bestBuyMinReviews)
		if err != nil {
			report.FailedQueries++
			s.logger.WarnContext(ctx, "best buy listing failed",
				slog.String("category_id", id),
				slog.String("error", err.Error()),
			)
			continue
		}

		for _, bp := range listing.Products {
			p, ok := bestBuyProduct(bp)
			if !ok {
				report.Skipped++
				continue
			}
			created, err := s.products.UpsertBySKU(ctx, p)
			if err != nil {
				return fmt.Errorf("upsert best buy product %s: %w", *p.BestBuySKU, err)
			}
			report.count(created)
		}
	}
	return nil
}

// bestBuyProduct converts a Best Buy product. Products without a SKU, a name
// or a positive price are rejected.
func bestBuyProduct(bp catalog.Product) (*domain.Product, bool) {
	sku := bp.SKU.String()
	name := strings.TrimSpace(bp.Name)
	price := bp.Price()
	if sku == "" || name == "" || !price.IsPositive() {
		return nil, false
	}

	reviewCount := 0
	if bp.CustomerReviewCount != nil {
		reviewCount = *bp.CustomerReviewCount
	}

	return &domain.Product{
		Name:        name,
		Description: bp.Description(),
		Category:    catalog.MapCategory(bp.CategoryPath),
		Price:       price,
		Rating:      catalog.ConvertRating(bp.CustomerReviewAverage),
		ReviewCount: reviewCount,
		ImageURL:    bp.ImageURL(),
		SourceURL:   bp.URL,
		BestBuySKU:  &sku,
	}, true
}

func (r *SyncReport) count(created bool) {
	if created {
		r.Created++
	} else {
		r.Updated++
	}
}

func (s *SyncService) summarise(ctx context.Context, report *SyncReport) error {
	total, err := s.products.Count(ctx)
	if err != nil {
		return fmt.Errorf("count products: %w", err)
	}
	report.TotalProducts = total

	categories, err := s.categories.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("list categories: %w", err)
	}
	report.Categories = categories

	top, _, err := s.products.List(ctx, repository.ProductFilter{Sort: domain.SortRatingDesc, Limit: topRatedInReport})
	if err != nil {
		return fmt.Errorf("list top rated products: %w", err)
	}
	report.TopRated = top

	if s.usage != nil {
		usage, err := s.usage.Stats(ctx)
		if err != nil {
			s.logger.WarnContext(ctx, "could not read api usage", slog.String("error", err.Error()))
		} else {
			report.Usage = usage
		}
	}
	return nil
}
