// Package catalog serves read-mostly catalog data (categories, product
// listings, search) through the TTL cache. Fetches are idempotent and
// side-effect free, so results are memoized per namespace; category lists
// use a longer TTL than per-category product lists, which change more
// often relative to a browsing session.
package catalog

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/quickbasket/storefront-go/cache"
	"github.com/quickbasket/storefront-go/client"
	"github.com/quickbasket/storefront-go/domain"
)

// Cache namespaces. These are shared (not user-scoped): catalog data is
// identical for every session on the device.
const (
	NamespaceCategories = "categories"
	NamespaceProducts   = "products"
	NamespaceProduct    = "product"
	NamespaceSearch     = "search"
	NamespacePriceRange = "price-range"
)

// TTLs configures per-namespace cache windows.
type TTLs struct {
	Categories time.Duration
	Products   time.Duration
	Search     time.Duration
	PriceRange time.Duration
}

// DefaultTTLs returns the default cache windows.
func DefaultTTLs() TTLs {
	return TTLs{
		Categories: 10 * time.Minute,
		Products:   5 * time.Minute,
		Search:     2 * time.Minute,
		PriceRange: 5 * time.Minute,
	}
}

// Service is the cached catalog reader.
type Service struct {
	cache *cache.Cache

	categories         func(context.Context, struct{}) ([]domain.Category, error)
	productsByCategory func(context.Context, uuid.UUID) ([]domain.Product, error)
	product            func(context.Context, uuid.UUID) (domain.Product, error)
	search             func(context.Context, string) ([]domain.Product, error)
	filter             func(context.Context, domain.ProductFilter) ([]domain.Product, error)
	priceRange         func(context.Context, struct{}) (domain.PriceRange, error)
}

// New creates a catalog service over the API client, memoizing through c.
func New(api *client.Client, c *cache.Cache, ttls TTLs) *Service {
	if ttls == (TTLs{}) {
		ttls = DefaultTTLs()
	}

	return &Service{
		cache: c,
		categories: cache.Memoize(c, NamespaceCategories, ttls.Categories,
			func(ctx context.Context, _ struct{}) ([]domain.Category, error) {
				return api.Categories(ctx)
			}),
		productsByCategory: cache.Memoize(c, NamespaceProducts, ttls.Products,
			func(ctx context.Context, categoryID uuid.UUID) ([]domain.Product, error) {
				return api.ProductsByCategory(ctx, categoryID)
			}),
		product: cache.Memoize(c, NamespaceProduct, ttls.Products,
			func(ctx context.Context, productID uuid.UUID) (domain.Product, error) {
				return api.Product(ctx, productID)
			}),
		search: cache.Memoize(c, NamespaceSearch, ttls.Search,
			func(ctx context.Context, query string) ([]domain.Product, error) {
				return api.SearchProducts(ctx, query)
			}),
		filter: cache.Memoize(c, NamespaceSearch, ttls.Search,
			func(ctx context.Context, f domain.ProductFilter) ([]domain.Product, error) {
				return api.FilterProducts(ctx, f)
			}),
		priceRange: cache.Memoize(c, NamespacePriceRange, ttls.PriceRange,
			func(ctx context.Context, _ struct{}) (domain.PriceRange, error) {
				return api.PriceRange(ctx)
			}),
	}
}

// Categories lists all catalog categories.
func (s *Service) Categories(ctx context.Context) ([]domain.Category, error) {
	return s.categories(ctx, struct{}{})
}

// ProductsByCategory lists products within one category.
func (s *Service) ProductsByCategory(ctx context.Context, categoryID uuid.UUID) ([]domain.Product, error) {
	return s.productsByCategory(ctx, categoryID)
}

// Product fetches one product.
func (s *Service) Product(ctx context.Context, productID uuid.UUID) (domain.Product, error) {
	return s.product(ctx, productID)
}

// Search runs a free-text catalog search.
func (s *Service) Search(ctx context.Context, query string) ([]domain.Product, error) {
	return s.search(ctx, query)
}

// Filter lists products matching the filter.
func (s *Service) Filter(ctx context.Context, f domain.ProductFilter) ([]domain.Product, error) {
	return s.filter(ctx, f)
}

// PriceRange fetches the catalog-wide min/max price.
func (s *Service) PriceRange(ctx context.Context) (domain.PriceRange, error) {
	return s.priceRange(ctx, struct{}{})
}

// ClearCache busts every catalog namespace, forcing fresh fetches.
func (s *Service) ClearCache() {
	s.cache.ClearNamespace(NamespaceCategories)
	s.cache.ClearNamespace(NamespaceProducts)
	s.cache.ClearNamespace(NamespaceProduct)
	s.cache.ClearNamespace(NamespaceSearch)
	s.cache.ClearNamespace(NamespacePriceRange)
}
