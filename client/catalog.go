package client

import (
	"context"
	"net/url"

	"github.com/google/uuid"

	"github.com/quickbasket/storefront-go/domain"
)

// Categories lists all catalog categories.
func (c *Client) Categories(ctx context.Context) ([]domain.Category, error) {
	var categories []domain.Category
	if err := c.get(ctx, "/categories", &categories); err != nil {
		return nil, err
	}
	return categories, nil
}

// ProductsByCategory lists products within one category.
func (c *Client) ProductsByCategory(ctx context.Context, categoryID uuid.UUID) ([]domain.Product, error) {
	var products []domain.Product
	if err := c.get(ctx, "/products?categoryId="+categoryID.String(), &products); err != nil {
		return nil, err
	}
	return products, nil
}

// Product fetches one product by ID.
func (c *Client) Product(ctx context.Context, productID uuid.UUID) (domain.Product, error) {
	var product domain.Product
	if err := c.get(ctx, "/products/"+productID.String(), &product); err != nil {
		return domain.Product{}, err
	}
	return product, nil
}

// SearchProducts runs a free-text catalog search.
func (c *Client) SearchProducts(ctx context.Context, query string) ([]domain.Product, error) {
	var products []domain.Product
	if err := c.get(ctx, "/products/search?q="+url.QueryEscape(query), &products); err != nil {
		return nil, err
	}
	return products, nil
}

// FilterProducts lists products matching the filter. Zero filter fields
// are omitted from the query.
func (c *Client) FilterProducts(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error) {
	params := url.Values{}
	if filter.CategoryID != uuid.Nil {
		params.Set("categoryId", filter.CategoryID.String())
	}
	if filter.MinPrice != "" {
		params.Set("minPrice", filter.MinPrice)
	}
	if filter.MaxPrice != "" {
		params.Set("maxPrice", filter.MaxPrice)
	}
	if filter.InStockOnly {
		params.Set("inStockOnly", "true")
	}
	if filter.SortBy != "" {
		params.Set("sortBy", filter.SortBy)
	}
	if filter.Search != "" {
		params.Set("search", filter.Search)
	}

	path := "/products/filter"
	if encoded := params.Encode(); encoded != "" {
		path += "?" + encoded
	}

	var products []domain.Product
	if err := c.get(ctx, path, &products); err != nil {
		return nil, err
	}
	return products, nil
}

// PriceRange fetches the catalog-wide min/max price.
func (c *Client) PriceRange(ctx context.Context) (domain.PriceRange, error) {
	var pr domain.PriceRange
	if err := c.get(ctx, "/products/price-range", &pr); err != nil {
		return domain.PriceRange{}, err
	}
	return pr, nil
}

// ProductReviews lists reviews for a product.
func (c *Client) ProductReviews(ctx context.Context, productID uuid.UUID) ([]domain.Review, error) {
	var reviews []domain.Review
	if err := c.get(ctx, "/products/"+productID.String()+"/reviews", &reviews); err != nil {
		return nil, err
	}
	return reviews, nil
}

// AddReview posts a product review.
func (c *Client) AddReview(ctx context.Context, review domain.Review) (domain.Review, error) {
	var created domain.Review
	if err := c.do(ctx, "POST", "/reviews", review, &created); err != nil {
		return domain.Review{}, err
	}
	return created, nil
}
