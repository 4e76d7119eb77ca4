// Package domain holds the storefront data model shared by the client,
// the stores, and the catalog layer. Types here carry no behavior beyond
// derived values; all mutation goes through the stores.
package domain

import "github.com/google/uuid"

// Category is a top-level catalog grouping.
type Category struct {
	ID   uuid.UUID `json:"categoryId"`
	Name string    `json:"name"`
}

// Product is a catalog entry. Cart lines hold a snapshot of this struct
// captured at add-time; the snapshot price is what the cart displays,
// not necessarily the current catalog price.
type Product struct {
	ID            uuid.UUID `json:"productId"`
	Name          string    `json:"name"`
	Price         Money     `json:"price"`
	CategoryID    uuid.UUID `json:"categoryId"`
	StockQuantity int       `json:"stockQuantity"`
	ImageURL      string    `json:"imageUrl,omitempty"`
}

// ProductFilter narrows a catalog listing. Zero fields are ignored.
type ProductFilter struct {
	CategoryID  uuid.UUID `json:"categoryId,omitempty"`
	MinPrice    string    `json:"minPrice,omitempty"`
	MaxPrice    string    `json:"maxPrice,omitempty"`
	InStockOnly bool      `json:"inStockOnly,omitempty"`
	SortBy      string    `json:"sortBy,omitempty"`
	Search      string    `json:"search,omitempty"`
}

// PriceRange is the min/max price across the catalog, used by filter UIs.
type PriceRange struct {
	Min Money `json:"min"`
	Max Money `json:"max"`
}

// Review is a product review.
type Review struct {
	ID        uuid.UUID `json:"reviewId"`
	ProductID uuid.UUID `json:"productId"`
	UserID    uuid.UUID `json:"userId"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment,omitempty"`
}
