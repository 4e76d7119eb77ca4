package domain

import (
	"time"

	"github.com/google/uuid"
)

// OrderStatus is the fulfillment state reported by the backend.
type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderConfirmed OrderStatus = "confirmed"
	OrderDelivered OrderStatus = "delivered"
	OrderCancelled OrderStatus = "cancelled"
)

// OrderLine is a cart line frozen into an order at checkout.
type OrderLine struct {
	Product  Product `json:"product"`
	Quantity int     `json:"quantity"`
}

// Order is a placed order. Orders are read-mostly on the client; creation
// happens once at checkout hand-off and state changes arrive from the server.
type Order struct {
	ID        uuid.UUID   `json:"orderId"`
	UserID    uuid.UUID   `json:"userId"`
	Lines     []OrderLine `json:"lines"`
	Total     Money       `json:"total"`
	Status    OrderStatus `json:"status"`
	AddressID string      `json:"addressId"`
	CreatedAt time.Time   `json:"createdAt"`
}

// NewOrder is the checkout payload: the cart contents plus a delivery address.
type NewOrder struct {
	Lines     []OrderLine `json:"lines"`
	AddressID string      `json:"addressId"`
}
