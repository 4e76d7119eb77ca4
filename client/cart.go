package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/google/uuid"

	"github.com/quickbasket/storefront-go/domain"
)

// GetCart fetches the authoritative cart for the current session.
func (c *Client) GetCart(ctx context.Context) (domain.Cart, error) {
	var cart domain.Cart
	if err := c.get(ctx, "/cart", &cart); err != nil {
		return domain.Cart{}, err
	}
	return cart, nil
}

// addItemRequest is the add/update payload for cart lines.
type addItemRequest struct {
	ProductID uuid.UUID `json:"productId"`
	Quantity  int       `json:"quantity"`
}

// AddCartItem appends a line to the remote cart and returns it with the
// server-assigned line ID.
func (c *Client) AddCartItem(ctx context.Context, productID uuid.UUID, quantity int) (domain.CartLine, error) {
	if quantity < 1 {
		return domain.CartLine{}, newAPIError(CodeValidation, "quantity must be at least 1", false, nil)
	}

	var line domain.CartLine
	err := c.do(ctx, http.MethodPost, "/cart/items", addItemRequest{ProductID: productID, Quantity: quantity}, &line)
	if err != nil {
		return domain.CartLine{}, err
	}
	return line, nil
}

// UpdateCartItem sets the quantity of an existing remote line.
func (c *Client) UpdateCartItem(ctx context.Context, lineID string, quantity int) (domain.CartLine, error) {
	if quantity < 1 {
		return domain.CartLine{}, newAPIError(CodeValidation, "quantity must be at least 1", false, nil)
	}

	body := map[string]int{"quantity": quantity}
	var line domain.CartLine
	err := c.do(ctx, http.MethodPut, "/cart/items/"+url.PathEscape(lineID), body, &line)
	if err != nil {
		return domain.CartLine{}, err
	}
	return line, nil
}

// RemoveCartItem deletes a remote line.
func (c *Client) RemoveCartItem(ctx context.Context, lineID string) error {
	return c.do(ctx, http.MethodDelete, "/cart/items/"+url.PathEscape(lineID), nil, nil)
}

// ClearCart empties the remote cart in one call.
func (c *Client) ClearCart(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/cart", nil, nil)
}

// Checkout hands the cart off as a new order.
func (c *Client) Checkout(ctx context.Context, order domain.NewOrder) (domain.Order, error) {
	if len(order.Lines) == 0 {
		return domain.Order{}, newAPIError(CodeValidation, "order has no lines", false, nil)
	}
	var placed domain.Order
	if err := c.do(ctx, http.MethodPost, "/orders", order, &placed); err != nil {
		return domain.Order{}, err
	}
	return placed, nil
}

// OrdersByUser lists a user's placed orders.
func (c *Client) OrdersByUser(ctx context.Context, userID uuid.UUID) ([]domain.Order, error) {
	var orders []domain.Order
	if err := c.get(ctx, fmt.Sprintf("/orders?userId=%s", userID), &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// Order fetches one order by ID.
func (c *Client) Order(ctx context.Context, orderID uuid.UUID) (domain.Order, error) {
	var order domain.Order
	if err := c.get(ctx, "/orders/"+orderID.String(), &order); err != nil {
		return domain.Order{}, err
	}
	return order, nil
}
