package client

import (
	"context"
	"net/http"
	"net/url"

	"github.com/google/uuid"

	"github.com/quickbasket/storefront-go/domain"
)

// Profile fetches the current user's profile.
func (c *Client) Profile(ctx context.Context) (domain.User, error) {
	var user domain.User
	if err := c.get(ctx, "/profile", &user); err != nil {
		return domain.User{}, err
	}
	return user, nil
}

// UpdateUser merges a partial update into the user record and returns the
// updated profile.
func (c *Client) UpdateUser(ctx context.Context, userID uuid.UUID, patch domain.UserPatch) (domain.User, error) {
	var user domain.User
	if err := c.do(ctx, http.MethodPut, "/users/"+userID.String(), patch, &user); err != nil {
		return domain.User{}, err
	}
	return user, nil
}

// changePasswordRequest is the password-change payload.
type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// ChangePassword rotates the account password.
func (c *Client) ChangePassword(ctx context.Context, current, next string) error {
	body := changePasswordRequest{CurrentPassword: current, NewPassword: next}
	return c.do(ctx, http.MethodPost, "/users/change-password", body, nil)
}

// AddAddress creates a delivery address and returns it with its ID.
func (c *Client) AddAddress(ctx context.Context, addr domain.Address) (domain.Address, error) {
	var created domain.Address
	if err := c.do(ctx, http.MethodPost, "/addresses", addr, &created); err != nil {
		return domain.Address{}, err
	}
	return created, nil
}

// UpdateAddress replaces an existing delivery address.
func (c *Client) UpdateAddress(ctx context.Context, addr domain.Address) (domain.Address, error) {
	var updated domain.Address
	if err := c.do(ctx, http.MethodPut, "/addresses/"+url.PathEscape(addr.ID), addr, &updated); err != nil {
		return domain.Address{}, err
	}
	return updated, nil
}

// DeleteAddress removes a delivery address.
func (c *Client) DeleteAddress(ctx context.Context, addressID string) error {
	return c.do(ctx, http.MethodDelete, "/addresses/"+url.PathEscape(addressID), nil, nil)
}
