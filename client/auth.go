package client

import (
	"context"
	"net/http"

	"github.com/quickbasket/storefront-go/domain"
)

// sessionPayload is the credential-exchange response shape.
type sessionPayload struct {
	Token string      `json:"token"`
	User  domain.User `json:"user"`
}

// Login exchanges credentials for a session.
func (c *Client) Login(ctx context.Context, creds domain.Credentials) (domain.Session, error) {
	var payload sessionPayload
	if err := c.do(ctx, http.MethodPost, "/auth/login", creds, &payload); err != nil {
		return domain.Session{}, err
	}
	return domain.Session{Token: payload.Token, User: payload.User}, nil
}

// LoginWithOAuthToken exchanges a provider-issued ID token for a session.
func (c *Client) LoginWithOAuthToken(ctx context.Context, providerToken string) (domain.Session, error) {
	body := map[string]string{"idToken": providerToken}
	var payload sessionPayload
	if err := c.do(ctx, http.MethodPost, "/auth/oauth", body, &payload); err != nil {
		return domain.Session{}, err
	}
	return domain.Session{Token: payload.Token, User: payload.User}, nil
}

// Register creates an account. It does not authenticate; the caller logs
// in separately.
func (c *Client) Register(ctx context.Context, newUser domain.NewUser) (domain.RegistrationResult, error) {
	var result domain.RegistrationResult
	if err := c.do(ctx, http.MethodPost, "/auth/register", newUser, &result); err != nil {
		return domain.RegistrationResult{}, err
	}
	return result, nil
}

// ValidateToken checks the current bearer token against the backend and
// returns the profile it belongs to. Validation is a plain do, not a
// retried get: a 401 here must surface immediately.
func (c *Client) ValidateToken(ctx context.Context) (domain.User, error) {
	var user domain.User
	if err := c.do(ctx, http.MethodGet, "/auth/validate", nil, &user); err != nil {
		return domain.User{}, err
	}
	return user, nil
}
