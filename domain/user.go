package domain

import "github.com/google/uuid"

// User is the profile record for an authenticated account.
// A nil AddressID means onboarding is incomplete: the account exists but
// has no delivery address yet.
type User struct {
	ID                uuid.UUID `json:"userId"`
	Name              string    `json:"userName"`
	Email             string    `json:"email"`
	AddressID         *string   `json:"addressId,omitempty"`
	ProfilePictureURL string    `json:"profilePictureUrl,omitempty"`
}

// Onboarded reports whether the profile is complete enough for the main
// application shell (a delivery address has been supplied).
func (u User) Onboarded() bool {
	return u.AddressID != nil && *u.AddressID != ""
}

// Session is the authenticated identity held for the current usage period.
// Invariant: a non-zero User implies a non-empty Token.
type Session struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// Credentials are exchanged for a session at login.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// NewUser is the payload for account registration.
type NewUser struct {
	Name     string `json:"userName"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegistrationResult confirms account creation. Registration does not
// authenticate; the caller logs in separately.
type RegistrationResult struct {
	UserID  uuid.UUID `json:"userId"`
	Message string    `json:"message,omitempty"`
}

// UserPatch carries partial profile updates. Nil fields are left unchanged.
type UserPatch struct {
	Name              *string `json:"userName,omitempty"`
	Email             *string `json:"email,omitempty"`
	AddressID         *string `json:"addressId,omitempty"`
	ProfilePictureURL *string `json:"profilePictureUrl,omitempty"`
}

// Apply merges the patch into a copy of the user and returns it.
func (p UserPatch) Apply(u User) User {
	if p.Name != nil {
		u.Name = *p.Name
	}
	if p.Email != nil {
		u.Email = *p.Email
	}
	if p.AddressID != nil {
		u.AddressID = p.AddressID
	}
	if p.ProfilePictureURL != nil {
		u.ProfilePictureURL = *p.ProfilePictureURL
	}
	return u
}

// Address is a delivery address.
type Address struct {
	ID      string `json:"addressId"`
	Line1   string `json:"line1"`
	Line2   string `json:"line2,omitempty"`
	City    string `json:"city"`
	ZipCode string `json:"zipCode"`
}
