package storefronttest

import (
	"github.com/google/uuid"

	"github.com/quickbasket/storefront-go/domain"
)

// Deterministic fixture IDs, so tests can reference them directly.
var (
	CategoryProduceID = uuid.MustParse("6f1f64a8-0e6b-4a3e-9e5c-0d9b1a2c3d4e")
	CategoryBakeryID  = uuid.MustParse("8a2b75b9-1f7c-4b4f-8f6d-1e0c2b3d4e5f")

	ProductAppleID  = uuid.MustParse("c3d4e5f6-a7b8-49c0-91d2-e3f4a5b6c7d8")
	ProductBananaID = uuid.MustParse("d4e5f6a7-b8c9-40d1-82e3-f4a5b6c7d8e9")
	ProductBreadID  = uuid.MustParse("e5f6a7b8-c9d0-41e2-93f4-a5b6c7d8e9f0")
)

// TestUserEmail and TestUserPassword are the credentials SeedDefaults
// registers for the pre-onboarded account.
const (
	TestUserEmail    = "shopper@example.com"
	TestUserPassword = "hunter2hunter2"

	// NewUserEmail is the account with no delivery address, for
	// onboarding-flow tests.
	NewUserEmail    = "fresh@example.com"
	NewUserPassword = "firsttimer1"

	// OAuthProviderToken maps to the pre-onboarded account via SeedDefaults.
	OAuthProviderToken = "provider-id-token-good"
)

func mustMoney(amount string) domain.Money {
	m, err := domain.NewMoney(amount, "USD")
	if err != nil {
		panic(err)
	}
	return m
}

// SeedDefaults loads a small deterministic dataset: two categories, three
// products, an onboarded account, a not-yet-onboarded account, and an
// OAuth mapping for the onboarded one.
func (s *Server) SeedDefaults() {
	addrID := "addr-seeded"
	onboarded := domain.User{
		ID:        uuid.MustParse("11111111-2222-4333-8444-555555555555"),
		Name:      "Sam Shopper",
		Email:     TestUserEmail,
		AddressID: &addrID,
	}
	fresh := domain.User{
		ID:    uuid.MustParse("99999999-8888-4777-8666-555555555555"),
		Name:  "Fresh Face",
		Email: NewUserEmail,
	}

	s.SeedUser(TestUserEmail, TestUserPassword, onboarded)
	s.SeedUser(NewUserEmail, NewUserPassword, fresh)
	s.SeedOAuthUser(OAuthProviderToken, onboarded)

	s.mu.Lock()
	s.addresses[addrID] = domain.Address{
		ID:      addrID,
		Line1:   "1 Market St",
		City:    "Springfield",
		ZipCode: "12345",
	}
	s.mu.Unlock()

	s.SeedCatalog(
		[]domain.Category{
			{ID: CategoryProduceID, Name: "Produce"},
			{ID: CategoryBakeryID, Name: "Bakery"},
		},
		[]domain.Product{
			{ID: ProductAppleID, Name: "Apple", Price: mustMoney("0.50"), CategoryID: CategoryProduceID, StockQuantity: 100},
			{ID: ProductBananaID, Name: "Banana", Price: mustMoney("0.25"), CategoryID: CategoryProduceID, StockQuantity: 40},
			{ID: ProductBreadID, Name: "Sourdough Loaf", Price: mustMoney("4.75"), CategoryID: CategoryBakeryID, StockQuantity: 8},
		},
	)
}

// DefaultUser returns the onboarded fixture account's profile.
func (s *Server) DefaultUser() domain.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if acct, ok := s.accounts[TestUserEmail]; ok {
		return acct.user
	}
	return domain.User{}
}
