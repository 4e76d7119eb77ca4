// Package storefronttest provides an in-memory storefront backend for
// tests and the CLI mock server. It implements the REST surface the
// client consumes, issues bearer tokens, assigns server-side cart line
// IDs, and supports fault injection (forced failures, 401s, delays) to
// drive rollback and serialization scenarios.
package storefronttest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/quickbasket/storefront-go/domain"
)

type account struct {
	password string
	user     domain.User
}

// Server is the fake storefront backend.
type Server struct {
	mu sync.Mutex

	accounts    map[string]*account     // email -> account
	oauthUsers  map[string]*account     // provider token -> account
	tokens      map[string]uuid.UUID    // bearer token -> user ID
	carts       map[uuid.UUID][]cartRow // user ID -> lines
	orders      map[uuid.UUID][]domain.Order
	reviews     map[uuid.UUID][]domain.Review
	addresses   map[string]domain.Address
	categories  []domain.Category
	products    []domain.Product
	nextLine    int
	requestSeen int

	// fault injection
	failNext   int
	failStatus int
	force401   int
	delay      time.Duration

	router *mux.Router
	ts     *httptest.Server
}

type cartRow struct {
	id       string
	product  domain.Product
	quantity int
}

// New creates a fake backend with empty state. Call Start (or use the
// handler directly) and seed fixtures before driving it.
func New() *Server {
	s := &Server{
		accounts:   make(map[string]*account),
		oauthUsers: make(map[string]*account),
		tokens:     make(map[string]uuid.UUID),
		carts:      make(map[uuid.UUID][]cartRow),
		orders:     make(map[uuid.UUID][]domain.Order),
		reviews:    make(map[uuid.UUID][]domain.Review),
		addresses:  make(map[string]domain.Address),
	}
	s.router = s.routes()
	return s
}

// Start runs the backend on an httptest server and returns its base URL.
func (s *Server) Start() string {
	s.ts = httptest.NewServer(s.router)
	return s.ts.URL
}

// Close shuts the httptest server down.
func (s *Server) Close() {
	if s.ts != nil {
		s.ts.Close()
	}
}

// Handler exposes the router, for serving outside httptest (CLI mock mode).
func (s *Server) Handler() http.Handler {
	return s.router
}

// SeedUser registers an account. Pass a user with a nil AddressID to
// exercise the onboarding sub-state.
func (s *Server) SeedUser(email, password string, user domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[email] = &account{password: password, user: user}
}

// SeedOAuthUser maps a provider token to an account.
func (s *Server) SeedOAuthUser(providerToken string, user domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.oauthUsers[providerToken] = &account{user: user}
}

// SeedCatalog installs the category and product fixtures.
func (s *Server) SeedCatalog(categories []domain.Category, products []domain.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.categories = categories
	s.products = products
}

// IssueToken mints a valid bearer token for a seeded user, bypassing login.
func (s *Server) IssueToken(email string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.accounts[email]
	if !ok {
		return "", fmt.Errorf("storefronttest: no account for %s", email)
	}
	token := "tok-" + uuid.NewString()
	s.tokens[token] = acct.user.ID
	return token, nil
}

// RevokeToken invalidates a token server-side, so the next request
// carrying it gets a 401.
func (s *Server) RevokeToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, token)
}

// FailNext makes the next n requests fail with the given status before
// any handler logic runs.
func (s *Server) FailNext(n, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext = n
	s.failStatus = status
}

// Force401 makes the next n requests fail with 401 regardless of token.
func (s *Server) Force401(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.force401 = n
}

// SetDelay stalls every request by d, for serialization-ordering tests.
func (s *Server) SetDelay(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delay = d
}

// Requests returns how many requests the backend has served.
func (s *Server) Requests() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requestSeen
}

// CartLines returns the server-side cart for a user.
func (s *Server) CartLines(userID uuid.UUID) []domain.CartLine {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows := s.carts[userID]
	lines := make([]domain.CartLine, 0, len(rows))
	for _, r := range rows {
		lines = append(lines, domain.CartLine{ID: r.id, Product: r.product, Quantity: r.quantity})
	}
	return lines
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.faultMiddleware)

	r.HandleFunc("/auth/login", s.handleLogin).Methods(http.MethodPost)
	r.HandleFunc("/auth/register", s.handleRegister).Methods(http.MethodPost)
	r.HandleFunc("/auth/oauth", s.handleOAuth).Methods(http.MethodPost)
	r.HandleFunc("/auth/validate", s.withAuth(s.handleValidate)).Methods(http.MethodGet)

	r.HandleFunc("/cart", s.withAuth(s.handleGetCart)).Methods(http.MethodGet)
	r.HandleFunc("/cart", s.withAuth(s.handleClearCart)).Methods(http.MethodDelete)
	r.HandleFunc("/cart/items", s.withAuth(s.handleAddItem)).Methods(http.MethodPost)
	r.HandleFunc("/cart/items/{id}", s.withAuth(s.handleUpdateItem)).Methods(http.MethodPut)
	r.HandleFunc("/cart/items/{id}", s.withAuth(s.handleRemoveItem)).Methods(http.MethodDelete)

	r.HandleFunc("/categories", s.handleCategories).Methods(http.MethodGet)
	r.HandleFunc("/products", s.handleProducts).Methods(http.MethodGet)
	r.HandleFunc("/products/search", s.handleSearch).Methods(http.MethodGet)
	r.HandleFunc("/products/filter", s.handleFilter).Methods(http.MethodGet)
	r.HandleFunc("/products/price-range", s.handlePriceRange).Methods(http.MethodGet)
	r.HandleFunc("/products/{id}", s.handleProduct).Methods(http.MethodGet)
	r.HandleFunc("/products/{id}/reviews", s.handleProductReviews).Methods(http.MethodGet)
	r.HandleFunc("/reviews", s.withAuth(s.handleAddReview)).Methods(http.MethodPost)

	r.HandleFunc("/profile", s.withAuth(s.handleProfile)).Methods(http.MethodGet)
	r.HandleFunc("/users/{id}", s.withAuth(s.handleUpdateUser)).Methods(http.MethodPut)
	r.HandleFunc("/users/change-password", s.withAuth(s.handleChangePassword)).Methods(http.MethodPost)

	r.HandleFunc("/addresses", s.withAuth(s.handleAddAddress)).Methods(http.MethodPost)
	r.HandleFunc("/addresses/{id}", s.withAuth(s.handleUpdateAddress)).Methods(http.MethodPut)
	r.HandleFunc("/addresses/{id}", s.withAuth(s.handleDeleteAddress)).Methods(http.MethodDelete)

	r.HandleFunc("/orders", s.withAuth(s.handleCreateOrder)).Methods(http.MethodPost)
	r.HandleFunc("/orders", s.withAuth(s.handleListOrders)).Methods(http.MethodGet)
	r.HandleFunc("/orders/{id}", s.withAuth(s.handleGetOrder)).Methods(http.MethodGet)

	return r
}

// faultMiddleware applies injected failures and delays before routing.
func (s *Server) faultMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requestSeen++
		delay := s.delay

		if s.force401 > 0 {
			s.force401--
			s.mu.Unlock()
			if delay > 0 {
				time.Sleep(delay)
			}
			writeError(w, http.StatusUnauthorized, "token expired")
			return
		}
		if s.failNext > 0 {
			s.failNext--
			status := s.failStatus
			s.mu.Unlock()
			if delay > 0 {
				time.Sleep(delay)
			}
			writeError(w, status, "injected failure")
			return
		}
		s.mu.Unlock()

		if delay > 0 {
			time.Sleep(delay)
		}
		next.ServeHTTP(w, r)
	})
}

// withAuth resolves the bearer token to a user and rejects with 401
// otherwise; 401 is the single session-invalid signal the client reacts to.
func (s *Server) withAuth(next func(w http.ResponseWriter, r *http.Request, userID uuid.UUID)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token := strings.TrimPrefix(header, "Bearer ")
		if token == "" || token == header {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}

		s.mu.Lock()
		userID, ok := s.tokens[token]
		s.mu.Unlock()
		if !ok {
			writeError(w, http.StatusUnauthorized, "token expired")
			return
		}

		next(w, r, userID)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}

type fieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func writeValidationError(w http.ResponseWriter, message string, fields ...fieldError) {
	writeJSON(w, http.StatusBadRequest, map[string]any{
		"message": message,
		"errors":  fields,
	})
}
