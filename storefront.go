// Package storefront provides the client-side state core for a storefront
// application: a REST API client with a typed error taxonomy, an
// authentication session store, an optimistic cart store, TTL-cached
// catalog reads, and a notification channel for surfacing operation
// outcomes.
//
// This file re-exports the main types and constructors from the
// subpackages so callers can work against a single import. For clearer
// dependencies, import the subpackages directly:
//
//	import "github.com/quickbasket/storefront-go/client"
//	import "github.com/quickbasket/storefront-go/session"
//	import "github.com/quickbasket/storefront-go/cart"
//	import "github.com/quickbasket/storefront-go/catalog"
package storefront

import (
	"github.com/quickbasket/storefront-go/cache"
	"github.com/quickbasket/storefront-go/cart"
	"github.com/quickbasket/storefront-go/catalog"
	"github.com/quickbasket/storefront-go/client"
	"github.com/quickbasket/storefront-go/domain"
	"github.com/quickbasket/storefront-go/notify"
	"github.com/quickbasket/storefront-go/session"
	"github.com/quickbasket/storefront-go/statestore"
)

// Domain types.
type (
	// Product is a catalog product with a price snapshot.
	Product = domain.Product

	// Category groups products in the catalog.
	Category = domain.Category

	// Money is an exact decimal amount in a single currency.
	Money = domain.Money

	// Cart is the client-side cart with derived totals.
	Cart = domain.Cart

	// CartLine is one cart entry; pending lines carry a temporary ID
	// until the backend assigns one.
	CartLine = domain.CartLine

	// User is the authenticated user's profile.
	User = domain.User

	// Session pairs a bearer token with its user.
	Session = domain.Session

	// ProductFilter selects catalog products by category, price band,
	// stock, and search term.
	ProductFilter = domain.ProductFilter
)

// Client and its error taxonomy.
type (
	// Client is the storefront REST API client.
	Client = client.Client

	// ClientConfig configures the API client.
	ClientConfig = client.Config

	// APIError is the coded error returned by every failed API call.
	APIError = client.APIError
)

// Error classification helpers.
var (
	IsNetwork     = client.IsNetwork
	IsAuthExpired = client.IsAuthExpired
	IsValidation  = client.IsValidation
	IsNotFound    = client.IsNotFound
	IsServer      = client.IsServer
)

// Stores and services.
type (
	// SessionStore holds authentication state and drives the logout and
	// auth-expiry teardown cascade.
	SessionStore = session.Store

	// SessionConfig configures a SessionStore.
	SessionConfig = session.Config

	// CartStore applies cart mutations optimistically and reconciles
	// them with the backend.
	CartStore = cart.Store

	// CartConfig configures a CartStore.
	CartConfig = cart.Config

	// CatalogService serves cached catalog reads.
	CatalogService = catalog.Service

	// Cache is the TTL cache backing catalog reads.
	Cache = cache.Cache

	// StateStore is the durable on-disk client state (session, cart
	// snapshot).
	StateStore = statestore.Store

	// Bus carries operation lifecycle events to subscribers.
	Bus = notify.Bus

	// Event is one operation lifecycle notification.
	Event = notify.Event
)

// Constructors.
var (
	NewClient     = client.New
	NewSession    = session.New
	NewCart       = cart.New
	NewCatalog    = catalog.New
	NewCache      = cache.New
	NewBus        = notify.NewMemBus
	OpenStateStore = statestore.Open
)
