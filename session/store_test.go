package session_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/stretchr/testify/suite"
	"go.uber.org/goleak"

	"github.com/quickbasket/storefront-go/cache"
	"github.com/quickbasket/storefront-go/cart"
	"github.com/quickbasket/storefront-go/client"
	"github.com/quickbasket/storefront-go/domain"
	"github.com/quickbasket/storefront-go/notify"
	"github.com/quickbasket/storefront-go/session"
	"github.com/quickbasket/storefront-go/statestore"
	"github.com/quickbasket/storefront-go/storefronttest"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		// The httptest server keeps idle keep-alive conns briefly.
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
	)
}

type sessionStoreSuite struct {
	suite.Suite

	backend  *storefronttest.Server
	persist  *statestore.Store
	cache    *cache.Cache
	bus      *notify.MemBus
	api      *client.Client
	sessions *session.Store
	cart     *cart.Store
}

func TestSessionStoreSuite(t *testing.T) {
	suite.Run(t, new(sessionStoreSuite))
}

// before each test: a fresh backend and a fully wired store stack
func (s *sessionStoreSuite) SetupTest() {
	s.backend = storefronttest.New()
	s.backend.SeedDefaults()
	baseURL := s.backend.Start()

	var err error
	s.persist, err = statestore.Open(filepath.Join(s.T().TempDir(), "state.db"))
	s.Require().NoError(err)

	s.cache = cache.New()
	s.bus = notify.NewMemBus(notify.MemBusConfig{})

	s.api, err = client.New(client.Config{
		BaseURL: baseURL,
		Timeout: 5 * time.Second,
		TokenSource: func() string {
			if s.sessions == nil {
				return ""
			}
			return s.sessions.Token()
		},
	})
	s.Require().NoError(err)

	s.sessions, err = session.New(session.Config{
		API:     s.api,
		Persist: s.persist,
		Bus:     s.bus,
		Cache:   s.cache,
	})
	s.Require().NoError(err)

	s.cart, err = cart.New(cart.Config{API: s.api, Bus: s.bus, Persist: s.persist})
	s.Require().NoError(err)
	s.sessions.OnTeardown(s.cart.Teardown)
}

func (s *sessionStoreSuite) TearDownTest() {
	s.sessions.Close()
	_ = s.bus.Close()
	_ = s.persist.Close()
	s.backend.Close()
}

func (s *sessionStoreSuite) login() domain.Session {
	sess, err := s.sessions.Login(s.T().Context(), domain.Credentials{
		Email:    storefronttest.TestUserEmail,
		Password: storefronttest.TestUserPassword,
	})
	s.Require().NoError(err)
	return sess
}

func (s *sessionStoreSuite) TestLogin() {
	sess := s.login()

	s.Equal(session.StateAuthenticated, s.sessions.State())
	s.NotEmpty(sess.Token)
	s.Equal(storefronttest.TestUserEmail, sess.User.Email)
	s.False(s.sessions.NeedsOnboarding())

	// The session must survive a restart: both keys are on disk.
	token, err := s.persist.Get(s.T().Context(), statestore.KeySessionToken)
	s.NoError(err)
	s.Equal(sess.Token, string(token))
}

func (s *sessionStoreSuite) TestLogin_BadCredentials() {
	_, err := s.sessions.Login(s.T().Context(), domain.Credentials{
		Email:    storefronttest.TestUserEmail,
		Password: "wrong-password",
	})

	s.True(client.IsValidation(err), "got %v", err)
	s.Equal(session.StateAnonymous, s.sessions.State())
	s.Empty(s.sessions.Token())

	_, err = s.persist.Get(s.T().Context(), statestore.KeySessionToken)
	s.ErrorIs(err, statestore.ErrNotFound)
}

func (s *sessionStoreSuite) TestLogin_AlreadyAuthenticated() {
	s.login()

	_, err := s.sessions.Login(s.T().Context(), domain.Credentials{
		Email:    storefronttest.TestUserEmail,
		Password: storefronttest.TestUserPassword,
	})
	s.ErrorIs(err, session.ErrAlreadyAuthenticated)
}

func (s *sessionStoreSuite) TestLoginWithOAuthToken() {
	sess, err := s.sessions.LoginWithOAuthToken(s.T().Context(), storefronttest.OAuthProviderToken)

	s.Require().NoError(err)
	s.Equal(session.StateAuthenticated, s.sessions.State())
	s.Equal(storefronttest.TestUserEmail, sess.User.Email)
}

func (s *sessionStoreSuite) TestLoginWithOAuthToken_Unknown() {
	_, err := s.sessions.LoginWithOAuthToken(s.T().Context(), "provider-id-token-bogus")

	s.Error(err)
	s.Equal(session.StateAnonymous, s.sessions.State())
}

func (s *sessionStoreSuite) TestRegister_DoesNotAuthenticate() {
	result, err := s.sessions.Register(s.T().Context(), domain.NewUser{
		Name:     gofakeit.Name(),
		Email:    gofakeit.Email(),
		Password: "long-enough-password",
	})

	s.Require().NoError(err)
	s.NotEmpty(result.UserID)
	// Registration redirects to login; it must not create a session.
	s.Equal(session.StateAnonymous, s.sessions.State())
	s.Empty(s.sessions.Token())
}

func (s *sessionStoreSuite) TestRegister_DuplicateEmail() {
	_, err := s.sessions.Register(s.T().Context(), domain.NewUser{
		Name:     "Dup",
		Email:    storefronttest.TestUserEmail,
		Password: "long-enough-password",
	})

	s.True(client.IsValidation(err), "got %v", err)
	var apiErr *client.APIError
	s.Require().True(client.AsAPIError(err, &apiErr))
	s.Contains(apiErr.Fields, "email")
}

func (s *sessionStoreSuite) TestLogout_Cascade() {
	ctx := s.T().Context()
	s.login()

	// Build up user-scoped state everywhere: cart lines, user-scoped
	// cache entries, shared catalog cache entries.
	product, err := s.api.Product(ctx, storefronttest.ProductAppleID)
	s.Require().NoError(err)
	_, err = s.cart.AddItem(ctx, product, 2)
	s.Require().NoError(err)

	s.cache.Set(cache.Key("profile", "me"), "cached-profile", 0)
	s.cache.Set(cache.Key("orders", "recent"), "cached-orders", 0)
	s.cache.Set(cache.Key("categories", struct{}{}), "cached-catalog", 0)

	s.sessions.Logout(ctx)

	// State and token are gone before Logout returns.
	s.Equal(session.StateAnonymous, s.sessions.State())
	s.Empty(s.sessions.Token())

	// Cart cleared via the teardown hook.
	s.Zero(s.cart.ItemCount())

	// User-scoped namespaces evicted, shared catalog untouched.
	_, ok := s.cache.Get(cache.Key("profile", "me"))
	s.False(ok, "profile cache must be evicted on logout")
	_, ok = s.cache.Get(cache.Key("orders", "recent"))
	s.False(ok, "orders cache must be evicted on logout")
	_, ok = s.cache.Get(cache.Key("categories", struct{}{}))
	s.True(ok, "shared catalog cache must survive logout")

	// Durable state dropped.
	_, err = s.persist.Get(ctx, statestore.KeySessionToken)
	s.ErrorIs(err, statestore.ErrNotFound)
	_, err = s.persist.Get(ctx, statestore.KeyCartSnapshot)
	s.ErrorIs(err, statestore.ErrNotFound)
}

func (s *sessionStoreSuite) TestAuthExpired_CascadeFromCartCall() {
	ctx := s.T().Context()
	sess := s.login()

	product, err := s.api.Product(ctx, storefronttest.ProductAppleID)
	s.Require().NoError(err)
	_, err = s.cart.AddItem(ctx, product, 1)
	s.Require().NoError(err)

	// The backend revokes the token; the next cart mutation gets a 401
	// and must tear the whole session down, not just fail the mutation.
	s.backend.RevokeToken(sess.Token)

	_, err = s.cart.AddItem(ctx, product, 1)
	s.True(client.IsAuthExpired(err), "got %v", err)

	s.Equal(session.StateAnonymous, s.sessions.State())
	s.Zero(s.cart.ItemCount())
	_, err = s.persist.Get(ctx, statestore.KeySessionToken)
	s.ErrorIs(err, statestore.ErrNotFound)
}

func (s *sessionStoreSuite) TestRestore_EagerTrust() {
	ctx := s.T().Context()
	sess := s.login()

	// A second store over the same durable state simulates a restart.
	restored, err := session.New(session.Config{API: s.api, Persist: s.persist, Cache: s.cache})
	s.Require().NoError(err)
	defer restored.Close()

	ok, err := restored.Restore(ctx)
	s.Require().NoError(err)
	s.True(ok)

	// The restored session is usable immediately, before any validation
	// round trip completes.
	s.Equal(session.StateAuthenticated, restored.State())
	got, _ := restored.Current()
	s.Equal(sess.User.Email, got.User.Email)

	restored.Close()
	s.Equal(session.StateAuthenticated, restored.State(), "background validation of a live token must keep the session")
}

func (s *sessionStoreSuite) TestRestore_RevokedTokenTearsDown() {
	ctx := s.T().Context()
	sess := s.login()
	s.backend.RevokeToken(sess.Token)

	restored, err := session.New(session.Config{API: s.api, Persist: s.persist, Cache: s.cache})
	s.Require().NoError(err)

	ok, err := restored.Restore(ctx)
	s.Require().NoError(err)
	s.True(ok, "a stored token is trusted eagerly even if stale")

	// Close waits for the background validation; its 401 runs the cascade.
	restored.Close()
	s.Equal(session.StateAnonymous, restored.State(), "revoked token must drop the session after validation")

	_, err = s.persist.Get(ctx, statestore.KeySessionToken)
	s.ErrorIs(err, statestore.ErrNotFound)
}

func (s *sessionStoreSuite) TestRestore_NothingStored() {
	ok, err := s.sessions.Restore(s.T().Context())
	s.NoError(err)
	s.False(ok)
	s.Equal(session.StateAnonymous, s.sessions.State())
}

func (s *sessionStoreSuite) TestNeedsOnboarding() {
	ctx := s.T().Context()

	_, err := s.sessions.Login(ctx, domain.Credentials{
		Email:    storefronttest.NewUserEmail,
		Password: storefronttest.NewUserPassword,
	})
	s.Require().NoError(err)

	// Authenticated, but the profile has no delivery address yet.
	s.Equal(session.StateAuthenticated, s.sessions.State())
	s.True(s.sessions.NeedsOnboarding())

	// Supplying an address through UpdateUser resolves the sub-state
	// without a logout/login round trip.
	addr, err := s.api.AddAddress(ctx, domain.Address{Line1: "2 Side St", City: "Springfield"})
	s.Require().NoError(err)

	updated, err := s.sessions.UpdateUser(ctx, domain.UserPatch{AddressID: &addr.ID})
	s.Require().NoError(err)
	s.True(updated.Onboarded())
	s.False(s.sessions.NeedsOnboarding())
	s.Equal(session.StateAuthenticated, s.sessions.State())
}

func (s *sessionStoreSuite) TestUpdateUser_RequiresAuth() {
	name := "Nobody"
	_, err := s.sessions.UpdateUser(s.T().Context(), domain.UserPatch{Name: &name})
	s.ErrorIs(err, session.ErrNotAuthenticated)
}

func (s *sessionStoreSuite) TestValidateNow_Anonymous() {
	err := s.sessions.ValidateNow(s.T().Context())
	s.ErrorIs(err, session.ErrNotAuthenticated)
}

func (s *sessionStoreSuite) TestValidateNow_RefreshesProfile() {
	ctx := s.T().Context()
	sess := s.login()

	// The profile changes server-side (e.g. from another device).
	newName := "Renamed Elsewhere"
	_, err := s.api.UpdateUser(ctx, sess.User.ID, domain.UserPatch{Name: &newName})
	s.Require().NoError(err)

	s.Require().NoError(s.sessions.ValidateNow(ctx))

	current, _ := s.sessions.Current()
	s.Equal(newName, current.User.Name)
}

func (s *sessionStoreSuite) TestLogout_WhileAnonymousIsSafe() {
	s.sessions.Logout(s.T().Context())
	s.Equal(session.StateAnonymous, s.sessions.State())
}
