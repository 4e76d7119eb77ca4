// Package session owns the authentication lifecycle: credential exchange,
// durable persistence across restarts, and the teardown cascade that keeps
// one user's state from leaking into another's session on the same device.
//
// The store is a process-wide singleton constructed once at application
// start and passed by reference to consumers; callers interact only
// through its operations, never by mutating held state directly.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/quickbasket/storefront-go/cache"
	"github.com/quickbasket/storefront-go/client"
	"github.com/quickbasket/storefront-go/domain"
	"github.com/quickbasket/storefront-go/notify"
	"github.com/quickbasket/storefront-go/statestore"
)

var (
	// ErrNotAuthenticated is returned by operations that require a session.
	ErrNotAuthenticated = errors.New("session: not authenticated")
	// ErrAlreadyAuthenticated is returned when logging in over a live session.
	ErrAlreadyAuthenticated = errors.New("session: already authenticated")
	// ErrLoginInFlight is returned when a credential exchange is already running.
	ErrLoginInFlight = errors.New("session: login already in flight")
)

// State is the authentication lifecycle state.
type State int

const (
	// StateAnonymous is the initial state: no token, no user.
	StateAnonymous State = iota
	// StateAuthenticating marks a credential exchange in flight.
	StateAuthenticating
	// StateAuthenticated holds a token and user. Whether onboarding is
	// complete is a sub-state exposed via NeedsOnboarding.
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateAnonymous:
		return "anonymous"
	case StateAuthenticating:
		return "authenticating"
	case StateAuthenticated:
		return "authenticated"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// UserScopedNamespaces are the cache namespaces evicted whenever the store
// transitions to Anonymous. Shared catalog namespaces are left alone.
var UserScopedNamespaces = []string{"cart", "profile", "orders"}

// Config configures a session Store.
type Config struct {
	// API is the storefront client. Required.
	API *client.Client

	// Persist is the durable state store. Optional; without it the
	// session does not survive restarts.
	Persist *statestore.Store

	// Bus receives session lifecycle notifications. Optional.
	Bus notify.Bus

	// Cache has its user-scoped namespaces cleared on every transition
	// to Anonymous. Optional.
	Cache *cache.Cache
}

// Store is the auth session store.
type Store struct {
	api     *client.Client
	persist *statestore.Store
	bus     notify.Bus
	cache   *cache.Cache

	mu        sync.Mutex
	state     State
	sess      domain.Session
	teardowns []func()

	wg sync.WaitGroup // background validation
}

// New creates a session store in the Anonymous state and registers its
// auth-expired cascade with the client, so a 401 from any remote call
// anywhere tears the session down.
func New(cfg Config) (*Store, error) {
	if cfg.API == nil {
		return nil, fmt.Errorf("session: client is required")
	}

	s := &Store{
		api:     cfg.API,
		persist: cfg.Persist,
		bus:     cfg.Bus,
		cache:   cfg.Cache,
		state:   StateAnonymous,
	}
	cfg.API.OnAuthExpired(s.handleAuthExpired)
	return s, nil
}

// OnTeardown registers a hook run on every transition to Anonymous,
// after local session state is cleared. The cart store registers its
// Teardown here.
func (s *Store) OnTeardown(fn func()) {
	s.mu.Lock()
	s.teardowns = append(s.teardowns, fn)
	s.mu.Unlock()
}

// Current returns the held session and lifecycle state.
func (s *Store) Current() (domain.Session, State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sess, s.state
}

// State returns the lifecycle state.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Token returns the current bearer token, or "" when anonymous.
// It satisfies client.TokenSource.
func (s *Store) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sess.Token
}

// NeedsOnboarding reports the authenticated-but-incomplete sub-state:
// a session whose user has no delivery address yet. The UI must resolve
// it through UpdateUser, without a logout/login round trip.
func (s *Store) NeedsOnboarding() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == StateAuthenticated && !s.sess.User.Onboarded()
}

// Login exchanges credentials for a session. On success the session is
// persisted and the store transitions to Authenticated; on failure the
// state stays Anonymous and the typed error is returned.
func (s *Store) Login(ctx context.Context, creds domain.Credentials) (domain.Session, error) {
	return s.exchange(ctx, notify.OpLogin, func(ctx context.Context) (domain.Session, error) {
		return s.api.Login(ctx, creds)
	})
}

// LoginWithOAuthToken exchanges a provider-issued token for a session.
// Same contract as Login.
func (s *Store) LoginWithOAuthToken(ctx context.Context, providerToken string) (domain.Session, error) {
	return s.exchange(ctx, notify.OpLogin, func(ctx context.Context) (domain.Session, error) {
		return s.api.LoginWithOAuthToken(ctx, providerToken)
	})
}

// exchange runs one credential exchange through the Authenticating state.
func (s *Store) exchange(ctx context.Context, op notify.Op, fn func(ctx context.Context) (domain.Session, error)) (domain.Session, error) {
	s.mu.Lock()
	switch s.state {
	case StateAuthenticating:
		s.mu.Unlock()
		return domain.Session{}, ErrLoginInFlight
	case StateAuthenticated:
		s.mu.Unlock()
		return domain.Session{}, ErrAlreadyAuthenticated
	}
	s.state = StateAuthenticating
	s.mu.Unlock()

	notify.Started(s.bus, op, "signing in")
	start := time.Now()

	sess, err := fn(ctx)
	if err != nil {
		s.mu.Lock()
		s.state = StateAnonymous
		s.mu.Unlock()
		notify.Failed(s.bus, op, "sign-in failed", err, time.Since(start))
		return domain.Session{}, err
	}

	s.mu.Lock()
	s.state = StateAuthenticated
	s.sess = sess
	s.mu.Unlock()

	if err := s.persistSession(ctx, sess); err != nil {
		// The live session is usable even if it will not survive a
		// restart; report the persistence failure without failing login.
		notify.Warn(s.bus, op, fmt.Sprintf("session not persisted: %v", err))
	}

	notify.Succeeded(s.bus, op, "signed in as "+sess.User.Email, time.Since(start))
	return sess, nil
}

// Register creates an account. The store stays Anonymous; the observed
// flow redirects to login rather than auto-authenticating.
func (s *Store) Register(ctx context.Context, newUser domain.NewUser) (domain.RegistrationResult, error) {
	notify.Started(s.bus, notify.OpRegister, "creating account")
	start := time.Now()

	result, err := s.api.Register(ctx, newUser)
	if err != nil {
		notify.Failed(s.bus, notify.OpRegister, "registration failed", err, time.Since(start))
		return domain.RegistrationResult{}, err
	}

	notify.Succeeded(s.bus, notify.OpRegister, "account created", time.Since(start))
	return result, nil
}

// Logout clears the token and user, runs the teardown cascade, and
// returns only once the cascade has fully completed, so a subsequent
// login cannot interleave with a half-torn-down predecessor. Logout
// always succeeds locally.
func (s *Store) Logout(ctx context.Context) {
	s.toAnonymous(ctx)
	notify.Succeeded(s.bus, notify.OpLogout, "signed out", 0)
}

// handleAuthExpired is the client's 401 hook: any remote call reporting
// an authentication rejection forces the same teardown as logout.
func (s *Store) handleAuthExpired() {
	s.toAnonymous(context.Background())
	notify.Warn(s.bus, notify.OpAuthExpired, "session expired, please sign in again")
}

// toAnonymous performs the full transition to Anonymous: clear held
// session, drop persisted state, run teardown hooks, evict user-scoped
// cache namespaces.
func (s *Store) toAnonymous(ctx context.Context) {
	s.mu.Lock()
	s.state = StateAnonymous
	s.sess = domain.Session{}
	teardowns := make([]func(), len(s.teardowns))
	copy(teardowns, s.teardowns)
	s.mu.Unlock()

	s.clearPersisted(ctx)

	for _, fn := range teardowns {
		fn()
	}

	if s.cache != nil {
		for _, ns := range UserScopedNamespaces {
			s.cache.ClearNamespace(ns)
		}
	}
}

// UpdateUser merges fields into the current user record without
// re-authentication. Supplying a delivery address through this path
// resolves the onboarding sub-state.
func (s *Store) UpdateUser(ctx context.Context, patch domain.UserPatch) (domain.User, error) {
	s.mu.Lock()
	if s.state != StateAuthenticated {
		s.mu.Unlock()
		return domain.User{}, ErrNotAuthenticated
	}
	userID := s.sess.User.ID
	s.mu.Unlock()

	start := time.Now()
	updated, err := s.api.UpdateUser(ctx, userID, patch)
	if err != nil {
		notify.Failed(s.bus, notify.OpUpdateUser, "profile update failed", err, time.Since(start))
		return domain.User{}, err
	}

	s.mu.Lock()
	// The session may have been torn down while the call was in flight;
	// never resurrect a cleared session from a late response.
	if s.state != StateAuthenticated || s.sess.User.ID != userID {
		s.mu.Unlock()
		return updated, nil
	}
	s.sess.User = updated
	sess := s.sess
	s.mu.Unlock()

	if err := s.persistSession(ctx, sess); err != nil {
		notify.Warn(s.bus, notify.OpUpdateUser, fmt.Sprintf("session not persisted: %v", err))
	}

	notify.Succeeded(s.bus, notify.OpUpdateUser, "profile updated", time.Since(start))
	return updated, nil
}

// Restore reads any durably stored session at process start. A stored
// token is eagerly trusted (the store transitions straight to
// Authenticated) while a background call validates it; if validation
// reports the token invalid, the 401 cascade drops the session and the
// persisted data. Returns whether a session was restored.
func (s *Store) Restore(ctx context.Context) (bool, error) {
	if s.persist == nil {
		return false, nil
	}

	token, err := s.persist.Get(ctx, statestore.KeySessionToken)
	if errors.Is(err, statestore.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("session: restore token: %w", err)
	}

	userData, err := s.persist.Get(ctx, statestore.KeySessionUser)
	if errors.Is(err, statestore.ErrNotFound) {
		// Token without user is a torn write; discard it.
		s.clearPersisted(ctx)
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("session: restore user: %w", err)
	}

	var user domain.User
	if err := json.Unmarshal(userData, &user); err != nil {
		s.clearPersisted(ctx)
		return false, fmt.Errorf("session: decode stored user: %w", err)
	}

	s.mu.Lock()
	s.state = StateAuthenticated
	s.sess = domain.Session{Token: string(token), User: user}
	s.mu.Unlock()

	notify.Succeeded(s.bus, notify.OpRestore, "session restored for "+user.Email, 0)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		// A 401 here fires the client hook, which runs the full cascade.
		// Transport failures leave the eagerly trusted session in place.
		_ = s.ValidateNow(context.Background())
	}()

	return true, nil
}

// ValidateNow checks the current token against the backend and refreshes
// the held user profile from the response. Also run periodically by the
// background scheduler.
func (s *Store) ValidateNow(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateAuthenticated {
		s.mu.Unlock()
		return ErrNotAuthenticated
	}
	token := s.sess.Token
	s.mu.Unlock()

	user, err := s.api.ValidateToken(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.state != StateAuthenticated || s.sess.Token != token {
		s.mu.Unlock()
		return nil
	}
	s.sess.User = user
	sess := s.sess
	s.mu.Unlock()

	return s.persistSession(ctx, sess)
}

// Close waits for background validation to settle. It does not log out.
func (s *Store) Close() {
	s.wg.Wait()
}

func (s *Store) persistSession(ctx context.Context, sess domain.Session) error {
	if s.persist == nil {
		return nil
	}

	userData, err := json.Marshal(sess.User)
	if err != nil {
		return fmt.Errorf("session: encode user: %w", err)
	}
	if err := s.persist.Put(ctx, statestore.KeySessionToken, []byte(sess.Token)); err != nil {
		return err
	}
	return s.persist.Put(ctx, statestore.KeySessionUser, userData)
}

func (s *Store) clearPersisted(ctx context.Context) {
	if s.persist == nil {
		return
	}
	// Best effort: a failed delete must not block the transition to
	// Anonymous, and the next Restore discards torn state anyway.
	_ = s.persist.Delete(ctx, statestore.KeySessionToken)
	_ = s.persist.Delete(ctx, statestore.KeySessionUser)
	_ = s.persist.Delete(ctx, statestore.KeyCartSnapshot)
}
