// Package cart maintains the authoritative view of the current user's
// shopping cart. Mutations apply local state synchronously first
// (optimistic), then reconcile against the remote cart service; on remote
// failure the local change is rolled back and a typed error is surfaced.
//
// Ordering: mutations on the same line are serialized behind a per-product
// lock, so a second mutation waits for the in-flight remote call for that
// line to settle. Mutations on different lines proceed concurrently. Each
// line additionally carries a monotonic version, and the store a
// generation counter bumped on every wholesale replacement, so a stale
// remote response can never overwrite newer local state.
package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/quickbasket/storefront-go/client"
	"github.com/quickbasket/storefront-go/domain"
	"github.com/quickbasket/storefront-go/notify"
	"github.com/quickbasket/storefront-go/statestore"
)

var (
	// ErrLineNotFound is returned when a mutation names an unknown line.
	ErrLineNotFound = errors.New("cart: line not found")
	// ErrInvalidQuantity is returned when an add names a non-positive quantity.
	ErrInvalidQuantity = errors.New("cart: quantity must be at least 1")
)

// API is the remote cart service surface the store reconciles against.
// *client.Client satisfies it.
type API interface {
	GetCart(ctx context.Context) (domain.Cart, error)
	AddCartItem(ctx context.Context, productID uuid.UUID, quantity int) (domain.CartLine, error)
	UpdateCartItem(ctx context.Context, lineID string, quantity int) (domain.CartLine, error)
	RemoveCartItem(ctx context.Context, lineID string) error
	ClearCart(ctx context.Context) error
}

// Config configures a cart Store.
type Config struct {
	// API is the remote cart service. Required.
	API API

	// Bus receives cart mutation notifications. Optional.
	Bus notify.Bus

	// Persist stores a local cart snapshot after successful
	// reconciliation, so a restart can show the cart before the first
	// LoadCart completes. Optional.
	Persist *statestore.Store
}

// line is store-internal mutable cart line state.
type line struct {
	id       string
	product  domain.Product
	quantity int
	version  uint64
}

// Store is the optimistic cart store.
type Store struct {
	api     API
	bus     notify.Bus
	persist *statestore.Store

	mu         sync.Mutex
	lines      []*line
	generation uint64
	locks      map[uuid.UUID]*sync.Mutex // per-product serialization
}

// New creates an empty cart store.
func New(cfg Config) (*Store, error) {
	if cfg.API == nil {
		return nil, fmt.Errorf("cart: API is required")
	}
	return &Store{
		api:     cfg.API,
		bus:     cfg.Bus,
		persist: cfg.Persist,
		locks:   make(map[uuid.UUID]*sync.Mutex),
	}, nil
}

// lineLock returns the serialization lock for a product, creating it on
// first use. Locks are never removed; the set of products a session
// touches is small.
func (s *Store) lineLock(productID uuid.UUID) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	lk, ok := s.locks[productID]
	if !ok {
		lk = &sync.Mutex{}
		s.locks[productID] = lk
	}
	return lk
}

// findByProduct returns the line for a product. Caller holds s.mu.
func (s *Store) findByProduct(productID uuid.UUID) (*line, int) {
	for i, ln := range s.lines {
		if ln.product.ID == productID {
			return ln, i
		}
	}
	return nil, -1
}

// findByID returns the line with the given line ID. Caller holds s.mu.
func (s *Store) findByID(lineID string) (*line, int) {
	for i, ln := range s.lines {
		if ln.id == lineID {
			return ln, i
		}
	}
	return nil, -1
}

// AddItem adds quantity of product to the cart. If a line for the product
// exists its quantity is incremented immediately; otherwise a new line is
// appended with a temporary ID and reconciled with the server-assigned ID
// on success. On remote failure the local change is rolled back.
func (s *Store) AddItem(ctx context.Context, product domain.Product, quantity int) (domain.CartLine, error) {
	if quantity < 1 {
		return domain.CartLine{}, ErrInvalidQuantity
	}

	lk := s.lineLock(product.ID)
	lk.Lock()
	defer lk.Unlock()

	notify.Started(s.bus, notify.OpCartAdd, "adding "+product.Name)
	start := time.Now()

	s.mu.Lock()
	gen := s.generation
	existing, _ := s.findByProduct(product.ID)

	if existing != nil {
		prevQty := existing.quantity
		existing.quantity += quantity
		existing.version++
		v := existing.version
		id := existing.id
		newQty := existing.quantity
		s.mu.Unlock()

		resp, err := s.api.UpdateCartItem(ctx, id, newQty)
		if err != nil {
			s.rollbackQuantity(gen, product.ID, v, prevQty)
			notify.Failed(s.bus, notify.OpCartAdd, "could not add "+product.Name, err, time.Since(start))
			return domain.CartLine{}, err
		}

		result := s.reconcileLine(gen, product.ID, v, resp)
		s.snapshotToDisk(ctx)
		notify.Succeeded(s.bus, notify.OpCartAdd, "added "+product.Name, time.Since(start))
		return result, nil
	}

	ln := &line{
		id:       domain.TempLineIDPrefix + uuid.NewString(),
		product:  product,
		quantity: quantity,
		version:  1,
	}
	s.lines = append(s.lines, ln)
	s.mu.Unlock()

	resp, err := s.api.AddCartItem(ctx, product.ID, quantity)
	if err != nil {
		s.dropLine(gen, product.ID, 1)
		notify.Failed(s.bus, notify.OpCartAdd, "could not add "+product.Name, err, time.Since(start))
		return domain.CartLine{}, err
	}

	result := s.reconcileLine(gen, product.ID, 1, resp)
	s.snapshotToDisk(ctx)
	notify.Succeeded(s.bus, notify.OpCartAdd, "added "+product.Name, time.Since(start))
	return result, nil
}

// UpdateQuantity sets a line's quantity. A new quantity of zero or less is
// equivalent to RemoveItem. On remote failure the prior quantity is
// restored.
func (s *Store) UpdateQuantity(ctx context.Context, lineID string, newQuantity int) error {
	if newQuantity <= 0 {
		return s.RemoveItem(ctx, lineID)
	}

	s.mu.Lock()
	ln, _ := s.findByID(lineID)
	if ln == nil {
		s.mu.Unlock()
		return ErrLineNotFound
	}
	productID := ln.product.ID
	s.mu.Unlock()

	lk := s.lineLock(productID)
	lk.Lock()
	defer lk.Unlock()

	start := time.Now()

	// Re-resolve under the line lock: the in-flight operation we waited
	// for may have reconciled a temporary ID to the server-assigned one,
	// or removed the line entirely.
	s.mu.Lock()
	gen := s.generation
	ln, _ = s.findByProduct(productID)
	if ln == nil {
		s.mu.Unlock()
		return ErrLineNotFound
	}
	prevQty := ln.quantity
	ln.quantity = newQuantity
	ln.version++
	v := ln.version
	id := ln.id
	s.mu.Unlock()

	resp, err := s.api.UpdateCartItem(ctx, id, newQuantity)
	if err != nil {
		s.rollbackQuantity(gen, productID, v, prevQty)
		notify.Failed(s.bus, notify.OpCartUpdate, "could not update quantity", err, time.Since(start))
		return err
	}

	s.reconcileLine(gen, productID, v, resp)
	s.snapshotToDisk(ctx)
	notify.Succeeded(s.bus, notify.OpCartUpdate, "quantity updated", time.Since(start))
	return nil
}

// RemoveItem removes a line optimistically. On remote failure the line is
// re-inserted at its original position with its original quantity; a
// NotFound from the server keeps the removal, since local and remote
// state already agree the line is gone, and surfaces the typed error.
func (s *Store) RemoveItem(ctx context.Context, lineID string) error {
	s.mu.Lock()
	ln, _ := s.findByID(lineID)
	if ln == nil {
		s.mu.Unlock()
		return ErrLineNotFound
	}
	productID := ln.product.ID
	s.mu.Unlock()

	lk := s.lineLock(productID)
	lk.Lock()
	defer lk.Unlock()

	start := time.Now()

	s.mu.Lock()
	gen := s.generation
	ln, idx := s.findByProduct(productID)
	if ln == nil {
		s.mu.Unlock()
		return ErrLineNotFound
	}
	removed := *ln
	id := ln.id
	s.lines = append(s.lines[:idx], s.lines[idx+1:]...)
	s.mu.Unlock()

	err := s.api.RemoveCartItem(ctx, id)
	if err != nil && !client.IsNotFound(err) {
		s.reinsertLine(gen, removed, idx)
		notify.Failed(s.bus, notify.OpCartRemove, "could not remove "+removed.product.Name, err, time.Since(start))
		return err
	}

	s.snapshotToDisk(ctx)
	if err != nil {
		notify.Failed(s.bus, notify.OpCartRemove, removed.product.Name+" was already removed", err, time.Since(start))
		return err
	}
	notify.Succeeded(s.bus, notify.OpCartRemove, "removed "+removed.product.Name, time.Since(start))
	return nil
}

// ClearCart empties the cart optimistically. A bulk clear has no simple
// single-line rollback, so on remote failure the store reloads the
// authoritative cart instead of silently keeping an inconsistent empty
// state; if the reload also fails, the pre-clear lines are reinstated.
func (s *Store) ClearCart(ctx context.Context) error {
	start := time.Now()

	s.mu.Lock()
	saved := s.lines
	s.lines = nil
	s.generation++
	gen := s.generation
	s.mu.Unlock()

	err := s.api.ClearCart(ctx)
	if err == nil {
		s.snapshotToDisk(ctx)
		notify.Succeeded(s.bus, notify.OpCartClear, "cart cleared", time.Since(start))
		return nil
	}

	if loadErr := s.LoadCart(ctx); loadErr != nil {
		s.mu.Lock()
		if s.generation == gen {
			s.lines = saved
			s.generation++
		}
		s.mu.Unlock()
	}

	notify.Failed(s.bus, notify.OpCartClear, "could not clear cart", err, time.Since(start))
	return err
}

// LoadCart fetches the authoritative cart and replaces local state
// wholesale. Called on session start and after any unrecoverable
// reconciliation failure. In-flight per-line reconciliations from before
// the load are discarded via the generation bump.
func (s *Store) LoadCart(ctx context.Context) error {
	start := time.Now()

	cart, err := s.api.GetCart(ctx)
	if err != nil {
		notify.Failed(s.bus, notify.OpCartLoad, "could not load cart", err, time.Since(start))
		return err
	}

	s.mu.Lock()
	s.generation++
	s.lines = make([]*line, 0, len(cart.Lines))
	for _, l := range cart.Lines {
		s.lines = append(s.lines, &line{
			id:       l.ID,
			product:  l.Product,
			quantity: l.Quantity,
			version:  1,
		})
	}
	s.mu.Unlock()

	s.snapshotToDisk(ctx)
	notify.Succeeded(s.bus, notify.OpCartLoad, "cart loaded", time.Since(start))
	return nil
}

// Teardown clears all local cart state without any remote call. Invoked
// by the session store on logout and on auth expiry.
func (s *Store) Teardown() {
	s.mu.Lock()
	s.lines = nil
	s.generation++
	s.mu.Unlock()

	if s.persist != nil {
		_ = s.persist.Delete(context.Background(), statestore.KeyCartSnapshot)
	}
}

// RestoreSnapshot loads the locally persisted cart snapshot, if any, so a
// restarted process shows the cart before the first LoadCart completes.
// The snapshot is a display optimization; LoadCart remains authoritative.
func (s *Store) RestoreSnapshot(ctx context.Context) (bool, error) {
	if s.persist == nil {
		return false, nil
	}

	data, err := s.persist.Get(ctx, statestore.KeyCartSnapshot)
	if errors.Is(err, statestore.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cart: restore snapshot: %w", err)
	}

	var cart domain.Cart
	if err := json.Unmarshal(data, &cart); err != nil {
		_ = s.persist.Delete(ctx, statestore.KeyCartSnapshot)
		return false, fmt.Errorf("cart: decode snapshot: %w", err)
	}

	s.mu.Lock()
	s.generation++
	s.lines = make([]*line, 0, len(cart.Lines))
	for _, l := range cart.Lines {
		s.lines = append(s.lines, &line{id: l.ID, product: l.Product, quantity: l.Quantity, version: 1})
	}
	s.mu.Unlock()

	return true, nil
}

// Snapshot returns a copy of the current cart.
func (s *Store) Snapshot() domain.Cart {
	s.mu.Lock()
	defer s.mu.Unlock()

	cart := domain.Cart{Lines: make([]domain.CartLine, 0, len(s.lines))}
	for _, ln := range s.lines {
		cart.Lines = append(cart.Lines, domain.CartLine{
			ID:       ln.id,
			Product:  ln.product,
			Quantity: ln.quantity,
		})
	}
	return cart
}

// ItemCount is the total quantity across all lines.
func (s *Store) ItemCount() int {
	return s.Snapshot().ItemCount()
}

// Subtotal is the snapshot-price sum across all lines.
func (s *Store) Subtotal() domain.Money {
	return s.Snapshot().Subtotal()
}

// rollbackQuantity restores a line's quantity after a failed remote call,
// unless the state the call was issued against is already gone.
func (s *Store) rollbackQuantity(gen uint64, productID uuid.UUID, version uint64, prevQty int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.generation != gen {
		return
	}
	ln, _ := s.findByProduct(productID)
	if ln == nil || ln.version != version {
		return
	}
	ln.quantity = prevQty
	ln.version++
}

// dropLine removes an optimistically appended line after a failed add.
func (s *Store) dropLine(gen uint64, productID uuid.UUID, version uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.generation != gen {
		return
	}
	ln, idx := s.findByProduct(productID)
	if ln == nil || ln.version != version {
		return
	}
	s.lines = append(s.lines[:idx], s.lines[idx+1:]...)
}

// reinsertLine restores a removed line at its original position.
func (s *Store) reinsertLine(gen uint64, removed line, idx int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.generation != gen {
		return
	}
	restored := removed
	restored.version++
	if idx > len(s.lines) {
		idx = len(s.lines)
	}
	s.lines = append(s.lines[:idx], append([]*line{&restored}, s.lines[idx:]...)...)
}

// reconcileLine adopts the server's view of a line (notably the
// server-assigned ID for a pending add). A response older than the line's
// current version, or from before a wholesale replacement, is discarded.
func (s *Store) reconcileLine(gen uint64, productID uuid.UUID, version uint64, resp domain.CartLine) domain.CartLine {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.generation != gen {
		return resp
	}
	ln, _ := s.findByProduct(productID)
	if ln == nil || ln.version != version {
		return resp
	}
	if resp.ID != "" {
		ln.id = resp.ID
	}
	return domain.CartLine{ID: ln.id, Product: ln.product, Quantity: ln.quantity}
}

// snapshotToDisk persists the current cart after successful
// reconciliation. Best effort; the remote cart remains authoritative.
func (s *Store) snapshotToDisk(ctx context.Context) {
	if s.persist == nil {
		return
	}

	data, err := json.Marshal(s.Snapshot())
	if err != nil {
		return
	}
	_ = s.persist.Put(ctx, statestore.KeyCartSnapshot, data)
}
