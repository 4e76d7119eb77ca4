package cart_test

import (
	"net/http"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/quickbasket/storefront-go/cart"
	"github.com/quickbasket/storefront-go/client"
	"github.com/quickbasket/storefront-go/domain"
	"github.com/quickbasket/storefront-go/statestore"
	"github.com/quickbasket/storefront-go/storefronttest"
)

type cartStoreSuite struct {
	suite.Suite

	backend *storefronttest.Server
	persist *statestore.Store
	api     *client.Client
	store   *cart.Store

	apple domain.Product
	bread domain.Product
}

func TestCartStoreSuite(t *testing.T) {
	suite.Run(t, new(cartStoreSuite))
}

// before each test: a fresh backend with a signed-in user and an empty cart
func (s *cartStoreSuite) SetupTest() {
	s.backend = storefronttest.New()
	s.backend.SeedDefaults()
	baseURL := s.backend.Start()

	token, err := s.backend.IssueToken(storefronttest.TestUserEmail)
	s.Require().NoError(err)

	s.persist, err = statestore.Open(filepath.Join(s.T().TempDir(), "state.db"))
	s.Require().NoError(err)

	s.api, err = client.New(client.Config{
		BaseURL:     baseURL,
		Timeout:     5 * time.Second,
		TokenSource: func() string { return token },
	})
	s.Require().NoError(err)

	s.store, err = cart.New(cart.Config{API: s.api, Persist: s.persist})
	s.Require().NoError(err)

	s.apple, err = s.api.Product(s.T().Context(), storefronttest.ProductAppleID)
	s.Require().NoError(err)
	s.bread, err = s.api.Product(s.T().Context(), storefronttest.ProductBreadID)
	s.Require().NoError(err)
}

func (s *cartStoreSuite) TearDownTest() {
	_ = s.persist.Close()
	s.backend.Close()
}

func (s *cartStoreSuite) serverCart() domain.Cart {
	remote, err := s.api.GetCart(s.T().Context())
	s.Require().NoError(err)
	return remote
}

func (s *cartStoreSuite) TestAddItem_NewLineAdoptsServerID() {
	line, err := s.store.AddItem(s.T().Context(), s.apple, 2)

	s.Require().NoError(err)
	s.False(line.Pending(), "reconciled line must carry the server-assigned ID")
	s.Equal(2, line.Quantity)

	snapshot := s.store.Snapshot()
	s.Require().Len(snapshot.Lines, 1)
	s.Equal(line.ID, snapshot.Lines[0].ID)

	remote := s.serverCart()
	s.Require().Len(remote.Lines, 1)
	s.Equal(line.ID, remote.Lines[0].ID)
}

func (s *cartStoreSuite) TestAddItem_FailureRollsBack() {
	s.backend.FailNext(1, http.StatusInternalServerError)

	_, err := s.store.AddItem(s.T().Context(), s.apple, 1)

	s.True(client.IsServer(err), "got %v", err)
	s.Zero(s.store.ItemCount(), "failed add must leave no trace locally")
	s.Empty(s.serverCart().Lines)
}

func (s *cartStoreSuite) TestAddItem_ExistingLineIncrements() {
	ctx := s.T().Context()

	first, err := s.store.AddItem(ctx, s.apple, 1)
	s.Require().NoError(err)

	second, err := s.store.AddItem(ctx, s.apple, 3)
	s.Require().NoError(err)

	s.Equal(first.ID, second.ID, "same product folds into one line")
	s.Equal(4, second.Quantity)
	s.Equal(4, s.store.ItemCount())
	s.Len(s.store.Snapshot().Lines, 1)
}

func (s *cartStoreSuite) TestAddItem_IncrementFailureRestoresQuantity() {
	ctx := s.T().Context()

	_, err := s.store.AddItem(ctx, s.apple, 2)
	s.Require().NoError(err)

	s.backend.FailNext(1, http.StatusInternalServerError)
	_, err = s.store.AddItem(ctx, s.apple, 5)

	s.Error(err)
	s.Equal(2, s.store.ItemCount(), "failed increment must restore the prior quantity")
}

func (s *cartStoreSuite) TestAddItem_InvalidQuantity() {
	for _, qty := range []int{0, -5} {
		_, err := s.store.AddItem(s.T().Context(), s.apple, qty)
		s.ErrorIs(err, cart.ErrInvalidQuantity, "quantity %d", qty)
	}
	s.Zero(s.store.ItemCount())
}

func (s *cartStoreSuite) TestAddItem_StockRejectionRollsBack() {
	// Bread has 8 in stock; the server rejects 9 as a validation error.
	_, err := s.store.AddItem(s.T().Context(), s.bread, 9)

	s.True(client.IsValidation(err), "got %v", err)
	s.Zero(s.store.ItemCount())
}

func (s *cartStoreSuite) TestUpdateQuantity() {
	ctx := s.T().Context()
	line, err := s.store.AddItem(ctx, s.apple, 1)
	s.Require().NoError(err)

	s.Require().NoError(s.store.UpdateQuantity(ctx, line.ID, 7))

	s.Equal(7, s.store.ItemCount())
	remote := s.serverCart()
	s.Require().Len(remote.Lines, 1)
	s.Equal(7, remote.Lines[0].Quantity)
}

func (s *cartStoreSuite) TestUpdateQuantity_ZeroRemovesLine() {
	ctx := s.T().Context()
	line, err := s.store.AddItem(ctx, s.apple, 3)
	s.Require().NoError(err)

	s.Require().NoError(s.store.UpdateQuantity(ctx, line.ID, 0))

	s.Zero(s.store.ItemCount())
	s.Empty(s.serverCart().Lines)
}

func (s *cartStoreSuite) TestUpdateQuantity_NegativeRemovesLine() {
	ctx := s.T().Context()
	line, err := s.store.AddItem(ctx, s.apple, 3)
	s.Require().NoError(err)

	s.Require().NoError(s.store.UpdateQuantity(ctx, line.ID, -2))
	s.Zero(s.store.ItemCount())
}

func (s *cartStoreSuite) TestUpdateQuantity_FailureRestoresPrior() {
	ctx := s.T().Context()
	line, err := s.store.AddItem(ctx, s.apple, 2)
	s.Require().NoError(err)

	s.backend.FailNext(1, http.StatusInternalServerError)
	err = s.store.UpdateQuantity(ctx, line.ID, 9)

	s.Error(err)
	s.Equal(2, s.store.ItemCount(), "failed update must restore the prior quantity")
}

func (s *cartStoreSuite) TestUpdateQuantity_UnknownLine() {
	err := s.store.UpdateQuantity(s.T().Context(), "line-999", 2)
	s.ErrorIs(err, cart.ErrLineNotFound)
}

func (s *cartStoreSuite) TestRemoveItem() {
	ctx := s.T().Context()
	line, err := s.store.AddItem(ctx, s.apple, 1)
	s.Require().NoError(err)

	s.Require().NoError(s.store.RemoveItem(ctx, line.ID))

	s.Zero(s.store.ItemCount())
	s.Empty(s.serverCart().Lines)
}

func (s *cartStoreSuite) TestRemoveItem_FailureReinsertsAtPosition() {
	ctx := s.T().Context()
	_, err := s.store.AddItem(ctx, s.apple, 1)
	s.Require().NoError(err)
	breadLine, err := s.store.AddItem(ctx, s.bread, 1)
	s.Require().NoError(err)
	_, err = s.store.AddItem(ctx, s.apple, 1) // apple back to front position, qty 2
	s.Require().NoError(err)

	s.backend.FailNext(1, http.StatusInternalServerError)
	err = s.store.RemoveItem(ctx, breadLine.ID)

	s.Error(err)
	snapshot := s.store.Snapshot()
	s.Require().Len(snapshot.Lines, 2)
	s.Equal(breadLine.ID, snapshot.Lines[1].ID, "failed removal must restore the line at its original position")
}

func (s *cartStoreSuite) TestRemoveItem_ServerNotFoundKeepsRemoval() {
	ctx := s.T().Context()
	line, err := s.store.AddItem(ctx, s.apple, 1)
	s.Require().NoError(err)

	// The line vanished server-side (cleared from another device).
	s.Require().NoError(s.api.RemoveCartItem(ctx, line.ID))

	err = s.store.RemoveItem(ctx, line.ID)

	// Local and remote agree the line is gone; the removal sticks, but
	// the caller still learns the states had diverged.
	s.True(client.IsNotFound(err), "got %v", err)
	s.Zero(s.store.ItemCount())
}

func (s *cartStoreSuite) TestClearCart() {
	ctx := s.T().Context()
	_, err := s.store.AddItem(ctx, s.apple, 2)
	s.Require().NoError(err)
	_, err = s.store.AddItem(ctx, s.bread, 1)
	s.Require().NoError(err)

	s.Require().NoError(s.store.ClearCart(ctx))

	s.Zero(s.store.ItemCount())
	s.Empty(s.serverCart().Lines)
}

func (s *cartStoreSuite) TestClearCart_FailureReloadsAuthoritative() {
	ctx := s.T().Context()
	_, err := s.store.AddItem(ctx, s.apple, 2)
	s.Require().NoError(err)

	// The clear fails; the follow-up reload succeeds and resyncs local
	// state to the server's (unchanged) cart.
	s.backend.FailNext(1, http.StatusInternalServerError)
	err = s.store.ClearCart(ctx)

	s.Error(err)
	s.Equal(2, s.store.ItemCount(), "failed clear must resync, not keep the optimistic empty cart")
}

func (s *cartStoreSuite) TestClearCart_DoubleFailureReinstates() {
	ctx := s.T().Context()
	_, err := s.store.AddItem(ctx, s.apple, 2)
	s.Require().NoError(err)
	_, err = s.store.AddItem(ctx, s.bread, 1)
	s.Require().NoError(err)

	// Both the clear and the recovery reload fail; the reload is a GET
	// retried three times, so four requests fail in total.
	s.backend.FailNext(4, http.StatusInternalServerError)
	err = s.store.ClearCart(ctx)

	s.Error(err)
	s.Equal(3, s.store.ItemCount(), "unreachable backend must leave the pre-clear cart in place")
}

func (s *cartStoreSuite) TestLoadCart_ReplacesWholesale() {
	ctx := s.T().Context()

	// Server-side cart built behind the store's back.
	_, err := s.api.AddCartItem(ctx, s.apple.ID, 5)
	s.Require().NoError(err)

	_, err = s.store.AddItem(ctx, s.bread, 1)
	s.Require().NoError(err)

	s.Require().NoError(s.store.LoadCart(ctx))

	snapshot := s.store.Snapshot()
	s.Require().Len(snapshot.Lines, 2, "load adopts the server cart wholesale")
	s.Equal(s.serverCart().ItemCount(), snapshot.ItemCount())
}

func (s *cartStoreSuite) TestTeardown_DiscardsInFlightReconciliation() {
	ctx := s.T().Context()
	s.backend.SetDelay(100 * time.Millisecond)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = s.store.AddItem(ctx, s.apple, 1)
	}()

	// Teardown lands while the add's remote call is still in flight; the
	// late response must not resurrect the cleared cart.
	time.Sleep(20 * time.Millisecond)
	s.store.Teardown()
	wg.Wait()

	s.Zero(s.store.ItemCount(), "a stale response must never overwrite a newer wholesale replacement")
}

func (s *cartStoreSuite) TestSerialization_SameLineMutationsAreOrdered() {
	ctx := s.T().Context()
	_, err := s.store.AddItem(ctx, s.apple, 1)
	s.Require().NoError(err)

	s.backend.SetDelay(50 * time.Millisecond)

	// Two concurrent increments on the same product line; serialization
	// means both land, in some order, with no lost update.
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.store.AddItem(ctx, s.apple, 1)
			s.NoError(err)
		}()
	}
	wg.Wait()

	s.Equal(3, s.store.ItemCount())
	remote := s.serverCart()
	s.Require().Len(remote.Lines, 1)
	s.Equal(3, remote.Lines[0].Quantity)
}

func (s *cartStoreSuite) TestSnapshotPersistsAcrossRestart() {
	ctx := s.T().Context()
	line, err := s.store.AddItem(ctx, s.apple, 2)
	s.Require().NoError(err)

	// A second store over the same durable state simulates a restart.
	reopened, err := cart.New(cart.Config{API: s.api, Persist: s.persist})
	s.Require().NoError(err)

	ok, err := reopened.RestoreSnapshot(ctx)
	s.Require().NoError(err)
	s.True(ok)

	snapshot := reopened.Snapshot()
	s.Require().Len(snapshot.Lines, 1)
	s.Equal(line.ID, snapshot.Lines[0].ID)
	s.Equal(2, snapshot.Lines[0].Quantity)
}

func (s *cartStoreSuite) TestTeardown_DropsSnapshot() {
	ctx := s.T().Context()
	_, err := s.store.AddItem(ctx, s.apple, 1)
	s.Require().NoError(err)

	s.store.Teardown()

	reopened, err := cart.New(cart.Config{API: s.api, Persist: s.persist})
	s.Require().NoError(err)
	ok, err := reopened.RestoreSnapshot(ctx)
	s.NoError(err)
	s.False(ok, "teardown must drop the durable snapshot")
}

func (s *cartStoreSuite) TestSubtotal() {
	ctx := s.T().Context()
	_, err := s.store.AddItem(ctx, s.apple, 3) // 0.50 x 3 = 1.50
	s.Require().NoError(err)
	_, err = s.store.AddItem(ctx, s.bread, 2) // 4.75 x 2 = 9.50
	s.Require().NoError(err)

	s.Equal("11", s.store.Subtotal().Amount.String())
	s.Equal(5, s.store.ItemCount())
}
