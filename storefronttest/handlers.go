package storefronttest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"github.com/quickbasket/storefront-go/domain"
)

// userByID finds the account owning a user ID. Callers hold s.mu.
func (s *Server) userByID(id uuid.UUID) *account {
	for _, acct := range s.accounts {
		if acct.user.ID == id {
			return acct
		}
	}
	for _, acct := range s.oauthUsers {
		if acct.user.ID == id {
			return acct
		}
	}
	return nil
}

func (s *Server) issueTokenLocked(userID uuid.UUID) string {
	token := "tok-" + uuid.NewString()
	s.tokens[token] = userID
	return token
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var creds domain.Credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		writeValidationError(w, "malformed login payload")
		return
	}

	s.mu.Lock()
	acct, ok := s.accounts[creds.Email]
	if !ok || acct.password != creds.Password {
		s.mu.Unlock()
		// Bad credentials are a validation failure, not a 401: only an
		// expired session token signals session-invalid.
		writeValidationError(w, "invalid email or password")
		return
	}
	token := s.issueTokenLocked(acct.user.ID)
	user := acct.user
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, domain.Session{Token: token, User: user})
}

func (s *Server) handleOAuth(w http.ResponseWriter, r *http.Request) {
	var body struct {
		IDToken string `json:"idToken"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeValidationError(w, "malformed oauth payload")
		return
	}

	s.mu.Lock()
	acct, ok := s.oauthUsers[body.IDToken]
	if !ok {
		s.mu.Unlock()
		writeValidationError(w, "unknown provider token")
		return
	}
	token := s.issueTokenLocked(acct.user.ID)
	user := acct.user
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, domain.Session{Token: token, User: user})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var newUser domain.NewUser
	if err := json.NewDecoder(r.Body).Decode(&newUser); err != nil {
		writeValidationError(w, "malformed registration payload")
		return
	}
	if newUser.Email == "" {
		writeValidationError(w, "validation failed", fieldError{Field: "email", Message: "email is required"})
		return
	}
	if len(newUser.Password) < 8 {
		writeValidationError(w, "validation failed", fieldError{Field: "password", Message: "password must be at least 8 characters"})
		return
	}

	s.mu.Lock()
	if _, exists := s.accounts[newUser.Email]; exists {
		s.mu.Unlock()
		writeValidationError(w, "validation failed", fieldError{Field: "email", Message: "email is already registered"})
		return
	}
	user := domain.User{
		ID:    uuid.New(),
		Name:  newUser.Name,
		Email: newUser.Email,
	}
	s.accounts[newUser.Email] = &account{password: newUser.Password, user: user}
	s.mu.Unlock()

	writeJSON(w, http.StatusCreated, domain.RegistrationResult{UserID: user.ID, Message: "account created"})
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request, userID uuid.UUID) {
	s.mu.Lock()
	acct := s.userByID(userID)
	s.mu.Unlock()
	if acct == nil {
		writeError(w, http.StatusUnauthorized, "token expired")
		return
	}
	writeJSON(w, http.StatusOK, acct.user)
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request, userID uuid.UUID) {
	s.handleValidate(w, r, userID)
}

func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request, userID uuid.UUID) {
	pathID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeValidationError(w, "malformed user id")
		return
	}
	if pathID != userID {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}

	var patch domain.UserPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeValidationError(w, "malformed user payload")
		return
	}

	s.mu.Lock()
	acct := s.userByID(userID)
	if acct == nil {
		s.mu.Unlock()
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	acct.user = patch.Apply(acct.user)
	updated := acct.user
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request, userID uuid.UUID) {
	var body struct {
		CurrentPassword string `json:"currentPassword"`
		NewPassword     string `json:"newPassword"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeValidationError(w, "malformed password payload")
		return
	}
	if len(body.NewPassword) < 8 {
		writeValidationError(w, "validation failed", fieldError{Field: "newPassword", Message: "password must be at least 8 characters"})
		return
	}

	s.mu.Lock()
	acct := s.userByID(userID)
	if acct == nil || acct.password != body.CurrentPassword {
		s.mu.Unlock()
		writeValidationError(w, "current password is incorrect")
		return
	}
	acct.password = body.NewPassword
	s.mu.Unlock()

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAddAddress(w http.ResponseWriter, r *http.Request, _ uuid.UUID) {
	var addr domain.Address
	if err := json.NewDecoder(r.Body).Decode(&addr); err != nil {
		writeValidationError(w, "malformed address payload")
		return
	}
	if addr.Line1 == "" || addr.City == "" {
		writeValidationError(w, "validation failed", fieldError{Field: "line1", Message: "street and city are required"})
		return
	}

	addr.ID = "addr-" + uuid.NewString()
	s.mu.Lock()
	s.addresses[addr.ID] = addr
	s.mu.Unlock()

	writeJSON(w, http.StatusCreated, addr)
}

func (s *Server) handleUpdateAddress(w http.ResponseWriter, r *http.Request, _ uuid.UUID) {
	id := mux.Vars(r)["id"]

	var addr domain.Address
	if err := json.NewDecoder(r.Body).Decode(&addr); err != nil {
		writeValidationError(w, "malformed address payload")
		return
	}
	addr.ID = id

	s.mu.Lock()
	_, ok := s.addresses[id]
	if ok {
		s.addresses[id] = addr
	}
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "address not found")
		return
	}
	writeJSON(w, http.StatusOK, addr)
}

func (s *Server) handleDeleteAddress(w http.ResponseWriter, r *http.Request, _ uuid.UUID) {
	id := mux.Vars(r)["id"]

	s.mu.Lock()
	_, ok := s.addresses[id]
	delete(s.addresses, id)
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "address not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetCart(w http.ResponseWriter, r *http.Request, userID uuid.UUID) {
	s.mu.Lock()
	rows := s.carts[userID]
	lines := make([]domain.CartLine, 0, len(rows))
	for _, row := range rows {
		lines = append(lines, domain.CartLine{ID: row.id, Product: row.product, Quantity: row.quantity})
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, domain.Cart{Lines: lines})
}

func (s *Server) handleAddItem(w http.ResponseWriter, r *http.Request, userID uuid.UUID) {
	var body struct {
		ProductID uuid.UUID `json:"productId"`
		Quantity  int       `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeValidationError(w, "malformed cart payload")
		return
	}
	if body.Quantity < 1 {
		writeValidationError(w, "validation failed", fieldError{Field: "quantity", Message: "quantity must be at least 1"})
		return
	}

	s.mu.Lock()
	product, ok := s.productByID(body.ProductID)
	if !ok {
		s.mu.Unlock()
		writeError(w, http.StatusNotFound, "product not found")
		return
	}
	if body.Quantity > product.StockQuantity {
		s.mu.Unlock()
		writeValidationError(w, "validation failed", fieldError{Field: "quantity", Message: "quantity exceeds available stock"})
		return
	}

	// If the product is already in the cart, fold the add into the
	// existing line instead of duplicating it.
	for i, row := range s.carts[userID] {
		if row.product.ID == body.ProductID {
			s.carts[userID][i].quantity += body.Quantity
			line := domain.CartLine{ID: row.id, Product: row.product, Quantity: s.carts[userID][i].quantity}
			s.mu.Unlock()
			writeJSON(w, http.StatusOK, line)
			return
		}
	}

	s.nextLine++
	row := cartRow{
		id:       fmt.Sprintf("line-%d", s.nextLine),
		product:  product,
		quantity: body.Quantity,
	}
	s.carts[userID] = append(s.carts[userID], row)
	s.mu.Unlock()

	writeJSON(w, http.StatusCreated, domain.CartLine{ID: row.id, Product: row.product, Quantity: row.quantity})
}

func (s *Server) handleUpdateItem(w http.ResponseWriter, r *http.Request, userID uuid.UUID) {
	lineID := mux.Vars(r)["id"]

	var body struct {
		Quantity int `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeValidationError(w, "malformed cart payload")
		return
	}
	if body.Quantity < 1 {
		writeValidationError(w, "validation failed", fieldError{Field: "quantity", Message: "quantity must be at least 1"})
		return
	}

	s.mu.Lock()
	for i, row := range s.carts[userID] {
		if row.id != lineID {
			continue
		}
		if body.Quantity > row.product.StockQuantity {
			s.mu.Unlock()
			writeValidationError(w, "validation failed", fieldError{Field: "quantity", Message: "quantity exceeds available stock"})
			return
		}
		s.carts[userID][i].quantity = body.Quantity
		line := domain.CartLine{ID: row.id, Product: row.product, Quantity: body.Quantity}
		s.mu.Unlock()
		writeJSON(w, http.StatusOK, line)
		return
	}
	s.mu.Unlock()

	writeError(w, http.StatusNotFound, "cart line not found")
}

func (s *Server) handleRemoveItem(w http.ResponseWriter, r *http.Request, userID uuid.UUID) {
	lineID := mux.Vars(r)["id"]

	s.mu.Lock()
	rows := s.carts[userID]
	for i, row := range rows {
		if row.id != lineID {
			continue
		}
		s.carts[userID] = append(rows[:i:i], rows[i+1:]...)
		s.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
		return
	}
	s.mu.Unlock()

	writeError(w, http.StatusNotFound, "cart line not found")
}

func (s *Server) handleClearCart(w http.ResponseWriter, r *http.Request, userID uuid.UUID) {
	s.mu.Lock()
	delete(s.carts, userID)
	s.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

// productByID returns a product from the catalog fixtures. Callers hold s.mu.
func (s *Server) productByID(id uuid.UUID) (domain.Product, bool) {
	for _, p := range s.products {
		if p.ID == id {
			return p, true
		}
	}
	return domain.Product{}, false
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	categories := append([]domain.Category(nil), s.categories...)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, categories)
}

func (s *Server) handleProducts(w http.ResponseWriter, r *http.Request) {
	categoryID, err := uuid.Parse(r.URL.Query().Get("categoryId"))
	if err != nil {
		writeValidationError(w, "malformed category id")
		return
	}

	s.mu.Lock()
	matched := make([]domain.Product, 0)
	for _, p := range s.products {
		if p.CategoryID == categoryID {
			matched = append(matched, p)
		}
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, matched)
}

func (s *Server) handleProduct(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeValidationError(w, "malformed product id")
		return
	}

	s.mu.Lock()
	product, ok := s.productByID(id)
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "product not found")
		return
	}
	writeJSON(w, http.StatusOK, product)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := strings.ToLower(r.URL.Query().Get("q"))

	s.mu.Lock()
	matched := make([]domain.Product, 0)
	for _, p := range s.products {
		if query == "" || strings.Contains(strings.ToLower(p.Name), query) {
			matched = append(matched, p)
		}
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, matched)
}

func (s *Server) handleFilter(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var categoryID uuid.UUID
	if raw := q.Get("categoryId"); raw != "" {
		parsed, err := uuid.Parse(raw)
		if err != nil {
			writeValidationError(w, "malformed category id")
			return
		}
		categoryID = parsed
	}

	var minPrice, maxPrice decimal.Decimal
	var hasMin, hasMax bool
	if raw := q.Get("minPrice"); raw != "" {
		parsed, err := decimal.NewFromString(raw)
		if err != nil {
			writeValidationError(w, "malformed minPrice")
			return
		}
		minPrice, hasMin = parsed, true
	}
	if raw := q.Get("maxPrice"); raw != "" {
		parsed, err := decimal.NewFromString(raw)
		if err != nil {
			writeValidationError(w, "malformed maxPrice")
			return
		}
		maxPrice, hasMax = parsed, true
	}
	inStockOnly := q.Get("inStockOnly") == "true"
	search := strings.ToLower(q.Get("search"))

	s.mu.Lock()
	matched := make([]domain.Product, 0)
	for _, p := range s.products {
		if categoryID != uuid.Nil && p.CategoryID != categoryID {
			continue
		}
		if hasMin && p.Price.Amount.LessThan(minPrice) {
			continue
		}
		if hasMax && p.Price.Amount.GreaterThan(maxPrice) {
			continue
		}
		if inStockOnly && p.StockQuantity < 1 {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(p.Name), search) {
			continue
		}
		matched = append(matched, p)
	}
	s.mu.Unlock()

	switch q.Get("sortBy") {
	case "price-asc":
		sort.Slice(matched, func(i, j int) bool {
			return matched[i].Price.Amount.LessThan(matched[j].Price.Amount)
		})
	case "price-desc":
		sort.Slice(matched, func(i, j int) bool {
			return matched[j].Price.Amount.LessThan(matched[i].Price.Amount)
		})
	case "name":
		sort.Slice(matched, func(i, j int) bool {
			return matched[i].Name < matched[j].Name
		})
	}

	writeJSON(w, http.StatusOK, matched)
}

func (s *Server) handlePriceRange(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.products) == 0 {
		writeJSON(w, http.StatusOK, domain.PriceRange{})
		return
	}

	min, max := s.products[0].Price, s.products[0].Price
	for _, p := range s.products[1:] {
		if p.Price.Amount.LessThan(min.Amount) {
			min = p.Price
		}
		if p.Price.Amount.GreaterThan(max.Amount) {
			max = p.Price
		}
	}
	writeJSON(w, http.StatusOK, domain.PriceRange{Min: min, Max: max})
}

func (s *Server) handleProductReviews(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeValidationError(w, "malformed product id")
		return
	}

	s.mu.Lock()
	reviews := append([]domain.Review(nil), s.reviews[id]...)
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, reviews)
}

func (s *Server) handleAddReview(w http.ResponseWriter, r *http.Request, userID uuid.UUID) {
	var review domain.Review
	if err := json.NewDecoder(r.Body).Decode(&review); err != nil {
		writeValidationError(w, "malformed review payload")
		return
	}
	if review.Rating < 1 || review.Rating > 5 {
		writeValidationError(w, "validation failed", fieldError{Field: "rating", Message: "rating must be between 1 and 5"})
		return
	}

	review.ID = uuid.New()
	review.UserID = userID

	s.mu.Lock()
	if _, ok := s.productByID(review.ProductID); !ok {
		s.mu.Unlock()
		writeError(w, http.StatusNotFound, "product not found")
		return
	}
	s.reviews[review.ProductID] = append(s.reviews[review.ProductID], review)
	s.mu.Unlock()

	writeJSON(w, http.StatusCreated, review)
}

func (s *Server) handleCreateOrder(w http.ResponseWriter, r *http.Request, userID uuid.UUID) {
	var newOrder domain.NewOrder
	if err := json.NewDecoder(r.Body).Decode(&newOrder); err != nil {
		writeValidationError(w, "malformed order payload")
		return
	}
	if len(newOrder.Lines) == 0 {
		writeValidationError(w, "validation failed", fieldError{Field: "lines", Message: "order has no lines"})
		return
	}
	if newOrder.AddressID == "" {
		writeValidationError(w, "validation failed", fieldError{Field: "addressId", Message: "delivery address is required"})
		return
	}

	var total domain.Money
	for i, line := range newOrder.Lines {
		lineTotal := line.Product.Price.Mul(line.Quantity)
		if i == 0 {
			total = lineTotal
			continue
		}
		sum, err := total.Add(lineTotal)
		if err != nil {
			writeValidationError(w, "order mixes currencies")
			return
		}
		total = sum
	}

	order := domain.Order{
		ID:        uuid.New(),
		UserID:    userID,
		Lines:     newOrder.Lines,
		Total:     total,
		Status:    domain.OrderPending,
		AddressID: newOrder.AddressID,
		CreatedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	s.orders[userID] = append(s.orders[userID], order)
	// Checkout consumes the cart.
	delete(s.carts, userID)
	s.mu.Unlock()

	writeJSON(w, http.StatusCreated, order)
}

func (s *Server) handleListOrders(w http.ResponseWriter, r *http.Request, userID uuid.UUID) {
	s.mu.Lock()
	orders := append([]domain.Order(nil), s.orders[userID]...)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, orders)
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request, userID uuid.UUID) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeValidationError(w, "malformed order id")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, order := range s.orders[userID] {
		if order.ID == id {
			writeJSON(w, http.StatusOK, order)
			return
		}
	}
	writeError(w, http.StatusNotFound, "order not found")
}
