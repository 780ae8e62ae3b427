package httppresentation

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	appCatalog "github.com/mossvale/marketplace/internal/application/catalog"
	appCheckout "github.com/mossvale/marketplace/internal/application/checkout"
	appIdentity "github.com/mossvale/marketplace/internal/application/identity"
	appReset "github.com/mossvale/marketplace/internal/application/passwordreset"
	domainCatalog "github.com/mossvale/marketplace/internal/domain/catalog"
	domainIdentity "github.com/mossvale/marketplace/internal/domain/identity"
	domainOrder "github.com/mossvale/marketplace/internal/domain/order"
	domainSession "github.com/mossvale/marketplace/internal/domain/session"
	"github.com/mossvale/marketplace/internal/infrastructure/sqlite"
)

type IDGenerator interface {
	NewID() string
}

type Handler struct {
	identity *appIdentity.Service
	catalog  *appCatalog.Service
	checkout *appCheckout.Service
	reset    *appReset.Service
	sessions domainSession.Repository
	idGen    IDGenerator
	log      *zap.Logger
}

func NewHandler(
	identitySvc *appIdentity.Service,
	catalogSvc *appCatalog.Service,
	checkoutSvc *appCheckout.Service,
	resetSvc *appReset.Service,
	sessions domainSession.Repository,
	idGen IDGenerator,
	log *zap.Logger,
) *Handler {
	return &Handler{
		identity: identitySvc,
		catalog:  catalogSvc,
		checkout: checkoutSvc,
		reset:    resetSvc,
		sessions: sessions,
		idGen:    idGen,
		log:      log.With(zap.String("component", "http_server")),
	}
}

func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(h.withRequestLogger)
	r.Use(h.withSession)

	r.Get("/health", h.handleHealth)

	r.Post("/register", h.handleRegister)
	r.Post("/login", h.handleLogin)
	r.Post("/logout", h.handleLogout)

	r.Get("/products", h.handleProductList)
	r.Get("/products/{productID}", h.handleProductDetail)

	r.Get("/cart", h.handleCartView)
	r.Post("/cart/add/{productID}", h.handleCartAdd)
	r.Post("/cart/remove/{productID}", h.handleCartRemove)
	r.Post("/checkout", h.handleCheckout)
	r.Post("/reviews/{productID}", h.handleReviewAdd)

	r.Route("/vendor", func(r chi.Router) {
		r.Get("/stores", h.handleStoreList)
		r.Post("/stores", h.handleStoreCreate)
		r.Put("/stores/{storeID}", h.handleStoreRename)
		r.Delete("/stores/{storeID}", h.handleStoreDelete)
		r.Post("/stores/{storeID}/products", h.handleProductCreate)
		r.Put("/products/{productID}", h.handleProductUpdate)
		r.Delete("/products/{productID}", h.handleProductDelete)
	})

	r.Post("/forgot-password", h.handleForgotPassword)
	r.Get("/reset-password/{token}", h.handleResetPage)
	r.Post("/reset-password/confirm", h.handleResetConfirm)

	return r
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- identity ---

type registerRequest struct {
	Username    string `json:"username"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	AccountType string `json:"account_type"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	user, err := h.identity.Register(r.Context(), appIdentity.RegisterInput{
		Username:    req.Username,
		Email:       req.Email,
		Password:    req.Password,
		AccountType: req.AccountType,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	h.bindUser(r, user.ID)
	writeJSON(w, http.StatusCreated, map[string]string{"user_id": user.ID})
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	user, err := h.identity.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	h.bindUser(r, user.ID)
	writeJSON(w, http.StatusOK, map[string]string{"user_id": user.ID})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	if sess != nil {
		_ = h.sessions.Delete(r.Context(), sess.ID)
	}
	http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: "", Path: "/", MaxAge: -1})
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) bindUser(r *http.Request, userID string) {
	sess := sessionFrom(r.Context())
	if sess == nil {
		return
	}
	sess.UserID = userID
	_ = h.sessions.Save(r.Context(), sess)
}

// currentUser resolves the authenticated identity for the session.
func (h *Handler) currentUser(r *http.Request) (*domainIdentity.User, *domainSession.Session, error) {
	sess := sessionFrom(r.Context())
	if sess == nil || !sess.Authenticated() {
		return nil, sess, errAuthRequired
	}
	user, err := h.identity.UserByID(r.Context(), sess.UserID)
	if err != nil {
		return nil, sess, errAuthRequired
	}
	return user, sess, nil
}

// --- browsing ---

type productView struct {
	ID          string `json:"id"`
	StoreID     string `json:"store_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Price       string `json:"price"`
	StockQty    int    `json:"stock_qty"`
}

func toProductView(p *domainCatalog.Product) productView {
	return productView{
		ID:          p.ID,
		StoreID:     p.StoreID,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price.StringFixed(2),
		StockQty:    p.StockQty,
	}
}

func (h *Handler) handleProductList(w http.ResponseWriter, r *http.Request) {
	products, err := h.catalog.ActiveProducts(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	views := make([]productView, 0, len(products))
	for _, p := range products {
		views = append(views, toProductView(p))
	}
	writeJSON(w, http.StatusOK, map[string]any{"products": views})
}

func (h *Handler) handleProductDetail(w http.ResponseWriter, r *http.Request) {
	detail, err := h.catalog.ProductDetail(r.Context(), chi.URLParam(r, "productID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	type reviewView struct {
		Rating   int    `json:"rating"`
		Comment  string `json:"comment,omitempty"`
		Verified bool   `json:"verified"`
	}
	reviews := make([]reviewView, 0, len(detail.Reviews))
	for _, rev := range detail.Reviews {
		reviews = append(reviews, reviewView{Rating: rev.Rating, Comment: rev.Comment, Verified: rev.Verified})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"product":    toProductView(detail.Product),
		"store_name": detail.Store.Name,
		"reviews":    reviews,
	})
}

// --- cart ---

func (h *Handler) handleCartAdd(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productID")
	if _, err := h.catalog.Product(r.Context(), productID); err != nil {
		writeDomainError(w, err)
		return
	}

	sess := sessionFrom(r.Context())
	sess.Cart.Add(productID)
	if err := h.sessions.Save(r.Context(), sess); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"quantity": sess.Cart.Quantity(productID)})
}

func (h *Handler) handleCartRemove(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	sess.Cart.Remove(chi.URLParam(r, "productID"))
	if err := h.sessions.Save(r.Context(), sess); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleCartView(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())

	type cartLine struct {
		Product   productView `json:"product"`
		Quantity  int         `json:"quantity"`
		LineTotal string      `json:"line_total"`
	}
	lines := make([]cartLine, 0, len(sess.Cart))
	total := decimal.Zero

	for _, line := range sess.Cart.Lines() {
		product, err := h.catalog.Product(r.Context(), line.ProductID)
		if err != nil {
			// Stale cart entry for a product that vanished; skip it.
			continue
		}
		lineTotal := product.Price.Mul(decimal.NewFromInt(int64(line.Quantity)))
		total = total.Add(lineTotal)
		lines = append(lines, cartLine{
			Product:   toProductView(product),
			Quantity:  line.Quantity,
			LineTotal: lineTotal.StringFixed(2),
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"items": lines,
		"total": total.StringFixed(2),
	})
}

// --- checkout ---

type orderItemView struct {
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	StoreName   string `json:"store_name"`
	Quantity    int    `json:"quantity"`
	UnitPrice   string `json:"unit_price"`
	LineTotal   string `json:"line_total"`
}

func toOrderView(o *domainOrder.Order) map[string]any {
	items := make([]orderItemView, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, orderItemView{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			StoreName:   item.StoreName,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice.StringFixed(2),
			LineTotal:   item.LineTotal().StringFixed(2),
		})
	}
	return map[string]any{
		"order_id":    o.ID,
		"created_at":  o.CreatedAt,
		"items":       items,
		"grand_total": o.GrandTotal().StringFixed(2),
	}
}

func (h *Handler) handleCheckout(w http.ResponseWriter, r *http.Request) {
	user, sess, err := h.currentUser(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}

	placed, err := h.checkout.Checkout(r.Context(), user, sess)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toOrderView(placed))
}

// --- reviews ---

type reviewRequest struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

func (h *Handler) handleReviewAdd(w http.ResponseWriter, r *http.Request) {
	user, _, err := h.currentUser(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}

	var req reviewRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	review, err := h.catalog.AddReview(r.Context(), user, chi.URLParam(r, "productID"), req.Rating, req.Comment)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"review_id": review.ID,
		"verified":  review.Verified,
	})
}

// --- vendor CRUD ---

type storeRequest struct {
	Name string `json:"name"`
}

func (h *Handler) handleStoreList(w http.ResponseWriter, r *http.Request) {
	user, _, err := h.currentUser(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}
	stores, err := h.catalog.StoresByOwner(r.Context(), user)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	type storeView struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	views := make([]storeView, 0, len(stores))
	for _, st := range stores {
		views = append(views, storeView{ID: st.ID, Name: st.Name})
	}
	writeJSON(w, http.StatusOK, map[string]any{"stores": views})
}

func (h *Handler) handleStoreCreate(w http.ResponseWriter, r *http.Request) {
	user, _, err := h.currentUser(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}
	var req storeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	store, err := h.catalog.CreateStore(r.Context(), user, req.Name)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"store_id": store.ID})
}

func (h *Handler) handleStoreRename(w http.ResponseWriter, r *http.Request) {
	user, _, err := h.currentUser(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}
	var req storeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := h.catalog.RenameStore(r.Context(), user, chi.URLParam(r, "storeID"), req.Name); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleStoreDelete(w http.ResponseWriter, r *http.Request) {
	user, _, err := h.currentUser(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}
	if err := h.catalog.DeleteStore(r.Context(), user, chi.URLParam(r, "storeID")); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type productRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Price       string `json:"price"`
	StockQty    int    `json:"stock_qty"`
	Active      *bool  `json:"active,omitempty"`
}

func (req productRequest) toInput() (appCatalog.ProductInput, error) {
	price, err := decimal.NewFromString(req.Price)
	if err != nil {
		return appCatalog.ProductInput{}, err
	}
	active := true
	if req.Active != nil {
		active = *req.Active
	}
	return appCatalog.ProductInput{
		Name:        req.Name,
		Description: req.Description,
		Price:       price,
		StockQty:    req.StockQty,
		Active:      active,
	}, nil
}

func (h *Handler) handleProductCreate(w http.ResponseWriter, r *http.Request) {
	user, _, err := h.currentUser(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}
	var req productRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	input, err := req.toInput()
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	product, err := h.catalog.CreateProduct(r.Context(), user, chi.URLParam(r, "storeID"), input)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"product_id": product.ID})
}

func (h *Handler) handleProductUpdate(w http.ResponseWriter, r *http.Request) {
	user, _, err := h.currentUser(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}
	var req productRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	input, err := req.toInput()
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	product, err := h.catalog.UpdateProduct(r.Context(), user, chi.URLParam(r, "productID"), input)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toProductView(product))
}

func (h *Handler) handleProductDelete(w http.ResponseWriter, r *http.Request) {
	user, _, err := h.currentUser(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}
	if err := h.catalog.DeleteProduct(r.Context(), user, chi.URLParam(r, "productID")); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- password reset ---

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

// handleForgotPassword always acknowledges uniformly so responses do not
// reveal whether an account exists.
func (h *Handler) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if err := h.reset.Issue(r.Context(), req.Email); err != nil {
		if !errors.Is(err, domainIdentity.ErrUnknownEmail) {
			writeDomainError(w, err)
			return
		}
		// Unknown email falls through to the generic acknowledgment.
	}
	writeJSON(w, http.StatusAccepted, map[string]string{
		"message": "If that email is registered, a reset link has been sent.",
	})
}

func (h *Handler) handleResetPage(w http.ResponseWriter, r *http.Request) {
	binding, err := h.reset.BeginRedeem(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]any{"valid": false})
		return
	}

	sess := sessionFrom(r.Context())
	sess.Reset = binding
	if err := h.sessions.Save(r.Context(), sess); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"valid": true})
}

type resetConfirmRequest struct {
	Password     string `json:"password"`
	Confirmation string `json:"password_confirmation"`
}

func (h *Handler) handleResetConfirm(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	if sess.Reset == nil {
		writeError(w, http.StatusBadRequest, domainIdentity.ErrInvalidToken)
		return
	}

	var req resetConfirmRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	err := h.reset.CompleteRedeem(r.Context(), sess.Reset, req.Password, req.Confirmation)
	if errors.Is(err, domainIdentity.ErrPasswordMismatch) {
		// The binding stays valid so the caller can retry the form.
		writeDomainError(w, err)
		return
	}
	// Any other outcome, success or terminal failure, tears the binding down.
	sess.Reset = nil
	_ = h.sessions.Save(r.Context(), sess)

	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Password updated."})
}

// --- JSON plumbing ---

func decodeJSON(r *http.Request, dst any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// writeDomainError maps application errors onto HTTP statuses with a
// structured reason, including the offending product where applicable.
func writeDomainError(w http.ResponseWriter, err error) {
	var (
		unavailable  *domainCatalog.ProductUnavailableError
		insufficient *domainCatalog.InsufficientStockError
	)
	switch {
	case errors.As(err, &insufficient):
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":        "insufficient_stock",
			"product_id":   insufficient.ProductID,
			"product_name": insufficient.ProductName,
			"requested":    insufficient.Requested,
			"available":    insufficient.Available,
		})
	case errors.As(err, &unavailable):
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":      "product_unavailable",
			"product_id": unavailable.ProductID,
		})
	case errors.Is(err, appCheckout.ErrEmptyCart):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "empty_cart"})
	case errors.Is(err, domainIdentity.ErrForbidden),
		errors.Is(err, domainCatalog.ErrNotOwner):
		writeError(w, http.StatusForbidden, err)
	case errors.Is(err, appIdentity.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, err)
	case errors.Is(err, domainIdentity.ErrUsernameTaken),
		errors.Is(err, appIdentity.ErrCredentialsRequired),
		errors.Is(err, appIdentity.ErrInvalidAccountType),
		errors.Is(err, domainIdentity.ErrPasswordMismatch),
		errors.Is(err, domainCatalog.ErrNameRequired),
		errors.Is(err, domainCatalog.ErrInvalidPrice),
		errors.Is(err, domainCatalog.ErrInvalidStock):
		writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, domainIdentity.ErrInvalidToken),
		errors.Is(err, domainIdentity.ErrTokenExpired),
		errors.Is(err, domainIdentity.ErrAlreadyUsed):
		writeError(w, http.StatusGone, err)
	case errors.Is(err, domainCatalog.ErrProductNotFound),
		errors.Is(err, domainCatalog.ErrStoreNotFound),
		errors.Is(err, domainOrder.ErrNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, sqlite.ErrTransient):
		writeError(w, http.StatusServiceUnavailable, err)
	default:
		writeError(w, http.StatusInternalServerError, err)
	}
}
