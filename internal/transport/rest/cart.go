package rest

import (
	"net/http"

	"github.com/abgdnv/storefront/internal/cart"
	"github.com/abgdnv/storefront/internal/catalog"
	"github.com/abgdnv/storefront/internal/notify"
	"github.com/abgdnv/storefront/pkg/web"
	"github.com/shopspring/decimal"
)

// AddItemRequest is the body of POST /cart/items. A missing or zero quantity adds one unit.
type AddItemRequest struct {
	ProductID string `json:"productId" validate:"required,max=64"`
	Quantity  int    `json:"quantity" validate:"min=0,max=1000"`
}

// SetQuantityRequest is the body of PUT /cart/items/{id}.
type SetQuantityRequest struct {
	Quantity int `json:"quantity" validate:"min=0,max=1000"`
}

type CartLine struct {
	Product   catalog.Product `json:"product"`
	Quantity  int             `json:"quantity"`
	LineTotal decimal.Decimal `json:"lineTotal"`
}

// CartView is the cart as returned by every cart endpoint, together with the
// notifications the request produced.
type CartView struct {
	Items         []CartLine            `json:"items"`
	Subtotal      decimal.Decimal       `json:"subtotal"`
	ItemCount     int                   `json:"itemCount"`
	Notifications []notify.Notification `json:"notifications"`
}

func newCartView(store *cart.Store) CartView {
	items := store.Items()
	lines := make([]CartLine, len(items))
	for i, li := range items {
		lines[i] = CartLine{Product: li.Product, Quantity: li.Quantity, LineTotal: li.Total()}
	}
	return CartView{
		Items:     lines,
		Subtotal:  store.Subtotal(),
		ItemCount: store.ItemCount(),
	}
}

// GetCart returns the cart of the session.
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	h.mutateCart(w, r, func(*cart.Store) {})
}

// AddItem adds a catalog product to the cart.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req AddItemRequest
	if !web.DecodeAndValidate(w, r, h.logger, h.validate, &req) {
		return
	}
	product, err := h.catalog.FindByID(r.Context(), req.ProductID)
	if err != nil {
		h.respondProductError(w, r, req.ProductID, err)
		return
	}
	h.mutateCart(w, r, func(store *cart.Store) {
		store.Add(r.Context(), *product, req.Quantity)
	})
}

// SetQuantity changes the quantity of a cart line. Unknown lines are left alone.
func (h *Handler) SetQuantity(w http.ResponseWriter, r *http.Request) {
	id, ok := web.ParseID(w, r, h.logger)
	if !ok {
		return
	}
	var req SetQuantityRequest
	if !web.DecodeAndValidate(w, r, h.logger, h.validate, &req) {
		return
	}
	h.mutateCart(w, r, func(store *cart.Store) {
		store.SetQuantity(r.Context(), id, req.Quantity)
	})
}

// RemoveItem removes a cart line. Unknown lines are left alone.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	id, ok := web.ParseID(w, r, h.logger)
	if !ok {
		return
	}
	h.mutateCart(w, r, func(store *cart.Store) {
		store.Remove(r.Context(), id)
	})
}

// ClearCart empties the cart.
func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	h.mutateCart(w, r, func(store *cart.Store) {
		store.Clear(r.Context())
	})
}

// mutateCart runs op against the session cart and responds with the resulting view.
func (h *Handler) mutateCart(w http.ResponseWriter, r *http.Request, op func(*cart.Store)) {
	sessionID, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	var view CartView
	notes, err := h.sessions.Do(r.Context(), sessionID, func(store *cart.Store) error {
		op(store)
		view = newCartView(store)
		return nil
	})
	if err != nil {
		h.logger.ErrorContext(r.Context(), "Error updating cart", "error", err)
		web.RespondError(w, h.logger, http.StatusInternalServerError, "Failed to update cart")
		return
	}
	view.Notifications = notes
	if view.Notifications == nil {
		view.Notifications = []notify.Notification{}
	}
	web.RespondJSON(w, h.logger, http.StatusOK, view)
}
