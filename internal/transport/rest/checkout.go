package rest

import (
	"errors"
	"net/http"

	"github.com/abgdnv/storefront/internal/cart"
	"github.com/abgdnv/storefront/internal/checkout"
	perrors "github.com/abgdnv/storefront/internal/errors"
	"github.com/abgdnv/storefront/internal/notify"
	"github.com/abgdnv/storefront/pkg/web"
)

// SummaryResponse is the checkout preview of the session cart.
type SummaryResponse struct {
	Items     []CartLine `json:"items"`
	ItemCount int        `json:"itemCount"`
	checkout.Totals
}

// OrderResponse is returned by a successful checkout.
type OrderResponse struct {
	Order         *checkout.Order       `json:"order"`
	Notifications []notify.Notification `json:"notifications"`
}

// CheckoutSummary returns the totals the session cart would be charged.
func (h *Handler) CheckoutSummary(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	var resp SummaryResponse
	_, err := h.sessions.Do(r.Context(), sessionID, func(store *cart.Store) error {
		view := newCartView(store)
		resp = SummaryResponse{Items: view.Items, ItemCount: view.ItemCount, Totals: h.checkout.Summary(store)}
		return nil
	})
	if err != nil {
		h.logger.ErrorContext(r.Context(), "Error reading cart", "error", err)
		web.RespondError(w, h.logger, http.StatusInternalServerError, "Failed to read cart")
		return
	}
	web.RespondJSON(w, h.logger, http.StatusOK, resp)
}

// PlaceOrder validates the checkout form and turns the session cart into an order.
func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	var form checkout.Form
	if !web.DecodeAndValidate(w, r, h.logger, h.validate, &form) {
		return
	}
	var order *checkout.Order
	notes, err := h.sessions.Do(r.Context(), sessionID, func(store *cart.Store) error {
		var err error
		order, err = h.checkout.PlaceOrder(r.Context(), sessionID, store, form)
		return err
	})
	if err != nil {
		if errors.Is(err, perrors.ErrEmptyCart) {
			h.logger.WarnContext(r.Context(), "Checkout with empty cart")
			web.RespondError(w, h.logger, http.StatusConflict, "Cart is empty")
			return
		}
		h.logger.ErrorContext(r.Context(), "Error placing order", "error", err)
		web.RespondError(w, h.logger, http.StatusInternalServerError, "Failed to place order")
		return
	}
	h.logger.InfoContext(r.Context(), "Order placed", "order_id", order.ID, "grand_total", order.Totals.GrandTotal.StringFixed(2))
	if notes == nil {
		notes = []notify.Notification{}
	}
	web.RespondJSON(w, h.logger, http.StatusCreated, OrderResponse{Order: order, Notifications: notes})
}

// Orders lists the orders of the session, newest first.
func (h *Handler) Orders(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	orders, err := h.checkout.Orders(r.Context(), sessionID)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "Error retrieving orders", "error", err)
		web.RespondError(w, h.logger, http.StatusInternalServerError, "Failed to fetch orders")
		return
	}
	if orders == nil {
		orders = []checkout.Order{}
	}
	web.RespondJSON(w, h.logger, http.StatusOK, orders)
}
