// Package rest exposes the storefront over HTTP.
package rest

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/abgdnv/storefront/internal/cart"
	"github.com/abgdnv/storefront/internal/catalog"
	"github.com/abgdnv/storefront/internal/checkout"
	"github.com/abgdnv/storefront/internal/notify"
	"github.com/abgdnv/storefront/pkg/web"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

// CatalogService answers product queries.
type CatalogService interface {
	FindByID(ctx context.Context, id string) (*catalog.Product, error)
	List(ctx context.Context, q catalog.Query) ([]catalog.Product, error)
	Categories(ctx context.Context) ([]string, error)
	Recommend(ctx context.Context, id string, limit int) ([]catalog.Product, error)
}

// CartSessions runs operations against the cart of a session.
type CartSessions interface {
	Do(ctx context.Context, sessionID string, fn func(*cart.Store) error) ([]notify.Notification, error)
}

// CheckoutService places orders and lists them.
type CheckoutService interface {
	Summary(store *cart.Store) checkout.Totals
	PlaceOrder(ctx context.Context, sessionID string, store *cart.Store, form checkout.Form) (*checkout.Order, error)
	Orders(ctx context.Context, sessionID string) ([]checkout.Order, error)
}

type Handler struct {
	catalog  CatalogService
	sessions CartSessions
	checkout CheckoutService
	validate *validator.Validate
	logger   *slog.Logger
}

// NewHandler creates a new Handler with the provided services.
func NewHandler(catalog CatalogService, sessions CartSessions, checkoutSvc CheckoutService, logger *slog.Logger) *Handler {
	return &Handler{
		catalog:  catalog,
		sessions: sessions,
		checkout: checkoutSvc,
		validate: checkout.NewValidator(),
		logger:   logger.With("component", "rest"),
	}
}

// RegisterRoutes registers the storefront routes. sessionMW resolves the cart session
// and wraps every route that touches a cart.
func (h *Handler) RegisterRoutes(r chi.Router, sessionMW func(http.Handler) http.Handler) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/products", func(r chi.Router) {
			r.Get("/", h.ListProducts)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.FindProduct)
				r.Get("/recommendations", h.Recommendations)
			})
		})
		r.Route("/categories", func(r chi.Router) {
			r.Get("/", h.Categories)
			r.Get("/{name}/products", h.CategoryProducts)
		})

		r.Group(func(r chi.Router) {
			r.Use(sessionMW)
			r.Route("/cart", func(r chi.Router) {
				r.Get("/", h.GetCart)
				r.Delete("/", h.ClearCart)
				r.Post("/items", h.AddItem)
				r.Route("/items/{id}", func(r chi.Router) {
					r.Put("/", h.SetQuantity)
					r.Delete("/", h.RemoveItem)
				})
			})
			r.Get("/checkout/summary", h.CheckoutSummary)
			r.Post("/checkout", h.PlaceOrder)
			r.Get("/orders", h.Orders)
		})
	})

	r.Get("/healthz", h.HealthCheck)
}

// HealthCheck is a simple health check endpoint.
func (h *Handler) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// sessionID returns the cart session resolved by the session middleware.
// It writes a 500 response when the middleware is missing.
func (h *Handler) sessionID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, ok := web.GetSessionID(r.Context())
	if !ok {
		h.logger.ErrorContext(r.Context(), "No cart session in request context")
		web.RespondError(w, h.logger, http.StatusInternalServerError, "Cart session is not available")
		return "", false
	}
	return id, true
}
