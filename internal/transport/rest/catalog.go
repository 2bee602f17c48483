package rest

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/abgdnv/storefront/internal/catalog"
	perrors "github.com/abgdnv/storefront/internal/errors"
	"github.com/abgdnv/storefront/pkg/web"
	"github.com/go-chi/chi/v5"
)

const maxRecommendations = 20

// ListProducts lists products filtered by the search, category and sort query parameters.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	sort, ok := catalog.ParseSort(query.Get("sort"))
	if !ok {
		web.RespondError(w, h.logger, http.StatusBadRequest, fmt.Sprintf("Invalid sort: %s", query.Get("sort")))
		return
	}
	h.listProducts(w, r, catalog.Query{
		Search:   query.Get("search"),
		Category: query.Get("category"),
		Sort:     sort,
	})
}

// CategoryProducts lists the products of one category by popularity.
func (h *Handler) CategoryProducts(w http.ResponseWriter, r *http.Request) {
	h.listProducts(w, r, catalog.Query{Category: chi.URLParam(r, "name"), Sort: catalog.SortPopularity})
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request, q catalog.Query) {
	h.logger.DebugContext(r.Context(), "Received request to list products",
		"search", q.Search, "category", q.Category, "sort", q.Sort)
	list, err := h.catalog.List(r.Context(), q)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "Error retrieving product list", "error", err)
		web.RespondError(w, h.logger, http.StatusInternalServerError, "Failed to fetch products")
		return
	}
	if list == nil {
		list = []catalog.Product{}
	}
	web.RespondJSON(w, h.logger, http.StatusOK, list)
}

// FindProduct retrieves a product by its ID.
func (h *Handler) FindProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := web.ParseID(w, r, h.logger)
	if !ok {
		return
	}
	found, err := h.catalog.FindByID(r.Context(), id)
	if err != nil {
		h.respondProductError(w, r, id, err)
		return
	}
	web.RespondJSON(w, h.logger, http.StatusOK, found)
}

// Recommendations returns products related to the one in the path.
func (h *Handler) Recommendations(w http.ResponseWriter, r *http.Request) {
	id, ok := web.ParseID(w, r, h.logger)
	if !ok {
		return
	}
	limit, ok := web.ParseOptionalInt(r, w, h.logger, "limit", catalog.DefaultRecommendations, web.Between(1, maxRecommendations))
	if !ok {
		return
	}
	list, err := h.catalog.Recommend(r.Context(), id, limit)
	if err != nil {
		h.respondProductError(w, r, id, err)
		return
	}
	web.RespondJSON(w, h.logger, http.StatusOK, list)
}

// Categories lists the category names.
func (h *Handler) Categories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.catalog.Categories(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "Error retrieving categories", "error", err)
		web.RespondError(w, h.logger, http.StatusInternalServerError, "Failed to fetch categories")
		return
	}
	if categories == nil {
		categories = []string{}
	}
	web.RespondJSON(w, h.logger, http.StatusOK, categories)
}

func (h *Handler) respondProductError(w http.ResponseWriter, r *http.Request, id string, err error) {
	if errors.Is(err, perrors.ErrProductNotFound) {
		h.logger.WarnContext(r.Context(), "Product not found", "ID", id)
		web.RespondError(w, h.logger, http.StatusNotFound, fmt.Sprintf("Product with ID %s not found", id))
		return
	}
	h.logger.ErrorContext(r.Context(), "Error retrieving product", "ID", id, "error", err)
	web.RespondError(w, h.logger, http.StatusInternalServerError, fmt.Sprintf("Failed to retrieve product with ID %s", id))
}
