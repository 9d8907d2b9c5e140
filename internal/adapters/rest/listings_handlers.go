package rest

import (
	"net/http"

	"property-catalog/internal/contextkeys"
	"property-catalog/internal/core/domain"
	"property-catalog/internal/core/port"
	"property-catalog/internal/core/port/usecases_port"

	"github.com/go-chi/chi/v5"
)

// ListingsHandler serves the public catalog pages and the seller form.
type ListingsHandler struct {
	browseUC usecases_port.BrowseListingsUseCase
	adminUC  usecases_port.AdminCatalogUseCase
}

func NewListingsHandler(browseUC usecases_port.BrowseListingsUseCase, adminUC usecases_port.AdminCatalogUseCase) *ListingsHandler {
	return &ListingsHandler{browseUC: browseUC, adminUC: adminUC}
}

// Browse handles GET /api/v1/listings/{category}.
func (h *ListingsHandler) Browse(w http.ResponseWriter, r *http.Request) {
	logger := contextkeys.LoggerFromContext(r.Context()).WithFields(port.Fields{"handler": "Browse"})

	category, err := domain.ParseCategory(chi.URLParam(r, "category"))
	if err != nil {
		WriteJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	query, err := parseListingQuery(r)
	if err != nil {
		WriteJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	criteria, err := parseFilterCriteria(r, query)
	if err != nil {
		WriteJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	page, err := h.browseUC.Execute(r.Context(), category, query, criteria)
	if err != nil {
		logger.Error("Browse use case failed", err, port.Fields{"category": category})
		WriteDomainError(w, err)
		return
	}
	RespondWithJSON(w, http.StatusOK, toListingPageResponse(page))
}

// SubmitSell handles POST /api/v1/listings/sell, the "list your property" form.
func (h *ListingsHandler) SubmitSell(w http.ResponseWriter, r *http.Request) {
	logger := contextkeys.LoggerFromContext(r.Context()).WithFields(port.Fields{"handler": "SubmitSell"})

	var req ListingDraftRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		WriteJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	controller, err := h.adminUC.For(domain.CategorySell)
	if err != nil {
		logger.Error("Sell controller missing", err, nil)
		WriteDomainError(w, err)
		return
	}
	res, err := controller.Create(r.Context(), req.toDomain())
	if err != nil {
		logger.Warn("Seller submission rejected", port.Fields{"error": err.Error()})
		WriteDomainError(w, err)
		return
	}
	// The refetched page is an admin view and stays off the public route.
	if res.Listing == nil {
		RespondWithJSON(w, http.StatusCreated, ListingResponse{})
		return
	}
	RespondWithJSON(w, http.StatusCreated, toListingResponse(*res.Listing))
}

// Navigation handles GET /api/v1/nav?path=&admin=.
func Navigation(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	admin := q.Get("admin") == "true" || q.Get("admin") == "1"
	items := domain.NavigationFor(q.Get("path"), admin)

	resp := make([]NavItemResponse, len(items))
	for i, item := range items {
		resp[i] = NavItemResponse{Label: item.Label, Path: item.Path, Active: item.Active}
	}
	RespondWithJSON(w, http.StatusOK, resp)
}
