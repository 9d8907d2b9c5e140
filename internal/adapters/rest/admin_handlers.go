package rest

import (
	"net/http"

	"property-catalog/internal/contextkeys"
	"property-catalog/internal/core/domain"
	"property-catalog/internal/core/port"
	"property-catalog/internal/core/port/usecases_port"

	"github.com/go-chi/chi/v5"
)

// AdminHandler exposes the per-category CRUD controller.
type AdminHandler struct {
	adminUC usecases_port.AdminCatalogUseCase
}

func NewAdminHandler(adminUC usecases_port.AdminCatalogUseCase) *AdminHandler {
	return &AdminHandler{adminUC: adminUC}
}

// controller resolves {category}; it writes the error itself.
func (h *AdminHandler) controller(w http.ResponseWriter, r *http.Request, handler string) (usecases_port.AdminListingsUseCase, port.LoggerPort, bool) {
	raw := chi.URLParam(r, "category")
	logger := contextkeys.LoggerFromContext(r.Context()).WithFields(port.Fields{
		"handler":  handler,
		"category": raw,
	})
	category, err := domain.ParseCategory(raw)
	if err != nil {
		WriteJSONError(w, http.StatusBadRequest, err.Error())
		return nil, logger, false
	}
	uc, err := h.adminUC.For(category)
	if err != nil {
		WriteDomainError(w, err)
		return nil, logger, false
	}
	return uc, logger, true
}

func listingIDParam(w http.ResponseWriter, r *http.Request) (domain.ListingID, bool) {
	id, err := domain.NormalizeListingID(chi.URLParam(r, "id"))
	if err != nil {
		WriteJSONError(w, http.StatusBadRequest, err.Error())
		return "", false
	}
	return id, true
}

// List handles GET /api/v1/admin/{category}/listings.
func (h *AdminHandler) List(w http.ResponseWriter, r *http.Request) {
	uc, logger, ok := h.controller(w, r, "AdminList")
	if !ok {
		return
	}
	query, err := parseListingQuery(r)
	if err != nil {
		WriteJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	page, err := uc.List(r.Context(), query)
	if err != nil {
		logger.Error("Admin list failed", err, nil)
		WriteDomainError(w, err)
		return
	}
	RespondWithJSON(w, http.StatusOK, toListingPageResponse(page))
}

// Get handles GET /api/v1/admin/{category}/listings/{id}.
func (h *AdminHandler) Get(w http.ResponseWriter, r *http.Request) {
	uc, logger, ok := h.controller(w, r, "AdminGet")
	if !ok {
		return
	}
	id, ok := listingIDParam(w, r)
	if !ok {
		return
	}
	listing, err := uc.Get(r.Context(), id)
	if err != nil {
		logger.Warn("Admin get failed", port.Fields{"listing_id": id, "error": err.Error()})
		WriteDomainError(w, err)
		return
	}
	RespondWithJSON(w, http.StatusOK, toListingResponse(*listing))
}

// Create handles POST /api/v1/admin/{category}/listings.
func (h *AdminHandler) Create(w http.ResponseWriter, r *http.Request) {
	uc, logger, ok := h.controller(w, r, "AdminCreate")
	if !ok {
		return
	}
	var req ListingDraftRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		WriteJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := uc.Create(r.Context(), req.toDomain())
	if err != nil {
		logger.Warn("Admin create failed", port.Fields{"error": err.Error()})
		WriteDomainError(w, err)
		return
	}
	RespondWithJSON(w, http.StatusCreated, toMutationResponse(res))
}

// Update handles PUT /api/v1/admin/{category}/listings/{id}.
func (h *AdminHandler) Update(w http.ResponseWriter, r *http.Request) {
	uc, logger, ok := h.controller(w, r, "AdminUpdate")
	if !ok {
		return
	}
	id, ok := listingIDParam(w, r)
	if !ok {
		return
	}
	var req ListingDraftRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		WriteJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := uc.Update(r.Context(), id, req.toDomain())
	if err != nil {
		logger.Warn("Admin update failed", port.Fields{"listing_id": id, "error": err.Error()})
		WriteDomainError(w, err)
		return
	}
	RespondWithJSON(w, http.StatusOK, toMutationResponse(res))
}

// RequestDelete handles POST /api/v1/admin/{category}/listings/{id}/delete-request.
func (h *AdminHandler) RequestDelete(w http.ResponseWriter, r *http.Request) {
	uc, logger, ok := h.controller(w, r, "AdminRequestDelete")
	if !ok {
		return
	}
	id, ok := listingIDParam(w, r)
	if !ok {
		return
	}
	conf, err := uc.RequestDelete(r.Context(), id)
	if err != nil {
		logger.Warn("Delete request failed", port.Fields{"listing_id": id, "error": err.Error()})
		WriteDomainError(w, err)
		return
	}
	RespondWithJSON(w, http.StatusOK, DeleteConfirmationResponse{
		Token:     conf.Token,
		ListingID: conf.ListingID,
		Title:     conf.Title,
		ExpiresAt: conf.ExpiresAt,
	})
}

// ConfirmDelete handles POST /api/v1/admin/{category}/delete-requests/{token}/confirm.
func (h *AdminHandler) ConfirmDelete(w http.ResponseWriter, r *http.Request) {
	uc, logger, ok := h.controller(w, r, "AdminConfirmDelete")
	if !ok {
		return
	}
	res, err := uc.ConfirmDelete(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		logger.Warn("Delete confirmation failed", port.Fields{"error": err.Error()})
		WriteDomainError(w, err)
		return
	}
	RespondWithJSON(w, http.StatusOK, toMutationResponse(res))
}

// CancelDelete handles DELETE /api/v1/admin/{category}/delete-requests/{token}.
func (h *AdminHandler) CancelDelete(w http.ResponseWriter, r *http.Request) {
	uc, _, ok := h.controller(w, r, "AdminCancelDelete")
	if !ok {
		return
	}
	if !uc.CancelDelete(chi.URLParam(r, "token")) {
		WriteDomainError(w, domain.ErrDeleteNotRequested)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
