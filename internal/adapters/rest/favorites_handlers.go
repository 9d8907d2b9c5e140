package rest

import (
	"net/http"

	"property-catalog/internal/contextkeys"
	"property-catalog/internal/core/domain"
	"property-catalog/internal/core/port"
	"property-catalog/internal/core/port/usecases_port"

	"github.com/go-chi/chi/v5"
)

// FavoritesHandler serves the favorites/cart state of the calling device.
type FavoritesHandler struct {
	sessions usecases_port.FavoritesSessionsUseCase
}

func NewFavoritesHandler(sessions usecases_port.FavoritesSessionsUseCase) *FavoritesHandler {
	return &FavoritesHandler{sessions: sessions}
}

// openSession resolves the device session; it writes the error itself.
func (h *FavoritesHandler) openSession(w http.ResponseWriter, r *http.Request, handler string) (usecases_port.FavoritesSession, string, port.LoggerPort, bool) {
	deviceID, token := sessionFromContext(r.Context())
	logger := contextkeys.LoggerFromContext(r.Context()).WithFields(port.Fields{
		"handler":   handler,
		"device_id": deviceID,
	})
	session, err := h.sessions.Open(r.Context(), deviceID, token)
	if err != nil {
		logger.Warn("Failed to open favorites session", port.Fields{"error": err.Error()})
		WriteDomainError(w, err)
		return nil, "", logger, false
	}
	return session, token, logger, true
}

// List handles GET /api/v1/favorites.
func (h *FavoritesHandler) List(w http.ResponseWriter, r *http.Request) {
	session, _, _, ok := h.openSession(w, r, "ListFavorites")
	if !ok {
		return
	}
	RespondWithJSON(w, http.StatusOK, toFavoritesResponse(session.Favorites()))
}

// Sync handles POST /api/v1/favorites/sync: reconcile with the remote mirror
// again, for example after the user logged in.
func (h *FavoritesHandler) Sync(w http.ResponseWriter, r *http.Request) {
	session, token, logger, ok := h.openSession(w, r, "SyncFavorites")
	if !ok {
		return
	}
	entries := session.Load(r.Context(), token)
	logger.Info("Favorites synced", port.Fields{"count": len(entries)})
	RespondWithJSON(w, http.StatusOK, toFavoritesResponse(entries))
}

// Toggle handles POST /api/v1/favorites/toggle.
func (h *FavoritesHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	var req ToggleFavoriteRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		WriteJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	listing := domain.Listing{ID: req.ListingID}
	if req.Listing != nil {
		listing = req.Listing.toDomain()
		if listing.ID == "" {
			listing.ID = req.ListingID
		}
	}
	if listing.ID == "" {
		WriteJSONError(w, http.StatusBadRequest, "listing_id is required")
		return
	}

	session, token, logger, ok := h.openSession(w, r, "ToggleFavorite")
	if !ok {
		return
	}
	res, err := session.Toggle(r.Context(), listing, token)
	if err != nil && res.ListingID == "" {
		WriteDomainError(w, err)
		return
	}
	if err != nil {
		logger.Error("Favorite toggled but not persisted", err, port.Fields{"listing_id": listing.ID})
	}
	RespondWithJSON(w, http.StatusOK, toToggleResponse(res, err == nil, session.Count()))
}

// Remove handles DELETE /api/v1/favorites/{listingID}.
func (h *FavoritesHandler) Remove(w http.ResponseWriter, r *http.Request) {
	id, err := domain.NormalizeListingID(chi.URLParam(r, "listingID"))
	if err != nil {
		WriteJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	session, token, logger, ok := h.openSession(w, r, "RemoveFavorite")
	if !ok {
		return
	}
	res, err := session.Remove(r.Context(), id, token)
	if err != nil {
		logger.Error("Favorite removed but not persisted", err, port.Fields{"listing_id": id})
	}
	RespondWithJSON(w, http.StatusOK, toToggleResponse(res, err == nil, session.Count()))
}

// Clear handles DELETE /api/v1/favorites.
func (h *FavoritesHandler) Clear(w http.ResponseWriter, r *http.Request) {
	session, _, logger, ok := h.openSession(w, r, "ClearFavorites")
	if !ok {
		return
	}
	if err := session.Clear(r.Context()); err != nil {
		logger.Error("Failed to clear favorites", err, nil)
		WriteJSONError(w, http.StatusInternalServerError, "failed to clear favorites")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func toToggleResponse(res domain.ToggleResult, persisted bool, count int) ToggleFavoriteResponse {
	return ToggleFavoriteResponse{
		ListingID: res.ListingID,
		Favorited: res.Favorited,
		Degraded:  res.Degraded,
		Persisted: persisted,
		Count:     count,
	}
}
