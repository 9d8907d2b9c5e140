package rest

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"property-catalog/internal/core/domain"
)

const maxRequestBodyBytes = 1 << 20

// WriteJSONError sends {"error": message} with the given status.
func WriteJSONError(w http.ResponseWriter, statusCode int, message string) {
	RespondWithJSON(w, statusCode, ErrorResponse{Error: message})
}

// RespondWithJSON marshals payload and writes it with code.
func RespondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		http.Error(w, "Failed to marshal JSON response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_, _ = w.Write(response)
}

// WriteDomainError maps a use case error onto an HTTP answer.
func WriteDomainError(w http.ResponseWriter, err error) {
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		RespondWithJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
			Error:  "validation failed",
			Fields: verr.Fields,
		})
		return
	}
	status, message := statusForError(err)
	WriteJSONError(w, status, message)
}

func statusForError(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "listing not found"
	case errors.Is(err, domain.ErrDeleteNotRequested):
		return http.StatusNotFound, domain.ErrDeleteNotRequested.Error()
	case errors.Is(err, domain.ErrInvalidCategory),
		errors.Is(err, domain.ErrInvalidListingID),
		errors.Is(err, domain.ErrInvalidPriceRange),
		errors.Is(err, domain.ErrInvalidSortField),
		errors.Is(err, domain.ErrInvalidDeviceID):
		return http.StatusBadRequest, err.Error()
	}

	var ce *domain.CatalogError
	if errors.As(err, &ce) {
		if ce.Timeout() {
			return http.StatusGatewayTimeout, "catalog did not answer in time"
		}
		msg := "catalog is unavailable"
		if ce.Kind == domain.FailureBackend && ce.Message != "" {
			msg = ce.Message
		}
		if ce.Kind == domain.FailureDeserialization {
			msg = "catalog sent an unreadable response"
		}
		return http.StatusBadGateway, msg
	}
	return http.StatusInternalServerError, "internal error"
}

// decodeJSONBody reads a bounded JSON body into dst.
func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// GetLimitOrDefault reads ?limit; missing means def.
func GetLimitOrDefault(r *http.Request, def int) (int, error) {
	return intParam(r, "limit", def)
}

// GetOffsetOrDefault reads ?offset; missing means 0.
func GetOffsetOrDefault(r *http.Request) (int, error) {
	return intParam(r, "offset", 0)
}

func intParam(r *http.Request, name string, def int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer", name)
	}
	return v, nil
}

func floatParam(r *http.Request, name string) (*float64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < 0 {
		return nil, fmt.Errorf("%s must be a non-negative number", name)
	}
	return &v, nil
}

const defaultPageLimit = 20

// parseListingQuery reads the server side read parameters shared by the
// browse and admin list endpoints.
func parseListingQuery(r *http.Request) (domain.ListingQuery, error) {
	q := r.URL.Query()
	query := domain.ListingQuery{
		Search:        strings.TrimSpace(q.Get("search")),
		Status:        strings.TrimSpace(q.Get("status")),
		PropertyType:  strings.TrimSpace(q.Get("property_type")),
		SortDirection: domain.ParseSortDirection(q.Get("order")),
	}

	var err error
	if query.SortField, err = domain.ParseSortField(q.Get("sort")); err != nil {
		return query, err
	}
	if query.MinPrice, err = floatParam(r, "min_price"); err != nil {
		return query, err
	}
	if query.MaxPrice, err = floatParam(r, "max_price"); err != nil {
		return query, err
	}
	if query.Limit, err = GetLimitOrDefault(r, defaultPageLimit); err != nil {
		return query, err
	}
	if query.Offset, err = GetOffsetOrDefault(r); err != nil {
		return query, err
	}
	return query, nil
}

// parseFilterCriteria reads the local filter/sort parameters of the browse
// endpoint.
func parseFilterCriteria(r *http.Request, query domain.ListingQuery) (domain.FilterCriteria, error) {
	criteria := domain.FilterCriteria{
		SearchText:    query.Search,
		MinPrice:      query.MinPrice,
		MaxPrice:      query.MaxPrice,
		PropertyType:  query.PropertyType,
		Status:        query.Status,
		SortField:     query.SortField,
		SortDirection: query.SortDirection,
	}

	var err error
	if criteria.MinBedrooms, err = intParam(r, "min_bedrooms", 0); err != nil {
		return criteria, err
	}
	if criteria.PriceRange, err = domain.ParsePriceRange(r.URL.Query().Get("price_range")); err != nil {
		return criteria, err
	}
	return criteria, nil
}
