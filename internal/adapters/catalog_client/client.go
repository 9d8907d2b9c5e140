package catalog_client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"property-catalog/internal/contextkeys"
	"property-catalog/internal/core/domain"
	"property-catalog/internal/core/port"
)

const maxResponseBytes = 8 << 20

// Config describes where the PHP catalog lives. Paths are relative to BaseURL.
type Config struct {
	BaseURL       string
	CategoryPaths map[domain.Category]string
	FavoritesPath string
	LookupPath    string
	Timeout       time.Duration
	// APIKey is sent as X-Api-Key on writes when set.
	APIKey string
}

// CatalogAPIClient talks to the remote catalog. It never retries; every call
// is bounded by the configured timeout.
type CatalogAPIClient struct {
	cfg        Config
	httpClient *http.Client
}

var _ port.CatalogPort = (*CatalogAPIClient)(nil)

func NewCatalogAPIClient(cfg Config) *CatalogAPIClient {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &CatalogAPIClient{
		cfg:        cfg,
		httpClient: &http.Client{},
	}
}

type call struct {
	method string
	path   string
	query  url.Values
	body   interface{}
	token  string
	write  bool
}

// doRequest performs one call and unwraps the envelope. Every failure comes
// back as *domain.CatalogError.
func (c *CatalogAPIClient) doRequest(ctx context.Context, cl call) (*envelope, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	endpoint := c.cfg.BaseURL + "/" + strings.TrimLeft(cl.path, "/")
	if len(cl.query) > 0 {
		endpoint += "?" + cl.query.Encode()
	}

	var body io.Reader
	if cl.body != nil {
		payload, err := json.Marshal(cl.body)
		if err != nil {
			return nil, &domain.CatalogError{Kind: domain.FailureDeserialization, Message: "failed to encode request", Err: err}
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, cl.method, endpoint, body)
	if err != nil {
		return nil, &domain.CatalogError{Kind: domain.FailureNetwork, Message: "failed to create request", Err: err}
	}
	if traceID := contextkeys.TraceIDFromContext(ctx); traceID != "" {
		req.Header.Set("X-Trace-ID", traceID)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if cl.token != "" {
		req.Header.Set("Authorization", "Bearer "+cl.token)
	}
	if cl.write && c.cfg.APIKey != "" {
		req.Header.Set("X-Api-Key", c.cfg.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &domain.CatalogError{Kind: domain.FailureNetwork, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &domain.CatalogError{Kind: domain.FailureNetwork, StatusCode: resp.StatusCode, Message: "failed to read response", Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		cerr := &domain.CatalogError{Kind: domain.FailureNetwork, StatusCode: resp.StatusCode}
		var env envelope
		if json.Unmarshal(raw, &env) == nil && env.Message != "" {
			cerr.Message = env.Message
		}
		if resp.StatusCode == http.StatusNotFound {
			cerr.Err = domain.ErrNotFound
		}
		return nil, cerr
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, &domain.CatalogError{Kind: domain.FailureDeserialization, StatusCode: resp.StatusCode, Message: "malformed response envelope", Err: err}
	}
	if strings.EqualFold(env.Status, "error") {
		msg := env.Message
		if msg == "" {
			msg = "backend reported an error"
		}
		return nil, &domain.CatalogError{Kind: domain.FailureBackend, StatusCode: resp.StatusCode, Message: msg}
	}
	return &env, nil
}

func (c *CatalogAPIClient) categoryPath(category domain.Category) (string, error) {
	path, ok := c.cfg.CategoryPaths[category]
	if !ok || path == "" {
		return "", fmt.Errorf("%w: no endpoint for %q", domain.ErrInvalidCategory, category)
	}
	return path, nil
}

func (c *CatalogAPIClient) logger(ctx context.Context, method string) port.LoggerPort {
	return contextkeys.LoggerFromContext(ctx).WithFields(port.Fields{
		"component": "CatalogAPIClient",
		"method":    method,
	})
}

func decodeData(env *envelope, v interface{}, what string) error {
	if err := json.Unmarshal(env.Data, v); err != nil {
		return &domain.CatalogError{Kind: domain.FailureDeserialization, Message: "unexpected " + what + " shape", Err: err}
	}
	return nil
}

func listingQueryValues(q domain.ListingQuery) url.Values {
	v := url.Values{}
	if q.Search != "" {
		v.Set("search", q.Search)
	}
	if q.Status != "" {
		v.Set("status", q.Status)
	}
	if q.PropertyType != "" {
		v.Set("property_type", q.PropertyType)
	}
	if q.MinPrice != nil {
		v.Set("min_price", strconv.FormatFloat(*q.MinPrice, 'f', -1, 64))
	}
	if q.MaxPrice != nil {
		v.Set("max_price", strconv.FormatFloat(*q.MaxPrice, 'f', -1, 64))
	}
	if q.SortField != domain.SortNone {
		v.Set("sort", string(q.SortField))
		dir := q.SortDirection
		if dir == "" {
			dir = domain.SortAsc
		}
		v.Set("order", string(dir))
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Offset > 0 {
		v.Set("offset", strconv.Itoa(q.Offset))
	}
	return v
}

// toListings maps records, dropping those without an id and later duplicates.
func toListings(dtos []listingDTO, category domain.Category) []domain.Listing {
	out := make([]domain.Listing, 0, len(dtos))
	seen := make(map[domain.ListingID]struct{}, len(dtos))
	for _, d := range dtos {
		if d.ID == "" {
			continue
		}
		if _, dup := seen[d.ID]; dup {
			continue
		}
		seen[d.ID] = struct{}{}
		out = append(out, d.toDomain(category))
	}
	return out
}

func (c *CatalogAPIClient) FetchListings(ctx context.Context, category domain.Category, query domain.ListingQuery) (*domain.ListingPage, error) {
	clientLogger := c.logger(ctx, "FetchListings").WithFields(port.Fields{"category": category})

	path, err := c.categoryPath(category)
	if err != nil {
		return nil, err
	}

	env, err := c.doRequest(ctx, call{method: http.MethodGet, path: path, query: listingQueryValues(query)})
	if err != nil {
		clientLogger.Error("Catalog read failed", err, nil)
		return nil, err
	}

	var dtos []listingDTO
	if env.hasData() {
		if err := decodeData(env, &dtos, "listing list"); err != nil {
			clientLogger.Error("Failed to decode listings", err, nil)
			return nil, err
		}
	}
	listings := toListings(dtos, category)

	page := &domain.ListingPage{Listings: listings}
	if env.Pagination != nil {
		page.Pagination = domain.Pagination{
			Total:  int(env.Pagination.Total),
			Limit:  int(env.Pagination.Limit),
			Offset: int(env.Pagination.Offset),
			Pages:  int(env.Pagination.Pages),
		}
	} else {
		page.Pagination = domain.Pagination{Total: len(listings), Limit: len(listings), Pages: 1}
	}

	clientLogger.Debug("Listings received", port.Fields{"count": len(listings), "total": page.Pagination.Total})
	return page, nil
}

func (c *CatalogAPIClient) FetchListing(ctx context.Context, category domain.Category, id domain.ListingID) (*domain.Listing, error) {
	clientLogger := c.logger(ctx, "FetchListing").WithFields(port.Fields{"category": category, "listing_id": id})

	path, err := c.categoryPath(category)
	if err != nil {
		return nil, err
	}

	env, err := c.doRequest(ctx, call{method: http.MethodGet, path: path, query: url.Values{"id": {id.String()}}})
	if err != nil {
		clientLogger.Error("Listing read failed", err, nil)
		return nil, err
	}

	notFound := &domain.CatalogError{Kind: domain.FailureBackend, Message: "listing not found", Err: domain.ErrNotFound}
	if !env.hasData() {
		return nil, notFound
	}

	// Some endpoints answer a single-id read with a one element list.
	var dto listingDTO
	if trimmed := bytes.TrimSpace(env.Data); trimmed[0] == '[' {
		var dtos []listingDTO
		if err := decodeData(env, &dtos, "listing"); err != nil {
			return nil, err
		}
		if len(dtos) == 0 {
			return nil, notFound
		}
		dto = dtos[0]
	} else if err := decodeData(env, &dto, "listing"); err != nil {
		clientLogger.Error("Failed to decode listing", err, nil)
		return nil, err
	}

	if dto.ID == "" {
		dto.ID = id
	}
	listing := dto.toDomain(category)
	return &listing, nil
}

func (c *CatalogAPIClient) FetchListingsByIDs(ctx context.Context, ids []domain.ListingID) ([]domain.Listing, error) {
	clientLogger := c.logger(ctx, "FetchListingsByIDs").WithFields(port.Fields{"id_count": len(ids)})

	if len(ids) == 0 {
		return []domain.Listing{}, nil
	}
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = id.String()
	}

	env, err := c.doRequest(ctx, call{
		method: http.MethodGet,
		path:   c.cfg.LookupPath,
		query:  url.Values{"ids": {strings.Join(parts, ",")}},
	})
	if err != nil {
		clientLogger.Error("Listing lookup failed", err, nil)
		return nil, err
	}

	var dtos []listingDTO
	if env.hasData() {
		if err := decodeData(env, &dtos, "listing list"); err != nil {
			return nil, err
		}
	}
	listings := toListings(dtos, "")
	clientLogger.Debug("Listings resolved", port.Fields{"found": len(listings)})
	return listings, nil
}

type favoriteRef struct {
	ID         domain.ListingID `json:"id"`
	PropertyID domain.ListingID `json:"property_id"`
}

func (c *CatalogAPIClient) FetchFavorites(ctx context.Context, userToken string) ([]domain.ListingID, error) {
	env, err := c.doRequest(ctx, call{
		method: http.MethodPost,
		path:   c.cfg.FavoritesPath,
		body:   favoritesRequest{Action: "list"},
		token:  userToken,
	})
	if err != nil {
		return nil, err
	}
	if !env.hasData() {
		return []domain.ListingID{}, nil
	}

	// Either a list of ids or a list of favorite rows.
	var ids []domain.ListingID
	if err := json.Unmarshal(env.Data, &ids); err == nil {
		return ids, nil
	}
	var refs []favoriteRef
	if err := decodeData(env, &refs, "favorites"); err != nil {
		return nil, err
	}
	ids = make([]domain.ListingID, 0, len(refs))
	for _, r := range refs {
		if r.PropertyID != "" {
			ids = append(ids, r.PropertyID)
		} else {
			ids = append(ids, r.ID)
		}
	}
	return ids, nil
}

func (c *CatalogAPIClient) ToggleFavorite(ctx context.Context, id domain.ListingID, userToken string) (domain.FavoriteAction, error) {
	env, err := c.doRequest(ctx, call{
		method: http.MethodPost,
		path:   c.cfg.FavoritesPath,
		body:   favoritesRequest{Action: "toggle", PropertyID: id},
		token:  userToken,
	})
	if err != nil {
		return "", err
	}

	action := env.Action
	if action == "" && env.hasData() {
		var data struct {
			Action string `json:"action"`
		}
		if json.Unmarshal(env.Data, &data) == nil {
			action = data.Action
		}
	}
	switch domain.FavoriteAction(strings.ToLower(action)) {
	case domain.FavoriteAdded:
		return domain.FavoriteAdded, nil
	case domain.FavoriteRemoved:
		return domain.FavoriteRemoved, nil
	default:
		return "", &domain.CatalogError{Kind: domain.FailureDeserialization, Message: fmt.Sprintf("unknown toggle action %q", action)}
	}
}

func (c *CatalogAPIClient) CreateListing(ctx context.Context, category domain.Category, draft domain.ListingDraft) (*domain.Listing, error) {
	clientLogger := c.logger(ctx, "CreateListing").WithFields(port.Fields{"category": category})

	path, err := c.categoryPath(category)
	if err != nil {
		return nil, err
	}
	env, err := c.doRequest(ctx, call{
		method: http.MethodPost,
		path:   path,
		body:   newDraftRequest("", draft),
		write:  true,
	})
	if err != nil {
		clientLogger.Error("Create rejected", err, nil)
		return nil, err
	}
	return writtenListing(env, env.ID, category, draft)
}

func (c *CatalogAPIClient) UpdateListing(ctx context.Context, category domain.Category, id domain.ListingID, draft domain.ListingDraft) (*domain.Listing, error) {
	clientLogger := c.logger(ctx, "UpdateListing").WithFields(port.Fields{"category": category, "listing_id": id})

	path, err := c.categoryPath(category)
	if err != nil {
		return nil, err
	}
	env, err := c.doRequest(ctx, call{
		method: http.MethodPut,
		path:   path,
		query:  url.Values{"id": {id.String()}},
		body:   newDraftRequest(id, draft),
		write:  true,
	})
	if err != nil {
		clientLogger.Error("Update rejected", err, nil)
		return nil, err
	}
	return writtenListing(env, id, category, draft)
}

// writtenListing prefers the record echoed by the backend and falls back to
// the submitted draft.
func writtenListing(env *envelope, id domain.ListingID, category domain.Category, draft domain.ListingDraft) (*domain.Listing, error) {
	if env.hasData() && bytes.TrimSpace(env.Data)[0] == '{' {
		var dto listingDTO
		if err := decodeData(env, &dto, "listing"); err != nil {
			return nil, err
		}
		if dto.ID == "" {
			dto.ID = id
		}
		if dto.Title != "" {
			l := dto.toDomain(category)
			return &l, nil
		}
		id = dto.ID
	}
	l := draftListing(id, category, draft)
	return &l, nil
}

func (c *CatalogAPIClient) DeleteListing(ctx context.Context, category domain.Category, id domain.ListingID) error {
	path, err := c.categoryPath(category)
	if err != nil {
		return err
	}
	// Endpoints read the id either from the query or from the body.
	_, err = c.doRequest(ctx, call{
		method: http.MethodDelete,
		path:   path,
		query:  url.Values{"id": {id.String()}},
		body:   deleteRequest{ID: id},
		write:  true,
	})
	if err != nil {
		c.logger(ctx, "DeleteListing").Error("Delete rejected", err, port.Fields{"category": category, "listing_id": id})
		return err
	}
	return nil
}
