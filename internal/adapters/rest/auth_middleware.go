package rest

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"
)

type contextKey string

const (
	deviceIDKey  = contextKey("deviceID")
	userTokenKey = contextKey("userToken")
)

const (
	deviceIDHeader = "X-Device-ID"
	adminKeyHeader = "X-Admin-Key"
)

// SessionMiddleware requires X-Device-ID and picks up an optional bearer
// token. The token is opaque here; the catalog backend checks it.
func SessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		deviceID := strings.TrimSpace(r.Header.Get(deviceIDHeader))
		if deviceID == "" {
			WriteJSONError(w, http.StatusBadRequest, "X-Device-ID header is missing")
			return
		}

		ctx := context.WithValue(r.Context(), deviceIDKey, deviceID)
		ctx = context.WithValue(ctx, userTokenKey, bearerToken(r))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) string {
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	const prefix = "bearer "
	if len(auth) <= len(prefix) || !strings.EqualFold(auth[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(auth[len(prefix):])
}

func sessionFromContext(ctx context.Context) (deviceID, userToken string) {
	deviceID, _ = ctx.Value(deviceIDKey).(string)
	userToken, _ = ctx.Value(userTokenKey).(string)
	return deviceID, userToken
}

// AdminKeyMiddleware guards the admin routes with a shared key. With no key
// configured the admin API is closed.
func AdminKeyMiddleware(adminKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if adminKey == "" {
				WriteJSONError(w, http.StatusForbidden, "admin API is disabled")
				return
			}
			given := r.Header.Get(adminKeyHeader)
			if subtle.ConstantTimeCompare([]byte(given), []byte(adminKey)) != 1 {
				WriteJSONError(w, http.StatusUnauthorized, "invalid or missing X-Admin-Key header")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
