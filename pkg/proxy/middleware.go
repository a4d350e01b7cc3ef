package proxy

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

type contextKey string

const requestIDKey contextKey = "request_id"

// RequestIDFromContext returns the request identifier assigned by the
// RequestID middleware, or an empty string.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// RequestID assigns every request an identifier of the form
// "req-<hex16>", exposes it as the X-Request-ID response header and
// stores it on the request context.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.New()
		requestID := "req-" + hex.EncodeToString(id[:8])
		w.Header().Set("X-Request-ID", requestID)
		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// BearerAuth authenticates requests against the configured API keys.
// With no keys configured the gateway runs in open mode and every
// request passes.
func BearerAuth(keys []string) func(http.Handler) http.Handler {
	keySet := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		keySet[k] = struct{}{}
	}
	logger := slog.Default().With("component", "proxy.auth")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(keySet) == 0 {
				next.ServeHTTP(w, r)
				return
			}

			key := bearerToken(r)
			if key == "" {
				logger.Warn("missing bearer token", "path", r.URL.Path, "remote_addr", r.RemoteAddr)
				writeAuthError(w, r, "missing_token",
					"missing authentication token, provide Authorization: Bearer <API_KEY>")
				return
			}
			if _, ok := keySet[key]; !ok {
				logger.Warn("invalid API key", "path", r.URL.Path, "remote_addr", r.RemoteAddr)
				writeAuthError(w, r, "invalid_token", "invalid API key")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// AdminAuth protects the admin endpoints with the app key, accepted as
// either an X-App-Key header or a bearer token. An empty configured key
// leaves the endpoints open.
func AdminAuth(appKey string) func(http.Handler) http.Handler {
	logger := slog.Default().With("component", "proxy.auth")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if appKey == "" {
				next.ServeHTTP(w, r)
				return
			}

			supplied := r.Header.Get("X-App-Key")
			if supplied == "" {
				supplied = bearerToken(r)
			}
			if supplied != appKey {
				logger.Warn("rejected admin request", "path", r.URL.Path, "remote_addr", r.RemoteAddr)
				writeAuthError(w, r, "invalid_app_key", "invalid or missing app key")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	return ""
}

func writeAuthError(w http.ResponseWriter, r *http.Request, code, message string) {
	writeError(w, http.StatusUnauthorized, ErrorDetail{
		Message:   message,
		Type:      "authentication_error",
		Code:      code,
		RequestID: RequestIDFromContext(r.Context()),
	})
}

func writeError(w http.ResponseWriter, status int, detail ErrorDetail) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{Error: detail})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
