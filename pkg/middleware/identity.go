package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/utafrali/orderengine/pkg/httputil"
)

// UserIDHeader carries the caller's id, set by the gateway after it has
// authenticated the request.
const UserIDHeader = "X-User-ID"

const maxUserIDLen = 128

type contextKeyType string

const userIDKey contextKeyType = "user_id"

// UserID stores the X-User-ID header in the request context. The header is
// optional; a present but malformed value is rejected with 400.
func UserID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get(UserIDHeader)
		if raw == "" {
			next.ServeHTTP(w, r)
			return
		}

		uid := strings.TrimSpace(raw)
		if uid == "" || len(uid) > maxUserIDLen || strings.ContainsAny(uid, " \t\r\n") {
			httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
				Error: &httputil.ErrorResponse{Code: "INVALID_USER_ID", Message: "malformed " + UserIDHeader + " header"},
			})
			return
		}

		next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), uid)))
	})
}

// WithUserID returns ctx carrying uid.
func WithUserID(ctx context.Context, uid string) context.Context {
	return context.WithValue(ctx, userIDKey, uid)
}

// UserIDFromContext returns the caller id, or "" for anonymous requests.
func UserIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(userIDKey).(string); ok {
		return id
	}
	return ""
}
