package middleware

import (
	"log/slog"
	"net/http"

	"github.com/utafrali/orderengine/pkg/logger"
)

// RequestLogger stores a request-scoped logger in the context, carrying the
// correlation id, caller id and trace ids known so far. Handlers fetch it with
// logger.FromContext. Mount it after RequestLogging, Tracing and UserID.
func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if uid := UserIDFromContext(ctx); uid != "" {
				ctx = logger.WithUserID(ctx, uid)
			}
			ctx = logger.NewContext(ctx, logger.WithContext(ctx, base))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
