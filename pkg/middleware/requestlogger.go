package middleware

import (
	"log/slog"
	"net/http"

	"github.com/utafrali/revu/pkg/logger"
)

// RequestLogger stores a logger enriched with correlation_id, client_ip,
// trace_id and span_id in the request context. Mount it after RequestLogging
// and Tracing so those values are present.
func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			ctx = logger.NewContext(ctx, logger.WithContext(ctx, base))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
