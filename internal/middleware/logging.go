package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"channel-history/internal/observability"

	chimw "github.com/go-chi/chi/v5/middleware"
)

// RequestLogger stores the request id set by chi's RequestID middleware in
// the context logger and logs every completed request
func RequestLogger() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ctx := r.Context()
			if id := chimw.GetReqID(ctx); id != "" {
				ctx = observability.WithRequestID(ctx, id)
			}
			r = r.WithContext(ctx)

			ww := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(ww, r)

			observability.FromContext(ctx).Info("http request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.statusCode),
				slog.Duration("duration", time.Since(start)))
		})
	}
}
