package middleware

import (
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/delordemm1/routine-notifier/internal/contextx"
)

// CorrelationIDHeader lets callers supply their own correlation id.
const CorrelationIDHeader = "X-Correlation-ID"

// CorrelationID stores a correlation id in the request context so it reaches
// queue message headers. It prefers the X-Correlation-ID header and falls back
// to the chi request id, so it must run after middleware.RequestID.
func CorrelationID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(CorrelationIDHeader)
		if id == "" {
			id = chimw.GetReqID(r.Context())
		}
		if id != "" {
			w.Header().Set(CorrelationIDHeader, id)
			r = r.WithContext(contextx.WithCorrelationID(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}
