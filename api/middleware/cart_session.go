package middleware

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// CartSessionHeader carries the anonymous cart session id in both directions.
const CartSessionHeader = "X-Cart-Session"

// CartSession resolves the anonymous cart session id from the X-Cart-Session header,
// issuing a fresh one when the header is missing or malformed. The id is echoed back
// so clients can persist it.
func CartSession() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sessionID := strings.TrimSpace(r.Header.Get(CartSessionHeader))
			if _, err := uuid.Parse(sessionID); err != nil {
				sessionID = uuid.NewString()
			}
			w.Header().Set(CartSessionHeader, sessionID)
			next.ServeHTTP(w, r.WithContext(WithCartSession(r.Context(), sessionID)))
		})
	}
}
