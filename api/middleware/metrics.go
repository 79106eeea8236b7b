package middleware

import (
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
)

type requestObserver interface {
	Observe(route, method string, status int, elapsed time.Duration)
}

// Metrics records request counts and latency keyed by route pattern.
func Metrics(observer requestObserver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if observer == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			observer.Observe(routePattern(r), r.Method, statusOf(ww), time.Since(start))
		})
	}
}
