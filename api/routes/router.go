package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/tirestore-backend/api/controllers"
	"github.com/angelmondragon/tirestore-backend/api/middleware"
	"github.com/angelmondragon/tirestore-backend/internal/auth"
	"github.com/angelmondragon/tirestore-backend/internal/cart"
	"github.com/angelmondragon/tirestore-backend/internal/checkout"
	"github.com/angelmondragon/tirestore-backend/internal/ledger"
	"github.com/angelmondragon/tirestore-backend/internal/orders"
	products "github.com/angelmondragon/tirestore-backend/internal/products"
	"github.com/angelmondragon/tirestore-backend/internal/reviews"
	"github.com/angelmondragon/tirestore-backend/internal/settings"
	"github.com/angelmondragon/tirestore-backend/internal/users"
	"github.com/angelmondragon/tirestore-backend/pkg/auth/session"
	"github.com/angelmondragon/tirestore-backend/pkg/config"
	"github.com/angelmondragon/tirestore-backend/pkg/enums"
	"github.com/angelmondragon/tirestore-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/tirestore-backend/pkg/redis"
)

// KVStore is the Redis surface used by rate limiting and idempotency.
type KVStore interface {
	pkgredis.IdempotencyStore
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
	RateLimitKey(scope string) string
}

type requestObserver interface {
	Observe(route, method string, status int, elapsed time.Duration)
}

// Services bundles the domain services handed to controllers.
type Services struct {
	Auth     auth.Service
	Users    users.Service
	Products products.Service
	Reviews  reviews.Service
	Settings settings.Service
	Cart     cart.Service
	Checkout checkout.Service
	Orders   orders.Service
	Ledger   ledger.Service
}

// Infra carries shared clients used by middleware and health checks.
type Infra struct {
	Sessions    session.AccessSessionChecker
	KV          KVStore
	Readiness   map[string]controllers.Pinger
	HTTPMetrics requestObserver
	// MetricsHandler serves /metrics when set.
	MetricsHandler http.Handler
}

func NewRouter(cfg *config.Config, logg *logger.Logger, svc Services, infra Infra) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.CORS(cfg.App.CORSOrigins),
		middleware.Logging(logg),
	)
	if infra.HTTPMetrics != nil {
		r.Use(middleware.Metrics(infra.HTTPMetrics))
	}

	limits := cfg.AuthRateLimit
	loginPolicy := middleware.RateLimitPolicy{Name: "login", Window: limits.LoginWindow, PerIP: limits.LoginIPLimit, PerEmail: limits.LoginEmailLimit}
	registerPolicy := middleware.RateLimitPolicy{Name: "register", Window: limits.RegisterWindow, PerIP: limits.RegisterIPLimit, PerEmail: limits.RegisterEmailLimit}
	trackPolicy := middleware.RateLimitPolicy{Name: "track", Window: limits.TrackWindow, PerIP: limits.TrackIPLimit}

	var (
		rateStore interface {
			IncrWithTTL(context.Context, string, time.Duration) (int64, error)
			RateLimitKey(string) string
		}
		idemStore pkgredis.IdempotencyStore
	)
	if infra.KV != nil {
		rateStore = infra.KV
		idemStore = infra.KV
	}
	checkoutOnce := middleware.Idempotency(idemStore, logg, middleware.IdempotencyPolicy{TTL: middleware.CheckoutIdempotencyTTL})
	uploadOnce := middleware.Idempotency(idemStore, logg, middleware.IdempotencyPolicy{TTL: middleware.DefaultIdempotencyTTL, HeaderOnly: true})
	adminOnce := middleware.Idempotency(idemStore, logg, middleware.IdempotencyPolicy{TTL: middleware.DefaultIdempotencyTTL})
	requireAuth := middleware.Auth(cfg.JWT, infra.Sessions, logg)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, infra.Readiness))
	})
	if infra.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", infra.MetricsHandler)
	}

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(middleware.RateLimit(loginPolicy, rateStore, logg)).Post("/login", controllers.AuthLogin(svc.Auth, logg))
		r.With(middleware.RateLimit(registerPolicy, rateStore, logg)).Post("/register", controllers.AuthRegister(svc.Auth, logg))
		r.Post("/refresh", controllers.AuthRefresh(svc.Auth, logg))
		r.With(requireAuth).Post("/logout", controllers.AuthLogout(svc.Auth, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		// public catalog and guest surfaces
		r.Get("/products", controllers.ProductList(svc.Products, logg))
		r.Get("/products/brands", controllers.ProductBrands(svc.Products, logg))
		r.Get("/products/{productId}", controllers.ProductDetail(svc.Products, logg))
		r.Get("/products/{productId}/reviews", controllers.ProductReviews(svc.Reviews, logg))
		r.Get("/settings", controllers.SettingsGet(svc.Settings, logg))
		r.With(middleware.RateLimit(trackPolicy, rateStore, logg)).Get("/orders/track", controllers.OrderTrack(svc.Orders, logg))

		r.Route("/cart", func(r chi.Router) {
			r.Use(middleware.OptionalAuth(cfg.JWT, infra.Sessions, logg))
			r.Use(middleware.CartSession())
			r.Get("/", controllers.CartGet(svc.Cart, logg))
			r.Delete("/", controllers.CartClear(svc.Cart, logg))
			r.Post("/items", controllers.CartAddItem(svc.Cart, logg))
			r.Patch("/items/{productId}", controllers.CartSetQuantity(svc.Cart, logg))
			r.Post("/items/{productId}/decrement", controllers.CartDecrement(svc.Cart, logg))
			r.Delete("/items/{productId}", controllers.CartRemoveLine(svc.Cart, logg))
		})

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Get("/me", controllers.MeGet(svc.Users, logg))
			r.Patch("/me", controllers.MeUpdate(svc.Users, logg))
			r.With(checkoutOnce).Post("/checkout", controllers.Checkout(svc.Checkout, logg))
			r.Get("/orders", controllers.OrderListMine(svc.Orders, logg))
			r.Get("/orders/{orderId}", controllers.OrderGetMine(svc.Orders, logg))
			r.With(uploadOnce).Post("/orders/{orderId}/payment-slip", controllers.OrderUploadSlip(svc.Orders, cfg.Orders.SlipMaxBytes, logg))
			r.Post("/products/{productId}/reviews", controllers.ReviewCreate(svc.Reviews, logg))
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(requireAuth)
			r.Use(middleware.RequireRole(string(enums.UserRoleAdmin), logg))

			r.Route("/products", func(r chi.Router) {
				r.Get("/", controllers.AdminProductList(svc.Products, logg))
				r.Post("/", controllers.AdminProductCreate(svc.Products, logg))
				r.Get("/{productId}", controllers.AdminProductGet(svc.Products, logg))
				r.Patch("/{productId}", controllers.AdminProductUpdate(svc.Products, logg))
				r.Delete("/{productId}", controllers.AdminProductDelete(svc.Products, logg))
				r.Post("/{productId}/stock", controllers.AdminProductAdjustStock(svc.Products, logg))
			})

			r.Route("/orders", func(r chi.Router) {
				r.Get("/", controllers.AdminOrderList(svc.Orders, logg))
				r.Get("/{orderId}", controllers.AdminOrderGet(svc.Orders, logg))
				r.With(adminOnce).Post("/{orderId}/status", controllers.AdminOrderStatus(svc.Orders, svc.Users, logg))
			})

			r.Route("/payment-slips", func(r chi.Router) {
				r.Get("/{slipId}", controllers.AdminSlipDownload(svc.Orders, logg))
				r.With(adminOnce).Post("/{slipId}/review", controllers.AdminSlipReview(svc.Orders, svc.Users, logg))
			})

			r.Route("/reviews", func(r chi.Router) {
				r.Get("/", controllers.AdminReviewList(svc.Reviews, logg))
				r.Patch("/{reviewId}", controllers.AdminReviewModerate(svc.Reviews, logg))
				r.Delete("/{reviewId}", controllers.AdminReviewDelete(svc.Reviews, logg))
			})

			r.Get("/settings", controllers.SettingsGet(svc.Settings, logg))
			r.Put("/settings", controllers.AdminSettingsUpdate(svc.Settings, logg))

			r.Route("/ledger", func(r chi.Router) {
				r.Get("/", controllers.AdminLedgerList(svc.Ledger, logg))
				r.Get("/summary", controllers.AdminLedgerSummary(svc.Ledger, logg))
				r.With(adminOnce).Post("/", controllers.AdminLedgerRecord(svc.Ledger, svc.Users, logg))
			})
		})
	})

	return r
}
