package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/multierr"

	"github.com/angelmondragon/tirestore-backend/api/controllers"
	"github.com/angelmondragon/tirestore-backend/api/routes"
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
	"github.com/angelmondragon/tirestore-backend/pkg/db"
	"github.com/angelmondragon/tirestore-backend/pkg/instance"
	"github.com/angelmondragon/tirestore-backend/pkg/logger"
	"github.com/angelmondragon/tirestore-backend/pkg/metrics"
	"github.com/angelmondragon/tirestore-backend/pkg/migrate"
	"github.com/angelmondragon/tirestore-backend/pkg/pubsub"
	"github.com/angelmondragon/tirestore-backend/pkg/redis"
	"github.com/angelmondragon/tirestore-backend/pkg/sheets"
	"github.com/angelmondragon/tirestore-backend/pkg/storage/gcs"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var closers []func() error
	closeAll := func() {
		var errs error
		for i := len(closers) - 1; i >= 0; i-- {
			errs = multierr.Append(errs, closers[i]())
		}
		if errs != nil {
			logg.Error(context.Background(), "error releasing resources", errs)
		}
	}
	fail := func(msg string, err error) {
		logg.Error(context.Background(), msg, err)
		closeAll()
		os.Exit(1)
	}

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		fail("failed to bootstrap database", err)
	}
	closers = append(closers, dbClient.Close)

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		fail("failed to run dev migrations", err)
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		fail("failed to bootstrap redis", err)
	}
	closers = append(closers, redisClient.Close)

	gcsClient, err := gcs.NewClient(ctx, cfg.GCS, cfg.GCP, logg)
	if err != nil {
		fail("failed to bootstrap gcs", err)
	}

	publisher, closePublisher, err := pubsub.NewPublisher(ctx, cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		fail("failed to bootstrap pubsub", err)
	}
	closers = append(closers, closePublisher)

	readiness := map[string]controllers.Pinger{
		"db":    dbClient,
		"redis": redisClient,
		"gcs":   gcsClient,
	}

	ledgerService := ledger.NewDisabledService()
	if cfg.FeatureFlags.LedgerEnabled {
		sheetsClient, err := sheets.NewClient(ctx, cfg.Sheets, cfg.GCP, logg)
		if err != nil {
			fail("failed to bootstrap sheets", err)
		}
		ledgerRepo, err := ledger.NewSheetRepository(sheetsClient)
		if err != nil {
			fail("failed to create ledger repository", err)
		}
		if ledgerService, err = ledger.NewService(ledgerRepo); err != nil {
			fail("failed to create ledger service", err)
		}
		readiness["sheets"] = sheetsClient
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	httpMetrics := metrics.NewHTTPMetrics(registry)
	orderMetrics := metrics.NewOrderMetrics(registry)

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		fail("failed to create session manager", err)
	}

	userRepo := users.NewRepository(dbClient.DB())
	userService, err := users.NewService(userRepo)
	if err != nil {
		fail("failed to create user service", err)
	}

	reviewRepo := reviews.NewRepository(dbClient.DB())
	productRepo := products.NewRepository(dbClient.DB())
	productService, err := products.NewService(productRepo, dbClient, reviewRepo)
	if err != nil {
		fail("failed to create product service", err)
	}
	reviewService, err := reviews.NewService(reviewRepo, productRepo, userRepo)
	if err != nil {
		fail("failed to create review service", err)
	}

	settingsService, err := settings.NewService(settings.NewRepository(dbClient.DB()), redisClient, logg)
	if err != nil {
		fail("failed to create settings service", err)
	}

	cartRepo := cart.NewRepository(dbClient.DB())
	anonCarts, err := cart.NewAnonStore(redisClient, cfg.Cart.AnonTTL)
	if err != nil {
		fail("failed to create anonymous cart store", err)
	}
	cartService, err := cart.NewService(cartRepo, anonCarts, productRepo)
	if err != nil {
		fail("failed to create cart service", err)
	}

	authService, err := auth.NewService(auth.ServiceParams{
		UserRepo:       userRepo,
		SessionManager: sessionManager,
		Carts:          cartService,
		JWTConfig:      cfg.JWT,
		PasswordConfig: cfg.Password,
		Logger:         logg,
	})
	if err != nil {
		fail("failed to create auth service", err)
	}

	orderRepo := orders.NewRepository(dbClient.DB())
	orderService, err := orders.NewService(orders.ServiceParams{
		Repo:          orderRepo,
		Tx:            dbClient,
		Objects:       gcsClient,
		Ledger:        ledgerService,
		Publisher:     publisher,
		Metrics:       orderMetrics,
		Logger:        logg,
		PaymentWindow: cfg.Orders.PaymentWindow,
		SlipMaxBytes:  cfg.Orders.SlipMaxBytes,
		SlipPrefix:    cfg.GCS.SlipPrefix,
	})
	if err != nil {
		fail("failed to create order service", err)
	}

	checkoutService, err := checkout.NewService(checkout.ServiceParams{
		Tx:            dbClient,
		Carts:         cartRepo,
		Products:      productRepo,
		Orders:        orderRepo,
		Locks:         redisClient,
		Settings:      settingsService,
		Publisher:     publisher,
		Metrics:       orderMetrics,
		Logger:        logg,
		PaymentWindow: cfg.Orders.PaymentWindow,
		LockTTL:       cfg.Orders.CheckoutLock,
	})
	if err != nil {
		fail("failed to create checkout service", err)
	}

	if cfg.App.AdminEmail != "" {
		promoted, err := userService.PromoteAdmin(ctx, cfg.App.AdminEmail)
		switch {
		case err != nil:
			logg.Warn(logg.WithField(ctx, "error", err.Error()), "admin bootstrap failed")
		case !promoted:
			logg.Info(logg.WithField(ctx, "email", cfg.App.AdminEmail), "admin bootstrap skipped; account not registered yet")
		}
	}

	handler := routes.NewRouter(cfg, logg, routes.Services{
		Auth:     authService,
		Users:    userService,
		Products: productService,
		Reviews:  reviewService,
		Settings: settingsService,
		Cart:     cartService,
		Checkout: checkoutService,
		Orders:   orderService,
		Ledger:   ledgerService,
	}, routes.Infra{
		Sessions:       sessionManager,
		KV:             redisClient,
		Readiness:      readiness,
		HTTPMetrics:    httpMetrics,
		MetricsHandler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": instance.GetID(),
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			fail("api server stopped unexpectedly", err)
		}
	case <-ctx.Done():
		logg.Info(ctx, "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "graceful shutdown failed", err)
		}
	}

	closeAll()
}
