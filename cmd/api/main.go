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

	"github.com/seramic/shop-backend/api/controllers"
	"github.com/seramic/shop-backend/api/routes"
	"github.com/seramic/shop-backend/internal/address"
	"github.com/seramic/shop-backend/internal/auth"
	"github.com/seramic/shop-backend/internal/cart"
	"github.com/seramic/shop-backend/internal/media"
	"github.com/seramic/shop-backend/internal/orders"
	product "github.com/seramic/shop-backend/internal/products"
	"github.com/seramic/shop-backend/internal/reviews"
	"github.com/seramic/shop-backend/internal/users"
	"github.com/seramic/shop-backend/internal/wishlist"
	"github.com/seramic/shop-backend/pkg/config"
	"github.com/seramic/shop-backend/pkg/db"
	"github.com/seramic/shop-backend/pkg/logger"
	"github.com/seramic/shop-backend/pkg/metrics"
	"github.com/seramic/shop-backend/pkg/migrate"
	"github.com/seramic/shop-backend/pkg/outbox"
	"github.com/seramic/shop-backend/pkg/redis"
	"github.com/seramic/shop-backend/pkg/storage"
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
		Format:      cfg.App.LogFormat,
	})

	if err := run(cfg, logg); err != nil {
		logg.Error(context.Background(), "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logg *logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return err
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return err
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return err
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	objectStore, err := storage.New(ctx, cfg.Storage, cfg.GCP, logg)
	if err != nil {
		return err
	}
	defer func() {
		if err := objectStore.Close(); err != nil {
			logg.Error(context.Background(), "error closing object store", err)
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	domainMetrics := metrics.NewDomainMetrics(registry)

	pipeline, err := media.NewPipeline(media.PipelineParams{
		Store:             objectStore,
		Folder:            cfg.Storage.Folder,
		Config:            cfg.Media,
		Metrics:           domainMetrics,
		Logger:            logg,
		KeepFailedUploads: !cfg.FeatureFlags.CleanupUploads,
	})
	if err != nil {
		return err
	}

	emitter := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)
	userRepo := users.NewRepository(dbClient.DB())
	catalog := product.NewRepository(dbClient.DB())

	authService, err := auth.NewService(auth.ServiceParams{
		DB:             dbClient,
		Outbox:         emitter,
		JWTConfig:      cfg.JWT,
		PasswordConfig: cfg.Password,
		TokensConfig:   cfg.Tokens,
		Lockout:        cfg.Lockout,
		Metrics:        domainMetrics,
		Logger:         logg,
	})
	if err != nil {
		return err
	}
	usersService, err := users.NewService(userRepo)
	if err != nil {
		return err
	}
	productService, err := product.NewService(product.ServiceParams{DB: dbClient, Images: pipeline, Logger: logg})
	if err != nil {
		return err
	}
	ordersService, err := orders.NewService(orders.ServiceParams{
		Repo:              orders.NewRepository(dbClient.DB()),
		Tx:                dbClient,
		Inventory:         product.NewInventory(),
		Accounts:          users.NewAccountTotals(userRepo),
		Outbox:            emitter,
		Numbers:           orders.NewNumberGenerator(redisClient),
		StrictTransitions: cfg.FeatureFlags.StrictTransitions,
		Metrics:           domainMetrics,
		Logger:            logg,
	})
	if err != nil {
		return err
	}
	reviewsService, err := reviews.NewService(reviews.ServiceParams{DB: dbClient, Logger: logg})
	if err != nil {
		return err
	}
	cartService, err := cart.NewService(cart.ServiceParams{Repo: cart.NewRepository(dbClient.DB()), Catalog: catalog})
	if err != nil {
		return err
	}
	wishlistService, err := wishlist.NewService(wishlist.ServiceParams{WishlistRepo: wishlist.NewRepository(dbClient.DB()), Catalog: catalog})
	if err != nil {
		return err
	}
	addressService, err := address.NewService(dbClient)
	if err != nil {
		return err
	}

	handler := routes.NewRouter(routes.Deps{
		Config: cfg,
		Logger: logg,
		Readiness: map[string]controllers.Pinger{
			"postgres": dbClient,
			"redis":    redisClient,
			"storage":  objectStore,
		},
		Redis:    redisClient,
		Gatherer: registry,
		Metrics:  metrics.NewHTTPMetrics(registry),
		Auth:     authService,
		Users:    usersService,
		Products: productService,
		Orders:   ordersService,
		Reviews:  reviewsService,
		Cart:     cartService,
		Wishlist: wishlistService,
		Address:  addressService,
		Uploads:  pipeline,
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	logCtx := logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(logCtx, "starting api server")

	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logg.Info(logCtx, "api server shutting down gracefully")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
