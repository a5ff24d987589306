package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"chocolate-storefront/internal/config"
	"chocolate-storefront/internal/conversion"
	"chocolate-storefront/internal/conversion/capi"
	"chocolate-storefront/internal/db"
	"chocolate-storefront/internal/docstore"
	"chocolate-storefront/internal/httpserver"
	"chocolate-storefront/internal/kvcache"
	"chocolate-storefront/internal/observability"
	customerrepo "chocolate-storefront/internal/repository/customer"
	favoriterepo "chocolate-storefront/internal/repository/favorite"
	orderrepo "chocolate-storefront/internal/repository/order"
	productrepo "chocolate-storefront/internal/repository/product"
	shippingrepo "chocolate-storefront/internal/repository/shipping"
	"chocolate-storefront/internal/service/catalog"
	"chocolate-storefront/internal/service/checkout"
	customersvc "chocolate-storefront/internal/service/customer"
	"chocolate-storefront/internal/session"
)

type closableCache interface {
	kvcache.Cache
	Close() error
}

func main() {
	cfg := config.FromEnv()
	logger := log.New(os.Stdout, "[api] ", log.LstdFlags|log.LUTC|log.Lshortfile)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	shutdownTracing, err := observability.Setup(ctx, observability.Config{
		OTLPEndpoint: cfg.OTLPEndpoint,
		Insecure:     cfg.OTLPInsecure,
		SampleRate:   cfg.TraceSampleRate,
	})
	if err != nil {
		logger.Fatalf("init tracing: %v", err)
	}

	dbpool, err := db.Connect(ctx, cfg.DBConnString)
	if err != nil {
		logger.Fatalf("connect to db: %v", err)
	}
	defer dbpool.Close()

	cache, err := openCache(ctx, cfg)
	if err != nil {
		logger.Fatalf("open cache: %v", err)
	}
	defer cache.Close()

	productRepo := productrepo.NewPostgres(dbpool, logger)
	shippingRepo := shippingrepo.NewPostgres(dbpool)
	customerRepo := customerrepo.NewPostgres(dbpool, logger)
	favoriteRepo := favoriterepo.NewPostgres(dbpool)
	orderRepo := orderrepo.NewPostgres(dbpool, logger)

	stream := httpserver.NewCatalogStream(cfg.CORSOrigins, logger)
	listener := docstore.NewListener(dbpool, productRepo, shippingRepo, logger)
	catalogStore := catalog.New(productRepo, listener, catalog.Notifiers{catalog.LogNotifier{Logger: logger}, stream}, logger)
	if err := catalogStore.Start(ctx); err != nil {
		logger.Fatalf("start catalog: %v", err)
	}
	defer catalogStore.Close()

	customerService := customersvc.New(customerRepo)
	checkoutService := checkout.New(orderRepo, catalogStore, checkout.SimulatedGateway{Delay: 500 * time.Millisecond}, checkout.Config{
		OrderPrefix: cfg.OrderPrefix,
		Logger:      logger,
	})

	sessionDeps := session.Deps{
		Cache:              cache,
		Favorites:          favoriteRepo,
		Customers:          customerService,
		BeaconReadyTimeout: cfg.BeaconReadyTimeout,
		GiftMessageMax:     cfg.GiftMessageMax,
		Logger:             logger,
	}
	if cfg.PixelID != "" {
		loader := conversion.NewPixelLoader(cfg.PixelID)
		loader.ScriptURL = cfg.PixelScriptURL
		loader.Endpoint = cfg.PixelEndpoint
		sessionDeps.Loader = loader
	}
	if cfg.PixelID != "" && cfg.CAPIAccessToken != "" {
		sessionDeps.Relay = capi.New(cfg.PixelID, cfg.CAPIAccessToken,
			capi.WithBaseURL(cfg.CAPIBaseURL),
			capi.WithAPIVersion(cfg.CAPIAPIVersion),
			capi.WithTestEventCode(cfg.CAPITestEventCode),
		)
	} else {
		logger.Printf("conversions relay disabled: pixel id or access token missing")
	}
	if cfg.GAMeasurementID != "" && cfg.GAAPISecret != "" {
		sessionDeps.Analytics = conversion.NewGA4Client(cfg.GAMeasurementID, cfg.GAAPISecret)
	}
	sessions := session.NewManager(sessionDeps)
	go sessions.Run(ctx, time.Minute)

	limiter := httpserver.NewRateLimiter(cfg.RelayRPS, cfg.RelayBurst)
	go limiter.Run(ctx.Done())

	srv, err := httpserver.New(cfg.HTTPAddr, logger, dbpool, httpserver.Deps{
		Sessions:             sessions,
		Catalog:              catalogStore,
		Customers:            customerService,
		Checkout:             checkoutService,
		Orders:               orderRepo,
		Stream:               stream,
		RelayLimits:          limiter,
		AdminAPIKey:          cfg.AdminAPIKey,
		PaymentWebhookSecret: cfg.PaymentWebhookSecret,
		CORSOrigins:          cfg.CORSOrigins,
		PublicBaseURL:        cfg.PublicBaseURL,
		SecureCookies:        strings.HasPrefix(cfg.PublicBaseURL, "https://"),
	})
	if err != nil {
		logger.Fatalf("init server: %v", err)
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stopCh:
		logger.Printf("received signal %s, shutting down", sig)
	case err := <-serverErr:
		logger.Printf("server error: %v", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Printf("graceful shutdown failed: %v", err)
	} else {
		logger.Printf("server stopped")
	}
	stop()
	sessions.Drain()
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Printf("tracing shutdown failed: %v", err)
	}
}

func openCache(ctx context.Context, cfg config.Config) (closableCache, error) {
	switch cfg.CacheBackend {
	case "sqlite":
		s, err := kvcache.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		r := kvcache.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.CacheTTL)
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		if err := r.Ping(pingCtx); err != nil {
			r.Close()
			return nil, err
		}
		return r, nil
	}
}
