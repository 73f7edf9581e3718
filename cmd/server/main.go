// Command server runs the storefront API: a cached, rate-limit-aware facade
// over the backing ERP.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/tsh/storefront/internal/application/catalog"
	"github.com/tsh/storefront/internal/application/pricing"
	"github.com/tsh/storefront/internal/application/stock"
	"github.com/tsh/storefront/internal/infrastructure/config"
	"github.com/tsh/storefront/internal/infrastructure/erp"
	"github.com/tsh/storefront/internal/infrastructure/kvstore"
	"github.com/tsh/storefront/internal/infrastructure/logger"
	"github.com/tsh/storefront/internal/infrastructure/scheduler"
	"github.com/tsh/storefront/internal/interfaces/http/handler"
	"github.com/tsh/storefront/internal/interfaces/http/middleware"
	"github.com/tsh/storefront/internal/interfaces/http/router"
)

const version = "1.0.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	log.Info("starting storefront",
		zap.String("version", version),
		zap.String("env", cfg.App.Env))

	// Shared key-value store.
	store, err := buildStore(cfg)
	if err != nil {
		log.Fatal("failed to build kv store", zap.Error(err))
	}
	best := kvstore.NewBestEffort(store, log.Named("kvstore"))

	// ERP client over both upstream surfaces.
	erpClient, err := erp.NewClient(erp.Config{
		ClientID:          cfg.ERP.ClientID,
		ClientSecret:      cfg.ERP.ClientSecret,
		RefreshToken:      cfg.ERP.RefreshToken,
		OrgID:             cfg.ERP.OrgID,
		LedgerBaseURL:     cfg.ERP.LedgerBaseURL,
		InventoryBaseURL:  cfg.ERP.InventoryBaseURL,
		AuthURL:           cfg.ERP.AuthURL,
		WarehouseID:       cfg.ERP.WarehouseID,
		TimeoutSeconds:    cfg.ERP.TimeoutSeconds,
		RequestsPerMinute: cfg.ERP.RequestsPerMinute,
		MaxRateLimitRetry: cfg.ERP.MaxRateLimitRetry,
	}, best, log.Named("erp"))
	if err != nil {
		log.Fatal("failed to create erp client", zap.Error(err))
	}

	// Application caches.
	stockCache, err := stock.New(stock.Config{
		WarehouseID: cfg.ERP.WarehouseID,
		TTL:         cfg.Stock.CacheTTL,
		LockTTL:     cfg.Stock.LockTTL,
	}, best, erpClient, erpClient, log.Named("stock"))
	if err != nil {
		log.Fatal("failed to create stock cache", zap.Error(err))
	}

	priceResolver := pricing.NewResolver(pricing.Config{
		BatchSize:   cfg.Pricing.BatchSize,
		Concurrency: cfg.Pricing.Concurrency,
		TTL:         cfg.Pricing.CacheTTL,
		Currency:    cfg.Pricing.Currency,
	}, best, erpClient, log.Named("pricing"))

	catalogCache := catalog.New(catalog.Config{
		TTL: cfg.Catalog.CacheTTL,
	}, best, erpClient, log.Named("catalog"))

	composer := catalog.NewComposer(catalogCache, stockCache, priceResolver, log.Named("composer"))

	// HTTP engine and routes.
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("failed to set trusted proxies", zap.Error(err))
		}
	}
	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))

	router.NewRouter(engine).
		Register(handler.NewCatalogHandler(composer)).
		Register(handler.NewStockHandler(stockCache)).
		Register(handler.NewDocumentsHandler(erpClient)).
		Setup()
	handler.NewHealthHandler(version).Register(engine)

	// Background stock refresh.
	trigger := scheduler.NewStockSyncTrigger(scheduler.StockSyncTriggerConfig{
		CheckInterval:   cfg.Scheduler.CheckInterval,
		BatchSize:       cfg.Stock.BatchSize,
		InterBatchDelay: cfg.Stock.InterBatchDelay,
	}, stockCache, log.Named("scheduler"))
	if cfg.Scheduler.Enabled {
		if err := trigger.Start(context.Background()); err != nil {
			log.Fatal("failed to start stock sync trigger", zap.Error(err))
		}
	}

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if cfg.Scheduler.Enabled {
		if err := trigger.Stop(ctx); err != nil {
			log.Warn("stock sync trigger did not stop cleanly", zap.Error(err))
		}
	}
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("server forced to shutdown", zap.Error(err))
	}
	log.Info("server exited gracefully")
}

// buildStore constructs the configured shared store backend.
func buildStore(cfg *config.Config) (kvstore.Store, error) {
	switch cfg.KVStore.Driver {
	case "rest":
		return kvstore.NewRESTStore(cfg.KVStore.REST.BaseURL, cfg.KVStore.REST.Token, 10*time.Second), nil
	default:
		return kvstore.NewRedisStore(kvstore.RedisConfig{
			Host:     cfg.KVStore.Redis.Host,
			Port:     cfg.KVStore.Redis.Port,
			Password: cfg.KVStore.Redis.Password,
			DB:       cfg.KVStore.Redis.DB,
		}, "storefront:")
	}
}
