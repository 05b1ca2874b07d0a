package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"

	"github.com/odyssey-erp/petcare/internal/app"
	"github.com/odyssey-erp/petcare/internal/inventory"
	"github.com/odyssey-erp/petcare/internal/observability"
	"github.com/odyssey-erp/petcare/internal/platform/cache"
	"github.com/odyssey-erp/petcare/internal/platform/db"
	"github.com/odyssey-erp/petcare/internal/purchasing"
	"github.com/odyssey-erp/petcare/internal/shared"
	"github.com/odyssey-erp/petcare/internal/suppliers"
	"github.com/odyssey-erp/petcare/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	if err := prepareSchema(cfg, logger); err != nil {
		logger.Error("prepare schema", slog.Any("error", err))
		os.Exit(1)
	}

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("summary cache disabled, reading from postgres", slog.Any("error", err))
	} else {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
	}

	metrics := observability.NewMetrics()
	auditLogger := shared.NewAuditLogger(dbpool)
	idempotencyStore := shared.NewIdempotencyStore(dbpool)
	summaryCache := cache.NewVersioned(redisClient, purchasing.SummaryCacheNamespace, cfg.SummaryCacheTTL)

	inventoryService := inventory.NewService(inventory.NewRepository(dbpool))
	supplierService := suppliers.NewService(suppliers.NewRepository(dbpool), auditLogger, summaryCache, suppliers.Config{
		CatalogEnabled: cfg.FeatureSupplierCatalog,
	})
	purchasingService := purchasing.NewService(purchasing.NewRepository(dbpool), purchasing.Config{
		AllowNegativeStock: cfg.InventoryAllowNegative,
	}, purchasing.Deps{
		Audit:       auditLogger,
		Idempotency: idempotencyStore,
		Metrics:     metrics,
		Cache:       summaryCache,
	})

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		Database:          dbpool,
		PurchasingHandler: purchasing.NewHandler(logger, purchasingService),
		SupplierHandler:   suppliers.NewHandler(logger, supplierService),
		InventoryHandler:  inventory.NewHandler(logger, inventoryService),
		JobHandler:        jobs.NewHandler(inspector, logger),
		Metrics:           metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server",
			slog.String("addr", cfg.AppAddr),
			slog.Bool("supplier_catalog", cfg.FeatureSupplierCatalog),
			slog.Bool("allow_negative_stock", cfg.InventoryAllowNegative),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}

// prepareSchema optionally migrates and refuses to start the supplier catalog
// on a schema that does not carry it.
func prepareSchema(cfg *app.Config, logger *slog.Logger) error {
	if !cfg.MigrateOnStart && !cfg.FeatureSupplierCatalog {
		return nil
	}
	migrator, err := db.NewMigrator(cfg.PGDSN)
	if err != nil {
		return err
	}
	defer func() {
		if err := migrator.Close(); err != nil {
			logger.Warn("close migrator", slog.Any("error", err))
		}
	}()
	if cfg.MigrateOnStart {
		if err := migrator.Up(); err != nil {
			return err
		}
	}
	version, dirty, err := migrator.Version()
	if err != nil {
		return err
	}
	logger.Info("schema ready", slog.Uint64("version", uint64(version)), slog.Bool("dirty", dirty))
	if cfg.FeatureSupplierCatalog {
		return db.RequireVersion(version, dirty, db.SupplierCatalogVersion)
	}
	return nil
}
