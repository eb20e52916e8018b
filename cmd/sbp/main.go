package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/sbp-ops/sbp-ops/internal/app"
	"github.com/sbp-ops/sbp-ops/internal/auth"
	"github.com/sbp-ops/sbp-ops/internal/events"
	"github.com/sbp-ops/sbp-ops/internal/invoice"
	"github.com/sbp-ops/sbp-ops/internal/kasbon"
	"github.com/sbp-ops/sbp-ops/internal/observability"
	"github.com/sbp-ops/sbp-ops/internal/platform/cache"
	"github.com/sbp-ops/sbp-ops/internal/platform/db"
	"github.com/sbp-ops/sbp-ops/internal/product"
	"github.com/sbp-ops/sbp-ops/internal/shared"
	"github.com/sbp-ops/sbp-ops/internal/stock"
	"github.com/sbp-ops/sbp-ops/internal/suratjalan"
	"github.com/sbp-ops/sbp-ops/internal/ws"
	"github.com/sbp-ops/sbp-ops/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping server startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, stok summary cache disabled", slog.Any("error", err))
		redisClient = nil
	}
	defer func() {
		if redisClient != nil {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}
	}()

	metrics := observability.NewMetrics()
	hub := events.NewHub(cfg.WSEventBuffer)
	pub := events.CountingPublisher{Next: hub, Count: metrics.CountEvent}

	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTTTL)
	authService := auth.NewService(auth.NewRepository(pool), tokens)
	authHandler := auth.NewHandler(logger, authService)

	kasbonService := kasbon.NewService(logger, kasbon.NewRepository(pool), pub)
	kasbonHandler := kasbon.NewHandler(logger, kasbonService)

	stockService := stock.NewService(logger, stock.NewRepository(pool), pub, redisClient)
	stockHandler := stock.NewHandler(logger, stockService)

	auditLogger := shared.NewAuditLogger(pool)
	suratJalanService := suratjalan.NewService(logger, suratjalan.NewRepository(pool), pub, auditLogger)
	suratJalanHandler := suratjalan.NewHandler(logger, suratJalanService)

	invoiceService := invoice.NewService(logger, invoice.NewRepository(pool), pub)
	invoiceHandler := invoice.NewHandler(logger, invoiceService)

	productService := product.NewService(logger, product.NewRepository(pool), pub)
	productHandler := product.NewHandler(logger, productService)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	wsHandler := ws.NewHandler(logger, hub, cfg.WSHeartbeatInterval, cfg.WSClientTimeout)

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		Tokens:            tokens,
		AuthHandler:       authHandler,
		KasbonHandler:     kasbonHandler,
		StockHandler:      stockHandler,
		SuratJalanHandler: suratJalanHandler,
		InvoiceHandler:    invoiceHandler,
		ProductHandler:    productHandler,
		JobHandler:        jobHandler,
		WSHandler:         wsHandler,
		Metrics:           metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
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
