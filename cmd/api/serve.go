package main

import (
	"context"
	"database/sql"
	"errors"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/georgemunganga/pos-backend/internal/config"
	"github.com/georgemunganga/pos-backend/internal/modules/auth"
	"github.com/georgemunganga/pos-backend/internal/modules/product"
	"github.com/georgemunganga/pos-backend/internal/modules/report"
	"github.com/georgemunganga/pos-backend/internal/modules/sale"
	"github.com/georgemunganga/pos-backend/internal/modules/store"
	"github.com/georgemunganga/pos-backend/internal/modules/user"
	"github.com/georgemunganga/pos-backend/internal/platform/httpx"
	"github.com/georgemunganga/pos-backend/internal/platform/logging"
	"github.com/georgemunganga/pos-backend/internal/platform/postgres"
	"github.com/georgemunganga/pos-backend/internal/platform/rpc"
	"github.com/georgemunganga/pos-backend/internal/platform/telemetry"
)

const shutdownTimeout = 15 * time.Second

func serve(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat, config.ServiceName)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, telemetry.Config{
		Endpoint:       cfg.OtelEndpoint,
		AuthHeader:     cfg.OtelAuthHeader,
		ServiceName:    config.ServiceName,
		ServiceVersion: config.ServiceVersion,
	})
	if err != nil {
		return err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(ctx); err != nil {
			logger.Warn("shutdown tracing", zap.Error(err))
		}
	}()

	db, err := postgres.Open(ctx, cfg.DatabaseURL, postgres.PoolConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
	})
	if err != nil {
		return err
	}
	defer db.Close()
	logger.Info("connected to postgres")

	var idem sale.IdempotencyStore
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return err
		}
		idem = sale.NewRedisIdempotency(rdb, cfg.IdempotencyTTL)
		logger.Info("idempotency keys enabled", zap.String("redis", cfg.RedisAddr))
	}

	publisher := sale.NoopPublisher()
	if len(cfg.KafkaBrokers) > 0 {
		w := sale.NewKafkaWriter(cfg.KafkaBrokers)
		defer w.Close()
		publisher = sale.NewKafkaPublisher(w, cfg.KafkaSalesTopic, cfg.KafkaInventoryTopic)
		logger.Info("publishing sale events", zap.Strings("brokers", cfg.KafkaBrokers))
	}

	// ── Modules ─────────────────────────────────────────────
	userRepo := user.NewPostgresRepository(db)
	userService := user.NewService(userRepo)
	authService := auth.NewService(userRepo, auth.Config{
		Secret:     []byte(cfg.JWTSecret),
		AccessTTL:  cfg.JWTAccessTTL,
		RefreshTTL: cfg.JWTRefreshTTL,
	})

	storeService := store.NewService(store.NewPostgresRepository(db))
	productService := product.NewService(product.NewPostgresRepository(db), product.NewPostgresLedger(db))
	saleService := sale.NewService(
		sale.NewTxManager(db),
		sale.NewPostgresRepository(db),
		idem,
		publisher,
		logger.Named("sale"),
		sale.Config{LowStockThreshold: cfg.LowStockThreshold, Timeout: cfg.SaleTimeout},
	)
	reportService := report.NewService(report.NewPostgresRepository(db), cfg.LowStockThreshold)

	// ── Router ──────────────────────────────────────────────
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(logging.Middleware(logger))
	router.Use(middleware.Recoverer)

	router.Get("/health", health(db))
	user.NewHandler(userService).RegisterRoutes(router)
	auth.NewHandler(authService).RegisterRoutes(router)

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(auth.Middleware(authService))
		store.NewHandler(storeService).RegisterRoutes(r)
		product.NewHandler(productService).RegisterRoutes(r)
		sale.NewHandler(saleService).RegisterRoutes(r)
		report.NewHandler(reportService, logger.Named("report")).RegisterRoutes(r)
	})

	httpServer := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	grpcServer := grpc.NewServer(grpc.ChainUnaryInterceptor(
		rpc.UnaryLogger(logger.Named("grpc")),
		auth.UnaryInterceptor(authService),
	))
	sale.RegisterGRPC(grpcServer, saleService)

	// ── Start Servers ───────────────────────────────────────
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("HTTP server listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
		if err != nil {
			return err
		}
		logger.Info("gRPC server listening", zap.String("addr", lis.Addr().String()))
		return grpcServer.Serve(lis)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		grpcServer.GracefulStop()
		return httpServer.Shutdown(ctx)
	})
	return g.Wait()
}

func health(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			httpx.Respond(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
		httpx.Respond(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
