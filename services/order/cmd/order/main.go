package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"golang.org/x/sync/errgroup"

	pkgdb "github.com/Skotchmaster/watch_store/pkg/db"
	"github.com/Skotchmaster/watch_store/pkg/events"
	"github.com/Skotchmaster/watch_store/pkg/idempotency"
	"github.com/Skotchmaster/watch_store/pkg/logging"
	"github.com/Skotchmaster/watch_store/pkg/metrics"
	loggingmw "github.com/Skotchmaster/watch_store/pkg/middleware/logging"
	"github.com/Skotchmaster/watch_store/pkg/outbox"
	"github.com/Skotchmaster/watch_store/pkg/tracing"

	ordercfg "github.com/Skotchmaster/watch_store/services/order/internal/config"
	"github.com/Skotchmaster/watch_store/services/order/internal/httpserver"
	"github.com/Skotchmaster/watch_store/services/order/internal/repo"
	"github.com/Skotchmaster/watch_store/services/order/internal/service"
)

func main() {
	if err := godotenv.Load("services/order/.env"); err != nil {
		log.Printf("warning: could not load .env: %v", err)
	}

	cfg := ordercfg.Load()

	logger := logging.New(cfg.LogLevel).With("service", cfg.ServiceName)
	slog.SetDefault(logger)

	shutdownTracing, err := tracing.Init(cfg.ServiceName, cfg.TracesExporter, os.Stdout)
	if err != nil {
		log.Fatalf("tracing init: %v", err)
	}

	initCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	db, err := pkgdb.Open(initCtx, cfg.DatabaseURL)
	cancel()
	if err != nil {
		log.Fatalf("db open: %v", err)
	}
	if cfg.AutoMigrate {
		if err := repo.Migrate(db); err != nil {
			log.Fatalf("migrate: %v", err)
		}
	}

	m := metrics.New("order")
	producer := events.NewProducer(cfg.KafkaBrokers)

	var idem *idempotency.Store
	if cfg.RedisURL != "" {
		rdb, err := idempotency.NewRedisClient(cfg.RedisURL)
		if err != nil {
			log.Fatalf("redis: %v", err)
		}
		defer rdb.Close()
		idem = idempotency.NewStore(rdb, cfg.IdempotencyTTL)
	} else {
		logger.Warn("idempotency_disabled", "reason", "REDIS_URL is empty")
	}

	orderRepo := &repo.GormRepo{DB: db, Outbox: outbox.Outbox{NotifyChannel: cfg.OutboxNotifyChannel}}
	svc := &service.OrderService{Repo: orderRepo, Metrics: m, Topic: cfg.OrderTopic}
	handler := &httpserver.OrderHTTP{Svc: svc}

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(loggingmw.RequestLogger(logger))
	e.Use(m.Middleware())
	e.Use(echomw.CORS())

	httpserver.Register(e, &httpserver.Deps{
		OrderHandler: handler,
		JWTSecret:    cfg.JWTAccessSecret,
		Idempotency:  idem,
		Metrics:      m,
		Ready:        func(ctx context.Context) error { return pkgdb.Ping(ctx, db) },
	})

	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.ServerPort),
		Handler:           tracing.Handler(e, "order"),
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		ReadHeaderTimeout: 3 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("order_listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if producer.Enabled() {
		relay := &outbox.Relay{
			DB:        db,
			Publisher: producer,
			BatchSize: cfg.OutboxBatchSize,
			Interval:  cfg.OutboxPollInterval,
			Logger:    logger,
			OnPublish: m.OutboxPublish,
		}
		if cfg.OutboxNotifyChannel != "" {
			wake, closeListener, err := outbox.ListenPQ(gctx, cfg.DatabaseURL, cfg.OutboxNotifyChannel, logger)
			if err != nil {
				logger.Warn("outbox_listener_disabled", "error", err)
			} else {
				defer closeListener()
				relay.Wake = wake
			}
		}
		g.Go(func() error { return relay.Run(gctx) })
	} else {
		logger.Warn("outbox_relay_disabled", "reason", "KAFKA_BROKERS is empty")
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("order_shutting_down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("order_stopped_with_error", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Warn("tracing_shutdown_error", "error", err)
	}
	if err := producer.Close(); err != nil {
		logger.Warn("kafka_close_error", "error", err)
	}
	if err := pkgdb.Close(db); err != nil {
		logger.Warn("db_close_error", "error", err)
	}
	logger.Info("order_stopped")
}
