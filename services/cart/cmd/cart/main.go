package main

import (
	"context"
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

	pkgdb "github.com/Skotchmaster/watch_store/pkg/db"
	"github.com/Skotchmaster/watch_store/pkg/logging"
	"github.com/Skotchmaster/watch_store/pkg/metrics"
	loggingmw "github.com/Skotchmaster/watch_store/pkg/middleware/logging"
	"github.com/Skotchmaster/watch_store/pkg/tracing"

	cartcfg "github.com/Skotchmaster/watch_store/services/cart/internal/config"
	"github.com/Skotchmaster/watch_store/services/cart/internal/httpserver"
	"github.com/Skotchmaster/watch_store/services/cart/internal/repo"
	"github.com/Skotchmaster/watch_store/services/cart/internal/service"
)

func main() {
	if err := godotenv.Load("services/cart/.env"); err != nil {
		log.Printf("warning: could not load .env: %v", err)
	}

	cfg := cartcfg.Load()

	logger := logging.New(cfg.LogLevel).With("service", cfg.ServiceName)
	slog.SetDefault(logger)

	shutdownTracing, err := tracing.Init(cfg.ServiceName, cfg.TracesExporter, os.Stdout)
	if err != nil {
		log.Fatalf("tracing init: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	db, err := pkgdb.Open(ctx, cfg.DatabaseURL)
	cancel()
	if err != nil {
		log.Fatalf("db open: %v", err)
	}
	if cfg.AutoMigrate {
		if err := repo.Migrate(db); err != nil {
			log.Fatalf("migrate: %v", err)
		}
	}

	m := metrics.New("cart")
	handler := &httpserver.CartHTTP{Svc: &service.CartService{Repo: &repo.GormRepo{DB: db}}}

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(loggingmw.RequestLogger(logger))
	e.Use(m.Middleware())
	e.Use(echomw.CORS())

	httpserver.Register(e, &httpserver.Deps{
		CartHandler: handler,
		JWTSecret:   cfg.JWTAccessSecret,
		Metrics:     m,
		Ready:       func(ctx context.Context) error { return pkgdb.Ping(ctx, db) },
	})

	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.ServerPort),
		Handler:           tracing.Handler(e, "cart"),
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		ReadHeaderTimeout: 3 * time.Second,
	}

	go func() {
		logger.Info("cart_listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	logger.Info("cart_shutting_down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server_shutdown_error", "error", err)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Warn("tracing_shutdown_error", "error", err)
	}
	if err := pkgdb.Close(db); err != nil {
		logger.Warn("db_close_error", "error", err)
	}
	logger.Info("cart_stopped")
}
