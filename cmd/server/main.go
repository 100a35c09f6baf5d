package main // Entry point package

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/seat-allotment/internal/config"
	"github.com/iliyamo/seat-allotment/internal/database"
	"github.com/iliyamo/seat-allotment/internal/handler"
	"github.com/iliyamo/seat-allotment/internal/logger"
	"github.com/iliyamo/seat-allotment/internal/middleware"
	"github.com/iliyamo/seat-allotment/internal/queue"
	"github.com/iliyamo/seat-allotment/internal/repository"
	"github.com/iliyamo/seat-allotment/internal/router"
	"github.com/iliyamo/seat-allotment/internal/service"
)

func main() {
	// A missing .env is fine; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log, err := logger.New(cfg.Log)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dsn := database.DSN(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	db, err := database.Open(ctx, dsn, database.DefaultOptions())
	if err != nil {
		return err
	}
	defer db.Close()
	if cfg.Allotment.AutoMigrate {
		if err := database.CreateSchema(ctx, db); err != nil {
			return err
		}
		log.Info("schema ensured")
	}

	// Redis is optional: without it the run lock is process-local and the
	// rate limiter and cache are disabled.
	rdb := config.NewRedisClient(config.LoadRedisConfig())
	if rdb == nil {
		log.Warn("redis unavailable, using in-process run lock; rate limiting and caching disabled")
	} else {
		defer rdb.Close()
	}

	var notifier service.Notifier = service.LogNotifier{Log: log}
	if cfg.Queue.URL != "" {
		pub := service.NewQueuePublisher(cfg.Queue, log)
		defer pub.Close()
		notifier = pub
		if cfg.Queue.ConsumerEnabled {
			go func() {
				if err := queue.StartNotificationConsumer(ctx, cfg.Queue, log.Named("consumer")); err != nil && !errors.Is(err, context.Canceled) {
					log.Error("notification consumer exited", zap.Error(err))
				}
			}()
		}
	} else {
		log.Warn("no broker configured, notifications are only logged")
	}

	svc := service.NewAllotmentService(
		repository.NewMySQLStore(db),
		notifier,
		service.NewRunLocker(rdb),
		cfg.Allotment,
		log.Named("allotment"),
	)

	cacheCfg := config.LoadCacheConfig()
	purge := func(ctx context.Context) {
		if err := middleware.PurgeCache(ctx, cacheCfg, rdb); err != nil {
			log.Warn("cache purge failed", zap.Error(err))
		}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.RequestLogger(log.Named("http")))

	router.RegisterRoutes(e, db)
	router.RegisterApplicant(e, handler.NewApplicantHandler(svc, purge), cfg.JWTSecret,
		middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, log))
	router.RegisterAdmin(e, handler.NewAdminHandler(svc, purge), cfg.JWTSecret,
		middleware.NewRedisCache(cacheCfg, rdb))

	addr := ":" + cfg.Port
	errc := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}
