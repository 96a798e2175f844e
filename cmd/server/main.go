package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/cinema-booking/internal/catalog"
	"github.com/iliyamo/cinema-booking/internal/config"
	"github.com/iliyamo/cinema-booking/internal/database"
	"github.com/iliyamo/cinema-booking/internal/handler"
	"github.com/iliyamo/cinema-booking/internal/logger"
	"github.com/iliyamo/cinema-booking/internal/middleware"
	"github.com/iliyamo/cinema-booking/internal/queue"
	"github.com/iliyamo/cinema-booking/internal/repository"
	"github.com/iliyamo/cinema-booking/internal/reservation"
	"github.com/iliyamo/cinema-booking/internal/router"
	"github.com/iliyamo/cinema-booking/internal/service"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load() // a missing .env is fine

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	log, err := logger.New(logger.Config{Level: cfg.LogLevel, ServiceName: "cinema-booking", Development: cfg.IsDev()})
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := repository.Options{
		MaxAttempts:    cfg.TxMaxAttempts,
		InitialBackoff: cfg.TxInitialBackoff,
		MaxBackoff:     cfg.TxMaxBackoff,
		Logger:         log,
	}
	var (
		store *repository.Store
		db    *sql.DB
	)
	switch cfg.StoreBackend {
	case config.BackendMemory:
		store = repository.NewMemoryStore(opts)
		log.Warn("using in-memory store; data is lost on restart")
	default:
		db, err = database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
		if err != nil {
			return fmt.Errorf("database: %w", err)
		}
		defer db.Close()
		if cfg.DBAutoMigrate {
			if err := database.Migrate(ctx, db); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
		}
		store = repository.NewMySQLStore(db, opts)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	coordOpts := []reservation.Option{reservation.WithLogger(log), reservation.WithValidator(validate)}
	if cfg.EventsEnabled {
		pub := service.NewRabbitPublisher(cfg.AMQPURL, log)
		defer pub.Close()
		coordOpts = append(coordOpts, reservation.WithPublisher(pub))
	}
	coord := reservation.NewCoordinator(store, coordOpts...)
	cat := catalog.New(store, log, validate)

	rdb := config.NewRedisClient(log)
	if rdb != nil {
		defer rdb.Close()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator(validate)
	e.Use(middleware.RequestID())
	e.Use(middleware.AccessLog(log))
	e.Use(echomw.Recover())
	router.RegisterRoutes(e,
		handler.Health(db),
		handler.NewReservationHandler(coord, log),
		handler.NewCatalogHandler(cat, log),
		middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, log),
		middleware.NewRedisCache(config.LoadCacheConfig(), rdb, log),
	)

	g, gctx := errgroup.WithContext(ctx)
	if cfg.EventsConsumerEnabled {
		g.Go(func() error {
			err := queue.StartConsumer(gctx, cfg.AMQPURL, cfg.EventsLogDir, log)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}
	g.Go(func() error {
		addr := ":" + cfg.Port
		log.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env), zap.String("store", cfg.StoreBackend))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return e.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
