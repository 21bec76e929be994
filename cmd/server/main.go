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

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/campus-marketplace/internal/assets"
	"github.com/iliyamo/campus-marketplace/internal/config"
	"github.com/iliyamo/campus-marketplace/internal/database"
	"github.com/iliyamo/campus-marketplace/internal/handler"
	"github.com/iliyamo/campus-marketplace/internal/logging"
	"github.com/iliyamo/campus-marketplace/internal/middleware"
	"github.com/iliyamo/campus-marketplace/internal/queue"
	"github.com/iliyamo/campus-marketplace/internal/repository"
	"github.com/iliyamo/campus-marketplace/internal/router"
	"github.com/iliyamo/campus-marketplace/internal/service"
)

func main() {
	cfg := config.Load()
	log := logging.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		log.Error("store init failed", "driver", cfg.DBDriver, "err", err)
		os.Exit(1)
	}
	defer closeStore()

	events, closeEvents := newPublisher(cfg.Events, log)
	defer closeEvents()

	// nil interface, not a typed nil pointer, when uploads are disabled
	var host assets.Host
	if cfg.CloudinaryURL != "" {
		h, err := assets.NewCloudinaryHost(cfg.CloudinaryURL, cfg.AssetFolder)
		if err != nil {
			log.Error("asset host init failed", "err", err)
			os.Exit(1)
		}
		host = h
	} else {
		log.Warn("CLOUDINARY_URL not set; image uploads disabled")
	}

	rdb := config.NewRedisClient(log)
	if rdb != nil {
		defer rdb.Close()
	}
	rlCfg := config.LoadRateLimitConfig()

	coord := service.NewReservationCoordinator(store, events, log)
	listings := service.NewListingService(store, coord)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(requestLogger(log))
	e.Use(middleware.Metrics())
	e.Use(middleware.NewTokenBucket(rlCfg, rdb, log))

	router.RegisterRoutes(e, handler.NewHealthHandler(store))
	lh := handler.NewListingHandler(listings, log)
	router.RegisterPublic(e, lh, middleware.NewRedisCache(config.LoadCacheConfig(), rdb))
	router.RegisterSeller(e, lh, handler.NewUploadHandler(assets.NewUploader(host, log), log), cfg.JWTSecret)
	router.RegisterReservations(e, handler.NewReservationHandler(coord, log), cfg.JWTSecret,
		middleware.NewWriteBucket(rlCfg, rdb, log))

	addr := ":" + cfg.Port
	go func() {
		log.Info("listening", "addr", addr, "env", cfg.Env, "db", cfg.DBDriver, "events", cfg.Events.Broker)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server error", "err", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown", "err", err)
	}
	log.Info("server stopped")
}

func openStore(ctx context.Context, cfg config.Config, log *slog.Logger) (repository.Store, func(), error) {
	if cfg.DBDriver == "memory" {
		log.Warn("using in-memory store; data is lost on restart")
		return repository.NewMemoryStore(), func() {}, nil
	}

	dsn := cfg.DBDSN
	if dsn == "" {
		if cfg.DBDriver == database.DriverPostgres {
			dsn = database.PostgresDSN(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
		} else {
			dsn = database.MySQLDSN(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
		}
	}
	db, err := database.Open(cfg.DBDriver, dsn)
	if err != nil {
		return nil, nil, err
	}
	if err := database.RunMigrations(ctx, db, cfg.DBDriver, log); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return repository.NewSQLStore(db, repository.Dialect(cfg.DBDriver)), func() { _ = db.Close() }, nil
}

func newPublisher(cfg config.EventsConfig, log *slog.Logger) (queue.Publisher, func()) {
	switch cfg.Broker {
	case "amqp":
		return queue.NewAMQPPublisher(cfg.RabbitMQURL, queue.ActivityQueue, log), func() {}
	case "kafka":
		p := queue.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		return p, func() {
			if err := p.Close(); err != nil {
				log.Warn("kafka writer close", "err", err)
			}
		}
	}
	return queue.NopPublisher{}, func() {}
}

func requestLogger(log *slog.Logger) echo.MiddlewareFunc {
	return echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			attrs := []any{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency_ms", v.Latency.Milliseconds(),
				"request_id", v.RequestID,
			}
			if v.Error != nil {
				log.Error("request", append(attrs, "err", v.Error)...)
				return nil
			}
			log.Info("request", attrs...)
			return nil
		},
	})
}
