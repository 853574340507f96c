package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/hibiken/asynq"
	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/random"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"resourcehive/internal/app"
	"resourcehive/internal/config"
	_ "resourcehive/internal/docs"
	"resourcehive/internal/handlers"
	"resourcehive/internal/jobs"
	"resourcehive/internal/jobs/background"
	"resourcehive/internal/middleware"
	"resourcehive/internal/notifier"
	"resourcehive/pkg/logger"
)

const version = "1.0.0"

func main() {
	configPath := flag.String("config", config.Path(), "path to the TOML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	logger.Init("resourcehive", cfg.IsDevelopment())
	logger.SetLevel(cfg.Server.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		logger.Error(ctx).Err(err).Msg("server stopped with error")
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	application, err := app.Build(ctx, cfg)
	if err != nil {
		return err
	}
	defer application.Close()

	keys, stopKeys, err := keyfunc(ctx, cfg)
	if err != nil {
		return err
	}
	defer stopKeys()

	var jobScheduler *background.JobScheduler
	var archive background.ReportArchiver
	if application.Archive != nil {
		archive = application.Archive
	}
	if cfg.Scheduler.Enabled {
		jobScheduler, err = background.NewJobScheduler(cfg.Scheduler, application.Scheduler, application.Maintenance, archive)
		if err != nil {
			return fmt.Errorf("failed to create job scheduler: %w", err)
		}
	}

	directory := middleware.NewDirectory(application.Store)
	health := handlers.NewHealthHandlers(version).Register("database", application.Store.Ping, true)
	if application.Cache != nil {
		health.Register("redis", application.Cache.Ping, false)
	}

	api := &handlers.API{
		Batches:       handlers.NewBatchHandlers(application.Requests),
		Items:         handlers.NewInventoryHandlers(application.Inventory),
		Notifications: handlers.NewNotificationHandlers(application.Notifications),
		Health:        health,
		Authenticate:  middleware.JWTMiddleware(keys, directory),
		RBAC:          middleware.NewRBACMiddleware(directory),
		Audit:         middleware.NewAuditMiddleware(directory, nil),
		Version:       middleware.NewVersionMiddleware(),
		Metrics:       echo.WrapHandler(promhttp.HandlerFor(application.Registry, promhttp.HandlerOpts{})),
	}
	if jobScheduler != nil {
		api.Jobs = handlers.NewJobHandlers(application.Scheduler, application.Maintenance, archive, jobScheduler)
	} else {
		api.Jobs = handlers.NewJobHandlers(application.Scheduler, application.Maintenance, archive, nil)
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(echoMiddleware.Recover())
	e.Use(echoMiddleware.RequestID())
	e.Use(requestLogger())
	e.Use(echoMiddleware.CORS())
	e.Use(echoMiddleware.RemoveTrailingSlash())
	api.Register(e)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		logger.Info(gctx).Str("addr", addr).Str("version", version).Msg("ResourceHive server starting")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if jobScheduler != nil {
		jobScheduler.Start()
		logger.Info(gctx).Int("jobs", len(jobScheduler.GetJobStatus())).Msg("background jobs scheduled")
	}

	var deliveryServer *asynq.Server
	if application.QueueEnabled() {
		deliveryServer = jobs.NewDeliveryServer(application.RedisOpt(), cfg.Notifier.Concurrency)
		mux := asynq.NewServeMux()
		jobs.NewDeliveryHandler(notifier.New(nil, application.Senders(), application.Metrics)).Register(mux)
		if err := deliveryServer.Start(mux); err != nil {
			return fmt.Errorf("failed to start delivery worker: %w", err)
		}
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info(context.Background()).Msg("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		var errs []error
		errs = append(errs, e.Shutdown(shutdownCtx))
		if jobScheduler != nil {
			errs = append(errs, jobScheduler.Stop())
		}
		if deliveryServer != nil {
			deliveryServer.Shutdown()
		}
		return errors.Join(errs...)
	})

	return g.Wait()
}

// keyfunc prefers the JWKS endpoint and falls back to the shared secret
func keyfunc(ctx context.Context, cfg *config.Config) (jwt.Keyfunc, func(), error) {
	if cfg.Auth.JWKSURL != "" {
		return middleware.JWKSKeyfunc(ctx, cfg.Auth.JWKSURL)
	}
	secret := cfg.Auth.JWTSecret
	if secret == "" {
		if !cfg.IsDevelopment() {
			return nil, nil, errors.New("JWT_SECRET or JWKS_URL is required")
		}
		secret = random.String(32)
		logger.Warn(ctx).Msg("using a generated JWT secret for development")
	}
	return middleware.HMACKeyfunc(secret), func() {}, nil
}

func requestLogger() echo.MiddlewareFunc {
	return echoMiddleware.RequestLoggerWithConfig(echoMiddleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echoMiddleware.RequestLoggerValues) error {
			ev := logger.Info(c.Request().Context())
			if v.Error != nil || v.Status >= http.StatusInternalServerError {
				ev = logger.Error(c.Request().Context()).Err(v.Error)
			}
			ev.Str("method", v.Method).Str("uri", v.URI).Int("status", v.Status).
				Dur("latency", v.Latency).Str("request_id", v.RequestID).Msg("request")
			return nil
		},
	})
}
