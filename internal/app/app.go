// Package app wires the stores, transports and services shared by the API
// server and the operational CLI.
package app

import (
	"context"
	"errors"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"resourcehive/internal/caching"
	"resourcehive/internal/clock"
	"resourcehive/internal/config"
	"resourcehive/internal/events"
	"resourcehive/internal/metrics"
	"resourcehive/internal/notifier"
	"resourcehive/internal/reports"
	"resourcehive/internal/services"
	"resourcehive/internal/store"
	"resourcehive/pkg/database"
	"resourcehive/pkg/logger"
)

// backgroundBuffer bounds the email and SMS messages waiting for a sender
const backgroundBuffer = 256

type App struct {
	Config   *config.Config
	Pool     *pgxpool.Pool
	Store    store.Store
	Redis    *redis.Client
	Cache    caching.CacheService
	Events   events.Publisher
	Notifier *notifier.Notifier
	Registry *prometheus.Registry
	Metrics  *metrics.Metrics
	Archive  *reports.Archive

	Scheduler     services.SchedulerService
	Requests      services.RequestService
	Inventory     services.InventoryService
	Notifications services.NotificationService
	Maintenance   services.MaintenanceService

	queue      *asynq.Client
	background *notifier.BackgroundDispatcher
}

// Build connects every backing service named in cfg. Kafka, MinIO and the
// delivery queue are optional.
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{Config: cfg, Registry: prometheus.NewRegistry()}
	a.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.Metrics = metrics.New(a.Registry)

	pool, err := database.NewPool(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	a.Pool = pool
	if err := database.Migrate(ctx, pool); err != nil {
		a.Close()
		return nil, err
	}
	a.Store = store.NewPostgres(pool, cfg.LockTimeout())

	if cfg.Redis.Addr != "" {
		a.Redis = caching.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		a.Cache = caching.NewRedisCacheService(a.Redis)
		if err := a.Cache.Ping(ctx); err != nil {
			logger.Warn(ctx).Err(err).Msg("redis unavailable, continuing without cache")
		}
	}

	a.Events = events.Nop{}
	if len(cfg.Kafka.Brokers) > 0 {
		publisher, err := events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.Events = publisher
	}

	var templateSource notifier.TemplateSource
	if a.Cache != nil {
		templateSource = a.Cache
	}
	a.Notifier = notifier.New(notifier.NewTemplates(templateSource), a.dispatcher(), a.Metrics)

	if cfg.MinIO.Endpoint != "" {
		client, err := reports.NewMinioClient(cfg.MinIO.Endpoint, cfg.MinIO.AccessKey, cfg.MinIO.SecretKey, cfg.MinIO.UseSSL)
		if err != nil {
			a.Close()
			return nil, err
		}
		archive := reports.NewArchive(client, cfg.MinIO.Bucket, true)
		if err := archive.EnsureBucket(ctx); err != nil {
			logger.Warn(ctx).Err(err).Str("bucket", cfg.MinIO.Bucket).Msg("report archive unavailable")
		} else {
			a.Archive = archive
		}
	}

	core := &services.Core{
		Store:    a.Store,
		Clock:    clock.NewReal(cfg.Location()),
		Notifier: a.Notifier,
		Events:   a.Events,
		Cache:    a.Cache,
		Metrics:  a.Metrics,
	}
	a.Scheduler = services.NewSchedulerService(core, services.SchedulerOptions{
		NearOverdueFraction: cfg.Inventory.NearOverdueFraction,
	})
	a.Requests = services.NewRequestService(core, a.Scheduler)
	a.Inventory = services.NewInventoryService(core)
	a.Notifications = services.NewNotificationService(a.Store)
	a.Maintenance = services.NewMaintenanceService(core, a.Scheduler, cfg.Inventory.ExpiringSupplyDays)
	return a, nil
}

// RedisOpt returns the asynq connection for the configured Redis
func (a *App) RedisOpt() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{Addr: a.Redis.Options().Addr, Password: a.Config.Redis.Password, DB: a.Config.Redis.DB}
}

// QueueEnabled reports whether email and SMS go through the delivery queue
func (a *App) QueueEnabled() bool {
	return a.queue != nil
}

func (a *App) dispatcher() notifier.Dispatcher {
	cfg := a.Config.Notifier
	if cfg.AsyncQueue && a.Redis != nil {
		a.queue = asynq.NewClient(a.RedisOpt())
		return notifier.NewQueueDispatcher(a.queue)
	}
	a.background = notifier.NewBackgroundDispatcher(a.Senders(), cfg.Concurrency, backgroundBuffer)
	return a.background
}

// Senders builds the direct email and SMS senders. Unconfigured channels log.
func (a *App) Senders() *notifier.DirectDispatcher {
	cfg := a.Config.Notifier
	d := &notifier.DirectDispatcher{Email: notifier.LogSender{}, SMS: notifier.LogSender{}}
	if cfg.SMTPHost != "" {
		d.Email = notifier.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.FromAddress)
	}
	if cfg.SMSAPIURL != "" {
		d.SMS = notifier.NewHTTPSMSSender(cfg.SMSAPIURL, cfg.SMSAPIKey, cfg.SMSSender, cfg.SMSPerSecond)
	}
	return d
}

func (a *App) Close() {
	var errs []error
	if a.background != nil {
		errs = append(errs, a.background.Close())
	}
	if a.queue != nil {
		errs = append(errs, a.queue.Close())
	}
	if a.Events != nil {
		errs = append(errs, a.Events.Close())
	}
	if a.Redis != nil {
		errs = append(errs, a.Redis.Close())
	}
	if a.Pool != nil {
		a.Pool.Close()
	}
	if err := errors.Join(errs...); err != nil {
		logger.Warn(context.Background()).Err(err).Msg("error while closing resources")
	}
}
