package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	goRedis "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	apigraphql "github.com/fastygo/ocxers/api/graphql"
	apiHandler "github.com/fastygo/ocxers/api/handler"
	"github.com/fastygo/ocxers/internal/auth"
	"github.com/fastygo/ocxers/internal/config"
	"github.com/fastygo/ocxers/internal/indices"
	mailInfra "github.com/fastygo/ocxers/internal/infrastructure/mail"
	"github.com/fastygo/ocxers/internal/infrastructure/monitor"
	redisInfra "github.com/fastygo/ocxers/internal/infrastructure/redis"
	"github.com/fastygo/ocxers/internal/infrastructure/storage"
	"github.com/fastygo/ocxers/internal/metrics"
	"github.com/fastygo/ocxers/internal/middleware"
	"github.com/fastygo/ocxers/internal/router"
	"github.com/fastygo/ocxers/internal/services/lifecycle"
	"github.com/fastygo/ocxers/internal/services/realtime"
	"github.com/fastygo/ocxers/internal/services/scheduler"
	"github.com/fastygo/ocxers/pkg/httpcontext"
	"github.com/fastygo/ocxers/pkg/password"
	"github.com/fastygo/ocxers/pkg/token"
	"github.com/fastygo/ocxers/repository/bolt"
	authUC "github.com/fastygo/ocxers/usecase/auth"
	"github.com/fastygo/ocxers/usecase/directory"
	"github.com/fastygo/ocxers/usecase/invalidation"
	"github.com/fastygo/ocxers/usecase/mail"
	"github.com/fastygo/ocxers/usecase/upload"
)

const monitorTimeout = 5 * time.Second

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP, GraphQL and realtime server",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
}

// countingPusher records login-required deliveries.
type countingPusher struct {
	hub     *realtime.Hub
	metrics *metrics.Metrics
}

func (p countingPusher) PushLoginRequired(email string) int {
	n := p.hub.PushLoginRequired(email)
	p.metrics.AddPushes(n)
	return n
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, log, err := bootstrap()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	manager := lifecycle.New(cmd.Context(), cfg.Context.ShutdownTimeout, log)
	manager.Listen()

	if err := start(manager, cfg, log); err != nil {
		return errors.Join(err, manager.Shutdown(context.Background()))
	}

	runErr := manager.Wait()
	if err := manager.Shutdown(context.Background()); err != nil {
		log.Error("graceful shutdown error", zap.Error(err))
		return errors.Join(runErr, err)
	}
	return runErr
}

// start wires every component and launches the background runners. Stop
// functions are registered as components come up.
func start(manager *lifecycle.Manager, cfg *config.Config, log *zap.Logger) error {
	ctx := manager.Context()

	store, err := openStore(ctx, cfg.Store, log)
	if err != nil {
		return err
	}
	manager.OnStop("store", func(context.Context) error { return store.Close() })
	indices.EnsureAll(ctx, store)

	var m *metrics.Metrics
	if cfg.HTTP.EnableMetrics {
		m = metrics.New()
	}
	if embedded, ok := store.(*bolt.Gateway); ok {
		if err := m.GaugeFunc("store_open_read_transactions", "Open read transactions on the embedded store.", func() float64 {
			return float64(embedded.Stats().OpenTxN)
		}); err != nil {
			return fmt.Errorf("register store gauge: %w", err)
		}
	}

	hubOpts := []realtime.HubOption{realtime.WithSendBuffer(cfg.Realtime.SendBuffer)}
	var (
		redisClient *goRedis.Client
		bus         *redisInfra.Bus
	)
	if cfg.Redis.URL != "" {
		redisClient, err = redisInfra.NewClient(ctx, cfg.Redis, log)
		if err != nil {
			return fmt.Errorf("redis connection failed: %w", err)
		}
		manager.OnStop("redis", func(context.Context) error { return redisClient.Close() })
		bus = redisInfra.NewBus(redisClient, cfg.Redis.Channel, log)
		hubOpts = append(hubOpts, realtime.WithRelay(bus))
	}
	hub := realtime.NewHub(log, hubOpts...)
	manager.OnStop("realtime", func(context.Context) error {
		hub.Close()
		return nil
	})
	if bus != nil {
		manager.Go("realtime_relay", func(ctx context.Context) error {
			return bus.Run(ctx, func(msg realtime.Relayed) {
				m.AddPushes(hub.Receive(msg))
			})
		})
	}
	if err := m.GaugeFunc("realtime_connections", "Identified realtime connections on this instance.", func() float64 {
		return float64(hub.Len())
	}); err != nil {
		return fmt.Errorf("register realtime gauge: %w", err)
	}

	registry := invalidation.NewRegistry(store, countingPusher{hub: hub, metrics: m}, log)
	accounts := directory.New(store, registry, log)
	tokens := token.NewManager(cfg.JWT.Secret)

	sender, err := newMailSender(ctx, cfg.Mail, log)
	if err != nil {
		return err
	}
	mailer, err := mail.NewService(sender, mail.Config{
		NoReply:   cfg.Mail.NoReply,
		FromTitle: cfg.Mail.FromTitle,
		AppHost:   cfg.Hosts.LinkHost(),
	}, log)
	if err != nil {
		return err
	}

	objects, err := newObjectStore(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	uploads := upload.NewService(objects, cfg.Storage.Folder, log)

	authUseCase := authUC.New(accounts, registry, mailer, tokens, password.NewBcrypt(0), authUC.Config{
		LinkHost:   cfg.Hosts.LinkHost(),
		APIHost:    cfg.Hosts.APIHost,
		SessionTTL: cfg.JWT.SessionTTL,
		InviteTTL:  cfg.JWT.InviteTTL,
		ResetTTL:   cfg.JWT.ResetTTL,
	}, log)
	gate := auth.NewGate(tokens, log)

	schema, err := apigraphql.NewSchema(authUseCase, gate, m, log)
	if err != nil {
		return fmt.Errorf("build graphql schema: %w", err)
	}

	var redisPinger monitor.RedisPinger
	if redisClient != nil {
		redisPinger = redisClient
	}
	mon := monitor.New(store, redisPinger, log)
	if err := mon.Refresh(ctx); err != nil {
		log.Warn("initial dependency check failed", zap.Error(err))
	}

	sched := scheduler.New(log)
	daily := &scheduler.Hooks{}
	if err := errors.Join(
		sched.Add(scheduler.Task{Name: "monitor", Every: cfg.Worker.MonitorInterval, Timeout: monitorTimeout, Run: mon.Refresh}),
		sched.Add(scheduler.Task{Name: "daily", Every: cfg.Worker.Interval, Run: daily.Run}),
	); err != nil {
		return fmt.Errorf("schedule tasks: %w", err)
	}
	sched.Start()
	manager.OnStop("scheduler", sched.Stop)

	adapter := httpcontext.NewAdapter(ctx, cfg.Context.RequestTimeout)
	greeter := realtime.NewGreeter(hub, accounts, registry, log)
	handlers := router.Handlers{
		Health:   apiHandler.NewHealthHandler(mon, adapter, log),
		GraphQL:  apiHandler.NewGraphQLHandler(schema, adapter, log),
		Realtime: apiHandler.NewRealtimeHandler(ctx, greeter, cfg.Realtime.Origins(), adapter, log),
		Account:  apiHandler.NewAccountHandler(adapter, log),
		Email:    apiHandler.NewEmailHandler(mailer, adapter, log),
		Upload:   apiHandler.NewUploadHandler(uploads, adapter, log),
		Notify:   apiHandler.NewNotifyHandler(hub, adapter, log),
	}
	opts := router.Options{RealtimePath: cfg.Realtime.Path, Pprof: cfg.HTTP.EnablePprof}
	if m != nil {
		opts.Metrics = m.Handler()
	}
	r := router.New(handlers, middleware.JWTAuth(gate, log), opts)

	handler := middleware.RequestLogger(log, m)(r.Handler)
	handler = middleware.CORS(cfg.Realtime.Origins())(handler)

	server := &fasthttp.Server{
		Handler:            handler,
		ReadTimeout:        cfg.HTTP.ReadTimeout,
		WriteTimeout:       cfg.HTTP.WriteTimeout,
		IdleTimeout:        cfg.HTTP.IdleTimeout,
		MaxRequestBodySize: cfg.HTTP.MaxBodySize,
		Name:               cfg.AppName,
	}
	manager.Go("http_server", func(context.Context) error {
		log.Info("server started", zap.String("address", cfg.Address()))
		return server.ListenAndServe(cfg.Address())
	})
	manager.OnStop("http_server", server.ShutdownWithContext)
	return nil
}

func newMailSender(ctx context.Context, cfg config.MailConfig, log *zap.Logger) (mail.Sender, error) {
	if cfg.Driver == config.MailSES {
		sender, err := mailInfra.NewSES(ctx, cfg, log)
		if err != nil {
			return nil, fmt.Errorf("ses client: %w", err)
		}
		return sender, nil
	}
	return mailInfra.NewLog(log), nil
}

func newObjectStore(ctx context.Context, cfg config.StorageConfig) (upload.ObjectStore, error) {
	if cfg.Driver == config.StorageMinio {
		store, err := storage.NewMinio(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("minio client: %w", err)
		}
		return store, nil
	}
	store, err := storage.NewS3(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("s3 client: %w", err)
	}
	return store, nil
}
