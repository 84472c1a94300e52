package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hackgods/clinic-chat-scheduling/internal/api"
	"github.com/hackgods/clinic-chat-scheduling/internal/appointment"
	"github.com/hackgods/clinic-chat-scheduling/internal/bootstrap"
	"github.com/hackgods/clinic-chat-scheduling/internal/chat"
	"github.com/hackgods/clinic-chat-scheduling/internal/config"
	"github.com/hackgods/clinic-chat-scheduling/internal/observability/errreport"
	"github.com/hackgods/clinic-chat-scheduling/internal/observability/metrics"
	"github.com/hackgods/clinic-chat-scheduling/internal/slots"
	"github.com/hackgods/clinic-chat-scheduling/pkg/logging"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.New("api-server", "info").Error("config load error", "error", err)
		os.Exit(1)
	}

	logger := logging.New("api-server", cfg.LogLevel).Logger
	logger.Info("api-server starting up",
		"env", cfg.Env,
		"http_port", cfg.HTTPPort,
		"storage", cfg.StorageBackend,
		"version", version,
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reporter, err := errreport.New(cfg.SentryDSN, cfg.Env, version)
	if err != nil {
		logger.Warn("sentry disabled", "error", err)
	}
	defer reporter.Flush(2 * time.Second)

	startCtx, cancelStart := context.WithTimeout(rootCtx, 15*time.Second)
	store, err := bootstrap.OpenStorage(startCtx, cfg, logger)
	if err != nil {
		cancelStart()
		logger.Error("storage connection error", "error", err)
		os.Exit(1)
	}
	defer store.Close(logger)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewSchedulingMetrics(reg)

	providers, err := bootstrap.BuildProviders(startCtx, cfg, logger, m)
	cancelStart()
	if err != nil {
		logger.Error("provider setup error", "error", err)
		os.Exit(1)
	}
	defer providers.Close(logger)

	svc := appointment.NewService(store.Repo, store.SlotLocks, cfg, logger, m)
	engine := chat.NewEngine(chat.Deps{
		Repo:     store.Repo,
		Booking:  svc,
		Slots:    slots.NewGenerator(store.Repo, cfg.Clinic.Location, logger, m),
		Intents:  providers.Intents,
		Uploads:  providers.Uploads,
		Clinic:   cfg.Clinic,
		Logger:   logger,
		Metrics:  m,
		Reporter: reporter,
	})

	routerCfg := api.RouterConfig{
		Engine:       engine,
		Store:        store.Conversations,
		Sessions:     store.SessionLocks,
		Catalog:      store.Repo,
		Availability: svc,
		Metrics:      promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
		Logger:       logger,
		Env:          cfg.Env,
		Version:      version,
	}
	if store.Pool != nil {
		routerCfg.Postgres = store.Pool
	}
	if store.Redis != nil {
		routerCfg.Redis = store.Redis
	}

	// The memory backend has no separate reaper process to share state
	// with, so the sweep runs here.
	if cfg.UsesMemory() {
		reaper := chat.NewReaper(store.Conversations, svc, cfg.ConversationIdleTTL, cfg.WorkerInterval, logger, m)
		go reaper.Run(rootCtx)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           api.NewRouter(routerCfg),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.SessionLockTTL + 15*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-rootCtx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			logger.Error("http server error", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}

	logger.Info("api-server stopped")
}
