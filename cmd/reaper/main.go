package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hackgods/clinic-chat-scheduling/internal/appointment"
	"github.com/hackgods/clinic-chat-scheduling/internal/bootstrap"
	"github.com/hackgods/clinic-chat-scheduling/internal/chat"
	"github.com/hackgods/clinic-chat-scheduling/internal/config"
	"github.com/hackgods/clinic-chat-scheduling/internal/observability/metrics"
	"github.com/hackgods/clinic-chat-scheduling/pkg/logging"
)

func main() {
	metricsAddr := flag.String("metrics-addr", ":9102", "address for the /metrics endpoint, empty to disable")
	once := flag.Bool("once", false, "run a single sweep and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logging.New("reaper", "info").Error("config load error", "error", err)
		os.Exit(1)
	}

	logger := logging.New("reaper", cfg.LogLevel).Logger
	if cfg.UsesMemory() {
		logger.Error("the reaper needs the postgres backend; the memory backend sweeps inside api-server")
		os.Exit(1)
	}

	logger.Info("reaper starting up",
		"env", cfg.Env,
		"interval", cfg.WorkerInterval,
		"conversation_idle_ttl", cfg.ConversationIdleTTL,
		"placeholder_ttl", cfg.PlaceholderTTL,
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	connCtx, cancelConn := context.WithTimeout(rootCtx, 15*time.Second)
	store, err := bootstrap.OpenStorage(connCtx, cfg, logger)
	cancelConn()
	if err != nil {
		logger.Error("storage connection error", "error", err)
		os.Exit(1)
	}
	defer store.Close(logger)

	reg := prometheus.NewRegistry()
	m := metrics.NewSchedulingMetrics(reg)

	svc := appointment.NewService(store.Repo, store.SlotLocks, cfg, logger, m)
	reaper := chat.NewReaper(store.Conversations, svc, cfg.ConversationIdleTTL, cfg.WorkerInterval, logger, m)

	if *once {
		conversations, holds := reaper.Sweep(rootCtx)
		logger.Info("single sweep finished", "conversations", conversations, "holds", holds)
		return
	}

	if *metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		srv := &http.Server{Addr: *metricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server error", "error", err)
			}
		}()
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
			defer cancel()
			_ = srv.Shutdown(ctx)
		}()
	}

	reaper.Run(rootCtx)
	logger.Info("reaper stopped")
}
