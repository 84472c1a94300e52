package chat

import (
	"context"
	"log/slog"
	"time"

	"github.com/hackgods/clinic-chat-scheduling/internal/observability/metrics"
)

// PlaceholderExpirer cancels holds that were never confirmed;
// *appointment.Service implements it.
type PlaceholderExpirer interface {
	ExpireStalePlaceholders(ctx context.Context) (int, error)
}

// Reaper periodically drops idle conversations and expires stale holds.
type Reaper struct {
	store    Store
	holds    PlaceholderExpirer
	idleTTL  time.Duration
	interval time.Duration
	logger   *slog.Logger
	metrics  *metrics.SchedulingMetrics
	now      func() time.Time
}

func NewReaper(store Store, holds PlaceholderExpirer, idleTTL, interval time.Duration, logger *slog.Logger, m *metrics.SchedulingMetrics) *Reaper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reaper{
		store:    store,
		holds:    holds,
		idleTTL:  idleTTL,
		interval: interval,
		logger:   logger,
		metrics:  m,
		now:      time.Now,
	}
}

// WithClock replaces the reaper clock; used by tests.
func (r *Reaper) WithClock(now func() time.Time) *Reaper {
	r.now = now
	return r
}

// Run sweeps once immediately and then on every tick until ctx is done.
func (r *Reaper) Run(ctx context.Context) {
	r.runOnce(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("shutdown signal received, stopping reaper")
			return
		case <-ticker.C:
			r.runOnce(ctx)
		}
	}
}

func (r *Reaper) runOnce(ctx context.Context) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	start := time.Now()
	conversations, holds := r.Sweep(runCtx)
	r.logger.Info("reaper run complete", "conversations", conversations, "placeholders", holds, "duration", time.Since(start))
}

// Sweep performs one pass and reports how many conversations and holds it
// removed. Failures are logged and counted as zero.
func (r *Reaper) Sweep(ctx context.Context) (conversations, holds int) {
	n, err := r.store.DeleteIdle(ctx, r.now().Add(-r.idleTTL))
	if err != nil {
		r.logger.Error("idle conversation sweep failed", "error", err)
	} else {
		conversations = n
		r.metrics.ObserveReaped("conversation", n)
	}

	if r.holds != nil {
		n, err := r.holds.ExpireStalePlaceholders(ctx)
		if err != nil {
			r.logger.Error("placeholder expiry failed", "error", err)
		} else {
			holds = n
		}
	}
	return conversations, holds
}
