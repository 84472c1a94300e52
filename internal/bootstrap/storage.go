package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/hackgods/clinic-chat-scheduling/internal/appointment"
	"github.com/hackgods/clinic-chat-scheduling/internal/chat"
	"github.com/hackgods/clinic-chat-scheduling/internal/config"
	"github.com/hackgods/clinic-chat-scheduling/internal/db"
	redisclient "github.com/hackgods/clinic-chat-scheduling/internal/redis"
)

// Storage is everything a process needs to read and write clinic state.
// Pool and Redis stay nil in memory mode.
type Storage struct {
	Repo          appointment.Repository
	Conversations chat.Store
	SlotLocks     redisclient.Locker
	SessionLocks  redisclient.Locker

	Pool  *pgxpool.Pool
	Redis *redis.Client
}

// OpenStorage connects the configured backend. The memory backend keeps
// everything in-process and is only meant for local runs and demos.
func OpenStorage(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Storage, error) {
	if cfg.UsesMemory() {
		logger.Warn("running with in-memory storage; data is lost on restart")
		repo := appointment.NewMemoryRepository()
		seedDemoCatalog(repo)
		return &Storage{
			Repo:          repo,
			Conversations: chat.NewMemoryStore(),
			SlotLocks:     redisclient.NewLocalSlotLocker(),
			SessionLocks:  redisclient.NewLocalSlotLocker(),
		}, nil
	}

	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN, db.PoolOptions{})
	if err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}
	logger.Info("connected to Postgres")

	rdb, err := redisclient.NewRedisClient(ctx, redisclient.Options{
		Addr:     cfg.RedisAddr,
		Username: cfg.RedisUsername,
		Password: cfg.RedisPassword,
	})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("redis: %w", err)
	}
	logger.Info("connected to Redis", "addr", cfg.RedisAddr)

	return &Storage{
		Repo:          appointment.NewPgRepository(pool),
		Conversations: chat.NewPgStore(pool),
		SlotLocks:     redisclient.NewRedisSlotLocker(rdb, cfg.LockTTL),
		SessionLocks:  redisclient.NewRedisSlotLocker(rdb, cfg.SessionLockTTL),
		Pool:          pool,
		Redis:         rdb,
	}, nil
}

func (s *Storage) Close(logger *slog.Logger) {
	if s.Redis != nil {
		if err := s.Redis.Close(); err != nil {
			logger.Error("error closing redis", "error", err)
		}
	}
	if s.Pool != nil {
		s.Pool.Close()
	}
}
