package bootstrap

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-routing/internal/catalog"
	"github.com/spec-kit/ticket-routing/internal/clock"
	"github.com/spec-kit/ticket-routing/internal/config"
	"github.com/spec-kit/ticket-routing/internal/events"
	"github.com/spec-kit/ticket-routing/internal/lock"
	"github.com/spec-kit/ticket-routing/internal/observability"
	"github.com/spec-kit/ticket-routing/internal/persistence"
	"github.com/spec-kit/ticket-routing/internal/repository"
	"github.com/spec-kit/ticket-routing/internal/repository/memory"
	"github.com/spec-kit/ticket-routing/internal/service"
)

// Runtime is the wired engine shared by the API server and the CLI tools.
type Runtime struct {
	Postgres   *persistence.Postgres
	Redis      *persistence.Redis
	Deps       service.Dependencies
	Dispatcher events.Dispatcher
	Publisher  *events.RedisPublisher
	Metrics    *observability.Metrics
}

// New connects the stores named by cfg and assembles the engine
// dependencies. Without POSTGRES_DSN the engine runs on the in-memory store.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Runtime, error) {
	table, err := catalog.Load(cfg.Engine.PriorityTablePath)
	if err != nil {
		return nil, err
	}

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	rt := &Runtime{Postgres: pg, Metrics: observability.NewMetrics()}

	var repos *repository.Repositories
	if pool := pg.PoolHandle(); pool != nil {
		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pool, logger); err != nil {
				rt.Close()
				return nil, fmt.Errorf("run migrations: %w", err)
			}
		}
		repos = repository.NewPostgres(pool)
	} else {
		logger.Warn("using in-memory store; data is lost on restart")
		repos = memory.New().Repositories()
	}

	if cfg.Engine.LockBackend == config.LockBackendRedis || cfg.Engine.PublishEvents {
		rt.Redis = persistence.NewRedis(cfg.Redis, logger)
	}

	var locker lock.Locker = lock.NewKeyedMutex()
	if cfg.Engine.LockBackend == config.LockBackendRedis {
		locker = lock.NewRedisLocker(rt.Redis.Client, cfg.Engine.LockTTL(), logger)
	}

	rt.Dispatcher = events.NewInMemoryDispatcher(logger)
	if cfg.Engine.PublishEvents {
		rt.Publisher = events.NewRedisPublisher(rt.Redis.Client, events.DefaultChannel)
	}

	rt.Deps = service.Dependencies{
		Repos:      repos,
		Locker:     locker,
		Dispatcher: rt.Dispatcher,
		Clock:      clock.Real(),
		Catalog:    table,
		Metrics:    rt.Metrics,
		Logger:     logger,
		Settings: service.Settings{
			DebounceWindow: cfg.Engine.DebounceWindow(),
			CustomerCap:    cfg.Engine.CustomerCap,
			BcryptCost:     cfg.Auth.BcryptCost,
		},
	}
	logger.Info("engine configured",
		zap.String("lock_backend", cfg.Engine.LockBackend),
		zap.Duration("debounce_window", cfg.Engine.DebounceWindow()),
		zap.Int("customer_cap", cfg.Engine.CustomerCap),
		zap.Bool("publish_events", cfg.Engine.PublishEvents),
	)
	return rt, nil
}

// Close releases store connections.
func (r *Runtime) Close() {
	r.Redis.Close()
	r.Postgres.Close()
}
