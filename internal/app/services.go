package app

import (
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/daybook/daybook/internal/aggregate"
	"github.com/daybook/daybook/internal/ledger"
	"github.com/daybook/daybook/internal/platform/cache"
	"github.com/daybook/daybook/internal/reporting"
	"github.com/daybook/daybook/internal/settlement"
	"github.com/daybook/daybook/internal/shared"
	"github.com/daybook/daybook/internal/snapshot"
)

// Services is the wired core shared by the HTTP server and the worker.
type Services struct {
	Repository *ledger.Repository
	Resolver   *snapshot.Resolver
	Engine     *aggregate.Engine
	Settler    *settlement.Service
	Facade     *reporting.Facade
	Location   *time.Location
}

// BuildServices wires the ledger, settlement, snapshot, aggregation and
// facade layers. A nil redis client disables caching and locking.
func BuildServices(cfg *Config, pool *pgxpool.Pool, rdb *redis.Client, registerer prometheus.Registerer, logger *slog.Logger) (*Services, error) {
	if cfg == nil {
		return nil, errors.New("app: config required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	scope, err := cfg.Scope()
	if err != nil {
		return nil, err
	}
	if registerer != nil {
		if err := aggregate.SetupCacheMetrics(registerer); err != nil {
			return nil, err
		}
	}

	var audit shared.AuditRecorder
	if pool != nil {
		audit = shared.NewAuditLogger(pool)
	}
	repo := ledger.NewRepository(pool, cfg.StoreTimeout)
	var dashCache *aggregate.Cache
	if rdb != nil {
		dashCache = aggregate.NewCache(rdb, cfg.DashboardCacheTTL)
	}
	resolver := snapshot.NewResolver(repo, cfg.Platforms(), logger.With(slog.String("component", "snapshot")))
	engine := aggregate.NewEngine(repo, dashCache, loc, logger.With(slog.String("component", "aggregate")))
	settler := settlement.NewService(repo, cache.NewLocker(rdb), logger.With(slog.String("component", "settlement")),
		settlement.WithLockTTL(cfg.LockTTL),
		settlement.WithAudit(audit),
	)
	facade := reporting.New(reporting.Config{
		Store:    repo,
		Resolver: resolver,
		Engine:   engine,
		Settler:  settler,
		Scope:    scope,
		Audit:    audit,
		Logger:   logger.With(slog.String("component", "reporting")),
	})
	return &Services{
		Repository: repo,
		Resolver:   resolver,
		Engine:     engine,
		Settler:    settler,
		Facade:     facade,
		Location:   loc,
	}, nil
}
