package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/daybook/daybook/cmd/daybook/cli"
	"github.com/daybook/daybook/internal/app"
	"github.com/daybook/daybook/internal/observability"
	"github.com/daybook/daybook/internal/platform/cache"
	"github.com/daybook/daybook/internal/platform/db"
	reportinghttp "github.com/daybook/daybook/internal/reporting/http"
	"github.com/daybook/daybook/jobs"
	"github.com/daybook/daybook/migrations"
)

const usage = `usage: daybook [serve | migrate | jobs trigger <name> [day] | jobs stats]`

func main() {
	if app.SkipStartup(nil, "daybook") {
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)

	args := os.Args[1:]
	cmd := "serve"
	if len(args) > 0 {
		cmd, args = args[0], args[1:]
	}

	switch cmd {
	case "serve":
		err = serve(ctx, cfg, logger)
	case "migrate":
		err = migrate(ctx, cfg, logger)
	case "jobs":
		err = runJobs(ctx, cfg, args)
	default:
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error(cmd+" failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func migrate(ctx context.Context, cfg *app.Config, logger *slog.Logger) error {
	pool, err := db.New(ctx, cfg.PGDSN, db.Options{MaxConns: 2, ApplicationName: "daybook-migrate"})
	if err != nil {
		return err
	}
	defer pool.Close()
	applied, err := db.Migrate(ctx, pool, migrations.FS, logger)
	if err != nil {
		return err
	}
	logger.Info("migrations complete", slog.Int("applied", applied))
	return nil
}

func runJobs(ctx context.Context, cfg *app.Config, args []string) error {
	if len(args) == 0 {
		return errors.New(usage)
	}
	c, err := cli.NewJobsCLI(cfg.RedisAddr)
	if err != nil {
		return err
	}
	defer func() { _ = c.Close() }()

	switch args[0] {
	case "trigger":
		if len(args) < 2 {
			return errors.New(usage)
		}
		day := ""
		if len(args) > 2 {
			day = args[2]
		}
		info, err := c.Trigger(ctx, args[1], day)
		if err != nil {
			return err
		}
		fmt.Printf("enqueued %s id=%s queue=%s\n", info.Type, info.ID, info.Queue)
	case "stats":
		stats, err := c.InspectQueue()
		if err != nil {
			return err
		}
		fmt.Println(stats)
	default:
		return errors.New(usage)
	}
	return nil
}

func serve(ctx context.Context, cfg *app.Config, logger *slog.Logger) error {
	pool, err := db.New(ctx, cfg.PGDSN, db.Options{MaxConns: cfg.PGMaxConns, ApplicationName: "daybook-api"})
	if err != nil {
		return err
	}
	defer pool.Close()

	var redisClient *redis.Client
	if redisClient, err = cache.New(ctx, cfg.RedisAddr); err != nil {
		// Without Redis the dashboard is computed on every request and
		// settlements rely on the version check alone.
		logger.Warn("redis unavailable, running without cache and locks", slog.Any("error", err))
		redisClient = nil
	} else {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
	}

	metrics := observability.NewMetrics()
	services, err := app.BuildServices(cfg, pool, redisClient, metrics.Registerer(), logger)
	if err != nil {
		return err
	}

	reportHandler := reportinghttp.NewHandler(logger, services.Facade, services.Location)
	reportHandler.WithWriteLimit(cfg.AppWriteLimit)
	reportHandler.WithFailureObserver(metrics)

	redisOpt, err := jobs.RedisOpt(cfg.RedisAddr)
	if err != nil {
		return err
	}
	inspector := asynq.NewInspector(redisOpt)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	probes := map[string]app.Pinger{"postgres": pool}
	if redisClient != nil {
		probes["redis"] = app.PingFunc(func(ctx context.Context) error { return redisClient.Ping(ctx).Err() })
	}

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		ReportHandler:  reportHandler,
		JobHandler:     jobs.NewHandler(inspector, logger),
		Metrics:        metrics,
		ReadinessProbe: probes,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
