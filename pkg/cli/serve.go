package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/platinummonkey/flowindex/pkg/api"
	"github.com/platinummonkey/flowindex/pkg/async"
	"github.com/platinummonkey/flowindex/pkg/config"
	"github.com/platinummonkey/flowindex/pkg/indexer"
	"github.com/platinummonkey/flowindex/pkg/middleware"
	"github.com/platinummonkey/flowindex/pkg/observability"
	"github.com/platinummonkey/flowindex/pkg/scanner"
	"github.com/platinummonkey/flowindex/pkg/search"
	"github.com/platinummonkey/flowindex/pkg/storage"
)

// dbStatsInterval is how often connection pool gauges are refreshed
const dbStatsInterval = 15 * time.Second

type serveOptions struct {
	host  string
	port  string
	cron  string
	watch bool
}

func newServeCommand(opts *globalOptions) *cobra.Command {
	so := &serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the search API over HTTP",
		Long: heredoc.Doc(`
			Starts the HTTP API. The index is refreshed in the background at startup,
			on the optional cron schedule and, with --watch, whenever files in the
			workflows directory change. SIGINT or SIGTERM shut the server down
			gracefully.
		`),
		Example: heredoc.Doc(`
			flowindex serve --dir ./workflows --port 8000
			flowindex serve --watch --cron "*/30 * * * *"
		`),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("host") {
				cfg.Server.Host = so.host
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = so.port
			}
			if cmd.Flags().Changed("cron") {
				cfg.Schedule.ReindexCron = so.cron
			}
			if cmd.Flags().Changed("watch") {
				cfg.Schedule.Watch = so.watch
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("configuration validation failed: %w", err)
			}
			return serve(cmd.Context(), cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&so.host, "host", "", "listen host")
	flags.StringVarP(&so.port, "port", "p", "", "listen port")
	flags.StringVar(&so.cron, "cron", "", "five-field cron schedule for incremental reindexing")
	flags.BoolVar(&so.watch, "watch", false, "reindex when files in the workflows directory change")
	return cmd
}

func newServerLogger(cfg *config.Config) *observability.Logger {
	if cfg.Observability.LogFormat == "text" {
		return observability.NewTextLogger(cfg.Observability.Level(), os.Stderr)
	}
	return observability.NewLogger(cfg.Observability.Level(), os.Stdout)
}

func serve(parent context.Context, cfg *config.Config) error {
	logger := newServerLogger(cfg)

	// ctx parents every background run and is cancelled during shutdown
	ctx, cancel := context.WithCancel(parent)
	defer cancel()
	ctx = observability.WithLogger(ctx, logger)

	store, err := storage.Open(ctx, cfg.Index.Storage())
	if err != nil {
		return fmt.Errorf("failed to open index %s: %w", cfg.Index.DatabasePath, err)
	}

	providers, err := observability.InitOTel(ctx, cfg.Observability.OTel(), logger)
	if err != nil {
		store.Close()
		return err
	}

	registry := prometheus.NewRegistry()
	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		metrics = observability.NewMetrics(registry)
		if providers != nil {
			om, err := observability.NewOTelMetrics()
			if err != nil {
				logger.WithError(err).Warn("Failed to create OpenTelemetry instruments")
			} else {
				metrics.WithOTel(om)
			}
		}
	}

	cache, redisClient, closeCache := newCache(ctx, cfg.Cache, logger)

	svc := search.NewService(store, cache, metrics)
	idx := indexer.New(store, indexerConfig(cfg), logger, metrics)
	idx.OnChange(svc.Invalidate)

	apiOpts := api.Options{
		Search:       svc,
		Indexer:      idx,
		WorkflowsDir: cfg.Index.WorkflowsDir,
		Logger:       logger,
		Health:       observability.NewHealthChecker(store.DB(), redisClient, cfg.Observability.OTelServiceVersion),
		Metrics:      metrics,
		Docs:         cfg.Server.Docs,
		BaseContext:  ctx,

		AllowedOrigins: cfg.Server.AllowedOrigins,
	}
	if metrics != nil {
		apiOpts.Gatherer = registry
	}
	if cfg.Server.ReindexRateLimit > 0 {
		limiter := middleware.NewRateLimiter(&middleware.RateLimitConfig{
			RequestsPerWindow: cfg.Server.ReindexRateLimit,
			WindowDuration:    time.Minute,
		})
		limiter.StartCleanup(ctx)
		apiOpts.ReindexLimiter = limiter
	}

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      api.NewServer(apiOpts),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	sm := observability.NewShutdownManager(logger, httpServer, cfg.Server.ShutdownTimeout)
	sm.Register("index store", func(context.Context) error { return store.Close() })
	if providers != nil {
		sm.Register("opentelemetry", providers.Shutdown)
	}
	sm.Register("search cache", closeCache)
	sm.Register("index runs", func(ctx context.Context) error {
		return waitIdle(ctx, idx)
	})
	sm.Register("background context", func(context.Context) error {
		cancel()
		return nil
	})

	if cfg.Schedule.ReindexCron != "" {
		scheduler, err := indexer.NewScheduler(ctx, idx, cfg.Schedule.ReindexCron, logger)
		if err != nil {
			sm.Shutdown()
			return err
		}
		scheduler.Start()
		sm.Register("reindex schedule", scheduler.Stop)
	}

	if cfg.Schedule.Watch {
		watcher, err := scanner.NewWatcher(cfg.Index.WorkflowsDir, idx.Scanner(), cfg.Schedule.WatchDebounce, idx.WatchHandler(), logger)
		if err != nil {
			sm.Shutdown()
			return err
		}
		async.SafeGo(ctx, logger, 0, "workflow watcher", watcher.Run)
	}

	if metrics != nil {
		async.SafeGoNoError(ctx, logger, 0, "db stats", func(ctx context.Context) {
			ticker := time.NewTicker(dbStatsInterval)
			defer ticker.Stop()
			for {
				metrics.RecordDBStats(store.DB().Stats())
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
				}
			}
		})
	}

	if startupIndexNeeded(ctx, cfg, svc, logger) {
		idx.Trigger(ctx)
	}

	waitCtx, stopWaiting := context.WithCancel(parent)
	defer stopWaiting()
	serveErr := async.SafeGo(ctx, logger, 0, "http server", func(context.Context) error {
		defer stopWaiting()
		logger.WithField("addr", httpServer.Addr).Info("HTTP server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	shutdownErr := sm.Wait(waitCtx)
	return errors.Join(<-serveErr, shutdownErr)
}

// newCache picks the shared Redis cache when configured and reachable, the
// in-process LRU otherwise. A disabled cache is nil.
func newCache(ctx context.Context, cfg config.CacheConfig, logger *observability.Logger) (search.ResultCache, *redis.Client, observability.ShutdownFunc) {
	noop := func(context.Context) error { return nil }
	if !cfg.Enabled {
		return nil, nil, noop
	}

	if cfg.RedisURL != "" {
		rc, err := search.NewRedisCache(cfg.RedisURL, cfg.TTL)
		if err == nil {
			logger.Info("Using Redis search cache")
			return rc, rc.Client(), func(context.Context) error { return rc.Close() }
		}
		logger.WithError(err).Warn("Redis unavailable, falling back to in-process search cache")
	}
	return search.NewLRUCache(cfg.Size, cfg.TTL), nil, noop
}

// startupIndexNeeded reports whether a run should start with the server: always
// when configured, and whenever the index is empty
func startupIndexNeeded(ctx context.Context, cfg *config.Config, svc *search.Service, logger *observability.Logger) bool {
	if cfg.Schedule.IndexOnStart {
		return true
	}
	stats, err := svc.Stats(ctx)
	if err != nil {
		logger.WithError(err).Warn("Failed to read index statistics")
		return true
	}
	return stats.Total == 0
}

// waitIdle blocks until no index run is in progress or ctx expires
func waitIdle(ctx context.Context, idx *indexer.Indexer) error {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for idx.Running() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}
