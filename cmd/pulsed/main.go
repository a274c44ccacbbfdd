package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/finpulse/marketpulse/internal/catalog"
	"github.com/finpulse/marketpulse/internal/config"
	"github.com/finpulse/marketpulse/internal/feed"
	"github.com/finpulse/marketpulse/internal/gateway"
	"github.com/finpulse/marketpulse/internal/heartbeat"
	"github.com/finpulse/marketpulse/internal/intraday"
	"github.com/finpulse/marketpulse/internal/reconcile"
	"github.com/finpulse/marketpulse/internal/store"
	"github.com/finpulse/marketpulse/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/pulsed.yaml", "path to config file")
	healthAddr := flag.String("health", ":8080", "health endpoint listen address")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	// Load configuration first: the log level comes from it.
	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load config:", err)
		os.Exit(1)
	}

	// Set up structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	logger.Info("starting pulsed",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Cache/broadcast gateway. An empty addr keeps all state in-process,
	// which is enough for local runs without a broker.
	var gw gateway.Gateway
	if cfg.Gateway.Addr != "" {
		redisGW := gateway.NewRedis(gateway.Config{
			Addr:     cfg.Gateway.Addr,
			Password: cfg.Gateway.Password,
			DB:       cfg.Gateway.DB,
		}, logger)
		if err := redisGW.Ping(ctx); err != nil {
			logger.Error("failed to reach gateway", "addr", cfg.Gateway.Addr, "error", err)
			os.Exit(1)
		}
		defer redisGW.Close()
		gw = redisGW
		logger.Info("gateway connected", "addr", cfg.Gateway.Addr)
	} else {
		gw = gateway.NewMemory()
		logger.Warn("no gateway address configured, cached state stays in-process")
	}

	// Optional relational store: catalog source plus bar persistence.
	var st *store.Store
	var source catalog.Source
	if cfg.Database.Enabled() {
		logger.Info("connecting to database",
			"host", cfg.Database.Host,
			"port", cfg.Database.Port,
			"database", cfg.Database.DBName,
		)
		st, err = store.Connect(ctx, store.Config{
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			DBName:   cfg.Database.DBName,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			SSLMode:  cfg.Database.SSLMode,
			MaxConns: cfg.Database.MaxConns,
			MinConns: cfg.Database.MinConns,
		}, logger)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer st.Close()
		source = st
		logger.Info("database connected")
	} else {
		defs, err := cfg.MarketDefinitions()
		if err != nil {
			logger.Error("failed to resolve configured markets", "error", err)
			os.Exit(1)
		}
		source = catalog.StaticSource{Defs: defs, Insts: cfg.InstrumentList()}
	}

	// Initial catalog load is startup-fatal: without a snapshot no job has
	// anything to work on.
	cat := catalog.New()
	refresh := catalog.NewRefreshJob(cat, source, cfg.Pipeline.RefreshInterval, logger)
	if err := refresh.Run(ctx); err != nil {
		logger.Error("failed to load catalog", "error", err)
		os.Exit(1)
	}
	snap := cat.Snapshot()
	logger.Info("catalog loaded",
		"markets", len(snap.Definitions()),
		"instruments", len(snap.Instruments()),
	)

	// Quote feed, per configured transport. The stream subscribes to the
	// startup symbol set; later catalog refreshes do not extend it.
	var quotes feed.Source
	var stream *feed.Stream
	switch cfg.Feed.Mode {
	case config.FeedModeWebSocket:
		scfg := feed.DefaultStreamConfig()
		scfg.URL = cfg.Feed.WSURL
		scfg.APIKey = cfg.Feed.APIKey
		stream = feed.NewStream(scfg, snap.Symbols(), logger)
		if err := stream.Start(ctx); err != nil {
			logger.Error("failed to start feed stream", "error", err)
			os.Exit(1)
		}
		defer func() {
			stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer stopCancel()
			stream.Stop(stopCtx)
		}()
		quotes = stream
	default:
		quotes = feed.NewClient(cfg.Feed.BaseURL, cfg.Feed.APIKey,
			feed.WithLogger(logger),
			feed.WithTimeout(cfg.Feed.Timeout),
			feed.WithRetries(cfg.Feed.MaxRetries, time.Second),
		)
	}

	// Intraday pipeline shared by the tick jobs. With no store configured
	// the nil sink skips bar persistence and 52-week extremes.
	var sink intraday.BarSink
	var extremes intraday.ExtremesSource
	if st != nil {
		sink = st
		extremes = st
	}
	pipe := intraday.NewPipeline(cat, gw, quotes, sink, extremes, intraday.Config{
		BarPeriod:    cfg.Pipeline.BarPeriod,
		Freshness:    cfg.Feed.Freshness,
		VWAPWindows:  cfg.Pipeline.VWAPWindows,
		HistoryDepth: cfg.Pipeline.HistoryDepth,
		QuoteTTL:     cfg.Pipeline.QuoteTTL,
		StatTTL:      cfg.Pipeline.StatTTL,
		GradeTTL:     cfg.Pipeline.GradeTTL,
		SnapshotTTL:  cfg.Pipeline.SnapshotTTL,
	}, logger)

	reconciler := reconcile.New(cat, gw, cfg.Pipeline.ReconcileInterval, cfg.Pipeline.StatusTTL, logger)
	ingest := intraday.NewIngestJob(pipe, cfg.Pipeline.IngestInterval)

	// Register jobs in dispatch order: market status first so downstream
	// consumers see fresh session state before quote data moves.
	registry := heartbeat.NewRegistry(logger)
	jobs := []heartbeat.Job{
		reconciler,
		ingest,
		intraday.NewFlushJob(pipe, cfg.Pipeline.FlushInterval),
		intraday.NewRollingJob(pipe, cfg.Pipeline.RollingInterval),
		intraday.NewGradeJob(pipe, cfg.Pipeline.GradingInterval),
	}
	if st != nil {
		jobs = append(jobs, refresh)
	}
	for _, job := range jobs {
		if err := registry.Register(job); err != nil {
			logger.Error("failed to register job", "error", err)
			os.Exit(1)
		}
	}

	// Warm the latest-quote cache without publishing before the heartbeat
	// starts. A cold feed is not fatal; ingest recovers on its interval.
	if err := ingest.Prime(ctx); err != nil {
		logger.Warn("warm-up ingest failed", "error", err)
	}

	var sched *heartbeat.Scheduler
	if cfg.Heartbeat.Enabled {
		sched = heartbeat.New(heartbeat.Config{
			TickInterval: cfg.Heartbeat.TickInterval,
			JobTimeout:   cfg.Heartbeat.JobTimeout,
		}, registry, logger)
		if err := sched.Start(ctx); err != nil {
			logger.Error("failed to start scheduler", "error", err)
			os.Exit(1)
		}
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer shutdownCancel()
			sched.Stop(shutdownCtx)
		}()
	} else {
		logger.Warn("heartbeat disabled, no jobs will run")
	}

	healthServer := &http.Server{
		Addr: *healthAddr,
		Handler: createHealthHandler(healthDeps{
			scheduler:  sched,
			registry:   registry,
			pipeline:   pipe,
			reconciler: reconciler,
			catalog:    cat,
			gateway:    gw,
			store:      st,
			stream:     stream,
		}),
	}

	go func() {
		logger.Info("starting health server", "addr", *healthAddr)
		if err := healthServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("health server error", "error", err)
		}
	}()

	logger.Info("pulsed running",
		"jobs", len(registry.Names()),
		"heartbeat", cfg.Heartbeat.Enabled,
		"health_url", fmt.Sprintf("http://localhost%s/health", *healthAddr),
	)

	// Wait for shutdown
	<-ctx.Done()

	logger.Info("shutting down...")

	// Graceful shutdown of health server
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	healthServer.Shutdown(shutdownCtx)

	logger.Info("pulsed stopped")
}

// logLevel maps the configured level name onto slog. Unknown values fall
// back to info.
func logLevel(name string) slog.Level {
	switch name {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// healthDeps collects everything the health endpoint reports on. scheduler,
// store, and stream may be nil depending on configuration.
type healthDeps struct {
	scheduler  *heartbeat.Scheduler
	registry   *heartbeat.Registry
	pipeline   *intraday.Pipeline
	reconciler *reconcile.Reconciler
	catalog    *catalog.Catalog
	gateway    gateway.Gateway
	store      *store.Store
	stream     *feed.Stream
}

// createHealthHandler creates the HTTP handler for health checks.
func createHealthHandler(deps healthDeps) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		health := struct {
			Status     string                 `json:"status"`
			Components map[string]interface{} `json:"components"`
		}{
			Status:     "healthy",
			Components: make(map[string]interface{}),
		}
		degrade := func() {
			if health.Status == "healthy" {
				health.Status = "degraded"
			}
		}

		// Scheduler state and counters
		if deps.scheduler != nil {
			stats := deps.scheduler.Stats()
			health.Components["scheduler"] = map[string]interface{}{
				"state":    stats.State.String(),
				"ticks":    stats.Ticks,
				"runs":     stats.Runs,
				"failures": stats.Failures,
				"timeouts": stats.Timeouts,
				"panics":   stats.Panics,
			}
		} else {
			health.Components["scheduler"] = "disabled"
			degrade()
		}

		// Per-job last attempt
		jobs := make(map[string]interface{})
		for _, name := range deps.registry.Names() {
			if at, ok := deps.registry.LastRun(name); ok {
				jobs[name] = at.UTC().Format(time.RFC3339)
			} else {
				jobs[name] = "never"
			}
		}
		health.Components["jobs"] = jobs

		// Catalog snapshot
		snap := deps.catalog.Snapshot()
		health.Components["catalog"] = map[string]interface{}{
			"markets":     len(snap.Definitions()),
			"instruments": len(snap.Instruments()),
			"loaded_at":   snap.LoadedAt().UTC().Format(time.RFC3339),
		}
		if len(snap.Definitions()) == 0 {
			degrade()
		}

		// Gateway reachability. The memory gateway has no ping.
		if p, ok := deps.gateway.(interface{ Ping(context.Context) error }); ok {
			if err := p.Ping(ctx); err != nil {
				health.Status = "unhealthy"
				health.Components["gateway"] = map[string]string{
					"status": "disconnected",
					"error":  err.Error(),
				}
			} else {
				health.Components["gateway"] = "connected"
			}
		} else {
			health.Components["gateway"] = "in-memory"
		}

		// Database, when configured
		if deps.store != nil {
			if err := deps.store.Ping(ctx); err != nil {
				health.Status = "unhealthy"
				health.Components["database"] = map[string]string{
					"status": "disconnected",
					"error":  err.Error(),
				}
			} else {
				health.Components["database"] = "connected"
			}
		}

		// Feed stream, when configured
		if deps.stream != nil {
			stats := deps.stream.Stats()
			status := "connected"
			if !deps.stream.IsConnected() {
				status = "disconnected"
				degrade()
			}
			health.Components["feed"] = map[string]interface{}{
				"status":     status,
				"quotes":     stats.Quotes,
				"reconnects": stats.Reconnects,
			}
		}

		// Set response
		w.Header().Set("Content-Type", "application/json")
		if health.Status == "unhealthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(health)
	})

	mux.HandleFunc("/debug/stats", func(w http.ResponseWriter, r *http.Request) {
		stats := map[string]interface{}{
			"pipeline":   deps.pipeline.Stats(),
			"reconciler": deps.reconciler.Stats(),
		}
		if deps.scheduler != nil {
			stats["scheduler"] = deps.scheduler.Stats()
		}
		if deps.stream != nil {
			stats["stream"] = deps.stream.Stats()
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(stats)
	})

	return mux
}
