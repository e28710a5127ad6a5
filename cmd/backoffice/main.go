package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"backoffice/internal/backend"
	"backoffice/internal/cache"
	"backoffice/internal/config"
	apphttp "backoffice/internal/http"
	"backoffice/internal/ledger"
	"backoffice/internal/log"
	"backoffice/internal/registry"
	"backoffice/internal/report"
	"backoffice/internal/scheduler"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	cfg := config.Load()

	logger := log.New(log.ConfigFromEnv(cfg.LogLevel, cfg.LogFormat, os.Stdout))
	log.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	loc, err := cfg.Location()
	if err != nil {
		logger.Error("Invalid report timezone", log.FieldError, err, "timezone", cfg.Timezone)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	be, err := backend.NewFactory(logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer func() {
		if err := be.Cleanup(); err != nil {
			logger.Error("Backend cleanup failed", log.FieldError, err)
		}
	}()

	ledgerOpts := []ledger.Option{ledger.WithLogger(logger.WithComponent(log.ComponentLedger))}
	if be.Publisher != nil {
		ledgerOpts = append(ledgerOpts, ledger.WithPublisher(be.Publisher))
	}
	tasks := ledger.New(be.Store, ledgerOpts...)
	clients := registry.New(be.Store, tasks)

	dashboards := cache.NewLRU[report.Dashboard](cfg.ReportCacheSize, cfg.ReportCacheTTL)
	caches := cache.NewManager(logger)
	caches.Register(dashboards)
	caches.Start(cfg.ReportCacheTTL)
	defer caches.Stop()

	reports := report.NewService(be.Store, be.Store,
		report.WithLocation(loc),
		report.WithCache(dashboards),
	)

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "report_cache_entries",
			Help: "Dashboards currently cached",
		}, func() float64 { return float64(dashboards.Size()) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "report_cache_hits_total",
			Help: "Dashboard cache hits",
		}, func() float64 { return float64(dashboards.Stats().Hits) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "report_cache_misses_total",
			Help: "Dashboard cache misses",
		}, func() float64 { return float64(dashboards.Stats().Misses) }),
	)

	var sched *scheduler.Scheduler
	if cfg.DigestSchedule != "" {
		sched, err = scheduler.New(cfg.DigestSchedule, loc, reports, be.Publisher)
		if err != nil {
			logger.Error("Failed to create scheduler", log.FieldError, err)
			os.Exit(1)
		}
		sched.Start()
	} else {
		logger.Info("Overdue digest disabled - DIGEST_SCHEDULE is empty")
	}

	srv := apphttp.NewServer(apphttp.Config{
		Addr:               ":" + cfg.Port,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		Registry:           promRegistry,
		Logger:             logger.WithComponent(log.ComponentHTTP),
	}, apphttp.Deps{
		Clients: clients,
		Tasks:   tasks,
		Reports: reports,
		Health:  be.Store,
	})
	srv.BaseContext = func(net.Listener) context.Context { return ctx }

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Starting backoffice server",
			"port", cfg.Port, "backend", cfg.DataBackend, "events", be.Publisher != nil)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received", log.FieldOperation, log.OpShutdown)
	case err := <-serverErr:
		if err != nil {
			logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if sched != nil {
		if err := sched.Stop(shutdownCtx); err != nil {
			logger.Warn("Scheduler did not stop in time", log.FieldError, err)
		}
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", log.FieldError, err)
	}
	logger.Info("Server stopped gracefully")
}
