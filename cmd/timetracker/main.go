package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strings"
	"time"

	"timetracker/internal/cache"
	"timetracker/internal/cli"
	"timetracker/internal/core"
	apphttp "timetracker/internal/http"
	applog "timetracker/internal/log"
	"timetracker/internal/services"
	"timetracker/internal/timer"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(logger)

	res := cli.InitBackend(context.Background(), logger, cfg)

	clock := core.RealClock{}
	ids := core.UUIDGenerator{}
	loc := cfg.Location()

	monthly := cache.NewLRUCache[services.CachedMonthly](cfg.ReportCacheSize, cfg.ReportCacheTTL)
	cacheManager := cache.NewManager(logger)
	cacheManager.Register(monthly)
	cacheManager.StartCleanup(time.Minute)

	reports := services.NewReports(res.Store, loc,
		services.WithMonthlyCache(monthly),
		services.WithReportsLogger(logger))
	engine := timer.NewEngine(res.Store, clock, ids,
		timer.WithPublisher(services.NewFanout(res.Publisher(), reports)),
		timer.WithLogger(logger))
	catalog := services.NewCatalog(res.Store, clock, ids,
		services.WithCatalogInvalidator(reports),
		services.WithCatalogTimer(engine),
		services.WithCatalogLogger(logger))
	entries := services.NewEntries(res.Store, clock,
		services.WithEntriesPublisher(res.Publisher()),
		services.WithEntriesInvalidator(reports),
		services.WithEntriesTimer(engine),
		services.WithEntriesLogger(logger))

	if err := engine.Resync(context.Background()); err != nil {
		logger.Error("Failed to load the running entry", applog.FieldError, err)
		os.Exit(1)
	}
	if active, ok := engine.Active(); ok {
		logger.Info("Resumed running timer", applog.FieldEntryID, active.ID, "started_at", active.Start)
	}

	deps := apphttp.Deps{
		Timer:   engine,
		Catalog: catalog,
		Entries: entries,
		Reports: reports,
		Store:   res.Store,
		Clock:   clock,
		Logger:  logger,
	}
	if res.AMQP != nil {
		deps.Broker = res.AMQP
	}
	srv := apphttp.NewServer(apphttp.Options{
		Addr:               ":" + cfg.Port,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		TrustedProxies:     splitList(os.Getenv("TRUSTED_PROXIES")),
	}, deps)

	ctx, done := cli.GracefulShutdown(logger, cfg.ShutdownTimeout, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", applog.FieldError, err)
		}
		cacheManager.Stop()
		if res.Cleanup != nil {
			if err := res.Cleanup(); err != nil {
				logger.Error("Failed to cleanup backend resources", applog.FieldError, err)
			}
		}
	})

	logger.Info("Starting timetracker server",
		"port", cfg.Port,
		applog.FieldBackend, cfg.DataBackend,
		"timezone", loc.String(),
		"amqp_enabled", res.AMQP != nil)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", applog.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}

// splitList parses a comma separated list, dropping blanks.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
