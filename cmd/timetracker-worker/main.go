package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"timetracker/internal/amqp"
	"timetracker/internal/cli"
	applog "timetracker/internal/log"
	"timetracker/internal/report"
	"timetracker/internal/sheets"
	gsheet "timetracker/internal/sheets/google"
	memsheet "timetracker/internal/sheets/memory"
	"timetracker/internal/worker"
)

// startupSyncDays is how far back missed entries are mirrored on boot.
const startupSyncDays = 31

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL")).WithComponent(applog.ComponentWorker)
	cfg := cli.LoadAndValidateConfig(logger)

	logger.Info("Starting timetracker-worker")

	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required by the worker")
		os.Exit(1)
	}

	// The worker reads entries straight from the gateway; it does not publish.
	amqpURL := cfg.AMQPURL
	cfg.AMQPURL, cfg.SeedFile = "", ""
	res := cli.InitBackend(context.Background(), logger, cfg)
	defer func() {
		if err := res.Cleanup(); err != nil {
			logger.Error("Failed to cleanup backend resources", applog.FieldError, err)
		}
	}()

	var mirror sheets.EntryMirror
	if cfg.GoogleSpreadsheetID != "" {
		client, err := gsheet.New(context.Background(), gsheet.Options{
			SpreadsheetID:   cfg.GoogleSpreadsheetID,
			SheetName:       cfg.GoogleSheetName,
			CredentialsFile: cfg.GoogleCredentialsFile,
			CredentialsJSON: os.Getenv("GOOGLE_CREDENTIALS_JSON"),
			OAuthClientFile: cfg.GoogleOAuthClientFile,
			OAuthTokenFile:  cfg.GoogleOAuthTokenFile,
			Logger:          logger,
		})
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", applog.FieldError, err)
			os.Exit(1)
		}
		mirror = client
		logger.Info("Google Sheets mirror enabled", "spreadsheet_id", cfg.GoogleSpreadsheetID, "sheet", cfg.GoogleSheetName)
	} else {
		mirror = memsheet.New()
		logger.Info("Google Sheets disabled - mirroring into memory")
	}

	consumer, err := amqp.NewClient(amqpURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", applog.FieldError, err)
		os.Exit(1)
	}
	defer consumer.Close()

	loc := cfg.Location()
	syncWorker := worker.NewSyncWorker(res.Store, mirror, loc, logger)

	ctx, done := cli.GracefulShutdown(logger, cfg.ShutdownTimeout, nil)

	now := time.Now().In(loc)
	from := now.AddDate(0, 0, -startupSyncDays)
	win, err := report.DateRange(from.Format(report.DateLayout), now.Format(report.DateLayout), loc)
	if err == nil {
		if _, _, err := syncWorker.StartupSync(ctx, win); err != nil {
			logger.Error("Startup sync failed", applog.FieldError, err)
		}
	}

	health := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           healthHandler(res.Store, consumer),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return consumer.ConsumeEntryEvents(gctx, syncWorker.HandleEntryEvent)
	})
	g.Go(func() error {
		logger.Info("Worker health endpoint listening", "port", cfg.Port)
		if err := health.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return health.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker stopped with error", applog.FieldError, err)
		os.Exit(1)
	}
	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped gracefully")
}

type pinger interface {
	Ping(ctx context.Context) error
}

func healthHandler(st pinger, broker *amqp.Client) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{"store": "ok", "amqp": "ok"}
		status := http.StatusOK
		if err := st.Ping(r.Context()); err != nil {
			checks["store"] = err.Error()
			status = http.StatusServiceUnavailable
		}
		if !broker.Healthy() {
			checks["amqp"] = "degraded"
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(checks)
	})
	return mux
}
