package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bestsellers-etl/config"
	"bestsellers-etl/models"
	"bestsellers-etl/monitor"
	"bestsellers-etl/services"
	"bestsellers-etl/utils"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/push"
	"go.uber.org/zap"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	var (
		mode     string
		startRaw string
		endRaw   string
		trigger  string
	)

	flag.StringVar(&mode, "mode", models.EtlRunModeIncremental, "run mode: historical or incremental")
	flag.StringVar(&startRaw, "start", "", "first date of a historical run, YYYY-MM-DD (defaults to START_DATE)")
	flag.StringVar(&endRaw, "end", "", "last date of a historical run, YYYY-MM-DD (defaults to END_DATE)")
	flag.StringVar(&trigger, "trigger", "cli", "trigger source recorded on the run")
	flag.Parse()

	settings, err := config.LoadSettings()
	if err != nil {
		log.Fatalf("configuration: %v", err)
	}
	if err := settings.RequireAPI(); err != nil {
		log.Fatalf("configuration: %v", err)
	}

	logger, logFile := config.InitLogging(settings, "etl")
	if logFile != nil {
		defer logFile.Close()
	}
	defer logger.Sync() //nolint:errcheck

	db, err := config.InitDB(settings)
	if err != nil {
		logger.Fatal("database connection failed", zap.Error(err))
	}
	defer config.CloseDB(db) //nolint:errcheck

	if settings.Pipeline.AutoMigrate {
		if err := models.AutoMigrate(db); err != nil {
			logger.Fatal("auto migrate failed", zap.Error(err))
		}
	}

	reg := monitor.NewRegistry()
	metrics := services.NewMetrics(reg)

	extractor := services.NewBestsellersExtractor(services.ExtractorConfig{
		BaseURL:         settings.API.BaseURL,
		APIKey:          settings.API.Key,
		RateLimitDelay:  settings.Pipeline.RateLimitDelay,
		BreakerFailures: settings.API.BreakerFailures,
		BreakerTimeout:  settings.API.BreakerTimeout,
	}, &http.Client{Timeout: settings.API.Timeout}, services.NewApiRequestRecorder(db, logger), metrics, logger)

	deps := services.EtlJobDeps{
		Extractor: services.NewRetryingExtractor(extractor, services.RetryPolicy{
			MaxAttempts:  settings.Pipeline.MaxRetries,
			InitialDelay: settings.Pipeline.InitialRetryDelay,
		}, logger),
		Transformer: services.NewTransformer(nil, logger),
		Loader:      services.NewWarehouseLoader(db, metrics, logger),
		Status:      services.NewLoadStatusService(db, logger),
		Runs:        services.NewEtlRunService(db),
		Lock:        services.NewAdvisoryLock(db),
		Metrics:     metrics,
		Logger:      logger,
	}
	if mailer := config.NewMailer(settings.SMTP); mailer.Configured() && len(settings.SMTP.NotifyEmails) > 0 {
		deps.Notifier = services.NewEmailNotifier(mailer, settings.SMTP.NotifyEmails)
	}

	job := services.NewEtlJobService(deps, services.EtlJobConfig{
		PacingDelay:   settings.Pipeline.PacingDelay,
		NoPacing:      settings.Pipeline.PacingDelay == 0,
		TriggerSource: trigger,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var summary *services.RunSummary
	switch mode {
	case models.EtlRunModeIncremental:
		summary, err = job.RunIncremental(ctx)
	case models.EtlRunModeHistorical:
		start, end, rangeErr := historicalRange(startRaw, endRaw, settings.Pipeline)
		if rangeErr != nil {
			logger.Fatal("invalid historical range", zap.Error(rangeErr))
		}
		summary, err = job.RunHistorical(ctx, start, end)
	default:
		logger.Fatal("unknown mode", zap.String("mode", mode))
	}

	if url := settings.Telemetry.PushgatewayURL; url != "" {
		if pushErr := push.New(url, "bestsellers_etl").Gatherer(reg).Grouping("mode", mode).Push(); pushErr != nil {
			logger.Warn("failed to push metrics", zap.Error(pushErr))
		}
	}

	if summary != nil {
		fmt.Printf("Run %s (%s): %s to %s\n", summary.RunUUID, summary.Mode,
			utils.FormatDate(summary.Start), utils.FormatDate(summary.End))
		fmt.Printf("Dates succeeded: %d (skipped: %d), failed: %d\n", summary.Succeeded, summary.Skipped, summary.Failed)
		for _, d := range summary.Dates {
			if d.Err != nil {
				fmt.Printf("  %s: %v\n", utils.FormatDate(d.RequestedDate), d.Err)
			}
		}
	}

	if err != nil {
		logger.Error("etl run failed", zap.Error(err))
		os.Exit(1)
	}
	if summary != nil && summary.Failed > 0 {
		os.Exit(2)
	}
}

func historicalRange(startRaw, endRaw string, pipeline config.PipelineSettings) (start, end time.Time, err error) {
	if startRaw == "" {
		startRaw = pipeline.StartDate
	}
	if endRaw == "" {
		endRaw = pipeline.EndDate
	}
	if startRaw == "" || endRaw == "" {
		return start, end, fmt.Errorf("historical mode needs -start/-end or START_DATE/END_DATE")
	}
	if start, err = utils.ParseDate(startRaw); err != nil {
		return start, end, fmt.Errorf("start date: %w", err)
	}
	if end, err = utils.ParseDate(endRaw); err != nil {
		return start, end, fmt.Errorf("end date: %w", err)
	}
	return start, end, nil
}
