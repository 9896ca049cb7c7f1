package main

import (
	"context"
	"crypto/tls"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/nutonspeed/beauty-precision-platform/cmd/mainconfig"
	"github.com/nutonspeed/beauty-precision-platform/internal/activities"
	"github.com/nutonspeed/beauty-precision-platform/internal/api/router"
	"github.com/nutonspeed/beauty-precision-platform/internal/bookings"
	"github.com/nutonspeed/beauty-precision-platform/internal/clinicdir"
	appconfig "github.com/nutonspeed/beauty-precision-platform/internal/config"
	"github.com/nutonspeed/beauty-precision-platform/internal/customers"
	"github.com/nutonspeed/beauty-precision-platform/internal/events"
	"github.com/nutonspeed/beauty-precision-platform/internal/leads"
	"github.com/nutonspeed/beauty-precision-platform/internal/notify"
	"github.com/nutonspeed/beauty-precision-platform/internal/observability/metrics"
	"github.com/nutonspeed/beauty-precision-platform/internal/proposals"
	"github.com/nutonspeed/beauty-precision-platform/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting beauty-precision sales API",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx := context.Background()

	// Storage. Without a database URL the service runs entirely in memory,
	// which is only useful for local demos.
	var (
		proposalRepo proposals.Repository
		leadRepo     leads.Repository
		audit        activities.Recorder
		customerRepo customers.Repository
		directory    clinicdir.Directory
		bookingRepo  bookings.Repository
	)
	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to create pgx pool", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		auditDB, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to open audit db", "error", err)
			os.Exit(1)
		}
		defer auditDB.Close()

		proposalRepo = proposals.NewPostgresRepository(pool)
		leadRepo = leads.NewPostgresRepository(pool)
		audit = activities.NewStore(auditDB)
		customerRepo = customers.NewPostgresRepository(pool)
		directory = clinicdir.NewPostgresDirectory(pool)
		bookingRepo = bookings.NewPostgresRepository(pool)
	} else {
		logger.Warn("DATABASE_URL not set, using in-memory stores")
		proposalRepo = proposals.NewInMemoryRepository()
		leadRepo = leads.NewInMemoryRepository()
		audit = activities.NewMemoryRecorder()
		customerRepo = customers.NewInMemoryRepository()
		directory = clinicdir.NewInMemoryDirectory()
		bookingRepo = bookings.NewInMemoryRepository()
	}

	publisher := buildPublisher(ctx, cfg, logger)
	mailer := buildMailer(ctx, cfg, logger)

	registry := prometheus.NewRegistry()
	workflowMetrics := metrics.NewWorkflowMetrics(registry)

	proposalService := proposals.NewService(
		proposalRepo, leadRepo, audit, publisher, mailer, workflowMetrics, logger)
	converter := bookings.NewConverter(
		proposalRepo, customerRepo, directory, bookingRepo, publisher, workflowMetrics, logger)

	r := router.New(&router.Config{
		Logger:             logger,
		ProposalsHandler:   proposals.NewHandler(proposalService, logger),
		BookingsHandler:    bookings.NewHandler(converter, logger),
		MetricsHandler:     promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		AuthJWTSecret:      cfg.AuthJWTSecret,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

func buildPublisher(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) events.Publisher {
	switch cfg.EventPublisher {
	case "sqs":
		awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
		if err != nil {
			logger.Error("failed to load AWS config", "error", err)
			os.Exit(1)
		}
		if cfg.SalesEventsQueueURL == "" {
			logger.Error("SALES_EVENTS_QUEUE_URL is required for the sqs publisher")
			os.Exit(1)
		}
		return events.NewSQSPublisher(sqs.NewFromConfig(awsCfg), cfg.SalesEventsQueueURL)
	case "redis":
		opts := &redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword}
		if cfg.RedisTLS {
			opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		}
		return events.NewRedisPublisher(redis.NewClient(opts), cfg.RedisEventStream)
	default:
		return events.NewLogPublisher(logger)
	}
}

func buildMailer(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) *notify.ProposalMailer {
	var sender notify.EmailSender
	switch cfg.EmailProvider {
	case "sendgrid":
		sg := notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.SendGridFromEmail,
			FromName:  cfg.SendGridFromName,
		}, logger)
		if sg == nil {
			logger.Warn("sendgrid selected but no API key configured, proposal email disabled")
			return nil
		}
		sender = sg
	case "ses":
		awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
		if err != nil {
			logger.Error("failed to load AWS config for SES", "error", err)
			os.Exit(1)
		}
		sender = notify.NewSESSender(sesv2.NewFromConfig(awsCfg), notify.SESConfig{
			FromEmail: cfg.SESFromEmail,
			FromName:  cfg.SESFromName,
		}, logger)
	default:
		return nil
	}
	return notify.NewProposalMailer(sender, cfg.PublicBaseURL, logger)
}
