package main

import (
	"context"
	"net/http"
	"os/signal"
	"sync"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/placementalarm/placement-api/config"
	"github.com/placementalarm/placement-api/internal/email"
	"github.com/placementalarm/placement-api/internal/integration/gemini"
	"github.com/placementalarm/placement-api/internal/integration/google"
	"github.com/placementalarm/placement-api/internal/integration/push"
	"github.com/placementalarm/placement-api/internal/repository/postgres"
	calendarService "github.com/placementalarm/placement-api/internal/service/calendar"
	companyService "github.com/placementalarm/placement-api/internal/service/company"
	documentService "github.com/placementalarm/placement-api/internal/service/document"
	mailsyncService "github.com/placementalarm/placement-api/internal/service/mailsync"
	notificationService "github.com/placementalarm/placement-api/internal/service/notification"
	profileService "github.com/placementalarm/placement-api/internal/service/profile"
	reminderService "github.com/placementalarm/placement-api/internal/service/reminder"
	"github.com/placementalarm/placement-api/internal/storage"
	"github.com/placementalarm/placement-api/pkg/logger"
	"github.com/placementalarm/placement-api/pkg/messaging/redis"
	"github.com/placementalarm/placement-api/pkg/metrics"
	"github.com/placementalarm/placement-api/pkg/security"
	"github.com/placementalarm/placement-api/pkg/worker"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	appLogger := logger.NewLogger(nil)
	appMetrics := metrics.NewMetrics("placement_worker")

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	broker, err := redis.NewRedisBroker(cfg.Redis.ToBrokerConfig())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer broker.Close()

	encryptor, err := security.NewAESEncryptor([]byte(cfg.Reminders.EncryptionKey))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize token encryption")
	}

	store, err := storage.NewS3Storage(context.Background(), cfg.Storage)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize object storage")
	}

	companyRepo := postgres.NewCompanyRepository(db)
	statusEventRepo := postgres.NewStatusEventRepository(db)
	documentRepo := postgres.NewDocumentRepository(db)
	notificationRepo := postgres.NewNotificationRepository(db)
	profileRepo := postgres.NewProfileRepository(db)
	outboxRepo := postgres.NewOutboxRepository(db)

	oauthClient := google.NewOAuthClient(cfg.Google)
	calendarClient := google.NewCalendarClient(oauthClient)
	gmailClient := google.NewGmailClient(oauthClient)
	driveClient := google.NewDriveClient(oauthClient)
	extractor := gemini.NewClient(cfg.Gemini)
	pusher := push.NewWebpushSender(cfg.Push)
	emailSvc := email.NewSMTPService(cfg.SMTP)

	profileSvc := profileService.NewService(profileRepo, oauthClient, encryptor)
	documentSvc := documentService.NewService(documentRepo, store, driveClient, profileSvc, appLogger)
	companySvc := companyService.NewService(companyRepo, statusEventRepo, documentSvc, outboxRepo, appLogger)
	notificationSvc := notificationService.NewService(notificationRepo, profileRepo, companySvc, emailSvc, pusher, broker, appLogger)
	reminderSvc := reminderService.NewService(companyRepo, statusEventRepo, notificationSvc, broker, cfg.Reminders.LockTTL, appLogger, appMetrics)
	mailSyncSvc := mailsyncService.NewService(profileRepo, notificationRepo, profileSvc, gmailClient, extractor, notificationSvc, broker, mailsyncService.Config{
		Domain:      cfg.MailSync.Domain,
		MaxMessages: cfg.MailSync.MaxMessages,
		LockTTL:     cfg.MailSync.LockTTL,
	}, appLogger, appMetrics)
	calendarSvc := calendarService.NewService(companyRepo, statusEventRepo, profileSvc, calendarClient, appLogger, appMetrics)

	processor := worker.NewOutboxProcessor(outboxRepo, cfg.Outbox.ToWorkerConfig(), appLogger, appMetrics)
	calendarSvc.RegisterHandlers(processor)

	cleanup := worker.NewOutboxCleanupWorker(outboxRepo, worker.OutboxCleanupConfig{
		Interval:  cfg.Outbox.CleanupInterval,
		Retention: cfg.Outbox.Retention,
	}, appLogger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	wg.Add(4)
	go func() {
		defer wg.Done()
		processor.Start(ctx)
	}()
	go func() {
		defer wg.Done()
		cleanup.Start(ctx)
	}()
	go func() {
		defer wg.Done()
		reminderSvc.Start(ctx, cfg.Reminders.SweepInterval)
	}()
	go func() {
		defer wg.Done()
		mailSyncSvc.Start(ctx, cfg.MailSync.Interval)
	}()

	metricsSrv := &http.Server{Addr: ":9091", Handler: promhttp.Handler()}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Error(err, "Metrics server failed")
		}
	}()

	appLogger.Info("Worker started")
	<-ctx.Done()
	appLogger.Info("Shutting down worker")

	wg.Wait()
	if err := metricsSrv.Close(); err != nil {
		appLogger.Error(err, "Failed to close metrics server")
	}
}
