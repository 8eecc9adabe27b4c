package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/placementalarm/placement-api/config"
	"github.com/placementalarm/placement-api/internal/email"
	"github.com/placementalarm/placement-api/internal/handler"
	authHandler "github.com/placementalarm/placement-api/internal/handler/auth"
	companyHandler "github.com/placementalarm/placement-api/internal/handler/company"
	cronHandler "github.com/placementalarm/placement-api/internal/handler/cron"
	documentHandler "github.com/placementalarm/placement-api/internal/handler/document"
	notificationHandler "github.com/placementalarm/placement-api/internal/handler/notification"
	profileHandler "github.com/placementalarm/placement-api/internal/handler/profile"
	prometheusHandler "github.com/placementalarm/placement-api/internal/handler/prometheus"
	"github.com/placementalarm/placement-api/internal/integration/gemini"
	"github.com/placementalarm/placement-api/internal/integration/google"
	"github.com/placementalarm/placement-api/internal/integration/push"
	"github.com/placementalarm/placement-api/internal/middleware"
	"github.com/placementalarm/placement-api/internal/repository/postgres"
	"github.com/placementalarm/placement-api/internal/router"
	authService "github.com/placementalarm/placement-api/internal/service/auth"
	companyService "github.com/placementalarm/placement-api/internal/service/company"
	documentService "github.com/placementalarm/placement-api/internal/service/document"
	mailsyncService "github.com/placementalarm/placement-api/internal/service/mailsync"
	notificationService "github.com/placementalarm/placement-api/internal/service/notification"
	profileService "github.com/placementalarm/placement-api/internal/service/profile"
	reminderService "github.com/placementalarm/placement-api/internal/service/reminder"
	statuseventService "github.com/placementalarm/placement-api/internal/service/statusevent"
	"github.com/placementalarm/placement-api/internal/storage"
	"github.com/placementalarm/placement-api/pkg/auth"
	"github.com/placementalarm/placement-api/pkg/logger"
	"github.com/placementalarm/placement-api/pkg/messaging/redis"
	"github.com/placementalarm/placement-api/pkg/metrics"
	"github.com/placementalarm/placement-api/pkg/security"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	appLogger := logger.NewLogger(nil)
	appMetrics := metrics.NewMetrics("placement")

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	if err := postgres.RunMigrations(db, "migrations"); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	broker, err := redis.NewRedisBroker(cfg.Redis.ToBrokerConfig())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer broker.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.NewS3Storage(ctx, cfg.Storage)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize object storage")
	}

	encryptor, err := security.NewAESEncryptor([]byte(cfg.Reminders.EncryptionKey))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize token encryption")
	}

	// Repositories
	userRepo := postgres.NewUserRepository(db)
	companyRepo := postgres.NewCompanyRepository(db)
	statusEventRepo := postgres.NewStatusEventRepository(db)
	documentRepo := postgres.NewDocumentRepository(db)
	notificationRepo := postgres.NewNotificationRepository(db)
	profileRepo := postgres.NewProfileRepository(db)
	outboxRepo := postgres.NewOutboxRepository(db)

	// Integrations
	oauthClient := google.NewOAuthClient(cfg.Google)
	gmailClient := google.NewGmailClient(oauthClient)
	driveClient := google.NewDriveClient(oauthClient)
	extractor := gemini.NewClient(cfg.Gemini)
	pusher := push.NewWebpushSender(cfg.Push)
	emailSvc := email.NewSMTPService(cfg.SMTP)

	// Services
	jwtSvc := auth.NewJWTService(auth.Config{
		Secret:        cfg.JWT.Secret,
		RefreshSecret: cfg.JWT.RefreshSecret,
		ExpiryHours:   cfg.JWT.ExpiryHours,
		RefreshHours:  cfg.JWT.RefreshHours,
	})
	hasher := security.NewBcryptHasher(0)
	authSvc := authService.NewService(userRepo, profileRepo, jwtSvc, hasher)
	profileSvc := profileService.NewService(profileRepo, oauthClient, encryptor)
	documentSvc := documentService.NewService(documentRepo, store, driveClient, profileSvc, appLogger)
	companySvc := companyService.NewService(companyRepo, statusEventRepo, documentSvc, outboxRepo, appLogger)
	statusEventSvc := statuseventService.NewService(statusEventRepo, outboxRepo, appLogger)
	notificationSvc := notificationService.NewService(notificationRepo, profileRepo, companySvc, emailSvc, pusher, broker, appLogger)
	reminderSvc := reminderService.NewService(companyRepo, statusEventRepo, notificationSvc, broker, cfg.Reminders.LockTTL, appLogger, appMetrics)
	mailSyncSvc := mailsyncService.NewService(profileRepo, notificationRepo, profileSvc, gmailClient, extractor, notificationSvc, broker, mailsyncService.Config{
		Domain:      cfg.MailSync.Domain,
		MaxMessages: cfg.MailSync.MaxMessages,
		LockTTL:     cfg.MailSync.LockTTL,
	}, appLogger, appMetrics)

	// HTTP layer
	authMW := middleware.NewAuthMiddleware(jwtSvc)
	r := router.NewRouter(cfg, authMW)
	r.Setup(
		[]router.Handler{
			authHandler.NewHandler(authSvc),
			cronHandler.NewHandler(reminderSvc, mailSyncSvc, cfg.Server.CronSecret),
		},
		[]router.Handler{
			companyHandler.NewHandler(companySvc, statusEventSvc),
			documentHandler.NewHandler(documentSvc),
			notificationHandler.NewHandler(notificationSvc),
			profileHandler.NewHandler(profileSvc),
		},
	)
	handler.NewHealthHandler(db).RegisterRoutes(r.Engine())
	if cfg.Monitoring.PrometheusEnabled {
		prometheusHandler.NewHandler().RegisterRoutes(r.Engine())
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		appLogger.Info("Starting API server", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	appLogger.Info("Shutting down API server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Error(err, "Graceful shutdown failed")
		os.Exit(1)
	}
}
