package main

import (
	"github.com/bugdesk/bugdesk/internal/config"
	"github.com/bugdesk/bugdesk/internal/handlers"
	"github.com/bugdesk/bugdesk/internal/models"
	"github.com/bugdesk/bugdesk/internal/services"
	"github.com/bugdesk/bugdesk/internal/utils"
	"github.com/bugdesk/bugdesk/pkg/logger"
)

// appServices holds the long-lived services and the handlers built on them.
type appServices struct {
	cfg         *config.Config
	taskQueue   services.TaskQueue
	worker      *services.Worker
	maintenance *services.MaintenanceService

	authHandler         *handlers.AuthHandler
	orgHandler          *handlers.OrganizationHandler
	projectHandler      *handlers.ProjectHandler
	ticketHandler       *handlers.TicketHandler
	commentHandler      *handlers.CommentHandler
	attachmentHandler   *handlers.AttachmentHandler
	notificationHandler *handlers.NotificationHandler
	sseHandler          *handlers.SSEHandler
	userHandler         *handlers.UserHandler
	systemLogHandler    *handlers.SystemLogHandler
	systemConfigHandler *handlers.SystemConfigHandler
	healthHandler       *handlers.HealthHandler
	metricsHandler      *handlers.MetricsHandler
}

// bootstrap initializes all application dependencies: database, services, schedulers.
func bootstrap(cfg *config.Config) (*appServices, error) {
	utils.SetJWTSecret(cfg.JWT.Secret)

	if err := openDatabase(cfg); err != nil {
		return nil, err
	}
	if err := models.SeedDefaultData(); err != nil {
		logger.Warn().Err(err).Msg("Failed to seed default data")
	}
	db := models.GetDB()
	services.InitSystemLogger(db)

	hub := services.GetSSEHub()
	indexer := services.NewSearchIndexer(&cfg.Search)
	mailer := services.NewEmailService(&cfg.Mail)
	processor := services.NewSideEffectProcessor(db, indexer, mailer)

	// Uses Redis if enabled, otherwise runs tasks in-process.
	taskQueue := services.InitTaskQueue(cfg)
	if syncQueue, ok := taskQueue.(*services.SyncQueue); ok {
		syncQueue.SetProcessor(processor.Process)
	}

	var worker *services.Worker
	if taskQueue.IsAsync() {
		worker = services.NewWorker(&cfg.Redis)
		if worker != nil {
			worker.SetProcessor(processor.Process)
			if err := worker.Start(); err != nil {
				logger.Error().Err(err).Msg("Failed to start task worker")
				worker = nil
			}
		}
	}

	notifier := services.NewNotificationService(db, hub)
	orgService := services.NewOrganizationService(db, notifier, &cfg.Organization)
	files := services.NewFileStore(cfg.App.UploadDir)
	ticketService := services.NewTicketService(db, notifier, taskQueue, indexer, files)
	configService := services.NewSystemConfigService(db)

	maintenance := services.NewMaintenanceService(db, orgService)
	if err := maintenance.Start(); err != nil {
		return nil, err
	}

	return &appServices{
		cfg:         cfg,
		taskQueue:   taskQueue,
		worker:      worker,
		maintenance: maintenance,

		authHandler:         handlers.NewAuthHandler(services.NewAuthService(db, cfg, orgService, taskQueue), cfg.Server.Mode == "release"),
		orgHandler:          handlers.NewOrganizationHandler(orgService),
		projectHandler:      handlers.NewProjectHandler(services.NewProjectService(db, orgService), ticketService),
		ticketHandler:       handlers.NewTicketHandler(ticketService),
		commentHandler:      handlers.NewCommentHandler(services.NewCommentService(db, notifier)),
		attachmentHandler:   handlers.NewAttachmentHandler(services.NewAttachmentService(db, files, cfg.App.MaxUploadMB)),
		notificationHandler: handlers.NewNotificationHandler(notifier),
		sseHandler:          handlers.NewSSEHandler(hub),
		userHandler:         handlers.NewUserHandler(services.NewUserService(db)),
		systemLogHandler:    handlers.NewSystemLogHandler(services.NewSystemLogService(db)),
		systemConfigHandler: handlers.NewSystemConfigHandler(configService),
		healthHandler:       handlers.NewHealthHandler(db, taskQueue, indexer, hub),
		metricsHandler:      handlers.NewMetricsHandler(db, taskQueue, hub),
	}, nil
}

// shutdown gracefully stops all services.
func (s *appServices) shutdown() {
	s.maintenance.Stop()
	logger.Info().Msg("Maintenance scheduler stopped")

	if s.worker != nil {
		s.worker.Stop()
	}
	if s.taskQueue != nil {
		s.taskQueue.Close()
	}
}
