package main

import (
	"context"
	"strings"
	"time"

	api "replypilot-backend/cmd/api"
	artifactDelivery "replypilot-backend/internal/artifact/delivery"
	artifactdomain "replypilot-backend/internal/artifact/domain"
	artifactRepo "replypilot-backend/internal/artifact/repository"
	artifactUsecase "replypilot-backend/internal/artifact/usecase"
	authdomain "replypilot-backend/internal/auth/domain"
	authRepo "replypilot-backend/internal/auth/repository"
	authUsecase "replypilot-backend/internal/auth/usecase"
	emaildomain "replypilot-backend/internal/email/domain"
	emailRepo "replypilot-backend/internal/email/repository"
	ingestDelivery "replypilot-backend/internal/ingest/delivery"
	ingestdomain "replypilot-backend/internal/ingest/domain"
	ingestRepo "replypilot-backend/internal/ingest/repository"
	ingestUsecase "replypilot-backend/internal/ingest/usecase"
	jobDelivery "replypilot-backend/internal/job/delivery"
	jobdomain "replypilot-backend/internal/job/domain"
	jobRepo "replypilot-backend/internal/job/repository"
	jobUsecase "replypilot-backend/internal/job/usecase"
	pipelineUsecase "replypilot-backend/internal/pipeline/usecase"
	settingsDelivery "replypilot-backend/internal/settings/delivery"
	settingsdomain "replypilot-backend/internal/settings/domain"
	settingsRepo "replypilot-backend/internal/settings/repository"
	"replypilot-backend/pkg/ai"
	"replypilot-backend/pkg/calendar"
	"replypilot-backend/pkg/config"
	"replypilot-backend/pkg/database"
	"replypilot-backend/pkg/gmail"

	"go.uber.org/zap"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	cfg := config.Load()

	db, err := database.NewPostgresConnection(cfg)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}

	if err := db.AutoMigrate(
		&authdomain.User{},
		&emaildomain.Thread{},
		&emaildomain.Email{},
		&emaildomain.GeneratedReply{},
		&artifactdomain.Artifact{},
		&settingsdomain.FilterSettings{},
		&ingestdomain.WatchState{},
		&jobdomain.Job{},
	); err != nil {
		logger.Fatal("failed to migrate database", zap.Error(err))
	}

	// Repositories
	userRepository := authRepo.NewUserRepository(db)
	emailRepository := emailRepo.NewEmailRepository(db)
	threadRepository := emailRepo.NewThreadRepository(db)
	replyRepository := emailRepo.NewGeneratedReplyRepository(db)
	artifactRepository := artifactRepo.NewArtifactRepository(db)
	settingsRepository := settingsRepo.NewFilterSettingsRepository(db)
	watchRepository := ingestRepo.NewWatchStateRepository(db)
	jobRepository := jobRepo.NewJobRepository(db)

	// Capability clients
	gmailService := gmail.NewService(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.CapabilityTimeout)
	calendarService := calendar.NewService(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.CapabilityTimeout)

	aiClient := ai.NewClient(ai.Config{
		Provider:      ai.ProviderType(cfg.AIProvider),
		GeminiAPIKey:  cfg.GeminiApiKey,
		OllamaBaseURL: cfg.OllamaBaseURL,
		OllamaModel:   cfg.OllamaModel,
		Timeout:       cfg.CapabilityTimeout,
	})

	// Usecases
	authUc := authUsecase.NewAuthUsecase(userRepository, cfg.JWTSecret)
	artifactUc := artifactUsecase.NewArtifactUsecase(artifactRepository, emailRepository, aiClient, cfg.MinSentEmails, logger)

	scanner := pipelineUsecase.NewScanner(aiClient, logger)
	enricher := pipelineUsecase.NewEnricher(calendarService, emailRepository, authUc, logger)
	generator := pipelineUsecase.NewGenerator(aiClient, replyRepository, artifactRepository, gmailService, authUc, logger)
	pipeline := pipelineUsecase.NewPipeline(scanner, enricher, generator, emailRepository, logger)

	jobUc := jobUsecase.NewJobUsecase(jobRepository, cfg.JobWorkerCount, cfg.JobMaxAttempts, logger)

	topicName := cfg.GooglePubSubTopic
	if parts := strings.Split(topicName, "/"); len(parts) > 1 {
		topicName = parts[len(parts)-1]
	}

	ingestUc := ingestUsecase.NewIngestUsecase(
		userRepository, emailRepository, threadRepository, watchRepository,
		settingsRepository, gmailService, authUc, jobUc, topicName, logger)

	jobUsecase.RegisterHandlers(jobUc, ingestUc, pipeline, artifactUc)
	jobUc.Start()
	defer jobUc.Stop()

	// Pub/Sub pull subscriber, when a project is configured
	if cfg.GoogleProjectID != "" {
		subscriber, err := ingestDelivery.NewPubSubSubscriber(cfg.GoogleProjectID, topicName, cfg.GoogleCredentials, jobUc, logger)
		if err != nil {
			logger.Error("failed to initialize pubsub subscriber", zap.Error(err))
		} else {
			go subscriber.Start(context.Background())
		}
	} else {
		logger.Warn("GoogleProjectID not configured, pubsub subscriber disabled")
	}

	// In-process watch renewal alongside the cron endpoint
	go func() {
		ticker := time.NewTicker(cfg.WatchRenewalInterval)
		defer ticker.Stop()
		for range ticker.C {
			ingestUc.RenewAll(context.Background())
		}
	}()

	// HTTP surface
	ingestHandler := ingestDelivery.NewIngestHandler(ingestUc, jobUc, cfg.CronSecret, logger)
	jobHandler := jobDelivery.NewJobHandler(jobUc)
	artifactHandler := artifactDelivery.NewArtifactHandler(artifactUc)
	settingsHandler := settingsDelivery.NewSettingsHandler(settingsRepository)

	handler := api.NewHandler(authUc, ingestHandler, jobHandler, artifactHandler, settingsHandler, cfg)

	logger.Info("server starting", zap.String("port", cfg.Port))
	if err := handler.Start(":" + cfg.Port); err != nil {
		logger.Fatal("failed to start server", zap.Error(err))
	}
}
