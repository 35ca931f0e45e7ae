package api

import (
	"net/http"

	artifactDelivery "replypilot-backend/internal/artifact/delivery"
	authDelivery "replypilot-backend/internal/auth/delivery"
	authUsecase "replypilot-backend/internal/auth/usecase"
	ingestDelivery "replypilot-backend/internal/ingest/delivery"
	jobDelivery "replypilot-backend/internal/job/delivery"
	settingsDelivery "replypilot-backend/internal/settings/delivery"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(
	r *gin.Engine,
	authUc authUsecase.AuthUsecase,
	ingestHandler *ingestDelivery.IngestHandler,
	jobHandler *jobDelivery.JobHandler,
	artifactHandler *artifactDelivery.ArtifactHandler,
	settingsHandler *settingsDelivery.SettingsHandler,
) {
	api := r.Group("/api")
	{
		// Health check (no auth required)
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})

		// Ingress endpoints: the webhook authenticates via the push
		// subscription, renewal via the cron secret.
		notifications := api.Group("/notifications")
		{
			notifications.POST("/gmail", ingestHandler.HandleGmailNotification)
			notifications.GET("/renew", ingestHandler.HandleRenewWatches)
		}

		// Job routes (protected)
		jobs := api.Group("/jobs")
		jobs.Use(authDelivery.AuthMiddleware(authUc))
		{
			jobs.GET("/status", jobHandler.GetStatus)
		}

		// Onboarding (protected)
		api.POST("/onboarding", authDelivery.AuthMiddleware(authUc), jobHandler.StartOnboarding)

		// Artifact routes (protected)
		artifacts := api.Group("/artifacts")
		artifacts.Use(authDelivery.AuthMiddleware(authUc))
		{
			artifacts.GET("/eligibility", artifactHandler.GetEligibility)
			artifacts.GET("/:kind", artifactHandler.GetActive)
			artifacts.POST("/:kind", artifactHandler.Activate)
		}

		// Settings routes (protected)
		settings := api.Group("/settings")
		settings.Use(authDelivery.AuthMiddleware(authUc))
		{
			settings.GET("/filters", settingsHandler.GetFilters)
			settings.PUT("/filters", settingsHandler.UpdateFilters)
		}
	}
}
