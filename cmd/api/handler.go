package api

import (
	artifactDelivery "replypilot-backend/internal/artifact/delivery"
	authUsecase "replypilot-backend/internal/auth/usecase"
	ingestDelivery "replypilot-backend/internal/ingest/delivery"
	jobDelivery "replypilot-backend/internal/job/delivery"
	settingsDelivery "replypilot-backend/internal/settings/delivery"
	"replypilot-backend/pkg/config"

	"github.com/gin-gonic/gin"
)

// Handler wires the delivery layer into one HTTP server.
type Handler struct {
	authUsecase     authUsecase.AuthUsecase
	ingestHandler   *ingestDelivery.IngestHandler
	jobHandler      *jobDelivery.JobHandler
	artifactHandler *artifactDelivery.ArtifactHandler
	settingsHandler *settingsDelivery.SettingsHandler
	config          *config.Config
}

func NewHandler(
	authUc authUsecase.AuthUsecase,
	ingestHandler *ingestDelivery.IngestHandler,
	jobHandler *jobDelivery.JobHandler,
	artifactHandler *artifactDelivery.ArtifactHandler,
	settingsHandler *settingsDelivery.SettingsHandler,
	cfg *config.Config,
) *Handler {
	return &Handler{
		authUsecase:     authUc,
		ingestHandler:   ingestHandler,
		jobHandler:      jobHandler,
		artifactHandler: artifactHandler,
		settingsHandler: settingsHandler,
		config:          cfg,
	}
}

func (h *Handler) Start(addr string) error {
	gin.SetMode(gin.ReleaseMode)
	r := gin.Default()

	// CORS middleware
	r.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin != "" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		} else {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		}
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	SetupRoutes(r, h.authUsecase, h.ingestHandler, h.jobHandler, h.artifactHandler, h.settingsHandler)

	return r.Run(addr)
}
