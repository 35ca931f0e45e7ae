package delivery

import (
	"net/http"

	artifactdomain "replypilot-backend/internal/artifact/domain"
	"replypilot-backend/internal/artifact/usecase"
	"replypilot-backend/internal/errs"

	"github.com/gin-gonic/gin"
)

// ArtifactHandler exposes the persona artifact surface.
type ArtifactHandler struct {
	artifactUsecase usecase.ArtifactUsecase
}

func NewArtifactHandler(artifactUsecase usecase.ArtifactUsecase) *ArtifactHandler {
	return &ArtifactHandler{artifactUsecase: artifactUsecase}
}

// GetEligibility reports whether persona generation can run for the user.
func (h *ArtifactHandler) GetEligibility(c *gin.Context) {
	userID := c.GetString("userID")
	eligibility, err := h.artifactUsecase.Eligibility(userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, eligibility)
}

// GetActive returns the active version of the kind, or 404.
func (h *ArtifactHandler) GetActive(c *gin.Context) {
	userID := c.GetString("userID")
	kind := artifactdomain.Kind(c.Param("kind"))
	if !kind.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown artifact kind", "kind": "validation"})
		return
	}

	artifact, err := h.artifactUsecase.GetActive(userID, kind)
	if err != nil {
		respondError(c, err)
		return
	}
	if artifact == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no active artifact", "kind": "not_found"})
		return
	}
	c.JSON(http.StatusOK, artifact)
}

type activateRequest struct {
	Content string `json:"content" binding:"required"`
}

// Activate installs caller-provided content as the new active version.
func (h *ArtifactHandler) Activate(c *gin.Context) {
	userID := c.GetString("userID")
	kind := artifactdomain.Kind(c.Param("kind"))
	if !kind.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown artifact kind", "kind": "validation"})
		return
	}

	var req activateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "content is required", "kind": "validation"})
		return
	}

	artifact, err := h.artifactUsecase.ActivateContent(userID, kind, req.Content)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, artifact)
}

func respondError(c *gin.Context, err error) {
	status, kind := errs.HTTPStatus(err)
	c.JSON(status, gin.H{"error": err.Error(), "kind": kind})
}
