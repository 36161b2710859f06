package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/threadmill/storefront-backend/internal/logger"
	"github.com/threadmill/storefront-backend/internal/repos"
	"github.com/threadmill/storefront-backend/internal/services"
)

type ReleaseHandler struct {
	log     *logger.Logger
	release services.ReleaseService
}

func NewReleaseHandler(log *logger.Logger, release services.ReleaseService) *ReleaseHandler {
	return &ReleaseHandler{
		log:     log.With("handler", "ReleaseHandler"),
		release: release,
	}
}

type createReleaseRequest struct {
	StoreID       string          `json:"store_id" binding:"required"`
	VersionName   string          `json:"version_name" binding:"required"`
	VersionNumber int             `json:"version_number"`
	ReleaseType   string          `json:"release_type"`
	Description   string          `json:"description"`
	ABTestConfig  json.RawMessage `json:"ab_test_config"`
	CreatedBy     string          `json:"created_by" binding:"required"`
}

// POST /api/releases
func (h *ReleaseHandler) CreateRelease(c *gin.Context) {
	var req createReleaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}
	storeID, err := uuid.Parse(req.StoreID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid store_id"})
		return
	}
	createdBy, err := uuid.Parse(req.CreatedBy)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid created_by"})
		return
	}

	release, err := h.release.Create(c.Request.Context(), services.CreateReleaseOptions{
		StoreID:       storeID,
		VersionName:   req.VersionName,
		VersionNumber: req.VersionNumber,
		ReleaseType:   req.ReleaseType,
		Description:   req.Description,
		ABTest:        datatypes.JSON(req.ABTestConfig),
		CreatedBy:     createdBy,
	})
	if err != nil {
		h.log.Error("create release failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "release": release})
}

// POST /api/releases/:id/publish
func (h *ReleaseHandler) PublishRelease(c *gin.Context) {
	releaseID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid release id"})
		return
	}
	if err := h.release.Publish(c.Request.Context(), releaseID); err != nil {
		h.respondTransitionError(c, releaseID, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

type rollbackReleaseRequest struct {
	Reason string `json:"reason"`
}

// POST /api/releases/:id/rollback
func (h *ReleaseHandler) RollbackRelease(c *gin.Context) {
	releaseID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid release id"})
		return
	}
	var req rollbackReleaseRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}
	if err := h.release.Rollback(c.Request.Context(), releaseID, req.Reason); err != nil {
		h.respondTransitionError(c, releaseID, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *ReleaseHandler) respondTransitionError(c *gin.Context, releaseID uuid.UUID, err error) {
	switch {
	case errors.Is(err, repos.ErrReleaseNotFound):
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "release not found"})
	case errors.Is(err, services.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"success": false, "error": err.Error()})
	default:
		h.log.Error("release transition failed", "release_id", releaseID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
	}
}
