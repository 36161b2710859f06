package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/threadmill/storefront-backend/internal/logger"
	"github.com/threadmill/storefront-backend/internal/repos"
	"github.com/threadmill/storefront-backend/internal/services"
)

type BaselineHandler struct {
	log      *logger.Logger
	baseline services.BaselineService
}

func NewBaselineHandler(log *logger.Logger, baseline services.BaselineService) *BaselineHandler {
	return &BaselineHandler{
		log:      log.With("handler", "BaselineHandler"),
		baseline: baseline,
	}
}

type createBaselineRequest struct {
	StoreID  string `json:"store_id" binding:"required"`
	FilePath string `json:"file_path" binding:"required"`
	Code     string `json:"code" binding:"required"`
}

// POST /api/baselines
func (h *BaselineHandler) CreateBaseline(c *gin.Context) {
	var req createBaselineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}
	storeID, err := uuid.Parse(req.StoreID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid store_id"})
		return
	}

	baseline, err := h.baseline.CreateBaseline(c.Request.Context(), storeID, req.FilePath, req.Code)
	if err != nil {
		h.log.Error("create baseline failed", "file_path", req.FilePath, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "baseline": baseline})
}

// GET /api/baselines
func (h *BaselineHandler) GetBaseline(c *gin.Context) {
	storeID, err := uuid.Parse(c.Query("store_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid store_id"})
		return
	}
	filePath := c.Query("file_path")
	if filePath == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "file_path is required"})
		return
	}

	baseline, err := h.baseline.GetCurrent(c.Request.Context(), storeID, filePath)
	if err != nil {
		if errors.Is(err, repos.ErrBaselineNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "baseline not found"})
			return
		}
		h.log.Error("get baseline failed", "file_path", filePath, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "baseline": baseline})
}
