package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/threadmill/storefront-backend/internal/logger"
	"github.com/threadmill/storefront-backend/internal/repos"
	"github.com/threadmill/storefront-backend/internal/services"
	"github.com/threadmill/storefront-backend/internal/types"
)

type PatchHandler struct {
	log         *logger.Logger
	composer    services.ComposerService
	editSession services.EditSessionService
	maxPatches  int
}

func NewPatchHandler(log *logger.Logger, composer services.ComposerService, editSession services.EditSessionService, maxPatches int) *PatchHandler {
	return &PatchHandler{
		log:         log.With("handler", "PatchHandler"),
		composer:    composer,
		editSession: editSession,
		maxPatches:  maxPatches,
	}
}

type applyPatchesRequest struct {
	FilePath       string  `json:"file_path" binding:"required"`
	StoreID        string  `json:"store_id" binding:"required"`
	UserID         *string `json:"user_id"`
	SessionID      *string `json:"session_id"`
	ReleaseVersion string  `json:"release_version"`
	ABVariant      string  `json:"ab_variant"`
	PreviewMode    bool    `json:"preview_mode"`
	MaxPatches     int     `json:"max_patches"`
}

// POST /api/patches/apply
func (h *PatchHandler) ApplyPatches(c *gin.Context) {
	var req applyPatchesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}
	storeID, err := uuid.Parse(req.StoreID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid store_id"})
		return
	}
	maxPatches := req.MaxPatches
	if maxPatches <= 0 || (h.maxPatches > 0 && maxPatches > h.maxPatches) {
		maxPatches = h.maxPatches
	}
	opts := services.ApplyOptions{
		StoreID:        storeID,
		ReleaseVersion: req.ReleaseVersion,
		ABVariant:      req.ABVariant,
		PreviewMode:    req.PreviewMode,
		MaxPatches:     maxPatches,
	}
	if req.UserID != nil {
		userID, err := uuid.Parse(*req.UserID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid user_id"})
			return
		}
		opts.UserID = &userID
	}
	if req.SessionID != nil {
		sessionID, err := uuid.Parse(*req.SessionID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid session_id"})
			return
		}
		opts.SessionID = &sessionID
	}

	result, err := h.composer.ApplyPatches(c.Request.Context(), req.FilePath, opts)
	if err != nil {
		h.log.Error("apply patches failed", "file_path", req.FilePath, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

type createPatchRequest struct {
	FilePath      string  `json:"file_path" binding:"required"`
	ModifiedCode  string  `json:"modified_code" binding:"required"`
	StoreID       string  `json:"store_id" binding:"required"`
	CreatedBy     string  `json:"created_by" binding:"required"`
	SessionID     *string `json:"session_id"`
	ChangeType    string  `json:"change_type"`
	PatchName     string  `json:"patch_name"`
	ChangeSummary string  `json:"change_summary"`
	ReleaseID     *string `json:"release_id"`
	Priority      int     `json:"priority"`
}

// POST /api/patches
func (h *PatchHandler) CreatePatch(c *gin.Context) {
	var req createPatchRequest
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
	changeType := req.ChangeType
	if changeType == "" {
		changeType = types.ChangeTypeManualEdit
	}
	opts := services.UpsertOptions{
		StoreID:       storeID,
		CreatedBy:     createdBy,
		ChangeType:    changeType,
		PatchName:     req.PatchName,
		ChangeSummary: req.ChangeSummary,
		Priority:      req.Priority,
	}
	if req.SessionID != nil {
		sessionID, err := uuid.Parse(*req.SessionID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid session_id"})
			return
		}
		opts.SessionID = sessionID
	}
	if req.ReleaseID != nil {
		releaseID, err := uuid.Parse(*req.ReleaseID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid release_id"})
			return
		}
		opts.ReleaseID = &releaseID
	}

	result, err := h.editSession.UpsertPatch(c.Request.Context(), req.FilePath, req.ModifiedCode, opts)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrNoChanges):
			c.JSON(http.StatusUnprocessableEntity, gin.H{"success": false, "error": "no changes detected"})
		case errors.Is(err, repos.ErrBaselineNotFound):
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "baseline not found"})
		default:
			h.log.Error("create patch failed", "file_path", req.FilePath, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"patch_id":   result.PatchID,
		"action":     result.Action,
		"diff_stats": result.Stats,
	})
}

type finalizeSessionRequest struct {
	StoreID   string `json:"store_id" binding:"required"`
	CreatedBy string `json:"created_by" binding:"required"`
	FilePath  string `json:"file_path"`
}

// POST /api/sessions/:id/finalize
func (h *PatchHandler) FinalizeSession(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid session id"})
		return
	}
	var req finalizeSessionRequest
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

	count, err := h.editSession.Finalize(c.Request.Context(), sessionID, services.FinalizeOptions{
		StoreID:   storeID,
		CreatedBy: createdBy,
		FilePath:  req.FilePath,
	})
	if err != nil {
		h.log.Error("finalize session failed", "session_id", sessionID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "finalized_count": count})
}

// DELETE /api/cache
func (h *PatchHandler) ClearCache(c *gin.Context) {
	filePath := c.Query("file_path")
	if err := h.composer.ClearCache(c.Request.Context(), filePath); err != nil {
		h.log.Error("clear cache failed", "file_path", filePath, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
