package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/timmy/promptmart/internal/logger"
	"github.com/timmy/promptmart/internal/repository"
	"github.com/timmy/promptmart/internal/service"
	"github.com/timmy/promptmart/internal/source"
)

// CatalogAdmin is the moderation side of the prompt store.
type CatalogAdmin interface {
	SetActive(ctx context.Context, id string, active bool) error
	Delete(ctx context.Context, id string) error
}

// SourceResolver opens a catalog source by name.
type SourceResolver func(name string) (source.Source, error)

// AdminHandler handles admin operations.
type AdminHandler struct {
	searchService *service.SearchService
	catalog       CatalogAdmin
	importService *service.ImportService
	sources       SourceResolver

	// Import job state
	mu            sync.RWMutex
	isRunning     bool
	currentStats  *service.ImportStats
	lastRunTime   time.Time
	lastRunStatus string
}

// NewAdminHandler creates a new admin handler.
// Parameters:
//   - searchService: search service instance.
//   - catalog: optional moderation store; nil disables approve and delete.
//   - importService: optional import service; nil disables imports.
//   - sources: resolves import source names.
// Returns:
//   - *AdminHandler: initialized handler.
func NewAdminHandler(
	searchService *service.SearchService,
	catalog CatalogAdmin,
	importService *service.ImportService,
	sources SourceResolver,
) *AdminHandler {
	return &AdminHandler{
		searchService: searchService,
		catalog:       catalog,
		importService: importService,
		sources:       sources,
	}
}

// ImportRequest represents the import API request.
type ImportRequest struct {
	Source   string `json:"source" binding:"required"`
	Limit    int    `json:"limit" binding:"min=0,max=100000"`
	Force    bool   `json:"force"`
	Activate bool   `json:"activate"`
}

// ImportResponse represents the import API response.
type ImportResponse struct {
	Message string               `json:"message"`
	Stats   *service.ImportStats `json:"stats,omitempty"`
}

// ImportStatusResponse represents the import status.
type ImportStatusResponse struct {
	IsRunning     bool                 `json:"is_running"`
	LastRunTime   string               `json:"last_run_time,omitempty"`
	LastRunStatus string               `json:"last_run_status,omitempty"`
	CurrentStats  *service.ImportStats `json:"current_stats,omitempty"`
}

// ListPrompts handles GET /api/v1/admin/prompts. It accepts the same query
// parameters as the public listing and includes unapproved prompts.
func (h *AdminHandler) ListPrompts(c *gin.Context) {
	req, err := searchRequestFromQuery(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, listResponse(h.searchService.AdminSearch(c.Request.Context(), req)))
}

// Approve handles POST /api/v1/admin/prompts/:id/approve.
func (h *AdminHandler) Approve(c *gin.Context) {
	h.setActive(c, true)
}

// Unpublish handles POST /api/v1/admin/prompts/:id/unpublish.
func (h *AdminHandler) Unpublish(c *gin.Context) {
	h.setActive(c, false)
}

func (h *AdminHandler) setActive(c *gin.Context, active bool) {
	if h.catalog == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "Moderation is not supported by this store"})
		return
	}

	ctx := logger.SetPromptID(c.Request.Context(), c.Param("id"))
	if err := h.catalog.SetActive(ctx, c.Param("id"), active); err != nil {
		h.writeStoreError(ctx, c, "update", err)
		return
	}

	logger.CtxInfo(ctx, "Prompt visibility changed: active=%v", active)
	c.JSON(http.StatusOK, gin.H{"id": c.Param("id"), "is_active": active})
}

// DeletePrompt handles DELETE /api/v1/admin/prompts/:id.
func (h *AdminHandler) DeletePrompt(c *gin.Context) {
	if h.catalog == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "Moderation is not supported by this store"})
		return
	}

	ctx := logger.SetPromptID(c.Request.Context(), c.Param("id"))
	if err := h.catalog.Delete(ctx, c.Param("id")); err != nil {
		h.writeStoreError(ctx, c, "delete", err)
		return
	}

	logger.CtxInfo(ctx, "Prompt deleted")
	c.Status(http.StatusNoContent)
}

func (h *AdminHandler) writeStoreError(ctx context.Context, c *gin.Context, op string, err error) {
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Prompt not found"})
		return
	}
	logger.CtxError(ctx, "Failed to %s prompt: error=%v", op, err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to " + op + " prompt"})
}

// TriggerImport handles POST /api/v1/admin/import. The import runs to
// completion even if the client disconnects.
func (h *AdminHandler) TriggerImport(c *gin.Context) {
	ctx := c.Request.Context()

	if h.importService == nil || h.sources == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "Import is not supported by this store"})
		return
	}

	var req ImportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.CtxWarn(ctx, "Invalid import request: client_ip=%s, error=%v", c.ClientIP(), err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	src, err := h.sources(strings.TrimSpace(req.Source))
	if err != nil {
		logger.CtxWarn(ctx, "Unknown source requested: source=%s, error=%v", req.Source, err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown source: " + req.Source})
		return
	}

	h.mu.Lock()
	if h.isRunning {
		h.mu.Unlock()
		logger.CtxWarn(ctx, "Import request rejected: already running, source=%s", req.Source)
		c.JSON(http.StatusConflict, gin.H{"error": "Import is already running"})
		return
	}
	h.isRunning = true
	h.currentStats = nil
	h.mu.Unlock()

	logger.CtxInfo(ctx, "Starting import: source=%s, limit=%d, force=%v, activate=%v",
		req.Source, req.Limit, req.Force, req.Activate)

	startTime := time.Now()
	stats, err := h.importService.ImportFromSource(context.WithoutCancel(ctx), src, req.Limit, &service.ImportOptions{
		Force:    req.Force,
		Activate: req.Activate,
	})
	duration := time.Since(startTime)

	h.mu.Lock()
	h.isRunning = false
	h.currentStats = stats
	h.lastRunTime = time.Now()
	if err != nil {
		h.lastRunStatus = "failed: " + err.Error()
	} else {
		h.lastRunStatus = "success"
	}
	h.mu.Unlock()

	if err != nil {
		logger.With(logger.Fields{
			logger.FieldDurationMs: duration.Milliseconds(),
		}).Error(ctx, "Import failed: source=%s, error=%v", req.Source, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	logger.With(logger.Fields{
		logger.FieldDurationMs: duration.Milliseconds(),
		logger.FieldCount:      stats.ImportedItems,
	}).Info(ctx, "Import completed: source=%s, total=%d, imported=%d, skipped=%d, failed=%d",
		req.Source, stats.TotalItems, stats.ImportedItems, stats.SkippedItems, stats.FailedItems)

	c.JSON(http.StatusOK, ImportResponse{
		Message: "Import completed",
		Stats:   stats,
	})
}

// GetImportStatus handles GET /api/v1/admin/import/status.
func (h *AdminHandler) GetImportStatus(c *gin.Context) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	resp := ImportStatusResponse{
		IsRunning:     h.isRunning,
		LastRunStatus: h.lastRunStatus,
		CurrentStats:  h.currentStats,
	}

	if !h.lastRunTime.IsZero() {
		resp.LastRunTime = h.lastRunTime.Format(time.RFC3339)
	}

	c.JSON(http.StatusOK, resp)
}
