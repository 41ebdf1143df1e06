package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/timmy/promptmart/internal/domain"
	"github.com/timmy/promptmart/internal/logger"
	"github.com/timmy/promptmart/internal/service"
)

// CategoryLister lists the categories that currently have listings.
type CategoryLister interface {
	Categories(ctx context.Context) ([]string, error)
}

// PromptListResponse is the body of every listing endpoint.
type PromptListResponse struct {
	Results []domain.Prompt `json:"results"`
	Total   int             `json:"total"`
}

func listResponse(results []domain.Prompt) PromptListResponse {
	if results == nil {
		results = []domain.Prompt{}
	}
	return PromptListResponse{Results: results, Total: len(results)}
}

// PromptHandler handles the public catalog endpoints.
type PromptHandler struct {
	searchService *service.SearchService
	categories    CategoryLister
}

// NewPromptHandler creates a new prompt handler.
// Parameters:
//   - searchService: search service instance.
//   - categories: optional category source; nil serves the fixed category list.
// Returns:
//   - *PromptHandler: initialized handler.
func NewPromptHandler(searchService *service.SearchService, categories CategoryLister) *PromptHandler {
	return &PromptHandler{
		searchService: searchService,
		categories:    categories,
	}
}

// ListPrompts handles GET /api/v1/prompts.
// Query parameters: q, category, tags (comma separated or repeated), price,
// sort, limit.
func (h *PromptHandler) ListPrompts(c *gin.Context) {
	req, err := searchRequestFromQuery(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, listResponse(h.searchService.Search(c.Request.Context(), req)))
}

// SearchPrompts handles POST /api/v1/search with a JSON SearchRequest body.
func (h *PromptHandler) SearchPrompts(c *gin.Context) {
	var req domain.SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, listResponse(h.searchService.Search(c.Request.Context(), req)))
}

// Preset handles GET /api/v1/prompts/presets/:name. The by-category preset
// reads its argument from the category query parameter.
func (h *PromptHandler) Preset(c *gin.Context) {
	name := c.Param("name")
	results, err := h.searchService.Preset(c.Request.Context(), name, c.Query("category"))
	if errors.Is(err, service.ErrUnknownPreset) {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "Unknown preset: " + name,
			"presets": service.PresetNames(),
		})
		return
	}

	c.JSON(http.StatusOK, listResponse(results))
}

// GetPrompt handles GET /api/v1/prompts/:id. Inactive prompts are not found.
func (h *PromptHandler) GetPrompt(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Prompt ID is required"})
		return
	}

	prompt, ok := h.searchService.Get(c.Request.Context(), id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Prompt not found"})
		return
	}

	c.JSON(http.StatusOK, prompt)
}

// TrackView handles POST /api/v1/prompts/:id/views.
func (h *PromptHandler) TrackView(c *gin.Context) {
	h.track(c, h.searchService.TrackView)
}

// TrackDownload handles POST /api/v1/prompts/:id/downloads.
func (h *PromptHandler) TrackDownload(c *gin.Context) {
	h.track(c, h.searchService.TrackDownload)
}

// track accepts the event and returns before the counter is written.
func (h *PromptHandler) track(c *gin.Context, record func(context.Context, string)) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Prompt ID is required"})
		return
	}

	record(c.Request.Context(), id)
	c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
}

// GetCategories handles GET /api/v1/categories.
func (h *PromptHandler) GetCategories(c *gin.Context) {
	categories := domain.Categories
	if h.categories != nil {
		found, err := h.categories.Categories(c.Request.Context())
		if err != nil {
			logger.CtxError(c.Request.Context(), "Failed to list categories: error=%v", err)
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to get categories",
			})
			return
		}
		categories = found
	}

	c.JSON(http.StatusOK, gin.H{
		"categories": categories,
		"total":      len(categories),
	})
}

func searchRequestFromQuery(c *gin.Context) (domain.SearchRequest, error) {
	req := domain.SearchRequest{
		Query:       c.Query("q"),
		Category:    c.Query("category"),
		PriceFilter: domain.PriceFilter(c.Query("price")),
		SortBy:      domain.SortKey(c.Query("sort")),
	}

	for _, value := range c.QueryArray("tags") {
		req.Tags = append(req.Tags, strings.Split(value, ",")...)
	}

	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			return req, errors.New("limit must be an integer")
		}
		req.Limit = limit
	}

	return req, nil
}
