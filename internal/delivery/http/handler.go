package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/grocerybot/assistant/internal/domain"
)

// CatalogQueries is the read side of the catalog served over HTTP
type CatalogQueries interface {
	Lookup(ctx context.Context, rawURL string) (*domain.LookupResult, error)
	Match(ctx context.Context, name string) (domain.Resolution, error)
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	catalog CatalogQueries
	version string
	log     zerolog.Logger
}

// NewHandler creates a new HTTP handler. A nil catalog answers 503 on catalog routes.
func NewHandler(catalog CatalogQueries, version string, log zerolog.Logger) *Handler {
	return &Handler{
		catalog: catalog,
		version: version,
		log:     log.With().Str("component", "http").Logger(),
	}
}

// HealthCheck returns the health status of the API
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "grocerybot",
		"version": h.version,
	})
}

type lookupQuery struct {
	URL string `form:"url" binding:"required"`
}

// LookupProduct reports whether a product page is in the catalog and its purchase history
func (h *Handler) LookupProduct(c *gin.Context) {
	if h.catalog == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "catalog not configured"})
		return
	}

	var q lookupQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url query parameter is required"})
		return
	}

	result, err := h.catalog.Lookup(c.Request.Context(), q.URL)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type matchQuery struct {
	Name string `form:"name" binding:"required"`
}

type matchResponse struct {
	Name       string                  `json:"name"`
	Decision   string                  `json:"decision"`
	Selected   *domain.MatchCandidate  `json:"selected,omitempty"`
	Candidates []domain.MatchCandidate `json:"candidates"`
}

// MatchName resolves a shopping list name against the catalog
func (h *Handler) MatchName(c *gin.Context) {
	if h.catalog == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "catalog not configured"})
		return
	}

	var q matchQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name query parameter is required"})
		return
	}

	res, err := h.catalog.Match(c.Request.Context(), q.Name)
	if err != nil {
		h.fail(c, err)
		return
	}

	candidates := res.Candidates
	if candidates == nil {
		candidates = []domain.MatchCandidate{}
	}
	c.JSON(http.StatusOK, matchResponse{
		Name:       q.Name,
		Decision:   res.Kind.String(),
		Selected:   res.Selected,
		Candidates: candidates,
	})
}

func (h *Handler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidProductURL), errors.Is(err, domain.ErrInvalidRequest):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, context.Canceled):
		c.Status(499)
	default:
		h.log.Error().Err(err).Str("path", c.FullPath()).Msg("catalog request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
