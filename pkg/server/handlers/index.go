package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mdgraph/mdgraph/pkg/server/dto"
	"github.com/mdgraph/mdgraph/pkg/types"
)

// IndexHandler handles reindex, status, and staleness requests
type IndexHandler struct {
	engine Engine
}

// NewIndexHandler creates a new index handler
func NewIndexHandler(engine Engine) *IndexHandler {
	return &IndexHandler{engine: engine}
}

// Reindex handles POST /api/v1/reindex. The body is optional; an empty body
// means an incremental reindex.
func (h *IndexHandler) Reindex(c *gin.Context) {
	var req dto.ReindexRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid request body: " + err.Error()})
		return
	}

	result, err := h.engine.Reindex(c.Request.Context(), req.Force)
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, result)
}

// Status handles GET /api/v1/status
func (h *IndexHandler) Status(c *gin.Context) {
	status, err := h.engine.Status(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, status)
}

// Stale handles GET /api/v1/stale
func (h *IndexHandler) Stale(c *gin.Context) {
	docs, err := h.engine.StaleDocuments(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: err.Error()})
		return
	}
	if docs == nil {
		docs = []types.StaleDoc{}
	}

	c.JSON(http.StatusOK, dto.StaleResponse{Documents: docs})
}
