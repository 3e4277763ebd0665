package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mdgraph/mdgraph/pkg/server/dto"
)

// SearchHandler handles search requests
type SearchHandler struct {
	engine Engine
}

// NewSearchHandler creates a new search handler
func NewSearchHandler(engine Engine) *SearchHandler {
	return &SearchHandler{engine: engine}
}

// Search handles POST /api/v1/search
func (h *SearchHandler) Search(c *gin.Context) {
	var req dto.SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid request body: " + err.Error()})
		return
	}
	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
		return
	}

	out, err := h.engine.Search(c.Request.Context(), req.ToSearchRequest())
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, out)
}
