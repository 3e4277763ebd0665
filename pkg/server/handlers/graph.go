package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mdgraph/mdgraph/pkg/server/dto"
	"github.com/mdgraph/mdgraph/pkg/types"
)

// GraphHandler handles link-graph requests
type GraphHandler struct {
	engine Engine
}

// NewGraphHandler creates a new graph handler
func NewGraphHandler(engine Engine) *GraphHandler {
	return &GraphHandler{engine: engine}
}

// Related handles GET /api/v1/related/:doc_id. Query parameters: depth
// (default from config) and link_types (comma-separated).
func (h *GraphHandler) Related(c *gin.Context) {
	docID := c.Param("doc_id")
	if docID == "" {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "doc_id is required"})
		return
	}

	depth := 0
	if raw := c.Query("depth"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "depth must be a non-negative integer"})
			return
		}
		depth = parsed
	}

	var linkTypes []types.LinkType
	if raw := c.Query("link_types"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			part = strings.TrimSpace(part)
			if !types.ValidLinkType(part) {
				c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "unknown link_type " + strconv.Quote(part)})
				return
			}
			linkTypes = append(linkTypes, types.LinkType(part))
		}
	}

	nodes, err := h.engine.Related(c.Request.Context(), docID, depth, linkTypes)
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: err.Error()})
		return
	}
	if nodes == nil {
		nodes = []types.GraphNode{}
	}

	c.JSON(http.StatusOK, dto.RelatedResponse{DocID: docID, Nodes: nodes})
}

// Ambiguous handles GET /api/v1/ambiguous
func (h *GraphHandler) Ambiguous(c *gin.Context) {
	names := make([]dto.AmbiguousName, 0)
	for _, n := range h.engine.AmbiguousLinks() {
		names = append(names, dto.AmbiguousName{Name: n.Name, Candidates: n.Candidates})
	}

	c.JSON(http.StatusOK, dto.AmbiguousResponse{Names: names})
}
