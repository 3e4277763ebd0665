// Package dto defines the request and response shapes of the HTTP API.
package dto

import (
	"fmt"

	"github.com/mdgraph/mdgraph/pkg/types"
)

// SearchRequest is the body of POST /api/v1/search.
type SearchRequest struct {
	Query     string   `json:"query" binding:"required"`
	Limit     int      `json:"limit,omitempty"`
	Depth     int      `json:"depth,omitempty"`
	DocType   string   `json:"doc_type,omitempty"`
	LinkTypes []string `json:"link_types,omitempty"`
}

// Validate checks field values beyond what binding enforces.
func (r *SearchRequest) Validate() error {
	if r.Query == "" {
		return fmt.Errorf("query is required")
	}
	if r.Limit < 0 {
		return fmt.Errorf("limit must be non-negative")
	}
	if r.Depth < 0 {
		return fmt.Errorf("depth must be non-negative")
	}
	if r.DocType != "" && !types.ValidDocType(r.DocType) {
		return fmt.Errorf("unknown doc_type %q", r.DocType)
	}
	for _, lt := range r.LinkTypes {
		if !types.ValidLinkType(lt) {
			return fmt.Errorf("unknown link_type %q", lt)
		}
	}
	return nil
}

// ToSearchRequest converts the DTO into the engine request type.
func (r *SearchRequest) ToSearchRequest() types.SearchRequest {
	req := types.SearchRequest{
		Query:   r.Query,
		Limit:   r.Limit,
		Depth:   r.Depth,
		DocType: types.DocType(r.DocType),
	}
	for _, lt := range r.LinkTypes {
		req.LinkTypes = append(req.LinkTypes, types.LinkType(lt))
	}
	return req
}

// ReindexRequest is the optional body of POST /api/v1/reindex.
type ReindexRequest struct {
	Force bool `json:"force,omitempty"`
}

// RelatedResponse is the body of GET /api/v1/related/:doc_id.
type RelatedResponse struct {
	DocID string            `json:"doc_id"`
	Nodes []types.GraphNode `json:"nodes"`
}

// AmbiguousName is one entry in GET /api/v1/ambiguous.
type AmbiguousName struct {
	Name       string   `json:"name"`
	Candidates []string `json:"candidates"`
}

// AmbiguousResponse is the body of GET /api/v1/ambiguous.
type AmbiguousResponse struct {
	Names []AmbiguousName `json:"names"`
}

// StaleResponse is the body of GET /api/v1/stale.
type StaleResponse struct {
	Documents []types.StaleDoc `json:"documents"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}
