// Package types defines the shared domain types for the mdgraph knowledge
// engine: documents, sections, links, graph nodes, and search results.
package types

import "time"

// DocType classifies a document by its role in the corpus.
type DocType string

const (
	DocTypeSpec     DocType = "spec"
	DocTypeDesign   DocType = "design"
	DocTypeDBSchema DocType = "db-schema"
	DocTypeAPI      DocType = "api"
	DocTypeConfig   DocType = "config"
	DocTypeGuide    DocType = "guide"
)

// ValidDocType reports whether s names a known document type.
func ValidDocType(s string) bool {
	switch DocType(s) {
	case DocTypeSpec, DocTypeDesign, DocTypeDBSchema, DocTypeAPI, DocTypeConfig, DocTypeGuide:
		return true
	}
	return false
}

// LinkType classifies the relationship a link expresses between two documents.
type LinkType string

const (
	LinkReferences    LinkType = "references"
	LinkDependsOn     LinkType = "depends_on"
	LinkImplements    LinkType = "implements"
	LinkExtends       LinkType = "extends"
	LinkConflictsWith LinkType = "conflicts_with"
)

// ValidLinkType reports whether s names a known link type.
func ValidLinkType(s string) bool {
	switch LinkType(s) {
	case LinkReferences, LinkDependsOn, LinkImplements, LinkExtends, LinkConflictsWith:
		return true
	}
	return false
}

// Document is a Markdown file tracked by the engine.
type Document struct {
	ID        string    `json:"id"`
	Filepath  string    `json:"filepath"`
	Title     string    `json:"title"`
	Type      DocType   `json:"doc_type"`
	BodyHash  string    `json:"body_hash"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Section is a heading-delimited chunk of a document. Heading is empty for
// the intro section before the first heading. Embedding is nil until the
// section has been embedded.
type Section struct {
	ID             int64     `json:"id"`
	DocID          string    `json:"doc_id"`
	Heading        string    `json:"heading,omitempty"`
	Order          int       `json:"section_order"`
	Content        string    `json:"content"`
	ContentHash    string    `json:"content_hash"`
	Embedding      []float32 `json:"-"`
	EmbeddingModel string    `json:"embedding_model,omitempty"`
	TokenCount     int       `json:"token_count,omitempty"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Link is a typed edge between two documents. TargetDocID is empty for a
// dangling link whose target has not been resolved yet; TargetTitle keeps the
// raw target so the link can be resolved later.
type Link struct {
	SourceDocID     string    `json:"source_doc_id"`
	TargetDocID     string    `json:"target_doc_id,omitempty"`
	Type            LinkType  `json:"type"`
	Context         string    `json:"context,omitempty"`
	SourceSectionID int64     `json:"source_section_id,omitempty"`
	TargetTitle     string    `json:"target_title,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// SourceRef tracks one source file a document claims to describe, along with
// the hash of that file at the last sync.
type SourceRef struct {
	DocID          string    `json:"doc_id"`
	FilePath       string    `json:"file_path"`
	LastSyncedHash string    `json:"last_synced_hash,omitempty"`
	LastSyncedAt   time.Time `json:"last_synced_at,omitempty"`
	Stale          bool      `json:"is_stale"`
}

// StaleSourceRef is a stale SourceRef joined with its document metadata.
type StaleSourceRef struct {
	SourceRef
	DocTitle    string `json:"doc_title"`
	DocFilepath string `json:"doc_filepath"`
}

// Direction indicates whether a graph node was reached by following outgoing
// or incoming links.
type Direction string

const (
	DirectionOutgoing Direction = "outgoing"
	DirectionIncoming Direction = "incoming"
)

// GraphNode is a document reached by link-graph traversal, annotated with the
// minimum hop distance from the traversal center.
type GraphNode struct {
	DocID     string    `json:"doc_id"`
	Title     string    `json:"title"`
	Type      DocType   `json:"doc_type"`
	Depth     int       `json:"depth"`
	LinkType  LinkType  `json:"link_type"`
	Direction Direction `json:"direction"`
}

// StalenessLevel describes how trustworthy a document is relative to the
// source files it references.
type StalenessLevel string

const (
	StalenessFresh         StalenessLevel = "fresh"
	StalenessPossiblyStale StalenessLevel = "possibly_stale"
	StalenessStale         StalenessLevel = "stale"
	StalenessUntracked     StalenessLevel = "untracked"
)

// StaleRef names a stale source reference and why it is stale.
type StaleRef struct {
	SourcePath string `json:"source_path"`
	Reason     string `json:"reason"` // modified, deleted, not_found
}

// StaleDoc is a document with at least one stale source reference.
type StaleDoc struct {
	DocID     string         `json:"doc_id"`
	Filepath  string         `json:"filepath"`
	Title     string         `json:"title"`
	Staleness StalenessLevel `json:"staleness"`
	StaleRefs []StaleRef     `json:"stale_refs"`
}

// FulltextHit is one row returned by FTS5 fulltext search. Rank is the raw
// FTS5 rank, which is negative with smaller (more negative) meaning better.
type FulltextHit struct {
	SectionID int64   `json:"section_id"`
	DocID     string  `json:"doc_id"`
	Title     string  `json:"title"`
	DocType   DocType `json:"doc_type"`
	Heading   string  `json:"heading,omitempty"`
	Snippet   string  `json:"snippet"`
	Rank      float64 `json:"rank"`
}

// SearchRequest carries the parameters of one search call. Zero values mean
// "use the configured default".
type SearchRequest struct {
	Query     string     `json:"query"`
	Limit     int        `json:"limit,omitempty"`
	Depth     int        `json:"depth,omitempty"`
	DocType   DocType    `json:"doc_type,omitempty"`
	LinkTypes []LinkType `json:"link_types,omitempty"`
}

// SectionMatch is one section attached to a search result.
type SectionMatch struct {
	SectionID int64   `json:"section_id"`
	Heading   string  `json:"heading,omitempty"`
	Content   string  `json:"content"`
	Score     float64 `json:"score"`
}

// ScoreBreakdown exposes the per-signal components of a final score.
type ScoreBreakdown struct {
	VectorSimilarity float64 `json:"vector_similarity"`
	GraphProximity   float64 `json:"graph_proximity"`
}

// SearchResult is one ranked document in a search response.
type SearchResult struct {
	DocID           string         `json:"doc_id"`
	Filepath        string         `json:"filepath"`
	Title           string         `json:"title"`
	Sections        []SectionMatch `json:"sections"`
	Score           float64        `json:"score"`
	Breakdown       ScoreBreakdown `json:"score_breakdown"`
	RelevanceReason string         `json:"relevance_reason"`
	Staleness       StalenessLevel `json:"staleness"`
}

// Search types reported in SearchOutput.SearchType.
const (
	SearchTypeHybrid           = "hybrid"
	SearchTypeFulltextFallback = "fulltext_fallback"
)

// SearchOutput is a full search response.
type SearchOutput struct {
	Results    []SearchResult `json:"results"`
	TotalFound int            `json:"total_found"`
	SearchType string         `json:"search_type"`
}

// Status summarizes the engine state for the status command and endpoint.
type Status struct {
	Documents        int `json:"documents"`
	Sections         int `json:"sections"`
	SectionsEmbedded int `json:"sections_embedded"`
	Links            int `json:"links"`
	LinksResolved    int `json:"links_resolved"`
	LinksDangling    int `json:"links_dangling"`
	IndexSize        int `json:"index_size"`
	QueuePending     int `json:"queue_pending"`
	QueueCompleted   int `json:"queue_completed"`
	RefsTotal        int `json:"refs_total"`
	RefsStale        int `json:"refs_stale"`
}

// ReindexResult summarizes one full reindex pass.
type ReindexResult struct {
	FilesSeen        int `json:"files_seen"`
	FilesProcessed   int `json:"files_processed"`
	FilesSkipped     int `json:"files_skipped"`
	SectionsCreated  int `json:"sections_created"`
	LinksResolved    int `json:"links_resolved"`
	LinksDangling    int `json:"links_dangling"`
	EmbeddingsQueued int `json:"embeddings_queued"`
}

// FileResult summarizes processing of a single file.
type FileResult struct {
	DocID            string `json:"doc_id"`
	SectionsCreated  int    `json:"sections_created"`
	LinksResolved    int    `json:"links_resolved"`
	LinksDangling    int    `json:"links_dangling"`
	EmbeddingsQueued int    `json:"embeddings_queued"`
	Skipped          bool   `json:"skipped"`
}
