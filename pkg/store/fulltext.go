package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/mdgraph/mdgraph/pkg/types"
)

// sanitizeFTSQuery rewrites user input into a safe FTS5 MATCH expression.
// Each whitespace token is wrapped in double quotes so FTS5 syntax keywords
// (AND, OR, NOT, NEAR) and special characters (*, ^, parentheses, colons)
// are matched literally. Internal double quotes are doubled.
func sanitizeFTSQuery(input string) string {
	tokens := strings.Fields(strings.TrimSpace(input))
	if len(tokens) == 0 {
		return ""
	}
	quoted := make([]string, len(tokens))
	for i, token := range tokens {
		quoted[i] = `"` + strings.ReplaceAll(token, `"`, `""`) + `"`
	}
	return strings.Join(quoted, " ")
}

// SearchFulltext runs an FTS5 query over section headings and content,
// ordered by rank (best first). A query FTS5 still rejects after
// sanitization yields empty results rather than an error.
func (s *Store) SearchFulltext(ctx context.Context, query string, limit int) ([]types.FulltextHit, error) {
	sanitized := sanitizeFTSQuery(query)
	if sanitized == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT
			s.id AS section_id,
			s.doc_id,
			d.title,
			d.doc_type,
			s.heading,
			snippet(sections_fts, 1, '<mark>', '</mark>', '...', 64) AS snippet,
			rank
		FROM sections_fts
		JOIN sections s ON sections_fts.rowid = s.id
		JOIN documents d ON s.doc_id = d.id
		WHERE sections_fts MATCH ?
		ORDER BY rank
		LIMIT ?`, sanitized, limit)
	if err != nil {
		s.logger.Debug("fulltext query rejected", "query", query, "error", err)
		return nil, nil
	}
	defer rows.Close()

	var hits []types.FulltextHit
	for rows.Next() {
		var hit types.FulltextHit
		var docType string
		var heading sql.NullString
		err := rows.Scan(&hit.SectionID, &hit.DocID, &hit.Title, &docType,
			&heading, &hit.Snippet, &hit.Rank)
		if err != nil {
			return nil, fmt.Errorf("scan fulltext hit: %w", err)
		}
		hit.DocType = types.DocType(docType)
		hit.Heading = heading.String
		hits = append(hits, hit)
	}
	if err := rows.Err(); err != nil {
		s.logger.Debug("fulltext query failed", "query", query, "error", err)
		return nil, nil
	}
	return hits, nil
}
