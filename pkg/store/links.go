package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/mdgraph/mdgraph/pkg/types"
)

// ReplaceLinks deletes a document's outgoing links and inserts the given
// ones. The unique index on (source, target, type) drops duplicates, keeping
// the first occurrence.
func (s *Store) ReplaceLinks(ctx context.Context, sourceDocID string, links []types.Link) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace links: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM links WHERE source_doc_id = ?`, sourceDocID); err != nil {
		return fmt.Errorf("delete links of %s: %w", sourceDocID, err)
	}

	ts := now()
	for _, link := range links {
		_, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO links (source_doc_id, target_doc_id, type, context, source_section_id, target_title, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			sourceDocID, nullString(link.TargetDocID), string(link.Type),
			nullString(link.Context), nullInt64(link.SourceSectionID),
			nullString(link.TargetTitle), ts)
		if err != nil {
			return fmt.Errorf("insert link from %s: %w", sourceDocID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace links: %w", err)
	}
	return nil
}

const linkColumns = `source_doc_id, target_doc_id, type, context, source_section_id, target_title, created_at`

func scanLink(row interface{ Scan(...any) error }) (*types.Link, error) {
	var link types.Link
	var target, linkContext, targetTitle sql.NullString
	var sectionID sql.NullInt64
	var linkType, createdAt string

	err := row.Scan(&link.SourceDocID, &target, &linkType, &linkContext, &sectionID, &targetTitle, &createdAt)
	if err != nil {
		return nil, err
	}
	link.TargetDocID = target.String
	link.Type = types.LinkType(linkType)
	link.Context = linkContext.String
	link.SourceSectionID = sectionID.Int64
	link.TargetTitle = targetTitle.String
	link.CreatedAt = parseTime(createdAt)
	return &link, nil
}

// LinksBySourceDocID returns a document's outgoing links.
func (s *Store) LinksBySourceDocID(ctx context.Context, sourceDocID string) ([]types.Link, error) {
	return s.queryLinks(ctx,
		`SELECT `+linkColumns+` FROM links WHERE source_doc_id = ?`, sourceDocID)
}

// DanglingLinks returns links whose target has not been resolved.
func (s *Store) DanglingLinks(ctx context.Context) ([]types.Link, error) {
	return s.queryLinks(ctx,
		`SELECT `+linkColumns+` FROM links WHERE target_doc_id IS NULL`)
}

func (s *Store) queryLinks(ctx context.Context, query string, args ...any) ([]types.Link, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query links: %w", err)
	}
	defer rows.Close()

	var links []types.Link
	for rows.Next() {
		link, err := scanLink(rows)
		if err != nil {
			return nil, fmt.Errorf("scan link: %w", err)
		}
		links = append(links, *link)
	}
	return links, rows.Err()
}

// ResolveDanglingLinks points dangling links whose target title matches at
// the given document. Returns how many links were resolved.
func (s *Store) ResolveDanglingLinks(ctx context.Context, targetTitle, targetDocID string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE links SET target_doc_id = ?
		WHERE target_doc_id IS NULL AND target_title = ?`,
		targetDocID, targetTitle)
	if err != nil {
		return 0, fmt.Errorf("resolve dangling links to %q: %w", targetTitle, err)
	}
	return res.RowsAffected()
}

// LinkCounts returns total, resolved, and dangling link counts.
func (s *Store) LinkCounts(ctx context.Context) (total, resolved, dangling int, err error) {
	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COUNT(target_doc_id), COUNT(*) - COUNT(target_doc_id) FROM links`).
		Scan(&total, &resolved, &dangling)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("count links: %w", err)
	}
	return total, resolved, dangling, nil
}

// TraverseForward walks outgoing links from centerDocID up to maxDepth hops
// with a recursive CTE, returning each reachable document once with its
// minimum depth, ordered by (depth, title). Implements graph.Walker.
func (s *Store) TraverseForward(ctx context.Context, centerDocID string, maxDepth int, linkTypes []types.LinkType) ([]types.GraphNode, error) {
	typeFilter, typeArgs := buildLinkTypeFilter(linkTypes)
	query := fmt.Sprintf(`
		WITH RECURSIVE forward_graph AS (
			SELECT
				l.target_doc_id AS doc_id,
				l.type,
				1 AS depth
			FROM links l
			WHERE l.source_doc_id = ?
			  AND l.target_doc_id IS NOT NULL
			  %[1]s

			UNION ALL

			SELECT
				l.target_doc_id,
				l.type,
				fg.depth + 1
			FROM links l
			JOIN forward_graph fg ON l.source_doc_id = fg.doc_id
			WHERE fg.depth < ?
			  AND l.target_doc_id IS NOT NULL
			  %[1]s
		)
		SELECT
			fg.doc_id,
			d.title,
			d.doc_type,
			fg.type AS link_type,
			MIN(fg.depth) AS min_depth
		FROM forward_graph fg
		JOIN documents d ON fg.doc_id = d.id
		WHERE fg.doc_id != ?
		GROUP BY fg.doc_id
		ORDER BY min_depth ASC, d.title ASC`, typeFilter)

	args := make([]any, 0, 3+2*len(typeArgs))
	args = append(args, centerDocID)
	args = append(args, typeArgs...)
	args = append(args, maxDepth)
	args = append(args, typeArgs...)
	args = append(args, centerDocID)

	return s.queryGraphNodes(ctx, query, types.DirectionOutgoing, args...)
}

// TraverseBackward walks incoming links. Implements graph.Walker.
func (s *Store) TraverseBackward(ctx context.Context, centerDocID string, maxDepth int, linkTypes []types.LinkType) ([]types.GraphNode, error) {
	typeFilter, typeArgs := buildLinkTypeFilter(linkTypes)
	query := fmt.Sprintf(`
		WITH RECURSIVE backward_graph AS (
			SELECT
				l.source_doc_id AS doc_id,
				l.type,
				1 AS depth
			FROM links l
			WHERE l.target_doc_id = ?
			  %[1]s

			UNION ALL

			SELECT
				l.source_doc_id,
				l.type,
				bg.depth + 1
			FROM links l
			JOIN backward_graph bg ON l.target_doc_id = bg.doc_id
			WHERE bg.depth < ?
			  %[1]s
		)
		SELECT
			bg.doc_id,
			d.title,
			d.doc_type,
			bg.type AS link_type,
			MIN(bg.depth) AS min_depth
		FROM backward_graph bg
		JOIN documents d ON bg.doc_id = d.id
		WHERE bg.doc_id != ?
		GROUP BY bg.doc_id
		ORDER BY min_depth ASC, d.title ASC`, typeFilter)

	args := make([]any, 0, 3+2*len(typeArgs))
	args = append(args, centerDocID)
	args = append(args, typeArgs...)
	args = append(args, maxDepth)
	args = append(args, typeArgs...)
	args = append(args, centerDocID)

	return s.queryGraphNodes(ctx, query, types.DirectionIncoming, args...)
}

func buildLinkTypeFilter(linkTypes []types.LinkType) (string, []any) {
	if len(linkTypes) == 0 {
		return "", nil
	}
	placeholders := make([]string, len(linkTypes))
	args := make([]any, len(linkTypes))
	for i, lt := range linkTypes {
		placeholders[i] = "?"
		args[i] = string(lt)
	}
	return "AND l.type IN (" + strings.Join(placeholders, ",") + ")", args
}

func (s *Store) queryGraphNodes(ctx context.Context, query string, direction types.Direction, args ...any) ([]types.GraphNode, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("traverse links: %w", err)
	}
	defer rows.Close()

	var nodes []types.GraphNode
	for rows.Next() {
		var node types.GraphNode
		var docType, linkType string
		if err := rows.Scan(&node.DocID, &node.Title, &docType, &linkType, &node.Depth); err != nil {
			return nil, fmt.Errorf("scan graph node: %w", err)
		}
		node.Type = types.DocType(docType)
		node.LinkType = types.LinkType(linkType)
		node.Direction = direction
		nodes = append(nodes, node)
	}
	return nodes, rows.Err()
}
