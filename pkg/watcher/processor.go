package watcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/mdgraph/mdgraph/pkg/embedqueue"
	"github.com/mdgraph/mdgraph/pkg/linker"
	"github.com/mdgraph/mdgraph/pkg/parser"
	"github.com/mdgraph/mdgraph/pkg/store"
	"github.com/mdgraph/mdgraph/pkg/types"
	"github.com/mdgraph/mdgraph/pkg/utils"
)

// EventType classifies a filesystem change.
type EventType string

const (
	EventAdd    EventType = "add"
	EventChange EventType = "change"
	EventUnlink EventType = "unlink"
)

// Event is one file change, with the path relative to the docs root.
type Event struct {
	Type     EventType
	Filepath string
}

// Store is the persistence surface the processor writes through.
type Store interface {
	FindDocumentByFilepath(ctx context.Context, filepath string) (*types.Document, error)
	UpsertDocument(ctx context.Context, doc *types.Document) error
	ReplaceSections(ctx context.Context, docID string, sections []types.Section) ([]types.Section, error)
	ReplaceLinks(ctx context.Context, sourceDocID string, links []types.Link) error
	SyncSourceRefs(ctx context.Context, docID string, refs []store.RefHash) error
	ResolveDanglingLinks(ctx context.Context, targetTitle, targetDocID string) (int64, error)
	DeleteDocument(ctx context.Context, id string) error
}

// Index is the vector index surface the processor invalidates on delete.
type Index interface {
	RemoveByDocID(docID string) int
}

// Queue accepts embedding work for sections without vectors.
type Queue interface {
	Enqueue(jobs ...embedqueue.Job)
}

// Processor applies file change events: parse, persist, resolve links, and
// queue embeddings.
type Processor struct {
	store       Store
	index       Index
	queue       Queue
	resolver    *linker.Resolver
	docsRoot    string
	projectRoot string
	logger      *slog.Logger
}

func NewProcessor(st Store, index Index, queue Queue, resolver *linker.Resolver,
	docsRoot, projectRoot string, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		store:       st,
		index:       index,
		queue:       queue,
		resolver:    resolver,
		docsRoot:    docsRoot,
		projectRoot: projectRoot,
		logger:      logger,
	}
}

// ProcessChange dispatches one event. Errors are logged, not returned, so a
// bad file never stops the watch loop.
func (p *Processor) ProcessChange(ctx context.Context, event Event) {
	var err error
	switch event.Type {
	case EventAdd, EventChange:
		err = p.processAddOrChange(ctx, event)
	case EventUnlink:
		err = p.processUnlink(ctx, event)
	}
	if err != nil {
		p.logger.Error("failed to process file event",
			"type", string(event.Type), "filepath", event.Filepath, "error", err)
	}
}

// ProcessFile parses and persists one document. Unchanged content is skipped
// unless force is set.
func (p *Processor) ProcessFile(ctx context.Context, relPath, content string, force bool) (*types.FileResult, error) {
	bodyHash := utils.HashString(content)

	existing, err := p.store.FindDocumentByFilepath(ctx, relPath)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	if !force && existing != nil && existing.BodyHash == bodyHash {
		return &types.FileResult{DocID: existing.ID, Skipped: true}, nil
	}

	parsed, err := parser.Parse(content, relPath, nil)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", relPath, err)
	}
	for _, warning := range parsed.Warnings {
		p.logger.Warn("parse warning", "filepath", relPath, "type", warning.Type, "message", warning.Message)
	}

	docID := newDocID()
	if existing != nil {
		docID = existing.ID
	}

	docType := types.DocTypeGuide
	if types.ValidDocType(parsed.Frontmatter.DocType) {
		docType = types.DocType(parsed.Frontmatter.DocType)
	}

	err = p.store.UpsertDocument(ctx, &types.Document{
		ID:       docID,
		Filepath: relPath,
		Title:    parsed.Title,
		Type:     docType,
		BodyHash: bodyHash,
	})
	if err != nil {
		return nil, err
	}

	for i := range parsed.Sections {
		parsed.Sections[i].ContentHash = utils.HashString(parsed.Sections[i].Content)
	}
	inserted, err := p.store.ReplaceSections(ctx, docID, parsed.Sections)
	if err != nil {
		return nil, err
	}

	sectionIDByOrder := make(map[int]int64, len(inserted))
	for _, sec := range inserted {
		sectionIDByOrder[sec.Order] = sec.ID
	}

	links, resolved, dangling, err := p.buildLinks(ctx, docID, relPath, parsed.Links, sectionIDByOrder)
	if err != nil {
		return nil, err
	}
	if err := p.store.ReplaceLinks(ctx, docID, links); err != nil {
		return nil, err
	}

	refs := p.hashSourceRefs(parsed.Frontmatter.SourceRefs)
	if err := p.store.SyncSourceRefs(ctx, docID, refs); err != nil {
		return nil, err
	}

	var jobs []embedqueue.Job
	for _, sec := range inserted {
		if sec.Embedding == nil {
			jobs = append(jobs, embedqueue.Job{
				SectionID: sec.ID,
				DocID:     docID,
				Heading:   sec.Heading,
				Content:   sec.Content,
			})
		}
	}
	if len(jobs) > 0 {
		p.queue.Enqueue(jobs...)
	}

	return &types.FileResult{
		DocID:            docID,
		SectionsCreated:  len(inserted),
		LinksResolved:    resolved,
		LinksDangling:    dangling,
		EmbeddingsQueued: len(jobs),
	}, nil
}

func (p *Processor) processAddOrChange(ctx context.Context, event Event) error {
	content, err := os.ReadFile(filepath.Join(p.docsRoot, filepath.FromSlash(event.Filepath)))
	if err != nil {
		return fmt.Errorf("read %s: %w", event.Filepath, err)
	}

	if event.Type == EventAdd {
		p.resolver.AddFile(event.Filepath)
	}

	result, err := p.ProcessFile(ctx, event.Filepath, string(content), false)
	if err != nil {
		return err
	}
	if result.Skipped {
		p.logger.Debug("skipped unchanged file", "filepath", event.Filepath)
		return nil
	}

	p.logger.Info("processed file",
		"filepath", event.Filepath,
		"sections", result.SectionsCreated,
		"links_resolved", result.LinksResolved,
		"embeddings_queued", result.EmbeddingsQueued)

	// Dangling links elsewhere in the corpus may point at this document now
	doc, err := p.store.FindDocumentByFilepath(ctx, event.Filepath)
	if err != nil {
		return nil
	}
	if _, err := p.store.ResolveDanglingLinks(ctx, doc.Title, doc.ID); err != nil {
		return err
	}
	basename := strings.TrimSuffix(filepath.Base(event.Filepath), ".md")
	if basename != doc.Title {
		if _, err := p.store.ResolveDanglingLinks(ctx, basename, doc.ID); err != nil {
			return err
		}
	}
	return nil
}

func (p *Processor) processUnlink(ctx context.Context, event Event) error {
	existing, err := p.store.FindDocumentByFilepath(ctx, event.Filepath)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	p.index.RemoveByDocID(existing.ID)
	p.resolver.RemoveFile(event.Filepath)
	if err := p.store.DeleteDocument(ctx, existing.ID); err != nil {
		return err
	}

	p.logger.Info("removed document", "filepath", event.Filepath)
	return nil
}

// buildLinks resolves parsed links and dedupes by (target, type), keeping
// the first occurrence.
func (p *Processor) buildLinks(ctx context.Context, docID, sourcePath string,
	parsed []parser.ParsedLink, sectionIDByOrder map[int]int64) ([]types.Link, int, int, error) {

	var resolved, dangling int
	seen := make(map[string]struct{}, len(parsed))
	var links []types.Link

	for _, link := range parsed {
		res, err := p.resolver.Resolve(ctx, link.Target, sourcePath)
		if err != nil {
			return nil, 0, 0, err
		}
		if res.Resolved {
			resolved++
		} else {
			dangling++
		}

		key := res.TargetDocID + "::" + string(link.Type)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}

		links = append(links, types.Link{
			SourceDocID:     docID,
			TargetDocID:     res.TargetDocID,
			Type:            link.Type,
			Context:         link.Context,
			SourceSectionID: sectionIDByOrder[link.SectionOrder],
			TargetTitle:     link.Target,
		})
	}
	return links, resolved, dangling, nil
}

// hashSourceRefs hashes each referenced source file. Unreadable files get an
// empty hash so they surface as untracked rather than failing the document.
func (p *Processor) hashSourceRefs(refs []string) []store.RefHash {
	out := make([]store.RefHash, 0, len(refs))
	for _, ref := range refs {
		hash := ""
		if content, err := os.ReadFile(filepath.Join(p.projectRoot, filepath.FromSlash(ref))); err == nil {
			hash = utils.HashBytes(content)
		}
		out = append(out, store.RefHash{FilePath: ref, Hash: hash})
	}
	return out
}

func newDocID() string {
	if id, err := uuid.NewV7(); err == nil {
		return id.String()
	}
	return uuid.NewString()
}
