package mdgraph

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mdgraph/mdgraph/pkg/config"
	"github.com/mdgraph/mdgraph/pkg/embedder"
	"github.com/mdgraph/mdgraph/pkg/embedqueue"
	"github.com/mdgraph/mdgraph/pkg/graph"
	"github.com/mdgraph/mdgraph/pkg/linker"
	"github.com/mdgraph/mdgraph/pkg/search"
	"github.com/mdgraph/mdgraph/pkg/staleness"
	"github.com/mdgraph/mdgraph/pkg/store"
	"github.com/mdgraph/mdgraph/pkg/types"
	"github.com/mdgraph/mdgraph/pkg/vectorindex"
	"github.com/mdgraph/mdgraph/pkg/watcher"
)

// Options overrides parts of the engine wiring, mainly for tests and
// embedding-provider injection.
type Options struct {
	// Embedder replaces the provider built from config when set.
	Embedder embedder.Client
	// Logger replaces slog.Default().
	Logger *slog.Logger
}

// Engine wires the store, vector index, embedding queue, link resolver, and
// searcher into one retrieval engine over a Markdown corpus.
type Engine struct {
	cfg       *config.Config
	store     *store.Store
	index     *vectorindex.Index
	embed     embedder.Client
	queue     *embedqueue.Queue
	resolver  *linker.Resolver
	processor *watcher.Processor
	watcher   *watcher.Watcher
	traversal *graph.Traversal
	scorer    *graph.Scorer
	staleness *staleness.Detector
	searcher  *search.Searcher
	logger    *slog.Logger
}

// New opens the database, rebuilds the in-memory vector index from stored
// embeddings, and wires all engine components. Call Close when done.
func New(cfg *config.Config, opts *Options) (*Engine, error) {
	if opts == nil {
		opts = &Options{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	st, err := store.Open(cfg.Database.Path, logger)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	index := vectorindex.New(cfg.Index.CompactThreshold)
	entries, err := st.LoadEmbedded(context.Background())
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("load vector index: %w", err)
	}
	if err := index.Load(entries); err != nil {
		st.Close()
		return nil, fmt.Errorf("load vector index: %w", err)
	}

	embed := opts.Embedder
	if embed == nil {
		embed, err = buildEmbedder(cfg, logger)
		if err != nil {
			st.Close()
			return nil, err
		}
	}

	queue := embedqueue.New(embed, st, index, embedqueue.Options{
		BatchSize:      cfg.Embedding.BatchSize,
		RequestTimeout: time.Duration(cfg.Embedding.RequestTimeout) * time.Second,
		Logger:         logger,
	})

	resolver := linker.NewResolver(st)
	filepaths, err := st.AllFilepaths(context.Background())
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("build link index: %w", err)
	}
	resolver.BuildIndex(filepaths)

	traversal := graph.NewTraversal(st)
	detector := staleness.NewDetector(st, cfg.ProjectRoot, logger)
	searcher := search.NewSearcher(search.Config{
		Alpha:        cfg.Search.Alpha,
		DefaultLimit: cfg.Search.DefaultLimit,
		MaxDepth:     cfg.Search.MaxDepth,
	}, index, embed, st, traversal, detector, logger)

	processor := watcher.NewProcessor(st, index, queue, resolver, cfg.DocsDir, cfg.ProjectRoot, logger)

	e := &Engine{
		cfg:       cfg,
		store:     st,
		index:     index,
		embed:     embed,
		queue:     queue,
		resolver:  resolver,
		processor: processor,
		traversal: traversal,
		scorer:    graph.NewScorer(),
		staleness: detector,
		searcher:  searcher,
		logger:    logger,
	}
	e.watcher = watcher.New(cfg.DocsDir,
		time.Duration(cfg.Watcher.DebounceMs)*time.Millisecond,
		processor.ProcessChange, logger)

	return e, nil
}

// buildEmbedder constructs the configured provider wrapped with retry and,
// when enabled, a circuit breaker.
func buildEmbedder(cfg *config.Config, logger *slog.Logger) (embedder.Client, error) {
	embedCfg := &embedder.Config{
		Model:      cfg.Embedding.Model,
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Dimensions: cfg.Embedding.Dimensions,
	}

	var client embedder.Client
	var err error
	switch cfg.Embedding.Provider {
	case "openai":
		client, err = embedder.NewOpenAIClient(embedCfg)
	case "local", "":
		client, err = embedder.NewLocalClient(embedCfg)
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Embedding.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("create %s embedder: %w", cfg.Embedding.Provider, err)
	}

	client = embedder.NewRetryClient(client, embedder.DefaultRetryConfig())
	if cfg.CircuitBreaker.Enabled {
		client = embedder.NewCircuitBreakerClient(client, cfg.CircuitBreaker, logger, "embedding")
	}
	return client, nil
}

// Start launches the embedding queue and the file watcher.
func (e *Engine) Start(ctx context.Context) error {
	e.queue.Start()
	if err := e.watcher.Start(ctx); err != nil {
		return err
	}
	return nil
}

// StartQueue launches only the embedding queue, for one-shot commands that
// index without watching.
func (e *Engine) StartQueue() {
	e.queue.Start()
}

// Close stops the watcher and queue and closes the database and provider.
func (e *Engine) Close() error {
	e.watcher.Stop()
	e.queue.Stop()
	if err := e.embed.Close(); err != nil {
		e.logger.Warn("failed to close embedding provider", "error", err)
	}
	return e.store.Close()
}

// Search runs a hybrid search over the corpus.
func (e *Engine) Search(ctx context.Context, req types.SearchRequest) (*types.SearchOutput, error) {
	return e.searcher.Search(ctx, req)
}

// ProcessFile indexes a single document given its content.
func (e *Engine) ProcessFile(ctx context.Context, relPath, content string, force bool) (*types.FileResult, error) {
	return e.processor.ProcessFile(ctx, relPath, content, force)
}

// Reindex walks the docs directory and indexes every Markdown file, then
// removes documents whose files no longer exist.
func (e *Engine) Reindex(ctx context.Context, force bool) (*types.ReindexResult, error) {
	relPaths, err := e.scanDocs()
	if err != nil {
		return nil, err
	}
	e.resolver.BuildIndex(relPaths)

	result := &types.ReindexResult{FilesSeen: len(relPaths)}
	onDisk := make(map[string]struct{}, len(relPaths))
	for _, relPath := range relPaths {
		onDisk[relPath] = struct{}{}

		content, err := os.ReadFile(filepath.Join(e.cfg.DocsDir, filepath.FromSlash(relPath)))
		if err != nil {
			e.logger.Warn("skipping unreadable file", "filepath", relPath, "error", err)
			continue
		}
		fr, err := e.processor.ProcessFile(ctx, relPath, string(content), force)
		if err != nil {
			e.logger.Error("failed to index file", "filepath", relPath, "error", err)
			continue
		}
		if fr.Skipped {
			result.FilesSkipped++
			continue
		}
		result.FilesProcessed++
		result.SectionsCreated += fr.SectionsCreated
		result.LinksResolved += fr.LinksResolved
		result.LinksDangling += fr.LinksDangling
		result.EmbeddingsQueued += fr.EmbeddingsQueued
	}

	if err := e.pruneDeleted(ctx, onDisk); err != nil {
		return nil, err
	}
	if err := e.resolveDangling(ctx); err != nil {
		return nil, err
	}
	return result, nil
}

// resolveDangling retries dangling links against every indexed document.
// Links created before their target was indexed resolve here.
func (e *Engine) resolveDangling(ctx context.Context) error {
	docs, err := e.store.AllDocuments(ctx)
	if err != nil {
		return err
	}
	for _, doc := range docs {
		if _, err := e.store.ResolveDanglingLinks(ctx, doc.Title, doc.ID); err != nil {
			return err
		}
		basename := strings.TrimSuffix(filepath.Base(doc.Filepath), ".md")
		if basename != doc.Title {
			if _, err := e.store.ResolveDanglingLinks(ctx, basename, doc.ID); err != nil {
				return err
			}
		}
	}
	return nil
}

func (e *Engine) scanDocs() ([]string, error) {
	var relPaths []string
	err := filepath.WalkDir(e.cfg.DocsDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".md") {
			return nil
		}
		rel, err := filepath.Rel(e.cfg.DocsDir, path)
		if err != nil {
			return err
		}
		relPaths = append(relPaths, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan docs dir %s: %w", e.cfg.DocsDir, err)
	}
	return relPaths, nil
}

func (e *Engine) pruneDeleted(ctx context.Context, onDisk map[string]struct{}) error {
	docs, err := e.store.AllDocuments(ctx)
	if err != nil {
		return err
	}
	for _, doc := range docs {
		if _, ok := onDisk[doc.Filepath]; ok {
			continue
		}
		e.index.RemoveByDocID(doc.ID)
		e.resolver.RemoveFile(doc.Filepath)
		if err := e.store.DeleteDocument(ctx, doc.ID); err != nil {
			return err
		}
		e.logger.Info("pruned deleted document", "filepath", doc.Filepath)
	}
	return nil
}

// DrainEmbeddings blocks until the embedding queue is empty or ctx is done.
func (e *Engine) DrainEmbeddings(ctx context.Context) error {
	return e.queue.Drain(ctx)
}

// Status reports corpus, link, index, queue, and source-ref counts.
func (e *Engine) Status(ctx context.Context) (*types.Status, error) {
	docs, err := e.store.CountDocuments(ctx)
	if err != nil {
		return nil, err
	}
	sections, embedded, err := e.store.SectionCounts(ctx)
	if err != nil {
		return nil, err
	}
	links, resolved, dangling, err := e.store.LinkCounts(ctx)
	if err != nil {
		return nil, err
	}
	refsTotal, refsStale, err := e.store.RefSummary(ctx)
	if err != nil {
		return nil, err
	}

	return &types.Status{
		Documents:        docs,
		Sections:         sections,
		SectionsEmbedded: embedded,
		Links:            links,
		LinksResolved:    resolved,
		LinksDangling:    dangling,
		IndexSize:        e.index.Size(),
		QueuePending:     e.queue.Pending(),
		QueueCompleted:   e.queue.Completed(),
		RefsTotal:        refsTotal,
		RefsStale:        refsStale,
	}, nil
}

// StaleDocuments re-hashes source refs and returns documents whose sources
// changed since the last sync.
func (e *Engine) StaleDocuments(ctx context.Context) ([]types.StaleDoc, error) {
	return e.staleness.StaleDocuments(ctx)
}

// Related traverses the link graph around a document in both directions,
// returning each reachable document once at its minimum depth.
func (e *Engine) Related(ctx context.Context, docID string, maxDepth int, linkTypes []types.LinkType) ([]types.GraphNode, error) {
	if maxDepth <= 0 {
		maxDepth = e.cfg.Search.MaxDepth
	}
	return e.traversal.Traverse(ctx, docID, maxDepth, linkTypes)
}

// Proximity scores graph neighbors of a document by 1/hop-distance.
func (e *Engine) Proximity(ctx context.Context, docID string, maxDepth int) ([]graph.ProximityResult, error) {
	nodes, err := e.Related(ctx, docID, maxDepth, nil)
	if err != nil {
		return nil, err
	}
	return e.scorer.ScoreDetailed(nodes), nil
}

// AmbiguousLinks lists document names claimed by more than one file.
func (e *Engine) AmbiguousLinks() []linker.AmbiguousName {
	return e.resolver.AmbiguousNames()
}

// Queue exposes the embedding queue for progress listeners.
func (e *Engine) Queue() *embedqueue.Queue { return e.queue }

// Store exposes the underlying store for read-side consumers.
func (e *Engine) Store() *store.Store { return e.store }
