// Package mdgraph provides a local knowledge-retrieval engine for Markdown
// corpora.
//
// Documents are split into heading-delimited sections, embedded into an
// in-memory vector index, and connected through typed wikilinks into a
// document graph stored in SQLite. Search fuses three signals: vector
// similarity, link-graph proximity, and FTS5 keyword relevance.
//
// # Basic Usage
//
// Create an engine from configuration and index a corpus:
//
//	cfg, err := config.Load()
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	engine, err := mdgraph.New(cfg, nil)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer engine.Close()
//
//	engine.StartQueue()
//	result, err := engine.Reindex(ctx, false)
//	if err != nil {
//		log.Fatal(err)
//	}
//	engine.DrainEmbeddings(ctx)
//
// # Searching
//
// Hybrid search ranks documents by fused score and degrades to pure
// fulltext search when no embeddings are available:
//
//	out, err := engine.Search(ctx, types.SearchRequest{Query: "session token rotation"})
//	if err != nil {
//		log.Fatal(err)
//	}
//	for _, r := range out.Results {
//		fmt.Printf("%.3f  %s\n", r.Score, r.Title)
//	}
//
// # Watching
//
// Start keeps the index synchronized with the filesystem until Close:
//
//	if err := engine.Start(ctx); err != nil {
//		log.Fatal(err)
//	}
package mdgraph
