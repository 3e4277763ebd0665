package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mdgraph/mdgraph/pkg/embedqueue"
	"github.com/mdgraph/mdgraph/pkg/linker"
	"github.com/mdgraph/mdgraph/pkg/store"
	"github.com/mdgraph/mdgraph/pkg/types"
	"github.com/mdgraph/mdgraph/pkg/utils"
)

type procStore struct {
	mu            sync.Mutex
	byPath        map[string]*types.Document
	sections      map[string][]types.Section
	links         map[string][]types.Link
	refs          map[string][]store.RefHash
	resolveCalls  []string
	deleted       []string
	nextSectionID int64
}

func newProcStore() *procStore {
	return &procStore{
		byPath:   map[string]*types.Document{},
		sections: map[string][]types.Section{},
		links:    map[string][]types.Link{},
		refs:     map[string][]store.RefHash{},
	}
}

func (s *procStore) FindDocumentByFilepath(_ context.Context, filepath string) (*types.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if doc, ok := s.byPath[filepath]; ok {
		copied := *doc
		return &copied, nil
	}
	return nil, fmt.Errorf("document %s: %w", filepath, store.ErrNotFound)
}

func (s *procStore) UpsertDocument(_ context.Context, doc *types.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *doc
	s.byPath[doc.Filepath] = &copied
	return nil
}

func (s *procStore) ReplaceSections(_ context.Context, docID string, sections []types.Section) ([]types.Section, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.Section, len(sections))
	for i, sec := range sections {
		s.nextSectionID++
		sec.ID = s.nextSectionID
		sec.DocID = docID
		out[i] = sec
	}
	s.sections[docID] = out
	return out, nil
}

func (s *procStore) ReplaceLinks(_ context.Context, sourceDocID string, links []types.Link) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.links[sourceDocID] = links
	return nil
}

func (s *procStore) SyncSourceRefs(_ context.Context, docID string, refs []store.RefHash) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refs[docID] = refs
	return nil
}

func (s *procStore) ResolveDanglingLinks(_ context.Context, targetTitle, _ string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resolveCalls = append(s.resolveCalls, targetTitle)
	return 0, nil
}

func (s *procStore) DeleteDocument(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, id)
	for path, doc := range s.byPath {
		if doc.ID == id {
			delete(s.byPath, path)
		}
	}
	return nil
}

// DocIDByFilepath implements linker.DocumentLookup.
func (s *procStore) DocIDByFilepath(_ context.Context, filepath string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if doc, ok := s.byPath[filepath]; ok {
		return doc.ID, nil
	}
	return "", nil
}

type procIndex struct{ removed []string }

func (i *procIndex) RemoveByDocID(docID string) int {
	i.removed = append(i.removed, docID)
	return 1
}

type procQueue struct{ jobs []embedqueue.Job }

func (q *procQueue) Enqueue(jobs ...embedqueue.Job) {
	q.jobs = append(q.jobs, jobs...)
}

func testProcessor(t *testing.T, st *procStore) (*Processor, *procIndex, *procQueue, string, string) {
	t.Helper()
	docsRoot := t.TempDir()
	projectRoot := t.TempDir()

	resolver := linker.NewResolver(st)
	index := &procIndex{}
	queue := &procQueue{}
	p := NewProcessor(st, index, queue, resolver, docsRoot, projectRoot, nil)
	return p, index, queue, docsRoot, projectRoot
}

const authDoc = `---
title: Auth
doc_type: api
source_refs:
  - src/auth.go
  - src/missing.go
---

intro [[Target Doc]] and [[Nowhere]]
`

func TestProcessFileNewDocument(t *testing.T) {
	st := newProcStore()
	st.byPath["Target Doc.md"] = &types.Document{ID: "d-target", Filepath: "Target Doc.md"}

	p, _, queue, _, projectRoot := testProcessor(t, st)
	p.resolver.BuildIndex([]string{"Target Doc.md"})

	srcDir := filepath.Join(projectRoot, "src")
	require.NoError(t, os.MkdirAll(srcDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "auth.go"), []byte("package auth"), 0o644))

	res, err := p.ProcessFile(context.Background(), "auth.md", authDoc, false)
	require.NoError(t, err)
	assert.False(t, res.Skipped)
	assert.Equal(t, 1, res.SectionsCreated)
	assert.Equal(t, 1, res.LinksResolved)
	assert.Equal(t, 1, res.LinksDangling)
	assert.Equal(t, 1, res.EmbeddingsQueued)

	doc := st.byPath["auth.md"]
	require.NotNil(t, doc)
	assert.Equal(t, "Auth", doc.Title)
	assert.Equal(t, types.DocTypeAPI, doc.Type)
	assert.NotEmpty(t, doc.ID)

	links := st.links[doc.ID]
	require.Len(t, links, 2)
	assert.Equal(t, "d-target", links[0].TargetDocID)
	assert.Equal(t, "Target Doc", links[0].TargetTitle)
	assert.Empty(t, links[1].TargetDocID)
	assert.NotZero(t, links[0].SourceSectionID)

	refs := st.refs[doc.ID]
	require.Len(t, refs, 2)
	assert.Equal(t, utils.HashString("package auth"), refs[0].Hash)
	assert.Empty(t, refs[1].Hash, "unreadable source ref keeps an empty hash")

	require.Len(t, queue.jobs, 1)
	assert.Equal(t, doc.ID, queue.jobs[0].DocID)
	assert.Contains(t, queue.jobs[0].Content, "intro")
}

func TestProcessFileSkipsUnchanged(t *testing.T) {
	st := newProcStore()
	p, _, queue, _, _ := testProcessor(t, st)

	content := "plain document\n"
	first, err := p.ProcessFile(context.Background(), "doc.md", content, false)
	require.NoError(t, err)
	assert.False(t, first.Skipped)

	second, err := p.ProcessFile(context.Background(), "doc.md", content, false)
	require.NoError(t, err)
	assert.True(t, second.Skipped)
	assert.Equal(t, first.DocID, second.DocID)
	assert.Len(t, queue.jobs, 1, "no new embedding jobs for a skipped file")

	forced, err := p.ProcessFile(context.Background(), "doc.md", content, true)
	require.NoError(t, err)
	assert.False(t, forced.Skipped)
	assert.Equal(t, first.DocID, forced.DocID, "document ID is stable across reprocessing")
}

func TestProcessFileDedupesLinks(t *testing.T) {
	st := newProcStore()
	st.byPath["target.md"] = &types.Document{ID: "d-t", Filepath: "target.md"}
	p, _, _, _, _ := testProcessor(t, st)
	p.resolver.BuildIndex([]string{"target.md"})

	content := "see [[target]] then [[target]] again\n"
	res, err := p.ProcessFile(context.Background(), "doc.md", content, false)
	require.NoError(t, err)
	assert.Equal(t, 2, res.LinksResolved, "both occurrences count as resolved")

	doc := st.byPath["doc.md"]
	assert.Len(t, st.links[doc.ID], 1, "duplicate (target, type) pairs collapse")
}

func TestProcessChangeAddResolvesDangling(t *testing.T) {
	st := newProcStore()
	p, _, _, docsRoot, _ := testProcessor(t, st)

	content := "---\ntitle: New Doc\n---\n\nbody\n"
	require.NoError(t, os.WriteFile(filepath.Join(docsRoot, "new-doc.md"), []byte(content), 0o644))

	p.ProcessChange(context.Background(), Event{Type: EventAdd, Filepath: "new-doc.md"})

	require.NotNil(t, st.byPath["new-doc.md"])
	// Dangling links are retried against both the title and the filename
	assert.Contains(t, st.resolveCalls, "New Doc")
	assert.Contains(t, st.resolveCalls, "new-doc")
}

func TestProcessChangeUnlink(t *testing.T) {
	st := newProcStore()
	st.byPath["gone.md"] = &types.Document{ID: "d-gone", Filepath: "gone.md"}
	p, index, _, _, _ := testProcessor(t, st)
	p.resolver.BuildIndex([]string{"gone.md"})

	p.ProcessChange(context.Background(), Event{Type: EventUnlink, Filepath: "gone.md"})

	assert.Equal(t, []string{"d-gone"}, index.removed)
	assert.Equal(t, []string{"d-gone"}, st.deleted)
	assert.Nil(t, st.byPath["gone.md"])
}

func TestProcessChangeUnlinkUnknownFile(t *testing.T) {
	st := newProcStore()
	p, index, _, _, _ := testProcessor(t, st)

	p.ProcessChange(context.Background(), Event{Type: EventUnlink, Filepath: "never-seen.md"})
	assert.Empty(t, index.removed)
	assert.Empty(t, st.deleted)
}

func TestDebouncerCollapsesBursts(t *testing.T) {
	d := NewDebouncer(20 * time.Millisecond)
	var calls atomic.Int32

	for i := 0; i < 5; i++ {
		d.Debounce("doc.md", func() { calls.Add(1) })
	}
	assert.Equal(t, 1, d.Pending())

	assert.Eventually(t, func() bool {
		return calls.Load() == 1 && d.Pending() == 0
	}, time.Second, 10*time.Millisecond)
}

func TestDebouncerSeparateKeys(t *testing.T) {
	d := NewDebouncer(10 * time.Millisecond)
	var calls atomic.Int32

	d.Debounce("a.md", func() { calls.Add(1) })
	d.Debounce("b.md", func() { calls.Add(1) })

	assert.Eventually(t, func() bool { return calls.Load() == 2 }, time.Second, 5*time.Millisecond)
}

func TestDebouncerClear(t *testing.T) {
	d := NewDebouncer(30 * time.Millisecond)
	var calls atomic.Int32

	d.Debounce("a.md", func() { calls.Add(1) })
	d.Clear()
	assert.Zero(t, d.Pending())

	time.Sleep(60 * time.Millisecond)
	assert.Zero(t, calls.Load())
}
