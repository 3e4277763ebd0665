// Package linker resolves wikilink targets to known documents.
package linker

import (
	"context"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/mdgraph/mdgraph/pkg/parser"
)

// DocumentLookup maps filepaths to document IDs. An empty ID with a nil
// error means the filepath is not indexed yet.
type DocumentLookup interface {
	DocIDByFilepath(ctx context.Context, filepath string) (string, error)
}

// Resolution is the outcome of resolving one link target. Ambiguous is set
// when multiple documents share the target name and a tiebreak was applied.
type Resolution struct {
	Resolved    bool
	TargetDocID string
	Filepath    string
	Ambiguous   bool
}

// AmbiguousName lists the documents competing for one normalized name.
type AmbiguousName struct {
	Name       string
	Candidates []string
}

// Resolver resolves link targets against a filename index of the corpus.
//
// Resolution order for bare names: exact filename match, then same directory
// as the link source, then shallowest path, then first alphabetically.
// Targets containing a slash are resolved as paths instead.
type Resolver struct {
	mu        sync.RWMutex
	fileIndex map[string][]string
	lookup    DocumentLookup
}

func NewResolver(lookup DocumentLookup) *Resolver {
	return &Resolver{fileIndex: make(map[string][]string), lookup: lookup}
}

// BuildIndex replaces the filename index with the given corpus filepaths.
func (r *Resolver) BuildIndex(filepaths []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fileIndex = make(map[string][]string, len(filepaths))
	for _, fp := range filepaths {
		r.addLocked(fp)
	}
}

// AddFile registers a new file in the index.
func (r *Resolver) AddFile(filepath string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.addLocked(filepath)
}

// RemoveFile drops a file from the index.
func (r *Resolver) RemoveFile(filepath string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := parser.NormalizeTarget(path.Base(filepath))
	existing := r.fileIndex[name]
	filtered := existing[:0]
	for _, fp := range existing {
		if fp != filepath {
			filtered = append(filtered, fp)
		}
	}
	if len(filtered) == 0 {
		delete(r.fileIndex, name)
	} else {
		r.fileIndex[name] = filtered
	}
}

func (r *Resolver) addLocked(filepath string) {
	name := parser.NormalizeTarget(path.Base(filepath))
	for _, fp := range r.fileIndex[name] {
		if fp == filepath {
			return
		}
	}
	r.fileIndex[name] = append(r.fileIndex[name], filepath)
}

// Resolve maps a link target to a document. Targets with a slash resolve by
// path, bare names resolve through the filename index with disambiguation.
func (r *Resolver) Resolve(ctx context.Context, target, sourceFilepath string) (Resolution, error) {
	if strings.Contains(target, "/") {
		return r.resolveByPath(ctx, target)
	}
	return r.resolveByName(ctx, target, sourceFilepath)
}

// AmbiguousNames returns every normalized name claimed by more than one
// document, for status reporting.
func (r *Resolver) AmbiguousNames() []AmbiguousName {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []AmbiguousName
	for name, paths := range r.fileIndex {
		if len(paths) > 1 {
			out = append(out, AmbiguousName{Name: name, Candidates: append([]string(nil), paths...)})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (r *Resolver) resolveByPath(ctx context.Context, target string) (Resolution, error) {
	candidate := target
	if !strings.HasSuffix(candidate, ".md") {
		candidate += ".md"
	}
	candidate = parser.NormalizeTarget(candidate) + ".md"
	suffix := "/" + candidate

	r.mu.RLock()
	var match string
	for _, paths := range r.fileIndex {
		for _, fp := range paths {
			normalized := parser.NormalizeTarget(fp) + ".md"
			if normalized == candidate || strings.HasSuffix(normalized, suffix) {
				match = fp
				break
			}
		}
		if match != "" {
			break
		}
	}
	r.mu.RUnlock()

	if match == "" {
		return Resolution{}, nil
	}
	docID, err := r.lookupDocID(ctx, match)
	if err != nil {
		return Resolution{}, err
	}
	return Resolution{Resolved: true, TargetDocID: docID, Filepath: match}, nil
}

func (r *Resolver) resolveByName(ctx context.Context, target, sourceFilepath string) (Resolution, error) {
	r.mu.RLock()
	candidates := append([]string(nil), r.fileIndex[parser.NormalizeTarget(target)]...)
	r.mu.RUnlock()

	if len(candidates) == 0 {
		return Resolution{}, nil
	}

	chosen := candidates[0]
	ambiguous := len(candidates) > 1
	if ambiguous {
		chosen = disambiguate(candidates, sourceFilepath)
	}

	docID, err := r.lookupDocID(ctx, chosen)
	if err != nil {
		return Resolution{}, err
	}
	return Resolution{Resolved: true, TargetDocID: docID, Filepath: chosen, Ambiguous: ambiguous}, nil
}

// disambiguate picks among same-named files: same directory as the source
// first, then the shallowest path, then alphabetical order.
func disambiguate(candidates []string, sourceFilepath string) string {
	sourceDir := path.Dir(sourceFilepath)

	var sameDir []string
	for _, fp := range candidates {
		if path.Dir(fp) == sourceDir {
			sameDir = append(sameDir, fp)
		}
	}
	if len(sameDir) > 0 {
		sort.Strings(sameDir)
		return sameDir[0]
	}

	minDepth := -1
	var shallowest []string
	for _, fp := range candidates {
		depth := strings.Count(fp, "/")
		switch {
		case minDepth < 0 || depth < minDepth:
			minDepth = depth
			shallowest = []string{fp}
		case depth == minDepth:
			shallowest = append(shallowest, fp)
		}
	}
	sort.Strings(shallowest)
	return shallowest[0]
}

func (r *Resolver) lookupDocID(ctx context.Context, filepath string) (string, error) {
	if r.lookup == nil {
		return "", nil
	}
	return r.lookup.DocIDByFilepath(ctx, filepath)
}
