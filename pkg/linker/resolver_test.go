package linker

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLookup map[string]string

func (f fakeLookup) DocIDByFilepath(_ context.Context, filepath string) (string, error) {
	return f[filepath], nil
}

func newTestResolver(filepaths []string, lookup fakeLookup) *Resolver {
	r := NewResolver(lookup)
	r.BuildIndex(filepaths)
	return r
}

func TestResolveUniqueName(t *testing.T) {
	r := newTestResolver(
		[]string{"docs/auth.md", "docs/cache.md"},
		fakeLookup{"docs/auth.md": "d-auth"},
	)

	res, err := r.Resolve(context.Background(), "Auth", "docs/index.md")
	require.NoError(t, err)
	assert.True(t, res.Resolved)
	assert.Equal(t, "d-auth", res.TargetDocID)
	assert.Equal(t, "docs/auth.md", res.Filepath)
	assert.False(t, res.Ambiguous)
}

func TestResolveDangling(t *testing.T) {
	r := newTestResolver([]string{"docs/auth.md"}, fakeLookup{})

	res, err := r.Resolve(context.Background(), "Missing Page", "docs/index.md")
	require.NoError(t, err)
	assert.False(t, res.Resolved)
	assert.Empty(t, res.TargetDocID)
}

func TestResolvePreferSameDirectory(t *testing.T) {
	r := newTestResolver(
		[]string{"api/readme.md", "guides/readme.md"},
		fakeLookup{"guides/readme.md": "d-guides"},
	)

	res, err := r.Resolve(context.Background(), "readme", "guides/setup.md")
	require.NoError(t, err)
	assert.True(t, res.Resolved)
	assert.Equal(t, "guides/readme.md", res.Filepath)
	assert.True(t, res.Ambiguous)
}

func TestResolvePreferShallowerPath(t *testing.T) {
	r := newTestResolver(
		[]string{"deep/nested/readme.md", "readme.md"},
		fakeLookup{"readme.md": "d-root"},
	)

	res, err := r.Resolve(context.Background(), "readme", "other/doc.md")
	require.NoError(t, err)
	assert.Equal(t, "readme.md", res.Filepath)
	assert.True(t, res.Ambiguous)
}

func TestResolveAlphabeticalTiebreak(t *testing.T) {
	r := newTestResolver(
		[]string{"b/readme.md", "a/readme.md"},
		fakeLookup{"a/readme.md": "d-a"},
	)

	res, err := r.Resolve(context.Background(), "readme", "other/doc.md")
	require.NoError(t, err)
	assert.Equal(t, "a/readme.md", res.Filepath)
}

func TestResolveByPath(t *testing.T) {
	r := newTestResolver(
		[]string{"docs/api/auth.md", "docs/guides/auth.md"},
		fakeLookup{"docs/api/auth.md": "d-api-auth"},
	)

	// Suffix match tolerates the docs/ prefix
	res, err := r.Resolve(context.Background(), "api/auth", "docs/index.md")
	require.NoError(t, err)
	assert.True(t, res.Resolved)
	assert.Equal(t, "docs/api/auth.md", res.Filepath)
	assert.False(t, res.Ambiguous)

	res, err = r.Resolve(context.Background(), "nope/auth", "docs/index.md")
	require.NoError(t, err)
	assert.False(t, res.Resolved)
}

func TestResolveCaseInsensitive(t *testing.T) {
	r := newTestResolver([]string{"docs/Auth Spec.md"}, fakeLookup{"docs/Auth Spec.md": "d1"})

	res, err := r.Resolve(context.Background(), "auth spec", "docs/index.md")
	require.NoError(t, err)
	assert.True(t, res.Resolved)
	assert.Equal(t, "d1", res.TargetDocID)
}

func TestAddRemoveFile(t *testing.T) {
	r := newTestResolver(nil, fakeLookup{"new.md": "d-new"})

	r.AddFile("new.md")
	res, err := r.Resolve(context.Background(), "new", "doc.md")
	require.NoError(t, err)
	assert.True(t, res.Resolved)

	r.RemoveFile("new.md")
	res, err = r.Resolve(context.Background(), "new", "doc.md")
	require.NoError(t, err)
	assert.False(t, res.Resolved)
}

func TestAmbiguousNames(t *testing.T) {
	r := newTestResolver([]string{"a/readme.md", "b/readme.md", "unique.md"}, fakeLookup{})

	names := r.AmbiguousNames()
	require.Len(t, names, 1)
	assert.Equal(t, "readme", names[0].Name)
	assert.ElementsMatch(t, []string{"a/readme.md", "b/readme.md"}, names[0].Candidates)
}
