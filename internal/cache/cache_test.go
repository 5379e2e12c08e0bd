package cache

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/sift/internal/finder"
)

func key(project, name, version string) Key {
	return Key{Project: project, Identity: finder.Identity{Name: name, Fingerprint: finder.Fingerprint(name, version)}}
}

func sampleFindings() []finder.Finding {
	return []finder.Finding{
		{Finder: "todo", Path: "a.go", StartLine: 1, EndLine: 1, Snippet: "// TODO: one"},
		{Finder: "todo", Path: "b.go", StartLine: 4, EndLine: 6, Snippet: "// TODO: two"},
	}
}

// backends runs fn against every persistent backend.
func backends(t *testing.T, fn func(t *testing.T, b Backend)) {
	t.Helper()
	t.Run("sqlite", func(t *testing.T) {
		t.Parallel()
		b, err := OpenSQLite(filepath.Join(t.TempDir(), "cache.db"))
		require.NoError(t, err)
		t.Cleanup(func() { b.Close() })
		fn(t, b)
	})
	t.Run("dir", func(t *testing.T) {
		t.Parallel()
		fn(t, NewDirBackend(filepath.Join(t.TempDir(), "cache")))
	})
}

// =============================================================================
// Read / Write
// =============================================================================

func TestCache_MissThenHit(t *testing.T) {
	t.Parallel()
	backends(t, func(t *testing.T, b Backend) {
		c := New(b)
		k := key("proj", "todo", "1")

		_, err := c.Read(k)
		require.ErrorIs(t, err, ErrMiss)

		require.NoError(t, c.Write(k, "run-1", sampleFindings()))
		got, err := c.Read(k)
		require.NoError(t, err)
		assert.Equal(t, sampleFindings(), got)
	})
}

func TestCache_EmptyFindingsAreAHit(t *testing.T) {
	t.Parallel()
	backends(t, func(t *testing.T, b Backend) {
		c := New(b)
		k := key("proj", "todo", "1")
		require.NoError(t, c.Write(k, "run-1", nil))

		got, err := c.Read(k)
		require.NoError(t, err)
		assert.NotNil(t, got)
		assert.Empty(t, got)
	})
}

func TestCache_FingerprintChangeIsStale(t *testing.T) {
	t.Parallel()
	backends(t, func(t *testing.T, b Backend) {
		c := New(b)
		require.NoError(t, c.Write(key("proj", "todo", "1"), "run-1", sampleFindings()))

		_, err := c.Read(key("proj", "todo", "2"))
		var stale *StaleError
		require.True(t, errors.As(err, &stale))
		assert.Equal(t, sampleFindings(), stale.Stored.Findings)
		assert.Contains(t, err.Error(), "proj/todo")
		assert.Contains(t, err.Error(), "fingerprint")
	})
}

func TestCache_CorpusChangeIsStale(t *testing.T) {
	t.Parallel()
	backends(t, func(t *testing.T, b Backend) {
		c := New(b)
		k := key("proj", "todo", "1")
		k.Corpus = "aaaa"
		require.NoError(t, c.Write(k, "run-1", sampleFindings()))

		k.Corpus = "bbbb"
		_, err := c.Read(k)
		var stale *StaleError
		require.ErrorAs(t, err, &stale)
		assert.Contains(t, err.Error(), "corpus")
	})
}

func TestCache_WriteOverwrites(t *testing.T) {
	t.Parallel()
	backends(t, func(t *testing.T, b Backend) {
		c := New(b)
		require.NoError(t, c.Write(key("proj", "todo", "1"), "run-1", sampleFindings()))
		k2 := key("proj", "todo", "2")
		require.NoError(t, c.Write(k2, "run-2", sampleFindings()[:1]))

		got, err := c.Read(k2)
		require.NoError(t, err)
		assert.Len(t, got, 1)

		entries, err := b.Entries()
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "run-2", entries[0].RunID)
		assert.Equal(t, 1, entries[0].Findings)
	})
}

func TestCache_ProjectsAreIndependent(t *testing.T) {
	t.Parallel()
	backends(t, func(t *testing.T, b Backend) {
		c := New(b)
		require.NoError(t, c.Write(key("a", "todo", "1"), "r", sampleFindings()))

		_, err := c.Read(key("b", "todo", "1"))
		assert.ErrorIs(t, err, ErrMiss)
	})
}

// =============================================================================
// Listing & clearing
// =============================================================================

func TestBackend_EntriesAndClear(t *testing.T) {
	t.Parallel()
	backends(t, func(t *testing.T, b Backend) {
		c := New(b)
		require.NoError(t, c.Write(key("b", "todo", "1"), "r", sampleFindings()))
		require.NoError(t, c.Write(key("a", "todo", "1"), "r", nil))
		require.NoError(t, c.Write(key("a", "magic", "1"), "r", sampleFindings()))

		entries, err := b.Entries()
		require.NoError(t, err)
		require.Len(t, entries, 3)
		assert.Equal(t, []string{"a/magic", "a/todo", "b/todo"}, []string{
			entries[0].Project + "/" + entries[0].Finder,
			entries[1].Project + "/" + entries[1].Finder,
			entries[2].Project + "/" + entries[2].Finder,
		})

		n, err := b.Clear("a")
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		n, err = b.Clear("")
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		entries, err = b.Entries()
		require.NoError(t, err)
		assert.Empty(t, entries)
	})
}

func TestDirBackend_EmptyRoot(t *testing.T) {
	t.Parallel()
	b := NewDirBackend(filepath.Join(t.TempDir(), "never-created"))

	e, err := b.Load("proj", "todo")
	require.NoError(t, err)
	assert.Nil(t, e)

	entries, err := b.Entries()
	require.NoError(t, err)
	assert.Empty(t, entries)

	n, err := b.Clear("")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestDirBackend_LayoutAndNoTempLeftovers(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	c := New(NewDirBackend(root))
	require.NoError(t, c.Write(key("github.com/acme/app", "scripts/odd name", "1"), "r", sampleFindings()))

	dir := filepath.Join(root, ProjectKey("github.com/acme/app"))
	ents, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, ents, 1)
	assert.Equal(t, "scripts%2Fodd%20name.yaml", ents[0].Name())

	data, err := os.ReadFile(filepath.Join(dir, ents[0].Name()))
	require.NoError(t, err)
	assert.Contains(t, string(data), "project: github.com/acme/app")
	assert.Contains(t, string(data), "start_line: 4")
}

func TestDirBackend_CorruptEntryIsAnError(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	b := NewDirBackend(root)
	dir := filepath.Join(root, ProjectKey("proj"))
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "todo.yaml"), []byte("findings: [[["), 0o644))

	_, err := New(b).Read(key("proj", "todo", "1"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrMiss)
}

func TestNop_AlwaysMisses(t *testing.T) {
	t.Parallel()
	c := New(Nop{})
	k := key("proj", "todo", "1")
	require.NoError(t, c.Write(k, "r", sampleFindings()))
	_, err := c.Read(k)
	assert.ErrorIs(t, err, ErrMiss)
}

// =============================================================================
// Diff
// =============================================================================

func TestDiff(t *testing.T) {
	t.Parallel()
	old := sampleFindings()
	cur := append([]finder.Finding{}, old[0], finder.Finding{Path: "c.go", StartLine: 2, EndLine: 2, Snippet: "// TODO:\n  three"})

	d := Diff("proj/todo", old, cur)
	assert.True(t, strings.HasPrefix(d, "--- proj/todo (cached)\n+++ proj/todo (current)\n"))
	assert.Contains(t, d, "-b.go:4-6 // TODO: two\n")
	assert.Contains(t, d, "+c.go:2 // TODO: three\n")
	assert.Contains(t, d, " a.go:1 // TODO: one\n")

	assert.Empty(t, Diff("proj/todo", old, old))
}
