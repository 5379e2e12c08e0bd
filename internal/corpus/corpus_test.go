package corpus

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeTree creates files (slash paths relative to root) with the given
// content.
func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
}

func paths(units []SourceUnit) []string {
	out := make([]string, len(units))
	for i, u := range units {
		out[i] = u.Path
	}
	return out
}

// =============================================================================
// Slice
// =============================================================================

func TestSlice_YieldsInOrderThenExhausts(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewSlice(SourceUnit{Path: "a"}, SourceUnit{Path: "b"})

	require.True(t, s.HasNext())
	u, err := s.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a", u.Path)
	assert.Equal(t, 1, s.FilesProvided())

	_, err = s.Next(ctx)
	require.NoError(t, err)
	assert.False(t, s.HasNext())

	_, err = s.Next(ctx)
	assert.ErrorIs(t, err, ErrExhausted)
	assert.Equal(t, 2, s.FilesProvided())
}

func TestSlice_CancelledContext(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewSlice(SourceUnit{Path: "a"}).Next(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

type failingProvider struct{ calls int }

func (p *failingProvider) HasNext() bool { return true }
func (p *failingProvider) Next(context.Context) (SourceUnit, error) {
	p.calls++
	if p.calls > 1 {
		return SourceUnit{}, errors.New("disk on fire")
	}
	return SourceUnit{Path: "first"}, nil
}
func (p *failingProvider) FilesProvided() int { return 1 }

func TestDrain(t *testing.T) {
	t.Parallel()
	units, err := Drain(context.Background(), NewSlice(SourceUnit{Path: "a"}, SourceUnit{Path: "b"}))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, paths(units))

	units, err = Drain(context.Background(), &failingProvider{})
	assert.EqualError(t, err, "disk on fire")
	assert.Equal(t, []string{"first"}, paths(units))
}

// =============================================================================
// Fingerprinter
// =============================================================================

func TestFingerprinter_OrderIndependent(t *testing.T) {
	t.Parallel()
	a := SourceUnit{Project: "p", Path: "a.go", Content: []byte("package a")}
	b := SourceUnit{Project: "p", Path: "b.go", Content: []byte("package b")}

	f1 := NewFingerprinter()
	require.NoError(t, f1.Add(a))
	require.NoError(t, f1.Add(b))
	f2 := NewFingerprinter()
	require.NoError(t, f2.Add(b))
	require.NoError(t, f2.Add(a))

	s1, err := f1.Sum("p")
	require.NoError(t, err)
	s2, err := f2.Sum("p")
	require.NoError(t, err)
	assert.Equal(t, s1, s2)
	assert.Len(t, s1, 16)
}

func TestFingerprinter_ContentAndPathSensitive(t *testing.T) {
	t.Parallel()
	sum := func(units ...SourceUnit) string {
		f := NewFingerprinter()
		for _, u := range units {
			require.NoError(t, f.Add(u))
		}
		s, err := f.Sum("p")
		require.NoError(t, err)
		return s
	}
	base := sum(SourceUnit{Project: "p", Path: "a.go", Content: []byte("x")})
	assert.NotEqual(t, base, sum(SourceUnit{Project: "p", Path: "a.go", Content: []byte("y")}))
	assert.NotEqual(t, base, sum(SourceUnit{Project: "p", Path: "b.go", Content: []byte("x")}))
}

func TestFingerprinter_PerProject(t *testing.T) {
	t.Parallel()
	f := NewFingerprinter()
	require.NoError(t, f.Add(SourceUnit{Project: "p", Path: "a.go", Content: []byte("x")}))
	require.NoError(t, f.Add(SourceUnit{Project: "q", Path: "a.go", Content: []byte("y")}))

	p, _ := f.Sum("p")
	q, _ := f.Sum("q")
	none, _ := f.Sum("missing")
	assert.NotEqual(t, p, q)
	assert.Empty(t, none)
	assert.Equal(t, []string{"p", "q"}, f.Projects())
}

// =============================================================================
// Dir
// =============================================================================

func TestDir_WalkSkipsHiddenAndUnsupported(t *testing.T) {
	t.Parallel()
	root := filepath.Join(t.TempDir(), "myproj")
	writeTree(t, root, map[string]string{
		"main.go":               "package main",
		"lib/util.py":           "x = 1",
		"README.md":             "# readme",
		".hidden/x.go":          "package x",
		"node_modules/m/i.js":   "var a",
		"lib/deep/more/tool.rs": "fn main() {}",
	})

	d, err := NewDir(root)
	require.NoError(t, err)
	assert.Equal(t, 3, d.Len())

	units, err := Drain(context.Background(), d)
	require.NoError(t, err)
	assert.Equal(t, []string{"lib/deep/more/tool.rs", "lib/util.py", "main.go"}, paths(units))
	for _, u := range units {
		assert.Equal(t, "myproj", u.Project)
	}
	assert.Equal(t, "package main", string(units[2].Content))
	assert.Equal(t, 3, d.FilesProvided())
}

func TestDir_ProjectFromNearestGoMod(t *testing.T) {
	t.Parallel()
	root := filepath.Join(t.TempDir(), "mono")
	writeTree(t, root, map[string]string{
		"tools/gen.py":          "pass",
		"svc/go.mod":            "module example.com/svc\n\ngo 1.22\n",
		"svc/main.go":           "package main",
		"svc/internal/db/db.go": "package db",
	})

	d, err := NewDir(root)
	require.NoError(t, err)
	units, err := Drain(context.Background(), d)
	require.NoError(t, err)

	got := map[string]string{}
	for _, u := range units {
		got[u.Path] = u.Project
	}
	assert.Equal(t, map[string]string{
		"svc/internal/db/db.go": "example.com/svc",
		"svc/main.go":           "example.com/svc",
		"tools/gen.py":          "mono",
	}, got)
}

func TestDir_LanguageFilter(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeTree(t, root, map[string]string{"a.go": "package a", "b.py": "pass"})

	d, err := NewDir(root, WithDirLanguages("python"))
	require.NoError(t, err)
	units, err := Drain(context.Background(), d)
	require.NoError(t, err)
	assert.Equal(t, []string{"b.py"}, paths(units))
}

func TestDir_DeletedFileIsReadErrorAndIterationContinues(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"a.go": "package a",
		"b.go": "package b",
	})

	d, err := NewDir(root)
	require.NoError(t, err)
	require.NoError(t, os.Remove(filepath.Join(root, "a.go")))

	ctx := context.Background()
	_, err = d.Next(ctx)
	var readErr *ReadError
	require.True(t, errors.As(err, &readErr), "got %v", err)
	assert.Equal(t, "a.go", readErr.Path)
	assert.Equal(t, filepath.Base(root), readErr.Project)
	assert.ErrorIs(t, err, os.ErrNotExist)

	require.True(t, d.HasNext())
	u, err := d.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "b.go", u.Path)
	assert.Equal(t, 2, d.FilesProvided())
}

func TestDir_NotADirectory(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeTree(t, root, map[string]string{"a.go": "package a"})

	_, err := NewDir(filepath.Join(root, "a.go"))
	assert.Error(t, err)
	_, err = NewDir(filepath.Join(root, "missing"))
	assert.Error(t, err)
}

func TestGoModulePath(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"ok/go.mod":  "module github.com/acme/ok\n",
		"bad/go.mod": "this is not a go.mod",
	})
	assert.Equal(t, "github.com/acme/ok", goModulePath(filepath.Join(root, "ok", "go.mod")))
	assert.Empty(t, goModulePath(filepath.Join(root, "bad", "go.mod")))
	assert.Empty(t, goModulePath(filepath.Join(root, "none", "go.mod")))
}

// =============================================================================
// URL
// =============================================================================

func TestURL_LocalDirectory(t *testing.T) {
	t.Parallel()
	root := filepath.Join(t.TempDir(), "remote")
	writeTree(t, root, map[string]string{
		"a.go":         "package a",
		"sub/b.py":     "pass",
		"notes.txt":    "skip me",
		".git/HEAD.go": "package git",
	})

	u, err := NewURL(context.Background(), root, "")
	require.NoError(t, err)
	assert.Equal(t, 2, u.Len())

	units, err := Drain(context.Background(), u)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.go", "sub/b.py"}, paths(units))
	assert.Equal(t, "remote", units[0].Project)
	assert.Equal(t, "package a", string(units[0].Content))
	assert.Equal(t, 2, u.FilesProvided())
}

func TestURL_ExplicitProjectAndLanguages(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeTree(t, root, map[string]string{"a.go": "package a", "b.py": "pass"})

	u, err := NewURL(context.Background(), root, "named", "go")
	require.NoError(t, err)
	units, err := Drain(context.Background(), u)
	require.NoError(t, err)
	require.Len(t, units, 1)
	assert.Equal(t, "named", units[0].Project)
	assert.Equal(t, "a.go", units[0].Path)
}
