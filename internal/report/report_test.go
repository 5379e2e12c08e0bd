package report

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/sift/internal/finder"
)

func f(path string, line int) finder.Finding {
	return finder.Finding{Finder: "X", Path: path, StartLine: line, EndLine: line}
}

// =============================================================================
// Put / Append
// =============================================================================

func TestAppend_CreatesLeafThenAppendsInOrder(t *testing.T) {
	t.Parallel()
	r := New()
	f1, f2 := f("a.go", 1), f("a.go", 2)

	require.NoError(t, r.Append("proj/X", f1))
	require.NoError(t, r.Append("proj/X", f2))

	n, ok := r.Get("proj/X")
	require.True(t, ok)
	assert.Equal(t, Leaf{f1, f2}, n)
}

func TestAppend_AfterPutLeavesCallerSliceAlone(t *testing.T) {
	t.Parallel()
	r := New()
	backing := make(Leaf, 1, 4)
	backing[0] = f("a.go", 1)
	require.NoError(t, r.Put("proj/X", backing))

	require.NoError(t, r.Append("proj/X", f("a.go", 2)))

	spare := backing[:2]
	assert.Zero(t, spare[1], "append must not write into the caller's spare capacity")
	n, ok := r.Get("proj/X")
	require.True(t, ok)
	assert.Equal(t, Leaf{f("a.go", 1), f("a.go", 2)}, n)
}

func TestAppend_ToBranchIsNotLeaf(t *testing.T) {
	t.Parallel()
	r := New()
	require.NoError(t, r.Append("proj/X", f("a.go", 1)))

	err := r.Append("proj", f("a.go", 2))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotLeaf))
}

func TestPut_LeafInPath(t *testing.T) {
	t.Parallel()
	r := New()
	require.NoError(t, r.Put("proj/X", Leaf{f("a.go", 1)}))

	err := r.Put("proj/X/deeper", Leaf{})
	require.ErrorIs(t, err, ErrLeafInPath)
	assert.Contains(t, err.Error(), "proj/X")

	err = r.Append("proj/X/deeper", f("a.go", 2))
	require.ErrorIs(t, err, ErrLeafInPath)
}

func TestPut_ReplacesExisting(t *testing.T) {
	t.Parallel()
	r := New()
	require.NoError(t, r.Put("p/X", Leaf{f("a.go", 1)}))
	require.NoError(t, r.Put("p/X", Leaf{f("b.go", 9)}))

	n, ok := r.Get("p/X")
	require.True(t, ok)
	assert.Equal(t, Leaf{f("b.go", 9)}, n)
}

func TestPutPath_SegmentsMayContainSlashes(t *testing.T) {
	t.Parallel()
	r := New()
	require.NoError(t, r.PutPath([]string{"github.com/acme/app", "todo"}, Leaf{f("a.go", 1)}))

	assert.Equal(t, []string{"github.com/acme/app"}, r.Keys())
	n, ok := r.GetPath([]string{"github.com/acme/app", "todo"})
	require.True(t, ok)
	assert.Len(t, n, 1)
}

func TestEmptyPath(t *testing.T) {
	t.Parallel()
	r := New()
	assert.ErrorIs(t, r.Put("", Leaf{}), ErrEmptyPath)
	assert.ErrorIs(t, r.Append("//", f("a.go", 1)), ErrEmptyPath)
}

// =============================================================================
// Get / Walk / JSON
// =============================================================================

func TestGet_MissingAndThroughLeaf(t *testing.T) {
	t.Parallel()
	r := New()
	require.NoError(t, r.Append("p/X", f("a.go", 1)))

	_, ok := r.Get("p/Y")
	assert.False(t, ok)
	_, ok = r.Get("p/X/z")
	assert.False(t, ok)

	root, ok := r.Get("")
	require.True(t, ok)
	assert.IsType(t, Branch{}, root)
}

func TestWalk_SortedKeyOrder(t *testing.T) {
	t.Parallel()
	r := New()
	require.NoError(t, r.Append("b/Z", f("z.go", 1)))
	require.NoError(t, r.Append("a/Y", f("y.go", 1)))
	require.NoError(t, r.Append("a/X", f("x.go", 1)))

	var paths []string
	require.NoError(t, r.Walk(func(path []string, leaf Leaf) error {
		paths = append(paths, path[0]+"/"+path[1])
		return nil
	}))
	assert.Equal(t, []string{"a/X", "a/Y", "b/Z"}, paths)
	assert.Equal(t, 3, r.Len())
	assert.Equal(t, []string{"x.go", "y.go", "z.go"}, []string{
		r.Findings()[0].Path, r.Findings()[1].Path, r.Findings()[2].Path,
	})
}

func TestWalk_StopsOnError(t *testing.T) {
	t.Parallel()
	r := New()
	require.NoError(t, r.Append("a/X", f("x.go", 1)))
	require.NoError(t, r.Append("b/X", f("x.go", 1)))

	boom := errors.New("boom")
	calls := 0
	err := r.Walk(func([]string, Leaf) error {
		calls++
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestMarshalJSON(t *testing.T) {
	t.Parallel()
	r := New()
	require.NoError(t, r.Append("p/X", f("a.go", 3)))
	require.NoError(t, r.Put("p/Y", Leaf(nil)))

	data, err := json.Marshal(r)
	require.NoError(t, err)
	assert.JSONEq(t, `{"p":{
		"X":[{"finder":"X","path":"a.go","start_line":3,"end_line":3,"snippet":""}],
		"Y":[]
	}}`, string(data))
}
