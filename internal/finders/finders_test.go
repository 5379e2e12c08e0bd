package finders

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/sift/internal/finder"
	"github.com/jward/sift/internal/syntax"
)

const goSample = `package main

// TODO: tidy this up
const limit = 100

func run(n int) int {
	if n > 0 {
	}
	x := n * 42
	return x + 1
}
`

// runFinder parses src as main.go and drives one finder from fac over it.
func runFinder(t *testing.T, fac finder.Factory, src string) finder.Finder {
	t.Helper()
	tree, err := syntax.NewSitterParser().Parse(context.Background(), "main.go", []byte(src))
	require.NoError(t, err)
	t.Cleanup(tree.Close)

	f := fac.NewFinder(finder.File{Project: "proj", Path: "main.go", Language: tree.Language})
	finder.Drive(context.Background(), f, tree.Root)
	require.Empty(t, f.Errors())
	return f
}

// --- todo-comment ---

func TestTodoComment(t *testing.T) {
	t.Parallel()
	f := runFinder(t, TodoComment(), goSample)

	got := f.FoundTokens()
	require.Len(t, got, 1)
	assert.Equal(t, finder.Finding{
		Finder: TodoCommentName, Path: "main.go", StartLine: 3, EndLine: 3, Snippet: "TODO: tidy this up",
	}, got[0])
}

func TestTodoComment_IgnoresPlainComments(t *testing.T) {
	t.Parallel()
	f := runFinder(t, TodoComment(), "package main\n\n// todos are lowercase here\n// TODOS is not a marker\n")
	assert.Empty(t, f.FoundTokens())
}

// --- magic-number ---

func TestMagicNumber(t *testing.T) {
	t.Parallel()
	f := runFinder(t, MagicNumber(DefaultOptions()), goSample)

	got := f.FoundTokens()
	require.Len(t, got, 1, "100 sits in a const, 0 and 1 are allowed")
	assert.Equal(t, 9, got[0].StartLine)
	assert.Equal(t, "42", got[0].Snippet)
}

func TestMagicNumber_AllowedListIsConfigurable(t *testing.T) {
	t.Parallel()
	opts := DefaultOptions()
	opts.AllowedNumbers = append(opts.AllowedNumbers, "42")
	f := runFinder(t, MagicNumber(opts), goSample)
	assert.Empty(t, f.FoundTokens())
}

func TestMagicNumber_CountOnly(t *testing.T) {
	t.Parallel()
	opts := DefaultOptions()
	opts.CountMagicOnly = true
	opts.AllowedNumbers = nil
	f := runFinder(t, MagicNumber(opts), goSample)

	assert.Nil(t, f.FoundTokens())
	assert.Equal(t, 3, f.FoundCount(), "42, 0 and 1 outside the const")
}

func TestMagicNumber_FingerprintFollowsOptions(t *testing.T) {
	t.Parallel()
	a := MagicNumber(DefaultOptions()).Identity()
	opts := DefaultOptions()
	opts.AllowedNumbers = []string{"0"}
	b := MagicNumber(opts).Identity()

	assert.Equal(t, a.Name, b.Name)
	assert.NotEqual(t, a.Fingerprint, b.Fingerprint)
	assert.Equal(t, a, MagicNumber(DefaultOptions()).Identity())
}

// --- empty-block ---

func TestEmptyBlock(t *testing.T) {
	t.Parallel()
	f := runFinder(t, EmptyBlock(), goSample)

	got := f.FoundTokens()
	require.Len(t, got, 1)
	assert.Equal(t, 7, got[0].StartLine)
	assert.Equal(t, 8, got[0].EndLine)
}

func TestEmptyBlock_CommentIsNotEmpty(t *testing.T) {
	t.Parallel()
	src := "package main\n\nfunc f(n int) {\n\tif n > 0 {\n\t\t// nothing yet\n\t}\n}\n"
	f := runFinder(t, EmptyBlock(), src)
	assert.Empty(t, f.FoundTokens())
}

// --- long-function ---

func TestLongFunction(t *testing.T) {
	t.Parallel()
	short := runFinder(t, LongFunction(DefaultOptions()), goSample)
	assert.Empty(t, short.FoundTokens())

	f := runFinder(t, LongFunction(Options{MaxFunctionLines: 5}), goSample)
	got := f.FoundTokens()
	require.Len(t, got, 1, "run spans lines 6-11")
	assert.Equal(t, 6, got[0].StartLine)
	assert.Equal(t, 11, got[0].EndLine)
	assert.Equal(t, "func run(n int) int {", got[0].Snippet)
}

func TestLongFunction_ZeroLimitUsesDefault(t *testing.T) {
	t.Parallel()
	assert.Equal(t, LongFunction(DefaultOptions()).Identity(), LongFunction(Options{}).Identity())
}

// --- registry ---

func TestAll(t *testing.T) {
	t.Parallel()
	var names []string
	for _, f := range All(DefaultOptions()) {
		names = append(names, f.Identity().Name)
		assert.True(t, f.AppliesTo("go"))
	}
	assert.Equal(t, []string{TodoCommentName, MagicNumberName, EmptyBlockName, LongFunctionName}, names)
}

func TestByName(t *testing.T) {
	t.Parallel()
	facs, err := ByName(DefaultOptions(), LongFunctionName, TodoCommentName)
	require.NoError(t, err)
	require.Len(t, facs, 2)
	assert.Equal(t, LongFunctionName, facs[0].Identity().Name)
	assert.Equal(t, TodoCommentName, facs[1].Identity().Name)

	_, err = ByName(DefaultOptions(), "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown finder "nope"`)
}
