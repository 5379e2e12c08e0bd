package scripts_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/sift/internal/finder"
	"github.com/jward/sift/internal/runtime"
	"github.com/jward/sift/internal/syntax"
	"github.com/jward/sift/scripts"
)

const goSource = `package main

import "fmt"

func main() {
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			fmt.Println(i, j)
		}
	}
	fmt.Sprintf("%d", 1)
}
`

// runEmbedded runs the embedded script called name over goSource.
func runEmbedded(t *testing.T, name string) finder.Finder {
	t.Helper()
	facs, err := runtime.NewRuntime("", runtime.WithRuntimeFS(scripts.FS)).Factories()
	require.NoError(t, err)

	var fac *runtime.ScriptFactory
	for _, f := range facs {
		if f.Identity().Name == name {
			fac = f
		}
	}
	require.NotNil(t, fac, "no embedded script %q", name)
	require.True(t, fac.AppliesTo("go"))

	tree, err := syntax.NewSitterParser().Parse(context.Background(), "main.go", []byte(goSource))
	require.NoError(t, err)
	t.Cleanup(tree.Close)

	f := fac.NewFinder(finder.File{Project: "app", Path: "main.go", Language: tree.Language})
	finder.Drive(context.Background(), f, tree.Root)
	require.Empty(t, f.Errors())
	return f
}

func TestEmbeddedScripts_Listed(t *testing.T) {
	t.Parallel()
	facs, err := runtime.NewRuntime("", runtime.WithRuntimeFS(scripts.FS)).Factories()
	require.NoError(t, err)

	var names []string
	for _, f := range facs {
		names = append(names, f.Identity().Name)
		assert.False(t, f.AppliesTo("python"))
	}
	assert.Equal(t, []string{"nested-loop", "print-call"}, names)
}

func TestPrintCall(t *testing.T) {
	t.Parallel()
	got := runEmbedded(t, "print-call").FoundTokens()
	require.Len(t, got, 1, "Sprintf is not a print call")
	assert.Equal(t, 8, got[0].StartLine)
	assert.Equal(t, "fmt.Println(i, j)", got[0].Snippet)
}

func TestNestedLoop(t *testing.T) {
	t.Parallel()
	got := runEmbedded(t, "nested-loop").FoundTokens()
	require.Len(t, got, 1)
	assert.Equal(t, 7, got[0].StartLine)
}
