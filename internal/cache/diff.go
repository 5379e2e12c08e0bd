package cache

import (
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/jward/sift/internal/finder"
)

// Diff renders a unified diff between two finding lists, one finding per
// line as "path:line snippet". It returns "" when they are identical.
func Diff(name string, cached, current []finder.Finding) string {
	u := difflib.UnifiedDiff{
		A:        findingLines(cached),
		B:        findingLines(current),
		FromFile: name + " (cached)",
		ToFile:   name + " (current)",
		Context:  2,
	}
	s, err := difflib.GetUnifiedDiffString(u)
	if err != nil {
		return ""
	}
	return s
}

func findingLines(fs []finder.Finding) []string {
	out := make([]string, len(fs))
	for i, f := range fs {
		snippet := strings.Join(strings.Fields(f.Snippet), " ")
		out[i] = f.Location() + " " + snippet + "\n"
	}
	return out
}
