package finder

import (
	"cmp"
	"fmt"
	"slices"
)

// Finding is one located match. It is a plain comparable value: two
// findings are equal when every field is equal, so a Finding can be used as
// a map key to collapse duplicates reached through different traversal
// paths.
type Finding struct {
	Finder    string `json:"finder" yaml:"finder"`
	Path      string `json:"path" yaml:"path"`
	StartLine int    `json:"start_line" yaml:"start_line"`
	EndLine   int    `json:"end_line" yaml:"end_line"`
	Snippet   string `json:"snippet" yaml:"snippet"`
}

// Compare orders findings by path, then start line. Remaining fields break
// ties so the order is total: Compare returns 0 only for equal findings.
func Compare(a, b Finding) int {
	return cmp.Or(
		cmp.Compare(a.Path, b.Path),
		cmp.Compare(a.StartLine, b.StartLine),
		cmp.Compare(a.EndLine, b.EndLine),
		cmp.Compare(a.Finder, b.Finder),
		cmp.Compare(a.Snippet, b.Snippet),
	)
}

// Less reports whether a sorts before b.
func Less(a, b Finding) bool { return Compare(a, b) < 0 }

// Location renders "path:start" or "path:start-end".
func (f Finding) Location() string {
	if f.EndLine > f.StartLine {
		return fmt.Sprintf("%s:%d-%d", f.Path, f.StartLine, f.EndLine)
	}
	return fmt.Sprintf("%s:%d", f.Path, f.StartLine)
}

// SortFindings sorts in place.
func SortFindings(fs []Finding) {
	slices.SortFunc(fs, Compare)
}

// Dedup returns fs without value-equal duplicates, keeping the first
// occurrence of each.
func Dedup(fs []Finding) []Finding {
	if len(fs) < 2 {
		return fs
	}
	seen := make(map[Finding]bool, len(fs))
	out := fs[:0:0]
	for _, f := range fs {
		if seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	return out
}

// Normalize deduplicates and sorts, producing the deterministic order used
// for storage in the cache and the report.
func Normalize(fs []Finding) []Finding {
	out := Dedup(fs)
	SortFindings(out)
	return out
}
