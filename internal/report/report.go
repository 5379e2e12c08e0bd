// Package report holds the hierarchical result of a run: a tree of branches
// keyed by string segments whose leaves are lists of findings. The engine
// files findings under [project, finder].
package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/jward/sift/internal/finder"
)

var (
	// ErrLeafInPath is returned when a non-terminal path segment names a leaf.
	ErrLeafInPath = errors.New("report: leaf in path")
	// ErrNotLeaf is returned when appending to a path that names a branch.
	ErrNotLeaf = errors.New("report: not a leaf")
	// ErrEmptyPath is returned for a path with no segments.
	ErrEmptyPath = errors.New("report: empty path")
)

// Node is either a Leaf or a Branch.
type Node interface {
	isNode()
}

// Leaf is a list of findings.
type Leaf []finder.Finding

// Branch maps a key to a sub-report.
type Branch map[string]Node

func (Leaf) isNode()   {}
func (Branch) isNode() {}

// Report is the root of a result tree. The zero value is not usable; call New.
// A Report is not safe for concurrent use; the engine builds it from a single
// goroutine.
type Report struct {
	root Branch
}

// New returns an empty report.
func New() *Report {
	return &Report{root: Branch{}}
}

// Split turns a slash-delimited path into segments, dropping empty ones.
func Split(path string) []string {
	var segs []string
	for _, s := range strings.Split(path, "/") {
		if s != "" {
			segs = append(segs, s)
		}
	}
	return segs
}

// Put stores n at a slash-delimited path, replacing what was there.
func (r *Report) Put(path string, n Node) error {
	return r.PutPath(Split(path), n)
}

// Append adds f to the leaf at a slash-delimited path, creating the leaf if
// absent.
func (r *Report) Append(path string, f finder.Finding) error {
	return r.AppendPath(Split(path), f)
}

// PutPath is Put for explicit segments, which may contain slashes. A stored
// leaf is clipped so later appends never write into the caller's array.
func (r *Report) PutPath(segs []string, n Node) error {
	parent, last, err := r.parentOf(segs)
	if err != nil {
		return err
	}
	if l, ok := n.(Leaf); ok {
		n = slices.Clip(l)
	}
	parent[last] = n
	return nil
}

// AppendPath is Append for explicit segments.
func (r *Report) AppendPath(segs []string, f finder.Finding) error {
	parent, last, err := r.parentOf(segs)
	if err != nil {
		return err
	}
	switch cur := parent[last].(type) {
	case nil:
		parent[last] = Leaf{f}
	case Leaf:
		parent[last] = append(cur, f)
	default:
		return fmt.Errorf("%w: %s", ErrNotLeaf, strings.Join(segs, "/"))
	}
	return nil
}

// parentOf walks to the branch holding the final segment, creating
// intermediate branches on the way.
func (r *Report) parentOf(segs []string) (Branch, string, error) {
	if len(segs) == 0 {
		return nil, "", ErrEmptyPath
	}
	b := r.root
	for i, s := range segs[:len(segs)-1] {
		switch next := b[s].(type) {
		case nil:
			nb := Branch{}
			b[s] = nb
			b = nb
		case Branch:
			b = next
		default:
			return nil, "", fmt.Errorf("%w: %s", ErrLeafInPath, strings.Join(segs[:i+1], "/"))
		}
	}
	return b, segs[len(segs)-1], nil
}

// Get returns the node at a slash-delimited path. The empty path returns the
// root branch.
func (r *Report) Get(path string) (Node, bool) {
	return r.GetPath(Split(path))
}

// GetPath is Get for explicit segments.
func (r *Report) GetPath(segs []string) (Node, bool) {
	var n Node = r.root
	for _, s := range segs {
		b, ok := n.(Branch)
		if !ok {
			return nil, false
		}
		if n, ok = b[s]; !ok {
			return nil, false
		}
	}
	return n, true
}

// Keys returns the root keys in sorted order.
func (r *Report) Keys() []string {
	return sortedKeys(r.root)
}

// Walk visits every leaf in sorted key order, depth first. Returning an error
// from fn stops the walk and returns that error.
func (r *Report) Walk(fn func(path []string, leaf Leaf) error) error {
	return walk(r.root, nil, fn)
}

func walk(b Branch, prefix []string, fn func([]string, Leaf) error) error {
	for _, k := range sortedKeys(b) {
		path := append(slices.Clip(prefix), k)
		switch n := b[k].(type) {
		case Leaf:
			if err := fn(path, n); err != nil {
				return err
			}
		case Branch:
			if err := walk(n, path, fn); err != nil {
				return err
			}
		}
	}
	return nil
}

// Findings flattens every leaf in walk order.
func (r *Report) Findings() []finder.Finding {
	var out []finder.Finding
	_ = r.Walk(func(_ []string, leaf Leaf) error {
		out = append(out, leaf...)
		return nil
	})
	return out
}

// Len is the total number of findings.
func (r *Report) Len() int {
	n := 0
	_ = r.Walk(func(_ []string, leaf Leaf) error {
		n += len(leaf)
		return nil
	})
	return n
}

func sortedKeys(b Branch) []string {
	keys := make([]string, 0, len(b))
	for k := range b {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// MarshalJSON renders branches as objects and leaves as arrays. Empty leaves
// render as [] rather than null.
func (r *Report) MarshalJSON() ([]byte, error) {
	return json.Marshal(toJSON(r.root))
}

func toJSON(n Node) any {
	switch n := n.(type) {
	case Leaf:
		if n == nil {
			return []finder.Finding{}
		}
		return []finder.Finding(n)
	case Branch:
		out := make(map[string]any, len(n))
		for k, v := range n {
			out[k] = toJSON(v)
		}
		return out
	}
	return nil
}
