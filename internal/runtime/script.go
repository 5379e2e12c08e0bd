package runtime

import (
	"bufio"
	"context"
	"strings"

	"github.com/risor-io/risor/object"

	"github.com/jward/sift/internal/finder"
	"github.com/jward/sift/internal/syntax"
)

// ScriptFactory is a finder defined by a Risor script. The script runs once
// per file after the tree is built and reports through host functions. Its
// fingerprint covers the script source, so editing a script invalidates its
// cached results.
//
// Leading comment lines may carry directives:
//
//	// sift:languages go python
//	// sift:count-only
type ScriptFactory struct {
	*finder.Descriptor
	rt        *Runtime
	source    string
	countOnly bool
}

var _ finder.Factory = (*ScriptFactory)(nil)

// NewScriptFactory builds a factory from script source.
func (r *Runtime) NewScriptFactory(name, source string) *ScriptFactory {
	d := parseDirectives(source)
	id := finder.Identity{Name: name, Fingerprint: finder.Fingerprint(name, source)}
	return &ScriptFactory{
		Descriptor: finder.NewDescriptorWithIdentity(id, d.languages...),
		rt:         r,
		source:     source,
		countOnly:  d.countOnly,
	}
}

// CountOnly reports whether the script declared sift:count-only.
func (f *ScriptFactory) CountOnly() bool { return f.countOnly }

func (f *ScriptFactory) NewFinder(file finder.File) finder.Finder {
	return &scriptFinder{
		Base:    finder.NewBase(file, f.Identity().Name, f.countOnly),
		factory: f,
	}
}

type directives struct {
	languages []string
	countOnly bool
}

func parseDirectives(source string) directives {
	var d directives
	sc := bufio.NewScanner(strings.NewReader(source))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var body string
		switch {
		case strings.HasPrefix(line, "//"):
			body = strings.TrimSpace(strings.TrimPrefix(line, "//"))
		case strings.HasPrefix(line, "#"):
			body = strings.TrimSpace(strings.TrimPrefix(line, "#"))
		default:
			return d
		}
		fields := strings.Fields(body)
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "sift:languages":
			for _, f := range fields[1:] {
				for _, l := range strings.Split(f, ",") {
					if l != "" {
						d.languages = append(d.languages, l)
					}
				}
			}
		case "sift:count-only":
			d.countOnly = true
		}
	}
	return d
}

// scriptFinder captures the root on its first visit, skips the rest of the
// traversal and runs the script in Finish.
type scriptFinder struct {
	finder.Base
	factory *ScriptFactory

	root     syntax.Node
	nodes    []syntax.Node // node table; the first preorder entries are the tree
	preorder int
	walked   bool
	stopped  bool
}

func (s *scriptFinder) Visit(n syntax.Node, ctl *syntax.Control) error {
	if s.root == nil {
		s.root = n
	}
	ctl.SkipChildren()
	return nil
}

func (s *scriptFinder) Finish(ctx context.Context) error {
	if s.root == nil {
		return nil
	}
	file := s.File()
	return s.factory.rt.eval(ctx, s.factory.source, s.Name(), map[string]any{
		"file_path":    file.Path,
		"language":     file.Language,
		"project":      file.Project,
		"nodes":        makeNodesFn(s),
		"report":       makeReportFn(s),
		"report_lines": makeReportLinesFn(s),
		"count":        makeCountFn(s),
		"stop":         makeStopFn(s),
		"resolve_type": makeResolveTypeFn(s),
		"query":        makeQueryFn(s),
	})
}

// ensureNodes fills the node table with the tree in pre-order, once. It
// runs before any node is added with add.
func (s *scriptFinder) ensureNodes() {
	if s.walked {
		return
	}
	s.walked = true
	s.nodes = syntax.Collect(s.root)
	s.preorder = len(s.nodes)
}

// add appends n to the node table and returns its id.
func (s *scriptFinder) add(n syntax.Node) int {
	s.nodes = append(s.nodes, n)
	return len(s.nodes) - 1
}

func (s *scriptFinder) lookup(m map[string]object.Object) (syntax.Node, bool) {
	v, ok := m["id"].(*object.Int)
	if !ok {
		return nil, false
	}
	id := int(v.Value())
	if id < 0 || id >= len(s.nodes) {
		return nil, false
	}
	return s.nodes[id], true
}

func (s *scriptFinder) nodeMap(id int) object.Object {
	n := s.nodes[id]
	return object.NewMap(map[string]object.Object{
		"id":         object.NewInt(int64(id)),
		"kind":       object.NewString(n.Kind()),
		"category":   object.NewString(n.Category().String()),
		"start_line": object.NewInt(int64(n.StartLine())),
		"end_line":   object.NewInt(int64(n.EndLine())),
		"text":       object.NewString(n.Text()),
	})
}
