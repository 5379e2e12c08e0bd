package runtime

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-hclog"
	"github.com/risor-io/risor/object"
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/jward/sift/internal/syntax"
)

// Host functions exposed to finder scripts. Nodes cross into Risor as maps:
//
//	{id, kind, category, start_line, end_line, text}
//
// id indexes the finder's node table, so report/resolve_type can find the
// node again.

// makeNodesFn creates the "nodes" host function.
//
// nodes() → [node], nodes(category) → [node], in pre-order.
func makeNodesFn(s *scriptFinder) *object.Builtin {
	return object.NewBuiltin("nodes", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) > 1 {
			return object.NewArgsError("nodes", 1, len(args))
		}
		filter := -1
		if len(args) == 1 {
			name, ok := args[0].(*object.String)
			if !ok {
				return object.Errorf("nodes: category must be a string, got %s", args[0].Type())
			}
			cat, ok := syntax.ParseCategory(name.Value())
			if !ok {
				return object.Errorf("nodes: unknown category %q", name.Value())
			}
			filter = int(cat)
		}

		s.ensureNodes()
		results := []object.Object{}
		for id := 0; id < s.preorder; id++ {
			if filter >= 0 && int(s.nodes[id].Category()) != filter {
				continue
			}
			results = append(results, s.nodeMap(id))
		}
		return object.NewList(results)
	})
}

// makeReportFn creates the "report" host function.
//
// report(node) records a finding spanning the node.
func makeReportFn(s *scriptFinder) *object.Builtin {
	return object.NewBuiltin("report", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("report", 1, len(args))
		}
		m, err := extractMap(args[0])
		if err != nil {
			return object.Errorf("report: %v", err)
		}
		if !s.stopped {
			s.ReportLines(getInt(m, "start_line"), getInt(m, "end_line"), getString(m, "text"))
		}
		return object.Nil
	})
}

// makeReportLinesFn creates the "report_lines" host function.
//
// report_lines(start, end, snippet)
func makeReportLinesFn(s *scriptFinder) *object.Builtin {
	return object.NewBuiltin("report_lines", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 3 {
			return object.NewArgsError("report_lines", 3, len(args))
		}
		start, err := toInt(args[0])
		if err != nil {
			return object.Errorf("report_lines: start: %v", err)
		}
		end, err := toInt(args[1])
		if err != nil {
			return object.Errorf("report_lines: end: %v", err)
		}
		snippet, err := toString(args[2])
		if err != nil {
			return object.Errorf("report_lines: snippet: %v", err)
		}
		if !s.stopped {
			s.ReportLines(start, end, snippet)
		}
		return object.Nil
	})
}

// makeCountFn creates "count", returning the number of matches so far.
func makeCountFn(s *scriptFinder) *object.Builtin {
	return object.NewBuiltin("count", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 0 {
			return object.NewArgsError("count", 0, len(args))
		}
		return object.NewInt(int64(s.FoundCount()))
	})
}

// makeStopFn creates "stop". After stop, report and report_lines are
// ignored for the rest of the file.
func makeStopFn(s *scriptFinder) *object.Builtin {
	return object.NewBuiltin("stop", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 0 {
			return object.NewArgsError("stop", 0, len(args))
		}
		s.stopped = true
		return object.Nil
	})
}

// makeResolveTypeFn creates "resolve_type".
//
// resolve_type(node) → string, "unknown" when the type cannot be resolved
// in time.
func makeResolveTypeFn(s *scriptFinder) *object.Builtin {
	return object.NewBuiltin("resolve_type", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("resolve_type", 1, len(args))
		}
		m, err := extractMap(args[0])
		if err != nil {
			return object.Errorf("resolve_type: %v", err)
		}
		n, ok := s.lookup(m)
		if !ok {
			return object.NewString(syntax.Unknown)
		}
		return object.NewString(s.TypeOf(ctx, n))
	})
}

// makeQueryFn creates the "query" host function.
//
// query(pattern) → [{capture: node}]
//
// Runs a tree-sitter query over the whole file. Only available when the file
// was parsed by tree-sitter.
func makeQueryFn(s *scriptFinder) *object.Builtin {
	return object.NewBuiltin("query", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("query", 1, len(args))
		}
		patternStr, ok := args[0].(*object.String)
		if !ok {
			return object.Errorf("query: pattern must be a string, got %s", args[0].Type())
		}

		root, src, ok := syntax.Sitter(s.root)
		if !ok {
			return object.Errorf("query: file was not parsed by tree-sitter")
		}
		lang, ok := syntax.GrammarForLanguage(s.File().Language)
		if !ok {
			return object.Errorf("query: no grammar for language %q", s.File().Language)
		}

		q, err := sitter.NewQuery([]byte(patternStr.Value()), lang)
		if err != nil {
			return object.Errorf("query: invalid pattern: %v", err)
		}
		defer q.Close()

		cursor := sitter.NewQueryCursor()
		defer cursor.Close()
		cursor.Exec(q, root)

		s.ensureNodes()
		results := []object.Object{}
		for {
			match, ok := cursor.NextMatch()
			if !ok {
				break
			}
			match = cursor.FilterPredicates(match, src)
			if len(match.Captures) == 0 {
				// Predicates rejected the match.
				continue
			}

			matchMap := make(map[string]object.Object)
			for _, capture := range match.Captures {
				name := q.CaptureNameForId(capture.Index)
				matchMap[name] = s.nodeMap(s.add(syntax.WrapSitter(capture.Node, src)))
			}
			results = append(results, object.NewMap(matchMap))
		}
		return object.NewList(results)
	})
}

// logObject provides log.Info/Warn/Error methods for scripts.
type logObject struct {
	logger hclog.Logger
}

func (l *logObject) Info(msg string)  { l.logger.Info(msg) }
func (l *logObject) Warn(msg string)  { l.logger.Warn(msg) }
func (l *logObject) Error(msg string) { l.logger.Error(msg) }

func extractMap(obj object.Object) (map[string]object.Object, error) {
	m, ok := obj.(*object.Map)
	if !ok {
		return nil, fmt.Errorf("expected map, got %s", obj.Type())
	}
	return m.Value(), nil
}

func getString(m map[string]object.Object, key string) string {
	v, ok := m[key]
	if !ok {
		return ""
	}
	if s, ok := v.(*object.String); ok {
		return s.Value()
	}
	return ""
}

func getInt(m map[string]object.Object, key string) int {
	v, ok := m[key]
	if !ok {
		return 0
	}
	if i, ok := v.(*object.Int); ok {
		return int(i.Value())
	}
	if f, ok := v.(*object.Float); ok {
		return int(f.Value())
	}
	return 0
}

func toInt(obj object.Object) (int, error) {
	if i, ok := obj.(*object.Int); ok {
		return int(i.Value()), nil
	}
	if f, ok := obj.(*object.Float); ok {
		return int(f.Value()), nil
	}
	return 0, fmt.Errorf("expected int, got %s", obj.Type())
}

func toString(obj object.Object) (string, error) {
	if s, ok := obj.(*object.String); ok {
		return s.Value(), nil
	}
	return "", fmt.Errorf("expected string, got %s", obj.Type())
}
