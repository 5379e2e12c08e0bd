// Package finders holds the built-in finders. Each is a CategoryFinder, so
// it works on any language whose node kinds follow tree-sitter naming.
package finders

import (
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/jward/sift/internal/finder"
	"github.com/jward/sift/internal/syntax"
)

// Names of the built-in finders.
const (
	TodoCommentName  = "todo-comment"
	MagicNumberName  = "magic-number"
	EmptyBlockName   = "empty-block"
	LongFunctionName = "long-function"
)

// Options tunes the built-in finders. Options are part of each finder's
// fingerprint, so changing them invalidates cached results.
type Options struct {
	// MaxFunctionLines is the longest function long-function accepts.
	MaxFunctionLines int
	// AllowedNumbers are numeric literals magic-number never reports.
	AllowedNumbers []string
	// CountMagicOnly makes magic-number count matches without keeping them.
	CountMagicOnly bool
}

// DefaultOptions returns the options used when none are configured.
func DefaultOptions() Options {
	return Options{
		MaxFunctionLines: 60,
		AllowedNumbers:   []string{"0", "1", "-1", "2", "0.0", "1.0"},
	}
}

// All returns every built-in factory.
func All(opts Options) []finder.Factory {
	return []finder.Factory{
		TodoComment(),
		MagicNumber(opts),
		EmptyBlock(),
		LongFunction(opts),
	}
}

// ByName returns the built-in factories with the given names, in the order
// given. Unknown names are an error.
func ByName(opts Options, names ...string) ([]finder.Factory, error) {
	all := All(opts)
	var out []finder.Factory
	for _, name := range names {
		i := slices.IndexFunc(all, func(f finder.Factory) bool { return f.Identity().Name == name })
		if i < 0 {
			return nil, fmt.Errorf("finders: unknown finder %q", name)
		}
		out = append(out, all[i])
	}
	return out, nil
}

// firstLine returns the first line of s without surrounding space.
func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

// --- todo-comment ---

var todoPattern = regexp.MustCompile(`\b(TODO|FIXME|XXX|HACK)\b`)

// TodoComment reports comments carrying a TODO, FIXME, XXX or HACK marker.
func TodoComment() finder.Factory {
	return finder.NewFuncFactory(finder.NewDescriptor(TodoCommentName, "1"), func(file finder.File) finder.Finder {
		f := finder.NewCategoryFinder(file, TodoCommentName, false)
		f.On(syntax.CategoryComment, func(n syntax.Node, _ *syntax.Control) error {
			text := n.Text()
			loc := todoPattern.FindStringIndex(text)
			if loc == nil {
				return nil
			}
			line := n.StartLine() + strings.Count(text[:loc[0]], "\n")
			f.ReportLines(line, line, firstLine(text[loc[0]:]))
			return nil
		})
		return f
	})
}

// --- magic-number ---

var numberPattern = regexp.MustCompile(`^[-+]?(0[xXbBoO][0-9a-fA-F_]+|[0-9][0-9_]*(\.[0-9_]*)?([eE][-+]?[0-9]+)?|\.[0-9]+([eE][-+]?[0-9]+)?)[a-zA-Z]*$`)

type magicNumber struct {
	*finder.CategoryFinder
	allowed map[string]bool
	inConst int
}

// MagicNumber reports numeric literals outside constant declarations.
func MagicNumber(opts Options) finder.Factory {
	allowed := slices.Clone(opts.AllowedNumbers)
	slices.Sort(allowed)
	version := fmt.Sprintf("1 allowed=%s", strings.Join(allowed, ","))
	set := make(map[string]bool, len(allowed))
	for _, a := range allowed {
		set[a] = true
	}

	return finder.NewFuncFactory(finder.NewDescriptor(MagicNumberName, version), func(file finder.File) finder.Finder {
		m := &magicNumber{
			CategoryFinder: finder.NewCategoryFinder(file, MagicNumberName, opts.CountMagicOnly),
			allowed:        set,
		}
		m.On(syntax.CategoryDeclaration, m.enterDecl)
		m.OnLeave(syntax.CategoryDeclaration, m.leaveDecl)
		m.On(syntax.CategoryLiteral, m.literal)
		return m
	})
}

func isConstDecl(kind string) bool {
	return strings.Contains(kind, "const")
}

func (m *magicNumber) enterDecl(n syntax.Node, _ *syntax.Control) error {
	if isConstDecl(n.Kind()) {
		m.inConst++
	}
	return nil
}

func (m *magicNumber) leaveDecl(n syntax.Node, _ *syntax.Control) error {
	if isConstDecl(n.Kind()) {
		m.inConst--
	}
	return nil
}

func (m *magicNumber) literal(n syntax.Node, _ *syntax.Control) error {
	if m.inConst > 0 {
		return nil
	}
	text := strings.TrimSpace(n.Text())
	if !numberPattern.MatchString(text) || m.allowed[text] {
		return nil
	}
	m.Report(n)
	return nil
}

// --- empty-block ---

var blockKinds = map[string]bool{
	"block":              true,
	"statement_block":    true,
	"compound_statement": true,
}

// EmptyBlock reports brace-delimited blocks with nothing but whitespace
// inside. A block holding only a comment is not empty.
func EmptyBlock() finder.Factory {
	return finder.NewFuncFactory(finder.NewDescriptor(EmptyBlockName, "1"), func(file finder.File) finder.Finder {
		f := finder.NewCategoryFinder(file, EmptyBlockName, false)
		f.On(syntax.CategoryStatement, func(n syntax.Node, _ *syntax.Control) error {
			if !blockKinds[n.Kind()] {
				return nil
			}
			text := strings.TrimSpace(n.Text())
			if !strings.HasPrefix(text, "{") || !strings.HasSuffix(text, "}") {
				return nil
			}
			if strings.TrimSpace(text[1:len(text)-1]) == "" {
				f.ReportLines(n.StartLine(), n.EndLine(), text)
			}
			return nil
		})
		return f
	})
}

// --- long-function ---

func isFunctionKind(kind string) bool {
	switch kind {
	case "method", "singleton_method", "func_literal", "arrow_function", "lambda":
		return true
	}
	return strings.Contains(kind, "function") || strings.Contains(kind, "method_declaration") ||
		strings.Contains(kind, "method_definition") || strings.Contains(kind, "constructor_declaration")
}

// LongFunction reports functions spanning more than opts.MaxFunctionLines
// lines.
func LongFunction(opts Options) finder.Factory {
	limit := opts.MaxFunctionLines
	if limit <= 0 {
		limit = DefaultOptions().MaxFunctionLines
	}
	version := fmt.Sprintf("1 max=%d", limit)

	return finder.NewFuncFactory(finder.NewDescriptor(LongFunctionName, version), func(file finder.File) finder.Finder {
		f := finder.NewCategoryFinder(file, LongFunctionName, false)
		f.OnAny(func(n syntax.Node, _ *syntax.Control) error {
			c := n.Category()
			if c != syntax.CategoryDeclaration && c != syntax.CategoryExpression {
				return nil
			}
			if !isFunctionKind(n.Kind()) {
				return nil
			}
			if lines := n.EndLine() - n.StartLine() + 1; lines > limit {
				f.ReportLines(n.StartLine(), n.EndLine(), firstLine(n.Text()))
			}
			return nil
		})
		return f
	})
}
