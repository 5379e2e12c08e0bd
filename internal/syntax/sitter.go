package syntax

import (
	"context"
	"errors"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
)

// SitterParser parses files with tree-sitter, picking the grammar from the
// file extension.
type SitterParser struct {
	// Strict rejects trees that contain ERROR or MISSING nodes. Tree-sitter
	// always produces a tree, so without Strict only unsupported languages and
	// cancelled parses fail.
	Strict bool
}

// Compile-time check: *SitterParser satisfies Parser.
var _ Parser = (*SitterParser)(nil)

// NewSitterParser returns a tolerant tree-sitter parser.
func NewSitterParser() *SitterParser {
	return &SitterParser{}
}

// Parse implements Parser. Each call uses its own sitter.Parser, so a
// SitterParser may be shared between workers.
func (p *SitterParser) Parse(ctx context.Context, path string, src []byte) (*Tree, error) {
	lang, ok := LanguageForFile(path)
	if !ok {
		return nil, fmt.Errorf("%s: %w", path, ErrUnsupportedLanguage)
	}
	grammar, ok := GrammarForLanguage(lang)
	if !ok {
		return nil, fmt.Errorf("%s: %w", path, ErrUnsupportedLanguage)
	}

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(grammar)

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	root := tree.RootNode()
	if p.Strict && root.HasError() {
		line := firstErrorLine(root)
		tree.Close()
		return nil, &ParseError{Path: path, Line: line, Err: errors.New("syntax error")}
	}

	return NewTree(&sitterNode{node: root, src: src}, lang, tree.Close), nil
}

// firstErrorLine returns the 1-based line of the first ERROR or MISSING node
// in pre-order, or 0.
func firstErrorLine(n *sitter.Node) int {
	if n.IsError() || n.IsMissing() {
		return int(n.StartPoint().Row) + 1
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		if child == nil || !child.HasError() && !child.IsMissing() {
			continue
		}
		if line := firstErrorLine(child); line > 0 {
			return line
		}
	}
	return 0
}

// sitterNode adapts a tree-sitter node. Only named children are exposed;
// anonymous tokens (punctuation, keywords) carry nothing a finder matches on.
type sitterNode struct {
	node *sitter.Node
	src  []byte
}

func (n *sitterNode) Kind() string { return n.node.Type() }

func (n *sitterNode) Category() Category {
	if n.node.IsError() {
		return CategoryOther
	}
	return Classify(n.node.Type())
}

func (n *sitterNode) Children() []Node {
	count := int(n.node.NamedChildCount())
	out := make([]Node, 0, count)
	for i := 0; i < count; i++ {
		child := n.node.NamedChild(i)
		if child == nil {
			continue
		}
		out = append(out, &sitterNode{node: child, src: n.src})
	}
	return out
}

func (n *sitterNode) StartLine() int { return int(n.node.StartPoint().Row) + 1 }

// EndLine treats a node that ends at column 0 as ending on the previous
// line; tree-sitter reports the position just past the trailing newline.
func (n *sitterNode) EndLine() int {
	start := n.node.StartPoint()
	end := n.node.EndPoint()
	if end.Column == 0 && end.Row > start.Row {
		return int(end.Row)
	}
	return int(end.Row) + 1
}

func (n *sitterNode) Text() string { return n.node.Content(n.src) }

func (n *sitterNode) Accept(v Visitor, ctl *Control) { Walk(n, v, ctl) }

// Sitter exposes the underlying tree-sitter node and source for callers that
// need grammar-level access (scripted finders running tree-sitter queries).
func Sitter(n Node) (*sitter.Node, []byte, bool) {
	sn, ok := n.(*sitterNode)
	if !ok {
		return nil, nil, false
	}
	return sn.node, sn.src, true
}

// WrapSitter adapts a tree-sitter node obtained from a query over a tree
// this package produced. src must be the source that tree was parsed from.
func WrapSitter(n *sitter.Node, src []byte) Node {
	return &sitterNode{node: n, src: src}
}
