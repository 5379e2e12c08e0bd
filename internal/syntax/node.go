// Package syntax defines the tree abstraction finders run over and the
// traversal that drives them. Any parsed-file node can take part by
// implementing Node; the tree-sitter adapter in this package is one such
// implementation.
package syntax

// Category is the coarse semantic class a node belongs to. Finders register
// handlers per category instead of per concrete node kind.
type Category int

const (
	CategoryOther Category = iota
	CategoryLiteral
	CategoryExpression
	CategoryStatement
	CategoryDeclaration
	CategoryComment
)

var categoryNames = map[Category]string{
	CategoryOther:       "other",
	CategoryLiteral:     "literal",
	CategoryExpression:  "expression",
	CategoryStatement:   "statement",
	CategoryDeclaration: "declaration",
	CategoryComment:     "comment",
}

func (c Category) String() string {
	if name, ok := categoryNames[c]; ok {
		return name
	}
	return "other"
}

// ParseCategory maps a category name back to its Category.
func ParseCategory(name string) (Category, bool) {
	for c, n := range categoryNames {
		if n == name {
			return c, true
		}
	}
	return CategoryOther, false
}

// Node is one node of a parsed file. Lines are 1-based and inclusive.
type Node interface {
	Kind() string
	Category() Category
	Children() []Node
	StartLine() int
	EndLine() int
	Text() string
	Accept(v Visitor, ctl *Control)
}

// Basic is an in-memory Node. Parsers without their own node type build
// trees out of it.
type Basic struct {
	NodeKind string

	// Cat overrides the category derived from NodeKind when non-nil.
	Cat   *Category
	Start int
	End   int
	Src   string
	Kids  []*Basic
}

func (b *Basic) Kind() string { return b.NodeKind }

func (b *Basic) Category() Category {
	if b.Cat != nil {
		return *b.Cat
	}
	return Classify(b.NodeKind)
}

func (b *Basic) Children() []Node {
	out := make([]Node, len(b.Kids))
	for i, k := range b.Kids {
		out[i] = k
	}
	return out
}

func (b *Basic) StartLine() int { return b.Start }

func (b *Basic) EndLine() int {
	if b.End < b.Start {
		return b.Start
	}
	return b.End
}

func (b *Basic) Text() string { return b.Src }

func (b *Basic) Accept(v Visitor, ctl *Control) { Walk(b, v, ctl) }
