package syntax

import (
	"context"
	"errors"
	"fmt"
)

// ErrUnsupportedLanguage is returned by a Parser for files it has no grammar
// for. The engine skips such files rather than counting them as failures.
var ErrUnsupportedLanguage = errors.New("unsupported language")

// ParseError reports a file that could not be turned into a tree.
type ParseError struct {
	Path string
	Line int // 0 when unknown
	Err  error
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("parse %s:%d: %v", e.Path, e.Line, e.Err)
	}
	return fmt.Sprintf("parse %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Tree is a parsed file. The engine owns it for the duration of one file and
// calls Close afterwards; findings must not keep references into it.
type Tree struct {
	Root     Node
	Language string

	release func()
}

// NewTree wraps a root node. release may be nil.
func NewTree(root Node, language string, release func()) *Tree {
	return &Tree{Root: root, Language: language, release: release}
}

// Close releases parser resources held by the tree. Safe to call twice.
func (t *Tree) Close() {
	if t == nil || t.release == nil {
		return
	}
	t.release()
	t.release = nil
}

// Parser turns raw source text into a Tree.
type Parser interface {
	Parse(ctx context.Context, path string, src []byte) (*Tree, error)
}

// ParserFunc adapts a function to Parser.
type ParserFunc func(ctx context.Context, path string, src []byte) (*Tree, error)

func (f ParserFunc) Parse(ctx context.Context, path string, src []byte) (*Tree, error) {
	return f(ctx, path, src)
}
