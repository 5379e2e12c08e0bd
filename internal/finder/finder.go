// Package finder defines the plugin model: factories that manufacture one
// Finder per file, the Finder contract, the embeddable Base accumulator and
// category-based dispatch.
package finder

import (
	"context"
	"time"

	"github.com/jward/sift/internal/syntax"
)

// File describes the file a Finder is bound to.
type File struct {
	Project  string
	Path     string
	Language string

	// Resolver answers type queries; nil means every type is Unknown.
	Resolver    syntax.Resolver
	TypeTimeout time.Duration
}

// Finder inspects one file's tree and accumulates findings. A Finder is
// used by a single goroutine for a single file and then discarded.
//
// An error returned from Visit is a finder-local fault: Drive records it
// with RecordError and keeps traversing.
type Finder interface {
	Visit(n syntax.Node, ctl *syntax.Control) error
	// FoundTokens returns the accumulated findings. nil means the finder
	// only counts and its results are never cached; a finder that records
	// findings must return a non-nil empty slice when nothing matched.
	FoundTokens() []Finding
	FoundCount() int
	Errors() []error
	RecordError(err error)
}

// Leaver is implemented by finders that need post-order callbacks.
type Leaver interface {
	Leave(n syntax.Node, ctl *syntax.Control) error
}

// Finisher is implemented by finders that do their work after traversal.
type Finisher interface {
	Finish(ctx context.Context) error
}

// Base is embedded by finder implementations. It holds the file binding,
// the accumulated findings (or just a count) and the error list.
type Base struct {
	file      File
	name      string
	countOnly bool

	found  []Finding
	count  int
	errors []error
}

// NewBase binds a Base to a file. In count-only mode findings are not
// retained; only FoundCount is meaningful.
func NewBase(file File, name string, countOnly bool) Base {
	return Base{file: file, name: name, countOnly: countOnly}
}

// File returns the file this finder is bound to.
func (b *Base) File() File { return b.file }

// Name returns the owning factory's name.
func (b *Base) Name() string { return b.name }

// Report records a finding covering node n.
func (b *Base) Report(n syntax.Node) {
	b.ReportLines(n.StartLine(), n.EndLine(), n.Text())
}

// ReportLines records a finding for an explicit line span.
func (b *Base) ReportLines(start, end int, snippet string) {
	b.count++
	if b.countOnly {
		return
	}
	if end < start {
		end = start
	}
	b.found = append(b.found, Finding{
		Finder:    b.name,
		Path:      b.file.Path,
		StartLine: start,
		EndLine:   end,
		Snippet:   snippet,
	})
}

// Increment bumps the count without recording a finding.
func (b *Base) Increment() { b.count++ }

func (b *Base) FoundTokens() []Finding {
	if b.countOnly {
		return nil
	}
	if b.found == nil {
		return []Finding{}
	}
	return b.found
}

func (b *Base) FoundCount() int { return b.count }

func (b *Base) Errors() []error { return b.errors }

func (b *Base) RecordError(err error) {
	if err != nil {
		b.errors = append(b.errors, err)
	}
}

// TypeOf resolves the type of n through the file's resolver, bounded by the
// file's type timeout. Timeouts and failures yield syntax.Unknown.
func (b *Base) TypeOf(ctx context.Context, n syntax.Node) string {
	return syntax.ResolveType(ctx, b.file.Resolver, n, b.file.TypeTimeout)
}
