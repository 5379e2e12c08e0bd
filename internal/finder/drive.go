package finder

import (
	"context"
	"fmt"

	"github.com/jward/sift/internal/syntax"
)

// visitError wraps a callback error with the node it happened on.
func visitError(n syntax.Node, err error) error {
	return fmt.Errorf("%s at line %d: %w", n.Kind(), n.StartLine(), err)
}

// driver adapts a Finder to syntax.Visitor. Callback errors are recorded on
// the finder and traversal continues.
type driver struct {
	f      Finder
	leaver Leaver
}

func (d *driver) Enter(n syntax.Node, ctl *syntax.Control) {
	if err := d.f.Visit(n, ctl); err != nil {
		d.f.RecordError(visitError(n, err))
	}
}

func (d *driver) Leave(n syntax.Node, ctl *syntax.Control) {
	if d.leaver == nil {
		return
	}
	if err := d.leaver.Leave(n, ctl); err != nil {
		d.f.RecordError(visitError(n, err))
	}
}

// Drive runs f over the tree rooted at root in one depth-first pass, then
// calls Finish if f implements Finisher. The returned Control tells the
// caller whether f stopped early.
//
// Panics are not recovered here. A panicking finder is an unrecoverable
// fault and is handled by the caller, which discards that finder's output
// for the file.
func Drive(ctx context.Context, f Finder, root syntax.Node) *syntax.Control {
	ctl := &syntax.Control{}
	d := &driver{f: f}
	if l, ok := f.(Leaver); ok {
		d.leaver = l
	}
	syntax.Walk(root, d, ctl)
	if fin, ok := f.(Finisher); ok {
		if err := fin.Finish(ctx); err != nil {
			f.RecordError(err)
		}
	}
	return ctl
}
