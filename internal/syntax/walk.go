package syntax

// Control is threaded through a traversal so a visitor can end it early.
// One Control belongs to one visitor over one file; it is not safe for
// concurrent use.
type Control struct {
	stopped bool
	skip    bool
	visited int
}

// Stop abandons the rest of the traversal. No further Enter or Leave calls
// are made once the current callback returns.
func (c *Control) Stop() { c.stopped = true }

// Stopped reports whether Stop was called.
func (c *Control) Stopped() bool { return c.stopped }

// SkipChildren skips the children of the node currently being entered.
// Leave is still called for that node.
func (c *Control) SkipChildren() { c.skip = true }

// Visited returns the number of nodes entered so far.
func (c *Control) Visited() int { return c.visited }

// Visitor receives nodes in depth-first pre-order (Enter) and post-order
// (Leave).
type Visitor interface {
	Enter(n Node, ctl *Control)
	Leave(n Node, ctl *Control)
}

// VisitorFuncs adapts plain functions to Visitor. Either may be nil.
type VisitorFuncs struct {
	EnterFn func(n Node, ctl *Control)
	LeaveFn func(n Node, ctl *Control)
}

func (f VisitorFuncs) Enter(n Node, ctl *Control) {
	if f.EnterFn != nil {
		f.EnterFn(n, ctl)
	}
}

func (f VisitorFuncs) Leave(n Node, ctl *Control) {
	if f.LeaveFn != nil {
		f.LeaveFn(n, ctl)
	}
}

// Walk traverses the tree rooted at n. The control is checked after every
// callback; once stopped, the remainder of the traversal is abandoned.
func Walk(n Node, v Visitor, ctl *Control) {
	if n == nil {
		return
	}
	if ctl == nil {
		ctl = &Control{}
	}
	walk(n, v, ctl)
}

func walk(n Node, v Visitor, ctl *Control) bool {
	if ctl.stopped {
		return false
	}
	ctl.visited++
	v.Enter(n, ctl)
	if ctl.stopped {
		return false
	}
	if ctl.skip {
		ctl.skip = false
	} else {
		for _, child := range n.Children() {
			if !walk(child, v, ctl) {
				return false
			}
		}
	}
	v.Leave(n, ctl)
	return !ctl.stopped
}

// Collect returns the nodes of the tree in pre-order, optionally filtered
// to the given categories.
func Collect(root Node, cats ...Category) []Node {
	want := make(map[Category]bool, len(cats))
	for _, c := range cats {
		want[c] = true
	}
	var out []Node
	Walk(root, VisitorFuncs{EnterFn: func(n Node, _ *Control) {
		if len(want) == 0 || want[n.Category()] {
			out = append(out, n)
		}
	}}, nil)
	return out
}
