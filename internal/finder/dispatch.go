package finder

import "github.com/jward/sift/internal/syntax"

// Handler handles one node routed to it by category.
type Handler func(n syntax.Node, ctl *syntax.Control) error

// CategoryFinder routes every node to the handler registered for its
// category, so one implementation covers all concrete node kinds of that
// category. Embed it and register handlers in the constructor:
//
//	f := &literalFinder{CategoryFinder: finder.NewCategoryFinder(file, name, false)}
//	f.On(syntax.CategoryLiteral, f.literal)
type CategoryFinder struct {
	Base

	handlers map[syntax.Category]Handler
	any      Handler
	leave    map[syntax.Category]Handler
}

// NewCategoryFinder returns a CategoryFinder with no handlers.
func NewCategoryFinder(file File, name string, countOnly bool) *CategoryFinder {
	return &CategoryFinder{
		Base:     NewBase(file, name, countOnly),
		handlers: make(map[syntax.Category]Handler),
	}
}

// On registers h for nodes of category c, replacing any earlier handler.
func (f *CategoryFinder) On(c syntax.Category, h Handler) *CategoryFinder {
	f.handlers[c] = h
	return f
}

// OnAny registers a catch-all handler, called for every node whose category
// has no handler of its own.
func (f *CategoryFinder) OnAny(h Handler) *CategoryFinder {
	f.any = h
	return f
}

// OnLeave registers a post-order handler for category c.
func (f *CategoryFinder) OnLeave(c syntax.Category, h Handler) *CategoryFinder {
	if f.leave == nil {
		f.leave = make(map[syntax.Category]Handler)
	}
	f.leave[c] = h
	return f
}

// Interested reports whether any handler is registered for c.
func (f *CategoryFinder) Interested(c syntax.Category) bool {
	_, ok := f.handlers[c]
	return ok || f.any != nil
}

func (f *CategoryFinder) Visit(n syntax.Node, ctl *syntax.Control) error {
	if h, ok := f.handlers[n.Category()]; ok {
		return h(n, ctl)
	}
	if f.any != nil {
		return f.any(n, ctl)
	}
	return nil
}

func (f *CategoryFinder) Leave(n syntax.Node, ctl *syntax.Control) error {
	if h, ok := f.leave[n.Category()]; ok {
		return h(n, ctl)
	}
	return nil
}
