package syntax

import (
	"context"
	"time"
)

// Unknown is the type name reported when resolution fails or times out.
const Unknown = "unknown"

// DefaultTypeTimeout bounds a single type-resolution query.
const DefaultTypeTimeout = 2 * time.Second

// Resolver answers symbol-type questions about nodes. It is supplied by the
// caller; the engine does no type inference of its own.
type Resolver interface {
	ResolveType(ctx context.Context, n Node) (string, error)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(ctx context.Context, n Node) (string, error)

func (f ResolverFunc) ResolveType(ctx context.Context, n Node) (string, error) {
	return f(ctx, n)
}

// ResolveType asks r for the type of n, waiting at most timeout. A nil
// resolver, an error, an empty answer or a timeout all yield Unknown so the
// caller can proceed conservatively.
func ResolveType(ctx context.Context, r Resolver, n Node, timeout time.Duration) string {
	if r == nil || n == nil {
		return Unknown
	}
	if timeout <= 0 {
		timeout = DefaultTypeTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type answer struct {
		typ string
		err error
	}
	ch := make(chan answer, 1)
	go func() {
		typ, err := r.ResolveType(ctx, n)
		ch <- answer{typ: typ, err: err}
	}()

	select {
	case <-ctx.Done():
		return Unknown
	case a := <-ch:
		if a.err != nil || a.typ == "" {
			return Unknown
		}
		return a.typ
	}
}
