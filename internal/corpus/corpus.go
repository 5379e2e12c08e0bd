// Package corpus supplies the source files a run analyses. A Provider hands
// out SourceUnits one at a time; the engine never asks for more than it can
// process and never revisits a unit.
package corpus

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrExhausted is returned by Next when the provider has no more units.
var ErrExhausted = errors.New("corpus: exhausted")

// ReadError is returned by Next when a listed file cannot be read. The
// provider has moved past the file and enumeration can continue.
type ReadError struct {
	Project string
	Path    string
	Err     error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("corpus: read %s: %v", e.Path, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

// SourceUnit is one file of one project.
type SourceUnit struct {
	Project string
	Path    string
	Content []byte
}

// Provider streams source units. HasNext and Next are called from a single
// goroutine; FilesProvided may be read from any goroutine.
type Provider interface {
	HasNext() bool
	Next(ctx context.Context) (SourceUnit, error)
	FilesProvided() int
}

// Slice is an in-memory Provider.
type Slice struct {
	mu    sync.Mutex
	units []SourceUnit
	pos   int
}

var _ Provider = (*Slice)(nil)

// NewSlice returns a provider over units, in order.
func NewSlice(units ...SourceUnit) *Slice {
	return &Slice{units: units}
}

func (s *Slice) HasNext() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pos < len(s.units)
}

func (s *Slice) Next(ctx context.Context) (SourceUnit, error) {
	if err := ctx.Err(); err != nil {
		return SourceUnit{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pos >= len(s.units) {
		return SourceUnit{}, ErrExhausted
	}
	u := s.units[s.pos]
	s.pos++
	return u, nil
}

func (s *Slice) FilesProvided() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pos
}

// Drain reads every remaining unit from p. It stops at the first error,
// including a *ReadError.
func Drain(ctx context.Context, p Provider) ([]SourceUnit, error) {
	var out []SourceUnit
	for p.HasNext() {
		u, err := p.Next(ctx)
		if errors.Is(err, ErrExhausted) {
			break
		}
		if err != nil {
			return out, err
		}
		out = append(out, u)
	}
	return out, nil
}
