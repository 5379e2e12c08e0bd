package finder

import (
	"crypto/sha256"
	"fmt"
	"sync/atomic"
)

// Identity names a factory and fingerprints its matching logic. The
// fingerprint is the cache invalidation key: changing a finder's logic must
// change its fingerprint.
type Identity struct {
	Name        string `json:"name" yaml:"name"`
	Fingerprint string `json:"fingerprint" yaml:"fingerprint"`
}

func (id Identity) String() string {
	fp := id.Fingerprint
	if len(fp) > 12 {
		fp = fp[:12]
	}
	return id.Name + "@" + fp
}

// Fingerprint derives a fingerprint from the parts that define a finder's
// logic (name, version, script source, options). Parts are length-prefixed
// so ("ab", "c") and ("a", "bc") differ.
func Fingerprint(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		fmt.Fprintf(h, "%d:%s\n", len(p), p)
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}

// Progress counts files scheduled for and completed by a factory's finders.
// Written by engine workers, read by status reporters; no lock needed.
type Progress struct {
	expected atomic.Int64
	finished atomic.Int64
}

func (p *Progress) Schedule() { p.expected.Add(1) }
func (p *Progress) Complete() { p.finished.Add(1) }

func (p *Progress) Expected() int64 { return p.expected.Load() }
func (p *Progress) Finished() int64 { return p.finished.Load() }

// NotFinished is the number of scheduled files that have not completed.
func (p *Progress) NotFinished() int64 {
	n := p.Expected() - p.Finished()
	if n < 0 {
		return 0
	}
	return n
}

// Factory manufactures fresh, file-bound Finders. Apart from its progress
// counters a factory is stateless and may be shared by all workers.
type Factory interface {
	Identity() Identity
	NewFinder(file File) Finder
	Progress() *Progress
	AppliesTo(language string) bool
}

// Descriptor implements every Factory method except NewFinder and is meant
// to be embedded.
type Descriptor struct {
	id        Identity
	languages map[string]bool // nil means all languages
	progress  Progress
}

// NewDescriptor builds a descriptor. version is folded into the fingerprint
// together with name; bump it whenever the finder's logic changes.
func NewDescriptor(name, version string, languages ...string) *Descriptor {
	d := &Descriptor{id: Identity{Name: name, Fingerprint: Fingerprint(name, version)}}
	if len(languages) > 0 {
		d.languages = make(map[string]bool, len(languages))
		for _, l := range languages {
			d.languages[l] = true
		}
	}
	return d
}

// NewDescriptorWithIdentity builds a descriptor with a precomputed identity.
func NewDescriptorWithIdentity(id Identity, languages ...string) *Descriptor {
	d := NewDescriptor(id.Name, "", languages...)
	d.id = id
	return d
}

func (d *Descriptor) Identity() Identity { return d.id }

func (d *Descriptor) Progress() *Progress { return &d.progress }

func (d *Descriptor) AppliesTo(language string) bool {
	return d.languages == nil || d.languages[language]
}

// FuncFactory is a Factory whose finders come from a constructor function.
type FuncFactory struct {
	*Descriptor
	build func(file File) Finder
}

// Compile-time check: *FuncFactory satisfies Factory.
var _ Factory = (*FuncFactory)(nil)

// NewFuncFactory wraps a constructor. The constructor must return a new
// Finder on every call.
func NewFuncFactory(d *Descriptor, build func(file File) Finder) *FuncFactory {
	return &FuncFactory{Descriptor: d, build: build}
}

func (f *FuncFactory) NewFinder(file File) Finder { return f.build(file) }
