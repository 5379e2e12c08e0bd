// Package cache persists each finder's findings per project, keyed by the
// finder's fingerprint, so unchanged finders are not re-run.
//
// Storage is pluggable through Backend: SQLite (SQLiteBackend), a directory
// of YAML files (DirBackend) or nothing at all (Nop).
package cache

import (
	"errors"
	"fmt"
	"time"

	"github.com/jward/sift/internal/finder"
)

// ErrMiss means no entry is stored for the key.
var ErrMiss = errors.New("cache: miss")

// Key identifies one cache slot. Corpus is the project's content
// fingerprint; empty means content is not part of the key.
type Key struct {
	Project  string
	Identity finder.Identity
	Corpus   string
}

func (k Key) String() string {
	return k.Project + "/" + k.Identity.Name
}

// Entry is one persisted slot.
type Entry struct {
	Project     string           `yaml:"project"`
	Finder      string           `yaml:"finder"`
	Fingerprint string           `yaml:"fingerprint"`
	Corpus      string           `yaml:"corpus,omitempty"`
	RunID       string           `yaml:"run_id,omitempty"`
	WrittenAt   time.Time        `yaml:"written_at"`
	Findings    []finder.Finding `yaml:"findings"`
}

// Listing summarises a stored entry without its findings.
type Listing struct {
	Project     string
	Finder      string
	Fingerprint string
	Corpus      string
	RunID       string
	WrittenAt   time.Time
	Findings    int
}

// StaleError is returned by Read when an entry exists but was written by a
// different version of the finder or over different content. Stored is the
// discarded entry.
type StaleError struct {
	Key    Key
	Stored *Entry
}

func (e *StaleError) Error() string {
	if e.Stored.Fingerprint != e.Key.Identity.Fingerprint {
		return fmt.Sprintf("cache: stale entry for %s: fingerprint %s, want %s",
			e.Key, short(e.Stored.Fingerprint), short(e.Key.Identity.Fingerprint))
	}
	return fmt.Sprintf("cache: stale entry for %s: corpus %s, want %s",
		e.Key, short(e.Stored.Corpus), short(e.Key.Corpus))
}

func short(s string) string {
	if len(s) > 12 {
		return s[:12]
	}
	if s == "" {
		return "(none)"
	}
	return s
}

// Backend stores entries. Load returns (nil, nil) when nothing is stored.
type Backend interface {
	Load(project, finder string) (*Entry, error)
	Save(e *Entry) error
	Entries() ([]Listing, error)
	// Clear removes a project's entries, or all entries when project is
	// empty, and returns how many were removed.
	Clear(project string) (int, error)
	Close() error
}

// Cache validates entries against keys on top of a Backend.
type Cache struct {
	backend Backend
	now     func() time.Time
}

// New wraps a backend.
func New(b Backend) *Cache {
	return &Cache{backend: b, now: time.Now}
}

// Backend returns the underlying backend.
func (c *Cache) Backend() Backend { return c.backend }

// Close closes the backend.
func (c *Cache) Close() error { return c.backend.Close() }

// Read returns the stored findings for key. It returns ErrMiss when nothing
// is stored and a *StaleError when the stored entry does not match key.
// Other errors come from the backend.
func (c *Cache) Read(key Key) ([]finder.Finding, error) {
	e, err := c.backend.Load(key.Project, key.Identity.Name)
	if err != nil {
		return nil, fmt.Errorf("cache: read %s: %w", key, err)
	}
	if e == nil {
		return nil, ErrMiss
	}
	if e.Fingerprint != key.Identity.Fingerprint || e.Corpus != key.Corpus {
		return nil, &StaleError{Key: key, Stored: e}
	}
	if e.Findings == nil {
		return []finder.Finding{}, nil
	}
	return e.Findings, nil
}

// Write stores findings for key, replacing any previous entry.
func (c *Cache) Write(key Key, runID string, findings []finder.Finding) error {
	e := &Entry{
		Project:     key.Project,
		Finder:      key.Identity.Name,
		Fingerprint: key.Identity.Fingerprint,
		Corpus:      key.Corpus,
		RunID:       runID,
		WrittenAt:   c.now().UTC(),
		Findings:    findings,
	}
	if err := c.backend.Save(e); err != nil {
		return fmt.Errorf("cache: write %s: %w", key, err)
	}
	return nil
}

// Nop is a Backend that stores nothing; every read misses.
type Nop struct{}

func (Nop) Load(string, string) (*Entry, error) { return nil, nil }
func (Nop) Save(*Entry) error                   { return nil }
func (Nop) Entries() ([]Listing, error)         { return nil, nil }
func (Nop) Clear(string) (int, error)           { return 0, nil }
func (Nop) Close() error                        { return nil }

func listingOf(e *Entry) Listing {
	return Listing{
		Project:     e.Project,
		Finder:      e.Finder,
		Fingerprint: e.Fingerprint,
		Corpus:      e.Corpus,
		RunID:       e.RunID,
		WrittenAt:   e.WrittenAt,
		Findings:    len(e.Findings),
	}
}
