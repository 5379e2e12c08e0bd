package sift

import (
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/jward/sift/internal/cache"
	"github.com/jward/sift/internal/finder"
	"github.com/jward/sift/internal/report"
	"github.com/jward/sift/internal/syntax"
)

// DefaultTypeTimeout bounds each type query a finder makes.
const DefaultTypeTimeout = 2 * time.Second

// Engine runs a set of finder factories over a corpus. An Engine holds no
// per-run state and may be reused; runs sharing factories must not overlap,
// since summaries are computed from the factories' progress counters.
type Engine struct {
	factories          []finder.Factory
	parser             syntax.Parser
	cache              *cache.Cache
	workers            int
	logger             hclog.Logger
	status             StatusFunc
	resolver           syntax.Resolver
	typeTimeout        time.Duration
	contentFingerprint bool
	languages          map[string]bool // nil means all languages

	statusMu sync.Mutex
}

// Option configures an Engine.
type Option func(*Engine)

// WithFactories adds finder factories. Names must be unique across all
// factories of an Engine.
func WithFactories(factories ...finder.Factory) Option {
	return func(e *Engine) {
		e.factories = append(e.factories, factories...)
	}
}

// WithParser sets the parser. The default is a tolerant tree-sitter parser.
func WithParser(p syntax.Parser) Option {
	return func(e *Engine) {
		e.parser = p
	}
}

// WithCache sets the result cache. The default never hits.
func WithCache(c *cache.Cache) Option {
	return func(e *Engine) {
		e.cache = c
	}
}

// WithWorkers sets the number of files processed at once. Values below one
// mean one worker per CPU.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		e.workers = n
	}
}

// WithLogger sets the engine's logger.
func WithLogger(l hclog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithStatus registers a callback for file and finder events.
func WithStatus(fn StatusFunc) Option {
	return func(e *Engine) {
		e.status = fn
	}
}

// WithResolver sets the type resolver finders consult through TypeOf.
func WithResolver(r syntax.Resolver) Option {
	return func(e *Engine) {
		e.resolver = r
	}
}

// WithTypeTimeout bounds each type query. Queries that take longer resolve
// to syntax.Unknown.
func WithTypeTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.typeTimeout = d
	}
}

// WithContentFingerprint makes cache entries depend on the content of each
// project as well as on the finder fingerprint. The corpus is read in full
// before any file is processed.
func WithContentFingerprint(on bool) Option {
	return func(e *Engine) {
		e.contentFingerprint = on
	}
}

// WithLanguages restricts which languages the Engine processes.
func WithLanguages(languages ...string) Option {
	return func(e *Engine) {
		if len(languages) == 0 {
			e.languages = nil
			return
		}
		e.languages = make(map[string]bool, len(languages))
		for _, lang := range languages {
			e.languages[lang] = true
		}
	}
}

// New creates an Engine.
func New(opts ...Option) (*Engine, error) {
	e := &Engine{
		parser:      syntax.NewSitterParser(),
		cache:       cache.New(cache.Nop{}),
		workers:     runtime.NumCPU(),
		logger:      hclog.NewNullLogger(),
		typeTimeout: DefaultTypeTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.workers < 1 {
		e.workers = runtime.NumCPU()
	}

	if len(e.factories) == 0 {
		return nil, fmt.Errorf("sift: no finders configured")
	}
	seen := make(map[string]bool, len(e.factories))
	for _, f := range e.factories {
		name := f.Identity().Name
		if name == "" {
			return nil, fmt.Errorf("sift: finder with empty name")
		}
		if seen[name] {
			return nil, fmt.Errorf("sift: duplicate finder %q", name)
		}
		seen[name] = true
	}
	return e, nil
}

// Factories returns the configured factories in registration order.
func (e *Engine) Factories() []finder.Factory {
	return e.factories
}

// Result is the outcome of one run.
type Result struct {
	RunID string
	// Report holds findings under [project, finder].
	Report    *report.Report
	Summaries []Summary
	Files     FileStats
}

// Summary describes one finder's part in a run.
type Summary struct {
	Finder string
	// Expected and Finished count the files this finder was scheduled on and
	// completed during the run. Files of projects served from the cache are
	// in neither.
	Expected    int64
	Finished    int64
	NotFinished int64
	// Found is the number of matches, including count-only matches.
	Found int
	// Cached is the number of projects served from the cache.
	Cached int
	Errors []error
}

// FileStats counts files by their final state.
type FileStats struct {
	Provided int
	Done     int
	Failed   int
	Skipped  int
}

// FileState is a file's position in the pipeline.
type FileState int

const (
	FilePending FileState = iota
	FileParsed
	FileFinding
	FileDone
	FileFailed
	// FileSkipped marks files of unsupported or filtered-out languages.
	FileSkipped
)

var fileStateNames = [...]string{"pending", "parsed", "finding", "done", "failed", "skipped"}

func (s FileState) String() string {
	if int(s) < len(fileStateNames) {
		return fileStateNames[s]
	}
	return fmt.Sprintf("FileState(%d)", int(s))
}

// EventKind classifies status events.
type EventKind int

const (
	// EventFileDone: every applicable finder ran on the file.
	EventFileDone EventKind = iota
	// EventFileFailed: the file could not be parsed. Err holds the reason.
	EventFileFailed
	// EventFileSkipped: no parser or language filter admits the file.
	EventFileSkipped
	// EventFinderFault: a finder panicked on the file. Err is a *FaultError.
	EventFinderFault
	// EventCacheHit: a project's results for a finder came from the cache.
	EventCacheHit
	// EventCacheStale: a cached entry was found but no longer matches.
	EventCacheStale
)

var eventNames = [...]string{"file_done", "file_failed", "file_skipped", "finder_fault", "cache_hit", "cache_stale"}

func (k EventKind) String() string {
	if int(k) < len(eventNames) {
		return eventNames[k]
	}
	return fmt.Sprintf("EventKind(%d)", int(k))
}

// Event is delivered to the StatusFunc. Finder is empty for file events;
// Path is empty for cache events.
type Event struct {
	Kind    EventKind
	Project string
	Path    string
	Finder  string
	State   FileState
	Err     error
}

// StatusFunc receives status events. Calls are serialized.
type StatusFunc func(Event)

func (e *Engine) emit(ev Event) {
	if e.status == nil {
		return
	}
	e.statusMu.Lock()
	defer e.statusMu.Unlock()
	e.status(ev)
}

// FaultError is a panic recovered from a finder. The finder's output for
// that file is discarded.
type FaultError struct {
	Project string
	Path    string
	Finder  string
	Value   any
	Stack   []byte
}

func (e *FaultError) Error() string {
	return fmt.Sprintf("sift: finder %s panicked on %s: %v", e.Finder, e.Path, e.Value)
}
