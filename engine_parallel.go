package sift

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"

	"github.com/jward/sift/internal/cache"
	"github.com/jward/sift/internal/corpus"
	"github.com/jward/sift/internal/finder"
	"github.com/jward/sift/internal/report"
	"github.com/jward/sift/internal/syntax"
)

// slotKey names one (project, finder) cache slot.
type slotKey struct {
	project string
	finder  string
}

// slot is the run's state for one (project, finder). The cache is consulted
// once per slot; the remaining fields are owned by the collector.
type slot struct {
	project string
	factory finder.Factory
	key     cache.Key

	once   sync.Once
	hit    bool
	cached []finder.Finding
	stale  *cache.Entry

	computed   bool
	incomplete bool
	countOnly  bool
	findings   []finder.Finding
	count      int
	errs       []error
}

// finderOutput is one finder's contribution for one file.
type finderOutput struct {
	slot     *slot
	findings []finder.Finding
	count    int
	errs     []error
	fault    *FaultError
}

// workItem is one unit handed to a worker. A non-nil err means the unit
// could not be read; the file fails without being parsed.
type workItem struct {
	unit corpus.SourceUnit
	err  error
}

// fileResult is what a worker hands the collector for one file.
type fileResult struct {
	unit    corpus.SourceUnit
	state   FileState
	err     error
	outputs []finderOutput
}

// run holds the state of one Run call.
type run struct {
	e      *Engine
	id     string
	log    hclog.Logger
	corpus map[string]string // project -> content fingerprint

	mu    sync.Mutex
	slots map[slotKey]*slot

	// Collector-owned.
	failedProjects map[string]bool
	files          FileStats
}

// Run analyses every unit p provides:
//
//	Feed (serial):     units are read from p and handed to the workers.
//	Find (parallel):   each worker parses a file and runs every applicable
//	                   finder over it, one Drive pass each.
//	Collect (serial):  a single collector buckets the results per
//	                   (project, finder); after the workers drain, cache
//	                   writes and report assembly happen in order.
//
// Unreadable files, parse failures, finder errors and finder panics never
// fail the run. Other provider errors and ctx cancellation stop feeding,
// wait for in-flight files and are returned; nothing is written to the cache in that case.
func (e *Engine) Run(ctx context.Context, p corpus.Provider) (*Result, error) {
	start := time.Now()
	r := &run{
		e:              e,
		id:             uuid.NewString(),
		slots:          make(map[slotKey]*slot),
		failedProjects: make(map[string]bool),
	}
	r.log = e.logger.With("run_id", r.id)

	before := make([][2]int64, len(e.factories))
	for i, f := range e.factories {
		before[i] = [2]int64{f.Progress().Expected(), f.Progress().Finished()}
	}

	var items []workItem
	if e.contentFingerprint {
		read, fps, err := fingerprintCorpus(ctx, p)
		if err != nil {
			return nil, err
		}
		r.corpus = fps
		items = read
	}

	// ---- Find: worker pool ----
	work := make(chan workItem)
	results := make(chan fileResult, e.workers)

	var wg sync.WaitGroup
	for range e.workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range work {
				results <- r.processFile(ctx, item)
			}
		}()
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	// ---- Feed ----
	feedErr := make(chan error, 1)
	go func() {
		defer close(work)
		if items != nil {
			feedErr <- feedItems(ctx, items, work)
			return
		}
		feedErr <- feed(ctx, p, work)
	}()

	// ---- Collect ----
	for res := range results {
		r.collect(res)
	}
	r.files.Provided = p.FilesProvided()

	if err := <-feedErr; err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rep, err := r.finish()
	if err != nil {
		return nil, err
	}
	res := &Result{
		RunID:     r.id,
		Report:    rep,
		Summaries: r.summaries(before),
		Files:     r.files,
	}
	r.log.Info("run complete",
		"files", r.files.Provided, "failed", r.files.Failed, "skipped", r.files.Skipped,
		"findings", rep.Len(), "elapsed", time.Since(start).Round(time.Millisecond))
	return res, nil
}

// next reads one item from p. ok is false once p is exhausted. A
// *corpus.ReadError becomes a failed item rather than an error.
func next(ctx context.Context, p corpus.Provider) (item workItem, ok bool, err error) {
	u, err := p.Next(ctx)
	var readErr *corpus.ReadError
	switch {
	case err == nil:
		return workItem{unit: u}, true, nil
	case errors.Is(err, corpus.ErrExhausted):
		return workItem{}, false, nil
	case errors.As(err, &readErr) && ctx.Err() == nil:
		return workItem{unit: corpus.SourceUnit{Project: readErr.Project, Path: readErr.Path}, err: readErr}, true, nil
	case ctx.Err() != nil:
		return workItem{}, false, ctx.Err()
	default:
		return workItem{}, false, fmt.Errorf("sift: reading corpus: %w", err)
	}
}

// feed copies units from p to work until p is exhausted, fails or ctx is
// cancelled.
func feed(ctx context.Context, p corpus.Provider, work chan<- workItem) error {
	for p.HasNext() {
		item, ok, err := next(ctx, p)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		select {
		case work <- item:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// feedItems copies already read items to work.
func feedItems(ctx context.Context, items []workItem, work chan<- workItem) error {
	for _, item := range items {
		select {
		case work <- item:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// fingerprintCorpus reads the whole corpus and fingerprints each project.
// Unreadable files are kept as failed items and left out of the sums.
func fingerprintCorpus(ctx context.Context, p corpus.Provider) ([]workItem, map[string]string, error) {
	items := []workItem{}
	fp := corpus.NewFingerprinter()
	for p.HasNext() {
		item, ok, err := next(ctx, p)
		if err != nil {
			return nil, nil, err
		}
		if !ok {
			break
		}
		items = append(items, item)
		if item.err != nil {
			continue
		}
		if err := fp.Add(item.unit); err != nil {
			return nil, nil, fmt.Errorf("sift: fingerprinting %s: %w", item.unit.Path, err)
		}
	}
	sums := make(map[string]string)
	for _, project := range fp.Projects() {
		sum, err := fp.Sum(project)
		if err != nil {
			return nil, nil, fmt.Errorf("sift: fingerprinting project %s: %w", project, err)
		}
		sums[project] = sum
	}
	return items, sums, nil
}

// admits reports whether the language filter lets lang through. Unknown
// languages are left to the parser.
func (e *Engine) admits(lang string) bool {
	return e.languages == nil || lang == "" || e.languages[lang]
}

// processFile takes one unit from Pending to Done, Failed or Skipped.
func (r *run) processFile(ctx context.Context, item workItem) fileResult {
	u := item.unit
	res := fileResult{unit: u, state: FilePending}
	if item.err != nil {
		res.state = FileFailed
		res.err = item.err
		return res
	}

	if lang, ok := syntax.LanguageForFile(u.Path); ok && !r.e.admits(lang) {
		res.state = FileSkipped
		return res
	}

	tree, err := r.e.parser.Parse(ctx, u.Path, u.Content)
	if err != nil {
		if errors.Is(err, syntax.ErrUnsupportedLanguage) {
			res.state = FileSkipped
			return res
		}
		res.state = FileFailed
		res.err = err
		return res
	}
	defer tree.Close()
	if r.e.languages != nil && !r.e.languages[tree.Language] {
		res.state = FileSkipped
		return res
	}
	res.state = FileParsed

	file := finder.File{
		Project:     u.Project,
		Path:        u.Path,
		Language:    tree.Language,
		Resolver:    r.e.resolver,
		TypeTimeout: r.e.typeTimeout,
	}

	res.state = FileFinding
	for _, f := range r.e.factories {
		if !f.AppliesTo(tree.Language) {
			continue
		}
		s := r.slot(u.Project, f)
		r.lookup(s)
		if s.hit {
			continue
		}

		f.Progress().Schedule()
		fnd := f.NewFinder(file)
		out := finderOutput{slot: s}
		if fault := driveSafely(ctx, fnd, tree.Root); fault != nil {
			fault.Project, fault.Path, fault.Finder = u.Project, u.Path, f.Identity().Name
			out.fault = fault
		} else {
			out.findings = fnd.FoundTokens()
			out.count = fnd.FoundCount()
			out.errs = fnd.Errors()
			f.Progress().Complete()
		}
		res.outputs = append(res.outputs, out)
	}
	res.state = FileDone
	return res
}

// driveSafely runs f over root and turns a panic into a FaultError.
func driveSafely(ctx context.Context, f finder.Finder, root syntax.Node) (fault *FaultError) {
	defer func() {
		if v := recover(); v != nil {
			fault = &FaultError{Value: v, Stack: debug.Stack()}
		}
	}()
	finder.Drive(ctx, f, root)
	return nil
}

// slot returns the slot for (project, f), creating it on first use.
func (r *run) slot(project string, f finder.Factory) *slot {
	id := f.Identity()
	k := slotKey{project: project, finder: id.Name}

	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.slots[k]
	if !ok {
		s = &slot{
			project: project,
			factory: f,
			key:     cache.Key{Project: project, Identity: id, Corpus: r.corpus[project]},
		}
		r.slots[k] = s
	}
	return s
}

// lookup consults the cache for s exactly once. Stale entries and backend
// failures are misses.
func (r *run) lookup(s *slot) {
	s.once.Do(func() {
		found, err := r.e.cache.Read(s.key)
		var stale *cache.StaleError
		switch {
		case err == nil:
			s.hit = true
			s.cached = found
			r.log.Debug("cache hit", "project", s.project, "finder", s.key.Identity.Name, "findings", len(found))
			r.e.emit(Event{Kind: EventCacheHit, Project: s.project, Finder: s.key.Identity.Name})
		case errors.Is(err, cache.ErrMiss):
		case errors.As(err, &stale):
			s.stale = stale.Stored
			r.log.Warn("discarding stale cache entry", "project", s.project, "finder", s.key.Identity.Name, "reason", err)
			r.e.emit(Event{Kind: EventCacheStale, Project: s.project, Finder: s.key.Identity.Name, Err: err})
		default:
			r.log.Warn("cache read failed, recomputing", "project", s.project, "finder", s.key.Identity.Name, "error", err)
		}
	})
}

// collect folds one file's result into the run. Only the collector
// goroutine calls it.
func (r *run) collect(res fileResult) {
	u := res.unit
	switch res.state {
	case FileFailed:
		r.files.Failed++
		r.failedProjects[u.Project] = true
		r.log.Warn("file failed", "project", u.Project, "path", u.Path, "error", res.err)
		r.e.emit(Event{Kind: EventFileFailed, Project: u.Project, Path: u.Path, State: res.state, Err: res.err})
		return
	case FileSkipped:
		r.files.Skipped++
		r.log.Trace("skipped", "project", u.Project, "path", u.Path)
		r.e.emit(Event{Kind: EventFileSkipped, Project: u.Project, Path: u.Path, State: res.state})
		return
	}

	for _, out := range res.outputs {
		s := out.slot
		s.computed = true
		if out.fault != nil {
			s.incomplete = true
			s.errs = append(s.errs, out.fault)
			r.log.Error("finder panicked", "project", u.Project, "path", u.Path, "finder", out.fault.Finder, "panic", out.fault.Value)
			r.e.emit(Event{Kind: EventFinderFault, Project: u.Project, Path: u.Path, Finder: out.fault.Finder, State: res.state, Err: out.fault})
			continue
		}
		if out.findings == nil {
			s.countOnly = true
		}
		s.findings = append(s.findings, out.findings...)
		s.count += out.count
		for _, err := range out.errs {
			s.errs = append(s.errs, fmt.Errorf("%s: %w", u.Path, err))
		}
	}
	r.files.Done++
	r.e.emit(Event{Kind: EventFileDone, Project: u.Project, Path: u.Path, State: res.state})
}

// sortedSlots returns the slots ordered by project, then finder.
func (r *run) sortedSlots() []*slot {
	out := make([]*slot, 0, len(r.slots))
	for _, s := range r.slots {
		out = append(out, s)
	}
	slices.SortFunc(out, func(a, b *slot) int {
		if c := strings.Compare(a.project, b.project); c != 0 {
			return c
		}
		return strings.Compare(a.key.Identity.Name, b.key.Identity.Name)
	})
	return out
}

// finish writes computed slots to the cache, one write per slot, and
// assembles the report.
func (r *run) finish() (*report.Report, error) {
	rep := report.New()
	for _, s := range r.sortedSlots() {
		name := s.key.Identity.Name
		var findings []finder.Finding
		switch {
		case s.hit:
			findings = s.cached
		case s.computed:
			findings = finder.Normalize(s.findings)
			r.store(s, findings)
		default:
			continue
		}
		if err := rep.PutPath([]string{s.project, name}, report.Leaf(findings)); err != nil {
			return nil, fmt.Errorf("sift: report %s/%s: %w", s.project, name, err)
		}
	}
	return rep, nil
}

// store writes a computed slot unless its data is incomplete.
func (r *run) store(s *slot, findings []finder.Finding) {
	name := s.key.Identity.Name
	switch {
	case s.incomplete:
		r.log.Debug("not caching, finder panicked", "project", s.project, "finder", name)
		return
	case r.failedProjects[s.project]:
		r.log.Debug("not caching, project has parse failures", "project", s.project, "finder", name)
		return
	case s.countOnly:
		return
	}

	if s.stale != nil && r.log.IsDebug() {
		if d := cache.Diff(name, s.stale.Findings, findings); d != "" {
			r.log.Debug("findings changed since cached run", "project", s.project, "finder", name, "diff", d)
		}
	}
	if err := r.e.cache.Write(s.key, r.id, findings); err != nil {
		r.log.Warn("cache write failed", "project", s.project, "finder", name, "error", err)
	}
}

// summaries builds one Summary per factory from the run's slots and the
// progress counters' movement since before.
func (r *run) summaries(before [][2]int64) []Summary {
	out := make([]Summary, len(r.e.factories))
	index := make(map[string]int, len(r.e.factories))
	for i, f := range r.e.factories {
		p := f.Progress()
		out[i] = Summary{
			Finder:   f.Identity().Name,
			Expected: p.Expected() - before[i][0],
			Finished: p.Finished() - before[i][1],
		}
		out[i].NotFinished = max(out[i].Expected-out[i].Finished, 0)
		index[out[i].Finder] = i
	}
	for _, s := range r.sortedSlots() {
		sum := &out[index[s.key.Identity.Name]]
		if s.hit {
			sum.Cached++
			sum.Found += len(s.cached)
			continue
		}
		sum.Found += s.count
		sum.Errors = append(sum.Errors, s.errs...)
	}
	return out
}
