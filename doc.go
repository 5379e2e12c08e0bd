// Package sift runs pluggable pattern detectors ("finders") over the syntax
// trees of a corpus of source files and aggregates their matches into a
// hierarchical report.
//
// # Pipeline
//
// A run reads source units from a [Provider], parses each file once and
// drives every applicable finder over the tree in its own depth-first pass.
// Files are processed by a bounded worker pool; a single collector gathers
// the results. Per-file state moves Pending → Parsed → Finding → Done, or
// to Failed when the file cannot be parsed. Neither parse failures nor
// misbehaving finders abort the run.
//
// # Usage
//
//	b, err := cache.OpenSQLite(".sift/cache.db")
//	if err != nil { ... }
//	c := cache.New(b)
//	defer c.Close()
//
//	e, err := sift.New(
//		sift.WithFactories(finders.All(finders.DefaultOptions())...),
//		sift.WithCache(c),
//	)
//	if err != nil { ... }
//
//	src, err := corpus.NewDir("path/to/project")
//	if err != nil { ... }
//	res, err := e.Run(ctx, src)
//	leaf, _ := res.Report.GetPath([]string{"example.com/app", "todo-comment"})
//
// # Caching
//
// Findings are cached per (project, finder). A finder's [Identity] carries a
// fingerprint of its logic; when the stored fingerprint matches, the
// finder is not instantiated for that project at all and the stored
// findings are reported instead. [WithContentFingerprint] additionally keys
// entries on the content of the project's files.
//
// # Finders
//
// Finders come from Go code (see the internal/finder package, with
// built-ins in internal/finders) or from Risor scripts loaded by the
// internal/runtime package. Scripts receive the file's nodes and report
// through host functions; their fingerprint is a hash of the script source.
package sift
