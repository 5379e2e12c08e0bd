package sift

import (
	"github.com/jward/sift/internal/cache"
	"github.com/jward/sift/internal/corpus"
	"github.com/jward/sift/internal/finder"
	"github.com/jward/sift/internal/report"
	"github.com/jward/sift/internal/syntax"
)

// Public type aliases for the internal types that appear in the Engine API.
// These are Go type aliases (=), so no conversion is needed.

type Finding = finder.Finding
type Factory = finder.Factory
type Identity = finder.Identity
type Report = report.Report
type SourceUnit = corpus.SourceUnit
type Provider = corpus.Provider
type Parser = syntax.Parser
type Resolver = syntax.Resolver
type Cache = cache.Cache
