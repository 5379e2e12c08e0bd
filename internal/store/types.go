package store

import "time"

// Entry is one cache_entries row: the stored result of one finder over one
// project.
type Entry struct {
	ID          int64
	Project     string
	Finder      string
	Fingerprint string
	CorpusHash  string
	RunID       string
	WrittenAt   time.Time

	// FindingCount is filled by Entries; other reads leave it zero.
	FindingCount int
}

// Finding is one cache_findings row. Ordinal preserves the stored order.
type Finding struct {
	ID        int64
	EntryID   int64
	Ordinal   int
	Path      string
	StartLine int
	EndLine   int
	Snippet   string
}
