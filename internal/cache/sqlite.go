package cache

import (
	"fmt"

	"github.com/jward/sift/internal/finder"
	"github.com/jward/sift/internal/store"
)

// SQLiteBackend keeps entries in a SQLite database.
type SQLiteBackend struct {
	store *store.Store
}

var _ Backend = (*SQLiteBackend)(nil)

// OpenSQLite opens (creating if needed) the database at path and migrates
// it.
func OpenSQLite(path string) (*SQLiteBackend, error) {
	s, err := store.NewStore(path)
	if err != nil {
		return nil, fmt.Errorf("cache: %w", err)
	}
	if err := s.Migrate(); err != nil {
		s.Close()
		return nil, fmt.Errorf("cache: %w", err)
	}
	return &SQLiteBackend{store: s}, nil
}

func (b *SQLiteBackend) Load(project, finderName string) (*Entry, error) {
	row, err := b.store.EntryFor(project, finderName)
	if err != nil || row == nil {
		return nil, err
	}
	rows, err := b.store.FindingsByEntry(row.ID)
	if err != nil {
		return nil, err
	}
	e := &Entry{
		Project:     row.Project,
		Finder:      row.Finder,
		Fingerprint: row.Fingerprint,
		Corpus:      row.CorpusHash,
		RunID:       row.RunID,
		WrittenAt:   row.WrittenAt,
		Findings:    make([]finder.Finding, 0, len(rows)),
	}
	for _, r := range rows {
		e.Findings = append(e.Findings, finder.Finding{
			Finder:    row.Finder,
			Path:      r.Path,
			StartLine: r.StartLine,
			EndLine:   r.EndLine,
			Snippet:   r.Snippet,
		})
	}
	return e, nil
}

func (b *SQLiteBackend) Save(e *Entry) error {
	rows := make([]store.Finding, len(e.Findings))
	for i, f := range e.Findings {
		rows[i] = store.Finding{Path: f.Path, StartLine: f.StartLine, EndLine: f.EndLine, Snippet: f.Snippet}
	}
	return b.store.ReplaceEntry(&store.Entry{
		Project:     e.Project,
		Finder:      e.Finder,
		Fingerprint: e.Fingerprint,
		CorpusHash:  e.Corpus,
		RunID:       e.RunID,
		WrittenAt:   e.WrittenAt,
	}, rows)
}

func (b *SQLiteBackend) Entries() ([]Listing, error) {
	rows, err := b.store.Entries()
	if err != nil {
		return nil, err
	}
	out := make([]Listing, len(rows))
	for i, r := range rows {
		out[i] = Listing{
			Project:     r.Project,
			Finder:      r.Finder,
			Fingerprint: r.Fingerprint,
			Corpus:      r.CorpusHash,
			RunID:       r.RunID,
			WrittenAt:   r.WrittenAt,
			Findings:    r.FindingCount,
		}
	}
	return out, nil
}

func (b *SQLiteBackend) Clear(project string) (int, error) {
	n, err := b.store.DeleteProject(project)
	return int(n), err
}

func (b *SQLiteBackend) Close() error { return b.store.Close() }
