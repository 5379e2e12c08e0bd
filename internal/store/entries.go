package store

import (
	"database/sql"
	"fmt"
)

// --- Entry operations ---

// ReplaceEntry stores e and its findings for (e.Project, e.Finder) in one
// transaction, removing whatever was stored for that pair before.
func (s *Store) ReplaceEntry(e *Entry, findings []Finding) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("replace entry: begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		"DELETE FROM cache_findings WHERE entry_id IN (SELECT id FROM cache_entries WHERE project = ? AND finder = ?)",
		e.Project, e.Finder,
	); err != nil {
		return fmt.Errorf("replace entry: delete findings: %w", err)
	}
	if _, err := tx.Exec("DELETE FROM cache_entries WHERE project = ? AND finder = ?", e.Project, e.Finder); err != nil {
		return fmt.Errorf("replace entry: delete entry: %w", err)
	}

	res, err := tx.Exec(
		`INSERT INTO cache_entries (project, finder, fingerprint, corpus_hash, run_id, written_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		e.Project, e.Finder, e.Fingerprint, e.CorpusHash, e.RunID, e.WrittenAt,
	)
	if err != nil {
		return fmt.Errorf("replace entry: insert entry: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("replace entry: last insert id: %w", err)
	}

	if err := insertFindingsTx(tx, id, findings); err != nil {
		return fmt.Errorf("replace entry: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("replace entry: commit: %w", err)
	}
	e.ID = id
	return nil
}

func insertFindingsTx(tx *sql.Tx, entryID int64, findings []Finding) error {
	const cols = 6
	for _, c := range chunks(len(findings), insertChunk) {
		batch := findings[c[0]:c[1]]
		args := make([]any, 0, len(batch)*cols)
		for i, f := range batch {
			args = append(args, entryID, c[0]+i, f.Path, f.StartLine, f.EndLine, f.Snippet)
		}
		_, err := tx.Exec(
			"INSERT INTO cache_findings (entry_id, ordinal, path, start_line, end_line, snippet) VALUES "+
				valuesList(len(batch), cols),
			args...,
		)
		if err != nil {
			return fmt.Errorf("insert findings: %w", err)
		}
	}
	return nil
}

// EntryFor returns the entry for (project, finder), or nil when none is
// stored.
func (s *Store) EntryFor(project, finder string) (*Entry, error) {
	e := &Entry{}
	var runID sql.NullString
	var writtenAt sql.NullTime
	err := s.db.QueryRow(
		`SELECT id, project, finder, fingerprint, corpus_hash, run_id, written_at
		 FROM cache_entries WHERE project = ? AND finder = ?`, project, finder,
	).Scan(&e.ID, &e.Project, &e.Finder, &e.Fingerprint, &e.CorpusHash, &runID, &writtenAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("entry for %s/%s: %w", project, finder, err)
	}
	e.RunID = runID.String
	e.WrittenAt = writtenAt.Time
	return e, nil
}

// FindingsByEntry returns an entry's findings in stored order.
func (s *Store) FindingsByEntry(entryID int64) ([]Finding, error) {
	rows, err := s.db.Query(
		`SELECT id, entry_id, ordinal, path, start_line, end_line, snippet
		 FROM cache_findings WHERE entry_id = ? ORDER BY ordinal`, entryID,
	)
	if err != nil {
		return nil, fmt.Errorf("findings by entry: %w", err)
	}
	defer rows.Close()
	var out []Finding
	for rows.Next() {
		var f Finding
		var snippet sql.NullString
		if err := rows.Scan(&f.ID, &f.EntryID, &f.Ordinal, &f.Path, &f.StartLine, &f.EndLine, &snippet); err != nil {
			return nil, fmt.Errorf("scan finding: %w", err)
		}
		f.Snippet = snippet.String
		out = append(out, f)
	}
	return out, rows.Err()
}

// Entries lists every stored entry with its finding count, ordered by
// project then finder.
func (s *Store) Entries() ([]*Entry, error) {
	rows, err := s.db.Query(
		`SELECT e.id, e.project, e.finder, e.fingerprint, e.corpus_hash, e.run_id, e.written_at,
		        (SELECT COUNT(*) FROM cache_findings f WHERE f.entry_id = e.id)
		 FROM cache_entries e ORDER BY e.project, e.finder`,
	)
	if err != nil {
		return nil, fmt.Errorf("entries: %w", err)
	}
	defer rows.Close()
	var out []*Entry
	for rows.Next() {
		e := &Entry{}
		var runID sql.NullString
		var writtenAt sql.NullTime
		if err := rows.Scan(&e.ID, &e.Project, &e.Finder, &e.Fingerprint, &e.CorpusHash,
			&runID, &writtenAt, &e.FindingCount); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		e.RunID = runID.String
		e.WrittenAt = writtenAt.Time
		out = append(out, e)
	}
	return out, rows.Err()
}

// DeleteProject removes every entry of project and returns how many entries
// were removed. An empty project removes everything.
func (s *Store) DeleteProject(project string) (int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("delete project: begin: %w", err)
	}
	defer tx.Rollback()

	where, args := "WHERE project = ?", []any{project}
	if project == "" {
		where, args = "", nil
	}
	if _, err := tx.Exec("DELETE FROM cache_findings WHERE entry_id IN (SELECT id FROM cache_entries "+where+")", args...); err != nil {
		return 0, fmt.Errorf("delete project findings: %w", err)
	}
	res, err := tx.Exec("DELETE FROM cache_entries "+where, args...)
	if err != nil {
		return 0, fmt.Errorf("delete project entries: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("delete project: commit: %w", err)
	}
	return n, nil
}
