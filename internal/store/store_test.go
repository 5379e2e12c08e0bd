package store

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := NewStore(dbPath)
	require.NoError(t, err)
	require.NoError(t, s.Migrate())
	t.Cleanup(func() { s.Close() })
	return s
}

// putTestEntry stores an entry with n generated findings.
func putTestEntry(t *testing.T, s *Store, project, finder string, n int) *Entry {
	t.Helper()
	e := &Entry{
		Project:     project,
		Finder:      finder,
		Fingerprint: "fp-" + finder,
		RunID:       "run-1",
		WrittenAt:   time.Now().Truncate(time.Second),
	}
	var findings []Finding
	for i := range n {
		findings = append(findings, Finding{Path: "a.go", StartLine: i + 1, EndLine: i + 1, Snippet: fmt.Sprint(i)})
	}
	require.NoError(t, s.ReplaceEntry(e, findings))
	require.Positive(t, e.ID)
	return e
}

// =============================================================================
// Schema & Lifecycle
// =============================================================================

func TestMigrate_AllTablesExist(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	for _, table := range []string{"cache_entries", "cache_findings"} {
		var name string
		err := s.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		require.NoError(t, err, "table %s should exist", table)
		assert.Equal(t, table, name)
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	// Running migrate again should not error.
	require.NoError(t, s.Migrate())
}

func TestMigrate_WALMode(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	var mode string
	err := s.db.QueryRow("PRAGMA journal_mode").Scan(&mode)
	require.NoError(t, err)
	assert.Equal(t, "wal", mode)
}

// =============================================================================
// Entry operations
// =============================================================================

func TestEntry_ReplaceAndRead(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	e := putTestEntry(t, s, "proj", "todo", 3)

	got, err := s.EntryFor("proj", "todo")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, e.ID, got.ID)
	assert.Equal(t, "fp-todo", got.Fingerprint)
	assert.Equal(t, "run-1", got.RunID)
	assert.WithinDuration(t, e.WrittenAt, got.WrittenAt, time.Second)

	findings, err := s.FindingsByEntry(got.ID)
	require.NoError(t, err)
	require.Len(t, findings, 3)
	for i, f := range findings {
		assert.Equal(t, i, f.Ordinal)
		assert.Equal(t, i+1, f.StartLine)
	}
}

func TestEntry_NotFound(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	got, err := s.EntryFor("proj", "missing")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestEntry_ReplaceOverwrites(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	putTestEntry(t, s, "proj", "todo", 5)

	second := &Entry{Project: "proj", Finder: "todo", Fingerprint: "fp-2", CorpusHash: "c2", WrittenAt: time.Now()}
	require.NoError(t, s.ReplaceEntry(second, []Finding{{Path: "b.go", StartLine: 9, EndLine: 9}}))

	got, err := s.EntryFor("proj", "todo")
	require.NoError(t, err)
	assert.Equal(t, "fp-2", got.Fingerprint)
	assert.Equal(t, "c2", got.CorpusHash)
	assert.Empty(t, got.RunID)

	findings, err := s.FindingsByEntry(got.ID)
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Equal(t, "b.go", findings[0].Path)

	var rows int
	require.NoError(t, s.DB().QueryRow(`SELECT COUNT(*) FROM cache_findings`).Scan(&rows))
	assert.Equal(t, 1, rows, "old findings must be removed")
}

func TestEntry_EmptyFindings(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	e := putTestEntry(t, s, "proj", "none", 0)

	findings, err := s.FindingsByEntry(e.ID)
	require.NoError(t, err)
	assert.Empty(t, findings)
}

func TestEntry_ManyFindingsSpanChunks(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	e := putTestEntry(t, s, "proj", "many", insertChunk*2+7)

	findings, err := s.FindingsByEntry(e.ID)
	require.NoError(t, err)
	require.Len(t, findings, insertChunk*2+7)
	assert.Equal(t, insertChunk*2+7, findings[len(findings)-1].StartLine)
}

func TestEntries_ListsWithCounts(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	putTestEntry(t, s, "b", "todo", 1)
	putTestEntry(t, s, "a", "todo", 2)
	putTestEntry(t, s, "a", "magic", 0)

	entries, err := s.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "a/magic", entries[0].Project+"/"+entries[0].Finder)
	assert.Equal(t, "a/todo", entries[1].Project+"/"+entries[1].Finder)
	assert.Equal(t, 2, entries[1].FindingCount)
	assert.Equal(t, "b", entries[2].Project)
}

func TestDeleteProject(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	a := putTestEntry(t, s, "a", "todo", 2)
	putTestEntry(t, s, "a", "magic", 1)
	putTestEntry(t, s, "b", "todo", 1)

	n, err := s.DeleteProject("a")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	findings, err := s.FindingsByEntry(a.ID)
	require.NoError(t, err)
	assert.Empty(t, findings)

	entries, err := s.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "b", entries[0].Project)

	n, err = s.DeleteProject("")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

// =============================================================================
// Helpers
// =============================================================================

func TestValuesList(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "", valuesList(0, 3))
	assert.Equal(t, "(?,?)", valuesList(1, 2))
	assert.Equal(t, "(?,?),(?,?),(?,?)", valuesList(3, 2))
}

func TestChunks(t *testing.T) {
	t.Parallel()
	assert.Empty(t, chunks(0, 10))
	assert.Equal(t, [][2]int{{0, 10}, {10, 20}, {20, 23}}, chunks(23, 10))
}
