package oplog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(filepath.Join(t.TempDir(), "operations.jsonl"), 10, true)
}

// writeEntry appends a pre-built entry directly to the log file, so
// tests can control ids and timestamps.
func writeEntry(t *testing.T, s *Store, e Entry) {
	t.Helper()
	line, err := json.Marshal(e)
	require.NoError(t, err)
	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	require.NoError(t, err)
	defer f.Close()
	_, err = f.Write(append(line, '\n'))
	require.NoError(t, err)
}

func TestAppendAndQuery(t *testing.T) {
	s := newTestStore(t)

	id := s.Append(KindDelete, AppNotes, Target{Title: "Buy milk"},
		Data{Before: StringSnapshot("old content")},
		Metadata{Container: "Work"})
	require.NotEmpty(t, id)

	entries := s.Query(Filter{})
	require.Len(t, entries, 1)
	e := entries[0]
	assert.Equal(t, id, e.ID)
	assert.Equal(t, KindDelete, e.Kind)
	assert.Equal(t, AppNotes, e.App)
	assert.Equal(t, "Buy milk", e.Target.Title)
	assert.Equal(t, "Work", e.Metadata.Container)
	assert.False(t, e.Metadata.Confirmed)
	assert.NotEmpty(t, e.Metadata.Actor, "actor should default to the current user")
	assert.False(t, e.Timestamp.IsZero())
}

func TestAppendDisabledWritesNothing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "operations.jsonl")
	s := NewStore(path, 10, false)

	id := s.Append(KindCreate, AppNotes, Target{Title: "x"}, Data{}, Metadata{})
	assert.Empty(t, id)

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err), "disabled store must not create the log file")
}

func TestQueryFiltersAndOrder(t *testing.T) {
	s := newTestStore(t)
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	writeEntry(t, s, Entry{ID: "aaaaaaaa-1", Timestamp: base, Kind: KindCreate, App: AppNotes, Target: Target{Title: "first"}})
	writeEntry(t, s, Entry{ID: "bbbbbbbb-2", Timestamp: base.Add(time.Hour), Kind: KindDelete, App: AppReminders, Target: Target{Text: "second"}})
	writeEntry(t, s, Entry{ID: "cccccccc-3", Timestamp: base.Add(2 * time.Hour), Kind: KindDelete, App: AppNotes, Target: Target{Title: "third"}})

	all := s.Query(Filter{})
	require.Len(t, all, 3)
	assert.Equal(t, "cccccccc-3", all[0].ID, "newest first")
	assert.Equal(t, "aaaaaaaa-1", all[2].ID)

	deletes := s.Query(Filter{Kind: KindDelete})
	require.Len(t, deletes, 2)

	notesDeletes := s.Query(Filter{Kind: KindDelete, App: AppNotes})
	require.Len(t, notesDeletes, 1)
	assert.Equal(t, "cccccccc-3", notesDeletes[0].ID)

	since := s.Query(Filter{Since: base.Add(30 * time.Minute)})
	require.Len(t, since, 2)

	limited := s.Query(Filter{Limit: 1})
	require.Len(t, limited, 1)
	assert.Equal(t, "cccccccc-3", limited[0].ID)
}

func TestQueryDropsMalformedLines(t *testing.T) {
	s := newTestStore(t)
	writeEntry(t, s, Entry{ID: "aaaaaaaa-1", Timestamp: time.Now(), Kind: KindDelete, App: AppNotes})

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_WRONLY, 0644)
	require.NoError(t, err)
	_, err = f.WriteString("{not json\n\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	writeEntry(t, s, Entry{ID: "bbbbbbbb-2", Timestamp: time.Now(), Kind: KindDelete, App: AppNotes})

	entries := s.Query(Filter{})
	assert.Len(t, entries, 2, "malformed lines are skipped, not fatal")
}

func TestQueryMissingFileIsEmpty(t *testing.T) {
	s := newTestStore(t)
	assert.Empty(t, s.Query(Filter{}))
}

func TestGetByID(t *testing.T) {
	s := newTestStore(t)
	writeEntry(t, s, Entry{ID: "abcdef12-3456-7890", Timestamp: time.Now(), Kind: KindDelete, App: AppNotes})
	writeEntry(t, s, Entry{ID: "abcdef12-9999-0000", Timestamp: time.Now(), Kind: KindDelete, App: AppNotes})

	e, ok := s.GetByID("abcdef12-9999-0000")
	require.True(t, ok)
	assert.Equal(t, "abcdef12-9999-0000", e.ID)

	// Prefix of at least 8 chars matches the first entry in file order
	e, ok = s.GetByID("abcdef12")
	require.True(t, ok)
	assert.Equal(t, "abcdef12-3456-7890", e.ID)

	// Short prefixes never match
	_, ok = s.GetByID("abcdef1")
	assert.False(t, ok)

	_, ok = s.GetByID("missing-id-entirely")
	assert.False(t, ok)
}

func TestRotation(t *testing.T) {
	s := newTestStore(t)
	s.maxBytes = 64 // force rotation after a couple of entries

	for i := 0; i < 3; i++ {
		writeEntry(t, s, Entry{ID: fmt.Sprintf("aaaaaaaa-%d", i), Timestamp: time.Now(), Kind: KindDelete, App: AppNotes})
	}
	require.NoError(t, s.RotateIfOversize())

	old := s.path + ".old"
	_, err := os.Stat(old)
	require.NoError(t, err, "rotation must produce a .old sibling")
	_, err = os.Stat(s.path)
	assert.True(t, os.IsNotExist(err), "active file restarts empty after rotation")

	// A second rotation replaces .old rather than appending to it
	writeEntry(t, s, Entry{ID: "bbbbbbbb-0", Timestamp: time.Now(), Kind: KindDelete, App: AppNotes})
	writeEntry(t, s, Entry{ID: "bbbbbbbb-1", Timestamp: time.Now(), Kind: KindDelete, App: AppNotes})
	require.NoError(t, s.RotateIfOversize())

	data, err := os.ReadFile(old)
	require.NoError(t, err)
	assert.Contains(t, string(data), "bbbbbbbb-0")
	assert.NotContains(t, string(data), "aaaaaaaa-0", ".old is replaced, not appended to")

	matches, err := filepath.Glob(s.path + "*")
	require.NoError(t, err)
	assert.Len(t, matches, 1, "exactly one .old sibling exists")
}

func TestRotationMissingFileIsNoop(t *testing.T) {
	s := newTestStore(t)
	assert.NoError(t, s.RotateIfOversize())
}

func TestRotationUnderLimitKeepsFile(t *testing.T) {
	s := newTestStore(t)
	writeEntry(t, s, Entry{ID: "aaaaaaaa-0", Timestamp: time.Now(), Kind: KindDelete, App: AppNotes})
	require.NoError(t, s.RotateIfOversize())

	_, err := os.Stat(s.path)
	assert.NoError(t, err, "file under the limit is not rotated")
}

func TestPruneOlderThan(t *testing.T) {
	s := newTestStore(t)
	now := time.Now()

	writeEntry(t, s, Entry{ID: "aaaaaaaa-0", Timestamp: now.AddDate(0, 0, -40), Kind: KindDelete, App: AppNotes})
	writeEntry(t, s, Entry{ID: "bbbbbbbb-1", Timestamp: now.AddDate(0, 0, -10), Kind: KindDelete, App: AppNotes})
	writeEntry(t, s, Entry{ID: "cccccccc-2", Timestamp: now.AddDate(0, 0, -1), Kind: KindUpdate, App: AppReminders})

	removed, err := s.PruneOlderThan(30)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	data, err := os.ReadFile(s.path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "bbbbbbbb-1", "surviving entries keep their order")
	assert.Contains(t, lines[1], "cccccccc-2")
}

func TestPruneNothingToRemove(t *testing.T) {
	s := newTestStore(t)
	writeEntry(t, s, Entry{ID: "aaaaaaaa-0", Timestamp: time.Now(), Kind: KindDelete, App: AppNotes})

	removed, err := s.PruneOlderThan(30)
	require.NoError(t, err)
	assert.Zero(t, removed)

	removed, err = NewStore(filepath.Join(t.TempDir(), "none.jsonl"), 10, true).PruneOlderThan(30)
	require.NoError(t, err)
	assert.Zero(t, removed, "missing file prunes nothing")
}

func TestRecentAndByApp(t *testing.T) {
	s := newTestStore(t)
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	writeEntry(t, s, Entry{ID: "aaaaaaaa-0", Timestamp: base, Kind: KindDelete, App: AppNotes})
	writeEntry(t, s, Entry{ID: "bbbbbbbb-1", Timestamp: base.Add(time.Hour), Kind: KindDelete, App: AppReminders})

	recent := s.Recent(5)
	require.Len(t, recent, 2)
	assert.Equal(t, "bbbbbbbb-1", recent[0].ID)

	reminders := s.ByApp(AppReminders, 5)
	require.Len(t, reminders, 1)
	assert.Equal(t, AppReminders, reminders[0].App)
}

func TestAppendTriggersRotation(t *testing.T) {
	s := newTestStore(t)
	s.maxBytes = 1 // every append overflows

	id := s.Append(KindDelete, AppNotes, Target{Title: "t"}, Data{Before: StringSnapshot("b")}, Metadata{})
	require.NotEmpty(t, id)

	_, err := os.Stat(s.path + ".old")
	assert.NoError(t, err, "append past the size limit rotates")
}
