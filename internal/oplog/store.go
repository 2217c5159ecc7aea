package oplog

import (
	"encoding/json"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vthunder/macbridge/internal/logging"
)

const oldSuffix = ".old"

// Store owns the operation log file: an append-only JSONL file with
// one rotated .old sibling. All file access goes through one mutex,
// so in-process appends, queries, rotation and pruning never
// interleave. Access from other processes is not coordinated.
type Store struct {
	path     string
	maxBytes int64
	enabled  bool
	mu       sync.Mutex
}

// NewStore creates a store for the log at path. maxSizeMB bounds the
// active file before rotation. When enabled is false every Append is
// a silent no-op.
func NewStore(path string, maxSizeMB int, enabled bool) *Store {
	return &Store{
		path:     path,
		maxBytes: int64(maxSizeMB) * 1024 * 1024,
		enabled:  enabled,
	}
}

// Path returns the active log file path.
func (s *Store) Path() string {
	return s.path
}

// Append writes one entry and returns its generated id. Logging
// disabled or any I/O failure yields an empty id — audit logging must
// never fail the operation that triggered it, so errors are reported
// to the operator log only.
func (s *Store) Append(kind Kind, app App, target Target, data Data, meta Metadata) string {
	if !s.enabled {
		return ""
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry := Entry{
		ID:        uuid.NewString(),
		Timestamp: time.Now(),
		Kind:      kind,
		App:       app,
		Target:    target,
		Data:      data,
		Metadata:  meta,
	}
	if entry.Metadata.Actor == "" {
		entry.Metadata.Actor = CurrentUser()
	}

	line, err := json.Marshal(entry)
	if err != nil {
		logging.Error("oplog", "failed to marshal entry: %v", err)
		return ""
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		logging.Error("oplog", "failed to create log directory: %v", err)
		return ""
	}

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		logging.Error("oplog", "failed to open log: %v", err)
		return ""
	}
	_, werr := f.Write(append(line, '\n'))
	cerr := f.Close()
	if werr != nil || cerr != nil {
		logging.Error("oplog", "failed to append entry: %v", firstErr(werr, cerr))
		return ""
	}

	if err := s.rotateLocked(); err != nil {
		logging.Error("oplog", "rotation failed: %v", err)
	}

	return entry.ID
}

// RotateIfOversize renames the active file to its .old sibling when it
// exceeds the size limit, replacing any prior .old file. A missing
// active file is a no-op.
func (s *Store) RotateIfOversize() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rotateLocked()
}

func (s *Store) rotateLocked() error {
	info, err := os.Stat(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to stat log: %w", err)
	}
	if info.Size() <= s.maxBytes {
		return nil
	}

	old := s.path + oldSuffix
	if err := os.Remove(old); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove previous rotation: %w", err)
	}
	if err := os.Rename(s.path, old); err != nil {
		return fmt.Errorf("failed to rotate log: %w", err)
	}
	logging.Info("oplog", "rotated log (%d bytes) to %s", info.Size(), old)
	return nil
}

// Query scans the active file and returns matching entries, newest
// first, truncated to filter.Limit when set. Read failures degrade to
// an empty result. The full scan is deliberate: the log is
// append-mostly and queried rarely, so no index is kept.
func (s *Store) Query(filter Filter) []Entry {
	s.mu.Lock()
	entries := s.readLocked()
	s.mu.Unlock()

	var matched []Entry
	for _, e := range entries {
		if filter.matches(e) {
			matched = append(matched, e)
		}
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].Timestamp.After(matched[j].Timestamp)
	})

	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}
	return matched
}

// Recent returns the newest entries up to limit.
func (s *Store) Recent(limit int) []Entry {
	return s.Query(Filter{Limit: limit})
}

// ByApp returns the newest entries for one application.
func (s *Store) ByApp(app App, limit int) []Entry {
	return s.Query(Filter{App: app, Limit: limit})
}

// GetByID looks up an entry by exact id, or by id prefix when the
// supplied id is at least 8 characters. Prefix collisions resolve to
// the first match in file order, which is not guaranteed stable —
// callers needing determinism should pass exact ids.
func (s *Store) GetByID(id string) (Entry, bool) {
	s.mu.Lock()
	entries := s.readLocked()
	s.mu.Unlock()

	for _, e := range entries {
		if e.ID == id {
			return e, true
		}
	}
	if len(id) >= 8 {
		for _, e := range entries {
			if strings.HasPrefix(e.ID, id) {
				return e, true
			}
		}
	}
	return Entry{}, false
}

// PruneOlderThan rewrites the active file keeping only entries within
// the retention window. Discarded entries are gone permanently. It
// returns the number of entries removed.
func (s *Store) PruneOlderThan(retentionDays int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read log: %w", err)
	}

	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	var kept []byte
	removed := 0
	for _, line := range strings.Split(string(data), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		var e Entry
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			removed++
			continue
		}
		if e.Timestamp.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, line...)
		kept = append(kept, '\n')
	}
	if removed == 0 {
		return 0, nil
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, kept, 0644); err != nil {
		return 0, fmt.Errorf("failed to write pruned log: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return 0, fmt.Errorf("failed to replace log: %w", err)
	}
	logging.Info("oplog", "pruned %d entries older than %d days", removed, retentionDays)
	return removed, nil
}

// readLocked parses the active file, dropping malformed lines.
// Returns entries in file order. Caller holds s.mu.
func (s *Store) readLocked() []Entry {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			logging.Error("oplog", "failed to read log: %v", err)
		}
		return nil
	}

	var entries []Entry
	for _, line := range strings.Split(string(data), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		var e Entry
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			continue // skip malformed entries
		}
		entries = append(entries, e)
	}
	return entries
}

// CurrentUser returns the OS user recorded as the default actor on
// log entries.
func CurrentUser() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	if name := os.Getenv("USER"); name != "" {
		return name
	}
	return "unknown"
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
