package history

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/unkn0wn-root/apidebug/internal/debugreq"
	"github.com/unkn0wn-root/apidebug/internal/errdef"
)

const (
	DefaultMaxEntries = 200
	snippetLimit      = 512
)

// Entry records one executed debug request.
type Entry struct {
	ID          string    `json:"id"`
	ExecutedAt  time.Time `json:"executedAt"`
	Method      string    `json:"method"`
	Path        string    `json:"path"`
	SessionID   string    `json:"sessionId,omitempty"`
	Status      int       `json:"status"`
	StatusText  string    `json:"statusText,omitempty"`
	DurationMs  int64     `json:"durationMs"`
	SizeBits    *int64    `json:"sizeBits,omitempty"`
	BodySnippet string    `json:"bodySnippet"`
	LogLines    int       `json:"logLines"`
	Warnings    []string  `json:"warnings,omitempty"`
}

// NewEntry summarizes a request and its normalized response.
func NewEntry(req debugreq.Request, resp *debugreq.Response, executedAt time.Time) Entry {
	entry := Entry{
		ID:         uuid.NewString(),
		ExecutedAt: executedAt,
		Method:     req.NormalizedMethod(),
		Path:       strings.TrimSpace(req.Path),
	}
	if resp == nil {
		return entry
	}
	entry.SessionID = resp.SessionID
	entry.Status = resp.Status
	entry.StatusText = resp.StatusText
	if resp.Time != nil {
		entry.DurationMs = *resp.Time
	}
	if resp.Size != nil {
		size := *resp.Size
		entry.SizeBits = &size
	}
	entry.BodySnippet = snippet(resp.Body, snippetLimit)
	if resp.Logs != nil {
		entry.LogLines = len(resp.Logs.Content)
	}
	if len(resp.Warnings) > 0 {
		entry.Warnings = append([]string(nil), resp.Warnings...)
	}
	return entry
}

func snippet(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit]) + "…"
}

type Store struct {
	path       string
	maxEntries int
	entries    []Entry
	mu         sync.RWMutex
	loaded     bool
}

func NewStore(path string, maxEntries int) *Store {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &Store{path: path, maxEntries: maxEntries}
}

func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ensureLoadedLocked()
}

// Append stores entry, assigning an ID when it has none, and drops the oldest
// entries beyond the configured bound.
func (s *Store) Append(entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoadedLocked(); err != nil {
		return err
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}

	s.entries = append([]Entry{entry}, s.entries...)
	s.sortEntriesLocked()
	if len(s.entries) > s.maxEntries {
		s.entries = s.entries[:s.maxEntries]
	}
	return s.persist()
}

func (s *Store) Entries() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entriesLocked()
}

func (s *Store) entriesLocked() []Entry {
	copies := make([]Entry, len(s.entries))
	copy(copies, s.entries)
	return copies
}

func (s *Store) Delete(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoadedLocked(); err != nil {
		return false, err
	}

	idx := -1
	for i, entry := range s.entries {
		if entry.ID == id {
			idx = i
			break
		}
	}
	if idx == -1 {
		return false, nil
	}

	copy(s.entries[idx:], s.entries[idx+1:])
	s.entries = s.entries[:len(s.entries)-1]

	if err := s.persist(); err != nil {
		return false, err
	}
	return true, nil
}

// ByPath returns entries for a request path, newest first. A blank path matches everything.
func (s *Store) ByPath(path string) []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return s.entriesLocked()
	}
	return s.filterLocked(func(e Entry) bool { return e.Path == trimmed })
}

func (s *Store) BySession(sessionID string) []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	trimmed := strings.TrimSpace(sessionID)
	if trimmed == "" {
		return nil
	}
	return s.filterLocked(func(e Entry) bool { return e.SessionID == trimmed })
}

func (s *Store) filterLocked(match func(Entry) bool) []Entry {
	var matched []Entry
	for _, entry := range s.entries {
		if match(entry) {
			matched = append(matched, entry)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return newerFirst(matched[i], matched[j])
	})
	return matched
}

func (s *Store) persist() error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errdef.Wrap(errdef.CodeFilesystem, err, "create history dir")
	}

	data, err := json.MarshalIndent(s.entries, "", "  ")
	if err != nil {
		return errdef.Wrap(errdef.CodeHistory, err, "encode history")
	}

	tmp, err := os.CreateTemp(dir, ".apidebug-history-*.tmp")
	if err != nil {
		return errdef.Wrap(errdef.CodeFilesystem, err, "create history tmp")
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return errdef.Wrap(errdef.CodeFilesystem, err, "write history tmp")
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return errdef.Wrap(errdef.CodeFilesystem, err, "close history tmp")
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return errdef.Wrap(errdef.CodeFilesystem, err, "replace history file")
	}
	return nil
}

func (s *Store) sortEntriesLocked() {
	if len(s.entries) < 2 {
		return
	}
	sort.SliceStable(s.entries, func(i, j int) bool {
		return newerFirst(s.entries[i], s.entries[j])
	})
}

func (s *Store) ensureLoadedLocked() error {
	if s.loaded {
		return nil
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.entries = []Entry{}
			s.loaded = true
			return nil
		}
		return errdef.Wrap(errdef.CodeHistory, err, "read history")
	}

	if len(data) == 0 {
		s.entries = []Entry{}
		s.loaded = true
		return nil
	}

	if err := json.Unmarshal(data, &s.entries); err != nil {
		return errdef.Wrap(errdef.CodeHistory, err, "parse history")
	}

	s.sortEntriesLocked()
	s.loaded = true
	return nil
}

// newerFirst orders by execution time; entries without one sort last.
func newerFirst(a, b Entry) bool {
	ai := a.ExecutedAt
	bi := b.ExecutedAt
	switch {
	case ai.IsZero() && bi.IsZero():
		return false
	case ai.IsZero():
		return false
	case bi.IsZero():
		return true
	default:
		return ai.After(bi)
	}
}
