package tools

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// seenRetention is how long an article ID stays in the store before it
// becomes eligible for re-reporting.
const seenRetention = 7 * 24 * time.Hour

// SeenStore is the file-backed map of article ID to last-seen timestamp
// owned by a newsfeed tool instance. Read-modify-write cycles against
// the same store serialize through Acquire/Commit; stores over different
// files are independent.
type SeenStore struct {
	path string
	mu   sync.Mutex
}

// NewSeenStore creates a store over the given file path. The file is not
// touched until the first commit.
func NewSeenStore(path string) *SeenStore {
	return &SeenStore{path: path}
}

// storeDocument is the persisted shape. The legacy shape carried seen_ids
// as a bare list; it is detected on load and migrated to the map shape.
type storeDocument struct {
	SeenIDs     map[string]string `json:"seen_ids"`
	LastUpdated string            `json:"last_updated"`
}

type legacyDocument struct {
	SeenIDs []string `json:"seen_ids"`
}

// SeenSet is an exclusive view over the store contents for one
// read-modify-write cycle. It must be finished with Commit or Release.
type SeenSet struct {
	store *SeenStore
	ids   map[string]time.Time
	done  bool
}

// Acquire locks the store, loads its contents (empty when the file is
// absent), migrates the legacy list shape, and prunes entries older than
// the retention window. Entries with unparseable timestamps are retained.
func (s *SeenStore) Acquire(now time.Time) (*SeenSet, error) {
	s.mu.Lock()

	ids, err := s.load(now)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}

	cutoff := now.Add(-seenRetention)
	for id, seen := range ids {
		if !seen.IsZero() && seen.Before(cutoff) {
			delete(ids, id)
		}
	}
	return &SeenSet{store: s, ids: ids}, nil
}

func (s *SeenStore) load(now time.Time) (map[string]time.Time, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return map[string]time.Time{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read seen store %s: %w", s.path, err)
	}

	var doc storeDocument
	if err := json.Unmarshal(data, &doc); err == nil && doc.SeenIDs != nil {
		ids := make(map[string]time.Time, len(doc.SeenIDs))
		for id, stamp := range doc.SeenIDs {
			if parsed, perr := time.Parse(time.RFC3339, stamp); perr == nil {
				ids[id] = parsed
			} else {
				// Unparseable stamps are kept rather than dropped; the
				// zero time is never pruned.
				ids[id] = time.Time{}
			}
		}
		return ids, nil
	}

	var legacy legacyDocument
	if err := json.Unmarshal(data, &legacy); err == nil {
		ids := make(map[string]time.Time, len(legacy.SeenIDs))
		for _, id := range legacy.SeenIDs {
			ids[id] = now
		}
		return ids, nil
	}

	return nil, fmt.Errorf("seen store %s: unrecognized format", s.path)
}

// Contains reports whether the ID was seen within the retention window.
func (ss *SeenSet) Contains(id string) bool {
	_, ok := ss.ids[id]
	return ok
}

// Add marks an ID as seen at the given time.
func (ss *SeenSet) Add(id string, seen time.Time) {
	ss.ids[id] = seen
}

// Len returns the number of tracked IDs.
func (ss *SeenSet) Len() int {
	return len(ss.ids)
}

// Commit persists the set atomically (write to a temp file, then rename)
// and releases the store lock.
func (ss *SeenSet) Commit(now time.Time) error {
	if ss.done {
		return nil
	}
	defer ss.release()

	doc := storeDocument{
		SeenIDs:     make(map[string]string, len(ss.ids)),
		LastUpdated: now.Format(time.RFC3339),
	}
	for id, seen := range ss.ids {
		if seen.IsZero() {
			seen = now
		}
		doc.SeenIDs[id] = seen.Format(time.RFC3339)
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode seen store: %w", err)
	}

	dir := filepath.Dir(ss.store.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create store directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".seen-*.json")
	if err != nil {
		return fmt.Errorf("create temp store: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write seen store: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close seen store: %w", err)
	}
	if err := os.Rename(tmpName, ss.store.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace seen store: %w", err)
	}
	return nil
}

// Release unlocks the store without persisting.
func (ss *SeenSet) Release() {
	if !ss.done {
		ss.release()
	}
}

func (ss *SeenSet) release() {
	ss.done = true
	ss.store.mu.Unlock()
}
