package tracker

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// Tracker keeps the set of listing ids already processed so a listing
// is only inserted and notified once. The set is persisted as a small
// JSON file next to the process.
type Tracker struct {
	mu        sync.Mutex
	path      string
	seen      map[string]bool
	searchURL string
}

type fileFormat struct {
	SeenIDs     []string `json:"seen_ids"`
	LastUpdated string   `json:"last_updated"`
	SearchURL   string   `json:"search_url,omitempty"`
}

// New loads the seen-set from path. A missing or unreadable file is not
// an error: tracking starts from an empty set and the problem is logged.
func New(path string) *Tracker {
	t := &Tracker{
		path: path,
		seen: make(map[string]bool),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("[Tracker] Could not read %s: %v (starting empty)", path, err)
		}
		return t
	}

	var ff fileFormat
	if err := json.Unmarshal(data, &ff); err != nil {
		log.Printf("[Tracker] Corrupt seen file %s: %v (starting empty)", path, err)
		return t
	}

	for _, id := range ff.SeenIDs {
		t.seen[id] = true
	}
	t.searchURL = ff.SearchURL
	log.Printf("[Tracker] Loaded %d seen listings from %s", len(t.seen), path)
	return t
}

// IsNew reports whether the id has not been marked seen yet.
func (t *Tracker) IsNew(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.seen[id]
}

// MarkSeen adds the id to the set. Marking twice is a no-op.
func (t *Tracker) MarkSeen(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.seen[id] = true
}

// SetSearchURL records which search the set belongs to; it is stored
// alongside the ids on the next Persist.
func (t *Tracker) SetSearchURL(url string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.searchURL = url
}

// Count returns the number of seen ids.
func (t *Tracker) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.seen)
}

// Persist writes the set to disk atomically: the file is written to a
// temp path first and renamed over the previous one, so a crash mid-write
// never leaves a truncated seen file behind.
func (t *Tracker) Persist() error {
	t.mu.Lock()
	ids := make([]string, 0, len(t.seen))
	for id := range t.seen {
		ids = append(ids, id)
	}
	searchURL := t.searchURL
	t.mu.Unlock()

	sort.Strings(ids)
	ff := fileFormat{
		SeenIDs:     ids,
		LastUpdated: time.Now().Format(time.RFC3339),
		SearchURL:   searchURL,
	}

	data, err := json.MarshalIndent(ff, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal seen set: %w", err)
	}

	tmp := t.path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(t.path), 0o755); err != nil {
		return fmt.Errorf("create seen dir: %w", err)
	}
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write seen set: %w", err)
	}
	if err := os.Rename(tmp, t.path); err != nil {
		return fmt.Errorf("replace seen set: %w", err)
	}
	return nil
}
