// Package cache persists generated handler bodies keyed by the semantic
// interactive surface of a tool, so that cosmetic source edits never
// invalidate a cached handler.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"uiforge-mcp-server/internal/proposal"
)

// Entry is one cached handler body.
type Entry struct {
	Handler   string    `json:"handler"`
	Timestamp time.Time `json:"timestamp"`
}

// Store is the handler cache contract. A nil handler string return means
// no entry.
type Store interface {
	Get(key string) (string, bool)
	Set(key, handler string) error
	Clear() error
	Len() int
}

// Key hashes the tool's interactive surface: component, per-input
// tag/name/subtype/label/binding presence, trigger identity, handler
// name/event, and the input schema. Styling, layout and source positions
// never contribute.
func Key(p *proposal.ToolProposal) string {
	var parts []string
	add := func(s string) { parts = append(parts, strings.ToLower(s)) }

	add(p.Component)
	for _, el := range p.Inputs {
		add(el.Tag)
		add(el.Name)
		add(el.InputType)
		add(el.Label)
		if el.Binding != nil {
			add("bound")
		} else {
			add("unbound")
		}
	}
	if p.Trigger != nil {
		add(p.Trigger.Tag)
		add(p.Trigger.Name)
		add(p.Trigger.Label)
	}
	if p.Handler != nil {
		add(p.Handler.Name)
		add(p.Handler.Event)
	}
	if schema, err := json.Marshal(canonicalSchema(p.InputSchema)); err == nil {
		add(string(schema))
	}

	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])[:16]
}

// canonicalSchema reduces the schema to sorted key/type pairs so map
// iteration order cannot leak into the key.
func canonicalSchema(schema map[string]any) map[string]string {
	out := map[string]string{}
	props, _ := schema["properties"].(map[string]any)
	for name, raw := range props {
		if prop, ok := raw.(map[string]any); ok {
			t, _ := prop["type"].(string)
			out[name] = t
		}
	}
	return out
}

// FileStore is a flat JSON map on disk, loaded lazily on first access and
// held in memory. Writes replace the whole file through a temp file and
// rename. Concurrent writers from multiple processes are not synchronized.
type FileStore struct {
	path string

	once    sync.Once
	mu      sync.Mutex
	entries map[string]Entry
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// load reads the backing file once. Missing, corrupt or unreadable
// storage degrades to an empty cache.
func (s *FileStore) load() {
	s.once.Do(func() {
		s.entries = map[string]Entry{}
		data, err := os.ReadFile(s.path)
		if err != nil {
			return
		}
		var loaded map[string]Entry
		if err := json.Unmarshal(data, &loaded); err != nil {
			return
		}
		s.entries = loaded
	})
}

func (s *FileStore) Get(key string) (string, bool) {
	s.load()
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return "", false
	}
	return e.Handler, true
}

func (s *FileStore) Set(key, handler string) error {
	s.load()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = Entry{Handler: handler, Timestamp: time.Now().UTC()}
	return s.flushLocked()
}

func (s *FileStore) Clear() error {
	s.load()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = map[string]Entry{}
	return s.flushLocked()
}

func (s *FileStore) Len() int {
	s.load()
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *FileStore) flushLocked() error {
	data, err := json.MarshalIndent(s.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode cache: %w", err)
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".handler-cache-*")
	if err != nil {
		return fmt.Errorf("failed to create temp cache file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to close cache file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to replace cache file: %w", err)
	}
	return nil
}

// MemoryStore backs the cache with process memory only, for disabled
// persistence and for tests.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]Entry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: map[string]Entry{}}
}

func (s *MemoryStore) Get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return "", false
	}
	return e.Handler, true
}

func (s *MemoryStore) Set(key, handler string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = Entry{Handler: handler, Timestamp: time.Now().UTC()}
	return nil
}

func (s *MemoryStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = map[string]Entry{}
	return nil
}

func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
