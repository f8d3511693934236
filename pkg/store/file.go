package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// File keeps entries in a single JSON document, rewritten on every change.
// The file is created with 0600 permissions.
type File struct {
	Path string

	mu  sync.Mutex
	now func() time.Time
}

type fileCache struct {
	Entries map[string]entry `json:"entries"`
}

func NewFile(path string) *File {
	return &File{Path: path, now: time.Now}
}

func (f *File) Get(_ context.Context, key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	cache, err := f.load()
	if err != nil {
		return "", false, err
	}
	e, ok := cache.Entries[key]
	if !ok || e.expired(f.clock()) {
		return "", false, nil
	}
	return e.Value, true, nil
}

func (f *File) Set(_ context.Context, key string, value string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	cache, err := f.load()
	if err != nil {
		cache = &fileCache{Entries: map[string]entry{}}
	}
	cache.Entries[key] = newEntry(value, ttl, f.clock())
	return f.save(cache)
}

func (f *File) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	cache, err := f.load()
	if err != nil {
		return err
	}
	if _, ok := cache.Entries[key]; !ok {
		return nil
	}
	delete(cache.Entries, key)
	return f.save(cache)
}

func (f *File) clock() time.Time {
	if f.now == nil {
		return time.Now()
	}
	return f.now()
}

// load returns an empty cache when the file does not exist yet.
func (f *File) load() (*fileCache, error) {
	content, err := os.ReadFile(f.Path)
	if errors.Is(err, os.ErrNotExist) {
		return &fileCache{Entries: map[string]entry{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read token cache: %w", err)
	}
	var cache fileCache
	if err := json.Unmarshal(content, &cache); err != nil {
		return nil, fmt.Errorf("failed to parse token cache: %w", err)
	}
	if cache.Entries == nil {
		cache.Entries = map[string]entry{}
	}

	now := f.clock()
	for k, e := range cache.Entries {
		if e.expired(now) {
			delete(cache.Entries, k)
		}
	}
	return &cache, nil
}

func (f *File) save(cache *fileCache) error {
	if err := os.MkdirAll(filepath.Dir(f.Path), 0o700); err != nil {
		return fmt.Errorf("failed to create token dir: %w", err)
	}
	content, err := json.MarshalIndent(cache, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal token cache: %w", err)
	}
	return os.WriteFile(f.Path, content, 0o600)
}
