package tui

import (
	"sync"
	"time"
)

// AllRestarts selects the grid over the whole search.
const AllRestarts = -1

// GridKey identifies a rendered grid
type GridKey struct {
	Group   string
	Restart int
}

// GridCache holds rendered grid text for the current session. Version
// changes whenever the session does, invalidating every entry.
type GridCache struct {
	entries map[GridKey]string

	// Cache metadata
	LastUpdated int64
	Version     int

	mu sync.RWMutex
}

// NewGridCache creates an empty grid cache
func NewGridCache() *GridCache {
	return &GridCache{entries: make(map[GridKey]string)}
}

// Get returns the rendered text for key
func (gc *GridCache) Get(key GridKey) (string, bool) {
	gc.mu.RLock()
	defer gc.mu.RUnlock()
	text, ok := gc.entries[key]
	return text, ok
}

// Put stores rendered text for key
func (gc *GridCache) Put(key GridKey, text string) {
	gc.mu.Lock()
	defer gc.mu.Unlock()
	gc.entries[key] = text
	gc.LastUpdated = time.Now().Unix()
}

// Clear drops every entry and bumps the version
func (gc *GridCache) Clear() {
	gc.mu.Lock()
	defer gc.mu.Unlock()
	gc.entries = make(map[GridKey]string)
	gc.Version++
	gc.LastUpdated = time.Now().Unix()
}

// Size returns the number of cached grids
func (gc *GridCache) Size() int {
	gc.mu.RLock()
	defer gc.mu.RUnlock()
	return len(gc.entries)
}
