// Package gridcache implements the bounded in-process cache of whole
// grid cells.
//
// Capacity is counted in cells, not points: when a new cell would push
// the cache past capacity, the least-recently-used cell is dropped with
// every point it holds. Memory use per cell is uneven, but eviction
// bookkeeping stays O(1).
package gridcache

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCapacity is used when a non-positive capacity is configured.
const DefaultCapacity = 1000

// CellEntry is the materialized content of one cell: storage key →
// stored value. Entries are owned by the cache once added, and are
// mutated in place by writes to a cached cell; the internal lock makes
// that safe against concurrent readers.
type CellEntry struct {
	cellID string

	mu     sync.RWMutex
	points map[string]string
}

func NewCellEntry(cellID string) *CellEntry {
	return &CellEntry{cellID: cellID, points: make(map[string]string)}
}

func (e *CellEntry) CellID() string { return e.cellID }

func (e *CellEntry) Get(key string) (string, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	v, ok := e.points[key]
	return v, ok
}

func (e *CellEntry) Set(key, value string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.points[key] = value
}

func (e *CellEntry) Delete(key string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.points, key)
}

func (e *CellEntry) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.points)
}

// Snapshot copies the point map so callers can iterate without holding
// the entry lock. Intra-cell order is unspecified.
func (e *CellEntry) Snapshot() map[string]string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make(map[string]string, len(e.points))
	for k, v := range e.points {
		out[k] = v
	}
	return out
}

// Cache is the whole-cell LRU. All operations serialize through the
// underlying lru lock; none of them call back into the engine or the
// durable store.
type Cache struct {
	lru *lru.Cache[string, *CellEntry]
}

// New builds a cache holding at most capacity cells. A non-positive
// capacity falls back to DefaultCapacity. onEvict, if non-nil, runs for
// every cell dropped by capacity pressure or removal.
func New(capacity int, onEvict func(cellID string)) *Cache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	var cb func(string, *CellEntry)
	if onEvict != nil {
		cb = func(cellID string, _ *CellEntry) { onEvict(cellID) }
	}
	// error is only possible for non-positive capacity, handled above
	c, _ := lru.NewWithEvict[string, *CellEntry](capacity, cb)
	return &Cache{lru: c}
}

// Get returns the cached cell and promotes it to most recently used.
func (c *Cache) Get(cellID string) (*CellEntry, bool) {
	return c.lru.Get(cellID)
}

// Put inserts or replaces a cell. Inserting a new cell at capacity
// evicts the least-recently-used cell as a whole; replacing an existing
// cell never evicts.
func (c *Cache) Put(cellID string, entry *CellEntry) {
	c.lru.Add(cellID, entry)
}

// Remove drops one cell. Removing an absent cell is a no-op.
func (c *Cache) Remove(cellID string) {
	c.lru.Remove(cellID)
}

// Clear drops every cached cell.
func (c *Cache) Clear() {
	c.lru.Purge()
}

// Len is the number of cells currently cached.
func (c *Cache) Len() int {
	return c.lru.Len()
}

// Contains reports presence without promoting the cell.
func (c *Cache) Contains(cellID string) bool {
	return c.lru.Contains(cellID)
}
