// Package engine orchestrates terrain point storage across the grid
// index, the whole-cell cache and the durable ordered store.
//
// The durable store is the sole source of truth; the cache is a derived
// projection rebuilt from prefix scans. A cache miss on any point loads
// that point's entire cell, so one miss pays for the cell's future hits.
// Cache and store may transiently disagree under concurrent writers to
// the same cell; a stale entry is only ever overwritten or evicted,
// never trusted over a fresh load.
package engine

import (
	"log/slog"
	"time"

	"github.com/olindqvist/terrain-grid-cache/internal/cache/gridcache"
	"github.com/olindqvist/terrain-grid-cache/internal/core/model"
	"github.com/olindqvist/terrain-grid-cache/internal/core/observability"
	"github.com/olindqvist/terrain-grid-cache/internal/grid"
	"github.com/olindqvist/terrain-grid-cache/internal/grid/keys"
	"github.com/olindqvist/terrain-grid-cache/internal/store"
)

type Config struct {
	Extent     model.Extent
	CellSize   float64 // degrees per cell side
	CacheCells int     // bound in cells; <=0 falls back to the default
}

type Engine struct {
	kv     store.KV
	grid   *grid.Indexer
	cache  *gridcache.Cache
	logger *slog.Logger
}

// New wires an engine onto an already-open store handle. Multiple
// engines over distinct stores are independent.
func New(kv store.KV, cfg Config, logger *slog.Logger) (*Engine, error) {
	if cfg.CellSize <= 0 {
		return nil, &ErrInvalidConfig{Reason: "cell size must be positive"}
	}
	if cfg.Extent.MaxLon <= cfg.Extent.MinLon || cfg.Extent.MaxLat <= cfg.Extent.MinLat {
		return nil, &ErrInvalidConfig{Reason: "extent max must exceed min"}
	}
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{
		kv:     kv,
		grid:   grid.NewIndexer(cfg.Extent, cfg.CellSize),
		logger: logger,
	}
	e.cache = gridcache.New(cfg.CacheCells, func(cellID string) {
		observability.IncEviction()
	})
	return e, nil
}

// Put stores one point, writing through to the durable store. If the
// point's cell is cached the cached copy is updated in place; a write
// never loads a cell into cache on its own.
func (e *Engine) Put(lon, lat float64, value string, durable bool) error {
	if !e.grid.WithinBounds(lon, lat) {
		return &ErrOutOfBounds{Lon: lon, Lat: lat, Extent: e.grid.Extent()}
	}

	cellID := e.grid.CellOf(lon, lat)
	key := keys.Encode(cellID, lon, lat)

	start := time.Now()
	if err := e.kv.Put(key, value, durable); err != nil {
		return storeErr("put", err)
	}
	observability.ObserveStoreOp("put", time.Since(start).Seconds())
	observability.IncPointsWritten("single", 1)

	if entry, ok := e.cache.Get(cellID); ok {
		entry.Set(key, value)
	}
	return nil
}

// Get returns the stored value for a point. An out-of-bounds coordinate
// is absent, not an error. On a cache miss the whole cell is
// materialized first, even when the point itself turns out absent.
func (e *Engine) Get(lon, lat float64) (string, bool, error) {
	if !e.grid.WithinBounds(lon, lat) {
		return "", false, nil
	}

	cellID := e.grid.CellOf(lon, lat)
	key := keys.Encode(cellID, lon, lat)

	if entry, ok := e.cache.Get(cellID); ok {
		observability.IncCacheHit()
		v, ok := entry.Get(key)
		return v, ok, nil
	}

	observability.IncCacheMiss()
	entry, err := e.loadCell(cellID)
	if err != nil {
		return "", false, err
	}
	v, ok := entry.Get(key)
	return v, ok, nil
}

// Delete removes a point from the store and from its cached cell.
// Deleting an absent or out-of-bounds point is a no-op.
func (e *Engine) Delete(lon, lat float64, durable bool) error {
	if !e.grid.WithinBounds(lon, lat) {
		return nil
	}
	cellID := e.grid.CellOf(lon, lat)
	key := keys.Encode(cellID, lon, lat)

	start := time.Now()
	if err := e.kv.Delete(key, durable); err != nil {
		return storeErr("delete", err)
	}
	observability.ObserveStoreOp("delete", time.Since(start).Seconds())

	if entry, ok := e.cache.Get(cellID); ok {
		entry.Delete(key)
	}
	return nil
}

// Exists probes point presence in the durable store without touching
// the cache.
func (e *Engine) Exists(lon, lat float64) (bool, error) {
	if !e.grid.WithinBounds(lon, lat) {
		return false, nil
	}
	key := keys.Encode(e.grid.CellOf(lon, lat), lon, lat)
	ok, err := e.kv.Exists(key)
	if err != nil {
		return false, storeErr("exists", err)
	}
	return ok, nil
}

// BatchPut validates every point's bounds up front, then commits all
// writes as one atomic batch. On any bounds violation nothing is
// committed. Cached cells are updated incrementally as the batch is
// staged.
func (e *Engine) BatchPut(points []model.PointValue, durable bool) error {
	for _, p := range points {
		if !e.grid.WithinBounds(p.Lon, p.Lat) {
			return &ErrOutOfBounds{Lon: p.Lon, Lat: p.Lat, Extent: e.grid.Extent()}
		}
	}

	batch := e.kv.NewBatch()
	for _, p := range points {
		cellID := e.grid.CellOf(p.Lon, p.Lat)
		key := keys.Encode(cellID, p.Lon, p.Lat)
		batch.Put(key, p.Value)
		if entry, ok := e.cache.Get(cellID); ok {
			entry.Set(key, p.Value)
		}
	}

	start := time.Now()
	if err := batch.Commit(durable); err != nil {
		return storeErr("batch commit", err)
	}
	observability.ObserveStoreOp("batch_commit", time.Since(start).Seconds())
	observability.IncPointsWritten("batch", len(points))
	return nil
}

// RangeQuery visits every stored point inside the box, walking covering
// cells in row-major order; intra-cell order is unspecified. Every
// visited cell ends up cached. Cells only partially overlapping the box
// are filtered point by point. A malformed persisted key aborts the
// query: silently skipping it would hide data loss.
func (e *Engine) RangeQuery(bb model.BBox, visit func(lon, lat float64, value string)) error {
	for _, cellID := range e.grid.CellsCovering(bb) {
		entry, ok := e.cache.Get(cellID)
		if ok {
			observability.IncCacheHit()
		} else {
			observability.IncCacheMiss()
			var err error
			entry, err = e.loadCell(cellID)
			if err != nil {
				return err
			}
		}
		for key, value := range entry.Snapshot() {
			lon, lat, err := keys.Decode(key)
			if err != nil {
				return err
			}
			if bb.Contains(lon, lat) {
				visit(lon, lat, value)
			}
		}
	}
	return nil
}

// PreloadGrid warms the cache with one cell, replacing any cached copy
// with a fresh load.
func (e *Engine) PreloadGrid(cellID string) error {
	_, err := e.loadCell(cellID)
	return err
}

// EvictGridFromCache drops one cell from the cache. Absent cells are a
// no-op. The durable copy is untouched.
func (e *Engine) EvictGridFromCache(cellID string) {
	e.cache.Remove(cellID)
}

// ClearCache drops every cached cell.
func (e *Engine) ClearCache() {
	e.cache.Clear()
}

// CacheSize is the number of cells currently cached.
func (e *Engine) CacheSize() int {
	return e.cache.Len()
}

// ComputeGridID maps a coordinate to its cell id, clamping out-of-range
// input to the nearest boundary cell.
func (e *Engine) ComputeGridID(lon, lat float64) string {
	return e.grid.CellOf(lon, lat)
}

// CellsCovering exposes covering-cell enumeration for collaborators
// such as the invalidation consumer.
func (e *Engine) CellsCovering(bb model.BBox) []string {
	return e.grid.CellsCovering(bb)
}

// loadCell materializes a whole cell from the durable store and caches
// it. An empty cell is cached as an empty entry, keeping the miss-path
// contract uniform.
func (e *Engine) loadCell(cellID string) (*gridcache.CellEntry, error) {
	entry := gridcache.NewCellEntry(cellID)

	start := time.Now()
	err := e.kv.PrefixScan(keys.Prefix(cellID), func(key, value string) error {
		entry.Set(key, value)
		return nil
	})
	if err != nil {
		return nil, storeErr("prefix scan", err)
	}
	observability.ObserveStoreOp("prefix_scan", time.Since(start).Seconds())
	observability.ObserveCellLoad(entry.Len())

	e.cache.Put(cellID, entry)
	e.logger.Debug("cell loaded", "cell", cellID, "points", entry.Len())
	return entry, nil
}
