package engine

import (
	"fmt"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/olindqvist/terrain-grid-cache/internal/core/model"
	"github.com/olindqvist/terrain-grid-cache/internal/store/leveldbstore"
)

var testExtent = model.Extent{MinLon: 116.0, MinLat: 39.0, MaxLon: 117.5, MaxLat: 41.0}

func newEngine(t *testing.T, cacheCells int) (*Engine, *leveldbstore.Store) {
	t.Helper()
	kv, err := leveldbstore.OpenMem()
	require.NoError(t, err)
	t.Cleanup(func() { _ = kv.Close() })

	e, err := New(kv, Config{Extent: testExtent, CellSize: 0.01, CacheCells: cacheCells}, nil)
	require.NoError(t, err)
	return e, kv
}

func TestNew_InvalidConfiguration(t *testing.T) {
	kv, err := leveldbstore.OpenMem()
	require.NoError(t, err)
	defer kv.Close()

	_, err = New(kv, Config{Extent: testExtent, CellSize: 0}, nil)
	var ic *ErrInvalidConfig
	require.ErrorAs(t, err, &ic)

	_, err = New(kv, Config{Extent: testExtent, CellSize: -0.5}, nil)
	require.ErrorAs(t, err, &ic)

	inverted := model.Extent{MinLon: 10, MinLat: 10, MaxLon: 5, MaxLat: 20}
	_, err = New(kv, Config{Extent: inverted, CellSize: 0.01}, nil)
	require.ErrorAs(t, err, &ic)
}

func TestPutGet_RoundTrip(t *testing.T) {
	e, _ := newEngine(t, 16)

	require.NoError(t, e.Put(116.405, 39.905, "elev=43.5", false))
	v, ok, err := e.Get(116.405, 39.905)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "elev=43.5", v)

	// overwrite
	require.NoError(t, e.Put(116.405, 39.905, "elev=44.0", true))
	v, ok, err = e.Get(116.405, 39.905)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "elev=44.0", v)
}

func TestPut_OutOfBoundsRejected(t *testing.T) {
	e, _ := newEngine(t, 16)

	err := e.Put(115.9, 39.5, "x", false)
	require.True(t, IsOutOfBounds(err), "err = %v", err)

	var oob *ErrOutOfBounds
	require.ErrorAs(t, err, &oob)
	require.Equal(t, 115.9, oob.Lon)
}

func TestGet_OutOfBoundsAbsentNoError(t *testing.T) {
	e, _ := newEngine(t, 16)

	_, ok, err := e.Get(200.0, 39.5)
	require.NoError(t, err)
	require.False(t, ok)
	require.Zero(t, e.CacheSize(), "out-of-bounds read must not load cells")
}

func TestGet_MissLoadsWholeCell(t *testing.T) {
	e, _ := newEngine(t, 16)

	// two points in the same cell, one in a neighbour cell
	require.NoError(t, e.Put(116.401, 39.901, "p1", false))
	require.NoError(t, e.Put(116.402, 39.902, "p2", false))
	require.NoError(t, e.Put(116.411, 39.901, "p3", false))
	require.Zero(t, e.CacheSize(), "writes must not populate the cache")

	_, ok, err := e.Get(116.401, 39.901)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 1, e.CacheSize(), "one miss loads exactly one cell")

	// sibling point now answered from the same cached cell
	v, ok, err := e.Get(116.402, 39.902)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "p2", v)
	require.Equal(t, 1, e.CacheSize())
}

func TestGet_AbsentPointStillCachesCell(t *testing.T) {
	e, _ := newEngine(t, 16)

	_, ok, err := e.Get(116.405, 39.905)
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, 1, e.CacheSize(), "an empty cell is cached as an empty entry")
}

func TestWriteThrough_UpdatesCachedCellInPlace(t *testing.T) {
	e, _ := newEngine(t, 16)

	require.NoError(t, e.Put(116.405, 39.905, "old", false))
	_, _, err := e.Get(116.405, 39.905) // cell now cached
	require.NoError(t, err)

	require.NoError(t, e.Put(116.406, 39.905, "new-point", false))
	v, ok, err := e.Get(116.406, 39.905)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "new-point", v)
	require.Equal(t, 1, e.CacheSize())
}

func TestDelete_RemovesFromStoreAndCache(t *testing.T) {
	e, _ := newEngine(t, 16)

	require.NoError(t, e.Put(116.405, 39.905, "v", false))
	_, _, err := e.Get(116.405, 39.905)
	require.NoError(t, err)

	require.NoError(t, e.Delete(116.405, 39.905, false))
	_, ok, err := e.Get(116.405, 39.905)
	require.NoError(t, err)
	require.False(t, ok)

	// absent and out-of-bounds deletes are no-ops
	require.NoError(t, e.Delete(116.405, 39.905, false))
	require.NoError(t, e.Delete(0, 0, false))
}

func TestExists_DoesNotTouchCache(t *testing.T) {
	e, _ := newEngine(t, 16)

	require.NoError(t, e.Put(116.405, 39.905, "v", false))
	ok, err := e.Exists(116.405, 39.905)
	require.NoError(t, err)
	require.True(t, ok)
	require.Zero(t, e.CacheSize())

	ok, err = e.Exists(116.5, 40.5)
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = e.Exists(500, 500)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestBatchPut_AtomicOnBoundsViolation(t *testing.T) {
	e, _ := newEngine(t, 16)

	pts := []model.PointValue{
		{Lon: 116.401, Lat: 39.901, Value: "a"},
		{Lon: 116.402, Lat: 39.902, Value: "b"},
		{Lon: 999.0, Lat: 39.903, Value: "oob"},
	}
	err := e.BatchPut(pts, false)
	require.True(t, IsOutOfBounds(err))

	for _, p := range pts[:2] {
		ok, err := e.Exists(p.Lon, p.Lat)
		require.NoError(t, err)
		require.False(t, ok, "point (%v,%v) leaked despite failed batch", p.Lon, p.Lat)
	}
}

func TestBatchPut_CommitsAllAndUpdatesCachedCells(t *testing.T) {
	e, _ := newEngine(t, 16)

	// cache the target cell first
	_, _, err := e.Get(116.405, 39.905)
	require.NoError(t, err)

	pts := []model.PointValue{
		{Lon: 116.405, Lat: 39.905, Value: "in-cached-cell"},
		{Lon: 116.455, Lat: 39.955, Value: "elsewhere"},
	}
	require.NoError(t, e.BatchPut(pts, true))
	require.Equal(t, 1, e.CacheSize(), "batch must not load new cells")

	for _, p := range pts {
		v, ok, err := e.Get(p.Lon, p.Lat)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, p.Value, v)
	}
}

func TestRangeQuery_Exactness(t *testing.T) {
	e, _ := newEngine(t, 16)

	pts := []model.PointValue{
		{Lon: 116.402, Lat: 39.901, Value: "p1"},
		{Lon: 116.403, Lat: 39.902, Value: "p2"},
		{Lon: 116.404, Lat: 39.903, Value: "p3"},
		{Lon: 116.405, Lat: 39.904, Value: "p4"},
		{Lon: 116.500, Lat: 40.000, Value: "p5"},
	}
	require.NoError(t, e.BatchPut(pts, false))

	var got []string
	err := e.RangeQuery(model.BBox{MinLon: 116.401, MinLat: 39.900, MaxLon: 116.406, MaxLat: 39.905},
		func(lon, lat float64, value string) {
			got = append(got, value)
		})
	require.NoError(t, err)
	sort.Strings(got)
	require.Equal(t, []string{"p1", "p2", "p3", "p4"}, got)
}

func TestRangeQuery_CachesVisitedCells(t *testing.T) {
	e, _ := newEngine(t, 64)

	require.NoError(t, e.Put(116.405, 39.905, "v", false))
	bb := model.BBox{MinLon: 116.405, MinLat: 39.905, MaxLon: 116.415, MaxLat: 39.915}
	require.NoError(t, e.RangeQuery(bb, func(lon, lat float64, value string) {}))

	// 2x2 covering cells all cached, hit or not
	require.Equal(t, 4, e.CacheSize())
}

func TestRangeQuery_SurfacesMalformedKeys(t *testing.T) {
	e, kv := newEngine(t, 16)

	// corrupt record planted under a covered cell prefix
	require.NoError(t, kv.Put("G_090_040|garbage", "x", false))

	err := e.RangeQuery(model.BBox{MinLon: 116.40, MinLat: 39.90, MaxLon: 116.41, MaxLat: 39.91},
		func(lon, lat float64, value string) {})
	require.Error(t, err)
	require.True(t, IsMalformedKey(err), "err = %v", err)
}

func TestCacheEviction_BoundedByCells(t *testing.T) {
	e, _ := newEngine(t, 3)

	// populate and load 5 distinct cells
	for i := 0; i < 5; i++ {
		lon := 116.005 + float64(i)*0.01
		require.NoError(t, e.Put(lon, 39.005, fmt.Sprintf("v%d", i), false))
		_, _, err := e.Get(lon, 39.005)
		require.NoError(t, err)
	}
	require.Equal(t, 3, e.CacheSize())
}

func TestPreloadEvictClear(t *testing.T) {
	e, _ := newEngine(t, 16)

	require.NoError(t, e.Put(116.405, 39.905, "v", false))
	cell := e.ComputeGridID(116.405, 39.905)

	require.NoError(t, e.PreloadGrid(cell))
	require.Equal(t, 1, e.CacheSize())

	e.EvictGridFromCache(cell)
	require.Zero(t, e.CacheSize())
	e.EvictGridFromCache(cell) // absent: no-op

	require.NoError(t, e.PreloadGrid(cell))
	e.ClearCache()
	e.ClearCache() // idempotent
	require.Zero(t, e.CacheSize())

	// value still durable after cache churn
	v, ok, err := e.Get(116.405, 39.905)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "v", v)
}

func TestComputeGridID_SpecPoints(t *testing.T) {
	e, _ := newEngine(t, 16)
	require.Equal(t, "G_090_040", e.ComputeGridID(116.405, 39.905))
	require.Equal(t, "G_199_149", e.ComputeGridID(117.499, 40.999))
}
