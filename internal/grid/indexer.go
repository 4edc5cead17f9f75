// Package grid maps continuous coordinates onto a uniform cell grid.
//
// The grid partitions the configured extent into CellSize-degree squares.
// Cell ids are fixed-format strings "G_<row>_<col>" with both indexes
// zero-padded to three digits; this format is part of the persisted key
// contract and must not change.
package grid

import (
	"fmt"
	"math"

	"github.com/olindqvist/terrain-grid-cache/internal/core/model"
)

type Indexer struct {
	extent   model.Extent
	cellSize float64
	rows     int
	cols     int
}

// NewIndexer derives the grid geometry from the extent and cell size.
// The cell size must be positive; the caller validates that.
func NewIndexer(extent model.Extent, cellSize float64) *Indexer {
	return &Indexer{
		extent:   extent,
		cellSize: cellSize,
		rows:     int(math.Ceil((extent.MaxLat - extent.MinLat) / cellSize)),
		cols:     int(math.Ceil((extent.MaxLon - extent.MinLon) / cellSize)),
	}
}

func (ix *Indexer) Extent() model.Extent { return ix.extent }
func (ix *Indexer) Rows() int            { return ix.rows }
func (ix *Indexer) Cols() int            { return ix.cols }

// WithinBounds is the strict inclusive range check used to accept writes.
func (ix *Indexer) WithinBounds(lon, lat float64) bool {
	return ix.extent.Contains(lon, lat)
}

// CellOf returns the cell id covering the coordinate. The coordinate is
// clamped into the extent first, so out-of-range input still yields a
// boundary cell id; callers that must reject such input use WithinBounds.
func (ix *Indexer) CellOf(lon, lat float64) string {
	return FormatCellID(ix.rowOf(lat), ix.colOf(lon))
}

// CellsCovering enumerates every cell intersecting the box in row-major
// order, boundary cells included. Indexes are clamped into the grid, so a
// box reaching past the extent never yields out-of-grid ids.
func (ix *Indexer) CellsCovering(bb model.BBox) []string {
	startCol := max(0, ix.colOf(bb.MinLon))
	endCol := min(ix.cols-1, ix.colOf(bb.MaxLon))
	startRow := max(0, ix.rowOf(bb.MinLat))
	endRow := min(ix.rows-1, ix.rowOf(bb.MaxLat))

	var cells []string
	for row := startRow; row <= endRow; row++ {
		for col := startCol; col <= endCol; col++ {
			cells = append(cells, FormatCellID(row, col))
		}
	}
	return cells
}

func (ix *Indexer) colOf(lon float64) int {
	n := math.Max(ix.extent.MinLon, math.Min(ix.extent.MaxLon, lon))
	return int((n - ix.extent.MinLon) / ix.cellSize)
}

func (ix *Indexer) rowOf(lat float64) int {
	n := math.Max(ix.extent.MinLat, math.Min(ix.extent.MaxLat, lat))
	return int((n - ix.extent.MinLat) / ix.cellSize)
}

// FormatCellID renders the wire-format cell id for a (row, col) pair.
func FormatCellID(row, col int) string {
	return fmt.Sprintf("G_%03d_%03d", row, col)
}
