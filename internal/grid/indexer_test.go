package grid

import (
	"testing"

	"github.com/olindqvist/terrain-grid-cache/internal/core/model"
)

var beijing = model.Extent{MinLon: 116.0, MinLat: 39.0, MaxLon: 117.5, MaxLat: 41.0}

func TestCellOf_Determinism(t *testing.T) {
	ix := NewIndexer(beijing, 0.01)

	cases := []struct {
		lon, lat float64
		want     string
	}{
		{116.405, 39.905, "G_090_040"},
		{117.499, 40.999, "G_199_149"},
		{116.0, 39.0, "G_000_000"},
		{116.009, 39.009, "G_000_000"},
		{116.015, 39.015, "G_001_001"},
	}
	for _, c := range cases {
		if got := ix.CellOf(c.lon, c.lat); got != c.want {
			t.Errorf("CellOf(%v, %v) = %s, want %s", c.lon, c.lat, got, c.want)
		}
		// pure function: a second call must agree
		if got := ix.CellOf(c.lon, c.lat); got != c.want {
			t.Errorf("CellOf(%v, %v) not stable, second call = %s", c.lon, c.lat, got)
		}
	}
}

func TestCellOf_ClampsOutOfRange(t *testing.T) {
	ix := NewIndexer(beijing, 0.01)

	// far west/south clamps to the min corner
	if got := ix.CellOf(100.0, 10.0); got != "G_000_000" {
		t.Fatalf("clamped cell = %s, want G_000_000", got)
	}
	// out-of-range input still yields a valid boundary id, same as the
	// id for the max corner itself
	if got, want := ix.CellOf(180.0, 90.0), ix.CellOf(117.5, 41.0); got != want {
		t.Fatalf("clamped max cell = %s, want %s", got, want)
	}
}

func TestWithinBounds_InclusiveEdges(t *testing.T) {
	ix := NewIndexer(beijing, 0.01)

	in := [][2]float64{{116.0, 39.0}, {117.5, 41.0}, {116.7, 40.2}}
	for _, p := range in {
		if !ix.WithinBounds(p[0], p[1]) {
			t.Errorf("WithinBounds(%v, %v) = false, want true", p[0], p[1])
		}
	}
	out := [][2]float64{{115.999, 39.5}, {117.501, 39.5}, {116.5, 38.999}, {116.5, 41.001}}
	for _, p := range out {
		if ix.WithinBounds(p[0], p[1]) {
			t.Errorf("WithinBounds(%v, %v) = true, want false", p[0], p[1])
		}
	}
}

func TestCellsCovering_RowMajor(t *testing.T) {
	ix := NewIndexer(beijing, 0.01)

	got := ix.CellsCovering(model.BBox{MinLon: 116.005, MinLat: 39.005, MaxLon: 116.015, MaxLat: 39.025})
	want := []string{
		"G_000_000", "G_000_001",
		"G_001_000", "G_001_001",
		"G_002_000", "G_002_001",
	}
	if len(got) != len(want) {
		t.Fatalf("covering = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("covering[%d] = %s, want %s (full: %v)", i, got[i], want[i], got)
		}
	}
}

func TestCellsCovering_ClampsToGrid(t *testing.T) {
	ix := NewIndexer(beijing, 0.01)

	// box larger than the whole extent covers exactly rows*cols cells
	got := ix.CellsCovering(model.BBox{MinLon: 0, MinLat: 0, MaxLon: 180, MaxLat: 90})
	if len(got) != ix.Rows()*ix.Cols() {
		t.Fatalf("len(covering) = %d, want %d", len(got), ix.Rows()*ix.Cols())
	}
	if got[0] != "G_000_000" || got[len(got)-1] != FormatCellID(ix.Rows()-1, ix.Cols()-1) {
		t.Fatalf("covering corners = %s .. %s", got[0], got[len(got)-1])
	}
}

func TestGridGeometry(t *testing.T) {
	ix := NewIndexer(beijing, 0.01)
	if ix.Cols() != 150 {
		t.Errorf("Cols = %d, want 150", ix.Cols())
	}
	if ix.Rows() != 200 {
		t.Errorf("Rows = %d, want 200", ix.Rows())
	}
}
