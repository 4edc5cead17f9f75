// Package invalidation defines the cache eviction event schema consumed
// from the message bus. Events only drop cells from the in-process
// cache; the durable store is never touched, so a consumed event can at
// worst cost a reload.
package invalidation

import (
	"fmt"
	"regexp"
	"time"
)

const (
	OpEvict    = "evict"
	OpEvictAll = "evict_all"
)

var cellIDPattern = regexp.MustCompile(`^G_\d{3}_\d{3}$`)

type BBox struct {
	MinLon float64 `json:"min_lon"`
	MinLat float64 `json:"min_lat"`
	MaxLon float64 `json:"max_lon"`
	MaxLat float64 `json:"max_lat"`
}

type Event struct {
	Version int       `json:"version"`
	Op      string    `json:"op"`
	TS      time.Time `json:"ts"`
	Source  string    `json:"source,omitempty"`
	CellID  string    `json:"cell_id,omitempty"`
	BBox    *BBox     `json:"bbox,omitempty"`
}

func (e Event) Validate() error {
	if e.Version != 1 {
		return fmt.Errorf("version must be 1")
	}
	if e.TS.IsZero() {
		return fmt.Errorf("ts is required")
	}
	switch e.Op {
	case OpEvictAll:
		if e.CellID != "" || e.BBox != nil {
			return fmt.Errorf("evict_all takes no target")
		}
		return nil
	case OpEvict:
	default:
		return fmt.Errorf("op must be evict|evict_all")
	}

	hasCell := e.CellID != ""
	hasBBox := e.BBox != nil
	if hasCell == hasBBox {
		return fmt.Errorf("exactly one of cell_id or bbox is required")
	}
	if hasCell {
		if !cellIDPattern.MatchString(e.CellID) {
			return fmt.Errorf("cell_id %q does not match G_rrr_ccc", e.CellID)
		}
		return nil
	}

	bb := *e.BBox
	if !(bb.MinLon >= -180 && bb.MinLon <= 180 && bb.MaxLon >= -180 && bb.MaxLon <= 180) {
		return fmt.Errorf("bbox longitude out of range")
	}
	if !(bb.MinLat >= -90 && bb.MinLat <= 90 && bb.MaxLat >= -90 && bb.MaxLat <= 90) {
		return fmt.Errorf("bbox latitude out of range")
	}
	if !(bb.MaxLon > bb.MinLon && bb.MaxLat > bb.MinLat) {
		return fmt.Errorf("bbox must satisfy max>min")
	}
	return nil
}
