// Package model defines core domain types shared across the service.
package model

import (
	"fmt"

	"github.com/paulmach/orb"
)

// Extent is the configured geographic coverage of an engine instance.
type Extent struct {
	MinLon, MinLat float64
	MaxLon, MaxLat float64
}

func (e Extent) Contains(lon, lat float64) bool {
	return lon >= e.MinLon && lon <= e.MaxLon &&
		lat >= e.MinLat && lat <= e.MaxLat
}

// BBox is a rectangular query window in EPSG:4326 degrees.
type BBox struct {
	MinLon, MinLat float64
	MaxLon, MaxLat float64
}

func (b BBox) String() string {
	return fmt.Sprintf("%.6f,%.6f,%.6f,%.6f", b.MinLon, b.MinLat, b.MaxLon, b.MaxLat)
}

func (b BBox) Bound() orb.Bound {
	return orb.Bound{
		Min: orb.Point{b.MinLon, b.MinLat},
		Max: orb.Point{b.MaxLon, b.MaxLat},
	}
}

// Contains reports whether the point lies inside the box, borders included.
func (b BBox) Contains(lon, lat float64) bool {
	return b.Bound().Contains(orb.Point{lon, lat})
}

// PointValue is one terrain sample: a coordinate and its stored payload.
type PointValue struct {
	Lon   float64 `json:"lon"`
	Lat   float64 `json:"lat"`
	Value string  `json:"value"`
}
