package engine

import (
	"errors"
	"fmt"

	"github.com/olindqvist/terrain-grid-cache/internal/core/model"
	"github.com/olindqvist/terrain-grid-cache/internal/grid/keys"
)

// ErrStore marks any durable-store failure other than "not found". It
// is never retried here; retry policy belongs to the store or caller.
var ErrStore = errors.New("durable store failure")

// ErrOutOfBounds rejects a write outside the configured extent. Reads
// are the asymmetric counterpart: they return absent instead.
type ErrOutOfBounds struct {
	Lon, Lat float64
	Extent   model.Extent
}

func (e *ErrOutOfBounds) Error() string {
	return fmt.Sprintf("coordinate (%v, %v) outside extent [%v,%v]x[%v,%v]",
		e.Lon, e.Lat, e.Extent.MinLon, e.Extent.MaxLon, e.Extent.MinLat, e.Extent.MaxLat)
}

// ErrInvalidConfig is returned at construction for an unusable geometry.
type ErrInvalidConfig struct {
	Reason string
}

func (e *ErrInvalidConfig) Error() string {
	return "invalid engine configuration: " + e.Reason
}

// IsOutOfBounds reports whether err is a bounds rejection.
func IsOutOfBounds(err error) bool {
	var oob *ErrOutOfBounds
	return errors.As(err, &oob)
}

// IsMalformedKey reports whether err stems from a corrupt persisted key.
func IsMalformedKey(err error) bool {
	var mk *keys.ErrMalformed
	return errors.As(err, &mk)
}

func storeErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStore, op, err)
}
