// Package keys encodes terrain points into sortable storage keys.
//
// A key is "<cell-id>|<lon>|<lat>" with both coordinates rendered in
// fixed notation with exactly 7 fractional digits. Every key of a cell
// shares the "<cell-id>|" prefix, so a prefix scan returns a whole cell;
// keys sort lexicographically by cell id first. The format is persisted
// and must match existing data bit for bit.
package keys

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	sep       = "|"
	precision = 7
)

// Encode builds the storage key for a point inside the given cell.
func Encode(cellID string, lon, lat float64) string {
	return fmt.Sprintf("%s%s%.7f%s%.7f", cellID, sep, lon, sep, lat)
}

// Prefix returns the scan prefix shared by all keys of a cell.
func Prefix(cellID string) string {
	return cellID + sep
}

// Decode parses the coordinates back out of a storage key. It is the
// exact inverse of Encode's coordinate rendering. A key that does not
// split into exactly three segments, or whose coordinate segments do not
// parse, is reported via ErrMalformed.
func Decode(key string) (lon, lat float64, err error) {
	parts := strings.Split(key, sep)
	if len(parts) != 3 {
		return 0, 0, &ErrMalformed{Key: key, Reason: "want 2 separators"}
	}
	lon, err = strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return 0, 0, &ErrMalformed{Key: key, Reason: "longitude segment"}
	}
	lat, err = strconv.ParseFloat(parts[2], 64)
	if err != nil {
		return 0, 0, &ErrMalformed{Key: key, Reason: "latitude segment"}
	}
	return lon, lat, nil
}

// CellID returns the cell segment of a storage key.
func CellID(key string) (string, error) {
	i := strings.Index(key, sep)
	if i < 0 {
		return "", &ErrMalformed{Key: key, Reason: "no separator"}
	}
	return key[:i], nil
}

// ErrMalformed indicates a persisted key that does not follow the wire
// format: either data corruption or a codec mismatch. Callers must
// surface it rather than skip the record.
type ErrMalformed struct {
	Key    string
	Reason string
}

func (e *ErrMalformed) Error() string {
	return fmt.Sprintf("malformed storage key %q: %s", e.Key, e.Reason)
}
