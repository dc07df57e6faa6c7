//go:build !unix

package storage

import "math"

// Free-space reporting is only wired up for unix; elsewhere the soft
// pre-upload check is effectively disabled.
func freeBytes(path string) (uint64, error) {
	return math.MaxUint64, nil
}
