//go:build !linux && !darwin

package archive

import "io/fs"

// applyEntryMode is a no-op on platforms without POSIX permissions.
func applyEntryMode(path string, mode fs.FileMode) error {
	return nil
}
