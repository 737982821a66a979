//go:build linux || darwin

package archive

import (
	"io/fs"
	"os"
)

// applyEntryMode applies the archive-recorded permission bits on
// platforms that honor them.
func applyEntryMode(path string, mode fs.FileMode) error {
	return os.Chmod(path, mode.Perm())
}
