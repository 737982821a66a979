// Package archive unpacks release archives into the install tree.
//
// Entry names are joined onto the destination unchecked, so an
// archive containing ".." segments can write outside the destination.
// Archives come from the configured catalog server, which is trusted.
package archive

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ErrMalformed wraps zip parse failures so callers can tell a bad
// archive apart from filesystem trouble.
var ErrMalformed = errors.New("malformed zip archive")

// creatorUnix is the zip "version made by" host for Unix, the only
// case where an entry carries meaningful permission bits.
const creatorUnix = 3

// Extract unpacks the in-memory zip archive into dest. Directory
// entries (names ending in a separator) are created with all
// ancestors; file entries get their parent created, then their bytes
// written. The first filesystem failure aborts the whole extraction.
func Extract(data []byte, dest string) error {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	for _, entry := range reader.File {
		if err := extractEntry(entry, dest); err != nil {
			return err
		}
	}
	return nil
}

func extractEntry(entry *zip.File, dest string) error {
	outPath := filepath.Join(dest, filepath.FromSlash(entry.Name))

	if strings.HasSuffix(entry.Name, "/") {
		if err := os.MkdirAll(outPath, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", outPath, err)
		}
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
		return fmt.Errorf("failed to create parent directory for %s: %w", outPath, err)
	}

	src, err := entry.Open()
	if err != nil {
		return fmt.Errorf("%w: failed to open entry %s: %v", ErrMalformed, entry.Name, err)
	}
	defer src.Close()

	dst, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("failed to create file %s: %w", outPath, err)
	}

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return fmt.Errorf("failed to write %s: %w", outPath, err)
	}
	if err := dst.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", outPath, err)
	}

	if entry.CreatorVersion>>8 == creatorUnix {
		if err := applyEntryMode(outPath, entry.Mode()); err != nil {
			return fmt.Errorf("failed to apply mode to %s: %w", outPath, err)
		}
	}
	return nil
}
