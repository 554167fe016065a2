// internal/harvest/osfs.go
package harvest

import (
	"fmt"
	"io"
	"os"
)

// OSFilesystem implements Filesystem over the real OS.
type OSFilesystem struct{}

func (OSFilesystem) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// OpenAppend opens the file for appended writes without changing its
// contents. On Windows this fails with a permission error while the browser
// still holds the download open, which is exactly the probe the poller needs.
func (OSFilesystem) OpenAppend(path string) (io.Closer, error) {
	return os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0)
}

// Rename refuses to clobber an existing destination; on Linux os.Rename
// would silently overwrite it.
func (OSFilesystem) Rename(oldPath, newPath string) error {
	if _, err := os.Stat(newPath); err == nil {
		return fmt.Errorf("destination %s: %w", newPath, os.ErrExist)
	}
	return os.Rename(oldPath, newPath)
}
