//go:build windows

package media

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/windows"
)

// MinFreeSpace is the minimum free space required before a record write.
const MinFreeSpace = 1024 * 1024 // 1 MB

// ErrInsufficientSpace indicates the target media is too full to accept a write.
var ErrInsufficientSpace = errors.New("media: insufficient free space")

// CheckFreeSpace verifies dir has room for a write of the given size plus
// the safety margin.
func CheckFreeSpace(dir string, size int) error {
	path := dir
	if _, err := os.Stat(path); os.IsNotExist(err) {
		path = filepath.Dir(path)
	}

	pathPtr, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return fmt.Errorf("media: failed to convert path: %w", err)
	}

	var freeBytesAvailable, totalBytes, totalFreeBytes uint64
	if err := windows.GetDiskFreeSpaceEx(pathPtr, &freeBytesAvailable, &totalBytes, &totalFreeBytes); err != nil {
		return fmt.Errorf("media: failed to stat filesystem: %w", err)
	}

	required := uint64(size) + MinFreeSpace
	if freeBytesAvailable < required {
		return fmt.Errorf("%w: %d bytes available, need %d", ErrInsufficientSpace, freeBytesAvailable, required)
	}
	return nil
}
