//go:build !windows

package media

import (
	"errors"
	"fmt"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// MinFreeSpace is the minimum free space required before a record write.
// Records are tiny; the margin guards against writing onto a full card,
// which is the classic way to produce a truncated file.
const MinFreeSpace = 1024 * 1024 // 1 MB

// ErrInsufficientSpace indicates the target media is too full to accept a write.
var ErrInsufficientSpace = errors.New("media: insufficient free space")

// CheckFreeSpace verifies dir has room for a write of the given size plus
// the safety margin.
func CheckFreeSpace(dir string, size int) error {
	var stat unix.Statfs_t
	if err := unix.Statfs(dir, &stat); err != nil {
		// Directory may not exist yet; fall back to its parent.
		if err := unix.Statfs(filepath.Dir(dir), &stat); err != nil {
			return fmt.Errorf("media: failed to stat filesystem: %w", err)
		}
	}

	available := stat.Bavail * uint64(stat.Bsize)
	required := uint64(size) + MinFreeSpace
	if available < required {
		return fmt.Errorf("%w: %d bytes available, need %d", ErrInsufficientSpace, available, required)
	}
	return nil
}
