package media

import (
	"os"
	"sync"
)

// DirDriver is a Driver backed by a plain directory. Presence is the
// directory existing; mount state is tracked explicitly so mismatched
// mount/unmount pairs are caught instead of papered over. Used by the CLI
// on hosts and by tests.
type DirDriver struct {
	dir string

	mu      sync.Mutex
	mounted bool
}

// NewDirDriver creates a directory-backed driver rooted at dir.
func NewDirDriver(dir string) *DirDriver {
	return &DirDriver{dir: dir}
}

// Present reports whether the backing directory exists.
func (d *DirDriver) Present() bool {
	info, err := os.Stat(d.dir)
	return err == nil && info.IsDir()
}

// Mount marks the media as mounted.
func (d *DirDriver) Mount() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.Present() {
		return ErrMediaUnavailable
	}
	if d.mounted {
		return ErrAlreadyMounted
	}
	d.mounted = true
	return nil
}

// Unmount marks the media as unmounted.
func (d *DirDriver) Unmount() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.mounted {
		return ErrNotMounted
	}
	d.mounted = false
	return nil
}

// Mounted reports the current mount state.
func (d *DirDriver) Mounted() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.mounted
}
