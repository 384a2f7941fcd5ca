// Package media resolves the two storage roots the keystore can write to
// and owns the mount lifecycle of the removable one.
//
// The internal root is a plain directory that is always reachable. The
// removable root is reachable only between Mount and Unmount calls on its
// Driver, and the Locator is the only component allowed to issue those
// calls. Every access is bracketed by WithMounted so no code path can leave
// the card mounted behind.
package media

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// Sentinel errors for media access.
var (
	// ErrMediaUnavailable indicates the removable media is not physically present.
	ErrMediaUnavailable = errors.New("media: removable media is not present")

	// ErrAlreadyMounted indicates a mount was requested while already mounted.
	ErrAlreadyMounted = errors.New("media: already mounted")

	// ErrNotMounted indicates an unmount was requested while not mounted.
	ErrNotMounted = errors.New("media: not mounted")
)

// Root identifies one of the two storage media.
type Root int

const (
	// Internal is the always-available internal flash root.
	Internal Root = iota
	// Removable is the SD card root, reachable only while mounted.
	Removable
)

// String returns the human-readable media name.
func (r Root) String() string {
	switch r {
	case Internal:
		return "internal flash"
	case Removable:
		return "SD card"
	default:
		return "unknown"
	}
}

// ParseRoot parses a media name as used on the command line.
func ParseRoot(s string) (Root, error) {
	switch s {
	case "internal", "flash":
		return Internal, nil
	case "sdcard", "sd", "removable":
		return Removable, nil
	default:
		return 0, fmt.Errorf("media: unknown media %q (use internal or sdcard)", s)
	}
}

// Driver is the raw removable-media driver boundary. Host builds use
// DirDriver; device integrations supply their own implementation.
type Driver interface {
	// Present reports whether the media is physically inserted.
	Present() bool
	// Mount makes the media's filesystem reachable.
	Mount() error
	// Unmount releases the media's filesystem.
	Unmount() error
}

// Locator resolves the two storage roots and brackets removable access in
// mount/unmount scopes. It is the single owner of the mount state.
type Locator struct {
	internal  string
	removable string
	driver    Driver
	log       zerolog.Logger
}

// NewLocator creates a Locator for the given root paths. driver controls
// the removable root; the internal root needs no driver.
func NewLocator(internalPath, removablePath string, driver Driver, log zerolog.Logger) *Locator {
	return &Locator{
		internal:  internalPath,
		removable: removablePath,
		driver:    driver,
		log:       log.With().Str("component", "media").Logger(),
	}
}

// Path returns the filesystem path of a root. The removable path is only
// valid inside a WithMounted scope.
func (l *Locator) Path(root Root) string {
	if root == Removable {
		return l.removable
	}
	return l.internal
}

// Present reports whether the root can be used at all. The internal root
// is always present; the removable root only when the card is inserted.
func (l *Locator) Present(root Root) bool {
	if root == Removable {
		return l.driver.Present()
	}
	return true
}

// WithMounted runs fn with the root's directory reachable.
//
// For the removable root the media is mounted first and unconditionally
// unmounted afterwards, whether fn succeeds or fails. If the media is not
// present, ErrMediaUnavailable is returned before any mount attempt. The
// internal root is passed through after making sure the directory exists.
func (l *Locator) WithMounted(root Root, fn func(dir string) error) error {
	if root != Removable {
		if err := os.MkdirAll(l.internal, 0700); err != nil {
			return fmt.Errorf("media: failed to create internal root: %w", err)
		}
		return fn(l.internal)
	}

	if !l.driver.Present() {
		return ErrMediaUnavailable
	}
	if err := l.driver.Mount(); err != nil {
		return fmt.Errorf("media: mount failed: %w", err)
	}
	l.log.Debug().Msg("mounted removable media")

	defer func() {
		if err := l.driver.Unmount(); err != nil {
			// The operation result stands; a failed unmount is logged so
			// the next mount attempt surfaces the stale state.
			l.log.Error().Err(err).Msg("unmount failed")
			return
		}
		l.log.Debug().Msg("unmounted removable media")
	}()

	return fn(l.removable)
}

// MatchesPrefix reports whether name is exactly prefix (the default
// record) or prefix plus a "."-separated label. Presence checks and
// record enumeration share this rule, so a lookalike name such as
// "reckless2.x" never counts for the prefix "reckless".
func MatchesPrefix(name, prefix string) bool {
	return name == prefix || strings.HasPrefix(name, prefix+".")
}

// HasPrefixedFile reports whether any record of prefix exists under root.
// The check performs its own mount/unmount scope for the removable root
// and leaves no side effects. A removable root that is not present simply
// reports false.
func (l *Locator) HasPrefixedFile(root Root, prefix string) (bool, error) {
	if root == Removable && !l.driver.Present() {
		return false, nil
	}

	found := false
	err := l.WithMounted(root, func(dir string) error {
		entries, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return fmt.Errorf("media: failed to list %s: %w", root, err)
		}
		for _, entry := range entries {
			if !entry.IsDir() && MatchesPrefix(entry.Name(), prefix) {
				found = true
				return nil
			}
		}
		return nil
	})
	return found, err
}
