package media

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
)

func newTestLocator(t *testing.T) (*Locator, *DirDriver, string, string) {
	t.Helper()
	internal := t.TempDir()
	removable := t.TempDir()
	driver := NewDirDriver(removable)
	loc := NewLocator(internal, removable, driver, zerolog.Nop())
	return loc, driver, internal, removable
}

func TestRootString(t *testing.T) {
	if Internal.String() != "internal flash" {
		t.Errorf("Internal.String() = %q", Internal.String())
	}
	if Removable.String() != "SD card" {
		t.Errorf("Removable.String() = %q", Removable.String())
	}
}

func TestWithMountedInternal(t *testing.T) {
	loc, driver, internal, _ := newTestLocator(t)

	var got string
	err := loc.WithMounted(Internal, func(dir string) error {
		got = dir
		return nil
	})
	if err != nil {
		t.Fatalf("WithMounted() error = %v", err)
	}
	if got != internal {
		t.Errorf("WithMounted() dir = %q, want %q", got, internal)
	}
	if driver.Mounted() {
		t.Error("internal access should not touch the removable mount state")
	}
}

func TestWithMountedScopeOnSuccess(t *testing.T) {
	loc, driver, _, removable := newTestLocator(t)

	var mountedDuring bool
	err := loc.WithMounted(Removable, func(dir string) error {
		if dir != removable {
			t.Errorf("WithMounted() dir = %q, want %q", dir, removable)
		}
		mountedDuring = driver.Mounted()
		return nil
	})
	if err != nil {
		t.Fatalf("WithMounted() error = %v", err)
	}
	if !mountedDuring {
		t.Error("media should be mounted inside the scope")
	}
	if driver.Mounted() {
		t.Error("media left mounted after successful operation")
	}
}

func TestWithMountedScopeOnFailure(t *testing.T) {
	loc, driver, _, _ := newTestLocator(t)

	opErr := errors.New("boom")
	err := loc.WithMounted(Removable, func(dir string) error {
		return opErr
	})
	if !errors.Is(err, opErr) {
		t.Fatalf("WithMounted() error = %v, want %v", err, opErr)
	}
	if driver.Mounted() {
		t.Error("media left mounted after failed operation")
	}
}

func TestWithMountedMediaAbsent(t *testing.T) {
	internal := t.TempDir()
	absent := filepath.Join(t.TempDir(), "nonexistent")
	driver := NewDirDriver(absent)
	loc := NewLocator(internal, absent, driver, zerolog.Nop())

	called := false
	err := loc.WithMounted(Removable, func(dir string) error {
		called = true
		return nil
	})
	if !errors.Is(err, ErrMediaUnavailable) {
		t.Fatalf("WithMounted() error = %v, want %v", err, ErrMediaUnavailable)
	}
	if called {
		t.Error("operation must not run when media is absent")
	}
	if driver.Mounted() {
		t.Error("no mount may survive an absent-media request")
	}
}

func TestPresent(t *testing.T) {
	loc, _, _, _ := newTestLocator(t)
	if !loc.Present(Internal) {
		t.Error("internal root should always be present")
	}
	if !loc.Present(Removable) {
		t.Error("removable root with existing dir should be present")
	}

	gone := NewLocator(t.TempDir(), "/nonexistent", NewDirDriver("/nonexistent"), zerolog.Nop())
	if gone.Present(Removable) {
		t.Error("removable root without backing dir should be absent")
	}
}

func TestHasPrefixedFile(t *testing.T) {
	loc, driver, internal, _ := newTestLocator(t)

	found, err := loc.HasPrefixedFile(Internal, "reckless")
	if err != nil {
		t.Fatalf("HasPrefixedFile() error = %v", err)
	}
	if found {
		t.Error("empty root should report no records")
	}

	if err := os.WriteFile(filepath.Join(internal, "reckless.main"), []byte{1}, 0600); err != nil {
		t.Fatal(err)
	}
	found, err = loc.HasPrefixedFile(Internal, "reckless")
	if err != nil {
		t.Fatalf("HasPrefixedFile() error = %v", err)
	}
	if !found {
		t.Error("record with matching prefix should be found")
	}

	if driver.Mounted() {
		t.Error("presence check left media mounted")
	}
}

func TestHasPrefixedFileIgnoresLookalikes(t *testing.T) {
	loc, _, internal, _ := newTestLocator(t)

	// A different device's prefix that happens to start with ours must not
	// count as a record of ours.
	if err := os.WriteFile(filepath.Join(internal, "reckless2.x"), []byte{1}, 0600); err != nil {
		t.Fatal(err)
	}
	found, err := loc.HasPrefixedFile(Internal, "reckless")
	if err != nil {
		t.Fatalf("HasPrefixedFile() error = %v", err)
	}
	if found {
		t.Error("lookalike filename counted as a record")
	}
}

func TestMatchesPrefix(t *testing.T) {
	tests := []struct {
		name, prefix string
		want         bool
	}{
		{"reckless", "reckless", true},
		{"reckless.main", "reckless", true},
		{"reckless2.x", "reckless", false},
		{"recklessmain", "reckless", false},
		{"specterdiyab12cd34.alice", "specterdiyab12cd34", true},
		{"specterdiyab12cd34ff.x", "specterdiyab12cd34", false},
	}
	for _, tt := range tests {
		if got := MatchesPrefix(tt.name, tt.prefix); got != tt.want {
			t.Errorf("MatchesPrefix(%q, %q) = %v, want %v", tt.name, tt.prefix, got, tt.want)
		}
	}
}

func TestHasPrefixedFileAbsentMedia(t *testing.T) {
	internal := t.TempDir()
	absent := filepath.Join(t.TempDir(), "nope")
	loc := NewLocator(internal, absent, NewDirDriver(absent), zerolog.Nop())

	found, err := loc.HasPrefixedFile(Removable, "specterdiy")
	if err != nil {
		t.Fatalf("HasPrefixedFile() error = %v", err)
	}
	if found {
		t.Error("absent media should report no records, not an error")
	}
}

func TestParseRoot(t *testing.T) {
	for name, want := range map[string]Root{
		"internal":  Internal,
		"flash":     Internal,
		"sdcard":    Removable,
		"sd":        Removable,
		"removable": Removable,
	} {
		got, err := ParseRoot(name)
		if err != nil {
			t.Errorf("ParseRoot(%q) error = %v", name, err)
		}
		if got != want {
			t.Errorf("ParseRoot(%q) = %v, want %v", name, got, want)
		}
	}
	if _, err := ParseRoot("floppy"); err == nil {
		t.Error("ParseRoot(\"floppy\") accepted an unknown media name")
	}
}

func TestDirDriverMountPairs(t *testing.T) {
	driver := NewDirDriver(t.TempDir())

	if err := driver.Unmount(); !errors.Is(err, ErrNotMounted) {
		t.Errorf("Unmount() before mount: error = %v, want %v", err, ErrNotMounted)
	}
	if err := driver.Mount(); err != nil {
		t.Fatalf("Mount() error = %v", err)
	}
	if err := driver.Mount(); !errors.Is(err, ErrAlreadyMounted) {
		t.Errorf("double Mount(): error = %v, want %v", err, ErrAlreadyMounted)
	}
	if err := driver.Unmount(); err != nil {
		t.Fatalf("Unmount() error = %v", err)
	}
}

func TestCheckFreeSpace(t *testing.T) {
	if err := CheckFreeSpace(t.TempDir(), 1024); err != nil {
		t.Errorf("CheckFreeSpace() on temp dir: error = %v", err)
	}
}
