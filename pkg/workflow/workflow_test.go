package workflow

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/cryptoadvance/specter-keystore/pkg/keystore"
	"github.com/cryptoadvance/specter-keystore/pkg/media"
)

const testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

type reply[T any] struct {
	value T
	err   error
}

type alert struct {
	title, message string
}

// scriptedUI replays canned responses for each prompt kind, in order.
// An exhausted queue fails the test: the workflow asked a question the
// script did not anticipate. ChooseAction falls back to ActionExit so
// every script terminates.
type scriptedUI struct {
	t *testing.T

	actions  []reply[Action]
	media    []reply[media.Root]
	records  []reply[int] // index into the offered list
	labels   []reply[string]
	confirms []reply[bool]

	offeredMedia  [][]MediaOption
	offeredRecord [][]keystore.Record
	alerts        []alert
	shown         []string
}

func (u *scriptedUI) ChooseAction() (Action, error) {
	if len(u.actions) == 0 {
		return ActionExit, nil
	}
	r := u.actions[0]
	u.actions = u.actions[1:]
	return r.value, r.err
}

func (u *scriptedUI) ChooseMedia(options []MediaOption) (media.Root, error) {
	u.offeredMedia = append(u.offeredMedia, options)
	if len(u.media) == 0 {
		u.t.Fatal("unexpected ChooseMedia prompt")
	}
	r := u.media[0]
	u.media = u.media[1:]
	return r.value, r.err
}

func (u *scriptedUI) ChooseRecord(records []keystore.Record) (keystore.Record, error) {
	u.offeredRecord = append(u.offeredRecord, records)
	if len(u.records) == 0 {
		u.t.Fatal("unexpected ChooseRecord prompt")
	}
	r := u.records[0]
	u.records = u.records[1:]
	if r.err != nil {
		return keystore.Record{}, r.err
	}
	return records[r.value], nil
}

func (u *scriptedUI) EnterLabel(prompt, suggestion string) (string, error) {
	if len(u.labels) == 0 {
		u.t.Fatal("unexpected EnterLabel prompt")
	}
	r := u.labels[0]
	u.labels = u.labels[1:]
	return r.value, r.err
}

func (u *scriptedUI) Confirm(title, message string) (bool, error) {
	if len(u.confirms) == 0 {
		u.t.Fatal("unexpected Confirm prompt")
	}
	r := u.confirms[0]
	u.confirms = u.confirms[1:]
	return r.value, r.err
}

func (u *scriptedUI) Alert(title, message string) {
	u.alerts = append(u.alerts, alert{title, message})
}

func (u *scriptedUI) ShowMnemonic(phrase string) {
	u.shown = append(u.shown, phrase)
}

func (u *scriptedUI) lastAlert(t *testing.T) alert {
	t.Helper()
	if len(u.alerts) == 0 {
		t.Fatal("no alert was shown")
	}
	return u.alerts[len(u.alerts)-1]
}

type testEnv struct {
	ks     *keystore.Keystore
	driver *media.DirDriver
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	internal := filepath.Join(t.TempDir(), "flash")
	removable := filepath.Join(t.TempDir(), "sdcard")
	if err := os.MkdirAll(removable, 0700); err != nil {
		t.Fatal(err)
	}
	driver := media.NewDirDriver(removable)
	loc := media.NewLocator(internal, removable, driver, zerolog.Nop())
	ks := keystore.New(loc, nil, zerolog.Nop())
	if err := ks.Init(); err != nil {
		t.Fatal(err)
	}
	if err := ks.Unlock([]byte("test passphrase")); err != nil {
		t.Fatal(err)
	}
	if err := ks.SetMnemonic(testMnemonic, ""); err != nil {
		t.Fatal(err)
	}
	return &testEnv{ks: ks, driver: driver}
}

func run(t *testing.T, env *testEnv, ui *scriptedUI) {
	t.Helper()
	ui.t = t
	if err := New(env.ks, ui, zerolog.Nop()).Run(); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
}

func TestRunExitImmediately(t *testing.T) {
	env := newTestEnv(t)
	ui := &scriptedUI{actions: []reply[Action]{{value: ActionExit}}}
	run(t, env, ui)
	if len(ui.alerts) != 0 {
		t.Errorf("unexpected alerts: %v", ui.alerts)
	}
}

func TestRunMenuCancelExits(t *testing.T) {
	env := newTestEnv(t)
	ui := &scriptedUI{actions: []reply[Action]{{err: ErrCancelled}}}
	run(t, env, ui)
}

func TestSaveFlow(t *testing.T) {
	env := newTestEnv(t)
	ui := &scriptedUI{
		actions: []reply[Action]{{value: ActionSave}},
		labels:  []reply[string]{{value: "main"}},
		media:   []reply[media.Root]{{value: media.Removable}},
	}
	run(t, env, ui)

	got := ui.lastAlert(t)
	if got.title != "Success!" {
		t.Errorf("alert title = %q, want %q", got.title, "Success!")
	}
	if !strings.Contains(got.message, "main") {
		t.Errorf("alert %q does not name the record", got.message)
	}
	if env.driver.Mounted() {
		t.Error("removable media left mounted after save")
	}

	records, err := env.ks.Records(media.Removable)
	if err != nil {
		t.Fatalf("Records() error = %v", err)
	}
	if len(records) != 1 || records[0].Label != "main" {
		t.Errorf("Records() = %+v, want one record labeled main", records)
	}
}

func TestSaveEmptyName(t *testing.T) {
	env := newTestEnv(t)
	ui := &scriptedUI{
		actions: []reply[Action]{{value: ActionSave}},
		labels:  []reply[string]{{value: "   "}},
	}
	run(t, env, ui)

	got := ui.lastAlert(t)
	if got.title != "Error" || !strings.Contains(got.message, "valid name") {
		t.Errorf("alert = %+v, want invalid-name error", got)
	}
	if _, err := env.ks.Records(media.Internal); !errors.Is(err, keystore.ErrNoRecords) {
		t.Error("empty name still created a file")
	}
}

func TestSaveCancelAtMediaSelect(t *testing.T) {
	env := newTestEnv(t)
	ui := &scriptedUI{
		actions: []reply[Action]{{value: ActionSave}},
		labels:  []reply[string]{{value: "main"}},
		media:   []reply[media.Root]{{err: ErrCancelled}},
	}
	run(t, env, ui)

	if len(ui.alerts) != 0 {
		t.Errorf("cancellation produced alerts: %v", ui.alerts)
	}
	if _, err := env.ks.Records(media.Internal); !errors.Is(err, keystore.ErrNoRecords) {
		t.Error("cancelled save still created a file")
	}
	if env.driver.Mounted() {
		t.Error("removable media left mounted after cancellation")
	}
}

func TestSaveOverwriteDeclined(t *testing.T) {
	env := newTestEnv(t)
	if err := env.ks.SaveMnemonic(media.Internal, "main", false); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(env.ks.Locator().Path(media.Internal), "reckless.main")
	before, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	ui := &scriptedUI{
		actions:  []reply[Action]{{value: ActionSave}},
		labels:   []reply[string]{{value: "main"}},
		media:    []reply[media.Root]{{value: media.Internal}},
		confirms: []reply[bool]{{value: false}},
	}
	run(t, env, ui)

	after, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(before, after) {
		t.Error("declined overwrite modified the original record")
	}
}

func TestSaveOverwriteConfirmed(t *testing.T) {
	env := newTestEnv(t)
	if err := env.ks.SaveMnemonic(media.Internal, "main", false); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(env.ks.Locator().Path(media.Internal), "reckless.main")
	before, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	ui := &scriptedUI{
		actions:  []reply[Action]{{value: ActionSave}},
		labels:   []reply[string]{{value: "main"}},
		media:    []reply[media.Root]{{value: media.Internal}},
		confirms: []reply[bool]{{value: true}},
	}
	run(t, env, ui)

	if ui.lastAlert(t).title != "Success!" {
		t.Errorf("alert = %+v, want success", ui.lastAlert(t))
	}
	after, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Equal(before, after) {
		t.Error("confirmed overwrite left the record untouched")
	}
	if err := env.ks.LoadMnemonic(media.Internal, "reckless.main"); err != nil {
		t.Errorf("replacement record does not round-trip: %v", err)
	}
}

func TestLoadFlow(t *testing.T) {
	env := newTestEnv(t)
	if err := env.ks.SaveMnemonic(media.Removable, "main", false); err != nil {
		t.Fatal(err)
	}
	// Drop the in-memory phrase so the load is observable
	env.ks.Lock()
	if err := env.ks.Unlock([]byte("test passphrase")); err != nil {
		t.Fatal(err)
	}

	ui := &scriptedUI{
		actions: []reply[Action]{{value: ActionLoad}},
		media:   []reply[media.Root]{{value: media.Removable}},
		records: []reply[int]{{value: 0}},
	}
	run(t, env, ui)

	if ui.lastAlert(t).title != "Success!" {
		t.Errorf("alert = %+v, want success", ui.lastAlert(t))
	}
	phrase, err := env.ks.Mnemonic()
	if err != nil {
		t.Fatalf("Mnemonic() after load: error = %v", err)
	}
	if phrase != testMnemonic {
		t.Errorf("loaded phrase = %q, want %q", phrase, testMnemonic)
	}
	if env.driver.Mounted() {
		t.Error("removable media left mounted after load")
	}
}

func TestLoadNoRecordsAnywhere(t *testing.T) {
	env := newTestEnv(t)
	ui := &scriptedUI{actions: []reply[Action]{{value: ActionLoad}}}
	run(t, env, ui)

	got := ui.lastAlert(t)
	if got.title != "Error" || !strings.Contains(got.message, "No saved keys") {
		t.Errorf("alert = %+v, want no-saved-keys error", got)
	}
	if len(ui.offeredMedia) != 0 {
		t.Error("media menu shown with nothing selectable")
	}
}

func TestLoadMediaMenuDisablesEmptyRoots(t *testing.T) {
	env := newTestEnv(t)
	if err := env.ks.SaveMnemonic(media.Internal, "main", false); err != nil {
		t.Fatal(err)
	}

	ui := &scriptedUI{
		actions: []reply[Action]{{value: ActionLoad}},
		media:   []reply[media.Root]{{value: media.Internal}},
		records: []reply[int]{{value: 0}},
	}
	run(t, env, ui)

	if len(ui.offeredMedia) != 1 {
		t.Fatal("media menu not shown exactly once")
	}
	for _, opt := range ui.offeredMedia[0] {
		wantEnabled := opt.Root == media.Internal
		if opt.Enabled != wantEnabled {
			t.Errorf("option %s enabled = %v, want %v", opt.Root, opt.Enabled, wantEnabled)
		}
	}
}

func TestLoadCancelAtRecordSelect(t *testing.T) {
	env := newTestEnv(t)
	if err := env.ks.SaveMnemonic(media.Removable, "main", false); err != nil {
		t.Fatal(err)
	}

	ui := &scriptedUI{
		actions: []reply[Action]{{value: ActionLoad}},
		media:   []reply[media.Root]{{value: media.Removable}},
		records: []reply[int]{{err: ErrCancelled}},
	}
	run(t, env, ui)

	if len(ui.alerts) != 0 {
		t.Errorf("cancellation produced alerts: %v", ui.alerts)
	}
	if env.driver.Mounted() {
		t.Error("removable media left mounted after cancellation")
	}
}

func TestDeleteFlow(t *testing.T) {
	env := newTestEnv(t)
	if err := env.ks.SaveMnemonic(media.Removable, "main", false); err != nil {
		t.Fatal(err)
	}

	ui := &scriptedUI{
		actions: []reply[Action]{{value: ActionDelete}},
		media:   []reply[media.Root]{{value: media.Removable}},
		records: []reply[int]{{value: 0}},
	}
	run(t, env, ui)

	if ui.lastAlert(t).title != "Success!" {
		t.Errorf("alert = %+v, want success", ui.lastAlert(t))
	}
	if _, err := env.ks.Records(media.Removable); !errors.Is(err, keystore.ErrNoRecords) {
		t.Error("record still present after delete")
	}
	if env.driver.Mounted() {
		t.Error("removable media left mounted after delete")
	}
}

func TestShowPhrase(t *testing.T) {
	env := newTestEnv(t)
	ui := &scriptedUI{actions: []reply[Action]{{value: ActionShow}}}
	run(t, env, ui)

	if len(ui.shown) != 1 || ui.shown[0] != testMnemonic {
		t.Errorf("ShowMnemonic got %v, want the loaded phrase", ui.shown)
	}
}

func TestShowPhraseWithoutKey(t *testing.T) {
	env := newTestEnv(t)
	env.ks.Lock()
	if err := env.ks.Unlock([]byte("test passphrase")); err != nil {
		t.Fatal(err)
	}

	ui := &scriptedUI{actions: []reply[Action]{{value: ActionShow}}}
	run(t, env, ui)

	got := ui.lastAlert(t)
	if got.title != "Error" || !strings.Contains(got.message, "No key is loaded") {
		t.Errorf("alert = %+v, want no-key error", got)
	}
	if len(ui.shown) != 0 {
		t.Error("ShowMnemonic called without a loaded phrase")
	}
}

func TestRunLockedKeystoreAborts(t *testing.T) {
	env := newTestEnv(t)
	env.ks.Lock()

	ui := &scriptedUI{
		t:       t,
		actions: []reply[Action]{{value: ActionShow}},
	}
	err := New(env.ks, ui, zerolog.Nop()).Run()
	if !errors.Is(err, keystore.ErrKeystoreLocked) {
		t.Errorf("Run() with locked keystore: error = %v, want %v", err, keystore.ErrKeystoreLocked)
	}
}

func TestOperationErrorKeepsSessionAlive(t *testing.T) {
	env := newTestEnv(t)
	if err := env.ks.SaveMnemonic(media.Internal, "main", false); err != nil {
		t.Fatal(err)
	}
	// Corrupt the record so the load fails, then show the phrase to prove
	// the session survived the alert.
	path := filepath.Join(env.ks.Locator().Path(media.Internal), "reckless.main")
	blob, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	blob[len(blob)-1] ^= 0x01
	if err := os.WriteFile(path, blob, 0600); err != nil {
		t.Fatal(err)
	}

	ui := &scriptedUI{
		actions: []reply[Action]{{value: ActionLoad}, {value: ActionShow}},
		media:   []reply[media.Root]{{value: media.Internal}},
		records: []reply[int]{{value: 0}},
	}
	run(t, env, ui)

	if !strings.Contains(ui.alerts[0].message, "damaged") {
		t.Errorf("alert = %+v, want corrupt-record error", ui.alerts[0])
	}
	if len(ui.shown) != 1 {
		t.Error("session did not continue after the error alert")
	}
}
