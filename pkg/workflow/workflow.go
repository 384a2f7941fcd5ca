// Package workflow drives the interactive storage session: an explicit
// loop over save, load, delete and show-phrase operations, with every
// user decision modeled as a typed UI request so the whole machine is
// testable without a display.
package workflow

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/cryptoadvance/specter-keystore/pkg/keystore"
	"github.com/cryptoadvance/specter-keystore/pkg/media"
)

// Workflow sequences storage operations against an unlocked keystore.
// It owns no media or crypto state itself; it only orchestrates.
type Workflow struct {
	ks  *keystore.Keystore
	ui  UI
	log zerolog.Logger
}

// New creates a workflow over ks driven by ui.
func New(ks *keystore.Keystore, ui UI, log zerolog.Logger) *Workflow {
	return &Workflow{ks: ks, ui: ui, log: log}
}

// Run enters the storage menu loop and returns when the user exits.
// Operation errors are rendered as alerts and the loop continues; a
// locked keystore is a precondition violation and aborts the session.
// On return no removable media is left mounted.
func (w *Workflow) Run() error {
	for {
		action, err := w.ui.ChooseAction()
		if errors.Is(err, ErrCancelled) {
			return nil
		}
		if err != nil {
			return err
		}

		switch action {
		case ActionExit:
			return nil
		case ActionSave:
			err = w.save()
		case ActionLoad:
			err = w.load()
		case ActionDelete:
			err = w.delete()
		case ActionShow:
			err = w.show()
		default:
			err = fmt.Errorf("workflow: unknown action %d", action)
		}

		if err == nil || errors.Is(err, ErrCancelled) {
			continue
		}
		if errors.Is(err, keystore.ErrKeystoreLocked) {
			return err
		}
		w.log.Warn().Err(err).Stringer("action", action).Msg("operation failed")
		w.ui.Alert("Error", friendlyMessage(err))
	}
}

func (w *Workflow) save() error {
	if !w.ks.HasMnemonic() {
		return keystore.ErrMnemonicNotLoaded
	}

	label, err := w.ui.EnterLabel("Name your key", "")
	if err != nil {
		return err
	}
	label = keystore.NormalizeLabel(label)
	if label == "" {
		w.ui.Alert("Error", "Please provide a valid name!")
		return nil
	}
	if err := keystore.ValidateLabel(label); err != nil {
		w.ui.Alert("Error", "Please provide a valid name!")
		return nil
	}

	root, err := w.chooseMedia(false)
	if err != nil {
		return err
	}

	err = w.ks.SaveMnemonic(root, label, false)
	if errors.Is(err, keystore.ErrRecordExists) {
		ok, cerr := w.ui.Confirm("File already exists",
			fmt.Sprintf("A key named %q already exists on %s.\n\nOverwrite it?", label, root))
		if cerr != nil {
			return cerr
		}
		if !ok {
			return nil
		}
		err = w.ks.SaveMnemonic(root, label, true)
	}
	if err != nil {
		return err
	}

	w.ui.Alert("Success!", fmt.Sprintf("Your key is stored now.\n\nName: %s", label))
	return nil
}

func (w *Workflow) load() error {
	root, err := w.chooseMedia(true)
	if err != nil {
		return err
	}

	records, err := w.ks.Records(root)
	if err != nil {
		return err
	}
	record, err := w.ui.ChooseRecord(records)
	if err != nil {
		return err
	}

	if err := w.ks.LoadMnemonic(root, record.Filename); err != nil {
		return err
	}
	w.ui.Alert("Success!", fmt.Sprintf("Your key is loaded.\n\nName: %s", record.Label))
	return nil
}

func (w *Workflow) delete() error {
	root, err := w.chooseMedia(true)
	if err != nil {
		return err
	}

	records, err := w.ks.Records(root)
	if err != nil {
		return err
	}
	record, err := w.ui.ChooseRecord(records)
	if err != nil {
		return err
	}

	if err := w.ks.DeleteMnemonic(root, record.Filename); err != nil {
		return err
	}
	w.ui.Alert("Success!", fmt.Sprintf("Your key is deleted.\n\nName: %s", record.Label))
	return nil
}

func (w *Workflow) show() error {
	phrase, err := w.ks.Mnemonic()
	if err != nil {
		return err
	}
	w.ui.ShowMnemonic(phrase)
	return nil
}

// chooseMedia presents the two storage roots. With onlyIfExisting a root
// is selectable only when it already holds one of this device's records;
// otherwise the removable root is disabled only when no card is present.
// When nothing is selectable the user is told instead of being shown a
// dead menu.
func (w *Workflow) chooseMedia(onlyIfExisting bool) (media.Root, error) {
	options := make([]MediaOption, 0, 2)
	anyEnabled := false
	for _, root := range []media.Root{media.Internal, media.Removable} {
		enabled := true
		if onlyIfExisting {
			present, err := w.ks.AnyRecordPresent(root)
			if err != nil {
				return 0, err
			}
			enabled = present
		} else if root == media.Removable {
			enabled = w.ks.Locator().Present(root)
		}
		options = append(options, MediaOption{Root: root, Enabled: enabled})
		anyEnabled = anyEnabled || enabled
	}

	if !anyEnabled {
		if onlyIfExisting {
			return 0, keystore.ErrNoRecords
		}
		return 0, media.ErrMediaUnavailable
	}
	return w.ui.ChooseMedia(options)
}

// friendlyMessage maps operation errors to the dismissible alert text
// shown to the user. Unknown errors fall through verbatim.
func friendlyMessage(err error) string {
	switch {
	case errors.Is(err, media.ErrMediaUnavailable):
		return "Please insert an SD card and try again."
	case errors.Is(err, keystore.ErrNoRecords):
		return "No saved keys found."
	case errors.Is(err, keystore.ErrRecordNotFound):
		return "The file is no longer there."
	case errors.Is(err, keystore.ErrRecordCorrupt):
		return "The file is damaged and could not be decrypted."
	case errors.Is(err, keystore.ErrInvalidMnemonic):
		return "The file did not contain a valid recovery phrase."
	case errors.Is(err, keystore.ErrVerifyFailed):
		return "The saved file failed verification. Do not trust this copy."
	case errors.Is(err, keystore.ErrDeleteFailed):
		return "The file could not be deleted."
	case errors.Is(err, keystore.ErrMnemonicNotLoaded):
		return "No key is loaded. Generate or recover a key first."
	default:
		return err.Error()
	}
}
