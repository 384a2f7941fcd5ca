package workflow

import (
	"errors"

	"github.com/cryptoadvance/specter-keystore/pkg/keystore"
	"github.com/cryptoadvance/specter-keystore/pkg/media"
)

// ErrCancelled is returned by UI methods when the user backs out of a
// prompt. It is a normal negative path, not a failure: the workflow
// returns to its menu without reporting an error.
var ErrCancelled = errors.New("workflow: cancelled")

// Action is a top-level menu choice.
type Action int

const (
	ActionSave Action = iota
	ActionLoad
	ActionDelete
	ActionShow
	ActionExit
)

// String returns the menu text for the action.
func (a Action) String() string {
	switch a {
	case ActionSave:
		return "Save key"
	case ActionLoad:
		return "Load key"
	case ActionDelete:
		return "Delete key"
	case ActionShow:
		return "Show recovery phrase"
	case ActionExit:
		return "Back"
	default:
		return "unknown"
	}
}

// MediaOption is one selectable storage root. Disabled options are shown
// but cannot be chosen, so the user can see why a root is unavailable.
type MediaOption struct {
	Root    media.Root
	Enabled bool
}

// UI is the interaction surface the workflow drives. Every method is a
// suspension point; any prompt may return ErrCancelled. Implementations
// render however they like (terminal menus, a device screen) as long as
// they honor the typed request/response contract.
type UI interface {
	// ChooseAction presents the top-level storage menu.
	ChooseAction() (Action, error)

	// ChooseMedia presents the storage roots. At least one option is
	// always enabled when called.
	ChooseMedia(options []MediaOption) (media.Root, error)

	// ChooseRecord presents the enumerated records of a root.
	ChooseRecord(records []keystore.Record) (keystore.Record, error)

	// EnterLabel asks for a record name. An empty response is a valid
	// return, not a cancellation; the workflow decides what to do with it.
	EnterLabel(prompt, suggestion string) (string, error)

	// Confirm asks a yes/no question. false is a plain "no", not an error.
	Confirm(title, message string) (bool, error)

	// Alert shows a dismissible message.
	Alert(title, message string)

	// ShowMnemonic displays the recovery phrase. Implementations must not
	// retain or log the phrase.
	ShowMnemonic(phrase string)
}
