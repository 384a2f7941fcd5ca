// Package keystore implements the encrypted key-storage engine: per-device
// record naming, authenticated encrypt-on-save / decrypt-verify-on-load,
// enumeration, and the unlocked session state that owns the in-memory
// recovery phrase and encryption key.
package keystore

import (
	"crypto/rand"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	bip39 "github.com/tyler-smith/go-bip39"

	"github.com/cryptoadvance/specter-keystore/pkg/audit"
	"github.com/cryptoadvance/specter-keystore/pkg/crypto"
	"github.com/cryptoadvance/specter-keystore/pkg/media"
)

const (
	// SaltFileName is the per-device salt stored on the internal root.
	SaltFileName = "keystore.salt"

	// SaltLength is the device salt size in bytes.
	SaltLength = 16
)

// Keystore is one device's keystore session. The encryption key and the
// recovery phrase exist in memory only between Unlock and Lock; Lock wipes
// both. All stored-record operations run inside the media locator's scoped
// mount so no call leaves the removable media mounted.
type Keystore struct {
	locator *media.Locator
	audit   *audit.Logger
	log     zerolog.Logger

	mu         sync.Mutex
	encKey     []byte
	mnemonic   []byte
	passphrase string // BIP-39 passphrase accompanying the mnemonic
}

// New creates a keystore over the given media locator. auditLogger may be
// nil to disable audit logging.
func New(locator *media.Locator, auditLogger *audit.Logger, log zerolog.Logger) *Keystore {
	return &Keystore{
		locator: locator,
		audit:   auditLogger,
		log:     log.With().Str("component", "keystore").Logger(),
	}
}

// saltPath returns the device salt location on the internal root.
func (k *Keystore) saltPath() string {
	return filepath.Join(k.locator.Path(media.Internal), SaltFileName)
}

// Initialized reports whether a device salt exists.
func (k *Keystore) Initialized() bool {
	_, err := os.Stat(k.saltPath())
	return err == nil
}

// Init creates the per-device salt on the internal root. The salt binds
// the passphrase-derived encryption key to this device.
func (k *Keystore) Init() error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.Initialized() {
		return ErrAlreadyInitialized
	}

	salt := make([]byte, SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return fmt.Errorf("keystore: failed to generate salt: %w", err)
	}

	return k.locator.WithMounted(media.Internal, func(dir string) error {
		if err := os.WriteFile(filepath.Join(dir, SaltFileName), salt, 0600); err != nil {
			return fmt.Errorf("keystore: failed to write salt: %w", err)
		}
		return nil
	})
}

// Unlock derives the encryption key from the passphrase and the device
// salt and holds it in memory until Lock. The audit logger is keyed from
// the derived key so log entries become verifiable for this session.
func (k *Keystore) Unlock(passphrase []byte) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.encKey != nil {
		return nil // already unlocked
	}

	salt, err := os.ReadFile(k.saltPath())
	if err != nil {
		if os.IsNotExist(err) {
			return ErrNotInitialized
		}
		return fmt.Errorf("keystore: failed to read salt: %w", err)
	}
	if len(salt) != SaltLength {
		return ErrCorruptSalt
	}

	k.encKey = crypto.DeriveKey(passphrase, salt)

	if k.audit != nil {
		if err := k.audit.SetHMACKey(k.encKey); err != nil {
			k.log.Warn().Err(err).Msg("failed to key audit logger")
		} else {
			_ = k.audit.LogSuccess(audit.OpUnlock, "", "")
		}
	}
	k.log.Debug().Msg("keystore unlocked")
	return nil
}

// Lock wipes the encryption key, the recovery phrase and the passphrase
// from memory. Safe to call repeatedly.
func (k *Keystore) Lock() {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.encKey != nil {
		if k.audit != nil {
			_ = k.audit.LogSuccess(audit.OpLock, "", "")
		}
		crypto.SecureWipe(k.encKey)
		k.encKey = nil
	}
	if k.mnemonic != nil {
		crypto.SecureWipe(k.mnemonic)
		k.mnemonic = nil
	}
	k.passphrase = ""
	k.log.Debug().Msg("keystore locked")
}

// IsLocked reports whether the encryption key is absent.
func (k *Keystore) IsLocked() bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.encKey == nil
}

// SetMnemonic validates phrase against the BIP-39 wordlist and checksum
// and loads it into the session together with its optional passphrase.
func (k *Keystore) SetMnemonic(phrase, passphrase string) error {
	normalized := strings.Join(strings.Fields(phrase), " ")
	if !bip39.IsMnemonicValid(normalized) {
		return ErrInvalidMnemonic
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	k.mnemonic = []byte(normalized)
	k.passphrase = passphrase
	return nil
}

// GenerateMnemonic creates a fresh mnemonic from entropyBits of secure
// randomness (128 for 12 words, 256 for 24) and loads it into the session.
func (k *Keystore) GenerateMnemonic(entropyBits int) (string, error) {
	entropy, err := bip39.NewEntropy(entropyBits)
	if err != nil {
		return "", fmt.Errorf("keystore: failed to generate entropy: %w", err)
	}
	phrase, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return "", fmt.Errorf("keystore: failed to generate mnemonic: %w", err)
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	k.mnemonic = []byte(phrase)
	k.passphrase = ""
	return phrase, nil
}

// Mnemonic returns the in-memory recovery phrase. Requires the keystore to
// be unlocked and a phrase to be loaded.
func (k *Keystore) Mnemonic() (string, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.encKey == nil {
		return "", ErrKeystoreLocked
	}
	if len(k.mnemonic) == 0 {
		return "", ErrMnemonicNotLoaded
	}
	if k.audit != nil {
		_ = k.audit.LogSuccess(audit.OpKeyShow, "", "")
	}
	return string(k.mnemonic), nil
}

// HasMnemonic reports whether a recovery phrase is loaded.
func (k *Keystore) HasMnemonic() bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.mnemonic) > 0
}

// RecordPrefix returns this device's filename prefix for root. The prefix
// is derived from the encryption key, so the keystore must be unlocked.
func (k *Keystore) RecordPrefix(root media.Root) (string, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.encKey == nil {
		return "", ErrKeystoreLocked
	}
	return RecordPrefix(root, k.encKey), nil
}

// SaveMnemonic encrypts the in-memory recovery phrase and stores it under
// root with the given label. label is normalized and validated; an
// existing record is only replaced when overwrite is set. The save
// includes the codec's verification read-back.
func (k *Keystore) SaveMnemonic(root media.Root, label string, overwrite bool) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.encKey == nil {
		return ErrKeystoreLocked
	}
	if len(k.mnemonic) == 0 {
		return ErrMnemonicNotLoaded
	}

	label = NormalizeLabel(label)
	if err := ValidateLabel(label); err != nil {
		return err
	}

	name := RecordName(RecordPrefix(root, k.encKey), label)
	err := k.locator.WithMounted(root, func(dir string) error {
		return SaveRecord(dir, name, k.mnemonic, k.encKey, overwrite)
	})
	if err != nil {
		k.auditError(audit.OpKeySave, root, label, err)
		return err
	}

	k.auditSuccess(audit.OpKeySave, root, label)
	k.log.Info().Stringer("media", root).Str("label", displayLabel(label)).Msg("key saved")
	return nil
}

// LoadMnemonic decrypts the record filename under root and loads the
// recovered phrase into the session.
func (k *Keystore) LoadMnemonic(root media.Root, filename string) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.encKey == nil {
		return ErrKeystoreLocked
	}

	var plaintext []byte
	err := k.locator.WithMounted(root, func(dir string) error {
		var err error
		plaintext, err = LoadRecord(dir, filename, k.encKey)
		return err
	})
	if err != nil {
		k.auditError(audit.OpKeyLoad, root, filename, err)
		return err
	}

	phrase := strings.Join(strings.Fields(string(plaintext)), " ")
	crypto.SecureWipe(plaintext)
	if !bip39.IsMnemonicValid(phrase) {
		// Authenticated but not a valid phrase: stored by other software
		// or under a different encoding. Fail closed.
		k.auditError(audit.OpKeyLoad, root, filename, ErrInvalidMnemonic)
		return ErrInvalidMnemonic
	}
	k.mnemonic = []byte(phrase)
	k.passphrase = ""

	k.auditSuccess(audit.OpKeyLoad, root, filename)
	k.log.Info().Stringer("media", root).Msg("key loaded")
	return nil
}

// DeleteMnemonic removes the record filename under root, reporting the
// true outcome of the removal.
func (k *Keystore) DeleteMnemonic(root media.Root, filename string) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.encKey == nil {
		return ErrKeystoreLocked
	}

	err := k.locator.WithMounted(root, func(dir string) error {
		return DeleteRecord(dir, filename)
	})
	if err != nil {
		k.auditError(audit.OpKeyDelete, root, filename, err)
		return err
	}

	k.auditSuccess(audit.OpKeyDelete, root, filename)
	k.log.Info().Stringer("media", root).Msg("key deleted")
	return nil
}

// Records enumerates this device's records under root, sorted by filename.
func (k *Keystore) Records(root media.Root) ([]Record, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.encKey == nil {
		return nil, ErrKeystoreLocked
	}

	prefix := RecordPrefix(root, k.encKey)
	var records []Record
	err := k.locator.WithMounted(root, func(dir string) error {
		var err error
		records, err = ListRecords(dir, prefix)
		return err
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// AnyRecordPresent reports whether root holds at least one record of this
// device. The check brackets its own mount scope; an absent removable
// root reports false rather than an error.
func (k *Keystore) AnyRecordPresent(root media.Root) (bool, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.encKey == nil {
		return false, ErrKeystoreLocked
	}
	return k.locator.HasPrefixedFile(root, RecordPrefix(root, k.encKey))
}

// Locator exposes the media locator for presence queries by the workflow.
func (k *Keystore) Locator() *media.Locator {
	return k.locator
}

func (k *Keystore) auditSuccess(op string, root media.Root, label string) {
	if k.audit == nil {
		return
	}
	_ = k.audit.LogSuccess(op, root.String(), label)
}

func (k *Keystore) auditError(op string, root media.Root, label string, err error) {
	if k.audit == nil {
		return
	}
	_ = k.audit.LogError(op, root.String(), label, "OP_FAILED", err.Error())
}

// displayLabel maps the empty label to its display name for logging.
func displayLabel(label string) string {
	if label == "" {
		return DefaultLabel
	}
	return label
}
