package keystore

import "errors"

// Sentinel errors returned by keystore operations.
var (
	// ErrKeystoreLocked indicates an operation that needs the encryption key
	// was attempted while the keystore is locked.
	ErrKeystoreLocked = errors.New("keystore: keystore is locked")

	// ErrMnemonicNotLoaded indicates no recovery phrase is held in memory.
	ErrMnemonicNotLoaded = errors.New("keystore: recovery phrase is not loaded")

	// ErrInvalidMnemonic indicates the phrase failed BIP-39 validation.
	ErrInvalidMnemonic = errors.New("keystore: invalid recovery phrase")

	// ErrAlreadyInitialized indicates a device salt already exists.
	ErrAlreadyInitialized = errors.New("keystore: already initialized")

	// ErrNotInitialized indicates no device salt exists yet.
	ErrNotInitialized = errors.New("keystore: not initialized, run init first")

	// ErrInvalidLabel indicates the record label is empty or contains
	// characters that could escape the storage root.
	ErrInvalidLabel = errors.New("keystore: invalid record label")

	// ErrRecordExists indicates a save would overwrite an existing record
	// without overwrite having been confirmed.
	ErrRecordExists = errors.New("keystore: record already exists")

	// ErrRecordNotFound indicates the requested record file does not exist.
	ErrRecordNotFound = errors.New("keystore: record not found")

	// ErrRecordCorrupt indicates decryption failed authentication. The
	// record is treated as unreadable; no partial plaintext is returned.
	ErrRecordCorrupt = errors.New("keystore: record corrupt or wrong key")

	// ErrNoRecords indicates no record matched this device's prefix.
	ErrNoRecords = errors.New("keystore: no matching records found")

	// ErrDeleteFailed wraps the underlying I/O error of a failed removal.
	ErrDeleteFailed = errors.New("keystore: failed to delete record")

	// ErrVerifyFailed indicates the post-write read-back of a saved record
	// did not decrypt to the original plaintext. The save is a failure.
	ErrVerifyFailed = errors.New("keystore: verification read-back failed")

	// ErrCorruptSalt indicates the device salt file has the wrong size.
	ErrCorruptSalt = errors.New("keystore: device salt is corrupt")
)
