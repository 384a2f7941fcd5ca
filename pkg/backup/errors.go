// Package backup bundles a root's encrypted key records into one
// portable, passphrase-encrypted file and restores them.
package backup

import "errors"

// Backup/restore errors
var (
	// ErrInvalidMagic indicates the backup file has an invalid magic number.
	ErrInvalidMagic = errors.New("invalid backup file: magic number mismatch")

	// ErrUnsupportedVersion indicates the backup format version is not supported.
	ErrUnsupportedVersion = errors.New("unsupported backup format version")

	// ErrIntegrityFailed indicates the HMAC verification failed.
	ErrIntegrityFailed = errors.New("backup integrity check failed: HMAC mismatch")

	// ErrDecryptionFailed indicates decryption failed due to a wrong password or corruption.
	ErrDecryptionFailed = errors.New("backup decryption failed: invalid password or corrupted data")

	// ErrTruncated indicates the backup file is shorter than its framing requires.
	ErrTruncated = errors.New("invalid backup file: truncated")

	// ErrEmptyPassword indicates an empty password was provided.
	ErrEmptyPassword = errors.New("password cannot be empty")

	// ErrConflict indicates a record already exists during restore.
	ErrConflict = errors.New("restore conflict: record already exists")

	// ErrNoRecords indicates the source root holds nothing to back up.
	ErrNoRecords = errors.New("nothing to back up: no records on this media")
)
