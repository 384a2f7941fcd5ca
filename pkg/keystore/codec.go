package keystore

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cryptoadvance/specter-keystore/pkg/crypto"
	"github.com/cryptoadvance/specter-keystore/pkg/media"
)

// recordMode keeps record files owner-only where the filesystem supports it.
const recordMode = 0600

// SaveRecord encrypts plaintext under key and writes it to dir/name.
//
// If the record already exists and overwrite is false, ErrRecordExists is
// returned and the existing file is left untouched; the caller is expected
// to obtain confirmation and retry with overwrite set. The blob is written
// to a temporary file and renamed into place, then read back and decrypted:
// a record that cannot be read back is a failed save, never a silent
// success. Encryption uses a fresh nonce per call.
func SaveRecord(dir, name string, plaintext, key []byte, overwrite bool) error {
	path := filepath.Join(dir, name)

	if _, err := os.Stat(path); err == nil {
		if !overwrite {
			return ErrRecordExists
		}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("keystore: failed to check record: %w", err)
	}

	if err := media.CheckFreeSpace(dir, len(plaintext)+crypto.NonceLength+16); err != nil {
		return err
	}

	ciphertext, nonce, err := crypto.Encrypt(key, plaintext)
	if err != nil {
		return fmt.Errorf("keystore: failed to encrypt record: %w", err)
	}
	blob := append(nonce, ciphertext...)

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, blob, recordMode); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("keystore: failed to write record: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("keystore: failed to finalize record: %w", err)
	}

	// Verification read-back: the write only counts if what landed on the
	// media decrypts to exactly what we meant to store.
	readBack, err := LoadRecord(dir, name, key)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrVerifyFailed, err)
	}
	if !bytes.Equal(readBack, plaintext) {
		return ErrVerifyFailed
	}
	return nil
}

// LoadRecord reads dir/name, decrypts it under key and authenticates it.
//
// Returns ErrRecordNotFound if the file is absent and ErrRecordCorrupt if
// the blob is malformed or fails authentication. On success the exact
// original plaintext bytes are returned.
func LoadRecord(dir, name string, key []byte) ([]byte, error) {
	path := filepath.Join(dir, name)

	blob, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("keystore: failed to read record: %w", err)
	}

	if len(blob) < crypto.NonceLength {
		return nil, ErrRecordCorrupt
	}
	nonce := blob[:crypto.NonceLength]
	ciphertext := blob[crypto.NonceLength:]

	plaintext, err := crypto.Decrypt(key, ciphertext, nonce)
	if err != nil {
		return nil, ErrRecordCorrupt
	}
	return plaintext, nil
}

// DeleteRecord removes dir/name.
//
// Returns ErrRecordNotFound if the file is absent. A removal that fails is
// reported as a failure wrapping the underlying I/O error; it is never
// swallowed into a success.
func DeleteRecord(dir, name string) error {
	path := filepath.Join(dir, name)

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return ErrRecordNotFound
		}
		return fmt.Errorf("keystore: failed to check record: %w", err)
	}

	if err := os.Remove(path); err != nil {
		return fmt.Errorf("%w: %w", ErrDeleteFailed, err)
	}
	return nil
}
