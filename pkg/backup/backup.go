package backup

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/cryptoadvance/specter-keystore/pkg/crypto"
	"github.com/cryptoadvance/specter-keystore/pkg/keystore"
	"github.com/cryptoadvance/specter-keystore/pkg/media"
)

// ConflictMode specifies how to handle existing records during restore.
type ConflictMode int

const (
	// ConflictError fails the restore if a record already exists.
	ConflictError ConflictMode = iota
	// ConflictSkip keeps existing records and only adds new ones.
	ConflictSkip
	// ConflictOverwrite replaces existing records.
	ConflictOverwrite
)

// CreateOptions configures a backup.
type CreateOptions struct {
	// Output is the destination writer.
	Output io.Writer
	// Password encrypts the backup. It is independent of the device
	// passphrase.
	Password []byte
}

// RestoreOptions configures a restore.
type RestoreOptions struct {
	// Locator resolves the target storage roots.
	Locator *media.Locator
	// Root is the root the records are written to.
	Root media.Root
	// OnConflict specifies how existing records are handled.
	OnConflict ConflictMode
	// Password decrypts the backup.
	Password []byte
	// DryRun previews the restore without writing anything.
	DryRun bool
}

// RestoreResult reports what a restore did.
type RestoreResult struct {
	RecordsRestored int
	RecordsSkipped  int
	// SaltRestored reports whether the device salt was installed. It is
	// only written when the internal root has none, so an initialized
	// host keeps its own identity.
	SaltRestored bool
	DryRun       bool
}

// VerifyResult reports a backup's integrity without restoring it.
type VerifyResult struct {
	Valid       bool
	Version     int
	CreatedAt   time.Time
	Media       string
	RecordCount int
	Error       string
}

// Create writes an encrypted backup of every record this device holds
// under root. The records stay encrypted under the device key and are
// wrapped a second time under the backup password, together with the
// device salt so they remain usable on a fresh host.
func Create(ks *keystore.Keystore, root media.Root, opts CreateOptions) error {
	if opts.Output == nil {
		return fmt.Errorf("output writer is required")
	}

	prefix, err := ks.RecordPrefix(root)
	if err != nil {
		return err
	}

	loc := ks.Locator()
	var blobs []RecordBlob
	err = loc.WithMounted(root, func(dir string) error {
		records, err := keystore.ListRecords(dir, prefix)
		if err != nil {
			return err
		}
		for _, rec := range records {
			data, err := os.ReadFile(filepath.Join(dir, rec.Filename))
			if err != nil {
				return fmt.Errorf("failed to read record %s: %w", rec.Filename, err)
			}
			blobs = append(blobs, RecordBlob{Name: rec.Filename, Data: data})
		}
		return nil
	})
	if errors.Is(err, keystore.ErrNoRecords) {
		return ErrNoRecords
	}
	if err != nil {
		return err
	}

	var deviceSalt []byte
	err = loc.WithMounted(media.Internal, func(dir string) error {
		var err error
		deviceSalt, err = os.ReadFile(filepath.Join(dir, keystore.SaltFileName))
		if err != nil {
			return fmt.Errorf("failed to read device salt: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	salt, err := GenerateSalt()
	if err != nil {
		return err
	}
	encKey, macKey, err := DeriveBackupKeys(opts.Password, salt)
	if err != nil {
		return err
	}
	defer crypto.SecureWipe(encKey)
	defer crypto.SecureWipe(macKey)

	payloadBytes, err := EncodePayload(&Payload{DeviceSalt: deviceSalt, Records: blobs})
	if err != nil {
		return err
	}
	ciphertext, err := EncryptPayload(payloadBytes, encKey)
	if err != nil {
		return err
	}

	header := &Header{
		Version:   FormatVersion,
		CreatedAt: time.Now().UTC(),
		Media:     root.String(),
		KDFParams: &KDFParams{
			Salt:        salt,
			Memory:      crypto.Argon2Memory,
			Iterations:  crypto.Argon2Time,
			Parallelism: crypto.Argon2Threads,
		},
		RecordCount:  len(blobs),
		ChecksumAlgo: "hmac-sha256",
	}

	// Buffer header + ciphertext so the HMAC trailer can cover both
	var buf bytes.Buffer
	if err := WriteHeader(&buf, header); err != nil {
		return err
	}
	if err := binary.Write(&buf, binary.BigEndian, uint32(len(ciphertext))); err != nil {
		return fmt.Errorf("failed to write ciphertext length: %w", err)
	}
	if _, err := buf.Write(ciphertext); err != nil {
		return fmt.Errorf("failed to write ciphertext: %w", err)
	}
	mac := ComputeHMAC(buf.Bytes(), macKey)

	if _, err := opts.Output.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("failed to write backup: %w", err)
	}
	if _, err := opts.Output.Write(mac); err != nil {
		return fmt.Errorf("failed to write HMAC: %w", err)
	}
	return nil
}

// Restore writes the records of a backup onto opts.Root.
func Restore(backupPath string, opts RestoreOptions) (*RestoreResult, error) {
	data, err := os.ReadFile(backupPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read backup file: %w", err)
	}

	header, payload, err := verifyAndDecrypt(data, opts.Password)
	if err != nil {
		return nil, err
	}

	if opts.DryRun {
		return &RestoreResult{RecordsRestored: header.RecordCount, DryRun: true}, nil
	}

	result := &RestoreResult{}
	err = opts.Locator.WithMounted(opts.Root, func(dir string) error {
		for _, rec := range payload.Records {
			if !safeRecordName(rec.Name) {
				return fmt.Errorf("invalid record name in backup: %q", rec.Name)
			}
			path := filepath.Join(dir, rec.Name)
			if _, err := os.Stat(path); err == nil {
				switch opts.OnConflict {
				case ConflictSkip:
					result.RecordsSkipped++
					continue
				case ConflictOverwrite:
				default:
					return fmt.Errorf("%w: %s", ErrConflict, rec.Name)
				}
			}
			if err := os.WriteFile(path, rec.Data, 0600); err != nil {
				return fmt.Errorf("failed to write record %s: %w", rec.Name, err)
			}
			result.RecordsRestored++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(payload.DeviceSalt) > 0 {
		restored, err := restoreSalt(opts.Locator, payload.DeviceSalt)
		if err != nil {
			return nil, err
		}
		result.SaltRestored = restored
	}
	return result, nil
}

// Verify checks backup integrity without restoring.
func Verify(backupPath string, password []byte) (*VerifyResult, error) {
	data, err := os.ReadFile(backupPath)
	if err != nil {
		return &VerifyResult{Valid: false, Error: err.Error()}, nil
	}
	header, _, err := verifyAndDecrypt(data, password)
	if err != nil {
		return &VerifyResult{Valid: false, Error: err.Error()}, nil
	}
	return &VerifyResult{
		Valid:       true,
		Version:     header.Version,
		CreatedAt:   header.CreatedAt,
		Media:       header.Media,
		RecordCount: header.RecordCount,
	}, nil
}

// verifyAndDecrypt checks the HMAC trailer and decrypts the payload.
func verifyAndDecrypt(data, password []byte) (*Header, *Payload, error) {
	if len(data) < len(MagicNumber)+4+HMACLength {
		return nil, nil, ErrTruncated
	}
	body, mac := data[:len(data)-HMACLength], data[len(data)-HMACLength:]

	r := bytes.NewReader(body)
	header, err := ReadHeader(r)
	if err != nil {
		return nil, nil, err
	}
	if header.KDFParams == nil || len(header.KDFParams.Salt) == 0 {
		return nil, nil, fmt.Errorf("invalid backup file: missing KDF parameters")
	}

	var ciphertextLen uint32
	if err := binary.Read(r, binary.BigEndian, &ciphertextLen); err != nil {
		return nil, nil, ErrTruncated
	}
	if int(ciphertextLen) != r.Len() {
		return nil, nil, ErrTruncated
	}
	ciphertext := make([]byte, ciphertextLen)
	if _, err := io.ReadFull(r, ciphertext); err != nil {
		return nil, nil, ErrTruncated
	}

	encKey, macKey, err := DeriveBackupKeys(password, header.KDFParams.Salt)
	if err != nil {
		return nil, nil, err
	}
	defer crypto.SecureWipe(encKey)
	defer crypto.SecureWipe(macKey)

	if !VerifyHMAC(body, mac, macKey) {
		return nil, nil, ErrIntegrityFailed
	}

	plaintext, err := DecryptPayload(ciphertext, encKey)
	if err != nil {
		return nil, nil, err
	}
	payload, err := DecodePayload(plaintext)
	if err != nil {
		return nil, nil, err
	}
	return header, payload, nil
}

// restoreSalt installs the device salt on the internal root, but never
// replaces an existing one.
func restoreSalt(loc *media.Locator, salt []byte) (bool, error) {
	restored := false
	err := loc.WithMounted(media.Internal, func(dir string) error {
		path := filepath.Join(dir, keystore.SaltFileName)
		if _, err := os.Stat(path); err == nil {
			return nil
		}
		if err := os.WriteFile(path, salt, 0600); err != nil {
			return fmt.Errorf("failed to write device salt: %w", err)
		}
		restored = true
		return nil
	})
	return restored, err
}

// safeRecordName rejects names that could escape the target directory.
func safeRecordName(name string) bool {
	return name != "" && name != "." && name != ".." && filepath.Base(name) == name
}
