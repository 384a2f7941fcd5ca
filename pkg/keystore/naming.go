package keystore

import (
	"encoding/hex"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/cryptoadvance/specter-keystore/pkg/crypto"
	"github.com/cryptoadvance/specter-keystore/pkg/media"
)

const (
	// internalPrefix names records on internal flash. The internal root is
	// never shared between devices, so a fixed literal is enough.
	internalPrefix = "reckless"

	// productTag prefixes removable-media records so they are recognizable
	// as belonging to this product without leaking anything else.
	productTag = "specterdiy"

	// prefixIDLen is how many bytes of the tagged hash go into the prefix.
	// 4 bytes (32 bits) keeps collisions between devices sharing one card
	// overwhelmingly unlikely while keeping filenames short.
	prefixIDLen = 4

	// labelSeparator separates the prefix from the user-chosen label.
	labelSeparator = "."

	// DefaultLabel is the display label of a record stored under the bare
	// prefix with no label suffix.
	DefaultLabel = "Default"

	// maxLabelLen bounds labels to stay within FAT filename limits.
	maxLabelLen = 64
)

// RecordPrefix computes the filename prefix for records under root.
//
// The internal root uses a fixed literal. The removable root derives a
// per-device identity from a tagged one-way hash of the encryption key
// material, so two devices sharing one card never collide and the
// filename reveals nothing about the key. Deterministic across sessions.
func RecordPrefix(root media.Root, keyMaterial []byte) string {
	if root != media.Removable {
		return internalPrefix
	}
	id := crypto.TaggedHash("sdid", keyMaterial)
	return productTag + hex.EncodeToString(id[:prefixIDLen])
}

// RecordName builds the filename for a (prefix, label) pair. An empty
// label yields the bare prefix, the default record.
func RecordName(prefix, label string) string {
	if label == "" {
		return prefix
	}
	return prefix + labelSeparator + label
}

// NormalizeLabel trims surrounding whitespace and NFC-normalizes the
// label so the same visible name always maps to the same filename
// regardless of how the input was composed.
func NormalizeLabel(label string) string {
	return norm.NFC.String(strings.TrimSpace(label))
}

// ValidateLabel rejects labels that could escape the storage root or
// produce unportable filenames. The empty label is allowed here; whether
// an empty user input is acceptable is the workflow's decision.
func ValidateLabel(label string) error {
	if len(label) > maxLabelLen {
		return ErrInvalidLabel
	}
	if strings.Contains(label, "..") {
		return ErrInvalidLabel
	}
	for _, r := range label {
		if r == '/' || r == '\\' || r == ':' || unicode.IsControl(r) {
			return ErrInvalidLabel
		}
	}
	return nil
}
