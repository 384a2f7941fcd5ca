package keystore

import (
	"fmt"
	"unicode"
)

// Passphrase length limits.
const (
	MinPassphraseLength = 8
	MaxPassphraseLength = 128
)

// PassphraseStrength is a coarse estimate of passphrase quality.
type PassphraseStrength int

const (
	PassphraseWeak PassphraseStrength = iota
	PassphraseFair
	PassphraseGood
	PassphraseStrong
)

// String returns a human-readable representation of passphrase strength.
func (s PassphraseStrength) String() string {
	switch s {
	case PassphraseWeak:
		return "weak"
	case PassphraseFair:
		return "fair"
	case PassphraseGood:
		return "good"
	case PassphraseStrong:
		return "strong"
	default:
		return "unknown"
	}
}

// PassphraseValidation is the outcome of ValidatePassphrase.
type PassphraseValidation struct {
	Valid    bool
	Strength PassphraseStrength
	Warnings []string
}

// ValidatePassphrase checks the device passphrase against the hard length
// limits and estimates its strength. Complexity issues produce warnings,
// not errors; the length limits are the only hard requirements.
func ValidatePassphrase(passphrase string) *PassphraseValidation {
	result := &PassphraseValidation{Valid: true, Strength: PassphraseFair}

	if len(passphrase) < MinPassphraseLength {
		result.Valid = false
		result.Strength = PassphraseWeak
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("passphrase must be at least %d characters", MinPassphraseLength))
		return result
	}
	if len(passphrase) > MaxPassphraseLength {
		result.Valid = false
		result.Strength = PassphraseWeak
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("passphrase must be at most %d characters", MaxPassphraseLength))
		return result
	}

	var hasUpper, hasLower, hasDigit, hasOther bool
	for _, r := range passphrase {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		default:
			hasOther = true
		}
	}

	complexity := 0
	for _, has := range []bool{hasUpper, hasLower, hasDigit, hasOther} {
		if has {
			complexity++
		}
	}

	if complexity < 2 {
		result.Warnings = append(result.Warnings,
			"consider mixing uppercase, lowercase, numbers and symbols")
	}
	if len(passphrase) < 12 {
		result.Warnings = append(result.Warnings,
			"longer passphrases (12+ characters) are more secure")
	}

	switch {
	case complexity >= 3 && len(passphrase) >= 16:
		result.Strength = PassphraseStrong
	case complexity >= 2 && len(passphrase) >= 12:
		result.Strength = PassphraseGood
	case complexity >= 2 || len(passphrase) >= 12:
		result.Strength = PassphraseFair
	default:
		result.Strength = PassphraseWeak
	}

	return result
}
